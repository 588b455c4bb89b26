package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wudi/dummy/internal/config"
	"github.com/wudi/dummy/internal/logging"
	"github.com/wudi/dummy/internal/server"
	"github.com/wudi/dummy/internal/tracing"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

type options struct {
	configPath   string
	showVersion  bool
	validateOnly bool
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("dummy", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVarP(&opts.configPath, "config", "c", "", "Path to an optional YAML configuration file")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")
	fs.BoolVar(&opts.validateOnly, "validate", false, "Validate configuration and exit")
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: dummy [flags]\n\n")
		fmt.Fprintf(output, "Records every request it receives and answers with a fixed response,\n")
		fmt.Fprintf(output, "or forwards it to UPSTREAM_ENDPOINT when set.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path == "" {
		return loader.LoadFromEnv()
	}
	return loader.Load(path)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	if opts.showVersion {
		fmt.Printf("dummy %s (built %s)\n", version, buildTime)
		return 0
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	if opts.validateOnly {
		data, err := cfg.MarshalRedacted()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		fmt.Printf("Configuration is valid\n\n%s", data)
		return 0
	}

	logger, logCloser, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Output:     cfg.Logging.Output,
		MaxSize:    cfg.Logging.Rotation.MaxSize,
		MaxBackups: cfg.Logging.Rotation.MaxBackups,
		MaxAge:     cfg.Logging.Rotation.MaxAge,
		Compress:   cfg.Logging.Rotation.Compress,
		LocalTime:  cfg.Logging.Rotation.LocalTime,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()
	if logCloser != nil {
		defer logCloser.Close()
	}
	logging.SetGlobal(logger)

	logging.Info("Starting dummy",
		zap.String("version", version),
		zap.String("config", opts.configPath),
		zap.Int("port", cfg.Listen.Port),
		zap.Bool("tracing", cfg.Tracing.Enabled),
	)
	logging.Debug("Effective configuration", zap.Reflect("config", cfg.Redacted()))

	tracer, err := tracing.New(cfg.Tracing)
	if err != nil {
		logging.Error("Failed to initialize tracing", zap.Error(err))
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Close(ctx); err != nil {
			logging.Warn("Tracer shutdown error", zap.Error(err))
		}
	}()

	srv, err := server.New(cfg, tracer)
	if err != nil {
		logging.Error("Failed to create server", zap.Error(err))
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(ctx); err != nil {
		logging.Error("Server error", zap.Error(err))
		return 1
	}
	logging.Info("dummy stopped")
	return 0
}
