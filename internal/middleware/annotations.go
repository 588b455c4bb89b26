package middleware

import (
	"context"
	"net/http"
)

type annotationsKey struct{}

// Annotations carries what the inner handlers learned about a request
// back out to the access log.
type Annotations struct {
	InteractionID string
	Recorded      bool
	Mode          string // "mock" or "proxy", empty for admin routes
	UpstreamError string
}

// GetAnnotations returns the annotations attached to r, or nil.
func GetAnnotations(r *http.Request) *Annotations {
	a, _ := r.Context().Value(annotationsKey{}).(*Annotations)
	return a
}

// withAnnotations attaches a fresh Annotations to r unless one is present.
func withAnnotations(r *http.Request) (*http.Request, *Annotations) {
	if a := GetAnnotations(r); a != nil {
		return r, a
	}
	a := &Annotations{}
	return r.WithContext(context.WithValue(r.Context(), annotationsKey{}, a)), a
}

// Annotate is the outermost middleware; it makes Annotations available to
// everything below it.
func Annotate() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, _ = withAnnotations(r)
			next.ServeHTTP(w, r)
		})
	}
}
