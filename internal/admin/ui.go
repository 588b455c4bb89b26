package admin

import _ "embed"

//go:embed templates/viewer.html
var viewerHTML string
