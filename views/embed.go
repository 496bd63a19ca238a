// Package views holds the HTML templates rendered by the page controller.
package views

import "embed"

//go:embed *.html layouts/*.html
var FS embed.FS
