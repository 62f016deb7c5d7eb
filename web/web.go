// Package web holds the embedded HTML templates and builds the view
// engine over them, so the binary and the tests render the same pages
// regardless of working directory.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates
var files embed.FS

// Layout is the shared page frame every template renders inside.
const Layout = "layouts/main"

// Engine builds the HTML template engine over the embedded templates.
func Engine() (*html.Engine, error) {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded templates: %w", err)
	}
	return html.NewFileSystem(http.FS(sub), ".html"), nil
}
