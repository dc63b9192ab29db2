package handler

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/labstack/echo/v4"
)

//go:embed web
var webFS embed.FS

// RegisterUI mounts the browser client at / and its assets under /static.
func RegisterUI(e *echo.Echo) error {
	root, err := fs.Sub(webFS, "web")
	if err != nil {
		return fmt.Errorf("ui filesystem: %w", err)
	}
	static, err := fs.Sub(root, "static")
	if err != nil {
		return fmt.Errorf("ui static filesystem: %w", err)
	}

	e.FileFS("/", "index.html", root)
	e.StaticFS("/static", static)
	return nil
}
