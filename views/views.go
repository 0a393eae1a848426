// Package views holds the server-rendered pages.
package views

import (
	"embed"
	"html/template"
	"strconv"
	"time"

	"github.com/cppla/bettercampus/poller"
)

//go:embed templates/*.tmpl
var files embed.FS

// Funcs are available to every page.
var Funcs = template.FuncMap{
	"excerpt": poller.Excerpt,
	"postLink": func(id uint) string {
		return "/posts/" + strconv.FormatUint(uint64(id), 10)
	},
	"date": func(t time.Time) string {
		return t.Format("2006-01-02 15:04")
	},
}

// Load parses the embedded templates.
func Load() (*template.Template, error) {
	return template.New("").Funcs(Funcs).ParseFS(files, "templates/*.tmpl")
}
