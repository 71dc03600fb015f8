// Package pages holds the server-rendered views of the search front end.
package pages

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var files embed.FS

// Templates is keyed by file name: home.html, results.html, noresults.html
// and error.html. layout.html only provides shared blocks.
var Templates = template.Must(template.New("").ParseFS(files, "templates/*.html"))
