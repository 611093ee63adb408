// Package web renders the server-side pages and serves their static assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/pep299/smartnotes/internal/store"
)

//go:embed templates/*.html static/*
var files embed.FS

// Page names
const (
	PageLogin    = "login"
	PageRegister = "register"
	PageIndex    = "index"
	PageHistory  = "history"
	PageAdmin    = "admin"
)

var pageNames = []string{PageLogin, PageRegister, PageIndex, PageHistory, PageAdmin}

// PageData is passed to every template
type PageData struct {
	Title     string
	User      *store.User
	IsAdmin   bool
	Languages map[string]string
	Formats   []string
	MaxUpload int64
}

// Renderer holds the parsed page templates
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"join":  strings.Join,
	"megabytes": func(n int64) int64 {
		return n / (1024 * 1024)
	},
}

// NewRenderer parses the layout together with each page
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing page %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render writes page to w as HTML
func (r *Renderer) Render(w http.ResponseWriter, page string, data PageData) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("rendering page %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// Static serves the embedded assets. Mount it under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
