package handler

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	set *template.Template
}

func loadPages() (*pages, error) {
	set, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &pages{set: set}, nil
}

// pageData is the common view model. Theme selects the colour scheme.
type pageData struct {
	Title       string
	Theme       string
	Email       string
	CallbackURL string
	Error       string
	FieldErrors map[string]string
	Goals       any
}

// render executes name into a buffer first so a template error never
// leaves a half-written page.
func (p *pages) render(w http.ResponseWriter, status int, name string, data pageData) {
	if data.Theme == "" {
		data.Theme = "system"
	}
	var buf bytes.Buffer
	if err := p.set.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, "An unexpected error occurred", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
