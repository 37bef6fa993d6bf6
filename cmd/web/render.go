package main

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"sigmarservicos.com.br/sigmar-web/internal/observability"
)

var (
	templatesDir = "templates"
	publicDir    = "public"
	// devMode reparses templates on every request
	devMode bool

	tmplMu    sync.RWMutex
	tmplCache *template.Template
)

func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"now": time.Now,
	}
	// ParseGlob doesn't support **, so walk the tree.
	var files []string
	if err := filepath.WalkDir(templatesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".tmpl") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no templates found under %s", templatesDir)
	}
	return template.New("_root").Funcs(funcMap).ParseFiles(files...)
}

func loadTemplates() error {
	tc, err := parseTemplates()
	if err != nil {
		return err
	}
	tmplMu.Lock()
	tmplCache = tc
	tmplMu.Unlock()
	return nil
}

func templates() (*template.Template, error) {
	if devMode {
		return parseTemplates()
	}
	tmplMu.RLock()
	defer tmplMu.RUnlock()
	if tmplCache == nil {
		return nil, fmt.Errorf("template not initialized")
	}
	return tmplCache, nil
}

// render executes the named template with status code. Output is buffered so a failing
// template never leaves a half-written page.
func render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	t, err := templates()
	if err != nil {
		observability.FromContext(r.Context()).Error("template parse error", zap.Error(err))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		observability.FromContext(r.Context()).Error("template exec error", zap.String("template", name), zap.Error(err))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
