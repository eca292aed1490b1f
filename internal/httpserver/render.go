package httpserver

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

	"primedetail.kg/detail-web/internal/booking"
	"primedetail.kg/detail-web/internal/format"
	"primedetail.kg/detail-web/internal/i18n"
	"primedetail.kg/detail-web/internal/observability"
)

// templateSet holds one clone of the shared layout per page plus the shared set used
// for fragments. Pages all define "content", so each needs its own tree.
type templateSet struct {
	pages  map[string]*template.Template
	shared *template.Template
}

// renderer parses templates once, or on every request in dev mode.
type renderer struct {
	dir   string
	dev   bool
	funcs template.FuncMap

	mu    sync.RWMutex
	cache *templateSet
}

func newRenderer(dir string, dev bool, bundle *i18n.Bundle) (*renderer, error) {
	r := &renderer{dir: dir, dev: dev, funcs: templateFuncs(bundle)}
	set, err := r.parse()
	if err != nil {
		return nil, err
	}
	r.cache = set
	return r, nil
}

func templateFuncs(bundle *i18n.Bundle) template.FuncMap {
	return template.FuncMap{
		"t":        bundle.T,
		"tf":       bundle.Tf,
		"price":    format.Price,
		"number":   format.Number,
		"duration": format.Duration,
		"stars":    format.Stars,
		"add":      func(a, b int) int { return a + b },
		"isoDate":  func(t time.Time) string { return t.Format("2006-01-02") },
		"fieldError": func(lang string, errs booking.FieldErrors, field string) string {
			code, ok := errs[field]
			if !ok {
				return ""
			}
			return bundle.T(lang, "booking.error."+field+"."+string(code))
		},
		"categoryKey": func(prefix, category string) string { return prefix + "." + category },
	}
}

// parse loads layouts/*.tmpl and partials/*.tmpl as the shared set, then clones it
// for every pages/*.tmpl.
func (r *renderer) parse() (*templateSet, error) {
	var sharedFiles, pageFiles []string
	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".tmpl") {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) == "pages" {
			pageFiles = append(pageFiles, path)
		} else {
			sharedFiles = append(sharedFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk templates: %w", err)
	}
	if len(sharedFiles) == 0 || len(pageFiles) == 0 {
		return nil, fmt.Errorf("no templates found under %s", r.dir)
	}
	shared, err := template.New("_root").Funcs(r.funcs).ParseFiles(sharedFiles...)
	if err != nil {
		return nil, fmt.Errorf("parse shared templates: %w", err)
	}
	set := &templateSet{pages: map[string]*template.Template{}, shared: shared}
	for _, file := range pageFiles {
		clone, err := shared.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := clone.ParseFiles(file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		set.pages[strings.TrimSuffix(filepath.Base(file), ".tmpl")] = clone
	}
	return set, nil
}

func (r *renderer) current() (*templateSet, error) {
	if r.dev {
		return r.parse()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache, nil
}

// page executes the base layout with the page's "content" block.
func (r *renderer) page(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	set, err := r.current()
	if err != nil {
		r.fail(w, req, err)
		return
	}
	t, ok := set.pages[name]
	if !ok {
		r.fail(w, req, fmt.Errorf("unknown page %q", name))
		return
	}
	r.execute(w, req, status, t, "base", data)
}

// fragment executes a named partial, used for htmx swaps.
func (r *renderer) fragment(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	set, err := r.current()
	if err != nil {
		r.fail(w, req, err)
		return
	}
	r.execute(w, req, status, set.shared, name, data)
}

func (r *renderer) execute(w http.ResponseWriter, req *http.Request, status int, t *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		r.fail(w, req, fmt.Errorf("execute %s: %w", name, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (r *renderer) fail(w http.ResponseWriter, req *http.Request, err error) {
	observability.FromContext(req.Context()).Error("template render failed", zap.Error(err))
	msg := "internal server error"
	if r.dev {
		msg = err.Error()
	}
	http.Error(w, msg, http.StatusInternalServerError)
}
