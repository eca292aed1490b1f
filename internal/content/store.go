package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"
)

// DefaultCacheTTL is how long a loaded catalog or page is reused.
const DefaultCacheTTL = 5 * time.Minute

// Page is a rendered static page such as the privacy policy.
type Page struct {
	Slug      string
	Title     string
	Summary   string
	UpdatedAt time.Time
	HTML      template.HTML
	SEO       PageSEO
}

// PageSEO holds optional metadata overrides.
type PageSEO struct {
	Title       string
	Description string
}

type frontMatter struct {
	Title     string `yaml:"title"`
	Summary   string `yaml:"summary"`
	UpdatedAt string `yaml:"updated_at"`
	SEO       struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
	} `yaml:"seo"`
}

// Store reads content from <dir>/<variant>/ and caches it for the configured TTL.
// A zero TTL disables caching.
type Store struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	md     goldmark.Markdown
	policy *bluemonday.Policy

	mu       sync.RWMutex
	catalogs map[string]cached[*Catalog]
	pages    map[string]cached[Page]
}

type cached[T any] struct {
	value   T
	expires time.Time
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(d time.Duration) StoreOption {
	return func(s *Store) {
		if d >= 0 {
			s.ttl = d
		}
	}
}

// WithStoreClock overrides time.Now.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{
		dir: dir,
		ttl: DefaultCacheTTL,
		now: time.Now,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		policy:   newPagePolicy(),
		catalogs: map[string]cached[*Catalog]{},
		pages:    map[string]cached[Page]{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newPagePolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4")
	policy.AllowAttrs("class").OnElements("p", "span", "table")
	policy.RequireNoFollowOnLinks(true)
	policy.AllowURLSchemes("tel")
	return policy
}

// Catalog returns the catalog of variant.
func (s *Store) Catalog(variant string) (*Catalog, error) {
	variant = sanitizeSlug(variant)
	if variant == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	entry, ok := s.catalogs[variant]
	s.mu.RUnlock()
	if ok && s.now().Before(entry.expires) {
		return entry.value, nil
	}
	c, err := LoadCatalog(filepath.Join(s.dir, variant))
	if err != nil {
		return nil, err
	}
	s.store(func() { s.catalogs[variant] = cached[*Catalog]{value: c, expires: s.now().Add(s.ttl)} })
	return c, nil
}

// Page renders <dir>/<variant>/<slug>.md.
func (s *Store) Page(variant, slug string) (Page, error) {
	variant, slug = sanitizeSlug(variant), sanitizeSlug(slug)
	if variant == "" || slug == "" {
		return Page{}, ErrNotFound
	}
	key := variant + "|" + slug
	s.mu.RLock()
	entry, ok := s.pages[key]
	s.mu.RUnlock()
	if ok && s.now().Before(entry.expires) {
		return entry.value, nil
	}
	page, err := s.readPage(filepath.Join(s.dir, variant, slug+".md"), slug)
	if err != nil {
		return Page{}, err
	}
	s.store(func() { s.pages[key] = cached[Page]{value: page, expires: s.now().Add(s.ttl)} })
	return page, nil
}

func (s *Store) store(fn func()) {
	if s.ttl == 0 {
		return
	}
	s.mu.Lock()
	fn()
	s.mu.Unlock()
}

func (s *Store) readPage(file, slug string) (Page, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Page{}, ErrNotFound
		}
		return Page{}, fmt.Errorf("content: read %s: %w", file, err)
	}
	fm, body := splitFrontMatter(string(data))
	var front frontMatter
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &front); err != nil {
			return Page{}, fmt.Errorf("content: parse front matter %s: %w", file, err)
		}
	}
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(body), &buf); err != nil {
		return Page{}, fmt.Errorf("content: render %s: %w", file, err)
	}
	page := Page{
		Slug:    slug,
		Title:   strings.TrimSpace(front.Title),
		Summary: strings.TrimSpace(front.Summary),
		HTML:    template.HTML(s.policy.SanitizeBytes(buf.Bytes())),
		SEO: PageSEO{
			Title:       strings.TrimSpace(front.SEO.Title),
			Description: strings.TrimSpace(front.SEO.Description),
		},
	}
	page.UpdatedAt = parseDate(front.UpdatedAt)
	if page.UpdatedAt.IsZero() {
		if info, err := os.Stat(file); err == nil {
			page.UpdatedAt = info.ModTime()
		}
	}
	if page.Title == "" {
		page.Title = slug
	}
	return page, nil
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimLeft(input, "\ufeff")
	lines := strings.Split(input, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			fm := strings.Join(lines[1:i], "\n")
			body := strings.Join(lines[i+1:], "\n")
			return fm, strings.TrimLeft(body, "\n\r")
		}
	}
	return "", input
}

func parseDate(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func sanitizeSlug(slug string) string {
	slug = strings.Trim(strings.TrimSpace(strings.ToLower(slug)), "/")
	if slug == "" || strings.Contains(slug, "..") || strings.ContainsAny(slug, `/\`) {
		return ""
	}
	return slug
}
