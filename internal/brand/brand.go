// Package brand loads the per-locale brand variants the site is rendered for.
package brand

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"primedetail.kg/detail-web/internal/booking"
	"primedetail.kg/detail-web/internal/format"
)

// ErrNoVariants is returned when the brand directory holds no variant files.
var ErrNoVariants = errors.New("brand: no variants found")

// Variant parameterizes everything that differs between brand deployments.
type Variant struct {
	ID            string              `yaml:"id"`
	Locale        string              `yaml:"locale"`
	Name          string              `yaml:"name"`
	AlternateName string              `yaml:"alternate_name"`
	Tagline       string              `yaml:"tagline"`
	City          string              `yaml:"city"`
	Country       string              `yaml:"country"`
	Description   string              `yaml:"description"`
	Keywords      []string            `yaml:"keywords"`
	BaseURL       string              `yaml:"base_url"`
	OGLocale      string              `yaml:"og_locale"`
	OGImage       string              `yaml:"og_image"`
	Logo          string              `yaml:"logo"`
	ThemeColor    string              `yaml:"theme_color"`
	PriceRange    string              `yaml:"price_range"`
	Currency      format.Currency     `yaml:"currency"`
	Contacts      Contacts            `yaml:"contacts"`
	Social        Social              `yaml:"social"`
	PhonePlan     booking.PhoneFormat `yaml:"phone_plan"`
}

// Contacts lists the direct-contact channels shown next to the booking form.
type Contacts struct {
	Address      string   `yaml:"address"`
	Phone        string   `yaml:"phone"`
	WhatsApp     string   `yaml:"whatsapp"`
	Telegram     string   `yaml:"telegram"`
	Email        string   `yaml:"email"`
	Weekdays     string   `yaml:"weekdays"`
	Weekends     string   `yaml:"weekends"`
	OpeningHours []string `yaml:"opening_hours"`
	Geo          *Geo     `yaml:"geo"`
}

// Geo is a map pin.
type Geo struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// Social holds profile links.
type Social struct {
	Instagram string `yaml:"instagram"`
	Facebook  string `yaml:"facebook"`
	Telegram  string `yaml:"telegram"`
	WhatsApp  string `yaml:"whatsapp"`
}

// Links returns the non-empty profile URLs in a stable order.
func (s Social) Links() []string {
	out := make([]string, 0, 4)
	for _, v := range []string{s.Instagram, s.Facebook, s.Telegram, s.WhatsApp} {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// URL joins path onto the variant base URL.
func (v Variant) URL(path string) string {
	base := strings.TrimRight(v.BaseURL, "/")
	if path == "" || path == "/" {
		return base + "/"
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

// Registry indexes variants by id and locale.
type Registry struct {
	byID     map[string]Variant
	byLocale map[string]Variant
	fallback Variant
}

// Load reads every *.yaml file in dir. The variant whose locale equals fallbackLocale
// is used for locales without a dedicated variant.
func Load(dir, fallbackLocale string) (*Registry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("brand: glob %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, ErrNoVariants
	}
	sort.Strings(paths)

	variants := make([]Variant, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("brand: read %s: %w", path, err)
		}
		var v Variant
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("brand: parse %s: %w", path, err)
		}
		if v.ID == "" {
			v.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		v.Locale = strings.ToLower(strings.TrimSpace(v.Locale))
		if v.Locale == "" {
			return nil, fmt.Errorf("brand: %s has no locale", path)
		}
		variants = append(variants, v)
	}
	return NewRegistry(fallbackLocale, variants...)
}

// NewRegistry builds a registry from in-memory variants.
func NewRegistry(fallbackLocale string, variants ...Variant) (*Registry, error) {
	if len(variants) == 0 {
		return nil, ErrNoVariants
	}
	r := &Registry{
		byID:     make(map[string]Variant, len(variants)),
		byLocale: make(map[string]Variant, len(variants)),
	}
	for _, v := range variants {
		if _, dup := r.byLocale[v.Locale]; dup {
			return nil, fmt.Errorf("brand: duplicate variant for locale %s", v.Locale)
		}
		r.byID[v.ID] = v
		r.byLocale[v.Locale] = v
	}
	fb, ok := r.byLocale[strings.ToLower(fallbackLocale)]
	if !ok {
		return nil, fmt.Errorf("brand: no variant for fallback locale %s", fallbackLocale)
	}
	r.fallback = fb
	return r, nil
}

// ForLocale returns the variant serving lang.
func (r *Registry) ForLocale(lang string) Variant {
	if v, ok := r.byLocale[strings.ToLower(lang)]; ok {
		return v
	}
	return r.fallback
}

// Get returns the variant with the given id.
func (r *Registry) Get(id string) (Variant, bool) {
	v, ok := r.byID[id]
	return v, ok
}

// All returns the variants sorted by id.
func (r *Registry) All() []Variant {
	out := make([]Variant, 0, len(r.byID))
	for _, v := range r.byID {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
