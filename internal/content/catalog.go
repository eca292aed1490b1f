// Package content loads the per-variant marketing catalog and static pages.
package content

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a page or catalog does not exist.
var ErrNotFound = errors.New("content: not found")

// Service categories in display order.
var ServiceCategories = []string{"exterior", "interior", "protection", "addons"}

// PortfolioAll selects every portfolio item.
const PortfolioAll = "all"

// Portfolio categories in display order, without PortfolioAll.
var PortfolioCategories = []string{"polishing", "ceramic", "interior", "ppf"}

var serviceTags = []string{"", "hit", "new", "sale"}

// Service is one entry of the service catalog.
type Service struct {
	ID            string   `yaml:"id"`
	Title         string   `yaml:"title"`
	Category      string   `yaml:"category"`
	Short         string   `yaml:"short"`
	Details       []string `yaml:"details"`
	DurationHours float64  `yaml:"duration_hours"`
	PriceFrom     int64    `yaml:"price_from"`
	Tag           string   `yaml:"tag"`
	Image         string   `yaml:"image"`
}

// Package is a bundled offer.
type Package struct {
	ID             string   `yaml:"id"`
	Title          string   `yaml:"title"`
	Description    string   `yaml:"description"`
	Includes       []string `yaml:"includes"`
	PriceFrom      int64    `yaml:"price_from"`
	Best           bool     `yaml:"best"`
	RecommendedFor []string `yaml:"recommended_for"`
}

// PortfolioItem is a before/after pair.
type PortfolioItem struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Category    string   `yaml:"category"`
	BeforeImage string   `yaml:"before_image"`
	AfterImage  string   `yaml:"after_image"`
	Description string   `yaml:"description"`
	Services    []string `yaml:"services"`
}

// Testimonial is a customer review.
type Testimonial struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Car      string `yaml:"car"`
	Rating   int    `yaml:"rating"`
	Text     string `yaml:"text"`
	Verified bool   `yaml:"verified"`
	Date     string `yaml:"date"`
	Avatar   string `yaml:"avatar"`
}

// FAQItem is one question and answer.
type FAQItem struct {
	ID       string `yaml:"id"`
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
	Category string `yaml:"category"`
}

// HeroSlide is one slide of the hero carousel.
type HeroSlide struct {
	Title       string `yaml:"title"`
	Subtitle    string `yaml:"subtitle"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
}

// Feature is a selling point shown under the hero.
type Feature struct {
	Icon        string `yaml:"icon"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Stat is a headline number.
type Stat struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

// Catalog is everything the home page lists for one variant.
type Catalog struct {
	Hero         []HeroSlide     `yaml:"hero"`
	Features     []Feature       `yaml:"features"`
	Stats        []Stat          `yaml:"stats"`
	Services     []Service       `yaml:"services"`
	Packages     []Package       `yaml:"packages"`
	Portfolio    []PortfolioItem `yaml:"portfolio"`
	Testimonials []Testimonial   `yaml:"testimonials"`
	FAQ          []FAQItem       `yaml:"faq"`
}

// LoadCatalog reads <dir>/catalog.yaml and validates it.
func LoadCatalog(dir string) (*Catalog, error) {
	path := filepath.Join(dir, "catalog.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("content: read %s: %w", path, err)
	}
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("content: parse %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("content: %s: %w", path, err)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Hero) == 0 {
		return errors.New("hero needs at least one slide")
	}
	seen := map[string]bool{}
	for _, s := range c.Services {
		if s.ID == "" || seen[s.ID] {
			return fmt.Errorf("service id %q missing or duplicated", s.ID)
		}
		seen[s.ID] = true
		if !slices.Contains(ServiceCategories, s.Category) {
			return fmt.Errorf("service %s: unknown category %q", s.ID, s.Category)
		}
		if !slices.Contains(serviceTags, s.Tag) {
			return fmt.Errorf("service %s: unknown tag %q", s.ID, s.Tag)
		}
		if s.PriceFrom < 0 {
			return fmt.Errorf("service %s: negative price", s.ID)
		}
	}
	for _, p := range c.Portfolio {
		if !slices.Contains(PortfolioCategories, p.Category) {
			return fmt.Errorf("portfolio %s: unknown category %q", p.ID, p.Category)
		}
	}
	for _, t := range c.Testimonials {
		if t.Rating < 1 || t.Rating > 5 {
			return fmt.Errorf("testimonial %s: rating %d out of range", t.ID, t.Rating)
		}
	}
	return nil
}

// ServiceCategory maps an arbitrary query value onto a known category. Unknown and
// empty values select the first category.
func ServiceCategory(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if slices.Contains(ServiceCategories, raw) {
		return raw
	}
	return ServiceCategories[0]
}

// PortfolioCategory maps an arbitrary query value onto PortfolioAll or a known category.
func PortfolioCategory(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if slices.Contains(PortfolioCategories, raw) {
		return raw
	}
	return PortfolioAll
}

// ServicesByCategory returns the services of the normalized category in catalog order.
func (c *Catalog) ServicesByCategory(category string) []Service {
	category = ServiceCategory(category)
	out := make([]Service, 0, len(c.Services))
	for _, s := range c.Services {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}

// PortfolioByCategory returns the items of category, or all items for PortfolioAll.
func (c *Catalog) PortfolioByCategory(category string) []PortfolioItem {
	category = PortfolioCategory(category)
	if category == PortfolioAll {
		return slices.Clone(c.Portfolio)
	}
	out := make([]PortfolioItem, 0, len(c.Portfolio))
	for _, p := range c.Portfolio {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Service looks a service up by id.
func (c *Catalog) Service(id string) (Service, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

// Package returns the package with id.
func (c *Catalog) Package(id string) (Package, bool) {
	for _, p := range c.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}

// AverageRating returns the mean testimonial rating and the number of testimonials.
func (c *Catalog) AverageRating() (float64, int) {
	if len(c.Testimonials) == 0 {
		return 0, 0
	}
	sum := 0
	for _, t := range c.Testimonials {
		sum += t.Rating
	}
	return float64(sum) / float64(len(c.Testimonials)), len(c.Testimonials)
}
