// Package seo builds the document head for each rendered page.
package seo

import (
	"html/template"
	"strings"

	"primedetail.kg/detail-web/internal/brand"
)

// OpenGraph holds og:* properties.
type OpenGraph struct {
	Title       string
	Description string
	Image       string
	URL         string
	Type        string
	SiteName    string
	Locale      string
}

// Twitter holds twitter:* card properties.
type Twitter struct {
	Card        string
	Title       string
	Description string
	Image       string
}

// Alternate links a translated version of the page.
type Alternate struct {
	Hreflang string
	Href     string
}

// Meta is the complete set of document metadata for one page.
type Meta struct {
	Title       string
	Description string
	Keywords    []string
	Author      string
	Robots      string
	Canonical   string
	ThemeColor  string
	OG          OpenGraph
	Twitter     Twitter
	Alternates  []Alternate
}

// ForVariant fills Meta from the brand variant. Empty title and description fall back
// to the variant defaults. path is the page path used for canonical and og:url.
func ForVariant(v brand.Variant, path, title, description string) Meta {
	if title == "" {
		title = v.Name
		if v.Tagline != "" {
			title += " - " + v.Tagline
		}
	}
	if description == "" {
		description = v.Description
	}
	canonical := v.URL(path)
	return Meta{
		Title:       title,
		Description: description,
		Keywords:    v.Keywords,
		Author:      v.Name,
		Robots:      "index, follow",
		Canonical:   canonical,
		ThemeColor:  v.ThemeColor,
		OG: OpenGraph{
			Title:       title,
			Description: description,
			Image:       v.OGImage,
			URL:         canonical,
			Type:        "website",
			SiteName:    v.Name,
			Locale:      v.OGLocale,
		},
		Twitter: Twitter{
			Card:        "summary_large_image",
			Title:       title,
			Description: description,
			Image:       v.OGImage,
		},
	}
}

// WithAlternates adds an hreflang link per variant plus x-default pointing at fallback.
func (m Meta) WithAlternates(path string, fallback brand.Variant, variants ...brand.Variant) Meta {
	alts := make([]Alternate, 0, len(variants)+1)
	for _, v := range variants {
		alts = append(alts, Alternate{Hreflang: v.Locale, Href: v.URL(path)})
	}
	alts = append(alts, Alternate{Hreflang: "x-default", Href: fallback.URL(path)})
	m.Alternates = alts
	return m
}

// Tag is one <meta> element. Exactly one of Name or Property is set.
type Tag struct {
	Name     string
	Property string
	Content  string
}

// Head is the per-response set of head elements. A fresh Head is built for every
// render so nothing set for one page is visible on another.
type Head struct {
	Meta    Meta
	schemas []any
}

// NewHead starts a head for m.
func NewHead(m Meta) *Head {
	return &Head{Meta: m}
}

// AddSchema appends a structured-data block. nil values and nil maps are ignored.
func (h *Head) AddSchema(v any) *Head {
	if m, ok := v.(map[string]any); v == nil || (ok && m == nil) {
		return h
	}
	h.schemas = append(h.schemas, v)
	return h
}

// Title returns the document title.
func (h *Head) Title() string { return h.Meta.Title }

// Tags returns the meta elements in render order, skipping empty values.
func (h *Head) Tags() []Tag {
	m := h.Meta
	var tags []Tag
	name := func(n, c string) {
		if c != "" {
			tags = append(tags, Tag{Name: n, Content: c})
		}
	}
	prop := func(p, c string) {
		if c != "" {
			tags = append(tags, Tag{Property: p, Content: c})
		}
	}
	name("description", m.Description)
	name("keywords", strings.Join(m.Keywords, ", "))
	name("author", m.Author)
	name("robots", m.Robots)
	name("theme-color", m.ThemeColor)
	prop("og:title", m.OG.Title)
	prop("og:description", m.OG.Description)
	prop("og:image", m.OG.Image)
	prop("og:url", m.OG.URL)
	prop("og:type", m.OG.Type)
	prop("og:site_name", m.OG.SiteName)
	prop("og:locale", m.OG.Locale)
	name("twitter:card", m.Twitter.Card)
	name("twitter:title", m.Twitter.Title)
	name("twitter:description", m.Twitter.Description)
	name("twitter:image", m.Twitter.Image)
	return tags
}

// Scripts returns the JSON-LD payloads ready for <script type="application/ld+json">.
// Blocks that fail to marshal are dropped.
func (h *Head) Scripts() []template.JS {
	out := make([]template.JS, 0, len(h.schemas))
	for _, s := range h.schemas {
		if js := JSON(s); js != "" {
			out = append(out, template.JS(js))
		}
	}
	return out
}
