// Package nav describes the section navigation of the one-page layout.
package nav

import "strings"

// Item is a home page section reachable from the header.
type Item struct {
	Anchor   string // section id, e.g. "services"
	LabelKey string // i18n key, e.g. "nav.services"
}

// RenderedItem is a view model for templates.
type RenderedItem struct {
	Href     string
	Anchor   string
	LabelKey string
}

// Crumb is a breadcrumb entry.
type Crumb struct {
	Href     string
	LabelKey string
	Active   bool
}

// Sections lists the header links in page order.
var Sections = []Item{
	{Anchor: "services", LabelKey: "nav.services"},
	{Anchor: "pricing", LabelKey: "nav.pricing"},
	{Anchor: "portfolio", LabelKey: "nav.portfolio"},
	{Anchor: "reviews", LabelKey: "nav.reviews"},
	{Anchor: "faq", LabelKey: "nav.faq"},
	{Anchor: "contacts", LabelKey: "nav.contacts"},
}

// BookingAnchor is the id of the booking form section.
const BookingAnchor = "booking"

// Build renders section links. On the home page they are plain fragments; elsewhere
// they point back at the home page.
func Build(currentPath string) []RenderedItem {
	prefix := "/"
	if currentPath == "" || currentPath == "/" {
		prefix = ""
	}
	items := make([]RenderedItem, 0, len(Sections))
	for _, it := range Sections {
		items = append(items, RenderedItem{
			Href:     prefix + "#" + it.Anchor,
			Anchor:   it.Anchor,
			LabelKey: it.LabelKey,
		})
	}
	return items
}

// BookingHref links the booking section from currentPath.
func BookingHref(currentPath string) string {
	if currentPath == "" || currentPath == "/" {
		return "#" + BookingAnchor
	}
	return "/#" + BookingAnchor
}

var pageLabels = map[string]string{
	"/policy": "nav.policy",
}

// Breadcrumbs returns Home followed by the current page when it is known.
func Breadcrumbs(currentPath string) []Crumb {
	currentPath = "/" + strings.Trim(currentPath, "/")
	crumbs := []Crumb{{Href: "/", LabelKey: "nav.home", Active: currentPath == "/"}}
	if key, ok := pageLabels[currentPath]; ok {
		crumbs = append(crumbs, Crumb{Href: currentPath, LabelKey: key, Active: true})
	}
	return crumbs
}

// BackHref picks the target of a "back" link: the referer when it is a same-site path,
// otherwise the home page.
func BackHref(referer, host string) string {
	ref := strings.TrimSpace(referer)
	if ref == "" {
		return "/"
	}
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(ref, scheme+host+"/") {
			ref = strings.TrimPrefix(ref, scheme+host)
			break
		}
	}
	if !strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "//") || strings.HasPrefix(ref, "/policy") {
		return "/"
	}
	return ref
}
