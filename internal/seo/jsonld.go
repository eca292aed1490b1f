package seo

import (
	"encoding/json"

	"primedetail.kg/detail-web/internal/brand"
)

const schemaContext = "https://schema.org"

// JSON marshals v to a compact JSON string. It returns an empty string on error.
// encoding/json escapes <, > and & so the result is safe inside a script element.
func JSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// LocalBusiness returns the AutoRepair schema for a brand variant. rating may be nil.
func LocalBusiness(v brand.Variant, rating map[string]any) map[string]any {
	m := map[string]any{
		"@context": schemaContext,
		"@type":    "AutoRepair",
		"@id":      v.URL("/") + "#business",
		"name":     v.Name,
		"url":      v.URL("/"),
	}
	if v.AlternateName != "" {
		m["alternateName"] = v.AlternateName
	}
	if v.Description != "" {
		m["description"] = v.Description
	}
	if v.Logo != "" {
		m["logo"] = v.Logo
	}
	if v.OGImage != "" {
		m["image"] = v.OGImage
	}
	if v.Contacts.Phone != "" {
		m["telephone"] = v.PhonePlan.Normalize(v.Contacts.Phone)
	}
	if v.Contacts.Email != "" {
		m["email"] = v.Contacts.Email
	}
	if v.PriceRange != "" {
		m["priceRange"] = v.PriceRange
	}
	if v.Contacts.Address != "" || v.City != "" {
		m["address"] = map[string]any{
			"@type":           "PostalAddress",
			"streetAddress":   v.Contacts.Address,
			"addressLocality": v.City,
			"addressCountry":  v.Country,
		}
	}
	if g := v.Contacts.Geo; g != nil {
		m["geo"] = map[string]any{
			"@type":     "GeoCoordinates",
			"latitude":  g.Lat,
			"longitude": g.Lng,
		}
	}
	if len(v.Contacts.OpeningHours) > 0 {
		m["openingHours"] = v.Contacts.OpeningHours
	}
	if links := v.Social.Links(); len(links) > 0 {
		m["sameAs"] = links
	}
	if rating != nil {
		m["aggregateRating"] = rating
	}
	return m
}

// ReviewAggregate returns an AggregateRating node. It returns nil without reviews.
func ReviewAggregate(ratingValue float64, reviewCount int) map[string]any {
	if reviewCount <= 0 {
		return nil
	}
	return map[string]any{
		"@type":       "AggregateRating",
		"ratingValue": ratingValue,
		"reviewCount": reviewCount,
		"bestRating":  5,
		"worstRating": 1,
	}
}

// QA is one question and answer pair.
type QA struct {
	Question string
	Answer   string
}

// FAQPage builds schema.org FAQPage. It returns nil for an empty list.
func FAQPage(items []QA) map[string]any {
	if len(items) == 0 {
		return nil
	}
	entities := make([]map[string]any, 0, len(items))
	for _, it := range items {
		entities = append(entities, map[string]any{
			"@type": "Question",
			"name":  it.Question,
			"acceptedAnswer": map[string]any{
				"@type": "Answer",
				"text":  it.Answer,
			},
		})
	}
	return map[string]any{
		"@context":   schemaContext,
		"@type":      "FAQPage",
		"mainEntity": entities,
	}
}

// BreadcrumbItem maps name and absolute item URL.
type BreadcrumbItem struct {
	Name string
	Item string
}

// BreadcrumbList builds schema.org BreadcrumbList.
func BreadcrumbList(items []BreadcrumbItem) map[string]any {
	el := make([]map[string]any, 0, len(items))
	for i, it := range items {
		el = append(el, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"name":     it.Name,
			"item":     it.Item,
		})
	}
	return map[string]any{
		"@context":        schemaContext,
		"@type":           "BreadcrumbList",
		"itemListElement": el,
	}
}

// WebSite returns a minimal WebSite schema.
func WebSite(v brand.Variant) map[string]any {
	return map[string]any{
		"@context":   schemaContext,
		"@type":      "WebSite",
		"name":       v.Name,
		"url":        v.URL("/"),
		"inLanguage": v.Locale,
	}
}
