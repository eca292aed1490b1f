package content

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testCatalog = `
hero:
  - title: Premium Car Detailing
    image: /assets/hero-1.jpg
services:
  - id: wash
    title: Wash
    category: exterior
    price_from: 1500
    duration_hours: 1
  - id: polish
    title: Polish
    category: exterior
    tag: hit
    price_from: 12000
  - id: dryclean
    title: Dry cleaning
    category: interior
    price_from: 8000
portfolio:
  - id: p1
    category: ceramic
  - id: p2
    category: ppf
testimonials:
  - id: t1
    rating: 5
  - id: t2
    rating: 4
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestCatalogFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "catalog.yaml"), testCatalog)
	c, err := LoadCatalog(dir)
	require.NoError(t, err)

	ext := c.ServicesByCategory("exterior")
	require.Len(t, ext, 2)
	require.Equal(t, "wash", ext[0].ID)
	require.Len(t, c.ServicesByCategory("interior"), 1)
	require.Empty(t, c.ServicesByCategory("protection"))
	// unknown falls back to the first category
	require.Len(t, c.ServicesByCategory("bogus"), 2)

	require.Len(t, c.PortfolioByCategory(PortfolioAll), 2)
	require.Len(t, c.PortfolioByCategory(""), 2)
	ppf := c.PortfolioByCategory("PPF")
	require.Len(t, ppf, 1)
	require.Equal(t, "p2", ppf[0].ID)

	avg, n := c.AverageRating()
	require.Equal(t, 2, n)
	require.InDelta(t, 4.5, avg, 0.001)

	svc, ok := c.Service("polish")
	require.True(t, ok)
	require.Equal(t, "hit", svc.Tag)
}

func TestCatalogValidation(t *testing.T) {
	cases := map[string]string{
		"no hero":      "services: []\n",
		"bad category": "hero: [{title: x}]\nservices: [{id: a, category: wheels}]\n",
		"bad tag":      "hero: [{title: x}]\nservices: [{id: a, category: exterior, tag: hot}]\n",
		"duplicate id": "hero: [{title: x}]\nservices: [{id: a, category: exterior}, {id: a, category: interior}]\n",
		"bad rating":   "hero: [{title: x}]\ntestimonials: [{id: t, rating: 6}]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "catalog.yaml"), body)
			_, err := LoadCatalog(dir)
			require.Error(t, err)
		})
	}
}

func TestLoadCatalogMissing(t *testing.T) {
	_, err := LoadCatalog(t.TempDir())
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestPageRendersSanitizedMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "primedetail", "policy.md"), `---
title: Политика конфиденциальности
updated_at: 2024-01-15
seo:
  description: Как мы обрабатываем данные
---
## Какие данные мы собираем

Имя и **телефон**.

<script>alert(1)</script>
<span onclick="x()">raw</span>

[Подробнее](https://example.com)
`)
	s := NewStore(dir)
	page, err := s.Page("primedetail", "policy")
	require.NoError(t, err)
	require.Equal(t, "Политика конфиденциальности", page.Title)
	require.Equal(t, "Как мы обрабатываем данные", page.SEO.Description)
	require.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), page.UpdatedAt)

	html := string(page.HTML)
	require.Contains(t, html, "<h2")
	require.Contains(t, html, "<strong>телефон</strong>")
	require.NotContains(t, html, "<script")
	require.NotContains(t, html, "onclick")
	require.Contains(t, html, `rel="nofollow"`)
}

func TestPageRejectsTraversal(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, slug := range []string{"", "../secret", "a/b"} {
		_, err := s.Page("primedetail", slug)
		require.ErrorIs(t, err, ErrNotFound, slug)
	}
	_, err := s.Page("primedetail", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreCachesUntilTTL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v", "policy.md")
	writeFile(t, path, "first")
	now := time.Unix(0, 0)
	s := NewStore(dir, WithCacheTTL(time.Minute), WithStoreClock(func() time.Time { return now }))

	page, err := s.Page("v", "policy")
	require.NoError(t, err)
	require.Contains(t, string(page.HTML), "first")

	writeFile(t, path, "second")
	page, _ = s.Page("v", "policy")
	require.Contains(t, string(page.HTML), "first")

	now = now.Add(2 * time.Minute)
	page, _ = s.Page("v", "policy")
	require.Contains(t, string(page.HTML), "second")
}

func TestZeroTTLAlwaysReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v", "catalog.yaml")
	writeFile(t, path, testCatalog)
	s := NewStore(dir, WithCacheTTL(0))
	c, err := s.Catalog("v")
	require.NoError(t, err)
	require.Len(t, c.Services, 3)

	writeFile(t, path, strings.Replace(testCatalog, "  - id: dryclean\n    title: Dry cleaning\n    category: interior\n    price_from: 8000\n", "", 1))
	c, err = s.Catalog("v")
	require.NoError(t, err)
	require.Len(t, c.Services, 2)
}

func TestShippedCatalogsLoad(t *testing.T) {
	s := NewStore(filepath.Join("..", "..", "content"))
	for _, variant := range []string{"primedetail", "shineport"} {
		c, err := s.Catalog(variant)
		require.NoError(t, err, variant)
		require.Len(t, c.Hero, 3, variant)
		for _, cat := range ServiceCategories {
			require.NotEmpty(t, c.ServicesByCategory(cat), "%s/%s", variant, cat)
		}
		require.NotEmpty(t, c.FAQ, variant)

		page, err := s.Page(variant, "policy")
		require.NoError(t, err, variant)
		require.NotEmpty(t, page.HTML, variant)
	}
}
