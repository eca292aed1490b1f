package handlers

import "primedetail.kg/detail-web/internal/content"

// PolicyData is the view model for the privacy policy page.
type PolicyData struct {
	Layout
	Page     content.Page
	BackHref string
}
