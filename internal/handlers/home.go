package handlers

import (
	"slices"

	"primedetail.kg/detail-web/internal/booking"
	"primedetail.kg/detail-web/internal/carousel"
	"primedetail.kg/detail-web/internal/content"
	"primedetail.kg/detail-web/internal/format"
	"primedetail.kg/detail-web/internal/submission"
)

// HomeData is the view model for the landing page.
type HomeData struct {
	Layout
	Catalog     *content.Catalog
	Hero        CarouselView
	Reviews     CarouselView
	Services    ServicesView
	Portfolio   PortfolioView
	Booking     BookingView
	Rating      float64
	ReviewCount int
}

// ServicesView is one tab of the service catalog.
type ServicesView struct {
	Lang       string
	Currency   format.Currency
	Active     string
	Categories []string
	Items      []content.Service
}

// BuildServicesView selects the services of category.
func BuildServicesView(lang string, cur format.Currency, cat *content.Catalog, category string) ServicesView {
	return ServicesView{
		Lang:       lang,
		Currency:   cur,
		Active:     content.ServiceCategory(category),
		Categories: content.ServiceCategories,
		Items:      cat.ServicesByCategory(category),
	}
}

// PortfolioView is the filtered gallery.
type PortfolioView struct {
	Lang       string
	Active     string
	Categories []string
	Items      []content.PortfolioItem
}

// BuildPortfolioView selects the portfolio items of category.
func BuildPortfolioView(lang string, cat *content.Catalog, category string) PortfolioView {
	return PortfolioView{
		Lang:       lang,
		Active:     content.PortfolioCategory(category),
		Categories: append([]string{content.PortfolioAll}, content.PortfolioCategories...),
		Items:      cat.PortfolioByCategory(category),
	}
}

// BookingView renders the booking form in its current state.
type BookingView struct {
	Lang      string
	Currency  format.Currency
	State     string
	Form      booking.Form
	Errors    booking.FieldErrors
	Failed    bool
	LeadID    string
	CSRFToken string
	Services  []content.Service
	Packages  []content.Package
	TimeSlots []string
}

// Submitted reports whether the success panel replaces the form.
func (b BookingView) Submitted() bool { return b.State == submission.Submitted.String() }

// Submitting reports whether a dispatch is in flight.
func (b BookingView) Submitting() bool { return b.State == submission.Submitting.String() }

// BuildBookingView maps a controller snapshot onto the form view.
func BuildBookingView(lang string, cur format.Currency, snap submission.Snapshot, cat *content.Catalog, csrf string) BookingView {
	return BookingView{
		Lang:      lang,
		Currency:  cur,
		State:     snap.State.String(),
		Form:      snap.Form,
		Errors:    snap.FieldErrors,
		Failed:    snap.Failed,
		LeadID:    snap.LeadID,
		CSRFToken: csrf,
		Services:  cat.Services,
		Packages:  cat.Packages,
		TimeSlots: slices.Clone(booking.TimeSlots),
	}
}

// Preselect fills empty service and package choices from catalog ids, used when a
// card links to the form.
func (b *BookingView) Preselect(cat *content.Catalog, serviceID, packageID string) {
	if b.Form.Service == "" {
		if svc, ok := cat.Service(serviceID); ok {
			b.Form.Service = svc.Title
		}
	}
	if b.Form.Package == "" {
		if pkg, ok := cat.Package(packageID); ok {
			b.Form.Package = pkg.Title
		}
	}
}

// CarouselView renders one carousel and its controls.
type CarouselView struct {
	Lang       string
	Name       string
	State      carousel.State
	Slides     []content.HeroSlide
	Reviews    []content.Testimonial
	IntervalMS int64
	CSRFToken  string
}

// Current returns the visible slide.
func (c CarouselView) Current() content.HeroSlide {
	if c.State.Index < 0 || c.State.Index >= len(c.Slides) {
		return content.HeroSlide{}
	}
	return c.Slides[c.State.Index]
}

// CurrentReview returns the visible testimonial.
func (c CarouselView) CurrentReview() content.Testimonial {
	if c.State.Index < 0 || c.State.Index >= len(c.Reviews) {
		return content.Testimonial{}
	}
	return c.Reviews[c.State.Index]
}

// Dots returns one entry per slide for the indicator row.
func (c CarouselView) Dots() []int {
	out := make([]int, c.State.Count)
	for i := range out {
		out[i] = i
	}
	return out
}
