package httpserver

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"primedetail.kg/detail-web/internal/brand"
	"primedetail.kg/detail-web/internal/content"
	"primedetail.kg/detail-web/internal/handlers"
	mw "primedetail.kg/detail-web/internal/middleware"
	"primedetail.kg/detail-web/internal/nav"
	"primedetail.kg/detail-web/internal/observability"
	"primedetail.kg/detail-web/internal/seo"
)

// site is the per-request brand context.
type site struct {
	lang    string
	variant brand.Variant
	catalog *content.Catalog
}

func (s *Server) site(r *http.Request) (site, error) {
	lang := mw.Lang(r)
	v := s.brands.ForLocale(lang)
	cat, err := s.content.Catalog(v.ID)
	if err != nil {
		return site{}, err
	}
	return site{lang: lang, variant: v, catalog: cat}, nil
}

func (s *Server) layout(r *http.Request, st site, head *seo.Head) handlers.Layout {
	l := handlers.BuildLayout(st.lang, r.URL.Path, st.variant, head, s.bundle.Supported())
	l.Analytics = s.analytics
	l.CSRFToken = mw.CSRFToken(r)
	l.Contacts = handlers.BuildContactLinks(st.variant, s.bundle.T(st.lang, "contacts.whatsapp_text"))
	return l
}

func (s *Server) meta(st site, path, title, description string) seo.Meta {
	variants := s.brands.All()
	fallback := s.brands.ForLocale(s.bundle.Fallback())
	return seo.ForVariant(st.variant, path, title, description).WithAlternates(path, fallback, variants...)
}

// HomeHandler renders the landing page.
func (s *Server) HomeHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.site(r)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	rating, reviews := st.catalog.AverageRating()

	faq := make([]seo.QA, 0, len(st.catalog.FAQ))
	for _, f := range st.catalog.FAQ {
		faq = append(faq, seo.QA{Question: f.Question, Answer: f.Answer})
	}
	head := seo.NewHead(s.meta(st, "/", "", "")).
		AddSchema(seo.LocalBusiness(st.variant, seo.ReviewAggregate(rating, reviews))).
		AddSchema(seo.WebSite(st.variant)).
		AddSchema(seo.FAQPage(faq))

	hero := s.carouselView(r, st, heroCarousel)
	reviewsView := s.carouselView(r, st, reviewsCarousel)
	ctrl, err := s.bookingController(r, st)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	q := r.URL.Query()
	form := handlers.BuildBookingView(st.lang, st.variant.Currency, ctrl.Snapshot(), st.catalog, mw.CSRFToken(r))
	form.Preselect(st.catalog, q.Get("service"), q.Get("package"))

	vm := handlers.HomeData{
		Layout:      s.layout(r, st, head),
		Catalog:     st.catalog,
		Hero:        hero,
		Reviews:     reviewsView,
		Services:    handlers.BuildServicesView(st.lang, st.variant.Currency, st.catalog, q.Get("category")),
		Portfolio:   handlers.BuildPortfolioView(st.lang, st.catalog, q.Get("portfolio")),
		Booking:     form,
		Rating:      rating,
		ReviewCount: reviews,
	}
	s.render.page(w, r, http.StatusOK, "home", vm)
}

// PolicyHandler renders the privacy policy with a back link to where the visitor came from.
func (s *Server) PolicyHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.site(r)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	page, err := s.content.Page(st.variant.ID, "policy")
	if errors.Is(err, content.ErrNotFound) {
		s.NotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	title := page.SEO.Title
	if title == "" {
		title = page.Title + " | " + st.variant.Name
	}
	crumbs := nav.Breadcrumbs("/policy")
	items := make([]seo.BreadcrumbItem, 0, len(crumbs))
	for _, c := range crumbs {
		items = append(items, seo.BreadcrumbItem{Name: s.bundle.T(st.lang, c.LabelKey), Item: st.variant.URL(c.Href)})
	}
	head := seo.NewHead(s.meta(st, "/policy", title, page.SEO.Description)).
		AddSchema(seo.BreadcrumbList(items))

	vm := handlers.PolicyData{
		Layout:   s.layout(r, st, head),
		Page:     page,
		BackHref: nav.BackHref(r.Referer(), r.Host),
	}
	s.render.page(w, r, http.StatusOK, "policy", vm)
}

// NotFound renders a minimal localized 404.
func (s *Server) NotFound(w http.ResponseWriter, r *http.Request) {
	lang := mw.Lang(r)
	http.Error(w, s.bundle.T(lang, "errors.not_found"), http.StatusNotFound)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	observability.FromContext(r.Context()).Error("request failed", zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
