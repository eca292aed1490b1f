package httpserver

import (
	"net/http"

	"primedetail.kg/detail-web/internal/handlers"
)

// ServicesFragment renders one category tab of the service catalog.
func (s *Server) ServicesFragment(w http.ResponseWriter, r *http.Request) {
	st, err := s.site(r)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	vm := handlers.BuildServicesView(st.lang, st.variant.Currency, st.catalog, r.URL.Query().Get("category"))
	s.render.fragment(w, r, http.StatusOK, "services", vm)
}

// PortfolioFragment renders the filtered gallery.
func (s *Server) PortfolioFragment(w http.ResponseWriter, r *http.Request) {
	st, err := s.site(r)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	vm := handlers.BuildPortfolioView(st.lang, st.catalog, r.URL.Query().Get("category"))
	s.render.fragment(w, r, http.StatusOK, "portfolio", vm)
}
