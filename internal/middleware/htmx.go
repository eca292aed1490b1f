package middleware

import (
	"net/http"
)

// HTMX flags requests that expect a fragment swap. Boosted navigation and history
// restores want whole pages, so they are not flagged. Responses vary on HX-Request
// because fragment routes answer plain requests differently.
func HTMX(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "HX-Request")
		next.ServeHTTP(w, r.WithContext(WithHTMX(r.Context(), wantsFragment(r))))
	})
}

func wantsFragment(r *http.Request) bool {
	h := r.Header
	return h.Get("HX-Request") == "true" &&
		h.Get("HX-Boosted") != "true" &&
		h.Get("HX-History-Restore-Request") != "true"
}
