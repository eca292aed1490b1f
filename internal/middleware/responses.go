package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"primedetail.kg/detail-web/internal/httpx"
)

// writeError answers htmx and JSON callers with the JSON envelope and everyone else
// with plain text.
func writeError(w http.ResponseWriter, r *http.Request, err httpx.Error) {
	if IsHTMX(r.Context()) || strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json") {
		httpx.WriteError(r.Context(), w, err)
		return
	}
	if err.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int((err.RetryAfter+time.Second-1)/time.Second)))
	}
	http.Error(w, err.Message, err.Status)
}
