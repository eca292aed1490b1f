package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"primedetail.kg/detail-web/internal/httpx"
)

const (
	// CSRFCookieName is readable by scripts so htmx can echo it in a header.
	CSRFCookieName = "csrf_token"
	// CSRFHeader carries the token on script-driven requests.
	CSRFHeader = "X-CSRF-Token"
	// CSRFFormField carries the token on plain form posts.
	CSRFFormField = "csrf_token"
)

// CSRF ties a token to the session and verifies it on unsafe methods, taken from
// the X-CSRF-Token header or the csrf_token form field.
func (s *Sessions) CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sd := GetSession(r)
		token := sd.CSRFToken
		if token == "" {
			token = newToken()
			sd.CSRFToken = token
			sd.MarkDirty()
		}
		if c, err := r.Cookie(CSRFCookieName); err != nil || c.Value != token {
			http.SetCookie(w, &http.Cookie{
				Name:     CSRFCookieName,
				Value:    token,
				Path:     "/",
				Secure:   s.secure,
				SameSite: http.SameSiteLaxMode,
				Expires:  time.Now().Add(24 * time.Hour),
			})
		}

		if !isSafeMethod(r.Method) && !bearer(r) {
			got := r.Header.Get(CSRFHeader)
			if got == "" {
				got = r.PostFormValue(CSRFFormField)
			}
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, r, httpx.NewError("csrf_invalid", "invalid CSRF token", http.StatusForbidden))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// CSRFToken returns the token templates embed in forms.
func CSRFToken(r *http.Request) string {
	return GetSession(r).CSRFToken
}

// programmatic clients sending Authorization Bearer are not browsers
func bearer(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return auth != "" && strings.HasPrefix(strings.ToLower(auth), "bearer ")
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
