package middleware

import "net/http"

// hookWriter runs before once, right before the header is first written.
type hookWriter struct {
	http.ResponseWriter
	before func(http.ResponseWriter)
	wrote  bool
}

func newHookWriter(w http.ResponseWriter, before func(http.ResponseWriter)) *hookWriter {
	return &hookWriter{ResponseWriter: w, before: before}
}

func (h *hookWriter) fire() {
	if h.wrote {
		return
	}
	h.wrote = true
	if h.before != nil {
		h.before(h.ResponseWriter)
	}
}

func (h *hookWriter) WriteHeader(status int) {
	h.fire()
	h.ResponseWriter.WriteHeader(status)
}

func (h *hookWriter) Write(b []byte) (int, error) {
	h.fire()
	return h.ResponseWriter.Write(b)
}

func (h *hookWriter) Flush() {
	h.fire()
	if f, ok := h.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *hookWriter) Unwrap() http.ResponseWriter { return h.ResponseWriter }
