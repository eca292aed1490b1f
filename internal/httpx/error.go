package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"primedetail.kg/detail-web/internal/requestctx"
)

// Error is the JSON error envelope of the lead endpoints. Besides the code and message
// it can name the lead it concerns, the invalid booking fields and the destinations
// that refused delivery.
type Error struct {
	Code          string
	Message       string
	Status        int
	LeadID        string
	Fields        map[string]string
	FailedTargets []string
	RetryAfter    time.Duration
}

// NewError constructs an envelope; a zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

func (e Error) Error() string {
	if e.LeadID != "" {
		return e.Code + ": " + e.Message + " (lead " + e.LeadID + ")"
	}
	return e.Code + ": " + e.Message
}

// WithLeadID ties the error to a dispatched lead.
func (e Error) WithLeadID(id string) Error {
	e.LeadID = sanitize(id, 64)
	return e
}

// WithFields lists invalid fields and their codes.
func (e Error) WithFields(fields map[string]string) Error {
	if len(fields) == 0 {
		return e
	}
	e.Fields = make(map[string]string, len(fields))
	for k, v := range fields {
		e.Fields[k] = v
	}
	return e
}

// WithFailedTargets names the destinations that did not accept the lead.
func (e Error) WithFailedTargets(kinds ...string) Error {
	e.FailedTargets = append([]string(nil), kinds...)
	sort.Strings(e.FailedTargets)
	return e
}

// WithRetryAfter asks the client to wait before retrying.
func (e Error) WithRetryAfter(d time.Duration) Error {
	e.RetryAfter = d
	return e
}

// WriteError writes err with the request and trace ids of ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if id := sanitize(middleware.GetReqID(ctx), 80); id != "" {
		payload["request_id"] = id
	}
	if id := sanitize(requestctx.TraceID(ctx), 64); id != "" {
		payload["trace_id"] = id
	}
	if err.LeadID != "" {
		payload["leadId"] = err.LeadID
	}
	if len(err.Fields) > 0 {
		payload["fields"] = err.Fields
	}
	if len(err.FailedTargets) > 0 {
		payload["failedTargets"] = err.FailedTargets
	}
	if err.RetryAfter > 0 {
		secs := int((err.RetryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		payload["retryAfter"] = secs
	}

	WriteJSON(w, status, payload)
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func sanitize(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
