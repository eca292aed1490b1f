package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"primedetail.kg/detail-web/internal/booking"
	"primedetail.kg/detail-web/internal/dispatch"
	"primedetail.kg/detail-web/internal/handlers"
	"primedetail.kg/detail-web/internal/httpx"
	mw "primedetail.kg/detail-web/internal/middleware"
	"primedetail.kg/detail-web/internal/observability"
	"primedetail.kg/detail-web/internal/submission"
)

const maxLeadBody = 64 << 10

func (s *Server) leadLabels(lang string) dispatch.Labels {
	t := func(key string) string { return s.bundle.T(lang, "lead."+key) }
	return dispatch.Labels{
		Heading: t("heading"),
		Name:    t("name"),
		Phone:   t("phone"),
		Car:     t("car"),
		Service: t("service"),
		Package: t("package"),
		Date:    t("date"),
		Time:    t("time"),
		Comment: t("comment"),
	}
}

// bookingController returns the visitor's form controller for the current brand.
func (s *Server) bookingController(r *http.Request, st site) (*submission.Controller, error) {
	key := mw.GetSession(r).ID + "|" + st.variant.ID
	return s.bookings.Get(key, func() (*submission.Controller, error) {
		return submission.New(s.dispatcher, submission.Options{
			PhoneFormat: st.variant.PhonePlan,
			Labels:      s.leadLabels(st.lang),
			Source:      st.variant.ID + ":web",
		}), nil
	})
}

// BookingSubmit validates and dispatches the booking form. htmx callers get the
// re-rendered form; plain form posts are redirected back to the form section.
func (s *Server) BookingSubmit(w http.ResponseWriter, r *http.Request) {
	st, err := s.site(r)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	c, err := s.bookingController(r, st)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	snap, err := c.Submit(r.Context(), booking.ParseForm(r.PostForm))
	logger := observability.FromContext(r.Context())
	switch {
	case err == nil:
		logger.Info("booking submitted", zap.String("lead_id", snap.LeadID))
		w.Header().Set("HX-Trigger", "booking:submitted")
	case errors.Is(err, submission.ErrInvalid):
		logger.Debug("booking rejected", zap.Strings("fields", snap.FieldErrors.Fields()))
	case errors.Is(err, dispatch.ErrDispatchFailed):
		w.Header().Set("HX-Trigger", "booking:failed")
	case errors.Is(err, submission.ErrInFlight), errors.Is(err, submission.ErrAlreadySubmitted):
		logger.Debug("booking submit ignored", zap.Error(err))
	default:
		s.serverError(w, r, err)
		return
	}
	s.respondBooking(w, r, st, snap)
}

// BookingReset returns a submitted form to its empty state.
func (s *Server) BookingReset(w http.ResponseWriter, r *http.Request) {
	st, err := s.site(r)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	c, err := s.bookingController(r, st)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	c.Reset()
	s.respondBooking(w, r, st, c.Snapshot())
}

func (s *Server) respondBooking(w http.ResponseWriter, r *http.Request, st site, snap submission.Snapshot) {
	if !mw.IsHTMX(r.Context()) {
		http.Redirect(w, r, "/#booking", http.StatusSeeOther)
		return
	}
	vm := handlers.BuildBookingView(st.lang, st.variant.Currency, snap, st.catalog, mw.CSRFToken(r))
	s.render.fragment(w, r, http.StatusOK, "booking", vm)
}

type leadAccepted struct {
	Status    string `json:"status"`
	LeadID    string `json:"leadId"`
	Delivered int    `json:"delivered"`
}

// LeadsAPI accepts a JSON booking: 400 with field errors, 502 when delivery failed,
// 202 once every configured destination accepted it.
func (s *Server) LeadsAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := s.site(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal", "content unavailable", http.StatusInternalServerError))
		return
	}
	var form booking.Form
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLeadBody))
	if err := dec.Decode(&form); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_json", "request body must be a JSON object", http.StatusBadRequest))
		return
	}
	req, fieldErrs := booking.Validate(form)
	if len(fieldErrs) > 0 {
		fields := make(map[string]string, len(fieldErrs))
		for f, code := range fieldErrs {
			fields[f] = string(code)
		}
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "some fields are invalid", http.StatusBadRequest).
			WithFields(fields))
		return
	}

	lead := dispatch.Lead{
		Request: req.WithPhone(st.variant.PhonePlan.Normalize(req.Phone)),
		Labels:  s.leadLabels(st.lang),
		Source:  st.variant.ID + ":api",
	}
	report, err := s.dispatcher.Dispatch(context.WithoutCancel(ctx), lead)
	if err != nil {
		observability.FromContext(ctx).Warn("lead dispatch failed", zap.String("lead_id", report.LeadID), zap.Error(err))
		failed := make([]string, 0, len(report.Failed()))
		for _, o := range report.Failed() {
			failed = append(failed, string(o.Kind))
		}
		httpx.WriteError(ctx, w, httpx.NewError("dispatch_failed", "the request could not be delivered, please retry", http.StatusBadGateway).
			WithLeadID(report.LeadID).
			WithFailedTargets(failed...))
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, leadAccepted{Status: "accepted", LeadID: report.LeadID, Delivered: report.Delivered()})
}
