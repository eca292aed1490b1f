// Package submission owns the booking form state machine around the dispatcher.
package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"primedetail.kg/detail-web/internal/booking"
	"primedetail.kg/detail-web/internal/dispatch"
	"primedetail.kg/detail-web/internal/requestctx"
)

// State of a booking form.
type State int

const (
	Idle State = iota
	Submitting
	Submitted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrInFlight is returned when a submit arrives while another is being dispatched.
	ErrInFlight = errors.New("submission: already submitting")
	// ErrAlreadySubmitted is returned when a submit arrives before Reset.
	ErrAlreadySubmitted = errors.New("submission: already submitted")
	// ErrInvalid is returned when the form fails validation.
	ErrInvalid = errors.New("submission: invalid form")
)

// Dispatcher delivers a lead.
type Dispatcher interface {
	Dispatch(ctx context.Context, lead dispatch.Lead) (dispatch.Report, error)
}

// Options parameterize a controller for one brand variant.
type Options struct {
	PhoneFormat booking.PhoneFormat
	Labels      dispatch.Labels
	Source      string
}

// Snapshot is an immutable view of the controller.
type Snapshot struct {
	State       State
	Form        booking.Form
	FieldErrors booking.FieldErrors
	// Failed is set after a dispatch failure until the next submit or reset.
	Failed bool
	LeadID string
}

// Controller serializes submits for one visitor. The zero value is not usable.
type Controller struct {
	dispatcher Dispatcher
	opts       Options

	mu        sync.Mutex
	state     State
	form      booking.Form
	fieldErrs booking.FieldErrors
	failed    bool
	leadID    string
}

// New returns an Idle controller.
func New(d Dispatcher, opts Options) *Controller {
	return &Controller{dispatcher: d, opts: opts}
}

// Submit validates form and, when valid, dispatches it. It returns ErrInFlight or
// ErrAlreadySubmitted without touching the dispatcher when the state does not allow a
// submit, ErrInvalid on validation failure, and an error matching
// dispatch.ErrDispatchFailed when delivery failed.
func (c *Controller) Submit(ctx context.Context, form booking.Form) (Snapshot, error) {
	c.mu.Lock()
	switch c.state {
	case Submitting:
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrInFlight
	case Submitted:
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrAlreadySubmitted
	}

	req, fieldErrs := booking.Validate(form)
	c.form = form
	c.failed = false
	if len(fieldErrs) > 0 {
		c.fieldErrs = fieldErrs
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrInvalid
	}
	c.fieldErrs = nil
	c.state = Submitting
	c.mu.Unlock()

	lead := dispatch.Lead{
		Request: req.WithPhone(c.opts.PhoneFormat.Normalize(req.Phone)),
		Labels:  c.opts.Labels,
		Source:  c.opts.Source,
	}
	// the visitor leaving must not abort delivery
	report, err := c.dispatch(context.WithoutCancel(ctx), lead)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.leadID = report.LeadID
	if err != nil {
		requestctx.Logger(ctx).Warn("booking dispatch failed", zap.String("lead_id", report.LeadID), zap.Error(err))
		c.state = Idle
		c.failed = true
		return c.snapshotLocked(), err
	}
	c.state = Submitted
	c.form = booking.Form{}
	return c.snapshotLocked(), nil
}

func (c *Controller) dispatch(ctx context.Context, lead dispatch.Lead) (report dispatch.Report, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v", dispatch.ErrDispatchFailed, rec)
		}
	}()
	return c.dispatcher.Dispatch(ctx, lead)
}

// Reset moves a Submitted controller back to Idle so another request can be made.
// It reports whether the state changed.
func (c *Controller) Reset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Submitted {
		return false
	}
	c.state = Idle
	c.form = booking.Form{}
	c.fieldErrs = nil
	c.failed = false
	return true
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close satisfies io.Closer for session storage. Controllers hold no resources.
func (c *Controller) Close() error { return nil }

func (c *Controller) snapshotLocked() Snapshot {
	var errs booking.FieldErrors
	if len(c.fieldErrs) > 0 {
		errs = make(booking.FieldErrors, len(c.fieldErrs))
		for k, v := range c.fieldErrs {
			errs[k] = v
		}
	}
	return Snapshot{
		State:       c.state,
		Form:        c.form,
		FieldErrors: errs,
		Failed:      c.failed,
		LeadID:      c.leadID,
	}
}
