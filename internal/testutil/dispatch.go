package testutil

import (
	"context"
	"fmt"
	"sync"

	"primedetail.kg/detail-web/internal/dispatch"
)

// Dispatcher records leads instead of sending them. Set Fail to make every dispatch
// report a failed relay target.
type Dispatcher struct {
	mu    sync.Mutex
	leads []dispatch.Lead
	n     int

	Fail bool
}

// Dispatch implements submission.Dispatcher.
func (d *Dispatcher) Dispatch(_ context.Context, lead dispatch.Lead) (dispatch.Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.n++
	d.leads = append(d.leads, lead)
	report := dispatch.Report{LeadID: fmt.Sprintf("LEAD%04d", d.n)}
	if d.Fail {
		report.Outcomes = []dispatch.Outcome{
			{Kind: dispatch.KindRelay, Status: dispatch.StatusFailed, StatusCode: 503, Reason: "relay unavailable"},
			{Kind: dispatch.KindWebhook, Status: dispatch.StatusDelivered, StatusCode: 200},
		}
		return report, &dispatch.DispatchError{Report: report}
	}
	report.Outcomes = []dispatch.Outcome{
		{Kind: dispatch.KindRelay, Status: dispatch.StatusDelivered, StatusCode: 202},
		{Kind: dispatch.KindWebhook, Status: dispatch.StatusDelivered, StatusCode: 200},
	}
	return report, nil
}

// Leads returns a copy of every lead dispatched so far.
func (d *Dispatcher) Leads() []dispatch.Lead {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]dispatch.Lead, len(d.leads))
	copy(out, d.leads)
	return out
}

// SetFail toggles failure mode.
func (d *Dispatcher) SetFail(fail bool) {
	d.mu.Lock()
	d.Fail = fail
	d.mu.Unlock()
}
