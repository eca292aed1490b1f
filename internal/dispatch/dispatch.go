// Package dispatch delivers validated booking leads to the configured lead relay and
// chat webhook.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"primedetail.kg/detail-web/internal/booking"
	"primedetail.kg/detail-web/internal/requestctx"
)

const (
	instrumentationName = "primedetail.kg/detail-web/internal/dispatch"
	leadIDHeader        = "X-Lead-ID"
	leadSourceHeader    = "X-Lead-Source"
	maxReasonBytes      = 256
)

// Kind names a destination channel.
type Kind string

const (
	KindRelay   Kind = "relay"
	KindWebhook Kind = "webhook"
)

// Status is the per-target delivery result.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// ErrDispatchFailed matches every *DispatchError via errors.Is.
var ErrDispatchFailed = errors.New("dispatch: lead delivery failed")

// Target is one destination. An empty endpoint means the channel is not configured.
type Target struct {
	Kind     Kind
	Endpoint string
}

// Configured reports whether the target will be attempted.
func (t Target) Configured() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// Outcome records what happened for one target.
type Outcome struct {
	Kind       Kind
	Status     Status
	StatusCode int
	Reason     string
	Duration   time.Duration
}

// Report is the full result of one dispatch. Outcomes are ordered relay, webhook.
type Report struct {
	LeadID   string
	Outcomes []Outcome
}

// Failed returns the outcomes of configured targets that did not accept the lead.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Delivered counts targets that accepted the lead.
func (r Report) Delivered() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusDelivered {
			n++
		}
	}
	return n
}

// DispatchError is returned when at least one configured target failed.
type DispatchError struct {
	Report Report
}

func (e *DispatchError) Error() string {
	failed := e.Report.Failed()
	parts := make([]string, 0, len(failed))
	for _, o := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", o.Kind, o.Reason))
	}
	return fmt.Sprintf("dispatch: lead %s failed for %s", e.Report.LeadID, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrDispatchFailed.
func (e *DispatchError) Unwrap() error { return ErrDispatchFailed }

// Lead is one validated booking plus presentation metadata for the chat message.
type Lead struct {
	Request booking.Request
	Labels  Labels
	Source  string
}

// Config lists the destination endpoints. Timeout zero leaves the transport default.
type Config struct {
	RelayEndpoint   string
	WebhookEndpoint string
	Timeout         time.Duration
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for every target.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.http = c
		}
	}
}

// WithLogger sets the logger used when the request context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMeter injects a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(d *Dispatcher) {
		d.meter = m
	}
}

// WithTracer injects a custom OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithIDGenerator overrides lead id generation.
func WithIDGenerator(fn func() string) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// Dispatcher fans one lead out to every configured target.
type Dispatcher struct {
	targets  []Target
	http     *http.Client
	logger   *zap.Logger
	tracer   trace.Tracer
	meter    metric.Meter
	outcomes metric.Int64Counter
	latency  metric.Float64Histogram
	newID    func() string
}

// New builds a Dispatcher. It never fails; metric registration errors are logged.
func New(cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		targets: []Target{
			{Kind: KindRelay, Endpoint: strings.TrimSpace(cfg.RelayEndpoint)},
			{Kind: KindWebhook, Endpoint: strings.TrimSpace(cfg.WebhookEndpoint)},
		},
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: zap.NewNop(),
		tracer: otel.Tracer(instrumentationName),
		newID:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.meter == nil {
		d.meter = otel.GetMeterProvider().Meter(instrumentationName)
	}

	var err error
	d.outcomes, err = d.meter.Int64Counter(
		"lead.dispatch.outcomes",
		metric.WithDescription("Count of lead dispatch outcomes per target"),
	)
	if err != nil {
		d.logger.Warn("dispatch: unable to register outcome metric", zap.Error(err))
	}
	d.latency, err = d.meter.Float64Histogram(
		"lead.dispatch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds of lead sends per target"),
	)
	if err != nil {
		d.logger.Warn("dispatch: unable to register latency metric", zap.Error(err))
	}
	return d
}

// Targets returns both targets, configured or not.
func (d *Dispatcher) Targets() []Target {
	out := make([]Target, len(d.targets))
	copy(out, d.targets)
	return out
}

// Dispatch sends lead to every configured target concurrently and waits for all of them.
// A failure on one target never prevents the attempt on another. With no configured
// targets it succeeds without any network call. If any configured target failed the
// returned error is a *DispatchError carrying the same report.
func (d *Dispatcher) Dispatch(ctx context.Context, lead Lead) (Report, error) {
	report := Report{
		LeadID:   d.newID(),
		Outcomes: make([]Outcome, len(d.targets)),
	}
	logger := requestctx.Logger(ctx)
	if logger == requestctx.NoopLogger() {
		logger = d.logger
	}
	logger = logger.With(zap.String("lead_id", report.LeadID))

	var g errgroup.Group
	for i, target := range d.targets {
		if !target.Configured() {
			report.Outcomes[i] = Outcome{Kind: target.Kind, Status: StatusSkipped}
			continue
		}
		i, target := i, target
		g.Go(func() error {
			report.Outcomes[i] = d.send(ctx, report.LeadID, target, lead)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range report.Outcomes {
		d.record(ctx, o)
		fields := []zap.Field{
			zap.String("target", string(o.Kind)),
			zap.String("status", string(o.Status)),
		}
		if o.Status == StatusFailed {
			logger.Warn("lead dispatch outcome", append(fields, zap.String("reason", o.Reason), zap.Int("http_status", o.StatusCode))...)
			continue
		}
		logger.Info("lead dispatch outcome", append(fields, zap.Duration("duration", o.Duration))...)
	}

	if len(report.Failed()) > 0 {
		return report, &DispatchError{Report: report}
	}
	return report, nil
}

func (d *Dispatcher) send(ctx context.Context, leadID string, target Target, lead Lead) (out Outcome) {
	ctx, span := d.tracer.Start(ctx, "lead.dispatch."+string(target.Kind),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("lead.id", leadID),
			attribute.String("lead.target", string(target.Kind)),
		),
	)
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			out = Outcome{Kind: target.Kind, Status: StatusFailed, Reason: fmt.Sprintf("panic: %v", rec)}
		}
		out.Duration = time.Since(start)
		if out.Status == StatusFailed {
			span.SetStatus(codes.Error, out.Reason)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		if out.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", out.StatusCode))
		}
		span.End()
	}()

	body, err := d.payload(target.Kind, lead)
	if err != nil {
		span.RecordError(err)
		return Outcome{Kind: target.Kind, Status: StatusFailed, Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return Outcome{Kind: target.Kind, Status: StatusFailed, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(leadIDHeader, leadID)
	if lead.Source != "" {
		req.Header.Set(leadSourceHeader, lead.Source)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return Outcome{Kind: target.Kind, Status: StatusFailed, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := fmt.Sprintf("status %d", resp.StatusCode)
		if excerpt := drainError(resp.Body); excerpt != "" {
			reason += ": " + excerpt
		}
		return Outcome{Kind: target.Kind, Status: StatusFailed, StatusCode: resp.StatusCode, Reason: reason}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	return Outcome{Kind: target.Kind, Status: StatusDelivered, StatusCode: resp.StatusCode}
}

func (d *Dispatcher) payload(kind Kind, lead Lead) ([]byte, error) {
	switch kind {
	case KindRelay:
		return json.Marshal(lead.Request)
	case KindWebhook:
		return json.Marshal(webhookPayload{
			Text:      FormatMessage(lead.Request, lead.Labels),
			ParseMode: "HTML",
		})
	}
	return nil, fmt.Errorf("dispatch: unknown target kind %q", kind)
}

type webhookPayload struct {
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (d *Dispatcher) record(ctx context.Context, o Outcome) {
	attrs := metric.WithAttributes(
		attribute.String("kind", string(o.Kind)),
		attribute.String("status", string(o.Status)),
	)
	if d.outcomes != nil {
		d.outcomes.Add(ctx, 1, attrs)
	}
	if d.latency != nil && o.Status != StatusSkipped {
		d.latency.Record(ctx, float64(o.Duration)/float64(time.Millisecond), attrs)
	}
}

func drainError(r io.Reader) string {
	if r == nil {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, maxReasonBytes))
	return strings.TrimSpace(string(b))
}
