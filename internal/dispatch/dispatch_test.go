package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"primedetail.kg/detail-web/internal/booking"
)

type capture struct {
	mu      sync.Mutex
	calls   int32
	bodies  [][]byte
	headers []http.Header
}

func newEndpoint(t *testing.T, status int, c *capture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		atomic.AddInt32(&c.calls, 1)
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.headers = append(c.headers, r.Header.Clone())
		c.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte("upstream says hi"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sampleLead() Lead {
	return Lead{Request: booking.Request{Name: "Jo", Phone: "+15551234567", CarModel: "Camry"}}
}

func TestDispatchWithZeroTargetsSucceedsWithoutNetwork(t *testing.T) {
	var transportCalls int32
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&transportCalls, 1)
		return nil, errors.New("unexpected network call")
	})}
	d := New(Config{}, WithHTTPClient(client))

	report, err := d.Dispatch(context.Background(), sampleLead())
	require.NoError(t, err)
	require.Zero(t, atomic.LoadInt32(&transportCalls))
	require.Len(t, report.Outcomes, 2)
	for _, o := range report.Outcomes {
		require.Equal(t, StatusSkipped, o.Status)
	}
	require.NotEmpty(t, report.LeadID)
}

func TestDispatchRelayFailsWebhookSucceeds(t *testing.T) {
	var relayCap, hookCap capture
	relay := newEndpoint(t, http.StatusInternalServerError, &relayCap)
	hook := newEndpoint(t, http.StatusOK, &hookCap)

	d := New(Config{RelayEndpoint: relay.URL, WebhookEndpoint: hook.URL})
	report, err := d.Dispatch(context.Background(), sampleLead())

	require.ErrorIs(t, err, ErrDispatchFailed)
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	require.Equal(t, report, derr.Report)
	require.EqualValues(t, 1, atomic.LoadInt32(&relayCap.calls))
	require.EqualValues(t, 1, atomic.LoadInt32(&hookCap.calls))

	require.Equal(t, StatusFailed, report.Outcomes[0].Status)
	require.Equal(t, http.StatusInternalServerError, report.Outcomes[0].StatusCode)
	require.Contains(t, report.Outcomes[0].Reason, "upstream says hi")
	require.Equal(t, StatusDelivered, report.Outcomes[1].Status)
}

func TestDispatchRelaySucceedsWebhookFails(t *testing.T) {
	var relayCap, hookCap capture
	relay := newEndpoint(t, http.StatusOK, &relayCap)
	hook := newEndpoint(t, http.StatusBadRequest, &hookCap)

	d := New(Config{RelayEndpoint: relay.URL, WebhookEndpoint: hook.URL})
	report, err := d.Dispatch(context.Background(), sampleLead())

	require.ErrorIs(t, err, ErrDispatchFailed)
	require.Equal(t, StatusDelivered, report.Outcomes[0].Status)
	require.Equal(t, StatusFailed, report.Outcomes[1].Status)
	require.Len(t, report.Failed(), 1)
	require.Equal(t, 1, report.Delivered())
	require.EqualValues(t, 1, atomic.LoadInt32(&relayCap.calls))
}

func TestDispatchTransportErrorStillAttemptsOtherTarget(t *testing.T) {
	var hookCap capture
	hook := newEndpoint(t, http.StatusOK, &hookCap)

	d := New(Config{RelayEndpoint: "http://127.0.0.1:1/unreachable", WebhookEndpoint: hook.URL})
	report, err := d.Dispatch(context.Background(), sampleLead())

	require.ErrorIs(t, err, ErrDispatchFailed)
	require.Equal(t, StatusFailed, report.Outcomes[0].Status)
	require.Zero(t, report.Outcomes[0].StatusCode)
	require.EqualValues(t, 1, atomic.LoadInt32(&hookCap.calls))
}

func TestDispatchRelayPayloadAndHeaders(t *testing.T) {
	var relayCap capture
	relay := newEndpoint(t, http.StatusOK, &relayCap)

	d := New(Config{RelayEndpoint: relay.URL}, WithIDGenerator(func() string { return "01TESTLEAD" }))
	lead := sampleLead()
	lead.Source = "web:en"
	report, err := d.Dispatch(context.Background(), lead)
	require.NoError(t, err)
	require.Equal(t, "01TESTLEAD", report.LeadID)
	require.Equal(t, StatusSkipped, report.Outcomes[1].Status)

	require.Len(t, relayCap.bodies, 1)
	var body map[string]any
	require.NoError(t, json.Unmarshal(relayCap.bodies[0], &body))
	require.Equal(t, map[string]any{"name": "Jo", "phone": "+15551234567", "carModel": "Camry"}, body)
	require.Equal(t, "01TESTLEAD", relayCap.headers[0].Get("X-Lead-ID"))
	require.Equal(t, "web:en", relayCap.headers[0].Get("X-Lead-Source"))
	require.Equal(t, "application/json", relayCap.headers[0].Get("Content-Type"))
}

func TestDispatchWebhookPayload(t *testing.T) {
	var hookCap capture
	hook := newEndpoint(t, http.StatusOK, &hookCap)

	d := New(Config{WebhookEndpoint: hook.URL})
	lead := sampleLead()
	lead.Request.Comment = "scratch on door<rear left> & <b>hood</b>"
	_, err := d.Dispatch(context.Background(), lead)
	require.NoError(t, err)

	var body webhookPayload
	require.NoError(t, json.Unmarshal(hookCap.bodies[0], &body))
	require.Equal(t, "HTML", body.ParseMode)
	require.Contains(t, body.Text, "🚗 New Detailing Request")
	require.Contains(t, body.Text, "👤 Name: Jo")
	require.Contains(t, body.Text, "🚙 Car: Camry")
	require.Contains(t, body.Text, "💬 Comment: scratch on door&lt;rear left&gt; &amp; &lt;b&gt;hood&lt;/b&gt;")
	require.NotContains(t, body.Text, "Package")
}

func TestDispatchLogsOneLinePerOutcome(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	d := New(Config{}, WithLogger(zap.New(core)))

	report, err := d.Dispatch(context.Background(), sampleLead())
	require.NoError(t, err)

	entries := logs.FilterMessage("lead dispatch outcome").All()
	require.Len(t, entries, 2)
	require.Equal(t, report.LeadID, entries[0].ContextMap()["lead_id"])
}

func TestDispatchRecoversTransportPanic(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		panic("transport exploded")
	})}
	d := New(Config{RelayEndpoint: "http://relay.invalid"}, WithHTTPClient(client))

	report, err := d.Dispatch(context.Background(), sampleLead())
	require.ErrorIs(t, err, ErrDispatchFailed)
	require.Contains(t, report.Outcomes[0].Reason, "panic")
}

func TestFormatMessageUsesLabels(t *testing.T) {
	labels := Labels{
		Heading: "Новая заявка на детейлинг",
		Name:    "Имя",
		Phone:   "Телефон",
		Car:     "Автомобиль",
		Service: "Услуга",
		Package: "Пакет",
		Date:    "Дата",
		Time:    "Время",
		Comment: "Комментарий",
	}
	msg := FormatMessage(booking.Request{Name: "Айбек", Phone: "+996555123456", PreferredTime: "10:00"}, labels)
	require.Equal(t, "🚗 Новая заявка на детейлинг\n\n👤 Имя: Айбек\n📞 Телефон: +996555123456\n⏰ Время: 10:00", msg)
}

func TestFormatMessageKeepsAngleBracketText(t *testing.T) {
	msg := FormatMessage(booking.Request{
		Name:     "Jo <Joanna>",
		Phone:    "+15551234567",
		CarModel: "Ford F-150 >= 2020",
		Comment:  "scratch on door<rear left> & hood",
	}, Labels{})
	require.Contains(t, msg, "👤 Name: Jo &lt;Joanna&gt;")
	require.Contains(t, msg, "🚙 Car: Ford F-150 &gt;= 2020")
	require.Contains(t, msg, "💬 Comment: scratch on door&lt;rear left&gt; &amp; hood")
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
