package testutil

import (
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"primedetail.kg/detail-web/internal/carousel"
	"primedetail.kg/detail-web/internal/config"
	"primedetail.kg/detail-web/internal/httpserver"
	"primedetail.kg/detail-web/internal/submission"
)

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*serverOptions)

type serverOptions struct {
	env        map[string]string
	dispatcher submission.Dispatcher
	newTicker  func(time.Duration) carousel.Ticker
}

// WithEnv overrides configuration keys, e.g. DETAIL_WEB_BOOKING_PER_MINUTE.
func WithEnv(key, value string) ServerOption {
	return func(o *serverOptions) {
		o.env[key] = value
	}
}

// WithDispatcher replaces the HTTP dispatcher.
func WithDispatcher(d submission.Dispatcher) ServerOption {
	return func(o *serverOptions) {
		o.dispatcher = d
	}
}

// WithTicker replaces the carousel ticker factory.
func WithTicker(fn func(time.Duration) carousel.Ticker) ServerOption {
	return func(o *serverOptions) {
		o.newTicker = fn
	}
}

// RepoRoot returns the module root, where templates, locales and content live.
func RepoRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..")
}

// NewServer constructs an httptest server running the site with the shipped templates
// and content. By default leads go to a recording Dispatcher and carousels never tick.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()

	root := RepoRoot()
	o := serverOptions{
		env: map[string]string{
			"DETAIL_WEB_TEMPLATES_DIR":       filepath.Join(root, "templates"),
			"DETAIL_WEB_PUBLIC_DIR":          filepath.Join(root, "public"),
			"DETAIL_WEB_LOCALES_DIR":         filepath.Join(root, "locales"),
			"DETAIL_WEB_CONTENT_DIR":         filepath.Join(root, "content"),
			"DETAIL_WEB_SESSION_SIGNING_KEY": "test-signing-key-0123456789abcdef",
			"DETAIL_WEB_BOOKING_PER_MINUTE":  "600",
			"DETAIL_WEB_BOOKING_BURST":       "100",
		},
		dispatcher: &Dispatcher{},
		newTicker:  func(time.Duration) carousel.Ticker { return StoppedTicker() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load(config.WithEnvFile(""), config.WithoutSystemEnv(), config.WithEnvMap(o.env))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	srv, err := httpserver.New(httpserver.Config{
		App:        cfg,
		Dispatcher: o.dispatcher,
		NewTicker:  o.newTicker,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return ts
}

type stoppedTicker struct{ c chan time.Time }

func (s stoppedTicker) C() <-chan time.Time { return s.c }
func (s stoppedTicker) Stop() {}

// StoppedTicker returns a carousel ticker that never fires.
func StoppedTicker() carousel.Ticker {
	return stoppedTicker{c: make(chan time.Time)}
}
