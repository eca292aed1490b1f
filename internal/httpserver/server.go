// Package httpserver assembles the router, middleware stack and page handlers.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"primedetail.kg/detail-web/internal/brand"
	"primedetail.kg/detail-web/internal/carousel"
	"primedetail.kg/detail-web/internal/config"
	"primedetail.kg/detail-web/internal/content"
	"primedetail.kg/detail-web/internal/dispatch"
	"primedetail.kg/detail-web/internal/handlers"
	"primedetail.kg/detail-web/internal/i18n"
	mw "primedetail.kg/detail-web/internal/middleware"
	"primedetail.kg/detail-web/internal/observability"
	"primedetail.kg/detail-web/internal/sessionstore"
	"primedetail.kg/detail-web/internal/submission"
)

// Config holds the runtime dependencies of the server. Only App is required.
type Config struct {
	App    config.Config
	Logger *zap.Logger
	// Dispatcher overrides the HTTP dispatcher built from App.Dispatch.
	Dispatcher submission.Dispatcher
	// NewTicker overrides the carousel ticker factory.
	NewTicker func(time.Duration) carousel.Ticker
}

// Server serves the marketing site.
type Server struct {
	cfg        config.Config
	logger     *zap.Logger
	bundle     *i18n.Bundle
	brands     *brand.Registry
	content    *content.Store
	render     *renderer
	sessions   *mw.Sessions
	dispatcher submission.Dispatcher
	limiter    *mw.ClientLimiter
	analytics  handlers.Analytics
	newTicker  func(time.Duration) carousel.Ticker

	bookings  *sessionstore.Store[*submission.Controller]
	carousels *sessionstore.Store[*carousel.Controller]

	router chi.Router
}

// New loads locales, brands, content and templates and wires the router.
func New(cfg Config) (*Server, error) {
	app := cfg.App
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bundle, err := i18n.Load(app.Paths.Locales, app.Site.DefaultLocale, app.Site.Locales)
	if err != nil {
		return nil, fmt.Errorf("load locales: %w", err)
	}
	brands, err := brand.Load(filepath.Join(app.Paths.Content, "brands"), app.Site.DefaultLocale)
	if err != nil {
		return nil, fmt.Errorf("load brands: %w", err)
	}
	ttl := content.DefaultCacheTTL
	if app.Site.DevMode {
		ttl = 0
	}
	store := content.NewStore(app.Paths.Content, content.WithCacheTTL(ttl))
	for _, v := range brands.All() {
		if _, err := store.Catalog(v.ID); err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", v.ID, err)
		}
	}
	render, err := newRenderer(app.Paths.Templates, app.Site.DevMode, bundle)
	if err != nil {
		return nil, err
	}

	d := cfg.Dispatcher
	if d == nil {
		d = dispatch.New(dispatch.Config{
			RelayEndpoint:   app.Dispatch.RelayEndpoint,
			WebhookEndpoint: app.Dispatch.WebhookEndpoint,
			Timeout:         app.Dispatch.Timeout,
		}, dispatch.WithLogger(logger.Named("dispatch")))
	}

	newTicker := cfg.NewTicker
	if newTicker == nil {
		newTicker = carousel.NewRealTicker
	}

	s := &Server{
		cfg:        app,
		logger:     logger,
		bundle:     bundle,
		brands:     brands,
		content:    store,
		render:     render,
		sessions:   mw.NewSessions(app.Session.SigningKey, app.Site.Production(), logger),
		dispatcher: d,
		limiter:    mw.NewClientLimiter(app.RateLimit.BookingPerMinute, app.RateLimit.BookingBurst),
		analytics:  handlers.AnalyticsFrom(app.Analytics),
		newTicker:  newTicker,
		bookings:   sessionstore.New[*submission.Controller](app.Session.IdleTTL, sessionstore.WithLogger(logger)),
		carousels:  sessionstore.New[*carousel.Controller](app.Session.IdleTTL, sessionstore.WithLogger(logger)),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// RealIP trusts X-Forwarded-For; deploy behind a proxy that overwrites it.
	r.Use(chimw.RealIP)
	r.Use(observability.TraceMiddleware())
	r.Use(observability.InjectLoggerMiddleware(s.logger))
	r.Use(observability.RequestLoggerMiddleware())
	r.Use(observability.RecoveryMiddleware(s.logger))
	r.Use(chimw.Compress(5))
	if t := s.cfg.Server.RequestTimeout; t > 0 {
		r.Use(chimw.Timeout(t))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/assets/*", mw.AssetsWithCache("/assets", filepath.Join(s.cfg.Paths.Public, "assets")))

	r.Group(func(r chi.Router) {
		r.Use(mw.HTMX)
		r.Use(s.sessions.Middleware)
		r.Use(mw.Locale(s.bundle))
		r.Use(s.sessions.CSRF)
		r.Use(mw.VaryLocale)

		r.Get("/", s.HomeHandler)
		r.Get("/policy", s.PolicyHandler)
		r.Get("/fragments/services", s.ServicesFragment)
		r.Get("/fragments/portfolio", s.PortfolioFragment)

		r.Route("/carousel/{name}", func(r chi.Router) {
			r.Get("/", s.CarouselFragment)
			r.Post("/next", s.CarouselNext)
			r.Post("/prev", s.CarouselPrev)
			r.Post("/autoplay", s.CarouselAutoplay)
			r.Post("/goto/{index}", s.CarouselGoTo)
		})

		r.With(mw.RateLimit(s.limiter)).Post("/booking", s.BookingSubmit)
		r.Post("/booking/reset", s.BookingReset)
		r.With(mw.RateLimit(s.limiter)).Post("/api/leads", s.LeadsAPI)
	})

	r.NotFound(s.NotFound)
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// HTTPServer wraps the handler with the configured timeouts.
func (s *Server) HTTPServer() *http.Server {
	sc := s.cfg.Server
	return &http.Server{
		Addr:              sc.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: sc.ReadHeaderTimeout,
		ReadTimeout:       sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
		IdleTimeout:       sc.IdleTimeout,
	}
}

// Run evicts idle per-session controllers until ctx is done.
func (s *Server) Run(ctx context.Context) {
	every := s.cfg.Session.SweepInterval
	done := make(chan struct{})
	go func() {
		s.carousels.Run(ctx, every)
		close(done)
	}()
	s.bookings.Run(ctx, every)
	<-done
}

// Close stops every carousel loop.
func (s *Server) Close() error {
	return errors.Join(s.carousels.Close(), s.bookings.Close())
}
