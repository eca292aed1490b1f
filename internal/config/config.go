package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultEnvironment      = "local"
	defaultReadHeader       = 10 * time.Second
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultRequestTimeout   = 30 * time.Second
	defaultCarouselInterval = 5 * time.Second
	defaultSessionIdleTTL   = 30 * time.Minute
	defaultSweepInterval    = time.Minute
	defaultBookingPerMinute = 6
	defaultBookingBurst     = 3
	defaultLogMaxSizeMB     = 50
	defaultLogMaxBackups    = 5
	defaultLogMaxAgeDays    = 14
	defaultLocale           = "ru"
)

// Config captures runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Paths     PathsConfig
	Site      SiteConfig
	Session   SessionConfig
	Dispatch  DispatchConfig
	Carousel  CarouselConfig
	RateLimit RateLimitConfig
	Analytics AnalyticsConfig
	Log       LogConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestTimeout    time.Duration
}

// Addr returns the listen address for the configured port.
func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

// PathsConfig points at on-disk assets shipped next to the binary.
type PathsConfig struct {
	Templates string
	Public    string
	Locales   string
	Content   string
}

// SiteConfig holds site-wide presentation settings.
type SiteConfig struct {
	Environment   string
	DevMode       bool
	DefaultLocale string
	Locales       []string
}

// Production reports whether the site runs in the production environment.
func (s SiteConfig) Production() bool {
	return s.Environment == "prod"
}

// SessionConfig controls the signed session cookie and in-memory per-session state.
type SessionConfig struct {
	SigningKey    string
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// DispatchConfig lists the optional lead destinations. Empty endpoints are skipped.
type DispatchConfig struct {
	RelayEndpoint   string
	WebhookEndpoint string
	Timeout         time.Duration
}

// CarouselConfig controls autoplay cadence.
type CarouselConfig struct {
	Interval time.Duration
}

// RateLimitConfig throttles booking submissions per client.
type RateLimitConfig struct {
	BookingPerMinute int
	BookingBurst     int
}

// AnalyticsConfig holds client instrumentation identifiers surfaced to templates.
type AnalyticsConfig struct {
	GA4MeasurementID string
	GTMContainerID   string
	Debug            bool
}

// LogConfig controls logger level and the optional rotating file sink.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ValidationError is returned when configuration values are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles configuration from defaults, the .env file, the process environment and
// explicit overrides, in increasing order of precedence.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}
	p := &parser{lookup: lookup}

	port := p.string("DETAIL_WEB_PORT", "")
	if port == "" {
		// Cloud Run style PORT fallback
		port = p.string("PORT", defaultPort)
	}

	env := strings.ToLower(p.string("DETAIL_WEB_ENV", defaultEnvironment))
	cfg := Config{
		Server: ServerConfig{
			Port:              port,
			ReadHeaderTimeout: p.duration("DETAIL_WEB_READ_HEADER_TIMEOUT", defaultReadHeader),
			ReadTimeout:       p.duration("DETAIL_WEB_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:      p.duration("DETAIL_WEB_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:       p.duration("DETAIL_WEB_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout:    p.duration("DETAIL_WEB_REQUEST_TIMEOUT", defaultRequestTimeout),
		},
		Paths: PathsConfig{
			Templates: p.string("DETAIL_WEB_TEMPLATES_DIR", "templates"),
			Public:    p.string("DETAIL_WEB_PUBLIC_DIR", "public"),
			Locales:   p.string("DETAIL_WEB_LOCALES_DIR", "locales"),
			Content:   p.string("DETAIL_WEB_CONTENT_DIR", "content"),
		},
		Site: SiteConfig{
			Environment:   env,
			DevMode:       p.bool("DETAIL_WEB_DEV", false),
			DefaultLocale: strings.ToLower(p.string("DETAIL_WEB_DEFAULT_LOCALE", defaultLocale)),
			Locales:       p.csv("DETAIL_WEB_LOCALES", []string{"ru", "en"}),
		},
		Session: SessionConfig{
			SigningKey:    p.string("DETAIL_WEB_SESSION_SIGNING_KEY", ""),
			IdleTTL:       p.duration("DETAIL_WEB_SESSION_IDLE_TTL", defaultSessionIdleTTL),
			SweepInterval: p.duration("DETAIL_WEB_SESSION_SWEEP_INTERVAL", defaultSweepInterval),
		},
		Dispatch: DispatchConfig{
			RelayEndpoint:   strings.TrimSpace(p.string("DETAIL_WEB_RELAY_ENDPOINT", "")),
			WebhookEndpoint: strings.TrimSpace(p.string("DETAIL_WEB_CHAT_WEBHOOK", "")),
			Timeout:         p.duration("DETAIL_WEB_DISPATCH_TIMEOUT", 0),
		},
		Carousel: CarouselConfig{
			Interval: p.duration("DETAIL_WEB_CAROUSEL_INTERVAL", defaultCarouselInterval),
		},
		RateLimit: RateLimitConfig{
			BookingPerMinute: p.int("DETAIL_WEB_BOOKING_PER_MINUTE", defaultBookingPerMinute),
			BookingBurst:     p.int("DETAIL_WEB_BOOKING_BURST", defaultBookingBurst),
		},
		Analytics: AnalyticsConfig{
			GA4MeasurementID: p.string("DETAIL_WEB_GA_MEASUREMENT_ID", ""),
			GTMContainerID:   p.string("DETAIL_WEB_GTM_CONTAINER_ID", ""),
			Debug:            p.bool("DETAIL_WEB_ANALYTICS_DEBUG", false),
		},
		Log: LogConfig{
			Level:      strings.ToLower(p.string("LOG_LEVEL", "info")),
			File:       p.string("DETAIL_WEB_LOG_FILE", ""),
			MaxSizeMB:  p.int("DETAIL_WEB_LOG_MAX_SIZE_MB", defaultLogMaxSizeMB),
			MaxBackups: p.int("DETAIL_WEB_LOG_MAX_BACKUPS", defaultLogMaxBackups),
			MaxAgeDays: p.int("DETAIL_WEB_LOG_MAX_AGE_DAYS", defaultLogMaxAgeDays),
		},
	}

	if err := validateConfig(cfg, p.invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config, invalid []string) error {
	fields := append([]string(nil), invalid...)
	if !isHTTPURL(cfg.Dispatch.RelayEndpoint) {
		fields = append(fields, "DETAIL_WEB_RELAY_ENDPOINT")
	}
	if !isHTTPURL(cfg.Dispatch.WebhookEndpoint) {
		fields = append(fields, "DETAIL_WEB_CHAT_WEBHOOK")
	}
	if cfg.Dispatch.Timeout < 0 {
		fields = append(fields, "DETAIL_WEB_DISPATCH_TIMEOUT")
	}
	if cfg.Carousel.Interval <= 0 {
		fields = append(fields, "DETAIL_WEB_CAROUSEL_INTERVAL")
	}
	if cfg.Site.DefaultLocale == "" || !contains(cfg.Site.Locales, cfg.Site.DefaultLocale) {
		fields = append(fields, "DETAIL_WEB_DEFAULT_LOCALE")
	}
	if cfg.Site.Production() && cfg.Session.SigningKey == "" {
		fields = append(fields, "DETAIL_WEB_SESSION_SIGNING_KEY")
	}
	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}

// isHTTPURL accepts empty values (channel not configured) and absolute http(s) URLs.
func isHTTPURL(raw string) bool {
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

// parser reads typed values and records keys whose values could not be parsed.
type parser struct {
	lookup  func(string) (string, bool)
	invalid []string
}

func (p *parser) string(key, fallback string) string {
	if value, ok := p.lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	value := p.string(key, "")
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return d
}

func (p *parser) int(key string, fallback int) int {
	value := p.string(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return parsed
}

func (p *parser) bool(key string, fallback bool) bool {
	value := p.string(key, "")
	if value == "" {
		return fallback
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	p.invalid = append(p.invalid, key)
	return fallback
}

func (p *parser) csv(key string, fallback []string) []string {
	value := p.string(key, "")
	if value == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
