// Package sessionstore keeps per-visitor objects in memory with idle eviction.
package sessionstore

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by Get once the store is closed.
var ErrClosed = errors.New("sessionstore: closed")

// Store maps session keys to values. Values idle for longer than ttl are closed and dropped.
type Store[T io.Closer] struct {
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry[T]
	closed  bool
}

type entry[T io.Closer] struct {
	value    T
	lastSeen time.Time
}

// Option customises a Store.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *zap.Logger
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger logs close failures.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a store evicting entries idle for ttl.
func New[T io.Closer](ttl time.Duration, opts ...Option) *Store[T] {
	o := options{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return &Store[T]{
		ttl:     ttl,
		now:     o.now,
		logger:  o.logger,
		entries: map[string]*entry[T]{},
	}
}

// Get returns the value for key, creating it with create on first use. Each call
// refreshes the idle timer.
func (s *Store[T]) Get(key string, create func() (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if s.closed {
		return zero, ErrClosed
	}
	now := s.now()
	if e, ok := s.entries[key]; ok {
		e.lastSeen = now
		return e.value, nil
	}
	v, err := create()
	if err != nil {
		return zero, err
	}
	s.entries[key] = &entry[T]{value: v, lastSeen: now}
	return v, nil
}

// Peek returns the value for key without creating or refreshing it.
func (s *Store[T]) Peek(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Len reports the number of live entries.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep closes and removes entries idle since before now-ttl. It returns how many were evicted.
func (s *Store[T]) Sweep(now time.Time) int {
	s.mu.Lock()
	var expired []T
	for key, e := range s.entries {
		if now.Sub(e.lastSeen) >= s.ttl {
			expired = append(expired, e.value)
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()

	// values are closed outside the lock; Close may block on goroutine shutdown
	s.closeAll(expired)
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (s *Store[T]) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.logger.Debug("session store sweep", zap.Int("evicted", n))
			}
		}
	}
}

// Close closes every entry. Later Gets fail with ErrClosed.
func (s *Store[T]) Close() error {
	s.mu.Lock()
	s.closed = true
	values := make([]T, 0, len(s.entries))
	for _, e := range s.entries {
		values = append(values, e.value)
	}
	s.entries = map[string]*entry[T]{}
	s.mu.Unlock()
	s.closeAll(values)
	return nil
}

func (s *Store[T]) closeAll(values []T) {
	for _, v := range values {
		if err := v.Close(); err != nil {
			s.logger.Warn("session store close failed", zap.Error(err))
		}
	}
}
