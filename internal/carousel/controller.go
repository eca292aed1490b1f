package carousel

import (
	"sync"
	"time"
)

// DefaultInterval is the autoplay period.
const DefaultInterval = 5 * time.Second

// Ticker abstracts time.Ticker so tests can drive autoplay by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Option customises a Controller.
type Option func(*Controller)

// WithTicker replaces the ticker factory.
func WithTicker(fn func(time.Duration) Ticker) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newTicker = fn
		}
	}
}

// WithInterval sets the autoplay period.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// Controller guards a State and runs the autoplay loop while AutoPlaying is true.
// The loop is stopped and awaited whenever autoplay turns off and on Close.
type Controller struct {
	interval  time.Duration
	newTicker func(time.Duration) Ticker

	mu     sync.Mutex
	state  State
	gen    uint64
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

// NewController starts a carousel over count slides with autoplay running.
func NewController(count int, opts ...Option) (*Controller, error) {
	state, err := NewState(count)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		interval:  DefaultInterval,
		newTicker: NewRealTicker,
		state:     state,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mu.Lock()
	c.startLocked()
	c.mu.Unlock()
	return c, nil
}

// State returns the current position.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Next advances manually and stops autoplay.
func (c *Controller) Next() State {
	return c.apply(func(s State) (State, error) { return s.Next(), nil })
}

// Previous goes back manually and stops autoplay.
func (c *Controller) Previous() State {
	return c.apply(func(s State) (State, error) { return s.Previous(), nil })
}

// GoTo jumps to index and stops autoplay.
func (c *Controller) GoTo(index int) (State, error) {
	var gotoErr error
	s := c.apply(func(s State) (State, error) {
		next, err := s.GoTo(index)
		gotoErr = err
		return next, err
	})
	return s, gotoErr
}

// SetAutoPlay turns autoplay on or off.
func (c *Controller) SetAutoPlay(on bool) State {
	return c.apply(func(s State) (State, error) { return s.WithAutoPlay(on), nil })
}

// ToggleAutoPlay flips autoplay.
func (c *Controller) ToggleAutoPlay() State {
	return c.apply(func(s State) (State, error) { return s.WithAutoPlay(!s.AutoPlaying), nil })
}

// Close stops the autoplay loop. The controller keeps answering State afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	stop, done := c.detachLocked()
	c.mu.Unlock()
	wait(stop, done)
	return nil
}

func (c *Controller) apply(fn func(State) (State, error)) State {
	c.mu.Lock()
	next, err := fn(c.state)
	if err != nil {
		s := c.state
		c.mu.Unlock()
		return s
	}
	c.state = next
	var stop, done chan struct{}
	switch {
	case next.AutoPlaying && c.stop == nil && !c.closed:
		c.startLocked()
	case !next.AutoPlaying:
		stop, done = c.detachLocked()
	}
	s := c.state
	c.mu.Unlock()
	wait(stop, done)
	return s
}

func (c *Controller) startLocked() {
	if c.closed || !c.state.AutoPlaying {
		return
	}
	c.gen++
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.newTicker(c.interval), c.gen, c.stop, c.done)
}

// detachLocked forgets the running loop and hands its channels to the caller, who must
// call wait after releasing the mutex.
func (c *Controller) detachLocked() (chan struct{}, chan struct{}) {
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.gen++
	return stop, done
}

func wait(stop, done chan struct{}) {
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (c *Controller) run(t Ticker, gen uint64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			c.mu.Lock()
			if c.gen == gen {
				c.state = c.state.Tick()
			}
			c.mu.Unlock()
		}
	}
}
