// Package carousel implements slideshow navigation with autoplay.
package carousel

import (
	"errors"
	"fmt"
)

// Direction selects the transition animation. It carries no other meaning.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

var (
	// ErrIndexOutOfRange is returned by GoTo for indexes outside [0, Count).
	ErrIndexOutOfRange = errors.New("carousel: index out of range")
	// ErrEmpty is returned when a carousel is created without slides.
	ErrEmpty = errors.New("carousel: no slides")
)

// State is an immutable carousel position. Index is always in [0, Count).
type State struct {
	Count       int
	Index       int
	AutoPlaying bool
	Direction   Direction
}

// NewState starts at the first slide with autoplay on.
func NewState(count int) (State, error) {
	if count <= 0 {
		return State{}, ErrEmpty
	}
	return State{Count: count, AutoPlaying: true, Direction: Forward}, nil
}

// Next advances one slide with wraparound and stops autoplay.
func (s State) Next() State {
	s.Index = s.wrap(s.Index + 1)
	s.Direction = Forward
	s.AutoPlaying = false
	return s
}

// Previous goes back one slide with wraparound and stops autoplay.
func (s State) Previous() State {
	s.Index = s.wrap(s.Index - 1)
	s.Direction = Backward
	s.AutoPlaying = false
	return s
}

// GoTo jumps to index and stops autoplay, including when index is already current.
func (s State) GoTo(index int) (State, error) {
	if index < 0 || index >= s.Count {
		return s, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, s.Count)
	}
	if index > s.Index {
		s.Direction = Forward
	} else {
		s.Direction = Backward
	}
	s.Index = index
	s.AutoPlaying = false
	return s, nil
}

// Tick advances one slide if autoplay is on, otherwise it returns s unchanged.
func (s State) Tick() State {
	if !s.AutoPlaying {
		return s
	}
	s.Index = s.wrap(s.Index + 1)
	s.Direction = Forward
	return s
}

// WithAutoPlay toggles autoplay without moving.
func (s State) WithAutoPlay(on bool) State {
	s.AutoPlaying = on
	return s
}

// Position returns the 1-based slide number.
func (s State) Position() int { return s.Index + 1 }

func (s State) wrap(i int) int {
	if s.Count <= 0 {
		return 0
	}
	i %= s.Count
	if i < 0 {
		i += s.Count
	}
	return i
}
