// Package form suppresses duplicate submissions: a form whose previous
// submit is still in flight refuses the next one instead of sending it.
package form

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrInFlight is returned when a submit is attempted while the previous one
// has not finished.
var ErrInFlight = errors.New("submit already in progress")

// Gate allows one submit at a time. The zero value is ready to use.
type Gate struct {
	busy atomic.Bool
}

// Do runs fn unless another Do on g is still running, in which case it
// returns ErrInFlight without calling fn. The first call is never
// cancelled.
func (g *Gate) Do(fn func() error) error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrInFlight
	}
	defer g.busy.Store(false)
	return fn()
}

// Busy reports whether a submit is in flight.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}

// Gates suppresses duplicate submits per key, typically view instance plus
// form name. A key is held only while its submit runs, so forms nobody is
// submitting cost nothing.
type Gates struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewGates returns an empty set.
func NewGates() *Gates {
	return &Gates{inFlight: make(map[string]struct{})}
}

// Do runs fn unless a submit under key is still running, in which case it
// returns ErrInFlight without calling fn.
func (gs *Gates) Do(key string, fn func() error) error {
	gs.mu.Lock()
	if _, busy := gs.inFlight[key]; busy {
		gs.mu.Unlock()
		return ErrInFlight
	}
	gs.inFlight[key] = struct{}{}
	gs.mu.Unlock()

	defer func() {
		gs.mu.Lock()
		delete(gs.inFlight, key)
		gs.mu.Unlock()
	}()
	return fn()
}

// Len returns the number of submits in flight.
func (gs *Gates) Len() int {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return len(gs.inFlight)
}
