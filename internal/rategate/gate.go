// Package rategate decides when a periodic publisher fires, given the fixed
// physics step it is ticked with.
package rategate

import (
	"fmt"
	"math"
)

// Epsilon is subtracted from the nominal interval so that steps which
// accumulate slightly short of it (0.0333332 vs 1/30) still fire on time.
const Epsilon = 0.00001

// Gate accumulates elapsed time and fires once per interval.
// It is not safe for concurrent use; the scheduler ticks it from one
// goroutine.
type Gate struct {
	hz       float64
	interval float64 // seconds, without epsilon
	elapsed  float64 // seconds since last fire
}

// New returns a gate firing at hz.
func New(hz float64) (*Gate, error) {
	if !(hz > 0) || math.IsInf(hz, 0) {
		return nil, fmt.Errorf("rate must be positive and finite, got %v Hz", hz)
	}
	return &Gate{hz: hz, interval: 1.0 / hz}, nil
}

// MustNew is New for rates known at compile time.
func MustNew(hz float64) *Gate {
	g, err := New(hz)
	if err != nil {
		panic(err)
	}
	return g
}

// Tick adds deltaSeconds and reports whether the gate fires. On fire the
// accumulated time resets to zero; otherwise it carries into the next tick.
func (g *Gate) Tick(deltaSeconds float64) bool {
	g.elapsed += deltaSeconds
	if g.elapsed < g.interval-Epsilon {
		return false
	}
	g.elapsed = 0
	return true
}

// Elapsed returns the time accumulated since the last fire (s).
func (g *Gate) Elapsed() float64 { return g.elapsed }

// Interval returns the nominal firing interval (s).
func (g *Gate) Interval() float64 { return g.interval }

// Hz returns the configured rate.
func (g *Gate) Hz() float64 { return g.hz }

// Reset discards accumulated time.
func (g *Gate) Reset() { g.elapsed = 0 }
