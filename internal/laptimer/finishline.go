package laptimer

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/simbridge/internal/timeutil"
)

// FinishLine is a segment on the ground plane (Unity x/z; y is ignored).
type FinishLine struct {
	A, B r3.Vec
}

// Crossed reports whether moving from prev to cur crosses the line, in
// either direction. Touching an end point counts.
func (l FinishLine) Crossed(prev, cur r3.Vec) bool {
	d1 := orient(l.A, l.B, prev)
	d2 := orient(l.A, l.B, cur)
	d3 := orient(prev, cur, l.A)
	d4 := orient(prev, cur, l.B)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	// Collinear cases: an end of one segment lies on the other.
	return (d2 == 0 && onSegment(l.A, l.B, cur) && d1 != 0) ||
		(d3 == 0 && onSegment(prev, cur, l.A)) ||
		(d4 == 0 && onSegment(prev, cur, l.B))
}

// orient is the z component of (b-a) x (c-a) projected onto x/z.
func orient(a, b, c r3.Vec) float64 {
	return (b.X-a.X)*(c.Z-a.Z) - (b.Z-a.Z)*(c.X-a.X)
}

func onSegment(a, b, p r3.Vec) bool {
	return min(a.X, b.X) <= p.X && p.X <= max(a.X, b.X) &&
		min(a.Z, b.Z) <= p.Z && p.Z <= max(a.Z, b.Z)
}

// PositionSource provides the tracked position.
type PositionSource interface {
	Position() r3.Vec
}

// Detector watches a position each step and reports crossings to a Timer.
type Detector struct {
	line    FinishLine
	src     PositionSource
	timer   *Timer
	clock   timeutil.Clock
	prev    r3.Vec
	hasPrev bool
	logf    func(format string, v ...interface{})
}

// NewDetector returns a detector feeding timer.
func NewDetector(line FinishLine, src PositionSource, timer *Timer, clock timeutil.Clock) (*Detector, error) {
	if line.A == line.B {
		return nil, fmt.Errorf("finish line end points must differ")
	}
	if src == nil || timer == nil || clock == nil {
		return nil, fmt.Errorf("detector requires a position source, a timer and a clock")
	}
	return &Detector{line: line, src: src, timer: timer, clock: clock, logf: func(string, ...interface{}) {}}, nil
}

// SetLogger sets where completed laps are logged.
func (d *Detector) SetLogger(logf func(format string, v ...interface{})) {
	d.logf = logf
}

// Step is a sim.StepFunc.
func (d *Detector) Step(float64) error {
	cur := d.src.Position()
	if d.hasPrev && d.line.Crossed(d.prev, cur) {
		if d.timer.OnFinishLine(d.clock.Now()) {
			s := d.timer.Stats()
			d.logf("lap %d: %.3fs (best %.3fs)", s.TotalLaps, s.Laps[len(s.Laps)-1], s.BestLap)
		}
	}
	d.prev = cur
	d.hasPrev = true
	return nil
}
