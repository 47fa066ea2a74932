// Package sim drives the simulation with an explicit fixed-step loop. Every
// periodic component (vehicle physics, sensors, publishers) registers a
// StepFunc and is called once per physics step with the step length.
package sim

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/simbridge/internal/monitoring"
	"github.com/banshee-data/simbridge/internal/timeutil"
)

// StepFunc advances a component by dt seconds.
type StepFunc func(dt float64) error

// Step orders used by the components in this module. Lower runs first within
// a step: inputs, then physics, then sensors, then publishers.
const (
	OrderInput     = 0
	OrderPhysics   = 100
	OrderSensor    = 200
	OrderPublisher = 300
)

type entry struct {
	id    int
	name  string
	order int
	fn    StepFunc
}

// Scheduler runs registered callbacks in (order, registration) order once
// per step and advances the simulation clock.
type Scheduler struct {
	step  time.Duration
	clock *timeutil.SimClock
	logf  func(format string, v ...interface{})

	mu      sync.Mutex
	entries []entry
	nextID  int
	steps   uint64
	errors  uint64
}

// NewScheduler returns a scheduler with a fixed physics step that advances
// clock.
func NewScheduler(step time.Duration, clock *timeutil.SimClock) (*Scheduler, error) {
	if step <= 0 {
		return nil, fmt.Errorf("physics step must be positive, got %s", step)
	}
	if clock == nil {
		return nil, fmt.Errorf("scheduler requires a simulation clock")
	}
	return &Scheduler{step: step, clock: clock, logf: monitoring.Prefixed("Scheduler")}, nil
}

// Register adds fn and returns an id for Deregister.
func (s *Scheduler) Register(name string, order int, fn StepFunc) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.entries = append(s.entries, entry{id: s.nextID, name: name, order: order, fn: fn})
	sort.SliceStable(s.entries, func(i, j int) bool { return s.entries[i].order < s.entries[j].order })
	return s.nextID
}

// Deregister removes a callback. It reports whether id was registered.
func (s *Scheduler) Deregister(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.id == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// DeregisterAll removes every callback.
func (s *Scheduler) DeregisterAll() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// Len returns the number of registered callbacks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StepSize returns the physics step.
func (s *Scheduler) StepSize() time.Duration { return s.step }

// Clock returns the simulation clock.
func (s *Scheduler) Clock() *timeutil.SimClock { return s.clock }

// Steps returns the number of completed steps.
func (s *Scheduler) Steps() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// Step advances the clock by one physics step and runs every callback. A
// callback error is logged and counted; the remaining callbacks still run.
func (s *Scheduler) Step() {
	s.clock.Advance(s.step)
	dt := s.step.Seconds()

	// Snapshot so callbacks may register or deregister during the step.
	s.mu.Lock()
	entries := append([]entry(nil), s.entries...)
	s.mu.Unlock()

	var failed uint64
	for _, e := range entries {
		if err := e.fn(dt); err != nil {
			failed++
			s.logf("%s: %v", e.name, err)
		}
	}

	s.mu.Lock()
	s.steps++
	s.errors += failed
	s.mu.Unlock()
}

// Errors returns the number of callback errors since start.
func (s *Scheduler) Errors() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors
}

// Run steps in real time, one step per wall clock tick, until ctx is done.
// All callbacks are deregistered on return.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.DeregisterAll()
	ticker := s.clock.NewTicker(s.step)
	defer ticker.Stop()

	s.logf("running in real time, step %s", s.step)
	for {
		select {
		case <-ctx.Done():
			s.logf("stopped after %d steps (sim time %s)", s.Steps(), s.clock.Elapsed())
			return nil
		case <-ticker.C():
			s.Step()
		}
	}
}

// RunFor steps as fast as possible until d of simulation time has elapsed
// or ctx is done. Callbacks stay registered.
func (s *Scheduler) RunFor(ctx context.Context, d time.Duration) error {
	target := s.clock.Elapsed() + d
	for s.clock.Elapsed() < target {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step()
	}
	return nil
}
