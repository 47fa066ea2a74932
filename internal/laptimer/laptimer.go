// Package laptimer times laps around a closed track and reports them on the
// diagnostics topic.
package laptimer

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MinLapTime is the shortest lap that counts. Crossings sooner than this
// after the lap started only restart the lap.
const MinLapTime = 5 * time.Second

// Stats is a snapshot of the timer.
type Stats struct {
	Started    bool      `json:"started"`
	CurrentLap float64   `json:"current_lap"` // s
	BestLap    float64   `json:"best_lap"`    // s, 0 before the first lap
	TotalTime  float64   `json:"total_time"`  // s, sum of completed laps
	TotalLaps  int       `json:"total_laps"`
	Laps       []float64 `json:"laps"` // s, in completion order
}

// Timer tracks lap times. It is safe for concurrent use.
type Timer struct {
	mu      sync.Mutex
	started bool
	start   time.Time
	current time.Duration
	best    time.Duration
	total   time.Duration
	laps    []time.Duration
}

// New returns a timer that has not seen the finish line yet.
func New() *Timer {
	return &Timer{}
}

// OnFinishLine records a finish line crossing at now. If the current lap is
// longer than MinLapTime it is completed. The next lap always starts at now.
// It reports whether a lap was completed.
func (t *Timer) OnFinishLine(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		t.current = now.Sub(t.start)
	}
	completed := false
	if t.current > MinLapTime {
		if t.best == 0 || t.current < t.best {
			t.best = t.current
		}
		t.total += t.current
		t.laps = append(t.laps, t.current)
		t.current = 0
		completed = true
	}
	t.started = true
	t.start = now
	return completed
}

// Update sets the current lap time from now.
func (t *Timer) Update(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		t.current = now.Sub(t.start)
	}
}

// Started reports whether the finish line has been crossed.
func (t *Timer) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// Stats returns a snapshot.
func (t *Timer) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Stats{
		Started:    t.started,
		CurrentLap: t.current.Seconds(),
		BestLap:    t.best.Seconds(),
		TotalTime:  t.total.Seconds(),
		TotalLaps:  len(t.laps),
		Laps:       make([]float64, len(t.laps)),
	}
	for i, l := range t.laps {
		s.Laps[i] = l.Seconds()
	}
	return s
}

// Text renders the status block shown to a driver. It is empty before the
// first crossing.
func (t *Timer) Text() string {
	s := t.Stats()
	if !s.Started {
		return ""
	}
	return fmt.Sprintf("Current lap: %s\nBest lap: %s\nTotal time: %s\nTotal laps: %d",
		seconds(s.CurrentLap), seconds(s.BestLap), seconds(s.TotalTime), s.TotalLaps)
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// LapKey is the diagnostic key for the n-th completed lap, counting from 1.
func LapKey(n int) string {
	return fmt.Sprintf("LAP_%03d", n)
}
