package l2scan

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidGeometry is wrapped by every geometry validation failure. It is a
// configuration error: callers must refuse to start.
var ErrInvalidGeometry = errors.New("invalid scan geometry")

// MinHorizontalSteps is the smallest usable scan width; fewer steps leave the
// angle increment undefined.
const MinHorizontalSteps = 2

// Geometry describes how ray indices map to angular slots and which ranges
// the sensor reports. It is immutable once built by NewGeometry.
type Geometry struct {
	HorizontalSteps int           // number of angular slots
	AngleMin        float64       // first slot angle (rad)
	AngleMax        float64       // last slot angle (rad)
	RangeMin        float64       // metres
	RangeMax        float64       // metres
	CaptureInterval time.Duration // producer capture cadence, reported as scan_time
}

// NewGeometry validates and returns a Geometry.
func NewGeometry(steps int, angleMin, angleMax, rangeMin, rangeMax float64, captureInterval time.Duration) (Geometry, error) {
	g := Geometry{
		HorizontalSteps: steps,
		AngleMin:        angleMin,
		AngleMax:        angleMax,
		RangeMin:        rangeMin,
		RangeMax:        rangeMax,
		CaptureInterval: captureInterval,
	}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// GeometryFromDegrees builds a Geometry from the sensor's native settings:
// horizontal field of view in degrees and automatic capture rate in Hz.
func GeometryFromDegrees(steps int, minDeg, maxDeg, rangeMin, rangeMax, captureHz float64) (Geometry, error) {
	if !(captureHz > 0) {
		return Geometry{}, fmt.Errorf("%w: capture rate must be positive, got %v Hz", ErrInvalidGeometry, captureHz)
	}
	interval := time.Duration(float64(time.Second) / captureHz)
	return NewGeometry(steps, minDeg*math.Pi/180.0, maxDeg*math.Pi/180.0, rangeMin, rangeMax, interval)
}

// Validate checks the geometry invariants.
func (g Geometry) Validate() error {
	if g.HorizontalSteps < MinHorizontalSteps {
		return fmt.Errorf("%w: horizontal steps must be at least %d, got %d", ErrInvalidGeometry, MinHorizontalSteps, g.HorizontalSteps)
	}
	if math.IsNaN(g.AngleMin) || math.IsNaN(g.AngleMax) || g.AngleMax < g.AngleMin {
		return fmt.Errorf("%w: angle max %v is below angle min %v", ErrInvalidGeometry, g.AngleMax, g.AngleMin)
	}
	if math.IsNaN(g.RangeMin) || math.IsNaN(g.RangeMax) || g.RangeMax < g.RangeMin {
		return fmt.Errorf("%w: range max %v is below range min %v", ErrInvalidGeometry, g.RangeMax, g.RangeMin)
	}
	if g.CaptureInterval <= 0 {
		return fmt.Errorf("%w: capture interval must be positive, got %v", ErrInvalidGeometry, g.CaptureInterval)
	}
	return nil
}

// AngleIncrement returns the angular distance between adjacent slots (rad).
func (g Geometry) AngleIncrement() float64 {
	return (g.AngleMax - g.AngleMin) / float64(g.HorizontalSteps-1)
}

// SlotAngle returns the angle of slot i in the outbound scan convention.
func (g Geometry) SlotAngle(i int) float64 {
	return g.AngleMin + float64(i)*g.AngleIncrement()
}

// ScanTime returns the capture interval in seconds.
func (g Geometry) ScanTime() float64 {
	return g.CaptureInterval.Seconds()
}
