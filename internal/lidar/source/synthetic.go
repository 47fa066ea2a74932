package source

import (
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/simbridge/internal/lidar/l1hits"
	"github.com/banshee-data/simbridge/internal/lidar/l2scan"
	"github.com/banshee-data/simbridge/internal/rategate"
	"github.com/banshee-data/simbridge/internal/vehicle"
)

// Raycaster finds the nearest surface along a ray on the ground plane.
type Raycaster interface {
	Raycast(origin, dir r3.Vec, maxRange float64) (float64, bool)
}

// StateSource provides the pose of the sensor mount.
type StateSource interface {
	State() vehicle.State
}

// Synthetic is a planar range sensor mounted at the vehicle origin. Each
// capture casts one ray per slot. Rays are enumerated the way the simulated
// sensor does it: ray 0 points at AngleMax and indices increase clockwise.
// Rays with no surface within [RangeMin, RangeMax] produce no record.
type Synthetic struct {
	geom  l2scan.Geometry
	world Raycaster
	src   StateSource
	gate  *rategate.Gate
	out   consumer

	buf []byte

	captures atomic.Uint64
}

// NewSynthetic returns a sensor capturing at the geometry's capture interval.
func NewSynthetic(geom l2scan.Geometry, world Raycaster, src StateSource) (*Synthetic, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if world == nil || src == nil {
		return nil, fmt.Errorf("synthetic sensor requires a world and a state source")
	}
	gate, err := rategate.New(1 / geom.CaptureInterval.Seconds())
	if err != nil {
		return nil, err
	}
	return &Synthetic{
		geom:  geom,
		world: world,
		src:   src,
		gate:  gate,
		buf:   make([]byte, 0, geom.HorizontalSteps*l1hits.RecordSize),
	}, nil
}

// Geometry implements Producer.
func (s *Synthetic) Geometry() l2scan.Geometry { return s.geom }

// Subscribe implements Producer.
func (s *Synthetic) Subscribe(fn Handler) func() { return s.out.subscribe(fn) }

// Captures returns the number of completed captures.
func (s *Synthetic) Captures() uint64 { return s.captures.Load() }

// Step is a sim.StepFunc; it captures when the gate fires.
func (s *Synthetic) Step(dt float64) error {
	if !s.gate.Tick(dt) {
		return nil
	}
	s.Capture()
	return nil
}

// Capture casts every ray now and notifies the consumer.
func (s *Synthetic) Capture() {
	st := s.src.State()
	inc := s.geom.AngleIncrement()

	s.buf = s.buf[:0]
	hits := 0
	for i := 0; i < s.geom.HorizontalSteps; i++ {
		// Scan angles are counter-clockwise (left) positive; Unity yaw is
		// clockwise positive.
		angle := s.geom.AngleMax - float64(i)*inc
		dir := vehicle.Forward(st.Yaw - angle)
		d, ok := s.world.Raycast(st.Position, dir, s.geom.RangeMax)
		if !ok || d < s.geom.RangeMin || math.IsNaN(d) {
			continue
		}
		s.buf = l1hits.Append(s.buf, l1hits.Record{Distance: float32(d), RayIndex: uint32(i)})
		hits++
	}
	s.captures.Add(1)
	s.out.notify(s.buf, hits)
}
