// Package groundtruth samples the true vehicle pose at a fixed rate and
// publishes it as a PoseStamped in the ROS map frame.
package groundtruth

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/simbridge/internal/msgs"
	"github.com/banshee-data/simbridge/internal/rategate"
	"github.com/banshee-data/simbridge/internal/rosconv"
	"github.com/banshee-data/simbridge/internal/timeutil"
	"github.com/banshee-data/simbridge/internal/transport"
	"github.com/banshee-data/simbridge/internal/vehicle"
)

// MaxOutputHz is the highest supported sampling rate.
const MaxOutputHz = 50

// OutputData is the sampled pose in the Unity frame. The sampler reuses one
// value; callbacks must copy what they keep.
type OutputData struct {
	Position    r3.Vec
	Orientation quat.Number
}

// StateSource provides vehicle snapshots.
type StateSource interface {
	State() vehicle.State
}

// Sampler copies the vehicle pose into OutputData at OutputHz and calls the
// registered callbacks.
type Sampler struct {
	src  StateSource
	gate *rategate.Gate
	out  OutputData

	mu        sync.Mutex
	callbacks map[int]func(*OutputData) error
	nextID    int
}

// NewSampler returns a sampler firing at hz (1..MaxOutputHz).
func NewSampler(src StateSource, hz int) (*Sampler, error) {
	if src == nil {
		return nil, fmt.Errorf("sampler requires a state source")
	}
	if hz < 1 || hz > MaxOutputHz {
		return nil, fmt.Errorf("output rate must be between 1 and %d Hz, got %d", MaxOutputHz, hz)
	}
	gate, err := rategate.New(float64(hz))
	if err != nil {
		return nil, err
	}
	return &Sampler{src: src, gate: gate, callbacks: make(map[int]func(*OutputData) error)}, nil
}

// OnOutput registers fn and returns a func that removes it.
func (s *Sampler) OnOutput(fn func(*OutputData) error) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.callbacks[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.callbacks, id)
		s.mu.Unlock()
	}
}

// Step is a sim.StepFunc. Callbacks run in registration order; their errors
// are joined.
func (s *Sampler) Step(dt float64) error {
	if !s.gate.Tick(dt) {
		return nil
	}
	st := s.src.State()
	s.out.Position = st.Position
	s.out.Orientation = st.Rotation

	s.mu.Lock()
	ids := make([]int, 0, len(s.callbacks))
	for id := range s.callbacks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(*OutputData) error, len(ids))
	for i, id := range ids {
		fns[i] = s.callbacks[id]
	}
	s.mu.Unlock()

	var errs []error
	for _, fn := range fns {
		if err := fn(&s.out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublisherConfig names where poses go.
type PublisherConfig struct {
	Topic   string // "/ground_truth/pose"
	FrameID string // "map"
}

// Publisher converts sampled poses to the ROS frame and publishes them.
type Publisher struct {
	cfg   PublisherConfig
	clock timeutil.Clock
	pub   transport.Publisher
	msg   *msgs.PoseStamped
}

// NewPublisher returns a pose publisher.
func NewPublisher(cfg PublisherConfig, clock timeutil.Clock, pub transport.Publisher) (*Publisher, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("pose publisher requires a topic")
	}
	if pub == nil {
		return nil, fmt.Errorf("pose publisher requires a transport")
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Publisher{cfg: cfg, clock: clock, pub: pub, msg: msgs.NewPoseStamped(cfg.FrameID)}, nil
}

// Publish is an OnOutput callback.
func (p *Publisher) Publish(out *OutputData) error {
	p.msg.Pose.Position = rosconv.Point(rosconv.UnityToRosPosition(out.Position))
	p.msg.Pose.Orientation = rosconv.Quaternion(rosconv.UnityToRosRotation(out.Orientation))
	p.msg.Header.SetStamp(p.clock.Now())
	if err := p.pub.Publish(p.cfg.Topic, p.msg); err != nil {
		return fmt.Errorf("publish pose: %w", err)
	}
	return nil
}

// Topic returns the configured topic.
func (p *Publisher) Topic() string { return p.cfg.Topic }
