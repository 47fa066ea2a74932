package control

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/simbridge/internal/msgs"
	"github.com/banshee-data/simbridge/internal/rategate"
	"github.com/banshee-data/simbridge/internal/timeutil"
	"github.com/banshee-data/simbridge/internal/transport"
	"github.com/banshee-data/simbridge/internal/vehicle"
)

// AutopilotConfig tunes the path follower.
type AutopilotConfig struct {
	ControlTopic string
	GearTopic    string
	Speed        float64 // target speed, m/s
	Lookahead    float64 // m
	Wheelbase    float64 // m
	Hz           float64 // command rate
}

// DefaultAutopilotConfig drives the default vehicle at a walking pace.
func DefaultAutopilotConfig() AutopilotConfig {
	return AutopilotConfig{
		ControlTopic: "/control/command/control_cmd",
		GearTopic:    "/control/command/gear_cmd",
		Speed:        2,
		Lookahead:    1.5,
		Wheelbase:    vehicle.DefaultConfig().Wheelbase,
		Hz:           30,
	}
}

// StateSource provides the vehicle pose.
type StateSource interface {
	State() vehicle.State
}

// Autopilot follows a closed path with pure pursuit and publishes the
// resulting commands, the same way an external planner would.
type Autopilot struct {
	cfg   AutopilotConfig
	path  []r3.Vec
	src   StateSource
	clock timeutil.Clock
	pub   transport.Publisher
	gate  *rategate.Gate

	seg      int
	located  bool
	gearSent bool

	control msgs.AckermannControlCommand
	gear    msgs.GearCommand
}

// NewAutopilot follows path, a closed loop of ground-plane waypoints in
// Unity coordinates, joining it at the segment nearest the vehicle.
func NewAutopilot(cfg AutopilotConfig, path []r3.Vec, src StateSource, clock timeutil.Clock, pub transport.Publisher) (*Autopilot, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("autopilot path needs at least two waypoints, got %d", len(path))
	}
	if !(cfg.Lookahead > 0) || !(cfg.Wheelbase > 0) || cfg.Speed < 0 {
		return nil, fmt.Errorf("invalid autopilot config %+v", cfg)
	}
	if src == nil || clock == nil || pub == nil {
		return nil, fmt.Errorf("autopilot requires a state source, a clock and a publisher")
	}
	gate, err := rategate.New(cfg.Hz)
	if err != nil {
		return nil, err
	}
	return &Autopilot{
		cfg:   cfg,
		path:  path,
		src:   src,
		clock: clock,
		pub:   pub,
		gate:  gate,
	}, nil
}

// Segment returns the index of the path segment being followed. Segment i
// runs from path[i] to path[i+1], wrapping.
func (a *Autopilot) Segment() int { return a.seg }

// Step is a sim.StepFunc.
func (a *Autopilot) Step(dt float64) error {
	if !a.gate.Tick(dt) {
		return nil
	}
	stamp := msgs.TimeFrom(a.clock.Now())
	if !a.gearSent {
		a.gear = msgs.GearCommand{Stamp: stamp, Command: msgs.GearDrive}
		if err := a.pub.Publish(a.cfg.GearTopic, &a.gear); err != nil {
			return fmt.Errorf("publish gear: %w", err)
		}
		a.gearSent = true
	}

	st := a.src.State()
	steer := a.steer(st)
	accel := math.Max(-3, math.Min(3, 1.5*(a.cfg.Speed-st.Speed)))

	a.control = msgs.AckermannControlCommand{
		Stamp: stamp,
		Lateral: msgs.AckermannLateralCommand{
			Stamp: stamp,
			// Unity steering is right positive, ROS left positive.
			SteeringTireAngle: float32(-steer),
		},
		Longitudinal: msgs.LongitudinalCommand{
			Stamp:        stamp,
			Speed:        float32(a.cfg.Speed),
			Acceleration: float32(accel),
		},
	}
	if err := a.pub.Publish(a.cfg.ControlTopic, &a.control); err != nil {
		return fmt.Errorf("publish control: %w", err)
	}
	return nil
}

// steer returns the pure pursuit steering angle in radians, right positive.
func (a *Autopilot) steer(st vehicle.State) float64 {
	d := r3.Sub(a.goal(st.Position), st.Position)
	fwd := vehicle.Forward(st.Yaw)
	right := r3.Vec{X: math.Cos(st.Yaw), Z: -math.Sin(st.Yaw)}
	alpha := math.Atan2(d.X*right.X+d.Z*right.Z, d.X*fwd.X+d.Z*fwd.Z)
	ld := math.Max(planar(d), 1e-3)
	return math.Atan(2 * a.cfg.Wheelbase * math.Sin(alpha) / ld)
}

// goal returns the point Lookahead metres along the path from the
// projection of pos onto the current segment.
func (a *Autopilot) goal(pos r3.Vec) r3.Vec {
	n := len(a.path)
	if !a.located {
		best := math.Inf(1)
		for i := range a.path {
			p0, p1 := a.path[i], a.path[(i+1)%n]
			if d := segDist(pos, p0, p1); d < best {
				best, a.seg = d, i
			}
		}
		a.located = true
	}
	// Move on once past the end of the segment or nearer the next one, so
	// cutting a corner does not leave the follower behind.
	for i := 0; i < n; i++ {
		next := (a.seg + 1) % n
		if param(pos, a.path[a.seg], a.path[next]) < 1 &&
			segDist(pos, a.path[a.seg], a.path[next]) <= segDist(pos, a.path[next], a.path[(next+1)%n]) {
			break
		}
		a.seg = next
	}

	p0, p1 := a.path[a.seg], a.path[(a.seg+1)%n]
	cur := lerp(p0, p1, clamp01(param(pos, p0, p1)))
	remaining := a.cfg.Lookahead
	k := a.seg
	for i := 0; i < n; i++ {
		next := a.path[(k+1)%n]
		l := planar(r3.Sub(next, cur))
		if l >= remaining {
			return lerp(cur, next, remaining/l)
		}
		remaining -= l
		cur = next
		k = (k + 1) % n
	}
	return cur
}

// param is the position of p's projection along a->b, 0 at a and 1 at b.
func param(p, a, b r3.Vec) float64 {
	ab := r3.Sub(b, a)
	l2 := ab.X*ab.X + ab.Z*ab.Z
	if l2 == 0 {
		return 1
	}
	ap := r3.Sub(p, a)
	return (ap.X*ab.X + ap.Z*ab.Z) / l2
}

// segDist is the ground-plane distance from p to the segment a->b.
func segDist(p, a, b r3.Vec) float64 {
	return planar(r3.Sub(p, lerp(a, b, clamp01(param(p, a, b)))))
}

func lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

func clamp01(t float64) float64 {
	return math.Max(0, math.Min(1, t))
}

func planar(v r3.Vec) float64 {
	return math.Hypot(v.X, v.Z)
}
