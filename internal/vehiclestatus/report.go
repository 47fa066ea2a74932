// Package vehiclestatus publishes the vehicle status reports a downstream
// autonomy stack expects: control mode, gear, steering angle and velocity.
package vehiclestatus

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/simbridge/internal/msgs"
	"github.com/banshee-data/simbridge/internal/rategate"
	"github.com/banshee-data/simbridge/internal/rosconv"
	"github.com/banshee-data/simbridge/internal/timeutil"
	"github.com/banshee-data/simbridge/internal/transport"
	"github.com/banshee-data/simbridge/internal/units"
	"github.com/banshee-data/simbridge/internal/vehicle"
)

// Rate limits for Config.Hz.
const (
	MinHz = 1
	MaxHz = 60
)

// Config holds topic names and the publish rate.
type Config struct {
	ControlModeTopic string
	GearTopic        string
	SteeringTopic    string
	VelocityTopic    string
	FrameID          string // velocity report frame, "base_link"
	Hz               int
}

// StateSource provides vehicle snapshots.
type StateSource interface {
	State() vehicle.State
}

// Reporter fills and publishes the four status messages each time its gate
// fires. All four carry the same stamp.
type Reporter struct {
	cfg   Config
	src   StateSource
	clock timeutil.Clock
	pub   transport.Publisher
	gate  *rategate.Gate

	controlMode msgs.ControlModeReport
	gear        msgs.GearReport
	steering    msgs.SteeringReport
	velocity    msgs.VelocityReport
}

// NewReporter validates cfg and returns a reporter.
func NewReporter(cfg Config, src StateSource, clock timeutil.Clock, pub transport.Publisher) (*Reporter, error) {
	if cfg.Hz < MinHz || cfg.Hz > MaxHz {
		return nil, fmt.Errorf("status rate must be between %d and %d Hz, got %d", MinHz, MaxHz, cfg.Hz)
	}
	if cfg.ControlModeTopic == "" || cfg.GearTopic == "" || cfg.SteeringTopic == "" || cfg.VelocityTopic == "" {
		return nil, fmt.Errorf("status reporter requires all four topics")
	}
	if src == nil || pub == nil {
		return nil, fmt.Errorf("status reporter requires a state source and a transport")
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	gate, err := rategate.New(float64(cfg.Hz))
	if err != nil {
		return nil, err
	}
	r := &Reporter{cfg: cfg, src: src, clock: clock, pub: pub, gate: gate}
	r.velocity.Header.FrameID = cfg.FrameID
	return r, nil
}

// Step is a sim.StepFunc.
func (r *Reporter) Step(dt float64) error {
	if !r.gate.Tick(dt) {
		return nil
	}
	return r.Report()
}

// Report fills and publishes all four messages now. The first publish error
// aborts the cycle.
func (r *Reporter) Report() error {
	st := r.src.State()

	r.controlMode.Mode = msgs.ControlModeAutonomous
	r.gear.Report = rosconv.UnityToRosShift(st.Gear)
	r.steering.SteeringTireAngle = float32(-units.DegToRad(st.SteerAngle))

	linear := rosconv.UnityToRosPosition(st.LocalVelocity)
	angular := rosconv.UnityToRosPosition(r3.Scale(-1, st.AngularVelocity))
	r.velocity.LongitudinalVelocity = float32(linear.X)
	r.velocity.LateralVelocity = float32(linear.Y)
	r.velocity.HeadingRate = float32(angular.Z)

	stamp := msgs.TimeFrom(r.clock.Now())
	r.controlMode.Stamp = stamp
	r.gear.Stamp = stamp
	r.steering.Stamp = stamp
	r.velocity.Header.Stamp = stamp

	for _, out := range []struct {
		topic string
		msg   msgs.Message
	}{
		{r.cfg.ControlModeTopic, &r.controlMode},
		{r.cfg.GearTopic, &r.gear},
		{r.cfg.SteeringTopic, &r.steering},
		{r.cfg.VelocityTopic, &r.velocity},
	} {
		if err := r.pub.Publish(out.topic, out.msg); err != nil {
			return fmt.Errorf("publish %s: %w", out.topic, err)
		}
	}
	return nil
}

// Topics returns the four topics in publish order.
func (r *Reporter) Topics() []string {
	return []string{r.cfg.ControlModeTopic, r.cfg.GearTopic, r.cfg.SteeringTopic, r.cfg.VelocityTopic}
}
