// Package control feeds control, gear and emergency commands from the
// transport bus into the vehicle.
package control

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/simbridge/internal/msgs"
	"github.com/banshee-data/simbridge/internal/rosconv"
	"github.com/banshee-data/simbridge/internal/transport"
	"github.com/banshee-data/simbridge/internal/units"
	"github.com/banshee-data/simbridge/internal/vehicle"
)

// DefaultEmergencyDecel is applied while an emergency is active, in m/s^2.
const DefaultEmergencyDecel = -3.0

// Config names the command topics.
type Config struct {
	ControlTopic   string  // "/control/command/control_cmd"
	GearTopic      string  // "/control/command/gear_cmd"
	EmergencyTopic string  // "/control/command/emergency_cmd"
	EmergencyDecel float64 // m/s^2, <= 0
}

// Vehicle receives the decoded inputs.
type Vehicle interface {
	SetAccelerationInput(a float64)
	SetSteerAngleInput(deg float64)
	SetShiftInput(g vehicle.Gear)
}

// Stats are command counters.
type Stats struct {
	Control   uint64 `json:"control"`
	Gear      uint64 `json:"gear"`
	Emergency uint64 `json:"emergency"`
	Rejected  uint64 `json:"rejected"`
	Active    bool   `json:"emergency_active"`
}

type subscription struct {
	id string
	ch <-chan transport.Envelope
}

// Input drains the command queues once per step. Emergency commands are
// applied before gear and control commands queued in the same step; while an
// emergency is active control commands steer but do not accelerate.
type Input struct {
	cfg Config
	bus *transport.Bus
	veh Vehicle

	// emergency, gear, control: drain order
	subs [3]subscription

	mu        sync.Mutex
	emergency bool
	stats     Stats
}

// NewInput advertises the command topics with the command QoS and
// subscribes to them.
func NewInput(cfg Config, bus *transport.Bus, veh Vehicle) (*Input, error) {
	if cfg.ControlTopic == "" || cfg.GearTopic == "" || cfg.EmergencyTopic == "" {
		return nil, fmt.Errorf("command input requires all three topics")
	}
	if cfg.EmergencyDecel > 0 {
		return nil, fmt.Errorf("emergency deceleration must not be positive, got %v", cfg.EmergencyDecel)
	}
	if bus == nil || veh == nil {
		return nil, fmt.Errorf("command input requires a bus and a vehicle")
	}
	in := &Input{cfg: cfg, bus: bus, veh: veh}
	for i, topic := range []string{cfg.EmergencyTopic, cfg.GearTopic, cfg.ControlTopic} {
		if err := bus.Advertise(topic, transport.CommandQoS); err != nil {
			in.Close()
			return nil, fmt.Errorf("advertise %s: %w", topic, err)
		}
		id, ch := bus.Subscribe(topic)
		in.subs[i] = subscription{id: id, ch: ch}
	}
	return in, nil
}

// Step is a sim.StepFunc. Decode failures are counted and returned joined;
// the remaining commands are still applied.
func (in *Input) Step(float64) error {
	var errs []error
	for _, s := range in.subs {
	drain:
		for {
			select {
			case env, ok := <-s.ch:
				if !ok {
					break drain
				}
				if err := in.Apply(env); err != nil {
					errs = append(errs, err)
				}
			default:
				break drain
			}
		}
	}
	return errors.Join(errs...)
}

// Apply decodes one command and updates the vehicle.
func (in *Input) Apply(env transport.Envelope) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	switch env.Topic {
	case in.cfg.EmergencyTopic:
		var m msgs.VehicleEmergencyStamped
		if err := env.Decode(&m); err != nil {
			return in.reject(env, err)
		}
		in.stats.Emergency++
		in.emergency = m.Emergency
		in.stats.Active = in.emergency
		if in.emergency {
			in.veh.SetAccelerationInput(in.cfg.EmergencyDecel)
		}
	case in.cfg.GearTopic:
		var m msgs.GearCommand
		if err := env.Decode(&m); err != nil {
			return in.reject(env, err)
		}
		g, ok := rosconv.RosToUnityShift(m.Command)
		if !ok {
			return in.reject(env, fmt.Errorf("unsupported gear command %d", m.Command))
		}
		in.stats.Gear++
		in.veh.SetShiftInput(g)
	case in.cfg.ControlTopic:
		var m msgs.AckermannControlCommand
		if err := env.Decode(&m); err != nil {
			return in.reject(env, err)
		}
		in.stats.Control++
		if !in.emergency {
			in.veh.SetAccelerationInput(float64(m.Longitudinal.Acceleration))
		}
		in.veh.SetSteerAngleInput(-units.RadToDeg(float64(m.Lateral.SteeringTireAngle)))
	default:
		return in.reject(env, fmt.Errorf("not a command topic"))
	}
	return nil
}

func (in *Input) reject(env transport.Envelope, err error) error {
	in.stats.Rejected++
	return fmt.Errorf("command on %s: %w", env.Topic, err)
}

// Emergency reports whether an emergency is active.
func (in *Input) Emergency() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.emergency
}

// Stats returns a snapshot of the counters.
func (in *Input) Stats() Stats {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.stats
}

// Close unsubscribes from every command topic.
func (in *Input) Close() {
	for i, s := range in.subs {
		if s.id != "" {
			in.bus.Unsubscribe(s.id)
			in.subs[i] = subscription{}
		}
	}
}
