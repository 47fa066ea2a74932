// Package vehicle is a kinematic bicycle model of a small car. It stands in
// for the rigid-body physics of the simulator: it accepts the same inputs
// (acceleration, steer angle, gear) and exposes the same state, in the Unity
// frame (x right, y up, z forward, left handed, yaw positive to the right).
package vehicle

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Gear is the automatic transmission position.
type Gear int

const (
	GearPark Gear = iota
	GearReverse
	GearNeutral
	GearDrive
)

func (g Gear) String() string {
	switch g {
	case GearPark:
		return "P"
	case GearReverse:
		return "R"
	case GearNeutral:
		return "N"
	case GearDrive:
		return "D"
	default:
		return fmt.Sprintf("Gear(%d)", int(g))
	}
}

// Config holds the physical limits of the model.
type Config struct {
	Wheelbase     float64 // m
	MaxSteerAngle float64 // deg, symmetric
	MaxSpeed      float64 // m/s
	MaxAccel      float64 // m/s^2, magnitude
}

// DefaultConfig is a 1/10 scale racing car.
func DefaultConfig() Config {
	return Config{
		Wheelbase:     0.33,
		MaxSteerAngle: 24,
		MaxSpeed:      7,
		MaxAccel:      5,
	}
}

// State is a consistent snapshot of the vehicle.
type State struct {
	Position        r3.Vec      // m, Unity frame
	Rotation        quat.Number // Unity frame
	Yaw             float64     // rad about +y
	Speed           float64     // m/s along the body z axis, negative in reverse
	LocalVelocity   r3.Vec      // m/s, body frame
	AngularVelocity r3.Vec      // rad/s, world frame
	SteerAngle      float64     // deg, positive right
	Gear            Gear
}

// Vehicle is safe for concurrent use: inputs may be set from command
// handlers while the scheduler steps it.
type Vehicle struct {
	cfg Config

	mu         sync.Mutex
	accelInput float64
	steerInput float64
	shiftInput Gear
	position   r3.Vec
	yaw        float64
	speed      float64
	steer      float64
	yawRate    float64
}

// New returns a parked vehicle at the origin facing +z.
func New(cfg Config) (*Vehicle, error) {
	if !(cfg.Wheelbase > 0) {
		return nil, fmt.Errorf("wheelbase must be positive, got %v", cfg.Wheelbase)
	}
	if cfg.MaxSteerAngle <= 0 || cfg.MaxSteerAngle >= 90 {
		return nil, fmt.Errorf("max steer angle must be in (0, 90) deg, got %v", cfg.MaxSteerAngle)
	}
	if !(cfg.MaxSpeed > 0) || !(cfg.MaxAccel > 0) {
		return nil, fmt.Errorf("speed and acceleration limits must be positive")
	}
	return &Vehicle{cfg: cfg, shiftInput: GearPark}, nil
}

// Place teleports the vehicle and stops it.
func (v *Vehicle) Place(position r3.Vec, yaw float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.position = position
	v.yaw = yaw
	v.speed = 0
	v.yawRate = 0
}

// SetAccelerationInput sets the requested acceleration in m/s^2. Negative
// values brake.
func (v *Vehicle) SetAccelerationInput(a float64) {
	v.mu.Lock()
	v.accelInput = a
	v.mu.Unlock()
}

// SetSteerAngleInput sets the requested steer angle in degrees, positive right.
func (v *Vehicle) SetSteerAngleInput(deg float64) {
	v.mu.Lock()
	v.steerInput = deg
	v.mu.Unlock()
}

// SetShiftInput selects a gear.
func (v *Vehicle) SetShiftInput(g Gear) {
	v.mu.Lock()
	v.shiftInput = g
	v.mu.Unlock()
}

// AccelerationInput returns the last requested acceleration.
func (v *Vehicle) AccelerationInput() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.accelInput
}

// SteerAngleInput returns the last requested steer angle.
func (v *Vehicle) SteerAngleInput() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.steerInput
}

// ShiftInput returns the selected gear.
func (v *Vehicle) ShiftInput() Gear {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shiftInput
}

// Step integrates the model over dt seconds.
func (v *Vehicle) Step(dt float64) error {
	if !(dt > 0) {
		return fmt.Errorf("step must be positive, got %v", dt)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	v.steer = clamp(v.steerInput, -v.cfg.MaxSteerAngle, v.cfg.MaxSteerAngle)
	accel := clamp(v.accelInput, -v.cfg.MaxAccel, v.cfg.MaxAccel)

	switch v.shiftInput {
	case GearPark:
		v.speed = 0
	case GearDrive:
		v.speed = clamp(v.speed+accel*dt, 0, v.cfg.MaxSpeed)
	case GearReverse:
		v.speed = clamp(v.speed-accel*dt, -v.cfg.MaxSpeed, 0)
	case GearNeutral:
		// Coasting: speed is held, only braking applies.
		if accel < 0 {
			v.speed = towardZero(v.speed, -accel*dt)
		}
	}

	v.yawRate = v.speed / v.cfg.Wheelbase * math.Tan(v.steer*math.Pi/180)
	v.yaw = math.Remainder(v.yaw+v.yawRate*dt, 2*math.Pi)
	v.position = r3.Add(v.position, r3.Scale(v.speed*dt, forward(v.yaw)))
	return nil
}

// State returns a snapshot.
func (v *Vehicle) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return State{
		Position:        v.position,
		Rotation:        YawRotation(v.yaw),
		Yaw:             v.yaw,
		Speed:           v.speed,
		LocalVelocity:   r3.Vec{Z: v.speed},
		AngularVelocity: r3.Vec{Y: v.yawRate},
		SteerAngle:      v.steer,
		Gear:            v.shiftInput,
	}
}

// Position returns the current position.
func (v *Vehicle) Position() r3.Vec {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.position
}

// YawRotation is the Unity quaternion for a rotation of yaw radians about +y.
func YawRotation(yaw float64) quat.Number {
	return quat.Number{Real: math.Cos(yaw / 2), Jmag: math.Sin(yaw / 2)}
}

// forward is the body z axis in world coordinates.
func forward(yaw float64) r3.Vec {
	return r3.Vec{X: math.Sin(yaw), Z: math.Cos(yaw)}
}

// Forward returns the unit heading vector for yaw.
func Forward(yaw float64) r3.Vec { return forward(yaw) }

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func towardZero(x, by float64) float64 {
	if x > 0 {
		return math.Max(0, x-by)
	}
	return math.Min(0, x+by)
}
