package control

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/simbridge/internal/laptimer"
	"github.com/banshee-data/simbridge/internal/msgs"
	"github.com/banshee-data/simbridge/internal/sim"
	"github.com/banshee-data/simbridge/internal/timeutil"
	"github.com/banshee-data/simbridge/internal/transport"
	"github.com/banshee-data/simbridge/internal/vehicle"
)

func TestAutopilot_DrivesLap(t *testing.T) {
	track, err := sim.NewTrack(20, 12, 3)
	require.NoError(t, err)
	veh, err := vehicle.New(vehicle.DefaultConfig())
	require.NoError(t, err)
	pos, yaw := track.StartPose()
	veh.Place(pos, yaw)

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	bus := transport.NewBus()
	in, err := NewInput(testConfig(), bus, veh)
	require.NoError(t, err)
	defer in.Close()

	ap, err := NewAutopilot(DefaultAutopilotConfig(), track.Centerline(), veh, clock, bus)
	require.NoError(t, err)

	timer := laptimer.New()
	a, b := track.FinishLine()
	det, err := laptimer.NewDetector(laptimer.FinishLine{A: a, B: b}, veh, timer, clock)
	require.NoError(t, err)

	const dt = 0.02
	segments := map[int]bool{}
	for i := 0; i < int(45/dt); i++ {
		clock.Advance(20 * time.Millisecond)
		require.NoError(t, ap.Step(dt))
		require.NoError(t, in.Step(dt))
		require.NoError(t, veh.Step(dt))
		require.NoError(t, det.Step(dt))
		segments[ap.Segment()] = true

		p := veh.Position()
		inIsland := math.Abs(p.X) < 3 && math.Abs(p.Z) < 7
		inside := math.Abs(p.X) < 6 && math.Abs(p.Z) < 10
		require.True(t, inside && !inIsland, "left the lane at step %d: %+v", i, p)
	}

	assert.Len(t, segments, 4)
	st := in.Stats()
	assert.Equal(t, uint64(1), st.Gear)
	assert.Greater(t, st.Control, uint64(1000))
	assert.Zero(t, st.Rejected)

	laps := timer.Stats()
	require.Equal(t, 1, laps.TotalLaps)
	assert.InDelta(t, 25, laps.BestLap, 4)
}

func TestAutopilot_FirstCommandIsDrive(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(5, 0))
	var topics []string
	var gear uint8
	pub := transport.PublisherFunc(func(topic string, msg msgs.Message) error {
		topics = append(topics, topic)
		if g, ok := msg.(*msgs.GearCommand); ok {
			gear = g.Command
		}
		return nil
	})
	path := []r3.Vec{{Z: 10}, {X: 10, Z: 10}}
	ap, err := NewAutopilot(DefaultAutopilotConfig(), path, staticState{}, clock, pub)
	require.NoError(t, err)

	require.NoError(t, ap.Step(1))
	require.NoError(t, ap.Step(1))
	cfg := DefaultAutopilotConfig()
	assert.Equal(t, []string{cfg.GearTopic, cfg.ControlTopic, cfg.ControlTopic}, topics)
	assert.Equal(t, msgs.GearDrive, gear)
}

func TestAutopilot_SteersTowardPath(t *testing.T) {
	var last msgs.AckermannControlCommand
	pub := transport.PublisherFunc(func(topic string, msg msgs.Message) error {
		if c, ok := msg.(*msgs.AckermannControlCommand); ok {
			last = *c
		}
		return nil
	})
	// Path runs along +z one metre to the right of the vehicle.
	path := []r3.Vec{{X: 1, Z: -10}, {X: 1, Z: 10}}
	ap, err := NewAutopilot(DefaultAutopilotConfig(), path, staticState{}, timeutil.NewMockClock(time.Unix(0, 0)), pub)
	require.NoError(t, err)
	require.NoError(t, ap.Step(1))

	// A right turn is a negative ROS steering angle.
	assert.Less(t, last.Lateral.SteeringTireAngle, float32(0))
	assert.Greater(t, last.Longitudinal.Acceleration, float32(0))
}

func TestNewAutopilot_Errors(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	pub := transport.NewBus()
	cfg := DefaultAutopilotConfig()

	_, err := NewAutopilot(cfg, []r3.Vec{{}}, staticState{}, clock, pub)
	assert.Error(t, err)

	bad := cfg
	bad.Lookahead = 0
	_, err = NewAutopilot(bad, []r3.Vec{{}, {Z: 1}}, staticState{}, clock, pub)
	assert.Error(t, err)

	bad = cfg
	bad.Hz = 0
	_, err = NewAutopilot(bad, []r3.Vec{{}, {Z: 1}}, staticState{}, clock, pub)
	assert.Error(t, err)

	_, err = NewAutopilot(cfg, []r3.Vec{{}, {Z: 1}}, nil, clock, pub)
	assert.Error(t, err)
}

type staticState vehicle.State

func (s staticState) State() vehicle.State { return vehicle.State(s) }
