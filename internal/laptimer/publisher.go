package laptimer

import (
	"fmt"
	"strconv"
	"time"

	"github.com/banshee-data/simbridge/internal/msgs"
	"github.com/banshee-data/simbridge/internal/rategate"
	"github.com/banshee-data/simbridge/internal/timeutil"
	"github.com/banshee-data/simbridge/internal/transport"
)

// Rate limits for PublisherConfig.Hz.
const (
	MinHz = 1
	MaxHz = 50
)

// Diagnostic keys.
const (
	KeyCurrentLap = "CURRENT_LAP"
	KeyBestLap    = "BEST_LAP"
	KeyTotalTime  = "TOTAL_TIME"
	KeyTotalLaps  = "TOTAL_LAPS"
)

// PublisherConfig holds the topic and publish rate.
type PublisherConfig struct {
	Topic   string // "/diagnostics"
	FrameID string // "base_link"
	Hz      int
}

// Publisher reports the timer as a DiagnosticArray. Nothing is published
// before the first finish line crossing.
type Publisher struct {
	cfg   PublisherConfig
	timer *Timer
	clock timeutil.Clock
	pub   transport.Publisher
	gate  *rategate.Gate
	msg   msgs.DiagnosticArray
}

// NewPublisher returns a lap timer publisher.
func NewPublisher(cfg PublisherConfig, timer *Timer, clock timeutil.Clock, pub transport.Publisher) (*Publisher, error) {
	if cfg.Hz < MinHz || cfg.Hz > MaxHz {
		return nil, fmt.Errorf("lap timer rate must be between %d and %d Hz, got %d", MinHz, MaxHz, cfg.Hz)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("lap timer publisher requires a topic")
	}
	if timer == nil || pub == nil {
		return nil, fmt.Errorf("lap timer publisher requires a timer and a transport")
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	gate, err := rategate.New(float64(cfg.Hz))
	if err != nil {
		return nil, err
	}
	p := &Publisher{cfg: cfg, timer: timer, clock: clock, pub: pub, gate: gate}
	p.msg.Header.FrameID = cfg.FrameID
	p.msg.Status = []msgs.DiagnosticStatus{{
		Level:      msgs.DiagnosticOK,
		Name:       "LapTimer",
		Message:    "Lap time report",
		HardwareID: "LapTimer",
	}}
	return p, nil
}

// Step is a sim.StepFunc. The gate only runs once the lap has started.
func (p *Publisher) Step(dt float64) error {
	if !p.timer.Started() {
		return nil
	}
	now := p.clock.Now()
	p.timer.Update(now)
	if !p.gate.Tick(dt) {
		return nil
	}
	return p.publish(now)
}

func (p *Publisher) publish(now time.Time) error {
	p.msg.Header.SetStamp(now)
	p.msg.Status[0].Values = Values(p.timer.Stats(), p.msg.Status[0].Values[:0])
	if err := p.pub.Publish(p.cfg.Topic, &p.msg); err != nil {
		return fmt.Errorf("publish lap times: %w", err)
	}
	return nil
}

// Values appends the diagnostic key values for s to dst. Best and total
// read "0.0" until a lap completes.
func Values(s Stats, dst []msgs.KeyValue) []msgs.KeyValue {
	best, total := "0.0", "0.0"
	if s.TotalLaps > 0 {
		best, total = seconds(s.BestLap), seconds(s.TotalTime)
	}
	dst = append(dst,
		msgs.KeyValue{Key: KeyCurrentLap, Value: seconds(s.CurrentLap)},
		msgs.KeyValue{Key: KeyBestLap, Value: best},
		msgs.KeyValue{Key: KeyTotalTime, Value: total},
		msgs.KeyValue{Key: KeyTotalLaps, Value: strconv.Itoa(s.TotalLaps)},
	)
	for i, lap := range s.Laps {
		dst = append(dst, msgs.KeyValue{Key: LapKey(i + 1), Value: seconds(lap)})
	}
	return dst
}
