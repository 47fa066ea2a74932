package l2scan

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/simbridge/internal/monitoring"
	"github.com/banshee-data/simbridge/internal/msgs"
	"github.com/banshee-data/simbridge/internal/timeutil"
)

// Publisher hands a message to the transport. Publish must finish with msg
// (or copy it) before returning: the emitter overwrites the same LaserScan
// on the next notification.
type Publisher interface {
	Publish(topic string, msg msgs.Message) error
}

// EmitterConfig names where scans go.
type EmitterConfig struct {
	Topic   string // e.g. "lidar/scan"
	FrameID string // e.g. "world"
}

// EmitterStats is a snapshot of emitter counters.
type EmitterStats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// Emitter turns producer notifications into published LaserScan messages.
// It does not rate-limit: every notification that decodes is published.
type Emitter struct {
	cfg     EmitterConfig
	decoder *Decoder
	clock   timeutil.Clock
	pub     Publisher
	logf    func(format string, v ...interface{})

	msg msgs.LaserScan

	published atomic.Uint64
	dropped   atomic.Uint64

	latestMu    sync.Mutex
	latest      []float32
	latestStamp msgs.Time
	hasLatest   bool
}

// NewEmitter builds an emitter and fills the static LaserScan fields from the
// decoder's geometry.
func NewEmitter(cfg EmitterConfig, decoder *Decoder, clock timeutil.Clock, pub Publisher) (*Emitter, error) {
	if decoder == nil {
		return nil, fmt.Errorf("emitter requires a decoder")
	}
	if pub == nil {
		return nil, fmt.Errorf("emitter requires a publisher")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("emitter requires a topic")
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	geom := decoder.Geometry()
	e := &Emitter{
		cfg:     cfg,
		decoder: decoder,
		clock:   clock,
		pub:     pub,
		logf:    monitoring.Prefixed("ScanEmitter"),
		latest:  make([]float32, geom.HorizontalSteps),
	}
	e.msg = msgs.LaserScan{
		Header:         msgs.Header{FrameID: cfg.FrameID},
		AngleMin:       float32(geom.AngleMin),
		AngleMax:       float32(geom.AngleMax),
		AngleIncrement: float32(geom.AngleIncrement()),
		TimeIncrement:  0,
		ScanTime:       float32(geom.ScanTime()),
		RangeMin:       float32(geom.RangeMin),
		RangeMax:       float32(geom.RangeMax),
		Ranges:         make([]float32, geom.HorizontalSteps),
		Intensities:    []float32{},
	}
	return e, nil
}

// OnNewData decodes one hit buffer and publishes it. A corrupt buffer is
// counted, logged and skipped; the next notification proceeds normally.
// Publish errors are returned unchanged.
func (e *Emitter) OnNewData(buf []byte, hitCount int) error {
	ranges, err := e.decoder.Decode(buf, hitCount, e.msg.Ranges)
	if err != nil {
		n := e.dropped.Add(1)
		e.logf("dropping scan (%d dropped so far): %v", n, err)
		return fmt.Errorf("decode scan: %w", err)
	}
	e.msg.Ranges = ranges
	e.msg.Header.SetStamp(e.clock.Now())

	if err := e.pub.Publish(e.cfg.Topic, &e.msg); err != nil {
		return err
	}
	e.published.Add(1)

	e.latestMu.Lock()
	copy(e.latest, ranges)
	e.latestStamp = e.msg.Header.Stamp
	e.hasLatest = true
	e.latestMu.Unlock()
	return nil
}

// Handler adapts OnNewData to a producer callback, which has no error return.
func (e *Emitter) Handler() func(buf []byte, hitCount int) {
	return func(buf []byte, hitCount int) {
		if err := e.OnNewData(buf, hitCount); err != nil {
			e.logf("scan not published: %v", err)
		}
	}
}

// Stats returns the emitter counters.
func (e *Emitter) Stats() EmitterStats {
	return EmitterStats{
		Published: e.published.Load(),
		Dropped:   e.dropped.Load(),
	}
}

// Latest copies the most recently published ranges into dst (grown if
// needed) and returns it with the scan stamp. ok is false before the first
// publish. Safe to call from other goroutines.
func (e *Emitter) Latest(dst []float32) (ranges []float32, stamp msgs.Time, ok bool) {
	e.latestMu.Lock()
	defer e.latestMu.Unlock()
	if !e.hasLatest {
		return dst[:0], msgs.Time{}, false
	}
	dst = append(dst[:0], e.latest...)
	return dst, e.latestStamp, true
}

// Geometry returns the scan geometry being emitted.
func (e *Emitter) Geometry() Geometry { return e.decoder.Geometry() }

// Policy returns the no-return policy in effect.
func (e *Emitter) Policy() Policy { return e.decoder.Policy() }

// Topic returns the topic scans are published on.
func (e *Emitter) Topic() string { return e.cfg.Topic }
