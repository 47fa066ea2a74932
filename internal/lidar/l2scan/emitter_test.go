package l2scan

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/simbridge/internal/lidar/l1hits"
	"github.com/banshee-data/simbridge/internal/monitoring"
	"github.com/banshee-data/simbridge/internal/msgs"
	"github.com/banshee-data/simbridge/internal/timeutil"
)

// recordingPublisher serialises each message at publish time, the way a
// synchronous transport would.
type recordingPublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(topic string, msg msgs.Message) error {
	if p.err != nil {
		return p.err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, data)
	return nil
}

func newTestEmitter(t *testing.T, policy Policy, pub Publisher) (*Emitter, *timeutil.MockClock) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(t.Logf) })

	geom, err := NewGeometry(4, -math.Pi/4, math.Pi/4, 0.02, 30, 25*time.Millisecond)
	require.NoError(t, err)
	dec, err := NewDecoder(geom, policy)
	require.NoError(t, err)

	clock := timeutil.NewMockClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	e, err := NewEmitter(EmitterConfig{Topic: "lidar/scan", FrameID: "world"}, dec, clock, pub)
	require.NoError(t, err)
	return e, clock
}

type wireScan struct {
	Header struct {
		Stamp   msgs.Time `json:"stamp"`
		FrameID string    `json:"frame_id"`
	} `json:"header"`
	AngleMin       float32    `json:"angle_min"`
	AngleMax       float32    `json:"angle_max"`
	AngleIncrement float32    `json:"angle_increment"`
	TimeIncrement  float32    `json:"time_increment"`
	ScanTime       float32    `json:"scan_time"`
	RangeMin       float32    `json:"range_min"`
	RangeMax       float32    `json:"range_max"`
	Ranges         []*float32 `json:"ranges"`
	Intensities    []float32  `json:"intensities"`
}

func TestEmitter_PublishesStampedScan(t *testing.T) {
	pub := &recordingPublisher{}
	e, clock := newTestEmitter(t, PolicyZeroFill, pub)

	buf := l1hits.Encode(
		l1hits.Record{Distance: 1.5, RayIndex: 0},
		l1hits.Record{Distance: 2.0, RayIndex: 3},
	)
	require.NoError(t, e.OnNewData(buf, 2))

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "lidar/scan", pub.topics[0])

	var got wireScan
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, "world", got.Header.FrameID)
	assert.Equal(t, msgs.TimeFrom(clock.Now()), got.Header.Stamp)
	assert.InDelta(t, -math.Pi/4, got.AngleMin, 1e-6)
	assert.InDelta(t, math.Pi/4, got.AngleMax, 1e-6)
	assert.InDelta(t, math.Pi/6, got.AngleIncrement, 1e-6)
	assert.Zero(t, got.TimeIncrement)
	assert.InDelta(t, 0.025, got.ScanTime, 1e-6)
	assert.InDelta(t, 0.02, got.RangeMin, 1e-6)
	assert.InDelta(t, 30, got.RangeMax, 1e-6)
	assert.Empty(t, got.Intensities)
	require.Len(t, got.Ranges, 4)
	assert.Equal(t, float32(2.0), *got.Ranges[0])
	assert.Equal(t, float32(1.5), *got.Ranges[3])

	assert.Equal(t, EmitterStats{Published: 1}, e.Stats())
}

func TestEmitter_StampFollowsClock(t *testing.T) {
	pub := &recordingPublisher{}
	e, clock := newTestEmitter(t, PolicyZeroFill, pub)

	buf := l1hits.Encode(l1hits.Record{Distance: 1, RayIndex: 1})
	require.NoError(t, e.OnNewData(buf, 1))
	clock.Advance(25 * time.Millisecond)
	require.NoError(t, e.OnNewData(buf, 1))

	var first, second wireScan
	require.NoError(t, json.Unmarshal(pub.payloads[0], &first))
	require.NoError(t, json.Unmarshal(pub.payloads[1], &second))
	assert.Equal(t, 25*time.Millisecond, second.Header.Stamp.AsTime().Sub(first.Header.Stamp.AsTime()))
}

func TestEmitter_CorruptBufferIsDroppedNotPublished(t *testing.T) {
	pub := &recordingPublisher{}
	e, _ := newTestEmitter(t, PolicyNaN, pub)

	good := l1hits.Encode(l1hits.Record{Distance: 3, RayIndex: 2})
	require.NoError(t, e.OnNewData(good, 1))

	bad := l1hits.Encode(l1hits.Record{Distance: 3, RayIndex: 4})
	err := e.OnNewData(bad, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRayIndexOutOfRange))
	assert.Len(t, pub.payloads, 1, "corrupt cycle must not publish")

	// The next cycle proceeds independently.
	require.NoError(t, e.OnNewData(good, 1))
	assert.Equal(t, EmitterStats{Published: 2, Dropped: 1}, e.Stats())
}

func TestEmitter_PublishErrorPropagates(t *testing.T) {
	sentinel := errors.New("transport down")
	pub := &recordingPublisher{err: sentinel}
	e, _ := newTestEmitter(t, PolicyNaN, pub)

	err := e.OnNewData(nil, 0)
	assert.Same(t, sentinel, err)
	assert.Equal(t, EmitterStats{}, e.Stats())
}

func TestEmitter_Latest(t *testing.T) {
	pub := &recordingPublisher{}
	e, clock := newTestEmitter(t, PolicyZeroFill, pub)

	_, _, ok := e.Latest(nil)
	assert.False(t, ok)

	require.NoError(t, e.OnNewData(l1hits.Encode(l1hits.Record{Distance: 4, RayIndex: 0}), 1))
	ranges, stamp, ok := e.Latest(nil)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 0, 0, 4}, ranges)
	assert.Equal(t, msgs.TimeFrom(clock.Now()), stamp)

	// The copy is detached from the emitter's buffer.
	ranges[3] = 99
	again, _, _ := e.Latest(nil)
	assert.Equal(t, float32(4), again[3])
}

func TestEmitter_HandlerSwallowsErrors(t *testing.T) {
	pub := &recordingPublisher{}
	e, _ := newTestEmitter(t, PolicyNaN, pub)

	h := e.Handler()
	h(l1hits.Encode(l1hits.Record{Distance: 1, RayIndex: 40}), 1)
	h(l1hits.Encode(l1hits.Record{Distance: 1, RayIndex: 1}), 1)
	assert.Equal(t, EmitterStats{Published: 1, Dropped: 1}, e.Stats())
}

func TestNewEmitter_Validation(t *testing.T) {
	geom, err := NewGeometry(4, 0, 1, 0, 1, time.Second)
	require.NoError(t, err)
	dec, err := NewDecoder(geom, PolicyNaN)
	require.NoError(t, err)

	_, err = NewEmitter(EmitterConfig{Topic: "scan"}, nil, nil, &recordingPublisher{})
	assert.Error(t, err)
	_, err = NewEmitter(EmitterConfig{Topic: "scan"}, dec, nil, nil)
	assert.Error(t, err)
	_, err = NewEmitter(EmitterConfig{}, dec, nil, &recordingPublisher{})
	assert.Error(t, err)
}
