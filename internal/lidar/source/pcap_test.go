package source

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/simbridge/internal/lidar/l1hits"
	"github.com/banshee-data/simbridge/internal/timeutil"
)

func writeCaptures(t *testing.T, path string, port int, clock *timeutil.MockClock, caps ...[]l1hits.Record) {
	t.Helper()
	rec, err := CreateRecorder(path, port, clock.Now)
	require.NoError(t, err)
	for i, c := range caps {
		if i > 0 {
			clock.Advance(25 * time.Millisecond)
		}
		require.NoError(t, rec.Record(l1hits.Encode(c...), len(c)))
	}
	assert.Equal(t, uint64(len(caps)), rec.Written())
	require.NoError(t, rec.Close())
}

func TestRecorderReplay_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.pcap")
	clock := timeutil.NewMockClock(time.Unix(100, 0))
	first := []l1hits.Record{{Distance: 1.5, RayIndex: 0}, {Distance: 2.5, RayIndex: 2}}
	second := []l1hits.Record{{Distance: 3, RayIndex: 1}}
	writeCaptures(t, path, DefaultPort, clock, first, second, nil)

	rp, err := OpenReplay(path, DefaultPort, testGeometry(t, 3), false)
	require.NoError(t, err)
	assert.Equal(t, 3, rp.Len())
	got := collect(rp)

	require.NoError(t, rp.Step(0))
	require.Len(t, *got, 1)
	assert.Equal(t, first, (*got)[0])

	require.NoError(t, rp.Step(0.02))
	assert.Len(t, *got, 1, "second capture is 25ms after the first")

	require.NoError(t, rp.Step(0.01))
	require.Len(t, *got, 2)
	assert.Equal(t, second, (*got)[1])
	assert.False(t, rp.Done())

	require.NoError(t, rp.Step(0.025))
	require.Len(t, *got, 3)
	assert.Empty(t, (*got)[2])
	assert.True(t, rp.Done())

	require.NoError(t, rp.Step(1))
	assert.Len(t, *got, 3)
}

func TestReplay_Loop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.pcap")
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	writeCaptures(t, path, DefaultPort, clock,
		[]l1hits.Record{{Distance: 1, RayIndex: 0}},
		[]l1hits.Record{{Distance: 2, RayIndex: 0}})

	rp, err := OpenReplay(path, DefaultPort, testGeometry(t, 3), true)
	require.NoError(t, err)
	got := collect(rp)

	for i := 0; i < 10; i++ {
		require.NoError(t, rp.Step(0.025))
	}
	assert.False(t, rp.Done())
	assert.GreaterOrEqual(t, len(*got), 8)
}

func TestReplay_FiltersPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.pcap")
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	writeCaptures(t, path, 9999, clock, []l1hits.Record{{Distance: 1, RayIndex: 0}})

	rp, err := OpenReplay(path, DefaultPort, testGeometry(t, 3), false)
	require.NoError(t, err)
	assert.Zero(t, rp.Len())
	assert.True(t, rp.Done())
	assert.NoError(t, rp.Step(1))
}

func TestRecorder_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateRecorder(filepath.Join(dir, "x.pcap"), 0, nil)
	assert.Error(t, err)

	_, err = CreateRecorder(filepath.Join(dir, "missing", "x.pcap"), DefaultPort, nil)
	assert.Error(t, err)

	rec, err := CreateRecorder(filepath.Join(dir, "x.pcap"), DefaultPort, nil)
	require.NoError(t, err)
	defer rec.Close()
	assert.ErrorIs(t, rec.Record(make([]byte, 4), 1), l1hits.ErrShortBuffer)

	_, err = OpenReplay(filepath.Join(dir, "nope.pcap"), DefaultPort, testGeometry(t, 3), false)
	assert.Error(t, err)
}

func TestRecorder_RejectsOversizedCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.pcap")
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	rec, err := CreateRecorder(path, DefaultPort, clock.Now)
	require.NoError(t, err)

	full := make([]l1hits.Record, MaxRecordHits)
	for i := range full {
		full[i] = l1hits.Record{Distance: 1, RayIndex: uint32(i)}
	}
	require.NoError(t, rec.Record(l1hits.Encode(full...), len(full)))

	big := append(full, l1hits.Record{Distance: 1, RayIndex: uint32(len(full))})
	assert.ErrorIs(t, rec.Record(l1hits.Encode(big...), len(big)), ErrCaptureTooLarge)
	assert.Equal(t, uint64(1), rec.Written())
	require.NoError(t, rec.Close())

	replay, err := OpenReplay(path, DefaultPort, testGeometry(t, MaxRecordHits), false)
	require.NoError(t, err)
	assert.Equal(t, 1, replay.Len())
}

func TestRecorder_Tap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tap.pcap")
	rec, err := CreateRecorder(path, DefaultPort, nil)
	require.NoError(t, err)

	var forwarded int
	h := rec.Tap(func(buf []byte, hitCount int) { forwarded += hitCount })
	h(l1hits.Encode(l1hits.Record{Distance: 1}), 1)
	h(make([]byte, 4), 1) // short buffer: logged, still forwarded

	assert.Equal(t, 2, forwarded)
	assert.Equal(t, uint64(1), rec.Written())
	require.NoError(t, rec.Close())
}
