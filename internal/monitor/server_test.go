package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/simbridge/internal/laptimer"
	"github.com/banshee-data/simbridge/internal/lidar/l2scan"
	"github.com/banshee-data/simbridge/internal/msgs"
	"github.com/banshee-data/simbridge/internal/transport"
	"github.com/banshee-data/simbridge/internal/vehicle"
)

type fakeScan struct {
	geom   l2scan.Geometry
	policy l2scan.Policy
	ranges []float32
	stamp  msgs.Time
}

func (f *fakeScan) Latest(dst []float32) ([]float32, msgs.Time, bool) {
	if f.ranges == nil {
		return dst[:0], msgs.Time{}, false
	}
	return append(dst[:0], f.ranges...), f.stamp, true
}
func (f *fakeScan) Geometry() l2scan.Geometry  { return f.geom }
func (f *fakeScan) Policy() l2scan.Policy      { return f.policy }
func (f *fakeScan) Topic() string              { return "lidar/scan" }
func (f *fakeScan) Stats() l2scan.EmitterStats { return l2scan.EmitterStats{Published: 3, Dropped: 1} }

type fakeVehicle vehicle.State

func (v fakeVehicle) State() vehicle.State { return vehicle.State(v) }

type fakeLaps laptimer.Stats

func (l fakeLaps) Stats() laptimer.Stats { return laptimer.Stats(l) }

type fakeSim struct{}

func (fakeSim) Steps() uint64  { return 42 }
func (fakeSim) Errors() uint64 { return 2 }

func newTestServer(t *testing.T, scan *fakeScan) *Server {
	t.Helper()
	bus := transport.NewBus()
	require.NoError(t, bus.Advertise("lidar/scan", transport.ScanQoS))
	s, err := NewServer(Config{Sources: Sources{
		Scan:    scan,
		Vehicle: fakeVehicle{Position: r3.Vec{X: 1, Y: 0, Z: 2}, Yaw: 0.5, Speed: 3, Gear: vehicle.GearDrive},
		Laps:    fakeLaps{Started: true, TotalLaps: 1, BestLap: 9.5, Laps: []float64{9.5}},
		Bus:     bus,
		Sim:     fakeSim{},
		SimTime: func() time.Duration { return 1500 * time.Millisecond },
	}})
	require.NoError(t, err)
	return s
}

func testGeometry(t *testing.T) l2scan.Geometry {
	t.Helper()
	g, err := l2scan.GeometryFromDegrees(5, -90, 90, 0.1, 10, 40)
	require.NoError(t, err)
	return g
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Status(t *testing.T) {
	s := newTestServer(t, &fakeScan{geom: testGeometry(t)})
	rec := get(t, s, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.InDelta(t, 1.5, st.SimTime, 1e-9)
	assert.Equal(t, uint64(42), st.Steps)
	assert.Equal(t, uint64(2), st.StepErrors)
	require.NotNil(t, st.Vehicle)
	assert.Equal(t, msgs.Point{X: 2, Y: -1, Z: 0}, st.Vehicle.Position)
	assert.Equal(t, "D", st.Vehicle.Gear)
	require.NotNil(t, st.Scan)
	assert.Equal(t, "nan", st.Scan.Policy)
	assert.Equal(t, 5, st.Scan.Steps)
	assert.Equal(t, uint64(3), st.Scan.Emitter.Published)
	require.NotNil(t, st.Laps)
	assert.Equal(t, 1, st.Laps.TotalLaps)
	assert.Contains(t, st.Topics, "lidar/scan")
}

func TestServer_StatusUnits(t *testing.T) {
	s := newTestServer(t, &fakeScan{geom: testGeometry(t)})
	rec := get(t, s, "/api/status?units=kph")
	require.Equal(t, http.StatusOK, rec.Code)
	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.NotNil(t, st.Vehicle)
	assert.InDelta(t, 10.8, st.Vehicle.Speed, 1e-9)
	assert.Equal(t, "kph", st.Vehicle.SpeedUnit)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/status?units=knots").Code)
}

func TestServer_StatusMethod(t *testing.T) {
	s := newTestServer(t, &fakeScan{geom: testGeometry(t)})
	req := httptest.NewRequest(http.MethodPost, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_ScanLatest(t *testing.T) {
	scan := &fakeScan{geom: testGeometry(t)}
	s := newTestServer(t, scan)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/scan/latest").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/scan/stats").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/debug/scan.png").Code)

	nan := float32(math.NaN())
	scan.ranges = []float32{1, nan, 2, nan, 4}
	scan.stamp = msgs.Time{Sec: 7, Nanosec: 5}

	rec := get(t, s, "/api/scan/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ranges":[1,null,2,null,4]`)

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, msgs.Time{Sec: 7, Nanosec: 5}, resp.Stamp)
	assert.InDelta(t, math.Pi/4, resp.AngleIncrement, 1e-9)

	rec = get(t, s, "/api/scan/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var rs RangeStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rs))
	assert.Equal(t, 5, rs.Slots)
	assert.Equal(t, 3, rs.Returns)
	assert.Equal(t, 4.0, rs.Max)
}

func TestServer_DebugCharts(t *testing.T) {
	scan := &fakeScan{geom: testGeometry(t), ranges: []float32{1, 2, 3, 4, 5}}
	s := newTestServer(t, scan)

	rec := get(t, s, "/debug/scan")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Range Scan")

	rec = get(t, s, "/debug/scan.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

func TestServer_Admin(t *testing.T) {
	called := false
	_, err := NewServer(Config{Sources: Sources{Admin: func(mux *http.ServeMux) error {
		called = true
		return nil
	}}})
	require.NoError(t, err)
	assert.True(t, called)

	_, err = NewServer(Config{Sources: Sources{Admin: func(*http.ServeMux) error {
		return errors.New("boom")
	}}})
	assert.Error(t, err)
}

func TestServer_EmptySources(t *testing.T) {
	s, err := NewServer(Config{})
	require.NoError(t, err)
	rec := get(t, s, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/scan/latest").Code)
	assert.Equal(t, http.StatusOK, get(t, s, "/health").Code)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	s, err := NewServer(Config{})
	require.NoError(t, err)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + lis.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
