// Package monitor serves the bridge's HTTP status and debug pages.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/simbridge/internal/laptimer"
	"github.com/banshee-data/simbridge/internal/lidar/l2scan"
	"github.com/banshee-data/simbridge/internal/monitoring"
	"github.com/banshee-data/simbridge/internal/msgs"
	"github.com/banshee-data/simbridge/internal/rosconv"
	"github.com/banshee-data/simbridge/internal/transport"
	"github.com/banshee-data/simbridge/internal/units"
	"github.com/banshee-data/simbridge/internal/vehicle"
)

// ScanSource is the latest decoded scan. *l2scan.Emitter implements it.
type ScanSource interface {
	Latest(dst []float32) ([]float32, msgs.Time, bool)
	Geometry() l2scan.Geometry
	Policy() l2scan.Policy
	Topic() string
	Stats() l2scan.EmitterStats
}

// Sources are the components the server reports on. Nil fields are left
// out of the status.
type Sources struct {
	Scan    ScanSource
	Vehicle interface{ State() vehicle.State }
	Laps    interface{ Stats() laptimer.Stats }
	Bus     interface {
		Stats() map[string]transport.TopicStats
	}
	Sim interface {
		Steps() uint64
		Errors() uint64
	}
	SimTime func() time.Duration
	// Admin mounts extra debug routes, such as the recorder's SQL console.
	Admin func(mux *http.ServeMux) error
}

// Config configures the server.
type Config struct {
	Address string
	Sources Sources
}

// Server is the HTTP status server.
type Server struct {
	address string
	src     Sources
	mux     *http.ServeMux
	server  *http.Server
	logf    func(format string, v ...interface{})

	scanMu  sync.Mutex
	scanBuf []float32
}

// NewServer builds the routes. Start serves them.
func NewServer(cfg Config) (*Server, error) {
	s := &Server{
		address: cfg.Address,
		src:     cfg.Sources,
		logf:    monitoring.Prefixed("HTTP"),
	}
	mux, err := s.setupRoutes()
	if err != nil {
		return nil, err
	}
	s.mux = mux
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until ctx is cancelled, then shuts down. It returns once the
// server has stopped.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		s.logf("Starting HTTP server on %s", lis.Addr())
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	s.logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logf("HTTP server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			s.logf("HTTP server force close error: %v", err)
		}
	}
	s.logf("HTTP server routine stopped")
	return nil
}

func (s *Server) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/scan/latest", s.handleScanLatest)
	mux.HandleFunc("/api/scan/stats", s.handleScanStats)

	debug := tsweb.Debugger(mux)
	debug.Handle("scan", "Latest scan (interactive)", http.HandlerFunc(s.handleScanChart))
	debug.Handle("scan.png", "Latest scan (PNG)", http.HandlerFunc(s.handleScanPNG))

	if s.src.Admin != nil {
		if err := s.src.Admin(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logf("JSON encoding error: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VehicleStatus is the vehicle part of /api/status, in the ROS frame.
type VehicleStatus struct {
	Position  msgs.Point `json:"position"`
	Yaw       float64    `json:"yaw"`   // rad, Unity convention
	Speed     float64    `json:"speed"` // signed, in SpeedUnit
	SpeedUnit string     `json:"speed_unit"`
	Steer     float64    `json:"steer"` // deg, Unity convention
	Gear      string     `json:"gear"`
}

// ScanStatus is the scan part of /api/status.
type ScanStatus struct {
	Topic   string              `json:"topic"`
	Policy  string              `json:"policy"`
	Steps   int                 `json:"steps"`
	Emitter l2scan.EmitterStats `json:"emitter"`
}

// Status is the body of /api/status.
type Status struct {
	SimTime    float64                         `json:"sim_time"` // s
	Steps      uint64                          `json:"steps"`
	StepErrors uint64                          `json:"step_errors"`
	Vehicle    *VehicleStatus                  `json:"vehicle,omitempty"`
	Scan       *ScanStatus                     `json:"scan,omitempty"`
	Laps       *laptimer.Stats                 `json:"laps,omitempty"`
	Topics     map[string]transport.TopicStats `json:"topics,omitempty"`
}

// Status assembles the current status with speeds in m/s.
func (s *Server) Status() Status {
	return s.status(units.MPS)
}

func (s *Server) status(speedUnit string) Status {
	var st Status
	if s.src.SimTime != nil {
		st.SimTime = s.src.SimTime().Seconds()
	}
	if s.src.Sim != nil {
		st.Steps = s.src.Sim.Steps()
		st.StepErrors = s.src.Sim.Errors()
	}
	if s.src.Vehicle != nil {
		v := s.src.Vehicle.State()
		st.Vehicle = &VehicleStatus{
			Position:  rosconv.Point(rosconv.UnityToRosPosition(v.Position)),
			Yaw:       v.Yaw,
			Speed:     units.ConvertSpeed(v.Speed, speedUnit),
			SpeedUnit: speedUnit,
			Steer:     v.SteerAngle,
			Gear:      v.Gear.String(),
		}
	}
	if s.src.Scan != nil {
		st.Scan = &ScanStatus{
			Topic:   s.src.Scan.Topic(),
			Policy:  s.src.Scan.Policy().String(),
			Steps:   s.src.Scan.Geometry().HorizontalSteps,
			Emitter: s.src.Scan.Stats(),
		}
	}
	if s.src.Laps != nil {
		laps := s.src.Laps.Stats()
		st.Laps = &laps
	}
	if s.src.Bus != nil {
		st.Topics = s.src.Bus.Stats()
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	unit, err := units.ParseSpeedUnit(r.URL.Query().Get("units"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.status(unit))
}

// latestScan copies the latest scan. The returned slice is owned by the
// caller.
func (s *Server) latestScan() ([]float32, msgs.Time, bool) {
	if s.src.Scan == nil {
		return nil, msgs.Time{}, false
	}
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	var ok bool
	var stamp msgs.Time
	s.scanBuf, stamp, ok = s.src.Scan.Latest(s.scanBuf)
	if !ok {
		return nil, stamp, false
	}
	return append([]float32(nil), s.scanBuf...), stamp, true
}

// ScanResponse is the body of /api/scan/latest. No-return slots are null
// under the NaN policy.
type ScanResponse struct {
	Stamp          msgs.Time         `json:"stamp"`
	AngleMin       float64           `json:"angle_min"`
	AngleMax       float64           `json:"angle_max"`
	AngleIncrement float64           `json:"angle_increment"`
	RangeMin       float64           `json:"range_min"`
	RangeMax       float64           `json:"range_max"`
	Policy         string            `json:"policy"`
	Ranges         msgs.Float32Array `json:"ranges"`
}

func (s *Server) handleScanLatest(w http.ResponseWriter, r *http.Request) {
	ranges, stamp, ok := s.latestScan()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "no scan published yet")
		return
	}
	g := s.src.Scan.Geometry()
	s.writeJSON(w, http.StatusOK, ScanResponse{
		Stamp:          stamp,
		AngleMin:       g.AngleMin,
		AngleMax:       g.AngleMax,
		AngleIncrement: g.AngleIncrement(),
		RangeMin:       g.RangeMin,
		RangeMax:       g.RangeMax,
		Policy:         s.src.Scan.Policy().String(),
		Ranges:         ranges,
	})
}

func (s *Server) handleScanStats(w http.ResponseWriter, r *http.Request) {
	ranges, _, ok := s.latestScan()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "no scan published yet")
		return
	}
	s.writeJSON(w, http.StatusOK, ComputeRangeStats(ranges, s.src.Scan.Policy()))
}
