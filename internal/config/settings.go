package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/simbridge/internal/lidar/l2scan"
)

// DefaultConfigPath is the path to the canonical settings defaults file.
const DefaultConfigPath = "config/simbridge.defaults.json"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid settings")

// Settings is the static settings object the bridge is started with: topic
// names, frame ids, publish rates and the scan geometry. Every field is
// optional; the Get* methods supply defaults for omitted fields, so partial
// files are safe.
type Settings struct {
	// Scan publisher
	ScanTopic           *string  `json:"scan_topic,omitempty"`
	ScanFrameID         *string  `json:"scan_frame_id,omitempty"`
	ScanMinHAngleDeg    *float64 `json:"scan_min_h_angle_deg,omitempty"`
	ScanMaxHAngleDeg    *float64 `json:"scan_max_h_angle_deg,omitempty"`
	ScanHorizontalSteps *int     `json:"scan_horizontal_steps,omitempty"`
	ScanRangeMin        *float64 `json:"scan_range_min,omitempty"`
	ScanRangeMax        *float64 `json:"scan_range_max,omitempty"`
	ScanCaptureHz       *float64 `json:"scan_capture_hz,omitempty"`
	ScanNoReturnPolicy  *string  `json:"scan_no_return_policy,omitempty"` // "nan" or "zero"

	// Ground truth pose
	PoseTopic   *string `json:"pose_topic,omitempty"`
	PoseFrameID *string `json:"pose_frame_id,omitempty"`
	PoseHz      *int    `json:"pose_hz,omitempty"`

	// Vehicle status
	StatusFrameID       *string `json:"status_frame_id,omitempty"`
	StatusHz            *int    `json:"status_hz,omitempty"`
	ControlModeTopic    *string `json:"control_mode_topic,omitempty"`
	GearReportTopic     *string `json:"gear_report_topic,omitempty"`
	SteeringReportTopic *string `json:"steering_report_topic,omitempty"`
	VelocityReportTopic *string `json:"velocity_report_topic,omitempty"`

	// Lap timer
	LapTimerTopic *string `json:"lap_timer_topic,omitempty"`
	LapTimerHz    *int    `json:"lap_timer_hz,omitempty"`

	// Command input
	ControlCommandTopic   *string  `json:"control_command_topic,omitempty"`
	GearCommandTopic      *string  `json:"gear_command_topic,omitempty"`
	EmergencyCommandTopic *string  `json:"emergency_command_topic,omitempty"`
	EmergencyDecel        *float64 `json:"emergency_decel,omitempty"` // m/s^2, negative

	// Simulation
	PhysicsStep *string  `json:"physics_step,omitempty"` // duration string like "20ms"
	TrackLength *float64 `json:"track_length,omitempty"` // outer wall, metres along z
	TrackWidth  *float64 `json:"track_width,omitempty"`  // outer wall, metres along x
	LaneWidth   *float64 `json:"lane_width,omitempty"`   // gap between outer wall and inner island

	// Transport
	ForwardAddr *string `json:"forward_addr,omitempty"`
	ForwardPort *int    `json:"forward_port,omitempty"`
	GRPCListen  *string `json:"grpc_listen,omitempty"`
	RecorderDB  *string `json:"recorder_db,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySettings returns Settings with all fields nil.
func EmptySettings() *Settings {
	return &Settings{}
}

// DefaultSettings returns Settings with every field populated with its
// default, matching config/simbridge.defaults.json.
func DefaultSettings() *Settings {
	e := EmptySettings()
	return &Settings{
		ScanTopic:           ptrString(e.GetScanTopic()),
		ScanFrameID:         ptrString(e.GetScanFrameID()),
		ScanMinHAngleDeg:    ptrFloat64(e.GetScanMinHAngleDeg()),
		ScanMaxHAngleDeg:    ptrFloat64(e.GetScanMaxHAngleDeg()),
		ScanHorizontalSteps: ptrInt(e.GetScanHorizontalSteps()),
		ScanRangeMin:        ptrFloat64(e.GetScanRangeMin()),
		ScanRangeMax:        ptrFloat64(e.GetScanRangeMax()),
		ScanCaptureHz:       ptrFloat64(e.GetScanCaptureHz()),
		ScanNoReturnPolicy:  ptrString(e.GetScanNoReturnPolicy()),

		PoseTopic:   ptrString(e.GetPoseTopic()),
		PoseFrameID: ptrString(e.GetPoseFrameID()),
		PoseHz:      ptrInt(e.GetPoseHz()),

		StatusFrameID:       ptrString(e.GetStatusFrameID()),
		StatusHz:            ptrInt(e.GetStatusHz()),
		ControlModeTopic:    ptrString(e.GetControlModeTopic()),
		GearReportTopic:     ptrString(e.GetGearReportTopic()),
		SteeringReportTopic: ptrString(e.GetSteeringReportTopic()),
		VelocityReportTopic: ptrString(e.GetVelocityReportTopic()),

		LapTimerTopic: ptrString(e.GetLapTimerTopic()),
		LapTimerHz:    ptrInt(e.GetLapTimerHz()),

		ControlCommandTopic:   ptrString(e.GetControlCommandTopic()),
		GearCommandTopic:      ptrString(e.GetGearCommandTopic()),
		EmergencyCommandTopic: ptrString(e.GetEmergencyCommandTopic()),
		EmergencyDecel:        ptrFloat64(e.GetEmergencyDecel()),

		PhysicsStep: ptrString(e.GetPhysicsStep().String()),
		TrackLength: ptrFloat64(e.GetTrackLength()),
		TrackWidth:  ptrFloat64(e.GetTrackWidth()),
		LaneWidth:   ptrFloat64(e.GetLaneWidth()),

		ForwardAddr: ptrString(e.GetForwardAddr()),
		ForwardPort: ptrInt(e.GetForwardPort()),
		GRPCListen:  ptrString(e.GetGRPCListen()),
		RecorderDB:  ptrString(e.GetRecorderDB()),
	}
}

// LoadSettings loads Settings from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadSettings(path string) (*Settings, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySettings()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultSettings loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultSettings() *Settings {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/lidar/l2scan/
	}
	for _, path := range candidates {
		if cfg, err := LoadSettings(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable. Geometry problems
// are reported through l2scan so callers can match ErrInvalidGeometry.
func (c *Settings) Validate() error {
	if _, err := c.ScanGeometry(); err != nil {
		return err
	}
	if _, err := l2scan.ParsePolicy(c.GetScanNoReturnPolicy()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if c.PoseHz != nil && (*c.PoseHz < 1 || *c.PoseHz > 50) {
		return fmt.Errorf("%w: pose_hz must be between 1 and 50, got %d", ErrInvalid, *c.PoseHz)
	}
	if c.StatusHz != nil && (*c.StatusHz < 1 || *c.StatusHz > 60) {
		return fmt.Errorf("%w: status_hz must be between 1 and 60, got %d", ErrInvalid, *c.StatusHz)
	}
	if c.LapTimerHz != nil && (*c.LapTimerHz < 1 || *c.LapTimerHz > 50) {
		return fmt.Errorf("%w: lap_timer_hz must be between 1 and 50, got %d", ErrInvalid, *c.LapTimerHz)
	}

	if c.PhysicsStep != nil && *c.PhysicsStep != "" {
		d, err := time.ParseDuration(*c.PhysicsStep)
		if err != nil {
			return fmt.Errorf("%w: invalid physics_step '%s': %v", ErrInvalid, *c.PhysicsStep, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: physics_step must be positive, got %s", ErrInvalid, d)
		}
	}

	if c.EmergencyDecel != nil && *c.EmergencyDecel > 0 {
		return fmt.Errorf("%w: emergency_decel must not be positive, got %f", ErrInvalid, *c.EmergencyDecel)
	}

	if l, w, lane := c.GetTrackLength(), c.GetTrackWidth(), c.GetLaneWidth(); lane <= 0 || 2*lane >= l || 2*lane >= w {
		return fmt.Errorf("%w: lane_width %.2f does not fit a %.2fx%.2f track", ErrInvalid, lane, w, l)
	}

	if c.ForwardPort != nil && (*c.ForwardPort < 0 || *c.ForwardPort > 65535) {
		return fmt.Errorf("%w: forward_port out of range: %d", ErrInvalid, *c.ForwardPort)
	}

	return nil
}

// ScanGeometry builds the validated scan geometry.
func (c *Settings) ScanGeometry() (l2scan.Geometry, error) {
	return l2scan.GeometryFromDegrees(
		c.GetScanHorizontalSteps(),
		c.GetScanMinHAngleDeg(),
		c.GetScanMaxHAngleDeg(),
		c.GetScanRangeMin(),
		c.GetScanRangeMax(),
		c.GetScanCaptureHz(),
	)
}

// ScanPolicy returns the parsed no-return policy.
func (c *Settings) ScanPolicy() (l2scan.Policy, error) {
	return l2scan.ParsePolicy(c.GetScanNoReturnPolicy())
}
