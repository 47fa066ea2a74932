package config

import "time"

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func float64Or(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// GetScanTopic returns the scan_topic value or the default.
func (c *Settings) GetScanTopic() string { return stringOr(c.ScanTopic, "lidar/scan") }

// GetScanFrameID returns the scan_frame_id value or the default.
func (c *Settings) GetScanFrameID() string { return stringOr(c.ScanFrameID, "world") }

// GetScanMinHAngleDeg returns the scan_min_h_angle_deg value or the default.
func (c *Settings) GetScanMinHAngleDeg() float64 { return float64Or(c.ScanMinHAngleDeg, -135) }

// GetScanMaxHAngleDeg returns the scan_max_h_angle_deg value or the default.
func (c *Settings) GetScanMaxHAngleDeg() float64 { return float64Or(c.ScanMaxHAngleDeg, 135) }

// GetScanHorizontalSteps returns the scan_horizontal_steps value or the default.
func (c *Settings) GetScanHorizontalSteps() int { return intOr(c.ScanHorizontalSteps, 1081) }

// GetScanRangeMin returns the scan_range_min value or the default. The
// simulated sensor does not expose its minimum range, so 2cm is assumed.
func (c *Settings) GetScanRangeMin() float64 { return float64Or(c.ScanRangeMin, 0.02) }

// GetScanRangeMax returns the scan_range_max value or the default.
func (c *Settings) GetScanRangeMax() float64 { return float64Or(c.ScanRangeMax, 10) }

// GetScanCaptureHz returns the scan_capture_hz value or the default.
func (c *Settings) GetScanCaptureHz() float64 { return float64Or(c.ScanCaptureHz, 40) }

// GetScanNoReturnPolicy returns the scan_no_return_policy value or the default.
func (c *Settings) GetScanNoReturnPolicy() string { return stringOr(c.ScanNoReturnPolicy, "nan") }

// GetPoseTopic returns the pose_topic value or the default.
func (c *Settings) GetPoseTopic() string { return stringOr(c.PoseTopic, "/ground_truth/pose") }

// GetPoseFrameID returns the pose_frame_id value or the default.
func (c *Settings) GetPoseFrameID() string { return stringOr(c.PoseFrameID, "map") }

// GetPoseHz returns the pose_hz value or the default.
// Autoware's sensors basically output at 30Hz.
func (c *Settings) GetPoseHz() int { return intOr(c.PoseHz, 30) }

// GetStatusFrameID returns the status_frame_id value or the default.
func (c *Settings) GetStatusFrameID() string { return stringOr(c.StatusFrameID, "base_link") }

// GetStatusHz returns the status_hz value or the default.
func (c *Settings) GetStatusHz() int { return intOr(c.StatusHz, 30) }

// GetControlModeTopic returns the control_mode_topic value or the default.
func (c *Settings) GetControlModeTopic() string {
	return stringOr(c.ControlModeTopic, "/vehicle/status/control_mode")
}

// GetGearReportTopic returns the gear_report_topic value or the default.
func (c *Settings) GetGearReportTopic() string {
	return stringOr(c.GearReportTopic, "/vehicle/status/gear_status")
}

// GetSteeringReportTopic returns the steering_report_topic value or the default.
func (c *Settings) GetSteeringReportTopic() string {
	return stringOr(c.SteeringReportTopic, "/vehicle/status/steering_status")
}

// GetVelocityReportTopic returns the velocity_report_topic value or the default.
func (c *Settings) GetVelocityReportTopic() string {
	return stringOr(c.VelocityReportTopic, "/vehicle/status/velocity_status")
}

// GetLapTimerTopic returns the lap_timer_topic value or the default.
func (c *Settings) GetLapTimerTopic() string { return stringOr(c.LapTimerTopic, "/diagnostics") }

// GetLapTimerHz returns the lap_timer_hz value or the default.
func (c *Settings) GetLapTimerHz() int { return intOr(c.LapTimerHz, 30) }

// GetControlCommandTopic returns the control_command_topic value or the default.
func (c *Settings) GetControlCommandTopic() string {
	return stringOr(c.ControlCommandTopic, "/control/command/control_cmd")
}

// GetGearCommandTopic returns the gear_command_topic value or the default.
func (c *Settings) GetGearCommandTopic() string {
	return stringOr(c.GearCommandTopic, "/control/command/gear_cmd")
}

// GetEmergencyCommandTopic returns the emergency_command_topic value or the default.
func (c *Settings) GetEmergencyCommandTopic() string {
	return stringOr(c.EmergencyCommandTopic, "/control/command/emergency_cmd")
}

// GetEmergencyDecel returns the emergency_decel value or the default.
func (c *Settings) GetEmergencyDecel() float64 { return float64Or(c.EmergencyDecel, -3.0) }

// GetPhysicsStep parses and returns the physics_step as a time.Duration.
func (c *Settings) GetPhysicsStep() time.Duration {
	if c.PhysicsStep == nil || *c.PhysicsStep == "" {
		return 20 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.PhysicsStep)
	if err != nil || d <= 0 {
		return 20 * time.Millisecond // default on parse error
	}
	return d
}

// GetTrackLength returns the track_length value or the default.
func (c *Settings) GetTrackLength() float64 { return float64Or(c.TrackLength, 20) }

// GetTrackWidth returns the track_width value or the default.
func (c *Settings) GetTrackWidth() float64 { return float64Or(c.TrackWidth, 12) }

// GetLaneWidth returns the lane_width value or the default.
func (c *Settings) GetLaneWidth() float64 { return float64Or(c.LaneWidth, 3) }

// GetForwardAddr returns the forward_addr value or the default. Empty
// disables UDP forwarding.
func (c *Settings) GetForwardAddr() string { return stringOr(c.ForwardAddr, "") }

// GetForwardPort returns the forward_port value or the default.
func (c *Settings) GetForwardPort() int { return intOr(c.ForwardPort, 2370) }

// GetGRPCListen returns the grpc_listen value or the default. Empty disables
// the gRPC stream.
func (c *Settings) GetGRPCListen() string { return stringOr(c.GRPCListen, "localhost:50052") }

// GetRecorderDB returns the recorder_db value or the default. Empty disables
// recording.
func (c *Settings) GetRecorderDB() string { return stringOr(c.RecorderDB, "") }
