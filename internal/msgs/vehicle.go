package msgs

// Control modes reported by ControlModeReport.
const (
	ControlModeNoCommand  uint8 = 0
	ControlModeAutonomous uint8 = 1
	ControlModeManual     uint8 = 4
	ControlModeDisengaged uint8 = 5
	ControlModeNotReady   uint8 = 6
)

// Gear values shared by GearReport and GearCommand.
const (
	GearNone    uint8 = 0
	GearNeutral uint8 = 1
	GearDrive   uint8 = 2
	GearReverse uint8 = 20
	GearPark    uint8 = 22
	GearLow     uint8 = 23
)

// ControlModeReport mirrors autoware_auto_vehicle_msgs/ControlModeReport.
type ControlModeReport struct {
	Stamp Time  `json:"stamp"`
	Mode  uint8 `json:"mode"`
}

func (*ControlModeReport) TypeName() string {
	return "autoware_auto_vehicle_msgs/msg/ControlModeReport"
}

// GearReport mirrors autoware_auto_vehicle_msgs/GearReport.
type GearReport struct {
	Stamp  Time  `json:"stamp"`
	Report uint8 `json:"report"`
}

func (*GearReport) TypeName() string { return "autoware_auto_vehicle_msgs/msg/GearReport" }

// SteeringReport mirrors autoware_auto_vehicle_msgs/SteeringReport.
type SteeringReport struct {
	Stamp             Time    `json:"stamp"`
	SteeringTireAngle float32 `json:"steering_tire_angle"` // rad, positive left
}

func (*SteeringReport) TypeName() string { return "autoware_auto_vehicle_msgs/msg/SteeringReport" }

// VelocityReport mirrors autoware_auto_vehicle_msgs/VelocityReport.
type VelocityReport struct {
	Header               Header  `json:"header"`
	LongitudinalVelocity float32 `json:"longitudinal_velocity"`
	LateralVelocity      float32 `json:"lateral_velocity"`
	HeadingRate          float32 `json:"heading_rate"`
}

func (*VelocityReport) TypeName() string     { return "autoware_auto_vehicle_msgs/msg/VelocityReport" }
func (m *VelocityReport) GetHeader() *Header { return &m.Header }

// AckermannLateralCommand is the steering half of an Ackermann command.
type AckermannLateralCommand struct {
	Stamp                    Time    `json:"stamp"`
	SteeringTireAngle        float32 `json:"steering_tire_angle"`
	SteeringTireRotationRate float32 `json:"steering_tire_rotation_rate"`
}

// LongitudinalCommand is the speed half of an Ackermann command.
type LongitudinalCommand struct {
	Stamp        Time    `json:"stamp"`
	Speed        float32 `json:"speed"`
	Acceleration float32 `json:"acceleration"`
	Jerk         float32 `json:"jerk"`
}

// AckermannControlCommand mirrors autoware_auto_control_msgs/AckermannControlCommand.
type AckermannControlCommand struct {
	Stamp        Time                    `json:"stamp"`
	Lateral      AckermannLateralCommand `json:"lateral"`
	Longitudinal LongitudinalCommand     `json:"longitudinal"`
}

func (*AckermannControlCommand) TypeName() string {
	return "autoware_auto_control_msgs/msg/AckermannControlCommand"
}

// GearCommand mirrors autoware_auto_vehicle_msgs/GearCommand.
type GearCommand struct {
	Stamp   Time  `json:"stamp"`
	Command uint8 `json:"command"`
}

func (*GearCommand) TypeName() string { return "autoware_auto_vehicle_msgs/msg/GearCommand" }

// VehicleEmergencyStamped mirrors tier4_vehicle_msgs/VehicleEmergencyStamped.
type VehicleEmergencyStamped struct {
	Stamp     Time `json:"stamp"`
	Emergency bool `json:"emergency"`
}

func (*VehicleEmergencyStamped) TypeName() string {
	return "tier4_vehicle_msgs/msg/VehicleEmergencyStamped"
}
