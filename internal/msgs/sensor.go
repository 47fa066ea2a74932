package msgs

// LaserScan mirrors sensor_msgs/LaserScan: a single scan from a planar
// range finder. Angles are measured counter-clockwise around +Z with zero
// forward along +X.
type LaserScan struct {
	Header         Header       `json:"header"`
	AngleMin       float32      `json:"angle_min"`       // start angle of the scan (rad)
	AngleMax       float32      `json:"angle_max"`       // end angle of the scan (rad)
	AngleIncrement float32      `json:"angle_increment"` // angular distance between measurements (rad)
	TimeIncrement  float32      `json:"time_increment"`  // time between measurements (s)
	ScanTime       float32      `json:"scan_time"`       // time between scans (s)
	RangeMin       float32      `json:"range_min"`       // minimum range value (m)
	RangeMax       float32      `json:"range_max"`       // maximum range value (m)
	Ranges         Float32Array `json:"ranges"`          // range data (m), NaN = no return
	Intensities    Float32Array `json:"intensities"`     // always empty for the simulated sensor
}

func (*LaserScan) TypeName() string     { return "sensor_msgs/msg/LaserScan" }
func (m *LaserScan) GetHeader() *Header { return &m.Header }

// Point mirrors geometry_msgs/Point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion mirrors geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose mirrors geometry_msgs/Pose.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// PoseStamped mirrors geometry_msgs/PoseStamped.
type PoseStamped struct {
	Header Header `json:"header"`
	Pose   Pose   `json:"pose"`
}

func (*PoseStamped) TypeName() string     { return "geometry_msgs/msg/PoseStamped" }
func (m *PoseStamped) GetHeader() *Header { return &m.Header }

// NewPoseStamped returns a pose with an identity orientation.
func NewPoseStamped(frameID string) *PoseStamped {
	return &PoseStamped{
		Header: Header{FrameID: frameID},
		Pose:   Pose{Orientation: Quaternion{W: 1}},
	}
}
