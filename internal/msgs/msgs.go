// Package msgs defines the telemetry messages simbridge publishes and the
// command messages it consumes. Field sets and JSON names follow the ROS 2
// message definitions the downstream robotics stack expects.
package msgs

import "time"

// Message is implemented by every telemetry or command message.
type Message interface {
	// TypeName returns the ROS type name, e.g. "sensor_msgs/msg/LaserScan".
	TypeName() string
}

// Stamped is implemented by messages that carry a std_msgs Header.
type Stamped interface {
	Message
	GetHeader() *Header
}

// Time mirrors builtin_interfaces/Time.
type Time struct {
	Sec     int32  `json:"sec"`
	Nanosec uint32 `json:"nanosec"`
}

// TimeFrom converts t to a message time.
func TimeFrom(t time.Time) Time {
	return Time{Sec: int32(t.Unix()), Nanosec: uint32(t.Nanosecond())}
}

// AsTime converts back to a time.Time in UTC.
func (t Time) AsTime() time.Time {
	return time.Unix(int64(t.Sec), int64(t.Nanosec)).UTC()
}

// UnixNano returns the stamp as nanoseconds since the Unix epoch.
func (t Time) UnixNano() int64 {
	return int64(t.Sec)*int64(time.Second) + int64(t.Nanosec)
}

// Header mirrors std_msgs/Header.
type Header struct {
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// SetStamp writes t into the header.
func (h *Header) SetStamp(t time.Time) {
	h.Stamp = TimeFrom(t)
}
