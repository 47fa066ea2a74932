package transport

import "fmt"

// Reliability mirrors the DDS reliability policy.
type Reliability int

const (
	BestEffort Reliability = iota
	Reliable
)

func (r Reliability) String() string {
	if r == Reliable {
		return "reliable"
	}
	return "best_effort"
}

// Durability mirrors the DDS durability policy.
type Durability int

const (
	Volatile Durability = iota
	TransientLocal
)

func (d Durability) String() string {
	if d == TransientLocal {
		return "transient_local"
	}
	return "volatile"
}

// History mirrors the DDS history policy. Only keep-last is supported.
type History int

const (
	KeepLast History = iota
)

// QoS is the delivery profile of a topic.
type QoS struct {
	Reliability Reliability `json:"reliability"`
	Durability  Durability  `json:"durability"`
	History     History     `json:"history"`
	Depth       int         `json:"depth"`
}

func (q QoS) String() string {
	return fmt.Sprintf("%s/%s/keep_last(%d)", q.Reliability, q.Durability, q.Depth)
}

// Profiles used by the publishers and subscribers in this module.
var (
	// ScanQoS is the sensor-data profile used for laser scans.
	ScanQoS = QoS{Reliability: BestEffort, Durability: Volatile, History: KeepLast, Depth: 5}
	// PoseQoS is used for the ground truth pose and the vehicle status reports.
	PoseQoS = QoS{Reliability: Reliable, Durability: Volatile, History: KeepLast, Depth: 10}
	// DiagnosticsQoS is used for the lap timer.
	DiagnosticsQoS = QoS{Reliability: Reliable, Durability: Volatile, History: KeepLast, Depth: 1}
	// CommandQoS is used for inbound control, gear and emergency commands.
	CommandQoS = QoS{Reliability: Reliable, Durability: TransientLocal, History: KeepLast, Depth: 1}
)
