package msgs

// Diagnostic levels.
const (
	DiagnosticOK    byte = 0
	DiagnosticWarn  byte = 1
	DiagnosticError byte = 2
	DiagnosticStale byte = 3
)

// KeyValue mirrors diagnostic_msgs/KeyValue.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// DiagnosticStatus mirrors diagnostic_msgs/DiagnosticStatus.
type DiagnosticStatus struct {
	Level      byte       `json:"level"`
	Name       string     `json:"name"`
	Message    string     `json:"message"`
	HardwareID string     `json:"hardware_id"`
	Values     []KeyValue `json:"values"`
}

// DiagnosticArray mirrors diagnostic_msgs/DiagnosticArray.
type DiagnosticArray struct {
	Header Header             `json:"header"`
	Status []DiagnosticStatus `json:"status"`
}

func (*DiagnosticArray) TypeName() string     { return "diagnostic_msgs/msg/DiagnosticArray" }
func (m *DiagnosticArray) GetHeader() *Header { return &m.Header }
