package stats

// HealthStatus follows the draft "Health Check Response Format for HTTP APIs".
type HealthStatus string

const (
	StatusPass HealthStatus = "pass"
	StatusWarn HealthStatus = "warn"
	StatusFail HealthStatus = "fail"
)

func (s HealthStatus) severity() int {
	switch s {
	case StatusFail:
		return 2
	case StatusWarn:
		return 1
	default:
		return 0
	}
}

// worst returns whichever of s and other is more severe.
func (s HealthStatus) worst(other HealthStatus) HealthStatus {
	if other.severity() > s.severity() {
		return other
	}
	return s
}

type Check struct {
	Status     HealthStatus `json:"status"`
	Observed   any          `json:"observedValue,omitempty"`
	ObservedAt string       `json:"observedAt,omitempty"`
	Output     string       `json:"output,omitempty"`
}

type HealthResponse struct {
	Status    HealthStatus       `json:"status"`
	Version   string             `json:"version,omitempty"`
	ServiceID string             `json:"serviceId,omitempty"`
	Checks    map[string][]Check `json:"checks,omitempty"`
}

// Checker is one component reported by the health endpoint.
type Checker interface {
	Name() string
	Check() Check
}
