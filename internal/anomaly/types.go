// internal/anomaly/types.go
package anomaly

import "github.com/signalnine/blescope/internal/protocol"

// Type identifies an anomaly pattern
type Type string

const (
	TypeFrequentDisconnect Type = "frequent_disconnect"
	TypeTimeoutRetry       Type = "timeout_retry"
	TypeErrorBurst         Type = "error_burst"
	TypeSlowConnection     Type = "slow_connection"
	TypeCommandFailure     Type = "command_failure"
)

// Types lists every anomaly type in detection order
var Types = []Type{
	TypeFrequentDisconnect,
	TypeTimeoutRetry,
	TypeErrorBurst,
	TypeSlowConnection,
	TypeCommandFailure,
}

// Severity bucket lower bounds (inclusive)
const (
	SeverityCritical = 5
	SeverityHigh     = 4
	SeverityMedium   = 3
	SeverityLow      = 2
)

// Sample is a contributing event attached to a finding
type Sample struct {
	EventName      string         `json:"eventName"`
	Level          protocol.Level `json:"level"`
	TimestampMs    int64          `json:"timestampMs"`
	SessionKey     string         `json:"sessionKey"`
	PayloadPreview *string        `json:"payloadPreview"`
}

// Finding is one detected anomaly
type Finding struct {
	Type             Type     `json:"type"`
	Severity         int      `json:"severity"`
	Description      string   `json:"description"`
	Suggestion       string   `json:"suggestion"`
	Occurrences      int      `json:"occurrences"`
	AffectedSessions []string `json:"affectedSessions"`
	TimeWindowMs     int64    `json:"timeWindowMs"`
	Samples          []Sample `json:"samples"`
}

// Summary counts findings by severity bucket
type Summary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Report is the anomaly report
type Report struct {
	Findings        []Finding `json:"findings"`
	Summary         Summary   `json:"summary"`
	Recommendations []string  `json:"recommendations"`
}

var suggestions = map[Type]string{
	TypeFrequentDisconnect: "Check signal strength, connection interval and supervision timeout for the affected links.",
	TypeTimeoutRetry:       "Commands are timing out and being retried; review command timeouts and device responsiveness.",
	TypeErrorBurst:         "Inspect the first error of each burst; later errors are usually fallout.",
	TypeSlowConnection:     "Connection setup is slow; check advertising interval, scan parameters and device load.",
	TypeCommandFailure:     "Review the failing command handlers and the device firmware's error responses.",
}
