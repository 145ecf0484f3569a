// internal/protocol/types.go
package protocol

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// ErrMalformedInput marks input that violates a documented invariant.
// Reports built from such input are rejected as a whole.
var ErrMalformedInput = errors.New("malformed input")

// Level is the severity of a log event
type Level int

const (
	LevelInfo  Level = 1
	LevelDebug Level = 2
	LevelWarn  Level = 3
	LevelError Level = 4
)

// Levels lists the known levels in report order
var Levels = []Level{LevelInfo, LevelDebug, LevelWarn, LevelError}

// Label returns the display label; unknown levels render as L<n>
func (l Level) Label() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "L" + strconv.Itoa(int(l))
	}
}

// Key is the string form used as a countsByLevel key ("1".."4")
func (l Level) Key() string {
	return strconv.Itoa(int(l))
}

// LogEvent is a single decoded device/SDK log event
type LogEvent struct {
	EventName   string          `json:"eventName"`
	Level       Level           `json:"level"`
	Stage       *string         `json:"stage"`
	Op          *string         `json:"op"`
	Result      *string         `json:"result"`
	TimestampMs int64           `json:"timestampMs"`
	SessionID   *string         `json:"sessionId"`
	LinkCode    *string         `json:"linkCode"`
	DeviceMac   *string         `json:"deviceMac"`
	RequestID   *string         `json:"requestId"`
	Payload     json.RawMessage `json:"payload"`
}

// EventCountBucket is a pre-aggregated (eventName, level) histogram entry
type EventCountBucket struct {
	EventName string `json:"eventName"`
	Level     Level  `json:"level"`
	Count     int64  `json:"count"`
}

// EventBatch is sent from agent to collector
type EventBatch struct {
	Source       string     `json:"source"`
	Timestamp    time.Time  `json:"timestamp"`
	ParserErrors int64      `json:"parserErrors"`
	Events       []LogEvent `json:"events"`
}

// Str returns a pointer to s, for building events in code
func Str(s string) *string {
	return &s
}

// Deref returns the pointed-to string or "" for nil
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
