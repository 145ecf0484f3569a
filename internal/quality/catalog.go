// internal/quality/catalog.go
package quality

import "github.com/signalnine/blescope/internal/protocol"

// RequiredEvent is a catalog entry: an event that must occur at a level
type RequiredEvent struct {
	EventName     string         `json:"eventName" yaml:"event_name"`
	ExpectedLevel protocol.Level `json:"expectedLevel" yaml:"expected_level"`
}

// PairCheck pairs a start event with the events that terminate it
type PairCheck struct {
	StartEventName     string   `json:"startEventName" yaml:"start"`
	TerminalEventNames []string `json:"terminalEventNames" yaml:"terminals"`
}

// DefaultCatalog returns the BLE lifecycle events every session should log
func DefaultCatalog() []RequiredEvent {
	return []RequiredEvent{
		{"SDK init start", protocol.LevelDebug},
		{"SDK init success", protocol.LevelDebug},
		{"BLE sdk info", protocol.LevelInfo},
		{"BLE current status value", protocol.LevelDebug},
		{"BLE scan start", protocol.LevelDebug},
		{"BLE scan stop", protocol.LevelDebug},
		{"BLE device found", protocol.LevelDebug},
		{"BLE connect start", protocol.LevelDebug},
		{"BLE connected", protocol.LevelInfo},
		{"BLE services discovered", protocol.LevelDebug},
		{"BLE command send", protocol.LevelDebug},
		{"BLE command response", protocol.LevelDebug},
		{"BLE disconnect", protocol.LevelWarn},
	}
}

// DefaultPairs returns the start/terminal pairs checked for pending starts
func DefaultPairs() []PairCheck {
	return []PairCheck{
		{"BLE scan start", []string{"BLE scan stop", "BLE scan timeout"}},
		{"BLE connect start", []string{"BLE connected", "BLE connect failed", "BLE connect timeout"}},
		{"BLE command send", []string{"BLE command response", "BLE command timeout", "BLE command error"}},
	}
}
