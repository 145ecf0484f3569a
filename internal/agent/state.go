// internal/agent/state.go
package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// State is what the agent remembers between polls
type State struct {
	// LastTimestampMs is the newest event timestamp already shipped
	LastTimestampMs int64 `json:"lastTimestampMs"`
	// ParserErrors is the undecodable line count of the event file at the
	// last poll; only the growth is reported.
	ParserErrors int64 `json:"parserErrors"`
}

// ReadState reads the agent state from file.
// Returns the zero state if the file doesn't exist or is corrupt.
func ReadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		// Corrupt file - fresh start
		return State{}, nil
	}
	return st, nil
}

// WriteState writes the state file, creating parent directories if needed
func WriteState(path string, st State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}

	// Rename keeps the update atomic
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
