// internal/agent/reader.go
package agent

import (
	"fmt"
	"os"
	"sort"

	"github.com/signalnine/blescope/internal/protocol"
)

// MaxEvents caps how many events one batch carries
const MaxEvents = 5000

// ReadEventFile decodes the event log at path. Lines that fail to decode or
// lack required fields are counted, not returned.
func ReadEventFile(path string) ([]protocol.LogEvent, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	events, parserErrors, err := protocol.DecodeEvents(f)
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}

	valid := events[:0]
	for _, ev := range events {
		if protocol.ValidateEvents([]protocol.LogEvent{ev}) != nil {
			parserErrors++
			continue
		}
		valid = append(valid, ev)
	}
	return valid, parserErrors, nil
}

// FilterNewEvents returns events newer than lastSeenMs in timestamp order,
// and the latest timestamp among them (lastSeenMs when none are new).
func FilterNewEvents(events []protocol.LogEvent, lastSeenMs int64) ([]protocol.LogEvent, int64) {
	var filtered []protocol.LogEvent
	latest := lastSeenMs

	for _, ev := range events {
		if ev.TimestampMs <= lastSeenMs {
			continue
		}
		filtered = append(filtered, ev)
		if ev.TimestampMs > latest {
			latest = ev.TimestampMs
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].TimestampMs < filtered[j].TimestampMs
	})
	return filtered, latest
}

// CapEvents returns at most MaxEvents from the end of the slice (most recent).
// Returns true if events were dropped.
func CapEvents(events []protocol.LogEvent) ([]protocol.LogEvent, bool) {
	if len(events) <= MaxEvents {
		return events, false
	}
	return events[len(events)-MaxEvents:], true
}
