// internal/protocol/validate.go
package protocol

import (
	"fmt"
	"strings"
)

// ValidateEvents checks the fields every event must carry.
func ValidateEvents(events []LogEvent) error {
	for i, ev := range events {
		if strings.TrimSpace(ev.EventName) == "" {
			return fmt.Errorf("%w: event %d: empty eventName", ErrMalformedInput, i)
		}
		if ev.Level <= 0 {
			return fmt.Errorf("%w: event %d (%s): level %d", ErrMalformedInput, i, ev.EventName, ev.Level)
		}
		if ev.TimestampMs < 0 {
			return fmt.Errorf("%w: event %d (%s): negative timestampMs", ErrMalformedInput, i, ev.EventName)
		}
	}
	return nil
}

// ValidateBuckets rejects negative counts and repeated (eventName, level) keys.
// Names are compared byte-for-byte: casing variants are distinct buckets.
func ValidateBuckets(buckets []EventCountBucket) error {
	type key struct {
		name  string
		level Level
	}
	seen := make(map[key]int, len(buckets))
	for i, b := range buckets {
		if b.EventName == "" {
			return fmt.Errorf("%w: bucket %d: empty eventName", ErrMalformedInput, i)
		}
		if b.Level <= 0 {
			return fmt.Errorf("%w: bucket %d (%s): level %d", ErrMalformedInput, i, b.EventName, b.Level)
		}
		if b.Count < 0 {
			return fmt.Errorf("%w: bucket %d (%s): negative count %d", ErrMalformedInput, i, b.EventName, b.Count)
		}
		k := key{b.EventName, b.Level}
		if prev, ok := seen[k]; ok {
			return fmt.Errorf("%w: bucket %d duplicates bucket %d (%s, level %d)", ErrMalformedInput, i, prev, b.EventName, b.Level)
		}
		seen[k] = i
	}
	return nil
}
