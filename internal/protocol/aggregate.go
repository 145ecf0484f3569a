// internal/protocol/aggregate.go
package protocol

import "sort"

// CountEvents builds the (eventName, level) histogram for a batch of events.
// Buckets are sorted by name then level.
func CountEvents(events []LogEvent) []EventCountBucket {
	type key struct {
		name  string
		level Level
	}
	counts := make(map[key]int64)
	for _, ev := range events {
		counts[key{ev.EventName, ev.Level}]++
	}

	buckets := make([]EventCountBucket, 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, EventCountBucket{EventName: k.name, Level: k.level, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].EventName != buckets[j].EventName {
			return buckets[i].EventName < buckets[j].EventName
		}
		return buckets[i].Level < buckets[j].Level
	})
	return buckets
}

// SessionKey returns the best available correlation key for an event:
// sessionId, then linkCode, then deviceMac. Events without any share "".
func SessionKey(ev LogEvent) string {
	for _, k := range []*string{ev.SessionID, ev.LinkCode, ev.DeviceMac} {
		if k != nil && *k != "" {
			return *k
		}
	}
	return ""
}
