// internal/protocol/decode.go
package protocol

import (
	"bytes"
	"encoding/json"
	"io"
)

// maxLineBytes bounds a single NDJSON line; longer lines count as parser
// errors
const maxLineBytes = 1 << 20

// ParseEventLine decodes one NDJSON line into an event
func ParseEventLine(line []byte) (LogEvent, error) {
	var ev LogEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return LogEvent{}, err
	}
	return ev, nil
}

// DecodeEvents reads either a JSON array of events or newline-delimited JSON.
// For NDJSON, lines that fail to decode or exceed maxLineBytes are skipped
// and counted as parser errors; a malformed JSON array fails as a whole.
func DecodeEvents(r io.Reader) ([]LogEvent, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var events []LogEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, 0, err
		}
		return events, 0, nil
	}

	var events []LogEvent
	var parserErrors int64
	for _, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if len(line) > maxLineBytes {
			parserErrors++
			continue
		}
		ev, err := ParseEventLine(line)
		if err != nil {
			parserErrors++
			continue
		}
		events = append(events, ev)
	}
	return events, parserErrors, nil
}

// DecodeBuckets reads a JSON array of event count buckets
func DecodeBuckets(r io.Reader) ([]EventCountBucket, error) {
	var buckets []EventCountBucket
	if err := json.NewDecoder(r).Decode(&buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}
