// internal/agent/reader_test.go
package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/blescope/internal/protocol"
)

func writeEventFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.ndjson")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadEventFile(t *testing.T) {
	path := writeEventFile(t, `{"eventName":"BLE scan start","level":2,"timestampMs":1000}
not json at all
{"eventName":"BLE scan stop","level":2,"timestampMs":2000,"sessionId":"s1"}

{"eventName":"","level":2,"timestampMs":3000}
{"eventName":"BLE device found","level":0,"timestampMs":4000}
`)

	events, parserErrors, err := ReadEventFile(path)
	if err != nil {
		t.Fatalf("ReadEventFile error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if parserErrors != 3 {
		t.Errorf("parserErrors = %d, want 3", parserErrors)
	}
	if protocol.Deref(events[1].SessionID) != "s1" {
		t.Errorf("SessionID = %v", events[1].SessionID)
	}
}

func TestReadEventFileSkipsOversizedLine(t *testing.T) {
	huge := `{"eventName":"BLE notify","level":2,"timestampMs":1500,"payload":"` + strings.Repeat("a", 2<<20) + `"}`
	path := writeEventFile(t, `{"eventName":"BLE scan start","level":2,"timestampMs":1000}`+"\n"+
		huge+"\n"+
		`{"eventName":"BLE scan stop","level":2,"timestampMs":2000}`+"\n")

	events, parserErrors, err := ReadEventFile(path)
	if err != nil {
		t.Fatalf("ReadEventFile error: %v", err)
	}
	if len(events) != 2 || events[1].TimestampMs != 2000 {
		t.Errorf("events = %d, want scan start and scan stop", len(events))
	}
	if parserErrors != 1 {
		t.Errorf("parserErrors = %d, want 1", parserErrors)
	}
}

func TestReadEventFileMissing(t *testing.T) {
	if _, _, err := ReadEventFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFilterNewEvents(t *testing.T) {
	events := []protocol.LogEvent{
		{EventName: "newest", Level: 1, TimestampMs: 3000},
		{EventName: "old", Level: 1, TimestampMs: 1000},
		{EventName: "newer", Level: 1, TimestampMs: 2000},
	}

	filtered, latest := FilterNewEvents(events, 2000)
	if len(filtered) != 1 || filtered[0].EventName != "newest" {
		t.Errorf("FilterNewEvents = %+v, want only newest", filtered)
	}
	if latest != 3000 {
		t.Errorf("latest = %d, want 3000", latest)
	}

	filtered, latest = FilterNewEvents(events, 0)
	if len(filtered) != 3 || filtered[0].EventName != "old" || filtered[2].EventName != "newest" {
		t.Errorf("FilterNewEvents not time ordered: %+v", filtered)
	}

	filtered, latest = FilterNewEvents(events, 5000)
	if len(filtered) != 0 || latest != 5000 {
		t.Errorf("nothing new: got %d events, latest %d", len(filtered), latest)
	}
}

func TestCapEvents(t *testing.T) {
	// Under limit - no truncation
	small := make([]protocol.LogEvent, 3)
	result, truncated := CapEvents(small)
	if truncated || len(result) != 3 {
		t.Errorf("CapEvents(3) = %d, %v", len(result), truncated)
	}

	// Over limit - truncate to most recent
	big := make([]protocol.LogEvent, MaxEvents+100)
	for i := range big {
		big[i] = protocol.LogEvent{EventName: fmt.Sprintf("ev-%d", i), Level: 1, TimestampMs: int64(i)}
	}
	result, truncated = CapEvents(big)
	if !truncated {
		t.Error("CapEvents did not truncate when over limit")
	}
	if len(result) != MaxEvents {
		t.Errorf("CapEvents returned %d events, want %d", len(result), MaxEvents)
	}
	if result[0].EventName != "ev-100" {
		t.Errorf("CapEvents kept wrong events, first = %q", result[0].EventName)
	}
}
