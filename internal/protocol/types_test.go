// internal/protocol/types_test.go
package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLevelLabel(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelInfo, "INFO"},
		{LevelDebug, "DEBUG"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{7, "L7"},
		{0, "L0"},
	}

	for _, tt := range tests {
		if got := tt.level.Label(); got != tt.want {
			t.Errorf("Level(%d).Label() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestValidateBuckets(t *testing.T) {
	ok := []EventCountBucket{
		{EventName: "BLE scan start", Level: 2, Count: 3},
		{EventName: "BLE scan start", Level: 3, Count: 1},
		{EventName: "ble scan start", Level: 2, Count: 1},
	}
	if err := ValidateBuckets(ok); err != nil {
		t.Fatalf("ValidateBuckets(valid) error: %v", err)
	}

	negative := []EventCountBucket{{EventName: "BLE scan start", Level: 2, Count: -1}}
	if err := ValidateBuckets(negative); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("negative count: err = %v, want ErrMalformedInput", err)
	}

	dup := []EventCountBucket{
		{EventName: "BLE scan start", Level: 2, Count: 1},
		{EventName: "BLE scan start", Level: 2, Count: 4},
	}
	err := ValidateBuckets(dup)
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("duplicate key: err = %v, want ErrMalformedInput", err)
	}
	if !strings.Contains(err.Error(), "duplicates bucket 0") {
		t.Errorf("duplicate key error = %q, want mention of bucket 0", err)
	}
}

func TestValidateEvents(t *testing.T) {
	tests := []struct {
		name    string
		ev      LogEvent
		wantErr bool
	}{
		{"valid", LogEvent{EventName: "BLE connected", Level: 1, TimestampMs: 10}, false},
		{"empty name", LogEvent{EventName: "  ", Level: 1}, true},
		{"zero level", LogEvent{EventName: "x", Level: 0}, true},
		{"negative timestamp", LogEvent{EventName: "x", Level: 1, TimestampMs: -5}, true},
	}

	for _, tt := range tests {
		err := ValidateEvents([]LogEvent{tt.ev})
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: ValidateEvents error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestDecodeEventsNDJSON(t *testing.T) {
	input := `{"eventName":"BLE scan start","level":2,"timestampMs":1}
not json
{"eventName":"BLE scan stop","level":2,"timestampMs":5,"op":"scan","result":"ok"}

`
	events, parserErrors, err := DecodeEvents(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeEvents error: %v", err)
	}
	if parserErrors != 1 {
		t.Errorf("parserErrors = %d, want 1", parserErrors)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if Deref(events[1].Result) != "ok" {
		t.Errorf("events[1].Result = %q, want ok", Deref(events[1].Result))
	}
}

func TestDecodeEventsOversizedLine(t *testing.T) {
	long := `{"eventName":"BLE notify","level":2,"timestampMs":2,"payload":"` + strings.Repeat("x", maxLineBytes) + `"}`
	input := `{"eventName":"BLE scan start","level":2,"timestampMs":1}` + "\n" +
		long + "\n" +
		`{"eventName":"BLE scan stop","level":2,"timestampMs":3}` + "\n"

	events, parserErrors, err := DecodeEvents(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeEvents error: %v", err)
	}
	if parserErrors != 1 {
		t.Errorf("parserErrors = %d, want 1", parserErrors)
	}
	if len(events) != 2 || events[1].EventName != "BLE scan stop" {
		t.Errorf("events = %+v, want scan start and scan stop", events)
	}
}

func TestDecodeEventsArray(t *testing.T) {
	input := ` [{"eventName":"A","level":1,"timestampMs":1},{"eventName":"B","level":4,"timestampMs":2}]`
	events, parserErrors, err := DecodeEvents(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeEvents error: %v", err)
	}
	if parserErrors != 0 || len(events) != 2 {
		t.Errorf("got %d events, %d parser errors; want 2, 0", len(events), parserErrors)
	}

	if _, _, err := DecodeEvents(strings.NewReader(`[{"eventName":`)); err == nil {
		t.Error("expected error for truncated JSON array")
	}
}

func TestCountEvents(t *testing.T) {
	events := []LogEvent{
		{EventName: "B", Level: 2},
		{EventName: "A", Level: 1},
		{EventName: "B", Level: 2},
		{EventName: "B", Level: 4},
	}
	want := []EventCountBucket{
		{EventName: "A", Level: 1, Count: 1},
		{EventName: "B", Level: 2, Count: 2},
		{EventName: "B", Level: 4, Count: 1},
	}
	if diff := cmp.Diff(want, CountEvents(events)); diff != "" {
		t.Errorf("CountEvents mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionKey(t *testing.T) {
	if got := SessionKey(LogEvent{LinkCode: Str("L1"), DeviceMac: Str("AA")}); got != "L1" {
		t.Errorf("SessionKey = %q, want L1", got)
	}
	if got := SessionKey(LogEvent{SessionID: Str(""), DeviceMac: Str("AA")}); got != "AA" {
		t.Errorf("SessionKey = %q, want AA", got)
	}
	if got := SessionKey(LogEvent{}); got != "" {
		t.Errorf("SessionKey = %q, want empty", got)
	}
}
