// internal/collector/db_test.go
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/signalnine/blescope/internal/protocol"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testBatch(source, session string, base int64) *protocol.EventBatch {
	return &protocol.EventBatch{
		Source:       source,
		Timestamp:    time.Date(2026, 2, 3, 12, 30, 0, 0, time.UTC),
		ParserErrors: 2,
		Events: []protocol.LogEvent{
			{
				EventName:   "BLE connect start",
				Level:       protocol.LevelDebug,
				Stage:       protocol.Str("ble"),
				Op:          protocol.Str("connect"),
				Result:      protocol.Str("start"),
				TimestampMs: base,
				SessionID:   protocol.Str(session),
				DeviceMac:   protocol.Str("AA:BB:CC:DD:EE:FF"),
			},
			{
				EventName:   "BLE connected",
				Level:       protocol.LevelInfo,
				TimestampMs: base + 800,
				SessionID:   protocol.Str(session),
				Payload:     json.RawMessage(`{"rssi":-61}`),
			},
			{
				EventName:   "BLE connected",
				Level:       protocol.LevelInfo,
				TimestampMs: base + 900,
				SessionID:   protocol.Str(session),
			},
		},
	}
}

func TestDBInsertAndQuery(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	batch := testBatch("phone-1", "s1", 1000)
	id, err := db.InsertBatch(ctx, batch)
	if err != nil {
		t.Fatalf("InsertBatch error: %v", err)
	}
	if id <= 0 {
		t.Errorf("batch id = %d, want > 0", id)
	}

	events, err := db.QueryEvents(ctx, Filter{Source: "phone-1"}, 0)
	if err != nil {
		t.Fatalf("QueryEvents error: %v", err)
	}
	if diff := cmp.Diff(batch.Events, events); diff != "" {
		t.Errorf("stored events mismatch (-want +got):\n%s", diff)
	}
}

func TestDBFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.InsertBatch(ctx, testBatch("phone-1", "s1", 1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertBatch(ctx, testBatch("phone-2", "s2", 5000)); err != nil {
		t.Fatal(err)
	}

	from, to := int64(1500), int64(5000)
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 6},
		{"source", Filter{Source: "phone-2"}, 3},
		{"session", Filter{SessionID: "s1"}, 3},
		{"device", Filter{DeviceMac: "AA:BB:CC:DD:EE:FF"}, 2},
		{"link code", Filter{LinkCode: "nope"}, 0},
		{"time range", Filter{FromMs: &from, ToMs: &to}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := db.QueryEvents(ctx, tt.filter, 0)
			if err != nil {
				t.Fatalf("QueryEvents error: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("got %d events, want %d", len(events), tt.want)
			}
		})
	}
}

func TestDBRowLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, err := db.InsertBatch(ctx, testBatch("phone-1", "s1", 1000)); err != nil {
		t.Fatal(err)
	}

	if _, err := db.QueryEvents(ctx, Filter{}, 3); err != nil {
		t.Errorf("limit == rows: err = %v, want nil", err)
	}
	if _, err := db.QueryEvents(ctx, Filter{}, 2); !errors.Is(err, ErrTooManyRows) {
		t.Errorf("limit < rows: err = %v, want ErrTooManyRows", err)
	}
}

func TestDBEventCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, err := db.InsertBatch(ctx, testBatch("phone-1", "s1", 1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertBatch(ctx, testBatch("phone-2", "s2", 5000)); err != nil {
		t.Fatal(err)
	}

	got, err := db.EventCounts(ctx, Filter{Source: "phone-1"})
	if err != nil {
		t.Fatalf("EventCounts error: %v", err)
	}
	want := []protocol.EventCountBucket{
		{EventName: "BLE connect start", Level: protocol.LevelDebug, Count: 1},
		{EventName: "BLE connected", Level: protocol.LevelInfo, Count: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EventCounts mismatch (-want +got):\n%s", diff)
	}
}

func TestDBParserErrorsAndSources(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, err := db.InsertBatch(ctx, testBatch("phone-1", "s1", 1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertBatch(ctx, testBatch("phone-1", "s3", 2000)); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertBatch(ctx, testBatch("phone-2", "s2", 5000)); err != nil {
		t.Fatal(err)
	}

	if n, _ := db.ParserErrorCount(ctx, Filter{Source: "phone-1"}); n != 4 {
		t.Errorf("ParserErrorCount(phone-1) = %d, want 4", n)
	}
	if n, _ := db.ParserErrorCount(ctx, Filter{}); n != 6 {
		t.Errorf("ParserErrorCount(all) = %d, want 6", n)
	}
	if n, _ := db.ParserErrorCount(ctx, Filter{Source: "unknown"}); n != 0 {
		t.Errorf("ParserErrorCount(unknown) = %d, want 0", n)
	}


	// Event-level filters count only the batches that carried matching events
	from := int64(2500)
	scoped := []struct {
		name   string
		filter Filter
		want   int64
	}{
		{"session", Filter{SessionID: "s1"}, 2},
		{"source and session", Filter{Source: "phone-1", SessionID: "s3"}, 2},
		{"no matching events", Filter{SessionID: "nope"}, 0},
		{"time range", Filter{FromMs: &from}, 4},
	}
	for _, tt := range scoped {
		if n, err := db.ParserErrorCount(ctx, tt.filter); err != nil || n != tt.want {
			t.Errorf("ParserErrorCount(%s) = %d, %v; want %d", tt.name, n, err, tt.want)
		}
	}

	counts, err := db.SourceCounts(ctx)
	if err != nil {
		t.Fatalf("SourceCounts error: %v", err)
	}
	if counts["phone-1"] != 6 || counts["phone-2"] != 3 {
		t.Errorf("SourceCounts = %v", counts)
	}
}
