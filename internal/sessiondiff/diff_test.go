// internal/sessiondiff/diff_test.go
package sessiondiff

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/signalnine/blescope/internal/protocol"
)

func ev(name string, level protocol.Level, ts int64) protocol.LogEvent {
	return protocol.LogEvent{EventName: name, Level: level, TimestampMs: ts}
}

type slotShape struct {
	Kind Kind
	A, B string
	Ts   int64
}

func shapes(slots []Slot) []slotShape {
	out := make([]slotShape, 0, len(slots))
	for _, s := range slots {
		sh := slotShape{Kind: s.Kind, Ts: s.TimestampMs}
		if s.A != nil {
			sh.A = s.A.EventName
		}
		if s.B != nil {
			sh.B = s.B.EventName
		}
		out = append(out, sh)
	}
	return out
}

func TestIdenticalSessionsAllMatch(t *testing.T) {
	session := []protocol.LogEvent{
		ev("BLE scan start", 2, 0),
		ev("BLE device found", 2, 150),
		ev("BLE connect start", 2, 400),
		ev("BLE connected", 1, 900),
	}

	rep, err := NewEngine(Options{}).Diff(session, session)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	for _, s := range rep.Timeline {
		if s.Kind != KindMatch {
			t.Errorf("slot at %d: kind = %s, want match", s.TimestampMs, s.Kind)
		}
	}
	if rep.KindCounts[KindMatch] != 4 {
		t.Errorf("match count = %d, want 4", rep.KindCounts[KindMatch])
	}
	if len(rep.Names.OnlyInA) != 0 || len(rep.Names.OnlyInB) != 0 {
		t.Errorf("names = %+v, want all common", rep.Names)
	}
	if len(rep.Names.Common) != 4 {
		t.Errorf("common = %v, want 4 names", rep.Names.Common)
	}
}

func TestDiffAlignment(t *testing.T) {
	a := []protocol.LogEvent{
		ev("BLE scan start", 2, 1000),
		ev("BLE connect start", 2, 2000),
		ev("BLE connected", 1, 2500),
		ev("BLE services discovered", 2, 4000),
	}
	b := []protocol.LogEvent{
		ev("BLE scan start", 2, 1100),
		ev("BLE connect start", 2, 2050),
		ev("BLE connect failed", 4, 2600),
		ev("BLE disconnect", 3, 9000),
	}

	rep, err := NewEngine(Options{}).Diff(a, b)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	want := []slotShape{
		{Kind: KindMatch, A: "BLE scan start", B: "BLE scan start", Ts: 1000},
		{Kind: KindMatch, A: "BLE connect start", B: "BLE connect start", Ts: 2000},
		{Kind: KindDiff, A: "BLE connected", B: "BLE connect failed", Ts: 2500},
		{Kind: KindOnlyA, A: "BLE services discovered", Ts: 4000},
		{Kind: KindOnlyB, B: "BLE disconnect", Ts: 9000},
	}
	if diff := cmp.Diff(want, shapes(rep.Timeline)); diff != "" {
		t.Errorf("timeline mismatch (-want +got):\n%s", diff)
	}

	if rep.A != (SideSummary{EventCount: 4}) {
		t.Errorf("A summary = %+v", rep.A)
	}
	if rep.B != (SideSummary{EventCount: 4, ErrorCount: 1}) {
		t.Errorf("B summary = %+v", rep.B)
	}

	wantNames := Names{
		Common:  []string{"BLE connect start", "BLE scan start"},
		OnlyInA: []string{"BLE connected", "BLE services discovered"},
		OnlyInB: []string{"BLE connect failed", "BLE disconnect"},
	}
	if diff := cmp.Diff(wantNames, rep.Names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if rep.ToleranceMs != 300 {
		t.Errorf("ToleranceMs = %d, want 300", rep.ToleranceMs)
	}
}

func TestDiffToleranceBoundary(t *testing.T) {
	a := []protocol.LogEvent{ev("X", 1, 1000)}

	inside := []protocol.LogEvent{ev("X", 1, 1300)}
	rep, _ := NewEngine(Options{}).Diff(a, inside)
	if got := shapes(rep.Timeline); len(got) != 1 || got[0].Kind != KindMatch {
		t.Errorf("gap == tolerance: timeline = %+v, want one match", got)
	}

	outside := []protocol.LogEvent{ev("X", 1, 1301)}
	rep, _ = NewEngine(Options{}).Diff(a, outside)
	want := []slotShape{
		{Kind: KindOnlyA, A: "X", Ts: 1000},
		{Kind: KindOnlyB, B: "X", Ts: 1301},
	}
	if diff := cmp.Diff(want, shapes(rep.Timeline)); diff != "" {
		t.Errorf("gap > tolerance mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffPrefersNearestThenSameName(t *testing.T) {
	// Two B events equidistant from A; the same-named one wins.
	a := []protocol.LogEvent{ev("connect", 2, 1000)}
	b := []protocol.LogEvent{
		ev("scan", 2, 900),
		ev("connect", 2, 1100),
	}
	rep, _ := NewEngine(Options{}).Diff(a, b)
	want := []slotShape{
		{Kind: KindOnlyB, B: "scan", Ts: 900},
		{Kind: KindMatch, A: "connect", B: "connect", Ts: 1000},
	}
	if diff := cmp.Diff(want, shapes(rep.Timeline)); diff != "" {
		t.Errorf("equal gap mismatch (-want +got):\n%s", diff)
	}

	// A strictly closer event wins even with a different name.
	b = []protocol.LogEvent{
		ev("scan", 2, 990),
		ev("connect", 2, 1100),
	}
	rep, _ = NewEngine(Options{}).Diff(a, b)
	want = []slotShape{
		{Kind: KindDiff, A: "connect", B: "scan", Ts: 990},
		{Kind: KindOnlyB, B: "connect", Ts: 1100},
	}
	if diff := cmp.Diff(want, shapes(rep.Timeline)); diff != "" {
		t.Errorf("nearest mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffEachEventUsedOnce(t *testing.T) {
	a := []protocol.LogEvent{ev("X", 1, 1000), ev("X", 1, 1010)}
	b := []protocol.LogEvent{ev("X", 1, 1005)}

	rep, _ := NewEngine(Options{}).Diff(a, b)
	if rep.KindCounts[KindMatch] != 1 || rep.KindCounts[KindOnlyA] != 1 {
		t.Errorf("kind counts = %v, want 1 match and 1 only_a", rep.KindCounts)
	}
}

func TestDiffCustomTolerance(t *testing.T) {
	a := []protocol.LogEvent{ev("X", 1, 0)}
	b := []protocol.LogEvent{ev("X", 1, 2000)}

	rep, _ := NewEngine(Options{Tolerance: 2 * time.Second}).Diff(a, b)
	if rep.KindCounts[KindMatch] != 1 {
		t.Errorf("kind counts = %v, want one match", rep.KindCounts)
	}
	if rep.ToleranceMs != 2000 {
		t.Errorf("ToleranceMs = %d, want 2000", rep.ToleranceMs)
	}
}

func TestDiffPayloadPreview(t *testing.T) {
	a := []protocol.LogEvent{{EventName: "X", Level: 1, TimestampMs: 0, Payload: json.RawMessage(`{"rssi":-70}`)}}
	rep, _ := NewEngine(Options{}).Diff(a, nil)

	got := rep.Timeline[0].A
	if got.PayloadPreview == nil || *got.PayloadPreview != `{"rssi":-70}` {
		t.Errorf("PayloadPreview = %v", got.PayloadPreview)
	}
	if got.LevelLabel != "INFO" {
		t.Errorf("LevelLabel = %q, want INFO", got.LevelLabel)
	}
}

func TestDiffEmpty(t *testing.T) {
	rep, err := NewEngine(Options{}).Diff(nil, nil)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	b, err := json.Marshal(rep)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"a":{"eventCount":0,"errorCount":0},"b":{"eventCount":0,"errorCount":0},` +
		`"names":{"common":[],"onlyInA":[],"onlyInB":[]},"timeline":[],` +
		`"kindCounts":{"diff":0,"match":0,"only_a":0,"only_b":0},"toleranceMs":300}`
	if string(b) != want {
		t.Errorf("json =\n%s\nwant\n%s", b, want)
	}
}

func TestDiffMalformed(t *testing.T) {
	bad := []protocol.LogEvent{{EventName: "", Level: 1}}
	if _, err := NewEngine(Options{}).Diff(bad, nil); !errors.Is(err, protocol.ErrMalformedInput) {
		t.Errorf("err = %v, want ErrMalformedInput", err)
	}
	if _, err := NewEngine(Options{}).Diff(nil, bad); !errors.Is(err, protocol.ErrMalformedInput) {
		t.Errorf("err = %v, want ErrMalformedInput", err)
	}
}

func TestDiffInputOrderIndependent(t *testing.T) {
	a := []protocol.LogEvent{ev("B", 1, 200), ev("A", 1, 100)}
	b := []protocol.LogEvent{ev("A", 1, 110), ev("B", 1, 190)}

	rep, _ := NewEngine(Options{}).Diff(a, b)
	want := []slotShape{
		{Kind: KindMatch, A: "A", B: "A", Ts: 100},
		{Kind: KindMatch, A: "B", B: "B", Ts: 190},
	}
	if diff := cmp.Diff(want, shapes(rep.Timeline)); diff != "" {
		t.Errorf("timeline mismatch (-want +got):\n%s", diff)
	}
}
