// internal/render/render_test.go
package render

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/signalnine/blescope/internal/analysis"
	"github.com/signalnine/blescope/internal/config"
	"github.com/signalnine/blescope/internal/protocol"
)

func batch() []protocol.LogEvent {
	ev := func(name string, level protocol.Level, ts int64, req string) protocol.LogEvent {
		e := protocol.LogEvent{EventName: name, Level: level, TimestampMs: ts, SessionID: protocol.Str("s1")}
		if req != "" {
			e.RequestID = protocol.Str(req)
		}
		return e
	}
	return []protocol.LogEvent{
		ev("BLE scan start", 2, 0, ""),
		ev("BLE scan stop", 2, 1200, ""),
		ev("BLE command send", 2, 2000, "r1"),
		ev("BLE command response", 2, 2450, "r1"),
		ev("BLE command send", 2, 3000, "r2"),
		ev("BLE command error", 4, 3100, "r2"),
	}
}

func bundle(t *testing.T) *analysis.Bundle {
	t.Helper()
	b, err := analysis.NewSuite(config.AnalysisConfig{}).Run(context.Background(), analysis.Input{Events: batch(), ParserErrors: 1234})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return b
}

func TestQualityTable(t *testing.T) {
	var buf bytes.Buffer
	if err := Quality(&buf, ASCII, bundle(t).Quality); err != nil {
		t.Fatalf("Quality: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"BLE scan start", "missing", "ok", "1,234", "Pair checks", "───"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAnomaliesTable(t *testing.T) {
	var buf bytes.Buffer
	if err := Anomalies(&buf, ASCII, bundle(t).Anomalies); err != nil {
		t.Fatalf("Anomalies: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"command_failure", "LOW", "Recommendations:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestChainsTable(t *testing.T) {
	var buf bytes.Buffer
	if err := Chains(&buf, ASCII, bundle(t).Chains); err != nil {
		t.Fatalf("Chains: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Slowest chains", "r1", "450ms", "success", "error"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDiffMarkdown(t *testing.T) {
	a := batch()
	b := batch()[:3]
	rep, err := analysis.NewSuite(config.AnalysisConfig{}).Diff(a, b)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	var buf bytes.Buffer
	if err := Diff(&buf, Markdown, rep); err != nil {
		t.Fatalf("Diff: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"| A", "only_a", "match", "DEBUG BLE scan start"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBundle(t *testing.T) {
	var buf bytes.Buffer
	if err := Bundle(&buf, ASCII, bundle(t)); err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Required events", "Anomalies", "Command chains"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestParseMode(t *testing.T) {
	if ParseMode("markdown") != Markdown || ParseMode("md") != Markdown {
		t.Error("markdown not parsed")
	}
	if ParseMode("table") != ASCII || ParseMode("") != ASCII {
		t.Error("default should be ASCII")
	}
}
