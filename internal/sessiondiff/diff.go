// internal/sessiondiff/diff.go
package sessiondiff

import (
	"sort"
	"time"

	"github.com/signalnine/blescope/internal/preview"
	"github.com/signalnine/blescope/internal/protocol"
)

// DefaultTolerance is the widest timestamp gap two events may be folded across
const DefaultTolerance = 300 * time.Millisecond

// Kind classifies a timeline slot
type Kind string

const (
	KindMatch Kind = "match"
	KindDiff  Kind = "diff"
	KindOnlyA Kind = "only_a"
	KindOnlyB Kind = "only_b"
)

// Options tune the diff
type Options struct {
	Tolerance     time.Duration
	PreviewLength int
}

// SideSummary counts one session's events
type SideSummary struct {
	EventCount int `json:"eventCount"`
	ErrorCount int `json:"errorCount"`
}

// Names partitions the distinct event names of both sides
type Names struct {
	Common  []string `json:"common"`
	OnlyInA []string `json:"onlyInA"`
	OnlyInB []string `json:"onlyInB"`
}

// SlotEvent is one side's event in a slot
type SlotEvent struct {
	EventName      string         `json:"eventName"`
	Level          protocol.Level `json:"level"`
	LevelLabel     string         `json:"levelLabel"`
	TimestampMs    int64          `json:"timestampMs"`
	PayloadPreview *string        `json:"payloadPreview"`
}

// Slot is one aligned timeline position
type Slot struct {
	TimestampMs int64      `json:"timestampMs"`
	Kind        Kind       `json:"kind"`
	A           *SlotEvent `json:"a"`
	B           *SlotEvent `json:"b"`
}

// Report is the session diff
type Report struct {
	A           SideSummary  `json:"a"`
	B           SideSummary  `json:"b"`
	Names       Names        `json:"names"`
	Timeline    []Slot       `json:"timeline"`
	KindCounts  map[Kind]int `json:"kindCounts"`
	ToleranceMs int64        `json:"toleranceMs"`
}

// Engine aligns two sessions
type Engine struct {
	opts Options
}

// NewEngine creates an Engine
func NewEngine(opts Options) *Engine {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	return &Engine{opts: opts}
}

// Diff compares two already-filtered sessions
func (e *Engine) Diff(a, b []protocol.LogEvent) (*Report, error) {
	if err := protocol.ValidateEvents(a); err != nil {
		return nil, err
	}
	if err := protocol.ValidateEvents(b); err != nil {
		return nil, err
	}

	a, b = byTime(a), byTime(b)
	rep := &Report{
		A:           summarizeSide(a),
		B:           summarizeSide(b),
		Names:       partition(a, b),
		ToleranceMs: e.opts.Tolerance.Milliseconds(),
		KindCounts:  map[Kind]int{KindMatch: 0, KindDiff: 0, KindOnlyA: 0, KindOnlyB: 0},
	}
	rep.Timeline = e.align(a, b)
	for _, s := range rep.Timeline {
		rep.KindCounts[s.Kind]++
	}
	return rep, nil
}

func byTime(evs []protocol.LogEvent) []protocol.LogEvent {
	out := append([]protocol.LogEvent(nil), evs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimestampMs < out[j].TimestampMs })
	return out
}

func summarizeSide(evs []protocol.LogEvent) SideSummary {
	s := SideSummary{EventCount: len(evs)}
	for _, ev := range evs {
		if ev.Level == protocol.LevelError {
			s.ErrorCount++
		}
	}
	return s
}

func partition(a, b []protocol.LogEvent) Names {
	inA := make(map[string]bool)
	for _, ev := range a {
		inA[ev.EventName] = true
	}
	inB := make(map[string]bool)
	for _, ev := range b {
		inB[ev.EventName] = true
	}

	n := Names{Common: []string{}, OnlyInA: []string{}, OnlyInB: []string{}}
	for name := range inA {
		if inB[name] {
			n.Common = append(n.Common, name)
		} else {
			n.OnlyInA = append(n.OnlyInA, name)
		}
	}
	for name := range inB {
		if !inA[name] {
			n.OnlyInB = append(n.OnlyInB, name)
		}
	}
	sort.Strings(n.Common)
	sort.Strings(n.OnlyInA)
	sort.Strings(n.OnlyInB)
	return n
}

type candidate struct {
	i, j     int
	gap      int64
	sameName bool
}

// align pairs events greedily by smallest timestamp gap within tolerance,
// preferring equal names on equal gaps. Each event is used at most once.
func (e *Engine) align(a, b []protocol.LogEvent) []Slot {
	tol := e.opts.Tolerance.Milliseconds()

	var cands []candidate
	start := 0
	for i, ea := range a {
		for start < len(b) && b[start].TimestampMs < ea.TimestampMs-tol {
			start++
		}
		for j := start; j < len(b) && b[j].TimestampMs <= ea.TimestampMs+tol; j++ {
			gap := ea.TimestampMs - b[j].TimestampMs
			if gap < 0 {
				gap = -gap
			}
			cands = append(cands, candidate{i: i, j: j, gap: gap, sameName: ea.EventName == b[j].EventName})
		}
	}
	sort.Slice(cands, func(x, y int) bool {
		cx, cy := cands[x], cands[y]
		if cx.gap != cy.gap {
			return cx.gap < cy.gap
		}
		if cx.sameName != cy.sameName {
			return cx.sameName
		}
		if cx.i != cy.i {
			return cx.i < cy.i
		}
		return cx.j < cy.j
	})

	pairA := make([]int, len(a))
	for i := range pairA {
		pairA[i] = -1
	}
	usedB := make([]bool, len(b))
	for _, c := range cands {
		if pairA[c.i] >= 0 || usedB[c.j] {
			continue
		}
		pairA[c.i] = c.j
		usedB[c.j] = true
	}

	slots := make([]Slot, 0, len(a)+len(b))
	for i, ea := range a {
		sa := e.slotEvent(ea)
		if j := pairA[i]; j >= 0 {
			sb := e.slotEvent(b[j])
			kind := KindDiff
			if ea.EventName == b[j].EventName {
				kind = KindMatch
			}
			slots = append(slots, Slot{TimestampMs: min(ea.TimestampMs, b[j].TimestampMs), Kind: kind, A: sa, B: sb})
			continue
		}
		slots = append(slots, Slot{TimestampMs: ea.TimestampMs, Kind: KindOnlyA, A: sa})
	}
	for j, eb := range b {
		if usedB[j] {
			continue
		}
		slots = append(slots, Slot{TimestampMs: eb.TimestampMs, Kind: KindOnlyB, B: e.slotEvent(eb)})
	}

	// Slots were appended A-ordered then B-ordered; a stable sort keeps that
	// order for equal timestamps.
	sort.SliceStable(slots, func(x, y int) bool { return slots[x].TimestampMs < slots[y].TimestampMs })
	return slots
}

func (e *Engine) slotEvent(ev protocol.LogEvent) *SlotEvent {
	return &SlotEvent{
		EventName:      ev.EventName,
		Level:          ev.Level,
		LevelLabel:     ev.Level.Label(),
		TimestampMs:    ev.TimestampMs,
		PayloadPreview: preview.Payload(ev.Payload, e.opts.PreviewLength),
	}
}
