// internal/quality/report.go
package quality

import (
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/cases"

	"github.com/signalnine/blescope/internal/protocol"
)

// Status of a required event row
type Status string

const (
	StatusOK            Status = "ok"
	StatusLevelMismatch Status = "level_mismatch"
	StatusNameMismatch  Status = "name_mismatch"
	StatusMissing       Status = "missing"
)

// Row is the compliance result for one required event
type Row struct {
	EventName          string           `json:"eventName"`
	ExpectedLevel      protocol.Level   `json:"expectedLevel"`
	ExpectedLevelLabel string           `json:"expectedLevelLabel"`
	Status             Status           `json:"status"`
	TotalCount         int64            `json:"totalCount"`
	ExpectedLevelCount int64            `json:"expectedLevelCount"`
	CountsByLevel      map[string]int64 `json:"countsByLevel"`
	MatchedEventNames  []string         `json:"matchedEventNames"`
}

// PairResult is the outcome of one pair check
type PairResult struct {
	StartEventName     string   `json:"startEventName"`
	TerminalEventNames []string `json:"terminalEventNames"`
	StartCount         int64    `json:"startCount"`
	TerminalCount      int64    `json:"terminalCount"`
	PendingCount       int64    `json:"pendingCount"`
}

// Summary aggregates the rows of a report
type Summary struct {
	RequiredTotal      int   `json:"requiredTotal"`
	OKTotal            int   `json:"okTotal"`
	LevelMismatchTotal int   `json:"levelMismatchTotal"`
	NameMismatchTotal  int   `json:"nameMismatchTotal"`
	MissingTotal       int   `json:"missingTotal"`
	BucketTotal        int64 `json:"bucketTotal"`
	ParserErrorCount   int64 `json:"parserErrorCount"`
}

// Report is the BLE quality report
type Report struct {
	Rows      []Row           `json:"rows"`
	Pairs     []PairResult    `json:"pairs"`
	Summary   Summary         `json:"summary"`
	Reference json.RawMessage `json:"reference"`
}

// Reporter checks event histograms against a required-event catalog.
// Its tables are copied at construction and never modified.
type Reporter struct {
	catalog []RequiredEvent
	pairs   []PairCheck
}

// NewReporter creates a Reporter; nil tables select the defaults.
func NewReporter(catalog []RequiredEvent, pairs []PairCheck) *Reporter {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if pairs == nil {
		pairs = DefaultPairs()
	}
	return &Reporter{
		catalog: append([]RequiredEvent(nil), catalog...),
		pairs:   append([]PairCheck(nil), pairs...),
	}
}

// Catalog returns a copy of the required-event catalog
func (r *Reporter) Catalog() []RequiredEvent {
	return append([]RequiredEvent(nil), r.catalog...)
}

// Build produces the quality report. reference is echoed back verbatim and
// may be nil. Malformed buckets fail the whole report.
func (r *Reporter) Build(buckets []protocol.EventCountBucket, parserErrors int64, reference json.RawMessage) (*Report, error) {
	if err := protocol.ValidateBuckets(buckets); err != nil {
		return nil, err
	}
	if parserErrors < 0 {
		return nil, fmt.Errorf("%w: negative parser error count %d", protocol.ErrMalformedInput, parserErrors)
	}

	if len(reference) > 0 && !json.Valid(reference) {
		return nil, fmt.Errorf("%w: reference is not valid JSON", protocol.ErrMalformedInput)
	}

	idx := newIndex(buckets)

	rep := &Report{
		Rows:      make([]Row, 0, len(r.catalog)),
		Pairs:     make([]PairResult, 0, len(r.pairs)),
		Reference: normalizeReference(reference),
	}
	for _, req := range r.catalog {
		rep.Rows = append(rep.Rows, idx.row(req))
	}
	for _, pc := range r.pairs {
		rep.Pairs = append(rep.Pairs, idx.pair(pc))
	}

	rep.Summary = summarize(rep.Rows)
	rep.Summary.ParserErrorCount = parserErrors
	for _, b := range buckets {
		rep.Summary.BucketTotal += b.Count
	}
	return rep, nil
}

// index groups buckets by folded name for case-insensitive lookup
type index struct {
	byFold map[string][]protocol.EventCountBucket
}

func fold(s string) string {
	return cases.Fold().String(s)
}

func newIndex(buckets []protocol.EventCountBucket) *index {
	idx := &index{byFold: make(map[string][]protocol.EventCountBucket)}
	for _, b := range buckets {
		k := fold(b.EventName)
		idx.byFold[k] = append(idx.byFold[k], b)
	}
	return idx
}

func (idx *index) total(name string) int64 {
	var n int64
	for _, b := range idx.byFold[fold(name)] {
		n += b.Count
	}
	return n
}

func (idx *index) row(req RequiredEvent) Row {
	row := Row{
		EventName:          req.EventName,
		ExpectedLevel:      req.ExpectedLevel,
		ExpectedLevelLabel: req.ExpectedLevel.Label(),
		CountsByLevel:      make(map[string]int64, len(protocol.Levels)),
		MatchedEventNames:  []string{},
	}
	for _, l := range protocol.Levels {
		row.CountsByLevel[l.Key()] = 0
	}

	matched := idx.byFold[fold(req.EventName)]
	exact := false
	names := make(map[string]bool)
	for _, b := range matched {
		row.TotalCount += b.Count
		if _, known := row.CountsByLevel[b.Level.Key()]; known {
			row.CountsByLevel[b.Level.Key()] += b.Count
		}
		if b.EventName == req.EventName {
			exact = true
		}
		if !names[b.EventName] {
			names[b.EventName] = true
			row.MatchedEventNames = append(row.MatchedEventNames, b.EventName)
		}
	}
	sort.Strings(row.MatchedEventNames)
	row.ExpectedLevelCount = row.CountsByLevel[req.ExpectedLevel.Key()]

	switch {
	case row.TotalCount == 0:
		row.Status = StatusMissing
	case !exact:
		row.Status = StatusNameMismatch
	case row.ExpectedLevelCount == 0:
		row.Status = StatusLevelMismatch
	default:
		row.Status = StatusOK
	}
	return row
}

func (idx *index) pair(pc PairCheck) PairResult {
	res := PairResult{
		StartEventName:     pc.StartEventName,
		TerminalEventNames: append([]string{}, pc.TerminalEventNames...),
		StartCount:         idx.total(pc.StartEventName),
	}
	// Case variants of one terminal name share buckets; count them once.
	seen := make(map[string]bool, len(pc.TerminalEventNames))
	for _, name := range pc.TerminalEventNames {
		k := fold(name)
		if seen[k] {
			continue
		}
		seen[k] = true
		res.TerminalCount += idx.total(name)
	}
	if res.StartCount > res.TerminalCount {
		res.PendingCount = res.StartCount - res.TerminalCount
	}
	return res
}

func summarize(rows []Row) Summary {
	s := Summary{RequiredTotal: len(rows)}
	for _, row := range rows {
		switch row.Status {
		case StatusOK:
			s.OKTotal++
		case StatusLevelMismatch:
			s.LevelMismatchTotal++
		case StatusNameMismatch:
			s.NameMismatchTotal++
		case StatusMissing:
			s.MissingTotal++
		}
	}
	return s
}

func normalizeReference(ref json.RawMessage) json.RawMessage {
	if len(ref) == 0 {
		return json.RawMessage("null")
	}
	return ref
}
