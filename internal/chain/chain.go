// internal/chain/chain.go
package chain

import (
	"sort"
	"time"

	"github.com/signalnine/blescope/internal/matcher"
	"github.com/signalnine/blescope/internal/preview"
	"github.com/signalnine/blescope/internal/protocol"
)

// Status of a command chain
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// Statuses lists every status in report order
var Statuses = []Status{StatusPending, StatusSuccess, StatusTimeout, StatusError}

// DefaultSlowestLimit is how many chains Report.Slowest holds
const DefaultSlowestLimit = 10

// Options tune chain analysis
type Options struct {
	// WindowEndMs is the end of the analysis window; 0 means unknown.
	WindowEndMs int64
	// PendingTimeout turns a pending chain into a timeout once its start is
	// at least this long before WindowEndMs. Zero disables it.
	PendingTimeout time.Duration
	SlowestLimit   int
	PreviewLength  int
}

// Event is a chain member as shown in reports
type Event struct {
	EventName      string         `json:"eventName"`
	Level          protocol.Level `json:"level"`
	TimestampMs    int64          `json:"timestampMs"`
	Outcome        string         `json:"outcome"`
	PayloadPreview *string        `json:"payloadPreview"`
}

// Chain is every event sharing one requestId, in timestamp order
type Chain struct {
	RequestID  string  `json:"requestId"`
	Command    string  `json:"command"`
	SessionKey string  `json:"sessionKey"`
	Status     Status  `json:"status"`
	StartMs    int64   `json:"startMs"`
	EndMs      int64   `json:"endMs"`
	DurationMs *int64  `json:"durationMs"`
	EventCount int     `json:"eventCount"`
	Events     []Event `json:"events"`
}

// Stats are the global chain statistics
type Stats struct {
	Total         int            `json:"total"`
	ByStatus      map[Status]int `json:"byStatus"`
	AvgDurationMs *float64       `json:"avgDurationMs"`
	P50           *int64         `json:"p50"`
	P90           *int64         `json:"p90"`
	P99           *int64         `json:"p99"`
}

// Report is the command chain report
type Report struct {
	Stats   Stats   `json:"stats"`
	Slowest []Chain `json:"slowest"`
}

// Analyzer groups events into command chains
type Analyzer struct {
	m    *matcher.Matcher
	opts Options
}

// NewAnalyzer creates an Analyzer
func NewAnalyzer(m *matcher.Matcher, opts Options) *Analyzer {
	if opts.SlowestLimit <= 0 {
		opts.SlowestLimit = DefaultSlowestLimit
	}
	return &Analyzer{m: m, opts: opts}
}

// Chains groups events by requestId. Events without one are ignored.
// Chains are returned sorted by requestId.
func (a *Analyzer) Chains(events []protocol.LogEvent) []Chain {
	groups := make(map[string][]protocol.LogEvent)
	for _, ev := range events {
		id := protocol.Deref(ev.RequestID)
		if id == "" {
			continue
		}
		groups[id] = append(groups[id], ev)
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	chains := make([]Chain, 0, len(ids))
	for _, id := range ids {
		chains = append(chains, a.build(id, groups[id]))
	}
	return chains
}

func (a *Analyzer) build(id string, evs []protocol.LogEvent) Chain {
	sort.SliceStable(evs, func(i, j int) bool {
		return evs[i].TimestampMs < evs[j].TimestampMs
	})

	first, last := evs[0], evs[len(evs)-1]
	c := Chain{
		RequestID:  id,
		Command:    matcher.Command(first),
		SessionKey: protocol.SessionKey(first),
		Status:     StatusPending,
		StartMs:    first.TimestampMs,
		EndMs:      last.TimestampMs,
		EventCount: len(evs),
		Events:     make([]Event, 0, len(evs)),
	}

	for _, ev := range evs {
		outcome := a.m.Outcome(ev)
		c.Events = append(c.Events, Event{
			EventName:      ev.EventName,
			Level:          ev.Level,
			TimestampMs:    ev.TimestampMs,
			Outcome:        outcome.String(),
			PayloadPreview: preview.Payload(ev.Payload, a.opts.PreviewLength),
		})
		if c.Status == StatusPending {
			c.Status = transition(outcome)
		}
	}

	if c.Status == StatusPending && a.expired(c.StartMs) {
		c.Status = StatusTimeout
	}

	if c.Status != StatusPending || len(evs) > 1 {
		d := c.EndMs - c.StartMs
		c.DurationMs = &d
	}
	return c
}

// transition applies one outcome to a pending chain; terminal states stick
func transition(o matcher.Outcome) Status {
	switch o {
	case matcher.OutcomeOK:
		return StatusSuccess
	case matcher.OutcomeTimeout:
		return StatusTimeout
	case matcher.OutcomeError:
		return StatusError
	default:
		return StatusPending
	}
}

func (a *Analyzer) expired(startMs int64) bool {
	if a.opts.WindowEndMs <= 0 || a.opts.PendingTimeout <= 0 {
		return false
	}
	return a.opts.WindowEndMs-startMs >= a.opts.PendingTimeout.Milliseconds()
}

// Analyze builds the chain report for a batch
func (a *Analyzer) Analyze(events []protocol.LogEvent) *Report {
	return a.Summarize(a.Chains(events))
}

// Summarize computes statistics over already built chains
func (a *Analyzer) Summarize(chains []Chain) *Report {
	rep := &Report{
		Stats: Stats{
			Total:    len(chains),
			ByStatus: make(map[Status]int, len(Statuses)),
		},
		Slowest: []Chain{},
	}
	for _, s := range Statuses {
		rep.Stats.ByStatus[s] = 0
	}

	var durations []int64
	var timed []Chain
	for _, c := range chains {
		rep.Stats.ByStatus[c.Status]++
		if c.DurationMs != nil {
			durations = append(durations, *c.DurationMs)
			timed = append(timed, c)
		}
	}

	if len(durations) > 0 {
		var sum int64
		for _, d := range durations {
			sum += d
		}
		avg := float64(sum) / float64(len(durations))
		rep.Stats.AvgDurationMs = &avg

		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		rep.Stats.P50 = Percentile(durations, 50)
		rep.Stats.P90 = Percentile(durations, 90)
		rep.Stats.P99 = Percentile(durations, 99)
	}

	sort.SliceStable(timed, func(i, j int) bool {
		if *timed[i].DurationMs != *timed[j].DurationMs {
			return *timed[i].DurationMs > *timed[j].DurationMs
		}
		return timed[i].RequestID < timed[j].RequestID
	})
	if len(timed) > a.opts.SlowestLimit {
		timed = timed[:a.opts.SlowestLimit]
	}
	rep.Slowest = append(rep.Slowest, timed...)
	return rep
}

// Percentile returns the nearest-rank percentile of sorted values:
// rank = ceil(p*n/100), clamped to [1, n]. Returns nil for no values.
func Percentile(sorted []int64, p int) *int64 {
	n := len(sorted)
	if n == 0 {
		return nil
	}
	rank := (p*n + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	v := sorted[rank-1]
	return &v
}
