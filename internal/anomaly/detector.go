// internal/anomaly/detector.go
package anomaly

import (
	"fmt"
	"sort"
	"time"

	"github.com/signalnine/blescope/internal/chain"
	"github.com/signalnine/blescope/internal/matcher"
	"github.com/signalnine/blescope/internal/preview"
	"github.com/signalnine/blescope/internal/protocol"
)

var (
	disconnectTarget   = matcher.MustTarget("ble disconnect")
	connectStartTarget = matcher.MustTarget("ble connect:start")
	connectOKTarget    = matcher.MustTarget("ble connect:ok")
)

// Detector scans event batches for recurring failure patterns
type Detector struct {
	m      *matcher.Matcher
	chains *chain.Analyzer
	cfg    Config
}

// NewDetector creates a Detector. chains supplies the command chains for the
// command_failure pass.
func NewDetector(m *matcher.Matcher, chains *chain.Analyzer, cfg Config) *Detector {
	return &Detector{m: m, chains: chains, cfg: cfg.withDefaults()}
}

// session is one correlation group, events in timestamp order
type session struct {
	key    string
	events []protocol.LogEvent
}

// pass is one independent detection over the grouped sessions
type pass func(all []protocol.LogEvent, sessions []session) []Finding

// Detect runs every pass and assembles the ranked report
func (d *Detector) Detect(events []protocol.LogEvent) (*Report, error) {
	if err := protocol.ValidateEvents(events); err != nil {
		return nil, err
	}

	ordered := append([]protocol.LogEvent(nil), events...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TimestampMs < ordered[j].TimestampMs
	})
	sessions := groupSessions(ordered)

	passes := []pass{
		d.frequentDisconnect,
		d.timeoutRetry,
		d.errorBurst,
		d.slowConnection,
		d.commandFailure,
	}

	findings := []Finding{}
	for _, p := range passes {
		findings = append(findings, p(ordered, sessions)...)
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return findings[i].Severity > findings[j].Severity
		}
		return findings[i].Occurrences > findings[j].Occurrences
	})

	return &Report{
		Findings:        findings,
		Summary:         summarize(findings),
		Recommendations: recommend(findings),
	}, nil
}

func groupSessions(ordered []protocol.LogEvent) []session {
	idx := make(map[string]int)
	var out []session
	for _, ev := range ordered {
		k := protocol.SessionKey(ev)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, session{key: k})
		}
		out[i].events = append(out[i].events, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func (d *Detector) frequentDisconnect(_ []protocol.LogEvent, sessions []session) []Finding {
	var out []Finding
	for _, s := range sessions {
		var hits []protocol.LogEvent
		for _, ev := range s.events {
			if d.m.Match(ev, disconnectTarget) {
				hits = append(hits, ev)
			}
		}
		count, lo, hi := densest(hits, d.cfg.DisconnectWindow)
		if count < d.cfg.DisconnectThreshold {
			continue
		}
		out = append(out, Finding{
			Type:             TypeFrequentDisconnect,
			Severity:         tier(count, d.cfg.DisconnectThreshold, SeverityMedium),
			Description:      fmt.Sprintf("%d disconnects within %s in session %s", count, formatDuration(d.cfg.DisconnectWindow), display(s.key)),
			Suggestion:       suggestions[TypeFrequentDisconnect],
			Occurrences:      count,
			AffectedSessions: sessionSet(s.key),
			TimeWindowMs:     d.cfg.DisconnectWindow.Milliseconds(),
			Samples:          d.samples(hits[lo : hi+1]),
		})
	}
	return out
}

func (d *Detector) timeoutRetry(_ []protocol.LogEvent, sessions []session) []Finding {
	var out []Finding
	for _, s := range sessions {
		var cycles []protocol.LogEvent
		pending := 0
		for _, ev := range s.events {
			switch d.m.Outcome(ev) {
			case matcher.OutcomeStart:
				pending++
			case matcher.OutcomeTimeout:
				if pending > 0 {
					pending--
					cycles = append(cycles, ev)
				}
			}
		}
		count, lo, hi := densest(cycles, d.cfg.TimeoutWindow)
		if count < d.cfg.TimeoutThreshold {
			continue
		}
		out = append(out, Finding{
			Type:             TypeTimeoutRetry,
			Severity:         tier(count, d.cfg.TimeoutThreshold, SeverityMedium),
			Description:      fmt.Sprintf("%d start/timeout cycles within %s in session %s", count, formatDuration(d.cfg.TimeoutWindow), display(s.key)),
			Suggestion:       suggestions[TypeTimeoutRetry],
			Occurrences:      count,
			AffectedSessions: sessionSet(s.key),
			TimeWindowMs:     d.cfg.TimeoutWindow.Milliseconds(),
			Samples:          d.samples(cycles[lo : hi+1]),
		})
	}
	return out
}

func (d *Detector) errorBurst(_ []protocol.LogEvent, sessions []session) []Finding {
	var out []Finding
	for _, s := range sessions {
		var errs []protocol.LogEvent
		for _, ev := range s.events {
			if ev.Level == protocol.LevelError {
				errs = append(errs, ev)
			}
		}
		count, lo, hi := densest(errs, d.cfg.ErrorBurstWindow)
		if count < d.cfg.ErrorBurstThreshold {
			continue
		}
		out = append(out, Finding{
			Type:             TypeErrorBurst,
			Severity:         tier(count, d.cfg.ErrorBurstThreshold, SeverityLow),
			Description:      fmt.Sprintf("%d ERROR events within %s in session %s", count, formatDuration(d.cfg.ErrorBurstWindow), display(s.key)),
			Suggestion:       suggestions[TypeErrorBurst],
			Occurrences:      count,
			AffectedSessions: sessionSet(s.key),
			TimeWindowMs:     d.cfg.ErrorBurstWindow.Milliseconds(),
			Samples:          d.samples(errs[lo : hi+1]),
		})
	}
	return out
}

func (d *Detector) slowConnection(_ []protocol.LogEvent, sessions []session) []Finding {
	threshold := d.cfg.SlowConnect.Milliseconds()
	var out []Finding
	for _, s := range sessions {
		var slow []protocol.LogEvent
		var maxLatency int64
		var start *protocol.LogEvent
		for i := range s.events {
			ev := s.events[i]
			switch {
			case d.m.Match(ev, connectStartTarget):
				// A retried connect restarts the clock.
				start = &s.events[i]
			case start != nil && d.m.Match(ev, disconnectTarget):
				// "DISCONNECTED" contains the connected keyword; a dropped
				// attempt never completes.
				start = nil
			case start != nil && d.m.Match(ev, connectOKTarget):
				latency := ev.TimestampMs - start.TimestampMs
				if latency > threshold {
					slow = append(slow, ev)
					if latency > maxLatency {
						maxLatency = latency
					}
				}
				start = nil
			}
		}
		if len(slow) == 0 {
			continue
		}

		severity := SeverityLow
		switch {
		case maxLatency >= 4*threshold:
			severity = SeverityHigh
		case maxLatency >= 2*threshold:
			severity = SeverityMedium
		}
		out = append(out, Finding{
			Type:             TypeSlowConnection,
			Severity:         severity,
			Description:      fmt.Sprintf("%d connections slower than %s in session %s (max %s)", len(slow), formatDuration(d.cfg.SlowConnect), display(s.key), formatDuration(time.Duration(maxLatency)*time.Millisecond)),
			Suggestion:       suggestions[TypeSlowConnection],
			Occurrences:      len(slow),
			AffectedSessions: sessionSet(s.key),
			TimeWindowMs:     maxLatency,
			Samples:          d.samples(slow),
		})
	}
	return out
}

func (d *Detector) commandFailure(all []protocol.LogEvent, _ []session) []Finding {
	type group struct {
		failed   []chain.Chain
		sessions map[string]bool
	}
	groups := make(map[string]*group)
	var order []string
	for _, c := range d.chains.Chains(all) {
		if c.Status != chain.StatusError {
			continue
		}
		g, ok := groups[c.Command]
		if !ok {
			g = &group{sessions: make(map[string]bool)}
			groups[c.Command] = g
			order = append(order, c.Command)
		}
		g.failed = append(g.failed, c)
		if c.SessionKey != "" {
			g.sessions[c.SessionKey] = true
		}
	}
	sort.Strings(order)

	var out []Finding
	for _, cmd := range order {
		g := groups[cmd]
		count := len(g.failed)
		if count < d.cfg.CommandFailureThreshold {
			continue
		}

		first, last := g.failed[0].StartMs, g.failed[0].EndMs
		var samples []Sample
		for _, c := range g.failed {
			if c.StartMs < first {
				first = c.StartMs
			}
			if c.EndMs > last {
				last = c.EndMs
			}
			if len(samples) < d.cfg.SampleLimit {
				ev := c.Events[len(c.Events)-1]
				samples = append(samples, Sample{
					EventName:      ev.EventName,
					Level:          ev.Level,
					TimestampMs:    ev.TimestampMs,
					SessionKey:     c.SessionKey,
					PayloadPreview: ev.PayloadPreview,
				})
			}
		}

		severity := SeverityLow
		switch {
		case count >= 10:
			severity = SeverityHigh
		case count >= 3:
			severity = SeverityMedium
		}
		sessions := make([]string, 0, len(g.sessions))
		for s := range g.sessions {
			sessions = append(sessions, s)
		}
		sort.Strings(sessions)

		out = append(out, Finding{
			Type:             TypeCommandFailure,
			Severity:         severity,
			Description:      fmt.Sprintf("command %q failed %d times", cmd, count),
			Suggestion:       suggestions[TypeCommandFailure],
			Occurrences:      count,
			AffectedSessions: sessions,
			TimeWindowMs:     last - first,
			Samples:          samples,
		})
	}
	return out
}

func (d *Detector) samples(evs []protocol.LogEvent) []Sample {
	n := len(evs)
	if n > d.cfg.SampleLimit {
		n = d.cfg.SampleLimit
	}
	out := make([]Sample, 0, n)
	for _, ev := range evs[:n] {
		out = append(out, Sample{
			EventName:      ev.EventName,
			Level:          ev.Level,
			TimestampMs:    ev.TimestampMs,
			SessionKey:     protocol.SessionKey(ev),
			PayloadPreview: preview.Payload(ev.Payload, d.cfg.PreviewLength),
		})
	}
	return out
}

// densest finds the largest number of events whose timestamps fit in one
// window of width w (inclusive). Returns the count and the index range of
// the first such window; count is 0 for no events.
func densest(evs []protocol.LogEvent, w time.Duration) (count, lo, hi int) {
	width := w.Milliseconds()
	left := 0
	for right := range evs {
		for evs[right].TimestampMs-evs[left].TimestampMs > width {
			left++
		}
		if n := right - left + 1; n > count {
			count, lo, hi = n, left, right
		}
	}
	return count, lo, hi
}

// tier maps an occurrence count to a severity: base at the threshold, one
// step up at twice it, two steps at three times, capped at critical.
func tier(count, threshold, base int) int {
	sev := base
	if count >= 2*threshold {
		sev++
	}
	if count >= 3*threshold {
		sev++
	}
	if sev > SeverityCritical {
		sev = SeverityCritical
	}
	return sev
}

func sessionSet(key string) []string {
	if key == "" {
		return []string{}
	}
	return []string{key}
}

func display(key string) string {
	if key == "" {
		return "(uncorrelated)"
	}
	return key
}

// formatDuration produces a human-readable short duration string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		if d%time.Second == 0 {
			return fmt.Sprintf("%ds", int(d.Seconds()))
		}
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
