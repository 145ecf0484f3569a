// internal/matcher/patterns.go
package matcher

import (
	"strings"

	"github.com/signalnine/blescope/internal/protocol"
)

// Phase names a keyword list used for fuzzy classification
type Phase string

const (
	PhaseScan       Phase = "scan"
	PhasePair       Phase = "pair"
	PhaseConnect    Phase = "connect"
	PhaseConnected  Phase = "connected"
	PhaseDisconnect Phase = "disconnect"
	PhaseError      Phase = "error"
)

// Patterns maps a phase to its substring keywords
type Patterns map[Phase][]string

// DefaultPatterns returns the built-in phase keyword table.
// "CONNECTED" is also contained in "DISCONNECTED"; producers that emit both
// should tag their events.
func DefaultPatterns() Patterns {
	return Patterns{
		PhaseScan:       {"SCAN"},
		PhasePair:       {"PAIR", "BOND"},
		PhaseConnect:    {"CONNECT START", "START CONNECT", "CONNECTING", "CONNECT REQUEST"},
		PhaseConnected:  {"CONNECTED", "CONNECT SUCCESS", "CONNECT OK", "CONNECTION ESTABLISHED"},
		PhaseDisconnect: {"DISCONNECT"},
		PhaseError:      {"ERROR", "FAIL", "EXCEPTION"},
	}
}

func (p Patterns) upper() Patterns {
	out := make(Patterns, len(p))
	for phase, list := range p {
		up := make([]string, len(list))
		for i, s := range list {
			up[i] = strings.ToUpper(s)
		}
		out[phase] = up
	}
	return out
}

// Outcome is the lifecycle position an event signals for its command
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeStart
	OutcomeOK
	OutcomeTimeout
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStart:
		return "start"
	case OutcomeOK:
		return "ok"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeError:
		return "error"
	default:
		return "none"
	}
}

// Terminal reports whether the outcome ends a command
func (o Outcome) Terminal() bool {
	return o == OutcomeOK || o == OutcomeTimeout || o == OutcomeError
}

// normalizeOutcome maps a structured result tag, synonyms included
func normalizeOutcome(result string) Outcome {
	switch result {
	case "start", "begin", "send", "request":
		return OutcomeStart
	case "ok", "success", "done", "complete", "completed":
		return OutcomeOK
	case "timeout", "timedout", "timed_out":
		return OutcomeTimeout
	case "error", "fail", "failed", "failure":
		return OutcomeError
	default:
		return OutcomeNone
	}
}

// OutcomePatterns holds the name keywords for untagged events.
// Lists are consulted in order: timeout, error, ok, start.
type OutcomePatterns struct {
	Timeout []string `yaml:"timeout"`
	Error   []string `yaml:"error"`
	OK      []string `yaml:"ok"`
	Start   []string `yaml:"start"`
}

// DefaultOutcomePatterns returns the built-in outcome keyword table.
// Keywords are matched against the name padded with one space on each side.
func DefaultOutcomePatterns() *OutcomePatterns {
	return &OutcomePatterns{
		Timeout: []string{"TIMEOUT", "TIMED OUT"},
		Error:   []string{"ERROR", "FAIL", "EXCEPTION"},
		OK:      []string{" OK ", "SUCCESS", "COMPLETE", " DONE ", "RESPONSE"},
		Start:   []string{"START", " SEND", "REQUEST", "BEGIN"},
	}
}

func (p *OutcomePatterns) upper() *OutcomePatterns {
	up := func(list []string) []string {
		out := make([]string, len(list))
		for i, s := range list {
			out[i] = strings.ToUpper(s)
		}
		return out
	}
	return &OutcomePatterns{
		Timeout: up(p.Timeout),
		Error:   up(p.Error),
		OK:      up(p.OK),
		Start:   up(p.Start),
	}
}

// Outcome classifies ev's lifecycle position. Tagged events use only their
// result tag; untagged events fall back to name keywords.
func (m *Matcher) Outcome(ev protocol.LogEvent) Outcome {
	tags := TagsOf(ev)
	if tags.Structured() {
		return normalizeOutcome(tags.Result)
	}

	name := " " + strings.ToUpper(ev.EventName) + " "
	switch {
	case containsAny(name, m.outcomes.Timeout):
		return OutcomeTimeout
	case containsAny(name, m.outcomes.Error):
		return OutcomeError
	case containsAny(name, m.outcomes.OK):
		return OutcomeOK
	case containsAny(name, m.outcomes.Start):
		return OutcomeStart
	default:
		return OutcomeNone
	}
}

// Command returns the command identity of ev: its op tag when tagged,
// otherwise the event name.
func Command(ev protocol.LogEvent) string {
	if op := Normalize(ev.Op); op != "" {
		return op
	}
	return ev.EventName
}
