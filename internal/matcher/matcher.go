// internal/matcher/matcher.go
package matcher

import (
	"fmt"
	"strings"

	"github.com/signalnine/blescope/internal/protocol"
)

// StageBLE is the only stage structured targets match against by default
const StageBLE = "ble"

// Target is a named operation an event can be classified against,
// written "<stage> <op>[:<result>]", e.g. "ble connect:start".
type Target struct {
	Stage  string
	Op     string
	Result string // empty: any result
	Phase  Phase  // fuzzy fallback; empty disables it
}

// String returns the target in its parseable form
func (t Target) String() string {
	s := t.Stage + " " + t.Op
	if t.Result != "" {
		s += ":" + t.Result
	}
	return s
}

// ParseTarget parses "ble disconnect" or "ble connect:start".
// The fuzzy phase is derived from op and result.
func ParseTarget(s string) (Target, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) != 2 {
		return Target{}, fmt.Errorf("target %q: want \"<stage> <op>[:<result>]\"", s)
	}

	t := Target{Stage: fields[0], Op: fields[1]}
	if op, result, ok := strings.Cut(fields[1], ":"); ok {
		t.Op, t.Result = op, result
	}
	if t.Op == "" {
		return Target{}, fmt.Errorf("target %q: empty op", s)
	}
	t.Phase = phaseFor(t.Op, t.Result)
	return t, nil
}

// MustTarget is ParseTarget for package-level literals
func MustTarget(s string) Target {
	t, err := ParseTarget(s)
	if err != nil {
		panic(err)
	}
	return t
}

func phaseFor(op, result string) Phase {
	switch op {
	case "scan":
		return PhaseScan
	case "pair", "bond":
		return PhasePair
	case "connect":
		if normalizeOutcome(result) == OutcomeOK {
			return PhaseConnected
		}
		return PhaseConnect
	case "disconnect":
		return PhaseDisconnect
	case "error":
		return PhaseError
	default:
		return ""
	}
}

// Tags are the normalized structured classification fields of an event
type Tags struct {
	Stage  string
	Op     string
	Result string
}

// Structured reports whether any tag is present
func (t Tags) Structured() bool {
	return t.Stage != "" || t.Op != "" || t.Result != ""
}

// Normalize trims and lower-cases a tag; nil and blank both become "".
func Normalize(s *string) string {
	if s == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*s))
}

// TagsOf returns the normalized tags of ev
func TagsOf(ev protocol.LogEvent) Tags {
	return Tags{
		Stage:  Normalize(ev.Stage),
		Op:     Normalize(ev.Op),
		Result: Normalize(ev.Result),
	}
}

// Matcher classifies events against targets. It holds only read-only tables
// and is safe for concurrent use.
type Matcher struct {
	phases   Patterns
	outcomes *OutcomePatterns
}

// New creates a Matcher; nil tables select the defaults.
func New(phases Patterns, outcomes *OutcomePatterns) *Matcher {
	if phases == nil {
		phases = DefaultPatterns()
	}
	if outcomes == nil {
		outcomes = DefaultOutcomePatterns()
	}
	return &Matcher{phases: phases.upper(), outcomes: outcomes.upper()}
}

// Match decides whether ev belongs to target.
// Any structured tag disables the fuzzy fallback, even when the structured
// check fails.
func (m *Matcher) Match(ev protocol.LogEvent, target Target) bool {
	tags := TagsOf(ev)
	if tags.Structured() {
		return matchStructured(tags, target)
	}
	if target.Phase == "" {
		return false
	}
	return m.MatchPhase(ev.EventName, target.Phase)
}

func matchStructured(tags Tags, target Target) bool {
	if tags.Stage != target.Stage || tags.Op != target.Op {
		return false
	}
	if target.Result == "" {
		return true
	}
	return tags.Result != "" && tags.Result == target.Result
}

// MatchPhase reports whether the upper-cased name contains any keyword of phase
func (m *Matcher) MatchPhase(name string, phase Phase) bool {
	return containsAny(strings.ToUpper(name), m.phases[phase])
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
