// internal/anomaly/recommend.go
package anomaly

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

func summarize(findings []Finding) Summary {
	s := Summary{Total: len(findings)}
	for _, f := range findings {
		switch {
		case f.Severity >= SeverityCritical:
			s.Critical++
		case f.Severity >= SeverityHigh:
			s.High++
		case f.Severity >= SeverityMedium:
			s.Medium++
		case f.Severity >= SeverityLow:
			s.Low++
		default:
			s.Info++
		}
	}
	return s
}

// recommend derives the recommendation lines from sorted findings:
// CRITICAL entries first with indented detail, then one line per type.
func recommend(findings []Finding) []string {
	lines := []string{}
	for _, f := range findings {
		if f.Severity < SeverityCritical {
			continue
		}
		lines = append(lines, "CRITICAL: "+f.Description)
		lines = append(lines, "  - "+f.Suggestion)
		if len(f.AffectedSessions) > 0 {
			lines = append(lines, "  - sessions: "+strings.Join(f.AffectedSessions, ", "))
		}
	}

	type agg struct {
		findings    int
		occurrences int
		sessions    map[string]bool
	}
	byType := make(map[Type]*agg)
	for _, f := range findings {
		a, ok := byType[f.Type]
		if !ok {
			a = &agg{sessions: make(map[string]bool)}
			byType[f.Type] = a
		}
		a.findings++
		a.occurrences += f.Occurrences
		for _, s := range f.AffectedSessions {
			a.sessions[s] = true
		}
	}

	for _, t := range Types {
		a, ok := byType[t]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s %s, %s %s across %s. %s",
			t,
			humanize.Comma(int64(a.findings)), plural(a.findings, "finding", "findings"),
			humanize.Comma(int64(a.occurrences)), plural(a.occurrences, "occurrence", "occurrences"),
			sessionCount(a.sessions),
			suggestions[t],
		))
	}
	return lines
}

func sessionCount(set map[string]bool) string {
	return fmt.Sprintf("%d %s", len(set), plural(len(set), "session", "sessions"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
