// internal/render/render.go
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/signalnine/blescope/internal/analysis"
	"github.com/signalnine/blescope/internal/anomaly"
	"github.com/signalnine/blescope/internal/chain"
	"github.com/signalnine/blescope/internal/protocol"
	"github.com/signalnine/blescope/internal/quality"
	"github.com/signalnine/blescope/internal/sessiondiff"
)

const none = "-"

func count(n int64) string {
	return humanize.Comma(n)
}

func optInt(p *int64) string {
	if p == nil {
		return none
	}
	return humanize.Comma(*p) + "ms"
}

func optStr(p *string) string {
	if p == nil {
		return none
	}
	return *p
}

// Quality writes the row and pair tables of a quality report
func Quality(w io.Writer, m Mode, rep *quality.Report) error {
	rows := newTable(m, "Required events")
	rows.header("Event", "Expected", "Status", "Total", "At level", "INFO", "DEBUG", "WARN", "ERROR", "Matched names")
	for _, r := range rep.Rows {
		rows.row(
			r.EventName,
			r.ExpectedLevelLabel,
			string(r.Status),
			count(r.TotalCount),
			count(r.ExpectedLevelCount),
			count(r.CountsByLevel[protocol.LevelInfo.Key()]),
			count(r.CountsByLevel[protocol.LevelDebug.Key()]),
			count(r.CountsByLevel[protocol.LevelWarn.Key()]),
			count(r.CountsByLevel[protocol.LevelError.Key()]),
			strings.Join(r.MatchedEventNames, ", "),
		)
	}
	s := rep.Summary
	rows.footer("", "", fmt.Sprintf("ok %d/%d", s.OKTotal, s.RequiredTotal), count(s.BucketTotal), "", "", "", "", "", fmt.Sprintf("parser errors %s", count(s.ParserErrorCount)))
	rows.alignRight(4, 5, 6, 7, 8, 9)

	pairs := newTable(m, "Pair checks")
	pairs.header("Start", "Terminals", "Starts", "Terminated", "Pending")
	for _, p := range rep.Pairs {
		pairs.row(p.StartEventName, strings.Join(p.TerminalEventNames, ", "), count(p.StartCount), count(p.TerminalCount), count(p.PendingCount))
	}
	pairs.alignRight(3, 4, 5)

	_, err := fmt.Fprintf(w, "%s\n\n%s\n", rows, pairs)
	return err
}

// Anomalies writes the findings table and recommendations
func Anomalies(w io.Writer, m Mode, rep *anomaly.Report) error {
	t := newTable(m, "Anomalies")
	t.header("Severity", "Type", "Occurrences", "Sessions", "Description")
	for _, f := range rep.Findings {
		t.row(severityLabel(f.Severity), string(f.Type), count(int64(f.Occurrences)), strings.Join(f.AffectedSessions, ", "), f.Description)
	}
	s := rep.Summary
	t.footer(fmt.Sprintf("total %d", s.Total), fmt.Sprintf("critical %d high %d medium %d low %d", s.Critical, s.High, s.Medium, s.Low), "", "", "")
	t.alignRight(3)

	if _, err := fmt.Fprintln(w, t); err != nil {
		return err
	}
	if len(rep.Recommendations) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "\nRecommendations:"); err != nil {
		return err
	}
	for _, line := range rep.Recommendations {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func severityLabel(sev int) string {
	switch {
	case sev >= anomaly.SeverityCritical:
		return "CRITICAL"
	case sev >= anomaly.SeverityHigh:
		return "HIGH"
	case sev >= anomaly.SeverityMedium:
		return "MEDIUM"
	case sev >= anomaly.SeverityLow:
		return "LOW"
	default:
		return "INFO"
	}
}

// Chains writes the chain statistics and the slowest chains
func Chains(w io.Writer, m Mode, rep *chain.Report) error {
	stats := newTable(m, "Command chains")
	stats.header("Total", "Success", "Error", "Timeout", "Pending", "Avg", "P50", "P90", "P99")
	avg := none
	if rep.Stats.AvgDurationMs != nil {
		avg = fmt.Sprintf("%.1fms", *rep.Stats.AvgDurationMs)
	}
	by := rep.Stats.ByStatus
	stats.row(
		count(int64(rep.Stats.Total)),
		count(int64(by[chain.StatusSuccess])),
		count(int64(by[chain.StatusError])),
		count(int64(by[chain.StatusTimeout])),
		count(int64(by[chain.StatusPending])),
		avg,
		optInt(rep.Stats.P50),
		optInt(rep.Stats.P90),
		optInt(rep.Stats.P99),
	)

	slow := newTable(m, "Slowest chains")
	slow.header("Request", "Command", "Session", "Status", "Duration", "Events")
	for _, c := range rep.Slowest {
		slow.row(c.RequestID, c.Command, c.SessionKey, string(c.Status), optInt(c.DurationMs), c.EventCount)
	}
	slow.alignRight(5, 6)

	_, err := fmt.Fprintf(w, "%s\n\n%s\n", stats, slow)
	return err
}

// Diff writes the side summaries and the aligned timeline
func Diff(w io.Writer, m Mode, rep *sessiondiff.Report) error {
	sum := newTable(m, "Sessions")
	sum.header("", "Events", "Errors", "Distinct only here")
	sum.row("A", count(int64(rep.A.EventCount)), count(int64(rep.A.ErrorCount)), len(rep.Names.OnlyInA))
	sum.row("B", count(int64(rep.B.EventCount)), count(int64(rep.B.ErrorCount)), len(rep.Names.OnlyInB))
	sum.footer("common", "", "", len(rep.Names.Common))

	tl := newTable(m, fmt.Sprintf("Timeline (tolerance %dms)", rep.ToleranceMs))
	tl.header("Time", "Kind", "A", "B", "A payload", "B payload")
	for _, s := range rep.Timeline {
		a, b := none, none
		ap, bp := none, none
		if s.A != nil {
			a = s.A.LevelLabel + " " + s.A.EventName
			ap = optStr(s.A.PayloadPreview)
		}
		if s.B != nil {
			b = s.B.LevelLabel + " " + s.B.EventName
			bp = optStr(s.B.PayloadPreview)
		}
		tl.row(s.TimestampMs, string(s.Kind), a, b, ap, bp)
	}

	_, err := fmt.Fprintf(w, "%s\n\n%s\n", sum, tl)
	return err
}

// Bundle writes all three single-batch reports
func Bundle(w io.Writer, m Mode, b *analysis.Bundle) error {
	if err := Quality(w, m, b.Quality); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	if err := Anomalies(w, m, b.Anomalies); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return Chains(w, m, b.Chains)
}
