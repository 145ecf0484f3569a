// internal/collector/reports.go
package collector

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/signalnine/blescope/internal/analysis"
	"github.com/signalnine/blescope/internal/protocol"
)

// Report kinds served under /reports and /analyze
const (
	KindQuality   = "quality"
	KindAnomalies = "anomalies"
	KindChains    = "chains"
	KindAll       = "all"
	KindDiff      = "diff"
)

// ReportHandler serves reports over stored events and ad-hoc batches
type ReportHandler struct {
	db              *DB
	suite           *analysis.Suite
	metrics         *Metrics
	logger          *slog.Logger
	maxRows         int
	maxPayloadBytes int64
}

// NewReportHandler creates a report handler. maxRows bounds the events one
// stored-data report may load.
func NewReportHandler(db *DB, suite *analysis.Suite, metrics *Metrics, logger *slog.Logger, maxRows int, maxPayloadBytes int64) *ReportHandler {
	return &ReportHandler{
		db:              db,
		suite:           suite,
		metrics:         metrics,
		logger:          logger,
		maxRows:         maxRows,
		maxPayloadBytes: maxPayloadBytes,
	}
}

// ParseFilter reads an event filter from query parameters. A non-empty
// prefix selects prefixed parameters such as "a.sessionId".
func ParseFilter(q url.Values, prefix string) (Filter, error) {
	get := func(name string) string { return q.Get(prefix + name) }
	f := Filter{
		Source:    get("source"),
		SessionID: get("sessionId"),
		LinkCode:  get("linkCode"),
		DeviceMac: get("deviceMac"),
	}
	for _, bound := range []struct {
		name string
		dst  **int64
	}{{"from", &f.FromMs}, {"to", &f.ToMs}} {
		v := get(bound.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return Filter{}, fmt.Errorf("%w: %s%s=%q is not an epoch millisecond timestamp", protocol.ErrMalformedInput, prefix, bound.name, v)
		}
		*bound.dst = &n
	}
	if f.FromMs != nil && f.ToMs != nil && *f.FromMs > *f.ToMs {
		return Filter{}, fmt.Errorf("%w: %sfrom is after %sto", protocol.ErrMalformedInput, prefix, prefix)
	}
	return f, nil
}

// knownKind reports whether kind names a report
func knownKind(kind string) bool {
	switch kind {
	case KindQuality, KindAnomalies, KindChains, KindAll, KindDiff:
		return true
	}
	return false
}

// Stored handles GET /reports/{kind}
func (h *ReportHandler) Stored(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if !knownKind(kind) {
		http.NotFound(w, r)
		return
	}
	defer h.metrics.observeReport(kind, time.Now())

	if kind == KindDiff {
		h.storedDiff(w, r)
		return
	}

	f, err := ParseFilter(r.URL.Query(), "")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ctx := r.Context()

	var out any
	switch kind {
	case KindQuality:
		// Histograms come straight from SQL, so quality is not bound by maxRows.
		buckets, err := h.db.EventCounts(ctx, f)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		parserErrors, err := h.db.ParserErrorCount(ctx, f)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		out, err = h.suite.Quality(buckets, parserErrors, nil)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
	case KindAnomalies, KindChains, KindAll:
		events, err := h.db.QueryEvents(ctx, f, h.maxRows)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		switch kind {
		case KindAnomalies:
			out, err = h.suite.Anomalies(events)
		case KindChains:
			out, err = h.suite.Chains(events)
		default:
			var parserErrors int64
			parserErrors, err = h.db.ParserErrorCount(ctx, f)
			if err == nil {
				out, err = h.suite.Run(ctx, analysis.Input{Events: events, ParserErrors: parserErrors})
			}
		}
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
	default:
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *ReportHandler) storedDiff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fa, err := ParseFilter(q, "a.")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	fb, err := ParseFilter(q, "b.")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if fa.Empty() || fb.Empty() {
		writeError(w, h.logger, fmt.Errorf("%w: diff needs a filter for both sessions (a.* and b.*)", protocol.ErrMalformedInput))
		return
	}

	a, err := h.db.QueryEvents(r.Context(), fa, h.maxRows)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	b, err := h.db.QueryEvents(r.Context(), fb, h.maxRows)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	rep, err := h.suite.Diff(a, b)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// AnalyzeRequest is the body of POST /analyze/{kind}. Quality reads Buckets
// when given, otherwise it aggregates Events; diff reads A and B.
type AnalyzeRequest struct {
	Events       []protocol.LogEvent         `json:"events"`
	Buckets      []protocol.EventCountBucket `json:"buckets"`
	ParserErrors int64                       `json:"parserErrors"`
	Reference    json.RawMessage             `json:"reference"`
	A            []protocol.LogEvent         `json:"a"`
	B            []protocol.LogEvent         `json:"b"`
}

// Analyze handles POST /analyze/{kind}; nothing is stored
func (h *ReportHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if !knownKind(kind) {
		http.NotFound(w, r)
		return
	}
	defer h.metrics.observeReport(kind, time.Now())

	body, err := readBody(r, h.maxPayloadBytes)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req AnalyzeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: %v", protocol.ErrMalformedInput, err))
		return
	}
	if req.ParserErrors < 0 {
		writeError(w, h.logger, fmt.Errorf("%w: negative parserErrors", protocol.ErrMalformedInput))
		return
	}

	var out any
	switch kind {
	case KindQuality:
		buckets := req.Buckets
		if buckets == nil {
			if err := protocol.ValidateEvents(req.Events); err != nil {
				writeError(w, h.logger, err)
				return
			}
			buckets = protocol.CountEvents(req.Events)
		}
		out, err = h.suite.Quality(buckets, req.ParserErrors, req.Reference)
	case KindAnomalies:
		out, err = h.suite.Anomalies(req.Events)
	case KindChains:
		out, err = h.suite.Chains(req.Events)
	case KindAll:
		out, err = h.suite.Run(r.Context(), analysis.Input{
			Events:       req.Events,
			Buckets:      req.Buckets,
			ParserErrors: req.ParserErrors,
			Reference:    req.Reference,
		})
	case KindDiff:
		out, err = h.suite.Diff(req.A, req.B)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
