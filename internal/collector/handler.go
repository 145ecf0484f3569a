// internal/collector/handler.go
package collector

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/signalnine/blescope/internal/protocol"
)

// IngestHandler handles POST /ingest requests from agents
type IngestHandler struct {
	db              *DB
	metrics         *Metrics
	logger          *slog.Logger
	maxPayloadBytes int64
}

// NewIngestHandler creates a new ingest handler. Authentication is applied by
// the router.
func NewIngestHandler(db *DB, metrics *Metrics, logger *slog.Logger, maxPayloadBytes int64) *IngestHandler {
	return &IngestHandler{
		db:              db,
		metrics:         metrics,
		logger:          logger,
		maxPayloadBytes: maxPayloadBytes,
	}
}

var errTooLarge = errors.New("request entity too large")

// readBody reads at most limit bytes of the request body
func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.ContentLength > limit {
		return nil, errTooLarge
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", protocol.ErrMalformedInput, err)
	}
	if int64(len(body)) > limit {
		return nil, errTooLarge
	}
	return body, nil
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, h.maxPayloadBytes)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var batch protocol.EventBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	batch.Source = strings.TrimSpace(batch.Source)
	if batch.Source == "" {
		http.Error(w, "missing source", http.StatusBadRequest)
		return
	}
	if batch.ParserErrors < 0 {
		http.Error(w, "negative parserErrors", http.StatusBadRequest)
		return
	}
	if err := protocol.ValidateEvents(batch.Events); err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Nothing to record
	if len(batch.Events) == 0 && batch.ParserErrors == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "no events"})
		return
	}

	if batch.Timestamp.IsZero() {
		batch.Timestamp = time.Now()
	}
	id, err := h.db.InsertBatch(r.Context(), &batch)
	if err != nil {
		h.logger.Error("store batch", "source", batch.Source, "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.metrics.observeBatch(batch.Source, len(batch.Events), batch.ParserErrors)
	h.logger.Info("stored batch",
		"source", batch.Source,
		"batch", id,
		"events", len(batch.Events),
		"parser_errors", batch.ParserErrors,
		"request_id", RequestID(r.Context()))

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "stored",
		"batchId": id,
		"events":  len(batch.Events),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError maps analysis and store errors onto HTTP status codes
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, errTooLarge):
		http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, ErrTooManyRows):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, protocol.ErrMalformedInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Error("request failed", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
