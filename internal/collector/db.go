// internal/collector/db.go
package collector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signalnine/blescope/internal/protocol"
	_ "modernc.org/sqlite"
)

// ErrTooManyRows is returned when a filter selects more events than allowed
var ErrTooManyRows = errors.New("too many rows")

// DB wraps SQLite connection
type DB struct {
	db *sql.DB
}

// Filter selects stored events. Empty fields match everything; time bounds
// are inclusive and in epoch milliseconds.
type Filter struct {
	Source    string
	SessionID string
	LinkCode  string
	DeviceMac string
	FromMs    *int64
	ToMs      *int64
}

// Empty reports whether the filter selects every stored event
func (f Filter) Empty() bool {
	return f.Source == "" && f.SessionID == "" && f.LinkCode == "" && f.DeviceMac == "" && f.FromMs == nil && f.ToMs == nil
}

func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}
	if f.Source != "" {
		add("source = ?", f.Source)
	}
	if f.SessionID != "" {
		add("session_id = ?", f.SessionID)
	}
	if f.LinkCode != "" {
		add("link_code = ?", f.LinkCode)
	}
	if f.DeviceMac != "" {
		add("device_mac = ?", f.DeviceMac)
	}
	if f.FromMs != nil {
		add("timestamp_ms >= ?", *f.FromMs)
	}
	if f.ToMs != nil {
		add("timestamp_ms <= ?", *f.ToMs)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// NewDB opens or creates the SQLite database
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS ingest_batches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		sent_at TEXT NOT NULL,
		parser_errors INTEGER NOT NULL DEFAULT 0,
		event_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT DEFAULT (datetime('now'))
	);
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id INTEGER NOT NULL REFERENCES ingest_batches(id),
		source TEXT NOT NULL,
		event_name TEXT NOT NULL,
		level INTEGER NOT NULL,
		stage TEXT,
		op TEXT,
		result TEXT,
		timestamp_ms INTEGER NOT NULL,
		session_id TEXT,
		link_code TEXT,
		device_mac TEXT,
		request_id TEXT,
		payload TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_batches_source ON ingest_batches(source);
	CREATE INDEX IF NOT EXISTS idx_events_source ON events(source);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp_ms);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// InsertBatch stores a batch and its events in one transaction and returns
// the batch id.
func (d *DB) InsertBatch(ctx context.Context, b *protocol.EventBatch) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ingest_batches (source, sent_at, parser_errors, event_count)
		VALUES (?, ?, ?, ?)
	`, b.Source, b.Timestamp.UTC().Format(time.RFC3339Nano), b.ParserErrors, len(b.Events))
	if err != nil {
		return 0, fmt.Errorf("insert batch: %w", err)
	}
	batchID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (batch_id, source, event_name, level, stage, op, result,
			timestamp_ms, session_id, link_code, device_mac, request_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, ev := range b.Events {
		var payload sql.NullString
		if len(ev.Payload) > 0 {
			payload = sql.NullString{String: string(ev.Payload), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			batchID, b.Source, ev.EventName, int(ev.Level),
			nullable(ev.Stage), nullable(ev.Op), nullable(ev.Result),
			ev.TimestampMs,
			nullable(ev.SessionID), nullable(ev.LinkCode), nullable(ev.DeviceMac), nullable(ev.RequestID),
			payload,
		); err != nil {
			return 0, fmt.Errorf("insert event %q: %w", ev.EventName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return batchID, nil
}

// QueryEvents returns the events selected by f in timestamp order.
// More than limit matching events yields ErrTooManyRows; limit <= 0 is unbounded.
func (d *DB) QueryEvents(ctx context.Context, f Filter, limit int) ([]protocol.LogEvent, error) {
	where, args := f.where()
	query := `
		SELECT event_name, level, stage, op, result, timestamp_ms,
			session_id, link_code, device_mac, request_id, payload
		FROM events` + where + `
		ORDER BY timestamp_ms, id`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit+1)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(events) > limit {
		return nil, fmt.Errorf("%w: filter selects more than %d events", ErrTooManyRows, limit)
	}
	return events, nil
}

// EventCounts aggregates the events selected by f into (name, level) buckets
func (d *DB) EventCounts(ctx context.Context, f Filter) ([]protocol.EventCountBucket, error) {
	where, args := f.where()
	rows, err := d.db.QueryContext(ctx, `
		SELECT event_name, level, COUNT(*)
		FROM events`+where+`
		GROUP BY event_name, level
		ORDER BY event_name, level
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buckets := []protocol.EventCountBucket{}
	for rows.Next() {
		var b protocol.EventCountBucket
		var level int
		if err := rows.Scan(&b.EventName, &level, &b.Count); err != nil {
			return nil, err
		}
		b.Level = protocol.Level(level)
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// ParserErrorCount sums the parser errors reported by the batches behind f.
// A filter on source alone (or no filter) counts every batch from that
// source, including batches that carried only parser errors. Any event-level
// condition narrows the sum to batches that contributed a matching event.
func (d *DB) ParserErrorCount(ctx context.Context, f Filter) (int64, error) {
	query := `SELECT COALESCE(SUM(parser_errors), 0) FROM ingest_batches`
	var args []any
	scoped := f
	scoped.Source = ""
	switch {
	case !scoped.Empty():
		where, whereArgs := f.where()
		query += ` WHERE id IN (SELECT DISTINCT batch_id FROM events` + where + `)`
		args = whereArgs
	case f.Source != "":
		query += ` WHERE source = ?`
		args = append(args, f.Source)
	}
	var total int64
	err := d.db.QueryRowContext(ctx, query, args...).Scan(&total)
	return total, err
}

// SourceCounts returns the stored event count per source
func (d *DB) SourceCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT source, COUNT(*) FROM events GROUP BY source
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var source string
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		counts[source] = count
	}
	return counts, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]protocol.LogEvent, error) {
	events := []protocol.LogEvent{}
	for rows.Next() {
		var ev protocol.LogEvent
		var level int
		var stage, op, result, session, link, mac, req, payload sql.NullString

		if err := rows.Scan(&ev.EventName, &level, &stage, &op, &result, &ev.TimestampMs,
			&session, &link, &mac, &req, &payload); err != nil {
			return nil, err
		}

		ev.Level = protocol.Level(level)
		ev.Stage = fromNull(stage)
		ev.Op = fromNull(op)
		ev.Result = fromNull(result)
		ev.SessionID = fromNull(session)
		ev.LinkCode = fromNull(link)
		ev.DeviceMac = fromNull(mac)
		ev.RequestID = fromNull(req)
		if payload.Valid {
			ev.Payload = json.RawMessage(payload.String)
		}

		events = append(events, ev)
	}
	return events, rows.Err()
}

func fromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return protocol.Str(s.String)
}
