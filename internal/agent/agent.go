// internal/agent/agent.go
package agent

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/signalnine/blescope/internal/config"
	"github.com/signalnine/blescope/internal/logging"
	"github.com/signalnine/blescope/internal/protocol"
)

// Agent tails a device event log and ships new events to the collector
type Agent struct {
	cfg    *config.AgentConfig
	client *http.Client
	logger *slog.Logger
}

// New creates a new agent
func New(cfg *config.AgentConfig) *Agent {
	transport := &http.Transport{}
	if cfg.TLSSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Agent{
		cfg: cfg,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		logger: logging.New("agent"),
	}
}

// Run starts the agent loop
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent starting",
		"source", a.cfg.Source,
		"collector", a.cfg.CollectorURL,
		"event_file", a.cfg.EventFile,
		"interval", a.cfg.PollInterval)

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	// Run immediately on start
	if err := a.Collect(ctx); err != nil {
		a.logger.Error("collection failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent shutting down")
			return nil
		case <-ticker.C:
			if err := a.Collect(ctx); err != nil {
				a.logger.Error("collection failed", "err", err)
			}
		}
	}
}

// Collect performs one poll: read, filter, send, then advance the state
func (a *Agent) Collect(ctx context.Context) error {
	st, err := ReadState(a.cfg.StateFile)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	events, parserErrors, err := ReadEventFile(a.cfg.EventFile)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}

	// A shrinking count means the file was rotated
	newParserErrors := parserErrors - st.ParserErrors
	if newParserErrors < 0 {
		newParserErrors = parserErrors
	}

	newEvents, latest := FilterNewEvents(events, st.LastTimestampMs)
	if len(newEvents) == 0 && newParserErrors == 0 {
		a.logger.Debug("no new events", "since_ms", st.LastTimestampMs)
		return nil
	}

	newEvents, truncated := CapEvents(newEvents)
	if truncated {
		a.logger.Warn("batch truncated", "kept", MaxEvents)
	}

	a.logger.Info("sending events", "events", len(newEvents), "parser_errors", newParserErrors)

	batch := protocol.EventBatch{
		Source:       a.cfg.Source,
		Timestamp:    time.Now(),
		ParserErrors: newParserErrors,
		Events:       newEvents,
	}
	if err := a.send(ctx, batch); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	if err := WriteState(a.cfg.StateFile, State{LastTimestampMs: latest, ParserErrors: parserErrors}); err != nil {
		return fmt.Errorf("write state: %w", err)
	}

	return nil
}

func (a *Agent) send(ctx context.Context, batch protocol.EventBatch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.cfg.CollectorURL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("collector returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}
