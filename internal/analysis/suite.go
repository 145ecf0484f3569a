// internal/analysis/suite.go
package analysis

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/signalnine/blescope/internal/anomaly"
	"github.com/signalnine/blescope/internal/chain"
	"github.com/signalnine/blescope/internal/config"
	"github.com/signalnine/blescope/internal/matcher"
	"github.com/signalnine/blescope/internal/protocol"
	"github.com/signalnine/blescope/internal/quality"
	"github.com/signalnine/blescope/internal/sessiondiff"
)

// Suite holds every analyzer built from one analysis config.
// All analyzers are read-only after construction, so a Suite may be shared.
type Suite struct {
	matcher   *matcher.Matcher
	reporter  *quality.Reporter
	anomaly   anomaly.Config
	chainOpts chain.Options
	diff      *sessiondiff.Engine
}

// NewSuite builds a Suite; zero config values select the defaults
func NewSuite(cfg config.AnalysisConfig) *Suite {
	anomalyCfg := cfg.Anomaly
	if anomalyCfg.PreviewLength == 0 {
		anomalyCfg.PreviewLength = cfg.PreviewLength
	}
	return &Suite{
		matcher:  matcher.New(cfg.PhasePatterns, cfg.Outcomes()),
		reporter: quality.NewReporter(cfg.Catalog, cfg.Pairs),
		anomaly:  anomalyCfg,
		chainOpts: chain.Options{
			PendingTimeout: cfg.PendingTimeout,
			SlowestLimit:   cfg.SlowestLimit,
			PreviewLength:  cfg.PreviewLength,
		},
		diff: sessiondiff.NewEngine(sessiondiff.Options{
			Tolerance:     cfg.DiffTolerance,
			PreviewLength: cfg.PreviewLength,
		}),
	}
}

// Input is one batch to analyze. Buckets are derived from Events when nil.
type Input struct {
	Events       []protocol.LogEvent
	Buckets      []protocol.EventCountBucket
	ParserErrors int64
	Reference    json.RawMessage
}

// Bundle collects the three single-batch reports
type Bundle struct {
	Quality   *quality.Report `json:"quality"`
	Anomalies *anomaly.Report `json:"anomalies"`
	Chains    *chain.Report   `json:"chains"`
}

// Matcher returns the shared event matcher
func (s *Suite) Matcher() *matcher.Matcher {
	return s.matcher
}

// Quality builds the log quality report
func (s *Suite) Quality(buckets []protocol.EventCountBucket, parserErrors int64, reference json.RawMessage) (*quality.Report, error) {
	return s.reporter.Build(buckets, parserErrors, reference)
}

// Anomalies runs the anomaly detector over events
func (s *Suite) Anomalies(events []protocol.LogEvent) (*anomaly.Report, error) {
	return anomaly.NewDetector(s.matcher, s.chains(events), s.anomaly).Detect(events)
}

// Chains reconstructs and summarizes the request chains in events
func (s *Suite) Chains(events []protocol.LogEvent) (*chain.Report, error) {
	if err := protocol.ValidateEvents(events); err != nil {
		return nil, err
	}
	return s.chains(events).Analyze(events), nil
}

// Diff aligns two sessions
func (s *Suite) Diff(a, b []protocol.LogEvent) (*sessiondiff.Report, error) {
	return s.diff.Diff(a, b)
}

// chains returns an analyzer whose window ends at the latest event
func (s *Suite) chains(events []protocol.LogEvent) *chain.Analyzer {
	opts := s.chainOpts
	for _, ev := range events {
		if ev.TimestampMs > opts.WindowEndMs {
			opts.WindowEndMs = ev.TimestampMs
		}
	}
	return chain.NewAnalyzer(s.matcher, opts)
}

// Run computes the quality, anomaly and chain reports concurrently.
// The first error cancels the rest.
func (s *Suite) Run(ctx context.Context, in Input) (*Bundle, error) {
	if err := protocol.ValidateEvents(in.Events); err != nil {
		return nil, err
	}
	buckets := in.Buckets
	if buckets == nil {
		buckets = protocol.CountEvents(in.Events)
	}

	var b Bundle
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gCtx.Err(); err != nil {
			return err
		}
		rep, err := s.Quality(buckets, in.ParserErrors, in.Reference)
		b.Quality = rep
		return err
	})
	g.Go(func() error {
		if err := gCtx.Err(); err != nil {
			return err
		}
		rep, err := s.Anomalies(in.Events)
		b.Anomalies = rep
		return err
	})
	g.Go(func() error {
		if err := gCtx.Err(); err != nil {
			return err
		}
		rep, err := s.Chains(in.Events)
		b.Chains = rep
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &b, nil
}
