// cmd/blescope/cmd_analyze.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/blescope/internal/analysis"
	"github.com/signalnine/blescope/internal/config"
	"github.com/signalnine/blescope/internal/protocol"
	"github.com/signalnine/blescope/internal/render"
)

// Flags shared by the offline analysis commands
var (
	analysisConfigPath string
	outputFormat       string
	bucketsPath        string
	referencePath      string
	extraParserErrors  int64
	sessionA           string
	sessionB           string
)

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&analysisConfigPath, "analysis", "", "analysis config YAML (catalog, patterns, thresholds)")
	cmd.Flags().StringVar(&outputFormat, "format", "json", "output format: json, table or markdown")
}

var qualityCmd = &cobra.Command{
	Use:   "quality [events-file]",
	Short: "Check logging quality against the required-event catalog",
	Long: "Reads events (JSON array or NDJSON, \"-\" for stdin) or pre-aggregated\n" +
		"buckets (--buckets) and reports which required events are present at\n" +
		"the expected level.",
	Args: cobra.MaximumNArgs(1),
	RunE: runQuality,
}

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies <events-file>",
	Short: "Detect recurring failure patterns",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnomalies,
}

var chainsCmd = &cobra.Command{
	Use:   "chains <events-file>",
	Short: "Reconstruct request chains and their latency statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runChains,
}

var reportCmd = &cobra.Command{
	Use:   "report <events-file>",
	Short: "Run quality, anomaly and chain analysis together",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

var diffCmd = &cobra.Command{
	Use:   "diff <events-a> [events-b]",
	Short: "Align two sessions on a shared timeline",
	Long: "Compares two event files, or two sessions of one file selected with\n" +
		"--a and --b. Session keys are sessionId, then linkCode, then deviceMac.",
	Args: cobra.RangeArgs(1, 2),
	RunE: runDiff,
}

func init() {
	for _, cmd := range []*cobra.Command{qualityCmd, anomaliesCmd, chainsCmd, reportCmd, diffCmd} {
		addAnalysisFlags(cmd)
	}
	for _, cmd := range []*cobra.Command{qualityCmd, reportCmd} {
		cmd.Flags().StringVar(&referencePath, "reference", "", "JSON document echoed into the quality report")
		cmd.Flags().Int64Var(&extraParserErrors, "parser-errors", 0, "parser errors counted upstream, added to the decoded count")
	}
	qualityCmd.Flags().StringVar(&bucketsPath, "buckets", "", "JSON array of {eventName, level, count} buckets")
	diffCmd.Flags().StringVar(&sessionA, "a", "", "session key selecting side A")
	diffCmd.Flags().StringVar(&sessionB, "b", "", "session key selecting side B")
}

func loadSuite() (*analysis.Suite, error) {
	cfg, err := config.LoadAnalysisConfig(analysisConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load analysis config: %w", err)
	}
	return analysis.NewSuite(*cfg), nil
}

func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(path)
}

func readEvents(cmd *cobra.Command, path string) ([]protocol.LogEvent, int64, error) {
	r, err := openInput(cmd, path)
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()

	events, parserErrors, err := protocol.DecodeEvents(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", protocol.ErrMalformedInput, path, err)
	}
	return events, parserErrors, nil
}

func readReference(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// emit writes v as indented JSON or hands it to the table renderer
func emit(cmd *cobra.Command, v any, table func(io.Writer, render.Mode) error) error {
	w := cmd.OutOrStdout()
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "table", "markdown", "md":
		return table(w, render.ParseMode(outputFormat))
	default:
		return fmt.Errorf("unknown format %q (want json, table or markdown)", outputFormat)
	}
}

func runQuality(cmd *cobra.Command, args []string) error {
	suite, err := loadSuite()
	if err != nil {
		return err
	}
	ref, err := readReference(referencePath)
	if err != nil {
		return err
	}

	var buckets []protocol.EventCountBucket
	parserErrors := extraParserErrors
	switch {
	case bucketsPath != "" && len(args) > 0:
		return fmt.Errorf("give either --buckets or an events file, not both")
	case bucketsPath != "":
		r, err := openInput(cmd, bucketsPath)
		if err != nil {
			return err
		}
		defer r.Close()
		buckets, err = protocol.DecodeBuckets(r)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", protocol.ErrMalformedInput, bucketsPath, err)
		}
	case len(args) == 1:
		events, decodeErrors, err := readEvents(cmd, args[0])
		if err != nil {
			return err
		}
		if err := protocol.ValidateEvents(events); err != nil {
			return err
		}
		buckets = protocol.CountEvents(events)
		parserErrors += decodeErrors
	default:
		return fmt.Errorf("quality needs an events file or --buckets")
	}

	rep, err := suite.Quality(buckets, parserErrors, ref)
	if err != nil {
		return err
	}
	return emit(cmd, rep, func(w io.Writer, m render.Mode) error { return render.Quality(w, m, rep) })
}

func runAnomalies(cmd *cobra.Command, args []string) error {
	suite, err := loadSuite()
	if err != nil {
		return err
	}
	events, _, err := readEvents(cmd, args[0])
	if err != nil {
		return err
	}
	rep, err := suite.Anomalies(events)
	if err != nil {
		return err
	}
	return emit(cmd, rep, func(w io.Writer, m render.Mode) error { return render.Anomalies(w, m, rep) })
}

func runChains(cmd *cobra.Command, args []string) error {
	suite, err := loadSuite()
	if err != nil {
		return err
	}
	events, _, err := readEvents(cmd, args[0])
	if err != nil {
		return err
	}
	rep, err := suite.Chains(events)
	if err != nil {
		return err
	}
	return emit(cmd, rep, func(w io.Writer, m render.Mode) error { return render.Chains(w, m, rep) })
}

func runReport(cmd *cobra.Command, args []string) error {
	suite, err := loadSuite()
	if err != nil {
		return err
	}
	ref, err := readReference(referencePath)
	if err != nil {
		return err
	}
	events, parserErrors, err := readEvents(cmd, args[0])
	if err != nil {
		return err
	}
	b, err := suite.Run(cmd.Context(), analysis.Input{
		Events:       events,
		ParserErrors: parserErrors + extraParserErrors,
		Reference:    ref,
	})
	if err != nil {
		return err
	}
	return emit(cmd, b, func(w io.Writer, m render.Mode) error { return render.Bundle(w, m, b) })
}

// selectSession keeps the events whose session key is key; "" keeps all
func selectSession(events []protocol.LogEvent, key string) []protocol.LogEvent {
	if key == "" {
		return events
	}
	var out []protocol.LogEvent
	for _, ev := range events {
		if protocol.SessionKey(ev) == key {
			out = append(out, ev)
		}
	}
	return out
}

func runDiff(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && (sessionA == "" || sessionB == "") {
		return fmt.Errorf("diff of a single file needs --a and --b")
	}
	suite, err := loadSuite()
	if err != nil {
		return err
	}

	a, _, err := readEvents(cmd, args[0])
	if err != nil {
		return err
	}
	b := a
	if len(args) == 2 {
		if b, _, err = readEvents(cmd, args[1]); err != nil {
			return err
		}
	}

	rep, err := suite.Diff(selectSession(a, sessionA), selectSession(b, sessionB))
	if err != nil {
		return err
	}
	return emit(cmd, rep, func(w io.Writer, m render.Mode) error { return render.Diff(w, m, rep) })
}
