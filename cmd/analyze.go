package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/analysis"
	"github.com/buildsight/rca-cli/internal/jira"
	"github.com/buildsight/rca-cli/internal/llmclient"
	"github.com/buildsight/rca-cli/internal/logjuicer"
	"github.com/buildsight/rca-cli/internal/observability"
	"github.com/buildsight/rca-cli/internal/pipeline"
	"github.com/buildsight/rca-cli/internal/report"
	"github.com/buildsight/rca-cli/internal/session"
)

var reportFile string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [build-url]",
	Short: "Analyze a failed build and print the root-cause verdict",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&reportFile, "report-file", "",
		"analyze a local logjuicer JSON report instead of fetching one")
}

// newPipeline assembles the full pipeline from the loaded configuration.
func newPipeline(sess *session.Session, logger *zap.Logger) (*pipeline.Pipeline, error) {
	llm, err := llmclient.NewClient(appCfg.LLM, sess.HTTP, logger)
	if err != nil {
		return nil, err
	}
	streamer := analysis.NewStreamer(llm, logger, appCfg.LLM.RenderMarkdown)

	var correlator pipeline.Correlator
	if appCfg.Jira.Enabled() {
		correlator = jira.NewCorrelator(appCfg.Jira,
			jira.NewQueryGenerator(llm, logger),
			jira.NewClient(appCfg.Jira, sess.HTTP, logger),
			logger)
	} else {
		logger.Info("Jira correlation disabled, missing url/token/projects")
	}

	fetcher := logjuicer.NewClient(appCfg.LogJuicer, sess.HTTP, logger)
	return pipeline.New(fetcher, streamer, correlator, logger), nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if reportFile == "" && len(args) == 0 {
		return fmt.Errorf("a build URL or --report-file is required")
	}
	logger := observability.GetLogger()

	sess, err := session.New(appCfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	p, err := newPipeline(sess, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	emit := &consoleEmitter{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
	var artifact *pipeline.Artifact
	if reportFile != "" {
		data, err := os.ReadFile(reportFile)
		if err != nil {
			return fmt.Errorf("failed to read report file: %w", err)
		}
		rep, err := report.Normalize(data)
		if err != nil {
			return err
		}
		artifact, err = p.RunReport(ctx, rep, emit)
		if err != nil {
			return err
		}
	} else {
		if appCfg.LogJuicer.URL == "" {
			return fmt.Errorf("logjuicer.url is not configured")
		}
		artifact, err = p.Run(ctx, args[0], emit)
		if err != nil {
			return err
		}
	}

	encoded, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}

// consoleEmitter renders pipeline events for a terminal: progress and token
// accounting on stderr, rendered markdown on stdout. The report event is
// skipped; the command prints the final artifact itself.
type consoleEmitter struct {
	out    io.Writer
	errOut io.Writer
}

func (e *consoleEmitter) Emit(kind schemas.EventKind, payload any) {
	switch kind {
	case schemas.EventProgress:
		fmt.Fprintf(e.errOut, "# %v\n", payload)
	case schemas.EventChunk:
		fmt.Fprint(e.out, payload)
	case schemas.EventUsage:
		if usage, ok := payload.(schemas.Usage); ok {
			fmt.Fprintf(e.errOut, "# tokens: %d in, %d out\n", usage.Input, usage.Output)
		}
	}
}
