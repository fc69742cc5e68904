package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/buildsight/rca-cli/internal/logjuicer"
	"github.com/buildsight/rca-cli/internal/observability"
	"github.com/buildsight/rca-cli/internal/report"
	"github.com/buildsight/rca-cli/internal/session"
)

var reportCmd = &cobra.Command{
	Use:   "report <build-url>",
	Short: "Dump the normalized, chronologically ordered error report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()
	if appCfg.LogJuicer.URL == "" {
		return fmt.Errorf("logjuicer.url is not configured")
	}

	sess, err := session.New(appCfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := logjuicer.NewClient(appCfg.LogJuicer, sess.HTTP, logger)
	rep, err := fetcher.Fetch(ctx, args[0], nil)
	if err != nil {
		return err
	}
	report.Sort(&rep)

	encoded, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
