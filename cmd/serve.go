package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/internal/api"
	"github.com/buildsight/rca-cli/internal/observability"
	"github.com/buildsight/rca-cli/internal/session"
	"github.com/buildsight/rca-cli/internal/store"
	"github.com/buildsight/rca-cli/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the report API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	var reportStore api.ReportStore
	if appCfg.Store.DSN != "" {
		dbPool, err := store.Connect(ctx, appCfg.Store)
		if err != nil {
			return err
		}
		defer dbPool.Close()
		st, err := store.New(ctx, dbPool, logger)
		if err != nil {
			return err
		}
		reportStore = st
	} else {
		logger.Info("No store DSN configured, settled reports are kept in memory only")
	}

	pool := worker.NewPool(ctx, appCfg.Worker.PoolSize, appCfg.Worker.QueueSize, logger)
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Error("Worker pool shutdown failed", zap.Error(err))
		}
	}()

	srv := api.NewServer(appCfg.Server, p, reportStore, pool, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
