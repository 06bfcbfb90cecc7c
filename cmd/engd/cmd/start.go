package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cometbft/cometbft/abci/server"
	"github.com/spf13/cobra"

	"encryptednumbers/internal/app"
	"encryptednumbers/internal/metrics"
	"encryptednumbers/internal/state"
)

func StartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the ledger application as an ABCI server",
		Args:  cobra.NoArgs,
		RunE:  runStart,
	}
	cmd.Flags().String("app-abci-addr", "", "ABCI listen address")
	cmd.Flags().String("app-transport", "", "ABCI transport (socket|grpc)")
	cmd.Flags().String("app-state-backend", "", "state backend (file|goleveldb|memdb)")
	cmd.Flags().String("metrics-addr", "", "prometheus listen address; set empty to disable")
	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := state.OpenStore(cfg.App.StateBackend, cfg.StateDir())
	if err != nil {
		return err
	}
	m := metrics.New().WithProcessCollectors()
	a, err := app.New(store, logger, m)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer func() { _ = a.Close() }()

	srv, err := server.NewServer(cfg.App.ABCIAddr, cfg.App.Transport, a)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() { _ = srv.Stop() }()
	logger.Info("abci server started", "addr", cfg.App.ABCIAddr, "transport", cfg.App.Transport, "backend", cfg.App.StateBackend)

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: m.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener stopped", "err", err)
			}
		}()
		logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutting down")

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}
