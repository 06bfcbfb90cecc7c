package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"encryptednumbers/internal/metrics"
	"encryptednumbers/internal/relay"
)

func RelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the decryption relay",
		Long: `Run the decryption relay. The relay holds the network secret key, checks
signed decryption requests against the ledger ACL and answers with shares
encrypted to the requester's key.`,
		Args: cobra.NoArgs,
		RunE: runRelay,
	}
	cmd.Flags().String("relay-listen", "", "HTTP listen address")
	cmd.Flags().String("relay-node-rpc", "", "CometBFT RPC endpoint of a ledger node")
	cmd.Flags().String("relay-chain-id", "", "chain id; read from the ledger when empty")
	cmd.Flags().String("relay-key-file", "", "hex encoded network secret key")
	cmd.Flags().String("relay-redis-addr", "", "share rate limit counters through redis at this address")
	return cmd
}

func runRelay(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	secret, err := readNetworkSecret(cfg.Relay.KeyFile)
	if err != nil {
		return err
	}
	ledger, err := relay.NewRPCLedger(cfg.Relay.NodeRPC)
	if err != nil {
		return err
	}

	chainID := cfg.Relay.ChainID
	if chainID == "" {
		params, err := ledger.Params(ctx)
		if err != nil {
			return fmt.Errorf("read chain id from ledger: %w", err)
		}
		chainID = params.ChainID
	}

	clock := clockwork.NewRealClock()
	var limiter relay.Limiter = relay.NoLimit()
	switch {
	case cfg.Relay.RedisAddr != "" && cfg.Relay.RateLimit > 0:
		rl, err := relay.NewRedisLimiter(ctx, cfg.Relay.RedisAddr, clock, cfg.Relay.RateLimit, cfg.Relay.RateWindow)
		if err != nil {
			return err
		}
		defer func() { _ = rl.Close() }()
		limiter = rl
	case cfg.Relay.RateLimit > 0:
		limiter = relay.NewMemoryLimiter(clock, cfg.Relay.RateLimit, cfg.Relay.RateWindow)
	}

	m := metrics.New().WithProcessCollectors()
	srv, err := relay.NewServer(ledger, secret, relay.Options{
		ChainID:        chainID,
		MaxHandles:     cfg.Relay.MaxHandles,
		ClockSkew:      cfg.Relay.ClockSkew,
		CacheSize:      cfg.Relay.CacheSize,
		Clock:          clock,
		Limiter:        limiter,
		AllowedOrigins: cfg.Relay.AllowedOrigins,
		AccessLog:      cmd.ErrOrStderr(),
	}, logger, m)
	if err != nil {
		return err
	}
	if err := srv.CheckNetworkKey(ctx); err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Relay.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	logger.Info("relay listening", "addr", cfg.Relay.Listen, "chain_id", chainID, "node", cfg.Relay.NodeRPC)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
