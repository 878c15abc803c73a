package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"countingchain/config"
	"countingchain/core/events"
	"countingchain/gateway"
	"countingchain/gateway/auth"
	"countingchain/indexer"
	"countingchain/node"
	"countingchain/observability/logging"
	telemetry "countingchain/observability/otel"
)

const nonceSweepInterval = time.Minute

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to node configuration")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "countingd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := logging.Setup(logging.Options{
		Service: cfg.Log.Service,
		Env:     cfg.Log.Env,
		Level:   cfg.Log.Level,
		File: logging.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   true,
		},
	})

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Log.Service,
		Environment: cfg.Log.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		logger.Error("failed to initialise telemetry", slog.Any("error", err))
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	broker := gateway.NewBroker(logger)
	emitters := events.Fanout{broker}
	var idx *indexer.Indexer
	if cfg.Indexer.DSN != "" {
		db, err := indexer.Open(cfg.Indexer.DSN)
		if err != nil {
			return err
		}
		if idx, err = indexer.New(db, logger); err != nil {
			return err
		}
		emitters = append(emitters, idx)
	}

	n, err := node.Open(cfg, logger, emitters)
	if err != nil {
		return err
	}
	defer n.Close()

	nonceDB, err := node.OpenDatabase(cfg.DataDir, cfg.StorageBackend, "nonces")
	if err != nil {
		return err
	}
	defer nonceDB.Close()
	nonces := auth.NewNonceStore(nonceDB)
	skew := time.Duration(cfg.Gateway.EnvelopeSkewSeconds) * time.Second
	authn := auth.NewAuthenticator(cfg.ChainID, cfg.Prefix(), nonces, skew, nil)
	go sweepNonces(ctx, nonces, 2*authn.Skew(), logger)

	height, err := n.App.Height()
	if err != nil {
		return err
	}
	logger.Info("node ready",
		slog.String("chain_id", cfg.ChainID),
		slog.String("storage", cfg.StorageBackend),
		slog.Uint64("height", height),
		slog.Bool("indexer", idx != nil),
		logging.MaskField("indexer_dsn", cfg.Indexer.DSN),
		logging.MaskField("telemetry_headers", cfg.Telemetry.Headers))

	srv := gateway.NewServer(n.App, authn, broker, idx, gateway.Config{
		ListenAddress:      cfg.Gateway.ListenAddress,
		RateLimitPerMinute: float64(cfg.Gateway.RateLimitPerMinute),
		Burst:              cfg.Gateway.Burst,
		LogRequests:        cfg.Gateway.LogRequests,
		AllowedOrigins:     cfg.Gateway.AllowedOrigins,
	}, logger)
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// sweepNonces drops nonces older than retention. Retention must exceed the
// envelope skew window or a pruned nonce could be replayed.
func sweepNonces(ctx context.Context, store *auth.NonceStore, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(nonceSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			pruned, err := store.Prune(ctx, now.Add(-retention))
			if err != nil {
				logger.Warn("nonce sweep failed", slog.Any("error", err))
				continue
			}
			if pruned > 0 {
				logger.Debug("pruned envelope nonces", slog.Int("count", pruned))
			}
		}
	}
}
