package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"juiceWatch/internal/chain"
	"juiceWatch/internal/config"
	"juiceWatch/internal/discord"
	"juiceWatch/internal/identity"
	"juiceWatch/internal/ipfs"
	"juiceWatch/internal/metrics"
	"juiceWatch/internal/notify"
	"juiceWatch/internal/pipeline"
	"juiceWatch/internal/retry"
	"juiceWatch/internal/storage"
	"juiceWatch/internal/storage/postgres"
	"juiceWatch/internal/subgraph"
	"juiceWatch/internal/watermark"
)

func runNotifier(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy := retry.Policy{MaxRetries: cfg.MaxRetries, Backoff: cfg.RetryBackoff, MaxWait: cfg.CallTimeout}
	m := metrics.New()

	var pg *postgres.Store
	if cfg.PGDSN != "" {
		pg, err = openPostgres(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer pg.Close()
	}

	store := watermarkStore(cfg, pg)

	var failures storage.MultiLog
	if cfg.ErrorsFile != "" {
		failures = append(failures, storage.NewJsonlStorage(cfg.ErrorsFile))
	}
	if pg != nil {
		failures = append(failures, pg)
	}

	client := subgraph.NewClient(cfg.SubgraphURL, subgraph.Options{Timeout: cfg.CallTimeout, Retry: policy}, logger)
	sources := make([]pipeline.Source, 0, len(cfg.Streams))
	for _, name := range cfg.Streams {
		stream, err := subgraph.NewStream(client, name)
		if err != nil {
			return err
		}
		sources = append(sources, stream)
	}

	var backends []identity.Backend
	if cfg.EthRPC != "" {
		chainClient, err := chain.NewClient(ctx, cfg.EthRPC)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		if id, err := chainClient.GetChainID(ctx); err != nil {
			logger.Warn("chain id lookup failed", zap.Error(err))
		} else {
			logger.Debug("rpc connected", zap.String("chain_id", id.String()))
		}
		backends = append(backends, identity.NewENSBackend(chainClient))
	}
	if cfg.ENSAPI != "" {
		backends = append(backends, identity.NewAPIBackend(cfg.ENSAPI, cfg.CallTimeout))
	}

	processor := pipeline.NewProcessor(
		pipeline.ProcessorConfig{MaxConcurrency: cfg.MaxConcurrency},
		ipfs.NewResolver(cfg.IPFSGateway, cfg.CallTimeout, logger),
		identity.NewResolver(backends, cfg.CallTimeout, logger),
		notify.NewBuilder(notify.Links{AppURL: cfg.AppURL, ExplorerURL: cfg.ExplorerURL, IPFSGateway: cfg.IPFSGateway}),
		discord.NewSink(cfg.DiscordWebhook, cfg.CallTimeout, policy, logger),
		failures,
		m,
		logger,
	)

	logger.Info("notifier start",
		zap.Strings("streams", cfg.Streams),
		zap.String("subgraph", cfg.SubgraphURL),
		zap.String("state_file", cfg.StateFile),
		zap.Bool("postgres", pg != nil),
		zap.Int("identity_backends", len(backends)),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	report, runErr := pipeline.NewOrchestrator(store, sources, processor, m, logger).Run(ctx)
	for _, r := range report.Streams {
		logger.Info("stream summary",
			zap.String("stream", r.Stream),
			zap.Int64("prior", r.Prior),
			zap.Int64("watermark", r.Watermark),
			zap.Int("delivered", r.Count(pipeline.StatusDelivered)),
			zap.Int("enrich_failed", r.Count(pipeline.StatusEnrichFailed)),
			zap.Int("deliver_failed", r.Count(pipeline.StatusDeliverFailed)),
			zap.Bool("fetch_failed", r.Err != nil),
		)
	}

	exportMetrics(cfg, m, logger)
	return runErr
}

func openPostgres(ctx context.Context, dsn string) (*postgres.Store, error) {
	pg, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return pg, nil
}

func watermarkStore(cfg config.Config, pg *postgres.Store) watermark.Store {
	if pg != nil {
		return watermark.NewDBStore(pg, cfg.Streams)
	}
	return watermark.NewFileStore(cfg.StateFile, cfg.Streams)
}

func exportMetrics(cfg config.Config, m *metrics.Metrics, logger *zap.Logger) {
	if cfg.MetricsTextfile != "" {
		if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn("write metrics textfile", zap.Error(err))
		}
	}
	if cfg.MetricsPushURL != "" {
		if err := m.Push(cfg.MetricsPushURL, "juicewatch"); err != nil {
			logger.Warn("push metrics", zap.Error(err))
		}
	}
}
