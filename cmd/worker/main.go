package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mueck/internal/adapter/repo"
	"mueck/internal/domain"
	"mueck/internal/infra"
	"mueck/internal/infra/credentials"
	"mueck/internal/pipeline"
	"mueck/internal/providers/imagevendor"
	"mueck/internal/slack"
	"mueck/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLoggerWithLevel(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.StoragePath).Msg("worker: storage unavailable")
	}

	vendors, err := buildVendors(ctx, cfg, credentials.NewStore(runner), &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: vendor setup failed")
	}

	events := repo.NewEventRepository(runner)
	jobs := repo.NewJobRepository(runner)
	notifier := slack.NewNotifier(slack.NotifierConfig{BaseURL: cfg.SlackAPIBaseURL, Logger: &logger})

	processor := pipeline.NewProcessor(pipeline.ProcessorDeps{
		Events:       events,
		Jobs:         jobs,
		Integrations: repo.NewIntegrationRepository(runner),
		Vendors:      vendors,
		Policy: imagevendor.Policy{
			Keywords:      cfg.PolicyKeywords,
			PolicyVendor:  imagevendor.Kind(cfg.PolicyVendor),
			DefaultVendor: imagevendor.Kind(cfg.DefaultVendor),
		},
		Poller: pipeline.NewPoller(jobs, pipeline.PollerOptions{
			Interval: cfg.PollInterval,
			MaxWait:  cfg.PollMaxWait,
			Notifier: notifier,
			Logger:   &logger,
		}),
		Fetcher:  pipeline.NewFetcher(jobs, files, pipeline.FetcherOptions{Logger: &logger}),
		Notifier: notifier,
		Logger:   &logger,
	})

	var lease pipeline.Lease = pipeline.NewLocalLease()
	if strings.TrimSpace(cfg.RedisURL) != "" {
		client, err := pipeline.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: redis connection failed")
		}
		defer client.Close()
		lease = pipeline.NewRedisLease(client, "mueck:lease:")
		logger.Info().Msg("worker: using redis leases")
	}

	wake, err := pipeline.Listen(ctx, cfg.DatabaseURL, &logger)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: listen unavailable, falling back to idle polling")
		wake = nil
	}

	worker := pipeline.NewWorker(events, processor, pipeline.WorkerOptions{
		Concurrency: cfg.WorkerConcurrency,
		Idle:        cfg.IdleInterval,
		LeaseTTL:    cfg.LeaseTTL,
		Lease:       lease,
		Wake:        wake,
		Logger:      &logger,
	})
	if err := worker.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: stopped with error")
		os.Exit(1)
	}
}

// buildVendors registers every configured vendor. Missing API keys are tolerated here and
// surface as submit errors for the affected vendor only.
func buildVendors(ctx context.Context, cfg *infra.Config, keys *credentials.Store, logger *infra.Logger) (*imagevendor.Registry, error) {
	profiles, err := imagevendor.LoadProfiles(cfg.VendorProfilesPath)
	if err != nil {
		return nil, err
	}
	resolve := func(kind domain.VendorKind, configured string) string {
		lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		key, err := keys.Resolve(lookupCtx, kind, configured)
		if err != nil {
			logger.Warn().Err(err).Str("vendor", string(kind)).Msg("worker: stored api key lookup failed")
		}
		if key == "" {
			logger.Warn().Str("vendor", string(kind)).Msg("worker: no api key configured")
		}
		return key
	}

	vendors := []imagevendor.Vendor{
		imagevendor.NewTensorArt(imagevendor.ClientOptions{
			Endpoint: cfg.TensorArtEndpoint,
			APIKey:   resolve(domain.VendorTensorArt, cfg.TensorArtAPIKey),
			Limiter:  imagevendor.NewLimiter(cfg.VendorRPS),
			Logger:   logger,
		}, profiles.For(domain.VendorTensorArt)),
		imagevendor.NewCivitAI(imagevendor.ClientOptions{
			Endpoint: cfg.CivitAIEndpoint,
			APIKey:   resolve(domain.VendorCivitAI, cfg.CivitAIAPIKey),
			Limiter:  imagevendor.NewLimiter(cfg.VendorRPS),
			Logger:   logger,
		}, profiles.For(domain.VendorCivitAI)),
	}
	if cfg.LocalEndpoint != "" {
		vendors = append(vendors, imagevendor.NewLocal(imagevendor.ClientOptions{
			Endpoint:       cfg.LocalEndpoint,
			Logger:         logger,
			RequestTimeout: 10 * time.Minute,
		}, profiles.For(domain.VendorLocal)))
	}
	registry := imagevendor.NewRegistry(vendors...)
	logger.Info().Interface("vendors", registry.Kinds()).Msg("worker: vendors registered")
	return registry, nil
}
