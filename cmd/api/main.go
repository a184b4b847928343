package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mueck/internal/adapter/repo"
	"mueck/internal/http/handlers"
	httpapi "mueck/internal/http/httpapi"
	"mueck/internal/infra"
	"mueck/internal/infra/geoip"
	"mueck/internal/slack"
	"mueck/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLoggerWithLevel(cfg.AppEnv, cfg.LogLevel)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	app := &handlers.App{
		Events:       repo.NewEventRepository(runner),
		Jobs:         repo.NewJobRepository(runner),
		Integrations: repo.NewIntegrationRepository(runner),
		Files:        files,
		Verifier:     slack.Verifier{MaxSkew: cfg.SignatureMaxSkew},
		Ping:         dbpool.Ping,
		Logger:       &logger,
	}
	if resolver != nil {
		app.GeoIP = resolver
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CORSOrigins:     cfg.CORSOrigins,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
