package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/cache"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/config"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/dedup"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/logging"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/upstream"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(cfg.LoggingConfig())
	logger := logging.NewLogger("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := cache.Select(ctx, cfg.SelectorConfig(), logging.NewLogger("cache"))
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close cache backend")
		}
	}()

	upstreamClient, err := upstream.New(cfg.UpstreamClientConfig(), logging.NewLogger("upstream"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create upstream client")
	}

	srv := &server{
		backend:   backend,
		tracker:   dedup.NewTracker(logging.NewLogger("dedup")),
		proxy:     upstream.NewProxy(upstreamClient, logging.NewLogger("upstream")),
		cfg:       cfg,
		startedAt: time.Now(),
		logger:    logger,
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("backend", string(backend.Type())).
			Str("upstream", cfg.Upstream.URL).
			Msg("Starting API cache server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server failed")
			stop()
		}
	})

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Graceful shutdown incomplete")
	}
	wg.Wait()
}
