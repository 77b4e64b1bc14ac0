package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	zlog "github.com/rs/zerolog/log"

	"github.com/dayeon/mailcast/internal/analytics"
	"github.com/dayeon/mailcast/internal/api"
	"github.com/dayeon/mailcast/internal/audience"
	"github.com/dayeon/mailcast/internal/campaign"
	"github.com/dayeon/mailcast/internal/clock"
	"github.com/dayeon/mailcast/internal/config"
	"github.com/dayeon/mailcast/internal/content"
	"github.com/dayeon/mailcast/internal/failover"
	"github.com/dayeon/mailcast/internal/logger"
	"github.com/dayeon/mailcast/internal/provider"
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewFromConfig(logger.Config{
		Level:     cfg.Logging.Level,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	zlog.Logger = log
	log.Info().Msg("starting campaign dispatcher")

	ctx := context.Background()
	clk := clock.New()

	// Campaign persistence.
	var store campaign.Store
	switch cfg.Store.Backend {
	case "postgres":
		pg, err := campaign.NewPostgresStore(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect campaign store")
		}
		defer pg.Close()
		store = pg
	case "file", "":
		fs, err := campaign.NewFileStore(cfg.Store.DataDir)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open campaign store")
		}
		store = fs
	default:
		log.Fatal().Str("backend", cfg.Store.Backend).Msg("unknown store backend")
	}

	// Transport providers.
	httpClient := provider.NewHTTPClient(cfg.Providers.Timeout)
	registry := provider.NewRegistry()
	if cfg.Providers.SendgridKey != "" {
		registry.Register(provider.NewSendGrid(provider.Config{
			Type: "sendgrid", APIKey: cfg.Providers.SendgridKey,
		}, httpClient))
	}
	if cfg.Providers.ResendKey != "" {
		registry.Register(provider.NewResend(provider.Config{
			Type: "resend", APIKey: cfg.Providers.ResendKey,
		}, httpClient))
	}

	var relay provider.Provider
	if cfg.Providers.RelayURL != "" {
		r, err := provider.NewSMTPRelay(cfg.Providers.RelayURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure smtp relay")
		}
		relay = r
	}

	chain, err := failover.NewChain(cfg.Providers.Primary, registry, relay, clk, cfg.Delivery.MaxAttempts)
	if err != nil {
		log.Fatal().Err(err).Str("primary", cfg.Providers.Primary).Msg("invalid provider configuration")
	}

	// Audience and content.
	resolver := audience.NewResolver(audience.NewFileStore(cfg.Store.DataDir), clk, cfg.Delivery.SegmentTTL)
	engine := campaign.NewEngine(campaign.EngineConfig{
		Store:      store,
		Resolver:   resolver,
		Deliverer:  chain,
		Renderer:   content.NewRenderer(),
		Injector:   content.NewInjector(cfg.Tracking.BaseURL, cfg.Delivery.Unsubscribed),
		Clock:      clk,
		From:       cfg.Providers.FromAddress,
		BatchSize:  cfg.Delivery.BatchSize,
		BatchDelay: cfg.Delivery.BatchDelay,
	})

	// Push delivered recipients into the primary provider's contact store
	// when it supports one.
	if primary, err := registry.Get(cfg.Providers.Primary); err == nil {
		if cm, ok := primary.(provider.ContactManager); ok {
			engine.OnSent = func(tenant string, c campaign.Campaign) {
				for _, email := range c.Recipients {
					cm.CreateContact(ctx, email, map[string]string{"shop": tenant})
				}
			}
		}
	}

	sink := &analytics.LogSink{Log: log}

	// Periodic loops: the due-campaign sweep and the stats sync.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Schedule.Sweep, func() {
		if err := engine.SendDueCampaigns(ctx); err != nil {
			var agg *campaign.AggregateDeliveryError
			if errors.As(err, &agg) {
				log.Error().Strs("failed_campaigns", agg.FailedIDs).Msg("sweep finished with failures")
				return
			}
			log.Error().Err(err).Msg("sweep failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Schedule.Sweep).Msg("invalid sweep schedule")
	}

	if primary, err := registry.Get(cfg.Providers.Primary); err == nil {
		syncer := campaign.NewStatsSyncer(store, primary, sink)
		if _, err := scheduler.AddFunc(cfg.Schedule.StatsSync, func() {
			if err := syncer.Sync(ctx); err != nil {
				log.Error().Err(err).Msg("stats sync failed")
			}
		}); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Schedule.StatsSync).Msg("invalid stats sync schedule")
		}
	}
	scheduler.Start()

	// Webhook and metrics listener.
	srv := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      api.NewServer(sink).Router(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}
	go func() {
		log.Info().Str("addr", cfg.API.Addr).Msg("http listener started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http listener failed")
		}
	}()

	// Wait for interrupt signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down dispatcher")

	cronCtx := scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	select {
	case <-cronCtx.Done():
	case <-shutdownCtx.Done():
	}

	log.Info().Msg("dispatcher stopped")
}
