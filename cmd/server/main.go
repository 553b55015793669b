// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

// Lumapost server: schedules Google Business Profile post publishing and
// review auto-replies per location, prevents duplicate replies, and
// exposes a REST + websocket API for managing automation settings.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/lumapost/lumapost/internal/ai"
	"github.com/lumapost/lumapost/internal/api"
	"github.com/lumapost/lumapost/internal/auth"
	"github.com/lumapost/lumapost/internal/config"
	"github.com/lumapost/lumapost/internal/events"
	"github.com/lumapost/lumapost/internal/gbp"
	"github.com/lumapost/lumapost/internal/logging"
	"github.com/lumapost/lumapost/internal/replycache"
	"github.com/lumapost/lumapost/internal/scheduler"
	"github.com/lumapost/lumapost/internal/store"
	"github.com/lumapost/lumapost/internal/supervisor"
	"github.com/lumapost/lumapost/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("database", cfg.Database.Path).
		Msg("Starting Lumapost server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Settings and run history live in DuckDB.
	db, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
	}
	defer db.Close()

	// Badger holds small mutable state: reply dedup keys and OAuth tokens.
	badgerOpts := badger.DefaultOptions(cfg.Database.StateDir).WithLogger(nil)
	stateDB, err := badger.Open(badgerOpts)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer stateDB.Close()

	replied := replycache.New(stateDB, 0)
	tokens := gbp.NewTokenStore(stateDB, cfg.GBP, &logger)
	gbpClient := gbp.NewClient(cfg.GBP, &logger)
	aiClient := ai.NewClient(cfg.AI, &logger)

	bus := events.NewBus(logger)
	defer bus.Close()

	hub := websocket.NewHub()
	consumer := events.NewConsumer(bus, db, hub, logger)

	// Subscribe before the supervision tree starts so outcomes from the
	// reconciler's first sweep are not published into a void.
	if err := consumer.Subscribe(ctx); err != nil {
		return fmt.Errorf("subscribing to run outcomes: %w", err)
	}

	guard := scheduler.NewGuard()
	registry := scheduler.NewRegistry(&logger)
	pipelines := scheduler.NewPipelines(scheduler.PipelineDeps{
		Settings:  db,
		Generator: aiClient,
		Replier:   aiClient,
		Publisher: gbpClient,
		Tokens:    tokens,
		Reviews:   gbpClient,
		Submitter: gbpClient,
		Replied:   replied,
		Recorder:  bus,
	}, guard, cfg.Scheduler.MaxConcurrentRuns, cfg.Scheduler.RunTimeout, &logger)
	facade := scheduler.NewFacade(db, registry, guard, pipelines, &logger)

	// A per-location scheduling failure is reported but must not keep the
	// healthy locations from running.
	if err := facade.Initialize(ctx); err != nil {
		logging.Warn().Err(err).Msg("Some locations could not be scheduled at startup")
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return fmt.Errorf("configuring session tokens: %w", err)
	}
	verifier, err := auth.NewCredentialVerifier(&cfg.Security)
	if err != nil {
		return fmt.Errorf("configuring admin credentials: %w", err)
	}

	handlers := api.NewHandlers(facade, db, tokens, verifier, jwtManager, hub)
	router := api.NewRouter(handlers, api.NewMiddleware(&cfg.Security), jwtManager)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	treeConfig := supervisor.DefaultTreeConfig()
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeConfig)

	tree.AddSchedulingService(supervisor.NewCronService(registry))
	if cfg.Reconciler.Enabled {
		reconciler := scheduler.NewReconciler(db, facade, scheduler.ReconcilerConfig{
			SweepInterval: cfg.Reconciler.SweepInterval,
			GraceWindow:   cfg.Reconciler.GraceWindow,
		}, &logger)
		tree.AddSchedulingService(reconciler)
	} else {
		logging.Warn().Msg("Missed-run reconciler disabled; schedules will not self-heal after downtime")
	}

	tree.AddDeliveryService(consumer)
	tree.AddDeliveryService(hub)
	tree.AddDeliveryService(supervisor.NewHTTPService(server, treeConfig.ShutdownTimeout))

	err = tree.Serve(ctx)
	if err != nil && err != context.Canceled {
		return fmt.Errorf("supervision tree: %w", err)
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Some services missed the shutdown deadline")
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}
