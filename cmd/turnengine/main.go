// Command turnengine wires the Session Store, Turn Pipeline, Session
// Scheduler, Death Orchestrator, and HTTP/WebSocket surface into a single
// running process. It is a runnable reference wiring of the core
// packages, plugging in the local deterministic generators defined in
// generators.go; a real deployment embeds the internal packages directly
// against its own narrative/image/choice backends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turnengine/core/internal/clock"
	"github.com/turnengine/core/internal/config"
	"github.com/turnengine/core/internal/death"
	"github.com/turnengine/core/internal/fate"
	"github.com/turnengine/core/internal/frames"
	"github.com/turnengine/core/internal/generators"
	"github.com/turnengine/core/internal/httpapi"
	"github.com/turnengine/core/internal/logging"
	"github.com/turnengine/core/internal/maintenance"
	"github.com/turnengine/core/internal/scheduler"
	"github.com/turnengine/core/internal/session"
	"github.com/turnengine/core/internal/turn"
	"github.com/turnengine/core/internal/wsfeed"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON5 configuration file (defaults applied if omitted)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "turnengine: config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)

	index, err := session.OpenIndex(context.Background(), cfg.IndexDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open metadata index")
	}

	store := session.New(cfg.StorageRoot, clock.System{}, log, index)
	if err := store.RebuildIndex(context.Background()); err != nil {
		log.Warn().Err(err).Msg("metadata index rebuild at startup failed, continuing with stale index")
	}

	frameBuf := frames.New()

	pipeline := &turn.Pipeline{
		Store:              store,
		Frames:             frameBuf,
		Wall:               clock.System{},
		Narrative:          localNarrative{},
		Image:              localImage{},
		Choices:            localChoices{},
		Evolver:            localEvolver{},
		Fate:               fate.Resolver{},
		ReferenceWidth:     cfg.ReferenceWidth,
		NarrativeTimeout:   cfg.NarrativeTimeout,
		ImageBaseTimeout:   cfg.ImageBaseTimeout,
		ImagePerRefTimeout: cfg.ImagePerRefTimeout,
		ImageMaxTimeout:    cfg.ImageMaxTimeout,
		ChoicesTimeout:     cfg.ChoicesTimeout,
		Log:                log,
	}

	sched := scheduler.New(pipeline, frameBuf, log)

	hub := wsfeed.NewHub(log)

	replay := generators.NewReplayAssembler()
	deathOrch := death.New(frameBuf, replay, store.TapesDir, sched, clock.System{}, cfg.RestartDeadline, cfg.ReplaySizeBudget, log)
	deathOrch.Feed = hub

	srv := httpapi.New(store, sched, pipeline, deathOrch, hub, log)

	mux := http.NewServeMux()
	mux.Handle("/", srv)
	mux.HandleFunc("GET /api/sessions/{id}/feed", hub.ServeHTTP)

	maintJob := maintenance.New(store, sched, log, 5*time.Minute)
	if err := maintJob.Start("*/5 * * * *"); err != nil {
		log.Fatal().Err(err).Msg("start maintenance schedule")
	}
	defer maintJob.Stop()

	httpServer := &http.Server{
		Addr:    cfg.HTTPBindAddress,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.HTTPBindAddress).Msg("turnengine: listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("turnengine: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown did not complete cleanly")
	}
}
