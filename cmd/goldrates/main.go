package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/qgold/goldrates/internal/config"
	"github.com/qgold/goldrates/internal/engine"
	"github.com/qgold/goldrates/internal/fetch"
	"github.com/qgold/goldrates/internal/scheduler"
	"github.com/qgold/goldrates/internal/server"
	"github.com/qgold/goldrates/internal/sources"
	"github.com/qgold/goldrates/internal/store"
)

func main() {
	cfgPath := flag.String("config", config.DefaultConfigPath(), "path to config.json")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := sources.Validate(); err != nil {
		log.Fatal().Err(err).Msg("source registry invalid")
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	fetcher := fetch.New(cfg.Proxies, cfg.AttemptTimeout())
	eng := engine.New(fetcher, st, engine.Config{
		BatchSize:  cfg.BatchSize,
		BatchDelay: cfg.BatchDelay(),
	})

	sched := scheduler.New(eng, cfg.RefreshInterval())
	sched.Start()
	defer sched.Stop()

	srv := server.New(cfg.ListenAddr, eng, st)

	// Graceful stop
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("run error")
	}
}
