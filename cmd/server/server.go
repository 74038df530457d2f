package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"skoll/internal/config"
	"skoll/internal/engine"
	"skoll/internal/net"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("unable to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Wire the order-entry server and market-data feed to the engine.
	srv := net.New(cfg.Server.Address, cfg.Server.Port, cfg.Server.Workers)
	feed := net.NewFeed(cfg.Server.Address, cfg.Server.FeedPort)
	eng := engine.New(srv)
	srv.SetEngine(eng)
	srv.SetFeed(feed)

	go feed.Run(ctx)
	go srv.Run(ctx)

	<-ctx.Done()
}
