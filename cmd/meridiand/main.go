// Command meridiand runs the matching engine behind a TCP session
// server, accepting meridiactl connections until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"meridian/internal/config"
	"meridian/internal/engine"
	"meridian/internal/server"
)

func main() {
	cfg := config.Defaults()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	eng := engine.NewWithCapacity(cfg.JournalCapacity)
	srv := server.NewWithWorkers(cfg.Address, cfg.Port, eng, cfg.WorkerPoolSize)

	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
