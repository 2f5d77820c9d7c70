package main

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GamesDoneQuick/agdq17-layouts/internal/config"
)

// setupLogging configures the global logger.
func setupLogging(cfg config.Log, w io.Writer) {
	zerolog.SetGlobalLevel(cfg.ZerologLevel())
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"})
		return
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}
