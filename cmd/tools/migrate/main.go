package main

import (
	"flag"
	"os"

	"github.com/noah-isme/coreb-invoice/internal/config"
	"github.com/noah-isme/coreb-invoice/internal/db"
	"github.com/noah-isme/coreb-invoice/internal/obs"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of applying")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("tool", "migrate").Logger()

	if *down > 0 {
		err = db.Down(cfg.DatabaseURL, *down, logger)
	} else {
		err = db.Up(cfg.DatabaseURL, logger)
	}
	if err != nil {
		logger.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
}
