/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const logDate string = `2006-01-02T15:04:05.000-07:00`

func configureLogging(cfg *Config) {
	zerolog.TimeFieldFormat = logDate

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: logDate,
	}).With().Timestamp().Logger()

	if cfg.verbose {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

func logf(format string, args ...any) {
	log.Info().Msgf(format, args...)
}

// byteCount formats a response size for the access log lines.
func byteCount(n int) string {
	const unit = 1000

	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	value, prefix := float64(n)/unit, 0
	for value >= unit && prefix < len("kMGT")-1 {
		value /= unit
		prefix++
	}

	return fmt.Sprintf("%.1f %cB", value, "kMGT"[prefix])
}
