package main

import (
	"os"
	"roombook/config"
	"roombook/helper"
	"roombook/shared/logger"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	argLength = 2
)

func main() {
	logger.InitLogger()

	usage := strings.Join(helper.Actions, ", ")

	if len(os.Args) < argLength {
		log.Fatal().Str("actions", usage).Msg("Migration action is required")
	}

	cfg := config.Get()

	logger.SetLogLevel(cfg)

	if err := helper.Runner(cfg, os.Args[1]); err != nil {
		log.Fatal().Err(err).Str("action", os.Args[1]).Str("actions", usage).Msg("Migration failed")
	}
}
