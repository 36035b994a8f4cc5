// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netquake/commandline"
	"netquake/config"
	"netquake/host"
	"netquake/qtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func writeError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func main() {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(consoleWriter)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	flags, err := commandline.Parse(os.Args[1:])
	if err != nil {
		writeError(err)
	}
	if flags.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Warn().Msg("debug logging enabled")
	}

	cfg, err := config.Load(flags.Config...)
	if err != nil {
		writeError(err)
	}
	env, err := host.NewEnvironment(cfg, flags)
	if err != nil {
		writeError(err)
	}
	h, err := host.New(env, qtime.Real())
	if err != nil {
		writeError(err)
	}
	h.SetConsole(host.ReadConsole(os.Stdin))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := h.Run(ctx); err != nil {
		log.Error().Err(err).Msg("host stopped")
		stop()
		os.Exit(1)
	}
}
