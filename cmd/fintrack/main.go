package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/google/subcommands"
	"github.com/jrsteele09/fintrack-client/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var envFile = flag.String("env-file", ".env", "dotenv file loaded before reading configuration")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	registerCommands(commander)
	flag.Parse()

	status, err := run(commander)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(int(status))
}

func run(commander *subcommands.Commander) (status subcommands.ExitStatus, returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			status, returnError = subcommands.ExitFailure, errors.New("panic recovered")
		}
	}()

	c := config.Load(*envFile)
	setupLogging(c)

	a, err := newApp(c, os.Stdout)
	if err != nil {
		return subcommands.ExitFailure, err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("closing storage")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commander.Execute(ctx, a), nil
}

func registerCommands(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")

	c.Register(&loginCmd{}, "session")
	c.Register(&registerCmd{}, "session")
	c.Register(&logoutCmd{}, "session")
	c.Register(&whoamiCmd{}, "session")
	c.Register(&statusCmd{}, "session")
	c.Register(&disclosuresCmd{}, "session")

	c.Register(&oauthURLCmd{}, "oauth")
	c.Register(&oauthCallbackCmd{}, "oauth")

	c.Register(&getCmd{}, "api")
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
