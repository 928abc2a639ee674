package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HappyTetrahedron/rocketchat-async/internal/config"
	"github.com/HappyTetrahedron/rocketchat-async/internal/logger"
)

const usage = `usage: rocketchat <command> [flags]

commands:
  channels                      list the channels of the logged-in user
  send     -channel ID -text T  post a message
  react    -message ID -emoji E react to a message
  typing   -channel ID [-username U] [-stop]
                                announce typing
  listen   -channel ID          print messages; lines on stdin are sent
  watch                         print changes to the channel list

Connection settings come from the environment (ROCKETCHAT_URL,
ROCKETCHAT_USER, ROCKETCHAT_PASSWORD or ROCKETCHAT_TOKEN, ...).`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := &CLI{cfg: cfg, logger: log, in: os.Stdin, out: os.Stdout}
	return cli.Run(ctx, os.Args[1], os.Args[2:])
}
