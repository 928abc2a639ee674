package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/samber/lo"

	"github.com/HappyTetrahedron/rocketchat-async/internal/logger"
	"github.com/HappyTetrahedron/rocketchat-async/internal/server"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:3000", "Address to listen on")
	users := flag.String("users", "alice:wonderland,bob:builder", "Comma separated username:password pairs")
	rooms := flag.String("rooms", "GENERAL:c", "Comma separated id:type rooms")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, closeLog, err := logger.New(logger.Options{Level: *logLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	accounts := parseAccounts(*users)
	srv := server.New(*addr, log)
	srv.InstallDefaults(accounts, parseRooms(*rooms))

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	for _, a := range accounts {
		log.Info("account", "username", a.Username, "user_id", a.ID, "token", a.Token)
	}

	select {
	case err := <-errChan:
		if err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())
		srv.Stop()
	}

	log.Info("realtime server stopped")
}

func parseAccounts(list string) []server.Account {
	pairs := lo.Compact(strings.Split(list, ","))
	return lo.Map(pairs, func(pair string, _ int) server.Account {
		username, password, _ := strings.Cut(pair, ":")
		return server.Account{
			ID:       "u-" + username,
			Username: username,
			Password: password,
			Token:    "tok-" + username,
		}
	})
}

func parseRooms(list string) []server.Room {
	pairs := lo.Compact(strings.Split(list, ","))
	return lo.Map(pairs, func(pair string, _ int) server.Room {
		id, kind, ok := strings.Cut(pair, ":")
		if !ok {
			kind = "c"
		}
		return server.Room{ID: id, Type: kind, Name: strings.ToLower(id)}
	})
}
