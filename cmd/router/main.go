package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mkirsten/beosound5c-sub001/internal/config"
	"github.com/mkirsten/beosound5c-sub001/internal/discovery"
	"github.com/mkirsten/beosound5c-sub001/internal/router"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	addr := flag.String("addr", ":8780", "listen address")
	configPath := flag.String("config", "/etc/beosound5c/config.json", "path to config.json")
	secretsPath := flag.String("secrets", "/etc/beosound5c/secrets.env", "path to secrets.env")
	statePath := flag.String("state", "/var/lib/beosound5c/router-state.json", "path to persisted router state")
	flag.Parse()

	snap, err := config.Load(*configPath, *secretsPath)
	if err != nil {
		slog.Error("router: invalid configuration", "error", err)
		os.Exit(1)
	}

	r, err := router.New(*addr, *statePath, snap)
	if err != nil {
		slog.Error("router: failed to initialize", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("router: shutdown signal received")
		cancel()
	}()

	stopAnnounce := discovery.Announce(discovery.Config{
		Instance: snap.General.DeviceName + "-router",
		Service:  "_beosound5c-router._tcp",
		Port:     addrPort(*addr),
	})
	defer stopAnnounce()

	slog.Info("router: starting", "addr", *addr)
	if err := r.Run(ctx); err != nil {
		slog.Error("router: server error", "error", err)
		os.Exit(1)
	}
	slog.Info("router: stopped")
}

func addrPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
