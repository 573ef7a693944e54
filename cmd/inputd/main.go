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
	"github.com/mkirsten/beosound5c-sub001/internal/inputdaemon"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	addr := flag.String("addr", ":8781", "listen address")
	configPath := flag.String("config", "/etc/beosound5c/config.json", "path to config.json")
	secretsPath := flag.String("secrets", "/etc/beosound5c/secrets.env", "path to secrets.env")
	port := flag.String("hid-port", "", "serial device exposing the HID report stream (empty: emulation only)")
	baud := flag.Int("hid-baud", 115200, "baud rate for the HID serial endpoint")
	flag.Parse()

	snap, err := config.Load(*configPath, *secretsPath)
	if err != nil {
		slog.Error("inputd: invalid configuration", "error", err)
		os.Exit(1)
	}

	d := inputdaemon.New(*addr, snap, *port, *baud)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("inputd: shutdown signal received")
		cancel()
	}()

	stopAnnounce := discovery.Announce(discovery.Config{
		Instance: snap.General.DeviceName + "-input",
		Service:  "_beosound5c-input._tcp",
		Port:     addrPort(*addr),
	})
	defer stopAnnounce()

	slog.Info("inputd: starting", "addr", *addr, "hid_port", *port)
	if err := d.Run(ctx); err != nil {
		slog.Error("inputd: server error", "error", err)
		os.Exit(1)
	}
	slog.Info("inputd: stopped")
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
