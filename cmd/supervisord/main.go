package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
	"github.com/mkirsten/beosound5c-sub001/internal/supervisor"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	peers := []*supervisor.Peer{
		{Name: "input", HealthURL: "http://127.0.0.1:8781/input/status", ServiceUnit: "beosound5c-inputd.service"},
		{Name: "router", HealthURL: "http://127.0.0.1:8780/health", ServiceUnit: "beosound5c-router.service"},
		{Name: "player", HealthURL: "http://127.0.0.1:8782/health", ServiceUnit: "beosound5c-playerd.service"},
		{Name: "volume", HealthURL: "http://127.0.0.1:8783/health", ServiceUnit: "beosound5c-volumed.service"},
		{Name: "remote", HealthURL: "http://127.0.0.1:8784/health", ServiceUnit: "beosound5c-remoted.service"},
	}

	sup := supervisor.New(supervisor.DefaultInterval, peers, routerclient.New())

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("supervisord: shutdown signal received")
		cancel()
	}()

	sup.Run(ctx)
	slog.Info("supervisord: stopped")
}
