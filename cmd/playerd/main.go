package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkirsten/beosound5c-sub001/internal/config"
	"github.com/mkirsten/beosound5c-sub001/internal/discovery"
	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
	"github.com/mkirsten/beosound5c-sub001/internal/httpmw"
	"github.com/mkirsten/beosound5c-sub001/internal/playeradapter/localdecoder"
	"github.com/mkirsten/beosound5c-sub001/internal/playeradapter/network"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	addr := flag.String("addr", ":8782", "listen address")
	configPath := flag.String("config", "/etc/beosound5c/config.json", "path to config.json")
	secretsPath := flag.String("secrets", "/etc/beosound5c/secrets.env", "path to secrets.env")
	routerURL := flag.String("router", "http://127.0.0.1:8780", "router base URL")
	selfURL := flag.String("self-url", "", "this process's own command_url, as seen by the router (defaults to http://127.0.0.1<addr>)")
	decoderBinary := flag.String("decoder-binary", "ffplay", "decoder executable for the local player path")
	flag.Parse()

	snap, err := config.Load(*configPath, *secretsPath)
	if err != nil {
		slog.Error("playerd: invalid configuration", "error", err)
		os.Exit(1)
	}

	if *selfURL == "" {
		*selfURL = "http://127.0.0.1" + *addr
	}

	client := routerclient.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpmw.SecurityHeadersGin())
	engine.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	switch snap.General.Player.Type {
	case config.PlayerSonos, config.PlayerBluesound:
		adapter := network.NewAdapter(network.Config{
			SourceID:   "player",
			Name:       "Networked Player",
			SelfURL:    *selfURL,
			RouterURL:  *routerURL,
			SpeakerURL: snap.General.Player.Host,
			PlayerKind: eventtypes.PlayerRemote,
		}, client)
		h := network.NewHandlers(adapter, client)
		engine.POST("/command", h.Command)
		engine.GET("/status", h.Status)

		go adapter.Run(ctx)
		go func() {
			time.Sleep(500 * time.Millisecond) // let the HTTP server start before the router probes us
			if err := adapter.Register(ctx, eventtypes.StateRegistered); err != nil {
				slog.Error("playerd: failed to register with router", "error", err)
			}
		}()
	default:
		player := localdecoder.NewPlayer(*decoderBinary, nil)
		svc := localdecoder.NewService(localdecoder.Config{
			SourceID:  "player",
			Name:      "Local Player",
			SelfURL:   *selfURL,
			RouterURL: *routerURL,
		}, player, client)
		h := localdecoder.NewHandlers(svc)
		engine.POST("/command", h.Command)
		engine.GET("/status", h.Status)

		go func() {
			time.Sleep(500 * time.Millisecond) // let the HTTP server start before the router probes us
			if err := svc.Register(ctx, eventtypes.StateRegistered); err != nil {
				slog.Error("playerd: failed to register with router", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("playerd: shutdown signal received")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	stopAnnounce := discovery.Announce(discovery.Config{
		Instance: snap.General.DeviceName + "-player",
		Service:  "_beosound5c-player._tcp",
		Port:     addrPort(*addr),
	})
	defer stopAnnounce()

	slog.Info("playerd: starting", "addr", *addr, "player_type", snap.General.Player.Type)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("playerd: server error", "error", err)
		os.Exit(1)
	}
	slog.Info("playerd: stopped")
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
