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
	"github.com/mkirsten/beosound5c-sub001/internal/httpmw"
	"github.com/mkirsten/beosound5c-sub001/internal/remoteingress"
	"github.com/mkirsten/beosound5c-sub001/internal/remoteingress/ble"
	"github.com/mkirsten/beosound5c-sub001/internal/remoteingress/ir"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	addr := flag.String("addr", ":8784", "health-check listen address")
	configPath := flag.String("config", "/etc/beosound5c/config.json", "path to config.json")
	secretsPath := flag.String("secrets", "/etc/beosound5c/secrets.env", "path to secrets.env")
	routerURL := flag.String("router", "http://127.0.0.1:8780", "router base URL")
	irPort := flag.String("ir-port", "", "serial device for the IR/rotary bus sniffer (empty disables IR ingress)")
	irBaud := flag.Int("ir-baud", 9600, "baud rate for the IR/rotary bus sniffer")
	bleAdapter := flag.String("ble-adapter", "/org/bluez/hci0", "BlueZ adapter object path")
	bleDisabled := flag.Bool("ble-disabled", false, "disable the Bluetooth-LE ingress path")
	flag.Parse()

	snap, err := config.Load(*configPath, *secretsPath)
	if err != nil {
		slog.Error("remoted: invalid configuration", "error", err)
		os.Exit(1)
	}

	client := routerclient.New()
	keyMap := remoteingress.DefaultKeyMap()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *irPort != "" {
		irIngress := ir.New(ir.Config{Port: *irPort, Baud: *irBaud, RouterURL: *routerURL}, keyMap, client)
		go irIngress.Run(ctx)
	}

	if !*bleDisabled {
		bleIngress := ble.New(ble.Config{RouterURL: *routerURL, AdapterPath: *bleAdapter}, keyMap, client)
		go bleIngress.Run(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpmw.SecurityHeadersGin())
	engine.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

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
		slog.Info("remoted: shutdown signal received")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	stopAnnounce := discovery.Announce(discovery.Config{
		Instance: snap.General.DeviceName + "-remote",
		Service:  "_beosound5c-remote._tcp",
		Port:     addrPort(*addr),
	})
	defer stopAnnounce()

	slog.Info("remoted: starting", "addr", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("remoted: server error", "error", err)
		os.Exit(1)
	}
	slog.Info("remoted: stopped")
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
