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
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
	"github.com/mkirsten/beosound5c-sub001/internal/volumeadapter"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	addr := flag.String("addr", ":8783", "health-check listen address")
	configPath := flag.String("config", "/etc/beosound5c/config.json", "path to config.json")
	secretsPath := flag.String("secrets", "/etc/beosound5c/secrets.env", "path to secrets.env")
	inputURL := flag.String("input", "http://127.0.0.1:8781", "input daemon base URL")
	routerURL := flag.String("router", "http://127.0.0.1:8780", "router base URL")
	playerURL := flag.String("player", "http://127.0.0.1:8782", "networked player base URL, used by sonos/bluesound volume types")
	flag.Parse()

	snap, err := config.Load(*configPath, *secretsPath)
	if err != nil {
		slog.Error("volumed: invalid configuration", "error", err)
		os.Exit(1)
	}

	adapter, err := buildAdapter(snap.General.Volume, *playerURL)
	if err != nil {
		slog.Error("volumed: failed to build volume adapter", "error", err)
		os.Exit(1)
	}

	client := routerclient.New()
	svc := volumeadapter.NewService(volumeadapter.Config{
		SourceID:   string(snap.General.Volume.Type),
		InputWSURL: *inputURL,
		RouterURL:  *routerURL,
	}, adapter, 0, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

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
		slog.Info("volumed: shutdown signal received")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	stopAnnounce := discovery.Announce(discovery.Config{
		Instance: snap.General.DeviceName + "-volume",
		Service:  "_beosound5c-volume._tcp",
		Port:     addrPort(*addr),
	})
	defer stopAnnounce()

	slog.Info("volumed: starting", "addr", *addr, "volume_type", snap.General.Volume.Type)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("volumed: server error", "error", err)
		os.Exit(1)
	}
	slog.Info("volumed: stopped")
}

func buildAdapter(cfg config.VolumeConfig, playerURL string) (volumeadapter.Adapter, error) {
	switch cfg.Type {
	case config.VolumeSonos, config.VolumeBluesound:
		return volumeadapter.NewProxyAdapter(playerURL, cfg.Max, routerclient.New()), nil
	default:
		if err := volumeadapter.InitHost(); err != nil {
			return nil, err
		}
		return volumeadapter.NewGPIOAdapter(pinsFor(cfg))
	}
}

// pinsFor maps a volume.type to the GPIO line names it drives. Real
// deployments override these via the host's pin-naming scheme (BCM numbers
// on a Raspberry Pi); the names below are placeholders a deployment's
// config is expected to match against its own wiring, not hardcoded
// hardware truth.
func pinsFor(cfg config.VolumeConfig) volumeadapter.GPIOConfig {
	base := volumeadapter.GPIOConfig{Max: cfg.Max, Step: cfg.Step}
	switch cfg.Type {
	case config.VolumePowerlink:
		base.PowerPin, base.UpPin, base.DownPin = "GPIO17", "GPIO27", "GPIO22"
	case config.VolumeHDMI:
		base.PowerPin, base.UpPin, base.DownPin = "GPIO5", "GPIO6", "GPIO13"
	case config.VolumeSPDIF:
		base.UpPin, base.DownPin = "GPIO19", "GPIO26"
	case config.VolumeRCA:
		base.UpPin, base.DownPin = "GPIO16", "GPIO20"
	case config.VolumeBeolab5:
		base.PowerPin, base.UpPin, base.DownPin = "GPIO23", "GPIO24", "GPIO25"
	case config.VolumeC4Amp:
		base.PowerPin, base.UpPin, base.DownPin = "GPIO4", "GPIO12", "GPIO21"
	}
	return base
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
