package inputdaemon

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkirsten/beosound5c-sub001/internal/config"
	"github.com/mkirsten/beosound5c-sub001/internal/eventbus"
	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
	"github.com/mkirsten/beosound5c-sub001/internal/httpmw"
)

// Daemon wires the decoder, HID reader, hub, and HTTP surface together.
type Daemon struct {
	svc        *Service
	hub        *eventbus.Hub
	httpServer *http.Server
	reader     ReaderConfig
	decoder    *Decoder
	hasPort    bool
}

// New builds a fully-wired Daemon listening on addr. If portName is empty,
// no HID reader is started and the daemon runs in emulation-only mode.
func New(addr string, snap *config.Snapshot, portName string, baud int) *Daemon {
	hub := eventbus.New()
	svc := NewService(Config{
		Calibration: eventtypes.Calibration{
			LaserMin: snap.General.Calibration.LaserMin,
			LaserMid: snap.General.Calibration.LaserMid,
			LaserMax: snap.General.Calibration.LaserMax,
			AngleMin: 0,
			AngleMax: 1,
		},
		MenuEntries: snap.General.Menu,
	}, hub)

	h := NewHandlers(svc, hub)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpmw.SecurityHeadersGin())
	engine.POST("/input/menu", h.Menu)
	engine.POST("/input/emulate", h.Emulate)
	engine.POST("/input/broadcast", h.Broadcast)
	engine.GET("/input/status", h.Status)
	engine.GET("/input/ws", h.ServeWS)

	return &Daemon{
		svc: svc,
		hub: hub,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		reader: ReaderConfig{Port: portName, Baud: baud},
		decoder: NewDecoder(DecodeConfig{
			Calibration: eventtypes.Calibration{
				LaserMin: snap.General.Calibration.LaserMin,
				LaserMid: snap.General.Calibration.LaserMid,
				LaserMax: snap.General.Calibration.LaserMax,
			},
		}),
		hasPort: portName != "",
	}
}

// Run starts the HTTP server and, if a port is configured, the HID reader;
// it blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if d.hasPort {
		go RunReader(ctx, d.reader, d.decoder, d.svc)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := d.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return d.httpServer.Shutdown(shutdownCtx)
	}
}
