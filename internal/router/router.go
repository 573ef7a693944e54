package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkirsten/beosound5c-sub001/internal/config"
	"github.com/mkirsten/beosound5c-sub001/internal/eventbus"
	"github.com/mkirsten/beosound5c-sub001/internal/httpmw"
	"github.com/mkirsten/beosound5c-sub001/internal/localauth"
	"github.com/mkirsten/beosound5c-sub001/internal/router/handler"
	"github.com/mkirsten/beosound5c-sub001/internal/router/service"
	"github.com/mkirsten/beosound5c-sub001/internal/router/store"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

// Router wires the gin engine, the state-owning Service, and the WebSocket
// hub into one HTTP server.
type Router struct {
	svc        *service.Service
	hub        *eventbus.Hub
	httpServer *http.Server
	ttl        time.Duration
}

// New builds a fully-wired Router listening on addr. statePath is where
// active_source/last_media are persisted.
func New(addr, statePath string, snap *config.Snapshot) (*Router, error) {
	st, err := store.New(statePath)
	if err != nil {
		return nil, err
	}

	hub := eventbus.New()
	client := routerclient.New()

	gate := localauth.New(localauth.Config{Token: snap.Secrets.AdminToken()})

	svc, err := service.New(service.Config{
		DefaultSourceID:  snap.General.DefaultPlayer,
		DefaultPlayerURL: defaultPlayerURL(snap),
		VolumeType:       string(snap.General.Volume.Type),
		SourceTTL:        5 * time.Minute,
	}, client, hub, st)
	if err != nil {
		return nil, err
	}

	h := handler.New(svc, hub, gate)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpmw.SecurityHeadersGin())

	engine.GET("/health", h.Health)
	engine.POST("/router/source", h.RegisterSource)
	engine.POST("/router/media", h.PostMedia)
	engine.POST("/router/command", h.PostCommand)
	engine.POST("/router/volume_report", h.PostVolumeReport)
	engine.POST("/router/playback_override", h.PlaybackOverride)
	engine.GET("/router/status", h.Status)
	engine.GET("/router/ws", h.ServeWS)

	return &Router{
		svc: svc,
		hub: hub,
		ttl: 5 * time.Minute,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
	}, nil
}

// defaultPlayerURL is cmd/playerd's own command endpoint, the target for
// the default player before (or absent) an explicit /router/source
// registration. It is always playerd's own listen address, never the
// raw speaker host configured under player.host/player.ip: for a
// networked speaker (sonos/bluesound) that field names the speaker
// itself, and commands still have to go through playerd's own /command
// so its native-protocol translation runs, rather than skipping the
// player-adapter abstraction entirely.
func defaultPlayerURL(snap *config.Snapshot) string {
	if snap.General.PlayerDaemonURL != "" {
		return snap.General.PlayerDaemonURL
	}
	return "http://127.0.0.1:8782"
}

// Run starts the HTTP server and the TTL-sweep ticker; it blocks until ctx
// is cancelled.
func (r *Router) Run(ctx context.Context) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.svc.SweepExpired(r.ttl)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r.svc.Close()
		return r.httpServer.Shutdown(shutdownCtx)
	}
}
