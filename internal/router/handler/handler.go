// Package handler holds the router's gin route handlers, translating HTTP
// bodies into calls against service.Service and back into the JSON shapes
// the rest of the fabric expects.
package handler

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/mkirsten/beosound5c-sub001/internal/eventbus"
	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
	"github.com/mkirsten/beosound5c-sub001/internal/localauth"
	"github.com/mkirsten/beosound5c-sub001/internal/router/service"
)

// Handlers holds everything the router's gin routes need.
type Handlers struct {
	svc  *service.Service
	hub  *eventbus.Hub
	gate *localauth.Gate
	seq  atomic.Uint64
}

func New(svc *service.Service, hub *eventbus.Hub, gate *localauth.Gate) *Handlers {
	return &Handlers{svc: svc, hub: hub, gate: gate}
}

func (h *Handlers) nextSeq() uint64 { return h.seq.Add(1) }

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RegisterSource handles POST /router/source.
func (h *Handlers) RegisterSource(c *gin.Context) {
	var body eventtypes.Source
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body", "seq": h.nextSeq()})
		return
	}
	if body.ID == "" || body.CommandURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "id and command_url are required", "seq": h.nextSeq()})
		return
	}

	active, err := h.svc.RegisterOrUpdateSource(c.Request.Context(), body)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"status": "error", "error": err.Error(), "seq": h.nextSeq()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "active_source": active, "seq": h.nextSeq()})
}

// PostMedia handles POST /router/media.
func (h *Handlers) PostMedia(c *gin.Context) {
	var body service.MediaReport
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "seq": h.nextSeq()})
		return
	}
	if h.svc.Media(body) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "seq": h.nextSeq()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "suppressed", "seq": h.nextSeq()})
}

// PostCommand handles POST /router/command.
func (h *Handlers) PostCommand(c *gin.Context) {
	var body struct {
		Action eventtypes.Handle `json:"action"`
		Params any               `json:"params,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "seq": h.nextSeq()})
		return
	}

	outcome, err := h.svc.Command(c.Request.Context(), body.Action, body.Params)
	status := http.StatusOK
	switch outcome {
	case service.OutcomeTimeout:
		status = http.StatusRequestTimeout
	case service.OutcomeRejected:
		status = http.StatusBadGateway
	}
	resp := gin.H{"status": outcome, "seq": h.nextSeq()}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(status, resp)
}

// PostVolumeReport handles POST /router/volume_report.
func (h *Handlers) PostVolumeReport(c *gin.Context) {
	var body service.VolumeReport
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "seq": h.nextSeq()})
		return
	}
	if h.svc.VolumeReport(body) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "seq": h.nextSeq()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "suppressed", "seq": h.nextSeq()})
}

// PlaybackOverride handles POST /router/playback_override, gated behind the
// local admin token since it bypasses the normal deposal handshake.
func (h *Handlers) PlaybackOverride(c *gin.Context) {
	token := localauth.BearerToken(c.Request)
	if err := h.gate.Check(token, c.Request.RemoteAddr); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error(), "seq": h.nextSeq()})
		return
	}

	var body struct {
		Force    bool   `json:"force"`
		SourceID string `json:"source_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "seq": h.nextSeq()})
		return
	}
	if !body.Force {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "force must be true", "seq": h.nextSeq()})
		return
	}
	h.svc.PlaybackOverride(body.SourceID)
	c.JSON(http.StatusOK, gin.H{"ok": true, "seq": h.nextSeq()})
}

// Status handles GET /router/status.
func (h *Handlers) Status(c *gin.Context) {
	snap := h.svc.Status()
	c.JSON(http.StatusOK, gin.H{
		"active_source": snap.ActiveSource,
		"sources":       snap.Sources,
		"last_media":    snap.LastMedia,
		"subscribers":   snap.Subscribers,
		"seq":           h.nextSeq(),
	})
}

// ServeWS handles GET /router/ws, upgrading to the media/source_update
// WebSocket stream.
func (h *Handlers) ServeWS(c *gin.Context) {
	h.hub.ServeWS(c.Request.Context(), c.Writer, c.Request)
}
