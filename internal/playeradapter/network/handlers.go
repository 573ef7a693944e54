package network

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

// Handlers exposes the gin routes for this adapter's own HTTP contract:
// the /command endpoint the router (or, for volume_set, the proxy volume
// adapter) calls to drive the speaker, and /status for the router's
// registration probe.
type Handlers struct {
	adapter *Adapter
	client  *routerclient.Client
}

func NewHandlers(adapter *Adapter, client *routerclient.Client) *Handlers {
	return &Handlers{adapter: adapter, client: client}
}

// Command handles POST /command, translating {play, pause, toggle, next,
// prev, stop, volume_set} into the speaker's own native protocol by
// forwarding the same action/params shape to SpeakerURL+"/command" — the
// concrete protocol translation is the speaker's own concern, reached
// through whatever transport is wired in at SpeakerURL.
func (h *Handlers) Command(c *gin.Context) {
	var body struct {
		Action eventtypes.Handle `json:"action"`
		Params any               `json:"params,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	err := h.adapter.Command(c.Request.Context(), body.Action, body.Params, h.sendToSpeaker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) sendToSpeaker(ctx context.Context, action eventtypes.Handle, params any) error {
	body := map[string]any{"action": action}
	if params != nil {
		body["params"] = params
	}
	_, err := h.client.PostJSON(ctx, h.adapter.cfg.SpeakerURL+"/command", routerclient.CommandDeadline, body)
	return err
}

// Status handles GET /status, reporting the most recently polled speaker
// state so the router's registration probe (and any other caller) sees
// the same view Run() last observed.
func (h *Handlers) Status(c *gin.Context) {
	st := h.adapter.currentState()
	c.JSON(http.StatusOK, gin.H{
		"title":   st.Title,
		"artist":  st.Artist,
		"album":   st.Album,
		"state":   st.PlayState,
		"playing": st.PlayState == string(eventtypes.PlaybackPlaying),
	})
}
