package inputdaemon

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkirsten/beosound5c-sub001/internal/eventbus"
	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
)

// Handlers holds the input daemon's gin route handlers.
type Handlers struct {
	svc *Service
	hub *eventbus.Hub
}

func NewHandlers(svc *Service, hub *eventbus.Hub) *Handlers {
	return &Handlers{svc: svc, hub: hub}
}

// Menu handles POST /input/menu.
func (h *Handlers) Menu(c *gin.Context) {
	var body struct {
		Action eventtypes.MenuAction `json:"action"`
		Item   *eventtypes.MenuItem  `json:"item,omitempty"`
		After  string                `json:"after,omitempty"`
		ID     string                `json:"id,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid request body"})
		return
	}

	menu, err := h.svc.Menu(body.Action, body.Item, body.After, body.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "menu": menu})
}

// Emulate handles POST /input/emulate.
func (h *Handlers) Emulate(c *gin.Context) {
	var body struct {
		Type eventtypes.EventType `json:"type"`
		Data any                  `json:"data"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "type and data are required"})
		return
	}
	h.svc.Emulate(body.Type, body.Data)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Broadcast handles POST /input/broadcast, used by sources to publish their
// own telemetry (e.g. a source's `<id>_update` payload).
func (h *Handlers) Broadcast(c *gin.Context) {
	var body struct {
		Type eventtypes.EventType `json:"type"`
		Data any                  `json:"data"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "type and data are required"})
		return
	}
	h.svc.Broadcast(body.Type, body.Data)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Status handles GET /input/status.
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}

// ServeWS handles GET /input/ws.
func (h *Handlers) ServeWS(c *gin.Context) {
	h.hub.ServeWS(c.Request.Context(), c.Writer, c.Request)
}
