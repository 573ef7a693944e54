package localdecoder

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

// Config describes this adapter's identity and the router it reports to.
type Config struct {
	SourceID   string
	Name       string
	SelfURL    string // this process's own command_url, as seen by the router
	RouterURL  string
	MenuPreset string
}

// Service wires a Player to the source lifecycle contract (§4.4): it
// registers with the router, posts state transitions as they happen, and
// exposes /command and /status for the router to call back into.
type Service struct {
	cfg    Config
	player *Player
	client *routerclient.Client
}

func NewService(cfg Config, player *Player, client *routerclient.Client) *Service {
	return &Service{cfg: cfg, player: player, client: client}
}

// Register posts this source's record to the router with the given state,
// probed by the router against SelfURL+"/status".
func (s *Service) Register(ctx context.Context, state eventtypes.SourceState) error {
	src := eventtypes.Source{
		ID:         s.cfg.SourceID,
		Name:       s.cfg.Name,
		State:      state,
		CommandURL: s.cfg.SelfURL,
		Player:     eventtypes.PlayerLocal,
		Handles: eventtypes.NewHandleSet([]eventtypes.Handle{
			eventtypes.HandlePlay, eventtypes.HandlePause, eventtypes.HandleToggle,
			eventtypes.HandleNext, eventtypes.HandlePrev, eventtypes.HandleStop,
		}),
		MenuPreset: s.cfg.MenuPreset,
	}
	res, err := s.client.PostJSON(ctx, s.cfg.RouterURL+"/router/source", routerclient.MetadataDeadline, src)
	if err != nil {
		return err
	}
	if res.Outcome != routerclient.OutcomeOK {
		slog.Warn("localdecoder: router rejected registration", "outcome", res.Outcome)
	}
	return nil
}

// postMedia reports the current playback state to the router.
func (s *Service) postMedia(ctx context.Context, state eventtypes.PlaybackState) {
	track, _ := s.player.CurrentTrack()
	meta := ReadMetadata(track.Path)
	snap := eventtypes.MediaSnapshot{
		Title:    meta.Title,
		Artist:   meta.Artist,
		Album:    meta.Album,
		State:    state,
		SourceID: s.cfg.SourceID,
	}
	_, err := s.client.PostJSON(ctx, s.cfg.RouterURL+"/router/media", routerclient.MetadataDeadline, snap)
	if err != nil {
		slog.Warn("localdecoder: failed to post media snapshot", "error", err)
	}
}

// Handlers exposes the gin routes for this source's HTTP contract.
type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers { return &Handlers{svc: svc} }

// Command handles POST /command.
func (h *Handlers) Command(c *gin.Context) {
	var body struct {
		Action eventtypes.Handle `json:"action"`
		Params any               `json:"params,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	ctx := c.Request.Context()
	var err error
	var newState eventtypes.PlaybackState
	switch body.Action {
	case eventtypes.HandlePlay:
		err = h.svc.player.Play(ctx)
		newState = eventtypes.PlaybackPlaying
	case eventtypes.HandlePause:
		h.svc.player.Pause()
		newState = eventtypes.PlaybackPaused
	case eventtypes.HandleToggle:
		if h.svc.player.IsPlaying() {
			h.svc.player.Pause()
			newState = eventtypes.PlaybackPaused
		} else {
			err = h.svc.player.Play(ctx)
			newState = eventtypes.PlaybackPlaying
		}
	case eventtypes.HandleNext:
		err = h.svc.player.Next(ctx)
		newState = eventtypes.PlaybackPlaying
	case eventtypes.HandlePrev:
		err = h.svc.player.Prev(ctx)
		newState = eventtypes.PlaybackPlaying
	case eventtypes.HandleStop:
		h.svc.player.Stop()
		newState = eventtypes.PlaybackStopped
	default:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unsupported action"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	go h.svc.postMedia(context.Background(), newState)
	c.JSON(http.StatusOK, gin.H{"ok": true, "playback": newState})
}

// Status handles GET /status.
func (h *Handlers) Status(c *gin.Context) {
	track, ok := h.svc.player.CurrentTrack()
	c.JSON(http.StatusOK, gin.H{
		"playing": h.svc.player.IsPlaying(),
		"track":   track.Path,
		"queued":  ok,
		"ts":      time.Now().UnixMilli(),
	})
}
