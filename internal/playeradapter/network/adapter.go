// Package network is the player-adapter variant for a networked speaker
// (Sonos, Bluesound): it polls the speaker's own control endpoint for
// state changes and posts accepted changes to the router as media
// snapshots, detecting third-party takeovers heuristically.
package network

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

// Config describes the speaker endpoint and this adapter's identity.
type Config struct {
	SourceID    string
	Name        string
	SelfURL     string // this process's own command_url, as seen by the router
	RouterURL   string
	SpeakerURL  string // the speaker's own control/status endpoint
	PlayerKind  eventtypes.PlayerKind
	MenuPreset  string
	PollMinimum time.Duration // default 500ms
	PollMaximum time.Duration // adaptive backoff ceiling, default 5s
}

// takeoverWindow bounds how soon after an adapter-issued command a track
// change is still attributed to that command, rather than to a third
// party controlling the speaker directly.
const takeoverWindow = 3 * time.Second

// speakerState is the shape the speaker's status endpoint is expected to
// return; concrete speaker protocols (Sonos SOAP/UPnP, Bluesound XML) are
// translated into this shape by whatever transport the deployment wires in
// at SpeakerURL — out of this module's scope, which only defines the
// abstraction the router-facing half needs.
type speakerState struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	ArtworkURL string `json:"artwork_url"`
	PlayState  string `json:"state"`
	PositionMs int64  `json:"position_ms"`
	DurationMs int64  `json:"duration_ms"`
}

// Adapter polls SpeakerURL and reports changes to the router.
type Adapter struct {
	cfg    Config
	client *routerclient.Client

	lastTitle   string
	lastCmdAt   time.Time
	pollCurrent time.Duration

	mu     sync.Mutex
	latest speakerState
}

func NewAdapter(cfg Config, client *routerclient.Client) *Adapter {
	if cfg.PollMinimum <= 0 {
		cfg.PollMinimum = 500 * time.Millisecond
	}
	if cfg.PollMaximum <= 0 {
		cfg.PollMaximum = 5 * time.Second
	}
	return &Adapter{cfg: cfg, client: client, pollCurrent: cfg.PollMinimum}
}

// NoteCommandIssued records that this adapter just sent a command to the
// speaker, used to distinguish a resulting track change from an external
// takeover.
func (a *Adapter) NoteCommandIssued() {
	a.lastCmdAt = time.Now()
}

// Run polls the speaker until ctx is cancelled, posting a media snapshot
// to the router whenever the polled title differs from the last one seen.
// Only the title is compared: a change of any other field (playback state
// included) under the same title is not posted. Poll interval backs off toward
// PollMaximum while the title is unchanged and resets to PollMinimum
// immediately after a change.
func (a *Adapter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.pollCurrent):
		}

		state, err := a.poll(ctx)
		if err != nil {
			slog.Warn("network adapter: poll failed", "source", a.cfg.SourceID, "error", err)
			a.backoff()
			continue
		}

		if state.Title == a.lastTitle {
			a.backoff()
			continue
		}

		a.lastTitle = state.Title
		a.pollCurrent = a.cfg.PollMinimum
		a.mu.Lock()
		a.latest = state
		a.mu.Unlock()
		a.reportChange(ctx, state)
	}
}

// Register posts this adapter's source record to the router, probed at
// SelfURL+"/status", exactly as the local-decoder player adapter does.
func (a *Adapter) Register(ctx context.Context, state eventtypes.SourceState) error {
	src := eventtypes.Source{
		ID:         a.cfg.SourceID,
		Name:       a.cfg.Name,
		State:      state,
		CommandURL: a.cfg.SelfURL,
		Player:     a.cfg.PlayerKind,
		Handles: eventtypes.NewHandleSet([]eventtypes.Handle{
			eventtypes.HandlePlay, eventtypes.HandlePause, eventtypes.HandleToggle,
			eventtypes.HandleNext, eventtypes.HandlePrev, eventtypes.HandleStop,
		}),
		MenuPreset: a.cfg.MenuPreset,
	}
	res, err := a.client.PostJSON(ctx, a.cfg.RouterURL+"/router/source", routerclient.MetadataDeadline, src)
	if err != nil {
		return err
	}
	if res.Outcome != routerclient.OutcomeOK {
		slog.Warn("network adapter: router rejected registration", "source", a.cfg.SourceID, "outcome", res.Outcome)
	}
	return nil
}

// currentState returns the most recently polled speaker state, for the
// adapter's own /status endpoint.
func (a *Adapter) currentState() speakerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

func (a *Adapter) poll(ctx context.Context) (speakerState, error) {
	res, err := a.client.GetJSON(ctx, a.cfg.SpeakerURL+"/status", routerclient.MetadataDeadline)
	if err != nil {
		return speakerState{}, err
	}
	if res.Outcome != routerclient.OutcomeOK {
		return speakerState{}, nil
	}
	var st speakerState
	if err := json.Unmarshal(res.Body, &st); err != nil {
		return speakerState{}, err
	}
	return st, nil
}

func (a *Adapter) backoff() {
	next := a.pollCurrent * 2
	if next > a.cfg.PollMaximum {
		next = a.cfg.PollMaximum
	}
	a.pollCurrent = next
}

func (a *Adapter) reportChange(ctx context.Context, st speakerState) {
	snap := eventtypes.MediaSnapshot{
		Title:      st.Title,
		Artist:     st.Artist,
		Album:      st.Album,
		ArtworkURL: st.ArtworkURL,
		State:      eventtypes.PlaybackState(st.PlayState),
		SourceID:   a.cfg.SourceID,
	}
	if st.PositionMs != 0 {
		snap.PositionMs = &st.PositionMs
	}
	if st.DurationMs != 0 {
		snap.DurationMs = &st.DurationMs
	}

	if time.Since(a.lastCmdAt) > takeoverWindow {
		snap.Reason = eventtypes.ReasonExternalTakeover
		slog.Info("network adapter: track change attributed to external takeover", "source", a.cfg.SourceID)
	}

	_, err := a.client.PostJSON(ctx, a.cfg.RouterURL+"/router/media", routerclient.MetadataDeadline, snap)
	if err != nil {
		slog.Warn("network adapter: failed to post media snapshot", "source", a.cfg.SourceID, "error", err)
	}
}

// Command translates an abstract media intent into the speaker's own
// protocol. The concrete translation is delegated to sendFn, kept
// injectable since it is speaker-protocol-specific.
func (a *Adapter) Command(ctx context.Context, action eventtypes.Handle, params any, sendFn func(context.Context, eventtypes.Handle, any) error) error {
	a.NoteCommandIssued()
	return sendFn(ctx, action, params)
}
