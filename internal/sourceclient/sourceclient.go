// Package sourceclient is the SDK a source adapter (§4.4's generic
// contract) builds on: register with the router, post state transitions
// as they happen, announce/remove its menu item, and post source-specific
// telemetry — every call out-of-scope concrete sources (radio stations,
// streaming services, line inputs not already covered by playeradapter)
// need to honor that contract without reimplementing the HTTP wiring.
package sourceclient

import (
	"context"
	"log/slog"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

// Config identifies this source and the two peers it talks to.
type Config struct {
	SourceID   string
	Name       string
	CommandURL string // this source's base URL as seen by the router, which probes CommandURL+"/status" and posts to CommandURL+"/command"
	Player     eventtypes.PlayerKind
	Handles    eventtypes.HandleSet
	MenuPreset string

	RouterURL string
	InputURL  string
}

// Client is the SDK handle a source adapter keeps for its lifetime.
type Client struct {
	cfg    Config
	http   *routerclient.Client
	menuID string
}

// New builds a Client. http may be routerclient.New() for a fresh one, or
// an existing client shared with the rest of the adapter.
func New(cfg Config, http *routerclient.Client) *Client {
	return &Client{cfg: cfg, http: http}
}

// Register posts this source's record to the router (step 1 of §4.4),
// probed by the router against CommandURL+"/status".
func (c *Client) Register(ctx context.Context, state eventtypes.SourceState) error {
	src := eventtypes.Source{
		ID:         c.cfg.SourceID,
		Name:       c.cfg.Name,
		State:      state,
		CommandURL: c.cfg.CommandURL,
		Player:     c.cfg.Player,
		Handles:    c.cfg.Handles,
		MenuPreset: c.cfg.MenuPreset,
	}
	res, err := c.http.PostJSON(ctx, c.cfg.RouterURL+"/router/source", routerclient.MetadataDeadline, src)
	if err != nil {
		return err
	}
	if res.Outcome != routerclient.OutcomeOK {
		slog.Warn("sourceclient: router rejected registration", "source", c.cfg.SourceID, "outcome", res.Outcome)
	}
	return nil
}

// AnnounceMenuItem adds this source's menu entry via the input daemon
// (the other half of §4.4 step 1), remembering its ID for later removal.
func (c *Client) AnnounceMenuItem(ctx context.Context, item eventtypes.MenuItem, after string) error {
	if item.SourceID == "" {
		item.SourceID = c.cfg.SourceID
	}
	body := map[string]any{"action": eventtypes.MenuAdd, "item": item, "after": after}
	res, err := c.http.PostJSON(ctx, c.cfg.InputURL+"/input/menu", routerclient.MetadataDeadline, body)
	if err != nil {
		return err
	}
	if res.Outcome != routerclient.OutcomeOK {
		slog.Warn("sourceclient: input daemon rejected menu item", "source", c.cfg.SourceID, "outcome", res.Outcome)
		return nil
	}
	if item.ID != "" {
		c.menuID = item.ID
	} else {
		c.menuID = item.Route
	}
	return nil
}

// RemoveMenuItem removes this source's previously-announced menu entry.
func (c *Client) RemoveMenuItem(ctx context.Context) error {
	if c.menuID == "" {
		return nil
	}
	body := map[string]any{"action": eventtypes.MenuRemove, "id": c.menuID}
	_, err := c.http.PostJSON(ctx, c.cfg.InputURL+"/input/menu", routerclient.MetadataDeadline, body)
	return err
}

// PostState reports a playback state transition to the router (§4.4 step
// 3): called as transitions occur, never on a schedule.
func (c *Client) PostState(ctx context.Context, snap eventtypes.MediaSnapshot) error {
	snap.SourceID = c.cfg.SourceID
	res, err := c.http.PostJSON(ctx, c.cfg.RouterURL+"/router/media", routerclient.MetadataDeadline, snap)
	if err != nil {
		return err
	}
	if res.Outcome == routerclient.OutcomeOK {
		return nil
	}
	slog.Debug("sourceclient: media snapshot not broadcast", "source", c.cfg.SourceID, "outcome", res.Outcome)
	return nil
}

// Broadcast posts this source's own `<id>_update` telemetry via the input
// daemon's broadcast endpoint (§4.4 step 4).
func (c *Client) Broadcast(ctx context.Context, data any) error {
	body := map[string]any{"type": eventtypes.SourceUpdateType(c.cfg.SourceID), "data": data}
	_, err := c.http.PostJSON(ctx, c.cfg.InputURL+"/input/broadcast", routerclient.MetadataDeadline, body)
	return err
}

// Goodbye posts state=gone and removes the menu item, the graceful
// shutdown sequence of §4.4 step 5.
func (c *Client) Goodbye(ctx context.Context) {
	if err := c.Register(ctx, eventtypes.StateGone); err != nil {
		slog.Warn("sourceclient: failed to post state=gone", "source", c.cfg.SourceID, "error", err)
	}
	if err := c.RemoveMenuItem(ctx); err != nil {
		slog.Warn("sourceclient: failed to remove menu item", "source", c.cfg.SourceID, "error", err)
	}
}
