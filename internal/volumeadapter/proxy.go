package volumeadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

// ProxyAdapter implements Adapter for the sonos/bluesound volume.type
// values: volume lives on the networked player itself, so this adapter
// forwards to that player's own /command endpoint instead of driving any
// local hardware.
type ProxyAdapter struct {
	playerURL string
	client    *routerclient.Client
	max       int

	level int
}

func NewProxyAdapter(playerURL string, max int, client *routerclient.Client) *ProxyAdapter {
	if max <= 0 {
		max = 100
	}
	return &ProxyAdapter{playerURL: playerURL, client: client, max: max}
}

// Apply posts a volume_set command to the proxied player. The returned
// level is the clamped request, not a confirmed hardware readback — the
// player's own status poll is the source of truth on divergence.
func (a *ProxyAdapter) Apply(level int, balance *int) int {
	if level < 0 {
		level = 0
	}
	if level > a.max {
		level = a.max
	}
	params := map[string]any{"volume": level}
	if balance != nil {
		params["balance"] = *balance
	}
	body := map[string]any{"action": eventtypes.HandleVolumeSet, "params": params}
	res, err := a.client.PostJSON(context.Background(), a.playerURL+"/command", routerclient.CommandDeadline, body)
	if err != nil || res.Outcome != routerclient.OutcomeOK {
		slog.Warn("volumeadapter: proxy volume_set failed", "player", a.playerURL, "outcome", res.Outcome, "error", err)
		return a.level
	}
	a.level = level
	return a.level
}

// Power is a no-op: networked players have no separate power line this
// adapter controls.
func (a *ProxyAdapter) Power(on bool) {}

// Report queries the proxied player's own status for its current volume,
// used to reconcile UI state on startup and reconnect.
func (a *ProxyAdapter) Report() int {
	res, err := a.client.GetJSON(context.Background(), a.playerURL+"/status", routerclient.MetadataDeadline)
	if err != nil || res.Outcome != routerclient.OutcomeOK {
		return a.level
	}
	var body struct {
		Volume *int `json:"volume"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil || body.Volume == nil {
		return a.level
	}
	a.level = *body.Volume
	return a.level
}
