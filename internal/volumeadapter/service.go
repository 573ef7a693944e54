// Package volumeadapter's Service subscribes to the input daemon's event
// stream, feeds volume events through an Accumulator, and reports accepted
// levels to the router — the consumer-side half of the pipeline the input
// daemon's hub and the router's volume_report endpoint were built for.
package volumeadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

// Config describes where this service reads input events from and where it
// reports accepted volume levels to.
type Config struct {
	SourceID   string // the volume.type value this deployment is configured with
	InputWSURL string // ws://host:port/input/ws
	RouterURL  string
}

// Service owns one Accumulator and the WebSocket connection that feeds it.
type Service struct {
	cfg       Config
	acc       *Accumulator
	client    *routerclient.Client
	reconnect time.Duration
}

func NewService(cfg Config, adapter Adapter, debounceWindow time.Duration, client *routerclient.Client) *Service {
	s := &Service{cfg: cfg, client: client, reconnect: 2 * time.Second}
	s.acc = NewAccumulator(adapter, debounceWindow, s.reportLevel)
	return s
}

// Run connects to the input daemon's event stream and feeds volume events
// to the accumulator until ctx is cancelled, reconnecting on disconnect.
// It calls Report once immediately (the startup seed) and once after every
// successful (re)connection, as required by §4.5.
func (s *Service) Run(ctx context.Context) {
	s.reportLevel(s.acc.adapter.Report())
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.runOnce(ctx); err != nil {
			slog.Warn("volumeadapter: input stream disconnected", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnect):
		}
	}
}

func (s *Service) runOnce(ctx context.Context) error {
	wsURL, err := normalizeWS(s.cfg.InputWSURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	slog.Info("volumeadapter: connected to input stream", "url", wsURL)
	s.reportLevel(s.acc.adapter.Report())

	for {
		var ev eventtypes.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		if ev.Type != eventtypes.EventVolume {
			continue
		}
		nav, err := decodeNavEvent(ev.Data)
		if err != nil {
			slog.Warn("volumeadapter: malformed volume event", "error", err)
			continue
		}
		s.acc.Feed(nav)
	}
}

func decodeNavEvent(data any) (eventtypes.NavEvent, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return eventtypes.NavEvent{}, err
	}
	var ev eventtypes.NavEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return eventtypes.NavEvent{}, err
	}
	return ev, nil
}

// reportLevel POSTs the accepted level to the router as a volume_report.
func (s *Service) reportLevel(level int) {
	body := map[string]any{"volume": level, "source": s.cfg.SourceID}
	_, err := s.client.PostJSON(context.Background(), s.cfg.RouterURL+"/router/volume_report", routerclient.CommandDeadline, body)
	if err != nil {
		slog.Warn("volumeadapter: failed to post volume_report", "error", err)
	}
}

func normalizeWS(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "http" {
		u.Scheme = "ws"
	} else if u.Scheme == "https" {
		u.Scheme = "wss"
	}
	if !strings.HasSuffix(u.Path, "/input/ws") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/input/ws"
	}
	return u.String(), nil
}
