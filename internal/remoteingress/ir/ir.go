// Package ir is the IR+rotary bus sniffer ingress path: a line-oriented
// serial stream of raw vendor key codes, decoded the same way the input
// daemon reads its HID endpoint (a dedicated blocking read goroutine with
// exponential-backoff reopen on failure).
package ir

import (
	"bufio"
	"context"
	"log/slog"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/mkirsten/beosound5c-sub001/internal/remoteingress"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

// Config names the serial device the IR/rotary bus sniffer exposes.
type Config struct {
	Port      string
	Baud      int
	RouterURL string
}

// Dispatch posts one resolved action to the router. Extracted as a field
// so tests can substitute a recording stub without standing up an HTTP
// server per test.
type Dispatch func(ctx context.Context, mapping remoteingress.KeyMapping)

// Ingress owns the IR/rotary serial port and the debounce/mode state built
// from a stream of raw key codes.
type Ingress struct {
	cfg      Config
	keyMap   remoteingress.KeyMap
	tracker  *remoteingress.ButtonTracker
	modes    *remoteingress.ModeTracker
	dispatch Dispatch
}

// New builds an Ingress posting resolved actions to cfg.RouterURL's
// /router/command endpoint.
func New(cfg Config, keyMap remoteingress.KeyMap, client *routerclient.Client) *Ingress {
	ing := &Ingress{
		cfg:     cfg,
		keyMap:  keyMap,
		tracker: &remoteingress.ButtonTracker{},
		modes:   remoteingress.NewModeTracker(remoteingress.ClassAudio),
	}
	ing.dispatch = func(ctx context.Context, mapping remoteingress.KeyMapping) {
		body := map[string]any{"action": mapping.Action, "params": map[string]any{"device_class": mapping.DeviceClass}}
		_, err := client.PostJSON(ctx, cfg.RouterURL+"/router/command", routerclient.CommandDeadline, body)
		if err != nil {
			slog.Warn("ir: failed to post command", "error", err)
		}
	}
	return ing
}

// Run opens the serial port and decodes key codes until ctx is cancelled.
// A failed open is retried with exponential backoff (1s -> 30s); when the
// read loop ends the port is closed and reopened at once.
func (ing *Ingress) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		port, err := serial.Open(ing.cfg.Port, &serial.Mode{BaudRate: ing.cfg.Baud})
		if err != nil {
			slog.Warn("ir: failed to open bus sniffer, retrying", "port", ing.cfg.Port, "error", err, "backoff", backoff)
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = time.Second
		ing.readLoop(ctx, port)
		port.Close()
	}
}

func (ing *Ingress) readLoop(ctx context.Context, port serial.Port) {
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		ing.HandleCode(ctx, scanner.Text())
	}
}

// HandleCode debounces and resolves one raw key code, dispatching an
// action when the debounce tracker says it should fire.
func (ing *Ingress) HandleCode(ctx context.Context, raw string) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return
	}
	if !ing.tracker.Observe(code) {
		return
	}
	mapping, ok := remoteingress.Resolve(ing.keyMap, ing.modes, code)
	if !ok {
		return
	}
	ing.dispatch(ctx, mapping)
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
