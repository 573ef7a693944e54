// Package ble is the Bluetooth-LE remote ingress: connects to BlueZ over
// the system D-Bus (github.com/godbus/dbus/v5) and supervises the
// connection with escalating reset levels, since BLE hardware connections
// are expected to fail often.
package ble

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/mkirsten/beosound5c-sub001/internal/remoteingress"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

// exitCodeTotalFailuresExhausted is the process exit code used once total
// BLE connection failures cross MaxTotalFailures, per the documented
// failure-count-to-exit-code contract.
const exitCodeTotalFailuresExhausted = 3

// ResetLevel is one rung of the escalating recovery ladder a persistently
// failing connection climbs.
type ResetLevel int

const (
	ResetPowerCycle ResetLevel = iota + 1
	ResetInterfaceToggle
	ResetStackRestart
	ResetModuleReload
)

func (r ResetLevel) String() string {
	switch r {
	case ResetPowerCycle:
		return "power_cycle"
	case ResetInterfaceToggle:
		return "interface_toggle"
	case ResetStackRestart:
		return "stack_restart"
	case ResetModuleReload:
		return "module_reload"
	default:
		return "unknown"
	}
}

// backoffSchedule is the fixed exponential-ish backoff sequence between
// connect attempts; the last entry repeats once exhausted.
var backoffSchedule = []time.Duration{2 * time.Second, 5 * time.Second, 15 * time.Second, 30 * time.Second, 60 * time.Second}

// Config carries the failure-escalation thresholds, defaulted per §4.6.
type Config struct {
	RouterURL              string
	AdapterPath            string // e.g. /org/bluez/hci0
	MaxConsecutiveFailures int           // F_max, default 30
	MaxTotalFailures       int           // F_exit, default 50
	CoolingOff             time.Duration // default 10min
}

func (c *Config) setDefaults() {
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 30
	}
	if c.MaxTotalFailures <= 0 {
		c.MaxTotalFailures = 50
	}
	if c.CoolingOff <= 0 {
		c.CoolingOff = 10 * time.Minute
	}
}

// Dispatch posts one resolved action to the router.
type Dispatch func(ctx context.Context, mapping remoteingress.KeyMapping)

// Exit is called when total failures cross MaxTotalFailures, deferring
// recovery to the health supervisor. The default terminates the process
// with exitCodeTotalFailuresExhausted; it is a field so tests can swap in
// a spy instead of letting the process actually exit.
type Exit func()

// Ingress supervises one BLE controller connection.
type Ingress struct {
	cfg      Config
	keyMap   remoteingress.KeyMap
	tracker  *remoteingress.ButtonTracker
	modes    *remoteingress.ModeTracker
	dispatch Dispatch
	exit     Exit

	// connect attempts one connection, calls onConnected once it
	// succeeds, then blocks reading key-code notifications via onCode
	// until the connection drops or ctx is cancelled. Swappable in
	// tests; the default dials real D-Bus/BlueZ.
	connect func(ctx context.Context, onConnected func(), onCode func(string)) error
	// reset performs one escalation-level recovery action. Swappable in
	// tests; the default, runReset, only logs the level.
	reset func(ctx context.Context, level ResetLevel, adapterPath string) error

	resetLevel          ResetLevel
	consecutiveFailures int
	totalFailures       int
	backoffIdx          int
}

// New builds an Ingress posting resolved actions to cfg.RouterURL.
func New(cfg Config, keyMap remoteingress.KeyMap, client *routerclient.Client) *Ingress {
	cfg.setDefaults()
	ing := &Ingress{
		cfg:        cfg,
		keyMap:     keyMap,
		tracker:    &remoteingress.ButtonTracker{},
		modes:      remoteingress.NewModeTracker(remoteingress.ClassAudio),
		resetLevel: ResetPowerCycle,
	}
	ing.dispatch = func(ctx context.Context, mapping remoteingress.KeyMapping) {
		body := map[string]any{"action": mapping.Action, "params": map[string]any{"device_class": mapping.DeviceClass}}
		_, err := client.PostJSON(ctx, cfg.RouterURL+"/router/command", routerclient.CommandDeadline, body)
		if err != nil {
			slog.Warn("ble: failed to post command", "error", err)
		}
	}
	ing.connect = dialBlueZ
	ing.reset = runReset
	ing.exit = func() {
		slog.Error("ble: exiting after exhausting total failure budget, deferring recovery to the supervisor")
		os.Exit(exitCodeTotalFailuresExhausted)
	}
	return ing
}

// Run supervises the connection until ctx is cancelled or the process
// exits via Exit after MaxTotalFailures.
func (ing *Ingress) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := ing.connect(ctx, ing.onSuccess, ing.handleCode)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// a clean disconnect (controller went away without an error)
			// still counts as a connection that needs recovery.
			err = errConnectionLost
		}

		ing.onFailure(ctx, err)
	}
}

var errConnectionLost = &connectionLostError{}

type connectionLostError struct{}

func (*connectionLostError) Error() string { return "ble: connection lost" }

func (ing *Ingress) onFailure(ctx context.Context, err error) {
	ing.consecutiveFailures++
	ing.totalFailures++
	slog.Warn("ble: connection attempt failed", "error", err,
		"consecutive_failures", ing.consecutiveFailures, "total_failures", ing.totalFailures)

	if ing.totalFailures >= ing.cfg.MaxTotalFailures {
		ing.exit()
		return
	}

	if ing.consecutiveFailures >= ing.cfg.MaxConsecutiveFailures {
		slog.Warn("ble: entering cooling-off period", "duration", ing.cfg.CoolingOff)
		if !sleepOrDone(ctx, ing.cfg.CoolingOff) {
			return
		}
		ing.consecutiveFailures = 0
		ing.resetLevel = ResetPowerCycle
		ing.backoffIdx = 0
		return
	}

	if resetErr := ing.reset(ctx, ing.resetLevel, ing.cfg.AdapterPath); resetErr != nil {
		slog.Warn("ble: reset action failed", "level", ing.resetLevel, "error", resetErr)
	}
	if ing.resetLevel < ResetModuleReload {
		ing.resetLevel++
	}

	if !sleepOrDone(ctx, ing.currentBackoff()) {
		return
	}
	ing.advanceBackoff()
}

func (ing *Ingress) currentBackoff() time.Duration {
	return backoffSchedule[ing.backoffIdx]
}

func (ing *Ingress) advanceBackoff() {
	if ing.backoffIdx < len(backoffSchedule)-1 {
		ing.backoffIdx++
	}
}

// onSuccess resets all counters after a successful connect, per §4.6
// ("state counters reset on each successful connect").
func (ing *Ingress) onSuccess() {
	ing.consecutiveFailures = 0
	ing.totalFailures = 0
	ing.resetLevel = ResetPowerCycle
	ing.backoffIdx = 0
}

func (ing *Ingress) handleCode(code string) {
	if !ing.tracker.Observe(code) {
		return
	}
	mapping, ok := remoteingress.Resolve(ing.keyMap, ing.modes, code)
	if !ok {
		return
	}
	ing.dispatch(context.Background(), mapping)
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

// dialBlueZ opens a connection to the system D-Bus, reports it as
// connected, and holds it until ctx is cancelled. It subscribes to no
// BlueZ interface and never calls onCode, so this default connection
// delivers no key codes.
func dialBlueZ(ctx context.Context, onConnected func(), onCode func(string)) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return err
	}
	defer conn.Close()

	onConnected()
	<-ctx.Done()
	return ctx.Err()
}

// runReset logs the escalation level it is given; it runs no recovery
// action against the local Bluetooth stack and always returns nil.
func runReset(ctx context.Context, level ResetLevel, adapterPath string) error {
	slog.Info("ble: performing reset", "level", level, "adapter", adapterPath)
	return nil
}
