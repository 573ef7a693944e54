package inputdaemon

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/mkirsten/beosound5c-sub001/internal/config"
	"github.com/mkirsten/beosound5c-sub001/internal/eventbus"
	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
)

var ErrUnknownMenuAction = errors.New("inputdaemon: unknown menu action")

// Config carries the calibration and menu defaults read from config.json.
type Config struct {
	Calibration eventtypes.Calibration
	MaxSpeed    int
	MenuEntries []config.MenuEntryConfig
}

// Status is the GET /input/status snapshot.
type Status struct {
	Menu      eventtypes.Menu `json:"menu"`
	Connected bool            `json:"connected"`
	Emulated  bool            `json:"emulated"`
}

// Service hosts the menu model and fans decoded or emulated events out on
// its hub. The HID read loop (serial.go) and the HTTP handlers both call
// into it; the only shared mutable state is the menu (mutex-guarded) and a
// pair of atomic status flags, so no actor/channel indirection is needed
// here the way the router needs one for its richer state machine.
type Service struct {
	hub  *eventbus.Hub
	menu *menuState

	connected atomic.Bool
	emulated  atomic.Bool
}

// NewService creates a Service and wires the hub's OnConnect replay to send
// the current menu snapshot to every new subscriber exactly once.
func NewService(cfg Config, hub *eventbus.Hub) *Service {
	s := &Service{hub: hub, menu: newMenuState(cfg.MenuEntries)}
	hub.OnConnect = func() (eventtypes.Event, bool) {
		return eventtypes.NewEvent(eventtypes.EventMenuUpdate, s.menu.snapshot()), true
	}
	return s
}

// HandleDecoded publishes a batch of decoder output, each event tagged with
// its origin. It does not change the daemon's connected/emulated flags.
func (s *Service) HandleDecoded(events []DecodedEvent) {
	for _, ev := range events {
		s.publish(ev.Type, ev.Origin, ev.Data)
	}
}

// Emulate accepts a POST /input/emulate body and republishes it identically
// to a decoded event, tagged with OriginEmulated.
func (s *Service) Emulate(evType eventtypes.EventType, data any) {
	s.emulated.Store(true)
	s.publish(evType, eventtypes.OriginEmulated, data)
}

// Broadcast republishes an arbitrary source-originated telemetry event
// (e.g. a source's own `<id>_update`) without an origin tag — origin only
// applies to the input event family.
func (s *Service) Broadcast(evType eventtypes.EventType, data any) {
	s.hub.Publish(eventtypes.NewEvent(evType, data))
}

func (s *Service) publish(evType eventtypes.EventType, origin eventtypes.Origin, data any) {
	s.hub.Publish(eventtypes.NewEvent(evType, taggedData{Origin: origin, Data: data}))
}

// taggedData wraps decoded-event payloads with their origin so subscribers
// can tell a HID-sourced event from an emulated one without a separate
// event type per origin.
type taggedData struct {
	Origin eventtypes.Origin `json:"origin"`
	Data   any               `json:"data"`
}

// SetConnected updates the HID-endpoint liveness flag and emits a
// device_state event on change.
func (s *Service) SetConnected(connected bool) {
	if s.connected.Swap(connected) == connected {
		return
	}
	state := "disconnected"
	if connected {
		state = "connected"
	}
	slog.Info("inputdaemon: HID endpoint state changed", "state", state)
	s.hub.Publish(eventtypes.NewEvent(eventtypes.EventDeviceState, map[string]string{"state": state}))
}

// Menu applies a POST /input/menu mutation and broadcasts the result.
func (s *Service) Menu(action eventtypes.MenuAction, item *eventtypes.MenuItem, after, id string) (eventtypes.Menu, error) {
	var updated eventtypes.Menu
	switch action {
	case eventtypes.MenuAdd:
		if item == nil {
			return eventtypes.Menu{}, fmt.Errorf("inputdaemon: add requires item")
		}
		updated = s.menu.add(*item, after)
	case eventtypes.MenuRemove:
		var ok bool
		updated, ok = s.menu.remove(id)
		if !ok {
			return updated, fmt.Errorf("inputdaemon: menu item %q not found", id)
		}
	case eventtypes.MenuReplace:
		if item != nil {
			updated = s.menu.replace([]eventtypes.MenuItem{*item})
		} else {
			return eventtypes.Menu{}, fmt.Errorf("inputdaemon: replace requires item")
		}
	default:
		return eventtypes.Menu{}, fmt.Errorf("%w: %q", ErrUnknownMenuAction, action)
	}

	s.hub.Publish(eventtypes.NewEvent(eventtypes.EventMenuUpdate, updated))
	return updated, nil
}

// Status builds the GET /input/status snapshot.
func (s *Service) Status() Status {
	return Status{
		Menu:      s.menu.snapshot(),
		Connected: s.connected.Load(),
		Emulated:  s.emulated.Load(),
	}
}
