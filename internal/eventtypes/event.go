// Package eventtypes holds the wire-level data model shared by every
// service in the event fabric: the tagged Event envelope, source
// lifecycle records, media snapshots, and the input daemon's menu model.
package eventtypes

import "time"

// EventType partitions the two event families the fabric carries: input
// events produced by hardware, and telemetry events produced by adapters.
type EventType string

const (
	EventLaser        EventType = "laser"
	EventNav          EventType = "nav"
	EventVolume       EventType = "volume"
	EventButton       EventType = "button"
	EventMediaUpdate  EventType = "media_update"
	EventSourceUpdate EventType = "source_update"
	EventMenuUpdate   EventType = "menu_update"
	EventDeviceState  EventType = "device_state"
)

// SourceUpdateType builds the per-source telemetry type "<source_id>_update"
// that sources may publish for source-specific UI payloads.
func SourceUpdateType(sourceID string) EventType {
	return EventType(sourceID + "_update")
}

// Event is the tagged message exchanged over both WebSocket buses. Seq is a
// monotonic counter assigned by the owning hub, incremented per emit, so
// subscribers and callers can detect gaps or reordering.
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	Reason    string    `json:"reason,omitempty"`
	Seq       uint64    `json:"seq"`
	Timestamp int64     `json:"timestamp"`
}

// NewEvent stamps an event with the current wall-clock time in unix millis.
// Seq is left at zero; the hub that publishes the event assigns it.
func NewEvent(t EventType, data any) Event {
	return Event{
		Type:      t,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// WithReason attaches a reason string (e.g. "external_takeover",
// "client_connect") to a copy of the event.
func (e Event) WithReason(reason string) Event {
	e.Reason = reason
	return e
}

// Origin marks where an input event actually came from: a decoded HID
// report or the emulation fallback. It rides in Event.Data for
// laser/nav/volume/button events rather than as its own EventType, so
// subscribers that don't care can ignore it.
type Origin string

const (
	OriginHID      Origin = "hid"
	OriginEmulated Origin = "emulated"
)
