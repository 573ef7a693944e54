package eventtypes

import (
	"encoding/json"
	"time"
)

// SourceState is one state of the per-source lifecycle state machine.
// "absent" is represented by the record simply not existing in the
// router's sources map; the remaining four states are carried on the
// record itself.
type SourceState string

const (
	StateRegistered SourceState = "registered"
	StatePlaying    SourceState = "playing"
	StatePaused     SourceState = "paused"
	StateGone       SourceState = "gone"
	// StateIdle is a presentation alias some wire payloads use for
	// "registered"; the router normalizes it on ingest.
	StateIdle SourceState = "idle"
)

// PlayerKind distinguishes a source that renders audio on-device from one
// that drives a networked speaker.
type PlayerKind string

const (
	PlayerLocal  PlayerKind = "local"
	PlayerRemote PlayerKind = "remote"
)

// Handle is a control action a source declares it accepts.
type Handle string

const (
	HandlePlay   Handle = "play"
	HandlePause  Handle = "pause"
	HandleToggle Handle = "toggle"
	HandleNext   Handle = "next"
	HandlePrev   Handle = "prev"
	HandleStop   Handle = "stop"
	// HandleVolumeSet is accepted only by a networked-speaker adapter's own
	// /command endpoint, never advertised in a source record's Handles.
	HandleVolumeSet Handle = "volume_set"
)

// HandleSet is the subset of handles a source accepts, honored exactly:
// actions outside it are rejected, never silently dropped.
type HandleSet map[Handle]struct{}

// NewHandleSet builds a HandleSet from a wire-format slice.
func NewHandleSet(handles []Handle) HandleSet {
	hs := make(HandleSet, len(handles))
	for _, h := range handles {
		hs[h] = struct{}{}
	}
	return hs
}

// Has reports whether the set accepts the given handle.
func (hs HandleSet) Has(h Handle) bool {
	_, ok := hs[h]
	return ok
}

// MarshalJSON renders the set back to the wire-format slice shape.
func (hs HandleSet) MarshalJSON() ([]byte, error) {
	out := make([]Handle, 0, len(hs))
	for h := range hs {
		out = append(out, h)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the wire-format slice shape.
func (hs *HandleSet) UnmarshalJSON(b []byte) error {
	var handles []Handle
	if err := json.Unmarshal(b, &handles); err != nil {
		return err
	}
	*hs = NewHandleSet(handles)
	return nil
}

// Source is the full lifecycle record for one pluggable content domain, as
// posted to POST /router/source and held in the router's sources map.
type Source struct {
	ID                string      `json:"id"`
	State             SourceState `json:"state"`
	Name              string      `json:"name"`
	CommandURL        string      `json:"command_url"`
	Player            PlayerKind  `json:"player"`
	Handles           HandleSet   `json:"handles"`
	MenuPreset        string      `json:"menu_preset,omitempty"`
	LastTransitionAt  time.Time   `json:"last_transition_at"`
	consecutiveTimeout int        `json:"-"`
	degraded          bool        `json:"-"`
}

// Degraded reports whether this source has timed out on command forwarding
// three or more times since its last ClearTimeouts, and therefore needs
// re-probing on its next playing transition. The count has no time window:
// timeouts spread over any length of time add up.
func (s *Source) Degraded() bool { return s.degraded }

// MarkTimeout records a command-forward timeout against this source.
// Returns true the instant the source crosses into "degraded".
func (s *Source) MarkTimeout() (becameDegraded bool) {
	s.consecutiveTimeout++
	if s.consecutiveTimeout >= 3 && !s.degraded {
		s.degraded = true
		return true
	}
	return false
}

// ClearTimeouts resets the timeout counter. The router calls it when the
// source transitions to registered or playing; a successful forward does
// not reset it.
func (s *Source) ClearTimeouts() {
	s.consecutiveTimeout = 0
	s.degraded = false
}
