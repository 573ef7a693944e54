// Package service owns the router's active-source state machine. Unlike
// the mutex-guarded services elsewhere in this module, the sources map and
// active_source field here are owned exclusively by one goroutine: every
// mutation is a request posted over a channel and answered on a per-call
// reply channel, so no external lock is ever taken on the state itself.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkirsten/beosound5c-sub001/internal/eventbus"
	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
	"github.com/mkirsten/beosound5c-sub001/internal/router/store"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

// Outcome is the result of a command forwarded to a source or player.
type Outcome string

const (
	OutcomeForwarded  Outcome = "forwarded"
	OutcomeUnhandled  Outcome = "unhandled"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeRejected   Outcome = "rejected"
)

var (
	ErrForbiddenTransition = errors.New("router: transition forbidden")
	ErrUnreachable         = errors.New("router: command_url unreachable")
	ErrOutsideHandles      = errors.New("router: action outside source handles")
)

// sourceTimeoutThreshold is the number of command-forward timeouts since a
// source's last registered or playing transition at which it counts as
// degraded (see eventtypes.Source.MarkTimeout).
const sourceTimeoutThreshold = 3

// MediaReport is the wire body of POST /router/media: a media snapshot
// plus the identity of the player reporting it, used by the gating rule.
type MediaReport struct {
	eventtypes.MediaSnapshot
	PlayerKind eventtypes.PlayerKind `json:"player"`
}

// VolumeReport is the wire body of POST /router/volume_report.
type VolumeReport struct {
	Volume int    `json:"volume"`
	Source string `json:"source"`
}

// Config carries the deployment choices the state machine needs to
// classify incoming reports.
type Config struct {
	DefaultSourceID  string
	DefaultPlayerURL string
	VolumeType       string
	SourceTTL        time.Duration
}

// Status is the GET /router/status snapshot.
type Status struct {
	ActiveSource string                   `json:"active_source"`
	Sources      map[string]SourceView    `json:"sources"`
	LastMedia    *eventtypes.MediaSnapshot `json:"last_media"`
	Subscribers  int                      `json:"subscribers"`
}

// SourceView is the JSON-safe projection of a source record, omitting the
// unexported degraded-tracking fields already hidden by eventtypes.Source's
// own json tags.
type SourceView = eventtypes.Source

// Service is the router's single state-owning actor.
type Service struct {
	cfg    Config
	client *routerclient.Client
	hub    *eventbus.Hub
	store  *store.Store

	cmdCh chan func(*state)
}

type state struct {
	sources      map[string]*eventtypes.Source
	activeSource string
	lastMedia    *eventtypes.MediaSnapshot
}

// New creates a Service and restores any previously persisted state
// synchronously (Run has not started yet, so this is safe without the
// channel).
func New(cfg Config, client *routerclient.Client, hub *eventbus.Hub, st *store.Store) (*Service, error) {
	persisted, err := st.Load()
	if err != nil {
		return nil, fmt.Errorf("service: load persisted state: %w", err)
	}

	s := &Service{
		cfg:    cfg,
		client: client,
		hub:    hub,
		store:  st,
		cmdCh:  make(chan func(*state), 32),
	}

	hub.OnConnect = func() (eventtypes.Event, bool) {
		st := <-s.snapshotAsync()
		if st.lastMedia == nil {
			return eventtypes.Event{}, false
		}
		return eventtypes.NewEvent(eventtypes.EventMediaUpdate, st.lastMedia).WithReason("client_connect"), true
	}

	go s.run(persisted)
	return s, nil
}

// run is the actor loop: every mutation of sources/activeSource/lastMedia
// happens here, serialized by cmdCh, so no lock ever guards them.
func (s *Service) run(persisted store.State) {
	st := &state{
		sources:      make(map[string]*eventtypes.Source),
		activeSource: persisted.ActiveSourceID,
		lastMedia:    persisted.LastMedia,
	}
	if persisted.ActiveSourceID != "" {
		slog.Info("router: restored active source from disk, awaiting re-registration",
			"source", persisted.ActiveSourceID)
	}
	for fn := range s.cmdCh {
		fn(st)
	}
}

// call posts fn to the actor and blocks until it has run.
func (s *Service) call(fn func(*state)) {
	done := make(chan struct{})
	s.cmdCh <- func(st *state) {
		fn(st)
		close(done)
	}
	<-done
}

func (s *Service) snapshotAsync() <-chan state {
	out := make(chan state, 1)
	s.cmdCh <- func(st *state) {
		cp := *st
		out <- cp
	}
	return out
}

func (s *Service) persist(st *state) {
	if err := s.store.Save(store.State{ActiveSourceID: st.activeSource, LastMedia: st.lastMedia}); err != nil {
		slog.Error("router: failed to persist state", "error", err)
	}
}

// RegisterOrUpdateSource processes a POST /router/source body: a source
// posting its full record with the state it wants to transition to.
func (s *Service) RegisterOrUpdateSource(ctx context.Context, incoming eventtypes.Source) (activeSource string, err error) {
	normalized := incoming.State
	if normalized == eventtypes.StateIdle {
		normalized = eventtypes.StateRegistered
	}

	var probeNeeded bool
	var existing *eventtypes.Source

	s.call(func(st *state) {
		existing = st.sources[incoming.ID]
	})

	switch normalized {
	case eventtypes.StateGone:
		// always allowed
	case eventtypes.StateRegistered:
		if existing == nil {
			probeNeeded = true
		}
	case eventtypes.StatePlaying:
		if existing != nil && existing.State == eventtypes.StateGone {
			return "", fmt.Errorf("%w: source %q cannot go gone->playing without register", ErrForbiddenTransition, incoming.ID)
		}
		if existing == nil || existing.Degraded() {
			probeNeeded = true
		}
	case eventtypes.StatePaused:
		if existing == nil || existing.State != eventtypes.StatePlaying {
			return "", fmt.Errorf("%w: source %q cannot pause without being playing", ErrForbiddenTransition, incoming.ID)
		}
	default:
		return "", fmt.Errorf("%w: unknown state %q", ErrForbiddenTransition, incoming.State)
	}

	if probeNeeded && normalized != eventtypes.StateGone {
		if !s.client.Probe(ctx, incoming.CommandURL+"/status", routerclient.MetadataDeadline) {
			return "", fmt.Errorf("%w: %s", ErrUnreachable, incoming.CommandURL)
		}
	}

	var depose *eventtypes.Source
	s.call(func(st *state) {
		rec := st.sources[incoming.ID]
		if rec == nil {
			rec = &eventtypes.Source{ID: incoming.ID}
			st.sources[incoming.ID] = rec
		}
		rec.Name = incoming.Name
		rec.CommandURL = incoming.CommandURL
		rec.Player = incoming.Player
		rec.Handles = incoming.Handles
		rec.MenuPreset = incoming.MenuPreset
		rec.LastTransitionAt = time.Now()

		switch normalized {
		case eventtypes.StateGone:
			rec.State = eventtypes.StateGone
			if st.activeSource == incoming.ID {
				st.activeSource = ""
			}
			delete(st.sources, incoming.ID)
		case eventtypes.StateRegistered:
			rec.State = eventtypes.StateRegistered
			rec.ClearTimeouts()
			if st.activeSource == incoming.ID {
				st.activeSource = ""
			}
		case eventtypes.StatePaused:
			rec.State = eventtypes.StatePaused
		case eventtypes.StatePlaying:
			rec.State = eventtypes.StatePlaying
			rec.ClearTimeouts()
			if st.activeSource != "" && st.activeSource != incoming.ID {
				depose = st.sources[st.activeSource]
			}
			st.activeSource = incoming.ID
		}
		activeSource = st.activeSource
		s.persist(st)
	})

	if depose != nil {
		s.deposePrevious(ctx, depose)
	}

	s.publishSourceUpdate(incoming.ID)
	return activeSource, nil
}

// deposePrevious asks the previously active source to pause (or stop, if
// it doesn't handle pause) and waits up to the command deadline. Ownership
// transfers regardless of whether the previous source acknowledges; a
// missed acknowledgment is only logged.
func (s *Service) deposePrevious(ctx context.Context, prev *eventtypes.Source) {
	action := eventtypes.HandlePause
	if !prev.Handles.Has(eventtypes.HandlePause) {
		action = eventtypes.HandleStop
	}

	res, err := s.client.PostJSON(ctx, prev.CommandURL+"/command", routerclient.CommandDeadline,
		map[string]any{"action": action})
	if err != nil || res.Outcome != routerclient.OutcomeOK {
		slog.Warn("router: previous owner did not acknowledge takeover",
			"source", prev.ID, "action", action, "outcome", res.Outcome)
	}
}

// Command resolves and forwards a control intent per the three-step
// resolution order: the active source's handles, then the default player,
// then unhandled.
func (s *Service) Command(ctx context.Context, action eventtypes.Handle, params any) (Outcome, error) {
	var target *eventtypes.Source
	s.call(func(st *state) {
		if st.activeSource == "" {
			return
		}
		active := st.sources[st.activeSource]
		if active != nil && active.Handles.Has(action) {
			target = active
		}
	})

	if target == nil {
		if isMediaKey(action) && s.cfg.DefaultPlayerURL != "" {
			target = &eventtypes.Source{ID: s.cfg.DefaultSourceID, CommandURL: s.cfg.DefaultPlayerURL}
		} else {
			return OutcomeUnhandled, nil
		}
	}

	res, err := s.client.PostJSON(ctx, target.CommandURL+"/command", routerclient.CommandDeadline,
		map[string]any{"action": action, "params": params})
	if err != nil {
		return OutcomeRejected, err
	}

	switch res.Outcome {
	case routerclient.OutcomeOK:
		return OutcomeForwarded, nil
	case routerclient.OutcomeTimeout:
		s.recordTimeout(target.ID)
		return OutcomeTimeout, nil
	default:
		return OutcomeRejected, nil
	}
}

func isMediaKey(action eventtypes.Handle) bool {
	switch action {
	case eventtypes.HandlePlay, eventtypes.HandlePause, eventtypes.HandleToggle,
		eventtypes.HandleNext, eventtypes.HandlePrev, eventtypes.HandleStop:
		return true
	default:
		return false
	}
}

func (s *Service) recordTimeout(sourceID string) {
	s.call(func(st *state) {
		rec := st.sources[sourceID]
		if rec == nil {
			return
		}
		if rec.MarkTimeout() {
			slog.Warn("router: source marked degraded after repeated timeouts", "source", sourceID)
		}
	})
}

// Media applies the media-gating rule and, if accepted, updates last_media
// and broadcasts it. Returns true if the report was accepted.
func (s *Service) Media(report MediaReport) bool {
	var accepted bool
	var goneSource string

	s.call(func(st *state) {
		switch {
		case st.activeSource == "" && report.SourceID == s.cfg.DefaultSourceID:
			accepted = true
		case st.activeSource != "" && report.SourceID == st.activeSource:
			accepted = true
		case st.activeSource != "":
			if active := st.sources[st.activeSource]; active != nil && active.Player == report.PlayerKind {
				accepted = true
			}
		}

		if !accepted && report.Reason == eventtypes.ReasonExternalTakeover && st.activeSource != "" {
			if active := st.sources[st.activeSource]; active != nil && active.Player == eventtypes.PlayerLocal {
				accepted = true
				goneSource = st.activeSource
				delete(st.sources, st.activeSource)
				st.activeSource = ""
			}
		}

		if !accepted {
			return
		}

		snap := eventtypes.ApplyStopClearing(report.MediaSnapshot, st.lastMedia)
		st.lastMedia = &snap
		s.persist(st)
	})

	if !accepted {
		return false
	}
	if goneSource != "" {
		s.publishSourceUpdate(goneSource)
	}

	var snap eventtypes.MediaSnapshot
	s.call(func(st *state) { snap = *st.lastMedia })
	s.hub.Publish(eventtypes.NewEvent(eventtypes.EventMediaUpdate, snap))
	return true
}

// VolumeReport applies the adapter-match rule (Invariant 3) and rebroadcasts
// an accepted report on the media topic.
func (s *Service) VolumeReport(report VolumeReport) bool {
	if !s.volumeMatchesAdapter(report.Source) {
		slog.Info("router: dropping volume report, adapter mismatch",
			"reported_source", report.Source, "configured_volume_type", s.cfg.VolumeType)
		return false
	}
	s.hub.Publish(eventtypes.NewEvent(eventtypes.EventVolume, report))
	return true
}

// volumeMatchesAdapter implements Invariant 3: a networked-player volume
// technology (sonos, bluesound) must match exactly; any line-level output
// (powerlink, hdmi, spdif, rca, beolab5, c4amp) is driven by the local
// decoder path, so it matches a report whose source identifies as "local".
func (s *Service) volumeMatchesAdapter(reportedSource string) bool {
	switch s.cfg.VolumeType {
	case "sonos", "bluesound":
		return reportedSource == s.cfg.VolumeType
	case "":
		return false
	default:
		return reportedSource == "local"
	}
}

// PlaybackOverride is the escape hatch behind the admin-token gate: force
// active_source to a given id (or clear it with an empty id), bypassing the deposal handshake. Used when a source wedges and the
// normal transition protocol can't recover it.
func (s *Service) PlaybackOverride(sourceID string) {
	s.call(func(st *state) {
		st.activeSource = sourceID
		s.persist(st)
	})
	slog.Warn("router: playback override applied", "source", sourceID)
}

// Status builds the GET /router/status snapshot.
func (s *Service) Status() Status {
	st := <-s.snapshotAsync()
	sources := make(map[string]SourceView, len(st.sources))
	for id, rec := range st.sources {
		sources[id] = *rec
	}
	return Status{
		ActiveSource: st.activeSource,
		Sources:      sources,
		LastMedia:    st.lastMedia,
		Subscribers:  s.hub.SubscriberCount(),
	}
}

// publishSourceUpdate broadcasts the current record for one source (or its
// absence) as a source_update event.
func (s *Service) publishSourceUpdate(sourceID string) {
	st := <-s.snapshotAsync()
	rec, ok := st.sources[sourceID]
	var data any
	if ok {
		data = rec
	} else {
		data = map[string]any{"id": sourceID, "state": eventtypes.StateGone}
	}
	s.hub.Publish(eventtypes.NewEvent(eventtypes.SourceUpdateType(sourceID), data))
}

// SweepExpired downgrades every playing source whose last transition is
// older than ttl to gone, recomputing active_source as needed. Invoked by a
// ticker (Invariant 4).
func (s *Service) SweepExpired(ttl time.Duration) {
	var expired []string
	s.call(func(st *state) {
		cutoff := time.Now().Add(-ttl)
		for id, rec := range st.sources {
			if rec.State == eventtypes.StatePlaying && rec.LastTransitionAt.Before(cutoff) {
				expired = append(expired, id)
			}
		}
		for _, id := range expired {
			delete(st.sources, id)
			if st.activeSource == id {
				st.activeSource = ""
			}
		}
		if len(expired) > 0 {
			s.persist(st)
		}
	})
	for _, id := range expired {
		slog.Warn("router: source exceeded liveness TTL, downgraded to gone", "source", id)
		s.publishSourceUpdate(id)
	}
}

// Close stops the actor loop.
func (s *Service) Close() {
	close(s.cmdCh)
}
