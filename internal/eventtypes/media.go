package eventtypes

// PlaybackState is the now-playing state carried on a media snapshot. It is
// distinct from SourceState: a source can be "playing" while its last
// reported media state is "buffering".
type PlaybackState string

const (
	PlaybackPlaying   PlaybackState = "playing"
	PlaybackPaused    PlaybackState = "paused"
	PlaybackStopped   PlaybackState = "stopped"
	PlaybackBuffering PlaybackState = "buffering"
	PlaybackIdle      PlaybackState = "idle"
)

// ReasonExternalTakeover marks a media POST as the explicit override path
// of the media-gating rule: a networked speaker started playing while a
// local source was active.
const ReasonExternalTakeover = "external_takeover"

// MediaSnapshot is the last-known now-playing record. At most one snapshot
// is broadcast as authoritative at a time.
type MediaSnapshot struct {
	Title       string        `json:"title"`
	Artist      string        `json:"artist,omitempty"`
	Album       string        `json:"album,omitempty"`
	ArtworkURL  string        `json:"artwork_url,omitempty"`
	State       PlaybackState `json:"state"`
	PositionMs  *int64        `json:"position_ms,omitempty"`
	DurationMs  *int64        `json:"duration_ms,omitempty"`
	SourceID    string        `json:"source_id"`
	Reason      string        `json:"reason,omitempty"`
}

// ApplyStopClearing implements the clearing policy: a transition to
// "stopped" never blanks the previously known artwork_url, so the UI can
// keep showing the last artwork dimmed instead of flashing a placeholder.
// prev may be nil (no prior snapshot).
func ApplyStopClearing(next MediaSnapshot, prev *MediaSnapshot) MediaSnapshot {
	if next.State == PlaybackStopped && next.ArtworkURL == "" && prev != nil {
		next.ArtworkURL = prev.ArtworkURL
	}
	return next
}
