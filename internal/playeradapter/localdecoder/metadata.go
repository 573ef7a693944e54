// Package localdecoder is the player-adapter variant that renders audio on
// the device itself: one child decoder process per track, piped progress
// ticks, and gapless pre-queuing of the next track as the current one nears
// its end.
package localdecoder

import (
	"log/slog"
	"os"

	"github.com/dhowden/tag"
)

// TrackMetadata is what the adapter reads from a track file before handing
// it to the decoder, used to populate the media snapshot posted to the
// router.
type TrackMetadata struct {
	Title  string
	Artist string
	Album  string
}

// ReadMetadata extracts ID3/tag metadata from path. On any failure it
// returns a zero-value TrackMetadata, so playback never blocks on a missing
// or malformed tag; the media snapshot then carries empty title, artist and
// album fields (no filename is substituted).
func ReadMetadata(path string) TrackMetadata {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("localdecoder: could not open file for metadata", "path", path, "error", err)
		return TrackMetadata{}
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		slog.Debug("localdecoder: could not read tags", "path", path, "error", err)
		return TrackMetadata{}
	}

	return TrackMetadata{Title: m.Title(), Artist: m.Artist(), Album: m.Album()}
}
