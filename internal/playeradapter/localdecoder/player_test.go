package localdecoder

import (
	"context"
	"testing"
	"time"
)

// fakeDecoderArgs spawns /bin/sh running a script that prints two progress
// ticks and exits cleanly, standing in for a real decoder binary. The extra
// positional arguments sh receives (the track path appended by startTrack)
// are ignored by the script.
func fakeDecoderArgs() (string, []string) {
	return "/bin/sh", []string{"-c", "printf 'T 100\\nT 200\\n'"}
}

func newTestPlayer(tracks []Track) *Player {
	binary, args := fakeDecoderArgs()
	p := NewPlayer(binary, args)
	p.SetQueue(tracks)
	return p
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPlayStartsCurrentTrack(t *testing.T) {
	p := newTestPlayer([]Track{{Path: "a.flac", DurationMs: 1000}, {Path: "b.flac", DurationMs: 1000}})
	if err := p.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !p.IsPlaying() {
		t.Fatal("expected IsPlaying to be true right after Play")
	}
	track, ok := p.CurrentTrack()
	if !ok || track.Path != "a.flac" {
		t.Fatalf("expected current track a.flac, got %+v ok=%v", track, ok)
	}
}

func TestPlayerAdvancesOnCompletionWithoutPreQueue(t *testing.T) {
	p := newTestPlayer([]Track{{Path: "a.flac", DurationMs: 50}, {Path: "b.flac", DurationMs: 1000}})
	if err := p.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitUntil(t, 2*time.Second, func() bool {
		track, ok := p.CurrentTrack()
		return ok && track.Path == "b.flac"
	})
}

func TestStopClearsPlayingAndCurrent(t *testing.T) {
	p := newTestPlayer([]Track{{Path: "a.flac", DurationMs: 10000}})
	if err := p.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	p.Stop()
	if p.IsPlaying() {
		t.Fatal("expected IsPlaying false after Stop")
	}
}

func TestPauseStopsWithoutAdvancingQueue(t *testing.T) {
	p := newTestPlayer([]Track{{Path: "a.flac", DurationMs: 10000}, {Path: "b.flac", DurationMs: 10000}})
	if err := p.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	p.Pause()
	if p.IsPlaying() {
		t.Fatal("expected IsPlaying false after Pause")
	}
	track, ok := p.CurrentTrack()
	if !ok || track.Path != "a.flac" {
		t.Fatalf("expected Pause to leave queue position unchanged, got %+v ok=%v", track, ok)
	}
}

func TestNextMovesToFollowingTrack(t *testing.T) {
	p := newTestPlayer([]Track{{Path: "a.flac", DurationMs: 10000}, {Path: "b.flac", DurationMs: 10000}})
	if err := p.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := p.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	track, ok := p.CurrentTrack()
	if !ok || track.Path != "b.flac" {
		t.Fatalf("expected Next to move to b.flac, got %+v ok=%v", track, ok)
	}
}

func TestPrevMovesToPrecedingTrack(t *testing.T) {
	p := newTestPlayer([]Track{{Path: "a.flac", DurationMs: 10000}, {Path: "b.flac", DurationMs: 10000}})
	if err := p.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := p.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := p.Prev(context.Background()); err != nil {
		t.Fatalf("Prev: %v", err)
	}
	track, ok := p.CurrentTrack()
	if !ok || track.Path != "a.flac" {
		t.Fatalf("expected Prev to move back to a.flac, got %+v ok=%v", track, ok)
	}
}

func TestPrevAtStartStaysPut(t *testing.T) {
	p := newTestPlayer([]Track{{Path: "a.flac", DurationMs: 10000}})
	if err := p.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := p.Prev(context.Background()); err != nil {
		t.Fatalf("Prev: %v", err)
	}
	track, ok := p.CurrentTrack()
	if !ok || track.Path != "a.flac" {
		t.Fatalf("expected Prev at queue start to stay on a.flac, got %+v ok=%v", track, ok)
	}
}

func TestPlayPastQueueEndIsNotPlaying(t *testing.T) {
	p := newTestPlayer(nil)
	if err := p.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if p.IsPlaying() {
		t.Fatal("expected IsPlaying false for an empty queue")
	}
}
