package eventtypes

import "testing"

func TestCalibrationAngleMonotoneAndClamped(t *testing.T) {
	c := DefaultCalibration()

	if got := c.Angle(c.LaserMin - 10); got != c.AngleMin {
		t.Fatalf("below Pmin: got %v, want AngleMin %v", got, c.AngleMin)
	}
	if got := c.Angle(c.LaserMax + 10); got != c.AngleMax {
		t.Fatalf("above Pmax: got %v, want AngleMax %v", got, c.AngleMax)
	}

	prev := c.Angle(c.LaserMin)
	for p := c.LaserMin + 1; p <= c.LaserMax; p++ {
		cur := c.Angle(p)
		if cur < prev {
			t.Fatalf("angle mapping not monotone nondecreasing at position %d: %v < %v", p, cur, prev)
		}
		prev = cur
	}
}

func TestClampSpeed(t *testing.T) {
	cases := []struct {
		speed, max, want int
	}{
		{0, 32, 1},
		{-5, 32, 1},
		{1, 32, 1},
		{100, 32, 32},
		{10, 0, 10}, // max<=0 defaults to 32, 10 stays under it
		{40, 0, 32},
	}
	for _, tc := range cases {
		if got := ClampSpeed(tc.speed, tc.max); got != tc.want {
			t.Errorf("ClampSpeed(%d, %d) = %d, want %d", tc.speed, tc.max, got, tc.want)
		}
	}
}

func TestHandleSetExactness(t *testing.T) {
	hs := NewHandleSet([]Handle{HandlePlay, HandlePause, HandleStop})
	if !hs.Has(HandlePlay) || !hs.Has(HandleStop) {
		t.Fatal("expected declared handles to be present")
	}
	if hs.Has(HandleNext) {
		t.Fatal("handle outside the declared set must not be honored")
	}
}

func TestMenuAddAfterAndOrdering(t *testing.T) {
	m := Menu{Items: []MenuItem{
		{ID: "a", Label: "A"},
		{ID: "b", Label: "B"},
		{ID: "c", Label: "C"},
	}}

	got := m.Add(MenuItem{ID: "d", Label: "D"}, "b")
	want := []string{"a", "b", "d", "c"}
	if len(got.Items) != len(want) {
		t.Fatalf("menu length = %d, want %d", len(got.Items), len(want))
	}
	for i, id := range want {
		if got.Items[i].ID != id {
			t.Fatalf("position %d: got %q, want %q", i, got.Items[i].ID, id)
		}
	}

	// Original menu is untouched (Add returns a new value).
	if len(m.Items) != 3 {
		t.Fatal("Add must not mutate the receiver")
	}
}

func TestMenuRemove(t *testing.T) {
	m := Menu{Items: []MenuItem{{ID: "a"}, {ID: "b"}}}
	got, removed := m.Remove("a")
	if !removed || len(got.Items) != 1 || got.Items[0].ID != "b" {
		t.Fatalf("unexpected remove result: %+v removed=%v", got, removed)
	}
	if _, removed := m.Remove("nonexistent"); removed {
		t.Fatal("removing an absent id should report false")
	}
}

func TestStopClearingPreservesArtwork(t *testing.T) {
	prev := &MediaSnapshot{ArtworkURL: "http://127.0.0.1/art.png", State: PlaybackPlaying}
	next := MediaSnapshot{State: PlaybackStopped}

	got := ApplyStopClearing(next, prev)
	if got.ArtworkURL != prev.ArtworkURL {
		t.Fatalf("stop transition must preserve artwork_url, got %q", got.ArtworkURL)
	}
}

func TestNormalizeButtonCaseInsensitive(t *testing.T) {
	if NormalizeButton("GO") != NormalizeButton("go") {
		t.Fatal("button comparison must be case-insensitive")
	}
}
