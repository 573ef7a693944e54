package remoteingress

import "testing"

func TestButtonTrackerFirstAppearanceFires(t *testing.T) {
	var tr ButtonTracker
	if !tr.Observe("10") {
		t.Fatal("expected first appearance to fire")
	}
}

func TestButtonTrackerHoldBelowThresholdSuppressed(t *testing.T) {
	var tr ButtonTracker
	tr.Observe("10")
	if tr.Observe("10") {
		t.Fatal("expected the second identical code to be suppressed before the threshold")
	}
}

func TestButtonTrackerHoldPastThresholdFires(t *testing.T) {
	var tr ButtonTracker
	for i := 0; i < RepeatThreshold-1; i++ {
		tr.Observe("10")
	}
	if !tr.Observe("10") {
		t.Fatal("expected the code to fire once held past the repeat threshold")
	}
}

func TestButtonTrackerReleaseResetsState(t *testing.T) {
	var tr ButtonTracker
	tr.Observe("10")
	tr.Observe(ReleaseCode)
	if !tr.Observe("10") {
		t.Fatal("expected a release to reset the tracker so the next press fires again")
	}
}

func TestResolveSourceSelectMutatesModeWithoutAction(t *testing.T) {
	km := DefaultKeyMap()
	modes := NewModeTracker(ClassAudio)
	_, ok := Resolve(km, modes, "21")
	if ok {
		t.Fatal("expected a source-select key to resolve to no action")
	}
	if modes.Get() != ClassVideo {
		t.Fatalf("expected mode to switch to video, got %q", modes.Get())
	}
}

func TestResolveUnknownCodeIsIgnored(t *testing.T) {
	km := DefaultKeyMap()
	modes := NewModeTracker(ClassAudio)
	if _, ok := Resolve(km, modes, "ff"); ok {
		t.Fatal("expected an unmapped code to resolve to no action")
	}
}
