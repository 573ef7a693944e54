package ir

import (
	"context"
	"testing"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
	"github.com/mkirsten/beosound5c-sub001/internal/remoteingress"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

func newTestIngress() (*Ingress, *[]remoteingress.KeyMapping) {
	ing := New(Config{}, remoteingress.DefaultKeyMap(), routerclient.New())
	var fired []remoteingress.KeyMapping
	ing.dispatch = func(ctx context.Context, mapping remoteingress.KeyMapping) {
		fired = append(fired, mapping)
	}
	return ing, &fired
}

func TestHandleCodeFiresOnFirstAppearance(t *testing.T) {
	ing, fired := newTestIngress()
	ing.HandleCode(context.Background(), "10")
	if len(*fired) != 1 || (*fired)[0].Action != eventtypes.HandlePlay {
		t.Fatalf("expected a single play action to fire, got %+v", *fired)
	}
}

func TestHandleCodeSuppressesRepeatsBelowThreshold(t *testing.T) {
	ing, fired := newTestIngress()
	for i := 0; i < 2; i++ {
		ing.HandleCode(context.Background(), "13")
	}
	if len(*fired) != 1 {
		t.Fatalf("expected only the first appearance to fire before the repeat threshold, got %d", len(*fired))
	}
}

func TestHandleCodeRepeatFiresPastThreshold(t *testing.T) {
	ing, fired := newTestIngress()
	for i := 0; i < remoteingress.RepeatThreshold+1; i++ {
		ing.HandleCode(context.Background(), "13")
	}
	if len(*fired) != 3 {
		t.Fatalf("expected the first appearance plus a repeat-fire for each code from the threshold on, got %d", len(*fired))
	}
}

func TestHandleCodeReleaseResetsCounter(t *testing.T) {
	ing, fired := newTestIngress()
	ing.HandleCode(context.Background(), "13")
	ing.HandleCode(context.Background(), remoteingress.ReleaseCode)
	ing.HandleCode(context.Background(), "13")
	if len(*fired) != 2 {
		t.Fatalf("expected a release to reset debouncing so the next press fires again, got %d", len(*fired))
	}
}

func TestHandleCodeSourceSelectMutatesModeWithoutFiring(t *testing.T) {
	ing, fired := newTestIngress()
	ing.HandleCode(context.Background(), "21") // video source-select
	if len(*fired) != 0 {
		t.Fatalf("expected a source-select key to never fire an action, got %+v", *fired)
	}
	ing.HandleCode(context.Background(), "13") // next, shares a key with audio/video modes
	if len(*fired) != 1 || (*fired)[0].DeviceClass != remoteingress.ClassVideo {
		t.Fatalf("expected next to resolve under the video mode set by the source-select key, got %+v", *fired)
	}
}
