package ble

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/mkirsten/beosound5c-sub001/internal/remoteingress"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

// fastBackoff lets tests run the real escalation/backoff machinery without
// waiting on the real multi-second schedule.
func useFastBackoff(t *testing.T) {
	t.Helper()
	orig := backoffSchedule
	backoffSchedule = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { backoffSchedule = orig })
}

func newTestIngress() *Ingress {
	ing := New(Config{
		MaxConsecutiveFailures: 3,
		MaxTotalFailures:       5,
		CoolingOff:             5 * time.Millisecond,
	}, remoteingress.DefaultKeyMap(), routerclient.New())
	return ing
}

func TestOnFailureEscalatesResetLevel(t *testing.T) {
	useFastBackoff(t)
	ing := newTestIngress()
	var levels []ResetLevel
	ing.reset = func(ctx context.Context, level ResetLevel, adapterPath string) error {
		levels = append(levels, level)
		return nil
	}

	ctx := context.Background()
	ing.onFailure(ctx, errConnectionLost)
	ing.onFailure(ctx, errConnectionLost)

	if len(levels) != 2 || levels[0] != ResetPowerCycle || levels[1] != ResetInterfaceToggle {
		t.Fatalf("expected reset levels to escalate power_cycle -> interface_toggle, got %v", levels)
	}
}

func TestOnFailureEntersCoolingOffAtMaxConsecutive(t *testing.T) {
	useFastBackoff(t)
	ing := newTestIngress()
	ing.reset = func(context.Context, ResetLevel, string) error { return nil }

	ctx := context.Background()
	for i := 0; i < ing.cfg.MaxConsecutiveFailures; i++ {
		ing.onFailure(ctx, errConnectionLost)
	}

	if ing.consecutiveFailures != 0 {
		t.Fatalf("expected cooling-off to reset the consecutive-failure counter, got %d", ing.consecutiveFailures)
	}
	if ing.resetLevel != ResetPowerCycle {
		t.Fatalf("expected cooling-off to restore reset level to power_cycle, got %v", ing.resetLevel)
	}
}

func TestOnFailureExitsAtMaxTotalFailures(t *testing.T) {
	useFastBackoff(t)
	ing := newTestIngress()
	ing.reset = func(context.Context, ResetLevel, string) error { return nil }
	var exited bool
	var mu sync.Mutex
	ing.exit = func() {
		mu.Lock()
		exited = true
		mu.Unlock()
	}

	ctx := context.Background()
	for i := 0; i < ing.cfg.MaxTotalFailures; i++ {
		ing.onFailure(ctx, errConnectionLost)
	}

	mu.Lock()
	defer mu.Unlock()
	if !exited {
		t.Fatal("expected Exit to be called once total failures reach the F_exit threshold")
	}
}

func TestOnSuccessResetsAllCounters(t *testing.T) {
	ing := newTestIngress()
	ing.consecutiveFailures = 4
	ing.totalFailures = 10
	ing.resetLevel = ResetStackRestart
	ing.backoffIdx = 3

	ing.onSuccess()

	if ing.consecutiveFailures != 0 || ing.totalFailures != 0 || ing.resetLevel != ResetPowerCycle || ing.backoffIdx != 0 {
		t.Fatalf("expected a successful connect to reset every counter, got %+v", ing)
	}
}

func TestRunCallsOnSuccessAfterConnecting(t *testing.T) {
	ing := newTestIngress()
	connected := make(chan struct{}, 1)
	ing.connect = func(ctx context.Context, onConnected func(), onCode func(string)) error {
		onConnected()
		connected <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go ing.Run(ctx)

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for connect to be invoked")
	}
}

// TestDefaultExitTerminatesProcessWithCode3 confirms the default (not
// test-swapped) exit callback built by New actually terminates the
// process with exitCodeTotalFailuresExhausted, as opposed to merely
// logging. Exercising os.Exit requires a subprocess, the same re-exec
// pattern the standard library itself uses to test os.Exit call sites.
func TestDefaultExitTerminatesProcessWithCode3(t *testing.T) {
	if os.Getenv("BE_BLE_EXIT_HELPER") == "1" {
		New(Config{}, remoteingress.DefaultKeyMap(), routerclient.New()).exit()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestDefaultExitTerminatesProcessWithCode3")
	cmd.Env = append(os.Environ(), "BE_BLE_EXIT_HELPER=1")
	err := cmd.Run()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected the default exit callback to terminate the subprocess, got err=%v", err)
	}
	if code := exitErr.ExitCode(); code != exitCodeTotalFailuresExhausted {
		t.Fatalf("expected exit code %d, got %d", exitCodeTotalFailuresExhausted, code)
	}
}

func TestHandleCodeDispatchesResolvedAction(t *testing.T) {
	ing := newTestIngress()
	var fired []remoteingress.KeyMapping
	ing.dispatch = func(ctx context.Context, mapping remoteingress.KeyMapping) {
		fired = append(fired, mapping)
	}
	ing.handleCode("10")
	if len(fired) != 1 {
		t.Fatalf("expected one dispatched action, got %d", len(fired))
	}
}
