package volumeadapter

import (
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
)

// DefaultDebounce is the nav/volume encoder debounce window (§9 open
// question, resolved per spec.md's stated 50 ms default).
const DefaultDebounce = 50 * time.Millisecond

// Accumulator coalesces a burst of signed nav/volume deltas into a single
// Adapter.Apply call per debounce window, then invokes onApplied with the
// resulting level so the caller can broadcast a volume_report.
type Accumulator struct {
	mu      sync.Mutex
	adapter Adapter
	pending int

	debounced func(func())

	onApplied func(level int)
}

// NewAccumulator wires adapter behind a debounce window. window <= 0 uses
// DefaultDebounce.
func NewAccumulator(adapter Adapter, window time.Duration, onApplied func(level int)) *Accumulator {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Accumulator{
		adapter:   adapter,
		debounced: debounce.New(window),
		onApplied: onApplied,
	}
}

// Feed applies one nav/volume event's signed delta to the accumulator.
// Clockwise (DirClock) increases the level; counter-clockwise decreases it.
func (a *Accumulator) Feed(ev eventtypes.NavEvent) {
	delta := ev.Speed
	if ev.Direction == eventtypes.DirCounter {
		delta = -delta
	}
	a.mu.Lock()
	a.pending += delta
	a.mu.Unlock()
	a.debounced(a.flush)
}

func (a *Accumulator) flush() {
	a.mu.Lock()
	delta := a.pending
	a.pending = 0
	a.mu.Unlock()

	current := a.adapter.Report()
	level := a.adapter.Apply(current+delta, nil)
	if a.onApplied != nil {
		a.onApplied(level)
	}
}
