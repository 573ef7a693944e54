// Package volumeadapter implements the pluggable volume output selected by
// config.json's "volume" key: a nav-stream delta accumulator feeding one of
// several concrete apply/power/report backends, dispatched per output type
// (line-level GPIO outputs vs. a networked player's own volume API).
package volumeadapter

// Adapter is the interface every volume.type implements.
type Adapter interface {
	// Apply sets the level (clamped to the configured max) and an optional
	// balance, returning the level actually in effect after clamping.
	// Idempotent: applying the same level twice has no additional effect.
	Apply(level int, balance *int) int
	// Power toggles the output's power state where supported; a no-op on
	// adapters with no power control of their own.
	Power(on bool)
	// Report returns the current level, used to reconcile UI state on
	// startup and on every reconnection to the underlying output.
	Report() int
}
