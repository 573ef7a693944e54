// Package remoteingress holds what's shared between the IR and
// Bluetooth-LE ingress paths: the static key-code mapping table, the
// device-class "mode" soft state dedicated source-select buttons mutate,
// and press/repeat button debouncing. Each transport (ir, ble) owns its
// own connection/supervision logic in its own subpackage.
package remoteingress

import (
	"sync"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
)

// DeviceClass is the "mode" a remote's navigation keys are interpreted
// under: some physical remotes share keys between audio and video
// control, disambiguated by the last source-select button pressed.
type DeviceClass string

const (
	ClassAudio DeviceClass = "audio"
	ClassVideo DeviceClass = "video"
)

// KeyMapping is what one vendor key code translates to.
type KeyMapping struct {
	Action      eventtypes.Handle
	DeviceClass DeviceClass
	SourceSet   bool // a dedicated source-select key: mutates Mode rather than firing Action
}

// KeyMap is the static key-code -> mapping table, built once at startup
// from the vendor's published remote layout.
type KeyMap map[string]KeyMapping

// DefaultKeyMap returns the BeoRemote-style key layout this deployment
// ships with. Vendor key codes are hex strings as delivered by the IR
// decoder / BLE HID report.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		"10": {Action: eventtypes.HandlePlay},
		"11": {Action: eventtypes.HandlePause},
		"12": {Action: eventtypes.HandleToggle},
		"13": {Action: eventtypes.HandleNext},
		"14": {Action: eventtypes.HandlePrev},
		"15": {Action: eventtypes.HandleStop},
		"20": {DeviceClass: ClassAudio, SourceSet: true},
		"21": {DeviceClass: ClassVideo, SourceSet: true},
	}
}

// ReleaseCode is the code a remote sends on key-up, resetting the
// debounce tracker's repeat counter.
const ReleaseCode = "00"

// RepeatThreshold is the count of consecutive identical codes, the first
// appearance included, at which a held button starts repeat-firing: the
// code that reaches it and every identical code after it fire.
const RepeatThreshold = 3

// ButtonTracker debounces a stream of raw key codes from one ingress
// path: a button fires on first appearance, then again on each identical
// code once RepeatThreshold of them have arrived in a row, turning a hold into a steady
// repeat-fire instead of one event per raw code.
type ButtonTracker struct {
	mu          sync.Mutex
	lastCode    string
	repeatCount int
}

// Observe feeds one raw code and reports whether it should fire an
// action. A release code always resets state and never fires.
func (t *ButtonTracker) Observe(code string) (fire bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if code == ReleaseCode {
		t.lastCode = ""
		t.repeatCount = 0
		return false
	}

	if code != t.lastCode {
		t.lastCode = code
		t.repeatCount = 1
		return true
	}

	t.repeatCount++
	return t.repeatCount >= RepeatThreshold
}

// ModeTracker holds the current device-class mode, mutated by a
// dedicated source-select key and consulted to disambiguate subsequent
// navigation keys shared between audio and video control.
type ModeTracker struct {
	mu   sync.Mutex
	mode DeviceClass
}

// NewModeTracker starts in the given default mode.
func NewModeTracker(initial DeviceClass) *ModeTracker {
	return &ModeTracker{mode: initial}
}

func (m *ModeTracker) Set(class DeviceClass) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = class
}

func (m *ModeTracker) Get() DeviceClass {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Resolve maps a raw code through the key map and the current mode: a
// source-select key mutates the mode and produces no action; any other
// key is returned with the tracker's current mode attached, overriding
// the key map's own DeviceClass when the key didn't declare one.
func Resolve(km KeyMap, modes *ModeTracker, code string) (KeyMapping, bool) {
	mapping, ok := km[code]
	if !ok {
		return KeyMapping{}, false
	}
	if mapping.SourceSet {
		modes.Set(mapping.DeviceClass)
		return KeyMapping{}, false
	}
	if mapping.DeviceClass == "" {
		mapping.DeviceClass = modes.Get()
	}
	return mapping, true
}
