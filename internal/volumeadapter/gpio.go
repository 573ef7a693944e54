package volumeadapter

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIOConfig names the relay/pulse lines a line-level output (powerlink,
// hdmi, spdif, rca, beolab5, c4amp) is wired to. Volume is stepped rather
// than set directly: these amps take remote-control-style up/down pulses,
// not an absolute level, so Apply walks the pulse lines the needed number
// of Step-sized increments.
type GPIOConfig struct {
	PowerPin string // enable/disable the amp; empty if unsupported
	UpPin    string // momentary pulse: step volume up
	DownPin  string // momentary pulse: step volume down
	Max      int
	Step     int
	Start    int // level assumed in effect before the first Apply
}

// InitHost loads the periph.io drivers for the host platform. Call once at
// process startup before constructing a GPIOAdapter.
func InitHost() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("volumeadapter: host init: %w", err)
	}
	return nil
}

// GPIOAdapter drives a line-level output via GPIO relay pins.
type GPIOAdapter struct {
	mu sync.Mutex

	power gpio.PinIO
	up    gpio.PinIO
	down  gpio.PinIO

	max   int
	step  int
	level int
}

// NewGPIOAdapter resolves cfg's pin names against the registered GPIO pins.
// A pin left empty in cfg resolves to nil and that capability becomes a
// no-op (e.g. an output with no power-enable line).
func NewGPIOAdapter(cfg GPIOConfig) (*GPIOAdapter, error) {
	if cfg.Max <= 0 {
		cfg.Max = 100
	}
	if cfg.Step <= 0 {
		cfg.Step = 2
	}
	a := &GPIOAdapter{max: cfg.Max, step: cfg.Step, level: cfg.Start}

	var err error
	if a.power, err = resolvePin(cfg.PowerPin); err != nil {
		return nil, err
	}
	if a.up, err = resolvePin(cfg.UpPin); err != nil {
		return nil, err
	}
	if a.down, err = resolvePin(cfg.DownPin); err != nil {
		return nil, err
	}
	return a, nil
}

func resolvePin(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("volumeadapter: no such GPIO pin %q", name)
	}
	return pin, nil
}

// Apply clamps level to [0, max] and pulses the up/down lines the
// necessary number of Step-sized increments to reach it.
func (a *GPIOAdapter) Apply(level int, balance *int) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if level < 0 {
		level = 0
	}
	if level > a.max {
		level = a.max
	}
	delta := level - a.level
	decreasing := delta < 0
	if decreasing {
		delta = -delta
	}
	pin := a.up
	if decreasing {
		pin = a.down
	}

	steps := delta / a.step
	// A pin left unconfigured can't physically move the level at all;
	// an unpulsed direction applies zero steps regardless of what the
	// arithmetic above asked for.
	if pin == nil {
		steps = 0
	} else {
		for i := 0; i < steps; i++ {
			pulse(pin)
		}
	}

	// a.level tracks what the hardware actually reached, not the
	// requested target: a delta that isn't a whole multiple of Step
	// under-pulses by the remainder, and level must reflect that or it
	// drifts from the real output on every such Apply.
	applied := steps * a.step
	if decreasing {
		applied = -applied
	}
	a.level += applied
	// balance has no line-level equivalent on these outputs; logged so a
	// misconfigured deployment is visible rather than silently dropped.
	if balance != nil && *balance != 0 {
		slog.Debug("volumeadapter: balance ignored on GPIO output", "balance", *balance)
	}
	return a.level
}

func pulse(pin gpio.PinIO) {
	if err := pin.Out(gpio.High); err != nil {
		slog.Warn("volumeadapter: gpio pulse failed", "pin", pin.Name(), "error", err)
		return
	}
	time.Sleep(20 * time.Millisecond)
	_ = pin.Out(gpio.Low)
}

// Power sets the power-enable line, if one is configured.
func (a *GPIOAdapter) Power(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.power == nil {
		return
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := a.power.Out(level); err != nil {
		slog.Warn("volumeadapter: gpio power line failed", "pin", a.power.Name(), "error", err)
	}
}

// Report returns the level the adapter has stepped to: Start plus the
// whole Step-sized pulses Apply has issued, which can fall short of the
// last level Apply was asked to reach. Since these
// outputs have no hardware readback, this is the adapter's own
// best-known state, not a queried value.
func (a *GPIOAdapter) Report() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.level
}
