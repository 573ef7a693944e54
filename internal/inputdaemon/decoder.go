// Package inputdaemon decodes a raw HID report stream into the semantic
// laser/nav/volume/button events the rest of the fabric consumes, hosts
// the device menu model, and falls back to an emulation RPC when no HID
// endpoint is present.
package inputdaemon

import (
	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
)

// Report is one fixed-length HID report, already framed by the serial
// reader. Byte layout: [0]=laser position, [1]=nav detent delta,
// [2]=volume detent delta, [3]=button bitmask (bit N = button N held).
type Report struct {
	Laser  byte
	Nav    int8
	Volume int8
	Button byte
}

// DecodeConfig carries the per-axis tunables the decoder needs.
type DecodeConfig struct {
	Calibration eventtypes.Calibration
	MaxSpeed    int
}

// Decoder maintains the per-axis last-seen table across report reads and
// turns each report into zero or more semantic events. It is not safe for
// concurrent use: one goroutine owns the report stream and feeds it one
// report at a time.
type Decoder struct {
	cfg DecodeConfig

	lastLaser    byte
	haveLaser    bool
	lastButtons  byte
	navAccum     int
	volumeAccum  int
}

// NewDecoder creates a Decoder with the given calibration and speed cap.
func NewDecoder(cfg DecodeConfig) *Decoder {
	if cfg.MaxSpeed <= 0 {
		cfg.MaxSpeed = 32
	}
	return &Decoder{cfg: cfg}
}

// Decode turns one report into the events it produced, tagging each with
// origin. Identical consecutive laser positions are suppressed; nav/volume
// detents accumulate within a report and clamp to the configured ceiling;
// buttons emit only on a 0->1 edge.
func (d *Decoder) Decode(r Report, origin eventtypes.Origin) []DecodedEvent {
	var out []DecodedEvent

	if !d.haveLaser || r.Laser != d.lastLaser {
		d.haveLaser = true
		d.lastLaser = r.Laser
		out = append(out, DecodedEvent{
			Type:   eventtypes.EventLaser,
			Origin: origin,
			Data:   eventtypes.LaserEvent{Position: int(r.Laser)},
		})
	}

	if ev, ok := d.decodeRotary(r.Nav, origin, eventtypes.EventNav); ok {
		out = append(out, ev)
	}
	if ev, ok := d.decodeRotary(r.Volume, origin, eventtypes.EventVolume); ok {
		out = append(out, ev)
	}

	edges := r.Button &^ d.lastButtons
	d.lastButtons = r.Button
	for bit := 0; bit < 8; bit++ {
		if edges&(1<<uint(bit)) == 0 {
			continue
		}
		out = append(out, DecodedEvent{
			Type:   eventtypes.EventButton,
			Origin: origin,
			Data:   eventtypes.ButtonEvent{Button: buttonForBit(bit)},
		})
	}

	return out
}

func (d *Decoder) decodeRotary(delta int8, origin eventtypes.Origin, evType eventtypes.EventType) (DecodedEvent, bool) {
	if delta == 0 {
		return DecodedEvent{}, false
	}
	dir := eventtypes.DirClock
	if delta < 0 {
		dir = eventtypes.DirCounter
		delta = -delta
	}
	speed := eventtypes.ClampSpeed(int(delta), d.cfg.MaxSpeed)
	return DecodedEvent{
		Type:   evType,
		Origin: origin,
		Data:   eventtypes.NavEvent{Direction: dir, Speed: speed},
	}, true
}

func buttonForBit(bit int) eventtypes.Button {
	switch bit {
	case 0:
		return eventtypes.ButtonLeft
	case 1:
		return eventtypes.ButtonRight
	case 2:
		return eventtypes.ButtonGo
	case 3:
		return eventtypes.ButtonPower
	default:
		return eventtypes.NormalizeButton("")
	}
}

// DecodedEvent is one semantic event produced by Decode, still needing a
// sequence number and timestamp from the publishing hub.
type DecodedEvent struct {
	Type   eventtypes.EventType
	Origin eventtypes.Origin
	Data   any
}
