package eventtypes

import "strings"

// Direction encodes rotary encoder travel.
type Direction string

const (
	DirClock   Direction = "clock"
	DirCounter Direction = "counter"
)

// NavEvent and VolumeEvent share the same shape: a direction plus a
// ticks-per-decode-interval speed, clamped to [1, Smax] by the decoder.
type NavEvent struct {
	Direction Direction `json:"direction"`
	Speed     int       `json:"speed"`
}

// Button identifies a physical button. Comparisons are case-insensitive;
// callers should use NormalizeButton before comparing or storing one.
type Button string

const (
	ButtonLeft  Button = "left"
	ButtonRight Button = "right"
	ButtonGo    Button = "go"
	ButtonPower Button = "power"
)

// NormalizeButton lower-cases a button code so "GO", "Go", and "go" compare
// equal.
func NormalizeButton(raw string) Button {
	return Button(strings.ToLower(strings.TrimSpace(raw)))
}

type ButtonEvent struct {
	Button Button `json:"button"`
}

// LaserEvent carries the raw calibrated position; angular mapping happens
// at render time via a Calibration (see Calibration.Angle).
type LaserEvent struct {
	Position int `json:"position"`
}

// Calibration holds the laser-position-to-arc-angle mapping bounds, as
// configured under config.json's "calibration" key.
type Calibration struct {
	LaserMin int `json:"laser_min"`
	LaserMid int `json:"laser_mid"`
	LaserMax int `json:"laser_max"`
	AngleMin float64
	AngleMax float64
}

// DefaultCalibration returns the factory-default laser-to-angle mapping.
func DefaultCalibration() Calibration {
	return Calibration{
		LaserMin: 3,
		LaserMid: 63,
		LaserMax: 123,
		AngleMin: 0,
		AngleMax: 1,
	}
}

// Angle maps a raw laser position onto a normalized angle in
// [AngleMin, AngleMax], monotone nondecreasing, clamping positions outside
// [LaserMin, LaserMax] to the nearest bound.
func (c Calibration) Angle(position int) float64 {
	if position <= c.LaserMin {
		return c.AngleMin
	}
	if position >= c.LaserMax {
		return c.AngleMax
	}
	span := float64(c.LaserMax - c.LaserMin)
	if span <= 0 {
		return c.AngleMin
	}
	frac := float64(position-c.LaserMin) / span
	return c.AngleMin + frac*(c.AngleMax-c.AngleMin)
}

// ClampSpeed clamps a decoded detent count to [1, max], defaulting max to 32
// when the caller passes no configured ceiling.
func ClampSpeed(speed, max int) int {
	if max <= 0 {
		max = 32
	}
	if speed < 1 {
		return 1
	}
	if speed > max {
		return max
	}
	return speed
}
