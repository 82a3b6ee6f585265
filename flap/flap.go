// Package flap maps digits onto flap-wheel positions.  A wheel knows how
// many physical flaps it carries, which digit faces the viewer right after
// homing, and how many half-steps past the endstop that digit sits; from
// those constants every digit has an absolute step target.
package flap

import (
	"fmt"
	"time"

	"github.com/timminator93/flipclock/stepper"
)

// Wheel is one split-flap display wheel.  FlapCount may exceed DigitCount:
// the minutes-tens wheel carries twelve flaps but only six distinct digits,
// so every digit appears twice around the wheel and the mapper picks
// whichever occurrence costs fewer forward half-steps.
type Wheel struct {
	// Name identifies the wheel in logs ("ones", "tens", "hours").
	Name string

	Motor *stepper.Motor

	// FlapCount is the number of physical flaps on the wheel.
	FlapCount int

	// DigitCount is the number of distinct digit values the wheel shows.
	DigitCount int

	// StartDigit is the digit facing the viewer when the wheel is homed.
	StartDigit int

	// StartOffset is the half-step position of StartDigit, measured from
	// the endstop.
	StartOffset int
}

// Validate checks the calibration constants.
func (w *Wheel) Validate() error {
	if w.Motor == nil {
		return fmt.Errorf("wheel %q: no motor", w.Name)
	}
	if w.FlapCount <= 0 || w.DigitCount <= 0 {
		return fmt.Errorf("wheel %q: flap and digit counts must be positive", w.Name)
	}
	if w.FlapCount < w.DigitCount || w.FlapCount%w.DigitCount != 0 {
		return fmt.Errorf("wheel %q: flap count %d must be a multiple of digit count %d", w.Name, w.FlapCount, w.DigitCount)
	}
	if w.StartDigit < 0 || w.StartDigit >= w.DigitCount {
		return fmt.Errorf("wheel %q: start digit %d out of range [0,%d)", w.Name, w.StartDigit, w.DigitCount)
	}
	if w.StartOffset < 0 {
		return fmt.Errorf("wheel %q: start offset %d is negative", w.Name, w.StartOffset)
	}
	return nil
}

// target returns the absolute half-step position of digit's first
// occurrence past the endstop.
func (w *Wheel) target(digit int) int {
	stepsPerFlap := w.Motor.StepsPerRev() / w.FlapCount
	return w.StartOffset + ((w.DigitCount+digit-w.StartDigit)%w.DigitCount)*stepsPerFlap
}

// ShowDigit rotates the wheel to display digit and then cuts coil power.
// Exact holding position is not needed while idle: the next move re-derives
// an absolute target, and the next homing corrects any drift.
//
// digit must be in [0, DigitCount); out-of-range values are a configuration
// error and produce an undefined target.
func (w *Wheel) ShowDigit(digit int, delay time.Duration) error {
	target := w.target(digit) % w.Motor.StepsPerRev()

	// On a repeated-digit wheel the same digit sits half a revolution
	// later as well.  Take the second occurrence exactly when the wheel
	// currently sits strictly past the first and at or before the second;
	// everything else is cheaper via the first.
	if w.FlapCount > w.DigitCount {
		second := target + w.Motor.StepsPerRev()/2
		if pos := w.Motor.Position(); pos > target && pos <= second {
			target = second
		}
	}

	if err := w.Motor.MoveTo(target, delay); err != nil {
		return fmt.Errorf("wheel %q: showing digit %d: %w", w.Name, digit, err)
	}
	w.Motor.Disable()
	return nil
}

// Home homes the wheel's motor and cuts coil power.
func (w *Wheel) Home(delay time.Duration) error {
	if err := w.Motor.Home(delay); err != nil {
		return fmt.Errorf("wheel %q: %w", w.Name, err)
	}
	return nil
}
