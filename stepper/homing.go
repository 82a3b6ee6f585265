package stepper

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	homingsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homing_cycles",
		Help: "count of homing cycles started",
	})
	homingFailuresCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homing_failures",
		Help: "count of homing cycles that timed out before the endstop debounced",
	})
)

// ErrEndstopTimeout is returned when a homing phase takes more than two full
// revolutions without the endstop debouncing.  That only happens when the
// switch is broken or disconnected, so the caller is expected to halt.
var ErrEndstopTimeout = errors.New("endstop did not trigger within two revolutions")

// ErrSharedEndstopStuck is returned when the shared-endstop clearing routine
// nudges a combined full revolution without the sensing line releasing.
var ErrSharedEndstopStuck = errors.New("shared endstop still pressed after a full revolution of nudges")

// seekLevel steps the motor until the endstop reads the wanted state for
// debounce consecutive samples, or fails after more than two revolutions.
// One sample is taken after each half-step, so switch bounce during the
// press/release transition cannot satisfy the threshold early.
func (m *Motor) seekLevel(pressed bool, delay time.Duration) error {
	streak := 0
	for taken := 0; streak < m.debounce; taken++ {
		if taken > 2*m.stepsPerRev {
			return ErrEndstopTimeout
		}
		m.Advance()
		if delay > 0 {
			time.Sleep(delay)
		}
		if m.EndstopPressed() == pressed {
			streak++
		} else {
			streak = 0
		}
	}
	return nil
}

// Home drives the wheel forward until the endstop press is debounce-detected
// and resets position to zero.  The cycle first waits for a debounced
// release, so a wheel that boots sitting on the switch still travels to the
// next genuine press instead of declaring itself homed in place.
//
// On failure the coils are disabled and ErrEndstopTimeout is returned; there
// is no recovery short of physical intervention, so callers treat it as
// fatal.
func (m *Motor) Home(delay time.Duration) error {
	homingsCounter.Inc()
	if err := m.seekLevel(false, delay); err != nil {
		homingFailuresCounter.Inc()
		m.Disable()
		return fmt.Errorf("seeking endstop release: %w", err)
	}
	if err := m.seekLevel(true, delay); err != nil {
		homingFailuresCounter.Inc()
		m.Disable()
		return fmt.Errorf("seeking endstop press: %w", err)
	}
	m.position = 0
	return nil
}

// ClearShared frees a sensing line shared by exactly two wheels.  When both
// wheels can press the same switch, neither can be homed while the other
// holds it down; so before any homing we alternately nudge each wheel
// forward batch half-steps until the line reads released.  The combined
// nudge total is bounded by one revolution of a, after which the line is
// considered stuck.
//
// Only valid for two wheels on one line; the behavior with more sharers was
// never established for this mechanism.
func ClearShared(a, b *Motor, batch int, delay time.Duration) error {
	if batch <= 0 {
		return fmt.Errorf("nudge batch must be positive, got %d", batch)
	}
	nudge := func(m *Motor) {
		for i := 0; i < batch; i++ {
			m.Advance()
			if delay > 0 {
				time.Sleep(delay)
			}
		}
	}
	for taken := 0; a.EndstopPressed(); taken += 2 * batch {
		if taken >= a.stepsPerRev {
			a.Disable()
			b.Disable()
			return ErrSharedEndstopStuck
		}
		nudge(a)
		if !a.EndstopPressed() {
			return nil
		}
		nudge(b)
	}
	return nil
}
