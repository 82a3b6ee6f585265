// Package stepper drives the unipolar flap-wheel motors.  Each motor is
// half-stepped through four GPIO coil lines and tracks its own position as
// half-steps since the last homing event; a single endstop switch per wheel
// redefines position zero once per revolution.
package stepper

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"periph.io/x/conn/v3/gpio"
)

// DefaultStepsPerRev is one revolution of a 28BYJ-48 in half-steps.
const DefaultStepsPerRev = 4096

var halfStepsCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "half_steps",
	Help: "count of half-steps taken across all motors",
})

// Pin is one coil output.  gpio.PinIO satisfies it.
type Pin interface {
	Out(l gpio.Level) error
}

// Sensor is the endstop input.  gpio.PinIO satisfies it.  Endstop switches
// are wired to ground with a pull-up, so a pressed switch reads low.
type Sensor interface {
	Read() gpio.Level
}

// Half-step sequence for the coil outputs.  Alternates a single energized
// coil with two adjacent energized coils, doubling angular resolution over
// full-stepping.
var sequence = [8][4]gpio.Level{
	{gpio.High, gpio.Low, gpio.Low, gpio.Low},
	{gpio.High, gpio.High, gpio.Low, gpio.Low},
	{gpio.Low, gpio.High, gpio.Low, gpio.Low},
	{gpio.Low, gpio.High, gpio.High, gpio.Low},
	{gpio.Low, gpio.Low, gpio.High, gpio.Low},
	{gpio.Low, gpio.Low, gpio.High, gpio.High},
	{gpio.Low, gpio.Low, gpio.Low, gpio.High},
	{gpio.High, gpio.Low, gpio.Low, gpio.High},
}

// Config describes one motor.  All fields are fixed for the life of the
// motor; position and phase are runtime state owned by Motor.
type Config struct {
	Coils   [4]Pin
	Endstop Sensor

	// StepsPerRev is the number of half-steps in one wheel revolution.
	StepsPerRev int

	// DebounceReads is the number of consecutive identical endstop samples
	// required before homing accepts a press or release.
	DebounceReads int
}

// Motor is one flap-wheel stepper.  Position is half-steps since the last
// homing event, modulo StepsPerRev; it is trustworthy only between homing
// events, which is why the planner re-homes before every backward-looking
// move.
type Motor struct {
	coils       [4]Pin
	endstop     Sensor
	stepsPerRev int
	debounce    int

	phase    int // index into sequence, [0,8)
	position int // half-steps since homing, [0,StepsPerRev)
}

// New validates the configuration and returns a motor with position and
// phase zeroed.  Position is meaningless until the first Home.
func New(cfg Config) (*Motor, error) {
	if cfg.StepsPerRev <= 0 {
		return nil, fmt.Errorf("steps per revolution must be positive, got %d", cfg.StepsPerRev)
	}
	if cfg.DebounceReads <= 0 {
		return nil, fmt.Errorf("debounce read count must be positive, got %d", cfg.DebounceReads)
	}
	for i, c := range cfg.Coils {
		if c == nil {
			return nil, fmt.Errorf("coil pin %d is nil", i)
		}
	}
	if cfg.Endstop == nil {
		return nil, errors.New("endstop pin is nil")
	}
	return &Motor{
		coils:       cfg.Coils,
		endstop:     cfg.Endstop,
		stepsPerRev: cfg.StepsPerRev,
		debounce:    cfg.DebounceReads,
	}, nil
}

// Position returns the current half-step position relative to the last
// homing event.
func (m *Motor) Position() int {
	return m.position
}

// StepsPerRev returns the number of half-steps in one revolution.
func (m *Motor) StepsPerRev() int {
	return m.stepsPerRev
}

// Advance energizes the coil pattern for the current phase and increments
// the phase.  It moves the wheel one half-step forward; the drivetrain
// cannot reverse.
func (m *Motor) Advance() {
	pattern := sequence[m.phase]
	for i, c := range m.coils {
		c.Out(pattern[i])
	}
	m.phase = (m.phase + 1) % len(sequence)
	halfStepsCounter.Inc()
}

// Disable drives all four coils low.  The wheel holds no torque afterwards,
// which is fine: absolute position is recovered by homing, not by holding
// current, and idle coils run much cooler.
func (m *Motor) Disable() {
	for _, c := range m.coils {
		c.Out(gpio.Low)
	}
}

// StepN advances n half-steps, sleeping delay between each, and updates the
// tracked position.  It blocks for the whole move.  This is the only place
// position changes outside the homing reset.
func (m *Motor) StepN(n int, delay time.Duration) {
	for i := 0; i < n; i++ {
		m.Advance()
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	m.position = (m.position + n) % m.stepsPerRev
}

// EndstopPressed samples the endstop switch once.
func (m *Motor) EndstopPressed() bool {
	return m.endstop.Read() == gpio.Low
}
