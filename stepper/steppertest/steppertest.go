// Package steppertest provides a simulated flap-wheel motor for tests, in
// the spirit of periph.io's gpiotest.  The simulator counts half-steps by
// watching the four coil outputs and answers endstop reads from a
// position-dependent switch model, so homing and planning can be exercised
// without hardware.
package steppertest

import (
	"github.com/timminator93/flipclock/stepper"
	"periph.io/x/conn/v3/gpio"
)

// Sim is one simulated wheel.
type Sim struct {
	// Pos is the absolute number of half-steps advanced since creation.
	// It never wraps; callers take it modulo the revolution when they
	// need an angle.
	Pos int

	// Pressed models the endstop switch as a function of absolute
	// position.  A nil Pressed means the switch is never pressed.
	Pressed func(pos int) bool

	// Name and Journal, when set, record the order in which simulated
	// wheels first move.
	Name    string
	Journal *[]string

	writes int
	high   bool
}

type coil struct {
	s *Sim
}

// Out watches the coil writes.  The motor writes all four coils in order on
// every half-step and on disable; a group of four writes containing at
// least one high level is one half-step, an all-low group is a disable.
func (c *coil) Out(l gpio.Level) error {
	if l == gpio.High {
		c.s.high = true
	}
	c.s.writes++
	if c.s.writes == 4 {
		if c.s.high {
			c.s.Pos++
			if c.s.Pos == 1 && c.s.Journal != nil {
				*c.s.Journal = append(*c.s.Journal, c.s.Name)
			}
		}
		c.s.writes, c.s.high = 0, false
	}
	return nil
}

type endstop struct {
	s *Sim
}

// Read reports the simulated switch: pressed is active low, matching the
// pull-up wiring of the real endstops.
func (e *endstop) Read() gpio.Level {
	if e.s.Pressed != nil && e.s.Pressed(e.s.Pos) {
		return gpio.Low
	}
	return gpio.High
}

// Endstop returns the simulated endstop sensor.
func (s *Sim) Endstop() stepper.Sensor {
	return &endstop{s: s}
}

// NewMotor returns a motor wired to the simulator.
func (s *Sim) NewMotor(stepsPerRev, debounceReads int) (*stepper.Motor, error) {
	return stepper.New(stepper.Config{
		Coils:         [4]stepper.Pin{&coil{s}, &coil{s}, &coil{s}, &coil{s}},
		Endstop:       s.Endstop(),
		StepsPerRev:   stepsPerRev,
		DebounceReads: debounceReads,
	})
}
