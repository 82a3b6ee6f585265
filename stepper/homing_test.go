package stepper_test

import (
	"errors"
	"testing"

	"github.com/timminator93/flipclock/stepper"
	"github.com/timminator93/flipclock/stepper/steppertest"
)

const (
	rev      = 512 // small revolution keeps the simulated laps cheap
	debounce = 3
	switchW  = 8 // width of the pressed region in half-steps
)

// pressedNear models a switch pressed for switchW half-steps once per
// revolution, starting at angle zero.
func pressedNear(pos int) bool {
	return pos%rev < switchW
}

func TestHomeResetsPosition(t *testing.T) {
	sim := &steppertest.Sim{Pressed: pressedNear}
	m, err := sim.NewMotor(rev, debounce)
	if err != nil {
		t.Fatalf("new motor: %v", err)
	}
	m.StepN(100, 0)

	if err := m.Home(0); err != nil {
		t.Fatalf("home: %v", err)
	}
	if got, want := m.Position(), 0; got != want {
		t.Errorf("position after homing:\n  got: %v\n want: %v", got, want)
	}
	// From angle 100 the next press begins at one full revolution, so
	// the wheel must have travelled at least that far in total.
	if got, want := sim.Pos, rev; got < want {
		t.Errorf("half-steps travelled to home:\n  got: %v\n want: at least %v", got, want)
	}
}

func TestHomeFromOnTopOfSwitch(t *testing.T) {
	// A wheel that boots sitting on the endstop must seek a debounced
	// release before it may accept a press; homing in place would leave
	// the position undefined.
	sim := &steppertest.Sim{Pressed: pressedNear}
	m, err := sim.NewMotor(rev, debounce)
	if err != nil {
		t.Fatalf("new motor: %v", err)
	}

	if err := m.Home(0); err != nil {
		t.Fatalf("home: %v", err)
	}
	if got, want := m.Position(), 0; got != want {
		t.Errorf("position after homing:\n  got: %v\n want: %v", got, want)
	}
	if sim.Pos <= switchW {
		t.Errorf("homed within the initial pressed region after %d half-steps; never sought a release", sim.Pos)
	}
	if sim.Pos < rev {
		t.Errorf("homed after %d half-steps; want a full lap to the next genuine press", sim.Pos)
	}
}

func TestHomeEndstopNeverPressed(t *testing.T) {
	sim := &steppertest.Sim{} // switch never pressed
	m, err := sim.NewMotor(rev, debounce)
	if err != nil {
		t.Fatalf("new motor: %v", err)
	}

	err = m.Home(0)
	if !errors.Is(err, stepper.ErrEndstopTimeout) {
		t.Fatalf("homing error:\n  got: %v\n want: %v", err, stepper.ErrEndstopTimeout)
	}
	// The release seek debounces immediately (debounce half-steps), then
	// the press seek must fail at exactly one half-step past twice the
	// revolution, never fewer and never more.
	if got, want := sim.Pos, debounce+2*rev+1; got != want {
		t.Errorf("half-steps before giving up:\n  got: %v\n want: %v", got, want)
	}
}

func TestHomeEndstopStuckPressed(t *testing.T) {
	sim := &steppertest.Sim{Pressed: func(int) bool { return true }}
	m, err := sim.NewMotor(rev, debounce)
	if err != nil {
		t.Fatalf("new motor: %v", err)
	}

	err = m.Home(0)
	if !errors.Is(err, stepper.ErrEndstopTimeout) {
		t.Fatalf("homing error:\n  got: %v\n want: %v", err, stepper.ErrEndstopTimeout)
	}
	if got, want := sim.Pos, 2*rev+1; got != want {
		t.Errorf("half-steps before giving up:\n  got: %v\n want: %v", got, want)
	}
}

func TestClearSharedAlternates(t *testing.T) {
	// Both wheels sit on the shared line at boot.  The line releases once
	// wheel a has advanced 20 half-steps; with a batch of 8 that takes
	// three nudges of a, with b nudged in between.
	var a, b steppertest.Sim
	shared := func(int) bool { return a.Pos < 20 }
	a.Pressed = shared
	b.Pressed = shared

	ma, err := a.NewMotor(rev, debounce)
	if err != nil {
		t.Fatalf("new motor a: %v", err)
	}
	mb, err := b.NewMotor(rev, debounce)
	if err != nil {
		t.Fatalf("new motor b: %v", err)
	}

	if err := stepper.ClearShared(ma, mb, 8, 0); err != nil {
		t.Fatalf("clear shared endstop: %v", err)
	}
	if got, want := a.Pos, 24; got != want {
		t.Errorf("wheel a nudged half-steps:\n  got: %v\n want: %v", got, want)
	}
	if got, want := b.Pos, 16; got != want {
		t.Errorf("wheel b nudged half-steps:\n  got: %v\n want: %v", got, want)
	}
}

func TestClearSharedStuck(t *testing.T) {
	var a, b steppertest.Sim
	stuck := func(int) bool { return true }
	a.Pressed = stuck
	b.Pressed = stuck

	ma, err := a.NewMotor(rev, debounce)
	if err != nil {
		t.Fatalf("new motor a: %v", err)
	}
	mb, err := b.NewMotor(rev, debounce)
	if err != nil {
		t.Fatalf("new motor b: %v", err)
	}

	err = stepper.ClearShared(ma, mb, 8, 0)
	if !errors.Is(err, stepper.ErrSharedEndstopStuck) {
		t.Fatalf("clearing error:\n  got: %v\n want: %v", err, stepper.ErrSharedEndstopStuck)
	}
	if total := a.Pos + b.Pos; total > rev {
		t.Errorf("combined nudges before giving up: %d, want at most one revolution (%d)", total, rev)
	}
}
