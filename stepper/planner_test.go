package stepper_test

import (
	"testing"

	"github.com/timminator93/flipclock/stepper"
	"github.com/timminator93/flipclock/stepper/steppertest"
)

func newHomedMotor(t *testing.T) (*stepper.Motor, *steppertest.Sim) {
	t.Helper()
	sim := &steppertest.Sim{Pressed: pressedNear}
	m, err := sim.NewMotor(rev, debounce)
	if err != nil {
		t.Fatalf("new motor: %v", err)
	}
	if err := m.Home(0); err != nil {
		t.Fatalf("home: %v", err)
	}
	return m, sim
}

func TestMoveToForward(t *testing.T) {
	m, sim := newHomedMotor(t)
	before := sim.Pos

	if err := m.MoveTo(100, 0); err != nil {
		t.Fatalf("move to 100: %v", err)
	}
	if got, want := m.Position(), 100; got != want {
		t.Errorf("position:\n  got: %v\n want: %v", got, want)
	}
	if got, want := sim.Pos-before, 100; got != want {
		t.Errorf("half-steps taken:\n  got: %v\n want: %v", got, want)
	}

	if err := m.MoveTo(150, 0); err != nil {
		t.Fatalf("move to 150: %v", err)
	}
	if got, want := sim.Pos-before, 150; got != want {
		t.Errorf("half-steps taken after second move:\n  got: %v\n want: %v", got, want)
	}
}

func TestMoveToIsIdempotent(t *testing.T) {
	m, sim := newHomedMotor(t)
	if err := m.MoveTo(150, 0); err != nil {
		t.Fatalf("move to 150: %v", err)
	}
	before := sim.Pos
	if err := m.MoveTo(150, 0); err != nil {
		t.Fatalf("repeat move to 150: %v", err)
	}
	if got, want := sim.Pos-before, 0; got != want {
		t.Errorf("half-steps taken by repeated move:\n  got: %v\n want: %v", got, want)
	}
}

func TestMoveToBackwardRehomes(t *testing.T) {
	m, sim := newHomedMotor(t)
	if err := m.MoveTo(150, 0); err != nil {
		t.Fatalf("move to 150: %v", err)
	}
	before := sim.Pos

	// 100 is behind 150 and only reachable through a full lap across the
	// endstop.
	if err := m.MoveTo(100, 0); err != nil {
		t.Fatalf("move to 100: %v", err)
	}
	if got, want := m.Position(), 100; got != want {
		t.Errorf("position:\n  got: %v\n want: %v", got, want)
	}
	if got := sim.Pos - before; got <= 100 {
		t.Errorf("half-steps taken: %d, want more than the forward distance alone (re-home lap)", got)
	}
	if got := sim.Pos - before; got > rev+100+2*debounce {
		t.Errorf("half-steps taken: %d, want at most one lap plus the forward distance", got)
	}
}

func TestMoveToNormalizesTarget(t *testing.T) {
	m, sim := newHomedMotor(t)
	before := sim.Pos
	if err := m.MoveTo(rev+100, 0); err != nil {
		t.Fatalf("move to rev+100: %v", err)
	}
	if got, want := m.Position(), 100; got != want {
		t.Errorf("position:\n  got: %v\n want: %v", got, want)
	}
	if got, want := sim.Pos-before, 100; got != want {
		t.Errorf("half-steps taken:\n  got: %v\n want: %v", got, want)
	}
}
