package stepper

import (
	"fmt"
	"time"
)

// MoveTo drives the wheel to an absolute half-step position.  The drivetrain
// only rotates forward, so a target behind the current position is reached
// by re-homing first and stepping out from zero; the forced lap through the
// endstop also discards any step error accumulated since the last homing.
//
// target is taken modulo the revolution.  Calling MoveTo twice with the same
// target performs no steps the second time.
func (m *Motor) MoveTo(target int, delay time.Duration) error {
	target %= m.stepsPerRev
	if target < 0 {
		target += m.stepsPerRev
	}
	switch {
	case target == m.position:
		return nil
	case target < m.position:
		if err := m.Home(delay); err != nil {
			return fmt.Errorf("re-homing for backward target %d: %w", target, err)
		}
		m.StepN(target, delay)
	default:
		m.StepN(target-m.position, delay)
	}
	return nil
}
