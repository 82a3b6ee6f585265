package clock

import "time"

// Digits is one display frame: the hour wheel value and the two minute
// wheel values.
type Digits struct {
	Hour int // [0,12)
	Tens int // [0,6)
	Ones int // [0,10)
}

// Convert turns an RTC reading into the three wheel digits, applying the
// DST hour offset when the rule is active.
func (r *DSTRule) Convert(t time.Time) Digits {
	h := t.Hour() % 12
	if r.Active(t) {
		h = (h + 1) % 12
	}
	return Digits{
		Hour: h,
		Tens: t.Minute() / 10,
		Ones: t.Minute() % 10,
	}
}
