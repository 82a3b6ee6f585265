// Package clock sequences the split-flap display: it reads the RTC, turns
// the reading into three digits, and drives the wheels strictly one at a
// time.  Everything here is single-threaded and blocking; wheel moves never
// overlap, which is what keeps the shared GPIO state trivial.
package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/timminator93/flipclock/flap"
	"github.com/timminator93/flipclock/stepper"
)

var displayUpdatesCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "display_updates",
	Help: "count of complete read-and-show cycles",
})

// TimeSource is the RTC peripheral.  ds3231.Device satisfies it.
type TimeSource interface {
	// LostPower reports whether the RTC lost track of time since it was
	// last set.
	LostPower() (bool, error)
	// Now returns the current RTC time.  The RTC keeps standard (non-DST)
	// local time.
	Now() (time.Time, error)
	// SetTime sets the RTC.
	SetTime(t time.Time) error
}

// Config holds the build-time settings that are not per-wheel calibration.
type Config struct {
	// StepDelay is the sleep between half-steps.
	StepDelay time.Duration

	// DST is the daylight-saving rule applied to RTC readings.
	DST *DSTRule

	// BuildTime seeds the RTC after a power loss.  It is the wall-clock
	// time the binary was built, stamped in via -ldflags.
	BuildTime time.Time

	// UploadOffset is added to BuildTime to cover the time between
	// building the binary and it actually running on the clock.  Must not
	// be negative.
	UploadOffset time.Duration

	// NudgeBatch is the number of half-steps per nudge when clearing a
	// shared endstop line.
	NudgeBatch int
}

// Clock owns the three wheels and the RTC.
type Clock struct {
	ones, tens, hours *flap.Wheel
	source            TimeSource
	cfg               Config

	// shared holds the pair of wheels sensing through one endstop line,
	// when hasShared is set; Boot runs the clearing routine on them.
	shared    [2]*flap.Wheel
	hasShared bool
}

// New validates the wheels and configuration and returns a Clock.
func New(ones, tens, hours *flap.Wheel, source TimeSource, cfg Config) (*Clock, error) {
	for _, w := range []*flap.Wheel{ones, tens, hours} {
		if err := w.Validate(); err != nil {
			return nil, err
		}
	}
	if source == nil {
		return nil, fmt.Errorf("no time source")
	}
	if cfg.UploadOffset < 0 {
		return nil, fmt.Errorf("upload offset must not be negative, got %s", cfg.UploadOffset)
	}
	if cfg.DST == nil {
		cfg.DST = &DSTRule{}
	}
	if cfg.NudgeBatch <= 0 {
		cfg.NudgeBatch = 8
	}
	return &Clock{ones: ones, tens: tens, hours: hours, source: source, cfg: cfg}, nil
}

// ShareEndstop declares that wheels a and b sense through a single endstop
// line.  Boot will run the clearing routine on the pair before homing.  The
// routine is only defined for exactly one pair.
func (c *Clock) ShareEndstop(a, b *flap.Wheel) {
	c.shared = [2]*flap.Wheel{a, b}
	c.hasShared = true
}

// Boot brings the display to a known state: seed the RTC if it lost power,
// free a shared endstop line if one is configured, then home each wheel and
// show its start digit.  Wheels are handled in fixed order ones, tens,
// hours.
func (c *Clock) Boot() error {
	lost, err := c.source.LostPower()
	if err != nil {
		return fmt.Errorf("querying rtc power-loss flag: %w", err)
	}
	if lost {
		seed := c.cfg.DST.ToStandard(c.cfg.BuildTime.Add(c.cfg.UploadOffset))
		if err := c.source.SetTime(seed); err != nil {
			return fmt.Errorf("seeding rtc after power loss: %w", err)
		}
	}

	if c.hasShared {
		err := stepper.ClearShared(c.shared[0].Motor, c.shared[1].Motor, c.cfg.NudgeBatch, c.cfg.StepDelay)
		if err != nil {
			return fmt.Errorf("clearing shared endstop: %w", err)
		}
	}

	for _, w := range []*flap.Wheel{c.ones, c.tens, c.hours} {
		if err := w.Home(c.cfg.StepDelay); err != nil {
			return err
		}
		if err := w.ShowDigit(w.StartDigit, c.cfg.StepDelay); err != nil {
			return err
		}
	}
	return nil
}

// Show moves all three wheels to the given digits, ones first.
func (c *Clock) Show(d Digits) error {
	if err := c.ones.ShowDigit(d.Ones, c.cfg.StepDelay); err != nil {
		return err
	}
	if err := c.tens.ShowDigit(d.Tens, c.cfg.StepDelay); err != nil {
		return err
	}
	if err := c.hours.ShowDigit(d.Hour, c.cfg.StepDelay); err != nil {
		return err
	}
	return nil
}

// Run repeatedly reads the RTC and updates the display until the context is
// cancelled.  There is no cycle delay beyond the moves themselves; a cycle
// where nothing changed performs no steps at all.
func (c *Clock) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("clock loop: %w", ctx.Err())
		default:
		}
		now, err := c.source.Now()
		if err != nil {
			return fmt.Errorf("reading rtc: %w", err)
		}
		if err := c.Show(c.cfg.DST.Convert(now)); err != nil {
			return err
		}
		displayUpdatesCounter.Inc()
	}
}
