// Command run-flipclock drives the split-flap clock: it homes the three flap
// wheels against their endstops and then keeps them showing the time read
// from the DS3231.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timminator93/flipclock/clock"
	"github.com/timminator93/flipclock/ds3231"
	"github.com/timminator93/flipclock/flap"
	"github.com/timminator93/flipclock/stepper"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// buildTimestamp is stamped in at build time:
//
//	go build -ldflags "-X main.buildTimestamp=$(date +%Y-%m-%dT%H:%M:%S)"
//
// It seeds the RTC after a power loss.
var buildTimestamp string

var (
	bind          = flag.String("bind", "", "address to bind for the debug/metrics server; empty disables it")
	i2cBus        = flag.String("i2c", "", "i2c bus with the ds3231; empty picks the first available")
	stepDelay     = flag.Duration("step-delay", 1200*time.Microsecond, "sleep between half-steps")
	stepsPerRev   = flag.Int("steps-per-rev", stepper.DefaultStepsPerRev, "half-steps per wheel revolution")
	debounceReads = flag.Int("debounce-reads", 3, "consecutive endstop samples required during homing")
	dstEnabled    = flag.Bool("dst", true, "apply the US daylight-saving rule to the displayed hour")
	uploadOffset  = flag.Duration("upload-offset", 10*time.Second, "added to the build timestamp when seeding the rtc")
	nudgeBatch    = flag.Int("nudge-batch", 8, "half-steps per nudge when clearing a shared endstop line")
	sharedPair    = flag.String("shared-endstop", "", `two comma-separated wheel names sharing one endstop line, e.g. "tens,hours"`)
	faultPinName  = flag.String("fault-pin", "", "pin for the fault indicator LED; empty means exit instead of blinking")
	faultLow      = flag.Bool("fault-active-low", false, "fault LED lights when its pin is driven low")
)

// wheelFlags is the per-wheel calibration, settable from the command line.
type wheelFlags struct {
	name        string
	coils       *string
	endstop     *string
	flaps       *int
	digits      *int
	startDigit  *int
	startOffset *int
}

func wheelVars(name, coils, endstop string, flaps, digits, startDigit, startOffset int) wheelFlags {
	return wheelFlags{
		name:        name,
		coils:       flag.String(name+"-coils", coils, "four comma-separated coil pins for the "+name+" wheel"),
		endstop:     flag.String(name+"-endstop", endstop, "endstop pin for the "+name+" wheel"),
		flaps:       flag.Int(name+"-flaps", flaps, "physical flaps on the "+name+" wheel"),
		digits:      flag.Int(name+"-digits", digits, "distinct digits on the "+name+" wheel"),
		startDigit:  flag.Int(name+"-start-digit", startDigit, "digit facing the viewer after homing the "+name+" wheel"),
		startOffset: flag.Int(name+"-start-offset", startOffset, "half-steps from the endstop to the start digit of the "+name+" wheel"),
	}
}

var wheelDefs = map[string]wheelFlags{
	"ones":  wheelVars("ones", "GPIO2,GPIO3,GPIO4,GPIO17", "GPIO14", 10, 10, 0, 110),
	"tens":  wheelVars("tens", "GPIO27,GPIO22,GPIO10,GPIO9", "GPIO15", 12, 6, 0, 110),
	"hours": wheelVars("hours", "GPIO11,GPIO5,GPIO6,GPIO13", "GPIO18", 12, 12, 0, 110),
}

func buildWheel(f wheelFlags) (*flap.Wheel, error) {
	names := strings.Split(*f.coils, ",")
	if len(names) != 4 {
		return nil, fmt.Errorf("wheel %q: want 4 coil pins, got %q", f.name, *f.coils)
	}
	var coils [4]stepper.Pin
	for i, n := range names {
		p := gpioreg.ByName(strings.TrimSpace(n))
		if p == nil {
			return nil, fmt.Errorf("wheel %q: no such pin %q", f.name, n)
		}
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("wheel %q: configuring coil pin %q: %w", f.name, n, err)
		}
		coils[i] = p
	}
	es := gpioreg.ByName(strings.TrimSpace(*f.endstop))
	if es == nil {
		return nil, fmt.Errorf("wheel %q: no such endstop pin %q", f.name, *f.endstop)
	}
	if err := es.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("wheel %q: configuring endstop pin %q: %w", f.name, *f.endstop, err)
	}
	m, err := stepper.New(stepper.Config{
		Coils:         coils,
		Endstop:       es,
		StepsPerRev:   *stepsPerRev,
		DebounceReads: *debounceReads,
	})
	if err != nil {
		return nil, fmt.Errorf("wheel %q: %w", f.name, err)
	}
	return &flap.Wheel{
		Name:        f.name,
		Motor:       m,
		FlapCount:   *f.flaps,
		DigitCount:  *f.digits,
		StartDigit:  *f.startDigit,
		StartOffset: *f.startOffset,
	}, nil
}

// halt is the terminal failure path.  Every detected failure in this system
// is a hardware fault needing physical intervention, so there is nothing to
// do but signal: blink the fault LED at 1Hz forever if one is configured,
// otherwise exit nonzero.
func halt(fault gpio.PinIO, err error) {
	log.Printf("fatal: %v", err)
	if fault == nil {
		os.Exit(1)
	}
	on, off := gpio.High, gpio.Low
	if *faultLow {
		on, off = off, on
	}
	for {
		fault.Out(on)
		time.Sleep(500 * time.Millisecond)
		fault.Out(off)
		time.Sleep(500 * time.Millisecond)
	}
}

func main() {
	flag.Parse()

	if _, err := host.Init(); err != nil {
		log.Fatalf("init periph.io: %v", err)
	}

	var fault gpio.PinIO
	if *faultPinName != "" {
		fault = gpioreg.ByName(*faultPinName)
		if fault == nil {
			log.Fatalf("no such fault pin %q", *faultPinName)
		}
	}

	bus, err := i2creg.Open(*i2cBus)
	if err != nil {
		halt(fault, fmt.Errorf("open i2c bus %q: %w", *i2cBus, err))
	}
	rtc := ds3231.New(bus)

	wheels := make(map[string]*flap.Wheel, len(wheelDefs))
	for name, def := range wheelDefs {
		w, err := buildWheel(def)
		if err != nil {
			log.Fatalf("configuring wheels: %v", err)
		}
		wheels[name] = w
	}

	buildTime := time.Now()
	if buildTimestamp != "" {
		buildTime, err = time.ParseInLocation("2006-01-02T15:04:05", buildTimestamp, time.Local)
		if err != nil {
			log.Fatalf("parse build timestamp %q: %v", buildTimestamp, err)
		}
	} else {
		log.Printf("no build timestamp stamped in; falling back to the system clock for rtc seeding")
	}

	cl, err := clock.New(wheels["ones"], wheels["tens"], wheels["hours"], rtc, clock.Config{
		StepDelay:    *stepDelay,
		DST:          &clock.DSTRule{Enabled: *dstEnabled},
		BuildTime:    buildTime,
		UploadOffset: *uploadOffset,
		NudgeBatch:   *nudgeBatch,
	})
	if err != nil {
		log.Fatalf("configuring clock: %v", err)
	}
	if *sharedPair != "" {
		names := strings.Split(*sharedPair, ",")
		if len(names) != 2 {
			log.Fatalf("-shared-endstop wants exactly two wheel names, got %q", *sharedPair)
		}
		a, b := wheels[strings.TrimSpace(names[0])], wheels[strings.TrimSpace(names[1])]
		if a == nil || b == nil || a == b {
			log.Fatalf("-shared-endstop wants two distinct wheel names out of ones/tens/hours, got %q", *sharedPair)
		}
		cl.ShareEndstop(a, b)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *bind != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("metrics server listening on %s", *bind)
			if err := http.ListenAndServe(*bind, nil); err != nil {
				log.Printf("metrics server died: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("interrupt")
		cancel()
	}()

	if err := cl.Boot(); err != nil {
		halt(fault, fmt.Errorf("boot: %w", err))
	}
	if err := cl.Run(ctx); err != nil {
		if ctx.Err() != nil {
			log.Printf("shutting down: %v", err)
			os.Exit(0)
		}
		halt(fault, err)
	}
}
