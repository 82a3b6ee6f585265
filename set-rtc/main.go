// Command set-rtc writes the system time to the DS3231.  The clock firmware
// applies the DST offset itself, so the RTC is set to standard time.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/timminator93/flipclock/clock"
	"github.com/timminator93/flipclock/ds3231"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var (
	i2cBus = flag.String("i2c", "", "i2c bus with the ds3231; empty picks the first available")
	dst    = flag.Bool("dst", true, "treat the system clock as DST-adjusted and store standard time")
)

func main() {
	flag.Parse()

	if _, err := host.Init(); err != nil {
		log.Fatalf("init periph.io: %v", err)
	}
	bus, err := i2creg.Open(*i2cBus)
	if err != nil {
		log.Fatalf("open i2c bus %q: %v", *i2cBus, err)
	}
	rtc := ds3231.New(bus)

	if old, err := rtc.Now(); err != nil {
		log.Printf("rtc unreadable before set: %v", err)
	} else {
		log.Printf("rtc was %s", old.Format("2006-01-02 15:04:05"))
	}

	rule := clock.DSTRule{Enabled: *dst}
	now := rule.ToStandard(time.Now())
	if err := rtc.SetTime(now); err != nil {
		log.Fatalf("set rtc: %v", err)
	}
	log.Printf("rtc set to %s (standard time)", now.Format("2006-01-02 15:04:05"))
}
