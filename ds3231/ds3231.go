// Package ds3231 reads and sets a DS3231 real-time clock over I²C.  Only
// timekeeping and the oscillator-stop (power loss) flag are implemented; the
// chip's alarms and square-wave output are not used by the clock.
//
// Datasheet: https://datasheets.maximintegrated.com/en/ds/DS3231.pdf
package ds3231

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// addr is the fixed I²C address of the device.
const addr = 0x68

type register byte

const (
	rSecond  register = 0x00
	rMinute  register = 0x01
	rHour    register = 0x02
	rWeekday register = 0x03
	rDay     register = 0x04
	rMonth   register = 0x05
	rYear    register = 0x06
	rStatus  register = 0x0F
)

// osf is the oscillator-stop bit of the status register.  It is set by the
// chip when timekeeping was interrupted, i.e. the backup battery ran out,
// and stays set until cleared by software.
const osf = 0x80

// century is added to the two-digit year register.  Times outside the 21st
// century are not representable.
const century = 2000

// Device is a DS3231 on an I²C bus.
type Device struct {
	dev i2c.Dev
}

// New returns a Device on the given bus.
func New(bus i2c.Bus) *Device {
	return &Device{dev: i2c.Dev{Bus: bus, Addr: addr}}
}

// LostPower reports whether the oscillator stopped since the clock was last
// set.  A true result means the RTC time is garbage and must be re-seeded.
func (d *Device) LostPower() (bool, error) {
	var buf [1]byte
	if err := d.readReg(rStatus, buf[:]); err != nil {
		return false, fmt.Errorf("reading status register: %w", err)
	}
	return buf[0]&osf != 0, nil
}

// Now returns the current RTC time, accurate to the nearest second, in the
// local time zone.
func (d *Device) Now() (time.Time, error) {
	var buf [rYear + 1]byte
	if err := d.readReg(rSecond, buf[:]); err != nil {
		return time.Time{}, fmt.Errorf("reading time registers: %w", err)
	}
	year := bcdToDec(buf[rYear]) + century
	month := time.Month(bcdToDec(buf[rMonth] & 0x1F))
	day := bcdToDec(buf[rDay] & 0x3F)
	hour := bcdToDec(buf[rHour] & 0x3F)
	min := bcdToDec(buf[rMinute])
	sec := bcdToDec(buf[rSecond])
	return time.Date(year, month, day, hour, min, sec, 0, time.Local), nil
}

// SetTime sets the RTC and clears the oscillator-stop flag.  It returns an
// error if the time is not within the 21st century.
func (d *Device) SetTime(t time.Time) error {
	if t.Year() < century || t.Year() >= century+100 {
		return fmt.Errorf("year %d out of range [%d,%d)", t.Year(), century, century+100)
	}
	buf := [rYear + 1]byte{
		rSecond:  decToBCD(t.Second()),
		rMinute:  decToBCD(t.Minute()),
		rHour:    decToBCD(t.Hour()),
		rWeekday: decToBCD(int(t.Weekday()) + 1),
		rDay:     decToBCD(t.Day()),
		rMonth:   decToBCD(int(t.Month())),
		rYear:    decToBCD(t.Year() - century),
	}
	if err := d.writeReg(rSecond, buf[:]); err != nil {
		return fmt.Errorf("writing time registers: %w", err)
	}
	var status [1]byte
	if err := d.readReg(rStatus, status[:]); err != nil {
		return fmt.Errorf("reading status register: %w", err)
	}
	if err := d.writeReg(rStatus, []byte{status[0] &^ osf}); err != nil {
		return fmt.Errorf("clearing oscillator-stop flag: %w", err)
	}
	return nil
}

func (d *Device) readReg(r register, buf []byte) error {
	return d.dev.Tx([]byte{byte(r)}, buf)
}

func (d *Device) writeReg(r register, buf []byte) error {
	return d.dev.Tx(append([]byte{byte(r)}, buf...), nil)
}

func bcdToDec(x byte) int {
	return int(x) - 6*(int(x)>>4)
}

func decToBCD(x int) byte {
	return byte(x/10*16 + x%10)
}
