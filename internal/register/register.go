/*
battery-gauge - Battery and AC adapter telemetry over I2C.
Copyright (C) 2024, The Cacophony Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package register

import (
	"sync"
	"time"

	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
)

// Address selects a register on a device. Words are stored little endian
// across Address and Address+1.
type Address uint8

// Bus is the raw transfer primitive. periph.io's i2c.Bus satisfies it, as
// does the D-Bus backed i2crequest.Bus.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

const (
	// DefaultMaxTries is the number of attempts made for each phase of a read.
	DefaultMaxTries = 5

	// Header of the "begin indexed read" frame, followed by the register.
	indexedReadCmd  = 0x02
	indexedReadFlag = 0x80
	frameLen        = 5
)

var sleepFn = time.Sleep

// Options tune the retry behaviour of a SharedBus.
type Options struct {
	MaxTries      int
	RetryInterval time.Duration
}

// SharedBus serialises register transactions from every device on one bus.
// A write/read phase pair is never interleaved with another caller's.
type SharedBus struct {
	mu            sync.Mutex
	bus           Bus
	maxTries      int
	retryInterval time.Duration
	log           *logging.Logger
}

func NewSharedBus(bus Bus, opts Options, log *logging.Logger) *SharedBus {
	if opts.MaxTries <= 0 {
		opts.MaxTries = DefaultMaxTries
	}
	return &SharedBus{
		bus:           bus,
		maxTries:      opts.MaxTries,
		retryInterval: opts.RetryInterval,
		log:           log,
	}
}

// Device returns a register reader for the device at addr.
func (s *SharedBus) Device(addr uint16) *Device {
	return &Device{bus: s, addr: addr}
}

// Device reads registers of a single device on a SharedBus.
type Device struct {
	bus  *SharedBus
	addr uint16
}

// ReadByte reads one register using an indexed read. A phase that fails
// on every attempt makes the result 0, callers have to treat all zero
// readings as unavailable.
func (d *Device) ReadByte(reg Address) byte {
	s := d.bus
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := []byte{indexedReadCmd, indexedReadFlag, byte(reg), 0, 0}
	if !s.retry(d.addr, reg, "Write to", func() error {
		return s.bus.Tx(d.addr, frame[:frameLen], nil)
	}) {
		return 0
	}

	read := make([]byte, 1)
	if !s.retry(d.addr, reg, "Read of", func() error {
		return s.bus.Tx(d.addr, nil, read)
	}) {
		return 0
	}
	return read[0]
}

// ReadWord reads the little endian word stored at reg and reg+1.
func (d *Device) ReadWord(reg Address) uint16 {
	return uint16(d.ReadByte(reg+1))<<8 | uint16(d.ReadByte(reg))
}

// retry runs tx until it succeeds or maxTries attempts have been made.
// Failures are only logged.
func (s *SharedBus) retry(addr uint16, reg Address, phase string, tx func() error) bool {
	for try := 1; try <= s.maxTries; try++ {
		err := tx()
		if err == nil {
			return true
		}
		s.log.Errorf("%s register 0x%02X on device 0x%02X failed: %v (try %d/%d)",
			phase, byte(reg), addr, err, try, s.maxTries)
		if try < s.maxTries && s.retryInterval > 0 {
			sleepFn(s.retryInterval)
		}
	}
	return false
}
