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

package gauge

import (
	"github.com/TheCacophonyProject/battery-gauge/internal/register"
)

// Fuel gauge register map.
const (
	RegStatus  register.Address = 0xC1
	RegRate    register.Address = 0xD0
	RegEnergy  register.Address = 0xC2
	RegVoltage register.Address = 0xC6
)

const (
	statusDischargingBit = 0x01
	statusChargingBit    = 0x02
	statusMask           = statusDischargingBit | statusChargingBit
)

// Reader is what the engine needs from the register transport.
type Reader interface {
	ReadByte(reg register.Address) byte
	ReadWord(reg register.Address) uint16
}

// RawSample holds the registers read in one pass.
type RawSample struct {
	Status  uint8
	Rate    uint16 // two's complement
	Energy  uint16 // units of 10 mWh
	Voltage uint16 // mV
}

// Empty reports whether every field is zero, which is what a pass looks
// like when the fuel gauge did not answer.
func (s RawSample) Empty() bool {
	return s == RawSample{}
}

// ReadSample reads the four telemetry registers.
func ReadSample(r Reader) RawSample {
	return RawSample{
		Status:  r.ReadByte(RegStatus),
		Rate:    r.ReadWord(RegRate),
		Energy:  r.ReadWord(RegEnergy),
		Voltage: r.ReadWord(RegVoltage),
	}
}

// DecodeRate returns the magnitude of the signed rate register.
func DecodeRate(raw uint16) uint32 {
	v := uint32(raw)
	if v > 0x7FFF {
		v = 0x10000 - v
	}
	return v
}

// Status is the battery state, the values match the Linux power supply
// status codes.
type Status int

const (
	StatusUnknown     Status = 0
	StatusCharging    Status = 1
	StatusDischarging Status = 2
	StatusFull        Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusCharging:
		return "Charging"
	case StatusDischarging:
		return "Discharging"
	case StatusFull:
		return "Full"
	default:
		return "Unknown"
	}
}

// Classify maps the status register to a Status. The discharging bit is
// checked before the charging bit. Bytes with bits outside the two status
// bits set are not understood and give StatusUnknown.
func Classify(status uint8) Status {
	switch {
	case status&^statusMask != 0:
		return StatusUnknown
	case status&statusDischargingBit != 0:
		return StatusDischarging
	case status&statusChargingBit != 0:
		return StatusCharging
	default:
		return StatusFull
	}
}
