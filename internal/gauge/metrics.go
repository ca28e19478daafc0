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

// EnergyScale converts the energy register to mWh.
const EnergyScale = 10

// TimeToEmpty returns the seconds until energyMWh is used up at rateMW.
// rateMW is multiplied by scale and divided by 1000 first, a result of
// 0 means the rate was too low to give an estimate.
func TimeToEmpty(energyMWh, rateMW, scale int64) int64 {
	scaled := rateMW * scale / 1000
	if scaled <= 0 {
		return 0
	}
	return energyMWh * 3600 / scaled
}

// TimeToFull returns the seconds needed to charge from energyMWh to fullMWh.
func TimeToFull(fullMWh, energyMWh, rateMW, scale int64) int64 {
	missing := max(0, fullMWh-energyMWh)
	scaled := rateMW * scale / 1000
	if scaled <= 0 {
		return 0
	}
	return missing * 3600 / scaled
}

// Current returns the current in mA.
func Current(rateMW, voltageMV int64) int64 {
	if voltageMV <= 0 {
		return 0
	}
	return rateMW / voltageMV
}

// CapacityLevel is a coarse capacity indicator, values match the Linux
// power supply capacity level codes.
type CapacityLevel int

const (
	CapacityLevelUnknown  CapacityLevel = 0
	CapacityLevelCritical CapacityLevel = 1
	CapacityLevelLow      CapacityLevel = 2
	CapacityLevelNormal   CapacityLevel = 3
	CapacityLevelFull     CapacityLevel = 5
)

func (l CapacityLevel) String() string {
	switch l {
	case CapacityLevelCritical:
		return "Critical"
	case CapacityLevelLow:
		return "Low"
	case CapacityLevelNormal:
		return "Normal"
	case CapacityLevelFull:
		return "Full"
	default:
		return "Unknown"
	}
}

// LevelForCapacity uses fixed thresholds.
func LevelForCapacity(capacity int64) CapacityLevel {
	switch {
	case capacity == 100:
		return CapacityLevelFull
	case capacity <= 5:
		return CapacityLevelCritical
	case capacity <= 15:
		return CapacityLevelLow
	default:
		return CapacityLevelNormal
	}
}
