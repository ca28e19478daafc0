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

package supply

import (
	"errors"
	"fmt"
	"strconv"
)

// Property identifies a value a power supply can report.
type Property int

const (
	PropStatus Property = iota
	PropCapacity
	PropCapacityLevel
	PropTimeToEmptyNow
	PropTimeToFullNow
	PropVoltageNow
	PropCurrentNow
	PropPresent
	PropEnergyFull
	PropEnergyNow
	PropTechnology
	PropManufacturer
	PropModelName
	PropOnline
)

var propertyNames = map[Property]string{
	PropStatus:         "status",
	PropCapacity:       "capacity",
	PropCapacityLevel:  "capacity_level",
	PropTimeToEmptyNow: "time_to_empty_now",
	PropTimeToFullNow:  "time_to_full_now",
	PropVoltageNow:     "voltage_now",
	PropCurrentNow:     "current_now",
	PropPresent:        "present",
	PropEnergyFull:     "energy_full",
	PropEnergyNow:      "energy_now",
	PropTechnology:     "technology",
	PropManufacturer:   "manufacturer",
	PropModelName:      "model_name",
	PropOnline:         "online",
}

// ErrInvalidProperty is returned for a property the supply does not have.
var ErrInvalidProperty = errors.New("invalid property")

func (p Property) String() string {
	if name, ok := propertyNames[p]; ok {
		return name
	}
	return "property(" + strconv.Itoa(int(p)) + ")"
}

// ParseProperty looks up a property by its name.
func ParseProperty(name string) (Property, error) {
	for p, n := range propertyNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: '%s'", ErrInvalidProperty, name)
}

// Value is either an integer or a string property value.
type Value struct {
	Int      int64
	Str      string
	IsString bool
}

func IntValue(i int64) Value {
	return Value{Int: i}
}

func StringValue(s string) Value {
	return Value{Str: s, IsString: true}
}

// Interface returns the value as an int64 or string.
func (v Value) Interface() interface{} {
	if v.IsString {
		return v.Str
	}
	return v.Int
}

func (v Value) String() string {
	if v.IsString {
		return v.Str
	}
	return strconv.FormatInt(v.Int, 10)
}
