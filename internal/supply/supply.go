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
	"fmt"

	"github.com/TheCacophonyProject/battery-gauge/internal/gauge"
)

// Type of a power supply.
type Type string

const (
	TypeBattery Type = "Battery"
	TypeMains   Type = "Mains"
)

// PropertySource is implemented by everything that can answer property
// queries. The D-Bus service and notification sinks only depend on this.
type PropertySource interface {
	Name() string
	Type() Type
	Properties() []Property
	GetProperty(p Property) (Value, error)
}

// Mode selects how battery properties are refreshed.
type Mode string

const (
	// ModePull samples the fuel gauge on every query.
	ModePull Mode = "pull"
	// ModePush answers from the state kept fresh by a gauge.Poller.
	ModePush Mode = "push"
)

const (
	Manufacturer = "Acer"
	ModelName    = "Acer Switch 11 Battery"

	// TechnologyLiIon is the Linux power supply technology code for Li-ion.
	TechnologyLiIon = 2
)

// Telemetry is the part of gauge.Engine the battery supply uses.
type Telemetry interface {
	Sample() gauge.State
	State() gauge.State
}

// Battery answers battery property queries from the telemetry engine.
type Battery struct {
	name      string
	telemetry Telemetry
	mode      Mode
}

var batteryProperties = []Property{
	PropStatus,
	PropCapacity,
	PropCapacityLevel,
	PropTimeToEmptyNow,
	PropTimeToFullNow,
	PropVoltageNow,
	PropCurrentNow,
	PropPresent,
	PropEnergyFull,
	PropEnergyNow,
	PropTechnology,
	PropManufacturer,
	PropModelName,
}

func NewBattery(name string, telemetry Telemetry, mode Mode) *Battery {
	return &Battery{name: name, telemetry: telemetry, mode: mode}
}

func (b *Battery) Name() string { return b.name }

func (b *Battery) Type() Type { return TypeBattery }

func (b *Battery) Properties() []Property {
	return append([]Property(nil), batteryProperties...)
}

// GetProperty answers a single query. Only an unknown property fails,
// everything else falls back to the last good reading.
func (b *Battery) GetProperty(p Property) (Value, error) {
	if v, ok := staticValue(p); ok {
		return v, nil
	}
	if !b.has(p) {
		return Value{}, fmt.Errorf("%w: %s on %s", ErrInvalidProperty, p, b.name)
	}
	return batteryValue(p, b.state()), nil
}

// Values answers every property from a single reading.
func (b *Battery) Values() map[Property]Value {
	st := b.state()
	values := make(map[Property]Value, len(batteryProperties))
	for _, p := range batteryProperties {
		if v, ok := staticValue(p); ok {
			values[p] = v
			continue
		}
		values[p] = batteryValue(p, st)
	}
	return values
}

func (b *Battery) state() gauge.State {
	if b.mode == ModePush {
		return b.telemetry.State()
	}
	return b.telemetry.Sample()
}

func (b *Battery) has(p Property) bool {
	for _, bp := range batteryProperties {
		if bp == p {
			return true
		}
	}
	return false
}

func staticValue(p Property) (Value, bool) {
	switch p {
	case PropPresent:
		return IntValue(1), true
	case PropTechnology:
		return IntValue(TechnologyLiIon), true
	case PropManufacturer:
		return StringValue(Manufacturer), true
	case PropModelName:
		return StringValue(ModelName), true
	}
	return Value{}, false
}

// batteryValue maps the engine state onto the reported units. Energies are
// calculated in mWh but reported in µWh.
func batteryValue(p Property, st gauge.State) Value {
	switch p {
	case PropStatus:
		return IntValue(int64(st.Status))
	case PropCapacity:
		return IntValue(st.Capacity)
	case PropCapacityLevel:
		return IntValue(int64(gauge.LevelForCapacity(st.Capacity)))
	case PropTimeToEmptyNow:
		return IntValue(st.TimeToEmpty)
	case PropTimeToFullNow:
		return IntValue(st.TimeToFull)
	case PropVoltageNow:
		return IntValue(st.VoltageMV)
	case PropCurrentNow:
		return IntValue(st.CurrentMA)
	case PropEnergyFull:
		return IntValue(st.EnergyFullMWh * 1000)
	case PropEnergyNow:
		return IntValue(st.EnergyMWh * 1000)
	}
	return Value{}
}

// Presence is the part of adapter.Monitor the adapter supply uses.
type Presence interface {
	Online() bool
}

// Adapter answers AC adapter queries from the cached presence flag.
type Adapter struct {
	name     string
	presence Presence
}

func NewAdapter(name string, presence Presence) *Adapter {
	return &Adapter{name: name, presence: presence}
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Type() Type { return TypeMains }

func (a *Adapter) Properties() []Property {
	return []Property{PropOnline}
}

func (a *Adapter) GetProperty(p Property) (Value, error) {
	if p != PropOnline {
		return Value{}, fmt.Errorf("%w: %s on %s", ErrInvalidProperty, p, a.name)
	}
	if a.presence.Online() {
		return IntValue(1), nil
	}
	return IntValue(0), nil
}
