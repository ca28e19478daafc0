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
	"sync"
	"time"

	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
)

// DefaultFullCapacity is the full capacity in raw energy units assumed
// until the battery reports itself full.
const DefaultFullCapacity = 3750

// CalibrationTrigger selects which observation is trusted as "battery full".
type CalibrationTrigger string

const (
	// CalibrateOnStatus uses the fuel gauge's own full status.
	CalibrateOnStatus CalibrationTrigger = "status"
	// CalibrateOnAdapter uses the AC adapter being online while not charging.
	CalibrateOnAdapter CalibrationTrigger = "adapter"
)

// Presence reports whether the AC adapter is online.
type Presence interface {
	Online() bool
}

type Config struct {
	Calibration CalibrationTrigger
	// RateScale multiplies the rate when estimating times, this differs
	// between hardware revisions.
	RateScale int64
	// FullCapacity is the initial calibration reference in raw units.
	FullCapacity uint32
}

func DefaultConfig() Config {
	return Config{
		Calibration:  CalibrateOnStatus,
		RateScale:    1,
		FullCapacity: DefaultFullCapacity,
	}
}

// State is the battery state published by the engine.
type State struct {
	Status        Status
	Capacity      int64 // percent
	VoltageMV     int64
	RateMW        int64
	CurrentMA     int64
	EnergyMWh     int64
	EnergyFullMWh int64
	TimeToEmpty   int64 // seconds
	TimeToFull    int64 // seconds
	Updated       time.Time
}

// Engine turns raw fuel gauge readings into a State and keeps the full
// capacity calibrated. Each calibration point replaces the reference with
// the energy read there, so it can go down as well as up and a worn battery
// still reaches 100%.
type Engine struct {
	reader   Reader
	presence Presence
	conf     Config
	log      *logging.Logger

	mu       sync.Mutex
	state    State
	lastFull uint32
}

func NewEngine(reader Reader, conf Config, log *logging.Logger) *Engine {
	if conf.RateScale <= 0 {
		conf.RateScale = 1
	}
	if conf.Calibration == "" {
		conf.Calibration = CalibrateOnStatus
	}
	return &Engine{
		reader:   reader,
		conf:     conf,
		log:      log,
		lastFull: conf.FullCapacity,
		state: State{
			Status:        StatusUnknown,
			EnergyFullMWh: int64(conf.FullCapacity) * EnergyScale,
		},
	}
}

// SetPresence gives the engine the adapter state, needed when calibrating
// on the adapter.
func (e *Engine) SetPresence(p Presence) {
	e.mu.Lock()
	e.presence = p
	e.mu.Unlock()
}

// Sample reads the fuel gauge and publishes the new state. If the read
// failed the previous state is kept and returned.
func (e *Engine) Sample() State {
	return e.apply(ReadSample(e.reader))
}

// State returns the last published state without touching the bus.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastFullCapacity returns the calibration reference in raw units.
func (e *Engine) LastFullCapacity() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastFull
}

func (e *Engine) apply(raw RawSample) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if raw.Empty() {
		e.log.Error("Failed to read battery, keeping previous state")
		return e.state
	}

	next := e.state
	next.Status = Classify(raw.Status)
	next.Updated = time.Now()
	if next.Status == StatusUnknown {
		e.log.Debugf("Unknown battery status 0x%02X", raw.Status)
		e.state = next
		return next
	}

	rate := int64(DecodeRate(raw.Rate))
	next.VoltageMV = int64(raw.Voltage)
	next.RateMW = rate * next.VoltageMV
	next.CurrentMA = Current(next.RateMW, next.VoltageMV)
	next.EnergyMWh = int64(raw.Energy) * EnergyScale
	next.TimeToEmpty = 0
	next.TimeToFull = 0

	if e.isCalibrationPoint(next.Status) && raw.Energy != 0 {
		if e.lastFull != uint32(raw.Energy) {
			e.log.Infof("Calibrated full capacity from %d to %d", e.lastFull, raw.Energy)
		}
		e.lastFull = uint32(raw.Energy)
	}
	next.EnergyFullMWh = int64(e.lastFull) * EnergyScale
	if e.lastFull != 0 {
		next.Capacity = int64(raw.Energy) * 100 / int64(e.lastFull)
	}

	switch next.Status {
	case StatusDischarging:
		next.TimeToEmpty = TimeToEmpty(next.EnergyMWh, next.RateMW, e.conf.RateScale)
	case StatusCharging:
		next.TimeToFull = TimeToFull(next.EnergyFullMWh, next.EnergyMWh, next.RateMW, e.conf.RateScale)
	}

	e.log.Debugf("Battery %s %d%% %dmV %dmW, empty in %ds, full in %ds",
		next.Status, next.Capacity, next.VoltageMV, next.RateMW, next.TimeToEmpty, next.TimeToFull)
	e.state = next
	return next
}

func (e *Engine) isCalibrationPoint(status Status) bool {
	switch e.conf.Calibration {
	case CalibrateOnAdapter:
		return e.presence != nil && e.presence.Online() && status != StatusCharging
	default:
		return status == StatusFull
	}
}
