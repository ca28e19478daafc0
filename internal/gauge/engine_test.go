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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
	"github.com/TheCacophonyProject/battery-gauge/internal/register"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGauge serves a RawSample through the register interface.
type fakeGauge struct {
	mu     sync.Mutex
	sample RawSample
	reads  int
}

func (f *fakeGauge) set(s RawSample) {
	f.mu.Lock()
	f.sample = s
	f.mu.Unlock()
}

func (f *fakeGauge) ReadByte(reg register.Address) byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if reg == RegStatus {
		return f.sample.Status
	}
	return 0
}

func (f *fakeGauge) ReadWord(reg register.Address) uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	switch reg {
	case RegRate:
		return f.sample.Rate
	case RegEnergy:
		return f.sample.Energy
	case RegVoltage:
		return f.sample.Voltage
	}
	return 0
}

type presence bool

func (p presence) Online() bool { return bool(p) }

func newTestEngine(conf Config) (*Engine, *fakeGauge, *test.Hook) {
	l, hook := test.NewNullLogger()
	g := &fakeGauge{}
	return NewEngine(g, conf, logging.Wrap(l)), g, hook
}

func TestDecodeRate(t *testing.T) {
	assert.Equal(t, uint32(0), DecodeRate(0))
	assert.Equal(t, uint32(0x7FFF), DecodeRate(0x7FFF))
	assert.Equal(t, uint32(0x8000), DecodeRate(0x8000))
	assert.Equal(t, uint32(1), DecodeRate(0xFFFF))
	assert.Equal(t, uint32(250), DecodeRate(0x10000-250))

	for r := 0; r <= 0xFFFF; r += 7 {
		v := DecodeRate(uint16(r))
		assert.LessOrEqual(t, v, uint32(0x8000))
		if r <= 0x7FFF {
			assert.Equal(t, uint32(r), v)
		} else {
			assert.Equal(t, uint32(0x10000-r), v)
		}
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, StatusDischarging, Classify(0x01))
	assert.Equal(t, StatusCharging, Classify(0x02))
	assert.Equal(t, StatusFull, Classify(0x00))
	assert.Equal(t, StatusDischarging, Classify(0x03))
	assert.Equal(t, StatusUnknown, Classify(0x04))
	assert.Equal(t, StatusUnknown, Classify(0x81))
	assert.Equal(t, StatusUnknown, Classify(0xFF))
}

func TestDischargingPass(t *testing.T) {
	e, g, _ := newTestEngine(DefaultConfig())
	g.set(RawSample{Status: 0x01, Rate: 0x10000 - 2, Energy: 1875, Voltage: 7500})

	st := e.Sample()
	assert.Equal(t, StatusDischarging, st.Status)
	assert.Equal(t, int64(50), st.Capacity)
	assert.Equal(t, int64(7500), st.VoltageMV)
	assert.Equal(t, int64(15000), st.RateMW)
	assert.Equal(t, int64(2), st.CurrentMA)
	assert.Equal(t, int64(18750), st.EnergyMWh)
	assert.Equal(t, int64(37500), st.EnergyFullMWh)
	// 18750 * 3600 / (15000 / 1000)
	assert.Equal(t, int64(4500000), st.TimeToEmpty)
	assert.Equal(t, int64(0), st.TimeToFull)
	assert.Equal(t, st, e.State())
}

func TestChargingPassLeavesCalibration(t *testing.T) {
	e, g, _ := newTestEngine(DefaultConfig())
	g.set(RawSample{Status: 0x02, Rate: 2, Energy: 3000, Voltage: 8000})

	st := e.Sample()
	assert.Equal(t, StatusCharging, st.Status)
	assert.Equal(t, int64(80), st.Capacity)
	assert.Equal(t, uint32(DefaultFullCapacity), e.LastFullCapacity())
	// (37500 - 30000) * 3600 / (16000 / 1000)
	assert.Equal(t, int64(1687500), st.TimeToFull)
	assert.Equal(t, int64(0), st.TimeToEmpty)
}

func TestCapacityIsNotClamped(t *testing.T) {
	e, g, _ := newTestEngine(DefaultConfig())
	g.set(RawSample{Status: 0x01, Rate: 1, Energy: 4500, Voltage: 8000})

	st := e.Sample()
	assert.Equal(t, int64(4500*100/DefaultFullCapacity), st.Capacity)
	assert.Equal(t, int64(120), st.Capacity)
}

func TestZeroFullCapacityLeavesCapacity(t *testing.T) {
	conf := DefaultConfig()
	conf.FullCapacity = 0
	e, g, _ := newTestEngine(conf)

	g.set(RawSample{Status: 0x01, Rate: 1, Energy: 1000, Voltage: 8000})
	require.NotPanics(t, func() { e.Sample() })
	assert.Equal(t, int64(0), e.State().Capacity)
	assert.Equal(t, int64(10000), e.State().EnergyMWh)
}

func TestFailedPassKeepsState(t *testing.T) {
	e, g, hook := newTestEngine(DefaultConfig())
	g.set(RawSample{Status: 0x01, Rate: 2, Energy: 1875, Voltage: 7500})
	baseline := e.Sample()

	g.set(RawSample{})
	assert.Equal(t, baseline, e.Sample())
	assert.Equal(t, baseline, e.Sample())
	assert.Equal(t, baseline, e.State())

	errs := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			errs++
		}
	}
	assert.Equal(t, 2, errs)
}

func TestUnknownStatusKeepsNumbers(t *testing.T) {
	e, g, _ := newTestEngine(DefaultConfig())
	g.set(RawSample{Status: 0x01, Rate: 2, Energy: 1875, Voltage: 7500})
	baseline := e.Sample()

	g.set(RawSample{Status: 0x40, Rate: 9, Energy: 10, Voltage: 6000})
	st := e.Sample()
	assert.Equal(t, StatusUnknown, st.Status)
	assert.Equal(t, baseline.Capacity, st.Capacity)
	assert.Equal(t, baseline.VoltageMV, st.VoltageMV)
	assert.Equal(t, baseline.TimeToEmpty, st.TimeToEmpty)
}

func TestFullCalibratesCapacity(t *testing.T) {
	e, g, _ := newTestEngine(DefaultConfig())

	g.set(RawSample{Status: 0x00, Rate: 0, Energy: 3200, Voltage: 8400})
	st := e.Sample()
	assert.Equal(t, StatusFull, st.Status)
	assert.Equal(t, uint32(3200), e.LastFullCapacity())
	assert.Equal(t, int64(100), st.Capacity)
	assert.Equal(t, int64(32000), st.EnergyFullMWh)

	g.set(RawSample{Status: 0x01, Rate: 1, Energy: 1600, Voltage: 8000})
	st = e.Sample()
	assert.Equal(t, int64(50), st.Capacity)
}

func TestCalibrationFollowsLatestFull(t *testing.T) {
	e, g, _ := newTestEngine(DefaultConfig())

	for _, energy := range []uint16{3600, 3400, 3500} {
		g.set(RawSample{Status: 0x00, Energy: energy, Voltage: 8400})
		st := e.Sample()
		assert.Equal(t, uint32(energy), e.LastFullCapacity())
		assert.Equal(t, int64(100), st.Capacity)
	}
}

func TestFullWithZeroEnergyKeepsCalibration(t *testing.T) {
	e, g, _ := newTestEngine(DefaultConfig())
	g.set(RawSample{Status: 0x00, Rate: 0, Energy: 0, Voltage: 8400})
	e.Sample()
	assert.Equal(t, uint32(DefaultFullCapacity), e.LastFullCapacity())
}

func TestCalibrateOnAdapter(t *testing.T) {
	conf := DefaultConfig()
	conf.Calibration = CalibrateOnAdapter
	e, g, _ := newTestEngine(conf)

	// Without an adapter the full status is not trusted.
	g.set(RawSample{Status: 0x00, Energy: 3300, Voltage: 8400})
	e.Sample()
	assert.Equal(t, uint32(DefaultFullCapacity), e.LastFullCapacity())

	e.SetPresence(presence(false))
	e.Sample()
	assert.Equal(t, uint32(DefaultFullCapacity), e.LastFullCapacity())

	e.SetPresence(presence(true))
	g.set(RawSample{Status: 0x02, Rate: 1, Energy: 3000, Voltage: 8400})
	e.Sample()
	assert.Equal(t, uint32(DefaultFullCapacity), e.LastFullCapacity())

	g.set(RawSample{Status: 0x00, Energy: 3300, Voltage: 8400})
	e.Sample()
	assert.Equal(t, uint32(3300), e.LastFullCapacity())
}

func TestRateScale(t *testing.T) {
	conf := DefaultConfig()
	conf.RateScale = 10
	e, g, _ := newTestEngine(conf)
	g.set(RawSample{Status: 0x01, Rate: 2, Energy: 1875, Voltage: 7500})

	assert.Equal(t, int64(450000), e.Sample().TimeToEmpty)
}

func TestPollerPublishes(t *testing.T) {
	e, g, _ := newTestEngine(DefaultConfig())
	g.set(RawSample{Status: 0x02, Rate: 1, Energy: 1000, Voltage: 8000})

	changes := make(chan State, 4)
	p := NewPoller(e, time.Millisecond, func(st State) { changes <- st })
	p.Start(context.Background())

	select {
	case st := <-changes:
		assert.Equal(t, StatusCharging, st.Status)
	case <-time.After(time.Second):
		t.Fatal("no state change published")
	}

	g.set(RawSample{Status: 0x01, Rate: 1, Energy: 1000, Voltage: 8000})
	select {
	case st := <-changes:
		assert.Equal(t, StatusDischarging, st.Status)
	case <-time.After(time.Second):
		t.Fatal("no state change published")
	}

	p.Stop()
	g.mu.Lock()
	reads := g.reads
	g.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	g.mu.Lock()
	assert.Equal(t, reads, g.reads)
	g.mu.Unlock()
}
