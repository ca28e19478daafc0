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

package status

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

type fakeClient map[string]map[string]interface{}

func (f fakeClient) Properties(name string) (map[string]interface{}, error) {
	props, ok := f[name]
	if !ok {
		return nil, errors.New("unknown power supply " + name)
	}
	return props, nil
}

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestFormatBattery(t *testing.T) {
	out := format("BAT0", map[string]interface{}{
		"manufacturer":      "Acer",
		"capacity":          int64(50),
		"status":            int64(2),
		"time_to_empty_now": int64(5400),
		"time_to_full_now":  int64(0),
		"voltage_now":       int64(7500),
		"energy_now":        int64(18750000),
		"capacity_level":    int64(3),
		"bogus":             int64(1),
	})
	assert.Equal(t, "BAT0\n"+
		"  status:            Discharging\n"+
		"  capacity:          50%\n"+
		"  capacity_level:    Normal\n"+
		"  time_to_empty_now: 1h30m0s\n"+
		"  time_to_full_now:  -\n"+
		"  voltage_now:       7.500 V\n"+
		"  energy_now:        18.75 Wh\n"+
		"  manufacturer:      Acer\n", out)
}

func TestPrintSupply(t *testing.T) {
	c := fakeClient{"ADP1": {"online": int64(1)}}

	var b bytes.Buffer
	assert.NoError(t, printSupply(&b, c, "ADP1"))
	assert.Equal(t, "ADP1\n  online:            yes\n", b.String())

	assert.Error(t, printSupply(&b, c, "ADP9"))
}

func TestWanted(t *testing.T) {
	assert.True(t, wanted(nil, "BAT0"))
	assert.True(t, wanted([]string{"ADP1", "BAT0"}, "BAT0"))
	assert.False(t, wanted([]string{"ADP1"}, "BAT0"))
}
