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

// Package i2cbus opens the raw I2C transport used by the register layer,
// either directly through periph.io or through the i2c D-Bus service.
package i2cbus

import (
	"fmt"
	"time"

	"github.com/TheCacophonyProject/battery-gauge/i2crequest"
	"github.com/TheCacophonyProject/battery-gauge/internal/register"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	TransportPeriph = "periph"
	TransportDBus   = "dbus"
)

var (
	hostInit = host.Init
	openBus  = func(name string) (register.Bus, func() error, error) {
		bus, err := i2creg.Open(name)
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	}
)

// Open returns the transport and a function that closes it. Nothing
// else may use the bus after close is called.
func Open(transport, name string, timeout time.Duration) (register.Bus, func() error, error) {
	switch transport {
	case TransportPeriph:
		if _, err := hostInit(); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize periph: %w", err)
		}
		bus, closeFn, err := openBus(name)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open i2c bus '%s': %w", name, err)
		}
		return bus, closeFn, nil
	case TransportDBus:
		return i2crequest.Bus{Timeout: int(timeout / time.Millisecond)}, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport '%s'", transport)
	}
}
