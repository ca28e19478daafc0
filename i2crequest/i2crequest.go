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

// Package i2crequest makes I2C transactions through the org.cacophony.i2c
// D-Bus service, which owns the bus and arbitrates between processes.
package i2crequest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus"
)

const (
	dbusName = "org.cacophony.i2c"
	dbusPath = "/org/cacophony/i2c"
)

var (
	txMu sync.Mutex
	txFn = dbusTx
)

// Tx writes write to the device at address then reads readLen bytes back.
// timeout is in milliseconds.
func Tx(address byte, write []byte, readLen, timeout int) ([]byte, error) {
	txMu.Lock()
	fn := txFn
	txMu.Unlock()
	return fn(address, write, readLen, timeout)
}

func dbusTx(address byte, write []byte, readLen, timeout int) ([]byte, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	obj := conn.Object(dbusName, dbusPath)

	var response []byte
	if err := obj.Call(dbusName+".Tx", 0, address, write, readLen, timeout).Store(&response); err != nil {
		return nil, err
	}

	return response, nil
}

// CheckAddress reports whether a device acknowledges at address.
func CheckAddress(address byte, timeout int) (bool, error) {
	_, err := Tx(address, []byte{0x00}, 1, timeout)
	if err != nil {
		var dbusErr dbus.Error
		if errors.As(err, &dbusErr) && dbusErr.Name == dbusName+".ErrorUsingI2CBus" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Bus adapts the i2c service to the register transport.
type Bus struct {
	Timeout int // ms
}

func (b Bus) Tx(addr uint16, w, r []byte) error {
	response, err := Tx(byte(addr), w, len(r), b.Timeout)
	if err != nil {
		return err
	}
	if len(response) < len(r) {
		return fmt.Errorf("short read from 0x%02X: got %d bytes, wanted %d", addr, len(response), len(r))
	}
	copy(r, response)
	return nil
}

// TxResponse is a canned reply for MockTxResponses.
type TxResponse struct {
	Response []byte
	Err      error
}

var errNoMockResponse = errors.New("no mock response left")

// MockTxResponses replaces the D-Bus calls with the given responses, in
// order. Used by tests.
func MockTxResponses(responses []TxResponse) {
	var mu sync.Mutex
	txMu.Lock()
	defer txMu.Unlock()
	txFn = func(address byte, write []byte, readLen, timeout int) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(responses) == 0 {
			return nil, errNoMockResponse
		}
		res := responses[0]
		responses = responses[1:]
		return res.Response, res.Err
	}
}

// ResetMock restores the D-Bus transport.
func ResetMock() {
	txMu.Lock()
	txFn = dbusTx
	txMu.Unlock()
}
