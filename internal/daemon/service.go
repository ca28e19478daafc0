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

package daemon

import (
	"errors"

	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
	"github.com/TheCacophonyProject/battery-gauge/internal/supply"
	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"
)

const (
	DbusName = "org.cacophony.batterygauge"
	DbusPath = "/org/cacophony/batterygauge"

	changedSignal = DbusName + ".Changed"
)

type service struct {
	daemon *Daemon
}

func startService(conn *dbus.Conn, d *Daemon) error {
	reply, err := conn.RequestName(DbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("name already taken")
	}

	s := &service{daemon: d}
	conn.Export(s, DbusPath, DbusName)
	conn.Export(genIntrospectable(s), DbusPath, "org.freedesktop.DBus.Introspectable")
	return nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    DbusName,
			Methods: introspect.Methods(v),
			Signals: []introspect.Signal{{
				Name: "Changed",
				Args: []introspect.Arg{{Name: "supply", Type: "s"}},
			}},
		}},
	}
	return introspect.NewIntrospectable(node)
}

// Supplies lists the registered power supplies.
func (s service) Supplies() ([]string, *dbus.Error) {
	names := []string{}
	for _, src := range s.daemon.Registry().Supplies() {
		names = append(names, src.Name())
	}
	return names, nil
}

// GetProperty returns one property of a power supply.
func (s service) GetProperty(supplyName, property string) (dbus.Variant, *dbus.Error) {
	v, err := s.daemon.Query(supplyName, property)
	if err != nil {
		return dbus.Variant{}, makeDbusError(".InvalidProperty", err)
	}
	return dbus.MakeVariant(v.Interface()), nil
}

// Properties returns every property of a power supply.
func (s service) Properties(supplyName string) (map[string]dbus.Variant, *dbus.Error) {
	src, ok := s.daemon.Registry().Lookup(supplyName)
	if !ok {
		return nil, makeDbusError(".InvalidProperty", errors.New("unknown power supply "+supplyName))
	}
	return toVariants(supply.Snapshot(src)), nil
}

func toVariants(snapshot map[string]interface{}) map[string]dbus.Variant {
	out := make(map[string]dbus.Variant, len(snapshot))
	for k, v := range snapshot {
		out[k] = dbus.MakeVariant(v)
	}
	return out
}

func makeDbusError(name string, err error) *dbus.Error {
	return &dbus.Error{
		Name: DbusName + name,
		Body: []interface{}{err.Error()},
	}
}

// signalSink emits the Changed signal so listeners can re-read the supply.
type signalSink struct {
	conn *dbus.Conn
	log  *logging.Logger
}

func (s signalSink) SupplyChanged(src supply.PropertySource) {
	if err := s.conn.Emit(dbus.ObjectPath(DbusPath), changedSignal, src.Name()); err != nil {
		s.log.Errorf("Error sending %s signal: %v", changedSignal, err)
	}
}
