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
	"context"
	"fmt"

	"github.com/TheCacophonyProject/battery-gauge/internal/adapter"
	"github.com/TheCacophonyProject/battery-gauge/internal/gauge"
	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
	"github.com/TheCacophonyProject/battery-gauge/internal/register"
	"github.com/TheCacophonyProject/battery-gauge/internal/supply"
)

// Daemon owns every component of a running battery-gauge: the shared bus,
// the telemetry engine, the adapter monitor and the supply registry.
type Daemon struct {
	conf *Config
	log  *logging.Logger

	bus      *register.SharedBus
	engine   *gauge.Engine
	poller   *gauge.Poller
	monitor  *adapter.Monitor
	registry *supply.Registry
}

// New wires the components on top of bus. Nothing runs until Start.
func New(conf *Config, bus register.Bus, log *logging.Logger) (*Daemon, error) {
	d := &Daemon{
		conf:     conf,
		log:      log,
		registry: supply.NewRegistry(log),
	}
	d.bus = register.NewSharedBus(bus, register.Options{
		MaxTries:      conf.MaxTries,
		RetryInterval: conf.RetryInterval,
	}, log)

	d.engine = gauge.NewEngine(d.bus.Device(conf.BatteryAddress), conf.GaugeConfig(), log)
	d.monitor = adapter.NewMonitor(d.bus.Device(conf.AdapterAddress), conf.AdapterInterval, func(online bool) {
		d.registry.Changed(conf.AdapterName)
	}, log)
	d.engine.SetPresence(d.monitor)

	if conf.Mode == supply.ModePush {
		d.poller = gauge.NewPoller(d.engine, conf.BatteryInterval, func(st gauge.State) {
			log.Infof("Battery is now %s", st.Status)
			d.registry.Changed(conf.BatteryName)
		})
	}

	if err := d.registry.Register(supply.NewBattery(conf.BatteryName, d.engine, conf.Mode)); err != nil {
		return nil, err
	}
	if err := d.registry.Register(supply.NewAdapter(conf.AdapterName, d.monitor), conf.BatteryName); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Daemon) Registry() *supply.Registry {
	return d.registry
}

// AddSink registers a change notification sink.
func (d *Daemon) AddSink(s supply.Sink) {
	d.registry.AddSink(s)
}

// Start takes a first adapter reading and starts the background pollers.
func (d *Daemon) Start(ctx context.Context) {
	online := d.monitor.Poll()
	d.log.Infof("AC adapter online: %t", online)
	st := d.engine.Sample()
	d.log.Infof("Battery %s at %d%%", st.Status, st.Capacity)

	d.monitor.Start(ctx)
	if d.poller != nil {
		d.poller.Start(ctx)
	}
}

// Stop blocks until the pollers have exited so the bus can be closed.
func (d *Daemon) Stop() {
	d.monitor.Stop()
	if d.poller != nil {
		d.poller.Stop()
	}
}

// Query answers a property query by supply and property name.
func (d *Daemon) Query(supplyName, property string) (supply.Value, error) {
	src, ok := d.registry.Lookup(supplyName)
	if !ok {
		return supply.Value{}, fmt.Errorf("%w: unknown power supply '%s'", supply.ErrInvalidProperty, supplyName)
	}
	p, err := supply.ParseProperty(property)
	if err != nil {
		return supply.Value{}, err
	}
	return src.GetProperty(p)
}
