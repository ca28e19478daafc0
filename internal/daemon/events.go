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
	"time"

	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
	"github.com/TheCacophonyProject/battery-gauge/internal/supply"
	"github.com/TheCacophonyProject/event-reporter/v3/eventclient"
)

var addEvent = eventclient.AddEvent

// eventSink reports adapter plug and unplug events, with the battery
// capacity at that moment, to the event reporter.
type eventSink struct {
	batteryName string
	registry    *supply.Registry
	log         *logging.Logger
}

func (s eventSink) SupplyChanged(src supply.PropertySource) {
	if src.Type() != supply.TypeMains {
		return
	}
	online, err := src.GetProperty(supply.PropOnline)
	if err != nil {
		s.log.Error(err)
		return
	}

	eventType := "acAdapterOffline"
	if online.Int == 1 {
		eventType = "acAdapterOnline"
	}
	details := map[string]interface{}{
		"supply": src.Name(),
	}
	if battery, ok := s.registry.Lookup(s.batteryName); ok {
		if capacity, err := battery.GetProperty(supply.PropCapacity); err == nil {
			details["battery"] = capacity.Int
		}
	}

	err = addEvent(eventclient.Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Details:   details,
	})
	if err != nil {
		s.log.Errorf("Error adding %s event: %v", eventType, err)
		return
	}
	s.log.Infof("Reported %s event", eventType)
}
