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
	"encoding/json"
	"fmt"
	"time"

	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
	"github.com/TheCacophonyProject/battery-gauge/internal/supply"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttPublishTimeout = 5 * time.Second

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// mqttSink publishes a retained JSON snapshot of each supply that changes
// to <topic>/<supply>.
type mqttSink struct {
	client publisher
	topic  string
	log    *logging.Logger
}

func connectMQTT(conf *Config, log *logging.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(conf.MQTTBroker)
	opts.SetClientID(conf.MQTTClientID)
	opts.SetUsername(conf.MQTTUsername)
	opts.SetPassword(conf.MQTTPassword)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Errorf("MQTT connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Infof("Connected to MQTT broker at %s", conf.MQTTBroker)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttPublishTimeout) {
		log.Infof("Still connecting to MQTT broker at %s", conf.MQTTBroker)
		return client, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return client, nil
}

type mqttPayload struct {
	Supply     string                 `json:"supply"`
	Type       supply.Type            `json:"type"`
	Timestamp  time.Time              `json:"timestamp"`
	Properties map[string]interface{} `json:"properties"`
}

func (s mqttSink) SupplyChanged(src supply.PropertySource) {
	payload, err := json.Marshal(mqttPayload{
		Supply:     src.Name(),
		Type:       src.Type(),
		Timestamp:  time.Now(),
		Properties: supply.Snapshot(src),
	})
	if err != nil {
		s.log.Errorf("Error encoding %s for MQTT: %v", src.Name(), err)
		return
	}

	topic := s.topic + "/" + src.Name()
	token := s.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		s.log.Errorf("Timed out publishing to %s", topic)
		return
	}
	if err := token.Error(); err != nil {
		s.log.Errorf("Error publishing to %s: %v", topic, err)
	}
}
