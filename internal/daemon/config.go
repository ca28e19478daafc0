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
	"fmt"
	"io/fs"
	"time"

	"github.com/TheCacophonyProject/battery-gauge/internal/adapter"
	"github.com/TheCacophonyProject/battery-gauge/internal/gauge"
	"github.com/TheCacophonyProject/battery-gauge/internal/i2cbus"
	"github.com/TheCacophonyProject/battery-gauge/internal/register"
	"github.com/TheCacophonyProject/battery-gauge/internal/supply"
	goconfig "github.com/TheCacophonyProject/go-config"
)

const (
	configKey = "battery-gauge"

	TransportPeriph = i2cbus.TransportPeriph
	TransportDBus   = i2cbus.TransportDBus
)

type Config struct {
	Transport       string        `mapstructure:"transport"`
	Bus             string        `mapstructure:"bus"`
	BatteryAddress  uint16        `mapstructure:"battery-address"`
	AdapterAddress  uint16        `mapstructure:"adapter-address"`
	MaxTries        int           `mapstructure:"max-tries"`
	RetryInterval   time.Duration `mapstructure:"retry-interval"`
	TransferTimeout time.Duration `mapstructure:"transfer-timeout"`
	AdapterInterval time.Duration `mapstructure:"adapter-interval"`
	BatteryInterval time.Duration `mapstructure:"battery-interval"`
	Mode            supply.Mode   `mapstructure:"mode"`
	Calibration     string        `mapstructure:"calibration"`
	RateScale       int64         `mapstructure:"rate-scale"`
	FullCapacity    uint32        `mapstructure:"full-capacity"`
	BatteryName     string        `mapstructure:"battery-name"`
	AdapterName     string        `mapstructure:"adapter-name"`
	Events          bool          `mapstructure:"events"`
	MQTTBroker      string        `mapstructure:"mqtt-broker"`
	MQTTTopic       string        `mapstructure:"mqtt-topic"`
	MQTTClientID    string        `mapstructure:"mqtt-client-id"`
	MQTTUsername    string        `mapstructure:"mqtt-username"`
	MQTTPassword    string        `mapstructure:"mqtt-password"`
}

func DefaultConfig() Config {
	return Config{
		Transport:       TransportPeriph,
		Bus:             "1",
		BatteryAddress:  0x70,
		AdapterAddress:  0x71,
		MaxTries:        register.DefaultMaxTries,
		TransferTimeout: time.Second,
		AdapterInterval: adapter.DefaultInterval,
		BatteryInterval: gauge.DefaultPollInterval,
		Mode:            supply.ModePull,
		Calibration:     string(gauge.CalibrateOnStatus),
		RateScale:       1,
		FullCapacity:    gauge.DefaultFullCapacity,
		BatteryName:     "BAT0",
		AdapterName:     "ADP1",
		Events:          true,
		MQTTTopic:       "battery-gauge",
		MQTTClientID:    "battery-gauge",
	}
}

// ParseConfig reads the battery-gauge section of the shared config file in
// configDir. A missing file, or a file without the section, gives the
// defaults.
func ParseConfig(configDir string) (*Config, error) {
	conf := DefaultConfig()
	rawConfig, err := goconfig.New(configDir)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debugf("No config file in %s, using defaults", configDir)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	} else if err := rawConfig.Unmarshal(configKey, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse %s config: %w", configKey, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c Config) Validate() error {
	switch c.Transport {
	case TransportPeriph, TransportDBus:
	default:
		return fmt.Errorf("unknown transport '%s'", c.Transport)
	}
	switch c.Mode {
	case supply.ModePull, supply.ModePush:
	default:
		return fmt.Errorf("unknown mode '%s'", c.Mode)
	}
	switch gauge.CalibrationTrigger(c.Calibration) {
	case gauge.CalibrateOnStatus, gauge.CalibrateOnAdapter:
	default:
		return fmt.Errorf("unknown calibration trigger '%s'", c.Calibration)
	}
	if c.RateScale <= 0 {
		return fmt.Errorf("rate-scale must be positive, got %d", c.RateScale)
	}
	if c.BatteryAddress > 0x7F || c.AdapterAddress > 0x7F {
		return fmt.Errorf("i2c addresses must be 7 bit, got 0x%X and 0x%X", c.BatteryAddress, c.AdapterAddress)
	}
	if c.BatteryName == c.AdapterName {
		return fmt.Errorf("battery and adapter can't both be named '%s'", c.BatteryName)
	}
	return nil
}

// GaugeConfig is the part of the config used by the telemetry engine.
func (c Config) GaugeConfig() gauge.Config {
	return gauge.Config{
		Calibration:  gauge.CalibrationTrigger(c.Calibration),
		RateScale:    c.RateScale,
		FullCapacity: c.FullCapacity,
	}
}
