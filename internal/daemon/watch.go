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
	"os"
	"path/filepath"

	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
	goconfig "github.com/TheCacophonyProject/go-config"
	"github.com/google/go-cmp/cmp"
	"github.com/rjeczalik/notify"
)

var exitFn = os.Exit

// watchConfig exits when the config file changes in a way that matters, so
// systemd restarts the daemon with the new config.
func watchConfig(conf *Config, configDir string, log *logging.Logger) error {
	configFilePath := filepath.Join(configDir, goconfig.ConfigFileName)
	fsEvents := make(chan notify.EventInfo, 1)
	if err := notify.Watch(configFilePath, fsEvents, notify.InCloseWrite, notify.InMovedTo); err != nil {
		return err
	}
	defer notify.Stop(fsEvents)

	for range fsEvents {
		if configChanged(conf, configDir, log) {
			log.Info("Config changed. Exiting to allow systemctl to restart service.")
			exitFn(0)
			return nil
		}
		log.Info("No relevant changes detected in config file.")
	}
	return nil
}

func configChanged(conf *Config, configDir string, log *logging.Logger) bool {
	newConfig, err := ParseConfig(configDir)
	if err != nil {
		log.Errorf("Error reloading config: %v", err)
		return false
	}
	diff := cmp.Diff(conf, newConfig)
	log.Debug("Config diff: ", diff)
	return diff != ""
}
