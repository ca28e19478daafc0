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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/TheCacophonyProject/battery-gauge/internal/i2cbus"
	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
	goconfig "github.com/TheCacophonyProject/go-config"
	"github.com/alexflint/go-arg"
	"github.com/godbus/dbus"
)

var (
	version = "<not set>"
	log     = logging.NewLogger("info")
)

type Args struct {
	goconfig.ConfigArgs
	logging.LogArgs
}

var defaultArgs = Args{}

func procArgs(input []string) (Args, error) {
	args := defaultArgs

	parser, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		return Args{}, err
	}
	err = parser.Parse(input)
	if errors.Is(err, arg.ErrHelp) {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if errors.Is(err, arg.ErrVersion) {
		fmt.Println(version)
		os.Exit(0)
	}
	return args, err
}

func Run(inputArgs []string, ver string) error {
	version = ver
	args, err := procArgs(inputArgs)
	if err != nil {
		return fmt.Errorf("failed to parse args: %v", err)
	}
	log = logging.NewLogger(args.LogLevel)

	log.Printf("Running version: %s", version)

	conf, err := ParseConfig(args.ConfigDir)
	if err != nil {
		return err
	}
	go func() {
		if err := watchConfig(conf, args.ConfigDir, log); err != nil {
			log.Errorf("Not watching config for changes: %v", err)
		}
	}()

	bus, closeBus, err := i2cbus.Open(conf.Transport, conf.Bus, conf.TransferTimeout)
	if err != nil {
		return err
	}
	defer closeBus()

	d, err := New(conf, bus, log)
	if err != nil {
		return err
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	if err := startService(conn, d); err != nil {
		return err
	}
	d.AddSink(signalSink{conn: conn, log: log})

	if conf.Events {
		d.AddSink(eventSink{batteryName: conf.BatteryName, registry: d.Registry(), log: log})
	}

	if conf.MQTTBroker != "" {
		client, err := connectMQTT(conf, log)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		d.AddSink(mqttSink{client: client, topic: conf.MQTTTopic, log: log})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Infof("Received %s, shutting down", sig)

	d.Stop()
	return nil
}
