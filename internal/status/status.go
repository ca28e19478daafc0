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

// Package status prints the power supplies published by a running
// battery-gauge daemon.
package status

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/TheCacophonyProject/battery-gauge/internal/daemon"
	"github.com/TheCacophonyProject/battery-gauge/internal/gauge"
	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
	"github.com/TheCacophonyProject/battery-gauge/internal/supply"
	"github.com/alexflint/go-arg"
	"github.com/fatih/color"
	"github.com/godbus/dbus"
)

var (
	version = "<not set>"
	log     = logging.NewLogger("info")
)

type Args struct {
	Supplies []string `arg:"positional" help:"Power supplies to show, all of them if none are given"`
	Watch    bool     `arg:"-w, --watch" help:"Print supplies again each time they change"`
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

	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	c := dbusClient{obj: conn.Object(daemon.DbusName, dbus.ObjectPath(daemon.DbusPath))}

	names := args.Supplies
	if len(names) == 0 {
		if names, err = c.Supplies(); err != nil {
			return err
		}
	}
	for _, name := range names {
		if err := printSupply(os.Stdout, c, name); err != nil {
			return err
		}
	}
	if !args.Watch {
		return nil
	}

	rule := fmt.Sprintf("type='signal',interface='%s',member='Changed'", daemon.DbusName)
	call := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule)
	if call.Err != nil {
		return fmt.Errorf("failed to add match rule: %w", call.Err)
	}
	signals := make(chan *dbus.Signal, 10)
	conn.Signal(signals)
	log.Debug("Waiting for power supply changes")
	for sig := range signals {
		if sig.Name != daemon.DbusName+".Changed" || len(sig.Body) != 1 {
			continue
		}
		name, ok := sig.Body[0].(string)
		if !ok || !wanted(args.Supplies, name) {
			continue
		}
		fmt.Fprintf(os.Stdout, "%s\n", time.Now().Format(time.TimeOnly))
		if err := printSupply(os.Stdout, c, name); err != nil {
			log.Error(err)
		}
	}
	return nil
}

func wanted(names []string, name string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

type client interface {
	Properties(supply string) (map[string]interface{}, error)
}

type dbusClient struct {
	obj dbus.BusObject
}

func (c dbusClient) Supplies() ([]string, error) {
	var names []string
	err := c.obj.Call(daemon.DbusName+".Supplies", 0).Store(&names)
	return names, err
}

func (c dbusClient) Properties(name string) (map[string]interface{}, error) {
	var variants map[string]dbus.Variant
	if err := c.obj.Call(daemon.DbusName+".Properties", 0, name).Store(&variants); err != nil {
		return nil, err
	}
	props := make(map[string]interface{}, len(variants))
	for k, v := range variants {
		props[k] = v.Value()
	}
	return props, nil
}

func printSupply(w io.Writer, c client, name string) error {
	props, err := c.Properties(name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	_, err = io.WriteString(w, format(name, props))
	return err
}

// format renders the properties of one supply in property order, with
// units, one per line.
func format(name string, props map[string]interface{}) string {
	type line struct {
		prop  supply.Property
		key   string
		value string
	}
	lines := make([]line, 0, len(props))
	for key, v := range props {
		p, err := supply.ParseProperty(key)
		if err != nil {
			log.Debugf("Skipping unknown property '%s'", key)
			continue
		}
		lines = append(lines, line{p, key, formatValue(p, v)})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].prop < lines[j].prop })

	var b strings.Builder
	b.WriteString(color.New(color.Bold).Sprint(name) + "\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "  %-18s %s\n", l.key+":", l.value)
	}
	return b.String()
}

func formatValue(p supply.Property, v interface{}) string {
	n, ok := v.(int64)
	if !ok {
		return fmt.Sprint(v)
	}
	switch p {
	case supply.PropStatus:
		st := gauge.Status(n)
		switch st {
		case gauge.StatusCharging, gauge.StatusFull:
			return color.GreenString(st.String())
		case gauge.StatusDischarging:
			return color.RedString(st.String())
		}
		return st.String()
	case supply.PropCapacity:
		return fmt.Sprintf("%d%%", n)
	case supply.PropCapacityLevel:
		level := gauge.CapacityLevel(n)
		if level == gauge.CapacityLevelCritical || level == gauge.CapacityLevelLow {
			return color.RedString(level.String())
		}
		return level.String()
	case supply.PropTimeToEmptyNow, supply.PropTimeToFullNow:
		if n == 0 {
			return "-"
		}
		return (time.Duration(n) * time.Second).String()
	case supply.PropVoltageNow:
		return fmt.Sprintf("%.3f V", float64(n)/1000)
	case supply.PropCurrentNow:
		return fmt.Sprintf("%d mA", n)
	case supply.PropEnergyFull, supply.PropEnergyNow:
		return fmt.Sprintf("%.2f Wh", float64(n)/1e6)
	case supply.PropPresent, supply.PropOnline:
		if n != 0 {
			return color.GreenString("yes")
		}
		return color.RedString("no")
	}
	return fmt.Sprint(n)
}
