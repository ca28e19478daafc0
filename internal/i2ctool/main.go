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

// Package i2ctool reads registers of the battery gauge and adapter
// devices by hand, through the same retrying transport as the daemon.
package i2ctool

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/TheCacophonyProject/battery-gauge/i2crequest"
	"github.com/TheCacophonyProject/battery-gauge/internal/daemon"
	"github.com/TheCacophonyProject/battery-gauge/internal/gauge"
	"github.com/TheCacophonyProject/battery-gauge/internal/i2cbus"
	"github.com/TheCacophonyProject/battery-gauge/internal/logging"
	"github.com/TheCacophonyProject/battery-gauge/internal/register"
	goconfig "github.com/TheCacophonyProject/go-config"
	"github.com/alexflint/go-arg"
)

var version = "<not set>"
var log = logging.NewLogger("info")

type Args struct {
	Read   *Read       `arg:"subcommand:read"   help:"Read a register."`
	Word   *Read       `arg:"subcommand:word"   help:"Read a little endian word from a register and the next one."`
	Find   *Find       `arg:"subcommand:find"   help:"Find i2c devices."`
	Sample *subcommand `arg:"subcommand:sample" help:"Read the battery registers once and decode them."`
	goconfig.ConfigArgs
	logging.LogArgs
}

type subcommand struct {
}

type Find struct {
	Address string `arg:"required" help:"The address of the device you want to find, in hex (0xnn)"`
}

type Read struct {
	Address string `arg:"required" help:"The address you want to read from, in hex (0xnn)"`
	Reg     string `arg:"required" help:"The Register you want to read from, in hex (0xnn)"`
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

	conf, err := daemon.ParseConfig(args.ConfigDir)
	if err != nil {
		return err
	}
	bus, closeBus, err := i2cbus.Open(conf.Transport, conf.Bus, conf.TransferTimeout)
	if err != nil {
		return err
	}
	defer closeBus()
	shared := register.NewSharedBus(bus, register.Options{
		MaxTries:      conf.MaxTries,
		RetryInterval: conf.RetryInterval,
	}, log)

	switch {
	case args.Read != nil:
		return read(os.Stdout, shared, args.Read, false)
	case args.Word != nil:
		return read(os.Stdout, shared, args.Word, true)
	case args.Find != nil:
		return find(bus, args.Find, conf.TransferTimeout.Milliseconds())
	case args.Sample != nil:
		return sample(os.Stdout, shared, conf)
	}
	return errors.New("no subcommand given")
}

func find(bus register.Bus, find *Find, timeout int64) error {
	address, err := hexStringToByte(find.Address)
	if err != nil {
		return err
	}

	log.Printf("Finding address 0x%X", address)
	found, err := probe(bus, address, int(timeout))
	if err != nil {
		log.Errorf("Error checking for device: %v", err)
	}
	if found {
		log.Printf("Found device at address 0x%X", address)
	} else {
		log.Printf("Did not find device at address 0x%X", address)
	}
	return nil
}

// probe reports whether a device answers at address. The i2c service
// can tell a missing device from a bus error, a direct bus can't.
func probe(bus register.Bus, address byte, timeout int) (bool, error) {
	if _, ok := bus.(i2crequest.Bus); ok {
		return i2crequest.CheckAddress(address, timeout)
	}
	return bus.Tx(uint16(address), nil, make([]byte, 1)) == nil, nil
}

func read(w io.Writer, bus *register.SharedBus, args *Read, word bool) error {
	address, err := hexStringToByte(args.Address)
	if err != nil {
		return err
	}
	reg, err := hexStringToByte(args.Reg)
	if err != nil {
		return err
	}

	dev := bus.Device(uint16(address))
	log.Debugf("Reading register 0x%X on 0x%X", reg, address)
	if word {
		v := dev.ReadWord(register.Address(reg))
		_, err = fmt.Fprintf(w, "0x%04X (%d)\n", v, v)
	} else {
		v := dev.ReadByte(register.Address(reg))
		_, err = fmt.Fprintf(w, "0x%02X (%d)\n", v, v)
	}
	return err
}

func sample(w io.Writer, bus *register.SharedBus, conf *daemon.Config) error {
	dev := bus.Device(conf.BatteryAddress)
	raw := gauge.ReadSample(dev)
	if raw.Empty() {
		return fmt.Errorf("failed to read battery at 0x%02X", conf.BatteryAddress)
	}
	fmt.Fprintf(w, "status:  0x%02X (%s)\n", raw.Status, gauge.Classify(raw.Status))
	fmt.Fprintf(w, "rate:    0x%04X (%d)\n", raw.Rate, gauge.DecodeRate(raw.Rate))
	fmt.Fprintf(w, "energy:  0x%04X (%d mWh)\n", raw.Energy, int64(raw.Energy)*gauge.EnergyScale)
	fmt.Fprintf(w, "voltage: 0x%04X (%d mV)\n", raw.Voltage, raw.Voltage)

	st := gauge.NewEngine(dev, conf.GaugeConfig(), log).Sample()
	_, err := fmt.Fprintf(w, "%s at %d%%, %d mW, %d mA\n", st.Status, st.Capacity, st.RateMW, st.CurrentMA)
	return err
}

func hexStringToByte(hexStr string) (byte, error) {
	if len(hexStr) != 4 {
		return 0, fmt.Errorf("invalid hex string length: %d", len(hexStr))
	}
	if !strings.HasPrefix(hexStr, "0x") {
		return 0, fmt.Errorf("invalid hex string prefix, should be '0x': %s", hexStr)
	}
	val, err := strconv.ParseUint(hexStr[2:], 16, 8)
	if err != nil {
		return 0, err
	}
	return byte(val), nil
}
