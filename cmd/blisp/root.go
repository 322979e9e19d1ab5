package main

import (
	"context"
	"flag"
	"strconv"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

const envPrefix = "BLISP"

type rootConfig struct {
	verbose   bool
	config    string
	chip      string
	port      string
	baud      int
	gpioBoot  string
	gpioReset string
	bootLine  string
	resetLine string
	invBoot   optBool
	invReset  optBool
	attempts  int
}

func (c *rootConfig) registerFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "v", false, "increase log verbosity")
	fs.StringVar(&c.config, "config", "", "config file with one flag per line, e.g. 'port /dev/ttyUSB0'")
	fs.StringVar(&c.chip, "chip", "bl602", "chip type, bl602 or bl702")
	fs.StringVar(&c.port, "port", "/dev/ttyUSB0", "serial port of the device")
	fs.IntVar(&c.baud, "baud", 0, "baudrate, 0 uses the chip default")
	fs.StringVar(&c.gpioBoot, "gpio-boot", "", "host GPIO driving the boot pin instead of RTS")
	fs.StringVar(&c.gpioReset, "gpio-reset", "", "host GPIO driving the enable pin instead of DTR")
	fs.StringVar(&c.bootLine, "boot-line", "", "line driving the boot pin: rts, dtr or gpio (default rts)")
	fs.StringVar(&c.resetLine, "reset-line", "", "line driving the enable pin: rts, dtr or gpio (default dtr)")
	fs.Var(&c.invBoot, "invert-boot", "boot pin is active low on the line (default true for rts/dtr, false for gpio)")
	fs.Var(&c.invReset, "invert-reset", "enable pin is inverted on the line (default true for rts/dtr, false for gpio)")
	fs.IntVar(&c.attempts, "attempts", 0, "handshake attempts, 0 uses the default")
}

// optBool is a boolean flag that remembers whether it was set.
type optBool struct {
	set   bool
	value bool
}

func (b *optBool) String() string {
	if b == nil || !b.set {
		return ""
	}
	return strconv.FormatBool(b.value)
}

func (b *optBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.set, b.value = true, v
	return nil
}

func (b *optBool) IsBoolFlag() bool { return true }

// or returns the flag value, or def when the flag was not given.
func (b optBool) or(def bool) bool {
	if b.set {
		return b.value
	}
	return def
}

func (c *rootConfig) Exec(context.Context, []string) error {
	return flag.ErrHelp
}

// options makes every flag settable from the environment and a config file.
func options() []ff.Option {
	return []ff.Option{
		ff.WithEnvVarPrefix(envPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithAllowMissingConfigFile(true),
	}
}

func newRootCmd() (*ffcli.Command, *rootConfig) {
	var cfg rootConfig

	fs := flag.NewFlagSet("blisp", flag.ExitOnError)
	cfg.registerFlags(fs)

	return addLongHelp(&ffcli.Command{
		Name:       "blisp",
		ShortUsage: "blisp [flags] <subcommand>",
		ShortHelp:  "Program Bouffalo Lab BL602/BL702 chips over the serial boot ROM.",
		FlagSet:    fs,
		Options:    options(),
		Exec:       cfg.Exec,
	}), &cfg
}

var blispLongHelp = `

GENERAL
By default the boot pin is wired to RTS and the enable pin to DTR, both
inverted, which matches most USB-UART adapters. Use -gpio-boot and -gpio-reset
to drive the pins from host GPIOs instead, e.g. on a Raspberry Pi:

  blisp flash -gpio-boot GPIO17 -gpio-reset GPIO27 ...

Every flag can also be set with an environment variable prefixed with BLISP_,
e.g. BLISP_PORT=/dev/ttyACM0.`
