package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/northvolt/go-blisp"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/sirupsen/logrus"
	"periph.io/x/host/v3"
)

// newConfig builds the interface configuration from the root flags.
func newConfig(c *rootConfig, log *logrus.Logger) (blisp.IfaceConfig, error) {
	chip, err := blisp.ChipTypeFromName(c.chip)
	if err != nil {
		return blisp.IfaceConfig{}, err
	}

	var cfg blisp.IfaceConfig
	switch chip {
	case blisp.ChipBL702:
		cfg = blisp.ConfigBL702_UARTDefault(c.port)
	default:
		cfg = blisp.ConfigBL602_UARTDefault(c.port)
	}
	if c.baud != 0 {
		cfg.UART.BaudRate = c.baud
	}
	if c.attempts != 0 {
		cfg.ConnectAttempts = c.attempts
	}
	if cfg.Boot, err = lineConfig(cfg.Boot, c.bootLine, c.gpioBoot, c.invBoot); err != nil {
		return blisp.IfaceConfig{}, fmt.Errorf("boot line: %w", err)
	}
	if cfg.Enable, err = lineConfig(cfg.Enable, c.resetLine, c.gpioReset, c.invReset); err != nil {
		return blisp.IfaceConfig{}, fmt.Errorf("reset line: %w", err)
	}
	if c.verbose {
		cfg.Debug = debugLogger{log}
	}
	return cfg, nil
}

// lineConfig applies the line flags to the default wiring of a pin. A GPIO
// name alone selects the gpio line.
func lineConfig(lc blisp.LineConfig, line, gpio string, inverted optBool) (blisp.LineConfig, error) {
	if line == "" && gpio != "" {
		line = "gpio"
	}
	switch strings.ToLower(line) {
	case "":
	case "rts":
		lc = blisp.LineConfig{Line: blisp.LineRTS, Inverted: true}
	case "dtr":
		lc = blisp.LineConfig{Line: blisp.LineDTR, Inverted: true}
	case "gpio":
		if gpio == "" {
			return lc, errors.New("gpio line needs a pin name")
		}
		lc = blisp.LineConfig{Line: blisp.LineGPIO, Pin: gpio}
	default:
		return lc, fmt.Errorf("unknown line %q, use rts, dtr or gpio", line)
	}
	lc.Inverted = inverted.or(lc.Inverted)
	return lc, nil
}

func usesGPIO(cfg blisp.IfaceConfig) bool {
	return cfg.Boot.Line == blisp.LineGPIO || cfg.Enable.Line == blisp.LineGPIO
}

func newDevice(c *rootConfig, log *logrus.Logger) (*blisp.Dev, io.Closer, error) {
	cfg, err := newConfig(c, log)
	if err != nil {
		return nil, nil, err
	}
	if usesGPIO(cfg) {
		if _, err := host.Init(); err != nil {
			return nil, nil, err
		}
	}
	return blisp.NewSerialDev(cfg)
}

// connect opens the device and brings up the boot ROM.
func connect(ctx context.Context, c *rootConfig, log *logrus.Logger, opts ...blisp.FlasherOption) (*blisp.Flasher, io.Closer, error) {
	d, closer, err := newDevice(c, log)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]blisp.FlasherOption{blisp.WithStepLogger(log)}, opts...)
	f := blisp.NewFlasher(d, opts...)

	attempts := c.attempts
	if attempts == 0 {
		attempts = blisp.ConfigBL602_UARTDefault("").ConnectAttempts
	}
	if err := f.Connect(ctx, attempts); err != nil {
		closer.Close()
		return nil, nil, err
	}
	return f, closer, nil
}

// parseAddr parses a flash address, accepting the usual base prefixes.
func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}

func readImage(path string) (blisp.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return blisp.Image{}, err
	}
	defer f.Close()
	return blisp.ReadImage(f, blisp.ImageFormatFromPath(path))
}

func prettyHex(data []byte) string {
	return prettyHexIndent(data, "    ", "")
}

func prettyHexIndent(data []byte, prefix string, space string) string {
	var buf strings.Builder

	// prefix and space every 16 byte, and 2 hex, and one space/newline
	cols := 16
	size := (len(data)/cols+1)*(len(prefix)+len(space)+1) + len(data)*3
	buf.Grow(size)

	for i, b := range data {
		if i > 0 {
			switch i % cols {
			case 0:
				buf.WriteByte('\n')
			case cols / 2:
				buf.WriteByte(' ')
				buf.WriteString(space)
			default:
				buf.WriteByte(' ')
			}
		}
		if i%cols == 0 {
			buf.WriteString(prefix)
		}
		fmt.Fprintf(&buf, "%02X", b)
	}

	return buf.String()
}

// goBytes formats data as a Go array literal.
func goBytes(data []byte) string {
	var src strings.Builder
	src.WriteString("[...]byte{")
	for i, b := range data {
		if (i % 8) == 0 {
			src.WriteString("\n ")
		}
		fmt.Fprintf(&src, " 0x%02x,", b)
	}
	src.WriteString("\n}")
	return src.String()
}

func writeJSON(w io.Writer, data any) error {
	j, err := json.MarshalIndent(data, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(j))
	return err
}

func addLongHelp(cmd *ffcli.Command) *ffcli.Command {
	if cmd.LongHelp == "" {
		cmd.LongHelp = cmd.ShortHelp
	}

	cmd.LongHelp += blispLongHelp

	return cmd
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: !verbose,
	})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// debugLogger sends the library debug output to the debug level.
type debugLogger struct {
	l *logrus.Logger
}

func (d debugLogger) Printf(format string, args ...interface{}) {
	d.l.Debugf(format, args...)
}
