package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/northvolt/go-blisp"
	"github.com/northvolt/go-blisp/bootheader"
	"github.com/peterbourgon/ff/v3/ffcli"
)

type flashConfig struct {
	rootConfig *rootConfig
	out        io.Writer
	err        io.Writer
	loader     string
	firmware   string
	bootHeader string
	addr       string
}

func (c *flashConfig) Exec(ctx context.Context, _ []string) error {
	log := newLogger(c.err, c.rootConfig.verbose)

	if c.loader == "" || c.firmware == "" || c.bootHeader == "" {
		return errors.New("-loader, -firmware and -bootheader are required")
	}
	addr, err := parseAddr(c.addr)
	if err != nil {
		return err
	}

	// Read every input before touching the device.
	loader, err := readImage(c.loader)
	if err != nil {
		return err
	}
	image, err := readImage(c.firmware)
	if err != nil {
		return err
	}
	descriptor, err := buildBootHeader(c.bootHeader, uint32(len(image.Data)))
	if err != nil {
		return err
	}
	log.Debugf("boot header:\n%s", prettyHex(descriptor))

	d, closer, err := newDevice(c.rootConfig, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	progress := func(p blisp.Progress) {
		log.Debugf("%s %d/%d bytes", p.Phase, p.Done, p.Total)
	}
	f := blisp.NewFlasher(d,
		blisp.WithStepLogger(log),
		blisp.WithProgress(progress),
		blisp.WithFirmwareAddr(addr),
	)

	if err := f.Run(ctx, bytes.NewReader(loader.Data), descriptor, image.Data); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Programmed %d bytes at %#08x\n", len(image.Data), addr)
	return nil
}

func buildBootHeader(path string, imageLen uint32) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := bootheader.LoadINI(f)
	if err != nil {
		return nil, err
	}
	return bootheader.Build(cfg, imageLen)
}

func newFlashCmd(
	rootConfig *rootConfig, out io.Writer, err io.Writer,
) *ffcli.Command {
	cfg := flashConfig{
		rootConfig: rootConfig,
		out:        out,
		err:        err,
	}

	fs := flag.NewFlagSet("blisp flash", flag.ExitOnError)
	fs.StringVar(&cfg.loader, "loader", "", "eflash loader image loaded into RAM, .bin or .hex")
	fs.StringVar(&cfg.firmware, "firmware", "", "firmware image, .bin or .hex")
	fs.StringVar(&cfg.bootHeader, "bootheader", "", "INI file with a [BOOTHEADER_CFG] section")
	fs.StringVar(&cfg.addr, "addr", "0x2000", "flash address of the firmware")
	rootConfig.registerFlags(fs)

	return addLongHelp(&ffcli.Command{
		Name:       "flash",
		ShortUsage: "flash -loader <file> -firmware <file> -bootheader <ini>",
		ShortHelp:  "Writes the boot header and firmware to flash.",
		FlagSet:    fs,
		Options:    options(),
		Exec:       cfg.Exec,
	})
}
