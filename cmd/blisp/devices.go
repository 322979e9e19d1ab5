package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/northvolt/go-blisp"
	"github.com/peterbourgon/ff/v3/ffcli"
)

type devicesConfig struct {
	rootConfig *rootConfig
	out        io.Writer
	err        io.Writer
	json       bool
}

func (c *devicesConfig) Exec(context.Context, []string) error {
	adapters, err := blisp.ListAdapters()
	if err != nil {
		return err
	}
	if c.json {
		return writeJSON(c.out, adapters)
	}
	if len(adapters) == 0 {
		fmt.Fprintln(c.err, "no known adapters found")
		return nil
	}
	for _, a := range adapters {
		fmt.Fprintln(c.out, a)
	}
	return nil
}

func newDevicesCmd(
	rootConfig *rootConfig, out io.Writer, err io.Writer,
) *ffcli.Command {
	cfg := devicesConfig{
		rootConfig: rootConfig,
		out:        out,
		err:        err,
	}

	fs := flag.NewFlagSet("blisp devices", flag.ExitOnError)
	fs.BoolVar(&cfg.json, "json", false, "output in json mode")
	rootConfig.registerFlags(fs)

	return addLongHelp(&ffcli.Command{
		Name:       "devices",
		ShortUsage: "devices",
		ShortHelp:  "Lists attached USB-UART adapters known to be used with these chips.",
		FlagSet:    fs,
		Options:    options(),
		Exec:       cfg.Exec,
	})
}
