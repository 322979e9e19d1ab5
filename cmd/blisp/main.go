/*
blisp is a tool to program Bouffalo Lab BL602 and BL702 chips through their
serial ISP boot ROM.

It enters the boot ROM using the RTS/DTR lines of a USB-UART adapter, or host
GPIO pins, loads the eflash loader into RAM and writes the boot header and
firmware to flash.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/peterbourgon/ff/v3/ffcli"
)

func main() {
	var (
		out = os.Stdout
		err = os.Stderr
	)

	rootCmd, cfg := newRootCmd()
	rootCmd.Subcommands = []*ffcli.Command{
		newFlashCmd(cfg, out, err),
		newInfoCmd(cfg, out, err),
		newBootHeaderCmd(cfg, out, err),
		newDevicesCmd(cfg, out, err),
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		var num = 0
		for range c {
			num += 1
			if num >= 3 {
				os.Exit(1)
			} else {
				cancel()
			}
		}
	}()

	if err := rootCmd.ParseAndRun(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, context.Canceled) {
			msg := err.Error()
			for _, libPrefix := range []string{"blisp: ", "bootheader: "} {
				msg = strings.TrimPrefix(msg, libPrefix)
			}
			fmt.Fprintf(os.Stderr, "%s: %s\n", rootCmd.Name, msg)
			os.Exit(1)
		} else if cfg.verbose {
			fmt.Fprintf(os.Stderr, "%s: cancelled\n", rootCmd.Name)
		}
	}
}
