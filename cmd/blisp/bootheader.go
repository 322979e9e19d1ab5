package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/northvolt/go-blisp"
	"github.com/northvolt/go-blisp/bootheader"
	"github.com/peterbourgon/ff/v3/ffcli"
)

const (
	outputBin  = "bin"
	outputGo   = "go"
	outputHex  = "hex"
	outputIHex = "ihex"
	outputJSON = "json"
	outputYAML = "yaml"
)

var allOutputs = []string{outputBin, outputGo, outputHex, outputIHex, outputJSON, outputYAML}

type bootHeaderConfig struct {
	rootConfig *rootConfig
	in         io.Reader
	out        io.Writer
	err        io.Writer
	output     string
	imgLen     uint
	verify     string
}

func (c *bootHeaderConfig) Exec(ctx context.Context, args []string) error {
	if c.verify != "" {
		b, err := os.ReadFile(c.verify)
		if err != nil {
			return err
		}
		if err := bootheader.Verify(b); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s: valid boot header\n", c.verify)
		return nil
	}

	if len(args) != 1 {
		return errors.New("expected one INI file, use - for stdin")
	}
	if uint64(c.imgLen) > math.MaxUint32 {
		return fmt.Errorf("-img-len %d does not fit in 32 bits", c.imgLen)
	}
	h, err := c.load(args[0])
	if err != nil {
		return err
	}
	h.SetImgLen(uint32(c.imgLen))

	return writeBootHeader(c.out, c.output, h)
}

func (c *bootHeaderConfig) load(path string) (*bootheader.BootHeader, error) {
	r := c.in
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	cfg, err := bootheader.LoadINI(r)
	if err != nil {
		return nil, err
	}
	return bootheader.New(cfg)
}

func writeBootHeader(w io.Writer, output string, h *bootheader.BootHeader) error {
	switch output {
	case outputBin:
		_, err := w.Write(h.Bytes())
		return err
	case outputGo:
		_, err := fmt.Fprintln(w, goBytes(h.Bytes()))
		return err
	case outputHex:
		_, err := fmt.Fprintln(w, prettyHexIndent(h.Bytes(), "", " "))
		return err
	case outputIHex:
		return blisp.WriteIntelHex(w, 0, h.Bytes())
	case outputJSON:
		b, err := bootheader.ToJSON(h)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case outputYAML:
		b, err := bootheader.ToYAML(h)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	default:
		outputs := strings.Join(allOutputs, ", ")
		return fmt.Errorf("valid outputs are %s", outputs)
	}
}

func newBootHeaderCmd(
	rootConfig *rootConfig, out io.Writer, err io.Writer,
) *ffcli.Command {
	cfg := bootHeaderConfig{
		rootConfig: rootConfig,
		in:         os.Stdin,
		out:        out,
		err:        err,
	}

	fs := flag.NewFlagSet("blisp bootheader", flag.ExitOnError)
	fs.StringVar(&cfg.output, "o", outputHex, "output format: "+strings.Join(allOutputs, ", "))
	fs.UintVar(&cfg.imgLen, "img-len", 0, "firmware image length stored in the header")
	fs.StringVar(&cfg.verify, "verify", "", "check the CRCs of an existing 176 byte boot header instead")
	rootConfig.registerFlags(fs)

	return addLongHelp(&ffcli.Command{
		Name:       "bootheader",
		ShortUsage: "bootheader [flags] <config.ini>",
		ShortHelp:  "Builds the flash boot header from a configuration file.",
		LongHelp: `Builds the flash boot header from a configuration file.

The [BOOTHEADER_CFG] section of the INI file must set every header field.
img_len and crc32 are ignored, the image length is taken from -img-len and
all CRCs are computed.`,
		FlagSet: fs,
		Options: options(),
		Exec:    cfg.Exec,
	})
}
