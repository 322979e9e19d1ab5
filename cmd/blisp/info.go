package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"text/template"

	"github.com/northvolt/go-blisp"
	"github.com/peterbourgon/ff/v3/ffcli"
)

type infoConfig struct {
	rootConfig *rootConfig
	out        io.Writer
	err        io.Writer
	json       bool
	loader     string
}

func (c *infoConfig) Exec(ctx context.Context, _ []string) error {
	log := newLogger(c.err, c.rootConfig.verbose)

	var loader []byte
	if c.loader != "" {
		img, err := readImage(c.loader)
		if err != nil {
			return err
		}
		loader = img.Data
	}

	f, closer, err := connect(ctx, c.rootConfig, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	di, err := getDeviceInfo(ctx, f, loader)
	if err != nil {
		return err
	}
	if ct, err := blisp.ChipTypeFromName(c.rootConfig.chip); err == nil {
		di.Chip = ct.String()
	}

	if c.json {
		return writeJSON(c.out, di)
	} else {
		return writeText(c.out, di)
	}
}

const deviceInfoTemplate = `
Chip:
    {{ .Chip }}

Boot ROM version:
    {{ printf "%#08x" .BootROMVersion }}

OTP information:
{{ hex .OTP }}
{{ if .JedecID }}
Flash JEDEC ID:
{{ hex .JedecID }}
{{ end -}}
{{ if .MAC }}
MAC address:
{{ hex .MAC }}
{{ end }}
Done
`

func writeText(w io.Writer, di *deviceInfo) error {
	funcs := template.FuncMap{
		"hex": prettyHex,
	}
	t, err := template.New("info").Funcs(funcs).Parse(deviceInfoTemplate)
	if err != nil {
		return err
	}

	return t.Execute(w, di)
}

func newInfoCmd(
	rootConfig *rootConfig, out io.Writer, err io.Writer,
) *ffcli.Command {
	cfg := infoConfig{
		rootConfig: rootConfig,
		out:        out,
		err:        err,
	}

	fs := flag.NewFlagSet("blisp info", flag.ExitOnError)
	fs.BoolVar(&cfg.json, "json", false, "output in json mode")
	fs.StringVar(&cfg.loader, "loader", "", "eflash loader to run first, needed to read flash and eFuse")
	rootConfig.registerFlags(fs)

	return addLongHelp(&ffcli.Command{
		Name:       "info",
		ShortUsage: "info [-loader <file>]",
		ShortHelp:  "Returns information about the chip and its flash.",
		FlagSet:    fs,
		Options:    options(),
		Exec:       cfg.Exec,
	})
}

type deviceInfo struct {
	Chip           string `json:"chip"`
	BootROMVersion uint32 `json:"boot_rom_version"`
	OTP            []byte `json:"otp"`
	JedecID        []byte `json:"jedec_id,omitempty"`
	MAC            []byte `json:"mac,omitempty"`
}

// getDeviceInfo reads the boot ROM identification. Flash and eFuse are only
// reachable once the eflash loader runs, so they are skipped without one.
func getDeviceInfo(ctx context.Context, f *blisp.Flasher, loader []byte) (*deviceInfo, error) {
	d := f.Dev()
	if loader == nil {
		info, err := d.GetBootInfo(ctx)
		if err != nil {
			return nil, err
		}
		return &deviceInfo{BootROMVersion: info.Version, OTP: info.OTP}, nil
	}

	// The loader step reads the boot info itself.
	err := f.FlashSecondaryLoader(ctx, bytes.NewReader(loader))
	info, ok := f.BootInfo()
	if !ok {
		return nil, err
	}
	di := &deviceInfo{BootROMVersion: info.Version, OTP: info.OTP}
	if err != nil {
		return di, err
	}
	if di.JedecID, err = d.ReadJedecID(ctx); err != nil {
		return di, err
	}
	if di.MAC, err = d.EfuseReadMacAddr(ctx); err != nil {
		return di, err
	}
	return di, nil
}
