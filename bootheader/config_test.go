package bootheader

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestLoadINI(t *testing.T) {
	const conf = `
[FLASH_CFG]
page_size = 512

[BOOTHEADER_CFG]
magic_code = 0x504e4642
page_size = 256
`
	cfg, err := LoadINI(strings.NewReader(conf))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg) != 2 {
		t.Fatalf("unexpected keys %v", cfg)
	}
	if cfg["page_size"] != "256" || cfg["magic_code"] != "0x504e4642" {
		t.Errorf("unexpected values %v", cfg)
	}
}

func TestLoadINIKeyCase(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "bl602.ini"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		if k, v, ok := strings.Cut(l, "="); ok {
			lines[i] = strings.ToUpper(k) + "=" + v
		}
	}

	cfg, err := LoadINI(strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg["flash_clk_type"]; !ok {
		t.Errorf("keys not lower cased: %v", cfg)
	}
	got, err := Build(cfg, goldenImgLen)
	if err != nil {
		t.Fatal(err)
	}
	want, err := Build(loadTestConfig(t), goldenImgLen)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("header built from upper case keys differs")
	}
}

func TestLoadINIMissingSection(t *testing.T) {
	if _, err := LoadINI(strings.NewReader("[OTHER]\na = 1\n")); err == nil {
		t.Error("expected error")
	}
}

func TestToYAML(t *testing.T) {
	h, err := New(loadTestConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ToYAML(h)
	if err != nil {
		t.Fatal(err)
	}

	var got struct {
		Magic    uint32 `yaml:"magic"`
		FlashCfg struct {
			Cfg struct {
				PageSize uint16 `yaml:"page_size"`
			} `yaml:"cfg"`
		} `yaml:"flash_cfg"`
		BootCfg struct {
			NoSegment bool `yaml:"no_segment"`
		} `yaml:"boot_cfg"`
	}
	if err := yaml.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Magic != 0x504e4642 || got.FlashCfg.Cfg.PageSize != 256 || !got.BootCfg.NoSegment {
		t.Errorf("unexpected yaml:\n%s", b)
	}
}

func TestToJSON(t *testing.T) {
	h, err := New(loadTestConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ToJSON(h)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"page_size": 256`) {
		t.Errorf("unexpected json:\n%s", b)
	}
}
