package bootheader

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"flag"
	"hash/crc32"
	"os"
	"strings"
	"testing"
)

var (
	// flagWriteTestdata is used to write test data based on test state.
	//
	// This only works when you test this specific package (not with path/...).
	flagWriteTestdata = flag.Bool("write-bootheader-testdata", false, "write bootheader testdata")
)

func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(m.Run())
}

const goldenImgLen = 0x1234

func loadTestConfig(t *testing.T) map[string]string {
	t.Helper()
	f, err := os.Open("testdata/bl602.ini")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := LoadINI(f)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestBuildGolden(t *testing.T) {
	cfg := loadTestConfig(t)
	got, err := Build(cfg, goldenImgLen)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != Size {
		t.Fatalf("unexpected size: %d", len(got))
	}

	const golden = "testdata/bl602.bin"
	if *flagWriteTestdata {
		if err := os.WriteFile(golden, got, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	want, err := os.ReadFile(golden)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(want, got) {
		t.Errorf("unexpected header:\n%s\nwant:\n%s", hex.Dump(got), hex.Dump(want))
	}
}

func TestBuildCRC(t *testing.T) {
	b, err := Build(loadTestConfig(t), goldenImgLen)
	if err != nil {
		t.Fatal(err)
	}

	le := binary.LittleEndian
	spi := b[12 : 12+SpiFlashCfgSize]
	if got, want := le.Uint32(b[96:100]), crc32.ChecksumIEEE(spi); got != want {
		t.Errorf("flash cfg crc %#08x, want %#08x", got, want)
	}
	clk := b[104 : 104+SysClkCfgSize]
	if got, want := le.Uint32(b[112:116]), crc32.ChecksumIEEE(clk); got != want {
		t.Errorf("clk cfg crc %#08x, want %#08x", got, want)
	}
	if got, want := le.Uint32(b[172:]), crc32.ChecksumIEEE(b[:172]); got != want {
		t.Errorf("header crc %#08x, want %#08x", got, want)
	}
	if got := le.Uint32(b[120:124]); got != goldenImgLen {
		t.Errorf("img len %#x, want %#x", got, goldenImgLen)
	}
	if err := Verify(b); err != nil {
		t.Error(err)
	}
}

func TestBuildDeterministic(t *testing.T) {
	cfg := loadTestConfig(t)
	a, err := Build(cfg, 100)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(cfg, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("repeated builds differ")
	}
}

func TestSetImgLenUpdatesCRC(t *testing.T) {
	h, err := New(loadTestConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	before := h.Bytes()
	h.SetImgLen(0xabcd)
	after := h.Bytes()
	if bytes.Equal(before[172:], after[172:]) {
		t.Error("crc not recomputed")
	}
	if err := Verify(after); err != nil {
		t.Error(err)
	}
	if h.ImgLen() != 0xabcd || h.SegmentCount() != 0xabcd {
		t.Errorf("unexpected img segment info %#x", h.ImgSegmentInfo)
	}
}

func TestVerify(t *testing.T) {
	good, err := os.ReadFile("testdata/bl602.bin")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		offset int
		want   error
	}{
		{"flash cfg", 20, ErrFlashCRC},
		{"clk cfg", 105, ErrClkCRC},
		{"header", 130, ErrCRC},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte(nil), good...)
			b[tt.offset] ^= 0xff
			if err := Verify(b); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if err := Verify(good[:100]); !errors.Is(err, ErrSize) {
		t.Errorf("got %v, want %v", err, ErrSize)
	}
}

func TestUnmarshal(t *testing.T) {
	b, err := os.ReadFile("testdata/bl602.bin")
	if err != nil {
		t.Fatal(err)
	}
	var h BootHeader
	if err := Unmarshal(b, &h); err != nil {
		t.Fatal(err)
	}

	if h.Magic != 0x504e4642 {
		t.Errorf("magic %#x", h.Magic)
	}
	c := h.FlashCfg.Cfg
	if c.PageSize != 256 || c.ManufacturerID != 0xef || c.ChipEraseTime != 33000 {
		t.Errorf("unexpected flash cfg %+v", c)
	}
	if c.ReadRegCmd != [4]uint8{0x05, 0x35, 0, 0} {
		t.Errorf("unexpected read reg cmds %x", c.ReadRegCmd)
	}
	if h.ClkCfg.Cfg.PllClk != 4 {
		t.Errorf("unexpected clk cfg %+v", h.ClkCfg.Cfg)
	}
	if h.RAMAddr() != 0x2000 || h.FlashOffset() != 0x2000 {
		t.Errorf("img start %#x", h.ImgStart)
	}

	out, err := Marshal(&h)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, b) {
		t.Errorf("re-encoded header differs:\n%s", hex.Dump(out))
	}
}

func TestMissingField(t *testing.T) {
	cfg := loadTestConfig(t)
	delete(cfg, "page_size")
	delete(cfg, "xtal_type")

	_, err := Build(cfg, 0)
	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected missing field error, got %v", err)
	}
	for _, key := range []string{"page_size", "xtal_type"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error does not mention %s: %v", key, err)
		}
	}
}

func TestOptionalAndIgnoredFields(t *testing.T) {
	cfg := loadTestConfig(t)
	delete(cfg, "halt_ap")
	delete(cfg, "img_len")
	delete(cfg, "crc32")
	if _, err := Build(cfg, 0); err != nil {
		t.Fatal(err)
	}
}

func TestUnknownField(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg["reg_read_cmd2"] = "0x15"

	_, err := Build(cfg, 0)
	var unknown *UnknownFieldError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if unknown.Key != "reg_read_cmd2" {
		t.Errorf("unexpected key %q", unknown.Key)
	}
}

func TestInvalidValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"io_mode", "0x100"},
		{"page_size", "65536"},
		{"sign", "4"},
		{"cache_way_disable", "0x10"},
		{"bootentry", "0x100000000"},
		{"mfg_id", "ef"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := loadTestConfig(t)
			cfg[tt.key] = tt.value
			_, err := Build(cfg, 0)
			var invalid *InvalidValueError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected invalid value error, got %v", err)
			}
			if invalid.Key != tt.key {
				t.Errorf("unexpected key %q", invalid.Key)
			}
		})
	}
}

func TestParseValueBases(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"0x1f", 0x1f},
		{"0X1F", 0x1f},
		{"017", 0o17},
		{"0b101", 5},
		{"42", 42},
		{"0", 0},
	}
	for _, tt := range tests {
		got, err := parseValue("k", tt.in, 32)
		if err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != len(fields) {
		t.Fatalf("got %d keys, want %d", len(keys), len(fields))
	}
	seen := make(map[string]bool)
	for i, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %s", k)
		}
		seen[k] = true
		if i > 0 && keys[i-1] > k {
			t.Errorf("keys not sorted at %s", k)
		}
	}

	cfg := loadTestConfig(t)
	for _, k := range keys {
		if _, ok := cfg[k]; !ok {
			t.Errorf("test config lacks %s", k)
		}
	}
}
