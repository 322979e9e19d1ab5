package bootheader

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// MissingFieldError is returned when a required configuration key is absent.
type MissingFieldError struct {
	Key string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("bootheader: missing field %q", e.Key)
}

// UnknownFieldError is returned for configuration keys that do not map to
// any header field.
type UnknownFieldError struct {
	Key string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("bootheader: unknown field %q", e.Key)
}

// InvalidValueError is returned when a value is not an integer or does not
// fit its field.
type InvalidValueError struct {
	Key   string
	Value string
	Err   error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("bootheader: invalid value %q for %s: %v", e.Value, e.Key, e.Err)
}

func (e *InvalidValueError) Unwrap() error {
	return e.Err
}

var errRange = errors.New("value out of range")

// field maps a configuration key to the header field it sets.
type field struct {
	key  string
	bits uint
	set  func(h *BootHeader, v uint32)
}

func u8(key string, p func(h *BootHeader) *uint8) field {
	return field{key, 8, func(h *BootHeader, v uint32) { *p(h) = uint8(v) }}
}

func u16(key string, p func(h *BootHeader) *uint16) field {
	return field{key, 16, func(h *BootHeader, v uint32) { *p(h) = uint16(v) }}
}

func u32(key string, p func(h *BootHeader) *uint32) field {
	return field{key, 32, func(h *BootHeader, v uint32) { *p(h) = v }}
}

func spi(key string, p func(c *SpiFlashCfg) *uint8) field {
	return u8(key, func(h *BootHeader) *uint8 { return p(&h.FlashCfg.Cfg) })
}

func spi16(key string, p func(c *SpiFlashCfg) *uint16) field {
	return u16(key, func(h *BootHeader) *uint16 { return p(&h.FlashCfg.Cfg) })
}

func clk(key string, p func(c *SysClkCfg) *uint8) field {
	return u8(key, func(h *BootHeader) *uint8 { return p(&h.ClkCfg.Cfg) })
}

func bit(key string, pos, width uint) field {
	return field{key, width, func(h *BootHeader, v uint32) { h.BootCfg.set(pos, width, v) }}
}

func hash(i int) field {
	return u32(fmt.Sprintf("hash_%d", i), func(h *BootHeader) *uint32 { return &h.Hash[i] })
}

// fields lists every configurable header field in header order.
var fields = []field{
	u32("magic_code", func(h *BootHeader) *uint32 { return &h.Magic }),
	u32("revision", func(h *BootHeader) *uint32 { return &h.Revision }),

	u32("flashcfg_magic_code", func(h *BootHeader) *uint32 { return &h.FlashCfg.Magic }),
	spi("io_mode", func(c *SpiFlashCfg) *uint8 { return &c.IOMode }),
	spi("cont_read_support", func(c *SpiFlashCfg) *uint8 { return &c.ContinuousReadSupport }),
	spi("sfctrl_clk_delay", func(c *SpiFlashCfg) *uint8 { return &c.ClockDelay }),
	spi("sfctrl_clk_invert", func(c *SpiFlashCfg) *uint8 { return &c.ClockInvert }),
	spi("reset_en_cmd", func(c *SpiFlashCfg) *uint8 { return &c.ResetEnableCmd }),
	spi("reset_cmd", func(c *SpiFlashCfg) *uint8 { return &c.ResetCmd }),
	spi("exit_contread_cmd", func(c *SpiFlashCfg) *uint8 { return &c.ExitContinuousReadCmd }),
	spi("exit_contread_cmd_size", func(c *SpiFlashCfg) *uint8 { return &c.ExitContinuousReadCmdSize }),
	spi("jedecid_cmd", func(c *SpiFlashCfg) *uint8 { return &c.JedecIDCmd }),
	spi("jedecid_cmd_dmy_clk", func(c *SpiFlashCfg) *uint8 { return &c.JedecIDCmdDmyClk }),
	spi("qpi_jedecid_cmd", func(c *SpiFlashCfg) *uint8 { return &c.QpiJedecIDCmd }),
	spi("qpi_jedecid_dmy_clk", func(c *SpiFlashCfg) *uint8 { return &c.QpiJedecIDCmdDmyClk }),
	spi("sector_size", func(c *SpiFlashCfg) *uint8 { return &c.SectorSize }),
	spi("mfg_id", func(c *SpiFlashCfg) *uint8 { return &c.ManufacturerID }),
	spi16("page_size", func(c *SpiFlashCfg) *uint16 { return &c.PageSize }),
	spi("chip_erase_cmd", func(c *SpiFlashCfg) *uint8 { return &c.ChipEraseCmd }),
	spi("sector_erase_cmd", func(c *SpiFlashCfg) *uint8 { return &c.SectorEraseCmd }),
	spi("blk32k_erase_cmd", func(c *SpiFlashCfg) *uint8 { return &c.Block32KEraseCmd }),
	spi("blk64k_erase_cmd", func(c *SpiFlashCfg) *uint8 { return &c.Block64KEraseCmd }),
	spi("write_enable_cmd", func(c *SpiFlashCfg) *uint8 { return &c.WriteEnableCmd }),
	spi("page_prog_cmd", func(c *SpiFlashCfg) *uint8 { return &c.PageProgramCmd }),
	spi("qpage_prog_cmd", func(c *SpiFlashCfg) *uint8 { return &c.QioPageProgramCmd }),
	spi("qual_page_prog_addr_mode", func(c *SpiFlashCfg) *uint8 { return &c.QioPageProgramAddrMode }),
	spi("fast_read_cmd", func(c *SpiFlashCfg) *uint8 { return &c.FastReadCmd }),
	spi("fast_read_dmy_clk", func(c *SpiFlashCfg) *uint8 { return &c.FastReadCmdDmyClk }),
	spi("qpi_fast_read_cmd", func(c *SpiFlashCfg) *uint8 { return &c.QpiFastReadCmd }),
	spi("qpi_fast_read_dmy_clk", func(c *SpiFlashCfg) *uint8 { return &c.QpiFastReadCmdDmyClk }),
	spi("fast_read_do_cmd", func(c *SpiFlashCfg) *uint8 { return &c.FastReadDoCmd }),
	spi("fast_read_do_dmy_clk", func(c *SpiFlashCfg) *uint8 { return &c.FastReadDoCmdDmyClk }),
	spi("fast_read_dio_cmd", func(c *SpiFlashCfg) *uint8 { return &c.FastReadDioCmd }),
	spi("fast_read_dio_dmy_clk", func(c *SpiFlashCfg) *uint8 { return &c.FastReadDioCmdDmyClk }),
	spi("fast_read_qo_cmd", func(c *SpiFlashCfg) *uint8 { return &c.FastReadQoCmd }),
	spi("fast_read_qo_dmy_clk", func(c *SpiFlashCfg) *uint8 { return &c.FastReadQoCmdDmyClk }),
	spi("fast_read_qio_cmd", func(c *SpiFlashCfg) *uint8 { return &c.FastReadQioCmd }),
	spi("fast_read_qio_dmy_clk", func(c *SpiFlashCfg) *uint8 { return &c.FastReadQioCmdDmyClk }),
	spi("qpi_fast_read_qio_cmd", func(c *SpiFlashCfg) *uint8 { return &c.QpiFastReadQioCmd }),
	spi("qpi_fast_read_qio_dmy_clk", func(c *SpiFlashCfg) *uint8 { return &c.QpiFastReadQioCmdDmyClk }),
	spi("qpi_page_prog_cmd", func(c *SpiFlashCfg) *uint8 { return &c.QpiPageProgramCmd }),
	spi("write_vreg_enable_cmd", func(c *SpiFlashCfg) *uint8 { return &c.VsrWriteEnableCmd }),
	spi("wel_reg_index", func(c *SpiFlashCfg) *uint8 { return &c.WriteEnableRegIdx }),
	spi("qe_reg_index", func(c *SpiFlashCfg) *uint8 { return &c.QuadEnableRegIdx }),
	spi("busy_reg_index", func(c *SpiFlashCfg) *uint8 { return &c.BusyRegIdx }),
	spi("wel_bit_pos", func(c *SpiFlashCfg) *uint8 { return &c.WriteEnableBitPos }),
	spi("qe_bit_pos", func(c *SpiFlashCfg) *uint8 { return &c.QuadEnableBitPos }),
	spi("busy_bit_pos", func(c *SpiFlashCfg) *uint8 { return &c.BusyBitPos }),
	spi("wel_reg_write_len", func(c *SpiFlashCfg) *uint8 { return &c.WriteEnableRegLenWr }),
	spi("wel_reg_read_len", func(c *SpiFlashCfg) *uint8 { return &c.WriteEnableRegLenRd }),
	spi("qe_reg_write_len", func(c *SpiFlashCfg) *uint8 { return &c.QuadEnableRegLenWr }),
	spi("qe_reg_read_len", func(c *SpiFlashCfg) *uint8 { return &c.QuadEnableRegLenRd }),
	spi("release_power_down", func(c *SpiFlashCfg) *uint8 { return &c.ReleasePowerDownCmd }),
	spi("busy_reg_read_len", func(c *SpiFlashCfg) *uint8 { return &c.BusyRegLenRd }),
	spi("reg_read_cmd0", func(c *SpiFlashCfg) *uint8 { return &c.ReadRegCmd[0] }),
	spi("reg_read_cmd1", func(c *SpiFlashCfg) *uint8 { return &c.ReadRegCmd[1] }),
	spi("reg_write_cmd0", func(c *SpiFlashCfg) *uint8 { return &c.WriteRegCmd[0] }),
	spi("reg_write_cmd1", func(c *SpiFlashCfg) *uint8 { return &c.WriteRegCmd[1] }),
	spi("enter_qpi_cmd", func(c *SpiFlashCfg) *uint8 { return &c.EnterQpiModeCmd }),
	spi("exit_qpi_cmd", func(c *SpiFlashCfg) *uint8 { return &c.ExitQpiModeCmd }),
	spi("cont_read_code", func(c *SpiFlashCfg) *uint8 { return &c.ContinuousReadModeCfg }),
	spi("cont_read_exit_code", func(c *SpiFlashCfg) *uint8 { return &c.ContinuousReadModeExitCfg }),
	spi("burst_wrap_cmd", func(c *SpiFlashCfg) *uint8 { return &c.BurstWrapEnableCmd }),
	spi("burst_wrap_dmy_clk", func(c *SpiFlashCfg) *uint8 { return &c.BurstWrapEnableCmdDmyClk }),
	spi("burst_wrap_data_mode", func(c *SpiFlashCfg) *uint8 { return &c.BurstWrapEnableDataMode }),
	spi("burst_wrap_code", func(c *SpiFlashCfg) *uint8 { return &c.BurstWrapEnableData }),
	spi("de_burst_wrap_cmd", func(c *SpiFlashCfg) *uint8 { return &c.DisableBurstWrapCmd }),
	spi("de_burst_wrap_cmd_dmy_clk", func(c *SpiFlashCfg) *uint8 { return &c.DisableBurstWrapCmdDmyClk }),
	spi("de_burst_wrap_code_mode", func(c *SpiFlashCfg) *uint8 { return &c.DisableBurstWrapDataMode }),
	spi("de_burst_wrap_code", func(c *SpiFlashCfg) *uint8 { return &c.DisableBurstWrapData }),
	spi16("sector_erase_time", func(c *SpiFlashCfg) *uint16 { return &c.SectorEraseTime }),
	spi16("blk32k_erase_time", func(c *SpiFlashCfg) *uint16 { return &c.Block32KEraseTime }),
	spi16("blk64k_erase_time", func(c *SpiFlashCfg) *uint16 { return &c.Block64KEraseTime }),
	spi16("page_prog_time", func(c *SpiFlashCfg) *uint16 { return &c.PageProgramTime }),
	spi16("chip_erase_time", func(c *SpiFlashCfg) *uint16 { return &c.ChipEraseTime }),
	spi("power_down_delay", func(c *SpiFlashCfg) *uint8 { return &c.ReleasePowerDownDelay }),
	spi("qe_data", func(c *SpiFlashCfg) *uint8 { return &c.QuadEnableData }),

	u32("clkcfg_magic_code", func(h *BootHeader) *uint32 { return &h.ClkCfg.Magic }),
	clk("xtal_type", func(c *SysClkCfg) *uint8 { return &c.XtalType }),
	clk("pll_clk", func(c *SysClkCfg) *uint8 { return &c.PllClk }),
	clk("hclk_div", func(c *SysClkCfg) *uint8 { return &c.HclkDiv }),
	clk("bclk_div", func(c *SysClkCfg) *uint8 { return &c.BclkDiv }),
	clk("flash_clk_type", func(c *SysClkCfg) *uint8 { return &c.FlashClkType }),
	clk("flash_clk_div", func(c *SysClkCfg) *uint8 { return &c.FlashClkDiv }),

	bit("sign", bootCfgSignPos, 2),
	bit("encrypt_type", bootCfgEncryptTypePos, 2),
	bit("key_sel", bootCfgKeySelPos, 2),
	bit("no_segment", bootCfgNoSegmentPos, 1),
	bit("cache_enable", bootCfgCacheSelectPos, 1),
	bit("notload_in_bootrom", bootCfgNotLoadToBootromPos, 1),
	bit("aes_region_lock", bootCfgAesRegionLockPos, 1),
	bit("cache_way_disable", bootCfgCacheWayDisablePos, 4),
	bit("crc_ignore", bootCfgCRCIgnorePos, 1),
	bit("hash_ignore", bootCfgHashIgnorePos, 1),
	bit("halt_ap", bootCfgHaltCPU1Pos, 1),

	u32("bootentry", func(h *BootHeader) *uint32 { return &h.BootEntry }),
	u32("img_start", func(h *BootHeader) *uint32 { return &h.ImgStart }),
	hash(0), hash(1), hash(2), hash(3), hash(4), hash(5), hash(6), hash(7),
	u32("boot2_pt_table_0", func(h *BootHeader) *uint32 { return &h.Boot2PtTable0 }),
	u32("boot2_pt_table_1", func(h *BootHeader) *uint32 { return &h.Boot2PtTable1 }),
}

// optionalKeys may be left out. halt_ap is missing from most configuration
// files and defaults to zero.
var optionalKeys = map[string]bool{
	"halt_ap": true,
}

// ignoredKeys are accepted but never used. The image length is supplied at
// build time and the checksum is always computed.
var ignoredKeys = map[string]bool{
	"img_len": true,
	"crc32":   true,
}

var fieldsByKey = func() map[string]field {
	m := make(map[string]field, len(fields))
	for _, f := range fields {
		m[f.key] = f
	}
	return m
}()

// Keys returns the sorted configuration keys of all header fields.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.key)
	}
	sort.Strings(keys)
	return keys
}

// parseValue parses v with 0x, 0o, 0b and 0 prefix detection.
func parseValue(key, v string, bits uint) (uint32, error) {
	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return 0, &InvalidValueError{Key: key, Value: v, Err: err}
	}
	if n >= 1<<bits {
		return 0, &InvalidValueError{Key: key, Value: v, Err: errRange}
	}
	return uint32(n), nil
}

// apply sets every field of h from cfg. All problems are reported together.
func apply(h *BootHeader, cfg map[string]string) error {
	var errs []error
	for _, f := range fields {
		v, ok := cfg[f.key]
		if !ok {
			if !optionalKeys[f.key] {
				errs = append(errs, &MissingFieldError{Key: f.key})
			}
			continue
		}
		n, err := parseValue(f.key, v, f.bits)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		f.set(h, n)
	}

	unknown := make([]string, 0)
	for k := range cfg {
		if _, ok := fieldsByKey[k]; !ok && !ignoredKeys[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		errs = append(errs, &UnknownFieldError{Key: k})
	}
	return errors.Join(errs...)
}
