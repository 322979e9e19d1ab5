package bootheader

import (
	"encoding/json"
)

// BootCfg holds the packed boot flags.
type BootCfg struct {
	// Bits contains, from the least significant bit:
	// * sign                2
	// * encrypt type        2
	// * key select          2
	// * reserved            2
	// * no segment          1
	// * cache select        1
	// * not load to bootrom 1
	// * aes region lock     1
	// * cache way disable   4
	// * crc ignore          1
	// * hash ignore         1
	// * halt cpu1           1
	// * reserved            13
	Bits uint32
}

// Bit positions and widths of the BootCfg fields.
const (
	bootCfgSignPos             = 0
	bootCfgEncryptTypePos      = 2
	bootCfgKeySelPos           = 4
	bootCfgNoSegmentPos        = 8
	bootCfgCacheSelectPos      = 9
	bootCfgNotLoadToBootromPos = 10
	bootCfgAesRegionLockPos    = 11
	bootCfgCacheWayDisablePos  = 12
	bootCfgCRCIgnorePos        = 16
	bootCfgHashIgnorePos       = 17
	bootCfgHaltCPU1Pos         = 18
)

func (c BootCfg) get(pos, width uint) uint32 {
	return (c.Bits >> pos) & (1<<width - 1)
}

func (c *BootCfg) set(pos, width uint, v uint32) {
	mask := uint32(1<<width-1) << pos
	c.Bits = c.Bits&^mask | (v<<pos)&mask
}

func boolBit(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

func (c BootCfg) Sign() uint8            { return uint8(c.get(bootCfgSignPos, 2)) }
func (c BootCfg) EncryptType() uint8     { return uint8(c.get(bootCfgEncryptTypePos, 2)) }
func (c BootCfg) KeySel() uint8          { return uint8(c.get(bootCfgKeySelPos, 2)) }
func (c BootCfg) NoSegment() bool        { return c.get(bootCfgNoSegmentPos, 1) != 0 }
func (c BootCfg) CacheSelect() bool      { return c.get(bootCfgCacheSelectPos, 1) != 0 }
func (c BootCfg) NotLoadToBootrom() bool { return c.get(bootCfgNotLoadToBootromPos, 1) != 0 }
func (c BootCfg) AesRegionLock() bool    { return c.get(bootCfgAesRegionLockPos, 1) != 0 }
func (c BootCfg) CacheWayDisable() uint8 { return uint8(c.get(bootCfgCacheWayDisablePos, 4)) }
func (c BootCfg) CRCIgnore() bool        { return c.get(bootCfgCRCIgnorePos, 1) != 0 }
func (c BootCfg) HashIgnore() bool       { return c.get(bootCfgHashIgnorePos, 1) != 0 }
func (c BootCfg) HaltCPU1() bool         { return c.get(bootCfgHaltCPU1Pos, 1) != 0 }

// Values wider than the field are truncated.
func (c *BootCfg) SetSign(v uint8)            { c.set(bootCfgSignPos, 2, uint32(v)) }
func (c *BootCfg) SetEncryptType(v uint8)     { c.set(bootCfgEncryptTypePos, 2, uint32(v)) }
func (c *BootCfg) SetKeySel(v uint8)          { c.set(bootCfgKeySelPos, 2, uint32(v)) }
func (c *BootCfg) SetNoSegment(v bool)        { c.set(bootCfgNoSegmentPos, 1, boolBit(v)) }
func (c *BootCfg) SetCacheSelect(v bool)      { c.set(bootCfgCacheSelectPos, 1, boolBit(v)) }
func (c *BootCfg) SetNotLoadToBootrom(v bool) { c.set(bootCfgNotLoadToBootromPos, 1, boolBit(v)) }
func (c *BootCfg) SetAesRegionLock(v bool)    { c.set(bootCfgAesRegionLockPos, 1, boolBit(v)) }
func (c *BootCfg) SetCacheWayDisable(v uint8) { c.set(bootCfgCacheWayDisablePos, 4, uint32(v)) }
func (c *BootCfg) SetCRCIgnore(v bool)        { c.set(bootCfgCRCIgnorePos, 1, boolBit(v)) }
func (c *BootCfg) SetHashIgnore(v bool)       { c.set(bootCfgHashIgnorePos, 1, boolBit(v)) }
func (c *BootCfg) SetHaltCPU1(v bool)         { c.set(bootCfgHaltCPU1Pos, 1, boolBit(v)) }

type bootCfgBits struct {
	Bits             uint32 `json:"bits" yaml:"bits"`
	Sign             uint8  `json:"sign" yaml:"sign"`
	EncryptType      uint8  `json:"encrypt_type" yaml:"encrypt_type"`
	KeySel           uint8  `json:"key_sel" yaml:"key_sel"`
	NoSegment        bool   `json:"no_segment" yaml:"no_segment"`
	CacheSelect      bool   `json:"cache_select" yaml:"cache_select"`
	NotLoadToBootrom bool   `json:"not_load_to_bootrom" yaml:"not_load_to_bootrom"`
	AesRegionLock    bool   `json:"aes_region_lock" yaml:"aes_region_lock"`
	CacheWayDisable  uint8  `json:"cache_way_disable" yaml:"cache_way_disable"`
	CRCIgnore        bool   `json:"crc_ignore" yaml:"crc_ignore"`
	HashIgnore       bool   `json:"hash_ignore" yaml:"hash_ignore"`
	HaltCPU1         bool   `json:"halt_cpu1" yaml:"halt_cpu1"`
}

func (c BootCfg) bits() bootCfgBits {
	return bootCfgBits{
		Bits:             c.Bits,
		Sign:             c.Sign(),
		EncryptType:      c.EncryptType(),
		KeySel:           c.KeySel(),
		NoSegment:        c.NoSegment(),
		CacheSelect:      c.CacheSelect(),
		NotLoadToBootrom: c.NotLoadToBootrom(),
		AesRegionLock:    c.AesRegionLock(),
		CacheWayDisable:  c.CacheWayDisable(),
		CRCIgnore:        c.CRCIgnore(),
		HashIgnore:       c.HashIgnore(),
		HaltCPU1:         c.HaltCPU1(),
	}
}

func (c BootCfg) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.bits())
}

func (c BootCfg) MarshalYAML() (interface{}, error) {
	return c.bits(), nil
}
