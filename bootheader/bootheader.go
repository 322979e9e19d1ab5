// Package bootheader builds the boot header the BL602/BL702 boot ROM reads
// in front of every image.
//
// The header is a fixed 176 byte little endian record containing the flash
// controller and clock configuration, boot flags and three CRC32 checksums.
package bootheader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Size is the encoded size of a boot header.
const Size = 176

// Encoded sizes of the nested configuration blocks.
const (
	SpiFlashCfgSize = 84
	SysClkCfgSize   = 8
	FlashCfgSize    = 4 + SpiFlashCfgSize + 4
	ClkCfgSize      = 4 + SysClkCfgSize + 4
)

// crcOffset is the offset of the header checksum, which covers everything
// in front of it.
const crcOffset = Size - 4

var (
	ErrSize     = errors.New("bootheader: invalid size")
	ErrCRC      = errors.New("bootheader: crc mismatch")
	ErrFlashCRC = errors.New("bootheader: flash config crc mismatch")
	ErrClkCRC   = errors.New("bootheader: clock config crc mismatch")
)

// SpiFlashCfg is the serial flash controller configuration.
type SpiFlashCfg struct {
	IOMode                    uint8  `json:"io_mode" yaml:"io_mode"`
	ContinuousReadSupport     uint8  `json:"continuous_read_support" yaml:"continuous_read_support"`
	ClockDelay                uint8  `json:"clock_delay" yaml:"clock_delay"`
	ClockInvert               uint8  `json:"clock_invert" yaml:"clock_invert"`
	ResetEnableCmd            uint8  `json:"reset_enable_cmd" yaml:"reset_enable_cmd"`
	ResetCmd                  uint8  `json:"reset_cmd" yaml:"reset_cmd"`
	ExitContinuousReadCmd     uint8  `json:"exit_continuous_read_cmd" yaml:"exit_continuous_read_cmd"`
	ExitContinuousReadCmdSize uint8  `json:"exit_continuous_read_cmd_size" yaml:"exit_continuous_read_cmd_size"`
	JedecIDCmd                uint8  `json:"jedec_id_cmd" yaml:"jedec_id_cmd"`
	JedecIDCmdDmyClk          uint8  `json:"jedec_id_cmd_dmy_clk" yaml:"jedec_id_cmd_dmy_clk"`
	QpiJedecIDCmd             uint8  `json:"qpi_jedec_id_cmd" yaml:"qpi_jedec_id_cmd"`
	QpiJedecIDCmdDmyClk       uint8  `json:"qpi_jedec_id_cmd_dmy_clk" yaml:"qpi_jedec_id_cmd_dmy_clk"`
	SectorSize                uint8  `json:"sector_size" yaml:"sector_size"`
	ManufacturerID            uint8  `json:"manufacturer_id" yaml:"manufacturer_id"`
	PageSize                  uint16 `json:"page_size" yaml:"page_size"`

	ChipEraseCmd           uint8 `json:"chip_erase_cmd" yaml:"chip_erase_cmd"`
	SectorEraseCmd         uint8 `json:"sector_erase_cmd" yaml:"sector_erase_cmd"`
	Block32KEraseCmd       uint8 `json:"block32k_erase_cmd" yaml:"block32k_erase_cmd"`
	Block64KEraseCmd       uint8 `json:"block64k_erase_cmd" yaml:"block64k_erase_cmd"`
	WriteEnableCmd         uint8 `json:"write_enable_cmd" yaml:"write_enable_cmd"`
	PageProgramCmd         uint8 `json:"page_program_cmd" yaml:"page_program_cmd"`
	QioPageProgramCmd      uint8 `json:"qio_page_program_cmd" yaml:"qio_page_program_cmd"`
	QioPageProgramAddrMode uint8 `json:"qio_page_program_addr_mode" yaml:"qio_page_program_addr_mode"`

	FastReadCmd             uint8 `json:"fast_read_cmd" yaml:"fast_read_cmd"`
	FastReadCmdDmyClk       uint8 `json:"fast_read_cmd_dmy_clk" yaml:"fast_read_cmd_dmy_clk"`
	QpiFastReadCmd          uint8 `json:"qpi_fast_read_cmd" yaml:"qpi_fast_read_cmd"`
	QpiFastReadCmdDmyClk    uint8 `json:"qpi_fast_read_cmd_dmy_clk" yaml:"qpi_fast_read_cmd_dmy_clk"`
	FastReadDoCmd           uint8 `json:"fast_read_do_cmd" yaml:"fast_read_do_cmd"`
	FastReadDoCmdDmyClk     uint8 `json:"fast_read_do_cmd_dmy_clk" yaml:"fast_read_do_cmd_dmy_clk"`
	FastReadDioCmd          uint8 `json:"fast_read_dio_cmd" yaml:"fast_read_dio_cmd"`
	FastReadDioCmdDmyClk    uint8 `json:"fast_read_dio_cmd_dmy_clk" yaml:"fast_read_dio_cmd_dmy_clk"`
	FastReadQoCmd           uint8 `json:"fast_read_qo_cmd" yaml:"fast_read_qo_cmd"`
	FastReadQoCmdDmyClk     uint8 `json:"fast_read_qo_cmd_dmy_clk" yaml:"fast_read_qo_cmd_dmy_clk"`
	FastReadQioCmd          uint8 `json:"fast_read_qio_cmd" yaml:"fast_read_qio_cmd"`
	FastReadQioCmdDmyClk    uint8 `json:"fast_read_qio_cmd_dmy_clk" yaml:"fast_read_qio_cmd_dmy_clk"`
	QpiFastReadQioCmd       uint8 `json:"qpi_fast_read_qio_cmd" yaml:"qpi_fast_read_qio_cmd"`
	QpiFastReadQioCmdDmyClk uint8 `json:"qpi_fast_read_qio_cmd_dmy_clk" yaml:"qpi_fast_read_qio_cmd_dmy_clk"`
	QpiPageProgramCmd       uint8 `json:"qpi_page_program_cmd" yaml:"qpi_page_program_cmd"`
	VsrWriteEnableCmd       uint8 `json:"vsr_write_enable_cmd" yaml:"vsr_write_enable_cmd"`

	WriteEnableRegIdx   uint8 `json:"write_enable_reg_idx" yaml:"write_enable_reg_idx"`
	QuadEnableRegIdx    uint8 `json:"quad_enable_reg_idx" yaml:"quad_enable_reg_idx"`
	BusyRegIdx          uint8 `json:"busy_reg_idx" yaml:"busy_reg_idx"`
	WriteEnableBitPos   uint8 `json:"write_enable_bit_pos" yaml:"write_enable_bit_pos"`
	QuadEnableBitPos    uint8 `json:"quad_enable_bit_pos" yaml:"quad_enable_bit_pos"`
	BusyBitPos          uint8 `json:"busy_bit_pos" yaml:"busy_bit_pos"`
	WriteEnableRegLenWr uint8 `json:"write_enable_reg_len_wr" yaml:"write_enable_reg_len_wr"`
	WriteEnableRegLenRd uint8 `json:"write_enable_reg_len_rd" yaml:"write_enable_reg_len_rd"`
	QuadEnableRegLenWr  uint8 `json:"quad_enable_reg_len_wr" yaml:"quad_enable_reg_len_wr"`
	QuadEnableRegLenRd  uint8 `json:"quad_enable_reg_len_rd" yaml:"quad_enable_reg_len_rd"`
	ReleasePowerDownCmd uint8 `json:"release_power_down_cmd" yaml:"release_power_down_cmd"`
	BusyRegLenRd        uint8 `json:"busy_reg_len_rd" yaml:"busy_reg_len_rd"`

	// ReadRegCmd and WriteRegCmd hold the status register commands, only
	// the first two of each are configurable.
	ReadRegCmd  [4]uint8 `json:"read_reg_cmd" yaml:"read_reg_cmd,flow"`
	WriteRegCmd [4]uint8 `json:"write_reg_cmd" yaml:"write_reg_cmd,flow"`

	EnterQpiModeCmd           uint8 `json:"enter_qpi_mode_cmd" yaml:"enter_qpi_mode_cmd"`
	ExitQpiModeCmd            uint8 `json:"exit_qpi_mode_cmd" yaml:"exit_qpi_mode_cmd"`
	ContinuousReadModeCfg     uint8 `json:"continuous_read_mode_cfg" yaml:"continuous_read_mode_cfg"`
	ContinuousReadModeExitCfg uint8 `json:"continuous_read_mode_exit_cfg" yaml:"continuous_read_mode_exit_cfg"`

	BurstWrapEnableCmd        uint8 `json:"burst_wrap_enable_cmd" yaml:"burst_wrap_enable_cmd"`
	BurstWrapEnableCmdDmyClk  uint8 `json:"burst_wrap_enable_cmd_dmy_clk" yaml:"burst_wrap_enable_cmd_dmy_clk"`
	BurstWrapEnableDataMode   uint8 `json:"burst_wrap_enable_data_mode" yaml:"burst_wrap_enable_data_mode"`
	BurstWrapEnableData       uint8 `json:"burst_wrap_enable_data" yaml:"burst_wrap_enable_data"`
	DisableBurstWrapCmd       uint8 `json:"disable_burst_wrap_cmd" yaml:"disable_burst_wrap_cmd"`
	DisableBurstWrapCmdDmyClk uint8 `json:"disable_burst_wrap_cmd_dmy_clk" yaml:"disable_burst_wrap_cmd_dmy_clk"`
	DisableBurstWrapDataMode  uint8 `json:"disable_burst_wrap_data_mode" yaml:"disable_burst_wrap_data_mode"`
	DisableBurstWrapData      uint8 `json:"disable_burst_wrap_data" yaml:"disable_burst_wrap_data"`

	// Erase and program times in milliseconds.
	SectorEraseTime   uint16 `json:"sector_erase_time" yaml:"sector_erase_time"`
	Block32KEraseTime uint16 `json:"block32k_erase_time" yaml:"block32k_erase_time"`
	Block64KEraseTime uint16 `json:"block64k_erase_time" yaml:"block64k_erase_time"`
	PageProgramTime   uint16 `json:"page_program_time" yaml:"page_program_time"`
	ChipEraseTime     uint16 `json:"chip_erase_time" yaml:"chip_erase_time"`

	ReleasePowerDownDelay uint8 `json:"release_power_down_delay" yaml:"release_power_down_delay"`
	QuadEnableData        uint8 `json:"quad_enable_data" yaml:"quad_enable_data"`
}

// FlashCfg wraps SpiFlashCfg with its magic and checksum.
type FlashCfg struct {
	Magic uint32      `json:"magic" yaml:"magic"`
	Cfg   SpiFlashCfg `json:"cfg" yaml:"cfg"`
	CRC32 uint32      `json:"crc32" yaml:"crc32"`
}

// SysClkCfg is the clock tree configuration.
type SysClkCfg struct {
	XtalType     uint8    `json:"xtal_type" yaml:"xtal_type"`
	PllClk       uint8    `json:"pll_clk" yaml:"pll_clk"`
	HclkDiv      uint8    `json:"hclk_div" yaml:"hclk_div"`
	BclkDiv      uint8    `json:"bclk_div" yaml:"bclk_div"`
	FlashClkType uint8    `json:"flash_clk_type" yaml:"flash_clk_type"`
	FlashClkDiv  uint8    `json:"flash_clk_div" yaml:"flash_clk_div"`
	Reserved     [2]uint8 `json:"reserved" yaml:"reserved,flow"`
}

// ClkCfg wraps SysClkCfg with its magic and checksum.
type ClkCfg struct {
	Magic uint32    `json:"magic" yaml:"magic"`
	Cfg   SysClkCfg `json:"cfg" yaml:"cfg"`
	CRC32 uint32    `json:"crc32" yaml:"crc32"`
}

// BootHeader is the boot header record.
type BootHeader struct {
	Magic    uint32   `json:"magic" yaml:"magic"`
	Revision uint32   `json:"revision" yaml:"revision"`
	FlashCfg FlashCfg `json:"flash_cfg" yaml:"flash_cfg"`
	ClkCfg   ClkCfg   `json:"clk_cfg" yaml:"clk_cfg"`
	BootCfg  BootCfg  `json:"boot_cfg" yaml:"boot_cfg"`

	// ImgSegmentInfo is the segment count for images loaded to RAM and the
	// image length for images run from flash.
	ImgSegmentInfo uint32 `json:"img_segment_info" yaml:"img_segment_info"`
	BootEntry      uint32 `json:"boot_entry" yaml:"boot_entry"`
	// ImgStart is a RAM address or a flash offset.
	ImgStart uint32 `json:"img_start" yaml:"img_start"`

	Hash          [8]uint32 `json:"hash" yaml:"hash,flow"`
	Boot2PtTable0 uint32    `json:"boot2_pt_table_0" yaml:"boot2_pt_table_0"`
	Boot2PtTable1 uint32    `json:"boot2_pt_table_1" yaml:"boot2_pt_table_1"`
	CRC32         uint32    `json:"crc32" yaml:"crc32"`
}

// SegmentCount is ImgSegmentInfo read as a segment count.
func (h *BootHeader) SegmentCount() uint32 {
	return h.ImgSegmentInfo
}

// ImgLen is ImgSegmentInfo read as an image length.
func (h *BootHeader) ImgLen() uint32 {
	return h.ImgSegmentInfo
}

// SetImgLen stores the image length. Checksums are recomputed when the
// header is encoded.
func (h *BootHeader) SetImgLen(n uint32) {
	h.ImgSegmentInfo = n
}

// SetSegmentCount stores a segment count.
func (h *BootHeader) SetSegmentCount(n uint32) {
	h.ImgSegmentInfo = n
}

// RAMAddr is ImgStart read as a RAM address.
func (h *BootHeader) RAMAddr() uint32 {
	return h.ImgStart
}

// FlashOffset is ImgStart read as a flash offset.
func (h *BootHeader) FlashOffset() uint32 {
	return h.ImgStart
}

func marshal(v any, size int) []byte {
	var buf bytes.Buffer
	buf.Grow(size)
	// writes to a bytes.Buffer of fixed size data never fail
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// UpdateCRC recomputes all three checksums.
func (h *BootHeader) UpdateCRC() {
	h.FlashCfg.CRC32 = crc32.ChecksumIEEE(marshal(&h.FlashCfg.Cfg, SpiFlashCfgSize))
	h.ClkCfg.CRC32 = crc32.ChecksumIEEE(marshal(&h.ClkCfg.Cfg, SysClkCfgSize))
	b := marshal(h, Size)
	h.CRC32 = crc32.ChecksumIEEE(b[:crcOffset])
}

// Bytes returns the encoded header with freshly computed checksums.
func (h *BootHeader) Bytes() []byte {
	h.UpdateCRC()
	return marshal(h, Size)
}

// Marshal encodes h as is, without touching the checksums.
func Marshal(h *BootHeader) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(Size)
	err := binary.Write(&buf, binary.LittleEndian, h)
	return buf.Bytes(), err
}

// Unmarshal decodes a 176 byte header. Checksums are not verified.
func Unmarshal(b []byte, h *BootHeader) error {
	if len(b) != Size {
		return ErrSize
	}
	return binary.Read(bytes.NewReader(b), binary.LittleEndian, h)
}

// Verify checks all three checksums of an encoded header.
func Verify(b []byte) error {
	var h BootHeader
	if err := Unmarshal(b, &h); err != nil {
		return err
	}
	const flashStart = 8 + 4
	const clkStart = 8 + FlashCfgSize + 4
	if crc32.ChecksumIEEE(b[flashStart:flashStart+SpiFlashCfgSize]) != h.FlashCfg.CRC32 {
		return ErrFlashCRC
	}
	if crc32.ChecksumIEEE(b[clkStart:clkStart+SysClkCfgSize]) != h.ClkCfg.CRC32 {
		return ErrClkCRC
	}
	if crc32.ChecksumIEEE(b[:crcOffset]) != h.CRC32 {
		return ErrCRC
	}
	return nil
}

// New builds a header from configuration values keyed by the names used in
// Bouffalo's boot header configuration files.
func New(cfg map[string]string) (*BootHeader, error) {
	var h BootHeader
	if err := apply(&h, cfg); err != nil {
		return nil, err
	}
	h.UpdateCRC()
	return &h, nil
}

// Build returns the encoded header for an image of imageLen bytes.
func Build(cfg map[string]string, imageLen uint32) ([]byte, error) {
	h, err := New(cfg)
	if err != nil {
		return nil, err
	}
	h.SetImgLen(imageLen)
	return h.Bytes(), nil
}
