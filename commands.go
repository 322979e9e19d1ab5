package blisp

import (
	"encoding/binary"
)

// ISP command ids.
const (
	cmdHandshake         = 0x55
	cmdGetBootInfo       = 0x10
	cmdLoadBootHeader    = 0x11
	cmdLoadSegmentHeader = 0x17
	cmdLoadSegmentData   = 0x18
	cmdCheckImage        = 0x19
	cmdMemoryWrite       = 0x50
	cmdReadJedecID       = 0x36
	cmdFlashErase        = 0x30
	cmdFlashWrite        = 0x31
	cmdFlashWriteCheck   = 0x3a
	cmdXipReadStart      = 0x60
	cmdFlashXipReadSha   = 0x3e
	cmdXipReadFinish     = 0x61
	cmdEfuseReadMacAddr  = 0x42
)

// Payload size contracts.
const (
	BootHeaderSize     = 176
	SegmentHeaderSize  = 16
	SegmentDataMax     = 4096
	FlashWriteDataMax  = 8000
	segmentChunkSize   = 4080
	flashWriteChunkMax = 2048
)

var commandNames = map[uint8]string{
	cmdHandshake:         "handshake",
	cmdGetBootInfo:       "get boot info",
	cmdLoadBootHeader:    "load boot header",
	cmdLoadSegmentHeader: "load segment header",
	cmdLoadSegmentData:   "load segment data",
	cmdCheckImage:        "check image",
	cmdMemoryWrite:       "memory write",
	cmdReadJedecID:       "read jedec id",
	cmdFlashErase:        "flash erase",
	cmdFlashWrite:        "flash write",
	cmdFlashWriteCheck:   "flash write check",
	cmdXipReadStart:      "xip read start",
	cmdFlashXipReadSha:   "flash xip read sha",
	cmdXipReadFinish:     "xip read finish",
	cmdEfuseReadMacAddr:  "efuse read mac address",
}

func commandName(cmd uint8) string {
	if s, ok := commandNames[cmd]; ok {
		return s
	}
	return "unknown command"
}

func newSimpleCommand(cmd uint8) (*packet, error) {
	return newPacket(cmd, nil, false)
}

func newLoadBootHeaderCommand(header []byte) (*packet, error) {
	if len(header) != BootHeaderSize {
		return nil, &PayloadSizeError{
			Command: commandName(cmdLoadBootHeader),
			Size:    len(header),
			Limit:   BootHeaderSize,
			Exact:   true,
		}
	}
	return newPacket(cmdLoadBootHeader, header, false)
}

func newLoadSegmentHeaderCommand(header []byte) (*packet, error) {
	if len(header) != SegmentHeaderSize {
		return nil, &PayloadSizeError{
			Command: commandName(cmdLoadSegmentHeader),
			Size:    len(header),
			Limit:   SegmentHeaderSize,
			Exact:   true,
		}
	}
	return newPacket(cmdLoadSegmentHeader, header, false)
}

func newLoadSegmentDataCommand(data []byte) (*packet, error) {
	if len(data) > SegmentDataMax {
		return nil, &PayloadSizeError{
			Command: commandName(cmdLoadSegmentData),
			Size:    len(data),
			Limit:   SegmentDataMax,
		}
	}
	return newPacket(cmdLoadSegmentData, data, false)
}

// newMemoryWriteCommand frames an opaque payload. The device does not
// acknowledge it.
func newMemoryWriteCommand(payload []byte) (*packet, error) {
	return newPacket(cmdMemoryWrite, payload, false)
}

// newFlashEraseCommand erases the inclusive range [start, end].
func newFlashEraseCommand(start, end uint32) (*packet, error) {
	data := make([]byte, 0, 8)
	data = binary.LittleEndian.AppendUint32(data, start)
	data = binary.LittleEndian.AppendUint32(data, end)
	return newPacket(cmdFlashErase, data, true)
}

func newFlashWriteCommand(addr uint32, payload []byte) (*packet, error) {
	if len(payload) > FlashWriteDataMax {
		return nil, &PayloadSizeError{
			Command: commandName(cmdFlashWrite),
			Size:    len(payload),
			Limit:   FlashWriteDataMax,
		}
	}
	data := make([]byte, 0, 4+len(payload))
	data = binary.LittleEndian.AppendUint32(data, addr)
	data = append(data, payload...)
	return newPacket(cmdFlashWrite, data, true)
}

// newFlashXipReadShaCommand frames an opaque payload, normally the address
// and length of the region to digest.
//
// The frame carries no checksum. Bouffalo's own tool sends control byte 0xb8
// here; check this first if a device rejects the digest request.
func newFlashXipReadShaCommand(payload []byte) (*packet, error) {
	return newPacket(cmdFlashXipReadSha, payload, false)
}

// XipShaRegion returns the payload used to request the digest of length
// bytes starting at addr.
func XipShaRegion(addr, length uint32) []byte {
	b := make([]byte, 0, 8)
	b = binary.LittleEndian.AppendUint32(b, addr)
	return binary.LittleEndian.AppendUint32(b, length)
}
