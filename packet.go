package blisp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

const (
	// frameHeaderSize is cmd, control and the 16 bit length.
	frameHeaderSize = 4
	// framePayloadMax is the largest payload the length field can describe.
	framePayloadMax = math.MaxUint16
)

// packet represents an ISP command frame.
type packet struct {
	cmd         uint8
	checksummed bool
	data        []byte
}

func newPacket(cmd uint8, data []byte, checksummed bool) (*packet, error) {
	if len(data) > framePayloadMax {
		return nil, errors.New("blisp: data size exceeds maximum size")
	}
	return &packet{
		cmd:         cmd,
		checksummed: checksummed,
		data:        data,
	}, nil
}

func (p *packet) Size() int {
	return frameHeaderSize + len(p.data)
}

// packetEncoder encodes packets.
type packetEncoder struct {
}

// Encode returns cmd ‖ control ‖ len_le16 ‖ payload.
//
// The control byte is the additive checksum of the length and payload for
// checksummed packets and zero otherwise.
func (e *packetEncoder) Encode(p *packet) ([]byte, error) {
	b := make([]byte, 2, p.Size())
	b[0] = p.cmd
	b = binary.LittleEndian.AppendUint16(b, uint16(len(p.data)))
	b = append(b, p.data...)
	if p.checksummed {
		b[1] = checksum(b[2:])
	}
	return b, nil
}

// Encode builds a command frame for cmd carrying payload.
func Encode(cmd uint8, payload []byte, checksummed bool) ([]byte, error) {
	p, err := newPacket(cmd, payload, checksummed)
	if err != nil {
		return nil, err
	}
	var enc packetEncoder
	return enc.Encode(p)
}

// checksum is the 8 bit wraparound sum of data.
func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// Checksum returns the additive checksum used in the frame control byte.
func Checksum(data []byte) byte {
	return checksum(data)
}

// HandshakeBurstLen returns how many handshake bytes to send at baudrate.
//
// The burst is ceil(k * baudrate / 10) bytes long, with 10 bits on the wire
// per byte.
func HandshakeBurstLen(baudrate int, k float64) int {
	n := int(math.Ceil(k * float64(baudrate) / 10))
	if n < 1 {
		return 1
	}
	return n
}

// handshakeBurst returns the handshake frame for baudrate.
func handshakeBurst(baudrate int, k float64) []byte {
	return bytes.Repeat([]byte{cmdHandshake}, HandshakeBurstLen(baudrate, k))
}
