package blisp

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strconv"
	"testing"
)

func TestPackets(t *testing.T) {
	testCases := []struct {
		p *packet
		b []byte
	}{
		{
			must(newSimpleCommand(cmdGetBootInfo)),
			[]byte{0x10, 0x00, 0x00, 0x00},
		},
		{
			must(newSimpleCommand(cmdFlashWriteCheck)),
			[]byte{0x3a, 0x00, 0x00, 0x00},
		},
		{
			must(newFlashWriteCommand(0x2000, []byte{0x01, 0x02, 0x03, 0x04})),
			[]byte{0x31, 0x32, 0x08, 0x00, 0x00, 0x20, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04},
		},
		{
			must(newFlashEraseCommand(0x0000, 0x00af)),
			[]byte{0x30, 0xb7, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0xaf, 0x00, 0x00, 0x00},
		},
		{
			must(newLoadSegmentHeaderCommand(make([]byte, SegmentHeaderSize))),
			append([]byte{0x17, 0x00, 0x10, 0x00}, make([]byte, SegmentHeaderSize)...),
		},
		{
			must(newFlashXipReadShaCommand(XipShaRegion(0, 0xb0))),
			[]byte{0x3e, 0x00, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0xb0, 0x00, 0x00, 0x00},
		},
	}

	for i, tc := range testCases {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			var enc packetEncoder
			b, err := enc.Encode(tc.p)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(b, tc.b) {
				t.Error(hex.Dump(b))
				t.Error(hex.Dump(tc.b))
			}
		})
	}
}

func TestEncodeChecksum(t *testing.T) {
	payloads := [][]byte{
		nil,
		{0xff},
		bytes.Repeat([]byte{0xff}, 300),
		[]byte("hello world"),
	}
	for i, payload := range payloads {
		for _, checksummed := range []bool{false, true} {
			b, err := Encode(0x42, payload, checksummed)
			if err != nil {
				t.Fatal(err)
			}
			if len(b) != frameHeaderSize+len(payload) {
				t.Fatalf("%d: frame length %d", i, len(b))
			}
			if int(b[2])|int(b[3])<<8 != len(payload) {
				t.Errorf("%d: length field %x", i, b[2:4])
			}
			var sum int
			for _, c := range b[2:] {
				sum += int(c)
			}
			want := byte(0)
			if checksummed {
				want = byte(sum % 256)
			}
			if b[1] != want {
				t.Errorf("%d: control %#02x, want %#02x", i, b[1], want)
			}
		}
	}
}

func TestChecksum(t *testing.T) {
	testCases := []struct {
		in   []byte
		want byte
	}{
		{nil, 0},
		{[]byte{0x01, 0x02}, 0x03},
		{[]byte{0x80, 0x80}, 0x00},
		{[]byte{0xff, 0xff, 0x03}, 0x01},
	}
	for _, tc := range testCases {
		if got := Checksum(tc.in); got != tc.want {
			t.Errorf("%x: got %#02x, want %#02x", tc.in, got, tc.want)
		}
	}
}

func TestPayloadLimits(t *testing.T) {
	testCases := []struct {
		name string
		fn   func() (*packet, error)
		ok   bool
	}{
		{"segment data 4096", func() (*packet, error) { return newLoadSegmentDataCommand(make([]byte, 4096)) }, true},
		{"segment data 4097", func() (*packet, error) { return newLoadSegmentDataCommand(make([]byte, 4097)) }, false},
		{"flash write 8000", func() (*packet, error) { return newFlashWriteCommand(0, make([]byte, 8000)) }, true},
		{"flash write 8001", func() (*packet, error) { return newFlashWriteCommand(0, make([]byte, 8001)) }, false},
		{"boot header 176", func() (*packet, error) { return newLoadBootHeaderCommand(make([]byte, 176)) }, true},
		{"boot header 175", func() (*packet, error) { return newLoadBootHeaderCommand(make([]byte, 175)) }, false},
		{"boot header 177", func() (*packet, error) { return newLoadBootHeaderCommand(make([]byte, 177)) }, false},
		{"segment header 15", func() (*packet, error) { return newLoadSegmentHeaderCommand(make([]byte, 15)) }, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.fn()
			if tc.ok && err != nil {
				t.Fatal(err)
			}
			if !tc.ok {
				var pse *PayloadSizeError
				if !errors.As(err, &pse) {
					t.Fatalf("expected payload size error, got %v", err)
				}
			}
		})
	}
}

func TestHandshakeBurstLen(t *testing.T) {
	testCases := []struct {
		baud int
		k    float64
		want int
	}{
		{500000, 0.006, 300},
		{115200, 0.006, 70},
		{2000000, 0.006, 1200},
		{10, 0.006, 1},
	}
	for _, tc := range testCases {
		if got := HandshakeBurstLen(tc.baud, tc.k); got != tc.want {
			t.Errorf("%d: got %d, want %d", tc.baud, got, tc.want)
		}
	}

	b := handshakeBurst(500000, 0.006)
	if len(b) != 300 || bytes.Count(b, []byte{0x55}) != 300 {
		t.Errorf("unexpected burst % x", b)
	}
}

func must(p *packet, err error) *packet {
	if err != nil {
		panic(err)
	}
	return p
}
