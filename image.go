package blisp

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
)

// ImageFormat is the encoding of an image file.
type ImageFormat int

const (
	FormatBinary ImageFormat = iota
	FormatIntelHex
)

// ImageFormatFromPath guesses the format from the file extension.
func ImageFormatFromPath(path string) ImageFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihex", ".ihx":
		return FormatIntelHex
	default:
		return FormatBinary
	}
}

// Image is a contiguous memory image.
type Image struct {
	// Addr is the lowest address in an Intel HEX file, zero for raw
	// binaries.
	Addr uint32
	Data []byte
}

// ReadImage reads a raw binary or an Intel HEX file.
//
// Gaps between the segments of an Intel HEX file are filled with 0xFF,
// the erased state of flash.
func ReadImage(r io.Reader, format ImageFormat) (Image, error) {
	switch format {
	case FormatBinary:
		data, err := io.ReadAll(r)
		if err != nil {
			return Image{}, err
		}
		return Image{Data: data}, nil
	case FormatIntelHex:
		mem := gohex.NewMemory()
		if err := mem.ParseIntelHex(r); err != nil {
			return Image{}, fmt.Errorf("blisp: %w", err)
		}
		segs := mem.GetDataSegments()
		if len(segs) == 0 {
			return Image{}, errors.New("blisp: hex file contains no data")
		}
		start, end := segs[0].Address, segs[0].Address
		for _, s := range segs {
			if s.Address < start {
				start = s.Address
			}
			if e := s.Address + uint32(len(s.Data)); e > end {
				end = e
			}
		}
		return Image{Addr: start, Data: mem.ToBinary(start, end-start, 0xff)}, nil
	default:
		return Image{}, errors.New("blisp: unknown image format")
	}
}

// WriteIntelHex writes data located at addr as Intel HEX.
func WriteIntelHex(w io.Writer, addr uint32, data []byte) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(addr, data); err != nil {
		return fmt.Errorf("blisp: %w", err)
	}
	return mem.DumpIntelHex(w, 16)
}
