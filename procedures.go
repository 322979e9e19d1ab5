package blisp

import (
	"context"
	"io"
)

// Progress describes how far a chunked transfer has come.
type Progress struct {
	// Phase is "loader" while streaming the secondary loader and "flash"
	// while writing flash.
	Phase string
	// Addr is the address of the next byte to write. It is zero for the
	// loader, which has no target address.
	Addr uint32
	// Done is the number of bytes transferred so far.
	Done int
	// Total is the number of bytes to transfer, or -1 when unknown.
	Total int
}

// ProgressFunc is called after every chunk. It should return quickly.
type ProgressFunc func(Progress)

// LoadFullData streams r to the device as segment data in 4080 byte chunks
// until r is exhausted.
func (d *Dev) LoadFullData(ctx context.Context, r io.Reader, total int, progress ProgressFunc) error {
	buf := make([]byte, segmentChunkSize)
	done := 0
	return forEachChunk(r, buf, func(chunk []byte) error {
		if err := d.LoadSegmentData(ctx, chunk); err != nil {
			return err
		}
		done += len(chunk)
		if progress != nil {
			progress(Progress{Phase: "loader", Done: done, Total: total})
		}
		return nil
	})
}

// FlashWriteAll writes r to flash starting at addr in 2048 byte chunks,
// advancing the address by the size of each chunk.
func (d *Dev) FlashWriteAll(ctx context.Context, addr uint32, r io.Reader, total int, progress ProgressFunc) error {
	buf := make([]byte, flashWriteChunkMax)
	done := 0
	return forEachChunk(r, buf, func(chunk []byte) error {
		if err := d.FlashWrite(ctx, addr, chunk); err != nil {
			return err
		}
		addr += uint32(len(chunk))
		done += len(chunk)
		if progress != nil {
			progress(Progress{Phase: "flash", Addr: addr, Done: done, Total: total})
		}
		return nil
	})
}

// forEachChunk calls fn with full buffers read from r and a final short one.
func forEachChunk(r io.Reader, buf []byte, fn func([]byte) error) error {
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if ferr := fn(buf[:n]); ferr != nil {
				return ferr
			}
		}
		switch err {
		case nil:
		case io.EOF, io.ErrUnexpectedEOF:
			return nil
		default:
			return err
		}
	}
}
