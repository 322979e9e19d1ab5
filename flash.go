package blisp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
)

// loaderHeaderSize is the boot header plus the single segment header at the
// start of a secondary loader image.
const loaderHeaderSize = BootHeaderSize + SegmentHeaderSize

// StepLogger receives one message per flashing step.
type StepLogger interface {
	Infof(format string, args ...interface{})
}

type printfStepLogger struct {
	l Logger
}

func (p printfStepLogger) Infof(format string, args ...interface{}) {
	p.l.Printf(format, args...)
}

// FlasherOption configures a Flasher.
type FlasherOption func(*Flasher)

// WithStepLogger reports every step of a flashing run to l.
func WithStepLogger(l StepLogger) FlasherOption {
	return func(f *Flasher) {
		f.steps = l
	}
}

// WithProgress reports chunked transfers to fn.
func WithProgress(fn ProgressFunc) FlasherOption {
	return func(f *Flasher) {
		f.progress = fn
	}
}

// WithFirmwareAddr overrides the flash address of the firmware image.
// Unlike IfaceConfig.FirmwareAddr, zero is taken as is.
func WithFirmwareAddr(addr uint32) FlasherOption {
	return func(f *Flasher) {
		f.fwAddr = &addr
	}
}

// Flasher runs the complete procedures needed to program a chip: entering
// the boot ROM, loading the secondary loader and programming flash.
//
// Only the connect step is retried. Any other failure aborts the procedure
// and leaves the device as the failing command left it; start over with
// Connect.
type Flasher struct {
	dev      *Dev
	cfg      IfaceConfig
	steps    StepLogger
	progress ProgressFunc
	fwAddr   *uint32

	bootInfo *BootInfo
}

// NewFlasher returns a Flasher driving dev.
func NewFlasher(dev *Dev, opts ...FlasherOption) *Flasher {
	f := &Flasher{
		dev:   dev,
		cfg:   dev.cfg,
		steps: printfStepLogger{dev.log},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BootInfo returns the boot information read while loading the secondary
// loader, if that step got far enough.
func (f *Flasher) BootInfo() (BootInfo, bool) {
	if f.bootInfo == nil {
		return BootInfo{}, false
	}
	return *f.bootInfo, true
}

// Dev returns the underlying session.
func (f *Flasher) Dev() *Dev {
	return f.dev
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// EnterBootloader restarts the chip with the boot pin held active, which
// starts the ISP boot ROM.
func (f *Flasher) EnterBootloader(ctx context.Context) error {
	hal := f.dev.hal
	if err := hal.SetBootLine(true); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if err := sleep(ctx, f.cfg.BootDelay); err != nil {
		return err
	}
	if err := hal.SetResetLine(true); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if err := sleep(ctx, f.cfg.ResetDelay); err != nil {
		return err
	}
	if err := hal.SetResetLine(false); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if err := sleep(ctx, f.cfg.BootDelay); err != nil {
		return err
	}
	if err := hal.SetBootLine(false); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// retryable returns true for handshake failures worth another attempt.
func retryable(err error) bool {
	return errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrResponseTimeout)
}

// Connect enters the boot ROM and handshakes, at most maxAttempts times.
//
// Each attempt restarts the chip. Invalid responses and timeouts are
// retried, everything else is returned immediately.
func (f *Flasher) Connect(ctx context.Context, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		f.steps.Infof("connecting, attempt %d of %d", attempt, maxAttempts)
		if err = f.EnterBootloader(ctx); err != nil {
			return errors.Wrap(err, "enter bootloader")
		}
		if n := f.dev.rx.Drain(); n > 0 {
			f.dev.log.Printf("blisp: dropped %d stale chunks", n)
		}
		err = f.dev.Handshake(ctx)
		if err == nil {
			f.steps.Infof("connected")
			return nil
		}
		if !retryable(err) {
			return errors.Wrap(err, "handshake")
		}
	}
	return errors.Wrapf(err, "handshake failed after %d attempts", maxAttempts)
}

// FlashSecondaryLoader loads a secondary loader image into RAM and has the
// boot ROM validate it.
//
// The image starts with its boot header followed by one segment header;
// the rest is segment data.
func (f *Flasher) FlashSecondaryLoader(ctx context.Context, r io.Reader) error {
	image, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "read loader")
	}
	if len(image) < loaderHeaderSize {
		return errors.Errorf("loader image too short: %d bytes", len(image))
	}

	info, err := f.dev.GetBootInfo(ctx)
	if err != nil {
		return errors.Wrap(err, "get boot info")
	}
	f.steps.Infof("boot rom version %#08x, otp %x", info.Version, info.OTP)
	f.bootInfo = &info

	if err := f.dev.LoadBootHeader(ctx, image[:BootHeaderSize]); err != nil {
		return errors.Wrap(err, "load loader boot header")
	}
	seg, err := f.dev.LoadSegmentHeader(ctx, image[BootHeaderSize:loaderHeaderSize])
	if err != nil {
		return errors.Wrap(err, "load loader segment header")
	}
	f.steps.Infof("segment at %#08x, %d bytes, crc %#08x", seg.DestAddr, seg.Length, seg.CRC32)

	data := image[loaderHeaderSize:]
	if err := f.dev.LoadFullData(ctx, bytes.NewReader(data), len(data), f.progress); err != nil {
		return errors.Wrap(err, "load loader data")
	}
	if err := f.dev.CheckImage(ctx); err != nil {
		return errors.Wrap(err, "loader rejected by boot rom")
	}
	f.steps.Infof("secondary loader loaded")
	return nil
}

// ProgramImage writes the boot header descriptor at flash offset 0 and the
// firmware image at the configured firmware address.
//
// Both regions are erased first and checked afterwards with a write check
// and an XIP digest readback.
func (f *Flasher) ProgramImage(ctx context.Context, descriptor, image []byte) error {
	if err := f.programRegion(ctx, "boot header", 0, descriptor, f.cfg.EraseMargin); err != nil {
		return err
	}
	return f.programRegion(ctx, "firmware", f.firmwareAddr(), image, 0)
}

func (f *Flasher) firmwareAddr() uint32 {
	if f.fwAddr != nil {
		return *f.fwAddr
	}
	if f.cfg.FirmwareAddr == 0 {
		return defaultFirmwareAddr
	}
	return f.cfg.FirmwareAddr
}

func (f *Flasher) programRegion(ctx context.Context, name string, addr uint32, data []byte, margin uint32) error {
	if len(data) == 0 {
		return errors.Errorf("%s is empty", name)
	}
	size := uint32(len(data))
	end := addr + size + margin - 1

	f.steps.Infof("erasing %s %#08x-%#08x", name, addr, end)
	if err := f.dev.FlashErase(ctx, addr, end); err != nil {
		return errors.Wrapf(err, "erase %s at %#x", name, addr)
	}

	f.steps.Infof("writing %s, %d bytes at %#08x", name, size, addr)
	if err := f.dev.FlashWriteAll(ctx, addr, bytes.NewReader(data), len(data), f.progress); err != nil {
		return errors.Wrapf(err, "write %s at %#x", name, addr)
	}
	if err := f.dev.FlashWriteCheck(ctx); err != nil {
		return errors.Wrapf(err, "write check %s", name)
	}

	if err := f.dev.XipReadStart(ctx); err != nil {
		return errors.Wrapf(err, "xip read start %s", name)
	}
	sha, err := f.dev.FlashXipReadSha(ctx, XipShaRegion(addr, size))
	if err != nil {
		return errors.Wrapf(err, "xip read sha %s", name)
	}
	f.steps.Infof("%s digest %x", name, sha)
	if err := f.dev.XipReadFinish(ctx); err != nil {
		return errors.Wrapf(err, "xip read finish %s", name)
	}
	return nil
}

// Run connects, loads the secondary loader and programs the image.
func (f *Flasher) Run(ctx context.Context, loader io.Reader, descriptor, image []byte) error {
	if err := f.Connect(ctx, f.cfg.ConnectAttempts); err != nil {
		return err
	}
	if err := f.FlashSecondaryLoader(ctx, loader); err != nil {
		return err
	}
	if err := f.ProgramImage(ctx, descriptor, image); err != nil {
		return err
	}
	f.steps.Infof("done")
	return nil
}
