package blisp

import (
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// NewSerialDev opens the configured serial port and returns a session
// communicating over it. Close the returned io.Closer to release the port,
// which also stops the session's receive listener.
func NewSerialDev(cfg IfaceConfig) (*Dev, io.Closer, error) {
	hal, err := OpenSerial(cfg)
	if err != nil {
		return nil, nil, err
	}
	d, err := New(hal, cfg)
	if err != nil {
		_ = hal.Close()
		return nil, nil, err
	}
	return d, hal, nil
}

// pinSetter drives a control pin to an electrical level.
type pinSetter func(level bool) error

// SerialHAL is a HAL on a UART with boot and enable pins driven by the
// modem control lines or host GPIOs.
type SerialHAL struct {
	port serial.Port
	cfg  IfaceConfig

	boot   pinSetter
	enable pinSetter
}

// OpenSerial opens the port in cfg with 8N1 framing.
func OpenSerial(cfg IfaceConfig) (*SerialHAL, error) {
	if cfg.UART.Port == "" {
		return nil, errors.New("blisp: no serial port given")
	}
	baud := cfg.UART.BaudRate
	if baud == 0 {
		baud = defaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.UART.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("blisp: failed to open %s: %w", cfg.UART.Port, err)
	}
	h, err := newSerialHAL(port, cfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return h, nil
}

func newSerialHAL(port serial.Port, cfg IfaceConfig) (*SerialHAL, error) {
	if cfg.UART.ChunkGap > 0 {
		if err := port.SetReadTimeout(cfg.UART.ChunkGap); err != nil {
			return nil, fmt.Errorf("blisp: failed to set read timeout: %w", err)
		}
	}
	h := &SerialHAL{port: port, cfg: cfg}
	var err error
	if h.boot, err = h.pin(cfg.Boot); err != nil {
		return nil, err
	}
	if h.enable, err = h.pin(cfg.Enable); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *SerialHAL) pin(lc LineConfig) (pinSetter, error) {
	switch lc.Line {
	case LineRTS:
		return h.port.SetRTS, nil
	case LineDTR:
		return h.port.SetDTR, nil
	case LineGPIO:
		return openGPIOPin(lc.Pin)
	default:
		return nil, fmt.Errorf("blisp: unsupported control line %s", lc.Line)
	}
}

// Read blocks until bytes arrive and returns once the line has been idle
// for the configured chunk gap, or p is full. Without a chunk gap it returns
// whatever the first successful read delivered.
func (h *SerialHAL) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		m, err := h.port.Read(p[n:])
		n += m
		if err != nil {
			return n, err
		}
		if n > 0 && (m == 0 || h.cfg.UART.ChunkGap <= 0) {
			break
		}
	}
	return n, nil
}

func (h *SerialHAL) Write(p []byte) (int, error) {
	return h.port.Write(p)
}

func (h *SerialHAL) SetBootLine(active bool) error {
	return h.boot(lineLevel(h.cfg.Boot, active))
}

// SetResetLine holds the chip in reset by pulling its enable pin inactive.
func (h *SerialHAL) SetResetLine(active bool) error {
	return h.enable(lineLevel(h.cfg.Enable, !active))
}

// Close closes the port. A blocked Read returns with an error.
func (h *SerialHAL) Close() error {
	return h.port.Close()
}
