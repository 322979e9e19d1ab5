package blisp

import (
	"time"
)

// Line selects the signal used to drive a boot ROM control pin.
type Line int

const (
	LineRTS Line = iota
	LineDTR
	LineGPIO
)

func (l Line) String() string {
	switch l {
	case LineRTS:
		return "RTS"
	case LineDTR:
		return "DTR"
	case LineGPIO:
		return "GPIO"
	default:
		return "unknown"
	}
}

// LineConfig describes how one control pin of the device is wired.
type LineConfig struct {
	// Line is the host signal connected to the pin.
	Line Line
	// Pin is the host GPIO name, only used with LineGPIO.
	Pin string
	// Inverted is set when the electrical level is the inverse of the
	// logical level, which is the case for most USB-UART adapters.
	Inverted bool
}

// UARTConfig contains serial port specific configuration.
type UARTConfig struct {
	Port     string
	BaudRate int
	// ChunkGap is the idle time on the line that terminates a received chunk.
	ChunkGap time.Duration
}

// IfaceConfig is the configuration object for a device.
//
// It describes the chip, how the host is wired to its boot strap and
// enable pins and the timing used while talking to the boot ROM.
type IfaceConfig struct {
	// ChipType affects command timeouts.
	ChipType ChipType
	// UART contains serial port configuration.
	UART UARTConfig
	// Boot is the boot strap pin. Holding it active during reset makes the
	// chip start its ISP boot ROM.
	Boot LineConfig
	// Enable is the chip enable (reset) pin.
	Enable LineConfig

	// BootDelay is the settle time around asserting and releasing the boot
	// pin.
	BootDelay time.Duration
	// ResetDelay is the time the chip is held in reset.
	ResetDelay time.Duration

	// HandshakeFactor scales the handshake burst length with the baudrate.
	//
	// The burst must outlast the boot ROM synchronization window.
	HandshakeFactor float64
	// ConnectAttempts is the number of handshakes tried before giving up.
	ConnectAttempts int

	// EraseMargin is added to the boot header size when erasing the header
	// region.
	EraseMargin uint32
	// FirmwareAddr is the flash offset of the main image.
	FirmwareAddr uint32

	// Debug is used for debug output.
	Debug Logger
}

const (
	defaultBaudRate        = 500000
	defaultHandshakeFactor = 0.006
	defaultFirmwareAddr    = 0x2000
)

// ConfigBL602_UARTDefault returns a default config for a BL602 on a
// USB-UART adapter, with RTS wired to the boot pin and DTR to enable.
func ConfigBL602_UARTDefault(port string) IfaceConfig {
	return IfaceConfig{
		ChipType: ChipBL602,
		UART: UARTConfig{
			Port:     port,
			BaudRate: defaultBaudRate,
			ChunkGap: 20 * time.Millisecond,
		},
		Boot:            LineConfig{Line: LineRTS, Inverted: true},
		Enable:          LineConfig{Line: LineDTR, Inverted: true},
		BootDelay:       500 * time.Millisecond,
		ResetDelay:      time.Second,
		HandshakeFactor: defaultHandshakeFactor,
		ConnectAttempts: 3,
		FirmwareAddr:    defaultFirmwareAddr,
	}
}

// ConfigBL702_UARTDefault returns a default config for a BL702.
//
// The BL702 boot ROM settles faster after reset than the BL602.
func ConfigBL702_UARTDefault(port string) IfaceConfig {
	cfg := ConfigBL602_UARTDefault(port)
	cfg.ChipType = ChipBL702
	cfg.BootDelay = 100 * time.Millisecond
	cfg.ResetDelay = 100 * time.Millisecond
	return cfg
}
