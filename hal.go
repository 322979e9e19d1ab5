package blisp

// HAL is the transport to the boot ROM.
type HAL interface {
	// Read blocks until a chunk of bytes has been received from the device
	// and copies it into p. It returns an error once the transport is closed.
	Read(p []byte) (int, error)
	// Write writes len(p) bytes from p to the device.
	Write(p []byte) (int, error)
	// SetBootLine drives the boot strap pin. Polarity is handled by the HAL.
	SetBootLine(active bool) error
	// SetResetLine holds the chip in reset while active.
	SetResetLine(active bool) error
}

// lineLevel returns the electrical level for a logical pin state.
func lineLevel(lc LineConfig, active bool) bool {
	return active != lc.Inverted
}
