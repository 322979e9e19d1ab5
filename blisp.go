package blisp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/cryptobyte"
)

// State is the connection state of a session.
type State int

const (
	StateDisconnected State = iota
	StateHandshaking
	StateConnected
	StateProgramming
	StateVerifying
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateProgramming:
		return "programming"
	case StateVerifying:
		return "verifying"
	default:
		return "unknown"
	}
}

// commandPhase is the state a command moves the session into. Commands not
// listed are informational and leave the state untouched.
var commandPhase = map[uint8]State{
	cmdLoadBootHeader:    StateProgramming,
	cmdLoadSegmentHeader: StateProgramming,
	cmdLoadSegmentData:   StateProgramming,
	cmdMemoryWrite:       StateProgramming,
	cmdFlashErase:        StateProgramming,
	cmdFlashWrite:        StateProgramming,
	cmdCheckImage:        StateVerifying,
	cmdFlashWriteCheck:   StateVerifying,
	cmdXipReadStart:      StateVerifying,
	cmdFlashXipReadSha:   StateVerifying,
	cmdXipReadFinish:     StateVerifying,
}

// rxBufferSize is large enough for any response of the boot ROM.
const rxBufferSize = 4096

// Dev is a session with the ISP boot ROM of a chip.
//
// Commands are strictly sequential; a Dev must not be used from multiple
// goroutines at the same time.
type Dev struct {
	hal   HAL
	state State
	cfg   IfaceConfig
	enc   packetEncoder
	log   Logger

	rx *Queue
}

// New returns a new session using the supplied HAL for communication.
//
// A background listener reads from the HAL until it returns an error, which
// is normally caused by closing the underlying port. The session starts out
// disconnected; call Handshake before issuing any other command.
func New(hal HAL, cfg IfaceConfig) (*Dev, error) {
	if _, err := getCommandTimeout(cfg.ChipType, cmdHandshake); err != nil {
		return nil, err
	}
	if cfg.UART.BaudRate == 0 {
		cfg.UART.BaudRate = defaultBaudRate
	}
	d := &Dev{
		hal:   hal,
		state: StateDisconnected,
		cfg:   cfg,
		log:   getLogger(cfg),
		rx:    NewQueue(),
	}
	d.hal = &halDebug{"isp", getLogger(cfg), d.hal}
	go d.listen()
	return d, nil
}

func (d *Dev) listen() {
	buf := make([]byte, rxBufferSize)
	for {
		n, err := d.hal.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			d.rx.Push(chunk)
		}
		if err != nil {
			d.rx.Close(fmt.Errorf("%w: %w", ErrClosed, err))
			return
		}
	}
}

// Close stops waiting for responses. Pending and later commands fail with
// ErrClosed. The HAL itself is owned, and closed, by the caller.
func (d *Dev) Close() error {
	d.rx.Close(ErrClosed)
	d.state = StateDisconnected
	return nil
}

// State returns the current connection state.
func (d *Dev) State() State {
	return d.state
}

// HAL returns the transport, including the debug decorator.
func (d *Dev) HAL() HAL {
	return d.hal
}

// Handshake synchronizes with the boot ROM.
//
// The handshake byte is repeated long enough to cover the synchronization
// window of the boot ROM at the configured baudrate.
func (d *Dev) Handshake(ctx context.Context) error {
	d.state = StateHandshaking
	burst := handshakeBurst(d.cfg.UART.BaudRate, d.handshakeFactor())
	if _, err := d.hal.Write(burst); err != nil {
		d.state = StateDisconnected
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	timeout, err := getCommandTimeout(d.cfg.ChipType, cmdHandshake)
	if err != nil {
		d.state = StateDisconnected
		return err
	}
	if _, err := d.await(ctx, cmdHandshake, timeout); err != nil {
		d.state = StateDisconnected
		return err
	}
	d.state = StateConnected
	return nil
}

func (d *Dev) handshakeFactor() float64 {
	if d.cfg.HandshakeFactor <= 0 {
		return defaultHandshakeFactor
	}
	return d.cfg.HandshakeFactor
}

// BootInfo is the identification returned by the boot ROM.
type BootInfo struct {
	// Raw is the response payload without the length prefix.
	Raw []byte
	// Version is the boot ROM version.
	Version uint32
	// OTP is the eFuse information following the version.
	OTP []byte
}

func parseBootInfo(b []byte) BootInfo {
	info := BootInfo{Raw: b}
	s := cryptobyte.String(b)
	var version []byte
	if !s.ReadBytes(&version, 4) {
		return info
	}
	info.Version = binary.LittleEndian.Uint32(version)
	info.OTP = []byte(s)
	return info
}

// GetBootInfo reads the boot ROM version and OTP information.
func (d *Dev) GetBootInfo(ctx context.Context) (BootInfo, error) {
	p, err := newSimpleCommand(cmdGetBootInfo)
	if err != nil {
		return BootInfo{}, err
	}
	resp, err := d.transact(ctx, p)
	if err != nil {
		return BootInfo{}, err
	}
	return parseBootInfo(stripLength(resp)), nil
}

// LoadBootHeader sends the 176 byte boot header of an image to RAM.
func (d *Dev) LoadBootHeader(ctx context.Context, header []byte) error {
	p, err := newLoadBootHeaderCommand(header)
	if err != nil {
		return err
	}
	_, err = d.transact(ctx, p)
	return err
}

// SegmentHeader describes a segment loaded into RAM.
type SegmentHeader struct {
	DestAddr uint32
	Length   uint32
	Reserved uint32
	CRC32    uint32

	Raw []byte
}

func parseSegmentHeader(b []byte) SegmentHeader {
	sh := SegmentHeader{Raw: b}
	s := cryptobyte.String(b)
	var fields [4][]byte
	for i := range fields {
		if !s.ReadBytes(&fields[i], 4) {
			return sh
		}
	}
	sh.DestAddr = binary.LittleEndian.Uint32(fields[0])
	sh.Length = binary.LittleEndian.Uint32(fields[1])
	sh.Reserved = binary.LittleEndian.Uint32(fields[2])
	sh.CRC32 = binary.LittleEndian.Uint32(fields[3])
	return sh
}

// LoadSegmentHeader sends a 16 byte segment header and returns the segment
// descriptor echoed by the device.
func (d *Dev) LoadSegmentHeader(ctx context.Context, header []byte) (SegmentHeader, error) {
	p, err := newLoadSegmentHeaderCommand(header)
	if err != nil {
		return SegmentHeader{}, err
	}
	resp, err := d.transact(ctx, p)
	if err != nil {
		return SegmentHeader{}, err
	}
	return parseSegmentHeader(stripLength(resp)), nil
}

// LoadSegmentData sends up to 4096 bytes of segment data.
func (d *Dev) LoadSegmentData(ctx context.Context, data []byte) error {
	p, err := newLoadSegmentDataCommand(data)
	if err != nil {
		return err
	}
	_, err = d.transact(ctx, p)
	return err
}

// CheckImage asks the boot ROM to validate the loaded image.
func (d *Dev) CheckImage(ctx context.Context) error {
	return d.simple(ctx, cmdCheckImage)
}

// MemoryWrite sends an opaque memory write payload.
//
// The device does not acknowledge this command. A failure only shows up in
// later commands.
func (d *Dev) MemoryWrite(ctx context.Context, payload []byte) error {
	p, err := newMemoryWriteCommand(payload)
	if err != nil {
		return err
	}
	if d.state == StateDisconnected {
		return errNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := d.enc.Encode(p)
	if err != nil {
		return err
	}
	d.state = StateProgramming
	if _, err := d.hal.Write(b); err != nil {
		d.state = StateDisconnected
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// ReadJedecID reads the JEDEC ID of the attached flash.
func (d *Dev) ReadJedecID(ctx context.Context) ([]byte, error) {
	p, err := newSimpleCommand(cmdReadJedecID)
	if err != nil {
		return nil, err
	}
	resp, err := d.transact(ctx, p)
	if err != nil {
		return nil, err
	}
	return stripLength(resp), nil
}

// FlashErase erases flash from start to end, both inclusive.
//
// Erasing can take seconds. Pending status frames sent by the device in the
// meantime are consumed until the final result arrives.
func (d *Dev) FlashErase(ctx context.Context, start, end uint32) error {
	p, err := newFlashEraseCommand(start, end)
	if err != nil {
		return err
	}
	_, err = d.transact(ctx, p)
	return err
}

// FlashWrite writes up to 8000 bytes of data to flash at addr.
func (d *Dev) FlashWrite(ctx context.Context, addr uint32, data []byte) error {
	p, err := newFlashWriteCommand(addr, data)
	if err != nil {
		return err
	}
	_, err = d.transact(ctx, p)
	return err
}

// FlashWriteCheck confirms that preceding flash writes completed.
func (d *Dev) FlashWriteCheck(ctx context.Context) error {
	return d.simple(ctx, cmdFlashWriteCheck)
}

// XipReadStart switches the flash controller to execute in place reads.
func (d *Dev) XipReadStart(ctx context.Context) error {
	return d.simple(ctx, cmdXipReadStart)
}

// FlashXipReadSha requests a digest over flash read through XIP.
//
// The payload is passed through unchanged, see XipShaRegion. The returned
// digest is not interpreted.
func (d *Dev) FlashXipReadSha(ctx context.Context, payload []byte) ([]byte, error) {
	p, err := newFlashXipReadShaCommand(payload)
	if err != nil {
		return nil, err
	}
	resp, err := d.transact(ctx, p)
	if err != nil {
		return nil, err
	}
	return stripLength(resp), nil
}

// XipReadFinish leaves XIP read mode.
func (d *Dev) XipReadFinish(ctx context.Context) error {
	return d.simple(ctx, cmdXipReadFinish)
}

// EfuseReadMacAddr reads the MAC address stored in eFuse.
func (d *Dev) EfuseReadMacAddr(ctx context.Context) ([]byte, error) {
	p, err := newSimpleCommand(cmdEfuseReadMacAddr)
	if err != nil {
		return nil, err
	}
	resp, err := d.transact(ctx, p)
	if err != nil {
		return nil, err
	}
	return stripLength(resp), nil
}

func (d *Dev) simple(ctx context.Context, cmd uint8) error {
	p, err := newSimpleCommand(cmd)
	if err != nil {
		return err
	}
	_, err = d.transact(ctx, p)
	return err
}

// transact sends the packet and waits for its response.
//
// Any failure after the frame has been sent during programming or
// verification drops the session back to disconnected.
func (d *Dev) transact(ctx context.Context, p *packet) ([]byte, error) {
	if d.state == StateDisconnected {
		return nil, errNotConnected
	}
	b, err := d.enc.Encode(p)
	if err != nil {
		return nil, err
	}
	timeout, err := getCommandTimeout(d.cfg.ChipType, p.cmd)
	if err != nil {
		return nil, err
	}

	phase, tracked := commandPhase[p.cmd]
	if tracked {
		d.state = phase
	}
	resp, err := d.send(ctx, p.cmd, b, timeout)
	if err != nil && tracked {
		d.state = StateDisconnected
	}
	return resp, err
}

func (d *Dev) send(ctx context.Context, cmd uint8, b []byte, timeout time.Duration) ([]byte, error) {
	if _, err := d.hal.Write(b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return d.await(ctx, cmd, timeout)
}

// await pops chunks until a response to cmd arrives or timeout elapses.
func (d *Dev) await(ctx context.Context, cmd uint8, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrResponseTimeout
		}
		raw, err := d.rx.Pop(ctx, remaining)
		if err != nil {
			if errors.Is(err, ErrResponseTimeout) {
				d.log.Printf("blisp: no response to %s within %s", commandName(cmd), timeout)
			}
			return nil, err
		}
		if cmd == cmdFlashErase {
			for isPending(raw) {
				d.log.Printf("blisp: flash erase pending")
				raw = raw[len(tagPending):]
			}
			if len(raw) == 0 {
				continue
			}
		}
		return Decode(raw)
	}
}

// stripLength removes the little endian length prefix some responses carry.
//
// The prefix is only removed if it matches the remaining length.
func stripLength(b []byte) []byte {
	s := cryptobyte.String(b)
	var prefix []byte
	if !s.ReadBytes(&prefix, 2) {
		return b
	}
	if int(binary.LittleEndian.Uint16(prefix)) != len(s) {
		return b
	}
	return []byte(s)
}
