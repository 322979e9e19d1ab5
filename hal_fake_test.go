package blisp

import (
	"errors"
	"io"
	"sync"
	"testing"
)

// responder returns the chunks the device sends in reply to frame.
type responder func(frame []byte) [][]byte

// fakeHAL is a scripted device.
type fakeHAL struct {
	respond responder

	mu       sync.Mutex
	writes   [][]byte
	events   []string
	writeErr error

	rx        chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeHAL(r responder) *fakeHAL {
	return &fakeHAL{
		respond: r,
		rx:      make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (f *fakeHAL) Read(p []byte) (int, error) {
	select {
	case b := <-f.rx:
		return copy(p, b), nil
	case <-f.closed:
		return 0, io.EOF
	}
}

func (f *fakeHAL) Write(p []byte) (int, error) {
	f.mu.Lock()
	if f.writeErr != nil {
		f.mu.Unlock()
		return 0, f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	f.mu.Unlock()
	if f.respond != nil {
		for _, b := range f.respond(p) {
			f.rx <- b
		}
	}
	return len(p), nil
}

func (f *fakeHAL) SetBootLine(active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if active {
		f.events = append(f.events, "boot+")
	} else {
		f.events = append(f.events, "boot-")
	}
	return nil
}

func (f *fakeHAL) SetResetLine(active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if active {
		f.events = append(f.events, "reset+")
	} else {
		f.events = append(f.events, "reset-")
	}
	return nil
}

func (f *fakeHAL) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeHAL) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

// commands returns the command byte of every frame written.
func (f *fakeHAL) commands() []uint8 {
	var cmds []uint8
	for _, w := range f.frames() {
		cmds = append(cmds, w[0])
	}
	return cmds
}

func (f *fakeHAL) countCommand(cmd uint8) int {
	n := 0
	for _, c := range f.commands() {
		if c == cmd {
			n++
		}
	}
	return n
}

func (f *fakeHAL) lineEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

var errFakeWrite = errors.New("fake write error")

// okResponder acknowledges every frame, using replies for the listed
// commands.
func okResponder(replies map[uint8][][]byte) responder {
	return func(frame []byte) [][]byte {
		if r, ok := replies[frame[0]]; ok {
			return r
		}
		return [][]byte{[]byte("OK")}
	}
}

func testConfig() IfaceConfig {
	cfg := ConfigBL602_UARTDefault("fake")
	cfg.BootDelay = 0
	cfg.ResetDelay = 0
	return cfg
}

func newTestDev(t *testing.T, r responder) (*Dev, *fakeHAL) {
	t.Helper()
	hal := newFakeHAL(r)
	d, err := New(hal, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = hal.Close()
	})
	return d, hal
}
