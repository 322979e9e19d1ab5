package blisp

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"testing/iotest"
)

func TestFlashWriteAllProgress(t *testing.T) {
	ctx := context.Background()
	d, _ := connectedDev(t, okResponder(nil))

	var got []Progress
	err := d.FlashWriteAll(ctx, 0x1000, bytes.NewReader(make([]byte, 4100)), 4100, func(p Progress) {
		got = append(got, p)
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []Progress{
		{Phase: "flash", Addr: 0x1800, Done: 2048, Total: 4100},
		{Phase: "flash", Addr: 0x2000, Done: 4096, Total: 4100},
		{Phase: "flash", Addr: 0x2004, Done: 4100, Total: 4100},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestLoadFullDataOneByteReader(t *testing.T) {
	ctx := context.Background()
	d, hal := connectedDev(t, okResponder(nil))

	data := make([]byte, 8161)
	for i := range data {
		data[i] = byte(i * 7)
	}
	if err := d.LoadFullData(ctx, iotest.OneByteReader(bytes.NewReader(data)), -1, nil); err != nil {
		t.Fatal(err)
	}

	var sent []byte
	var sizes []int
	for _, fr := range hal.frames()[1:] {
		sizes = append(sizes, len(fr)-frameHeaderSize)
		sent = append(sent, fr[frameHeaderSize:]...)
	}
	if want := []int{4080, 4080, 1}; !reflect.DeepEqual(sizes, want) {
		t.Errorf("got chunks %v, want %v", sizes, want)
	}
	if !bytes.Equal(sent, data) {
		t.Error("streamed data differs")
	}
}

func TestLoadFullDataEmpty(t *testing.T) {
	d, hal := connectedDev(t, okResponder(nil))
	if err := d.LoadFullData(context.Background(), bytes.NewReader(nil), 0, nil); err != nil {
		t.Fatal(err)
	}
	if n := hal.countCommand(cmdLoadSegmentData); n != 0 {
		t.Errorf("sent %d chunks", n)
	}
}

func TestLoadFullDataReadError(t *testing.T) {
	errRead := errors.New("read failed")
	d, hal := connectedDev(t, okResponder(nil))

	err := d.LoadFullData(context.Background(), iotest.ErrReader(errRead), 10, nil)
	if !errors.Is(err, errRead) {
		t.Fatalf("got %v, want %v", err, errRead)
	}
	if n := hal.countCommand(cmdLoadSegmentData); n != 0 {
		t.Errorf("sent %d chunks", n)
	}
}

func TestFlashWriteAllStopsOnError(t *testing.T) {
	d, hal := connectedDev(t, okResponder(map[uint8][][]byte{
		cmdFlashWrite: {[]byte("FL\x05\x00")},
	}))
	err := d.FlashWriteAll(context.Background(), 0, bytes.NewReader(make([]byte, 5000)), 5000, nil)
	if !IsDeviceError(err, KindFlashWriteAddr) {
		t.Fatalf("got %v", err)
	}
	if n := hal.countCommand(cmdFlashWrite); n != 1 {
		t.Errorf("sent %d chunks, want 1", n)
	}
}
