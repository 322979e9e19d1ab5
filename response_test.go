package blisp

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeOK(t *testing.T) {
	testCases := []struct {
		raw  []byte
		want []byte
	}{
		{[]byte("OK"), []byte{}},
		{[]byte("OK\x04\x00\x01\x02\x03\x04"), []byte{0x04, 0x00, 0x01, 0x02, 0x03, 0x04}},
	}
	for _, tc := range testCases {
		got, err := Decode(tc.raw)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, tc.want) {
			t.Errorf("got % x, want % x", got, tc.want)
		}
	}
}

func TestDecodeInvalid(t *testing.T) {
	testCases := [][]byte{
		nil,
		{},
		[]byte("O"),
		[]byte("KO"),
		[]byte("PD"),
		[]byte("FL"),
		[]byte("FL\x01"),
		// code is 1-based
		[]byte("FL\x00\x00"),
		// out of the flash table
		[]byte("FL\x0b\x00"),
		// out of the command table
		[]byte("FL\x05\x01"),
		// unknown category
		[]byte("FL\x01\x03"),
	}
	for _, raw := range testCases {
		if _, err := Decode(raw); !errors.Is(err, ErrInvalidResponse) {
			t.Errorf("%q: got %v, want %v", raw, err, ErrInvalidResponse)
		}
	}
}

func TestDecodeDeviceError(t *testing.T) {
	testCases := []struct {
		code     uint8
		category uint8
		want     ErrorKind
	}{
		{1, 0, KindFlashInit},
		{5, 0, KindFlashWriteAddr},
		{10, 0, KindFlashWriteStatusReg},
		{1, 1, KindCommandID},
		{3, 1, KindCommandCrc},
		{4, 1, KindCommandSeq},
		{1, 2, KindImageBootHeaderLen},
		{4, 2, KindImageBootHeaderCrc},
		{10, 2, KindImagePkLen},
	}
	for _, tc := range testCases {
		_, err := Decode([]byte{'F', 'L', tc.code, tc.category})
		var de *DeviceError
		if !errors.As(err, &de) {
			t.Fatalf("expected device error, got %v", err)
		}
		if de.Kind != tc.want || de.Code != tc.code || de.Category != Category(tc.category) {
			t.Errorf("got %+v, want %s", de, tc.want)
		}
		if !IsDeviceError(err, tc.want) {
			t.Errorf("IsDeviceError(%v, %s) = false", err, tc.want)
		}
		if !errors.Is(err, &DeviceError{Kind: tc.want}) {
			t.Errorf("errors.Is failed for %s", tc.want)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	testCases := []struct {
		category Category
		size     int
	}{
		{CategoryFlash, 10},
		{CategoryCommand, 4},
		{CategoryImage, 10},
		{Category(3), 0},
	}
	seen := make(map[ErrorKind]bool)
	for _, tc := range testCases {
		kinds := errorKinds(tc.category)
		if len(kinds) != tc.size {
			t.Errorf("%s: got %d kinds, want %d", tc.category, len(kinds), tc.size)
		}
		for _, k := range kinds {
			if seen[k] {
				t.Errorf("kind %s listed twice", k)
			}
			seen[k] = true
			if k.String() == "unknown error" {
				t.Errorf("kind %d has no name", k)
			}
		}
	}
}

func TestIsPending(t *testing.T) {
	if !isPending([]byte("PD")) || !isPending([]byte("PD\x00")) {
		t.Error("pending frame not detected")
	}
	if isPending([]byte("OK")) || isPending([]byte("P")) {
		t.Error("unexpected pending frame")
	}
}
