package blisp

import (
	"errors"
	"fmt"
)

// Protocol errors.
var (
	// ErrInvalidResponse is used when a response is neither OK nor FL, too
	// short, or carries an error code outside of the known table.
	ErrInvalidResponse = errors.New("blisp: invalid response")

	// ErrResponseTimeout is used when no response arrived in time.
	ErrResponseTimeout = errors.New("blisp: response timeout")

	// ErrTransport wraps I/O failures of the transport.
	ErrTransport = errors.New("blisp: transport error")

	// ErrClosed is returned once the transport stopped delivering data.
	ErrClosed = errors.New("blisp: transport closed")

	// errNotConnected is used when a command is issued before a successful
	// handshake, or after a failed programming step.
	errNotConnected = errors.New("blisp: not connected")
)

// Category is the first level of the boot ROM error taxonomy.
type Category uint8

const (
	CategoryFlash   Category = 0x00
	CategoryCommand Category = 0x01
	CategoryImage   Category = 0x02
)

func (c Category) String() string {
	switch c {
	case CategoryFlash:
		return "flash"
	case CategoryCommand:
		return "command"
	case CategoryImage:
		return "image"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// ErrorKind is a specific error reported by the boot ROM.
type ErrorKind int

// Flash errors.
const (
	KindUnknown ErrorKind = iota

	KindFlashInit
	KindFlashEraseParam
	KindFlashErase
	KindFlashWriteParam
	KindFlashWriteAddr
	KindFlashWrite
	KindFlashBootParam
	KindFlashSetParam
	KindFlashReadStatusReg
	KindFlashWriteStatusReg
)

// Command errors.
const (
	KindCommandID ErrorKind = iota + KindFlashWriteStatusReg + 1
	KindCommandLen
	KindCommandCrc
	KindCommandSeq
)

// Image errors.
const (
	KindImageBootHeaderLen ErrorKind = iota + KindCommandSeq + 1
	KindImageBootHeaderNotLoaded
	KindImageBootHeaderMagic
	KindImageBootHeaderCrc
	KindImageBootHeaderEncryptNotFit
	KindImageBootHeaderSignNotFit
	KindImageSegmentCount
	KindImageAesIvLen
	KindImageAesIvCrc
	KindImagePkLen
)

var errorKindNames = map[ErrorKind]string{
	KindFlashInit:           "flash init error",
	KindFlashEraseParam:     "flash erase parameter error",
	KindFlashErase:          "flash erase error",
	KindFlashWriteParam:     "flash write parameter error",
	KindFlashWriteAddr:      "flash write address error",
	KindFlashWrite:          "flash write error",
	KindFlashBootParam:      "flash boot parameter error",
	KindFlashSetParam:       "flash set parameter error",
	KindFlashReadStatusReg:  "flash read status register error",
	KindFlashWriteStatusReg: "flash write status register error",

	KindCommandID:  "command id error",
	KindCommandLen: "command length error",
	KindCommandCrc: "command checksum error",
	KindCommandSeq: "command sequence error",

	KindImageBootHeaderLen:           "boot header length error",
	KindImageBootHeaderNotLoaded:     "boot header not loaded",
	KindImageBootHeaderMagic:         "boot header magic error",
	KindImageBootHeaderCrc:           "boot header crc error",
	KindImageBootHeaderEncryptNotFit: "boot header encryption does not fit",
	KindImageBootHeaderSignNotFit:    "boot header signature does not fit",
	KindImageSegmentCount:            "segment count error",
	KindImageAesIvLen:                "aes iv length error",
	KindImageAesIvCrc:                "aes iv crc error",
	KindImagePkLen:                   "public key length error",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return "unknown error"
}

// errorKinds returns the ordered error kinds of a category.
//
// The device reports errors as 1-based indices into these lists.
func errorKinds(c Category) []ErrorKind {
	switch c {
	case CategoryFlash:
		return []ErrorKind{
			KindFlashInit,
			KindFlashEraseParam,
			KindFlashErase,
			KindFlashWriteParam,
			KindFlashWriteAddr,
			KindFlashWrite,
			KindFlashBootParam,
			KindFlashSetParam,
			KindFlashReadStatusReg,
			KindFlashWriteStatusReg,
		}
	case CategoryCommand:
		return []ErrorKind{
			KindCommandID,
			KindCommandLen,
			KindCommandCrc,
			KindCommandSeq,
		}
	case CategoryImage:
		return []ErrorKind{
			KindImageBootHeaderLen,
			KindImageBootHeaderNotLoaded,
			KindImageBootHeaderMagic,
			KindImageBootHeaderCrc,
			KindImageBootHeaderEncryptNotFit,
			KindImageBootHeaderSignNotFit,
			KindImageSegmentCount,
			KindImageAesIvLen,
			KindImageAesIvCrc,
			KindImagePkLen,
		}
	default:
		return nil
	}
}

// lookupErrorKind maps a reported (category, code) pair to its kind.
func lookupErrorKind(category, code uint8) (ErrorKind, bool) {
	kinds := errorKinds(Category(category))
	if code == 0 || int(code) > len(kinds) {
		return KindUnknown, false
	}
	return kinds[code-1], true
}

// DeviceError is returned when the boot ROM explicitly reported a failure.
type DeviceError struct {
	Category Category
	Kind     ErrorKind
	// Code is the raw 1-based index within the category.
	Code uint8
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("blisp: device reported %s (%s %d)", e.Kind, e.Category, e.Code)
}

// Is reports whether target is a DeviceError of the same kind.
func (e *DeviceError) Is(target error) bool {
	t, ok := target.(*DeviceError)
	return ok && t.Kind == e.Kind
}

// IsDeviceError returns true if err is a device reported error of kind.
func IsDeviceError(err error, kind ErrorKind) bool {
	var de *DeviceError
	return errors.As(err, &de) && de.Kind == kind
}

// PayloadSizeError is returned when a payload violates a fixed or maximum
// size of a command. Nothing is sent to the device in that case.
type PayloadSizeError struct {
	Command string
	Size    int
	// Limit is the required size when Exact is set, otherwise the maximum.
	Limit int
	Exact bool
}

func (e *PayloadSizeError) Error() string {
	if e.Exact {
		return fmt.Sprintf("blisp: %s payload must be %d bytes, got %d", e.Command, e.Limit, e.Size)
	}
	return fmt.Sprintf("blisp: %s payload exceeds %d bytes, got %d", e.Command, e.Limit, e.Size)
}
