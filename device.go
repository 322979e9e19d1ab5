package blisp

import (
	"errors"
	"strings"
	"time"
)

// ChipType represents a physical chip family.
type ChipType int

const (
	ChipBL602 ChipType = iota
	ChipBL702
)

func (ct ChipType) String() string {
	switch ct {
	case ChipBL602:
		return "BL602"
	case ChipBL702:
		return "BL702"
	default:
		return "unknown"
	}
}

// ChipTypeFromName returns the chip type for names like "bl602".
func ChipTypeFromName(name string) (ChipType, error) {
	switch strings.ToUpper(name) {
	case "BL602", "BL604":
		return ChipBL602, nil
	case "BL702", "BL704", "BL706":
		return ChipBL702, nil
	default:
		return 0, errors.New("blisp: unknown chip " + name)
	}
}

// defaultCommandTimeout applies to commands missing from the chip table.
const defaultCommandTimeout = 500 * time.Millisecond

// chipCommandTimeouts holds response timeouts for commands that take
// noticeably longer than a plain request/response round trip.
//
// Timeouts include the time needed to shift the frame out at 500 kbaud.
var chipCommandTimeouts = map[ChipType]map[uint8]time.Duration{
	ChipBL602: {
		cmdHandshake:       500 * time.Millisecond,
		cmdLoadSegmentData: time.Second,
		cmdCheckImage:      time.Second,
		cmdFlashErase:      10 * time.Second,
		cmdFlashWrite:      2 * time.Second,
		cmdFlashWriteCheck: time.Second,
		cmdFlashXipReadSha: 5 * time.Second,
	},
	ChipBL702: {
		cmdHandshake:       500 * time.Millisecond,
		cmdLoadSegmentData: time.Second,
		cmdCheckImage:      time.Second,
		cmdFlashErase:      15 * time.Second,
		cmdFlashWrite:      2 * time.Second,
		cmdFlashWriteCheck: time.Second,
		cmdFlashXipReadSha: 5 * time.Second,
	},
}

func getCommandTimeout(ct ChipType, cmd uint8) (time.Duration, error) {
	timeouts, ok := chipCommandTimeouts[ct]
	if !ok {
		return 0, errors.New("blisp: unknown timeouts for chip")
	}

	if t, ok := timeouts[cmd]; ok {
		return t, nil
	}
	return defaultCommandTimeout, nil
}
