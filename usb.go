package blisp

import (
	"errors"
	"fmt"

	"github.com/karalabe/usb"
)

// ErrUSBNotSupported is returned when the USB support is missing.
//
// When building, CGO is required for USB support.
var ErrUSBNotSupported = errors.New("blisp: usb support is missing")

// Adapter is a USB to UART bridge known to be used with the boot ROM.
type Adapter struct {
	Name      string
	VendorID  uint16
	ProductID uint16
}

// KnownAdapters lists the bridges found on common development boards.
var KnownAdapters = []Adapter{
	{"CH340", 0x1a86, 0x7523},
	{"CP210x", 0x10c4, 0xea60},
	{"FT232R", 0x0403, 0x6001},
	{"BL702 CDC", 0xffff, 0xffff},
}

// AdapterInfo is an attached USB to UART bridge.
type AdapterInfo struct {
	Adapter
	Path         string
	Serial       string
	Manufacturer string
	Product      string
}

func (a AdapterInfo) String() string {
	return fmt.Sprintf("%s %04x:%04x %s %s (%s)", a.Name, a.VendorID, a.ProductID, a.Manufacturer, a.Product, a.Path)
}

// ListAdapters enumerates attached USB devices matching KnownAdapters.
func ListAdapters() ([]AdapterInfo, error) {
	if !usb.Supported() {
		return nil, ErrUSBNotSupported
	}
	var found []AdapterInfo
	for _, a := range KnownAdapters {
		infos, err := usb.EnumerateRaw(a.VendorID, a.ProductID)
		if err != nil {
			return nil, fmt.Errorf("blisp: failed to enumerate usb devices: %w", err)
		}
		for _, di := range infos {
			found = append(found, AdapterInfo{
				Adapter:      a,
				Path:         di.Path,
				Serial:       di.Serial,
				Manufacturer: di.Manufacturer,
				Product:      di.Product,
			})
		}
	}
	return found, nil
}
