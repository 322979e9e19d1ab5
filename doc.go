// Package blisp programs Bouffalo Lab BL602 and BL702 chips through the ISP
// protocol of their mask ROM bootloader.
//
// It supports communication over a UART, with the boot strap and enable
// pins driven by the RTS/DTR lines of the adapter or by host GPIOs.
//
// A flashing run enters the boot ROM, handshakes, loads the eflash loader
// into RAM and then writes the boot header and firmware to flash:
//
//	d, closer, err := blisp.NewSerialDev(blisp.ConfigBL602_UARTDefault("/dev/ttyUSB0"))
//	if err != nil {
//		return err
//	}
//	defer closer.Close()
//	err = blisp.NewFlasher(d).Run(ctx, loader, header, firmware)
//
// The header is built with the bootheader package.
//
// # References
//
// The boot ROM commands are described in the ISP chapter of the BL602 and
// BL702 reference manuals.
// https://github.com/bouffalolab/bl_docs
package blisp
