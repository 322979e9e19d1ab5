package blisp

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// openGPIOPin looks up a host GPIO by name, e.g. "GPIO17".
//
// The periph host drivers must have been initialized with host.Init.
func openGPIOPin(name string) (pinSetter, error) {
	if name == "" {
		return nil, fmt.Errorf("blisp: gpio control line without pin name")
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("blisp: gpio %s not found", name)
	}
	return gpioSetter(p), nil
}

func gpioSetter(p gpio.PinOut) pinSetter {
	return func(level bool) error {
		if err := p.Out(gpio.Level(level)); err != nil {
			return fmt.Errorf("blisp: gpio %s: %w", p.Name(), err)
		}
		return nil
	}
}
