//go:build baremetal

package usermod

// Peripherals shared by all microcontroller boards. They only use the generic
// parts of the TinyGo machine package.

import (
	"machine"
	"time"
)

var bootTime = time.Now()

type uptimeClock struct{}

// Millis returns the number of milliseconds since boot. It wraps around after
// about 49 days.
func (c uptimeClock) Millis() uint32 {
	return uint32(time.Since(bootTime).Milliseconds())
}

type machineGPIO struct {
	adcInitialized bool
}

func (g *machineGPIO) Configure(pin Pin, mode PinMode) {
	if pin < 0 {
		return
	}
	switch mode {
	case PinOutput:
		machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	case PinInputPullup:
		machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	case PinAnalog:
		if !g.adcInitialized {
			machine.InitADC()
			g.adcInitialized = true
		}
		adc := machine.ADC{Pin: machine.Pin(pin)}
		adc.Configure(machine.ADCConfig{})
	default:
		machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInput})
	}
}

func (g *machineGPIO) Get(pin Pin) bool {
	if pin < 0 {
		return false
	}
	return machine.Pin(pin).Get()
}

func (g *machineGPIO) Set(pin Pin, high bool) {
	if pin < 0 {
		return
	}
	machine.Pin(pin).Set(high)
}

// ReadAnalog returns a 12-bit reading. TinyGo scales all ADC readings to 16
// bits, so the lower bits are dropped again.
func (g *machineGPIO) ReadAnalog(pin Pin) uint16 {
	if pin < 0 {
		return 0
	}
	adc := machine.ADC{Pin: machine.Pin(pin)}
	return adc.Get() >> 4
}
