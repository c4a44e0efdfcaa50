//go:build rp2040

package usermod

import (
	"machine"

	"github.com/aykevl/tinygl/pixel"
	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"
)

const (
	Name = "pico"

	ledDataPin = machine.GPIO16
)

var (
	Uptime          = uptimeClock{}
	GPIO            = &machineGPIO{}
	Microphone      = noMicrophone{} // the PIO I2S program only transmits
	AddressableLEDs = &pioLEDs{}
)

type pioLEDs struct {
	ws  *piolib.WS2812B
	raw []uint32
}

// WriteLEDs sends the data to a WS2812 strip using a PIO state machine, so the
// CPU doesn't have to bit-bang the signal with interrupts disabled.
func (l *pioLEDs) WriteLEDs(data []pixel.RGB888) error {
	if l.ws == nil {
		sm, err := pio.PIO0.ClaimStateMachine()
		if err != nil {
			return err
		}
		ws, err := piolib.NewWS2812B(sm, ledDataPin)
		if err != nil {
			return err
		}
		l.ws = ws
	}
	l.raw = l.raw[:0]
	for _, c := range data {
		l.raw = append(l.raw, uint32(c.G)<<24|uint32(c.R)<<16|uint32(c.B)<<8)
	}
	return l.ws.WriteRaw(l.raw)
}
