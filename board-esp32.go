//go:build esp32

package usermod

import (
	"image/color"
	"machine"

	"github.com/aykevl/tinygl/pixel"
	"tinygo.org/x/drivers/ws2812"
)

const (
	Name = "esp32"

	ledDataPin = machine.GPIO16
)

var (
	Uptime          = uptimeClock{}
	GPIO            = &machineGPIO{}
	Microphone      = noMicrophone{} // TODO: TinyGo has no I2S receive support for the ESP32 yet
	AddressableLEDs = &ws2812LEDs{}
)

type ws2812LEDs struct {
	device     ws2812.Device
	configured bool
	buf        []color.RGBA
}

// WriteLEDs sends the data to a WS2812 strip. The driver takes care of the GRB
// byte order these LEDs use.
func (l *ws2812LEDs) WriteLEDs(data []pixel.RGB888) error {
	if !l.configured {
		ledDataPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		l.device = ws2812.New(ledDataPin)
		l.configured = true
	}
	l.buf = l.buf[:0]
	for _, c := range data {
		l.buf = append(l.buf, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
	}
	return l.device.WriteColors(l.buf)
}
