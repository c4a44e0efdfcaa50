package main

import (
	"github.com/aykevl/tinygl/pixel"
	"github.com/aykevl/usermod"
)

func main() {
	// Verify board name constant.
	var _ string = usermod.Name

	// Assert that all board peripherals implement the usual interfaces.
	var _ usermod.Clock = usermod.Uptime
	var _ usermod.PinIO = usermod.GPIO
	var _ usermod.AudioInput = usermod.Microphone
	var _ usermod.LEDOutput = usermod.AddressableLEDs

	// Assert that a host can be built from the board peripherals.
	host := usermod.NewHost(usermod.BoardConfig(12, nil))
	host.Strip.Fill(pixel.RGB888{R: 255})
}
