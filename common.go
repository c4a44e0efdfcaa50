// Package usermod is the host side of a small usermod (plugin) system for LED
// controller firmware. The host owns the clock, the GPIO and analog pins, the
// LED strip, the pin manager and the audio input, and drives every registered
// usermod through a fixed lifecycle: Setup once at boot, Loop on every cycle
// and Connected on every network (re)connect.
//
// Peripherals differ per board. They are defined in the board-*.go files,
// selected by build tags, and all boards define the same set of package level
// variables: Uptime, GPIO, Microphone and AddressableLEDs.
package usermod

import (
	"errors"
	"time"

	"github.com/aykevl/tinygl/pixel"
)

// Settings for the simulator. These can be modified at any time, but it is
// recommended to modify them before configuring any of the board peripherals.
//
// The pin numbers decide which simulated pins are wired to the controls in the
// simulator window. They default to the pins the usermods in this module use
// by default.
var Simulator = struct {
	WindowTitle string

	// Default number of addressable LEDs of simulator programs. The window
	// shows as many LEDs as are written to it.
	AddressableLEDs int

	// Active-low push button.
	ButtonPin Pin

	// Active-low switch (for example a power switch sense line).
	SwitchPin Pin

	// Analog pin driven by the battery slider. The slider is in raw 12-bit
	// ADC units.
	BatteryPin Pin

	// Output pins shown as indicators.
	OutputPins []Pin
}{
	WindowTitle:     "Usermod simulator",
	AddressableLEDs: 12,
	ButtonPin:       0,
	SwitchPin:       35,
	BatteryPin:      7,
	OutputPins:      []Pin{33, 1},
}

// Errors reported by the host and by usermods. None of them are fatal: they
// are logged and the affected functionality is skipped.
var (
	// A peripheral (typically the I2S microphone) could not be initialized
	// or is not supported on this board.
	ErrPeripheralUnavailable = errors.New("usermod: peripheral unavailable")

	// There is no configuration for this usermod yet, usually on first boot.
	// Defaults are used instead.
	ErrConfigMissing = errors.New("usermod: config missing")

	// A pin could not be allocated because it is invalid or already owned by
	// someone else.
	ErrPinConflict = errors.New("usermod: pin conflict")
)

// Pin is a GPIO pin number. The value NoPin means "not connected".
type Pin int8

// NoPin is used for optional pins that are not in use.
const NoPin Pin = -1

// PinMode is the mode a pin is configured in before use.
type PinMode uint8

const (
	PinInput PinMode = iota
	PinInputPullup
	PinOutput
	PinAnalog
)

// Clock returns the time since boot in milliseconds. The value wraps around
// after about 49 days, so intervals must always be computed with Since.
type Clock interface {
	Millis() uint32
}

// Since returns the number of milliseconds between then and now. It uses
// unsigned subtraction, so the result is correct across a wraparound of the
// millisecond counter as long as the real interval is shorter than the
// wraparound period.
func Since(now, then uint32) uint32 {
	return now - then
}

// PinIO is the digital and analog pin interface shared by all boards.
//
// There is no error channel: a failed read is indistinguishable from a low
// (or zero) reading.
type PinIO interface {
	// Configure the pin in the given mode. This must be done once before
	// reading from or writing to the pin.
	Configure(pin Pin, mode PinMode)

	// Get returns true for a high level.
	Get(pin Pin) bool

	// Set drives an output pin high (true) or low (false).
	Set(pin Pin, high bool)

	// ReadAnalog returns a raw 12-bit ADC reading, 0-4095.
	ReadAnalog(pin Pin) uint16
}

// AudioConfig is the configuration of an I2S microphone.
type AudioConfig struct {
	SD   Pin // data in
	WS   Pin // word select
	SCK  Pin // bit clock
	MCLK Pin // master clock, NoPin if not used

	SampleRate uint32

	// Read blocks for at most this long waiting for a full buffer.
	Timeout time.Duration
}

// AudioInput is a source of 32-bit audio samples.
type AudioInput interface {
	// Configure the audio input. It returns ErrPeripheralUnavailable if the
	// board has no usable audio input.
	Configure(config AudioConfig) error

	// Read fills samples and returns the number of samples read. It may block
	// up to the configured timeout.
	Read(samples []int32) (int, error)
}

// LEDOutput writes pixel data to a string of addressable LEDs.
//
// Data[0] is the first LED in the chain. Channel order (RGB, GRB, etc) is
// handled by the output.
type LEDOutput interface {
	WriteLEDs(data []pixel.RGB888) error
}
