package usermod

import "github.com/aykevl/tinygl/pixel"

// This file contains dummy devices, for boards which don't support a
// particular kind of device.

// Dummy audio input for boards without a (supported) microphone.
type noMicrophone struct{}

func (m noMicrophone) Configure(config AudioConfig) error {
	return ErrPeripheralUnavailable
}

func (m noMicrophone) Read(samples []int32) (int, error) {
	return 0, ErrPeripheralUnavailable
}

// Dummy LED output that discards all data.
// Used for hosts constructed without LEDs.
type noLEDs struct{}

func (l noLEDs) WriteLEDs(data []pixel.RGB888) error {
	return nil
}
