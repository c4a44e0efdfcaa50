package powermgmt

import (
	"fmt"

	"github.com/aykevl/usermod"
)

// Config is the persisted configuration, stored under the usermod name.
type Config struct {
	Enabled bool `json:"enabled"`

	// Output that keeps the power supply on while high.
	OutputPin usermod.Pin `json:"outputPin"`

	// Active-low shutdown request input (for example a power switch).
	InputPin usermod.Pin `json:"inputPin"`

	// ADC pin behind the battery voltage divider.
	VbatPin usermod.Pin `json:"vbatPin"`

	// Second output that keeps the power supply on while high.
	KeepAlivePin usermod.Pin `json:"keepAlivePin"`

	// How long the input must be held low before shutting down, in ms.
	ShutdownDelay uint32 `json:"shutdownDelay"`

	// Shut down when the calibrated battery voltage drops to this value.
	LowBatteryThreshold float32 `json:"lowBatteryThreshold"`

	// Shut down after this many ms without user activity.
	KeepAliveTimeout uint32 `json:"keepAliveTimeout"`
}

// DefaultConfig returns the configuration used when nothing was stored yet.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		OutputPin:           33,
		InputPin:            35,
		VbatPin:             7,
		KeepAlivePin:        1,
		ShutdownDelay:       5000,
		LowBatteryThreshold: 3.2,
		KeepAliveTimeout:    360_000,
	}
}

func (c Config) validate() error {
	for _, p := range []struct {
		name string
		pin  usermod.Pin
	}{
		{"outputPin", c.OutputPin},
		{"inputPin", c.InputPin},
		{"vbatPin", c.VbatPin},
		{"keepAlivePin", c.KeepAlivePin},
	} {
		if p.pin < 0 {
			return fmt.Errorf("powermgmt: %s must be set, got %d", p.name, p.pin)
		}
	}
	if c.KeepAliveTimeout == 0 {
		return fmt.Errorf("powermgmt: keepAliveTimeout must not be 0")
	}
	return nil
}
