package ledcontroller

import (
	"fmt"

	"github.com/aykevl/usermod"
)

// Highest GPIO number accepted in the config.
const maxConfigPin = 48

// Config is the persisted configuration, stored under the usermod name.
type Config struct {
	Enabled   bool        `json:"enabled"`
	ButtonPin usermod.Pin `json:"buttonPin"`
	I2SPins   I2SPins     `json:"i2s_pins"`
}

// I2SPins are the pins of the I2S microphone. MCLK is optional, set it to -1
// if it isn't connected.
type I2SPins struct {
	SD   usermod.Pin `json:"i2s_sd_pin"`
	WS   usermod.Pin `json:"i2s_ws_pin"`
	SCK  usermod.Pin `json:"i2s_sck_pin"`
	MCLK usermod.Pin `json:"i2s_mclk_pin"`
}

// DefaultConfig returns the configuration used when nothing was stored yet.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		ButtonPin: 0,
		I2SPins: I2SPins{
			SD:   5,
			WS:   4,
			SCK:  6,
			MCLK: usermod.NoPin,
		},
	}
}

func (c Config) validate() error {
	for _, p := range []struct {
		name string
		pin  usermod.Pin
	}{
		{"buttonPin", c.ButtonPin},
		{"i2s_sd_pin", c.I2SPins.SD},
		{"i2s_ws_pin", c.I2SPins.WS},
		{"i2s_sck_pin", c.I2SPins.SCK},
		{"i2s_mclk_pin", c.I2SPins.MCLK},
	} {
		if p.pin < usermod.NoPin || p.pin > maxConfigPin {
			return fmt.Errorf("ledcontroller: %s out of range: %d", p.name, p.pin)
		}
	}
	return nil
}

// schema is a JSON schema node. Titles and descriptions double as the labels
// of the settings page.
type schema struct {
	Type        string            `json:"type"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Minimum     *int              `json:"minimum,omitempty"`
	Maximum     *int              `json:"maximum,omitempty"`
	Default     any               `json:"default,omitempty"`
	Properties  map[string]schema `json:"properties,omitempty"`
}

func pinSchema(title, description string, def usermod.Pin) schema {
	lo, hi := int(usermod.NoPin), maxConfigPin
	return schema{
		Type:        "integer",
		Title:       title,
		Description: description,
		Minimum:     &lo,
		Maximum:     &hi,
		Default:     int(def),
	}
}

func configSchema() schema {
	def := DefaultConfig()
	return schema{
		Type:        "object",
		Title:       "LED Controller",
		Description: "LED control system with color selection, patterns, and sound reactivity",
		Properties: map[string]schema{
			"enabled": {
				Type:        "boolean",
				Title:       "Enable LED Controller",
				Description: "Enable the LED Controller usermod",
				Default:     def.Enabled,
			},
			"buttonPin": pinSchema("Button Pin", "Active-low push button, -1 to disable", def.ButtonPin),
			"i2s_pins": {
				Type:        "object",
				Title:       "I2S Pin Configuration",
				Description: "Configure I2S pins for sound reactive features",
				Properties: map[string]schema{
					"i2s_sd_pin":   pinSchema("I2S SD Pin", "I2S Data pin (SD/DOUT)", def.I2SPins.SD),
					"i2s_ws_pin":   pinSchema("I2S WS Pin", "I2S Word Select pin (WS/LRCK)", def.I2SPins.WS),
					"i2s_sck_pin":  pinSchema("I2S SCK Pin", "I2S Clock pin (SCK/BCLK)", def.I2SPins.SCK),
					"i2s_mclk_pin": pinSchema("I2S MCLK Pin", "I2S Master Clock pin (optional, use -1 to disable)", def.I2SPins.MCLK),
				},
			},
		},
	}
}
