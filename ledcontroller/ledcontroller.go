// Package ledcontroller implements a single-button LED strip controller.
//
// Button behavior:
//   - quick press: next color (in color mode) or next pattern (in pattern
//     mode), or wake up with the last used settings when sleeping
//   - long press: switch between color and pattern mode, or select the
//     brightness when sleeping
//   - very long press: go to sleep (this happens while the button is still
//     held)
//
// Three of the patterns react to sound from an I2S microphone.
package ledcontroller

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/aykevl/tinygl/pixel"
	"github.com/aykevl/usermod"
	"github.com/hashicorp/go-hclog"
)

// Name is the key of this usermod in the config, state and info documents.
const Name = "LED_Controller"

// Brightness levels to choose from in brightness selection.
var brightnessLevels = [...]uint8{64, 128, 192, 255}

// LEDController is the LED controller usermod.
type LEDController struct {
	host   *usermod.Host
	logger hclog.Logger
	config Config

	initDone  bool
	buttonPin usermod.Pin // NoPin if there is no usable button
	button    button

	// The warning color is shown while the button is held, nothing else is
	// drawn.
	flashing bool

	// Sleep was triggered while the button was held, so its release does
	// nothing.
	ignoreRelease bool

	mode    Mode
	color   Color
	pattern Pattern
	active  bool

	// Settings to resume with when waking up. They are saved when going to
	// sleep.
	lastMode    Mode
	lastColor   Color
	lastPattern Pattern

	maxBrightness   uint8
	brightnessLevel int

	// Whether the host effect engine currently renders the strip.
	hostControl bool

	audio    audio
	renderer renderer
}

var (
	_ usermod.Usermod        = (*LEDController)(nil)
	_ usermod.StateReporter  = (*LEDController)(nil)
	_ usermod.InfoReporter   = (*LEDController)(nil)
	_ usermod.SchemaProvider = (*LEDController)(nil)
)

// New returns an LED controller with the default configuration. It starts
// asleep, in color mode with white selected.
func New(host *usermod.Host) *LEDController {
	c := &LEDController{
		host:            host,
		logger:          host.Logger.Named("ledcontroller"),
		config:          DefaultConfig(),
		buttonPin:       usermod.NoPin,
		maxBrightness:   brightnessLevels[1],
		brightnessLevel: 1,
	}
	c.audio = audio{input: host.Audio, logger: c.logger}
	c.renderer = renderer{
		strip:      host.Strip,
		audio:      &c.audio,
		intn:       rand.Intn,
		oddPhase:   true,
		lastRandom: -1,
		lastSound:  -1,
	}
	return c
}

func (c *LEDController) Name() string {
	return Name
}

func (c *LEDController) ID() uint16 {
	return usermod.IDLEDController
}

// Config returns the current configuration.
func (c *LEDController) Config() Config {
	return c.config
}

// Setup initializes the microphone and the button, and turns all LEDs off.
func (c *LEDController) Setup() {
	err := c.audio.init(c.host.Pins, c.config.I2SPins)
	switch {
	case err == nil:
		c.logger.Info("I2S microphone initialized", "sd", c.config.I2SPins.SD, "ws", c.config.I2SPins.WS, "sck", c.config.I2SPins.SCK)
	case errors.Is(err, usermod.ErrPeripheralUnavailable):
		c.logger.Warn("no microphone, sound reactive patterns will be dark", "error", err)
	default:
		c.logger.Error("could not initialize microphone", "error", err)
	}

	if pin := c.config.ButtonPin; pin >= 0 {
		if err := c.host.Pins.Allocate(pin, false, Name); err != nil {
			c.logger.Error("button disabled", "error", err)
		} else {
			c.host.GPIO.Configure(pin, usermod.PinInputPullup)
			c.buttonPin = pin
		}
	}

	c.active = false
	c.renderer.restart(c.host.Clock.Millis())
	c.host.Strip.Show()
	c.initDone = true
}

func (c *LEDController) Loop() {
	if !c.config.Enabled || !c.initDone || c.host.Strip.IsUpdating() {
		return
	}
	now := c.host.Clock.Millis()
	if c.buttonPin >= 0 {
		c.handleButton(now)
	}
	c.update(now)
}

func (c *LEDController) Connected() {}

func (c *LEDController) handleButton(now uint32) {
	pressed := !c.host.GPIO.Get(c.buttonPin) // active low
	event, duration := c.button.update(pressed, now)
	switch event {
	case eventHoldLong:
		c.flashing = true
		c.fill(warningColor(c.maxBrightness))
	case eventHoldSleep:
		if c.mode == ModeBrightness {
			return
		}
		c.flashing = false
		c.ignoreRelease = true
		c.sleep()
	case eventRelease:
		if c.flashing && c.hostControl {
			// The host only repaints a static segment when triggered.
			c.host.Strip.Trigger()
		}
		c.flashing = false
		if c.ignoreRelease {
			c.ignoreRelease = false
			return
		}
		c.handlePress(classify(duration), now)
	}
}

func (c *LEDController) handlePress(kind pressKind, now uint32) {
	switch {
	case c.mode == ModeBrightness:
		switch kind {
		case pressQuick:
			c.cycleBrightness()
		case pressLong, pressSleep:
			c.exitBrightnessSelection(now)
		}
	case !c.active:
		switch kind {
		case pressQuick:
			c.wake(now)
		case pressLong:
			c.enterBrightnessSelection()
		case pressSleep:
			c.sleep()
		}
	default:
		switch kind {
		case pressQuick:
			c.advance(now)
		case pressLong:
			c.toggleMode(now)
		case pressSleep:
			c.sleep()
		}
	}
}

// advance selects the next color or pattern.
func (c *LEDController) advance(now uint32) {
	switch c.mode {
	case ModeColor:
		c.color = c.color.next()
		c.logger.Info("color changed", "color", c.color)
	case ModePattern:
		c.pattern = c.pattern.next()
		c.restart(now)
		c.logger.Info("pattern changed", "pattern", c.pattern)
	}
}

// toggleMode switches between color and pattern mode. Pattern mode always
// starts with the first pattern.
func (c *LEDController) toggleMode(now uint32) {
	switch c.mode {
	case ModeColor:
		c.mode = ModePattern
		c.pattern = UniformBlink
		c.restart(now)
	case ModePattern:
		c.mode = ModeColor
	}
	c.logger.Info("mode changed", "mode", c.mode)
}

// sleep turns the strip off and remembers the current settings.
func (c *LEDController) sleep() {
	if c.hostControl {
		c.releaseHostControl()
	}
	strip := c.host.Strip
	strip.SetBrightness(0)
	strip.Show()
	if c.mode == ModeBrightness {
		// Nothing to remember, go back to what was there before.
		c.mode = c.lastMode
	} else {
		c.lastMode = c.mode
		c.lastColor = c.color
		c.lastPattern = c.pattern
	}
	c.active = false
	strip.Clear()
	strip.Show()
	c.logger.Info("sleeping")
}

// wake resumes the settings from before the last sleep.
func (c *LEDController) wake(now uint32) {
	c.resume(now)
	c.host.Strip.SetBrightness(255)
	c.logger.Info("awake", "mode", c.mode, "color", c.color, "pattern", c.pattern)
}

func (c *LEDController) resume(now uint32) {
	c.active = true
	c.mode = c.lastMode
	c.color = c.lastColor
	c.pattern = c.lastPattern
	c.restart(now)
}

// restart restarts the pattern animation. The restart clears the strip
// buffer, so the host has to repaint when it owns the strip.
func (c *LEDController) restart(now uint32) {
	c.renderer.restart(now)
	if c.hostControl {
		c.host.Strip.Trigger()
	}
}

func (c *LEDController) enterBrightnessSelection() {
	c.mode = ModeBrightness
	c.host.Strip.SetBrightness(255)
	c.fill(pixel.RGB888{R: c.maxBrightness, G: c.maxBrightness, B: c.maxBrightness})
	c.logger.Info("brightness selection", "brightness", c.maxBrightness)
}

func (c *LEDController) cycleBrightness() {
	c.brightnessLevel = (c.brightnessLevel + 1) % len(brightnessLevels)
	c.maxBrightness = brightnessLevels[c.brightnessLevel]
	c.fill(pixel.RGB888{R: c.maxBrightness, G: c.maxBrightness, B: c.maxBrightness})
	c.logger.Debug("brightness changed", "brightness", c.maxBrightness)
}

func (c *LEDController) exitBrightnessSelection(now uint32) {
	c.resume(now)
	c.logger.Info("brightness selected", "brightness", c.maxBrightness)
}

// update draws the current color or pattern, or hands the strip to the host
// effect engine in WLED mode.
func (c *LEDController) update(now uint32) {
	if !c.active || c.flashing || c.mode == ModeBrightness {
		return
	}
	if c.color == WLEDMode {
		if !c.hostControl {
			c.takeHostControl()
		}
		return
	}
	if c.hostControl {
		c.releaseHostControl()
	}
	switch c.mode {
	case ModeColor:
		c.renderer.drawColor(c.color, c.maxBrightness, now)
	case ModePattern:
		c.renderer.drawPattern(c.pattern, c.color, c.maxBrightness, now)
	}
}

// takeHostControl lets the host render the main segment with a static
// effect.
func (c *LEDController) takeHostControl() {
	c.host.Strip.MainSegment().SetMode(usermod.ModeStatic)
	c.host.Strip.SetHostControl(true)
	c.hostControl = true
	c.logger.Info("strip handed to the host effect engine")
}

// releaseHostControl takes the strip back from the host.
func (c *LEDController) releaseHostControl() {
	strip := c.host.Strip
	seg := strip.MainSegment()
	seg.SetMode(usermod.ModeStatic)
	seg.Clear()
	strip.Trigger()
	strip.SetHostControl(false)
	c.hostControl = false
	c.logger.Info("strip taken back from the host effect engine")
}

func (c *LEDController) fill(color pixel.RGB888) {
	c.host.Strip.Fill(color)
	c.host.Strip.Show()
}

func (c *LEDController) AddToConfig() any {
	return c.config
}

// ReadFromConfig reads the stored config on top of the current one, so that
// missing keys keep their value. Pins are only used in Setup.
func (c *LEDController) ReadFromConfig(raw json.RawMessage) error {
	if raw == nil {
		return usermod.ErrConfigMissing
	}
	config := c.config
	if err := json.Unmarshal(raw, &config); err != nil {
		return fmt.Errorf("ledcontroller: could not read config: %w", err)
	}
	if err := config.validate(); err != nil {
		return err
	}
	c.config = config
	return nil
}

func (c *LEDController) ConfigSchema() any {
	return configSchema()
}

type state struct {
	Enabled    bool    `json:"enabled"`
	Mode       Mode    `json:"mode"`
	Color      Color   `json:"color"`
	Pattern    Pattern `json:"pattern"`
	Active     bool    `json:"active"`
	Brightness uint8   `json:"brightness"`
}

func (c *LEDController) AddToJSONState() any {
	return state{
		Enabled:    c.config.Enabled,
		Mode:       c.mode,
		Color:      c.color,
		Pattern:    c.pattern,
		Active:     c.active,
		Brightness: c.maxBrightness,
	}
}

// ReadFromJSONState applies a partial state update. While the controller is
// off, mode, color and pattern changes are what it resumes with when woken up.
// Brightness selection can't be entered this way, mode 2 is rejected.
func (c *LEDController) ReadFromJSONState(raw json.RawMessage) (bool, error) {
	var update struct {
		Enabled    *bool    `json:"enabled"`
		Mode       *Mode    `json:"mode"`
		Color      *Color   `json:"color"`
		Pattern    *Pattern `json:"pattern"`
		Active     *bool    `json:"active"`
		Brightness *uint8   `json:"brightness"`
	}
	if err := json.Unmarshal(raw, &update); err != nil {
		return false, fmt.Errorf("ledcontroller: could not read state: %w", err)
	}
	if update.Mode != nil && *update.Mode != ModeColor && *update.Mode != ModePattern {
		return false, fmt.Errorf("ledcontroller: invalid mode %d", *update.Mode)
	}
	if update.Color != nil && !update.Color.valid() {
		return false, fmt.Errorf("ledcontroller: invalid color %d", *update.Color)
	}
	if update.Pattern != nil && *update.Pattern >= numPatterns {
		return false, fmt.Errorf("ledcontroller: invalid pattern %d", *update.Pattern)
	}

	now := c.host.Clock.Millis()
	changed := false
	if update.Enabled != nil && *update.Enabled != c.config.Enabled {
		c.config.Enabled = *update.Enabled
		if !c.config.Enabled && c.hostControl {
			c.releaseHostControl()
		}
		changed = true
	}
	if update.Brightness != nil && *update.Brightness != c.maxBrightness {
		c.maxBrightness = *update.Brightness
		changed = true
	}
	if update.Mode != nil && *update.Mode != c.resumeMode() {
		if c.mode != ModeBrightness {
			c.mode = *update.Mode
		}
		if !c.active {
			c.lastMode = *update.Mode
		}
		c.restart(now)
		changed = true
	}
	if update.Color != nil && *update.Color != c.color {
		c.color = *update.Color
		if !c.active {
			c.lastColor = c.color
		}
		changed = true
	}
	if update.Pattern != nil && *update.Pattern != c.pattern {
		c.pattern = *update.Pattern
		if !c.active {
			c.lastPattern = c.pattern
		}
		c.restart(now)
		changed = true
	}
	if update.Active != nil {
		switch {
		case !*update.Active && (c.active || c.mode == ModeBrightness):
			c.sleep()
			changed = true
		case *update.Active && c.mode == ModeBrightness:
			c.exitBrightnessSelection(now)
			changed = true
		case *update.Active && !c.active:
			c.wake(now)
			changed = true
		}
	}
	return changed, nil
}

// resumeMode returns the color or pattern mode, also during brightness
// selection.
func (c *LEDController) resumeMode() Mode {
	if c.mode == ModeBrightness {
		return c.lastMode
	}
	return c.mode
}

type info struct {
	Enabled        bool    `json:"enabled"`
	I2SInitialized bool    `json:"i2s_initialized"`
	CurrentMode    Mode    `json:"current_mode"`
	CurrentColor   Color   `json:"current_color"`
	CurrentPattern Pattern `json:"current_pattern"`
	IsActive       bool    `json:"is_active"`
}

func (c *LEDController) AddToJSONInfo() any {
	return info{
		Enabled:        c.config.Enabled,
		I2SInitialized: c.audio.initialized,
		CurrentMode:    c.mode,
		CurrentColor:   c.color,
		CurrentPattern: c.pattern,
		IsActive:       c.active,
	}
}
