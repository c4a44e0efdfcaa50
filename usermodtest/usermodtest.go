// Package usermodtest provides fake peripherals for testing usermods without
// hardware or a simulator window. Time only advances when a test says so.
package usermodtest

import (
	"github.com/aykevl/tinygl/pixel"
	"github.com/aykevl/usermod"
)

// Clock is a manually advanced millisecond clock.
type Clock struct {
	Now uint32
}

func (c *Clock) Millis() uint32 {
	return c.Now
}

// Advance moves the clock forward. The counter wraps around like a real one.
func (c *Clock) Advance(ms uint32) {
	c.Now += ms
}

// PinWrite records a single Set call.
type PinWrite struct {
	At   uint32
	Pin  usermod.Pin
	High bool
}

// GPIO is a fake pin interface. Inputs are set by the test, outputs are
// recorded.
type GPIO struct {
	clock  *Clock
	modes  map[usermod.Pin]usermod.PinMode
	levels map[usermod.Pin]bool
	analog map[usermod.Pin]uint16

	// Writes contains every Set call in order.
	Writes []PinWrite
}

func newGPIO(clock *Clock) *GPIO {
	return &GPIO{
		clock:  clock,
		modes:  make(map[usermod.Pin]usermod.PinMode),
		levels: make(map[usermod.Pin]bool),
		analog: make(map[usermod.Pin]uint16),
	}
}

func (g *GPIO) Configure(pin usermod.Pin, mode usermod.PinMode) {
	g.modes[pin] = mode
	if _, ok := g.levels[pin]; !ok && mode == usermod.PinInputPullup {
		g.levels[pin] = true
	}
}

func (g *GPIO) Get(pin usermod.Pin) bool {
	return g.levels[pin]
}

func (g *GPIO) Set(pin usermod.Pin, high bool) {
	g.levels[pin] = high
	g.Writes = append(g.Writes, PinWrite{At: g.clock.Now, Pin: pin, High: high})
}

func (g *GPIO) ReadAnalog(pin usermod.Pin) uint16 {
	return g.analog[pin]
}

// SetInput sets the level that Get returns for a pin.
func (g *GPIO) SetInput(pin usermod.Pin, high bool) {
	g.levels[pin] = high
}

// SetAnalog sets the raw value that ReadAnalog returns for a pin.
func (g *GPIO) SetAnalog(pin usermod.Pin, value uint16) {
	g.analog[pin] = value
}

// Level returns the current level of a pin.
func (g *GPIO) Level(pin usermod.Pin) bool {
	return g.levels[pin]
}

// Mode returns the mode a pin was configured in, and whether it was
// configured at all.
func (g *GPIO) Mode(pin usermod.Pin) (usermod.PinMode, bool) {
	mode, ok := g.modes[pin]
	return mode, ok
}

// WritesTo returns all writes to a single pin.
func (g *GPIO) WritesTo(pin usermod.Pin) []PinWrite {
	var writes []PinWrite
	for _, w := range g.Writes {
		if w.Pin == pin {
			writes = append(writes, w)
		}
	}
	return writes
}

// Audio is a fake microphone returning a fixed buffer.
type Audio struct {
	ConfigureErr error
	ReadErr      error
	Samples      []int32

	Config     usermod.AudioConfig
	Configured bool
	Reads      int
}

func (a *Audio) Configure(config usermod.AudioConfig) error {
	if a.ConfigureErr != nil {
		return a.ConfigureErr
	}
	a.Config = config
	a.Configured = true
	return nil
}

func (a *Audio) Read(samples []int32) (int, error) {
	a.Reads++
	if a.ReadErr != nil {
		return 0, a.ReadErr
	}
	return copy(samples, a.Samples), nil
}

// LEDs records every frame written to it.
type LEDs struct {
	Frames [][]pixel.RGB888
}

func (l *LEDs) WriteLEDs(data []pixel.RGB888) error {
	frame := make([]pixel.RGB888, len(data))
	copy(frame, data)
	l.Frames = append(l.Frames, frame)
	return nil
}

// Last returns the last frame, or nil if nothing was shown yet.
func (l *LEDs) Last() []pixel.RGB888 {
	if len(l.Frames) == 0 {
		return nil
	}
	return l.Frames[len(l.Frames)-1]
}

// Rig is a host wired to fake peripherals.
type Rig struct {
	Host  *usermod.Host
	Clock *Clock
	GPIO  *GPIO
	Audio *Audio
	LEDs  *LEDs
}

// New returns a rig with a strip of numLEDs pixels. The clock starts at 0.
func New(numLEDs int) *Rig {
	clock := &Clock{}
	r := &Rig{
		Clock: clock,
		GPIO:  newGPIO(clock),
		Audio: &Audio{},
		LEDs:  &LEDs{},
	}
	r.Host = usermod.NewHost(usermod.HostConfig{
		Clock:   r.Clock,
		GPIO:    r.GPIO,
		Audio:   r.Audio,
		LEDs:    r.LEDs,
		NumLEDs: numLEDs,
	})
	return r
}

// Run advances the clock in steps of step milliseconds and runs a host loop
// after every step, until total milliseconds have passed.
func (r *Rig) Run(total, step uint32) {
	for elapsed := uint32(0); elapsed < total; elapsed += step {
		r.Clock.Advance(step)
		r.Host.Loop()
	}
}
