package usermod

import (
	"github.com/aykevl/tinygl/pixel"
	"github.com/hashicorp/go-hclog"
)

// EffectMode is an effect of the host's effect engine.
type EffectMode uint8

const (
	// ModeStatic fills the segment with its primary color.
	ModeStatic EffectMode = iota
	// ModeBlink toggles the segment between its primary color and black.
	ModeBlink
)

// Segment is a host-owned region of the strip with its own effect mode. This
// host only has a single segment spanning the whole strip.
type Segment struct {
	Mode  EffectMode
	Color pixel.RGB888

	strip *Strip
}

// SetMode changes the effect of the segment and marks the host state as
// changed.
func (s *Segment) SetMode(mode EffectMode) {
	if s.Mode == mode {
		return
	}
	s.Mode = mode
	s.strip.stateChanged = true
	s.strip.triggered = true
}

// Clear sets all pixels of the segment to black.
func (s *Segment) Clear() {
	s.strip.Clear()
}

// Strip is the pixel buffer of the LED strip. Usermods draw into it with
// SetPixelColor/Fill/Clear and send it to the LEDs with Show.
//
// When host control is enabled, the host effect engine renders the main
// segment on every loop and overwrites whatever usermods draw.
type Strip struct {
	pixels     []pixel.RGB888
	scaled     []pixel.RGB888
	brightness uint8
	out        LEDOutput
	main       Segment

	hostControl  bool
	triggered    bool
	updating     bool
	stateChanged bool
	lastBlink    uint32
	blinkOn      bool

	logger hclog.Logger
}

// NewStrip returns a strip of numLEDs pixels, all black, at full brightness.
func NewStrip(numLEDs int, out LEDOutput, logger hclog.Logger) *Strip {
	s := &Strip{
		pixels:     make([]pixel.RGB888, numLEDs),
		scaled:     make([]pixel.RGB888, numLEDs),
		brightness: 255,
		out:        out,
		logger:     logger,
	}
	s.main = Segment{Mode: ModeStatic, Color: pixel.RGB888{R: 255, G: 160}, strip: s}
	return s
}

// Len returns the total number of pixels.
func (s *Strip) Len() int {
	return len(s.pixels)
}

// SetPixelColor sets a single pixel. Out of range indices are ignored.
func (s *Strip) SetPixelColor(i int, c pixel.RGB888) {
	if i < 0 || i >= len(s.pixels) {
		return
	}
	s.pixels[i] = c
}

// PixelColor returns the color of a single pixel, before brightness scaling.
func (s *Strip) PixelColor(i int) pixel.RGB888 {
	if i < 0 || i >= len(s.pixels) {
		return pixel.RGB888{}
	}
	return s.pixels[i]
}

// Fill sets every pixel to the same color.
func (s *Strip) Fill(c pixel.RGB888) {
	for i := range s.pixels {
		s.pixels[i] = c
	}
}

// Clear sets every pixel to black.
func (s *Strip) Clear() {
	s.Fill(pixel.RGB888{})
}

// SetBrightness sets the global brightness applied in Show. 0 turns the strip
// off, 255 is full brightness.
func (s *Strip) SetBrightness(brightness uint8) {
	s.brightness = brightness
}

// Brightness returns the global brightness.
func (s *Strip) Brightness() uint8 {
	return s.brightness
}

// Show writes the pixel buffer, scaled by the global brightness, to the LEDs.
func (s *Strip) Show() {
	for i, c := range s.pixels {
		s.scaled[i] = pixel.RGB888{
			R: scale8(c.R, s.brightness),
			G: scale8(c.G, s.brightness),
			B: scale8(c.B, s.brightness),
		}
	}
	s.updating = true
	err := s.out.WriteLEDs(s.scaled)
	s.updating = false
	if err != nil {
		s.logger.Error("could not write LED data", "error", err)
	}
}

// IsUpdating returns true while LED data is being sent out. Usermods skip their
// loop while this is the case.
func (s *Strip) IsUpdating() bool {
	return s.updating
}

// MainSegment returns the segment that spans the whole strip.
func (s *Strip) MainSegment() *Segment {
	return &s.main
}

// Trigger forces the effect engine to redraw on the next loop.
func (s *Strip) Trigger() {
	s.triggered = true
}

// SetHostControl hands rendering to the host effect engine (true) or takes it
// back for direct pixel writes (false).
func (s *Strip) SetHostControl(enabled bool) {
	s.hostControl = enabled
	s.triggered = true
}

// HostControl returns whether the host effect engine renders the strip.
func (s *Strip) HostControl() bool {
	return s.hostControl
}

// StateChanged reports whether the segment state was changed since the last
// call, and resets the flag.
func (s *Strip) StateChanged() bool {
	changed := s.stateChanged
	s.stateChanged = false
	return changed
}

// service runs the host effect engine for one loop.
func (s *Strip) service(now uint32) {
	if !s.hostControl {
		s.triggered = false
		return
	}
	switch s.main.Mode {
	case ModeStatic:
		if !s.triggered {
			return
		}
		s.Fill(s.main.Color)
	case ModeBlink:
		if !s.triggered && Since(now, s.lastBlink) < 500 {
			return
		}
		s.lastBlink = now
		s.blinkOn = !s.blinkOn
		if s.blinkOn {
			s.Fill(s.main.Color)
		} else {
			s.Clear()
		}
	}
	s.triggered = false
	s.Show()
}

// scale8 scales a color channel by a 0-255 brightness value.
func scale8(value, brightness uint8) uint8 {
	return uint8(uint16(value) * uint16(brightness) / 255)
}
