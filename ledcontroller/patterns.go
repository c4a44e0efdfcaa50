package ledcontroller

import (
	"github.com/aykevl/tinygl/pixel"
	"github.com/aykevl/usermod"
)

// Pattern timing, in ms.
const (
	patternInterval = 100 // shortest time between two pattern frames
	blinkInterval   = 200
	chaseInterval   = 250
)

// Sound reactive tuning. The averages are of raw 32-bit I2S samples.
const (
	soundGain          = 4.0
	pulsingDivisor     = 25_000_000.0
	clockwiseFullScale = 50_000_000
	soundThreshold     = 2_000_000
	pulsingSmoothing   = 0.2 // weight of the previous value
)

// renderer draws colors and patterns into the strip.
type renderer struct {
	strip *usermod.Strip
	audio *audio

	// Random source for the random patterns, returns [0, n).
	intn func(n int) int

	lastFrame uint32

	// Per-pattern state.
	blinkOn       bool
	lastBlink     uint32
	position      int
	oddPhase      bool
	lastSwitch    uint32
	lastRandom    int
	lastSound     int
	smoothedLevel float32
}

// restart restarts the pattern animation: the next frame is drawn right away
// and every pattern starts from its first step.
func (r *renderer) restart(now uint32) {
	r.lastFrame = now - patternInterval
	r.lastBlink = now - blinkInterval
	r.lastSwitch = now - chaseInterval
	r.blinkOn = false
	r.position = 0
	r.oddPhase = true
	r.lastRandom = -1
	r.lastSound = -1
	r.smoothedLevel = 0
	r.strip.Clear()
}

// drawColor fills the strip with the color (or rainbow/cycle colors). It is
// called every loop.
func (r *renderer) drawColor(c Color, level uint8, now uint32) {
	for i := 0; i < r.strip.Len(); i++ {
		r.strip.SetPixelColor(i, colorAt(c, level, i, now))
	}
	r.strip.Show()
}

// drawPattern advances the pattern animation, at most once per pattern
// interval.
func (r *renderer) drawPattern(p Pattern, c Color, level uint8, now uint32) {
	if usermod.Since(now, r.lastFrame) < patternInterval {
		return
	}
	r.lastFrame = now
	if r.strip.Len() == 0 {
		return
	}
	color := func(i int) pixel.RGB888 {
		return colorAt(c, level, i, now)
	}
	switch p {
	case UniformBlink:
		r.uniformBlink(color, now)
	case Chaser:
		r.chaser(color)
	case MultipleChaser:
		r.multipleChaser(color, now)
	case RandomBlink:
		r.randomBlink(color, now)
	case SoundPulsing:
		r.soundPulsing(color, level)
	case SoundClockwise:
		r.soundClockwise(color)
	case SoundRandom:
		r.soundRandom(color)
	}
}

func (r *renderer) uniformBlink(color func(int) pixel.RGB888, now uint32) {
	if usermod.Since(now, r.lastBlink) < blinkInterval {
		return
	}
	r.lastBlink = now
	r.blinkOn = !r.blinkOn
	if r.blinkOn {
		for i := 0; i < r.strip.Len(); i++ {
			r.strip.SetPixelColor(i, color(i))
		}
	} else {
		r.strip.Clear()
	}
	r.strip.Show()
}

// chaser moves a window of three pixels one pixel per frame.
func (r *renderer) chaser(color func(int) pixel.RGB888) {
	n := r.strip.Len()
	r.strip.Clear()
	for i := 0; i < 3; i++ {
		index := (r.position + i) % n
		r.strip.SetPixelColor(index, color(index))
	}
	r.strip.Show()
	r.position = (r.position + 1) % n
}

// multipleChaser alternates between the even and the odd pixels.
func (r *renderer) multipleChaser(color func(int) pixel.RGB888, now uint32) {
	if usermod.Since(now, r.lastSwitch) < chaseInterval {
		return
	}
	r.lastSwitch = now
	r.strip.Clear()
	for i := 0; i < r.strip.Len(); i++ {
		if (i%2 == 0) != r.oddPhase {
			r.strip.SetPixelColor(i, color(i))
		}
	}
	r.strip.Show()
	r.oddPhase = !r.oddPhase
}

func (r *renderer) randomBlink(color func(int) pixel.RGB888, now uint32) {
	if usermod.Since(now, r.lastBlink) < blinkInterval {
		return
	}
	r.lastBlink = now
	r.strip.Clear()
	index := r.randomPixel(r.lastRandom)
	r.strip.SetPixelColor(index, color(index))
	r.strip.Show()
	r.lastRandom = index
}

// randomPixel returns a random pixel index other than previous. With a single
// pixel there is no choice.
func (r *renderer) randomPixel(previous int) int {
	n := r.strip.Len()
	if n <= 1 {
		return 0
	}
	for {
		index := r.intn(n)
		if index != previous {
			return index
		}
	}
}

// soundPulsing pulses all pixels with the sound level.
func (r *renderer) soundPulsing(color func(int) pixel.RGB888, level uint8) {
	normalized := r.audio.average() / pulsingDivisor * soundGain
	if normalized > 1 {
		normalized = 1
	}
	r.smoothedLevel = (1-pulsingSmoothing)*normalized + pulsingSmoothing*r.smoothedLevel
	brightness := uint8(r.smoothedLevel * float32(level))
	for i := 0; i < r.strip.Len(); i++ {
		r.strip.SetPixelColor(i, scaleColor(color(i), brightness))
	}
	r.strip.Show()
}

// soundClockwise lights two arcs, starting at pixel 1 and 6, that grow with
// the sound level.
func (r *renderer) soundClockwise(color func(int) pixel.RGB888) {
	n := r.strip.Len()
	lit := int(int64(r.audio.average()) * int64(n) / clockwiseFullScale)
	if lit >= n {
		lit = n - 1
	}
	r.strip.Clear()
	for i := 0; i <= lit; i++ {
		for _, start := range [2]int{1, 6} {
			index := (start + i) % n
			r.strip.SetPixelColor(index, color(index))
		}
	}
	r.strip.Show()
}

// soundRandom moves a single pixel to a random place on every loud sound.
func (r *renderer) soundRandom(color func(int) pixel.RGB888) {
	if r.audio.average() > soundThreshold {
		index := r.randomPixel(r.lastSound)
		if r.lastSound >= 0 {
			r.strip.SetPixelColor(r.lastSound, pixel.RGB888{})
		}
		r.strip.SetPixelColor(index, color(index))
		r.lastSound = index
	}
	r.strip.Show()
}
