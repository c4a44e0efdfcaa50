package ledcontroller

import "strconv"

// Mode is what a quick press changes.
type Mode uint8

const (
	ModeColor Mode = iota
	ModePattern

	// ModeBrightness is only entered from sleep with a long press, and left
	// with another long press.
	ModeBrightness
)

var modeNames = [...]string{"color", "pattern", "brightness"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// Color is the color (or color scheme) used in color and pattern mode.
type Color uint8

const (
	White Color = iota
	Red
	Orange
	Yellow
	Green
	Blue
	Pink
	Purple
	Cycle
	Rainbow

	numColors = iota

	// WLEDMode hands the strip to the host effect engine. It is not part of
	// the button cycle, it can only be selected through the JSON state API.
	WLEDMode Color = 11
)

var colorNames = [...]string{"white", "red", "orange", "yellow", "green", "blue", "pink", "purple", "cycle", "rainbow"}

func (c Color) String() string {
	if c == WLEDMode {
		return "wled"
	}
	if int(c) < len(colorNames) {
		return colorNames[c]
	}
	return "Color(" + strconv.Itoa(int(c)) + ")"
}

func (c Color) valid() bool {
	return c < numColors || c == WLEDMode
}

// next returns the color a quick press switches to.
func (c Color) next() Color {
	if c == WLEDMode {
		return White
	}
	return (c + 1) % numColors
}

// Pattern is an animation shown in pattern mode.
type Pattern uint8

const (
	UniformBlink Pattern = iota
	Chaser
	MultipleChaser
	RandomBlink
	SoundPulsing
	SoundClockwise
	SoundRandom

	numPatterns = iota
)

var patternNames = [...]string{"uniform-blink", "chaser", "multiple-chaser", "random-blink", "sound-pulsing", "sound-clockwise", "sound-random"}

func (p Pattern) String() string {
	if int(p) < len(patternNames) {
		return patternNames[p]
	}
	return "Pattern(" + strconv.Itoa(int(p)) + ")"
}

func (p Pattern) next() Pattern {
	return (p + 1) % numPatterns
}
