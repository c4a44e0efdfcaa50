package ledcontroller

import "github.com/aykevl/tinygl/pixel"

// Time in ms it takes the cycle color to blend into the next palette entry.
const colorCycleInterval = 2000

// Palettes, as functions of the maximum brightness. The rainbow palette is
// laid out over the strip, the cycle palette over time.

func rainbowPalette(level uint8) [10]pixel.RGB888 {
	return [10]pixel.RGB888{
		{R: level},                     // red
		{R: level, G: pct(level, 100)}, // orange
		{R: level, G: pct(level, 165)}, // yellow
		{R: level / 2, G: level},       // lime
		{G: level},                     // green
		{G: level, B: level / 2},       // spring green
		{G: level, B: level},           // cyan
		{B: level},                     // blue
		{R: level / 2, B: level},       // violet
		{R: level, B: level / 2},       // pink
	}
}

func cyclePalette(level uint8) [12]pixel.RGB888 {
	return [12]pixel.RGB888{
		{R: level},                     // red
		{R: level, G: pct(level, 100)}, // orange
		{R: level, G: pct(level, 165)}, // yellow
		{R: level / 2, G: level},       // lime
		{G: level},                     // green
		{G: level, B: level / 2},       // spring green
		{G: level, B: level},           // cyan
		{G: level / 2, B: level},       // azure
		{B: level},                     // blue
		{R: level / 2, B: level},       // violet
		{R: level, B: level},           // magenta
		{R: level, B: level / 2},       // pink
	}
}

// pct scales v by n/255.
func pct(v, n uint8) uint8 {
	return uint8(uint16(v) * uint16(n) / 255)
}

// solidColor returns the color of the single-color choices.
func solidColor(c Color, level uint8) pixel.RGB888 {
	switch c {
	case Red:
		return pixel.RGB888{R: level}
	case Orange:
		return pixel.RGB888{R: level, G: pct(level, 100)}
	case Yellow:
		return pixel.RGB888{R: level, G: pct(level, 165)}
	case Green:
		return pixel.RGB888{G: level}
	case Blue:
		return pixel.RGB888{B: level}
	case Pink:
		return pixel.RGB888{R: level, B: level / 2}
	case Purple:
		return pixel.RGB888{R: level / 2, B: level / 2}
	default:
		return pixel.RGB888{R: level, G: level, B: level}
	}
}

// cycleColor returns the cycle color at the given time.
func cycleColor(level uint8, now uint32) pixel.RGB888 {
	palette := cyclePalette(level)
	index := (now / colorCycleInterval) % uint32(len(palette))
	fraction := float32(now%colorCycleInterval) / colorCycleInterval
	return interpolate(palette[index], palette[(index+1)%uint32(len(palette))], fraction)
}

// interpolate blends linearly from a (fraction 0) to b (fraction 1).
func interpolate(a, b pixel.RGB888, fraction float32) pixel.RGB888 {
	blend := func(x, y uint8) uint8 {
		return uint8(float32(x) + (float32(y)-float32(x))*fraction)
	}
	return pixel.RGB888{R: blend(a.R, b.R), G: blend(a.G, b.G), B: blend(a.B, b.B)}
}

// colorAt returns the color of pixel i at the given time. WLEDMode has no
// color of its own and returns black.
func colorAt(c Color, level uint8, i int, now uint32) pixel.RGB888 {
	switch c {
	case WLEDMode:
		return pixel.RGB888{}
	case Rainbow:
		palette := rainbowPalette(level)
		return palette[i%len(palette)]
	case Cycle:
		return cycleColor(level, now)
	default:
		return solidColor(c, level)
	}
}

// warningColor is shown while the button is held long enough for a long
// press.
func warningColor(level uint8) pixel.RGB888 {
	return pixel.RGB888{R: level, G: level}
}

// scaleColor scales a color by a 0-255 brightness.
func scaleColor(c pixel.RGB888, brightness uint8) pixel.RGB888 {
	return pixel.RGB888{
		R: pct(c.R, brightness),
		G: pct(c.G, brightness),
		B: pct(c.B, brightness),
	}
}
