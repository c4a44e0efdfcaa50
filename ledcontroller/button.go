package ledcontroller

import "github.com/aykevl/usermod"

// Button timing, in ms.
const (
	debounceTime   = 50
	quickPressTime = 500  // shorter than this is a quick press
	longPressTime  = 1000 // at least this is a long press
	sleepPressTime = 3000 // at least this puts the controller to sleep
)

type buttonEvent uint8

const (
	eventNone buttonEvent = iota

	// The button is still held and just passed the long press threshold.
	eventHoldLong

	// The button is still held and just passed the sleep threshold.
	eventHoldSleep

	// The button was released. The press duration is returned with it.
	eventRelease
)

type pressKind uint8

const (
	pressIgnored pressKind = iota // between quick and long
	pressQuick
	pressLong
	pressSleep
)

// classify returns the kind of press for the duration of a released press.
func classify(duration uint32) pressKind {
	switch {
	case duration < quickPressTime:
		return pressQuick
	case duration >= sleepPressTime:
		return pressSleep
	case duration >= longPressTime:
		return pressLong
	default:
		return pressIgnored
	}
}

// button debounces an active-low push button and measures how long it is
// held. A level only counts once it has been stable for longer than the
// debounce time, so press durations are measured between two stable levels.
type button struct {
	lastLevel  bool // raw, true = pressed
	lastChange uint32
	pressed    bool // debounced
	pressStart uint32
	longSent   bool
	sleepSent  bool
}

// update processes one reading of the button and returns at most one event.
func (b *button) update(pressed bool, now uint32) (buttonEvent, uint32) {
	if pressed != b.lastLevel {
		b.lastLevel = pressed
		b.lastChange = now
	}
	if usermod.Since(now, b.lastChange) <= debounceTime {
		return eventNone, 0
	}
	switch {
	case pressed && !b.pressed:
		b.pressed = true
		b.pressStart = now
		b.longSent = false
		b.sleepSent = false
	case pressed:
		duration := usermod.Since(now, b.pressStart)
		if duration > sleepPressTime && !b.sleepSent {
			b.sleepSent = true
			b.longSent = true
			return eventHoldSleep, duration
		}
		if duration > longPressTime && !b.longSent {
			b.longSent = true
			return eventHoldLong, duration
		}
	case b.pressed:
		b.pressed = false
		duration := usermod.Since(now, b.pressStart)
		if duration >= debounceTime {
			return eventRelease, duration
		}
	}
	return eventNone, 0
}
