//go:build !baremetal

package usermod

// The simulator for a generic LED controller board. It shows:
//   * the addressable LED strip
//   * output pins (for example power control lines) as indicators
//   * a push button, a switch, a battery slider and a sound slider
//
// The usermod API doesn't use a mainloop of any kind, which would not be
// necessary anyway on embedded systems. But it is necessary on OSes, so to work
// around this the simulator is actually run in a separate process by starting
// the current process again and communicating over pipes (stdin/stdout in the
// simulator process).

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"golang.org/x/image/draw"
)

const runWindowCommand = "run-simulator-window"

// A healthy battery: about 3.7V after calibration.
const defaultBatteryRaw = 3500

func init() {
	if len(os.Args) >= 2 && os.Args[1] == runWindowCommand {
		// This is the simulator process.
		// Run the entire window in an init function, because that's the only
		// way to do this with the API that is exposed by this package.
		windowMain()
		os.Exit(0)
	}
}

var (
	ledsLock   sync.Mutex
	leds       []color.RGBA
	ledsPerRow = 12

	pinIndicators = make(map[int]*pinIndicator)
)

var (
	colorPinHigh = color.RGBA{R: 64, G: 200, B: 64, A: 255}
	colorPinLow  = color.RGBA{R: 200, G: 48, B: 48, A: 255}
)

// The main function for the window process.
func windowMain() {
	// Create LEDs.
	ledsWidget := canvas.NewRaster(func(w, h int) image.Image {
		ledsLock.Lock()
		defer ledsLock.Unlock()
		img := image.NewRGBA(image.Rect(0, 0, w, h))

		// Draw all the LEDs as squares, each 24 pixels in size with an 8 pixel
		// gap.
		rows := (len(leds) + ledsPerRow - 1) / ledsPerRow
		if rows == 0 {
			return img
		}
		scale := float64(h) / float64(rows*32)
		col := 0
		row := 0
		for _, c := range leds {
			x0 := int(float64(8+col*32) * scale)
			x1 := int(float64(8+col*32+24) * scale)
			y0 := int(float64(row*32) * scale)
			y1 := int(float64(row*32+24) * scale)
			area := image.Rect(x0, y0, x1, y1)
			draw.Draw(img, area, image.NewUniform(c), image.Pt(0, 0), draw.Src)
			col++
			if col >= ledsPerRow {
				col = 0
				row++
			}
		}
		return img
	})
	ledsWidget.Hidden = true

	pinsBox := fyne.NewContainerWithLayout(layout.NewHBoxLayout())

	button := newHoldButton("Button (space)")

	switchCheck := widget.NewCheck("Switch closed", func(closed bool) {
		if closed {
			fmt.Printf("switch 1\n")
		} else {
			fmt.Printf("switch 0\n")
		}
	})

	batteryLabel := widget.NewLabel("")
	batterySlider := widget.NewSlider(0, 4095)
	batterySlider.OnChanged = func(value float64) {
		batteryLabel.SetText(fmt.Sprintf("Battery ADC: %d", int(value)))
		fmt.Printf("battery %d\n", int(value))
	}

	soundLabel := widget.NewLabel("")
	soundSlider := widget.NewSlider(0, 100)
	soundSlider.OnChanged = func(value float64) {
		soundLabel.SetText(fmt.Sprintf("Sound level: %d%%", int(value)))
		fmt.Printf("sound %d\n", int(value))
	}

	// Create a window.
	a := app.New()
	w := a.NewWindow("Simulator")
	w.SetPadded(true)
	w.SetContent(fyne.NewContainerWithLayout(layout.NewVBoxLayout(),
		ledsWidget,
		pinsBox,
		button,
		switchCheck,
		batteryLabel, batterySlider,
		soundLabel, soundSlider))

	batterySlider.SetValue(defaultBatteryRaw)
	soundSlider.SetValue(0)

	// Use the space bar as an alternative for the push button.
	if deskCanvas, ok := w.Canvas().(desktop.Canvas); ok {
		deskCanvas.SetOnKeyDown(func(event *fyne.KeyEvent) {
			if event.Name == fyne.KeySpace {
				fmt.Printf("button-down\n")
			}
		})
		deskCanvas.SetOnKeyUp(func(event *fyne.KeyEvent) {
			if event.Name == fyne.KeySpace {
				fmt.Printf("button-up\n")
			}
		})
	}

	// Listen for events from the parent process (which includes LED data).
	go windowReceiveEvents(w, ledsWidget, pinsBox)

	// Show the window.
	w.ShowAndRun()
}

// Goroutine that listens for commands from the parent process.
func windowReceiveEvents(w fyne.Window, ledsWidget *canvas.Raster, pinsBox *fyne.Container) {
	r := bufio.NewReader(os.Stdin)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			// The parent process exited.
			os.Exit(0)
		}
		cmd := strings.Fields(line)[0]
		switch cmd {
		case "title":
			w.SetTitle(strings.TrimSpace(line[len("title"):]))
		case "output-pin":
			var pin int
			fmt.Sscanf(line, "%s %d\n", &cmd, &pin)
			if _, ok := pinIndicators[pin]; !ok {
				indicator := newPinIndicator(pin)
				pinIndicators[pin] = indicator
				pinsBox.Add(indicator.box)
			}
		case "pin-level":
			var pin, level int
			fmt.Sscanf(line, "%s %d %d\n", &cmd, &pin, &level)
			if indicator, ok := pinIndicators[pin]; ok {
				indicator.set(level != 0)
			}
		case "addressable-leds":
			// Read the LED data.
			var numLEDs int
			fmt.Sscanf(line, "%s %d\n", &cmd, &numLEDs)
			buf := make([]byte, numLEDs*3)
			io.ReadFull(r, buf)

			// Update the leds slice.
			ledsLock.Lock()
			if len(leds) != numLEDs {
				// LEDs were configured for the first time (probably).
				// Make sure we prepare for the given number of LEDs.
				leds = make([]color.RGBA, numLEDs)
				cols := ledsPerRow
				if cols > len(leds) {
					cols = len(leds)
				}
				rows := (len(leds) + ledsPerRow - 1) / ledsPerRow
				ledsWidget.SetMinSize(fyne.NewSize(float32(cols*32+8), float32(rows*32)))
				ledsWidget.Show()
			}
			for i := range leds {
				leds[i] = color.RGBA{
					R: gammaEncodeTable[buf[i*3+0]],
					G: gammaEncodeTable[buf[i*3+1]],
					B: gammaEncodeTable[buf[i*3+2]],
					A: 255,
				}
			}
			ledsLock.Unlock()
			ledsWidget.Refresh()
		default:
			fmt.Fprintln(os.Stderr, "unknown command:", cmd)
		}
	}
}

// Indicator for the level of a single output pin.
type pinIndicator struct {
	box  *fyne.Container
	lamp *canvas.Rectangle
}

func newPinIndicator(pin int) *pinIndicator {
	lamp := canvas.NewRectangle(colorPinLow)
	lamp.SetMinSize(fyne.NewSize(16, 16))
	label := widget.NewLabel(fmt.Sprintf("GPIO%d", pin))
	return &pinIndicator{
		box:  fyne.NewContainerWithLayout(layout.NewHBoxLayout(), lamp, label),
		lamp: lamp,
	}
}

func (p *pinIndicator) set(high bool) {
	if high {
		p.lamp.FillColor = colorPinHigh
	} else {
		p.lamp.FillColor = colorPinLow
	}
	p.lamp.Refresh()
}

var _ desktop.Mouseable = (*holdButton)(nil)

// Push button that reports both the press and the release to the parent
// process, so that press durations can be simulated.
type holdButton struct {
	widget.Button
}

func newHoldButton(label string) *holdButton {
	b := &holdButton{}
	b.Text = label
	b.ExtendBaseWidget(b)
	return b
}

func (b *holdButton) MouseDown(event *desktop.MouseEvent) {
	if event.Button == desktop.MouseButtonPrimary {
		fmt.Printf("button-down\n")
	}
}

func (b *holdButton) MouseUp(event *desktop.MouseEvent) {
	if event.Button == desktop.MouseButtonPrimary {
		fmt.Printf("button-up\n")
	}
}

// Gamma brightness lookup table:
// https://victornpb.github.io/gamma-table-generator
// gamma = 0.45 steps = 256 range = 0-255
var gammaEncodeTable = [256]uint8{
	0, 21, 28, 34, 39, 43, 46, 50, 53, 56, 59, 61, 64, 66, 68, 70,
	72, 74, 76, 78, 80, 82, 84, 85, 87, 89, 90, 92, 93, 95, 96, 98,
	99, 101, 102, 103, 105, 106, 107, 109, 110, 111, 112, 114, 115, 116, 117, 118,
	119, 120, 122, 123, 124, 125, 126, 127, 128, 129, 130, 131, 132, 133, 134, 135,
	136, 137, 138, 139, 140, 141, 142, 143, 144, 144, 145, 146, 147, 148, 149, 150,
	151, 151, 152, 153, 154, 155, 156, 156, 157, 158, 159, 160, 160, 161, 162, 163,
	164, 164, 165, 166, 167, 167, 168, 169, 170, 170, 171, 172, 173, 173, 174, 175,
	175, 176, 177, 178, 178, 179, 180, 180, 181, 182, 182, 183, 184, 184, 185, 186,
	186, 187, 188, 188, 189, 190, 190, 191, 192, 192, 193, 194, 194, 195, 195, 196,
	197, 197, 198, 199, 199, 200, 200, 201, 202, 202, 203, 203, 204, 205, 205, 206,
	206, 207, 207, 208, 209, 209, 210, 210, 211, 212, 212, 213, 213, 214, 214, 215,
	215, 216, 217, 217, 218, 218, 219, 219, 220, 220, 221, 221, 222, 223, 223, 224,
	224, 225, 225, 226, 226, 227, 227, 228, 228, 229, 229, 230, 230, 231, 231, 232,
	232, 233, 233, 234, 234, 235, 235, 236, 236, 237, 237, 238, 238, 239, 239, 240,
	240, 241, 241, 242, 242, 243, 243, 244, 244, 245, 245, 246, 246, 247, 247, 248,
	248, 249, 249, 249, 250, 250, 251, 251, 252, 252, 253, 253, 254, 254, 255, 255,
}
