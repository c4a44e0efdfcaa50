//go:build !baremetal

package usermod

// The simulated board exists for testing locally without running on real
// hardware. This avoids potentially long edit-flash-test cycles.

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/aykevl/tinygl/pixel"
)

const (
	// The board name, as passed to TinyGo in the "-target" flag.
	// This is the special name "simulator" for the simulator.
	Name = "simulator"
)

// List of all devices.
//
// Support varies by board, but all boards have the following peripherals
// defined.
var (
	Uptime          = &simulatedClock{start: time.Now()}
	GPIO            = &simulatedGPIO{}
	Microphone      = &simulatedMicrophone{}
	AddressableLEDs = &simulatedLEDs{}
)

type simulatedClock struct {
	start time.Time
}

// Millis returns the number of milliseconds since the program started,
// truncated to 32 bits like a microcontroller millisecond counter.
func (c *simulatedClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

type simulatedGPIO struct {
	lock   sync.Mutex
	modes  map[Pin]PinMode
	levels map[Pin]bool
	analog map[Pin]uint16
}

// Configure a pin. Output pins are shown as indicators in the simulator window
// if they are listed in Simulator.OutputPins.
func (g *simulatedGPIO) Configure(pin Pin, mode PinMode) {
	startWindow()
	g.lock.Lock()
	defer g.lock.Unlock()
	g.init()
	g.modes[pin] = mode
	if mode == PinInputPullup {
		// Nothing is pulling the pin low yet.
		g.levels[pin] = true
	}
}

// init allocates the pin maps. The lock must be held.
func (g *simulatedGPIO) init() {
	if g.modes == nil {
		g.modes = make(map[Pin]PinMode)
		g.levels = make(map[Pin]bool)
		g.analog = make(map[Pin]uint16)
		// Same as the initial battery slider position, until the window
		// reports it.
		g.analog[Simulator.BatteryPin] = defaultBatteryRaw
	}
}

func (g *simulatedGPIO) Get(pin Pin) bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.levels[pin]
}

func (g *simulatedGPIO) Set(pin Pin, high bool) {
	startWindow()
	g.lock.Lock()
	g.init()
	changed := g.levels[pin] != high || !g.isKnownOutput(pin)
	g.levels[pin] = high
	g.lock.Unlock()
	if changed {
		level := 0
		if high {
			level = 1
		}
		windowSendCommand(fmt.Sprintf("pin-level %d %d", pin, level), nil)
	}
}

// isKnownOutput returns whether the level of this output pin was sent to the
// window before. The lock must be held.
func (g *simulatedGPIO) isKnownOutput(pin Pin) bool {
	_, ok := g.levels[pin]
	return ok && g.modes[pin] == PinOutput
}

func (g *simulatedGPIO) ReadAnalog(pin Pin) uint16 {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.init()
	// Randomize the output a bit to fake ADC noise (programs should be able to
	// deal with that).
	value := int(g.analog[pin]) + rand.Intn(9) - 4
	if value < 0 {
		value = 0
	}
	if value > 4095 {
		value = 4095
	}
	return uint16(value)
}

// setInput is called from the window event goroutine.
func (g *simulatedGPIO) setInput(pin Pin, high bool) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.levels == nil {
		return
	}
	g.levels[pin] = high
}

func (g *simulatedGPIO) setAnalog(pin Pin, value uint16) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.analog == nil {
		return
	}
	g.analog[pin] = value
}

type simulatedMicrophone struct {
	lock       sync.Mutex
	configured bool
	level      float64 // 0..1, set with the sound slider
	interval   time.Duration
	lastRead   time.Time
}

// Configure the simulated microphone. The pins are only validated, there is
// nothing to connect them to.
func (m *simulatedMicrophone) Configure(config AudioConfig) error {
	if config.SD < 0 || config.WS < 0 || config.SCK < 0 {
		return fmt.Errorf("%w: I2S pins not set", ErrPeripheralUnavailable)
	}
	startWindow()
	m.lock.Lock()
	defer m.lock.Unlock()
	m.configured = true
	if config.SampleRate != 0 {
		m.interval = time.Second / time.Duration(config.SampleRate)
	}
	return nil
}

// Read returns noise with an amplitude set by the sound slider in the
// simulator window.
func (m *simulatedMicrophone) Read(samples []int32) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if !m.configured {
		return 0, ErrPeripheralUnavailable
	}
	// Pretend reading takes as long as recording the buffer would.
	wait := m.interval*time.Duration(len(samples)) - time.Since(m.lastRead)
	if wait > 0 {
		time.Sleep(wait)
	}
	m.lastRead = time.Now()
	amplitude := m.level * (1 << 30)
	for i := range samples {
		samples[i] = int32((rand.Float64()*2 - 1) * amplitude)
	}
	return len(samples), nil
}

func (m *simulatedMicrophone) setLevel(level float64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.level = level
}

type simulatedLEDs struct{}

// WriteLEDs shows the data in the simulator window.
func (l *simulatedLEDs) WriteLEDs(data []pixel.RGB888) error {
	startWindow()
	buf := make([]byte, 0, len(data)*3)
	for _, c := range data {
		buf = append(buf, c.R, c.G, c.B)
	}
	windowSendCommand(fmt.Sprintf("addressable-leds %d", len(data)), buf)
	return nil
}

var (
	windowStart  sync.Once
	windowLock   sync.Mutex
	windowStdin  io.WriteCloser
	windowStdout io.ReadCloser
)

// Ensure the window is running in a separate process, starting it if necessary.
func startWindow() {
	windowRunning := make(chan struct{})
	windowStart.Do(func() {
		// Start the separate process that manages the window.
		go func() {
			cmd := exec.Command(os.Args[0], runWindowCommand)
			cmd.Stderr = os.Stderr
			windowStdin, _ = cmd.StdinPipe()
			windowStdout, _ = cmd.StdoutPipe()
			err := cmd.Start()
			if err != nil {
				fmt.Fprintln(os.Stdout, "could not start window process:", err)
				os.Exit(1)
			}
			close(windowRunning)
			err = cmd.Wait()
			if err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok {
					os.Exit(exitErr.ExitCode())
				}
				os.Exit(1)
			}
			// The window was closed, so exit.
			os.Exit(0)
		}()
		<-windowRunning

		// Listen for events (button, switch, sliders).
		go windowListenEvents()

		// Do some initialization.
		windowSendCommand("title "+Simulator.WindowTitle, nil)
		for _, pin := range Simulator.OutputPins {
			windowSendCommand(fmt.Sprintf("output-pin %d", pin), nil)
		}
	})
}

// Send a command to the separate process that manages the window.
// The command is a single line (without newline). The data part is optional
// binary data that can be sent with the command. The size of this binary data
// must be part of the textual command.
func windowSendCommand(command string, data []byte) {
	windowLock.Lock()
	defer windowLock.Unlock()

	windowStdin.Write([]byte(command + "\n"))
	windowStdin.Write(data)
}

// Goroutine that listens for window events like the button and the sliders.
func windowListenEvents() {
	r := bufio.NewReader(windowStdout)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			fmt.Fprintln(os.Stderr, "failed to read I/O events from child process:", err)
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd := fields[0]
		switch cmd {
		case "button-down", "button-up":
			// The button is active low.
			GPIO.setInput(Simulator.ButtonPin, cmd == "button-up")
		case "switch":
			var closed int
			fmt.Sscanf(line, "%s %d", &cmd, &closed)
			GPIO.setInput(Simulator.SwitchPin, closed == 0)
		case "battery":
			var raw uint16
			fmt.Sscanf(line, "%s %d", &cmd, &raw)
			GPIO.setAnalog(Simulator.BatteryPin, raw)
		case "sound":
			var percent int
			fmt.Sscanf(line, "%s %d", &cmd, &percent)
			Microphone.setLevel(float64(percent) / 100)
		default:
			fmt.Fprintln(os.Stderr, "unknown command:", cmd)
		}
	}
}
