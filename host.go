package usermod

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
)

// Usermod IDs. They must never change for a given usermod.
const (
	IDReserved uint16 = iota
	IDPowerManagement
	IDLEDController
)

// Usermod is the lifecycle every usermod implements. All methods are called
// from the single host goroutine.
type Usermod interface {
	// Name is the key under which the usermod's config, state and info are
	// stored. It must be unique.
	Name() string

	// ID is a stable numeric identifier.
	ID() uint16

	// Setup is called once at boot, after the config has been read.
	Setup()

	// Loop is called on every host cycle. It must not block.
	Loop()

	// Connected is called every time the network is (re)connected.
	Connected()

	// AddToConfig returns the value that is persisted in the config file.
	AddToConfig() any

	// ReadFromConfig reads back the value stored by AddToConfig. The raw
	// message is nil if there is no config for this usermod yet, in which case
	// ErrConfigMissing should be returned and the defaults kept.
	ReadFromConfig(raw json.RawMessage) error
}

// StateReporter is implemented by usermods that expose live state over the
// JSON state API.
type StateReporter interface {
	AddToJSONState() any

	// ReadFromJSONState applies a state update. It returns true if anything
	// changed.
	ReadFromJSONState(raw json.RawMessage) (bool, error)
}

// InfoReporter is implemented by usermods that add entries to the JSON info
// API.
type InfoReporter interface {
	AddToJSONInfo() any
}

// SchemaProvider is implemented by usermods that describe their config for a
// settings UI, as a JSON schema fragment.
type SchemaProvider interface {
	ConfigSchema() any
}

// ActivityRecorder is implemented by usermods that want to know when a user
// interacted with the device.
type ActivityRecorder interface {
	RecordActivity()
}

// Host owns the peripherals and the usermod list.
type Host struct {
	Clock  Clock
	GPIO   PinIO
	Audio  AudioInput
	Strip  *Strip
	Pins   *PinManager
	Logger hclog.Logger

	mods      []Usermod
	setupDone bool
}

// HostConfig is used to construct a Host.
type HostConfig struct {
	Clock   Clock
	GPIO    PinIO
	Audio   AudioInput
	LEDs    LEDOutput
	NumLEDs int

	// Highest valid GPIO number. The default is 48.
	MaxPin Pin

	// Defaults to a null logger.
	Logger hclog.Logger
}

// BoardConfig returns a host configuration using the peripherals of the board
// this program was compiled for.
func BoardConfig(numLEDs int, logger hclog.Logger) HostConfig {
	return HostConfig{
		Clock:   Uptime,
		GPIO:    GPIO,
		Audio:   Microphone,
		LEDs:    AddressableLEDs,
		NumLEDs: numLEDs,
		Logger:  logger,
	}
}

// NewHost returns a host without any usermods.
func NewHost(config HostConfig) *Host {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	maxPin := config.MaxPin
	if maxPin == 0 {
		maxPin = 48
	}
	audio := config.Audio
	if audio == nil {
		audio = noMicrophone{}
	}
	leds := config.LEDs
	if leds == nil {
		leds = noLEDs{}
	}
	return &Host{
		Clock:  config.Clock,
		GPIO:   config.GPIO,
		Audio:  audio,
		Strip:  NewStrip(config.NumLEDs, leds, logger.Named("strip")),
		Pins:   NewPinManager(maxPin),
		Logger: logger,
	}
}

// Register adds usermods to the host. They are set up and looped in the order
// in which they were registered. Usermods must be registered before Setup.
func (h *Host) Register(mods ...Usermod) error {
	if h.setupDone {
		return errors.New("usermod: cannot register after setup")
	}
	for _, m := range mods {
		for _, existing := range h.mods {
			if existing.Name() == m.Name() || existing.ID() == m.ID() {
				return fmt.Errorf("usermod: duplicate usermod %s", m.Name())
			}
		}
		h.mods = append(h.mods, m)
	}
	return nil
}

// Usermods returns the registered usermods.
func (h *Host) Usermods() []Usermod {
	return h.mods
}

// Lookup returns the usermod with the given ID.
func (h *Host) Lookup(id uint16) (Usermod, bool) {
	for _, m := range h.mods {
		if m.ID() == id {
			return m, true
		}
	}
	return nil, false
}

// Setup calls Setup on every usermod. It must be called exactly once.
func (h *Host) Setup() {
	for _, m := range h.mods {
		m.Setup()
	}
	h.setupDone = true
	h.Logger.Info("usermods initialized", "count", len(h.mods))
}

// Loop runs one host cycle: every usermod loop followed by the effect engine.
func (h *Host) Loop() {
	for _, m := range h.mods {
		m.Loop()
	}
	h.Strip.service(h.Clock.Millis())
}

// Connected notifies usermods of a network (re)connect.
func (h *Host) Connected() {
	for _, m := range h.mods {
		m.Connected()
	}
}

// RecordActivity notifies usermods of user activity.
func (h *Host) RecordActivity() {
	for _, m := range h.mods {
		if r, ok := m.(ActivityRecorder); ok {
			r.RecordActivity()
		}
	}
}

type configFile struct {
	Usermods map[string]json.RawMessage `json:"um"`
}

// LoadConfig reads the config file and hands each usermod its section. An
// empty input is treated as a first boot: all usermods keep their defaults.
func (h *Host) LoadConfig(r io.Reader) error {
	var cfg configFile
	if err := json.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("usermod: could not decode config: %w", err)
	}
	for _, m := range h.mods {
		err := m.ReadFromConfig(cfg.Usermods[m.Name()])
		switch {
		case err == nil:
			h.Logger.Debug("config loaded", "usermod", m.Name())
		case errors.Is(err, ErrConfigMissing):
			h.Logger.Info("config not found, using defaults", "usermod", m.Name())
		default:
			h.Logger.Error("could not read config", "usermod", m.Name(), "error", err)
		}
	}
	return nil
}

// SaveConfig writes the config of all usermods.
func (h *Host) SaveConfig(w io.Writer) error {
	cfg := map[string]map[string]any{"um": {}}
	for _, m := range h.mods {
		cfg["um"][m.Name()] = m.AddToConfig()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("usermod: could not encode config: %w", err)
	}
	return nil
}

// State returns the JSON state of all usermods that report one. A usermod can
// hide its state by returning nil.
func (h *Host) State() ([]byte, error) {
	state := make(map[string]any)
	for _, m := range h.mods {
		if r, ok := m.(StateReporter); ok {
			if s := r.AddToJSONState(); s != nil {
				state[m.Name()] = s
			}
		}
	}
	return json.Marshal(state)
}

// ApplyState routes a JSON state update to the usermods it names. A state
// update counts as user activity. It returns whether any usermod state
// changed; errors of individual usermods are logged, not returned.
func (h *Host) ApplyState(data []byte) (bool, error) {
	var state map[string]json.RawMessage
	if err := json.Unmarshal(data, &state); err != nil {
		return false, fmt.Errorf("usermod: could not decode state: %w", err)
	}
	changed := false
	for _, m := range h.mods {
		r, ok := m.(StateReporter)
		if !ok {
			continue
		}
		raw, ok := state[m.Name()]
		if !ok {
			continue
		}
		c, err := r.ReadFromJSONState(raw)
		if err != nil {
			h.Logger.Warn("invalid state update", "usermod", m.Name(), "error", err)
		}
		changed = changed || c
	}
	h.RecordActivity()
	return changed, nil
}

// Info returns the "u" section of the JSON info API.
func (h *Host) Info() map[string]any {
	user := make(map[string]any)
	for _, m := range h.mods {
		if r, ok := m.(InfoReporter); ok {
			if info := r.AddToJSONInfo(); info != nil {
				user[m.Name()] = info
			}
		}
	}
	return map[string]any{"u": user}
}

// ConfigSchema returns the JSON schema fragments of all usermods that provide
// one.
func (h *Host) ConfigSchema() map[string]any {
	schema := make(map[string]any)
	for _, m := range h.mods {
		if p, ok := m.(SchemaProvider); ok {
			schema[m.Name()] = p.ConfigSchema()
		}
	}
	return schema
}
