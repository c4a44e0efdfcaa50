// Package powermgmt implements power management for battery powered LED
// controllers. It keeps the power supply enabled through two output pins and
// cuts power when:
//
//   - the shutdown input is held low for a while (for example a power switch),
//   - the battery voltage drops below a threshold, or
//   - nobody interacted with the device for a long time.
//
// The last two are latched: once power is cut for these reasons it stays cut
// until the device is restarted.
package powermgmt

import (
	"encoding/json"
	"fmt"

	"github.com/aykevl/usermod"
	"github.com/hashicorp/go-hclog"
)

// Name is the key of this usermod in the config, state and info documents.
const Name = "Power_Management"

const (
	inputCheckInterval   = 100    // ms
	batteryCheckInterval = 10_000 // ms
)

// PowerManagement is the power management usermod.
type PowerManagement struct {
	host   *usermod.Host
	logger hclog.Logger
	config Config

	initDone bool

	// Pins in use, from the config at Setup.
	outputPin    usermod.Pin
	inputPin     usermod.Pin
	vbatPin      usermod.Pin
	keepAlivePin usermod.Pin

	// Shutdown input.
	lastInputCheck    uint32
	inputHigh         bool
	inputLowSince     uint32
	shutdownTriggered bool

	// Battery monitor.
	batteryChecked     bool
	lastBatteryCheck   uint32
	batteryVoltage     float32
	lowBatteryShutdown bool

	// Keep-alive.
	lastActivity     uint32
	keepAliveExpired bool
}

var (
	_ usermod.Usermod          = (*PowerManagement)(nil)
	_ usermod.StateReporter    = (*PowerManagement)(nil)
	_ usermod.InfoReporter     = (*PowerManagement)(nil)
	_ usermod.ActivityRecorder = (*PowerManagement)(nil)
)

// New returns a power management usermod with the default configuration.
func New(host *usermod.Host) *PowerManagement {
	return &PowerManagement{
		host:      host,
		logger:    host.Logger.Named("powermgmt"),
		config:    DefaultConfig(),
		inputHigh: true,
	}
}

func (pm *PowerManagement) Name() string {
	return Name
}

func (pm *PowerManagement) ID() uint16 {
	return usermod.IDPowerManagement
}

// Config returns the current configuration.
func (pm *PowerManagement) Config() Config {
	return pm.config
}

// Setup configures the pins and switches the power outputs on.
//
// The pins are not claimed through the pin manager: they are fixed board
// wiring that nothing else may use anyway.
func (pm *PowerManagement) Setup() {
	if !pm.config.Enabled {
		return
	}
	pm.outputPin = pm.config.OutputPin
	pm.inputPin = pm.config.InputPin
	pm.vbatPin = pm.config.VbatPin
	pm.keepAlivePin = pm.config.KeepAlivePin
	gpio := pm.host.GPIO
	gpio.Configure(pm.outputPin, usermod.PinOutput)
	gpio.Configure(pm.inputPin, usermod.PinInputPullup)
	gpio.Configure(pm.vbatPin, usermod.PinAnalog)
	gpio.Configure(pm.keepAlivePin, usermod.PinOutput)
	pm.setPower(true)

	now := pm.host.Clock.Millis()
	pm.lastActivity = now
	pm.lastInputCheck = now
	pm.initDone = true
	pm.logger.Info("initialized",
		"outputPin", pm.outputPin,
		"inputPin", pm.inputPin,
		"vbatPin", pm.vbatPin,
		"keepAlivePin", pm.keepAlivePin)
}

func (pm *PowerManagement) Loop() {
	if !pm.config.Enabled || !pm.initDone || pm.host.Strip.IsUpdating() {
		return
	}
	now := pm.host.Clock.Millis()
	if usermod.Since(now, pm.lastInputCheck) >= inputCheckInterval {
		pm.lastInputCheck = now
		pm.checkInput(now)
	}
	if !pm.batteryChecked || usermod.Since(now, pm.lastBatteryCheck) >= batteryCheckInterval {
		pm.batteryChecked = true
		pm.lastBatteryCheck = now
		pm.checkBattery()
	}
	pm.checkKeepAlive(now)
}

func (pm *PowerManagement) Connected() {}

// checkInput runs the shutdown input state machine for one poll.
func (pm *PowerManagement) checkInput(now uint32) {
	high := pm.host.GPIO.Get(pm.inputPin)
	switch {
	case !high && pm.inputHigh:
		pm.inputLowSince = now
		pm.logger.Info("shutdown input pulled low, starting shutdown timer")
	case high && !pm.inputHigh:
		pm.shutdownTriggered = false
		if pm.latched() {
			pm.logger.Info("shutdown input released, power stays off", "lowBattery", pm.lowBatteryShutdown, "keepAliveExpired", pm.keepAliveExpired)
		} else {
			pm.setPower(true)
			pm.logger.Info("shutdown input released, power restored")
		}
	}
	pm.inputHigh = high

	if !high && !pm.shutdownTriggered && usermod.Since(now, pm.inputLowSince) >= pm.config.ShutdownDelay {
		pm.shutdownTriggered = true
		pm.setPower(false)
		pm.logger.Warn("shutdown input held low, shutting down", "delay", pm.config.ShutdownDelay)
	}
}

// checkBattery reads the battery voltage and latches a shutdown if it is too
// low.
func (pm *PowerManagement) checkBattery() {
	raw := pm.host.GPIO.ReadAnalog(pm.vbatPin)
	pm.batteryVoltage = BatteryVoltage(raw)
	pm.logger.Debug("battery", "adc", raw, "voltage", pm.batteryVoltage)
	if pm.batteryVoltage <= pm.config.LowBatteryThreshold && !pm.lowBatteryShutdown {
		pm.lowBatteryShutdown = true
		pm.setPower(false)
		pm.logger.Warn("low battery, shutting down", "voltage", pm.batteryVoltage, "threshold", pm.config.LowBatteryThreshold)
	}
}

// checkKeepAlive cuts the power once when there was no activity for too long.
func (pm *PowerManagement) checkKeepAlive(now uint32) {
	if pm.keepAliveExpired || usermod.Since(now, pm.lastActivity) < pm.config.KeepAliveTimeout {
		return
	}
	pm.keepAliveExpired = true
	pm.setPower(false)
	pm.logger.Warn("no activity, shutting down", "timeout", pm.config.KeepAliveTimeout)
}

// RecordActivity restarts the keep-alive timer. It has no effect once the
// timer has expired.
func (pm *PowerManagement) RecordActivity() {
	pm.lastActivity = pm.host.Clock.Millis()
}

func (pm *PowerManagement) latched() bool {
	return pm.lowBatteryShutdown || pm.keepAliveExpired
}

func (pm *PowerManagement) setPower(on bool) {
	pm.host.GPIO.Set(pm.outputPin, on)
	pm.host.GPIO.Set(pm.keepAlivePin, on)
}

// ShutdownTriggered returns whether the shutdown input cut the power.
func (pm *PowerManagement) ShutdownTriggered() bool {
	return pm.shutdownTriggered
}

// LowBatteryShutdown returns whether a low battery cut the power.
func (pm *PowerManagement) LowBatteryShutdown() bool {
	return pm.lowBatteryShutdown
}

// KeepAliveExpired returns whether inactivity cut the power.
func (pm *PowerManagement) KeepAliveExpired() bool {
	return pm.keepAliveExpired
}

// BatteryVoltage returns the last measured battery voltage, or 0 if it was
// never measured.
func (pm *PowerManagement) BatteryVoltage() float32 {
	return pm.batteryVoltage
}

func (pm *PowerManagement) AddToConfig() any {
	return pm.config
}

// ReadFromConfig reads the stored config on top of the current one, so that
// missing keys keep their value. Pin changes made after Setup take effect on
// the next boot.
func (pm *PowerManagement) ReadFromConfig(raw json.RawMessage) error {
	if raw == nil {
		return usermod.ErrConfigMissing
	}
	config := pm.config
	if err := json.Unmarshal(raw, &config); err != nil {
		return fmt.Errorf("powermgmt: could not read config: %w", err)
	}
	if err := config.validate(); err != nil {
		return err
	}
	pm.config = config
	return nil
}

type state struct {
	Config
	ShutdownTriggered  bool    `json:"shutdownTriggered"`
	LowBatteryShutdown bool    `json:"lowBatteryShutdown"`
	KeepAliveExpired   bool    `json:"keepAliveExpired"`
	BatteryVoltage     float32 `json:"batteryVoltage"`
	LastActivityTime   uint32  `json:"lastActivityTime"`
}

// AddToJSONState returns the config together with the live state. It returns
// nil when the usermod is not running.
func (pm *PowerManagement) AddToJSONState() any {
	if !pm.initDone || !pm.config.Enabled {
		return nil
	}
	return state{
		Config:             pm.config,
		ShutdownTriggered:  pm.shutdownTriggered,
		LowBatteryShutdown: pm.lowBatteryShutdown,
		KeepAliveExpired:   pm.keepAliveExpired,
		BatteryVoltage:     pm.batteryVoltage,
		LastActivityTime:   pm.lastActivity,
	}
}

// ReadFromJSONState updates the config from a state update. The live state
// fields are read-only and ignored. Like with ReadFromConfig, pin changes take
// effect on the next boot.
func (pm *PowerManagement) ReadFromJSONState(raw json.RawMessage) (bool, error) {
	if !pm.initDone {
		return false, nil
	}
	config := pm.config
	if err := json.Unmarshal(raw, &config); err != nil {
		return false, fmt.Errorf("powermgmt: could not read state: %w", err)
	}
	if err := config.validate(); err != nil {
		return false, err
	}
	changed := config != pm.config
	pm.config = config
	return changed, nil
}

func (pm *PowerManagement) AddToJSONInfo() any {
	if !pm.config.Enabled {
		return nil
	}
	return []string{
		"Power Management Active",
		"Battery Monitoring Active",
		"Keep Alive Active",
	}
}
