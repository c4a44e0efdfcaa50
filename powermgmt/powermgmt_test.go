package powermgmt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/aykevl/usermod"
	"github.com/aykevl/usermod/usermodtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	outputPin    usermod.Pin = 33
	inputPin     usermod.Pin = 35
	vbatPin      usermod.Pin = 7
	keepAlivePin usermod.Pin = 1

	healthyBattery = 3500 // about 3.7V
)

// newTestRig returns a rig with the usermod set up at time 0, loading the
// given config document first (if any).
func newTestRig(t *testing.T, config string) (*usermodtest.Rig, *PowerManagement) {
	t.Helper()
	rig := usermodtest.New(4)
	rig.GPIO.SetAnalog(vbatPin, healthyBattery)
	pm := New(rig.Host)
	require.NoError(t, rig.Host.Register(pm))
	require.NoError(t, rig.Host.LoadConfig(strings.NewReader(config)))
	rig.Host.Setup()
	return rig, pm
}

func assertPower(t *testing.T, rig *usermodtest.Rig, on bool) {
	t.Helper()
	assert.Equal(t, on, rig.GPIO.Level(outputPin), "output pin")
	assert.Equal(t, on, rig.GPIO.Level(keepAlivePin), "keep-alive pin")
}

func TestBatteryVoltage(t *testing.T) {
	for _, tc := range []struct {
		raw     uint16
		voltage float32
	}{
		{0, -0.010},
		{2048, 2.1636},
		{3500, 3.7046},
		{4095, 4.3361},
	} {
		assert.InDelta(t, tc.voltage, BatteryVoltage(tc.raw), 0.0005, "raw value %d", tc.raw)
	}
}

func TestSetup(t *testing.T) {
	rig, pm := newTestRig(t, "")
	assertPower(t, rig, true)
	for _, tc := range []struct {
		pin  usermod.Pin
		mode usermod.PinMode
	}{
		{outputPin, usermod.PinOutput},
		{inputPin, usermod.PinInputPullup},
		{vbatPin, usermod.PinAnalog},
		{keepAlivePin, usermod.PinOutput},
	} {
		mode, ok := rig.GPIO.Mode(tc.pin)
		assert.True(t, ok, "pin %d not configured", tc.pin)
		assert.Equal(t, tc.mode, mode, "pin %d", tc.pin)
	}
	assert.Equal(t, DefaultConfig(), pm.Config())

	// The battery is measured on the first loop.
	rig.Run(10, 10)
	assert.InDelta(t, 3.7046, pm.BatteryVoltage(), 0.0005)
	assert.False(t, pm.LowBatteryShutdown())
}

func TestShutdownInput(t *testing.T) {
	rig, pm := newTestRig(t, "")

	// Pulled low right after boot. The first poll (at 100ms) sees the
	// falling edge, so the shutdown happens 5000ms after that.
	rig.GPIO.SetInput(inputPin, false)
	rig.Run(5090, 10)
	assert.False(t, pm.ShutdownTriggered())
	assertPower(t, rig, true)

	rig.Run(10, 10)
	assert.True(t, pm.ShutdownTriggered())
	assertPower(t, rig, false)

	// Staying low doesn't do anything else.
	writes := len(rig.GPIO.Writes)
	rig.Run(2000, 10)
	assert.Len(t, rig.GPIO.Writes, writes)

	// Only the rising edge clears the shutdown.
	rig.GPIO.SetInput(inputPin, true)
	rig.Run(100, 10)
	assert.False(t, pm.ShutdownTriggered())
	assertPower(t, rig, true)
}

func TestShutdownInputShortPress(t *testing.T) {
	rig, pm := newTestRig(t, "")

	for i := 0; i < 3; i++ {
		rig.GPIO.SetInput(inputPin, false)
		rig.Run(4800, 10)
		rig.GPIO.SetInput(inputPin, true)
		rig.Run(200, 10)
	}
	assert.False(t, pm.ShutdownTriggered())
	assertPower(t, rig, true)
	for _, w := range rig.GPIO.WritesTo(outputPin) {
		assert.True(t, w.High, "unexpected power off at %dms", w.At)
	}
}

func TestLowBattery(t *testing.T) {
	rig, pm := newTestRig(t, "")
	rig.Run(10, 10) // first measurement, at 10ms
	assert.False(t, pm.LowBatteryShutdown())

	// About 2.16V. The next measurement is 10s after the first.
	rig.GPIO.SetAnalog(vbatPin, 2048)
	rig.Run(9990, 10)
	assert.False(t, pm.LowBatteryShutdown())
	assertPower(t, rig, true)
	rig.Run(10, 10)
	assert.True(t, pm.LowBatteryShutdown())
	assert.InDelta(t, 2.1636, pm.BatteryVoltage(), 0.0005)
	assertPower(t, rig, false)

	// Latched: a recovering battery doesn't restore power.
	rig.GPIO.SetAnalog(vbatPin, 4000)
	rig.Run(30_000, 10)
	assert.True(t, pm.LowBatteryShutdown())
	assert.Greater(t, pm.BatteryVoltage(), float32(4))
	assertPower(t, rig, false)

	// Neither does toggling the shutdown input.
	rig.GPIO.SetInput(inputPin, false)
	rig.Run(200, 10)
	rig.GPIO.SetInput(inputPin, true)
	rig.Run(200, 10)
	assertPower(t, rig, false)
}

func TestLowBatteryThreshold(t *testing.T) {
	for _, tc := range []struct {
		raw      uint16
		shutdown bool
	}{
		{healthyBattery, false},
		{3030, false}, // 3.2058V
		{3020, true},  // 3.1952V
		{0, true},     // failed reads look like an empty battery
	} {
		rig, pm := newTestRig(t, "")
		rig.GPIO.SetAnalog(vbatPin, tc.raw)
		rig.Run(10, 10)
		assert.Equal(t, tc.shutdown, pm.LowBatteryShutdown(), "raw value %d", tc.raw)
	}
}

func TestKeepAlive(t *testing.T) {
	rig, pm := newTestRig(t, "")
	rig.Run(359_990, 10)
	assert.False(t, pm.KeepAliveExpired())
	assertPower(t, rig, true)

	rig.Run(10, 10)
	assert.True(t, pm.KeepAliveExpired())
	assertPower(t, rig, false)
	assert.Equal(t, []usermodtest.PinWrite{
		{At: 0, Pin: keepAlivePin, High: true},
		{At: 360_000, Pin: keepAlivePin, High: false},
	}, rig.GPIO.WritesTo(keepAlivePin))

	// Fires only once, and activity can't undo it.
	pm.RecordActivity()
	rig.Run(400_000, 100)
	assert.Len(t, rig.GPIO.WritesTo(keepAlivePin), 2)
	assertPower(t, rig, false)
}

func TestKeepAliveActivity(t *testing.T) {
	rig, pm := newTestRig(t, `{"um":{"Power_Management":{"keepAliveTimeout":1000}}}`)
	assert.Equal(t, uint32(1000), pm.Config().KeepAliveTimeout)

	rig.Run(500, 10)
	pm.RecordActivity()
	rig.Run(990, 10)
	assert.False(t, pm.KeepAliveExpired())

	// A state update from a client counts as activity too.
	_, err := rig.Host.ApplyState([]byte(`{"Power_Management":{}}`))
	require.NoError(t, err)
	rig.Run(990, 10)
	assert.False(t, pm.KeepAliveExpired())
	rig.Run(10, 10)
	assert.True(t, pm.KeepAliveExpired())
	assertPower(t, rig, false)

	// The shutdown input can't restore power either.
	rig.GPIO.SetInput(inputPin, false)
	rig.Run(200, 10)
	rig.GPIO.SetInput(inputPin, true)
	rig.Run(200, 10)
	assertPower(t, rig, false)
}

func TestKeepAliveWraparound(t *testing.T) {
	rig := usermodtest.New(4)
	rig.GPIO.SetAnalog(vbatPin, healthyBattery)
	rig.Clock.Now = 0xffff_ffff - 5000
	pm := New(rig.Host)
	require.NoError(t, rig.Host.Register(pm))
	require.NoError(t, rig.Host.LoadConfig(strings.NewReader(`{"um":{"Power_Management":{"keepAliveTimeout":10000}}}`)))
	rig.Host.Setup()

	rig.Run(9990, 10)
	assert.False(t, pm.KeepAliveExpired())
	rig.Run(10, 10)
	assert.True(t, pm.KeepAliveExpired())
}

func TestConfig(t *testing.T) {
	rig := usermodtest.New(4)
	pm := New(rig.Host)
	require.NoError(t, rig.Host.Register(pm))

	assert.ErrorIs(t, pm.ReadFromConfig(nil), usermod.ErrConfigMissing)
	assert.Equal(t, DefaultConfig(), pm.Config())

	// Missing keys keep their value.
	require.NoError(t, pm.ReadFromConfig(json.RawMessage(`{"shutdownDelay":2000,"lowBatteryThreshold":3.4}`)))
	expected := DefaultConfig()
	expected.ShutdownDelay = 2000
	expected.LowBatteryThreshold = 3.4
	assert.Equal(t, expected, pm.Config())

	// Invalid configs are rejected as a whole.
	assert.Error(t, pm.ReadFromConfig(json.RawMessage(`{"shutdownDelay":1,"outputPin":-1}`)))
	assert.Error(t, pm.ReadFromConfig(json.RawMessage(`{"keepAliveTimeout":0}`)))
	assert.Error(t, pm.ReadFromConfig(json.RawMessage(`{"shutdownDelay":"soon"}`)))
	assert.Equal(t, expected, pm.Config())

	data, err := json.Marshal(pm.AddToConfig())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"enabled": true,
		"outputPin": 33,
		"inputPin": 35,
		"vbatPin": 7,
		"keepAlivePin": 1,
		"shutdownDelay": 2000,
		"lowBatteryThreshold": 3.4,
		"keepAliveTimeout": 360000
	}`, string(data))
}

func TestDisabled(t *testing.T) {
	rig, pm := newTestRig(t, `{"um":{"Power_Management":{"enabled":false}}}`)
	rig.GPIO.SetInput(inputPin, false)
	rig.GPIO.SetAnalog(vbatPin, 0)
	rig.Run(400_000, 100)

	assert.Empty(t, rig.GPIO.Writes)
	_, configured := rig.GPIO.Mode(outputPin)
	assert.False(t, configured)
	assert.False(t, pm.ShutdownTriggered())
	assert.False(t, pm.LowBatteryShutdown())
	assert.False(t, pm.KeepAliveExpired())

	assert.Nil(t, pm.AddToJSONInfo())
	assert.Nil(t, pm.AddToJSONState())
	state, err := rig.Host.State()
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(state))
}

func TestJSONState(t *testing.T) {
	rig, pm := newTestRig(t, "")
	rig.Run(1000, 10)

	state, err := rig.Host.State()
	require.NoError(t, err)
	var parsed map[string]map[string]any
	require.NoError(t, json.Unmarshal(state, &parsed))
	s := parsed[Name]
	assert.Equal(t, true, s["enabled"])
	assert.Equal(t, float64(33), s["outputPin"])
	assert.Equal(t, float64(5000), s["shutdownDelay"])
	assert.Equal(t, false, s["shutdownTriggered"])
	assert.Equal(t, false, s["lowBatteryShutdown"])
	assert.Equal(t, false, s["keepAliveExpired"])
	assert.InDelta(t, 3.7046, s["batteryVoltage"], 0.0005)
	assert.Equal(t, float64(0), s["lastActivityTime"])

	// Config fields can be changed through the state API, live fields are
	// ignored.
	changed, err := pm.ReadFromJSONState(json.RawMessage(`{"shutdownDelay":1000,"shutdownTriggered":true}`))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, uint32(1000), pm.Config().ShutdownDelay)
	assert.False(t, pm.ShutdownTriggered())

	changed, err = pm.ReadFromJSONState(json.RawMessage(`{"shutdownDelay":1000}`))
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = pm.ReadFromJSONState(json.RawMessage(`{"inputPin":-1}`))
	assert.Error(t, err)
	assert.Equal(t, inputPin, pm.Config().InputPin)

	// The new delay is used right away.
	rig.GPIO.SetInput(inputPin, false)
	rig.Run(1200, 10)
	assert.True(t, pm.ShutdownTriggered())
}

func TestJSONInfo(t *testing.T) {
	rig, _ := newTestRig(t, "")
	info, err := json.Marshal(rig.Host.Info())
	require.NoError(t, err)
	assert.JSONEq(t, `{"u":{"Power_Management":[
		"Power Management Active",
		"Battery Monitoring Active",
		"Keep Alive Active"
	]}}`, string(info))
}
