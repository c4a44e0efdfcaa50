package usermod_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aykevl/usermod"
	"github.com/aykevl/usermod/usermodtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterConfig struct {
	Enabled bool `json:"enabled"`
	Step    int  `json:"step"`
}

// counter is a minimal usermod that counts loops.
type counter struct {
	name   string
	id     uint16
	config counterConfig

	setups, loops, connects, activity int
}

func newCounter(name string, id uint16) *counter {
	return &counter{name: name, id: id, config: counterConfig{Enabled: true, Step: 1}}
}

func (c *counter) Name() string    { return c.name }
func (c *counter) ID() uint16      { return c.id }
func (c *counter) Setup()          { c.setups++ }
func (c *counter) Loop()           { c.loops += c.config.Step }
func (c *counter) Connected()      { c.connects++ }
func (c *counter) RecordActivity() { c.activity++ }

func (c *counter) AddToConfig() any {
	return c.config
}

func (c *counter) ReadFromConfig(raw json.RawMessage) error {
	if raw == nil {
		return usermod.ErrConfigMissing
	}
	return json.Unmarshal(raw, &c.config)
}

func (c *counter) AddToJSONState() any {
	return map[string]int{"loops": c.loops}
}

func (c *counter) ReadFromJSONState(raw json.RawMessage) (bool, error) {
	var state struct {
		Loops *int `json:"loops"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return false, err
	}
	if state.Loops == nil || *state.Loops < 0 {
		return false, errors.New("invalid loop count")
	}
	changed := c.loops != *state.Loops
	c.loops = *state.Loops
	return changed, nil
}

func (c *counter) AddToJSONInfo() any {
	if !c.config.Enabled {
		return nil
	}
	return []string{c.name + " active"}
}

func (c *counter) ConfigSchema() any {
	return map[string]string{"step": "number"}
}

// silent only implements the required hooks.
type silent struct{}

func (silent) Name() string                         { return "silent" }
func (silent) ID() uint16                           { return 99 }
func (silent) Setup()                               {}
func (silent) Loop()                                {}
func (silent) Connected()                           {}
func (silent) AddToConfig() any                     { return struct{}{} }
func (silent) ReadFromConfig(json.RawMessage) error { return nil }

func TestHostLifecycle(t *testing.T) {
	rig := usermodtest.New(4)
	a := newCounter("a", 1)
	b := newCounter("b", 2)
	require.NoError(t, rig.Host.Register(a, b))

	assert.Error(t, rig.Host.Register(newCounter("a", 3)), "duplicate name")
	assert.Error(t, rig.Host.Register(newCounter("c", 2)), "duplicate ID")
	assert.Len(t, rig.Host.Usermods(), 2)

	m, ok := rig.Host.Lookup(2)
	assert.True(t, ok)
	assert.Same(t, b, m)
	_, ok = rig.Host.Lookup(7)
	assert.False(t, ok)

	rig.Host.Setup()
	assert.Equal(t, 1, a.setups)
	assert.Error(t, rig.Host.Register(newCounter("late", 9)))

	rig.Run(100, 10)
	assert.Equal(t, 10, a.loops)
	assert.Equal(t, 10, b.loops)

	rig.Host.Connected()
	rig.Host.Connected()
	assert.Equal(t, 2, b.connects)

	rig.Host.RecordActivity()
	assert.Equal(t, 1, a.activity)
	assert.Equal(t, 1, b.activity)
}

func TestHostConfig(t *testing.T) {
	rig := usermodtest.New(4)
	a := newCounter("a", 1)
	b := newCounter("b", 2)
	require.NoError(t, rig.Host.Register(a, b))

	// Only "a" has a config section, "b" keeps its defaults.
	err := rig.Host.LoadConfig(strings.NewReader(`{"um":{"a":{"step":3}}}`))
	require.NoError(t, err)
	assert.Equal(t, counterConfig{Enabled: true, Step: 3}, a.config)
	assert.Equal(t, counterConfig{Enabled: true, Step: 1}, b.config)

	// First boot: no config at all.
	require.NoError(t, rig.Host.LoadConfig(strings.NewReader("")))
	assert.Error(t, rig.Host.LoadConfig(strings.NewReader("{")))

	buf := &bytes.Buffer{}
	require.NoError(t, rig.Host.SaveConfig(buf))
	assert.JSONEq(t, `{"um":{"a":{"enabled":true,"step":3},"b":{"enabled":true,"step":1}}}`, buf.String())

	// Config survives a round trip through a fresh host.
	rig2 := usermodtest.New(4)
	a2 := newCounter("a", 1)
	require.NoError(t, rig2.Host.Register(a2))
	require.NoError(t, rig2.Host.LoadConfig(buf))
	assert.Equal(t, a.config, a2.config)
}

func TestHostState(t *testing.T) {
	rig := usermodtest.New(4)
	a := newCounter("a", 1)
	b := newCounter("b", 2)
	require.NoError(t, rig.Host.Register(a, b, silent{}))
	rig.Host.Setup()
	rig.Run(30, 10)

	state, err := rig.Host.State()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"loops":3},"b":{"loops":3}}`, string(state))

	changed, err := rig.Host.ApplyState([]byte(`{"a":{"loops":7},"b":{"loops":-1}}`))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 7, a.loops)
	assert.Equal(t, 3, b.loops, "invalid update must be rejected")
	assert.Equal(t, 1, a.activity, "state updates count as activity")

	changed, err = rig.Host.ApplyState([]byte(`{"a":{"loops":7}}`))
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = rig.Host.ApplyState([]byte(`[]`))
	assert.Error(t, err)
}

func TestHostInfo(t *testing.T) {
	rig := usermodtest.New(4)
	a := newCounter("a", 1)
	b := newCounter("b", 2)
	b.config.Enabled = false
	require.NoError(t, rig.Host.Register(a, b, silent{}))

	info, err := json.Marshal(rig.Host.Info())
	require.NoError(t, err)
	assert.JSONEq(t, `{"u":{"a":["a active"]}}`, string(info))

	schema, err := json.Marshal(rig.Host.ConfigSchema())
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"step":"number"},"b":{"step":"number"}}`, string(schema))
}

func TestHostDefaults(t *testing.T) {
	h := usermod.NewHost(usermod.HostConfig{
		Clock:   &usermodtest.Clock{},
		GPIO:    nil,
		NumLEDs: 2,
	})
	assert.ErrorIs(t, h.Audio.Configure(usermod.AudioConfig{}), usermod.ErrPeripheralUnavailable)
	_, err := h.Audio.Read(make([]int32, 4))
	assert.ErrorIs(t, err, usermod.ErrPeripheralUnavailable)
	h.Strip.Show() // discarded
	assert.NoError(t, h.Pins.Allocate(48, false, "test"))
	assert.Error(t, h.Pins.Allocate(49, false, "test"))
}
