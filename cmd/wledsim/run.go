package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aykevl/usermod"
	"github.com/aykevl/usermod/powermgmt"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

// Time between two host loops. WLED loops as fast as it can, a few ms is
// close enough for the usermods.
const loopInterval = 5 * time.Millisecond

// How often the usermod state is logged at debug level.
const stateInterval = 5 * time.Second

func newRunCmd(opts *options) *cobra.Command {
	var state string
	var save bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the usermods in the simulator window",
		Long: `Opens the simulator window and runs the host loop until the window is closed
or the process is interrupted.

The button in the window is the LED controller button, the switch is the
power management input and the battery slider drives the battery voltage
divider.`,
		Example: `  wledsim run --leds 24
  wledsim run --config wled.json --save
  wledsim run --state '{"LED_Controller":{"active":true,"mode":1}}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return run(opts, logger, state, save)
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "JSON state update to apply after setup")
	cmd.Flags().BoolVar(&save, "save", false, "write the config back to the config file on exit")
	return cmd
}

func run(opts *options, logger hclog.Logger, state string, save bool) error {
	if save && opts.config == "" {
		return errors.New("--save needs a config file")
	}
	usermod.Simulator.WindowTitle = "wledsim"

	host, err := newHost(opts, logger)
	if err != nil {
		return err
	}
	host.Setup()
	if state != "" {
		if _, err := host.ApplyState([]byte(state)); err != nil {
			return err
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	loop := time.NewTicker(loopInterval)
	defer loop.Stop()
	report := time.NewTicker(stateInterval)
	defer report.Stop()

	m, _ := host.Lookup(usermod.IDPowerManagement)
	pm := m.(*powermgmt.PowerManagement)
	var powerOff bool
	for {
		select {
		case <-sig:
			logger.Info("shutting down")
			if save {
				return saveConfig(host, opts.config)
			}
			return nil
		case <-report.C:
			if data, err := host.State(); err == nil {
				logger.Debug("state", "json", string(data))
			}
		case <-loop.C:
			host.Loop()
			if host.Strip.StateChanged() {
				logger.Debug("segment changed", "mode", host.Strip.MainSegment().Mode)
			}
			off := pm.ShutdownTriggered() || pm.LowBatteryShutdown() || pm.KeepAliveExpired()
			if off != powerOff {
				powerOff = off
				logger.Info("board power", "on", !off, "battery", pm.BatteryVoltage())
			}
		}
	}
}

func saveConfig(host *usermod.Host, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := host.SaveConfig(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
