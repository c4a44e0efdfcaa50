// Command wledsim runs the power management and LED controller usermods on
// the desktop simulator board.
//
// Defaults for the flags can be set in the environment or in a .env file:
// WLEDSIM_LEDS, WLEDSIM_CONFIG and WLEDSIM_LOG_LEVEL.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/aykevl/usermod"
	"github.com/aykevl/usermod/ledcontroller"
	"github.com/aykevl/usermod/powermgmt"
	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	leds     int
	config   string
	logLevel string
}

func main() {
	// The .env file is optional.
	_ = godotenv.Load()

	if err := newRootCmd(os.Getenv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	opts := &options{
		leds:     usermod.Simulator.AddressableLEDs,
		config:   getenv("WLEDSIM_CONFIG"),
		logLevel: "info",
	}
	if v, err := strconv.Atoi(getenv("WLEDSIM_LEDS")); err == nil {
		opts.leds = v
	}
	if v := getenv("WLEDSIM_LOG_LEVEL"); v != "" {
		opts.logLevel = v
	}

	root := &cobra.Command{
		Use:   "wledsim",
		Short: "Run the usermods on a simulated LED controller",
		Long: `wledsim runs the Power_Management and LED_Controller usermods against a
simulated board: an LED strip, a push button, a power switch, a battery
slider and a sound slider in a desktop window.`,
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.IntVar(&opts.leds, "leds", opts.leds, "number of addressable LEDs")
	flags.StringVar(&opts.config, "config", opts.config, "config file (JSON), defaults are used if it doesn't exist")
	flags.StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level: trace, debug, info, warn or error")

	root.AddCommand(newRunCmd(opts), newConfigCmd(opts), newSchemaCmd(opts))
	return root
}

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective config",
		Long: `Prints the config of all usermods: the config file (if any) on top of the
defaults. The output can be used as a config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := newHost(opts, hclog.NewNullLogger())
			if err != nil {
				return err
			}
			return host.SaveConfig(cmd.OutOrStdout())
		},
	}
}

func newSchemaCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the usermod config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := newHost(opts, hclog.NewNullLogger())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), host.ConfigSchema())
		},
	}
}

func newLogger(level string, out io.Writer) (hclog.Logger, error) {
	l := hclog.LevelFromString(level)
	if l == hclog.NoLevel {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "wledsim",
		Level:  l,
		Output: out,
	}), nil
}

// newHost returns a host for the simulator board with both usermods
// registered and the config file loaded.
func newHost(opts *options, logger hclog.Logger) (*usermod.Host, error) {
	if opts.leds < 0 {
		return nil, fmt.Errorf("invalid number of LEDs: %d", opts.leds)
	}
	host := usermod.NewHost(usermod.BoardConfig(opts.leds, logger))
	err := host.Register(
		powermgmt.New(host),
		ledcontroller.New(host),
	)
	if err != nil {
		return nil, err
	}

	var config io.Reader = strings.NewReader("")
	if opts.config != "" {
		f, err := os.Open(opts.config)
		switch {
		case err == nil:
			defer f.Close()
			config = f
		case errors.Is(err, fs.ErrNotExist):
			logger.Info("config file not found, using defaults", "path", opts.config)
		default:
			return nil, err
		}
	}
	if err := host.LoadConfig(config); err != nil {
		return nil, err
	}
	return host, nil
}
