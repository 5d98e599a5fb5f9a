// Command sensor-player runs a configurable state machine that plays audio
// in response to occupancy sensors and a button.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sweeney/sensor-player/internal/config"
)

const defaultSettingsPath = "/etc/sensor-player/player.toml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sensor-player",
		Short:         "Sensor-driven audio state machine",
		Long:          "sensor-player polls occupancy sensors and a button, advances a state machine loaded from a JSON or YAML document, and plays each state's audio.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringP("config", "c", defaultSettingsPath, "Path to the TOML settings file")
	f.StringP("states", "s", "", "State document (.json, .yaml)")
	f.String("chip", "", "GPIO chip name")
	f.String("broker", "", `MQTT broker address ("" disables telemetry)`)
	f.String("http", "", `HTTP status address ("" disables the status page)`)
	f.Duration("poll", 0, "Input polling interval")
	f.Duration("heartbeat", 0, "Heartbeat interval (0 to disable)")
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.String("log-format", "", "Log format (console, json)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the player (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCommand(cmd)
			},
		},
		newValidateCmd(),
		newPrintStateCmd(),
	)
	return root
}

// loadSettings reads the settings file named by --config and applies any
// flags set explicitly on the command line.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	s, err := config.LoadSettings(path)
	if err != nil {
		return s, err
	}
	if err := applyFlags(cmd.Flags(), &s); err != nil {
		return s, err
	}
	return s, s.Validate()
}

// applyFlags overrides settings with flags whose value was set by the user.
// Flags left at their defaults never override the file or environment.
func applyFlags(flags *pflag.FlagSet, s *config.Settings) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "states":
			s.States = f.Value.String()
		case "chip":
			s.GPIO.Chip = f.Value.String()
		case "broker":
			s.MQTT.Broker = f.Value.String()
		case "http":
			s.HTTP.Addr = f.Value.String()
		case "log-level":
			s.Logging.Level = f.Value.String()
		case "log-format":
			s.Logging.Format = f.Value.String()
		case "poll":
			var d time.Duration
			if d, err = flags.GetDuration("poll"); err == nil {
				s.Timing.PollMs = d.Milliseconds()
			}
		case "heartbeat":
			var d time.Duration
			if d, err = flags.GetDuration("heartbeat"); err == nil {
				s.Timing.HeartbeatMs = d.Milliseconds()
			}
		}
	})
	return err
}
