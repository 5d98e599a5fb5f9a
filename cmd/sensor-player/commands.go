package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sweeney/sensor-player/internal/config"
	"github.com/sweeney/sensor-player/internal/gpio"
	"github.com/sweeney/sensor-player/internal/logic"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Load and check a state document",
		Long:  "Loads a state document, reports the first configuration error, or prints a summary of states, transitions and conditions. Without a file argument the document named in the settings is checked.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			path := s.States
			if len(args) == 1 {
				path = args[0]
			}
			states, err := config.LoadFile(path, s.DocumentOptions())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), path, states)
			return nil
		},
	}
}

func printSummary(w io.Writer, path string, states []logic.State) {
	fmt.Fprintf(w, "%s: %d states OK\n", path, len(states))
	for _, st := range states {
		media := st.MediaRef
		if media == "" {
			media = "-"
		}
		fmt.Fprintf(w, "state %d  media=%s repeat=%t blinks=%d\n", st.ID, media, st.Repeat, st.BlinkCount)
		for i, tr := range st.Transitions {
			conds := make([]string, len(tr.Conditions))
			for j, c := range tr.Conditions {
				conds[j] = c.String()
			}
			fmt.Fprintf(w, "  %d: -> %d when %s\n", i, tr.Target, strings.Join(conds, " AND "))
		}
	}
}

func newPrintStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-state",
		Short: "Print the current sensor and button levels and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			reader, err := gpio.NewRealReader(s.GPIO.Chip, s.GPIO.Sensors, s.GPIO.Button)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer reader.Close()

			sample, err := reader.Read()
			if err != nil {
				return fmt.Errorf("read gpio: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatSample(sample))
			return nil
		},
	}
}

// formatSample renders raw levels; inputs are pulled up so LOW means
// occupied or pressed.
func formatSample(s gpio.Sample) string {
	var b strings.Builder
	for i, l := range s.Sensors {
		state := "free"
		if l == logic.Low {
			state = "OCCUPIED"
		}
		fmt.Fprintf(&b, "S%d: %s, ", i, state)
	}
	button := "released"
	if s.Button == logic.Low {
		button = "PRESSED"
	}
	fmt.Fprintf(&b, "button: %s", button)
	return b.String()
}
