package main

import (
	"encoding/json"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/battwatch/battwatch/pkg/client"
	"github.com/battwatch/battwatch/pkg/powerinfo"
)

func NewStatusCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of battwatch",
		Long:    `Get the tracked battery, the pending warnings and recent warnings.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.GetStatus()
			if err != nil {
				return err
			}

			if asJSON {
				b, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(b))
				return nil
			}

			printStatus(cmd, st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")

	return cmd
}

func printStatus(cmd *cobra.Command, st *client.Status) {
	cmd.Println(bold("Battery:"))
	if st.Device == nil {
		cmd.Println("  Device: " + color.YellowString("none found yet"))
	} else {
		name := strings.TrimSpace(st.Device.Vendor + " " + st.Device.Model)
		if name == "" {
			name = st.Device.Path
		}
		cmd.Printf("  Device: %s (%s)\n", bold("%s", name), st.Source)
	}

	if st.Percentage != nil {
		cmd.Printf("  Current charge: %s\n", bold("%s%%", humanize.FtoaWithDigits(*st.Percentage, 1)))
	}

	state := st.State
	switch st.Direction {
	case powerinfo.Charging:
		state = color.GreenString(state)
	case powerinfo.Discharging:
		state = color.RedString(state)
	}
	if state == "" {
		state = "unknown"
	}
	cmd.Printf("  State: %s\n", bold("%s", state))

	cmd.Println()
	cmd.Println(bold("Warnings:"))
	switch {
	case st.Suppressed:
		cmd.Println("  Next warning: " + color.YellowString("suppressed until the direction changes"))
	case st.NextDue != nil:
		cmd.Printf("  Next warning: %s\n", bold("%d%%", *st.NextDue))
	default:
		cmd.Println("  Next warning: none")
	}
	cmd.Printf("  Then: %s\n", formatIntList(st.Remaining))
	cmd.Printf("  Suppressed: %s\n", bool2Text(st.Suppressed))

	if len(st.RecentWarnings) > 0 {
		cmd.Println()
		cmd.Println(bold("Recent warnings:"))
		for _, w := range st.RecentWarnings {
			cmd.Printf("  %s %s%% %s\n", humanize.Time(w.Time), humanize.FtoaWithDigits(w.Percentage, 1), w.Text)
		}
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
