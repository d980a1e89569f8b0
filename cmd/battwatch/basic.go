package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/battwatch/battwatch/pkg/client"
	"github.com/battwatch/battwatch/pkg/config"
	"github.com/battwatch/battwatch/pkg/events"
	"github.com/battwatch/battwatch/pkg/version"
)

func getVersion() (clientVersion, daemonVersion string, err error) {
	daemonVersion, err = apiClient.GetVersion()
	return version.Version, daemonVersion, err
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewSuppressCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "suppress",
		Short:   "Suppress warnings until the charging direction changes",
		GroupID: gBasic,
		Long: `Suppress warnings until the charging direction changes.

No further warnings are shown for the current charge or discharge. Plugging
in or unplugging re-arms them.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			disarmed, err := apiClient.Suppress()
			if err != nil {
				return err
			}
			if disarmed {
				logrus.Info("successfully suppressed warnings")
			} else {
				logrus.Info("no pending warnings to suppress")
			}
			return nil
		},
	}
}

func NewNotifyQueryCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "notify-query",
		Short:   "Show a desktop notification with battery details",
		GroupID: gBasic,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.NotifyQuery()
			if err != nil {
				return err
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}
}

func NewThresholdsCommand() *cobra.Command {
	var discharge, charge string

	cmd := &cobra.Command{
		Use:     "thresholds",
		Short:   "Show or change warning thresholds",
		GroupID: gBasic,
		Long: `Show or change warning thresholds.

Without flags the current thresholds are printed. Changing them re-arms the
warnings for the current charge or discharge and saves them to the config
file. Pass an empty list to disable warnings for a direction.`,
		Example: `  battwatch thresholds --discharge 30,20,10
  battwatch thresholds --charge ""`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			if !f.Changed("discharge") && !f.Changed("charge") {
				raw, err := apiClient.GetConfig()
				if err != nil {
					return err
				}
				conf := config.NewFileFromConfig(raw, "")
				cmd.Printf("Discharge: %s\n", formatIntList(conf.DischargeWarnValues()))
				cmd.Printf("Charge:    %s\n", formatIntList(conf.ChargeWarnValues()))
				return nil
			}

			var req client.Thresholds
			if f.Changed("discharge") {
				v, err := parseIntList(discharge)
				if err != nil {
					return err
				}
				req.Discharge = &v
			}
			if f.Changed("charge") {
				v, err := parseIntList(charge)
				if err != nil {
					return err
				}
				req.Charge = &v
			}

			ret, err := apiClient.SetThresholds(req)
			if err != nil {
				return err
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&discharge, "discharge", "", "comma-separated percentages to warn at while discharging")
	cmd.Flags().StringVar(&charge, "charge", "", "comma-separated percentages to warn at while charging")

	return cmd
}

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Short:   "Print daemon events as they happen",
		GroupID: gAdvanced,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// make sure the daemon is there before streaming
			if _, err := apiClient.GetVersion(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			for ev := range apiClient.SubscribeEvents(ctx) {
				cmd.Println(formatEvent(ev))
			}
			if ctx.Err() == nil {
				return fmt.Errorf("event stream closed by daemon")
			}
			return nil
		},
	}
}

func formatEvent(ev events.Event) string {
	return fmt.Sprintf("%s %s", bold("%s", ev.Name), string(ev.Data))
}
