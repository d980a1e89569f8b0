package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/battwatch/battwatch/pkg/config"
	"github.com/battwatch/battwatch/pkg/daemon"
	"github.com/battwatch/battwatch/pkg/version"
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	var (
		dischargeValues string
		chargeValues    string
		dischargeText   string
		chargeText      string
		noBusService    bool
	)

	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run battwatch daemon in the foreground",
		GroupID: gAdvanced,
		Long: `Run battwatch daemon in the foreground.

Flags given here take precedence over the config file and are not saved
back to it. Send SIGHUP to reload the config file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides := &config.RawFileConfig{}
			f := cmd.Flags()

			if f.Changed("discharge-warn-values") {
				v, err := parseIntList(dischargeValues)
				if err != nil {
					return err
				}
				overrides.DischargeWarnValues = &v
			}
			if f.Changed("charge-warn-values") {
				v, err := parseIntList(chargeValues)
				if err != nil {
					return err
				}
				overrides.ChargeWarnValues = &v
			}
			if f.Changed("discharge-warn-text") {
				overrides.DischargeWarnText = &dischargeText
			}
			if f.Changed("charge-warn-text") {
				overrides.ChargeWarnText = &chargeText
			}
			if err := overrides.Validate(); err != nil {
				return err
			}

			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("battwatch daemon starting")

			return daemon.Run(daemon.Options{
				ConfigPath:   configPath,
				SocketPath:   unixSocketPath,
				Overrides:    overrides,
				NoBusService: noBusService,
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&dischargeValues, "discharge-warn-values", "", "comma-separated percentages to warn at while discharging, e.g. 30,20,10")
	f.StringVar(&chargeValues, "charge-warn-values", "", "comma-separated percentages to warn at while charging, e.g. 80,90")
	f.StringVar(&dischargeText, "discharge-warn-text", "", "advisory text of discharge warnings")
	f.StringVar(&chargeText, "charge-warn-text", "", "advisory text of charge warnings")
	f.BoolVar(&noBusService, "no-bus-service", false, "do not export the org.battwatch.Monitor service on the session bus")

	return cmd
}
