package main

import (
	"fmt"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/battwatch/battwatch/pkg/config"
	daemonutils "github.com/battwatch/battwatch/pkg/utils/daemon"
)

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "install",
		Short:   "Install battwatch as a systemd user service",
		GroupID: gInstallation,
		Long: `Install battwatch daemon as a systemd user service.

This makes battwatch run in the background and start with your session.
A config file with the default thresholds is written if none exists.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.NewFile(configPath)
			if err != nil {
				return err
			}

			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := config.NewFileFromConfig(conf.Raw(), configPath).Save(); err != nil {
					return pkgerrors.Wrapf(err, "failed to save config")
				}
				logrus.Infof("wrote default config to %s", configPath)
			}

			err = daemonutils.Install()
			if err != nil {
				return fmt.Errorf("failed to install daemon: %v", err)
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()

			cmd.Printf("`systemd' will use current binary (%s) at startup so please make sure you do not move this binary. Once this binary is moved or deleted, you will need to run ``battwatch install'' again.\n", exePath)

			return nil
		},
	}
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Short:   "Uninstall the battwatch systemd user service",
		GroupID: gInstallation,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := daemonutils.Uninstall()
			if err != nil {
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			fmt.Println("successfully uninstalled")

			cmd.Printf("Your config is kept in %s, in case you want to use `battwatch' again. If you want a complete uninstall, you can remove both config file and battwatch itself manually.\n", configPath)

			return nil
		},
	}
}
