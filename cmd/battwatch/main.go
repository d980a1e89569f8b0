package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/battwatch/battwatch/pkg/client"
	"github.com/battwatch/battwatch/pkg/config"
	"github.com/battwatch/battwatch/pkg/daemon"
	"github.com/battwatch/battwatch/pkg/gui"
)

var (
	logLevel       = "info"
	unixSocketPath = daemon.DefaultSocketPath()
	configPath     = config.DefaultPath()
)

var apiClient *client.Client

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	gInstallation = "Installation:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
		gInstallation,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, client.ErrDaemonNotRunning):
		fmt.Fprintln(os.Stderr, "\nError: battwatch daemon is not running")
		fmt.Fprintln(os.Stderr, "Is the daemon running? Have you installed it with 'battwatch install'?")
	case errors.Is(err, client.ErrPermissionDenied):
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintf(os.Stderr, "  - The daemon socket %s belongs to another user\n", unixSocketPath)
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(os.Stderr, "\nError: the daemon has not found a battery yet")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "battwatch",
		Short: "battwatch warns you when your battery crosses a threshold",
		Long: `battwatch warns you when your battery crosses a threshold.

While discharging it warns at each configured low threshold, and while
charging at each configured high threshold, once per threshold until the
charging direction changes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			apiClient = client.NewClient(unixSocketPath)

			// the daemon has nothing to compare against
			if cmd.Name() == "daemon" {
				return nil
			}
			if clientVersion, daemonVersion, err := getVersion(); err == nil {
				if daemonVersion != clientVersion {
					logrus.WithFields(logrus.Fields{
						"clientVersion": clientVersion,
						"daemonVersion": daemonVersion,
					}).Warn("Version mismatch between client and daemon. Restart the daemon after upgrading.")
				}
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "battwatch daemon unix socket path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewStatusCommand(),
		NewSuppressCommand(),
		NewNotifyQueryCommand(),
		NewThresholdsCommand(),
		NewWatchCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
		gui.NewTrayCommand(&unixSocketPath, gBasic),
	)

	return cmd
}
