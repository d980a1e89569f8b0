package gui

import (
	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/battwatch/battwatch/pkg/client"
	"github.com/battwatch/battwatch/pkg/version"
)

func NewTrayCommand(unixSocketPath *string, groupID string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tray",
		Short:   "Show battery status in the system tray",
		GroupID: groupID,
		Long: `Show battery status in the system tray.

The tray follows the daemon's events and offers shortcuts to suppress
warnings and to show a battery status notification.`,
		Run: func(_ *cobra.Command, _ []string) {
			Run(*unixSocketPath)
		},
	}

	return cmd
}

// Run blocks until the tray is quit.
func Run(unixSocketPath string) {
	logrus.WithField("version", version.Version).WithField("gitCommit", version.GitCommit).Info("battwatch tray")
	t := &tray{api: client.NewClient(unixSocketPath)}
	systray.Run(t.onReady, t.onExit)
}
