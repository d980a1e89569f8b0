package daemon

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

func Uninstall() error {
	return uninstallUnit(UnitPath())
}

func uninstallUnit(unitPath string) error {
	// if the file doesn't exist, we don't need to remove it
	_, err := os.Stat(unitPath)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Infof("%s does not exist, nothing to do", unitPath)
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", unitPath, err)
	}

	logrus.Infof("stopping battwatch")

	if err := systemctl("disable", "--now", unitName); err != nil {
		logrus.Warnf("failed to disable %s: %v", unitName, err)
	}

	logrus.Infof("removing systemd user unit")

	err = os.Remove(unitPath)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", unitPath, err)
	}

	return systemctl("daemon-reload")
}
