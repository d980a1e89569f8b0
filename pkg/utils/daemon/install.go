package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

func Install() error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	return installUnit(UnitPath(), exePath)
}

func installUnit(unitPath, exePath string) error {
	logrus.Infof("writing systemd user unit to %s", unitPath)

	err := os.MkdirAll(filepath.Dir(unitPath), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(unitPath), err)
	}

	// warn if the file already exists
	_, err = os.Stat(unitPath)
	if err == nil {
		logrus.Warnf("%s already exists, overwriting", unitPath)
	}

	err = os.WriteFile(unitPath, []byte(renderUnit(exePath)), 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", unitPath, err)
	}

	if err := systemctl("daemon-reload"); err != nil {
		return err
	}

	logrus.Infof("starting battwatch")

	return systemctl("enable", "--now", unitName)
}

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to run %s %v: %w: %s", name, args, err, out)
	}
	return nil
}
