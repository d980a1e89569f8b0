package daemon

import (
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const unitName = "battwatch.service"

const unitTemplate = `[Unit]
Description=Battery threshold warnings
After=graphical-session.target
PartOf=graphical-session.target

[Service]
Type=simple
ExecStart=/path/to/battwatch daemon
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure
RestartSec=10

[Install]
WantedBy=default.target
`

// UnitPath is where the systemd user unit is written.
func UnitPath() string {
	return filepath.Join(xdg.ConfigHome, "systemd", "user", unitName)
}

func renderUnit(exePath string) string {
	return strings.ReplaceAll(unitTemplate, "/path/to/battwatch", exePath)
}

var systemctl = func(args ...string) error {
	return runCommand("systemctl", append([]string{"--user"}, args...)...)
}
