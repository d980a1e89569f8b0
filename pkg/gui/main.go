package gui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"

	"github.com/battwatch/battwatch/pkg/client"
	"github.com/battwatch/battwatch/pkg/events"
	"github.com/battwatch/battwatch/pkg/powerinfo"
)

const refreshInterval = 30 * time.Second

type tray struct {
	api *client.Client

	status    *systray.MenuItem
	next      *systray.MenuItem
	suppress  *systray.MenuItem
	notify    *systray.MenuItem
	quit      *systray.MenuItem
	cancelCtx context.CancelFunc
}

func (t *tray) onReady() {
	systray.SetTitle("🔋 Loading...")
	systray.SetTooltip("battwatch - Battery Warnings")

	t.status = systray.AddMenuItem("Status: Connecting...", "Current battery status")
	t.status.Disable()

	t.next = systray.AddMenuItem("Next warning: -", "Next threshold that will trigger a warning")
	t.next.Disable()

	systray.AddSeparator()

	t.suppress = systray.AddMenuItem("Suppress warnings", "Silence warnings until charging direction changes")
	t.notify = systray.AddMenuItem("Show battery status", "Show a notification with battery details")

	systray.AddSeparator()
	t.quit = systray.AddMenuItem("Quit", "Quit the tray")

	ctx, cancel := context.WithCancel(context.Background())
	t.cancelCtx = cancel

	refresh := make(chan struct{}, 1)
	go t.followEvents(ctx, refresh)
	go t.handleClicks(ctx, refresh)

	t.update()
}

func (t *tray) onExit() {
	if t.cancelCtx != nil {
		t.cancelCtx()
	}
	logrus.Info("battwatch tray exiting")
}

func (t *tray) handleClicks(ctx context.Context, refresh <-chan struct{}) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.suppress.ClickedCh:
			disarmed, err := t.api.Suppress()
			if err != nil {
				logrus.Errorf("failed to suppress warnings: %v", err)
				continue
			}
			logrus.WithField("disarmed", disarmed).Info("suppressed warnings")
			t.update()
		case <-t.notify.ClickedCh:
			if _, err := t.api.NotifyQuery(); err != nil {
				logrus.Errorf("failed to show battery status: %v", err)
			}
		case <-t.quit.ClickedCh:
			systray.Quit()
			return
		case <-refresh:
			t.update()
		case <-ticker.C:
			t.update()
		}
	}
}

// followEvents requests a refresh on every daemon event and resubscribes
// when the stream drops.
func (t *tray) followEvents(ctx context.Context, refresh chan<- struct{}) {
	for {
		for ev := range t.api.SubscribeEvents(ctx) {
			logrus.WithFields(logrus.Fields{
				"event": ev.Name,
				"data":  string(ev.Data),
			}).Debug("new event")

			if ev.Name == events.WarningFired {
				if w, err := events.DecodeAs[events.WarningFiredEvent](ev); err == nil {
					logrus.WithField("percentage", w.Percentage).Info("warning fired")
				}
			}

			select {
			case refresh <- struct{}{}:
			default:
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (t *tray) update() {
	st, err := t.api.GetStatus()
	if err != nil {
		systray.SetTitle("🚫 Offline")
		t.status.SetTitle("Status: Disconnected")
		t.next.SetTitle("Next warning: -")
		logrus.Debugf("cannot get daemon status: %v", err)
		return
	}

	systray.SetTitle(trayTitle(st))
	t.status.SetTitle(statusLine(st))
	t.next.SetTitle(nextLine(st))
	if st.Suppressed {
		t.suppress.Disable()
	} else {
		t.suppress.Enable()
	}
}

func trayTitle(st *client.Status) string {
	if st.Percentage == nil {
		return "🔋 -"
	}
	icon := "🔋"
	if st.Direction == powerinfo.Charging {
		icon = "⚡️"
	}
	title := fmt.Sprintf("%s %s%%", icon, humanize.FtoaWithDigits(*st.Percentage, 0))
	if st.NextDue != nil && !st.Suppressed {
		title += fmt.Sprintf(" → %d%%", *st.NextDue)
	}
	return title
}

func statusLine(st *client.Status) string {
	state := st.State
	if state == "" {
		state = "Unknown"
	}
	parts := []string{"Status: " + state}
	if st.Device != nil && st.Device.Model != "" {
		parts = append(parts, st.Device.Model)
	}
	return strings.Join(parts, " · ")
}

func nextLine(st *client.Status) string {
	switch {
	case st.Suppressed:
		return "Next warning: suppressed"
	case st.NextDue == nil:
		return "Next warning: none"
	default:
		return fmt.Sprintf("Next warning: %d%%", *st.NextDue)
	}
}
