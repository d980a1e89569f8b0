package daemon

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/battwatch/battwatch/pkg/events"
	"github.com/battwatch/battwatch/pkg/monitor"
	"github.com/battwatch/battwatch/pkg/notify"
	"github.com/battwatch/battwatch/pkg/powerinfo"
)

const (
	actionSuppress = "suppress"
	actionDismiss  = "dismiss"
)

// notifySink shows each warning as a desktop notification and closes the
// open ones when a new epoch starts.
type notifySink struct {
	notifier notify.Notifier
	timeout  func() int32
	icon     func() string
	suppress func()
	log      logrus.FieldLogger

	mu   sync.Mutex
	open []uint32
}

var _ monitor.EpochSink = &notifySink{}

func formatPercentage(p float64) string {
	return humanize.FtoaWithDigits(p, 1) + "%"
}

func (s *notifySink) Warn(w monitor.Warning) {
	icon := s.icon()
	if icon == "" {
		icon = notify.DefaultIcon
	}
	urgency := notify.UrgencyNormal
	if w.Direction == powerinfo.Discharging && w.Threshold <= 5 {
		urgency = notify.UrgencyCritical
	}

	id, err := s.notifier.Notify(notify.Notification{
		Title:   formatPercentage(w.Percentage),
		Body:    w.Text,
		Icon:    icon,
		Timeout: s.timeout(),
		Urgency: urgency,
		Actions: []notify.Action{
			{Key: actionSuppress, Label: "Suppress Future"},
			{Key: actionDismiss, Label: "Dismiss"},
		},
		OnAction: s.onAction,
	})
	if err != nil {
		s.log.WithField("percentage", w.Percentage).Errorf("failed to show warning: %v", err)
		return
	}
	if id == 0 {
		return
	}

	s.mu.Lock()
	s.open = append(s.open, id)
	s.mu.Unlock()
}

func (s *notifySink) onAction(id uint32, key string) {
	switch key {
	case actionSuppress:
		s.suppress()
	case actionDismiss:
		if err := s.notifier.Close(id); err != nil {
			s.log.WithField("id", id).Debugf("failed to close notification: %v", err)
		}
	}
}

// NewEpoch closes every warning shown for the previous epoch.
func (s *notifySink) NewEpoch(_ powerinfo.Direction) {
	s.mu.Lock()
	open := s.open
	s.open = nil
	s.mu.Unlock()

	for _, id := range open {
		// The user may have closed it already.
		if err := s.notifier.Close(id); err != nil {
			s.log.WithField("id", id).Debugf("failed to close notification: %v", err)
		}
	}
}

// eventSink publishes warnings and epochs to SSE subscribers. The hub never
// blocks, so it is called on the loop goroutine directly.
type eventSink struct {
	hub *events.EventHub
}

var _ monitor.EpochSink = eventSink{}

func (s eventSink) Warn(w monitor.Warning) {
	s.hub.Publish(events.WarningFired, events.WarningFiredEvent{
		Percentage: w.Percentage,
		Direction:  w.Direction.String(),
		Text:       w.Text,
		Threshold:  w.Threshold,
		Ts:         w.Time.Unix(),
	})
}

func (s eventSink) NewEpoch(d powerinfo.Direction) {
	s.hub.Publish(events.EpochStarted, events.EpochStartedEvent{
		Direction: d.String(),
		Ts:        now().Unix(),
	})
}

func readingEvent(st monitor.Status) events.ReadingChangedEvent {
	return events.ReadingChangedEvent{
		State:      st.State,
		Percentage: st.Percentage,
		Direction:  st.Direction.String(),
		NextDue:    st.NextDue,
		Ts:         now().Unix(),
	}
}

func describeStatus(st monitor.Status) string {
	if st.Percentage == nil {
		return "no reading yet"
	}
	msg := fmt.Sprintf("%s, %s", formatPercentage(*st.Percentage), st.Direction)
	if st.NextDue != nil {
		msg += fmt.Sprintf(", next warning at %d%%", *st.NextDue)
	}
	return msg
}
