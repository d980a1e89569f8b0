// Package monitor owns the live battery reading and converts device
// signals into threshold warnings.
//
// The Controller is single-threaded: callers must deliver one signal at a
// time. The daemon does this by running every call on one loop goroutine.
package monitor

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/battwatch/battwatch/pkg/powerinfo"
	"github.com/battwatch/battwatch/pkg/threshold"
	"github.com/battwatch/battwatch/pkg/utils/ptr"
)

// Settings is the configuration a Controller reads when it starts an epoch.
type Settings struct {
	DischargeValues []int
	ChargeValues    []int
	DischargeText   string
	ChargeText      string
}

func (s Settings) values(d powerinfo.Direction) []int {
	if d == powerinfo.Discharging {
		return s.DischargeValues
	}
	return s.ChargeValues
}

func (s Settings) text(d powerinfo.Direction) string {
	if d == powerinfo.Discharging {
		return s.DischargeText
	}
	return s.ChargeText
}

// Status is a read-only snapshot of the controller.
type Status struct {
	Direction  powerinfo.Direction `json:"direction"`
	State      string              `json:"state,omitempty"`
	Percentage *float64            `json:"percentage,omitempty"`
	NextDue    *int                `json:"nextDue,omitempty"`
	Suppressed bool                `json:"suppressed"`
	Remaining  []int               `json:"remaining"`
}

// Controller tracks the current direction and percentage and owns the
// threshold.Sequencer of the current epoch.
type Controller struct {
	settings Settings
	sink     Sink
	log      logrus.FieldLogger
	now      func() time.Time

	state      *powerinfo.State
	direction  powerinfo.Direction
	percentage *float64
	seq        *threshold.Sequencer
}

// NewController returns a Controller in the NoDirection state. A nil sink
// discards warnings; a nil logger uses the logrus standard logger.
func NewController(settings Settings, sink Sink, logger logrus.FieldLogger) *Controller {
	if sink == nil {
		sink = discard{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Controller{
		settings: settings,
		sink:     sink,
		log:      logger,
		now:      time.Now,
	}
}

// Apply handles one device change. A state carried together with a
// percentage is applied first.
func (c *Controller) Apply(u powerinfo.Update) {
	if u.State != nil {
		c.OnStateChanged(*u.State)
	}
	if u.Percentage != nil {
		c.OnPercentageChanged(*u.Percentage)
	}
}

// OnStateChanged maps a raw state code to a direction. A direction change
// starts a new epoch. Unknown codes are ignored.
func (c *Controller) OnStateChanged(s powerinfo.State) {
	d, ok := powerinfo.DirectionOf(s)
	if !ok {
		c.log.WithField("state", s.String()).Debug("ignoring state without a direction")
		return
	}
	c.state = ptr.To(s)

	if d != c.direction {
		c.direction = d
		c.newEpoch()
	}
	c.log.WithField("state", s.String()).Info("new state")
}

// OnPercentageChanged stores the reading and warns when the next due
// threshold has been reached. Before the first state arrives the reading is
// stored but not evaluated.
func (c *Controller) OnPercentageChanged(p float64) {
	c.percentage = ptr.To(p)
	c.log.WithField("percentage", p).Info("new percentage")

	if c.seq == nil {
		return
	}
	c.evaluate(p)
}

func (c *Controller) evaluate(p float64) {
	res := c.seq.Evaluate(p)
	if res.Fired {
		w := Warning{
			Percentage: res.Percentage,
			Direction:  c.direction,
			Text:       c.settings.text(c.direction),
			Threshold:  res.Crossed,
			Time:       c.now(),
		}
		c.log.WithFields(logrus.Fields{
			"percentage": w.Percentage,
			"direction":  w.Direction,
			"threshold":  w.Threshold,
		}).Infof("battery is now at %v percent. %s", w.Percentage, w.Text)
		for _, skipped := range res.Skipped {
			c.log.WithField("threshold", skipped).Info("catching up, discarding")
		}
		c.sink.Warn(w)
	}
	c.logNextDue()
}

// Suppress stops warnings for the rest of the current epoch. It is a no-op
// when nothing is armed. The returned bool reports whether a pending
// threshold was disarmed.
func (c *Controller) Suppress() bool {
	if c.seq == nil {
		return false
	}
	disarmed := c.seq.Suppress()
	if disarmed {
		c.log.WithField("direction", c.direction).Info("suppressing future warnings for this state change")
		c.logNextDue()
	}
	return disarmed
}

// Reconfigure replaces the threshold sets. The direction does not change,
// so no new epoch starts: the new sequencer is moved past the last reading
// without firing and a suppressed epoch stays suppressed.
func (c *Controller) Reconfigure(settings Settings) {
	c.settings = settings
	if c.direction == powerinfo.NoDirection {
		return
	}

	suppressed := c.seq != nil && c.seq.Suppressed()
	c.seq = threshold.New(c.settings.values(c.direction), c.direction)
	entry := c.log.WithFields(logrus.Fields{
		"direction":  c.direction,
		"thresholds": c.seq.Thresholds(),
	})
	if c.percentage != nil {
		entry = entry.WithField("skipped", c.seq.SkipPast(*c.percentage))
	}
	if suppressed {
		c.seq.Suppress()
	}
	entry.Info("warning set replaced")
	c.logNextDue()
}

// Reset forgets the device: the reading, the direction and the epoch.
// It is used when the tracked device goes away.
func (c *Controller) Reset() {
	c.state = nil
	c.percentage = nil
	c.direction = powerinfo.NoDirection
	c.seq = nil
}

// Status returns a snapshot of the current reading and epoch.
func (c *Controller) Status() Status {
	st := Status{
		Direction: c.direction,
		Remaining: []int{},
	}
	if c.state != nil {
		st.State = c.state.String()
	}
	if c.percentage != nil {
		st.Percentage = ptr.To(*c.percentage)
	}
	if c.seq != nil {
		if due, ok := c.seq.NextDue(); ok {
			st.NextDue = ptr.To(due)
		}
		st.Suppressed = c.seq.Suppressed()
		st.Remaining = c.seq.Remaining()
		if st.Remaining == nil {
			st.Remaining = []int{}
		}
	}
	return st
}

// Direction returns the direction of the current epoch.
func (c *Controller) Direction() powerinfo.Direction {
	return c.direction
}

func (c *Controller) newEpoch() {
	c.seq = threshold.New(c.settings.values(c.direction), c.direction)
	c.log.WithFields(logrus.Fields{
		"direction":  c.direction,
		"thresholds": c.seq.Thresholds(),
	}).Info("new warning set generated")
	if es, ok := c.sink.(EpochSink); ok {
		es.NewEpoch(c.direction)
	}
}

func (c *Controller) logNextDue() {
	entry := c.log.WithField("direction", c.direction)
	if due, ok := c.seq.NextDue(); ok {
		entry.WithField("nextDue", due).Debug("next warning")
		return
	}
	entry.Debug("no further warnings")
}
