// Package poller is a portable powerinfo.Source that samples the first
// battery at a fixed interval.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/battwatch/battwatch/pkg/powerinfo"
)

// Getter lists the batteries. battery.GetAll is used outside tests.
type Getter func() ([]*battery.Battery, error)

var _ powerinfo.Source = &Source{}

type Source struct {
	get      Getter
	interval time.Duration
	device   powerinfo.Device
	log      logrus.FieldLogger

	mu   sync.Mutex
	last *reading
}

type reading struct {
	state      powerinfo.State
	percentage float64
}

// New samples battery.GetAll every interval.
func New(interval time.Duration, logger logrus.FieldLogger) (*Source, error) {
	return NewWithGetter(battery.GetAll, interval, logger)
}

// NewWithGetter returns powerinfo.ErrNoDevice when get reports no battery.
func NewWithGetter(get Getter, interval time.Duration, logger logrus.FieldLogger) (*Source, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Source{
		get:      get,
		interval: interval,
		device:   powerinfo.Device{Path: "battery0"},
		log:      logger,
	}

	if _, err := s.first(); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"device":   s.device.Path,
		"interval": interval,
	}).Info("found battery")

	return s, nil
}

// first returns the first battery. Partial errors from the platform are
// logged when at least one battery was read.
func (s *Source) first() (*battery.Battery, error) {
	batteries, err := s.get()
	if len(batteries) == 0 || batteries[0] == nil {
		if err != nil {
			return nil, pkgerrors.Wrapf(powerinfo.ErrNoDevice, "%v", err)
		}
		return nil, powerinfo.ErrNoDevice
	}
	if err != nil {
		s.log.Debugf("partial battery information: %v", err)
	}
	return batteries[0], nil
}

// StateOf maps a platform battery state to the closest UPower state code.
func StateOf(bat *battery.Battery) powerinfo.State {
	switch bat.State {
	case battery.Charging:
		return powerinfo.StateCharging
	case battery.Discharging:
		return powerinfo.StateDischarging
	case battery.Empty:
		return powerinfo.StateEmpty
	case battery.Full:
		return powerinfo.StateFullyCharged
	default:
		return powerinfo.StateUnknown
	}
}

// PercentageOf is the current charge relative to the last full charge.
func PercentageOf(bat *battery.Battery) float64 {
	if bat.Full <= 0 {
		return 0
	}
	p := bat.Current * 100 / bat.Full
	if p > 100 {
		p = 100
	}
	return p
}

func (s *Source) Device() powerinfo.Device {
	return s.device
}

func (s *Source) sample() (reading, error) {
	bat, err := s.first()
	if err != nil {
		return reading{}, err
	}
	return reading{state: StateOf(bat), percentage: PercentageOf(bat)}, nil
}

// Read returns the full current reading and remembers it, so that
// Subscribe only reports what changed afterwards.
func (s *Source) Read(_ context.Context) (powerinfo.Update, error) {
	r, err := s.sample()
	if err != nil {
		return powerinfo.Update{}, err
	}

	s.mu.Lock()
	s.last = &r
	s.mu.Unlock()

	return powerinfo.Update{State: &r.state, Percentage: &r.percentage}, nil
}

// diff records r and returns the fields that changed since the last
// sample.
func (s *Source) diff(r reading) (powerinfo.Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var u powerinfo.Update
	if s.last == nil || s.last.state != r.state {
		u.State = &r.state
	}
	if s.last == nil || s.last.percentage != r.percentage {
		u.Percentage = &r.percentage
	}
	s.last = &r
	return u, u.State != nil || u.Percentage != nil
}

// Subscribe samples every interval. The channel is closed when ctx is done
// or the battery can no longer be found.
func (s *Source) Subscribe(ctx context.Context) (<-chan powerinfo.Update, error) {
	out := make(chan powerinfo.Update)

	go func() {
		defer close(out)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			r, err := s.sample()
			if err != nil {
				s.log.WithField("device", s.device.Path).Warnf("battery lost: %v", err)
				return
			}
			u, changed := s.diff(r)
			if !changed {
				continue
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Query reads the battery. Power is in W, Energy in Wh.
func (s *Source) Query(_ context.Context) (*powerinfo.Info, error) {
	bat, err := s.first()
	if err != nil {
		return nil, err
	}
	return powerinfo.NewInfo(
		s.device,
		StateOf(bat),
		PercentageOf(bat),
		bat.ChargeRate/1000,
		bat.Current/1000,
		bat.Voltage,
	), nil
}

// Icon is always empty, the platform does not name one.
func (s *Source) Icon(_ context.Context) string {
	return ""
}

func (s *Source) Close() error {
	return nil
}
