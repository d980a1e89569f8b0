package daemon

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/battwatch/battwatch/pkg/config"
	"github.com/battwatch/battwatch/pkg/poller"
	"github.com/battwatch/battwatch/pkg/powerinfo"
	"github.com/battwatch/battwatch/pkg/upower"
)

func (d *Daemon) defaultOpenSource(ctx context.Context) (powerinfo.Source, error) {
	if d.conf.Source() == config.SourceUPower {
		src, err := upower.Open(ctx, d.log)
		if !errors.Is(err, upower.ErrUnsupported) {
			if err != nil {
				return nil, err
			}
			return src, nil
		}
		d.log.Warnf("%v, falling back to polling", err)
	}
	src, err := poller.New(d.conf.PollInterval(), d.log)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// watchDevice tracks a device until ctx is done. When no device is found,
// or the tracked one goes away, it retries every device_retry_interval, or
// returns powerinfo.ErrNoDevice when exit_on_no_device is set.
func (d *Daemon) watchDevice(ctx context.Context) error {
	for {
		src, err := d.openSource(ctx)
		switch {
		case err == nil:
			d.track(ctx, src)
		case errors.Is(err, powerinfo.ErrNoDevice):
			d.log.Warn("no battery device found")
			if d.conf.ExitOnNoDevice() {
				return err
			}
		default:
			d.log.Errorf("failed to open battery source: %v", err)
			if d.conf.ExitOnNoDevice() {
				return err
			}
		}

		if ctx.Err() != nil {
			return nil
		}

		retry := d.conf.DeviceRetryInterval()
		d.log.WithField("retryIn", retry).Info("waiting for a battery device")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retry):
		}
	}
}

// track feeds src into the controller until the device goes away or ctx is
// done. The controller is reset afterwards.
func (d *Daemon) track(ctx context.Context, src powerinfo.Source) {
	log := d.log.WithField("device", src.Device().Path)

	d.setSource(src)
	defer func() {
		d.setSource(nil)
		if err := src.Close(); err != nil {
			log.Debugf("failed to close source: %v", err)
		}
	}()

	// Subscribe before the initial read so no change falls in between.
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates, err := src.Subscribe(subCtx)
	if err != nil {
		log.Errorf("failed to watch battery: %v", err)
		return
	}

	if err := d.initialRead(ctx, src); err != nil {
		log.Errorf("failed to read battery: %v", err)
		return
	}

	for u := range updates {
		if err := d.apply(ctx, u); err != nil {
			break
		}
	}

	if ctx.Err() != nil {
		return
	}
	log.Warn("lost battery device")
	// The loop outlives ctx of a single device, so a failed reset only
	// happens on shutdown.
	_ = d.loop.Do(ctx, d.ctrl.Reset)
	// recent warnings belong to the lost device
	d.history.ClearRecords()
}

// initialRead applies the state first and then the percentage.
func (d *Daemon) initialRead(ctx context.Context, src powerinfo.Source) error {
	u, err := src.Read(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "initial read")
	}
	d.log.WithFields(logrus.Fields{
		"device":     src.Device().Path,
		"state":      ptrString(u.State),
		"percentage": ptrFloat(u.Percentage),
	}).Debug("initial reading")
	return d.apply(ctx, u)
}

func ptrString(s *powerinfo.State) string {
	if s == nil {
		return ""
	}
	return s.String()
}

func ptrFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
