//go:build linux

package upower

import (
	"context"

	"github.com/godbus/dbus/v5"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/battwatch/battwatch/pkg/powerinfo"
)

var _ powerinfo.Source = &Source{}

// Source is a powerinfo.Source backed by one UPower device.
type Source struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	device powerinfo.Device
	log    logrus.FieldLogger
}

// Open connects to the system bus and tracks the first battery that
// supplies power to the system. It returns powerinfo.ErrNoDevice when there
// is none.
func Open(ctx context.Context, logger logrus.FieldLogger) (*Source, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to connect to the system bus")
	}

	path, props, err := discover(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	s := &Source{
		conn: conn,
		obj:  conn.Object(busName, path),
		device: powerinfo.Device{
			Path:   string(path),
			Vendor: variantAs[string](props, "Vendor"),
			Model:  variantAs[string](props, "Model"),
		},
		log: logger,
	}
	s.log.WithFields(logrus.Fields{
		"device": s.device.Path,
		"vendor": s.device.Vendor,
		"model":  s.device.Model,
	}).Info("found battery")

	return s, nil
}

func discover(ctx context.Context, conn *dbus.Conn) (dbus.ObjectPath, map[string]dbus.Variant, error) {
	var paths []dbus.ObjectPath
	err := conn.Object(busName, rootPath).
		CallWithContext(ctx, rootInterface+".EnumerateDevices", 0).
		Store(&paths)
	if err != nil {
		return "", nil, pkgerrors.Wrap(err, "failed to enumerate UPower devices")
	}

	for _, p := range paths {
		props, err := getAll(ctx, conn.Object(busName, p))
		if err != nil {
			logrus.WithField("device", p).Debugf("skipping device: %v", err)
			continue
		}
		if isPowerSupplyBattery(props) {
			return p, props, nil
		}
	}

	return "", nil, powerinfo.ErrNoDevice
}

func getAll(ctx context.Context, obj dbus.BusObject) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	err := obj.CallWithContext(ctx, propertiesInterface+".GetAll", 0, deviceInterface).Store(&props)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read properties of %s", obj.Path())
	}
	return props, nil
}

func (s *Source) get(ctx context.Context, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := s.obj.CallWithContext(ctx, propertiesInterface+".Get", 0, deviceInterface, name).Store(&v)
	if err != nil {
		return v, pkgerrors.Wrapf(err, "failed to read %s of %s", name, s.device.Path)
	}
	return v, nil
}

func (s *Source) Device() powerinfo.Device {
	return s.device
}

// Read returns the current State and Percentage.
func (s *Source) Read(ctx context.Context) (powerinfo.Update, error) {
	var u powerinfo.Update

	v, err := s.get(ctx, "State")
	if err != nil {
		return u, err
	}
	if raw, ok := v.Value().(uint32); ok {
		state := powerinfo.State(raw)
		u.State = &state
	}

	v, err = s.get(ctx, "Percentage")
	if err != nil {
		return u, err
	}
	if p, ok := v.Value().(float64); ok {
		u.Percentage = &p
	}

	return u, nil
}

// Subscribe listens for PropertiesChanged on the device and for its
// removal.
func (s *Source) Subscribe(ctx context.Context) (<-chan powerinfo.Update, error) {
	path := dbus.ObjectPath(s.device.Path)

	err := s.conn.AddMatchSignalContext(ctx,
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to subscribe to device changes")
	}
	err = s.conn.AddMatchSignalContext(ctx,
		dbus.WithMatchObjectPath(rootPath),
		dbus.WithMatchInterface(rootInterface),
		dbus.WithMatchMember("DeviceRemoved"),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to subscribe to device removal")
	}

	signals := make(chan *dbus.Signal, 16)
	s.conn.Signal(signals)

	out := make(chan powerinfo.Update)
	go func() {
		defer close(out)
		defer s.conn.RemoveSignal(signals)

		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					s.log.Warn("system bus connection closed")
					return
				}
				switch {
				case sig.Name == rootInterface+".DeviceRemoved":
					if removedPath(sig.Body) == path {
						s.log.WithField("device", s.device.Path).Warn("battery removed")
						return
					}
				case sig.Path == path && sig.Name == propertiesInterface+".PropertiesChanged":
					u, ok := parseChange(sig.Body)
					if !ok {
						continue
					}
					select {
					case out <- u:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}

// Query asks UPower to refresh the device and reads it. A failed refresh
// is logged and the cached values are returned.
func (s *Source) Query(ctx context.Context) (*powerinfo.Info, error) {
	if call := s.obj.CallWithContext(ctx, deviceInterface+".Refresh", 0); call.Err != nil {
		s.log.WithField("device", s.device.Path).Warnf("failed to refresh device: %v", call.Err)
	}

	props, err := getAll(ctx, s.obj)
	if err != nil {
		return nil, err
	}
	return infoFromProperties(s.device, props), nil
}

func (s *Source) Icon(ctx context.Context) string {
	v, err := s.get(ctx, "IconName")
	if err != nil {
		s.log.Debugf("no icon: %v", err)
		return ""
	}
	icon, _ := v.Value().(string)
	return icon
}

func (s *Source) Close() error {
	return s.conn.Close()
}
