package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	pkgerrors "github.com/pkg/errors"

	"github.com/battwatch/battwatch/pkg/powerinfo"
)

const (
	BusServiceName      = "org.battwatch.Monitor"
	BusServicePath      = "/org/battwatch/Monitor"
	busServiceInterface = "org.battwatch.Monitor"

	busCallTimeout = 10 * time.Second
)

// busService is exported on the session bus so that desktop shortcuts can
// call the daemon without the control socket.
type busService struct {
	d *Daemon
}

func (b *busService) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), busCallTimeout)
}

// Query returns the refreshed device reading.
func (b *busService) Query() (map[string]dbus.Variant, *dbus.Error) {
	ctx, cancel := b.context()
	defer cancel()

	info, err := b.d.query(ctx)
	if err != nil {
		return nil, dbus.MakeFailedError(err)
	}
	return infoVariants(info), nil
}

// NotifyQuery shows the query result as a notification.
func (b *busService) NotifyQuery() *dbus.Error {
	ctx, cancel := b.context()
	defer cancel()

	if err := b.d.notifyQuery(ctx); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Suppress stops warnings until the direction changes. It reports whether a
// pending warning was disarmed.
func (b *busService) Suppress() (bool, *dbus.Error) {
	ctx, cancel := b.context()
	defer cancel()

	disarmed, err := b.d.suppress(ctx)
	if err != nil {
		return false, dbus.MakeFailedError(err)
	}
	return disarmed, nil
}

func infoVariants(info *powerinfo.Info) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"vendor":     dbus.MakeVariant(info.Vendor),
		"model":      dbus.MakeVariant(info.Model),
		"percentage": dbus.MakeVariant(info.Percentage),
		"power":      dbus.MakeVariant(info.Power),
		"energy":     dbus.MakeVariant(info.Energy),
		"voltage":    dbus.MakeVariant(info.Voltage),
		"state":      dbus.MakeVariant(info.State),
		"sign":       dbus.MakeVariant(info.Sign),
	}
}

// exportBusService connects to the session bus and claims BusServiceName.
// It fails when another daemon already owns the name.
func exportBusService(d *Daemon) (*dbus.Conn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to connect to the session bus")
	}

	svc := &busService{d: d}
	if err := conn.Export(svc, BusServicePath, busServiceInterface); err != nil {
		_ = conn.Close()
		return nil, pkgerrors.Wrap(err, "failed to export bus service")
	}

	node := &introspect.Node{
		Name: BusServicePath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    busServiceInterface,
				Methods: introspect.Methods(svc),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), BusServicePath, "org.freedesktop.DBus.Introspectable"); err != nil {
		_ = conn.Close()
		return nil, pkgerrors.Wrap(err, "failed to export introspection data")
	}

	reply, err := conn.RequestName(BusServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		_ = conn.Close()
		return nil, pkgerrors.Wrapf(err, "failed to request bus name %s", BusServiceName)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Close()
		return nil, fmt.Errorf("bus name %s is already taken, is another daemon running?", BusServiceName)
	}

	return conn, nil
}
