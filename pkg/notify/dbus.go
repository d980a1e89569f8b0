//go:build linux

package notify

import (
	"sync"

	"github.com/godbus/dbus/v5"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	dbusNotifyDest      = "org.freedesktop.Notifications"
	dbusNotifyPath      = "/org/freedesktop/Notifications"
	dbusNotifyInterface = "org.freedesktop.Notifications"

	signalActionInvoked      = dbusNotifyInterface + ".ActionInvoked"
	signalNotificationClosed = dbusNotifyInterface + ".NotificationClosed"
)

// dbusNotifier sends notifications via D-Bus and routes invoked actions
// back to the notification's OnAction.
type dbusNotifier struct {
	appName string
	conn    *dbus.Conn
	obj     dbus.BusObject
	log     logrus.FieldLogger

	mu       sync.Mutex
	handlers map[uint32]func(id uint32, key string)

	signals chan *dbus.Signal
	done    chan struct{}
}

// New creates a Notifier that sends desktop notifications via D-Bus.
// Returns a no-op notifier if D-Bus is unavailable.
func New(appName string, logger logrus.FieldLogger) (Notifier, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		logger.Warnf("desktop notifications disabled: %v", err)
		return &stubNotifier{}, nil
	}

	n := newDBusNotifier(appName, logger)
	n.conn = conn
	n.obj = conn.Object(dbusNotifyDest, dbusNotifyPath)

	for _, member := range []string{"ActionInvoked", "NotificationClosed"} {
		err := conn.AddMatchSignal(
			dbus.WithMatchObjectPath(dbusNotifyPath),
			dbus.WithMatchInterface(dbusNotifyInterface),
			dbus.WithMatchMember(member),
		)
		if err != nil {
			_ = conn.Close()
			return nil, pkgerrors.Wrapf(err, "failed to subscribe to %s", member)
		}
	}
	conn.Signal(n.signals)
	go n.listen()

	return n, nil
}

func newDBusNotifier(appName string, logger logrus.FieldLogger) *dbusNotifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &dbusNotifier{
		appName:  appName,
		log:      logger,
		handlers: map[uint32]func(uint32, string){},
		signals:  make(chan *dbus.Signal, 16),
		done:     make(chan struct{}),
	}
}

func (n *dbusNotifier) listen() {
	defer close(n.done)
	for sig := range n.signals {
		n.dispatch(sig)
	}
}

// dispatch handles one signal from the notification server.
func (n *dbusNotifier) dispatch(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return
	}

	switch sig.Name {
	case signalActionInvoked:
		key, _ := sig.Body[1].(string)
		n.mu.Lock()
		h := n.handlers[id]
		n.mu.Unlock()
		if h == nil {
			return
		}
		n.log.WithFields(logrus.Fields{"id": id, "action": key}).Debug("notification action invoked")
		h(id, key)
	case signalNotificationClosed:
		n.mu.Lock()
		delete(n.handlers, id)
		n.mu.Unlock()
	}
}

// Notify sends a notification via D-Bus.
func (n *dbusNotifier) Notify(notif Notification) (uint32, error) {
	// Build hints map
	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(notif.Urgency)),
		"desktop-entry": dbus.MakeVariant(n.appName),
	}

	// Notify(app_name, replaces_id, icon, summary, body, actions, hints, timeout) -> id
	call := n.obj.Call(
		dbusNotifyInterface+".Notify",
		0,
		n.appName,
		notif.ReplacesID,
		notif.Icon,
		notif.Title,
		notif.Body,
		flattenActions(notif.Actions),
		hints,
		notif.Timeout,
	)
	if call.Err != nil {
		return 0, call.Err
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, err
	}

	if notif.OnAction != nil {
		n.mu.Lock()
		n.handlers[id] = notif.OnAction
		n.mu.Unlock()
	}

	return id, nil
}

// Close closes a notification by ID.
func (n *dbusNotifier) Close(id uint32) error {
	n.mu.Lock()
	delete(n.handlers, id)
	n.mu.Unlock()

	call := n.obj.Call(dbusNotifyInterface+".CloseNotification", 0, id)
	return call.Err
}

func (n *dbusNotifier) Shutdown() error {
	n.conn.RemoveSignal(n.signals)
	close(n.signals)
	<-n.done
	return n.conn.Close()
}
