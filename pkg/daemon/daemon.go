package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/godbus/dbus/v5"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/battwatch/battwatch/pkg/config"
	"github.com/battwatch/battwatch/pkg/events"
	"github.com/battwatch/battwatch/pkg/monitor"
	"github.com/battwatch/battwatch/pkg/mqtt"
	"github.com/battwatch/battwatch/pkg/notify"
	"github.com/battwatch/battwatch/pkg/powerinfo"
)

const (
	sinkQueueSize      = 16
	warningHistorySize = 20
)

var now = time.Now

// DefaultSocketPath is $XDG_RUNTIME_DIR/battwatch.sock.
func DefaultSocketPath() string {
	return filepath.Join(xdg.RuntimeDir, "battwatch.sock")
}

// Options configure Run.
type Options struct {
	ConfigPath string
	SocketPath string
	// Overrides are layered on top of the config file, usually from flags.
	Overrides *config.RawFileConfig
	// NoBusService skips claiming the session bus name.
	NoBusService bool
}

// Daemon wires a device source to the monitor controller and exposes it
// over the control socket and the session bus.
type Daemon struct {
	conf     *config.File
	log      logrus.FieldLogger
	loop     *Loop
	ctrl     *monitor.Controller
	hub      *events.EventHub
	history  *WarningRecorder
	notifier notify.Notifier

	// closers are the asynchronous sinks, closed on shutdown.
	closers []func()

	// openSource finds a device. Replaced in tests.
	openSource func(ctx context.Context) (powerinfo.Source, error)

	srcMu  sync.RWMutex
	source powerinfo.Source

	// queryNotification is the ID of the last query notification.
	queryNotification uint32
}

// New builds a Daemon. publisher may be nil when MQTT is disabled.
func New(conf *config.File, notifier notify.Notifier, publisher mqtt.Publisher, logger logrus.FieldLogger) *Daemon {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	d := &Daemon{
		conf:     conf,
		log:      logger,
		loop:     NewLoop(),
		hub:      events.NewEventHub(),
		history:  NewWarningRecorder(warningHistorySize),
		notifier: notifier,
	}
	d.openSource = d.defaultOpenSource

	notifications := monitor.NewAsyncSink(&notifySink{
		notifier: notifier,
		timeout:  conf.NotificationTimeout,
		icon:     d.icon,
		suppress: d.suppressFromNotification,
		log:      logger,
	}, sinkQueueSize, logger)
	d.closers = append(d.closers, notifications.Close)

	sinks := monitor.MultiSink{eventSink{hub: d.hub}, d.history, notifications}
	if publisher != nil {
		published := monitor.NewAsyncSink(mqtt.Sink{Publisher: publisher, Log: logger}, sinkQueueSize, logger)
		d.closers = append(d.closers, published.Close, func() { _ = publisher.Close() })
		sinks = append(sinks, published)
	}

	d.ctrl = monitor.NewController(settingsFrom(conf), sinks, logger)
	return d
}

func settingsFrom(conf config.Config) monitor.Settings {
	return monitor.Settings{
		DischargeValues: conf.DischargeWarnValues(),
		ChargeValues:    conf.ChargeWarnValues(),
		DischargeText:   conf.DischargeWarnText(),
		ChargeText:      conf.ChargeWarnText(),
	}
}

func (d *Daemon) currentSource() powerinfo.Source {
	d.srcMu.RLock()
	defer d.srcMu.RUnlock()
	return d.source
}

func (d *Daemon) setSource(src powerinfo.Source) {
	d.srcMu.Lock()
	defer d.srcMu.Unlock()
	d.source = src
}

// icon is the device's icon name, or notify.DefaultIcon when it has none.
func (d *Daemon) icon() string {
	src := d.currentSource()
	if src == nil {
		return notify.DefaultIcon
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if icon := src.Icon(ctx); icon != "" {
		return icon
	}
	return notify.DefaultIcon
}

// apply runs one device update through the controller and tells SSE
// subscribers about the new reading.
func (d *Daemon) apply(ctx context.Context, u powerinfo.Update) error {
	return d.loop.Do(ctx, func() {
		d.ctrl.Apply(u)
		d.hub.Publish(events.ReadingChanged, readingEvent(d.ctrl.Status()))
	})
}

func (d *Daemon) status(ctx context.Context) (monitor.Status, error) {
	var st monitor.Status
	err := d.loop.Do(ctx, func() {
		st = d.ctrl.Status()
	})
	return st, err
}

func (d *Daemon) suppress(ctx context.Context) (bool, error) {
	var disarmed bool
	var dir powerinfo.Direction
	err := d.loop.Do(ctx, func() {
		disarmed = d.ctrl.Suppress()
		dir = d.ctrl.Direction()
	})
	if err != nil {
		return false, err
	}
	if disarmed {
		d.hub.Publish(events.WarningsSuppressed, events.WarningsSuppressedEvent{
			Direction: dir.String(),
			Ts:        now().Unix(),
		})
	}
	return disarmed, nil
}

// suppressFromNotification runs on the notifier's signal goroutine.
func (d *Daemon) suppressFromNotification() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := d.suppress(ctx); err != nil {
		d.log.Errorf("failed to suppress warnings: %v", err)
	}
}

// reconfigure hands the current thresholds to the controller, which starts
// a new epoch for the current direction.
func (d *Daemon) reconfigure(ctx context.Context) error {
	settings := settingsFrom(d.conf)
	return d.loop.Do(ctx, func() {
		d.ctrl.Reconfigure(settings)
		d.hub.Publish(events.ReadingChanged, readingEvent(d.ctrl.Status()))
	})
}

func (d *Daemon) close() {
	for _, c := range d.closers {
		c()
	}
	d.hub.Close()
}

// removeStaleSocket removes a socket file left behind by a daemon that is
// no longer listening.
func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err == nil {
		_ = conn.Close()
		return pkgerrors.Errorf("%s is in use, is another daemon running?", path)
	}
	logrus.Debugf("removing stale socket %s", path)
	return os.Remove(path)
}

func Run(opts Options) error {
	conf, err := config.NewFile(opts.ConfigPath)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to parse config during startup")
	}
	if opts.Overrides != nil {
		conf.WithOverrides(opts.Overrides)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	notifier, err := notify.New("battwatch", logrus.StandardLogger())
	if err != nil {
		return err
	}
	defer func() {
		if err := notifier.Shutdown(); err != nil {
			logrus.Errorf("failed to release notifications: %v", err)
		}
	}()

	var publisher mqtt.Publisher
	if broker := conf.MQTTBroker(); broker != "" {
		p, err := mqtt.NewRealPublisher(broker, conf.MQTTClientID(), conf.MQTTTopic())
		if err != nil {
			logrus.WithField("broker", broker).Errorf("mqtt publishing disabled: %v", err)
		} else {
			logrus.WithFields(logrus.Fields{"broker": broker, "topic": conf.MQTTTopic()}).Info("publishing warnings to mqtt")
			publisher = p
		}
	}

	d := New(conf, notifier, publisher, logrus.StandardLogger())
	defer d.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.loop.Run(ctx)

	var busConn *dbus.Conn
	if !opts.NoBusService {
		busConn, err = exportBusService(d)
		if err != nil {
			return err
		}
		defer busConn.Close()
		logrus.WithField("name", BusServiceName).Info("bus service registered")
	}

	if err := os.MkdirAll(filepath.Dir(opts.SocketPath), 0o700); err != nil {
		return pkgerrors.Wrapf(err, "failed to create socket directory for %s", opts.SocketPath)
	}
	if err := removeStaleSocket(opts.SocketPath); err != nil {
		return err
	}
	l, err := net.Listen("unix", opts.SocketPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", opts.SocketPath)
	}
	defer os.Remove(opts.SocketPath)
	if err := os.Chmod(opts.SocketPath, 0o600); err != nil {
		return pkgerrors.Wrapf(err, "failed to change permissions of %s", opts.SocketPath)
	}

	srv := &http.Server{
		Handler: d.router(),
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("http server stopped: %v", err)
		}
	}()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		defer signal.Stop(sigc)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigc:
			}
			if err := conf.Load(); err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			if err := d.reconfigure(ctx); err != nil {
				logrus.Errorf("failed to apply reloaded config: %v", err)
				continue
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- d.watchDevice(ctx)
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	watching := true
	select {
	case sig := <-sigc:
		logrus.Infof("caught signal \"%s\": shutting down.", sig)
	case runErr = <-watchErr:
		watching = false
		logrus.Errorf("device watch stopped: %v", runErr)
	}

	// Ends the SSE streams, otherwise Shutdown waits for them.
	d.hub.Close()

	logrus.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	shutdownCancel()

	cancel()
	if watching {
		<-watchErr
	}
	<-d.loop.Done()

	logrus.Info("exiting")
	return runErr
}
