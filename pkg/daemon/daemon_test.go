package daemon

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/battwatch/battwatch/pkg/config"
	"github.com/battwatch/battwatch/pkg/monitor"
	"github.com/battwatch/battwatch/pkg/mqtt"
	"github.com/battwatch/battwatch/pkg/notify"
	"github.com/battwatch/battwatch/pkg/powerinfo"
	"github.com/battwatch/battwatch/pkg/utils/ptr"
)

type fakeNotifier struct {
	mu     sync.Mutex
	notes  []notify.Notification
	ids    []uint32
	closed []uint32
	nextID uint32
}

func (f *fakeNotifier) Notify(n notify.Notification) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.notes = append(f.notes, n)
	f.ids = append(f.ids, f.nextID)
	return f.nextID, nil
}

func (f *fakeNotifier) Close(id uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
	return nil
}

func (f *fakeNotifier) Shutdown() error { return nil }

func (f *fakeNotifier) sent() ([]notify.Notification, []uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Notification(nil), f.notes...), append([]uint32(nil), f.ids...)
}

func (f *fakeNotifier) closedIDs() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32(nil), f.closed...)
}

// fakeSource replays an initial reading and whatever is sent on updates.
// Closing updates simulates losing the device.
type fakeSource struct {
	device  powerinfo.Device
	initial powerinfo.Update
	updates chan powerinfo.Update
	info    *powerinfo.Info
	icon    string

	mu     sync.Mutex
	closed bool
}

func newFakeSource(state powerinfo.State, percentage float64) *fakeSource {
	return &fakeSource{
		device:  powerinfo.Device{Path: "/fake/battery0", Vendor: "ACME", Model: "B1"},
		initial: powerinfo.Update{State: ptr.To(state), Percentage: ptr.To(percentage)},
		updates: make(chan powerinfo.Update),
		icon:    "battery-caution-symbolic",
	}
}

func (f *fakeSource) Device() powerinfo.Device { return f.device }

func (f *fakeSource) Read(_ context.Context) (powerinfo.Update, error) {
	return f.initial, nil
}

func (f *fakeSource) Subscribe(ctx context.Context) (<-chan powerinfo.Update, error) {
	out := make(chan powerinfo.Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-f.updates:
				if !ok {
					return
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeSource) Query(_ context.Context) (*powerinfo.Info, error) {
	if f.info == nil {
		return powerinfo.NewInfo(f.device, *f.initial.State, *f.initial.Percentage, 0, 0, 0), nil
	}
	return f.info, nil
}

func (f *fakeSource) Icon(_ context.Context) string { return f.icon }

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type testDaemon struct {
	*Daemon
	notifier  *fakeNotifier
	publisher *mqtt.FakePublisher
	ctx       context.Context
}

func newTestDaemon(t *testing.T, raw *config.RawFileConfig) *testDaemon {
	t.Helper()
	if raw == nil {
		raw = &config.RawFileConfig{
			DischargeWarnValues: ptr.To([]int{40, 30, 20}),
			ChargeWarnValues:    ptr.To([]int{80, 90}),
		}
	}
	conf := config.NewFileFromConfig(raw, filepath.Join(t.TempDir(), "config.toml"))
	logger, _ := test.NewNullLogger()
	n := &fakeNotifier{}
	p := mqtt.NewFakePublisher()

	d := New(conf, n, p, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go d.loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-d.loop.Done()
		d.close()
	})

	return &testDaemon{Daemon: d, notifier: n, publisher: p, ctx: ctx}
}

// startTracking runs track on src and returns a channel closed when it
// returns.
func (td *testDaemon) startTracking(src *fakeSource) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		td.track(td.ctx, src)
	}()
	return done
}

func (td *testDaemon) mustStatus(t *testing.T) monitor.Status {
	t.Helper()
	st, err := td.status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	return st
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
