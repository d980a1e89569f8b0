package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/battwatch/battwatch/pkg/config"
	"github.com/battwatch/battwatch/pkg/events"
	"github.com/battwatch/battwatch/pkg/notify"
	"github.com/battwatch/battwatch/pkg/powerinfo"
	"github.com/battwatch/battwatch/pkg/utils/ptr"
)

func TestTrackWarnsOncePerEpoch(t *testing.T) {
	td := newTestDaemon(t, nil)
	sub := td.hub.Subscribe()

	src := newFakeSource(powerinfo.StateDischarging, 35)
	done := td.startTracking(src)

	// 35 is below 40: the first warning fires right away.
	waitFor(t, "first warning", func() bool {
		notes, _ := td.notifier.sent()
		return len(notes) == 1
	})
	notes, ids := td.notifier.sent()
	assert.Equal(t, "35%", notes[0].Title)
	assert.Equal(t, "Consider ending discharge.", notes[0].Body)
	assert.Equal(t, "battery-caution-symbolic", notes[0].Icon)
	require.Len(t, notes[0].Actions, 2)
	assert.Equal(t, "Suppress Future", notes[0].Actions[0].Label)

	st := td.mustStatus(t)
	assert.Equal(t, powerinfo.Discharging, st.Direction)
	require.NotNil(t, st.NextDue)
	assert.Equal(t, 30, *st.NextDue)

	// 28 crosses 30, 22 crosses nothing new.
	src.updates <- powerinfo.Update{Percentage: ptr.To(28.0)}
	src.updates <- powerinfo.Update{Percentage: ptr.To(22.0)}
	waitFor(t, "reading 22", func() bool {
		p := td.mustStatus(t).Percentage
		return p != nil && *p == 22
	})
	notes, _ = td.notifier.sent()
	require.Len(t, notes, 2)
	assert.Equal(t, "28%", notes[1].Title)

	// Plugging in closes both warnings and starts a charging epoch.
	src.updates <- powerinfo.Update{State: ptr.To(powerinfo.StateCharging)}
	waitFor(t, "warnings closed", func() bool {
		return len(td.notifier.closedIDs()) == 2
	})
	_, ids = td.notifier.sent()
	assert.ElementsMatch(t, ids[:2], td.notifier.closedIDs())
	assert.Equal(t, powerinfo.Charging, td.mustStatus(t).Direction)

	waitFor(t, "mqtt publish", func() bool { return len(td.publisher.Published()) == 2 })
	assert.Len(t, td.history.GetRecords(), 2)

	// The device goes away: the controller forgets everything.
	close(src.updates)
	<-done
	assert.True(t, src.isClosed())
	assert.Nil(t, td.currentSource())
	st = td.mustStatus(t)
	assert.Equal(t, powerinfo.NoDirection, st.Direction)
	assert.Nil(t, st.Percentage)
	assert.Empty(t, td.history.GetRecords())

	var names []string
	for len(sub) > 0 {
		names = append(names, (<-sub).Name)
	}
	assert.Contains(t, names, events.WarningFired)
	assert.Contains(t, names, events.EpochStarted)
	assert.Contains(t, names, events.ReadingChanged)
}

func TestNotificationActions(t *testing.T) {
	td := newTestDaemon(t, nil)
	src := newFakeSource(powerinfo.StateDischarging, 39)
	td.startTracking(src)

	waitFor(t, "warning", func() bool {
		notes, _ := td.notifier.sent()
		return len(notes) == 1
	})
	notes, ids := td.notifier.sent()

	notes[0].OnAction(ids[0], actionDismiss)
	assert.Equal(t, []uint32{ids[0]}, td.notifier.closedIDs())

	notes[0].OnAction(ids[0], actionSuppress)
	st := td.mustStatus(t)
	assert.True(t, st.Suppressed)
	assert.Nil(t, st.NextDue)

	src.updates <- powerinfo.Update{Percentage: ptr.To(10.0)}
	waitFor(t, "reading 10", func() bool {
		p := td.mustStatus(t).Percentage
		return p != nil && *p == 10
	})
	notes, _ = td.notifier.sent()
	assert.Len(t, notes, 1, "suppressed epoch must not warn")
}

func TestCriticalUrgencyNearEmpty(t *testing.T) {
	td := newTestDaemon(t, &config.RawFileConfig{DischargeWarnValues: ptr.To([]int{5})})
	td.startTracking(newFakeSource(powerinfo.StateDischarging, 4))

	waitFor(t, "warning", func() bool {
		notes, _ := td.notifier.sent()
		return len(notes) == 1
	})
	notes, _ := td.notifier.sent()
	assert.Equal(t, notify.UrgencyCritical, notes[0].Urgency)
}

func TestWatchDeviceExitsWithoutDevice(t *testing.T) {
	td := newTestDaemon(t, &config.RawFileConfig{ExitOnNoDevice: ptr.To(true)})
	td.openSource = func(context.Context) (powerinfo.Source, error) {
		return nil, powerinfo.ErrNoDevice
	}

	err := td.watchDevice(td.ctx)
	assert.ErrorIs(t, err, powerinfo.ErrNoDevice)
}

func TestWatchDeviceRetries(t *testing.T) {
	td := newTestDaemon(t, &config.RawFileConfig{DeviceRetryInterval: ptr.To("10ms")})
	src := newFakeSource(powerinfo.StateCharging, 50)

	attempts := 0
	td.openSource = func(context.Context) (powerinfo.Source, error) {
		attempts++
		switch attempts {
		case 1:
			return nil, powerinfo.ErrNoDevice
		case 2:
			return nil, errors.New("bus unavailable")
		default:
			return src, nil
		}
	}

	ctx, cancel := context.WithCancel(td.ctx)
	errc := make(chan error, 1)
	go func() { errc <- td.watchDevice(ctx) }()

	waitFor(t, "device", func() bool { return td.currentSource() != nil })
	assert.Equal(t, powerinfo.Charging, td.mustStatus(t).Direction)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watchDevice did not return after cancel")
	}
	assert.Equal(t, 3, attempts)
}
