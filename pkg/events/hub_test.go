package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	h := NewEventHub()
	a := h.Subscribe()
	b := h.Subscribe()
	assert.Equal(t, 2, h.Subscribers())

	h.Publish(WarningFired, WarningFiredEvent{Percentage: 28, Direction: "discharging", Threshold: 30})

	for _, ch := range []chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, WarningFired, ev.Name)
		payload, err := DecodeAs[WarningFiredEvent](ev)
		require.NoError(t, err)
		assert.Equal(t, 28.0, payload.Percentage)
		assert.Equal(t, 30, payload.Threshold)
	}

	h.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)
	h.Unsubscribe(a)
	assert.Equal(t, 1, h.Subscribers())

	h.Close()
	_, open = <-b
	assert.False(t, open)
	assert.Zero(t, h.Subscribers())
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	for i := 0; i < cap(ch)+5; i++ {
		h.Publish(EpochStarted, EpochStartedEvent{Direction: "charging"})
	}
	assert.Len(t, ch, cap(ch))
}

func TestPublishOnNilHub(t *testing.T) {
	var h *EventHub
	assert.NotPanics(t, func() { h.Publish(ReadingChanged, nil) })
}

func TestDecodeAsEmpty(t *testing.T) {
	v, err := DecodeAs[EpochStartedEvent](Event{Name: EpochStarted})
	require.NoError(t, err)
	assert.Empty(t, v.Direction)

	_, err = DecodeAs[EpochStartedEvent](Event{Data: []byte("{")})
	assert.Error(t, err)
}
