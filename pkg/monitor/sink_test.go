package monitor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/battwatch/battwatch/pkg/powerinfo"
)

type lockedSink struct {
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (l *lockedSink) Warn(w Warning) {
	if l.block != nil {
		<-l.block
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, "warn:"+w.Text)
}

func (l *lockedSink) NewEpoch(d powerinfo.Direction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, "epoch:"+d.String())
}

func (l *lockedSink) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func TestMultiSink(t *testing.T) {
	a := &recordingSink{}
	var plain []Warning
	m := MultiSink{a, SinkFunc(func(w Warning) { plain = append(plain, w) })}

	m.NewEpoch(powerinfo.Charging)
	m.Warn(Warning{Percentage: 81})

	assert.Equal(t, []powerinfo.Direction{powerinfo.Charging}, a.epochs)
	assert.Len(t, a.warnings, 1)
	assert.Len(t, plain, 1)
}

func TestAsyncSinkKeepsOrder(t *testing.T) {
	next := &lockedSink{}
	a := NewAsyncSink(next, 8, nil)

	a.NewEpoch(powerinfo.Discharging)
	a.Warn(Warning{Text: "one"})
	a.Warn(Warning{Text: "two"})
	a.Close()

	assert.Equal(t, []string{"epoch:discharging", "warn:one", "warn:two"}, next.snapshot())

	// calls after Close are dropped
	a.Warn(Warning{Text: "late"})
	a.Close()
	assert.Len(t, next.snapshot(), 3)
}

func TestAsyncSinkDoesNotBlock(t *testing.T) {
	next := &lockedSink{block: make(chan struct{})}
	a := NewAsyncSink(next, 1, nil)

	// first job is picked up and blocks, second fills the queue, the rest drop
	for i := 0; i < 10; i++ {
		a.Warn(Warning{Text: "x"})
	}
	close(next.block)
	a.Close()

	got := len(next.snapshot())
	assert.GreaterOrEqual(t, got, 1)
	assert.LessOrEqual(t, got, 2)
}

func TestAsyncSinkSkipsEpochForPlainSink(t *testing.T) {
	var got []Warning
	a := NewAsyncSink(SinkFunc(func(w Warning) { got = append(got, w) }), 4, nil)
	a.NewEpoch(powerinfo.Charging)
	a.Warn(Warning{Percentage: 90})
	a.Close()
	assert.Len(t, got, 1)
}
