package monitor

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/battwatch/battwatch/pkg/powerinfo"
)

// Warning is emitted once per threshold crossing episode.
type Warning struct {
	// Percentage is the live reading, not the threshold value.
	Percentage float64             `json:"percentage"`
	Direction  powerinfo.Direction `json:"direction"`
	Text       string              `json:"text"`
	// Threshold is the threshold that was due when the warning fired.
	Threshold int       `json:"threshold"`
	Time      time.Time `json:"time"`
}

// Sink receives warnings from a Controller. Warn is called on the
// controller's goroutine and must not block on I/O.
type Sink interface {
	Warn(w Warning)
}

// EpochSink is a Sink that also wants to know when a new epoch starts, for
// example to close the warnings it presented for the previous one.
type EpochSink interface {
	Sink
	NewEpoch(d powerinfo.Direction)
}

type discard struct{}

func (discard) Warn(Warning) {}

// MultiSink fans out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Warn(w Warning) {
	for _, s := range m {
		s.Warn(w)
	}
}

func (m MultiSink) NewEpoch(d powerinfo.Direction) {
	for _, s := range m {
		if es, ok := s.(EpochSink); ok {
			es.NewEpoch(d)
		}
	}
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(w Warning)

func (f SinkFunc) Warn(w Warning) { f(w) }

// AsyncSink delivers to the next sink on its own goroutine, preserving
// order. When the queue is full new calls are dropped and logged.
type AsyncSink struct {
	next Sink
	log  logrus.FieldLogger

	mu     sync.Mutex
	closed bool
	jobs   chan func()
	done   chan struct{}
}

// NewAsyncSink starts the delivery goroutine. Close stops it.
func NewAsyncSink(next Sink, queueSize int, logger logrus.FieldLogger) *AsyncSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	a := &AsyncSink{
		next: next,
		log:  logger,
		jobs: make(chan func(), queueSize),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncSink) run() {
	defer close(a.done)
	for job := range a.jobs {
		job()
	}
}

func (a *AsyncSink) enqueue(what string, job func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	select {
	case a.jobs <- job:
	default:
		a.log.WithField("job", what).Warn("warning sink is busy, dropping")
	}
}

func (a *AsyncSink) Warn(w Warning) {
	a.enqueue("warn", func() { a.next.Warn(w) })
}

func (a *AsyncSink) NewEpoch(d powerinfo.Direction) {
	es, ok := a.next.(EpochSink)
	if !ok {
		return
	}
	a.enqueue("epoch", func() { es.NewEpoch(d) })
}

// Close drains queued deliveries and stops the goroutine.
func (a *AsyncSink) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.jobs)
	a.mu.Unlock()

	<-a.done
}
