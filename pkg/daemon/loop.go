package daemon

import (
	"context"
	"errors"
	"sync"

	"github.com/battwatch/battwatch/pkg/monitor"
)

// ErrLoopStopped is returned by Loop.Do once the loop has exited.
var ErrLoopStopped = errors.New("daemon loop stopped")

// Loop runs every controller call on one goroutine. Device updates,
// suppress requests, reconfiguration and status reads all go through Do,
// so the controller never sees two signals at once.
type Loop struct {
	reqs chan func()
	done chan struct{}
}

func NewLoop() *Loop {
	return &Loop{
		reqs: make(chan func()),
		done: make(chan struct{}),
	}
}

// Run executes requests until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.reqs:
			fn()
		}
	}
}

// Do runs fn on the loop goroutine and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	req := func() {
		defer close(finished)
		fn()
	}

	select {
	case l.reqs <- req:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted, fn runs to completion.
	<-finished
	return nil
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// WarningRecorder keeps the last N warnings.
type WarningRecorder struct {
	MaxRecordCount int
	records        []monitor.Warning
	mu             *sync.Mutex
}

// NewWarningRecorder returns a new WarningRecorder.
func NewWarningRecorder(maxRecordCount int) *WarningRecorder {
	return &WarningRecorder{
		MaxRecordCount: maxRecordCount,
		records:        make([]monitor.Warning, 0),
		mu:             &sync.Mutex{},
	}
}

// Warn adds a record, dropping the oldest one when full.
func (r *WarningRecorder) Warn(w monitor.Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.MaxRecordCount <= 0 {
		return
	}
	if len(r.records) >= r.MaxRecordCount {
		r.records = r.records[1:]
	}
	// Strip monotonic clock reading.
	w.Time = w.Time.Round(0)
	r.records = append(r.records, w)
}

// GetRecords returns a copy of the records, oldest first.
func (r *WarningRecorder) GetRecords() []monitor.Warning {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]monitor.Warning{}, r.records...)
}

// ClearRecords clears all records.
func (r *WarningRecorder) ClearRecords() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make([]monitor.Warning, 0)
}
