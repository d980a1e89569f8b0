package mqtt

import (
	"sync"

	"github.com/battwatch/battwatch/pkg/monitor"
)

// FakePublisher records published warnings for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Warnings contains all warnings that were published.
	Warnings []monitor.Warning

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the warning.
func (f *FakePublisher) Publish(w monitor.Warning) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}

	f.Warnings = append(f.Warnings, w)

	payload, err := FormatPayload(w)
	if err != nil {
		return err
	}
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// Published returns a copy of the recorded warnings.
func (f *FakePublisher) Published() []monitor.Warning {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]monitor.Warning(nil), f.Warnings...)
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
