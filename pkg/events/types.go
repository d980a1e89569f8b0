package events

import "encoding/json"

// Event name constants
const (
	WarningFired       = "warning.fired"
	EpochStarted       = "epoch.started"
	WarningsSuppressed = "warnings.suppressed"
	ReadingChanged     = "reading.changed"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// WarningFiredEvent is the typed payload for warning.fired.
type WarningFiredEvent struct {
	Percentage float64 `json:"percentage"`
	Direction  string  `json:"direction"`
	Text       string  `json:"text"`
	Threshold  int     `json:"threshold"`
	Ts         int64   `json:"ts"`
}

// EpochStartedEvent is the typed payload for epoch.started.
type EpochStartedEvent struct {
	Direction string `json:"direction"`
	Ts        int64  `json:"ts"`
}

// WarningsSuppressedEvent is the typed payload for warnings.suppressed.
type WarningsSuppressedEvent struct {
	Direction string `json:"direction"`
	Ts        int64  `json:"ts"`
}

// ReadingChangedEvent is the typed payload for reading.changed.
type ReadingChangedEvent struct {
	State      string   `json:"state,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	Direction  string   `json:"direction"`
	NextDue    *int     `json:"nextDue,omitempty"`
	Ts         int64    `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.WarningFiredEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Percentage, payload.Text)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
