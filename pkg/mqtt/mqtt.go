// Package mqtt publishes battery warnings to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/battwatch/battwatch/pkg/monitor"
)

// Publisher publishes warnings to MQTT.
type Publisher interface {
	// Publish sends a warning to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(w monitor.Warning) error

	// Close disconnects from the broker.
	Close() error
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Warning WarningPayload `json:"warning"`
}

// WarningPayload contains the warning details.
type WarningPayload struct {
	Timestamp  string  `json:"timestamp"`
	Percentage float64 `json:"percentage"`
	Direction  string  `json:"direction"`
	Text       string  `json:"text"`
}

// FormatPayload creates the JSON payload for a warning.
func FormatPayload(w monitor.Warning) ([]byte, error) {
	payload := Payload{
		Warning: WarningPayload{
			Timestamp:  w.Time.UTC().Format(time.RFC3339),
			Percentage: w.Percentage,
			Direction:  w.Direction.String(),
			Text:       w.Text,
		},
	}
	return json.Marshal(payload)
}

// Sink adapts a Publisher to a monitor.Sink. Publish errors are logged.
type Sink struct {
	Publisher Publisher
	Log       logrus.FieldLogger
}

func (s Sink) Warn(w monitor.Warning) {
	if err := s.Publisher.Publish(w); err != nil {
		log := s.Log
		if log == nil {
			log = logrus.StandardLogger()
		}
		log.WithField("percentage", w.Percentage).Warnf("failed to publish warning: %v", err)
	}
}
