package config

import "time"

// Source names accepted by the "source" key.
const (
	SourceUPower = "upower"
	SourcePoll   = "poll"
)

type Config interface {
	DischargeWarnValues() []int
	ChargeWarnValues() []int
	DischargeWarnText() string
	ChargeWarnText() string
	NotificationQuerySummary() string
	NotificationQueryBody() string
	// NotificationTimeout is in milliseconds, -1 for the server default.
	NotificationTimeout() int32

	Source() string
	PollInterval() time.Duration
	ExitOnNoDevice() bool
	DeviceRetryInterval() time.Duration

	MQTTBroker() string
	MQTTTopic() string
	MQTTClientID() string

	SetDischargeWarnValues([]int)
	SetChargeWarnValues([]int)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
