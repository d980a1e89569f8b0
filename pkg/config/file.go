package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/battwatch/battwatch/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		DischargeWarnValues:      ptr.To(Stride(0, 40, 5)),
		ChargeWarnValues:         ptr.To(Stride(80, 100, 5)),
		DischargeWarnText:        ptr.To("Consider ending discharge."),
		ChargeWarnText:           ptr.To("Consider ending charge."),
		NotificationQuerySummary: ptr.To("{{.Percentage}}% {{.State}}"),
		NotificationQueryBody:    ptr.To("{{.Sign}}{{.Power}} W  {{.Energy}} Wh  {{.Voltage}} V"),
		NotificationTimeoutMs:    ptr.To(int32(-1)),
		Source:                   ptr.To(SourceUPower),
		PollInterval:             ptr.To("30s"),
		ExitOnNoDevice:           ptr.To(false),
		DeviceRetryInterval:      ptr.To("1m"),
		MQTT: RawMQTTConfig{
			Broker:   ptr.To(""),
			Topic:    ptr.To("battwatch/warnings"),
			ClientID: ptr.To("battwatch"),
		},
	}
)

// DefaultPath is $XDG_CONFIG_HOME/battwatch/config.toml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "battwatch", "config.toml")
}

// Stride returns from, from+step, ... up to and including to.
func Stride(from, to, step int) []int {
	var out []int
	for i := from; i <= to; i += step {
		out = append(out, i)
	}
	return out
}

var _ Config = &File{}

type File struct {
	c         *RawFileConfig
	overrides *RawFileConfig
	mu        *sync.RWMutex
	filepath  string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

// Path is the file the config is loaded from and saved to.
func (f *File) Path() string {
	return f.filepath
}

// RawFileConfig mirrors the file. A nil field falls back to the default.
type RawFileConfig struct {
	DischargeWarnValues      *[]int        `koanf:"discharge_warn_values" json:"dischargeWarnValues,omitempty"`
	ChargeWarnValues         *[]int        `koanf:"charge_warn_values" json:"chargeWarnValues,omitempty"`
	DischargeWarnText        *string       `koanf:"discharge_warn_text" json:"dischargeWarnText,omitempty"`
	ChargeWarnText           *string       `koanf:"charge_warn_text" json:"chargeWarnText,omitempty"`
	NotificationQuerySummary *string       `koanf:"notification_query_summary" json:"notificationQuerySummary,omitempty"`
	NotificationQueryBody    *string       `koanf:"notification_query_body" json:"notificationQueryBody,omitempty"`
	NotificationTimeoutMs    *int32        `koanf:"notification_timeout_ms" json:"notificationTimeoutMs,omitempty"`
	Source                   *string       `koanf:"source" json:"source,omitempty"`
	PollInterval             *string       `koanf:"poll_interval" json:"pollInterval,omitempty"`
	ExitOnNoDevice           *bool         `koanf:"exit_on_no_device" json:"exitOnNoDevice,omitempty"`
	DeviceRetryInterval      *string       `koanf:"device_retry_interval" json:"deviceRetryInterval,omitempty"`
	MQTT                     RawMQTTConfig `koanf:"mqtt" json:"mqtt"`
}

type RawMQTTConfig struct {
	Broker   *string `koanf:"broker" json:"broker,omitempty"`
	Topic    *string `koanf:"topic" json:"topic,omitempty"`
	ClientID *string `koanf:"client_id" json:"clientId,omitempty"`
}

// Validate checks the fields that are set.
func (c *RawFileConfig) Validate() error {
	if c.DischargeWarnValues != nil {
		if err := validateThresholds(*c.DischargeWarnValues); err != nil {
			return pkgerrors.Wrap(err, "discharge_warn_values")
		}
	}
	if c.ChargeWarnValues != nil {
		if err := validateThresholds(*c.ChargeWarnValues); err != nil {
			return pkgerrors.Wrap(err, "charge_warn_values")
		}
	}
	if c.Source != nil && *c.Source != SourceUPower && *c.Source != SourcePoll {
		return fmt.Errorf("source must be %q or %q, got %q", SourceUPower, SourcePoll, *c.Source)
	}
	if c.NotificationTimeoutMs != nil && *c.NotificationTimeoutMs < -1 {
		return fmt.Errorf("notification_timeout_ms must be -1 or greater, got %d", *c.NotificationTimeoutMs)
	}
	for name, d := range map[string]*string{
		"poll_interval":         c.PollInterval,
		"device_retry_interval": c.DeviceRetryInterval,
	} {
		if d == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d)
		if err != nil {
			return pkgerrors.Wrapf(err, "invalid %s", name)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *d)
		}
	}
	return nil
}

func validateThresholds(values []int) error {
	for _, v := range values {
		if v < 0 || v > 100 {
			return fmt.Errorf("threshold must be between 0 and 100, got %d", v)
		}
	}
	return nil
}

// WithOverrides layers o on top of the file. Overrides survive Load and
// are never saved.
func (f *File) WithOverrides(o *RawFileConfig) *File {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides = o
	return f
}

func resolve[T any](f *File, field func(*RawFileConfig) *T) T {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, layer := range []*RawFileConfig{f.overrides, f.c, defaultFileConfig} {
		if layer == nil {
			continue
		}
		if v := field(layer); v != nil {
			return *v
		}
	}
	var zero T
	return zero
}

func resolveDuration(f *File, field func(*RawFileConfig) *string) time.Duration {
	d, err := time.ParseDuration(resolve(f, field))
	if err != nil {
		d, _ = time.ParseDuration(*field(defaultFileConfig))
	}
	return d
}

func cloneInts(v []int) []int {
	return append(make([]int, 0, len(v)), v...)
}

func (f *File) DischargeWarnValues() []int {
	return cloneInts(resolve(f, func(c *RawFileConfig) *[]int { return c.DischargeWarnValues }))
}

func (f *File) ChargeWarnValues() []int {
	return cloneInts(resolve(f, func(c *RawFileConfig) *[]int { return c.ChargeWarnValues }))
}

func (f *File) DischargeWarnText() string {
	return resolve(f, func(c *RawFileConfig) *string { return c.DischargeWarnText })
}

func (f *File) ChargeWarnText() string {
	return resolve(f, func(c *RawFileConfig) *string { return c.ChargeWarnText })
}

func (f *File) NotificationQuerySummary() string {
	return resolve(f, func(c *RawFileConfig) *string { return c.NotificationQuerySummary })
}

func (f *File) NotificationQueryBody() string {
	return resolve(f, func(c *RawFileConfig) *string { return c.NotificationQueryBody })
}

func (f *File) NotificationTimeout() int32 {
	return resolve(f, func(c *RawFileConfig) *int32 { return c.NotificationTimeoutMs })
}

func (f *File) Source() string {
	return resolve(f, func(c *RawFileConfig) *string { return c.Source })
}

func (f *File) PollInterval() time.Duration {
	return resolveDuration(f, func(c *RawFileConfig) *string { return c.PollInterval })
}

func (f *File) ExitOnNoDevice() bool {
	return resolve(f, func(c *RawFileConfig) *bool { return c.ExitOnNoDevice })
}

func (f *File) DeviceRetryInterval() time.Duration {
	return resolveDuration(f, func(c *RawFileConfig) *string { return c.DeviceRetryInterval })
}

func (f *File) MQTTBroker() string {
	return resolve(f, func(c *RawFileConfig) *string { return c.MQTT.Broker })
}

func (f *File) MQTTTopic() string {
	return resolve(f, func(c *RawFileConfig) *string { return c.MQTT.Topic })
}

func (f *File) MQTTClientID() string {
	return resolve(f, func(c *RawFileConfig) *string { return c.MQTT.ClientID })
}

func (f *File) SetDischargeWarnValues(v []int) {
	if f.c == nil {
		panic("config is nil")
	}
	if err := validateThresholds(v); err != nil {
		panic(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.DischargeWarnValues = ptr.To(cloneInts(v))
	if f.overrides != nil {
		f.overrides.DischargeWarnValues = nil
	}
}

func (f *File) SetChargeWarnValues(v []int) {
	if f.c == nil {
		panic("config is nil")
	}
	if err := validateThresholds(v); err != nil {
		panic(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.ChargeWarnValues = ptr.To(cloneInts(v))
	if f.overrides != nil {
		f.overrides.ChargeWarnValues = nil
	}
}

// Raw returns the effective configuration with every field filled in.
func (f *File) Raw() *RawFileConfig {
	return &RawFileConfig{
		DischargeWarnValues:      ptr.To(f.DischargeWarnValues()),
		ChargeWarnValues:         ptr.To(f.ChargeWarnValues()),
		DischargeWarnText:        ptr.To(f.DischargeWarnText()),
		ChargeWarnText:           ptr.To(f.ChargeWarnText()),
		NotificationQuerySummary: ptr.To(f.NotificationQuerySummary()),
		NotificationQueryBody:    ptr.To(f.NotificationQueryBody()),
		NotificationTimeoutMs:    ptr.To(f.NotificationTimeout()),
		Source:                   ptr.To(f.Source()),
		PollInterval:             ptr.To(f.PollInterval().String()),
		ExitOnNoDevice:           ptr.To(f.ExitOnNoDevice()),
		DeviceRetryInterval:      ptr.To(f.DeviceRetryInterval().String()),
		MQTT: RawMQTTConfig{
			Broker:   ptr.To(f.MQTTBroker()),
			Topic:    ptr.To(f.MQTTTopic()),
			ClientID: ptr.To(f.MQTTClientID()),
		},
	}
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(f.filepath), toml.Parser()); err != nil {
		return pkgerrors.Wrapf(err, "failed to parse config file %s", f.filepath)
	}

	conf := RawFileConfig{}
	if err := k.Unmarshal("", &conf); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if err := conf.Validate(); err != nil {
		return pkgerrors.Wrapf(err, "invalid config file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	k := koanf.New(".")
	for key, v := range f.c.values() {
		if err := k.Set(key, v); err != nil {
			return pkgerrors.Wrapf(err, "failed to set %s", key)
		}
	}
	b, err := k.Marshal(toml.Parser())
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode config")
	}

	if err := os.MkdirAll(filepath.Dir(f.filepath), 0o755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create config directory for %s", f.filepath)
	}
	if err := os.WriteFile(f.filepath, b, 0o644); err != nil {
		return pkgerrors.Wrapf(err, "failed to write file %s", f.filepath)
	}

	return nil
}

// values flattens the set fields into koanf keys.
func (c *RawFileConfig) values() map[string]any {
	out := map[string]any{}
	set := func(key string, v any, isNil bool) {
		if !isNil {
			out[key] = v
		}
	}
	if c.DischargeWarnValues != nil {
		out["discharge_warn_values"] = *c.DischargeWarnValues
	}
	if c.ChargeWarnValues != nil {
		out["charge_warn_values"] = *c.ChargeWarnValues
	}
	set("discharge_warn_text", ptr.Deref(c.DischargeWarnText, ""), c.DischargeWarnText == nil)
	set("charge_warn_text", ptr.Deref(c.ChargeWarnText, ""), c.ChargeWarnText == nil)
	set("notification_query_summary", ptr.Deref(c.NotificationQuerySummary, ""), c.NotificationQuerySummary == nil)
	set("notification_query_body", ptr.Deref(c.NotificationQueryBody, ""), c.NotificationQueryBody == nil)
	set("notification_timeout_ms", ptr.Deref(c.NotificationTimeoutMs, 0), c.NotificationTimeoutMs == nil)
	set("source", ptr.Deref(c.Source, ""), c.Source == nil)
	set("poll_interval", ptr.Deref(c.PollInterval, ""), c.PollInterval == nil)
	set("exit_on_no_device", ptr.Deref(c.ExitOnNoDevice, false), c.ExitOnNoDevice == nil)
	set("device_retry_interval", ptr.Deref(c.DeviceRetryInterval, ""), c.DeviceRetryInterval == nil)
	set("mqtt.broker", ptr.Deref(c.MQTT.Broker, ""), c.MQTT.Broker == nil)
	set("mqtt.topic", ptr.Deref(c.MQTT.Topic, ""), c.MQTT.Topic == nil)
	set("mqtt.client_id", ptr.Deref(c.MQTT.ClientID, ""), c.MQTT.ClientID == nil)
	return out
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"dischargeWarnValues": f.DischargeWarnValues(),
		"chargeWarnValues":    f.ChargeWarnValues(),
		"source":              f.Source(),
		"pollInterval":        f.PollInterval(),
		"exitOnNoDevice":      f.ExitOnNoDevice(),
		"mqttBroker":          f.MQTTBroker(),
	}
}
