package upower

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/battwatch/battwatch/pkg/powerinfo"
	"github.com/battwatch/battwatch/pkg/utils/ptr"
)

func TestParseChange(t *testing.T) {
	tests := []struct {
		name        string
		body        []interface{}
		wantOK      bool
		wantState   *powerinfo.State
		wantPercent *float64
	}{
		{
			name:   "empty body",
			body:   nil,
			wantOK: false,
		},
		{
			name: "other interface",
			body: []interface{}{"org.freedesktop.UPower", map[string]dbus.Variant{
				"OnBattery": dbus.MakeVariant(true),
			}, []string{}},
			wantOK: false,
		},
		{
			name: "unrelated property",
			body: []interface{}{deviceInterface, map[string]dbus.Variant{
				"UpdateTime": dbus.MakeVariant(uint64(1700000000)),
			}, []string{}},
			wantOK: false,
		},
		{
			name: "percentage only",
			body: []interface{}{deviceInterface, map[string]dbus.Variant{
				"Percentage": dbus.MakeVariant(37.0),
			}, []string{}},
			wantOK:      true,
			wantPercent: ptr.To(37.0),
		},
		{
			name: "state and percentage",
			body: []interface{}{deviceInterface, map[string]dbus.Variant{
				"State":      dbus.MakeVariant(uint32(1)),
				"Percentage": dbus.MakeVariant(81.5),
				"Energy":     dbus.MakeVariant(40.2),
			}, []string{}},
			wantOK:      true,
			wantState:   ptr.To(powerinfo.StateCharging),
			wantPercent: ptr.To(81.5),
		},
		{
			name: "wrong type is dropped",
			body: []interface{}{deviceInterface, map[string]dbus.Variant{
				"State": dbus.MakeVariant("charging"),
			}, []string{}},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, ok := parseChange(tt.body)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantState, u.State)
			assert.Equal(t, tt.wantPercent, u.Percentage)
		})
	}
}

func TestRemovedPath(t *testing.T) {
	assert.Equal(t, dbus.ObjectPath("/org/freedesktop/UPower/devices/battery_BAT0"),
		removedPath([]interface{}{dbus.ObjectPath("/org/freedesktop/UPower/devices/battery_BAT0")}))
	assert.Empty(t, removedPath(nil))
	assert.Empty(t, removedPath([]interface{}{"not a path"}))
}

func TestInfoFromProperties(t *testing.T) {
	dev := powerinfo.Device{Path: "/org/freedesktop/UPower/devices/battery_BAT0", Vendor: "old"}
	props := map[string]dbus.Variant{
		"Vendor":     dbus.MakeVariant("SMP"),
		"Model":      dbus.MakeVariant("5B10W13930"),
		"Percentage": dbus.MakeVariant(64.0),
		"EnergyRate": dbus.MakeVariant(9.8),
		"Energy":     dbus.MakeVariant(33.1),
		"Voltage":    dbus.MakeVariant(12.4),
		"State":      dbus.MakeVariant(uint32(2)),
	}

	info := infoFromProperties(dev, props)
	require.NotNil(t, info)
	assert.Equal(t, "SMP", info.Vendor)
	assert.Equal(t, "5B10W13930", info.Model)
	assert.Equal(t, 64.0, info.Percentage)
	assert.Equal(t, 9.8, info.Power)
	assert.Equal(t, 33.1, info.Energy)
	assert.Equal(t, 12.4, info.Voltage)
	assert.Equal(t, "Discharging", info.State)
	assert.Equal(t, "-", info.Sign)
}

func TestIsPowerSupplyBattery(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]dbus.Variant
		want  bool
	}{
		{"laptop battery", map[string]dbus.Variant{"Type": dbus.MakeVariant(uint32(2)), "PowerSupply": dbus.MakeVariant(true)}, true},
		{"mouse battery", map[string]dbus.Variant{"Type": dbus.MakeVariant(uint32(5)), "PowerSupply": dbus.MakeVariant(false)}, false},
		{"ups not supplying", map[string]dbus.Variant{"Type": dbus.MakeVariant(uint32(2)), "PowerSupply": dbus.MakeVariant(false)}, false},
		{"line power", map[string]dbus.Variant{"Type": dbus.MakeVariant(uint32(1)), "PowerSupply": dbus.MakeVariant(true)}, false},
		{"missing", map[string]dbus.Variant{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isPowerSupplyBattery(tt.props))
		})
	}
}
