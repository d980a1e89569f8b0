// Package upower tracks a battery through the UPower service on the system
// bus.
package upower

import (
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/battwatch/battwatch/pkg/powerinfo"
)

const (
	busName             = "org.freedesktop.UPower"
	rootPath            = "/org/freedesktop/UPower"
	rootInterface       = "org.freedesktop.UPower"
	deviceInterface     = "org.freedesktop.UPower.Device"
	propertiesInterface = "org.freedesktop.DBus.Properties"

	// typeBattery is the UPower device type of a battery.
	typeBattery uint32 = 2
)

// ErrUnsupported is returned by Open on platforms without UPower.
var ErrUnsupported = errors.New("UPower is only available on Linux")

// parseChange extracts the state and percentage from the body of a
// PropertiesChanged signal. ok is false when the signal is for another
// interface or carries neither property.
func parseChange(body []interface{}) (u powerinfo.Update, ok bool) {
	if len(body) < 2 {
		return u, false
	}
	iface, _ := body[0].(string)
	if iface != deviceInterface {
		return u, false
	}
	changed, _ := body[1].(map[string]dbus.Variant)
	if changed == nil {
		return u, false
	}

	if v, found := changed["State"]; found {
		if s, isUint := v.Value().(uint32); isUint {
			state := powerinfo.State(s)
			u.State = &state
		}
	}
	if v, found := changed["Percentage"]; found {
		if p, isFloat := v.Value().(float64); isFloat {
			u.Percentage = &p
		}
	}
	return u, u.State != nil || u.Percentage != nil
}

// removedPath returns the object path carried by a DeviceRemoved signal.
func removedPath(body []interface{}) dbus.ObjectPath {
	if len(body) == 0 {
		return ""
	}
	p, _ := body[0].(dbus.ObjectPath)
	return p
}

func variantAs[T any](props map[string]dbus.Variant, name string) T {
	var zero T
	v, ok := props[name]
	if !ok {
		return zero
	}
	t, ok := v.Value().(T)
	if !ok {
		return zero
	}
	return t
}

// infoFromProperties builds a query result from a GetAll reply.
func infoFromProperties(device powerinfo.Device, props map[string]dbus.Variant) *powerinfo.Info {
	if vendor := variantAs[string](props, "Vendor"); vendor != "" {
		device.Vendor = vendor
	}
	if model := variantAs[string](props, "Model"); model != "" {
		device.Model = model
	}
	return powerinfo.NewInfo(
		device,
		powerinfo.State(variantAs[uint32](props, "State")),
		variantAs[float64](props, "Percentage"),
		variantAs[float64](props, "EnergyRate"),
		variantAs[float64](props, "Energy"),
		variantAs[float64](props, "Voltage"),
	)
}

// isPowerSupplyBattery reports whether a device's properties describe a
// battery that powers the system.
func isPowerSupplyBattery(props map[string]dbus.Variant) bool {
	return variantAs[uint32](props, "Type") == typeBattery && variantAs[bool](props, "PowerSupply")
}
