package powerinfo

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoDevice is returned by device discovery when no battery that supplies
// power to the system exists.
var ErrNoDevice = errors.New("no battery power supply found")

// State is the raw device state code as reported by UPower.
type State uint32

const (
	StateUnknown State = iota
	StateCharging
	StateDischarging
	StateEmpty
	StateFullyCharged
	StatePendingCharge
	StatePendingDischarge
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateCharging:
		return "Charging"
	case StateDischarging:
		return "Discharging"
	case StateEmpty:
		return "Empty"
	case StateFullyCharged:
		return "Fully Charged"
	case StatePendingCharge:
		return "Pending Charge"
	case StatePendingDischarge:
		return "Pending Discharge"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}

// Direction tells whether the power source is being charged or drained.
type Direction int

const (
	// NoDirection is the zero value, used before the first state is known.
	NoDirection Direction = iota
	Charging
	Discharging
)

func (d Direction) String() string {
	switch d {
	case Charging:
		return "charging"
	case Discharging:
		return "discharging"
	default:
		return "none"
	}
}

// Sign is "-" while discharging and "+" otherwise.
func (d Direction) Sign() string {
	if d == Discharging {
		return "-"
	}
	return "+"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "charging":
		*d = Charging
	case "discharging":
		*d = Discharging
	case "none", "":
		*d = NoDirection
	default:
		return fmt.Errorf("unknown direction %q", string(b))
	}
	return nil
}

// DirectionOf maps a raw state code to a direction. ok is false for
// StateUnknown and for codes outside the UPower table; such codes must not
// cause a direction decision.
func DirectionOf(s State) (d Direction, ok bool) {
	switch s {
	case StateCharging, StateFullyCharged, StatePendingCharge:
		return Charging, true
	case StateDischarging, StateEmpty, StatePendingDischarge:
		return Discharging, true
	default:
		return NoDirection, false
	}
}

// Update is one change notification from a device-signal source.
// A nil field was not part of the change.
type Update struct {
	State      *State
	Percentage *float64
}

// Device identifies the tracked power source.
type Device struct {
	Path   string `json:"path"`
	Vendor string `json:"vendor"`
	Model  string `json:"model"`
}

// Info is the result of an on-demand device query.
// Units:
// - Power: W (EnergyRate)
// - Energy: Wh
// - Voltage: V
type Info struct {
	Vendor     string  `json:"vendor"`
	Model      string  `json:"model"`
	Percentage float64 `json:"percentage"`
	Power      float64 `json:"power"`
	Energy     float64 `json:"energy"`
	Voltage    float64 `json:"voltage"`
	State      string  `json:"state"`
	Sign       string  `json:"sign"`
}

// NewInfo fills in the derived State and Sign fields from a raw state code.
func NewInfo(device Device, state State, percentage, power, energy, voltage float64) *Info {
	d, _ := DirectionOf(state)
	return &Info{
		Vendor:     device.Vendor,
		Model:      device.Model,
		Percentage: percentage,
		Power:      power,
		Energy:     energy,
		Voltage:    voltage,
		State:      state.String(),
		Sign:       d.Sign(),
	}
}
