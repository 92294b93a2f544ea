// Package state derives a vehicle's operating state from a telemetry snapshot.
package state

import "github.com/teslamon/teslamon/core/model"

// Kind enumerates the operating states a vehicle can be in.
type Kind int

const (
	// Unknown is assigned only when a fetch failed and no snapshot exists.
	Unknown Kind = iota
	Parked
	Charging
	Driving
)

// String returns the state name used as a metric label.
func (k Kind) String() string {
	switch k {
	case Parked:
		return "Parked"
	case Charging:
		return "Charging"
	case Driving:
		return "Driving"
	default:
		return "Unknown"
	}
}

// Code returns the numeric encoding exported on the operating-state gauge.
func (k Kind) Code() int { return int(k) }

// OperatingState pairs a classification with the snapshot that produced it.
// Data is nil only for Unknown. The pair is scoped to one poll cycle.
type OperatingState struct {
	Kind Kind
	Data *model.VehicleData
}

// Classify maps a snapshot to its operating state. Motion always wins: a car
// reporting charge-port data while rolling must still read as Driving. A car
// with the charge cable disconnected and no motion is Parked, anything else is
// Charging.
func Classify(data *model.VehicleData) OperatingState {
	shift := data.DriveState.Shift()
	if shift == "R" || shift == "D" || shift == "N" || data.DriveState.SpeedOrZero() > 0 {
		return OperatingState{Kind: Driving, Data: data}
	}
	if data.ChargeState.Disconnected() {
		return OperatingState{Kind: Parked, Data: data}
	}
	return OperatingState{Kind: Charging, Data: data}
}
