package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/teslamon/teslamon/core/metrics"
)

// snapshotGauge describes one exported vehicle reading.
type snapshotGauge struct {
	name  string
	help  string
	value func(ev coremetrics.SnapshotEvent) float64
}

// The gauge set keeps the historical naming scheme grouped by the API block
// the field comes from.
var snapshotGauges = []snapshotGauge{
	{"tesla_charge_state_battery_level", "Battery Level (%)",
		func(ev coremetrics.SnapshotEvent) float64 { return float64(ev.Data.ChargeState.BatteryLevel) }},
	{"tesla_charge_state_battery_range", "Battery Range (Miles)",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.ChargeState.BatteryRange }},
	{"tesla_charge_state_est_battery_range", "Estimated Battery Range (Miles)",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.ChargeState.EstBatteryRange }},
	{"tesla_charge_state_ideal_battery_range", "Ideal Battery Range (Miles)",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.ChargeState.IdealBatteryRange }},
	{"tesla_charge_state_charge_rate", "Battery Charge Rate",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.ChargeState.ChargeRate }},
	{"tesla_charge_state_minutes_to_full_charge", "Time to Full Charge",
		func(ev coremetrics.SnapshotEvent) float64 { return float64(ev.Data.ChargeState.MinutesToFullCharge) }},
	{"tesla_charge_state_charger_voltage", "Charger Voltage",
		func(ev coremetrics.SnapshotEvent) float64 { return float64(ev.Data.ChargeState.ChargerVoltage) }},
	{"tesla_charge_state_charger_power", "Charger Power",
		func(ev coremetrics.SnapshotEvent) float64 { return float64(ev.Data.ChargeState.ChargerPower) }},
	{"tesla_charge_state_charger_actual_current", "Charger Actual Current",
		func(ev coremetrics.SnapshotEvent) float64 { return float64(ev.Data.ChargeState.ChargerActualCurrent) }},
	{"tesla_drive_state_speed", "Vehicle speed (MPH)",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.DriveState.SpeedOrZero() }},
	{"tesla_drive_state_power", "Vehicle Power",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.DriveState.Power }},
	{"tesla_drive_state_latitude", "Vehicle Latitude",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.DriveState.Latitude }},
	{"tesla_drive_state_longitude", "Vehicle Longitude",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.DriveState.Longitude }},
	{"tesla_drive_state_heading", "Vehicle Heading",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.DriveState.Heading }},
	{"tesla_drive_state_shift_state", "Shift State (-1=R 0=P 1=N 2=D)",
		func(ev coremetrics.SnapshotEvent) float64 { return float64(ev.Data.DriveState.ShiftCode()) }},
	{"tesla_vehicle_state_odometer", "Vehicle odometer (Miles)",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.VehicleState.Odometer }},
	{"tesla_climate_state_inside_temp", "Inside Temperature (DegC)",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.ClimateState.InsideTemp }},
	{"tesla_climate_state_outside_temp", "Outside Temperature (DegC)",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.ClimateState.OutsideTemp }},
	{"tesla_climate_state_driver_temp_setting", "Driver's Temperature Setting (DegC)",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.ClimateState.DriverTempSetting }},
	{"tesla_climate_state_passenger_temp_setting", "Passenger's Temperature Setting (DegC)",
		func(ev coremetrics.SnapshotEvent) float64 { return ev.Data.ClimateState.PassengerTempSetting }},
}

// PromSink exports snapshots as labeled Prometheus gauges. The registry's
// internal structures are safe for concurrent writes; each worker only ever
// touches its own labeled series.
type PromSink struct {
	gauges  map[string]*prometheus.GaugeVec
	online  *prometheus.GaugeVec
	opState *prometheus.GaugeVec
}

// NewPromSink registers the vehicle gauges on the default Prometheus
// registerer. The exposition server is started separately.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the gauges on the provided registerer.
// A nil registerer defaults to the global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{gauges: make(map[string]*prometheus.GaugeVec, len(snapshotGauges))}
	for _, g := range snapshotGauges {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: g.name, Help: g.help},
			[]string{"car_name", "car_state"})
		registered, err := register(reg, vec)
		if err != nil {
			return nil, err
		}
		s.gauges[g.name] = registered
	}
	var err error
	s.online, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tesla_vehicle_online",
		Help: "Vehicle reachability (1=online 0=offline)",
	}, []string{"car_name"}))
	if err != nil {
		return nil, err
	}
	s.opState, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tesla_operating_state",
		Help: "Operating state (0=Unknown 1=Parked 2=Charging 3=Driving)",
	}, []string{"car_name"}))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func register(reg prometheus.Registerer, vec *prometheus.GaugeVec) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.GaugeVec), nil
		}
		return nil, err
	}
	return vec, nil
}

// RecordSnapshot sets every readable gauge for the vehicle, labeled by its
// display name and operating state.
func (s *PromSink) RecordSnapshot(ev coremetrics.SnapshotEvent) error {
	stateName := ev.State.Kind.String()
	for _, g := range snapshotGauges {
		s.gauges[g.name].WithLabelValues(ev.CarName, stateName).Set(g.value(ev))
	}
	s.opState.WithLabelValues(ev.CarName).Set(float64(ev.State.Kind.Code()))
	return nil
}

// RecordConnectivity sets the online indicator.
func (s *PromSink) RecordConnectivity(ev coremetrics.ConnectivityEvent) error {
	v := 0.0
	if ev.Online {
		v = 1
	}
	s.online.WithLabelValues(ev.CarName).Set(v)
	return nil
}
