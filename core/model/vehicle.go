package model

// Vehicle identifies one car on the owner-api account listing.
//
// The API uses two identifiers: `id` addresses the car on the owner-api
// endpoints (state, wake) while `vehicle_id` addresses it on streaming and
// autopark endpoints. All calls made here use ID.
type Vehicle struct {
	ID          int64    `json:"id"`
	IDS         string   `json:"id_s"`
	VehicleID   int64    `json:"vehicle_id"`
	VIN         string   `json:"vin"`
	DisplayName string   `json:"display_name"`
	OptionCodes string   `json:"option_codes"`
	Tokens      []string `json:"tokens"`
	State       string   `json:"state"`
	APIVersion  int      `json:"api_version"`
}

// IsOnline reports whether the car is reachable without a wake request.
func (v Vehicle) IsOnline() bool { return v.State == "online" }

// IsAsleep reports whether the car must be woken before a data fetch.
func (v Vehicle) IsAsleep() bool { return v.State == "asleep" }

// VehicleData is one vehicle's full readable state at a point in time. It is
// produced once per successful fetch and never mutated afterwards.
type VehicleData struct {
	ID           int64        `json:"id"`
	IDS          string       `json:"id_s"`
	UserID       int64        `json:"user_id"`
	VehicleID    int64        `json:"vehicle_id"`
	VIN          string       `json:"vin"`
	DisplayName  string       `json:"display_name"`
	State        string       `json:"state"`
	APIVersion   int          `json:"api_version"`
	DriveState   DriveState   `json:"drive_state"`
	ChargeState  ChargeState  `json:"charge_state"`
	ClimateState ClimateState `json:"climate_state"`
	VehicleState VehicleState `json:"vehicle_state"`
}

// DriveState carries motion and position fields. ShiftState and Speed are
// null when the car is parked, which must read as "not moving".
type DriveState struct {
	GPSAsOf    int64    `json:"gps_as_of"`
	Heading    float64  `json:"heading"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Power      float64  `json:"power"`
	ShiftState *string  `json:"shift_state"`
	Speed      *float64 `json:"speed"`
	Timestamp  int64    `json:"timestamp"`
}

// Shift returns the shift state or the empty string when the field is null.
func (d DriveState) Shift() string {
	if d.ShiftState == nil {
		return ""
	}
	return *d.ShiftState
}

// SpeedOrZero returns the speed or zero when the field is null.
func (d DriveState) SpeedOrZero() float64 {
	if d.Speed == nil {
		return 0
	}
	return *d.Speed
}

// ShiftCode encodes the shift state as a small integer for gauge export:
// reverse=-1, park=0, neutral=1, drive=2. Unknown strings map to park.
func (d DriveState) ShiftCode() int {
	switch d.Shift() {
	case "R":
		return -1
	case "N":
		return 1
	case "D":
		return 2
	default:
		return 0
	}
}

// ChargeState carries the charging session fields.
type ChargeState struct {
	BatteryLevel         int     `json:"battery_level"`
	UsableBatteryLevel   int     `json:"usable_battery_level"`
	BatteryRange         float64 `json:"battery_range"`
	EstBatteryRange      float64 `json:"est_battery_range"`
	IdealBatteryRange    float64 `json:"ideal_battery_range"`
	ChargeEnergyAdded    float64 `json:"charge_energy_added"`
	ChargeLimitSoc       int     `json:"charge_limit_soc"`
	ChargeRate           float64 `json:"charge_rate"`
	ChargerActualCurrent int     `json:"charger_actual_current"`
	ChargerPower         int     `json:"charger_power"`
	ChargerVoltage       int     `json:"charger_voltage"`
	ChargingState        string  `json:"charging_state"`
	FastChargerBrand     string  `json:"fast_charger_brand"`
	FastChargerPresent   bool    `json:"fast_charger_present"`
	FastChargerType      string  `json:"fast_charger_type"`
	MinutesToFullCharge  int     `json:"minutes_to_full_charge"`
	TimeToFullCharge     float64 `json:"time_to_full_charge"`
	Timestamp            int64   `json:"timestamp"`
}

// ChargingStateDisconnected is the sentinel reported when no cable is plugged.
const ChargingStateDisconnected = "Disconnected"

// Disconnected reports whether the charge port has no cable attached.
func (c ChargeState) Disconnected() bool {
	return c.ChargingState == ChargingStateDisconnected
}

// ClimateState carries cabin temperature fields.
type ClimateState struct {
	InsideTemp           float64 `json:"inside_temp"`
	OutsideTemp          float64 `json:"outside_temp"`
	DriverTempSetting    float64 `json:"driver_temp_setting"`
	PassengerTempSetting float64 `json:"passenger_temp_setting"`
	IsClimateOn          bool    `json:"is_climate_on"`
	FanStatus            int     `json:"fan_status"`
	Timestamp            int64   `json:"timestamp"`
}

// VehicleState carries the remaining body fields the exporter reads.
type VehicleState struct {
	CarVersion    string  `json:"car_version"`
	IsUserPresent bool    `json:"is_user_present"`
	Locked        bool    `json:"locked"`
	Odometer      float64 `json:"odometer"`
	SentryMode    bool    `json:"sentry_mode"`
	Timestamp     int64   `json:"timestamp"`
}
