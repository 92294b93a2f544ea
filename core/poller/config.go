package poller

import (
	"fmt"
	"time"

	"github.com/teslamon/teslamon/core/state"
)

// Config holds the adaptive poll intervals and the loop's failure policy.
// These are the calibration knobs of the whole exporter; none are hardcoded
// elsewhere.
type Config struct {
	// DrivingSeconds is the wait after a Driving cycle. Shortest interval,
	// bounds how stale position and speed can get.
	DrivingSeconds int `json:"driving_seconds"`
	// ChargingFastSeconds applies when a fast charger is attached; those
	// sessions complete in minutes.
	ChargingFastSeconds int `json:"charging_fast_seconds"`
	// ChargingSlowSeconds applies to AC charging sessions.
	ChargingSlowSeconds int `json:"charging_slow_seconds"`
	// ParkedSeconds is the base wait while the car idles.
	ParkedSeconds int `json:"parked_seconds"`
	// ParkedIdleMinutes extends the parked wait once the car has been
	// stably parked and online for ParkedIdleAfterCycles cycles, to conserve
	// API quota and avoid keeping the car awake.
	ParkedIdleMinutes int `json:"parked_idle_minutes"`
	// ParkedIdleAfterCycles is the number of consecutive parked cycles
	// before the idle wait kicks in. Zero disables the idle extension.
	ParkedIdleAfterCycles int `json:"parked_idle_after_cycles"`
	// ErrorSeconds is the fixed wait after any failed cycle.
	ErrorSeconds int `json:"error_seconds"`
	// ErrorBudget is the consecutive-failure ceiling that stops a loop. The
	// counter is monotonic within a worker's lifetime and resets only on a
	// successful cycle.
	ErrorBudget int `json:"error_budget"`
}

// SetDefaults applies the reference intervals.
func (c *Config) SetDefaults() {
	if c.DrivingSeconds <= 0 {
		c.DrivingSeconds = 5
	}
	if c.ChargingFastSeconds <= 0 {
		c.ChargingFastSeconds = 5
	}
	if c.ChargingSlowSeconds <= 0 {
		c.ChargingSlowSeconds = 15
	}
	if c.ParkedSeconds <= 0 {
		c.ParkedSeconds = 30
	}
	if c.ParkedIdleMinutes <= 0 {
		c.ParkedIdleMinutes = 15
	}
	if c.ParkedIdleAfterCycles == 0 {
		c.ParkedIdleAfterCycles = 10
	}
	if c.ErrorSeconds <= 0 {
		c.ErrorSeconds = 60
	}
	if c.ErrorBudget <= 0 {
		c.ErrorBudget = 10
	}
}

// Validate checks the interval ordering the scheduler relies on.
func (c Config) Validate() error {
	if c.ChargingFastSeconds >= c.ChargingSlowSeconds {
		return fmt.Errorf("charging_fast_seconds must be below charging_slow_seconds")
	}
	if c.DrivingSeconds > c.ChargingSlowSeconds || c.ChargingSlowSeconds > c.ParkedSeconds {
		return fmt.Errorf("intervals must be ordered driving <= charging_slow <= parked")
	}
	return nil
}

// Wait returns the next poll interval for the given operating state. Unknown
// maps to the error wait.
func (c Config) Wait(st state.OperatingState) time.Duration {
	switch st.Kind {
	case state.Driving:
		return time.Duration(c.DrivingSeconds) * time.Second
	case state.Charging:
		if st.Data != nil && st.Data.ChargeState.FastChargerPresent {
			return time.Duration(c.ChargingFastSeconds) * time.Second
		}
		return time.Duration(c.ChargingSlowSeconds) * time.Second
	case state.Parked:
		return time.Duration(c.ParkedSeconds) * time.Second
	default:
		return c.ErrorWait()
	}
}

// IdleWait is the extended parked interval.
func (c Config) IdleWait() time.Duration {
	return time.Duration(c.ParkedIdleMinutes) * time.Minute
}

// ErrorWait is the fixed interval after a failed cycle.
func (c Config) ErrorWait() time.Duration {
	return time.Duration(c.ErrorSeconds) * time.Second
}
