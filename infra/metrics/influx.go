package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/teslamon/teslamon/core/metrics"
	"github.com/teslamon/teslamon/infra/logger"
)

// InfluxSink writes telemetry snapshots to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	base := strings.TrimSuffix(cfg.InfluxURL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails, so a dead Influx never blocks polling.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSnapshot writes the snapshot as one line-protocol point per API block.
func (s *InfluxSink) RecordSnapshot(ev coremetrics.SnapshotEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	d := ev.Data
	p := write.NewPointWithMeasurement("vehicle_snapshot").
		AddTag("car_name", ev.CarName).
		AddTag("car_state", ev.State.Kind.String()).
		AddField("battery_level", d.ChargeState.BatteryLevel).
		AddField("battery_range", d.ChargeState.BatteryRange).
		AddField("est_battery_range", d.ChargeState.EstBatteryRange).
		AddField("ideal_battery_range", d.ChargeState.IdealBatteryRange).
		AddField("charge_rate", d.ChargeState.ChargeRate).
		AddField("charger_voltage", d.ChargeState.ChargerVoltage).
		AddField("charger_power", d.ChargeState.ChargerPower).
		AddField("charger_actual_current", d.ChargeState.ChargerActualCurrent).
		AddField("minutes_to_full_charge", d.ChargeState.MinutesToFullCharge).
		AddField("speed", d.DriveState.SpeedOrZero()).
		AddField("power", d.DriveState.Power).
		AddField("heading", d.DriveState.Heading).
		AddField("latitude", d.DriveState.Latitude).
		AddField("longitude", d.DriveState.Longitude).
		AddField("shift_state", d.DriveState.ShiftCode()).
		AddField("odometer", d.VehicleState.Odometer).
		AddField("inside_temp", d.ClimateState.InsideTemp).
		AddField("outside_temp", d.ClimateState.OutsideTemp).
		AddField("driver_temp_setting", d.ClimateState.DriverTempSetting).
		AddField("passenger_temp_setting", d.ClimateState.PassengerTempSetting).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordConnectivity writes the online indicator.
func (s *InfluxSink) RecordConnectivity(ev coremetrics.ConnectivityEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("vehicle_online").
		AddTag("car_name", ev.CarName).
		AddField("online", ev.Online).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }
