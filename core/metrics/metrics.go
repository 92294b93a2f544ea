package metrics

import (
	"time"

	"github.com/teslamon/teslamon/core/model"
	"github.com/teslamon/teslamon/core/state"
)

// SnapshotEvent carries one successfully fetched snapshot and its derived
// operating state to the sinks.
type SnapshotEvent struct {
	CarName string
	State   state.OperatingState
	Data    *model.VehicleData
	Time    time.Time
}

// ConnectivityEvent reports whether a vehicle is reachable. It is emitted on
// every cycle, including failed ones when the online status is determinable.
type ConnectivityEvent struct {
	CarName string
	Online  bool
	Time    time.Time
}

// MetricsSink records telemetry snapshots for observability purposes.
type MetricsSink interface {
	RecordSnapshot(ev SnapshotEvent) error
}

// ConnectivityRecorder records vehicle reachability.
type ConnectivityRecorder interface {
	RecordConnectivity(ev ConnectivityEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordSnapshot(SnapshotEvent) error         { return nil }
func (NopSink) RecordConnectivity(ConnectivityEvent) error { return nil }
