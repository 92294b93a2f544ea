package metrics

import coremetrics "github.com/teslamon/teslamon/core/metrics"

// MultiSink fans snapshots out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSnapshot forwards the snapshot to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordSnapshot(ev coremetrics.SnapshotEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordSnapshot(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordConnectivity forwards the online indicator to sinks that record it.
func (m *MultiSink) RecordConnectivity(ev coremetrics.ConnectivityEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ConnectivityRecorder); ok {
			if err := rec.RecordConnectivity(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
