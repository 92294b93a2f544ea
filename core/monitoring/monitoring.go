// Package monitoring routes errors worth paging on, such as a polling loop
// exhausting its error budget, to an external reporter.
package monitoring

import "time"

// Monitor receives reportable errors. Implementations live in
// infra/monitoring; NopMonitor swallows everything when no reporter is
// configured.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init installs the process-wide monitor. Called once at service startup.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CaptureException reports the error, tagged with the vehicle or component
// it came from.
func CaptureException(err error, tags map[string]string) {
	if current != nil {
		current.CaptureException(err, tags)
	}
}

// Recover forwards panics from polling goroutines to the reporter.
func Recover() {
	if current != nil {
		current.Recover()
	}
}

// Flush drains buffered reports before shutdown.
func Flush(d time.Duration) {
	if current != nil {
		current.Flush(d)
	}
}
