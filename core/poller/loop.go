// Package poller runs one adaptive polling loop per vehicle. Each cycle wakes
// the car if needed, fetches its state, classifies it, records the readings
// and sleeps for an interval derived from the operating state. Every cycle is
// independently retryable; the only state carried across cycles is the
// consecutive-error counter and the last known online status.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslamon/teslamon/core/logger"
	coremetrics "github.com/teslamon/teslamon/core/metrics"
	"github.com/teslamon/teslamon/core/model"
	"github.com/teslamon/teslamon/core/monitoring"
	"github.com/teslamon/teslamon/core/state"
	"github.com/teslamon/teslamon/core/tesla"
)

// Phase is the loop's position in its cycle state machine.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseWakingUp
	PhaseFetching
	PhaseRecording
	PhaseWaiting
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseWakingUp:
		return "WakingUp"
	case PhaseFetching:
		return "Fetching"
	case PhaseRecording:
		return "Recording"
	case PhaseWaiting:
		return "Waiting"
	default:
		return "Stopped"
	}
}

// Loop polls one vehicle. Loops never share mutable state; the supervisor
// gives each its own API client sharing only the credential.
type Loop struct {
	cfg     Config
	api     tesla.API
	sink    coremetrics.MetricsSink
	vehicle model.Vehicle
	log     logger.Logger

	phase        atomic.Int32
	errCount     int
	parkedStreak int
	online       bool
	carName      string
}

// NewLoop builds a loop for one vehicle. The identity is immutable for the
// loop's lifetime; a renamed car moves all of its metric labels, connectivity
// included, at the next successful fetch because labels follow the snapshot.
func NewLoop(cfg Config, api tesla.API, sink coremetrics.MetricsSink, v model.Vehicle, log logger.Logger) *Loop {
	cfg.SetDefaults()
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	l := &Loop{cfg: cfg, api: api, sink: sink, vehicle: v, log: log, online: v.IsOnline(), carName: v.DisplayName}
	return l
}

// Phase returns the loop's current phase.
func (l *Loop) Phase() Phase { return Phase(l.phase.Load()) }

func (l *Loop) setPhase(p Phase) { l.phase.Store(int32(p)) }

// ErrorCount returns the consecutive-error counter.
func (l *Loop) ErrorCount() int { return l.errCount }

// Run executes cycles until the context is cancelled or the error budget is
// exhausted. The stop signal is observed at loop boundaries only; an in-flight
// request finishes first.
func (l *Loop) Run(ctx context.Context) {
	defer monitoring.Recover()
	defer l.setPhase(PhaseStopped)
	for ctx.Err() == nil {
		if l.errCount >= l.cfg.ErrorBudget {
			err := fmt.Errorf("error budget exhausted after %d consecutive failures", l.errCount)
			l.log.Errorf("stopping collection: vehicle=%q err=%v", l.vehicle.DisplayName, err)
			monitoring.CaptureException(err, map[string]string{"vehicle": l.vehicle.DisplayName})
			return
		}
		wait := l.cycle(ctx)
		l.setPhase(PhaseWaiting)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// cycle runs one iteration and returns the wait before the next one.
func (l *Loop) cycle(ctx context.Context) time.Duration {
	l.setPhase(PhaseIdle)
	cycleID := uuid.NewString()

	if !l.online {
		l.setPhase(PhaseWakingUp)
		v, err := l.api.WakePoll(ctx, l.vehicle.ID)
		if err != nil {
			if errors.Is(err, tesla.ErrWakeTimeout) {
				l.recordConnectivity(false)
			}
			return l.fail(cycleID, "wake vehicle", err)
		}
		l.online = v.IsOnline()
	}

	l.setPhase(PhaseFetching)
	data, err := l.fetch(ctx)
	if err != nil {
		if errors.Is(err, tesla.ErrVehicleUnavailable) {
			l.online = false
			l.recordConnectivity(false)
		}
		return l.fail(cycleID, "fetch vehicle data", err)
	}

	l.setPhase(PhaseRecording)
	st := state.Classify(data)
	l.errCount = 0
	l.online = true
	l.carName = data.DisplayName
	if st.Kind == state.Parked {
		l.parkedStreak++
	} else {
		l.parkedStreak = 0
	}

	ev := coremetrics.SnapshotEvent{CarName: data.DisplayName, State: st, Data: data, Time: time.Now()}
	if err := l.sink.RecordSnapshot(ev); err != nil {
		l.log.Warnf("record snapshot: vehicle=%q err=%v", data.DisplayName, err)
	}
	l.recordConnectivity(true)

	wait := l.cfg.Wait(st)
	if st.Kind == state.Parked && l.cfg.ParkedIdleAfterCycles > 0 && l.parkedStreak >= l.cfg.ParkedIdleAfterCycles {
		wait = l.cfg.IdleWait()
	}
	l.log.Debugw("collected vehicle metrics", map[string]any{
		"cycle":   cycleID,
		"vehicle": data.DisplayName,
		"state":   st.Kind.String(),
		"online":  l.online,
		"wait":    wait.String(),
	})
	l.log.Infof("collected vehicle metrics: vehicle=%q state=%s wait=%s", data.DisplayName, st.Kind, wait)
	return wait
}

// fetch retrieves the snapshot, refreshing the credential and retrying once
// on expiry. A second expiry is not retried within the cycle so a hard
// credential failure cannot be masked.
func (l *Loop) fetch(ctx context.Context) (*model.VehicleData, error) {
	data, err := l.api.FetchVehicleData(ctx, l.vehicle.ID)
	if !errors.Is(err, tesla.ErrAuthExpired) {
		return data, err
	}
	l.log.Warnf("auth expired, refreshing credential: vehicle=%q", l.vehicle.DisplayName)
	if rerr := l.api.RefreshCredential(ctx); rerr != nil {
		return nil, rerr
	}
	return l.api.FetchVehicleData(ctx, l.vehicle.ID)
}

// fail counts the error and selects the fixed error wait. The operating state
// for a failed cycle is Unknown.
func (l *Loop) fail(cycleID, op string, err error) time.Duration {
	l.errCount++
	l.parkedStreak = 0
	wait := l.cfg.ErrorWait()
	l.log.Errorf("%s: vehicle=%q cycle=%s error_count=%d wait=%s err=%v",
		op, l.vehicle.DisplayName, cycleID, l.errCount, wait, err)
	return wait
}

func (l *Loop) recordConnectivity(online bool) {
	rec, ok := l.sink.(coremetrics.ConnectivityRecorder)
	if !ok {
		return
	}
	name := l.carName
	ev := coremetrics.ConnectivityEvent{CarName: name, Online: online, Time: time.Now()}
	if err := rec.RecordConnectivity(ev); err != nil {
		l.log.Warnf("record connectivity: vehicle=%q err=%v", name, err)
	}
}
