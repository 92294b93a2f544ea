package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	coremetrics "github.com/teslamon/teslamon/core/metrics"
	"github.com/teslamon/teslamon/core/model"
	"github.com/teslamon/teslamon/core/state"
	"github.com/teslamon/teslamon/core/tesla"
	"github.com/teslamon/teslamon/infra/logger"
)

type fakeAPI struct {
	mu           sync.Mutex
	fetch        func(call int) (*model.VehicleData, error)
	fetchCalls   int
	wake         func(call int) (model.Vehicle, error)
	wakeCalls    int
	refreshErr   error
	refreshCalls int
}

func (f *fakeAPI) FetchVehicles(context.Context) ([]model.Vehicle, error) { return nil, nil }

func (f *fakeAPI) FetchVehicleData(context.Context, int64) (*model.VehicleData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	return f.fetch(f.fetchCalls)
}

func (f *fakeAPI) Wake(ctx context.Context, id int64) (model.Vehicle, error) {
	return f.WakePoll(ctx, id)
}

func (f *fakeAPI) WakePoll(context.Context, int64) (model.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wakeCalls++
	if f.wake == nil {
		return model.Vehicle{State: "online"}, nil
	}
	return f.wake(f.wakeCalls)
}

func (f *fakeAPI) RefreshCredential(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return f.refreshErr
}

func (f *fakeAPI) calls() (fetch, wake, refresh int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls, f.wakeCalls, f.refreshCalls
}

type recordingSink struct {
	mu        sync.Mutex
	snapshots []coremetrics.SnapshotEvent
	conn      []coremetrics.ConnectivityEvent
}

func (r *recordingSink) RecordSnapshot(ev coremetrics.SnapshotEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, ev)
	return nil
}

func (r *recordingSink) RecordConnectivity(ev coremetrics.ConnectivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn = append(r.conn, ev)
	return nil
}

func (r *recordingSink) counts() (snapshots, online int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots), len(r.conn)
}

func drivingData() *model.VehicleData {
	shift := "D"
	speed := 12.5
	return &model.VehicleData{
		DisplayName: "Bellwood Auto",
		State:       "online",
		DriveState:  model.DriveState{ShiftState: &shift, Speed: &speed},
		ChargeState: model.ChargeState{ChargingState: "Disconnected"},
	}
}

func parkedData() *model.VehicleData {
	return &model.VehicleData{
		DisplayName: "Bellwood Auto",
		State:       "online",
		ChargeState: model.ChargeState{ChargingState: "Disconnected"},
	}
}

func strPtr(s string) *string { return &s }

func onlineVehicle() model.Vehicle {
	return model.Vehicle{ID: 1, DisplayName: "Bellwood Auto", State: "online"}
}

func testConfig() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

func TestLoop_SuccessfulCycleRecordsAndWaits(t *testing.T) {
	api := &fakeAPI{fetch: func(int) (*model.VehicleData, error) { return drivingData(), nil }}
	sink := &recordingSink{}
	l := NewLoop(testConfig(), api, sink, onlineVehicle(), logger.NopLogger{})

	wait := l.cycle(context.Background())
	if wait != 5*time.Second {
		t.Fatalf("driving wait: expected 5s, got %v", wait)
	}
	if l.ErrorCount() != 0 {
		t.Fatalf("expected zero error count, got %d", l.ErrorCount())
	}
	snaps, online := sink.counts()
	if snaps != 1 || online != 1 {
		t.Fatalf("expected 1 snapshot and 1 connectivity record, got %d/%d", snaps, online)
	}
	if sink.snapshots[0].State.Kind != state.Driving {
		t.Fatalf("expected Driving, got %s", sink.snapshots[0].State.Kind)
	}
}

func TestLoop_ParkedCycleUsesParkedWait(t *testing.T) {
	api := &fakeAPI{fetch: func(int) (*model.VehicleData, error) { return parkedData(), nil }}
	l := NewLoop(testConfig(), api, &recordingSink{}, onlineVehicle(), logger.NopLogger{})

	if wait := l.cycle(context.Background()); wait != 30*time.Second {
		t.Fatalf("parked wait: expected 30s, got %v", wait)
	}
}

func TestLoop_FastChargingCycleUsesFastWait(t *testing.T) {
	data := parkedData()
	data.DriveState.ShiftState = strPtr("P")
	data.ChargeState.ChargingState = "Charging"
	data.ChargeState.FastChargerPresent = true
	api := &fakeAPI{fetch: func(int) (*model.VehicleData, error) { return data, nil }}
	l := NewLoop(testConfig(), api, &recordingSink{}, onlineVehicle(), logger.NopLogger{})

	if wait := l.cycle(context.Background()); wait != 5*time.Second {
		t.Fatalf("fast charging wait: expected 5s, got %v", wait)
	}
}

func TestLoop_AuthExpiredRefreshedOnce(t *testing.T) {
	api := &fakeAPI{fetch: func(call int) (*model.VehicleData, error) {
		if call == 1 {
			return nil, tesla.ErrAuthExpired
		}
		return drivingData(), nil
	}}
	sink := &recordingSink{}
	l := NewLoop(testConfig(), api, sink, onlineVehicle(), logger.NopLogger{})

	l.cycle(context.Background())
	fetch, _, refresh := api.calls()
	if fetch != 2 || refresh != 1 {
		t.Fatalf("expected one refresh and one retry, got fetch=%d refresh=%d", fetch, refresh)
	}
	if l.ErrorCount() != 0 {
		t.Fatalf("error counter must stay at zero, got %d", l.ErrorCount())
	}
	if snaps, _ := sink.counts(); snaps != 1 {
		t.Fatalf("expected snapshot after retry, got %d", snaps)
	}
}

func TestLoop_SecondAuthExpiryFailsCycle(t *testing.T) {
	api := &fakeAPI{fetch: func(int) (*model.VehicleData, error) { return nil, tesla.ErrAuthExpired }}
	cfg := testConfig()
	l := NewLoop(cfg, api, &recordingSink{}, onlineVehicle(), logger.NopLogger{})

	wait := l.cycle(context.Background())
	if wait != cfg.ErrorWait() {
		t.Fatalf("expected error wait %v, got %v", cfg.ErrorWait(), wait)
	}
	if l.ErrorCount() != 1 {
		t.Fatalf("expected one error, got %d", l.ErrorCount())
	}
	if _, _, refresh := api.calls(); refresh != 1 {
		t.Fatalf("refresh must not be retried within a cycle, got %d", refresh)
	}
}

func TestLoop_ErrorCounterResetsAfterSuccess(t *testing.T) {
	api := &fakeAPI{fetch: func(call int) (*model.VehicleData, error) {
		if call <= 3 {
			return nil, &tesla.TransportError{Err: context.DeadlineExceeded}
		}
		return drivingData(), nil
	}}
	l := NewLoop(testConfig(), api, &recordingSink{}, onlineVehicle(), logger.NopLogger{})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		l.cycle(ctx)
	}
	if l.ErrorCount() != 3 {
		t.Fatalf("expected 3 consecutive errors, got %d", l.ErrorCount())
	}
	l.cycle(ctx)
	if l.ErrorCount() != 0 {
		t.Fatalf("counter must reset to zero after success, got %d", l.ErrorCount())
	}
}

func TestLoop_VehicleUnavailableMarksOffline(t *testing.T) {
	api := &fakeAPI{fetch: func(int) (*model.VehicleData, error) { return nil, tesla.ErrVehicleUnavailable }}
	sink := &recordingSink{}
	l := NewLoop(testConfig(), api, sink, onlineVehicle(), logger.NopLogger{})

	l.cycle(context.Background())
	if l.online {
		t.Fatalf("expected loop to mark vehicle offline")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.conn) != 1 || sink.conn[0].Online {
		t.Fatalf("expected one offline connectivity record, got %v", sink.conn)
	}
}

func TestLoop_RenamedCarMovesConnectivityLabel(t *testing.T) {
	api := &fakeAPI{fetch: func(call int) (*model.VehicleData, error) {
		if call == 1 {
			data := parkedData()
			data.DisplayName = "Renamed Auto"
			return data, nil
		}
		return nil, tesla.ErrVehicleUnavailable
	}}
	sink := &recordingSink{}
	l := NewLoop(testConfig(), api, sink, onlineVehicle(), logger.NopLogger{})

	ctx := context.Background()
	l.cycle(ctx)
	l.cycle(ctx)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.conn) != 2 {
		t.Fatalf("expected 2 connectivity records, got %d", len(sink.conn))
	}
	// Both the online record and the later offline record must carry the
	// snapshot's name, matching the telemetry gauge labels.
	for _, ev := range sink.conn {
		if ev.CarName != "Renamed Auto" {
			t.Fatalf("connectivity label must follow the snapshot name, got %q", ev.CarName)
		}
	}
}

func TestLoop_AsleepVehicleIsWokenFirst(t *testing.T) {
	api := &fakeAPI{fetch: func(int) (*model.VehicleData, error) { return drivingData(), nil }}
	v := onlineVehicle()
	v.State = "asleep"
	l := NewLoop(testConfig(), api, &recordingSink{}, v, logger.NopLogger{})

	l.cycle(context.Background())
	_, wake, _ := api.calls()
	if wake != 1 {
		t.Fatalf("expected one wake attempt, got %d", wake)
	}
	// Next cycle the vehicle is known online; no further wake.
	l.cycle(context.Background())
	if _, wake, _ = api.calls(); wake != 1 {
		t.Fatalf("wake must be skipped while online, got %d", wake)
	}
}

func TestLoop_WakeTimeoutCountsAsError(t *testing.T) {
	api := &fakeAPI{wake: func(int) (model.Vehicle, error) { return model.Vehicle{}, tesla.ErrWakeTimeout }}
	v := onlineVehicle()
	v.State = "asleep"
	cfg := testConfig()
	sink := &recordingSink{}
	l := NewLoop(cfg, api, sink, v, logger.NopLogger{})

	wait := l.cycle(context.Background())
	if wait != cfg.ErrorWait() {
		t.Fatalf("expected error wait, got %v", wait)
	}
	if l.ErrorCount() != 1 {
		t.Fatalf("expected one error, got %d", l.ErrorCount())
	}
	if fetch, _, _ := api.calls(); fetch != 0 {
		t.Fatalf("fetch must not run after wake failure, got %d", fetch)
	}
}

func TestLoop_BudgetExhaustionStopsWithoutFetching(t *testing.T) {
	api := &fakeAPI{fetch: func(int) (*model.VehicleData, error) { return drivingData(), nil }}
	cfg := testConfig()
	l := NewLoop(cfg, api, &recordingSink{}, onlineVehicle(), logger.NopLogger{})
	l.errCount = cfg.ErrorBudget

	done := make(chan struct{})
	go func() {
		l.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop on exhausted budget")
	}
	if l.Phase() != PhaseStopped {
		t.Fatalf("expected Stopped, got %s", l.Phase())
	}
	if fetch, _, _ := api.calls(); fetch != 0 {
		t.Fatalf("no fetch must run after budget exhaustion, got %d", fetch)
	}
}

func TestLoop_StopSignalDuringWaiting(t *testing.T) {
	fetched := make(chan struct{}, 10)
	api := &fakeAPI{fetch: func(int) (*model.VehicleData, error) {
		fetched <- struct{}{}
		return parkedData(), nil
	}}
	l := NewLoop(testConfig(), api, &recordingSink{}, onlineVehicle(), logger.NopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatalf("first cycle did not run")
	}
	// The loop is now in its 30s parked wait. Cancelling must stop it
	// without another fetch.
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not observe stop signal while waiting")
	}
	if l.Phase() != PhaseStopped {
		t.Fatalf("expected Stopped, got %s", l.Phase())
	}
	if fetch, _, _ := api.calls(); fetch != 1 {
		t.Fatalf("expected exactly one fetch, got %d", fetch)
	}
}

func TestLoop_ParkedIdleExtendsWait(t *testing.T) {
	api := &fakeAPI{fetch: func(int) (*model.VehicleData, error) { return parkedData(), nil }}
	cfg := testConfig()
	cfg.ParkedIdleAfterCycles = 2
	l := NewLoop(cfg, api, &recordingSink{}, onlineVehicle(), logger.NopLogger{})

	ctx := context.Background()
	if wait := l.cycle(ctx); wait != 30*time.Second {
		t.Fatalf("first parked cycle: expected 30s, got %v", wait)
	}
	if wait := l.cycle(ctx); wait != cfg.IdleWait() {
		t.Fatalf("stable parked cycle: expected %v, got %v", cfg.IdleWait(), wait)
	}
}
