package poller

import (
	"context"
	"sync"

	"github.com/teslamon/teslamon/core/logger"
	coremetrics "github.com/teslamon/teslamon/core/metrics"
	"github.com/teslamon/teslamon/core/model"
	"github.com/teslamon/teslamon/core/tesla"
)

// Supervisor owns one polling loop per vehicle and their coordinated
// shutdown. Loops are independent: a loop stopping on budget exhaustion does
// not affect the others.
type Supervisor struct {
	cfg   Config
	sink  coremetrics.MetricsSink
	log   logger.Logger
	loops []*Loop
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor(cfg Config, sink coremetrics.MetricsSink, log logger.Logger) *Supervisor {
	cfg.SetDefaults()
	return &Supervisor{cfg: cfg, sink: sink, log: log}
}

// Add registers a loop for the vehicle. Each loop gets its own API client so
// token refresh needs no coordination across workers.
func (s *Supervisor) Add(v model.Vehicle, api tesla.API) {
	s.loops = append(s.loops, NewLoop(s.cfg, api, s.sink, v, s.log))
}

// Loops returns the registered loops.
func (s *Supervisor) Loops() []*Loop { return s.loops }

// Run starts every loop and blocks until all of them have observed the
// cancelled context and exited. A loop already sleeping exits at most one
// wait interval after cancellation.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, l := range s.loops {
		wg.Add(1)
		s.log.Infof("started collecting vehicle metrics: vehicle=%q", l.vehicle.DisplayName)
		go func(l *Loop) {
			defer wg.Done()
			l.Run(ctx)
		}(l)
	}
	wg.Wait()
}
