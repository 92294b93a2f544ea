package app

import (
	"context"
	"fmt"
	"time"

	"github.com/teslamon/teslamon/config"
	coremetrics "github.com/teslamon/teslamon/core/metrics"
	coremon "github.com/teslamon/teslamon/core/monitoring"
	"github.com/teslamon/teslamon/core/poller"
	"github.com/teslamon/teslamon/infra/logger"
	"github.com/teslamon/teslamon/infra/metrics"
	"github.com/teslamon/teslamon/infra/monitoring"
	"github.com/teslamon/teslamon/infra/mqtt"
	"github.com/teslamon/teslamon/infra/tesla"
)

// Service wires the gateway client, the sinks and the fleet supervisor.
type Service struct {
	Supervisor *poller.Supervisor

	client  *tesla.Client
	influx  *metrics.InfluxSink
	mqttPub *mqtt.Publisher
	log     logger.Logger

	promEnabled bool
	promAddr    string
}

// New creates a Service from the configuration. Authentication happens once
// here; every polling loop later gets its own client clone sharing the
// credential.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	client, err := tesla.Authenticate(cfg.Tesla, logger.New("tesla-client"))
	if err != nil {
		return nil, fmt.Errorf("tesla client: %w", err)
	}

	svc := &Service{
		client:      client,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promAddr:    cfg.Metrics.PrometheusAddr,
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics)
		if is, ok := sink.(*metrics.InfluxSink); ok {
			svc.influx = is
		}
		sinks = append(sinks, sink)
	}
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.mqttPub = pub
		sinks = append(sinks, pub)
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	svc.Supervisor = poller.NewSupervisor(cfg.Polling, sink, logger.New("poller"))
	return svc, nil
}

// Run lists the fleet once, starts one polling loop per vehicle and blocks
// until the context is cancelled and every loop has exited.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	vehicles, err := s.client.FetchVehicles(ctx)
	if err != nil {
		return fmt.Errorf("list vehicles: %w", err)
	}
	if len(vehicles) == 0 {
		return fmt.Errorf("no vehicles on account")
	}
	for _, v := range vehicles {
		s.Supervisor.Add(v, s.client.Clone())
	}
	s.Supervisor.Run(ctx)
	coremon.Flush(2 * time.Second)
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.influx != nil {
		s.influx.Close()
	}
	if s.mqttPub != nil {
		s.mqttPub.Close()
	}
	return nil
}
