// Package mqtt publishes telemetry snapshots to an MQTT broker so home
// automation systems can subscribe alongside the Prometheus scrape.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/teslamon/teslamon/core/metrics"
	"github.com/teslamon/teslamon/infra/logger"
)

// Config holds the broker connection settings.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	Retain      bool   `json:"retain"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "teslamon"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "teslamon"
	}
}

// Publisher implements the metrics sink interface over MQTT. Each snapshot is
// published retained under <prefix>/<car_name>/state.
type Publisher struct {
	cli    paho.Client
	cfg    Config
	log    logger.Logger
	pubber func(topic string, payload []byte) error
}

// statePayload is the published message shape.
type statePayload struct {
	CarName      string  `json:"car_name"`
	State        string  `json:"state"`
	Online       bool    `json:"online"`
	BatteryLevel int     `json:"battery_level"`
	BatteryRange float64 `json:"battery_range"`
	ChargeRate   float64 `json:"charge_rate"`
	Speed        float64 `json:"speed"`
	Odometer     float64 `json:"odometer"`
	InsideTemp   float64 `json:"inside_temp"`
	OutsideTemp  float64 `json:"outside_temp"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Timestamp    int64   `json:"timestamp"`
}

// NewPublisher connects to the broker.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	log := logger.New("mqtt-publisher")
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected") }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }

	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p := &Publisher{cli: cli, cfg: cfg, log: log}
	p.pubber = p.publish
	return p, nil
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.cli.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (p *Publisher) topic(carName string) string {
	name := strings.ReplaceAll(strings.ToLower(carName), " ", "_")
	return fmt.Sprintf("%s/%s/state", strings.TrimSuffix(p.cfg.TopicPrefix, "/"), name)
}

// RecordSnapshot publishes the snapshot as a retained JSON message.
func (p *Publisher) RecordSnapshot(ev coremetrics.SnapshotEvent) error {
	d := ev.Data
	payload, err := json.Marshal(statePayload{
		CarName:      ev.CarName,
		State:        ev.State.Kind.String(),
		Online:       true,
		BatteryLevel: d.ChargeState.BatteryLevel,
		BatteryRange: d.ChargeState.BatteryRange,
		ChargeRate:   d.ChargeState.ChargeRate,
		Speed:        d.DriveState.SpeedOrZero(),
		Odometer:     d.VehicleState.Odometer,
		InsideTemp:   d.ClimateState.InsideTemp,
		OutsideTemp:  d.ClimateState.OutsideTemp,
		Latitude:     d.DriveState.Latitude,
		Longitude:    d.DriveState.Longitude,
		Timestamp:    ev.Time.Unix(),
	})
	if err != nil {
		return err
	}
	return p.pubber(p.topic(ev.CarName), payload)
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
