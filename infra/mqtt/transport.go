package mqtt

import (
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/fleetcore/dispatchd/core/broadcast"
	"github.com/fleetcore/dispatchd/infra/logger"
)

// Transport publishes broadcast messages to <prefix>/<role>/<scope>
// topics. It implements broadcast.Transport.
type Transport struct {
	cfg Config
	cli pahoClient
	log logger.Logger
}

// NewTransport connects to the broker for outbound publishing.
func NewTransport(cfg Config) (*Transport, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt-transport")
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &Transport{cfg: cfg, cli: c, log: log}, nil
}

// NewTransportWithClient wires an existing client, sharing the ingest
// connection.
func NewTransportWithClient(cfg Config, cli pahoClient) *Transport {
	cfg.SetDefaults()
	return &Transport{cfg: cfg, cli: cli, log: logger.New("mqtt-transport")}
}

// Publish sends one role-scoped message. Scope "" publishes to the
// role's fleet-wide topic.
func (t *Transport) Publish(role broadcast.Role, scope string, msg broadcast.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal broadcast message: %w", err)
	}
	topic := fmt.Sprintf("%s/%s/all", t.cfg.BroadcastPrefix, role)
	if scope != "" {
		topic = fmt.Sprintf("%s/%s/%s", t.cfg.BroadcastPrefix, role, scope)
	}
	token := t.cli.Publish(topic, t.cfg.qosFor("broadcast"), false, payload)
	token.Wait()
	return token.Error()
}

// Close disconnects from the broker.
func (t *Transport) Close() {
	if t.cli != nil && t.cli.IsConnected() {
		t.cli.Disconnect(250)
	}
}
