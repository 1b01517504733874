package mqtt

import (
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/fleetcore/dispatchd/core/events"
	"github.com/fleetcore/dispatchd/infra/logger"
)

// Applier receives decoded feed events. The state machine implements it.
type Applier interface {
	Apply(ev events.Event) error
}

// Ingestor subscribes to the order, fleet and position feed topics,
// decodes each envelope and applies it. Malformed or unknown messages
// are logged and dropped; the feed is never blocked on a bad producer.
type Ingestor struct {
	cfg     Config
	cli     pahoClient
	applier Applier
	log     logger.Logger
}

// NewIngestor connects to the broker and subscribes to the feed topics.
func NewIngestor(cfg Config, applier Applier) (*Ingestor, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt-ingest")
	in := &Ingestor{cfg: cfg, applier: applier, log: log}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		for _, topic := range []string{cfg.OrderTopic, cfg.FleetTopic, cfg.PositionTopic} {
			if token := c.Subscribe(topic, cfg.qosFor("feed"), in.onMessage); token.Wait() && token.Error() != nil {
				log.Errorf("subscribe %s: %v", topic, token.Error())
			}
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	in.cli = c
	return in, nil
}

func (in *Ingestor) onMessage(_ paho.Client, msg paho.Message) {
	ev, err := events.Decode(msg.Payload())
	if err != nil {
		in.log.Warnf("drop message on %s: %v", msg.Topic(), err)
		return
	}
	if err := in.applier.Apply(ev); err != nil {
		in.log.Warnf("apply %s: %v", ev.Kind(), err)
	}
}

// Close disconnects from the broker.
func (in *Ingestor) Close() {
	if in.cli != nil && in.cli.IsConnected() {
		in.cli.Disconnect(250)
	}
}
