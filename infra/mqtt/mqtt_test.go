package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcore/dispatchd/core/broadcast"
	"github.com/fleetcore/dispatchd/core/events"
	"github.com/fleetcore/dispatchd/core/logger"
	"github.com/fleetcore/dispatchd/core/model"
)

type stubToken struct{ err error }

func (t *stubToken) Wait() bool                     { return true }
func (t *stubToken) WaitTimeout(time.Duration) bool { return true }
func (t *stubToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *stubToken) Error() error { return t.err }

type publishCall struct {
	topic   string
	qos     byte
	payload []byte
}

type stubClient struct {
	connected bool
	publishes []publishCall
}

func (c *stubClient) IsConnected() bool       { return c.connected }
func (c *stubClient) Connect() paho.Token     { c.connected = true; return &stubToken{} }
func (c *stubClient) Disconnect(uint)         { c.connected = false }
func (c *stubClient) Subscribe(string, byte, paho.MessageHandler) paho.Token {
	return &stubToken{}
}
func (c *stubClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	c.publishes = append(c.publishes, publishCall{topic: topic, qos: qos, payload: payload.([]byte)})
	return &stubToken{}
}

type stubMessage struct {
	topic   string
	payload []byte
}

func (m *stubMessage) Duplicate() bool   { return false }
func (m *stubMessage) Qos() byte         { return 0 }
func (m *stubMessage) Retained() bool    { return false }
func (m *stubMessage) Topic() string     { return m.topic }
func (m *stubMessage) MessageID() uint16 { return 1 }
func (m *stubMessage) Payload() []byte   { return m.payload }
func (m *stubMessage) Ack()              {}

type recordingApplier struct {
	applied []events.Event
}

func (a *recordingApplier) Apply(ev events.Event) error {
	a.applied = append(a.applied, ev)
	return nil
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	assert.Equal(t, "dispatchd", cfg.ClientID)
	assert.Equal(t, "feed/orders", cfg.OrderTopic)
	assert.Equal(t, "feed/fleet", cfg.FleetTopic)
	assert.Equal(t, "feed/positions", cfg.PositionTopic)
	assert.Equal(t, "dispatch", cfg.BroadcastPrefix)
}

func TestQoSFor(t *testing.T) {
	cfg := Config{QoS: map[string]byte{"feed": 1}}
	assert.Equal(t, byte(1), cfg.qosFor("feed"))
	assert.Equal(t, byte(0), cfg.qosFor("broadcast"))
}

func TestNewClientOptions(t *testing.T) {
	cfg := Config{
		Broker:   "tcp://localhost:1883",
		ClientID: "test-client",
		Username: "user",
		Password: "pass",
	}
	opts, err := NewClientOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, "test-client", opts.ClientID)
	assert.Equal(t, "user", opts.Username)
	assert.Equal(t, "pass", opts.Password)
	assert.True(t, opts.AutoReconnect)
}

func TestTransportPublishTopics(t *testing.T) {
	cli := &stubClient{connected: true}
	cfg := Config{QoS: map[string]byte{"broadcast": 1}}
	tr := NewTransportWithClient(cfg, cli)

	msg := broadcast.Message{Type: broadcast.TypePlanCommitted, Version: 3}
	require.NoError(t, tr.Publish(broadcast.RoleDriver, "v1", msg))
	require.NoError(t, tr.Publish(broadcast.RoleDispatcher, "", msg))

	require.Len(t, cli.publishes, 2)
	assert.Equal(t, "dispatch/driver/v1", cli.publishes[0].topic)
	assert.Equal(t, byte(1), cli.publishes[0].qos)
	assert.Equal(t, "dispatch/dispatcher/all", cli.publishes[1].topic)

	var decoded broadcast.Message
	require.NoError(t, json.Unmarshal(cli.publishes[0].payload, &decoded))
	assert.Equal(t, broadcast.TypePlanCommitted, decoded.Type)
	assert.Equal(t, int64(3), decoded.Version)
}

func TestIngestorAppliesDecodedEvents(t *testing.T) {
	applier := &recordingApplier{}
	in := &Ingestor{cfg: Config{}, applier: applier, log: logger.Nop{}}

	stop := model.Stop{
		ID:       "s1",
		Kind:     model.KindDelivery,
		Location: model.Coord{Lat: 48.86, Lon: 2.34},
		Demand:   model.Quantity{"box": 1},
		Window: model.TimeWindow{
			Earliest: time.Now().UTC(),
			Latest:   time.Now().UTC().Add(time.Hour),
		},
	}
	payload, err := json.Marshal(stop)
	require.NoError(t, err)
	env, err := json.Marshal(events.Envelope{
		Type:    events.KindStopCreated,
		At:      time.Now().UTC(),
		Payload: payload,
	})
	require.NoError(t, err)

	in.onMessage(nil, &stubMessage{topic: "feed/orders", payload: env})
	require.Len(t, applier.applied, 1)
	created, ok := applier.applied[0].(events.StopCreated)
	require.True(t, ok)
	assert.Equal(t, "s1", created.Stop.ID)

	// Malformed payloads are dropped, never panic or apply.
	in.onMessage(nil, &stubMessage{topic: "feed/orders", payload: []byte("{broken")})
	in.onMessage(nil, &stubMessage{topic: "feed/orders", payload: []byte(`{"type":"nonsense","payload":{}}`)})
	assert.Len(t, applier.applied, 1)
}
