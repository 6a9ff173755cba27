package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/sensorbridge/core/config"
	"github.com/m3rciful/sensorbridge/internal/device"
	"github.com/m3rciful/sensorbridge/internal/state"
)

type fakeRelay struct {
	readings []state.ReadingInput
}

func (f *fakeRelay) ReceiveReading(_ context.Context, in state.ReadingInput) state.SensorReading {
	f.readings = append(f.readings, in)
	return state.SensorReading{}
}

func (f *fakeRelay) Now() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	out []published
	err error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.out = append(p.out, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return doneToken{err: p.err}
}

func testConfig() coreconfig.MQTTConfig {
	return coreconfig.MQTTConfig{Broker: "tcp://localhost:1883", Prefix: "esp32", QoS: 1}
}

func TestTopics(t *testing.T) {
	b := New(testConfig(), &fakeRelay{})
	assert.Equal(t, "esp32/sensor-data", b.ReadingTopic())
	assert.Equal(t, "esp32/location", b.LocationTopic())
}

func TestHandleMessageForwardsReadings(t *testing.T) {
	r := &fakeRelay{}
	b := New(testConfig(), r)

	b.handleMessage(nil, fakeMessage{topic: "esp32/sensor-data", payload: []byte(`{"temperature":25,"humidity":50,"pm25":12,"deviceId":"ESP32_02"}`)})
	b.handleMessage(nil, fakeMessage{topic: "esp32/sensor-data", payload: []byte(`{"temperature":25}`)})

	require.Len(t, r.readings, 1)
	assert.Equal(t, state.ReadingInput{Temperature: 25, Humidity: 50, PM25: 12, DeviceID: "ESP32_02"}, r.readings[0])
}

func TestPublishLocationIsRetained(t *testing.T) {
	p := &fakePublisher{}
	b := New(testConfig(), &fakeRelay{})
	b.pub = p

	b.PublishLocation(context.Background(), state.Location{Lat: "1", Lon: "2", Name: "Home", HasLocation: true})

	require.Len(t, p.out, 1)
	assert.Equal(t, "esp32/location", p.out[0].topic)
	assert.True(t, p.out[0].retained)
	assert.Equal(t, byte(1), p.out[0].qos)

	var body device.LocationBody
	require.NoError(t, json.Unmarshal(p.out[0].payload, &body))
	assert.Equal(t, device.LocationBody{HasLocation: true, Lat: "1", Lon: "2", Name: "Home", Timestamp: "2025-01-01T00:00:00.000Z"}, body)
}

func TestPublishFailureIsDropped(t *testing.T) {
	p := &fakePublisher{err: errors.New("not connected")}
	b := New(testConfig(), &fakeRelay{})
	b.pub = p

	assert.NotPanics(t, func() { b.PublishLocation(context.Background(), state.Location{}) })
	assert.Len(t, p.out, 1)
}

func TestPublishWithoutClientIsNoop(t *testing.T) {
	b := New(testConfig(), &fakeRelay{})
	assert.NotPanics(t, func() { b.PublishLocation(context.Background(), state.Location{}) })
}

// fakeBroker drops every connection until open is set, then speaks just
// enough MQTT for a client to connect and subscribe.
type fakeBroker struct {
	ln       net.Listener
	open     atomic.Bool
	attempts atomic.Int32
	subs     chan string
}

func newFakeBroker(t *testing.T) *fakeBroker {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	b := &fakeBroker{ln: ln, subs: make(chan string, 8)}
	go b.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return b
}

func (b *fakeBroker) url() string { return "tcp://" + b.ln.Addr().String() }

func (b *fakeBroker) serve() {
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}
		b.attempts.Add(1)
		if !b.open.Load() {
			_ = conn.Close()
			continue
		}
		go b.session(conn)
	}
}

func (b *fakeBroker) session(conn net.Conn) {
	defer conn.Close()
	for {
		cp, err := packets.ReadPacket(conn)
		if err != nil {
			return
		}
		switch p := cp.(type) {
		case *packets.ConnectPacket:
			ack := packets.NewControlPacket(packets.Connack).(*packets.ConnackPacket)
			ack.ReturnCode = packets.Accepted
			_ = ack.Write(conn)
		case *packets.SubscribePacket:
			ack := packets.NewControlPacket(packets.Suback).(*packets.SubackPacket)
			ack.MessageID = p.MessageID
			ack.ReturnCodes = p.Qoss
			_ = ack.Write(conn)
			for _, topic := range p.Topics {
				select {
				case b.subs <- topic:
				default:
				}
			}
		case *packets.PingreqPacket:
			_ = packets.NewControlPacket(packets.Pingresp).Write(conn)
		case *packets.DisconnectPacket:
			return
		}
	}
}

func brokerBridge(broker *fakeBroker) *Bridge {
	cfg := testConfig()
	cfg.Broker = broker.url()
	cfg.ClientID = "sensorbridge-test"
	b := New(cfg, &fakeRelay{})
	b.retryInterval = 50 * time.Millisecond
	b.startWait = 300 * time.Millisecond
	return b
}

func TestStartConnectsAndSubscribes(t *testing.T) {
	broker := newFakeBroker(t)
	broker.open.Store(true)
	b := brokerBridge(broker)
	defer b.Stop()

	require.NoError(t, b.Start())
	assert.True(t, b.Connected())
	select {
	case topic := <-broker.subs:
		assert.Equal(t, "esp32/sensor-data", topic)
	case <-time.After(3 * time.Second):
		t.Fatal("no subscription")
	}
}

func TestStartKeepsRetryingWhileBrokerIsDown(t *testing.T) {
	broker := newFakeBroker(t)
	b := brokerBridge(broker)
	defer b.Stop()

	require.NoError(t, b.Start())
	assert.False(t, b.Connected())
	assert.GreaterOrEqual(t, broker.attempts.Load(), int32(1))

	broker.open.Store(true)
	require.Eventually(t, b.Connected, 5*time.Second, 20*time.Millisecond)
	select {
	case topic := <-broker.subs:
		assert.Equal(t, "esp32/sensor-data", topic)
	case <-time.After(3 * time.Second):
		t.Fatal("no subscription after reconnect")
	}
}
