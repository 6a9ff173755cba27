// Package mqttbridge lets devices talk to the relay over MQTT.
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coreconfig "github.com/m3rciful/sensorbridge/core/config"
	"github.com/m3rciful/sensorbridge/core/logger"
	"github.com/m3rciful/sensorbridge/internal/device"
	"github.com/m3rciful/sensorbridge/internal/state"
)

const (
	publishTimeout = 5 * time.Second
	connectTimeout = 10 * time.Second
	retryInterval  = 5 * time.Second
	startWait      = 10 * time.Second
)

// Relay is what the bridge needs from the relay service.
type Relay interface {
	ReceiveReading(ctx context.Context, in state.ReadingInput) state.SensorReading
	Now() time.Time
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Bridge subscribes to device readings and publishes location changes.
type Bridge struct {
	cfg    coreconfig.MQTTConfig
	relay  Relay
	client mqtt.Client
	pub    publisher

	retryInterval time.Duration
	startWait     time.Duration
}

// New returns an unconnected bridge.
func New(cfg coreconfig.MQTTConfig, relay Relay) *Bridge {
	return &Bridge{cfg: cfg, relay: relay, retryInterval: retryInterval, startWait: startWait}
}

// ReadingTopic is where devices publish readings.
func (b *Bridge) ReadingTopic() string { return b.cfg.Prefix + "/sensor-data" }

// LocationTopic carries the retained current location.
func (b *Bridge) LocationTopic() string { return b.cfg.Prefix + "/location" }

// Start connects to the broker. A broker that is unreachable at start is
// retried in the background every retry interval; Start waits for the first
// connection at most startWait and then returns. Subscriptions are renewed
// on every connect. The error is only for a connection the broker refused.
func (b *Bridge) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(b.retryInterval)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(connectTimeout)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.MQTT.Info("mqtt connected", slog.String("event", "mqtt.connect"), slog.String("status", "ok"))
		b.subscribe(client)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.MQTT.Warn("mqtt connection lost", slog.String("event", "mqtt.connect"), slog.String("status", "fail"), slog.String("err", err.Error()))
	})

	b.client = mqtt.NewClient(opts)
	b.pub = b.client
	token := b.client.Connect()
	if !token.WaitTimeout(b.startWait) {
		logger.MQTT.Warn("mqtt broker unreachable, retrying in background",
			slog.String("event", "mqtt.connect"),
			slog.String("status", "skip"),
			slog.String("host", b.cfg.Broker),
		)
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: connect %s: %w", b.cfg.Broker, err)
	}
	return nil
}

// Connected reports whether the broker connection is currently up.
func (b *Bridge) Connected() bool {
	return b.client != nil && b.client.IsConnectionOpen()
}

// Stop disconnects from the broker.
// Pending connect retries are abandoned.
func (b *Bridge) Stop() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
		logger.MQTT.Info("mqtt disconnected", slog.String("event", "mqtt.disconnect"))
	}
}

func (b *Bridge) subscribe(client mqtt.Client) {
	topic := b.ReadingTopic()
	token := client.Subscribe(topic, b.cfg.QoS, b.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		logger.MQTT.Error("subscribe failed", slog.String("event", "mqtt.subscribe"), slog.String("topic", topic), slog.String("err", err.Error()))
		return
	}
	logger.MQTT.Info("subscribed", slog.String("event", "mqtt.subscribe"), slog.String("topic", topic))
}

func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx := logger.WithRID(context.Background(), uuid.NewString())
	in, err := device.ParseReading(msg.Payload())
	if err != nil {
		logger.Warn(ctx, "mqtt", "reading.rejected",
			slog.String("status", "rejected"),
			slog.String("topic", msg.Topic()),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}
	b.relay.ReceiveReading(ctx, in)
}

// PublishLocation publishes loc, retained, in the /get-location body shape.
func (b *Bridge) PublishLocation(ctx context.Context, loc state.Location) {
	if b.pub == nil {
		return
	}
	payload, err := json.Marshal(device.NewLocationBody(loc, device.Stamp(b.relay.Now())))
	if err != nil {
		logger.Error(ctx, "mqtt", "location.publish", slog.String("status", "fail"), slog.String("err", err.Error()))
		return
	}
	topic := b.LocationTopic()
	token := b.pub.Publish(topic, b.cfg.QoS, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		logger.Warn(ctx, "mqtt", "location.publish", slog.String("status", "fail"), slog.String("topic", topic), slog.String("err", "timeout"))
		return
	}
	if err := token.Error(); err != nil {
		logger.Warn(ctx, "mqtt", "location.publish", slog.String("status", "fail"), slog.String("topic", topic), slog.String("err", err.Error()))
		return
	}
	logger.Debug(ctx, "mqtt", "location.publish", slog.String("status", "ok"), slog.String("topic", topic))
}
