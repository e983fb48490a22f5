package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ivlev/shotplayer/internal/config"
)

// Response acknowledges one control message on <status_topic>/ack.
type Response struct {
	CommandAck string `msgpack:"command_ack"`
	Status     string `msgpack:"status"`
	Error      string `msgpack:"error,omitempty"`
	Timestamp  string `msgpack:"timestamp"`
}

// Connect opens an MQTT client with automatic reconnection.
func Connect(cfg config.MQTTConfig, logger *slog.Logger) (mqtt.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "broker", cfg.Broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	logger.Info("connecting to mqtt broker", "broker", cfg.Broker)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return client, nil
}

// MQTT subscribes to the control topic, applies requests in arrival order and
// publishes msgpack-encoded status snapshots.
type MQTT struct {
	client   mqtt.Client
	player   Player
	cfg      config.MQTTConfig
	logger   *slog.Logger
	requests chan []byte
}

func NewMQTT(client mqtt.Client, player Player, cfg config.MQTTConfig, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTT{
		client:   client,
		player:   player,
		cfg:      cfg,
		logger:   logger,
		requests: make(chan []byte, 32),
	}
}

// Run subscribes, processes requests and publishes status every interval until
// ctx is done.
func (m *MQTT) Run(ctx context.Context, interval time.Duration) error {
	m.logger.Info("subscribing to control plane", "topic", m.cfg.ControlTopic, "qos", m.cfg.QoS)
	token := m.client.Subscribe(m.cfg.ControlTopic, m.cfg.QoS, m.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control plane subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control plane subscription failed: %w", err)
	}
	defer m.unsubscribe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-m.requests:
			m.handle(data)
		case <-ticker.C:
			if err := m.PublishStatus(); err != nil {
				m.logger.Debug("status publish skipped", "error", err)
			}
		}
	}
}

func (m *MQTT) unsubscribe() {
	if m.client.IsConnected() {
		m.client.Unsubscribe(m.cfg.ControlTopic).WaitTimeout(2 * time.Second)
	}
	m.logger.Info("control plane handler stopped")
}

func (m *MQTT) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	select {
	case m.requests <- msg.Payload():
	default:
		m.logger.Warn("control queue full, dropping request", "topic", msg.Topic())
	}
}

// handle applies one request, acknowledges it and publishes fresh status.
func (m *MQTT) handle(data []byte) Response {
	st, err := Dispatch(m.player, data)
	resp := Response{
		CommandAck: commandName(data),
		Status:     "ok",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		m.logger.Warn("control request rejected", "command", resp.CommandAck, "error", err)
	} else {
		m.logger.Info("control request applied", "command", resp.CommandAck, "index", st.Index)
	}

	if err := m.publish(m.cfg.StatusTopic+"/ack", resp); err != nil {
		m.logger.Debug("ack publish failed", "error", err)
	}
	if err == nil {
		if err := m.publish(m.cfg.StatusTopic, st); err != nil {
			m.logger.Debug("status publish failed", "error", err)
		}
	}
	return resp
}

// PublishStatus sends the current controller status.
func (m *MQTT) PublishStatus() error {
	return m.publish(m.cfg.StatusTopic, m.player.Status())
}

func (m *MQTT) publish(topic string, v any) error {
	if !m.client.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	token := m.client.Publish(topic, m.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func commandName(data []byte) string {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil || req.Command == "" {
		return "unknown"
	}
	return req.Command
}
