package client

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"rfid-bridge/internal/config"
	"rfid-bridge/internal/util"
)

// MessageHandler receives one inbound message. The client invokes each
// handler on its own goroutine so a slow handler never blocks the paho
// receive loop or other in-flight messages.
type MessageHandler func(topic string, payload []byte)

// MQTTClient wraps the paho client with topic registration and an
// on-connect hook. Subscriptions are replayed on every (re)connection, and
// the hook runs after them, which is what drives the card sync pass each
// time the broker link comes back.
type MQTTClient struct {
	client mqtt.Client
	config *config.MQTTConfig

	mu        sync.RWMutex
	routes    map[string]MessageHandler
	onConnect func()
}

func NewMQTTClient(cfg *config.Config, logger *zap.Logger) *MQTTClient {
	mqttConfig := cfg.MQTT

	m := &MQTTClient{
		config: &mqttConfig,
		routes: make(map[string]MessageHandler),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(mqttConfig.BrokerURL).
		SetClientID(mqttConfig.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetKeepAlive(30 * time.Second).
		SetOnConnectHandler(m.handleConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			util.Warn("MQTT connection lost", zap.Error(err))
		})

	if mqttConfig.Username != "" {
		opts.SetUsername(mqttConfig.Username)
		opts.SetPassword(mqttConfig.Password)
	}

	m.client = mqtt.NewClient(opts)
	return m
}

// Handle registers a handler for a topic. Must be called before Connect;
// registrations are subscribed on every (re)connection.
func (m *MQTTClient) Handle(topic string, handler MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[topic] = handler
}

// OnConnect registers a hook that runs after each successful (re)connection,
// once subscriptions are in place.
func (m *MQTTClient) OnConnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = fn
}

// Connect starts the connection. With connect-retry enabled a broker outage
// at startup is not fatal: the bridge comes up and keeps retrying, so we
// only wait briefly before carrying on.
func (m *MQTTClient) Connect() error {
	token := m.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		util.Warn("MQTT broker not reachable yet, retrying in background",
			zap.String("broker", m.config.BrokerURL))
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

func (m *MQTTClient) handleConnect(c mqtt.Client) {
	util.Info("Connected to MQTT broker", zap.String("broker", m.config.BrokerURL))

	m.mu.RLock()
	routes := make(map[string]MessageHandler, len(m.routes))
	for topic, handler := range m.routes {
		routes[topic] = handler
	}
	onConnect := m.onConnect
	m.mu.RUnlock()

	for topic, handler := range routes {
		h := handler
		token := c.Subscribe(topic, m.config.QoS, func(_ mqtt.Client, msg mqtt.Message) {
			go h(msg.Topic(), msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			util.Error("Failed to subscribe",
				zap.String("topic", topic),
				zap.Error(token.Error()))
			continue
		}
		util.Info("Subscribed to topic", zap.String("topic", topic))
	}

	if onConnect != nil {
		go onConnect()
	}
}

// Publish sends a payload to a topic. Safe for concurrent use.
func (m *MQTTClient) Publish(topic string, payload []byte) error {
	token := m.client.Publish(topic, m.config.QoS, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (m *MQTTClient) IsConnected() bool {
	return m.client.IsConnected()
}

func (m *MQTTClient) Disconnect() {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	util.Info("MQTT client disconnected")
}
