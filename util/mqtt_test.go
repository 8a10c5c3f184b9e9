package util

import (
	"sync"
	"testing"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

// Mock MQTT client for testing
type MockMQTTClient struct {
	publishCalls   []PublishCall
	subscribeCalls []SubscribeCall
	connected      bool
	mu             sync.RWMutex // Add mutex for thread safety
}

type PublishCall struct {
	Payload  interface{}
	Topic    string
	QoS      byte
	Retained bool
}

type SubscribeCall struct {
	Handler MQTT.MessageHandler
	Topic   string
	QoS     byte
}

func (m *MockMQTTClient) IsConnected() bool      { return m.connected }
func (m *MockMQTTClient) IsConnectionOpen() bool { return m.connected }
func (m *MockMQTTClient) Connect() MQTT.Token {
	m.connected = true
	return &MockToken{}
}
func (m *MockMQTTClient) Disconnect(quiesce uint) { m.connected = false }

func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishCalls = append(m.publishCalls, PublishCall{
		Topic:    topic,
		QoS:      qos,
		Retained: retained,
		Payload:  payload,
	})
	return &MockToken{}
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, callback MQTT.MessageHandler) MQTT.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeCalls = append(m.subscribeCalls, SubscribeCall{
		Topic:   topic,
		QoS:     qos,
		Handler: callback,
	})
	return &MockToken{}
}

func (m *MockMQTTClient) SubscribeMultiple(filters map[string]byte, callback MQTT.MessageHandler) MQTT.Token {
	return &MockToken{}
}
func (m *MockMQTTClient) Unsubscribe(topics ...string) MQTT.Token             { return &MockToken{} }
func (m *MockMQTTClient) AddRoute(topic string, callback MQTT.MessageHandler) {}
func (m *MockMQTTClient) OptionsReader() MQTT.ClientOptionsReader             { return MQTT.ClientOptionsReader{} }

func (m *MockMQTTClient) PublishCalls() []PublishCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]PublishCall, len(m.publishCalls))
	copy(calls, m.publishCalls)
	return calls
}

// Mock MQTT token
type MockToken struct {
	err error
}

func (m *MockToken) Wait() bool                     { return true }
func (m *MockToken) WaitTimeout(time.Duration) bool { return true }
func (m *MockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (m *MockToken) Error() error { return m.err }

// Mock MQTT message
type MockMessage struct {
	topic   string
	payload []byte
}

func (m *MockMessage) Duplicate() bool   { return false }
func (m *MockMessage) Qos() byte         { return 0 }
func (m *MockMessage) Retained() bool    { return false }
func (m *MockMessage) Topic() string     { return m.topic }
func (m *MockMessage) MessageID() uint16 { return 0 }
func (m *MockMessage) Payload() []byte   { return m.payload }
func (m *MockMessage) Ack()              {}

func TestRegisterMQTTConnectHook(t *testing.T) {
	// Clear existing handlers
	connectHandlers = make(map[string]func(MQTT.Client))

	called := false
	testHandler := func(client MQTT.Client) {
		called = true
	}

	RegisterMQTTConnectHook("test_handler", testHandler)

	if len(connectHandlers) != 1 {
		t.Errorf("Expected 1 connect handler, got %d", len(connectHandlers))
	}

	mockClient := &MockMQTTClient{}
	if connectHandlers["test_handler"] != nil {
		connectHandlers["test_handler"](mockClient)
	}

	if !called {
		t.Error("Connect hook should have been called")
	}

	// nil handler removes the registration
	RegisterMQTTConnectHook("test_handler", nil)
	if len(connectHandlers) != 0 {
		t.Errorf("Expected 0 connect handlers after removal, got %d", len(connectHandlers))
	}
}

func TestRegisterMQTTSubscription(t *testing.T) {
	subscriptions = make(map[string]MQTT.MessageHandler)

	handler := func(client MQTT.Client, message MQTT.Message) {}

	RegisterMQTTSubscription("hab/presence/hallway/trigger/set", handler)
	RegisterMQTTSubscription("hab/presence/suite/trigger/set", handler)

	if len(subscriptions) != 2 {
		t.Errorf("Expected 2 subscriptions, got %d", len(subscriptions))
	}

	// re-registering the same topic replaces, not duplicates
	RegisterMQTTSubscription("hab/presence/hallway/trigger/set", handler)
	if len(subscriptions) != 2 {
		t.Errorf("Expected 2 subscriptions after re-register, got %d", len(subscriptions))
	}

	// nil handler removes the registration
	RegisterMQTTSubscription("hab/presence/hallway/trigger/set", nil)
	if len(subscriptions) != 1 {
		t.Errorf("Expected 1 subscription after removal, got %d", len(subscriptions))
	}
}

func TestSubscribeSubscribesRegisteredTopics(t *testing.T) {
	subscriptions = make(map[string]MQTT.MessageHandler)
	handled := false
	RegisterMQTTSubscription("hab/presence/hallway/trigger/set", func(client MQTT.Client, message MQTT.Message) {
		handled = true
	})

	mockClient := &MockMQTTClient{}
	Client = mockClient
	defer func() { Client = nil }()

	subscribe()

	if len(mockClient.subscribeCalls) != 1 {
		t.Fatalf("Expected 1 subscribe call, got %d", len(mockClient.subscribeCalls))
	}
	call := mockClient.subscribeCalls[0]
	if call.Topic != "hab/presence/hallway/trigger/set" {
		t.Errorf("Subscribed to %s, expected hab/presence/hallway/trigger/set", call.Topic)
	}

	// the registered handler rides along
	call.Handler(mockClient, &MockMessage{topic: call.Topic, payload: []byte("true")})
	if !handled {
		t.Error("Registered handler should have been invoked")
	}
}
