package messaging

import (
	"crypto/tls"
	"fmt"
	"os"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// ConnectionTimeoutSec is the connect and keepalive timeout.
const ConnectionTimeoutSec = 20

// DefaultTLSPort is the default secure MQTT port.
const DefaultTLSPort = 8883

// DefaultPort is the default unencrypted MQTT port.
const DefaultPort = 1883

// MqttMessenger implements Messenger over github.com/eclipse/paho.mqtt.golang.
type MqttMessenger struct {
	config        *Config
	pahoClient    pahomqtt.Client
	subscriptions []subscription
	updateMutex   sync.Mutex
}

type subscription struct {
	topic   string
	handler Handler
}

// NewMqttMessenger creates a messenger that is not yet connected.
func NewMqttMessenger(config *Config) *MqttMessenger {
	return &MqttMessenger{config: config}
}

// Connect to the broker, retrying with a slowly growing backoff until
// it succeeds. A previous connection, if any, is closed first.
func (m *MqttMessenger) Connect(lastWillTopic string, lastWillValue string) error {
	if m.pahoClient != nil && m.pahoClient.IsConnected() {
		m.pahoClient.Disconnect(10 * ConnectionTimeoutSec)
	}

	config := m.config
	hostName, _ := os.Hostname()
	if config.ClientID == "" {
		config.ClientID = fmt.Sprintf("%s-%d", hostName, time.Now().Unix())
	}
	port := config.Port
	if port == 0 {
		if config.TLS {
			port = DefaultTLSPort
		} else {
			port = DefaultPort
		}
	}
	scheme := "tcp"
	if config.TLS {
		scheme = "tls"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d/", scheme, config.Server, port)

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.UserName)
	opts.SetPassword(config.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(ConnectionTimeoutSec * time.Second)
	opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: config.TrustServer})

	opts.SetOnConnectHandler(func(client pahomqtt.Client) {
		logrus.Infof("MqttMessenger: connected to %s as %s", brokerURL, config.ClientID)
		m.resubscribe()
	})
	opts.SetConnectionLostHandler(func(client pahomqtt.Client, err error) {
		logrus.Warnf("MqttMessenger: connection to %s lost: %s", brokerURL, err)
	})
	if lastWillTopic != "" {
		opts.SetWill(lastWillTopic, lastWillValue, 0, false)
	}

	m.pahoClient = pahomqtt.NewClient(opts)

	retryDelay := time.Second
	for {
		token := m.pahoClient.Connect()
		token.Wait()
		if err := token.Error(); err == nil {
			break
		} else {
			logrus.Errorf("MqttMessenger: connect to %s failed: %s, retrying in %s", brokerURL, err, retryDelay)
		}
		time.Sleep(retryDelay)
		if retryDelay < 2*time.Minute {
			retryDelay += time.Second
		}
	}
	return nil
}

// Disconnect gracefully, clearing locally tracked subscriptions.
func (m *MqttMessenger) Disconnect() {
	if m.pahoClient == nil {
		return
	}
	m.pahoClient.Disconnect(10 * ConnectionTimeoutSec * 1000)
	m.pahoClient = nil
	m.updateMutex.Lock()
	m.subscriptions = nil
	m.updateMutex.Unlock()
}

// Publish a message at QoS 0, per this repo's topic table.
func (m *MqttMessenger) Publish(topic string, retained bool, payload []byte) error {
	if m.pahoClient == nil || !m.pahoClient.IsConnected() {
		return fmt.Errorf("MqttMessenger.Publish: not connected")
	}
	token := m.pahoClient.Publish(topic, 0, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		logrus.Warnf("MqttMessenger.Publish: %s: %s", topic, err)
		return err
	}
	return nil
}

// Subscribe to a topic. Subscriptions are replayed automatically on reconnect.
func (m *MqttMessenger) Subscribe(topic string, onMessage Handler) {
	sub := subscription{topic: topic, handler: onMessage}
	m.updateMutex.Lock()
	m.subscriptions = append(m.subscriptions, sub)
	m.updateMutex.Unlock()

	if m.pahoClient != nil {
		m.pahoClient.Subscribe(topic, 0, pahoHandler(sub))
	}
}

// Unsubscribe unsubscribes topic at the broker. If onMessage is nil
// every locally tracked handler for the topic is removed as well; a
// non-nil onMessage leaves them tracked, so they are subscribed again
// on the next reconnect.
func (m *MqttMessenger) Unsubscribe(topic string, onMessage Handler) {
	m.updateMutex.Lock()
	defer m.updateMutex.Unlock()
	remaining := m.subscriptions[:0]
	for _, sub := range m.subscriptions {
		if sub.topic == topic && onMessage == nil {
			continue
		}
		remaining = append(remaining, sub)
	}
	m.subscriptions = remaining
	if m.pahoClient != nil {
		m.pahoClient.Unsubscribe(topic)
	}
}

func (m *MqttMessenger) resubscribe() {
	m.updateMutex.Lock()
	subs := append([]subscription(nil), m.subscriptions...)
	m.updateMutex.Unlock()

	for _, sub := range subs {
		m.pahoClient.Subscribe(sub.topic, 0, pahoHandler(sub))
	}
}

func pahoHandler(sub subscription) pahomqtt.MessageHandler {
	return func(c pahomqtt.Client, msg pahomqtt.Message) {
		sub.handler(msg.Topic(), msg.Payload())
	}
}
