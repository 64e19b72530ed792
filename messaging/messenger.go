// Package messaging defines the message-bus contract this repository
// depends on and two implementations of it: an MQTT-backed messenger
// for production use and an in-memory dummy messenger for tests.
package messaging

// Config holds the connection parameters for a Messenger.
type Config struct {
	ClientID    string `yaml:"clientid,omitempty"`    // optional connect ID, must be unique. Default is generated.
	Server      string `yaml:"server"`                // broker hostname or IP address, required
	Port        uint16 `yaml:"port,omitempty"`         // 0 defaults to 8883 (TLS) or 1883
	TLS         bool   `yaml:"tls,omitempty"`          // connect using TLS
	TrustServer bool   `yaml:"trustserver,omitempty"`  // skip server certificate verification
	UserName    string `yaml:"username,omitempty"`     // broker login name
	Password    string `yaml:"password,omitempty"`     // broker login credentials
	PubQos      byte   `yaml:"pubqos,omitempty"`       // publish QoS 0-2. This repo always uses 0.
	SubQos      byte   `yaml:"subqos,omitempty"`       // subscribe QoS 0-2. This repo always uses 0.
}

// Handler is invoked for each message received on a subscribed topic.
type Handler func(topic string, payload []byte)

// Messenger is the external MQTT collaborator this repository depends
// on. Connect/subscribe/publish/QoS are the only operations required;
// broker selection, ACLs and TLS negotiation are the caller's concern.
type Messenger interface {
	// Connect to the broker. If lastWillTopic is non-empty it is
	// published with lastWillValue when the connection is lost
	// unexpectedly.
	Connect(lastWillTopic string, lastWillValue string) error

	// Disconnect gracefully, without triggering the last will.
	Disconnect()

	// Publish a message. retained asks the broker to keep the last
	// value for late subscribers, mirroring the Retain column of the
	// HardenMqtt topic table.
	Publish(topic string, retained bool, payload []byte) error

	// Subscribe to a topic, which may contain the MQTT wildcards '+'
	// and '#'. Multiple subscriptions to the same topic are supported.
	Subscribe(topic string, onMessage Handler)

	// Unsubscribe a previously subscribed topic. If onMessage is nil
	// all handlers for the topic are removed. A non-nil onMessage does
	// not select a single handler: both implementations in this package
	// leave their registered handlers for the topic in place.
	Unsubscribe(topic string, onMessage Handler)
}
