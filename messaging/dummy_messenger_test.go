package messaging_test

import (
	"testing"

	"github.com/hardenmqtt/harden-mqtt-go/messaging"
	"github.com/stretchr/testify/assert"
)

func TestDummyMessengerPublishSubscribe(t *testing.T) {
	m := messaging.NewDummyMessenger()
	received := make(chan string, 1)
	m.Subscribe("HardenMqtt/Pairing", func(topic string, payload []byte) {
		received <- string(payload)
	})
	err := m.Publish("HardenMqtt/Pairing", false, []byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, "hello", <-received)
}

func TestDummyMessengerWildcards(t *testing.T) {
	m := messaging.NewDummyMessenger()
	var seen []string
	m.Subscribe("HardenMqtt/Secured/+/+", func(topic string, payload []byte) {
		seen = append(seen, topic)
	})
	m.Publish("HardenMqtt/Secured/Public/abc", false, []byte("x"))
	m.Publish("HardenMqtt/Secured/Confidential/abc", false, []byte("x"))
	m.Publish("HardenMqtt/Secured/Public/abc/extra", false, []byte("x"))
	assert.ElementsMatch(t, []string{"HardenMqtt/Secured/Public/abc", "HardenMqtt/Secured/Confidential/abc"}, seen)
}

func TestDummyMessengerHashWildcard(t *testing.T) {
	m := messaging.NewDummyMessenger()
	var count int
	m.Subscribe("#", func(topic string, payload []byte) {
		count++
	})
	m.Publish("HardenMqtt/Pairing", false, []byte("x"))
	m.Publish("HardenMqtt/Unsecured/Structured/sensor1", false, []byte("x"))
	assert.Equal(t, 2, count)
}

func TestDummyMessengerRetained(t *testing.T) {
	m := messaging.NewDummyMessenger()
	m.Publish("HardenMqtt/Unsecured/Structured/sensor1", true, []byte("reading"))
	payload, ok := m.LastRetained("HardenMqtt/Unsecured/Structured/sensor1")
	assert.True(t, ok)
	assert.Equal(t, "reading", string(payload))
}

func TestDummyMessengerUnsubscribe(t *testing.T) {
	m := messaging.NewDummyMessenger()
	var count int
	handler := func(topic string, payload []byte) { count++ }
	m.Subscribe("HardenMqtt/Pairing", handler)
	m.Unsubscribe("HardenMqtt/Pairing", nil)
	m.Publish("HardenMqtt/Pairing", false, []byte("x"))
	assert.Equal(t, 0, count)
}
