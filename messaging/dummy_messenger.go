package messaging

import (
	"strings"
	"sync"
)

// DummyMessenger is an in-memory Messenger used by tests to simulate
// the shared broker without a real MQTT server. It supports the same
// '+'/'#' wildcard matching paho provides.
type DummyMessenger struct {
	mutex         sync.Mutex
	retained      map[string][]byte
	subscriptions []dummySubscription
}

type dummySubscription struct {
	topic   string
	handler Handler
}

// NewDummyMessenger creates a messenger that delivers published
// messages to matching subscribers synchronously, in-process.
func NewDummyMessenger() *DummyMessenger {
	return &DummyMessenger{
		retained: make(map[string][]byte),
	}
}

// Connect is a no-op for the dummy messenger.
func (m *DummyMessenger) Connect(lastWillTopic string, lastWillValue string) error {
	return nil
}

// Disconnect is a no-op for the dummy messenger.
func (m *DummyMessenger) Disconnect() {}

// LastRetained returns the last retained payload on a topic, for assertions.
func (m *DummyMessenger) LastRetained(topic string) ([]byte, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	payload, ok := m.retained[topic]
	return payload, ok
}

// Publish delivers the message synchronously to every matching subscriber.
func (m *DummyMessenger) Publish(topic string, retained bool, payload []byte) error {
	m.mutex.Lock()
	if retained {
		m.retained[topic] = payload
	}
	subs := append([]dummySubscription(nil), m.subscriptions...)
	m.mutex.Unlock()

	for _, sub := range subs {
		if topicMatches(topic, sub.topic) {
			sub.handler(topic, payload)
		}
	}
	return nil
}

// Subscribe registers a handler for a topic filter.
func (m *DummyMessenger) Subscribe(topic string, onMessage Handler) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.subscriptions = append(m.subscriptions, dummySubscription{topic: topic, handler: onMessage})
}

// Unsubscribe removes every handler registered for topic when
// onMessage is nil. A non-nil onMessage removes nothing.
func (m *DummyMessenger) Unsubscribe(topic string, onMessage Handler) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	remaining := m.subscriptions[:0]
	for _, sub := range m.subscriptions {
		if sub.topic == topic && onMessage == nil {
			continue
		}
		remaining = append(remaining, sub)
	}
	m.subscriptions = remaining
}

// topicMatches tests a published topic against a subscription filter
// that may contain the MQTT wildcards '+' (single level) and '#' (rest
// of the topic).
func topicMatches(topic string, filter string) bool {
	topicSegments := strings.Split(topic, "/")
	filterSegments := strings.Split(filter, "/")

	for i, filterSegment := range filterSegments {
		if filterSegment == "#" {
			return true
		}
		if i >= len(topicSegments) {
			return false
		}
		if filterSegment == "+" {
			continue
		}
		if filterSegment != topicSegments[i] {
			return false
		}
	}
	return len(filterSegments) == len(topicSegments)
}
