package messaging

import "math/rand"

// LossyMessenger wraps a Messenger and drops a fraction of published
// deliveries, for exercising the pairing timer's tolerance of message
// loss (spec scenario S6). Subscriptions pass through unchanged;
// dropping happens only to the publish->deliver path.
type LossyMessenger struct {
	Messenger
	DropFraction float64 // 0.5 drops roughly half of all publishes
	rng          *rand.Rand
}

// NewLossyMessenger wraps an existing messenger, dropping dropFraction
// of publishes before they reach it.
func NewLossyMessenger(wrapped Messenger, dropFraction float64, seed int64) *LossyMessenger {
	return &LossyMessenger{
		Messenger:    wrapped,
		DropFraction: dropFraction,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// Publish drops the message with probability DropFraction instead of
// forwarding it to the wrapped messenger.
func (m *LossyMessenger) Publish(topic string, retained bool, payload []byte) error {
	if m.rng.Float64() < m.DropFraction {
		return nil
	}
	return m.Messenger.Publish(topic, retained, payload)
}
