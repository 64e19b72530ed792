package troll

import (
	"math/rand"
	"sync"

	"github.com/hardenmqtt/harden-mqtt-go/messaging"
	"github.com/hardenmqtt/harden-mqtt-go/topics"
	"github.com/sirupsen/logrus"
)

// Config configures a Mutator.
type Config struct {
	Messenger messaging.Messenger

	// Trolliness scales how often a received message is perturbed at
	// all: a message is mutated with probability 1/Trolliness. Values
	// below 1 are treated as 1 (always mutate).
	Trolliness float64

	// Rand supplies randomness for both the mutate-or-not decision and
	// every perturbation. Tests inject a seeded source for determinism;
	// cmd/troll seeds its source from the current time once at
	// startup, since these are fuzzing decisions, not secrets.
	Rand *rand.Rand
}

// Mutator subscribes to every topic on the broker and, with
// probability 1/Trolliness, republishes a single perturbed variant of
// each message it has not itself emitted.
type Mutator struct {
	cfg   Config
	cache *DigestCache

	mu   sync.Mutex
	rand *rand.Rand
}

// New creates a Mutator. Call Start to begin subscribing.
func New(cfg Config) *Mutator {
	if cfg.Trolliness < 1 {
		cfg.Trolliness = 1
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}
	return &Mutator{cfg: cfg, cache: NewDigestCache(), rand: cfg.Rand}
}

// Start subscribes to the broker-wide wildcard topic. Call Stop to
// unsubscribe.
func (m *Mutator) Start() {
	m.cfg.Messenger.Subscribe("#", m.handleMessage)
}

// Stop unsubscribes the mutator's wildcard handler.
func (m *Mutator) Stop() {
	m.cfg.Messenger.Unsubscribe("#", nil)
}

func (m *Mutator) handleMessage(topic string, payload []byte) {
	if topic == topics.Events {
		return // reserved topic: keep pedagogical output legible
	}

	digest := Digest(topic, payload)
	if m.cache.SeenAndForget(digest) {
		return // this is our own republication echoing back
	}

	m.mu.Lock()
	shouldMutate := m.rand.Float64() < 1.0/m.cfg.Trolliness
	var mutated []byte
	var retain bool
	if shouldMutate {
		kind := Classify(payload)
		mutated, retain = Perturb(m.rand, kind, payload)
	}
	m.mu.Unlock()

	if !shouldMutate {
		return
	}

	outDigest := Digest(topic, mutated)
	m.cache.Remember(outDigest)
	if err := m.cfg.Messenger.Publish(topic, retain, mutated); err != nil {
		logrus.Warnf("troll: republish to %s failed: %s", topic, err)
	}
}
