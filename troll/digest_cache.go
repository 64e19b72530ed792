package troll

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// digestTTL is how long a published digest is remembered before it
// expires, per the spec's feedback-suppression window.
const digestTTL = 60 * time.Second

const digestCleanupInterval = 2 * time.Minute

// DigestCache remembers the digests of messages this mutator has
// itself published, so the receive path can recognize and discard its
// own republications instead of mutating them again.
type DigestCache struct {
	cache *gocache.Cache
}

// NewDigestCache creates an empty cache with the spec's fixed
// expiration and janitor interval.
func NewDigestCache() *DigestCache {
	return &DigestCache{cache: gocache.New(digestTTL, digestCleanupInterval)}
}

// Digest computes the cache key for a topic/payload pair: the
// hex-encoded SHA-256 of topic‖0x00‖payload.
func Digest(topic string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(topic))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Remember inserts a digest the mutator itself just published.
func (c *DigestCache) Remember(digest string) {
	c.cache.SetDefault(digest, struct{}{})
}

// SeenAndForget reports whether digest was previously remembered, and
// if so removes it — a digest is a one-shot credential covering
// exactly the republication it was minted for.
func (c *DigestCache) SeenAndForget(digest string) bool {
	if _, found := c.cache.Get(digest); !found {
		return false
	}
	c.cache.Delete(digest)
	return true
}
