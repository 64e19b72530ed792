package troll_test

import (
	"testing"

	"github.com/hardenmqtt/harden-mqtt-go/troll"
	"github.com/stretchr/testify/assert"
)

func TestDigestIsStableAndTopicSensitive(t *testing.T) {
	d1 := troll.Digest("topic/a", []byte("payload"))
	d2 := troll.Digest("topic/a", []byte("payload"))
	d3 := troll.Digest("topic/b", []byte("payload"))

	assert.Equal(t, d1, d2)
	assert.NotEqual(t, d1, d3)
}

func TestDigestCacheRememberAndForget(t *testing.T) {
	cache := troll.NewDigestCache()
	digest := troll.Digest("topic/a", []byte("payload"))

	assert.False(t, cache.SeenAndForget(digest))

	cache.Remember(digest)
	assert.True(t, cache.SeenAndForget(digest))
	assert.False(t, cache.SeenAndForget(digest), "a digest is consumed on first sighting")
}
