package telemetry_test

import (
	"crypto/rand"
	"testing"

	"github.com/hardenmqtt/harden-mqtt-go/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrips(t *testing.T) {
	key := randomKey(t)
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	frame, err := telemetry.Encrypt(key, plaintext)
	require.NoError(t, err)
	assert.Greater(t, len(frame), 32)

	decrypted, err := telemetry.Decrypt(key, frame)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptProducesDistinctFramesForIdenticalPlaintext(t *testing.T) {
	key := randomKey(t)
	plaintext := []byte("identical")

	frame1, err := telemetry.Encrypt(key, plaintext)
	require.NoError(t, err)
	frame2, err := telemetry.Encrypt(key, plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, frame1, frame2)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	key := randomKey(t)
	other := randomKey(t)
	frame, err := telemetry.Encrypt(key, []byte("secret payload"))
	require.NoError(t, err)

	_, err = telemetry.Decrypt(other, frame)
	assert.Error(t, err)
}

func TestDecryptRejectsShortFrame(t *testing.T) {
	_, err := telemetry.Decrypt(randomKey(t), make([]byte, 32))
	assert.Error(t, err)
}

func TestDecryptRejectsNonBlockAlignedCiphertext(t *testing.T) {
	key := randomKey(t)
	frame, err := telemetry.Encrypt(key, []byte("aligned plaintext here"))
	require.NoError(t, err)

	_, err = telemetry.Decrypt(key, frame[:len(frame)-1])
	assert.Error(t, err)
}
