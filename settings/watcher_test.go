package settings_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hardenmqtt/harden-mqtt-go/messaging"
	"github.com/hardenmqtt/harden-mqtt-go/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcherReloadsOnWrite(t *testing.T) {
	folder := t.TempDir()
	path := filepath.Join(folder, "sensor-1"+settings.ConnectionConfigSuffix)
	require.NoError(t, os.WriteFile(path, []byte("server: original.example.com\n"), 0600))

	changes := make(chan *messaging.Config, 4)
	watcher, err := settings.NewConfigWatcher(folder, "sensor-1", func(cfg *messaging.Config) {
		changes <- cfg
	})
	require.NoError(t, err)
	watcher.Start()
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(path, []byte("server: updated.example.com\n"), 0600))

	select {
	case cfg := <-changes:
		assert.Equal(t, "updated.example.com", cfg.Server)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
