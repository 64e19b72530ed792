package settings

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/hardenmqtt/harden-mqtt-go/errs"
	"github.com/hardenmqtt/harden-mqtt-go/messaging"
	"github.com/sirupsen/logrus"
)

// ConfigWatcher watches a device's connection config file and invokes
// a callback with the freshly reloaded config whenever the file is
// written. Reload errors are logged and skipped; the watcher keeps
// running on the last good config until the file becomes valid again.
type ConfigWatcher struct {
	folder   string
	deviceID string
	watcher  *fsnotify.Watcher
	onChange func(*messaging.Config)
	running  bool
}

// NewConfigWatcher creates a watcher for <folder>/<deviceID>.yaml. The
// file must already exist; call Start to begin watching.
func NewConfigWatcher(folder string, deviceID string, onChange func(*messaging.Config)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.Warnf("settings.NewConfigWatcher: unable to create file watcher: %s", err)
	}
	path := filepath.Join(folder, deviceID+ConnectionConfigSuffix)
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, errs.Warnf("settings.NewConfigWatcher: unable to watch %s: %s", path, err)
	}
	return &ConfigWatcher{
		folder:   folder,
		deviceID: deviceID,
		watcher:  watcher,
		onChange: onChange,
	}, nil
}

// Start begins watching in a dedicated goroutine.
func (cw *ConfigWatcher) Start() {
	cw.running = true
	go cw.watchLoop()
}

// Stop ends the watch loop and releases the underlying file handle.
func (cw *ConfigWatcher) Stop() {
	cw.running = false
	cw.watcher.Close()
}

func (cw *ConfigWatcher) watchLoop() {
	for cw.running {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				cw.reload()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logrus.Warnf("settings.ConfigWatcher: watch error: %s", err)
		}
	}
}

func (cw *ConfigWatcher) reload() {
	cfg, err := LoadConnectionConfig(cw.folder, cw.deviceID)
	if err != nil {
		logrus.Warnf("settings.ConfigWatcher: reload of %s failed, keeping previous config: %s", cw.deviceID, err)
		return
	}
	cw.onChange(cfg)
}
