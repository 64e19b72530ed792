// Package settings loads and hot-reloads a device's on-disk
// configuration: the MQTT connection parameters from a YAML file, and
// the peer binding a completed pairing produces as JSON. Device
// identity itself is the identity package's concern.
package settings

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hardenmqtt/harden-mqtt-go/errs"
	"github.com/hardenmqtt/harden-mqtt-go/messaging"
	"gopkg.in/yaml.v2"
)

// ConnectionConfigSuffix names the per-device YAML connection file:
// <deviceID>.yaml.
const ConnectionConfigSuffix = ".yaml"

// LoadConnectionConfig reads <folder>/<deviceID>.yaml into a
// messaging.Config, substituting the {hostname} and {device}
// placeholders a config file may reference.
func LoadConnectionConfig(folder string, deviceID string) (*messaging.Config, error) {
	path := filepath.Join(folder, deviceID+ConnectionConfigSuffix)
	var cfg messaging.Config
	if err := loadYAMLWithSubstitution(path, deviceID, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadYAMLWithSubstitution(path string, deviceID string, target interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errs.Warnf("settings: unable to open connection config %s: %s", path, err)
	}

	hostname, _ := os.Hostname()
	substitutions := map[string]string{
		"hostname": hostname,
		"device":   deviceID,
	}
	text := string(raw)
	for key, value := range substitutions {
		text = strings.ReplaceAll(text, "{"+key+"}", value)
	}

	if err := yaml.Unmarshal([]byte(text), target); err != nil {
		return errs.Warnf("settings: malformed connection config %s: %s", path, err)
	}
	return nil
}
