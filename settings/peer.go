package settings

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hardenmqtt/harden-mqtt-go/errs"
	"github.com/hardenmqtt/harden-mqtt-go/identity"
	"github.com/hardenmqtt/harden-mqtt-go/pairing"
)

// PeerBindingSuffix names the per-device JSON peer-binding file:
// <deviceID>-peer.json.
const PeerBindingSuffix = "-peer.json"

type peerBindingFile struct {
	PublicKey string `json:"publicKey"`
	DeviceID  string `json:"deviceId"`
}

// PeerBindingPath builds the path pairing results for deviceID are
// persisted under.
func PeerBindingPath(folder string, deviceID string) string {
	return filepath.Join(folder, deviceID+PeerBindingSuffix)
}

// SavePeerBinding persists the outcome of a completed pairing,
// overwriting any previous binding the same way identity.Save
// overwrites a previous keypair: remove, then write fresh.
func SavePeerBinding(folder string, deviceID string, binding pairing.PeerBinding) error {
	path := PeerBindingPath(folder, deviceID)
	file := peerBindingFile{
		PublicKey: identity.EncodePublicKey(binding.PeerPublicKey),
		DeviceID:  binding.PeerID,
	}
	encoded, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return errs.Warnf("settings.SavePeerBinding: unable to encode binding: %s", err)
	}
	os.Remove(path)
	if err := os.WriteFile(path, encoded, 0600); err != nil {
		return errs.Warnf("settings.SavePeerBinding: unable to save binding at %s: %s", path, err)
	}
	return nil
}

// LoadPeerBinding reads a previously saved peer binding, if any.
func LoadPeerBinding(folder string, deviceID string) (*pairing.PeerBinding, error) {
	path := PeerBindingPath(folder, deviceID)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file peerBindingFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, errs.Warnf("settings.LoadPeerBinding: malformed binding file %s: %s", path, err)
	}
	pub, err := identity.DecodePublicKey(file.PublicKey)
	if err != nil {
		return nil, errs.Warnf("settings.LoadPeerBinding: %s: %s", path, err)
	}
	return &pairing.PeerBinding{PeerPublicKey: pub, PeerID: file.DeviceID}, nil
}
