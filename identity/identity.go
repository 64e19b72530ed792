// Package identity manages a device's own Ed25519 keypair: creating
// it, persisting it to disk with owner-only permissions, and loading
// it back. Every signature and key agreement elsewhere in this
// repository is taken against the keypair this package produces.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"time"

	"github.com/hardenmqtt/harden-mqtt-go/errs"
)

// FileSuffix is appended to a device ID to name its identity file.
const FileSuffix = "-identity.json"

// identityFile is the on-disk JSON shape. The private key is stored
// raw (not PEM) since Ed25519 has no PEM convention in this corpus;
// the file's 0400 permission is the only protection it gets, matching
// how the teacher protects its own identity file.
type identityFile struct {
	DeviceID   string    `json:"deviceId"`
	DeviceType string    `json:"deviceType"`
	PublicKey  string    `json:"publicKey"`  // base64url, unpadded
	PrivateKey string    `json:"privateKey"` // base64url, unpadded
	Created    time.Time `json:"created"`
}

// Identity holds a device's own long-lived Ed25519 keypair plus the
// device metadata that the pairing record's identity fields carry.
type Identity struct {
	DeviceID   string
	DeviceType string
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
	Created    time.Time
}

// EncodePublicKey renders a public key in the Base64Url, unpadded
// form used throughout the wire formats: pairing records, secured
// topic addresses, and canonical signatures.
func EncodePublicKey(key ed25519.PublicKey) string {
	return base64.RawURLEncoding.EncodeToString(key)
}

// DecodePublicKey is the inverse of EncodePublicKey.
func DecodePublicKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errs.Warnf("identity.DecodePublicKey: invalid base64url public key: %s", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errs.Warnf("identity.DecodePublicKey: public key is %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// Create generates a fresh Ed25519 keypair for a device. Use Save to
// persist it and Load to recover it across restarts.
func Create(deviceID string, deviceType string) (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errs.Warnf("identity.Create: key generation failed: %s", err)
	}
	return &Identity{
		DeviceID:   deviceID,
		DeviceType: deviceType,
		PublicKey:  pub,
		PrivateKey: priv,
		Created:    time.Now().UTC(),
	}, nil
}

// Save writes the identity to jsonFilename with 0400 permissions,
// removing any pre-existing file first since an existing identity
// file is read-only and WriteFile alone cannot overwrite it.
func Save(jsonFilename string, ident *Identity) error {
	file := identityFile{
		DeviceID:   ident.DeviceID,
		DeviceType: ident.DeviceType,
		PublicKey:  EncodePublicKey(ident.PublicKey),
		PrivateKey: base64.RawURLEncoding.EncodeToString(ident.PrivateKey),
		Created:    ident.Created,
	}
	encoded, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return errs.Warnf("identity.Save: unable to encode identity: %s", err)
	}
	os.Remove(jsonFilename)
	if err := os.WriteFile(jsonFilename, encoded, 0400); err != nil {
		return errs.Warnf("identity.Save: unable to save identity at %s: %s", jsonFilename, err)
	}
	return nil
}

// Load reads and validates a previously saved identity.
func Load(jsonFilename string) (*Identity, error) {
	raw, err := os.ReadFile(jsonFilename)
	if err != nil {
		return nil, err
	}
	var file identityFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, errs.Warnf("identity.Load: malformed identity file %s: %s", jsonFilename, err)
	}
	pub, err := DecodePublicKey(file.PublicKey)
	if err != nil {
		return nil, errs.Warnf("identity.Load: %s: %s", jsonFilename, err)
	}
	privRaw, err := base64.RawURLEncoding.DecodeString(file.PrivateKey)
	if err != nil || len(privRaw) != ed25519.PrivateKeySize {
		return nil, errs.Warnf("identity.Load: %s: invalid private key encoding", jsonFilename)
	}
	priv := ed25519.PrivateKey(privRaw)
	if !priv.Public().(ed25519.PublicKey).Equal(pub) {
		return nil, errs.Warnf("identity.Load: %s: public and private key do not match", jsonFilename)
	}
	return &Identity{
		DeviceID:   file.DeviceID,
		DeviceType: file.DeviceType,
		PublicKey:  pub,
		PrivateKey: priv,
		Created:    file.Created,
	}, nil
}

// LoadOrCreate loads an existing identity from jsonFilename, or
// creates and saves a new one if the file does not yet exist.
func LoadOrCreate(jsonFilename string, deviceID string, deviceType string) (*Identity, error) {
	ident, err := Load(jsonFilename)
	if err == nil {
		return ident, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	ident, err = Create(deviceID, deviceType)
	if err != nil {
		return nil, err
	}
	if err := Save(jsonFilename, ident); err != nil {
		return nil, err
	}
	return ident, nil
}

// Sign signs message with the identity's private key.
func (ident *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(ident.PrivateKey, message)
}

// SignBase64 signs message and returns the signature Base64Url-encoded,
// the form every wire payload in this repository carries.
func (ident *Identity) SignBase64(message []byte) string {
	return base64.RawURLEncoding.EncodeToString(ident.Sign(message))
}

// Verify checks a Base64Url-encoded signature of message against pub.
func Verify(pub ed25519.PublicKey, message []byte, signatureBase64 string) bool {
	sig, err := base64.RawURLEncoding.DecodeString(signatureBase64)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}
