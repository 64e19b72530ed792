package telemetry

import (
	"crypto/ed25519"
	"encoding/json"
	"time"

	"github.com/hardenmqtt/harden-mqtt-go/canon"
	"github.com/hardenmqtt/harden-mqtt-go/errs"
	"github.com/hardenmqtt/harden-mqtt-go/identity"
	"github.com/hardenmqtt/harden-mqtt-go/messaging"
	"github.com/hardenmqtt/harden-mqtt-go/sensordata"
	"github.com/hardenmqtt/harden-mqtt-go/topics"
)

// PeerBinding is the result of a completed pairing: the peer's public
// key and device ID, held by value, never by a live reference to the
// peer process.
type PeerBinding struct {
	PeerPublicKey ed25519.PublicKey
	PeerID        string
}

// Telemetry drives the five-representation publish pipeline and the
// matching verify/decrypt path for one device's own identity.
type Telemetry struct {
	Messenger messaging.Messenger
	Identity  *identity.Identity
	Peer      *PeerBinding // nil until pairing completes
}

// New creates a Telemetry pipeline bound to a device's own identity.
func New(msgr messaging.Messenger, ident *identity.Identity) *Telemetry {
	return &Telemetry{Messenger: msgr, Identity: ident}
}

// SetPeer records a completed pairing's binding, enabling the
// Secured/Confidential publish and verify paths.
func (t *Telemetry) SetPeer(peer *PeerBinding) {
	t.Peer = peer
}

// PublishUnstructured publishes one retained message per populated
// scalar field, on HardenMqtt/Unsecured/Unstructured/<DeviceID>/<Field>.
func (t *Telemetry) PublishUnstructured(reading sensordata.SensorReading) error {
	for field, value := range reading.Unstructured() {
		topic := topics.Unstructured(t.Identity.DeviceID, field)
		if err := t.Messenger.Publish(topic, true, []byte(value)); err != nil {
			return err
		}
	}
	return nil
}

// PublishStructured publishes the JSON-encoded reading, retained, on
// HardenMqtt/Unsecured/Structured/<DeviceID>.
func (t *Telemetry) PublishStructured(reading sensordata.SensorReading) error {
	encoded, err := json.Marshal(reading)
	if err != nil {
		return errs.Warnf("telemetry.PublishStructured: unable to encode reading: %s", err)
	}
	return t.Messenger.Publish(topics.Structured(t.Identity.DeviceID), true, encoded)
}

// PublishInteroperable publishes the unsigned interoperable XML form,
// retained, on HardenMqtt/Unsecured/Interoperable/<DeviceID>.
func (t *Telemetry) PublishInteroperable(reading sensordata.SensorReading) error {
	payload, err := canon.BuildPayload(t.Identity.DeviceID, reading.Fields(t.Identity.DeviceID))
	if err != nil {
		return err
	}
	return t.Messenger.Publish(topics.Interoperable(t.Identity.DeviceID), true, payload)
}

// PublishSecuredPublic signs the interoperable XML and publishes it,
// retained, on HardenMqtt/Secured/Public/<Base64UrlPublicKey>.
func (t *Telemetry) PublishSecuredPublic(reading sensordata.SensorReading) error {
	payload, err := t.buildSignedPayload(reading)
	if err != nil {
		return err
	}
	topic := topics.SecuredPublic(identity.EncodePublicKey(t.Identity.PublicKey))
	return t.Messenger.Publish(topic, true, payload)
}

// PublishSecuredConfidential signs and encrypts the interoperable XML
// under the ECDH-derived key shared with the paired peer, and
// publishes the EncryptedFrame, retained, on
// HardenMqtt/Secured/Confidential/<Base64UrlPublicKey>. It fails if no
// peer is paired yet.
func (t *Telemetry) PublishSecuredConfidential(reading sensordata.SensorReading) error {
	if t.Peer == nil {
		return errs.Warnf("telemetry.PublishSecuredConfidential: no paired peer to encrypt for")
	}
	signed, err := t.buildSignedPayload(reading)
	if err != nil {
		return err
	}
	key, err := DeriveSharedKey(t.Identity.PrivateKey, t.Peer.PeerPublicKey)
	if err != nil {
		return err
	}
	frame, err := Encrypt(key, signed)
	if err != nil {
		return err
	}
	topic := topics.SecuredConfidential(identity.EncodePublicKey(t.Identity.PublicKey))
	return t.Messenger.Publish(topic, true, frame)
}

// PublishAll runs the full five-representation pipeline for a
// reading, skipping Secured/Confidential when no peer is paired yet.
func (t *Telemetry) PublishAll(reading sensordata.SensorReading) error {
	if err := t.PublishUnstructured(reading); err != nil {
		return err
	}
	if err := t.PublishStructured(reading); err != nil {
		return err
	}
	if err := t.PublishInteroperable(reading); err != nil {
		return err
	}
	if err := t.PublishSecuredPublic(reading); err != nil {
		return err
	}
	if t.Peer != nil {
		if err := t.PublishSecuredConfidential(reading); err != nil {
			return err
		}
	}
	return nil
}

func (t *Telemetry) buildSignedPayload(reading sensordata.SensorReading) ([]byte, error) {
	fields := reading.Fields(t.Identity.DeviceID)
	return canon.BuildSignedPayload(t.Identity.DeviceID, fields, time.Now().UTC(), func(signable []byte) (string, error) {
		return t.Identity.SignBase64(signable), nil
	})
}

// VerifySecuredPublic parses and verifies a Secured/Public payload
// against the declared peer public key, returning the stripped field
// list. Any structural or cryptographic failure is a silent-drop
// error: callers must not surface it beyond a log line.
func (t *Telemetry) VerifySecuredPublic(payload []byte, peerPub ed25519.PublicKey) (string, []sensordata.Field, error) {
	return canon.VerifySignedPayload(payload, func(signable []byte, signature string) bool {
		return identity.Verify(peerPub, signable, signature)
	})
}

// VerifySecuredConfidential decrypts a Secured/Confidential
// EncryptedFrame under the ECDH-derived key shared with peerPub, then
// runs the same verify path as VerifySecuredPublic.
func (t *Telemetry) VerifySecuredConfidential(frame []byte, peerPub ed25519.PublicKey) (string, []sensordata.Field, error) {
	key, err := DeriveSharedKey(t.Identity.PrivateKey, peerPub)
	if err != nil {
		return "", nil, err
	}
	plaintext, err := Decrypt(key, frame)
	if err != nil {
		return "", nil, err
	}
	return t.VerifySecuredPublic(plaintext, peerPub)
}
