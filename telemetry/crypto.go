// Package telemetry implements the secure publish/verify pipeline:
// canonicalizing a reading, signing it, optionally encrypting it under
// an ECDH-derived key, and the mirror-image verify/decrypt path with
// the structural guards the receive side must enforce.
package telemetry

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/sha512"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/sha3"

	"github.com/hardenmqtt/harden-mqtt-go/errs"
)

// edPrivateToX25519 converts an Ed25519 private key's seed into the
// clamped X25519 scalar, per RFC 8032 §5.1.5.
func edPrivateToX25519(priv ed25519.PrivateKey) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, errs.Warnf("telemetry: invalid ed25519 private key length %d", len(priv))
	}
	seed := priv.Seed()
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	scalar := make([]byte, 32)
	copy(scalar, h[:32])
	return scalar, nil
}

// edPublicToX25519 converts an Ed25519 public key (an Edwards point)
// into its Montgomery u-coordinate, the X25519 public key form.
func edPublicToX25519(pub ed25519.PublicKey) ([]byte, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, errs.Warnf("telemetry: invalid ed25519 public key length %d", len(pub))
	}
	point, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, errs.Warnf("telemetry: malformed ed25519 public key: %s", err)
	}
	return point.BytesMontgomery(), nil
}

// DeriveSharedKey computes the AES-256 key both sides of a pairing
// agree on: X25519 ECDH between the two parties' Ed25519 identities
// (converted to Montgomery form), reduced through SHA3-256. Both
// endpoints MUST use this same KDF or they silently fail to
// interoperate; see the design notes on the KDF open question.
func DeriveSharedKey(localPriv ed25519.PrivateKey, peerPub ed25519.PublicKey) ([]byte, error) {
	scalar, err := edPrivateToX25519(localPriv)
	if err != nil {
		return nil, err
	}
	peerX, err := edPublicToX25519(peerPub)
	if err != nil {
		return nil, err
	}

	curve := ecdh.X25519()
	xPriv, err := curve.NewPrivateKey(scalar)
	if err != nil {
		return nil, errs.Warnf("telemetry: invalid derived x25519 private key: %s", err)
	}
	xPub, err := curve.NewPublicKey(peerX)
	if err != nil {
		return nil, errs.Warnf("telemetry: invalid peer x25519 public key: %s", err)
	}
	shared, err := xPriv.ECDH(xPub)
	if err != nil {
		return nil, errs.Warnf("telemetry: ECDH key agreement failed: %s", err)
	}
	key := sha3.Sum256(shared)
	return key[:], nil
}
