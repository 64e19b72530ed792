package canon

import "strings"

// PairingRecord is the mutable record both parties in a pairing
// exchange publish and republish to HardenMqtt/Pairing. Completion is
// a derived predicate over each side's public key, ID, type and
// signature, never a field stored on the wire.
type PairingRecord struct {
	Nonce string

	MasterPublicKey string
	MasterId        string
	MasterType      string
	MasterSignature string

	SlavePublicKey string
	SlaveId        string
	SlaveType      string
	SlaveSignature string
}

// MasterCompleted reports whether the master's half of the record is populated.
func (r PairingRecord) MasterCompleted() bool {
	return r.MasterPublicKey != "" && r.MasterId != "" && r.MasterType != "" && r.MasterSignature != ""
}

// SlaveCompleted reports whether the slave's half of the record is populated.
func (r PairingRecord) SlaveCompleted() bool {
	return r.SlavePublicKey != "" && r.SlaveId != "" && r.SlaveType != "" && r.SlaveSignature != ""
}

// Completed reports whether both halves of the record are populated.
func (r PairingRecord) Completed() bool {
	return r.MasterCompleted() && r.SlaveCompleted()
}

// MasterCanonicalBytes returns the exact bytes the master signs: the
// seven identity fields joined by "|", with the two signature fields
// excluded regardless of whether they are already populated.
func (r PairingRecord) MasterCanonicalBytes() []byte {
	return canonicalBytes(r.Nonce, r.MasterPublicKey, r.MasterId, r.MasterType, r.SlavePublicKey, r.SlaveId, r.SlaveType)
}

// SlaveCanonicalBytes returns the same canonical bytes as
// MasterCanonicalBytes. The slave signs over an identical byte
// sequence so a verifier needs only one canonicalization function for
// both signatures.
func (r PairingRecord) SlaveCanonicalBytes() []byte {
	return r.MasterCanonicalBytes()
}

func canonicalBytes(parts ...string) []byte {
	return []byte(strings.Join(parts, "|"))
}
