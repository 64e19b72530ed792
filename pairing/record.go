package pairing

import (
	"bytes"
	"encoding/json"

	"github.com/hardenmqtt/harden-mqtt-go/canon"
	"github.com/hardenmqtt/harden-mqtt-go/errs"
)

// maxRecordBytes guards against resource abuse: a PairingRecord on the
// wire never needs to exceed this many bytes.
const maxRecordBytes = 1000

// derivedPredicateKeys are computed, never stored; a peer that
// serializes them alongside the record has them stripped rather than
// rejected as unknown, since they describe no state of their own.
var derivedPredicateKeys = []string{"Completed", "MasterCompleted", "SlaveCompleted"}

type wireRecord struct {
	Nonce           string `json:"Nonce,omitempty"`
	MasterPublicKey string `json:"MasterPublicKey,omitempty"`
	MasterId        string `json:"MasterId,omitempty"`
	MasterType      string `json:"MasterType,omitempty"`
	MasterSignature string `json:"MasterSignature,omitempty"`
	SlavePublicKey  string `json:"SlavePublicKey,omitempty"`
	SlaveId         string `json:"SlaveId,omitempty"`
	SlaveType       string `json:"SlaveType,omitempty"`
	SlaveSignature  string `json:"SlaveSignature,omitempty"`
}

func encodeRecord(record canon.PairingRecord) ([]byte, error) {
	wire := wireRecord{
		Nonce:           record.Nonce,
		MasterPublicKey: record.MasterPublicKey,
		MasterId:        record.MasterId,
		MasterType:      record.MasterType,
		MasterSignature: record.MasterSignature,
		SlavePublicKey:  record.SlavePublicKey,
		SlaveId:         record.SlaveId,
		SlaveType:       record.SlaveType,
		SlaveSignature:  record.SlaveSignature,
	}
	encoded, err := json.Marshal(wire)
	if err != nil {
		return nil, errs.Warnf("pairing: unable to encode record: %s", err)
	}
	return encoded, nil
}

// parseRecord decodes an inbound PairingRecord, enforcing the wire
// guards: size ≤ maxRecordBytes, unknown keys rejected (the three
// derived predicates are stripped first, since peers may legitimately
// echo them back). Any violation is a malformed-inbound error, which
// callers must treat as a silent drop.
func parseRecord(data []byte) (canon.PairingRecord, error) {
	if len(data) > maxRecordBytes {
		return canon.PairingRecord{}, errs.Warnf("pairing: record of %d bytes exceeds the %d byte guard", len(data), maxRecordBytes)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return canon.PairingRecord{}, errs.Warnf("pairing: malformed JSON: %s", err)
	}
	for _, key := range derivedPredicateKeys {
		delete(raw, key)
	}
	stripped, err := json.Marshal(raw)
	if err != nil {
		return canon.PairingRecord{}, errs.Warnf("pairing: unable to re-encode record: %s", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(stripped))
	decoder.DisallowUnknownFields()
	var wire wireRecord
	if err := decoder.Decode(&wire); err != nil {
		return canon.PairingRecord{}, errs.Warnf("pairing: unknown field or type mismatch: %s", err)
	}
	return canon.PairingRecord{
		Nonce:           wire.Nonce,
		MasterPublicKey: wire.MasterPublicKey,
		MasterId:        wire.MasterId,
		MasterType:      wire.MasterType,
		MasterSignature: wire.MasterSignature,
		SlavePublicKey:  wire.SlavePublicKey,
		SlaveId:         wire.SlaveId,
		SlaveType:       wire.SlaveType,
		SlaveSignature:  wire.SlaveSignature,
	}, nil
}
