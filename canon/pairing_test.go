package canon_test

import (
	"testing"

	"github.com/hardenmqtt/harden-mqtt-go/canon"
	"github.com/stretchr/testify/assert"
)

func TestPairingRecordCanonicalBytes(t *testing.T) {
	r := canon.PairingRecord{
		Nonce:           "n1",
		MasterPublicKey: "mpk",
		MasterId:        "master1",
		MasterType:      "display",
		MasterSignature: "should-not-appear",
		SlavePublicKey:  "spk",
		SlaveId:         "sensor1",
		SlaveType:       "sensor",
		SlaveSignature:  "should-not-appear-either",
	}
	assert.Equal(t, "n1|mpk|master1|display|spk|sensor1|sensor", string(r.MasterCanonicalBytes()))
	assert.Equal(t, r.MasterCanonicalBytes(), r.SlaveCanonicalBytes())
}

func TestPairingRecordCanonicalBytesWithBlanks(t *testing.T) {
	r := canon.PairingRecord{Nonce: "n1", MasterPublicKey: "mpk", MasterId: "master1", MasterType: "display"}
	assert.Equal(t, "n1|mpk|master1|display|||", string(r.MasterCanonicalBytes()))
}

func TestPairingRecordCompletion(t *testing.T) {
	r := canon.PairingRecord{}
	assert.False(t, r.MasterCompleted())
	assert.False(t, r.Completed())

	r.MasterPublicKey, r.MasterId, r.MasterType, r.MasterSignature = "mpk", "master1", "display", "sig"
	assert.True(t, r.MasterCompleted())
	assert.False(t, r.SlaveCompleted())
	assert.False(t, r.Completed())

	r.SlavePublicKey, r.SlaveId, r.SlaveType, r.SlaveSignature = "spk", "sensor1", "sensor", "sig2"
	assert.True(t, r.Completed())
}
