package canon_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hardenmqtt/harden-mqtt-go/canon"
	"github.com/hardenmqtt/harden-mqtt-go/sensordata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFields() []sensordata.Field {
	ts := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	return []sensordata.Field{
		{Thing: "sensor1", Timestamp: ts, Name: "Temperature", Type: sensordata.Momentary, QoS: sensordata.AutomaticReadout,
			Value: sensordata.Value{Kind: sensordata.KindQuantity, Quantity: sensordata.Quantity{Magnitude: 21.456, Decimals: 1, Unit: "°C"}}},
		{Thing: "sensor1", Timestamp: ts, Name: "Online", Type: sensordata.Status, QoS: sensordata.AutomaticReadout,
			Value: sensordata.Value{Kind: sensordata.KindBool, Bool: true}},
		{Thing: "sensor1", Timestamp: ts, Name: "Name", Type: sensordata.Identity, QoS: sensordata.AutomaticReadout,
			Value: sensordata.Value{Kind: sensordata.KindString, Str: "Garden Sensor"}},
	}
}

func TestBuildAndParsePayloadRoundTrips(t *testing.T) {
	fields := sampleFields()
	data, err := canon.BuildPayload("sensor1", fields)
	require.NoError(t, err)

	thing, parsed, err := canon.ParsePayload(data)
	require.NoError(t, err)
	assert.Equal(t, "sensor1", thing)
	require.Len(t, parsed, len(fields))

	// Quantity is rounded to its declared decimal count on the way in,
	// so compare against the rounded value, not the raw magnitude.
	assert.Equal(t, 21.5, parsed[0].Value.Quantity.Magnitude)
	assert.Equal(t, "°C", parsed[0].Value.Quantity.Unit)
	assert.Equal(t, true, parsed[1].Value.Bool)
	assert.Equal(t, "Garden Sensor", parsed[2].Value.Str)
}

func TestBuildPayloadRejectsReservedSignatureName(t *testing.T) {
	fields := []sensordata.Field{{Name: canon.SignatureFieldName, Value: sensordata.Value{Kind: sensordata.KindString, Str: "x"}}}
	_, err := canon.BuildPayload("sensor1", fields)
	assert.Error(t, err)
}

func TestBuildSignedPayloadAndVerify(t *testing.T) {
	fields := sampleFields()
	signInstant := time.Date(2026, 7, 31, 12, 0, 1, 0, time.UTC)

	var signedBytes []byte
	sign := func(signable []byte) (string, error) {
		signedBytes = signable
		return "deadbeef-signature", nil
	}
	data, err := canon.BuildSignedPayload("sensor1", fields, signInstant, sign)
	require.NoError(t, err)
	assert.NotEmpty(t, signedBytes)

	verify := func(signable []byte, signature string) bool {
		return signature == "deadbeef-signature" && string(signable) == string(signedBytes)
	}
	thing, stripped, err := canon.VerifySignedPayload(data, verify)
	require.NoError(t, err)
	assert.Equal(t, "sensor1", thing)
	assert.Len(t, stripped, len(fields))
}

func TestVerifySignedPayloadRejectsBadSignature(t *testing.T) {
	fields := sampleFields()
	data, err := canon.BuildSignedPayload("sensor1", fields, time.Now().UTC(), func(b []byte) (string, error) {
		return "sig", nil
	})
	require.NoError(t, err)

	_, _, err = canon.VerifySignedPayload(data, func(signable []byte, signature string) bool { return false })
	assert.Error(t, err)
}

func TestStripSignatureRejectsWrongCount(t *testing.T) {
	_, _, err := canon.StripSignature(sampleFields())
	assert.Error(t, err)

	withTwo := append(sampleFields(),
		sensordata.Field{Name: canon.SignatureFieldName, Value: sensordata.Value{Kind: sensordata.KindString, Str: "a"}},
		sensordata.Field{Name: canon.SignatureFieldName, Value: sensordata.Value{Kind: sensordata.KindString, Str: "b"}},
	)
	_, _, err = canon.StripSignature(withTwo)
	assert.Error(t, err)
}

func TestParsePayloadRejectsOversizedPayload(t *testing.T) {
	huge := make([]byte, canon.MaxPayloadBytes+1)
	_, _, err := canon.ParsePayload(huge)
	assert.Error(t, err)
}

func TestParsePayloadRejectsUnknownElement(t *testing.T) {
	_, _, err := canon.ParsePayload([]byte(`<fields thing="x"><mystery name="A" type="Momentary" qos="AutomaticReadout" timestamp="2026-07-31T12:00:00Z" value="1"/></fields>`))
	assert.Error(t, err)
}

func TestFieldOrderPreservedThroughRoundTrip(t *testing.T) {
	fields := sampleFields()
	data, err := canon.BuildPayload("sensor1", fields)
	require.NoError(t, err)
	_, parsed, err := canon.ParsePayload(data)
	require.NoError(t, err)

	names := func(fs []sensordata.Field) []string {
		var out []string
		for _, f := range fs {
			out = append(out, f.Name)
		}
		return out
	}
	if diff := cmp.Diff(names(fields), names(parsed)); diff != "" {
		t.Fatalf("field order changed across round trip (-want +got):\n%s", diff)
	}
}
