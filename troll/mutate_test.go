package troll_test

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/hardenmqtt/harden-mqtt-go/troll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerturbIntProducesSomeValidOutcome(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		mutated, _ := troll.Perturb(rnd, troll.KindInt, []byte("100"))
		assert.NotEmpty(t, mutated)
	}
}

func TestPerturbFloatProducesSomeValidOutcome(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		mutated, _ := troll.Perturb(rnd, troll.KindFloat, []byte("3.14"))
		assert.NotEmpty(t, mutated)
	}
}

func TestPerturbDurationProducesSomeValidOutcome(t *testing.T) {
	rnd := rand.New(rand.NewSource(9))
	for i := 0; i < 50; i++ {
		mutated, _ := troll.Perturb(rnd, troll.KindDuration, []byte("5s"))
		assert.NotEmpty(t, mutated)
	}
}

func TestPerturbDateTimeProducesSomeValidOutcome(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	payload := []byte(time.Now().UTC().Format(time.RFC3339))
	for i := 0; i < 50; i++ {
		mutated, _ := troll.Perturb(rnd, troll.KindDateTime, payload)
		assert.NotEmpty(t, mutated)
	}
}

func TestPerturbURIProducesSomeValidOutcome(t *testing.T) {
	rnd := rand.New(rand.NewSource(13))
	for i := 0; i < 50; i++ {
		mutated, _ := troll.Perturb(rnd, troll.KindURI, []byte("https://example.com/sensor/1"))
		assert.NotEmpty(t, mutated)
	}
}

func TestPerturbStringProducesSomeValidOutcome(t *testing.T) {
	rnd := rand.New(rand.NewSource(15))
	for i := 0; i < 50; i++ {
		mutated, _ := troll.Perturb(rnd, troll.KindString, []byte("hello there"))
		assert.NotEmpty(t, mutated)
	}
}

func TestPerturbJSONObjectStaysValidJSON(t *testing.T) {
	rnd := rand.New(rand.NewSource(17))
	payload := []byte(`{"temperature":21,"unit":"C","active":true}`)
	for i := 0; i < 30; i++ {
		mutated, _ := troll.Perturb(rnd, troll.KindJSONObject, payload)
		var probe interface{}
		if err := json.Unmarshal(mutated, &probe); err != nil {
			// a BLOB replacement is a valid outcome but won't parse as JSON
			assert.Contains(t, []int{troll.SmallBlobSize, troll.MediumBlobSize, troll.LargeBlobSize, troll.HugeBlobSize}, len(mutated))
			continue
		}
	}
}

func TestPerturbJSONArrayStaysValidJSON(t *testing.T) {
	rnd := rand.New(rand.NewSource(19))
	payload := []byte(`[1,2,3,4,5]`)
	for i := 0; i < 30; i++ {
		mutated, _ := troll.Perturb(rnd, troll.KindJSONArray, payload)
		assert.NotEmpty(t, mutated)
		var probe interface{}
		if err := json.Unmarshal(mutated, &probe); err != nil {
			// a BLOB replacement is a valid outcome but won't parse as JSON
			assert.Contains(t, []int{troll.SmallBlobSize, troll.MediumBlobSize, troll.LargeBlobSize, troll.HugeBlobSize}, len(mutated))
		}
	}
}

func TestPerturbXMLStructuralFuzzing(t *testing.T) {
	rnd := rand.New(rand.NewSource(23))
	payload := []byte(`<readings><value>1</value></readings>`)
	mutated, retain := troll.Perturb(rnd, troll.KindXML, payload)
	assert.False(t, retain)
	assert.NotNil(t, mutated)
}

func TestPerturbInteroperableXMLRespectsTypedVariant(t *testing.T) {
	rnd := rand.New(rand.NewSource(29))
	payload := []byte(`<fields xmlns="urn:xmpp:iot:sensordata"><boolean name="active" type="Status" qos="AutomaticReadout" timestamp="2024-01-02T15:04:05Z" value="true"/></fields>`)
	mutated, _ := troll.Perturb(rnd, troll.KindXML, payload)
	require.NotEmpty(t, mutated)
	assert.Contains(t, string(mutated), `value="false"`)
}

func TestPerturbBlobProducesSomeValidOutcome(t *testing.T) {
	rnd := rand.New(rand.NewSource(31))
	payload := make([]byte, 4096)
	rnd.Read(payload)
	for i := 0; i < 20; i++ {
		mutated, _ := troll.Perturb(rnd, troll.KindBlob, payload)
		assert.NotEmpty(t, mutated)
	}
}

func TestSampleBlobSizeDistribution(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	var small, medium, large, huge int
	const trials = 20000
	for i := 0; i < trials; i++ {
		size, retain := troll.SampleBlobSize(rnd)
		switch size {
		case troll.SmallBlobSize:
			small++
			assert.True(t, retain)
		case troll.MediumBlobSize:
			medium++
			assert.False(t, retain)
		case troll.LargeBlobSize:
			large++
		case troll.HugeBlobSize:
			huge++
		}
	}
	assert.InDelta(t, trials/2, small, float64(trials)*0.05)
	assert.Greater(t, medium, large)
	assert.Greater(t, large, huge)
}
