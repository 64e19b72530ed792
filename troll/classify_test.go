package troll_test

import (
	"testing"

	"github.com/hardenmqtt/harden-mqtt-go/troll"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    troll.Kind
	}{
		{"int", "100", troll.KindInt},
		{"negative int", "-42", troll.KindInt},
		{"float", "3.14", troll.KindFloat},
		{"duration", "5s", troll.KindDuration},
		{"rfc3339", "2024-01-02T15:04:05Z", troll.KindDateTime},
		{"date", "2024-01-02", troll.KindDateTime},
		{"uri", "https://example.com/path", troll.KindURI},
		{"json object", `{"a":1}`, troll.KindJSONObject},
		{"json array", `[1,2,3]`, troll.KindJSONArray},
		{"xml", `<fields><int>1</int></fields>`, troll.KindXML},
		{"string", "hello there", troll.KindString},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, troll.Classify([]byte(c.payload)))
		})
	}
}

func TestClassifyOversizedPayloadIsBlob(t *testing.T) {
	payload := make([]byte, 65537)
	assert.Equal(t, troll.KindBlob, troll.Classify(payload))
}

func TestClassifyInvalidUTF8IsBlob(t *testing.T) {
	payload := []byte{0xff, 0xfe, 0xfd}
	assert.Equal(t, troll.KindBlob, troll.Classify(payload))
}
