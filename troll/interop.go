package troll

import (
	"math/rand"

	"github.com/hardenmqtt/harden-mqtt-go/canon"
	"github.com/hardenmqtt/harden-mqtt-go/sensordata"
)

// parseInteroperable is a thin wrapper so mutate.go doesn't need to
// import canon directly for its error-probing use.
func parseInteroperable(payload []byte) (string, []sensordata.Field, error) {
	return canon.ParsePayload(payload)
}

// perturbInteroperableXML rebuilds an interoperable document with one
// field's value mutated in a way that respects its typed variant, per
// the spec's "field name and value mutation that respects the typed
// variant" clause. The Signature field, if present, is left alone and
// re-appended as the document's last field, so a downstream verifier
// sees a structurally valid but value-mutated document and rejects it
// on signature mismatch rather than on parse failure.
func perturbInteroperableXML(rnd *rand.Rand, thing string, fields []sensordata.Field) []byte {
	candidates := make([]int, 0, len(fields))
	for i, f := range fields {
		if f.Name != canon.SignatureFieldName {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		out, err := canon.BuildPayload(thing, fields)
		if err != nil {
			return nil
		}
		return out
	}
	target := candidates[rnd.Intn(len(candidates))]
	mutated := append([]sensordata.Field(nil), fields...)
	mutated[target].Value = perturbValue(rnd, mutated[target].Value)

	unsigned := make([]sensordata.Field, 0, len(mutated))
	var signature *sensordata.Field
	for i := range mutated {
		if mutated[i].Name == canon.SignatureFieldName {
			signature = &mutated[i]
		} else {
			unsigned = append(unsigned, mutated[i])
		}
	}
	out, err := canon.BuildPayload(thing, unsigned)
	if signature != nil {
		out, err = canon.BuildSignedPayload(thing, unsigned, signature.Timestamp, func([]byte) (string, error) {
			return signature.Value.Str, nil
		})
	}
	if err != nil {
		return nil
	}
	return out
}

func perturbValue(rnd *rand.Rand, v sensordata.Value) sensordata.Value {
	switch v.Kind {
	case sensordata.KindBool:
		v.Bool = !v.Bool
	case sensordata.KindInt32:
		v.Int32 = mutateInt32(rnd, v.Int32)
	case sensordata.KindInt64:
		v.Int64 = mutateInt64(rnd, v.Int64)
	case sensordata.KindQuantity:
		v.Quantity.Magnitude = mutateFloat(rnd, v.Quantity.Magnitude)
	case sensordata.KindDuration:
		v.Duration = v.Duration * 2
	case sensordata.KindDate, sensordata.KindDateTime, sensordata.KindTime:
		v.Time = randomInstant(rnd)
	case sensordata.KindEnum:
		v.Enum = v.Enum + "-mutated"
	case sensordata.KindString:
		v.Str = v.Str + "-mutated"
	}
	return v
}

func mutateInt32(rnd *rand.Rand, n int32) int32 {
	switch rnd.Intn(3) {
	case 0:
		return n / 2
	case 1:
		return n * 2
	default:
		return -n
	}
}

func mutateInt64(rnd *rand.Rand, n int64) int64 {
	switch rnd.Intn(3) {
	case 0:
		return n / 2
	case 1:
		return n * 2
	default:
		return -n
	}
}

func mutateFloat(rnd *rand.Rand, f float64) float64 {
	switch rnd.Intn(3) {
	case 0:
		return f / 2
	case 1:
		return f * 2
	default:
		return -f
	}
}
