package troll

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Perturb applies one randomly chosen perturbation from the menu that
// matches kind, scaled by trolliness (higher trolliness means the
// caller invokes Perturb less often; Perturb itself always mutates
// once called). It returns the mutated payload and whether the
// republication should be retained.
func Perturb(rnd *rand.Rand, kind Kind, payload []byte) (mutated []byte, retain bool) {
	switch kind {
	case KindInt:
		return perturbInt(rnd, payload)
	case KindFloat:
		return perturbFloat(rnd, payload)
	case KindDuration:
		return perturbDuration(rnd, payload)
	case KindDateTime:
		return perturbDateTime(rnd, payload)
	case KindURI:
		return perturbURI(rnd, payload)
	case KindJSONObject:
		return perturbJSONObject(rnd, payload)
	case KindJSONArray:
		return perturbJSONArray(rnd, payload)
	case KindXML:
		return perturbXML(rnd, payload)
	case KindBlob:
		return perturbBlob(rnd, payload)
	default:
		return perturbString(rnd, payload)
	}
}

func blobReplacement(rnd *rand.Rand) ([]byte, bool) {
	size, retain := SampleBlobSize(rnd)
	return RandomBlob(rnd, size), retain
}

func perturbInt(rnd *rand.Rand, payload []byte) ([]byte, bool) {
	n, _ := strconv.ParseInt(strings.TrimSpace(string(payload)), 10, 64)
	switch rnd.Intn(6) {
	case 0:
		return []byte(strconv.FormatInt(n/2, 10)), false
	case 1:
		return []byte(strconv.FormatInt(n*2, 10)), false
	case 2:
		return []byte(strconv.FormatInt(-n, 10)), false
	case 3:
		return []byte(strconv.FormatInt(rnd.Int63(), 10)), false
	case 4:
		return []byte("Kilroy was here"), false
	default:
		return blobReplacement(rnd)
	}
}

func perturbFloat(rnd *rand.Rand, payload []byte) ([]byte, bool) {
	f, _ := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	switch rnd.Intn(7) {
	case 0:
		return []byte(strconv.FormatFloat(f/2, 'f', -1, 64)), false
	case 1:
		return []byte(strconv.FormatFloat(f*2, 'f', -1, 64)), false
	case 2:
		return []byte(strconv.FormatFloat(-f, 'f', -1, 64)), false
	case 3:
		return []byte(strconv.FormatFloat(rnd.NormFloat64()*f, 'f', -1, 64)), false
	case 4:
		return []byte(strconv.FormatFloat(f, 'e', 6, 64)), false // reformat
	case 5:
		return []byte("not-a-number"), false
	default:
		return blobReplacement(rnd)
	}
}

func perturbDuration(rnd *rand.Rand, payload []byte) ([]byte, bool) {
	d, _ := time.ParseDuration(strings.TrimSpace(string(payload)))
	switch rnd.Intn(6) {
	case 0:
		return []byte((d / 2).String()), false
	case 1:
		return []byte((d * 2).String()), false
	case 2:
		return []byte((-d).String()), false
	case 3:
		return []byte((time.Duration(rnd.Int63()) % (24 * time.Hour)).String()), false
	case 4:
		return []byte("not-a-duration"), false
	default:
		return blobReplacement(rnd)
	}
}

func perturbDateTime(rnd *rand.Rand, payload []byte) ([]byte, bool) {
	trimmed := strings.TrimSpace(string(payload))
	t, layout, ok := parseAnyDateTime(trimmed)
	if !ok {
		return blobReplacement(rnd)
	}
	switch rnd.Intn(9) {
	case 0:
		return []byte(epochHalved(t).Format(layout)), false
	case 1:
		return []byte(epochDoubled(t).Format(layout)), false
	case 2:
		return []byte(t.AddDate(10, 0, 0).Format(layout)), false // year +10
	case 3:
		return []byte(t.AddDate(0, 10, 0).Format(layout)), false // month +10, normalized by AddDate into a valid date
	case 4:
		return []byte(t.AddDate(0, 0, 10).Format(layout)), false // day +10, normalized by AddDate into a valid date
	case 5:
		return []byte(t.Add(10 * time.Hour).Format(layout)), false
	case 6:
		return []byte(randomInstant(rnd).Format(layout)), false
	case 7:
		return []byte("not-a-timestamp"), false
	default:
		return blobReplacement(rnd)
	}
}

func parseAnyDateTime(s string) (time.Time, string, bool) {
	layouts := []string{time.RFC3339, "2006-01-02", "15:04:05", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, layout, true
		}
	}
	return time.Time{}, "", false
}

func epochHalved(t time.Time) time.Time  { return time.Unix(t.Unix()/2, 0).UTC() }
func epochDoubled(t time.Time) time.Time { return time.Unix(t.Unix()*2, 0).UTC() }
func randomInstant(rnd *rand.Rand) time.Time {
	return time.Unix(rnd.Int63n(4102444800), 0).UTC() // within [1970, 2100)
}

func perturbURI(rnd *rand.Rand, payload []byte) ([]byte, bool) {
	u, err := url.Parse(strings.TrimSpace(string(payload)))
	if err != nil {
		return blobReplacement(rnd)
	}
	switch rnd.Intn(6) {
	case 0: // truncate
		s := u.String()
		if len(s) > 4 {
			return []byte(s[:len(s)/2]), false
		}
		return []byte(s), false
	case 1: // scheme mangling
		mangled := *u
		mangled.Scheme = "gopher"
		return []byte(mangled.String()), false
	case 2: // host substitution
		substituted := *u
		substituted.Host = "troll.invalid"
		return []byte(substituted.String()), false
	case 3: // path injection
		injected := *u
		injected.Path = injected.Path + "/../../etc/passwd"
		return []byte(injected.String()), false
	case 4:
		return []byte("definitely not a uri"), false
	default:
		return blobReplacement(rnd)
	}
}

func perturbString(rnd *rand.Rand, payload []byte) ([]byte, bool) {
	s := string(payload)
	switch rnd.Intn(4) {
	case 0: // truncate
		if len(s) == 0 {
			return payload, false
		}
		return []byte(s[:len(s)/2]), false
	case 1: // double
		return []byte(s + s), false
	case 2: // substitute
		return []byte(substituteChars(s)), false
	default:
		return blobReplacement(rnd)
	}
}

func substituteChars(s string) string {
	runes := []rune(s)
	for i := range runes {
		if i%2 == 0 {
			runes[i] = 'x'
		}
	}
	return string(runes)
}

func perturbJSONObject(rnd *rand.Rand, payload []byte) ([]byte, bool) {
	if rnd.Intn(10) == 0 {
		return blobReplacement(rnd)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return blobReplacement(rnd)
	}
	mutated := make(map[string]json.RawMessage, len(obj))
	for key, value := range obj {
		switch rnd.Intn(5) {
		case 0: // halve key
			if len(key) > 1 {
				key = key[:len(key)/2]
			}
		case 1: // double key
			key = key + key
		case 2: // random key
			key = fmt.Sprintf("k%d", rnd.Int63())
		case 3: // drop
			continue
		default: // recursively perturb value
			value = perturbJSONValue(rnd, value)
		}
		mutated[key] = value
	}
	out, err := json.Marshal(mutated)
	if err != nil {
		return blobReplacement(rnd)
	}
	return out, false
}

func perturbJSONValue(rnd *rand.Rand, value json.RawMessage) json.RawMessage {
	kind := Classify(value)
	mutated, _ := Perturb(rnd, kind, value)
	var probe interface{}
	if json.Unmarshal(mutated, &probe) == nil {
		return mutated
	}
	encoded, err := json.Marshal(string(mutated))
	if err != nil {
		return value
	}
	return encoded
}

func perturbJSONArray(rnd *rand.Rand, payload []byte) ([]byte, bool) {
	if rnd.Intn(10) == 0 {
		return blobReplacement(rnd)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(payload, &arr); err != nil {
		return blobReplacement(rnd)
	}
	mutated := make([]json.RawMessage, 0, len(arr))
	for _, elem := range arr {
		switch rnd.Intn(4) {
		case 0: // keep
			mutated = append(mutated, elem)
		case 1: // perturb
			mutated = append(mutated, perturbJSONValue(rnd, elem))
		case 2: // random
			mutated = append(mutated, json.RawMessage(strconv.FormatInt(rnd.Int63(), 10)))
		default: // drop
		}
	}
	out, err := json.Marshal(mutated)
	if err != nil {
		return blobReplacement(rnd)
	}
	return out, false
}

func perturbXML(rnd *rand.Rand, payload []byte) ([]byte, bool) {
	thing, fields, err := parseInteroperable(payload)
	if err == nil {
		return perturbInteroperableXML(rnd, thing, fields), false
	}
	return perturbXMLStructure(rnd, payload), false
}

// perturbXMLStructure mutates element/attribute local names without
// regard to the interoperable sensor-data schema: halve, double, or
// randomize a name, or drop a node. Namespace declarations are left
// untouched at the root so the document stays well-formed enough to
// exercise a receiver's parser.
func perturbXMLStructure(rnd *rand.Rand, payload []byte) []byte {
	decoder := xml.NewDecoder(bytes.NewReader(payload))
	var out bytes.Buffer
	encoder := xml.NewEncoder(&out)
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			t.Name.Local = mangleName(rnd, t.Name.Local)
			if rnd.Intn(8) == 0 {
				continue // skip node
			}
			encoder.EncodeToken(t)
		case xml.EndElement:
			t.Name.Local = mangleName(rnd, t.Name.Local)
			encoder.EncodeToken(t)
		default:
			encoder.EncodeToken(tok)
		}
	}
	encoder.Flush()
	return out.Bytes()
}

func mangleName(rnd *rand.Rand, name string) string {
	switch rnd.Intn(3) {
	case 0:
		if len(name) > 1 {
			return name[:len(name)/2]
		}
		return name
	case 1:
		return name + name
	default:
		return fmt.Sprintf("n%d", rnd.Int63())
	}
}

func perturbBlob(rnd *rand.Rand, payload []byte) ([]byte, bool) {
	switch rnd.Intn(4) {
	case 0:
		return payload[:len(payload)/2], false
	case 1:
		return append(append([]byte(nil), payload...), payload...), false
	case 2:
		mutated := append([]byte(nil), payload...)
		rnd.Read(mutated)
		return mutated, false
	default:
		return blobReplacement(rnd)
	}
}
