// Package canon implements the two byte-exact canonicalizations this
// system signs over: the pairing record's pipe-joined form and the
// interoperable sensor-data XML form. Both must be deterministic
// across calls with the same input, since signatures are taken over
// exactly these bytes.
package canon

import (
	"encoding/xml"
	"strconv"
	"time"

	"github.com/hardenmqtt/harden-mqtt-go/errs"
	"github.com/hardenmqtt/harden-mqtt-go/sensordata"
)

// SignatureFieldName is the reserved field name carrying the payload
// signature. It MUST NOT appear in caller-supplied field lists.
const SignatureFieldName = "Signature"

const xmlNamespace = "urn:xmpp:iot:sensordata"

// MaxPayloadBytes is the structural guard against parser DoS: any
// payload larger than this is rejected before XML parsing.
const MaxPayloadBytes = 65536

type xmlField struct {
	XMLName   xml.Name
	Name      string `xml:"name,attr"`
	Type      string `xml:"type,attr"`
	QoS       string `xml:"qos,attr"`
	Timestamp string `xml:"timestamp,attr"`
	Value     string `xml:"value,attr"`
	Unit      string `xml:"unit,attr,omitempty"`
}

type xmlPayload struct {
	XMLName xml.Name   `xml:"fields"`
	Xmlns   string     `xml:"xmlns,attr"`
	Thing   string     `xml:"thing,attr,omitempty"`
	Fields  []xmlField `xml:",any"`
}

var kindToTag = map[sensordata.Kind]string{
	sensordata.KindBool:     "boolean",
	sensordata.KindInt32:    "int",
	sensordata.KindInt64:    "long",
	sensordata.KindString:   "string",
	sensordata.KindDate:     "date",
	sensordata.KindDateTime: "dateTime",
	sensordata.KindDuration: "duration",
	sensordata.KindTime:     "time",
	sensordata.KindQuantity: "numeric",
	sensordata.KindEnum:     "enum",
}

var tagToKind = func() map[string]sensordata.Kind {
	m := make(map[string]sensordata.Kind, len(kindToTag))
	for k, v := range kindToTag {
		m[v] = k
	}
	return m
}()

// BuildPayload renders an ordered field sequence into the
// interoperable XML form, in the exact input order, rounding
// quantities to their supplied decimal count. It never appends a
// Signature field.
func BuildPayload(thing string, fields []sensordata.Field) ([]byte, error) {
	payload := xmlPayload{Xmlns: xmlNamespace, Thing: thing}
	for _, f := range fields {
		if f.Name == SignatureFieldName {
			return nil, errs.Warnf("canon.BuildPayload: Signature is a reserved field name and must not be supplied by the caller")
		}
		xf, err := toXMLField(f)
		if err != nil {
			return nil, err
		}
		payload.Fields = append(payload.Fields, xf)
	}
	return xml.Marshal(payload)
}

// BuildSignedPayload signs the unsigned canonical bytes of fields
// using signFn, then rebuilds an identical payload with the Signature
// field appended as a Computed field timestamped at signInstant.
func BuildSignedPayload(
	thing string,
	fields []sensordata.Field,
	signInstant time.Time,
	signFn func(signable []byte) (signature string, err error),
) ([]byte, error) {
	unsigned, err := BuildPayload(thing, fields)
	if err != nil {
		return nil, err
	}
	signature, err := signFn(unsigned)
	if err != nil {
		return nil, err
	}
	signedFields := append(append([]sensordata.Field(nil), fields...), sensordata.Field{
		Thing:     thing,
		Timestamp: signInstant,
		Name:      SignatureFieldName,
		Type:      sensordata.Computed,
		QoS:       sensordata.AutomaticReadout,
		Value:     sensordata.Value{Kind: sensordata.KindString, Str: signature},
	})
	return BuildPayload(thing, signedFields)
}

// ParsePayload decodes the interoperable XML form back into an
// ordered field sequence, preserving any Signature field that may be
// present. Payloads over MaxPayloadBytes are rejected before parsing.
func ParsePayload(data []byte) (thing string, fields []sensordata.Field, err error) {
	if len(data) > MaxPayloadBytes {
		return "", nil, errs.Warnf("canon.ParsePayload: payload of %d bytes exceeds the %d byte structural guard", len(data), MaxPayloadBytes)
	}
	var payload xmlPayload
	if err := xml.Unmarshal(data, &payload); err != nil {
		return "", nil, errs.Warnf("canon.ParsePayload: malformed XML: %s", err)
	}
	fields = make([]sensordata.Field, 0, len(payload.Fields))
	for _, xf := range payload.Fields {
		f, err := fromXMLField(payload.Thing, xf)
		if err != nil {
			return "", nil, err
		}
		fields = append(fields, f)
	}
	return payload.Thing, fields, nil
}

// StripSignature removes exactly one Signature field from fields and
// returns it along with the remaining fields in their original order.
// The presence of zero or two-or-more Signature fields is rejected.
func StripSignature(fields []sensordata.Field) (stripped []sensordata.Field, signature string, err error) {
	found := 0
	stripped = make([]sensordata.Field, 0, len(fields))
	for _, f := range fields {
		if f.Name == SignatureFieldName {
			found++
			signature = f.Value.Str
			continue
		}
		stripped = append(stripped, f)
	}
	if found != 1 {
		return nil, "", errs.Warnf("canon.StripSignature: expected exactly one Signature field, found %d", found)
	}
	if len(signature) > 100 {
		return nil, "", errs.Warnf("canon.StripSignature: signature of %d base64url characters exceeds the 100 character guard", len(signature))
	}
	return stripped, signature, nil
}

// VerifySignedPayload parses data, strips its Signature field, rebuilds
// the unsigned canonical bytes and verifies them with verifyFn. It
// returns the field list with the Signature field removed.
func VerifySignedPayload(
	data []byte,
	verifyFn func(signable []byte, signature string) bool,
) (thing string, fields []sensordata.Field, err error) {
	thing, parsed, err := ParsePayload(data)
	if err != nil {
		return "", nil, err
	}
	stripped, signature, err := StripSignature(parsed)
	if err != nil {
		return "", nil, err
	}
	unsigned, err := BuildPayload(thing, stripped)
	if err != nil {
		return "", nil, err
	}
	if !verifyFn(unsigned, signature) {
		return "", nil, errs.Warnf("canon.VerifySignedPayload: signature does not verify")
	}
	return thing, stripped, nil
}

func toXMLField(f sensordata.Field) (xmlField, error) {
	tag, ok := kindToTag[f.Value.Kind]
	if !ok {
		return xmlField{}, errs.Warnf("canon.BuildPayload: unknown value kind %q for field %q", f.Value.Kind, f.Name)
	}
	xf := xmlField{
		XMLName:   xml.Name{Local: tag},
		Name:      f.Name,
		Type:      string(f.Type),
		QoS:       string(f.QoS),
		Timestamp: f.Timestamp.UTC().Format(time.RFC3339),
	}
	if f.Value.Kind == sensordata.KindQuantity {
		xf.Value = strconv.FormatFloat(f.Value.Quantity.Magnitude, 'f', f.Value.Quantity.Decimals, 64)
		xf.Unit = f.Value.Quantity.Unit
	} else {
		xf.Value = f.Value.String()
	}
	return xf, nil
}

func fromXMLField(thing string, xf xmlField) (sensordata.Field, error) {
	kind, ok := tagToKind[xf.XMLName.Local]
	if !ok {
		return sensordata.Field{}, errs.Warnf("canon.ParsePayload: unknown field element <%s>", xf.XMLName.Local)
	}
	ts, err := time.Parse(time.RFC3339, xf.Timestamp)
	if err != nil {
		ts = time.Time{}
	}
	f := sensordata.Field{
		Thing:     thing,
		Timestamp: ts,
		Name:      xf.Name,
		Type:      sensordata.FieldType(xf.Type),
		QoS:       sensordata.QoS(xf.QoS),
	}
	value, err := parseValue(kind, xf.Value, xf.Unit)
	if err != nil {
		return sensordata.Field{}, err
	}
	f.Value = value
	return f, nil
}

func parseValue(kind sensordata.Kind, raw string, unit string) (sensordata.Value, error) {
	switch kind {
	case sensordata.KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return sensordata.Value{}, errs.Warnf("canon.ParsePayload: invalid boolean value %q", raw)
		}
		return sensordata.Value{Kind: kind, Bool: b}, nil
	case sensordata.KindInt32:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return sensordata.Value{}, errs.Warnf("canon.ParsePayload: invalid int value %q", raw)
		}
		return sensordata.Value{Kind: kind, Int32: int32(n)}, nil
	case sensordata.KindInt64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return sensordata.Value{}, errs.Warnf("canon.ParsePayload: invalid long value %q", raw)
		}
		return sensordata.Value{Kind: kind, Int64: n}, nil
	case sensordata.KindString, sensordata.KindEnum:
		if kind == sensordata.KindEnum {
			return sensordata.Value{Kind: kind, Enum: raw}, nil
		}
		return sensordata.Value{Kind: kind, Str: raw}, nil
	case sensordata.KindDate:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return sensordata.Value{}, errs.Warnf("canon.ParsePayload: invalid date value %q", raw)
		}
		return sensordata.Value{Kind: kind, Time: t}, nil
	case sensordata.KindDateTime:
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return sensordata.Value{}, errs.Warnf("canon.ParsePayload: invalid dateTime value %q", raw)
		}
		return sensordata.Value{Kind: kind, Time: t}, nil
	case sensordata.KindTime:
		t, err := time.Parse("15:04:05", raw)
		if err != nil {
			return sensordata.Value{}, errs.Warnf("canon.ParsePayload: invalid time value %q", raw)
		}
		return sensordata.Value{Kind: kind, Time: t}, nil
	case sensordata.KindDuration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return sensordata.Value{}, errs.Warnf("canon.ParsePayload: invalid duration value %q", raw)
		}
		return sensordata.Value{Kind: kind, Duration: d}, nil
	case sensordata.KindQuantity:
		magnitude, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return sensordata.Value{}, errs.Warnf("canon.ParsePayload: invalid numeric value %q", raw)
		}
		decimals := 0
		if dot := indexByte(raw, '.'); dot >= 0 {
			decimals = len(raw) - dot - 1
		}
		return sensordata.Value{Kind: kind, Quantity: sensordata.Quantity{Magnitude: magnitude, Decimals: decimals, Unit: unit}}, nil
	default:
		return sensordata.Value{}, errs.Warnf("canon.ParsePayload: unsupported value kind %q", kind)
	}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
