// Package sensordata defines the domain value types that flow through
// the telemetry pipeline: the opaque SensorReading a device produces,
// and the typed InteroperableField tuples the canonical encoder and
// the troll both switch over.
//
// Field values are modeled as a tagged union (one Kind plus one
// populated variant) rather than as an interface with per-kind
// implementations, so both the canonical encoder and the troll can
// exhaustively switch on Kind without a type assertion per call site.
package sensordata

import (
	"fmt"
	"time"
)

// FieldType classifies the semantics of an interoperable field's value.
type FieldType string

// Field type constants, per the interoperable sensor-data convention.
const (
	Momentary FieldType = "Momentary"
	Peak      FieldType = "Peak"
	Status    FieldType = "Status"
	Identity  FieldType = "Identity"
	Computed  FieldType = "Computed"
)

// QoS tags a field's quality-of-service. This repository only ever
// produces automatically-read values.
type QoS string

// AutomaticReadout is the only QoS tag this repository produces.
const AutomaticReadout QoS = "AutomaticReadout"

// Kind identifies which variant of Value is populated.
type Kind string

// Value variant kinds.
const (
	KindBool     Kind = "boolean"
	KindInt32    Kind = "int32"
	KindInt64    Kind = "int64"
	KindString   Kind = "string"
	KindDate     Kind = "date"
	KindDateTime Kind = "datetime"
	KindDuration Kind = "duration"
	KindTime     Kind = "time"
	KindQuantity Kind = "quantity"
	KindEnum     Kind = "enum"
)

// Quantity is a magnitude with an explicit decimal count and unit.
// Decimals governs how the canonical encoder rounds and renders
// Magnitude, so two encoders agree byte-for-byte on the signable form.
type Quantity struct {
	Magnitude float64
	Decimals  int
	Unit      string
}

// Value is a tagged union over the ten interoperable value variants.
// Exactly one of the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind     Kind
	Bool     bool
	Int32    int32
	Int64    int64
	Str      string
	Time     time.Time // meaning depends on Kind: KindDate/KindDateTime/KindTime
	Duration time.Duration
	Quantity Quantity
	Enum     string
}

// Field is a single typed tuple of the interoperable sensor-data form.
// The reserved "Signature" field name MUST NOT appear here when
// building the signable payload; canon.BuildSignedPayload appends it.
type Field struct {
	Thing     string // reference to the device/thing this reading came from
	Timestamp time.Time
	Name      string
	Value     Value
	Type      FieldType
	QoS       QoS
}

// String renders a Value the way the unstructured, per-field
// presentation publishes it: a bare string, with a unit suffix for
// quantities.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt32:
		return fmt.Sprintf("%d", v.Int32)
	case KindInt64:
		return fmt.Sprintf("%d", v.Int64)
	case KindString, KindEnum:
		if v.Kind == KindEnum {
			return v.Enum
		}
		return v.Str
	case KindDate:
		return v.Time.Format("2006-01-02")
	case KindDateTime:
		return v.Time.Format(time.RFC3339)
	case KindTime:
		return v.Time.Format("15:04:05")
	case KindDuration:
		return v.Duration.String()
	case KindQuantity:
		formatted := fmt.Sprintf("%.*f", v.Quantity.Decimals, v.Quantity.Magnitude)
		if v.Quantity.Unit != "" {
			return formatted + " " + v.Quantity.Unit
		}
		return formatted
	default:
		return ""
	}
}
