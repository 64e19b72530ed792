package sensordata

import "time"

// SensorReading is the domain object a sensor device publishes. It
// flows through the canonical encoder opaquely: the encoder and the
// troll reason about Field/Value, not about SensorReading's own
// layout, so adding a new optional scalar here never touches them.
type SensorReading struct {
	Name     string `json:"name,omitempty"`
	ID       string `json:"id,omitempty"`
	Country  string `json:"country,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`

	Readout   time.Time `json:"readout"`
	Timestamp time.Time `json:"timestamp"`

	TemperatureCelcius  *float64 `json:"temperatureCelcius,omitempty"`
	HumidityPercent     *float64 `json:"humidityPercent,omitempty"`
	PressureHectopascal *float64 `json:"pressureHectopascal,omitempty"`
	WindSpeedMs         *float64 `json:"windSpeedMs,omitempty"`

	Description string `json:"description,omitempty"`
}

// Fields converts the reading's populated scalars into the ordered
// interoperable field sequence the canonical encoder signs. Order
// here is the order the spec's signature round-trip must preserve.
func (r SensorReading) Fields(thing string) []Field {
	var fields []Field
	add := func(name string, magnitude *float64, unit string, decimals int) {
		if magnitude == nil {
			return
		}
		fields = append(fields, Field{
			Thing:     thing,
			Timestamp: r.Readout,
			Name:      name,
			Type:      Momentary,
			QoS:       AutomaticReadout,
			Value: Value{
				Kind:     KindQuantity,
				Quantity: Quantity{Magnitude: *magnitude, Decimals: decimals, Unit: unit},
			},
		})
	}
	add("Temperature", r.TemperatureCelcius, "°C", 1)
	add("Humidity", r.HumidityPercent, "%", 0)
	add("Pressure", r.PressureHectopascal, "hPa", 1)
	add("WindSpeed", r.WindSpeedMs, "m/s", 1)

	if r.Name != "" {
		fields = append(fields, Field{
			Thing: thing, Timestamp: r.Readout, Name: "Name", Type: Identity, QoS: AutomaticReadout,
			Value: Value{Kind: KindString, Str: r.Name},
		})
	}
	if r.Country != "" {
		fields = append(fields, Field{
			Thing: thing, Timestamp: r.Readout, Name: "Country", Type: Identity, QoS: AutomaticReadout,
			Value: Value{Kind: KindString, Str: r.Country},
		})
	}
	return fields
}

// Unstructured returns the unstructured, per-field string map this
// reading publishes: one topic segment per populated scalar.
func (r SensorReading) Unstructured() map[string]string {
	out := make(map[string]string)
	for _, f := range r.Fields(r.ID) {
		out[f.Name] = f.Value.String()
	}
	return out
}
