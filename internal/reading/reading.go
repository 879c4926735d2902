// Package reading holds the canonical sensor reading model, the payload
// normalizer and the bounded history merger.
package reading

import (
	"encoding/json"
	"time"
)

// UnknownLocation is the sentinel used when a payload carries no usable
// location label.
const UnknownLocation = "unknown"

// Spectrum holds one multi-channel spectral measurement.
type Spectrum struct {
	SensorType    string             `json:"sensor_type,omitempty"`
	Channels      map[string]float64 `json:"channels,omitempty"`
	Average       *float64           `json:"average,omitempty"`
	ReadingsCount *int               `json:"readings_count,omitempty"`
}

// Empty reports whether the spectrum carries no data at all.
func (s *Spectrum) Empty() bool {
	if s == nil {
		return true
	}
	return s.SensorType == "" && len(s.Channels) == 0 && s.Average == nil && s.ReadingsCount == nil
}

// HasSignal reports whether the spectrum carries at least one numeric value.
func (s *Spectrum) HasSignal() bool {
	if s == nil {
		return false
	}
	return len(s.Channels) > 0 || s.Average != nil
}

// Reading is one canonical sensor reading. It is immutable once constructed;
// merges produce new instances.
type Reading struct {
	Timestamp        time.Time
	Location         string
	Turbidity        *float64
	TurbidityVoltage *float64
	PH               *float64
	Spectrum         *Spectrum
}

// CanonicalTimestamp returns the normalized textual representation of the
// reading's instant, used as the series sort and dedup key.
func (r Reading) CanonicalTimestamp() string {
	return r.Timestamp.UTC().Format(time.RFC3339Nano)
}

// readingJSON is the wire shape of a Reading. The timestamp travels in its
// canonical form so a serialized reading normalizes back to the same instant.
type readingJSON struct {
	Timestamp        string    `json:"timestamp"`
	Location         string    `json:"location"`
	Turbidity        *float64  `json:"turbidity,omitempty"`
	TurbidityVoltage *float64  `json:"turbidity_voltage,omitempty"`
	PH               *float64  `json:"pH,omitempty"`
	Spectrum         *Spectrum `json:"spectrum,omitempty"`
}

// MarshalJSON serializes the reading with its canonical timestamp.
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(readingJSON{
		Timestamp:        r.CanonicalTimestamp(),
		Location:         r.Location,
		Turbidity:        r.Turbidity,
		TurbidityVoltage: r.TurbidityVoltage,
		PH:               r.PH,
		Spectrum:         r.Spectrum,
	})
}
