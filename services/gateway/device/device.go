// Package device parses the field device's single-line JSON serial protocol
// and accumulates samples between publishes.
package device

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Line is one decoded serial line. The device emits three shapes: status or
// error notices, turbidity readings, and calibrated spectral readings where
// each channel is a single-letter key and "spectrum" carries the line
// average.
type Line struct {
	Status           string
	Error            string
	Turbidity        *float64
	TurbidityVoltage *float64
	Channels         map[string]float64
	Average          *float64
}

// Notice reports whether the line is a status or error notice rather than a
// measurement.
func (l Line) Notice() bool {
	return l.Status != "" || l.Error != ""
}

// ParseLine decodes one newline-terminated serial record.
func ParseLine(raw []byte) (Line, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Line{}, fmt.Errorf("decode serial line: %w", err)
	}

	var line Line
	if s, ok := fields["status"].(string); ok {
		line.Status = s
	}
	if s, ok := fields["error"].(string); ok {
		line.Error = s
	}
	if line.Notice() {
		return line, nil
	}

	if v, ok := fields["turbidity"].(float64); ok {
		line.Turbidity = &v
	}
	if v, ok := fields["turbidity_voltage"].(float64); ok {
		line.TurbidityVoltage = &v
	}
	if v, ok := fields["spectrum"].(float64); ok {
		line.Average = &v
	}

	for key, value := range fields {
		v, ok := value.(float64)
		if !ok || !isChannelKey(key) {
			continue
		}
		if line.Channels == nil {
			line.Channels = make(map[string]float64)
		}
		line.Channels[key] = v
	}

	return line, nil
}

// isChannelKey matches the device's single-letter channel names (A-F on the
// AS7265X, up to R/S/T/U/V/W on the full triad).
func isChannelKey(key string) bool {
	return len(key) == 1 && key[0] >= 'A' && key[0] <= 'Z'
}

// SpectrumPayload mirrors the published spectrum object.
type SpectrumPayload struct {
	SensorType    string             `json:"sensor_type"`
	Channels      map[string]float64 `json:"channels"`
	Average       float64            `json:"average"`
	ReadingsCount int                `json:"readings_count"`
}

// Payload is one combined reading published to the bus.
type Payload struct {
	Timestamp        string           `json:"timestamp"`
	Location         string           `json:"location"`
	Turbidity        *float64         `json:"turbidity,omitempty"`
	TurbidityVoltage *float64         `json:"turbidity_voltage,omitempty"`
	Spectrum         *SpectrumPayload `json:"spectrum,omitempty"`
}

type spectralSample struct {
	channels map[string]float64
	average  *float64
}

// Accumulator collects measurement lines between publishes. Spectral samples
// are averaged per channel at flush time; turbidity keeps the most recent
// value, matching the device's much lower update rate.
type Accumulator struct {
	mu        sync.Mutex
	samples   []spectralSample
	turbidity *float64
	voltage   *float64
}

// Add folds one measurement line into the accumulator. Notices are ignored.
func (a *Accumulator) Add(line Line) {
	if line.Notice() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if line.Turbidity != nil {
		a.turbidity = line.Turbidity
	}
	if line.TurbidityVoltage != nil {
		a.voltage = line.TurbidityVoltage
	}
	if len(line.Channels) > 0 || line.Average != nil {
		a.samples = append(a.samples, spectralSample{
			channels: line.Channels,
			average:  line.Average,
		})
	}
}

// Flush builds the publish payload from everything accumulated since the
// last flush. It reports false when there is nothing to publish yet.
// Spectral samples are cleared; the last turbidity value is retained.
func (a *Accumulator) Flush(now time.Time, location, sensorType string) (Payload, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	payload := Payload{
		Timestamp:        now.UTC().Format(time.RFC3339),
		Location:         location,
		Turbidity:        a.turbidity,
		TurbidityVoltage: a.voltage,
	}

	if len(a.samples) > 0 {
		sums := make(map[string]float64)
		counts := make(map[string]int)
		avgSum := 0.0
		avgCount := 0
		for _, sample := range a.samples {
			for name, v := range sample.channels {
				sums[name] += v
				counts[name]++
			}
			if sample.average != nil {
				avgSum += *sample.average
				avgCount++
			}
		}

		channels := make(map[string]float64, len(sums))
		for name, sum := range sums {
			channels[name] = sum / float64(counts[name])
		}

		average := 0.0
		if avgCount > 0 {
			average = avgSum / float64(avgCount)
		} else if len(channels) > 0 {
			for _, v := range channels {
				average += v
			}
			average /= float64(len(channels))
		}

		payload.Spectrum = &SpectrumPayload{
			SensorType:    sensorType,
			Channels:      channels,
			Average:       average,
			ReadingsCount: len(a.samples),
		}
		a.samples = a.samples[:0]
	}

	if payload.Turbidity == nil && payload.TurbidityVoltage == nil && payload.Spectrum == nil {
		return Payload{}, false
	}
	return payload, true
}
