package reading

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
)

// ErrInvalidPayload is returned when a raw payload cannot be normalized into
// a Reading. Callers drop the payload; nothing partial is ever produced.
var ErrInvalidPayload = errors.New("invalid payload")

// Field name variants accumulated across hardware revisions. Each list is
// probed in order and the first present, type-valid value wins.
var (
	timestampKeys          = []string{"timestamp", "ts", "time"}
	turbidityContainerKeys = []string{"turbidity_sensor", "turbiditySensor", "turbidity"}
	turbidityNTUKeys       = []string{"turbidity", "turbidity_ntu", "turbidityNtu"}
	turbidityVoltageKeys   = []string{"turbidity_voltage", "turbidityVoltage"}
	phKeys                 = []string{"pH", "ph"}
	spectrumContainerKeys  = []string{"spectrum", "spectrum_sensor", "spectrumSensor", "spectral"}
	spectrumAverageKeys    = []string{"spectrum_average", "spectrumAverage"}
	averageKeys            = []string{"average", "avg", "mean"}
	readingsCountKeys      = []string{"readings_count", "readingsCount"}
	countKeys              = []string{"readings_count", "readingsCount", "count", "samples"}
	sensorTypeKeys         = []string{"sensor_type", "sensorType"}
	typeKeys               = []string{"sensor_type", "sensorType", "name", "type"}
)

// NormalizeJSON decodes one raw JSON message and normalizes it.
func NormalizeJSON(data []byte) (Reading, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return Normalize(raw)
}

// Normalize converts one arbitrary decoded JSON value into a canonical
// Reading. It is referentially transparent: the same input always yields the
// same Reading or the same rejection.
func Normalize(raw any) (Reading, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Reading{}, fmt.Errorf("%w: not an object", ErrInvalidPayload)
	}

	ts, ok := coerceTimestamp(firstPresent(obj, timestampKeys))
	if !ok {
		return Reading{}, fmt.Errorf("%w: missing or unparseable timestamp", ErrInvalidPayload)
	}

	r := Reading{
		Timestamp: ts.UTC(),
		Location:  UnknownLocation,
	}
	if loc, ok := firstPresent(obj, []string{"location"}).(string); ok && loc != "" {
		r.Location = loc
	}

	turbObj := firstObject(obj, turbidityContainerKeys)
	if turbObj != nil {
		r.Turbidity = coerceFloat(turbObj["ntu"])
		r.TurbidityVoltage = coerceFloat(turbObj["voltage"])
	}
	if r.Turbidity == nil {
		r.Turbidity = firstFloat(obj, turbidityNTUKeys)
	}
	if r.TurbidityVoltage == nil {
		r.TurbidityVoltage = firstFloat(obj, turbidityVoltageKeys)
	}

	r.PH = firstFloat(obj, phKeys)

	spectrumObj := firstObject(obj, spectrumContainerKeys)

	channels := coerceChannels(firstPresent(obj, []string{"channels"}))
	if channels == nil && spectrumObj != nil {
		channels = coerceChannels(spectrumObj["channels"])
	}

	average := firstFloat(obj, spectrumAverageKeys)
	if average == nil && spectrumObj != nil {
		average = firstFloat(spectrumObj, averageKeys)
	}

	count := firstInt(obj, readingsCountKeys)
	if count == nil && spectrumObj != nil {
		count = firstInt(spectrumObj, countKeys)
	}

	sensorType := firstString(obj, sensorTypeKeys)
	if sensorType == "" && spectrumObj != nil {
		sensorType = firstString(spectrumObj, typeKeys)
	}

	// The device sometimes omits the precomputed average; derive it from
	// whatever channels survived coercion.
	if average == nil && len(channels) > 0 {
		sum := 0.0
		for _, v := range channels {
			sum += v
		}
		mean := sum / float64(len(channels))
		average = &mean
	}

	spectrum := &Spectrum{
		SensorType:    sensorType,
		Channels:      channels,
		Average:       average,
		ReadingsCount: count,
	}
	if !spectrum.Empty() {
		r.Spectrum = spectrum
	}

	if r.Turbidity == nil && r.TurbidityVoltage == nil && !r.Spectrum.HasSignal() {
		return Reading{}, fmt.Errorf("%w: no turbidity or spectral data", ErrInvalidPayload)
	}

	return r, nil
}

// firstPresent returns the first value found under any of the given keys.
func firstPresent(obj map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// firstObject returns the first value under the given keys that is itself an
// object.
func firstObject(obj map[string]any, keys []string) map[string]any {
	for _, k := range keys {
		if m, ok := obj[k].(map[string]any); ok {
			return m
		}
	}
	return nil
}

func firstFloat(obj map[string]any, keys []string) *float64 {
	for _, k := range keys {
		if v := coerceFloat(obj[k]); v != nil {
			return v
		}
	}
	return nil
}

func firstInt(obj map[string]any, keys []string) *int {
	for _, k := range keys {
		if v := coerceInt(obj[k]); v != nil {
			return v
		}
	}
	return nil
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// coerceChannels accepts a keyed mapping of channel name to value. Entries
// whose value fails numeric coercion are dropped individually; an empty
// result is treated as absent.
func coerceChannels(v any) map[string]float64 {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, raw := range m {
		if f := coerceFloat(raw); f != nil {
			out[k] = *f
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// coerceFloat accepts numeric values and trimmed numeric strings. Anything
// else, and non-finite values, yield nil rather than an error.
func coerceFloat(v any) *float64 {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func coerceInt(v any) *int {
	f := coerceFloat(v)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// coerceTimestamp resolves an instant-like value, an epoch-style number or a
// parseable date/time string to an instant.
func coerceTimestamp(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		if t, err := iso8601.ParseString(s); err == nil {
			return t, true
		}
		// Same coercion as every other numeric field, so non-finite values
		// like "NaN" or "Inf" never resolve to an instant.
		if f := coerceFloat(s); f != nil {
			return epochToTime(*f), true
		}
		return time.Time{}, false
	default:
		if f := coerceFloat(v); f != nil {
			return epochToTime(*f), true
		}
		return time.Time{}, false
	}
}

// epochToTime interprets a number as epoch seconds, or epoch milliseconds
// when its magnitude makes seconds implausible.
func epochToTime(f float64) time.Time {
	const msThreshold = 1e12
	if math.Abs(f) >= msThreshold {
		return time.UnixMilli(int64(f))
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
