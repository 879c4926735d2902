package reading

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCanonicalPayload(t *testing.T) {
	payload := []byte(`{
		"timestamp": "2025-10-02T10:30:00",
		"location": "raspberry_pi_1",
		"turbidity": 2.5,
		"spectrum": {
			"sensor_type": "AS7265X_Spectral",
			"channels": {"A": 174.2, "B": 240.1, "C": 20.7, "D": 392.0, "E": 82.3, "F": 37.5},
			"average": 157.8,
			"readings_count": 6
		}
	}`)

	r, err := NormalizeJSON(payload)
	require.NoError(t, err)

	assert.Equal(t, "2025-10-02T10:30:00Z", r.CanonicalTimestamp())
	assert.Equal(t, "raspberry_pi_1", r.Location)
	require.NotNil(t, r.Turbidity)
	assert.Equal(t, 2.5, *r.Turbidity)
	require.NotNil(t, r.Spectrum)
	assert.Equal(t, "AS7265X_Spectral", r.Spectrum.SensorType)
	assert.Len(t, r.Spectrum.Channels, 6)
	require.NotNil(t, r.Spectrum.Average)
	assert.Equal(t, 157.8, *r.Spectrum.Average)
	require.NotNil(t, r.Spectrum.ReadingsCount)
	assert.Equal(t, 6, *r.Spectrum.ReadingsCount)
}

func TestNormalizeRejectsMissingTimestamp(t *testing.T) {
	_, err := NormalizeJSON([]byte(`{"turbidity": 0.5}`))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestNormalizeRejectsNonObject(t *testing.T) {
	for _, payload := range []string{`42`, `"reading"`, `[1, 2, 3]`, `null`} {
		_, err := NormalizeJSON([]byte(payload))
		assert.ErrorIs(t, err, ErrInvalidPayload, "payload %s", payload)
	}
}

func TestNormalizeRejectsWithoutAnyMetric(t *testing.T) {
	_, err := NormalizeJSON([]byte(`{"timestamp": "2025-01-01T00:00:00Z", "location": "dock"}`))
	require.ErrorIs(t, err, ErrInvalidPayload)

	// A spectrum that only names the sensor carries no measurement.
	_, err = NormalizeJSON([]byte(
		`{"timestamp": "2025-01-01T00:00:00Z", "spectrum": {"sensor_type": "AS7265X"}}`))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestNormalizeAliasProbing(t *testing.T) {
	payload := []byte(`{
		"ts": 1735689600,
		"turbiditySensor": {"voltage": 3.1, "ntu": 4.2},
		"spectral": {"name": "triad", "avg": "123.5", "samples": 4}
	}`)

	r, err := NormalizeJSON(payload)
	require.NoError(t, err)

	assert.Equal(t, time.Unix(1735689600, 0).UTC(), r.Timestamp)
	assert.Equal(t, UnknownLocation, r.Location)
	require.NotNil(t, r.Turbidity)
	assert.Equal(t, 4.2, *r.Turbidity)
	require.NotNil(t, r.TurbidityVoltage)
	assert.Equal(t, 3.1, *r.TurbidityVoltage)
	require.NotNil(t, r.Spectrum)
	assert.Equal(t, "triad", r.Spectrum.SensorType)
	require.NotNil(t, r.Spectrum.Average)
	assert.Equal(t, 123.5, *r.Spectrum.Average)
	require.NotNil(t, r.Spectrum.ReadingsCount)
	assert.Equal(t, 4, *r.Spectrum.ReadingsCount)
}

func TestNormalizeSanitizedTurbidityObject(t *testing.T) {
	// The bridge's own output nests turbidity as an object.
	payload := []byte(`{"timestamp": "2025-01-01T00:00:00Z", "turbidity": {"voltage": 2.8, "ntu": 1.9}}`)

	r, err := NormalizeJSON(payload)
	require.NoError(t, err)
	require.NotNil(t, r.Turbidity)
	assert.Equal(t, 1.9, *r.Turbidity)
	require.NotNil(t, r.TurbidityVoltage)
	assert.Equal(t, 2.8, *r.TurbidityVoltage)
}

func TestNormalizeNumericStrings(t *testing.T) {
	payload := []byte(`{"timestamp": "2025-01-01T00:00:00Z", "turbidity": " 3.25 ", "pH": "7.1"}`)

	r, err := NormalizeJSON(payload)
	require.NoError(t, err)
	require.NotNil(t, r.Turbidity)
	assert.Equal(t, 3.25, *r.Turbidity)
	require.NotNil(t, r.PH)
	assert.Equal(t, 7.1, *r.PH)
}

func TestNormalizeDropsBadChannelsIndividually(t *testing.T) {
	payload := []byte(`{
		"timestamp": "2025-01-01T00:00:00Z",
		"channels": {"A": 100, "B": "200.5", "C": "not a number", "D": null, "E": true}
	}`)

	r, err := NormalizeJSON(payload)
	require.NoError(t, err)
	require.NotNil(t, r.Spectrum)
	assert.Equal(t, map[string]float64{"A": 100, "B": 200.5}, r.Spectrum.Channels)
}

func TestNormalizeAllChannelsBadMeansAbsent(t *testing.T) {
	payload := []byte(`{
		"timestamp": "2025-01-01T00:00:00Z",
		"turbidity": 0.5,
		"channels": {"A": "x", "B": false}
	}`)

	r, err := NormalizeJSON(payload)
	require.NoError(t, err)
	assert.Nil(t, r.Spectrum)
}

func TestNormalizeDerivesAverageFromChannels(t *testing.T) {
	payload := []byte(`{"timestamp": "2025-01-01T00:00:00Z", "spectrum": {"channels": {"A": 5}}}`)

	r, err := NormalizeJSON(payload)
	require.NoError(t, err)
	require.NotNil(t, r.Spectrum)
	require.NotNil(t, r.Spectrum.Average)
	assert.Equal(t, 5.0, *r.Spectrum.Average)
}

func TestNormalizeKeepsExplicitAverage(t *testing.T) {
	payload := []byte(`{
		"timestamp": "2025-01-01T00:00:00Z",
		"spectrum": {"channels": {"A": 10, "B": 20}, "average": 99}
	}`)

	r, err := NormalizeJSON(payload)
	require.NoError(t, err)
	require.NotNil(t, r.Spectrum.Average)
	assert.Equal(t, 99.0, *r.Spectrum.Average)
}

func TestNormalizeEpochTimestamps(t *testing.T) {
	cases := map[string]struct {
		payload []byte
		want    time.Time
	}{
		"seconds": {
			payload: []byte(`{"timestamp": 1735689600, "turbidity": 1}`),
			want:    time.Unix(1735689600, 0).UTC(),
		},
		"milliseconds": {
			payload: []byte(`{"timestamp": 1735689600000, "turbidity": 1}`),
			want:    time.UnixMilli(1735689600000).UTC(),
		},
		"numeric string": {
			payload: []byte(`{"timestamp": "1735689600", "turbidity": 1}`),
			want:    time.Unix(1735689600, 0).UTC(),
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r, err := NormalizeJSON(tc.payload)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(r.Timestamp), "got %s", r.Timestamp)
		})
	}
}

func TestNormalizeRejectsGarbageTimestamp(t *testing.T) {
	_, err := NormalizeJSON([]byte(`{"timestamp": "yesterday-ish", "turbidity": 1}`))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestNormalizeRejectsNonFiniteTimestamp(t *testing.T) {
	// strconv.ParseFloat accepts these, but none of them is an instant.
	for _, ts := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "Infinity"} {
		payload := fmt.Sprintf(`{"timestamp": %q, "turbidity": 1}`, ts)
		_, err := NormalizeJSON([]byte(payload))
		assert.ErrorIs(t, err, ErrInvalidPayload, "timestamp %s", ts)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	payload := []byte(`{
		"timestamp": "2025-06-15T08:00:00Z",
		"location": "dock",
		"turbidity": 2.2,
		"spectrum": {"channels": {"A": 10, "B": 30}}
	}`)

	first, err := NormalizeJSON(payload)
	require.NoError(t, err)
	second, err := NormalizeJSON(payload)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizeRoundTripsThroughMarshal(t *testing.T) {
	payload := []byte(`{
		"timestamp": "2025-06-15T08:00:00Z",
		"location": "dock",
		"turbidity": 2.2,
		"pH": 7.4,
		"spectrum": {"sensor_type": "AS7265X", "channels": {"A": 60}, "readings_count": 3}
	}`)

	original, err := NormalizeJSON(payload)
	require.NoError(t, err)

	serialized, err := original.MarshalJSON()
	require.NoError(t, err)

	restored, err := NormalizeJSON(serialized)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}
