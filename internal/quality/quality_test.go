package quality

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chongyong/aquaview/internal/reading"
)

func ptr(v float64) *float64 { return &v }

func readingAt(fields func(*reading.Reading)) reading.Reading {
	r := reading.Reading{
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Location:  "dock",
	}
	fields(&r)
	return r
}

func TestAnalyzeCleanWaterIsExcellent(t *testing.T) {
	r := readingAt(func(r *reading.Reading) {
		r.Turbidity = ptr(0.4)
		r.Spectrum = &reading.Spectrum{Average: ptr(200)}
	})

	a := Analyze(r)
	assert.Equal(t, StatusExcellent, a.Status)
	assert.Equal(t, 100, a.Score)
	assert.Empty(t, a.Issues)
}

func TestAnalyzeSlightTurbidityIsMinor(t *testing.T) {
	a := Analyze(readingAt(func(r *reading.Reading) { r.Turbidity = ptr(2.5) }))

	assert.Equal(t, StatusFair, a.Status)
	assert.Equal(t, 75, a.Score)
	require.Len(t, a.Issues, 1)
	assert.Contains(t, a.Issues[0], "slightly turbid")
}

func TestAnalyzeDirtyWaterIsAtLeastPoor(t *testing.T) {
	a := Analyze(readingAt(func(r *reading.Reading) { r.Turbidity = ptr(12.0) }))

	assert.Contains(t, []Status{StatusPoor, StatusCritical}, a.Status)
	require.NotEmpty(t, a.Issues)
	assert.Contains(t, strings.ToLower(a.Issues[0]), "turbid")
	require.NotNil(t, a.Turbidity)
	assert.Equal(t, 12.0, *a.Turbidity)
}

func TestAnalyzeSevereWordingAboveSevereBound(t *testing.T) {
	moderate := Analyze(readingAt(func(r *reading.Reading) { r.Turbidity = ptr(7.0) }))
	severe := Analyze(readingAt(func(r *reading.Reading) { r.Turbidity = ptr(15.0) }))

	assert.Contains(t, moderate.Issues[0], "moderately turbid")
	assert.Contains(t, severe.Issues[0], "severely turbid")
}

func TestAnalyzeLowSpectralAverage(t *testing.T) {
	a := Analyze(readingAt(func(r *reading.Reading) {
		r.Spectrum = &reading.Spectrum{Channels: map[string]float64{"A": 5}, Average: ptr(5)}
	}))

	require.NotEmpty(t, a.Issues)
	assert.Contains(t, a.Issues[0], "low light transmission")
	assert.True(t, a.Status.Worse(StatusGood))
}

func TestAnalyzeHighSpectralAverage(t *testing.T) {
	a := Analyze(readingAt(func(r *reading.Reading) {
		r.Spectrum = &reading.Spectrum{Average: ptr(950)}
	}))

	require.Len(t, a.Issues, 1)
	assert.Contains(t, a.Issues[0], "abnormal light reading")
}

func TestAnalyzeChannelIssuesCiteChannelName(t *testing.T) {
	a := Analyze(readingAt(func(r *reading.Reading) {
		r.Spectrum = &reading.Spectrum{
			Channels: map[string]float64{"A": 100, "B": 5, "C": 1500},
			Average:  ptr(300),
		}
	}))

	require.Len(t, a.Issues, 2)
	assert.Contains(t, a.Issues[0], "channel B")
	assert.Contains(t, a.Issues[1], "channel C")
}

func TestAnalyzeIssuesAccumulateAcrossChecks(t *testing.T) {
	a := Analyze(readingAt(func(r *reading.Reading) {
		r.Turbidity = ptr(8.0)
		r.Spectrum = &reading.Spectrum{
			Channels: map[string]float64{"A": 3},
			Average:  ptr(3),
		}
	}))

	// Major turbidity, low average, channel A out of band.
	require.Len(t, a.Issues, 3)
	assert.Equal(t, 0, a.Score)
	assert.Equal(t, StatusCritical, a.Status)
}

func TestAnalyzeNoDataIsDistinct(t *testing.T) {
	a := Analyze(readingAt(func(r *reading.Reading) {
		r.TurbidityVoltage = ptr(2.5)
	}))

	assert.Equal(t, StatusNoData, a.Status)
	assert.NotContains(t, []Status{
		StatusExcellent, StatusGood, StatusFair, StatusPoor, StatusCritical,
	}, a.Status)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	r := readingAt(func(r *reading.Reading) {
		r.Turbidity = ptr(6.5)
		r.Spectrum = &reading.Spectrum{
			Channels: map[string]float64{"A": 10, "B": 1200, "C": 15, "D": 600},
			Average:  ptr(456),
		}
	})

	first := Analyze(r)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Analyze(r))
	}
}

func TestAnalyzeStatusMatchesScoreBand(t *testing.T) {
	cases := []reading.Reading{
		readingAt(func(r *reading.Reading) { r.Turbidity = ptr(0.1) }),
		readingAt(func(r *reading.Reading) { r.Turbidity = ptr(3.0) }),
		readingAt(func(r *reading.Reading) { r.Turbidity = ptr(7.0) }),
		readingAt(func(r *reading.Reading) { r.Turbidity = ptr(20.0) }),
		readingAt(func(r *reading.Reading) {
			r.Turbidity = ptr(20.0)
			r.Spectrum = &reading.Spectrum{Channels: map[string]float64{"A": 1, "B": 2}, Average: ptr(1.5)}
		}),
	}

	for _, r := range cases {
		a := Analyze(r)
		assert.Equal(t, statusForScore(a.Score), a.Status,
			"score %d must map to its band", a.Score)
	}
}

func TestAnalyzeEmptyIssuesForGoodTiers(t *testing.T) {
	a := Analyze(readingAt(func(r *reading.Reading) { r.Turbidity = ptr(0.2) }))
	require.Equal(t, StatusExcellent, a.Status)
	assert.NotNil(t, a.Issues)
	assert.Empty(t, a.Issues)
}

func TestThresholdOverrides(t *testing.T) {
	strict := DefaultThresholds
	strict.TurbidityClean = 0.1

	a := strict.Analyze(readingAt(func(r *reading.Reading) { r.Turbidity = ptr(0.5) }))
	require.Len(t, a.Issues, 1)
	assert.Contains(t, a.Issues[0], "slightly turbid")

	relaxed := DefaultThresholds
	relaxed.TurbidityDirty = 50
	relaxed.TurbiditySevere = 100

	b := relaxed.Analyze(readingAt(func(r *reading.Reading) { r.Turbidity = ptr(12.0) }))
	require.Len(t, b.Issues, 1)
	assert.Contains(t, b.Issues[0], "slightly turbid")
}

func TestStatusWorseOrdering(t *testing.T) {
	assert.True(t, StatusCritical.Worse(StatusPoor))
	assert.True(t, StatusPoor.Worse(StatusFair))
	assert.True(t, StatusFair.Worse(StatusGood))
	assert.True(t, StatusGood.Worse(StatusExcellent))
	assert.False(t, StatusExcellent.Worse(StatusCritical))
}
