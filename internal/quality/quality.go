// Package quality derives a water-quality assessment from a canonical
// reading.
package quality

import (
	"fmt"
	"sort"

	"github.com/chongyong/aquaview/internal/reading"
)

// Status is one of the ordered quality tiers, plus a distinct no-data state.
type Status string

const (
	StatusExcellent Status = "excellent"
	StatusGood      Status = "good"
	StatusFair      Status = "fair"
	StatusPoor      Status = "poor"
	StatusCritical  Status = "critical"

	// StatusNoData marks a reading with no usable numeric value. It must
	// never be confused with the real tiers.
	StatusNoData Status = "no_data"
)

// rank orders the real tiers for severity comparison, best first.
var rank = map[Status]int{
	StatusExcellent: 0,
	StatusGood:      1,
	StatusFair:      2,
	StatusPoor:      3,
	StatusCritical:  4,
}

// Worse reports whether s is a strictly worse tier than other.
func (s Status) Worse(other Status) bool {
	return rank[s] > rank[other]
}

// Thresholds is the single source of truth for the banding constants. The
// zero value is never used; start from DefaultThresholds and override fields
// as needed.
type Thresholds struct {
	// Turbidity bands, in NTU. Below Clean there is no penalty; between
	// Clean and Dirty the water is slightly turbid (minor issue); above
	// Dirty it is moderately turbid (major issue, tier capped at poor);
	// above Severe the wording escalates.
	TurbidityClean  float64
	TurbidityDirty  float64
	TurbiditySevere float64

	// Normal band for the average spectral intensity.
	SpectralAverageMin float64
	SpectralAverageMax float64

	// Wider band applied to each individual channel.
	SpectralChannelMin float64
	SpectralChannelMax float64

	// Score penalties per issue tier; score starts at 100 and floors at 0.
	MinorPenalty int
	MajorPenalty int
}

// DefaultThresholds is the canonical threshold set.
var DefaultThresholds = Thresholds{
	TurbidityClean:     1.0,
	TurbidityDirty:     5.0,
	TurbiditySevere:    10.0,
	SpectralAverageMin: 50,
	SpectralAverageMax: 800,
	SpectralChannelMin: 20,
	SpectralChannelMax: 1000,
	MinorPenalty:       25,
	MajorPenalty:       50,
}

// Score-to-tier breakpoints. Status is derived from the score, not the
// reverse. A single issue costs at least MinorPenalty, so excellent and good
// are only reachable with an empty issue list.
const (
	scoreExcellent = 90
	scoreGood      = 80
	scoreFair      = 50
	scorePoor      = 25
)

// Assessment is the derived quality classification for one reading. It is
// recomputed fresh on every evaluation and never mutated.
type Assessment struct {
	Status    Status   `json:"status"`
	Score     int      `json:"score"`
	Issues    []string `json:"issues"`
	Turbidity *float64 `json:"turbidity,omitempty"`
}

// Analyze computes the assessment for one reading using the default
// thresholds.
func Analyze(r reading.Reading) Assessment {
	return DefaultThresholds.Analyze(r)
}

// Analyze computes the assessment for one reading. It is deterministic and
// side-effect free.
func (t Thresholds) Analyze(r reading.Reading) Assessment {
	var (
		issues []string
		minor  int
		major  int
	)

	if r.Turbidity != nil {
		ntu := *r.Turbidity
		switch {
		case ntu > t.TurbiditySevere:
			issues = append(issues, fmt.Sprintf(
				"water is severely turbid (%.2f NTU, threshold: %.1f)", ntu, t.TurbidityDirty))
			major++
		case ntu > t.TurbidityDirty:
			issues = append(issues, fmt.Sprintf(
				"water is moderately turbid (%.2f NTU, threshold: %.1f)", ntu, t.TurbidityDirty))
			major++
		case ntu >= t.TurbidityClean:
			issues = append(issues, fmt.Sprintf(
				"water is slightly turbid (%.2f NTU, clean below %.1f)", ntu, t.TurbidityClean))
			minor++
		}
	}

	hasSpectral := false
	if r.Spectrum != nil {
		if avg := r.Spectrum.Average; avg != nil {
			hasSpectral = true
			switch {
			case *avg < t.SpectralAverageMin:
				issues = append(issues, fmt.Sprintf(
					"low light transmission (%.2f, minimum: %.0f)", *avg, t.SpectralAverageMin))
				minor++
			case *avg > t.SpectralAverageMax:
				issues = append(issues, fmt.Sprintf(
					"abnormal light reading (%.2f, max: %.0f)", *avg, t.SpectralAverageMax))
				minor++
			}
		}

		if len(r.Spectrum.Channels) > 0 {
			hasSpectral = true
			// Channel order in the map is not stable; sort so repeated
			// analysis of the same reading yields identical issue lists.
			names := make([]string, 0, len(r.Spectrum.Channels))
			for name := range r.Spectrum.Channels {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				v := r.Spectrum.Channels[name]
				if v < t.SpectralChannelMin || v > t.SpectralChannelMax {
					issues = append(issues, fmt.Sprintf(
						"channel %s outside expected band (%.2f, band: %.0f-%.0f)",
						name, v, t.SpectralChannelMin, t.SpectralChannelMax))
					minor++
				}
			}
		}
	}

	if r.Turbidity == nil && !hasSpectral {
		return Assessment{Status: StatusNoData, Issues: []string{}}
	}

	score := 100 - minor*t.MinorPenalty - major*t.MajorPenalty
	if score < 0 {
		score = 0
	}
	// A major finding caps the tier at poor or worse. The cap is applied to
	// the score so status stays derivable from the score bands alone.
	if major > 0 && score >= scoreFair {
		score = scoreFair - 1
	}

	status := statusForScore(score)

	if issues == nil {
		issues = []string{}
	}
	return Assessment{
		Status:    status,
		Score:     score,
		Issues:    issues,
		Turbidity: r.Turbidity,
	}
}

func statusForScore(score int) Status {
	switch {
	case score >= scoreExcellent:
		return StatusExcellent
	case score >= scoreGood:
		return StatusGood
	case score >= scoreFair:
		return StatusFair
	case score >= scorePoor:
		return StatusPoor
	default:
		return StatusCritical
	}
}
