package reading

import "sort"

// DefaultHistoryLimit caps the in-memory historical series.
const DefaultHistoryLimit = 100

// Merge combines an incoming batch with an existing ordered series. Entries
// are keyed by canonical timestamp; a collision is resolved by mergeReadings,
// not plain replacement. The result is sorted ascending by instant and
// truncated to the most recent limit entries. Neither input is mutated.
func Merge(current []Reading, incoming []Reading, limit int) []Reading {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	byTS := make(map[string]Reading, len(current)+len(incoming))
	for _, r := range current {
		byTS[r.CanonicalTimestamp()] = r
	}
	for _, r := range incoming {
		key := r.CanonicalTimestamp()
		if old, ok := byTS[key]; ok {
			byTS[key] = mergeReadings(old, r)
		} else {
			byTS[key] = r
		}
	}

	merged := make([]Reading, 0, len(byTS))
	for _, r := range byTS {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	if len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged
}

// mergeReadings folds two readings for the same instant into one. The policy
// per field:
//
//	timestamp            prefer newer
//	location             prefer newer, unless newer is the unknown sentinel
//	turbidity, voltage   prefer newer non-absent
//	pH                   prefer newer non-absent
//	spectrum.channels    union by channel name, newer wins per key
//	spectrum scalars     prefer newer non-absent
func mergeReadings(older, newer Reading) Reading {
	out := Reading{
		Timestamp:        newer.Timestamp,
		Location:         newer.Location,
		Turbidity:        preferFloat(newer.Turbidity, older.Turbidity),
		TurbidityVoltage: preferFloat(newer.TurbidityVoltage, older.TurbidityVoltage),
		PH:               preferFloat(newer.PH, older.PH),
		Spectrum:         mergeSpectrum(older.Spectrum, newer.Spectrum),
	}
	if out.Location == UnknownLocation && older.Location != "" {
		out.Location = older.Location
	}
	return out
}

func mergeSpectrum(older, newer *Spectrum) *Spectrum {
	switch {
	case newer == nil:
		return older
	case older == nil:
		return newer
	}

	out := &Spectrum{
		SensorType:    newer.SensorType,
		Average:       preferFloat(newer.Average, older.Average),
		ReadingsCount: newer.ReadingsCount,
	}
	if out.SensorType == "" {
		out.SensorType = older.SensorType
	}
	if out.ReadingsCount == nil {
		out.ReadingsCount = older.ReadingsCount
	}

	if len(older.Channels) > 0 || len(newer.Channels) > 0 {
		out.Channels = make(map[string]float64, len(older.Channels)+len(newer.Channels))
		for k, v := range older.Channels {
			out.Channels[k] = v
		}
		for k, v := range newer.Channels {
			out.Channels[k] = v
		}
	}
	return out
}

func preferFloat(newer, older *float64) *float64 {
	if newer != nil {
		return newer
	}
	return older
}
