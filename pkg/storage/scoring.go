package storage

import (
	"math"
	"sort"
)

// Scoring constants shared by every backend.
const (
	// frequencyWeight scales the logarithmic retrieval boost.
	frequencyWeight = 0.3

	// recencyHalfLifeDays is the half-life of the recency factor: a
	// memory untouched for 14 days is worth half its fresh value.
	recencyHalfLifeDays = 14.0
)

// FrequencyBoost rewards repeated retrieval logarithmically:
// 1 + log(1+n) * 0.3.
func FrequencyBoost(retrievalCount int) float64 {
	if retrievalCount < 0 {
		retrievalCount = 0
	}
	return 1 + math.Log(1+float64(retrievalCount))*frequencyWeight
}

// Recency halves a memory's weight every 14 days since last access:
// 2^(-days/14).
func Recency(daysSinceLastAccess float64) float64 {
	if daysSinceLastAccess < 0 {
		daysSinceLastAccess = 0
	}
	return math.Exp2(-daysSinceLastAccess / recencyHalfLifeDays)
}

// EffectiveScore is the universal ranking scalar:
// importance * FrequencyBoost * Recency.
func EffectiveScore(importance float64, retrievalCount int, daysSinceLastAccess float64) float64 {
	return importance * FrequencyBoost(retrievalCount) * Recency(daysSinceLastAccess)
}

// UsageScore ranks core memories by pure usage, ignoring importance:
// FrequencyBoost * Recency.
func UsageScore(retrievalCount int, daysSinceLastAccess float64) float64 {
	return FrequencyBoost(retrievalCount) * Recency(daysSinceLastAccess)
}

// ParetoThreshold returns the score value such that pct of the scores lie
// below it, within one element. With pct 0.8 the returned value is the
// entry opening the top 20%. An empty input yields 0.
func ParetoThreshold(scores []float64, pct float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	if pct < 0 {
		pct = 0
	} else if pct > 1 {
		pct = 1
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	idx := int(math.Floor(pct * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// DecayHalfLife resolves the half-life for one memory: the category curve
// when present, otherwise base * (1 + (importance-0.5) * multiplier).
// Important memories decay slower, unimportant ones faster.
func DecayHalfLife(importance, baseHalfLifeDays, importanceMultiplier float64, category string, curves map[string]DecayCurve) float64 {
	if curve, ok := curves[category]; ok && curve.HalfLifeDays > 0 {
		return curve.HalfLifeDays
	}
	h := baseHalfLifeDays * (1 + (importance-DefaultImportance)*importanceMultiplier)
	if h <= 0 {
		h = baseHalfLifeDays
	}
	return h
}

// RetentionAt returns importance * 2^(-ageDays/halfLife), the decayed
// worth of a memory at the given age.
func RetentionAt(importance, ageDays, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 0
	}
	if ageDays < 0 {
		ageDays = 0
	}
	return importance * math.Exp2(-ageDays/halfLifeDays)
}

// IsDecayed reports whether a memory has decayed below the retention
// threshold. Pinned and core memories never decay.
func IsDecayed(m *Memory, ageDays float64, opts *DecayOptions) bool {
	if m.UserPinned || m.Category == CategoryCore {
		return false
	}
	h := DecayHalfLife(m.Importance, opts.BaseHalfLifeDays, opts.ImportanceMultiplier, m.Category, opts.DecayCurves)
	return RetentionAt(m.Importance, ageDays, h) < opts.RetentionThreshold
}
