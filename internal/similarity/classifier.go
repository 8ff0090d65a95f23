// Package similarity scores how close a project proposal is to previously
// submitted work and classifies the result into ordinal flags.
package similarity

import "fmt"

// Flag is the ordinal similarity category stored on a project.
type Flag string

const (
	FlagUnique           Flag = "UNIQUE"
	FlagMediumSimilarity Flag = "MEDIUM_SIMILARITY"
	FlagHighSimilarity   Flag = "HIGH_SIMILARITY"
	FlagDuplicate        Flag = "DUPLICATE"
)

// Default cutoffs, inclusive lower bounds on a 0-100 score.
const (
	DefaultDuplicateThreshold = 92.0
	DefaultHighThreshold      = 78.0
	DefaultMediumThreshold    = 65.0
)

// Thresholds are the classifier cutoffs.
type Thresholds struct {
	Duplicate float64 `json:"duplicate"`
	High      float64 `json:"high_similarity"`
	Medium    float64 `json:"medium_similarity"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Duplicate: DefaultDuplicateThreshold,
		High:      DefaultHighThreshold,
		Medium:    DefaultMediumThreshold,
	}
}

// Validate checks the cutoffs lie in [0,100] and are ordered.
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{"duplicate": t.Duplicate, "high": t.High, "medium": t.Medium} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s threshold %.2f out of range [0,100]", name, v)
		}
	}
	if t.Medium > t.High || t.High > t.Duplicate {
		return fmt.Errorf("thresholds must satisfy medium <= high <= duplicate, got %.2f/%.2f/%.2f", t.Medium, t.High, t.Duplicate)
	}
	return nil
}

// Classify maps a score to a flag. Cutoffs are checked high to low and the
// first match wins; negative scores always classify as UNIQUE.
func (t Thresholds) Classify(score float64) Flag {
	switch {
	case score >= t.Duplicate:
		return FlagDuplicate
	case score >= t.High:
		return FlagHighSimilarity
	case score >= t.Medium:
		return FlagMediumSimilarity
	default:
		return FlagUnique
	}
}

// Classify uses the default cutoffs.
func Classify(score float64) Flag {
	return DefaultThresholds().Classify(score)
}
