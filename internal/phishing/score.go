package phishing

import (
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultThreshold is the classification cut-off at default sensitivity
	DefaultThreshold = 0.6
	// DefaultSensitivity maps to DefaultThreshold
	DefaultSensitivity = 25
	// trustDiscount is subtracted from the base score of trusted domains
	trustDiscount = 0.4
)

// ThresholdFromSensitivity maps the 0-100 sensitivity knob onto the
// classification threshold. Higher sensitivity means a lower threshold.
func ThresholdFromSensitivity(sensitivity int) float64 {
	t := 1 - (float64(sensitivity)/100*0.4 + 0.3)
	return clamp(t, 0.4, 0.9)
}

// ValidateThreshold checks a threshold is a probability
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalidConfig, threshold)
	}
	return nil
}

// ComposeScore computes the base phishing score: the weighted sum of the
// normalized features plus rule bonuses, divided by the total weight and
// capped at 1. The bonuses share the weight divisor.
func ComposeScore(f FeatureVector, weights map[string]float64, brandPatternMatch bool) float64 {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	var score, totalWeight float64
	for _, name := range names {
		value, ok := f.Value(name)
		if !ok {
			continue
		}
		w := weights[name]
		score += Normalize(name, value) * w
		totalWeight += w
	}

	if totalWeight <= 0 {
		return 0
	}

	score += ruleBonus(f, brandPatternMatch)

	return math.Min(1, score/totalWeight)
}

func ruleBonus(f FeatureVector, brandPatternMatch bool) float64 {
	var (
		bonus       float64
		keywords    = f.HasSuspiciousKeywords > 0
		path        = f.HasSuspiciousPath > 0
		dash        = f.DomainHasDash > 0
		http        = f.IsHTTP > 0
		brandStrong = f.BrandSimilarity > 0.5
	)

	if brandStrong {
		bonus += 0.15
		if keywords {
			bonus += 0.2
		}
		if path && dash {
			bonus += 0.25
		}
	}

	if brandPatternMatch {
		bonus += 0.3
	}

	if f.HasIPAddress > 0 {
		bonus += 0.1
		if http {
			bonus += 0.15
		}
		if path || keywords {
			bonus += 0.2
		}
	}

	if f.TLDIsRisky > 0 && keywords {
		bonus += 0.1
	}
	if f.NonASCIICharCount > 0 && brandStrong {
		bonus += 0.2
	}
	if f.TrigramSuspiciousness > 0.3 && dash {
		bonus += 0.2
	}
	if f.BrandSimilarity > 0.7 && keywords {
		bonus += 0.15
	}
	if http && (keywords || path) {
		bonus += 0.1
	}

	return bonus
}

// ApplyTrust lowers the base score of allowlisted domains
func ApplyTrust(base float64, trusted bool) float64 {
	if !trusted {
		return base
	}
	return math.Max(0, base-trustDiscount)
}

// Classify reports whether score is strictly above threshold
func Classify(score, threshold float64) bool {
	return score > threshold
}

// Confidence converts a score into a 0-100 integer
func Confidence(score float64) int {
	return int(math.Round(clamp(score, 0, 1) * 100))
}
