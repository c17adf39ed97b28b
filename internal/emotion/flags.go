package emotion

import (
	"slices"

	"kwik.app/dispatch/internal/model"
)

const (
	FlagHighDistress        = "HIGH_DISTRESS"
	FlagCallerPanic         = "CALLER_PANIC"
	FlagPotentialViolence   = "POTENTIAL_VIOLENCE"
	FlagMentalHealthConcern = "MENTAL_HEALTH_CONCERN"
)

// flagWindow is the number of top emotions the flag rules look at.
const flagWindow = 10

// highPriorityThreshold is exclusive: a distress level of exactly 50 is not high priority.
const highPriorityThreshold = 50.0

// FlagRule raises Flag when one of Labels averages strictly above Threshold,
// contributing intensity*Weight to the distress level. Labels are case-sensitive.
type FlagRule struct {
	Flag      string
	Labels    []string
	Threshold float64
	Weight    float64
}

var DefaultFlagRules = []FlagRule{
	{Flag: FlagHighDistress, Labels: []string{"fear", "distress"}, Threshold: 0.7, Weight: 30},
	{Flag: FlagCallerPanic, Labels: []string{"anxiety"}, Threshold: 0.7, Weight: 20},
	{Flag: FlagPotentialViolence, Labels: []string{"anger"}, Threshold: 0.6, Weight: 25},
	{Flag: FlagMentalHealthConcern, Labels: []string{"sadness"}, Threshold: 0.8, Weight: 15},
}

// EvaluateFlags applies rules to a list of top emotions. Flags are
// deduplicated in first-raised order and the distress level is clamped to [0,100].
func EvaluateFlags(top []model.TopEmotion, rules []FlagRule) model.EmergencyFlags {
	flags := []string{}
	distress := 0.0

	for _, te := range top {
		for _, rule := range rules {
			if te.Intensity <= rule.Threshold || !slices.Contains(rule.Labels, te.Emotion) {
				continue
			}
			if !slices.Contains(flags, rule.Flag) {
				flags = append(flags, rule.Flag)
			}
			distress += te.Intensity * rule.Weight
		}
	}

	distress = min(max(distress, 0), 100)

	return model.EmergencyFlags{
		IsHighPriority: distress > highPriorityThreshold,
		Flags:          flags,
		DistressLevel:  distress,
	}
}
