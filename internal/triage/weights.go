package triage

import (
	"math"

	"kwik.app/dispatch/internal/model"
)

// SeverityStep maps scores at or above Min to Label.
type SeverityStep struct {
	Min   float64        `json:"min"`
	Label model.Severity `json:"label"`
}

// ConditionStep maps scores at or above Min to Label.
type ConditionStep struct {
	Min   float64               `json:"min"`
	Label model.CallerCondition `json:"label"`
}

// Weights holds every table the fusion engine and the caller-condition
// ladder read. Ladders are ordered highest threshold first.
type Weights struct {
	NeutralSeverity float64               `json:"neutral_severity"`
	EmotionBoost    map[string]float64    `json:"emotion_boost"`
	SeverityLadder  []SeverityStep        `json:"severity_ladder"`
	SeverityFloor   model.Severity        `json:"severity_floor"`
	ConditionLadder []ConditionStep       `json:"condition_ladder"`
	ConditionFloor  model.CallerCondition `json:"condition_floor"`
}

// DefaultWeights is the only copy of the scoring tables; the weights endpoint serves it as-is.
var DefaultWeights = Weights{
	NeutralSeverity: 50,
	EmotionBoost: map[string]float64{
		"fear":     20,
		"distress": 20,
		"panic":    25,
		"anxiety":  15,
		"anger":    15,
		"sadness":  10,
	},
	SeverityLadder: []SeverityStep{
		{Min: 80, Label: model.SeverityCritical},
		{Min: 60, Label: model.SeverityHigh},
		{Min: 40, Label: model.SeverityMedium},
	},
	SeverityFloor: model.SeverityLow,
	// Not aligned with the severity ladder.
	ConditionLadder: []ConditionStep{
		{Min: 70, Label: model.CallerConditionPanicked},
		{Min: 50, Label: model.CallerConditionDistressed},
		{Min: 30, Label: model.CallerConditionUnclear},
	},
	ConditionFloor: model.CallerConditionCalm,
}

// Fuse combines an extractor severity with the top emotion using DefaultWeights.
func Fuse(triageSeverity *float64, top *model.TopEmotion) (float64, model.Severity) {
	return DefaultWeights.Fuse(triageSeverity, top)
}

// Fuse returns a score in [0,100] and its severity bucket. A nil or NaN
// severity starts from the neutral score; an extracted 0 is a real score and
// is kept. The top emotion adds boost*intensity for listed labels.
func (w Weights) Fuse(triageSeverity *float64, top *model.TopEmotion) (float64, model.Severity) {
	score := w.NeutralSeverity
	if triageSeverity != nil && !math.IsNaN(*triageSeverity) {
		score = *triageSeverity
	}

	if top != nil {
		if weight := w.EmotionBoost[top.Emotion]; weight != 0 {
			boost := weight * top.Intensity
			if boosted := score + boost; !math.IsNaN(boosted) {
				score = boosted
			}
		}
	}

	score = clampScore(score)
	return score, w.SeverityFor(score)
}

func (w Weights) SeverityFor(score float64) model.Severity {
	for _, step := range w.SeverityLadder {
		if score >= step.Min {
			return step.Label
		}
	}
	return w.SeverityFloor
}

func (w Weights) CallerConditionFor(score float64) model.CallerCondition {
	for _, step := range w.ConditionLadder {
		if score >= step.Min {
			return step.Label
		}
	}
	return w.ConditionFloor
}

func SeverityFor(score float64) model.Severity {
	return DefaultWeights.SeverityFor(score)
}

func CallerConditionFor(score float64) model.CallerCondition {
	return DefaultWeights.CallerConditionFor(score)
}

func clampScore(score float64) float64 {
	return min(max(score, 0), 100)
}
