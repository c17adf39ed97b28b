package triage_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/triage"
)

func ptr[T any](v T) *T {
	return &v
}

var _ = Describe("Fuse", func() {
	It("starts from the neutral score without inputs", func() {
		score, severity := triage.Fuse(nil, nil)
		Expect(score).To(Equal(50.0))
		Expect(severity).To(Equal(model.SeverityMedium))
	})

	It("boosts the extractor severity by the top emotion", func() {
		score, severity := triage.Fuse(ptr(60.0), &model.TopEmotion{Emotion: "fear", Intensity: 1.0})
		Expect(score).To(Equal(80.0))
		Expect(severity).To(Equal(model.SeverityCritical))
	})

	DescribeTable("applies the boost table",
		func(emotion string, expected float64) {
			score, _ := triage.Fuse(ptr(10.0), &model.TopEmotion{Emotion: emotion, Intensity: 1.0})
			Expect(score).To(BeNumerically("~", expected, 1e-9))
		},
		Entry("fear", "fear", 30.0),
		Entry("distress", "distress", 30.0),
		Entry("panic", "panic", 35.0),
		Entry("anxiety", "anxiety", 25.0),
		Entry("anger", "anger", 25.0),
		Entry("sadness", "sadness", 20.0),
		Entry("unlisted label", "calm", 10.0),
		Entry("labels are case-sensitive", "Fear", 10.0),
	)

	DescribeTable("clamps to [0,100]",
		func(severity float64, top *model.TopEmotion, expected float64) {
			score, _ := triage.Fuse(ptr(severity), top)
			Expect(score).To(Equal(expected))
		},
		Entry("above range", 95.0, &model.TopEmotion{Emotion: "panic", Intensity: 1.0}, 100.0),
		Entry("below range", -20.0, nil, 0.0),
		Entry("positive infinity", math.Inf(1), nil, 100.0),
		Entry("negative infinity", math.Inf(-1), &model.TopEmotion{Emotion: "fear", Intensity: 0.5}, 0.0),
	)

	It("treats a NaN severity as absent", func() {
		score, severity := triage.Fuse(ptr(math.NaN()), nil)
		Expect(score).To(Equal(50.0))
		Expect(severity).To(Equal(model.SeverityMedium))
	})

	It("ignores a NaN intensity", func() {
		score, _ := triage.Fuse(ptr(42.0), &model.TopEmotion{Emotion: "fear", Intensity: math.NaN()})
		Expect(score).To(Equal(42.0))
	})

	It("is pure", func() {
		top := &model.TopEmotion{Emotion: "anger", Intensity: 0.73}
		s1, l1 := triage.Fuse(ptr(51.5), top)
		s2, l2 := triage.Fuse(ptr(51.5), top)
		Expect(s1).To(Equal(s2))
		Expect(l1).To(Equal(l2))
	})

	It("keeps the label consistent with the score across the range", func() {
		labels := []model.Severity{model.SeverityLow, model.SeverityMedium, model.SeverityHigh, model.SeverityCritical}
		for s := -10.0; s <= 110.0; s += 0.5 {
			score, severity := triage.Fuse(ptr(s), &model.TopEmotion{Emotion: "sadness", Intensity: 0.3})
			Expect(score).To(BeNumerically(">=", 0))
			Expect(score).To(BeNumerically("<=", 100))
			Expect(labels).To(ContainElement(severity))
			Expect(severity).To(Equal(triage.SeverityFor(score)))
		}
	})
})

var _ = Describe("ladders", func() {
	DescribeTable("SeverityFor uses inclusive lower bounds",
		func(score float64, expected model.Severity) {
			Expect(triage.SeverityFor(score)).To(Equal(expected))
		},
		Entry("100", 100.0, model.SeverityCritical),
		Entry("80", 80.0, model.SeverityCritical),
		Entry("79.99", 79.99, model.SeverityHigh),
		Entry("60", 60.0, model.SeverityHigh),
		Entry("59.99", 59.99, model.SeverityMedium),
		Entry("40", 40.0, model.SeverityMedium),
		Entry("39.99", 39.99, model.SeverityLow),
		Entry("0", 0.0, model.SeverityLow),
	)

	DescribeTable("CallerConditionFor uses its own cut-points",
		func(score float64, expected model.CallerCondition) {
			Expect(triage.CallerConditionFor(score)).To(Equal(expected))
		},
		Entry("70", 70.0, model.CallerConditionPanicked),
		Entry("69.9", 69.9, model.CallerConditionDistressed),
		Entry("50", 50.0, model.CallerConditionDistressed),
		Entry("49.9", 49.9, model.CallerConditionUnclear),
		Entry("30", 30.0, model.CallerConditionUnclear),
		Entry("29.9", 29.9, model.CallerConditionCalm),
	)

	It("can disagree with the severity ladder", func() {
		Expect(triage.SeverityFor(65)).To(Equal(model.SeverityHigh))
		Expect(triage.CallerConditionFor(65)).To(Equal(model.CallerConditionDistressed))
	})
})
