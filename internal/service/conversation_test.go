package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/queue"
	"kwik.app/dispatch/internal/service"
)

var _ = Describe("ConversationService", func() {
	var (
		ctx      context.Context
		producer *mockProducer
		svc      service.ConversationService
		t0       time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		producer = &mockProducer{}
		svc = service.NewConversationService(producer)
		t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})

	handle := func(event service.ConversationEvent) *service.EventResult {
		GinkgoHelper()
		result, err := svc.HandleEvent(ctx, event)
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	start := func(id string) {
		GinkgoHelper()
		handle(service.ConversationEvent{
			Type:           service.EventConversationStarted,
			ConversationID: id,
			CallerNumber:   "+14155550100",
			At:             t0,
		})
	}

	It("enqueues the conversation snapshot when the call ends", func() {
		start("conv-1")
		handle(service.ConversationEvent{
			Type:           service.EventUserMessage,
			ConversationID: "conv-1",
			Text:           "my kitchen is on fire",
			Emotions:       model.EmotionFrame{{Emotion: "fear", Intensity: 0.8}},
			At:             t0.Add(time.Second),
		})
		handle(service.ConversationEvent{
			Type:           service.EventUserMessage,
			ConversationID: "conv-1",
			Text:           "please hurry",
			At:             t0.Add(2 * time.Second),
		})

		result := handle(service.ConversationEvent{
			Type:           service.EventConversationEnded,
			ConversationID: "conv-1",
			At:             t0.Add(3 * time.Second),
		})

		Expect(result.Enqueued).To(BeTrue())
		Expect(producer.Tasks()).To(HaveLen(1))
		task := producer.Tasks()[0]
		Expect(task.ConversationID).To(Equal("conv-1"))
		Expect(task.CallerNumber).To(Equal("+14155550100"))
		Expect(task.Transcript).To(Equal("my kitchen is on fire please hurry"))
		Expect(task.Emotions).To(Equal([]model.EmotionReading{{Emotion: "fear", Intensity: 0.8}}))
	})

	It("turns topEmotion/intensity updates into frames", func() {
		start("conv-2")
		intensity := 0.9
		handle(service.ConversationEvent{
			Type:           service.EventEmotionUpdate,
			ConversationID: "conv-2",
			TopEmotion:     "fear",
			Intensity:      &intensity,
			At:             t0,
		})

		flags, err := svc.Flags(ctx, "conv-2", 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(flags.TopEmotions).To(Equal([]model.TopEmotion{{Emotion: "fear", Intensity: 0.9}}))
		Expect(flags.Flags.Flags).To(Equal([]string{"HIGH_DISTRESS"}))
		Expect(flags.Flags.DistressLevel).To(BeNumerically("~", 27, 1e-9))
		Expect(flags.Flags.IsHighPriority).To(BeFalse())
	})

	It("rejects events for unknown conversations", func() {
		_, err := svc.HandleEvent(ctx, service.ConversationEvent{
			Type:           service.EventUserMessage,
			ConversationID: "nope",
			Text:           "hello",
		})
		Expect(err).To(MatchError(service.ErrConversationNotFound))

		_, err = svc.Flags(ctx, "nope", 5)
		Expect(err).To(MatchError(service.ErrConversationNotFound))
	})

	It("rejects events after the conversation ended", func() {
		start("conv-3")
		handle(service.ConversationEvent{Type: service.EventConversationEnded, ConversationID: "conv-3", At: t0})

		_, err := svc.HandleEvent(ctx, service.ConversationEvent{
			Type:           service.EventUserMessage,
			ConversationID: "conv-3",
			Text:           "late",
		})
		Expect(err).To(MatchError(service.ErrConversationEnded))

		_, err = svc.HandleEvent(ctx, service.ConversationEvent{Type: service.EventConversationEnded, ConversationID: "conv-3"})
		Expect(err).To(MatchError(service.ErrConversationEnded))

		_, err = svc.HandleEvent(ctx, service.ConversationEvent{Type: service.EventConversationStarted, ConversationID: "conv-3"})
		Expect(err).To(MatchError(service.ErrConversationEnded))

		Expect(producer.Tasks()).To(HaveLen(1))
	})

	It("requires a conversation id", func() {
		_, err := svc.HandleEvent(ctx, service.ConversationEvent{Type: service.EventConversationStarted})
		Expect(err).To(MatchError(service.ErrInvalidEvent))
	})

	It("acknowledges unknown event types without handling them", func() {
		result := handle(service.ConversationEvent{Type: "evi:tool:call", ConversationID: "conv-4"})
		Expect(result.Handled).To(BeFalse())
	})

	It("surfaces enqueue failures", func() {
		boom := errors.New("redis down")
		producer.enqueueFn = func(context.Context, queue.ConversationTask) error { return boom }
		start("conv-5")

		_, err := svc.HandleEvent(ctx, service.ConversationEvent{Type: service.EventConversationEnded, ConversationID: "conv-5", At: t0})

		Expect(err).To(MatchError(boom))
	})

	It("re-enqueues on a repeated end event after a failed enqueue", func() {
		failures := 1
		producer.enqueueFn = func(context.Context, queue.ConversationTask) error {
			if failures > 0 {
				failures--
				return errors.New("redis down")
			}
			return nil
		}
		start("conv-9")
		handle(service.ConversationEvent{Type: service.EventUserMessage, ConversationID: "conv-9", Text: "smoke everywhere", At: t0})
		ended := service.ConversationEvent{Type: service.EventConversationEnded, ConversationID: "conv-9", At: t0.Add(time.Minute)}

		_, err := svc.HandleEvent(ctx, ended)
		Expect(err).To(MatchError(ContainSubstring("redis down")))

		_, err = svc.HandleEvent(ctx, service.ConversationEvent{Type: service.EventUserMessage, ConversationID: "conv-9", Text: "late", At: t0})
		Expect(err).To(MatchError(service.ErrConversationEnded))

		result := handle(ended)
		Expect(result.Enqueued).To(BeTrue())

		tasks := producer.Tasks()
		Expect(tasks).To(HaveLen(2))
		Expect(tasks[1].ConversationID).To(Equal("conv-9"))
		Expect(tasks[1].Transcript).To(Equal(tasks[0].Transcript))
		Expect(tasks[1].Transcript).To(ContainSubstring("smoke everywhere"))

		_, err = svc.HandleEvent(ctx, ended)
		Expect(err).To(MatchError(service.ErrConversationEnded))
		Expect(producer.Tasks()).To(HaveLen(2))
	})

	It("returns a snapshot with the upstream conversation id", func() {
		start("conv-6")

		data, err := svc.Snapshot(ctx, "conv-6")

		Expect(err).NotTo(HaveOccurred())
		Expect(data.ConversationID).To(Equal("conv-6"))
		Expect(data.Messages).To(HaveLen(1))
		Expect(data.Messages[0].Type).To(Equal(model.MessageTypeConversationStart))
		Expect(data.EndedAt).To(BeNil())
	})

	It("prunes idle sessions", func() {
		start("old")
		handle(service.ConversationEvent{
			Type:           service.EventConversationStarted,
			ConversationID: "fresh",
			At:             t0.Add(time.Hour),
		})

		Expect(svc.Prune(t0.Add(30 * time.Minute))).To(Equal(1))

		_, err := svc.Snapshot(ctx, "old")
		Expect(err).To(MatchError(service.ErrConversationNotFound))
		_, err = svc.Snapshot(ctx, "fresh")
		Expect(err).NotTo(HaveOccurred())
	})
})
