package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/service"
	"kwik.app/dispatch/internal/store"
	"kwik.app/dispatch/internal/triage"
)

var _ = Describe("CallService", func() {
	var (
		ctx     context.Context
		calls   *mockCallStore
		builder *mockBuilder
		svc     service.CallService
	)

	BeforeEach(func() {
		ctx = context.Background()
		calls = &mockCallStore{}
		builder = &mockBuilder{}
		svc = service.NewCallService(calls, builder)
	})

	Describe("Create", func() {
		It("builds from the joined transcript and saves the record", func() {
			call, err := svc.Create(ctx, service.CreateCallParams{
				CallerNumber: "+14155550100",
				Transcript: model.Transcript{Segments: []model.TranscriptSegment{
					{Text: "my house"}, {Text: "is on fire"},
				}},
				Emotions:       []model.EmotionReading{{Emotion: "fear", Intensity: 0.9}},
				ConversationID: "conv-7",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(call.ID).To(Equal("conv-7"))
			Expect(builder.requests).To(HaveLen(1))
			Expect(builder.requests[0].Transcript).To(Equal("my house is on fire"))
			Expect(builder.requests[0].Emotions).To(HaveLen(1))
			Expect(calls.saved).To(ConsistOf(call))
		})

		It("surfaces a missing caller number without saving", func() {
			builder.buildFn = func(context.Context, triage.BuildRequest) (*model.EmergencyCall, error) {
				return nil, triage.ErrMissingCallerNumber
			}

			_, err := svc.Create(ctx, service.CreateCallParams{})

			Expect(err).To(MatchError(triage.ErrMissingCallerNumber))
			Expect(calls.saved).To(BeEmpty())
		})

		It("wraps store failures", func() {
			boom := errors.New("connection reset")
			calls.saveFn = func(context.Context, *model.EmergencyCall) error { return boom }

			_, err := svc.Create(ctx, service.CreateCallParams{CallerNumber: "+1"})

			Expect(err).To(MatchError(boom))
			Expect(err.Error()).To(ContainSubstring("saving call"))
		})
	})

	Describe("UpdateStatus", func() {
		It("rejects unknown status values", func() {
			_, err := svc.UpdateStatus(ctx, "call_1", model.Status("closed"), "")
			Expect(err).To(MatchError(service.ErrInvalidStatus))
		})

		It("requires at least one field", func() {
			_, err := svc.UpdateStatus(ctx, "call_1", "", "")
			Expect(err).To(MatchError(service.ErrInvalidStatus))
		})

		It("keeps the stored value for an omitted field", func() {
			calls.getByIDFn = func(context.Context, string) (*model.EmergencyCall, error) {
				return &model.EmergencyCall{ID: "call_1", Status: model.StatusActive, CallStatus: model.CallStatusInProgress}, nil
			}
			var gotStatus model.Status
			var gotCallStatus model.CallStatus
			calls.updateStatusFn = func(_ context.Context, id string, status model.Status, callStatus model.CallStatus, at time.Time) (*model.EmergencyCall, error) {
				gotStatus, gotCallStatus = status, callStatus
				return &model.EmergencyCall{ID: id, Status: status, CallStatus: callStatus, UpdatedAt: at}, nil
			}

			call, err := svc.UpdateStatus(ctx, "call_1", model.StatusDispatched, "")

			Expect(err).NotTo(HaveOccurred())
			Expect(gotStatus).To(Equal(model.StatusDispatched))
			Expect(gotCallStatus).To(Equal(model.CallStatusInProgress))
			Expect(call.UpdatedAt).NotTo(BeZero())
		})

		It("returns ErrNotFound for unknown calls", func() {
			_, err := svc.UpdateStatus(ctx, "missing", "", model.CallStatusCompleted)
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	It("passes List and Get through to the store", func() {
		calls.listFn = func(_ context.Context, limit int) ([]model.EmergencyCall, error) {
			Expect(limit).To(Equal(20))
			return []model.EmergencyCall{{ID: "a"}, {ID: "b"}}, nil
		}
		calls.getByIDFn = func(_ context.Context, id string) (*model.EmergencyCall, error) {
			return &model.EmergencyCall{ID: id}, nil
		}

		list, err := svc.List(ctx, 20)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))

		call, err := svc.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(call.ID).To(Equal("a"))
	})
})
