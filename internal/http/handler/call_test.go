package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"kwik.app/dispatch/internal/http/handler"
	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/service"
	"kwik.app/dispatch/internal/store"
	"kwik.app/dispatch/internal/triage"
)

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var _ = Describe("CallHandler", func() {
	var (
		router *gin.Engine
		svc    *mockCallService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockCallService{}
		h := handler.NewCallHandler(svc)
		router.POST("/calls", h.Create)
		router.GET("/calls", h.List)
		router.GET("/calls/:id", h.Get)
		router.PATCH("/calls/:id/status", h.UpdateStatus)
	})

	Describe("Create", func() {
		It("accepts a segmented transcript and returns the call", func() {
			var got service.CreateCallParams
			svc.createFn = func(_ context.Context, params service.CreateCallParams) (*model.EmergencyCall, error) {
				got = params
				return &model.EmergencyCall{ID: "call_1", CallerNumber: params.CallerNumber, CreatedAt: time.Now()}, nil
			}

			w := doJSON(router, http.MethodPost, "/calls", `{
				"phoneNumber": "+14155550100",
				"transcript": [{"text": "car crash"}, {"text": "on highway 101"}],
				"emotions": [{"emotion": "fear", "intensity": 0.8}],
				"conversationId": "conv-1"
			}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(got.CallerNumber).To(Equal("+14155550100"))
			Expect(got.Transcript.Text()).To(Equal("car crash on highway 101"))
			Expect(got.ConversationID).To(Equal("conv-1"))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["success"]).To(BeTrue())
			call := resp["call"].(map[string]any)
			Expect(call["id"]).To(Equal("call_1"))
			Expect(call["time_elapsed"]).To(Equal("Just now"))
			Expect(call["immediate_threats"]).To(Equal([]any{}))
		})

		It("returns 400 when the phone number is missing", func() {
			svc.createFn = func(context.Context, service.CreateCallParams) (*model.EmergencyCall, error) {
				return nil, triage.ErrMissingCallerNumber
			}

			w := doJSON(router, http.MethodPost, "/calls", `{"transcript": "help"}`)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring("Phone number is required"))
		})

		It("returns 400 on a malformed body", func() {
			w := doJSON(router, http.MethodPost, "/calls", `{`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 500 when the service fails", func() {
			svc.createFn = func(context.Context, service.CreateCallParams) (*model.EmergencyCall, error) {
				return nil, errors.New("boom")
			}

			w := doJSON(router, http.MethodPost, "/calls", `{"phoneNumber": "+1"}`)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("List", func() {
		It("applies the limit and labels elapsed time", func() {
			var gotLimit int
			svc.listFn = func(_ context.Context, limit int) ([]model.EmergencyCall, error) {
				gotLimit = limit
				return []model.EmergencyCall{
					{ID: "a", CreatedAt: time.Now().Add(-5 * time.Minute)},
					{ID: "b", CreatedAt: time.Now().Add(-2 * time.Hour)},
				}, nil
			}

			w := doJSON(router, http.MethodGet, "/calls?limit=2", "")

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(gotLimit).To(Equal(2))
			var resp struct {
				Calls []map[string]any `json:"calls"`
				Count int              `json:"count"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Count).To(Equal(2))
			Expect(resp.Calls[0]["time_elapsed"]).To(Equal("5 min ago"))
			Expect(resp.Calls[1]["time_elapsed"]).To(Equal("2 hrs ago"))
		})

		It("rejects a bad limit", func() {
			w := doJSON(router, http.MethodGet, "/calls?limit=zero", "")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Get", func() {
		It("returns 404 for unknown calls", func() {
			svc.getFn = func(context.Context, string) (*model.EmergencyCall, error) {
				return nil, store.ErrNotFound
			}

			w := doJSON(router, http.MethodGet, "/calls/missing", "")

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("UpdateStatus", func() {
		It("passes both fields to the service", func() {
			svc.updateStatusFn = func(_ context.Context, id string, status model.Status, callStatus model.CallStatus) (*model.EmergencyCall, error) {
				return &model.EmergencyCall{ID: id, Status: status, CallStatus: callStatus}, nil
			}

			w := doJSON(router, http.MethodPatch, "/calls/call_1/status", `{"status": "dispatched", "call_status": "completed"}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["status"]).To(Equal("dispatched"))
			Expect(resp["call_status"]).To(Equal("completed"))
		})

		It("maps invalid status to 400", func() {
			svc.updateStatusFn = func(context.Context, string, model.Status, model.CallStatus) (*model.EmergencyCall, error) {
				return nil, service.ErrInvalidStatus
			}

			w := doJSON(router, http.MethodPatch, "/calls/call_1/status", `{"status": "closed"}`)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
