package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"kwik.app/dispatch/internal/http/handler"
	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/triage"
)

var _ = Describe("TriageHandler", func() {
	newRouter := func(provider triage.Provider, timeout time.Duration) *gin.Engine {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		h := handler.NewTriageHandler(provider, triage.DefaultWeights, timeout)
		router.POST("/triage/extract", h.Extract)
		router.GET("/triage/weights", h.Weights)
		return router
	}

	It("returns the extraction", func() {
		score := 72.0
		provider := triage.ProviderFunc(func(_ context.Context, transcript string) (*model.TriageExtraction, error) {
			Expect(transcript).To(Equal("shots fired downtown"))
			return &model.TriageExtraction{SeverityScore: &score}, nil
		})

		w := doJSON(newRouter(provider, time.Second), http.MethodPost, "/triage/extract", `{"transcript": ["shots fired", "downtown"]}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"extraction": {"severity_score": 72}}`))
	})

	It("requires a transcript", func() {
		w := doJSON(newRouter(nil, 0), http.MethodPost, "/triage/extract", `{"transcript": "  "}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 503 without a configured extractor", func() {
		w := doJSON(newRouter(nil, 0), http.MethodPost, "/triage/extract", `{"transcript": "help"}`)
		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
	})

	It("returns 504 when the extractor times out", func() {
		provider := triage.ProviderFunc(func(ctx context.Context, _ string) (*model.TriageExtraction, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

		w := doJSON(newRouter(provider, 20*time.Millisecond), http.MethodPost, "/triage/extract", `{"transcript": "help"}`)

		Expect(w.Code).To(Equal(http.StatusGatewayTimeout))
	})

	It("serves the fusion weights", func() {
		w := doJSON(newRouter(nil, 0), http.MethodGet, "/triage/weights", "")

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp).To(HaveKey("emotion_boost"))
	})
})
