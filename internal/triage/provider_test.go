package triage_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"kwik.app/dispatch/common/llm"
	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/triage"
)

type fakeLLMClient struct {
	chatFn  func(ctx context.Context, req llm.Request, result any) (*llm.Response, error)
	lastReq llm.Request
}

func (f *fakeLLMClient) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	f.lastReq = req
	return f.chatFn(ctx, req, result)
}

func (f *fakeLLMClient) Model() string {
	return "fake-model"
}

var _ = Describe("HTTP provider", func() {
	var (
		ctx     context.Context
		server  *httptest.Server
		handler http.HandlerFunc
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		DeferCleanup(server.Close)
	})

	It("posts the transcript and decodes the extraction", func() {
		var (
			got    map[string]string
			method string
		)
		handler = func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"extraction":{"incident_type":"crime","severity_score":72,"confidence_score":0.8}}`))
		}

		ext, err := triage.NewHTTPProvider(server.URL, server.Client()).Extract(ctx, "he has a knife")
		Expect(err).NotTo(HaveOccurred())
		Expect(method).To(Equal(http.MethodPost))
		Expect(got).To(HaveKeyWithValue("transcript", "he has a knife"))
		Expect(*ext.IncidentType).To(Equal("crime"))
		Expect(*ext.SeverityScore).To(Equal(72.0))
		Expect(*ext.Confidence).To(Equal(0.8))
	})

	DescribeTable("reports an unavailable extractor",
		func(status int, body string) {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(body))
			}

			_, err := triage.NewHTTPProvider(server.URL, server.Client()).Extract(ctx, "help")
			Expect(err).To(MatchError(triage.ErrTriageUnavailable))
		},
		Entry("server error", http.StatusInternalServerError, `{"error":"boom"}`),
		Entry("client error", http.StatusBadRequest, `{"error":"bad"}`),
		Entry("invalid json", http.StatusOK, `not json`),
		Entry("missing extraction", http.StatusOK, `{}`),
	)

	It("reports an unreachable extractor", func() {
		server.Close()
		_, err := triage.NewHTTPProvider(server.URL, nil).Extract(ctx, "help")
		Expect(err).To(MatchError(triage.ErrTriageUnavailable))
	})
})

var _ = Describe("LLM provider", func() {
	It("requests a strict schema and maps empty fields to absent", func() {
		client := &fakeLLMClient{chatFn: func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
			payload := `{
				"incident_type": "medical",
				"incident_subtype": "",
				"severity_score": 81,
				"summary": "Unresponsive adult.",
				"confidence": 0.9,
				"persons_involved": 1,
				"immediate_threats": ["not breathing"],
				"location": "",
				"recommendations": ["Dispatch ALS"]
			}`
			return &llm.Response{PromptTokens: 10, CompletionTokens: 5}, json.Unmarshal([]byte(payload), result)
		}}

		ext, err := triage.NewLLMProvider(client, 500).Extract(context.Background(), "my dad is not breathing")
		Expect(err).NotTo(HaveOccurred())

		Expect(client.lastReq.SchemaName).To(Equal("triage_extraction"))
		Expect(client.lastReq.UserPrompt).To(ContainSubstring("my dad is not breathing"))
		Expect(client.lastReq.MaxTokens).To(Equal(500))
		Expect(client.lastReq.Schema).NotTo(BeNil())

		Expect(*ext.IncidentType).To(Equal("medical"))
		Expect(ext.IncidentSubtype).To(BeNil())
		Expect(ext.Location).To(BeNil())
		Expect(*ext.SeverityScore).To(Equal(81.0))
		Expect(ext.Recommendations).To(Equal([]string{"Dispatch ALS"}))
	})

	It("wraps client errors", func() {
		client := &fakeLLMClient{chatFn: func(context.Context, llm.Request, any) (*llm.Response, error) {
			return nil, errors.New("rate limited")
		}}

		_, err := triage.NewLLMProvider(client, 0).Extract(context.Background(), "help")
		Expect(err).To(MatchError(triage.ErrTriageUnavailable))
		Expect(err.Error()).To(ContainSubstring("rate limited"))
	})
})

var _ = Describe("guards", func() {
	ok := triage.ProviderFunc(func(context.Context, string) (*model.TriageExtraction, error) {
		return &model.TriageExtraction{}, nil
	})

	It("rate limits extractor calls", func() {
		p := triage.NewRateLimitedProvider(ok, 0.001, 1)

		_, err := p.Extract(context.Background(), "first")
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = p.Extract(ctx, "second")
		Expect(err).To(MatchError(triage.ErrTriageUnavailable))
	})

	It("opens the breaker after consecutive failures", func() {
		var attempts int
		failing := triage.ProviderFunc(func(context.Context, string) (*model.TriageExtraction, error) {
			attempts++
			return nil, errors.New("down")
		})
		p := triage.NewBreakerProvider(failing, 2, time.Minute)

		for i := 0; i < 2; i++ {
			_, err := p.Extract(context.Background(), "help")
			Expect(err).To(MatchError("down"))
		}

		_, err := p.Extract(context.Background(), "help")
		Expect(err).To(MatchError(triage.ErrTriageUnavailable))
		Expect(attempts).To(Equal(2))
	})

	It("does not count rate limit rejections as breaker failures", func() {
		var attempts int
		limited := triage.ProviderFunc(func(context.Context, string) (*model.TriageExtraction, error) {
			attempts++
			if attempts <= 3 {
				return nil, fmt.Errorf("%w: %w", triage.ErrTriageUnavailable, triage.ErrRateLimited)
			}
			return &model.TriageExtraction{}, nil
		})
		p := triage.NewBreakerProvider(limited, 2, time.Minute)

		for i := 0; i < 3; i++ {
			_, err := p.Extract(context.Background(), "help")
			Expect(err).To(MatchError(triage.ErrRateLimited))
		}

		ext, err := p.Extract(context.Background(), "help")
		Expect(err).NotTo(HaveOccurred())
		Expect(ext).NotTo(BeNil())
		Expect(attempts).To(Equal(4))
	})

	It("keeps the breaker closed while callers wait on the limiter", func() {
		var attempts int
		counting := triage.ProviderFunc(func(context.Context, string) (*model.TriageExtraction, error) {
			attempts++
			return &model.TriageExtraction{}, nil
		})
		p := triage.NewGuardedProvider(counting, 0.001, 1, 2, time.Minute)

		_, err := p.Extract(context.Background(), "first")
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 3; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
			_, err = p.Extract(ctx, "burst")
			cancel()
			Expect(err).To(MatchError(triage.ErrRateLimited))
		}
		Expect(attempts).To(Equal(1))
	})

	It("passes successful extractions through the breaker", func() {
		p := triage.NewBreakerProvider(ok, 3, time.Minute)
		ext, err := p.Extract(context.Background(), "help")
		Expect(err).NotTo(HaveOccurred())
		Expect(ext).NotTo(BeNil())
	})
})
