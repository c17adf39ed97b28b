package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"kwik.app/dispatch/internal/model"
)

const maxExtractorResponseBytes = 1 << 20

type extractRequest struct {
	Transcript string `json:"transcript"`
}

type extractResponse struct {
	Extraction *model.TriageExtraction `json:"extraction"`
}

type httpProvider struct {
	url    string
	client *http.Client
}

// NewHTTPProvider calls a remote extraction endpoint that accepts
// {"transcript": "..."} and answers {"extraction": {...}}. A nil client
// gets an OTel-instrumented default.
func NewHTTPProvider(url string, client *http.Client) Provider {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &httpProvider{url: url, client: client}
}

func (p *httpProvider) Extract(ctx context.Context, transcript string) (*model.TriageExtraction, error) {
	body, err := json.Marshal(extractRequest{Transcript: transcript})
	if err != nil {
		return nil, fmt.Errorf("encoding extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTriageUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxExtractorResponseBytes))
		return nil, fmt.Errorf("%w: extractor returned status %d", ErrTriageUnavailable, resp.StatusCode)
	}

	var out extractResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxExtractorResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding extractor response: %w", ErrTriageUnavailable, err)
	}
	if out.Extraction == nil {
		return nil, fmt.Errorf("%w: response has no extraction", ErrTriageUnavailable)
	}

	return out.Extraction, nil
}
