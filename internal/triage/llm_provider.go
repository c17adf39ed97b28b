package triage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"kwik.app/dispatch/common/llm"
	"kwik.app/dispatch/internal/model"
)

const extractionSystemPrompt = `You are a 911 call triage assistant. Read the caller transcript and extract:
- incident_type: one of fire, medical, accident, crime, public_safety, other
- incident_subtype: short free text (e.g. "house fire", "cardiac arrest")
- severity_score: 0-100, where 80+ is life threatening and below 40 is non urgent
- summary: two sentences for the dispatcher
- confidence: 0-1, your confidence in this extraction
- persons_involved: number of people affected, at least 1
- immediate_threats: short phrases, empty if none
- location: the address or landmark the caller gave, empty if none
- recommendations: dispatcher actions, most urgent first

Only use facts stated in the transcript. Do not invent addresses.`

// extractionSchema is the strict response shape requested from the model.
// Strict structured output needs every field required, so absence is an empty value.
type extractionSchema struct {
	IncidentType     string   `json:"incident_type" jsonschema:"description=Incident category"`
	IncidentSubtype  string   `json:"incident_subtype" jsonschema:"description=Short incident subtype"`
	SeverityScore    float64  `json:"severity_score" jsonschema:"description=Severity from 0 to 100"`
	Summary          string   `json:"summary" jsonschema:"description=Two sentence dispatcher summary"`
	Confidence       float64  `json:"confidence" jsonschema:"description=Confidence from 0 to 1"`
	PersonsInvolved  int      `json:"persons_involved" jsonschema:"description=Number of people affected"`
	ImmediateThreats []string `json:"immediate_threats" jsonschema:"description=Immediate threats to life or property"`
	Location         string   `json:"location" jsonschema:"description=Address or landmark stated by the caller"`
	Recommendations  []string `json:"recommendations" jsonschema:"description=Recommended dispatcher actions"`
}

type llmProvider struct {
	client    llm.Client
	maxTokens int
}

// NewLLMProvider extracts incidents with a structured-output LLM call.
func NewLLMProvider(client llm.Client, maxTokens int) Provider {
	return &llmProvider{client: client, maxTokens: maxTokens}
}

func (p *llmProvider) Extract(ctx context.Context, transcript string) (*model.TriageExtraction, error) {
	var out extractionSchema
	resp, err := p.client.Chat(ctx, llm.Request{
		SystemPrompt: extractionSystemPrompt,
		UserPrompt:   "Transcript:\n" + transcript,
		SchemaName:   "triage_extraction",
		Schema:       llm.GenerateSchema[extractionSchema](),
		MaxTokens:    p.maxTokens,
		Temperature:  llm.Temp(0),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTriageUnavailable, err)
	}

	slog.DebugContext(ctx, "triage extraction completed",
		"model", p.client.Model(),
		"incident_type", out.IncidentType,
		"severity_score", out.SeverityScore,
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)

	return out.toModel(), nil
}

func (s extractionSchema) toModel() *model.TriageExtraction {
	return &model.TriageExtraction{
		IncidentType:     nonEmpty(s.IncidentType),
		IncidentSubtype:  nonEmpty(s.IncidentSubtype),
		SeverityScore:    &s.SeverityScore,
		Summary:          nonEmpty(s.Summary),
		Confidence:       &s.Confidence,
		PersonsInvolved:  &s.PersonsInvolved,
		ImmediateThreats: s.ImmediateThreats,
		Location:         nonEmpty(s.Location),
		Recommendations:  s.Recommendations,
	}
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
