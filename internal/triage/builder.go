package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"kwik.app/dispatch/common/id"
	"kwik.app/dispatch/common/logger"
	"kwik.app/dispatch/internal/model"
)

const (
	DefaultIncidentType     = "emergency"
	DefaultIncidentSubtype  = "Unknown"
	DefaultSummary          = "Emergency call received. Awaiting detailed analysis."
	DefaultRecommendation   = "Dispatch appropriate emergency services immediately."
	DefaultAIConfidence     = 0.70
	DefaultPersonsInvolved  = 1
	DefaultTopEmotion       = "distress"
	DefaultEmotionIntensity = 0.5
	DefaultTimeout          = 10 * time.Second
)

// BuildRequest carries everything known about a call when its record is built.
type BuildRequest struct {
	CallID       string // optional; generated when empty
	CallerNumber string
	Transcript   string
	Emotions     []model.EmotionReading
}

// Builder assembles EmergencyCall records. It is safe for concurrent use.
type Builder struct {
	provider Provider
	locator  Locator
	weights  Weights
	timeout  time.Duration
	now      func() time.Time
	newID    func() string
}

type BuilderOption func(*Builder)

// WithProvider sets the triage extractor. Without one every record uses defaults.
func WithProvider(p Provider) BuilderOption {
	return func(b *Builder) { b.provider = p }
}

func WithLocator(l Locator) BuilderOption {
	return func(b *Builder) { b.locator = l }
}

func WithWeights(w Weights) BuilderOption {
	return func(b *Builder) { b.weights = w }
}

// WithTimeout bounds the single extractor attempt and the location lookup.
func WithTimeout(d time.Duration) BuilderOption {
	return func(b *Builder) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

func WithIDGenerator(newID func() string) BuilderOption {
	return func(b *Builder) { b.newID = newID }
}

func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		locator: NewPlaceholderLocator(DefaultBaseLatitude, DefaultBaseLongitude, DefaultPlaceholderJitter),
		weights: DefaultWeights,
		timeout: DefaultTimeout,
		now:     time.Now,
		newID:   id.NewCallID,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the extractor once (bounded by the builder timeout) and assembles
// the call record. Extractor failures are logged and replaced by defaults; the
// only error is ErrMissingCallerNumber. The extractor and the locator each get
// the builder timeout; cancelling ctx aborts neither.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*model.EmergencyCall, error) {
	if strings.TrimSpace(req.CallerNumber) == "" {
		return nil, ErrMissingCallerNumber
	}
	if req.CallID == "" {
		req.CallID = b.newID()
	}

	sc := logger.StartSpan(ctx, "triage.build")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		CallID:       logger.Ptr(req.CallID),
		CallerNumber: logger.Ptr(req.CallerNumber),
		Component:    "dispatch.triage.builder",
	})

	extraction, err := b.extract(ctx, req.Transcript)
	if err != nil {
		sc.RecordError(err)
		slog.WarnContext(ctx, "triage extraction failed, using defaults", "error", err)
	}

	call := b.Assemble(ctx, req, extraction)
	sc.SetAttributes(
		attribute.String("call.id", call.ID),
		attribute.Float64("call.severity_score", call.SeverityScore),
		attribute.String("call.severity", string(call.Severity)),
		attribute.Bool("call.triaged", extraction != nil),
	)

	slog.InfoContext(ctx, "call record built",
		"severity", call.Severity,
		"severity_score", call.SeverityScore,
		"caller_condition", call.CallerCondition,
		"incident_type", call.IncidentType)

	return call, nil
}

type extractResult struct {
	extraction *model.TriageExtraction
	err        error
}

func (b *Builder) extract(ctx context.Context, transcript string) (*model.TriageExtraction, error) {
	if b.provider == nil || strings.TrimSpace(transcript) == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	results := make(chan extractResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- extractResult{err: fmt.Errorf("extractor panic: %v", r)}
			}
		}()
		ext, err := b.provider.Extract(ctx, transcript)
		results <- extractResult{extraction: ext, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			return nil, unavailable(r.err)
		}
		return r.extraction, nil
	case <-ctx.Done():
		return nil, unavailable(ctx.Err())
	}
}

func unavailable(err error) error {
	if errors.Is(err, ErrTriageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTriageUnavailable, err)
}

// Assemble builds the record from an optional extraction without calling the
// extractor. Apart from the locator it is deterministic.
func (b *Builder) Assemble(ctx context.Context, req BuildRequest, ext *model.TriageExtraction) *model.EmergencyCall {
	if ext == nil {
		ext = &model.TriageExtraction{}
	}

	callID := req.CallID
	if callID == "" {
		callID = b.newID()
	}

	topEmotion := DefaultTopEmotion
	intensity := DefaultEmotionIntensity
	var top *model.TopEmotion
	if r := TopReading(req.Emotions); r != nil {
		top = &model.TopEmotion{Emotion: r.Emotion, Intensity: r.Intensity}
		topEmotion = r.Emotion
		intensity = r.Intensity
	}

	score, severity := b.weights.Fuse(ext.SeverityScore, top)

	now := b.now()
	return &model.EmergencyCall{
		ID:               callID,
		CallerNumber:     req.CallerNumber,
		Status:           model.StatusActive,
		CallStatus:       model.CallStatusInProgress,
		IncidentType:     stringOr(ext.IncidentType, DefaultIncidentType),
		IncidentSubtype:  stringOr(ext.IncidentSubtype, DefaultIncidentSubtype),
		Severity:         severity,
		SeverityScore:    score,
		CallerLocation:   b.locate(ctx, stringOr(ext.Location, "")),
		TopEmotion:       topEmotion,
		EmotionIntensity: intensity,
		CallerCondition:  b.weights.CallerConditionFor(score),
		Transcript:       req.Transcript,
		AISummary:        stringOr(ext.Summary, DefaultSummary),
		AIConfidence:     confidenceOr(ext.Confidence, DefaultAIConfidence),
		AIRecommendation: recommendation(ext.Recommendations),
		PersonsInvolved:  personsOr(ext.PersonsInvolved, DefaultPersonsInvolved),
		ImmediateThreats: nonNilStrings(ext.ImmediateThreats),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// locate gives the locator its own deadline; on expiry the locator falls back
// to its placeholder.
func (b *Builder) locate(ctx context.Context, address string) model.Location {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()
	return b.locator.Locate(ctx, address)
}

// TopReading returns the most intense reading; the first wins on ties.
// NaN intensities are skipped. Returns nil for no usable readings.
func TopReading(readings []model.EmotionReading) *model.EmotionReading {
	var top *model.EmotionReading
	for i := range readings {
		r := readings[i]
		if math.IsNaN(r.Intensity) {
			continue
		}
		if top == nil || r.Intensity > top.Intensity {
			top = &r
		}
	}
	return top
}

func stringOr(s *string, fallback string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return fallback
	}
	return *s
}

func confidenceOr(c *float64, fallback float64) float64 {
	if c == nil || math.IsNaN(*c) {
		return fallback
	}
	return min(max(*c, 0), 1)
}

func personsOr(n *int, fallback int) int {
	if n == nil || *n < 1 {
		return fallback
	}
	return *n
}

func recommendation(recs []string) string {
	parts := make([]string, 0, len(recs))
	for _, r := range recs {
		if r = strings.TrimSpace(r); r != "" {
			parts = append(parts, r)
		}
	}
	if len(parts) == 0 {
		return DefaultRecommendation
	}
	return strings.Join(parts, ". ")
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
