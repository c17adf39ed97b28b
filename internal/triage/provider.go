package triage

import (
	"context"
	"errors"

	"kwik.app/dispatch/internal/model"
)

var (
	// ErrMissingCallerNumber is returned by Build when no caller number is supplied.
	ErrMissingCallerNumber = errors.New("caller number is required")

	// ErrTriageUnavailable wraps every extractor failure. Build never returns it;
	// it is logged and the record falls back to defaults.
	ErrTriageUnavailable = errors.New("triage extractor unavailable")
)

// Provider turns a transcript into a structured incident extraction.
type Provider interface {
	Extract(ctx context.Context, transcript string) (*model.TriageExtraction, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, transcript string) (*model.TriageExtraction, error)

func (f ProviderFunc) Extract(ctx context.Context, transcript string) (*model.TriageExtraction, error) {
	return f(ctx, transcript)
}
