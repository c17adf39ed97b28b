package triage

import (
	"fmt"
	"time"

	"kwik.app/dispatch/common/llm"
	"kwik.app/dispatch/core/config"
)

const (
	breakerFailures = 5
	breakerCooldown = 30 * time.Second
)

// NewProviderFromConfig picks the remote extractor when TRIAGE_EXTRACTOR_URL is
// set, else the LLM extractor when a key is configured. It returns nil when
// neither is available; every record then uses defaults.
func NewProviderFromConfig(cfg config.Config) (Provider, error) {
	var provider Provider
	switch {
	case cfg.Triage.ExtractorURL != "":
		provider = NewHTTPProvider(cfg.Triage.ExtractorURL, nil)
	case cfg.TriageLLM.Enabled():
		client, err := llm.New(llm.Config{
			Provider: cfg.TriageLLM.Provider,
			APIKey:   cfg.TriageLLM.APIKey,
			BaseURL:  cfg.TriageLLM.BaseURL,
			Model:    cfg.TriageLLM.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("creating triage llm client: %w", err)
		}
		provider = NewLLMProvider(client, cfg.TriageLLM.MaxTokens)
	default:
		return nil, nil
	}

	return NewGuardedProvider(provider, cfg.Triage.RatePerSec, cfg.Triage.Burst, breakerFailures, breakerCooldown), nil
}

// NewLocatorFromConfig returns the Google geocoder when a key is configured,
// falling back to the jittered placeholder.
func NewLocatorFromConfig(cfg config.LocatorConfig) (Locator, error) {
	placeholder := NewPlaceholderLocator(cfg.BaseLatitude, cfg.BaseLongitude, cfg.Jitter)
	if !cfg.GeocodingEnabled() {
		return placeholder, nil
	}
	locator, err := NewGoogleLocator(cfg.GoogleMapsAPIKey, placeholder)
	if err != nil {
		return nil, err
	}
	return locator, nil
}

// NewBuilderFromConfig wires the extractor and locator selected by cfg.
// The returned provider may be nil.
func NewBuilderFromConfig(cfg config.Config) (*Builder, Provider, error) {
	provider, err := NewProviderFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	locator, err := NewLocatorFromConfig(cfg.Locator)
	if err != nil {
		return nil, nil, err
	}

	opts := []BuilderOption{
		WithLocator(locator),
		WithTimeout(cfg.Triage.Timeout),
	}
	if provider != nil {
		opts = append(opts, WithProvider(provider))
	}
	return NewBuilder(opts...), provider, nil
}
