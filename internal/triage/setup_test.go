package triage_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"kwik.app/dispatch/core/config"
	"kwik.app/dispatch/internal/triage"
)

var _ = Describe("config wiring", func() {
	var cfg config.Config

	BeforeEach(func() {
		cfg = config.Config{
			Triage: config.TriageConfig{Timeout: 2 * time.Second, RatePerSec: 5, Burst: 10},
			Locator: config.LocatorConfig{
				BaseLatitude:  37.7749,
				BaseLongitude: -122.4194,
				Jitter:        0.1,
			},
		}
	})

	It("runs without an extractor when nothing is configured", func() {
		builder, provider, err := triage.NewBuilderFromConfig(cfg)

		Expect(err).NotTo(HaveOccurred())
		Expect(builder).NotTo(BeNil())
		Expect(provider).To(BeNil())
	})

	It("prefers the remote extractor URL", func() {
		cfg.Triage.ExtractorURL = "http://extractor.internal/extract"
		cfg.TriageLLM = config.LLMConfig{Provider: "openai", APIKey: "sk-test"}

		provider, err := triage.NewProviderFromConfig(cfg)

		Expect(err).NotTo(HaveOccurred())
		Expect(provider).NotTo(BeNil())
	})

	It("builds an LLM extractor for a configured key", func() {
		cfg.TriageLLM = config.LLMConfig{Provider: "anthropic", APIKey: "sk-ant-test", MaxTokens: 800}

		provider, err := triage.NewProviderFromConfig(cfg)

		Expect(err).NotTo(HaveOccurred())
		Expect(provider).NotTo(BeNil())
	})

	It("uses the placeholder locator without a maps key", func() {
		locator, err := triage.NewLocatorFromConfig(cfg.Locator)

		Expect(err).NotTo(HaveOccurred())
		Expect(locator).To(BeAssignableToTypeOf(&triage.PlaceholderLocator{}))
	})

	It("uses the geocoder with a maps key", func() {
		cfg.Locator.GoogleMapsAPIKey = "test-key"

		locator, err := triage.NewLocatorFromConfig(cfg.Locator)

		Expect(err).NotTo(HaveOccurred())
		Expect(locator).To(BeAssignableToTypeOf(&triage.GoogleLocator{}))
	})
})
