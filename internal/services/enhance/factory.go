package enhance

import (
	"github.com/hsnksc/mp4totext-backend/internal/config"
)

// NewEnhancer creates a text enhancer based on the configuration. It can
// optionally wrap the provider in a fallback wrapper if enabled.
func NewEnhancer(cfg config.EnhancementConfig, openAIKey, groqKey string) TextEnhancer {
	var primary TextEnhancer

	switch cfg.Provider {
	case "groq":
		primary = NewGroqEnhancer(groqKey, cfg.Model)
	default:
		// Default to openai
		primary = NewOpenAIEnhancer(openAIKey, cfg.Model)
	}

	if cfg.FallbackEnabled {
		var secondary TextEnhancer

		switch cfg.FallbackProvider {
		case "openai":
			secondary = NewOpenAIEnhancer(openAIKey, cfg.Model)
		default:
			// Default to groq
			secondary = NewGroqEnhancer(groqKey, cfg.Model)
		}

		return NewFallbackEnhancer(primary, secondary)
	}

	return primary
}
