package enhance

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
	"github.com/hsnksc/mp4totext-backend/internal/metrics"
)

// FallbackEnhancer implements TextEnhancer with fallback logic
type FallbackEnhancer struct {
	primary   TextEnhancer
	secondary TextEnhancer
}

// NewFallbackEnhancer creates a new fallback enhancer
func NewFallbackEnhancer(primary, secondary TextEnhancer) *FallbackEnhancer {
	return &FallbackEnhancer{
		primary:   primary,
		secondary: secondary,
	}
}

// Enhance tries the primary enhancer first, falls back to secondary on retryable errors
func (f *FallbackEnhancer) Enhance(ctx context.Context, req Request) (*Response, error) {
	result, err := f.primary.Enhance(ctx, req)
	if err == nil {
		return result, nil
	}

	providerErr := ClassifyError(err, "primary")

	if IsRetryableError(err) {
		slog.Info("Primary enhancer failed with retryable error, attempting fallback",
			"error_type", providerErr.Type,
			"error", err.Error(),
			"mode", req.Mode)

		if metrics.ProviderFallbackTotal != nil {
			metrics.ProviderFallbackTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("from_provider", providerErr.Provider),
				attribute.String("to_provider", "secondary"),
				attribute.String("reason", providerErr.Type),
			))
		}

		result, fallbackErr := f.secondary.Enhance(ctx, req)
		if fallbackErr == nil {
			slog.Info("Fallback enhancer succeeded",
				"primary_error_type", providerErr.Type,
				"mode", req.Mode)
			return result, nil
		}

		fallbackProviderErr := ClassifyError(fallbackErr, "secondary")
		slog.Error("Both primary and secondary enhancers failed",
			"primary_error_type", providerErr.Type,
			"primary_error", err.Error(),
			"fallback_error_type", fallbackProviderErr.Type,
			"fallback_error", fallbackErr.Error(),
			"mode", req.Mode)

		return nil, errors.NewEnhancementError(
			"both primary and secondary enhancers failed",
			"ENHANCER_FALLBACK_FAILED",
			err,
		)
	}

	slog.Info("Primary enhancer failed with non-retryable error, not attempting fallback",
		"error_type", providerErr.Type,
		"error", err.Error(),
		"mode", req.Mode)

	return nil, err
}
