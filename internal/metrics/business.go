package metrics

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("mp4totext/business")

	// Transcription metrics
	TranscriptionJobsTotal   metric.Int64Counter
	TranscriptionJobDuration metric.Float64Histogram

	// External API metrics
	ExternalAPICallsTotal metric.Int64Counter
	ExternalAPIDuration   metric.Float64Histogram

	// AI metrics
	AIEnhancementDuration metric.Float64Histogram

	// Credit metrics
	CreditsDeductedTotal metric.Float64Counter
	CreditsRefundedTotal metric.Float64Counter

	// Provider fallback metrics
	ProviderFallbackTotal metric.Int64Counter
)

func Init() error {
	var err error

	// Transcription metrics
	TranscriptionJobsTotal, err = meter.Int64Counter(
		"transcription.jobs.total",
		metric.WithDescription("Total number of transcription jobs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	TranscriptionJobDuration, err = meter.Float64Histogram(
		"transcription.job.duration",
		metric.WithDescription("Duration of the transcription pipeline"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return err
	}

	// External API metrics
	ExternalAPICallsTotal, err = meter.Int64Counter(
		"external.api.calls.total",
		metric.WithDescription("Total number of external API calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ExternalAPIDuration, err = meter.Float64Histogram(
		"external.api.duration",
		metric.WithDescription("Duration of external API calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 120),
	)
	if err != nil {
		return err
	}

	// AI metrics
	AIEnhancementDuration, err = meter.Float64Histogram(
		"ai.enhancement.duration",
		metric.WithDescription("Duration of AI transcript enhancement"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60),
	)
	if err != nil {
		return err
	}

	// Credit metrics
	CreditsDeductedTotal, err = meter.Float64Counter(
		"credits.deducted.total",
		metric.WithDescription("Total credits deducted from user balances"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	CreditsRefundedTotal, err = meter.Float64Counter(
		"credits.refunded.total",
		metric.WithDescription("Total credits refunded to user balances"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	// Provider fallback metrics
	ProviderFallbackTotal, err = meter.Int64Counter(
		"provider.fallback.total",
		metric.WithDescription("Total number of provider fallback events"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	return nil
}
