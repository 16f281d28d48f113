package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTranscriptionCost(t *testing.T) {
	calc := NewCalculator()

	tests := []struct {
		name     string
		seconds  float64
		provider string
		want     string
	}{
		{"one minute at base rate", 60, "whisper", "1"},
		{"one minute on groq", 60, "groq", "1"},
		{"two minutes at base rate", 120, "whisper", "2"},
		{"partial minute prorated", 53, "whisperx", "1.06"},
		{"diarized minute carries premium", 60, "whisperx", "1.2"},
		{"thirty seconds", 30, "whisper", "0.5"},
		{"zero duration costs nothing", 0, "whisper", "0"},
		{"unknown provider falls back to base rate", 60, "some-future-provider", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.TranscriptionCost(tt.seconds, tt.provider)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestTranscriptionCostIsDeterministic(t *testing.T) {
	calc := NewCalculator()
	first := calc.TranscriptionCost(127.3, "whisperx")
	for i := 0; i < 100; i++ {
		assert.True(t, first.Equal(calc.TranscriptionCost(127.3, "whisperx")))
	}
}

func TestEnhancementCost(t *testing.T) {
	calc := NewCalculator()

	got := calc.EnhancementCost(10000, "gpt-4o-mini")
	assert.True(t, got.Equal(decimal.NewFromInt(1)), "got %s", got)

	got = calc.EnhancementCost(10000, "gpt-4o")
	assert.True(t, got.Equal(decimal.NewFromInt(2)), "got %s", got)

	// Unknown models use the default per-char rate
	got = calc.EnhancementCost(10000, "mystery-model")
	assert.True(t, got.Equal(decimal.NewFromInt(1)), "got %s", got)

	assert.True(t, calc.EnhancementCost(0, "gpt-4o").IsZero())
}

func TestFeatureCost(t *testing.T) {
	calc := NewCalculator()

	assert.True(t, calc.FeatureCost(FeatureWebSearch).Equal(decimal.NewFromFloat(0.25)))
	assert.True(t, calc.FeatureCost("unknown_feature").IsZero())
}

func TestMinimumCharge(t *testing.T) {
	calc := NewCalculator()
	assert.True(t, calc.MinimumCharge().Equal(decimal.NewFromInt(1)))
}
