package pricing

import (
	"github.com/shopspring/decimal"
)

// Calculator converts work done into credit costs. It is pure: the same
// inputs always produce the same cost.
type Calculator struct {
	perMinute       map[string]decimal.Decimal
	defaultRate     decimal.Decimal
	perChar         map[string]decimal.Decimal
	defaultCharRate decimal.Decimal
	features        map[string]decimal.Decimal
}

// Feature identifiers billed as flat per-job add-ons.
const (
	FeatureWebSearch = "web_search"
)

var (
	secondsPerMinute = decimal.NewFromInt(60)
)

// NewCalculator returns a Calculator with the default rate card.
func NewCalculator() *Calculator {
	return &Calculator{
		perMinute: map[string]decimal.Decimal{
			"whisper":  decimal.NewFromInt(1),              // local, base rate
			"groq":     decimal.NewFromInt(1),              // cloud, no diarization premium
			"whisperx": decimal.NewFromFloat(1.2),          // cloud diarized
		},
		defaultRate: decimal.NewFromInt(1),
		perChar: map[string]decimal.Decimal{
			"gpt-4o":        decimal.NewFromFloat(0.0002),
			"gpt-4o-mini":   decimal.NewFromFloat(0.0001),
			"llama-3.3-70b": decimal.NewFromFloat(0.00005),
		},
		defaultCharRate: decimal.NewFromFloat(0.0001),
		features: map[string]decimal.Decimal{
			FeatureWebSearch: decimal.NewFromFloat(0.25),
		},
	}
}

// TranscriptionCost prices a transcription by duration, prorated per second
// against the provider's per-minute rate and rounded to two decimals.
func (c *Calculator) TranscriptionCost(durationSeconds float64, providerID string) decimal.Decimal {
	rate, ok := c.perMinute[providerID]
	if !ok {
		rate = c.defaultRate
	}
	minutes := decimal.NewFromFloat(durationSeconds).Div(secondsPerMinute)
	return rate.Mul(minutes).Round(2)
}

// EnhancementCost prices AI enhancement per character of the original
// transcript, multiplied by the model-specific rate.
func (c *Calculator) EnhancementCost(charCount int, model string) decimal.Decimal {
	rate, ok := c.perChar[model]
	if !ok {
		rate = c.defaultCharRate
	}
	return rate.Mul(decimal.NewFromInt(int64(charCount))).Round(2)
}

// FeatureCost prices a flat optional capability. Unknown features cost zero.
func (c *Calculator) FeatureCost(feature string) decimal.Decimal {
	if rate, ok := c.features[feature]; ok {
		return rate
	}
	return decimal.Zero
}

// MinimumCharge is the smallest amount a job can be billed; used for the
// pre-dispatch sufficiency check before the real duration is known.
func (c *Calculator) MinimumCharge() decimal.Decimal {
	return c.defaultRate // one minute at the base rate
}
