// Package cost converts billed transcription time into US dollar amounts.
package cost

import (
	"os"
	"strconv"
)

// Published per-minute prices for Deepgram pre-recorded models. Overridable via
// PRICE_* env vars because contract pricing differs from list pricing.
var defaultRates = map[string]float64{
	"nova-3":   0.0043,
	"nova-2":   0.0125,
	"base":     0.0043,
	"enhanced": 0.0181,
}

const fallbackRate = 0.0043

var priceEnv = map[string]string{
	"nova-3":   "PRICE_NOVA_3",
	"nova-2":   "PRICE_NOVA_2",
	"base":     "PRICE_BASE",
	"enhanced": "PRICE_ENHANCED",
}

// RateForModel returns the per-minute rate for a model, honoring env overrides.
// Unknown models get the fallback rate rather than zero so cost reporting never
// silently under-counts.
func RateForModel(model string) float64 {
	if env, ok := priceEnv[model]; ok {
		if v := os.Getenv(env); v != "" {
			if rate, err := strconv.ParseFloat(v, 64); err == nil && rate >= 0 {
				return rate
			}
		}
	}
	if rate, ok := defaultRates[model]; ok {
		return rate
	}
	return fallbackRate
}

// Estimate returns the cost in USD for a duration at the given per-minute rate.
func Estimate(durationSeconds, ratePerMinute float64) float64 {
	if durationSeconds <= 0 || ratePerMinute <= 0 {
		return 0
	}
	return durationSeconds / 60 * ratePerMinute
}
