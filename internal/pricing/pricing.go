// Package pricing tracks per-model token cost rates and turns token counts
// into cost figures. The pricing table is a read-write-locked map rebuilt
// wholesale by a background sync goroutine and swapped in under the write
// lock, so cost lookups on the hot ingestion path never observe a partial
// table (spec.md §4.5, §9 "Pricing RwLock").
package pricing

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"
)

// MatchType records which lookup strategy resolved a model to its pricing,
// for observability and for callers that want to surface lookup quality.
type MatchType string

const (
	MatchExact            MatchType = "exact"
	MatchProviderPrefixed MatchType = "provider_prefixed"
	MatchAlias            MatchType = "alias"
	MatchFamily           MatchType = "family"
	MatchNone             MatchType = "none"
)

// ModelPricing holds the per-token-kind rates for one model, in dollars per
// token (or per image, for input_cost_per_image). Optional fields are nil
// when the upstream source doesn't price that token kind for the model.
type ModelPricing struct {
	InputPerToken     float64
	OutputPerToken    float64
	CachedPerToken    *float64
	ReasoningPerToken *float64
	InputCostPerImage *float64
	TierOverrides     map[string]ModelPricing
}

// Usage is the token-count input to a cost calculation.
type Usage struct {
	InputTokens     int64
	OutputTokens    int64
	CachedTokens    int64
	ReasoningTokens int64
	InputImages     int64
}

// Table is the thread-safe pricing map. The zero value is not usable; use
// New.
type Table struct {
	mu      sync.RWMutex
	byModel map[string]ModelPricing
	aliases map[string]string
}

// New returns an empty Table. Callers populate it with Replace (typically
// from a Syncer) before Lookup returns anything but MatchNone.
func New() *Table {
	return &Table{
		byModel: make(map[string]ModelPricing),
		aliases: make(map[string]string),
	}
}

// Replace swaps in a full replacement pricing map and alias table under the
// write lock. Readers calling Lookup concurrently never see a partial map:
// they either see the table before or after the swap, never mid-build.
func (t *Table) Replace(byModel map[string]ModelPricing, aliases map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byModel = byModel
	t.aliases = aliases
}

// Size returns the number of priced models currently held.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byModel)
}

// Lookup resolves pricing for (provider, model) using the multi-stage
// strategy from spec.md §4.5: exact model name, {provider}/{model}, the
// alias table, then longest family-prefix match.
func (t *Table) Lookup(provider, model string) (ModelPricing, MatchType, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if p, ok := t.byModel[model]; ok {
		return p, MatchExact, true
	}

	if provider != "" {
		prefixed := provider + "/" + model
		if p, ok := t.byModel[prefixed]; ok {
			return p, MatchProviderPrefixed, true
		}
	}

	if alias, ok := t.aliases[model]; ok {
		if p, ok := t.byModel[alias]; ok {
			return p, MatchAlias, true
		}
	}

	if p, ok := t.longestFamilyMatch(model); ok {
		return p, MatchFamily, true
	}

	return ModelPricing{}, MatchNone, false
}

func (t *Table) longestFamilyMatch(model string) (ModelPricing, bool) {
	var best string
	var bestPricing ModelPricing
	found := false
	for name, p := range t.byModel {
		if len(name) > len(model) {
			continue
		}
		if name == model[:len(name)] && len(name) > len(best) {
			best = name
			bestPricing = p
			found = true
		}
	}
	return bestPricing, found
}

// decimal64Scale is the 10⁻⁶ scale spec.md's Decimal64 cost figures are
// stored at.
const decimal64Scale = 6

// Cost computes the dollar cost of a usage record against a resolved
// pricing entry. Arithmetic runs in float64 (sum of token_kind × rate, per
// spec.md §4.5) then is rounded half-away-from-zero into a Decimal64
// (scale 10⁻⁶) via shopspring/decimal's Round, rather than hand-rolled
// integer scaling. Non-finite totals (NaN, ±Inf) price as zero.
func Cost(p ModelPricing, u Usage) decimal.Decimal {
	total := float64(u.InputTokens)*p.InputPerToken + float64(u.OutputTokens)*p.OutputPerToken

	if p.CachedPerToken != nil {
		total += float64(u.CachedTokens) * (*p.CachedPerToken)
	}
	if p.ReasoningPerToken != nil {
		total += float64(u.ReasoningTokens) * (*p.ReasoningPerToken)
	}
	if p.InputCostPerImage != nil {
		total += float64(u.InputImages) * (*p.InputCostPerImage)
	}

	if math.IsNaN(total) || math.IsInf(total, 0) {
		return decimal.Zero
	}

	return decimal.NewFromFloat(total).Round(decimal64Scale)
}
