package pricing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"manifold/internal/observability"
)

// DefaultPricingSourceURL is LiteLLM's community-maintained model pricing
// table, the same upstream the teacher's token-cost estimates are modeled
// after in spirit (per-provider, per-model JSON, refreshed independently of
// releases).
const DefaultPricingSourceURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

// sourceEntry mirrors the subset of LiteLLM's per-model JSON object this
// package cares about; LiteLLM's file carries many more fields (context
// window, mode, provider routing) that sideseat's pricing table doesn't use.
type sourceEntry struct {
	InputCostPerToken     float64 `json:"input_cost_per_token"`
	OutputCostPerToken    float64 `json:"output_cost_per_token"`
	CacheReadInputTokens  *float64 `json:"cache_read_input_token_cost"`
	OutputCostPerReasoning *float64 `json:"output_cost_per_reasoning_token"`
	InputCostPerImage     *float64 `json:"input_cost_per_image"`
}

// Syncer periodically refreshes a Table from a remote JSON pricing source.
type Syncer struct {
	table    *Table
	url      string
	interval time.Duration
	client   *http.Client
	aliases  map[string]string
}

// NewSyncer builds a Syncer targeting url, refreshing table every interval.
// aliases is the static gen_ai.system-derived alias table (spec.md §4.5
// stage 3) merged into every refreshed Table.
func NewSyncer(table *Table, url string, interval time.Duration, aliases map[string]string) *Syncer {
	if url == "" {
		url = DefaultPricingSourceURL
	}
	return &Syncer{
		table:    table,
		url:      url,
		interval: interval,
		client:   observability.NewHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		aliases:  aliases,
	}
}

// Run blocks, refreshing on a ticker until ctx is canceled. It refreshes
// once immediately on entry so the table isn't empty while the first
// interval ticks down.
func (s *Syncer) Run(ctx context.Context) {
	if err := s.refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("pricing_initial_sync_failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil {
				// Failures retain the previous map (spec.md §4.5): the
				// Table is only mutated by Replace, which this call never
				// reaches on error.
				log.Warn().Err(err).Msg("pricing_sync_failed")
			}
		}
	}
}

func (s *Syncer) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var raw map[string]sourceEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return err
	}

	byModel := make(map[string]ModelPricing, len(raw))
	for name, entry := range raw {
		byModel[name] = ModelPricing{
			InputPerToken:     entry.InputCostPerToken,
			OutputPerToken:    entry.OutputCostPerToken,
			CachedPerToken:    entry.CacheReadInputTokens,
			ReasoningPerToken: entry.OutputCostPerReasoning,
			InputCostPerImage: entry.InputCostPerImage,
		}
	}

	s.table.Replace(byModel, s.aliases)
	log.Debug().Int("models", len(byModel)).Msg("pricing_sync_refreshed")
	return nil
}
