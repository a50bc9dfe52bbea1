package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AmpyFin/ampyfin/internal/config"
	"github.com/AmpyFin/ampyfin/internal/ledger"
)

// UniverseProvider resolves the tradable ticker list. A static symbol list in
// config wins; otherwise the index constituents endpoint is fetched and the
// result cached in the ledger so a dead endpoint degrades to the last good
// universe.
type UniverseProvider struct {
	cfg    config.UniverseConfig
	store  *ledger.Store
	client *http.Client
}

func NewUniverseProvider(cfg config.UniverseConfig, store *ledger.Store) *UniverseProvider {
	return &UniverseProvider{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *UniverseProvider) Tickers(ctx context.Context) ([]string, error) {
	if len(p.cfg.Symbols) > 0 {
		return p.cfg.Symbols, nil
	}

	symbols, err := p.fetch(ctx)
	if err != nil {
		cached, cacheErr := p.store.Tickers(ctx)
		if cacheErr == nil && len(cached) > 0 {
			log.Warn().Err(err).Int("cached", len(cached)).
				Msg("universe fetch failed, using cached tickers")
			return cached, nil
		}
		return nil, fmt.Errorf("universe: %w", err)
	}

	if err := p.store.ReplaceTickers(ctx, symbols); err != nil {
		log.Warn().Err(err).Msg("failed to cache ticker universe")
	}
	return symbols, nil
}

func (p *UniverseProvider) fetch(ctx context.Context) ([]string, error) {
	endpoint, err := url.Parse(p.cfg.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	query := endpoint.Query()
	query.Set("apikey", p.cfg.APIKey)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch constituents: status %d", resp.StatusCode)
	}

	var constituents []struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&constituents); err != nil {
		return nil, fmt.Errorf("decode constituents: %w", err)
	}
	if len(constituents) == 0 {
		return nil, fmt.Errorf("constituents list empty")
	}

	symbols := make([]string, 0, len(constituents))
	for _, c := range constituents {
		if c.Symbol != "" {
			symbols = append(symbols, c.Symbol)
		}
	}
	log.Info().Int("tickers", len(symbols)).Msg("ticker universe refreshed")
	return symbols, nil
}
