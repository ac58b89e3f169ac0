// Package pricefeed fetches token prices keyed by CoinGecko id.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Prices maps a price-feed key to its price. A key missing from the map
// means no price is available for it.
type Prices map[string]float64

// Lookup returns the price for key, or nil when none is available.
func (p Prices) Lookup(key string) *float64 {
	price, ok := p[key]
	if !ok {
		return nil
	}
	return &price
}

// maxErrorBody bounds how much of an error response ends up in logs.
const maxErrorBody = 512

// CoinGecko queries the /simple/price endpoint of the CoinGecko API.
type CoinGecko struct {
	BaseURL  string
	Currency string
	logger   zerolog.Logger
}

func NewCoinGecko(baseURL, currency string, logger zerolog.Logger) *CoinGecko {
	return &CoinGecko{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Currency: strings.ToLower(currency),
		logger:   logger.With().Str("component", "coingecko").Logger(),
	}
}

// GetPrices fetches the prices of ids in one request. Failures are logged
// and produce an empty map; ids without a quote are left out.
func (c *CoinGecko) GetPrices(ctx context.Context, client *http.Client, ids []string) Prices {
	prices := make(Prices)

	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return prices
	}

	endpoint := c.requestURL(ids)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("failed to build price request")
		return prices
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Strs("ids", ids).Msg("price request failed")
		return prices
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Strs("ids", ids).
			Msg("price request returned non-200 status")
		return prices
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Error().Err(err).Msg("failed to decode price response")
		return prices
	}

	for _, id := range ids {
		quote, ok := payload[id][c.Currency]
		if !ok {
			c.logger.Warn().Str("id", id).Str("currency", c.Currency).Msg("no price returned")
			continue
		}
		prices[id] = quote
	}

	c.logger.Debug().Int("requested", len(ids)).Int("received", len(prices)).Msg("fetched prices")
	return prices
}

func (c *CoinGecko) requestURL(ids []string) string {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", c.Currency)
	return fmt.Sprintf("%s/simple/price?%s", c.BaseURL, q.Encode())
}

// normalizeIDs drops empty and duplicate ids and sorts the rest.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
