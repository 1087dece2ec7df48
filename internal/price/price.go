package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// ErrUnknownToken means the provider has no entry for the requested
// identifier. Distinct from transport failures: the lookup happened and
// came back empty.
var ErrUnknownToken = errors.New("unknown token")

// Quote is one token's spot data in USD.
type Quote struct {
	Symbol    string
	Price     float64
	MarketCap float64
	Change24h float64
}

type cachedQuote struct {
	quote   Quote
	fetched time.Time
}

// Client reads spot prices from the CoinGecko simple-price endpoint.
// Quotes are cached for a minute per identifier so the sweep and the
// command handlers don't hammer the free tier.
type Client struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	cache map[string]cachedQuote
	ttl   time.Duration
}

// NewClient builds a Client against the public CoinGecko endpoint.
func NewClient() *Client {
	return NewClientWithURL(defaultBaseURL)
}

// NewClientWithURL is the test seam; production code uses NewClient.
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   make(map[string]cachedQuote),
		ttl:     60 * time.Second,
	}
}

// TokenPrice fetches price, market cap and 24h change for one token.
// The identifier is lower-cased for the query; the returned Symbol is
// upper-cased. Returns ErrUnknownToken when the provider has no data.
func (c *Client) TokenPrice(ctx context.Context, symbol string) (Quote, error) {
	id := strings.ToLower(strings.TrimSpace(symbol))
	if id == "" {
		return Quote{}, ErrUnknownToken
	}

	c.mu.Lock()
	if hit, ok := c.cache[id]; ok && time.Since(hit.fetched) < c.ttl {
		c.mu.Unlock()
		return hit.quote, nil
	}
	c.mu.Unlock()

	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd")
	q.Set("include_market_cap", "true")
	q.Set("include_24hr_change", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return Quote{}, fmt.Errorf("build price request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("price lookup %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("price lookup %s: status %d", id, resp.StatusCode)
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("price lookup %s: decode: %w", id, err)
	}

	data, ok := payload[id]
	if !ok {
		return Quote{}, fmt.Errorf("%s: %w", id, ErrUnknownToken)
	}

	quote := Quote{
		Symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		Price:     data["usd"],
		MarketCap: data["usd_market_cap"],
		Change24h: data["usd_24h_change"],
	}

	c.mu.Lock()
	c.cache[id] = cachedQuote{quote: quote, fetched: time.Now()}
	c.mu.Unlock()

	return quote, nil
}

// SolanaPrice is a convenience wrapper for the native coin; 0 when the
// quote is unavailable for any reason.
func (c *Client) SolanaPrice(ctx context.Context) float64 {
	quote, err := c.TokenPrice(ctx, "solana")
	if err != nil {
		return 0
	}
	return quote.Price
}

// MultiplePrices looks symbols up one at a time (the free tier dislikes
// bursts) and maps symbol to USD price. Symbols with no quote are
// omitted from the result.
func (c *Client) MultiplePrices(ctx context.Context, symbols []string) map[string]float64 {
	prices := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		quote, err := c.TokenPrice(ctx, symbol)
		if err != nil {
			continue
		}
		prices[symbol] = quote.Price
	}
	return prices
}
