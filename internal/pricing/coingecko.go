package pricing

import (
	"context"
	"strings"
	"time"

	"cointrader/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Quote is one coin's current price in the settlement currency, plus
// the 24h change when the source reports it.
type Quote struct {
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change_24h"`
}

// Client fetches spot prices from a CoinGecko-compatible /simple/price
// endpoint. One bounded attempt per call: a slow or dead source fails
// the trade as ErrQuoteUnavailable rather than stretching its latency.
type Client struct {
	http       *resty.Client
	vsCurrency string
}

// NewClient builds a quote client for the given base URL and settlement
// currency. timeout bounds the whole request.
func NewClient(baseURL, vsCurrency string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: client, vsCurrency: vsCurrency}
}

// Prices returns quotes for the given coin ids. Ids the source does not
// recognize are simply absent from the result map; callers decide
// whether absence is an error.
func (c *Client) Prices(ctx context.Context, coinIDs []string) (map[string]Quote, error) {
	if len(coinIDs) == 0 {
		return map[string]Quote{}, nil
	}
	// Response shape: {"bitcoin": {"usd": 50000, "usd_24h_change": 1.2}}
	raw := map[string]map[string]decimal.Decimal{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":                 strings.Join(coinIDs, ","),
			"vs_currencies":       c.vsCurrency,
			"include_24hr_change": "true",
		}).
		SetResult(&raw).
		Get("/simple/price")
	if err != nil {
		return nil, errors.Wrapf(domain.ErrQuoteUnavailable, "quote request failed: %v", err)
	}
	if resp.IsError() {
		return nil, errors.Wrapf(domain.ErrQuoteUnavailable, "quote source returned %s", resp.Status())
	}
	quotes := make(map[string]Quote, len(raw))
	for id, fields := range raw {
		price, ok := fields[c.vsCurrency]
		if !ok {
			continue // Source answered without a price in our currency; treat as unsupported
		}
		quotes[id] = Quote{
			Price:     price,
			Change24h: fields[c.vsCurrency+"_24h_change"],
		}
	}
	return quotes, nil
}

// Price returns the current price for a single coin. An id missing from
// the response means the source does not support it: ErrQuoteUnavailable.
func (c *Client) Price(ctx context.Context, coinID string) (decimal.Decimal, error) {
	quotes, err := c.Prices(ctx, []string{coinID})
	if err != nil {
		return decimal.Zero, err
	}
	quote, ok := quotes[coinID]
	if !ok {
		return decimal.Zero, errors.Wrapf(domain.ErrQuoteUnavailable, "unsupported coin %q", coinID)
	}
	return quote.Price, nil
}
