package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cointrader/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricesParsesQuotes(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"ids":                 r.URL.Query().Get("ids"),
			"vs_currencies":       r.URL.Query().Get("vs_currencies"),
			"include_24hr_change": r.URL.Query().Get("include_24hr_change"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":50000,"usd_24h_change":1.25},"ethereum":{"usd":3000.5,"usd_24h_change":-0.5}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "usd", time.Second)
	quotes, err := client.Prices(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)

	assert.Equal(t, "bitcoin,ethereum", gotQuery["ids"])
	assert.Equal(t, "usd", gotQuery["vs_currencies"])
	assert.Equal(t, "true", gotQuery["include_24hr_change"])

	require.Len(t, quotes, 2)
	assert.True(t, quotes["bitcoin"].Price.Equal(decimal.NewFromInt(50000)))
	assert.True(t, quotes["bitcoin"].Change24h.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, quotes["ethereum"].Price.Equal(decimal.RequireFromString("3000.5")))
}

func TestPriceForUnsupportedCoin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// An unknown id is simply absent from the body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "usd", time.Second)
	_, err := client.Price(context.Background(), "notacoin")
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
}

func TestSourceErrorIsQuoteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "usd", time.Second)
	_, err := client.Price(context.Background(), "bitcoin")
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
}

func TestTimeoutIsQuoteUnavailable(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block // Hold the request past the client's budget
	}))
	defer srv.Close()
	defer close(block)

	client := NewClient(srv.URL, "usd", 50*time.Millisecond)
	start := time.Now()
	_, err := client.Price(context.Background(), "bitcoin")
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
	assert.Less(t, time.Since(start), time.Second, "timeout must bound the call")
}

func TestEmptyCoinList(t *testing.T) {
	client := NewClient("http://localhost:0", "usd", time.Second)
	quotes, err := client.Prices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}
