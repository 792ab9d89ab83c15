// Package currency resolves display currencies. Amounts are stored in USD;
// this package fetches the list of known currencies and their USD exchange
// rates, caches them, and converts amounts for display.
package currency

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"financeflow/internal/cache"
	applog "financeflow/internal/log"
)

const (
	// DefaultBaseURL serves daily currency names and exchange rates.
	DefaultBaseURL = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest"

	cacheKey = "currencies"
)

//go:embed fallback/*.json
var fallbackFS embed.FS

// Currency is one known display currency with its USD exchange rate.
type Currency struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Exchange float64 `json:"exchange"` // units per USD
}

type Service struct {
	client  *http.Client
	baseURL string
	cache   *cache.Cache[map[string]Currency]
}

func NewService(baseURL string, ttl time.Duration) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := cache.New[map[string]Currency](1, ttl)
	c.StartJanitor(ttl)
	return &Service{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		cache:   c,
	}
}

// Close stops the cache's background sweep.
func (s *Service) Close() {
	s.cache.StopJanitor()
}

// Currencies returns the known currencies keyed by lowercase code. Names
// and rates are fetched concurrently; when the remote API is unreachable
// the embedded snapshot is used instead, so this never fails outright.
func (s *Service) Currencies(ctx context.Context) (map[string]Currency, error) {
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	var names map[string]string
	var rates map[string]float64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.fetchJSON(gctx, "/v1/currencies.json", &names)
	})
	g.Go(func() error {
		var doc struct {
			USD map[string]float64 `json:"usd"`
		}
		if err := s.fetchJSON(gctx, "/v1/currencies/usd.json", &doc); err != nil {
			return err
		}
		rates = doc.USD
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.WarnContext(ctx, "Currency fetch failed, using embedded snapshot", applog.FieldError, err)
		return s.loadFallback(ctx)
	}

	currencies := buildCurrencies(names, rates)
	s.cache.Set(cacheKey, currencies)
	return currencies, nil
}

// Lookup returns one currency by code.
func (s *Service) Lookup(ctx context.Context, code string) (Currency, error) {
	currencies, err := s.Currencies(ctx)
	if err != nil {
		return Currency{}, err
	}
	c, ok := currencies[code]
	if !ok {
		return Currency{}, fmt.Errorf("unknown currency %q", code)
	}
	return c, nil
}

// Convert converts a USD amount into the given currency, rounded to two
// decimal places.
func (s *Service) Convert(ctx context.Context, amountUSD float64, code string) (float64, error) {
	c, err := s.Lookup(ctx, code)
	if err != nil {
		return 0, err
	}
	converted := decimal.NewFromFloat(amountUSD).
		Mul(decimal.NewFromFloat(c.Exchange)).
		Round(2)
	f, _ := converted.Float64()
	return f, nil
}

// Format converts a USD amount and renders it with the currency code, like
// "44.00 EUR".
func (s *Service) Format(ctx context.Context, amountUSD float64, code string) (string, error) {
	c, err := s.Lookup(ctx, code)
	if err != nil {
		return "", err
	}
	converted := decimal.NewFromFloat(amountUSD).
		Mul(decimal.NewFromFloat(c.Exchange)).
		Round(2)
	return fmt.Sprintf("%s %s", converted.StringFixed(2), strings.ToUpper(c.Code)), nil
}

func (s *Service) fetchJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (s *Service) loadFallback(ctx context.Context) (map[string]Currency, error) {
	var names map[string]string
	raw, err := fallbackFS.ReadFile("fallback/currencies.json")
	if err != nil {
		return nil, fmt.Errorf("read fallback currencies: %w", err)
	}
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("decode fallback currencies: %w", err)
	}

	var doc struct {
		USD map[string]float64 `json:"usd"`
	}
	raw, err = fallbackFS.ReadFile("fallback/usd.json")
	if err != nil {
		return nil, fmt.Errorf("read fallback rates: %w", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode fallback rates: %w", err)
	}

	// Fallback data is not cached so a recovered API wins on the next call.
	return buildCurrencies(names, doc.USD), nil
}

func buildCurrencies(names map[string]string, rates map[string]float64) map[string]Currency {
	currencies := make(map[string]Currency, len(names))
	for code, name := range names {
		if name == "" {
			continue
		}
		currencies[code] = Currency{Code: code, Name: name, Exchange: rates[code]}
	}
	return currencies
}
