package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/holdsight/wealth-api/models"
)

// Well-known native coin ids at the price API. Unknown symbols fall back to
// their lowercased symbol, which covers most listed coins.
var nativeCoinIDs = map[string]string{
	"ETH":   "ethereum",
	"BTC":   "bitcoin",
	"MATIC": "matic-network",
	"BNB":   "binancecoin",
	"SOL":   "solana",
}

type cachedPrice struct {
	price   *decimal.Decimal
	expires time.Time
}

// PriceService quotes crypto assets in the target fiat. Quotes are cached
// for TTL; a missing quote is cached too so unknown assets do not hammer
// the API.
type PriceService struct {
	BaseURL string
	Fiat    string
	TTL     time.Duration
	Client  *http.Client

	mu    sync.Mutex
	cache map[string]cachedPrice
}

func NewPriceService(baseURL, fiat string) *PriceService {
	return &PriceService{
		BaseURL: baseURL,
		Fiat:    strings.ToLower(fiat),
		TTL:     20 * time.Minute,
		Client:  &http.Client{Timeout: 30 * time.Second},
		cache:   map[string]cachedPrice{},
	}
}

// Price returns the fiat quote for an asset, or nil when the API does not
// know it. Native coins are looked up by coin id, tokens by contract.
func (s *PriceService) Price(ctx context.Context, asset models.RawCryptoAsset) (*decimal.Decimal, error) {
	key := priceCacheKey(asset)

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok && time.Now().Before(cached.expires) {
		s.mu.Unlock()
		return cached.price, nil
	}
	s.mu.Unlock()

	var (
		price *decimal.Decimal
		err   error
	)
	if asset.Type == models.CryptoToken {
		price, err = s.tokenPrice(ctx, asset.ContractAddress)
	} else {
		price, err = s.nativePrice(ctx, asset.Symbol)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = cachedPrice{price: price, expires: time.Now().Add(s.TTL)}
	s.mu.Unlock()
	return price, nil
}

func (s *PriceService) nativePrice(ctx context.Context, symbol string) (*decimal.Decimal, error) {
	coinID, ok := nativeCoinIDs[strings.ToUpper(symbol)]
	if !ok {
		coinID = strings.ToLower(symbol)
	}

	params := url.Values{
		"ids":           {coinID},
		"vs_currencies": {s.Fiat},
	}
	var result map[string]map[string]decimal.Decimal
	if err := s.get(ctx, "/simple/price?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	quotes, ok := result[coinID]
	if !ok {
		return nil, nil
	}
	price, ok := quotes[s.Fiat]
	if !ok {
		return nil, nil
	}
	return &price, nil
}

func (s *PriceService) tokenPrice(ctx context.Context, contract string) (*decimal.Decimal, error) {
	contract = strings.ToLower(contract)
	params := url.Values{
		"contract_addresses": {contract},
		"vs_currencies":      {s.Fiat},
	}
	var result map[string]map[string]decimal.Decimal
	if err := s.get(ctx, "/simple/token_price/ethereum?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	quotes, ok := result[contract]
	if !ok {
		return nil, nil
	}
	price, ok := quotes[s.Fiat]
	if !ok {
		return nil, nil
	}
	return &price, nil
}

// SearchAsset resolves display metadata for an asset the API could not
// quote, returning the first search candidate or nil when nothing matches.
func (s *PriceService) SearchAsset(ctx context.Context, asset models.RawCryptoAsset) (*models.CryptoAssetInfo, error) {
	params := url.Values{"query": {asset.Symbol}}
	var result struct {
		Coins []struct {
			Name   string `json:"name"`
			Symbol string `json:"symbol"`
		} `json:"coins"`
	}
	if err := s.get(ctx, "/search?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	if len(result.Coins) == 0 {
		return nil, nil
	}

	first := result.Coins[0]
	return &models.CryptoAssetInfo{
		Symbol:          strings.ToUpper(first.Symbol),
		Name:            first.Name,
		Type:            asset.Type,
		ContractAddress: asset.ContractAddress,
	}, nil
}

func (s *PriceService) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.BaseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.ErrTooManyRequests
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("price api %s: %s", path, resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func priceCacheKey(asset models.RawCryptoAsset) string {
	if asset.Type == models.CryptoToken {
		return "token:" + strings.ToLower(asset.ContractAddress)
	}
	return "native:" + strings.ToUpper(asset.Symbol)
}
