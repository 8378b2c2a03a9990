package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holdsight/wealth-api/models"
)

func TestPriceService_NativeQuote(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/simple/price" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("ids") != "ethereum" {
			t.Fatalf("unexpected ids %s", r.URL.Query().Get("ids"))
		}
		w.Write([]byte(`{"ethereum": {"eur": 2500.25}}`))
	}))
	defer server.Close()

	service := NewPriceService(server.URL, "EUR")

	price, err := service.Price(context.Background(), models.RawCryptoAsset{
		Symbol: "ETH",
		Type:   models.CryptoNative,
	})
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if price == nil || price.String() != "2500.25" {
		t.Fatalf("unexpected price: %v", price)
	}

	// Second lookup is served from cache.
	if _, err := service.Price(context.Background(), models.RawCryptoAsset{Symbol: "eth", Type: models.CryptoNative}); err != nil {
		t.Fatalf("cached price failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 API call, got %d", calls)
	}
}

func TestPriceService_UnknownAssetCachesNil(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	service := NewPriceService(server.URL, "EUR")
	asset := models.RawCryptoAsset{
		Symbol:          "JUNK",
		Type:            models.CryptoToken,
		ContractAddress: "0xDEAD",
	}

	for i := 0; i < 3; i++ {
		price, err := service.Price(context.Background(), asset)
		if err != nil {
			t.Fatalf("price failed: %v", err)
		}
		if price != nil {
			t.Fatalf("expected nil quote for unknown token, got %s", price)
		}
	}
	if calls != 1 {
		t.Fatalf("expected the missing quote to be cached, got %d calls", calls)
	}
}

func TestPriceService_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	service := NewPriceService(server.URL, "EUR")
	_, err := service.Price(context.Background(), models.RawCryptoAsset{Symbol: "BTC", Type: models.CryptoNative})
	if err != models.ErrTooManyRequests {
		t.Fatalf("expected ErrTooManyRequests, got %v", err)
	}
}

func TestPriceService_SearchAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("query") != "WLUNA" {
			t.Fatalf("unexpected query %s", r.URL.Query().Get("query"))
		}
		w.Write([]byte(`{"coins": [
			{"name": "Wrapped LUNA", "symbol": "wluna"},
			{"name": "Other LUNA", "symbol": "oluna"}
		]}`))
	}))
	defer server.Close()

	service := NewPriceService(server.URL, "EUR")
	candidate, err := service.SearchAsset(context.Background(), models.RawCryptoAsset{
		Symbol:          "WLUNA",
		Type:            models.CryptoToken,
		ContractAddress: "0xABC",
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if candidate == nil {
		t.Fatal("expected the first candidate")
	}
	if candidate.Symbol != "WLUNA" || candidate.Name != "Wrapped LUNA" {
		t.Fatalf("unexpected candidate %+v", candidate)
	}
	if candidate.ContractAddress != "0xABC" {
		t.Fatalf("expected the asset's contract kept, got %q", candidate.ContractAddress)
	}
}

func TestPriceService_SearchAssetNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"coins": []}`))
	}))
	defer server.Close()

	service := NewPriceService(server.URL, "EUR")
	candidate, err := service.SearchAsset(context.Background(), models.RawCryptoAsset{Symbol: "JUNK"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if candidate != nil {
		t.Fatalf("expected nil for an unknown symbol, got %+v", candidate)
	}
}

func TestPriceCacheKey(t *testing.T) {
	token := models.RawCryptoAsset{Type: models.CryptoToken, ContractAddress: "0xABC", Symbol: "TKN"}
	if got := priceCacheKey(token); got != "token:0xabc" {
		t.Fatalf("unexpected token key %q", got)
	}
	native := models.RawCryptoAsset{Type: models.CryptoNative, Symbol: "eth"}
	if got := priceCacheKey(native); got != "native:ETH" {
		t.Fatalf("unexpected native key %q", got)
	}
}
