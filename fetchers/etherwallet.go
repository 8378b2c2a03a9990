package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/holdsight/wealth-api/models"
)

var weiPerEther = decimal.New(1, 18)

// EthereumFetcher reads native ETH and ERC-20 token balances for connected
// addresses through an etherscan-compatible gateway.
type EthereumFetcher struct {
	GatewayURL string
	APIKey     string
	Client     *http.Client
}

func NewEthereumFetcher(gatewayURL, apiKey string) *EthereumFetcher {
	return &EthereumFetcher{
		GatewayURL: gatewayURL,
		APIKey:     apiKey,
		Client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *EthereumFetcher) Fetch(ctx context.Context, request models.CryptoFetchRequest) (models.RawCryptoWallet, error) {
	wallet := models.RawCryptoWallet{
		ConnectionID: request.ConnectionID,
		Address:      request.Address,
		Name:         request.Name,
	}

	ethBalance, err := f.etherBalance(ctx, request.Address)
	if err != nil {
		return models.RawCryptoWallet{}, err
	}
	wallet.Assets = append(wallet.Assets, models.RawCryptoAsset{
		Symbol: "ETH",
		Name:   "Ethereum",
		Amount: ethBalance,
		Type:   models.CryptoNative,
	})

	tokens, err := f.tokenBalances(ctx, request.Address)
	if err != nil {
		return models.RawCryptoWallet{}, err
	}
	wallet.Assets = append(wallet.Assets, tokens...)

	return wallet, nil
}

// FetchMultiple loops over Fetch; the gateway has no batch endpoint for
// token balances.
func (f *EthereumFetcher) FetchMultiple(ctx context.Context, requests []models.CryptoFetchRequest) ([]models.RawCryptoWallet, error) {
	wallets := make([]models.RawCryptoWallet, 0, len(requests))
	for _, request := range requests {
		wallet, err := f.Fetch(ctx, request)
		if err != nil {
			return nil, fmt.Errorf("fetch wallet %s: %w", request.Address, err)
		}
		wallets = append(wallets, wallet)
	}
	return wallets, nil
}

func (f *EthereumFetcher) etherBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	params := url.Values{
		"module":  {"account"},
		"action":  {"balance"},
		"address": {address},
		"tag":     {"latest"},
	}

	var result struct {
		Status string `json:"status"`
		Result string `json:"result"`
	}
	if err := f.get(ctx, params, &result); err != nil {
		return decimal.Decimal{}, err
	}
	if result.Status != "1" {
		return decimal.Decimal{}, fmt.Errorf("balance query for %s failed: %s", address, result.Result)
	}

	wei, err := decimal.NewFromString(result.Result)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse wei balance: %w", err)
	}
	return wei.Div(weiPerEther), nil
}

func (f *EthereumFetcher) tokenBalances(ctx context.Context, address string) ([]models.RawCryptoAsset, error) {
	params := url.Values{
		"module":  {"account"},
		"action":  {"addresstokenbalance"},
		"address": {address},
	}

	var result struct {
		Status string `json:"status"`
		Result []struct {
			TokenAddress  string `json:"TokenAddress"`
			TokenName     string `json:"TokenName"`
			TokenSymbol   string `json:"TokenSymbol"`
			TokenQuantity string `json:"TokenQuantity"`
			TokenDivisor  string `json:"TokenDivisor"`
		} `json:"result"`
	}
	if err := f.get(ctx, params, &result); err != nil {
		return nil, err
	}
	if result.Status != "1" {
		// "0" with an empty list means no tokens, not an error.
		if len(result.Result) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("token query for %s failed", address)
	}

	var assets []models.RawCryptoAsset
	for _, token := range result.Result {
		quantity, err := decimal.NewFromString(token.TokenQuantity)
		if err != nil {
			return nil, fmt.Errorf("parse %s quantity: %w", token.TokenSymbol, err)
		}
		decimals := int32(18)
		if token.TokenDivisor != "" {
			divisor, err := decimal.NewFromString(token.TokenDivisor)
			if err != nil {
				return nil, fmt.Errorf("parse %s divisor: %w", token.TokenSymbol, err)
			}
			decimals = int32(len(divisor.String()) - 1)
		}
		amount := quantity.Div(decimal.New(1, decimals))
		if amount.IsZero() {
			continue
		}
		assets = append(assets, models.RawCryptoAsset{
			Symbol:          token.TokenSymbol,
			Name:            token.TokenName,
			Amount:          amount,
			Type:            models.CryptoToken,
			ContractAddress: strings.ToLower(token.TokenAddress),
		})
	}
	return assets, nil
}

func (f *EthereumFetcher) get(ctx context.Context, params url.Values, out any) error {
	if f.APIKey != "" {
		params.Set("apikey", f.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", f.GatewayURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.ErrTooManyRequests
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chain gateway: %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
