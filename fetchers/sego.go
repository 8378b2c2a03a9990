package fetchers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/holdsight/wealth-api/models"
)

// SegoFetcher covers the invoice-factoring marketplace. Login is a two-leg
// flow: credentials trigger an SMS code, the second call completes with it.
type SegoFetcher struct {
	UnsupportedFeatures

	BaseURL string
	Client  *http.Client

	token string
}

func NewSegoFetcher() *SegoFetcher {
	return &SegoFetcher{
		BaseURL: "https://api.sego.finance",
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

var segoFinishedStates = map[string]bool{
	"FINISHED":  true,
	"CANCELLED": true,
	"DEFAULTED": true,
}

type segoSession struct {
	Token string `json:"token"`
}

func (f *SegoFetcher) Login(ctx context.Context, params models.LoginParams) (models.LoginResult, error) {
	now := time.Now()
	if params.Session.Fresh(now) && !params.Options.ForceNewSession {
		var session segoSession
		if err := json.Unmarshal(params.Session.Payload, &session); err == nil && session.Token != "" {
			f.token = session.Token
			return models.LoginResult{Code: models.LoginResumed}, nil
		}
	}

	if params.TwoFactor != nil && params.TwoFactor.Code != "" {
		return f.completeLogin(ctx, now, params)
	}

	if params.Options.AvoidNewLogin {
		return models.LoginResult{Code: models.LoginNotLogged}, nil
	}

	payload := map[string]string{
		"email":    params.Credentials["user"],
		"password": params.Credentials["password"],
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", f.BaseURL+"/auth/login", bytes.NewBuffer(body))
	if err != nil {
		return models.LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return models.LoginResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return models.LoginResult{Code: models.LoginInvalidCredentials}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return models.LoginResult{Code: models.LoginUnexpectedError, Message: resp.Status}, nil
	}

	var result struct {
		ProcessID string `json:"processId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.LoginResult{}, err
	}

	return models.LoginResult{
		Code:      models.LoginCodeRequested,
		ProcessID: result.ProcessID,
	}, nil
}

func (f *SegoFetcher) completeLogin(ctx context.Context, now time.Time, params models.LoginParams) (models.LoginResult, error) {
	payload := map[string]string{
		"processId": params.TwoFactor.ProcessID,
		"code":      params.TwoFactor.Code,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", f.BaseURL+"/auth/verify", bytes.NewBuffer(body))
	if err != nil {
		return models.LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return models.LoginResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return models.LoginResult{Code: models.LoginInvalidCode}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return models.LoginResult{Code: models.LoginUnexpectedError, Message: resp.Status}, nil
	}

	var result struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expiresIn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.LoginResult{}, err
	}

	f.token = result.Token

	sessionPayload, _ := json.Marshal(segoSession{Token: result.Token})
	expiration := now.Add(time.Duration(result.ExpiresIn) * time.Second)
	if result.ExpiresIn == 0 {
		expiration = now.Add(time.Hour)
	}

	return models.LoginResult{
		Code: models.LoginCreated,
		Session: &models.EntitySession{
			Creation:   now,
			Expiration: expiration,
			Payload:    sessionPayload,
		},
	}, nil
}

func (f *SegoFetcher) GlobalPosition(ctx context.Context) (models.GlobalPosition, error) {
	var wallet struct {
		Amount string `json:"amount"`
	}
	if err := f.get(ctx, "/wallet/balance", &wallet); err != nil {
		return models.GlobalPosition{}, err
	}
	balance, err := decimal.NewFromString(wallet.Amount)
	if err != nil {
		return models.GlobalPosition{}, fmt.Errorf("parse wallet balance: %w", err)
	}

	investments, err := f.investments(ctx)
	if err != nil {
		return models.GlobalPosition{}, err
	}

	var details []models.FactoringDetail
	total := decimal.Zero
	weighted := decimal.Zero
	for _, inv := range investments {
		if segoFinishedStates[inv.State] {
			continue
		}
		detail, err := inv.toDetail()
		if err != nil {
			return models.GlobalPosition{}, err
		}
		details = append(details, detail)
		total = total.Add(detail.Amount)
		weighted = weighted.Add(detail.Amount.Mul(detail.InterestRate))
	}

	rate := decimal.Zero
	if !total.IsZero() {
		rate = weighted.Div(total).Round(4)
	}

	products := models.Products{
		models.ProductAccount: models.Accounts{Entries: []models.Account{{
			ID:       uuid.New(),
			Total:    balance.Round(2),
			Currency: "EUR",
			Type:     models.AccountVirtualWallet,
			Source:   models.SourceReal,
		}}},
		models.ProductFactoring: models.FactoringInvestments{
			Total:                total.Round(2),
			WeightedInterestRate: rate,
			Entries:              details,
		},
	}

	return models.NewGlobalPosition(models.Sego.ID, products), nil
}

func (f *SegoFetcher) Transactions(ctx context.Context, registeredRefs map[string]bool, _ models.FetchOptions) (models.Transactions, error) {
	var raw []struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Operation string `json:"operationName"`
		Amount    string `json:"amount"`
		Fees      string `json:"fees"`
		Retention string `json:"retention"`
		Interests string `json:"interests"`
		Timestamp string `json:"createdAt"`
	}
	if err := f.get(ctx, "/wallet/transactions?pageSize=1000", &raw); err != nil {
		return models.Transactions{}, err
	}

	var txs models.Transactions
	for _, entry := range raw {
		if registeredRefs[entry.ID] {
			continue
		}
		txType, ok := segoTxType(entry.Type)
		if !ok {
			continue
		}
		amount, err := decimal.NewFromString(entry.Amount)
		if err != nil {
			return models.Transactions{}, fmt.Errorf("parse tx %s amount: %w", entry.ID, err)
		}
		date, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil {
			return models.Transactions{}, fmt.Errorf("parse tx %s date: %w", entry.ID, err)
		}

		tx := models.InvestmentTx{
			ID:          uuid.New(),
			Ref:         entry.ID,
			Name:        entry.Operation,
			Amount:      amount.Abs().Round(2),
			Currency:    "EUR",
			Type:        txType,
			Date:        date,
			EntityID:    models.Sego.ID,
			ProductType: models.ProductFactoring,
			Source:      models.SourceReal,
		}
		if entry.Fees != "" {
			fees, err := decimal.NewFromString(entry.Fees)
			if err != nil {
				return models.Transactions{}, fmt.Errorf("parse tx %s fees: %w", entry.ID, err)
			}
			tx.Fees = fees.Abs().Round(2)
		}
		if entry.Retention != "" {
			retention, err := decimal.NewFromString(entry.Retention)
			if err != nil {
				return models.Transactions{}, fmt.Errorf("parse tx %s retention: %w", entry.ID, err)
			}
			tx.Retentions = retention.Abs().Round(2)
		}
		if entry.Interests != "" {
			interests, err := decimal.NewFromString(entry.Interests)
			if err != nil {
				return models.Transactions{}, fmt.Errorf("parse tx %s interests: %w", entry.ID, err)
			}
			tx.Interests = interests.Abs().Round(2)
		}
		txs.Investment = append(txs.Investment, tx)
	}
	return txs, nil
}

func (f *SegoFetcher) HistoricalPosition(ctx context.Context) (models.HistoricalPosition, error) {
	investments, err := f.investments(ctx)
	if err != nil {
		return models.HistoricalPosition{}, err
	}

	var details []models.FactoringDetail
	for _, inv := range investments {
		detail, err := inv.toDetail()
		if err != nil {
			return models.HistoricalPosition{}, err
		}
		details = append(details, detail)
	}

	return models.HistoricalPosition{
		Products: models.Products{
			models.ProductFactoring: models.FactoringInvestments{Entries: details},
		},
	}, nil
}

type segoInvestment struct {
	Name       string `json:"operationName"`
	Category   string `json:"category"`
	State      string `json:"state"`
	Amount     string `json:"amount"`
	NetRate    string `json:"netInterestRate"`
	GrossRate  string `json:"grossInterestRate"`
	InvestedAt string `json:"investedAt"`
	MaturesAt  string `json:"maturityDate"`
}

func (inv segoInvestment) toDetail() (models.FactoringDetail, error) {
	amount, err := decimal.NewFromString(inv.Amount)
	if err != nil {
		return models.FactoringDetail{}, fmt.Errorf("parse %s amount: %w", inv.Name, err)
	}
	netRate, err := decimal.NewFromString(inv.NetRate)
	if err != nil {
		return models.FactoringDetail{}, fmt.Errorf("parse %s net rate: %w", inv.Name, err)
	}
	grossRate := netRate
	if inv.GrossRate != "" {
		if grossRate, err = decimal.NewFromString(inv.GrossRate); err != nil {
			return models.FactoringDetail{}, fmt.Errorf("parse %s gross rate: %w", inv.Name, err)
		}
	}
	investedAt, err := time.Parse(time.RFC3339, inv.InvestedAt)
	if err != nil {
		return models.FactoringDetail{}, fmt.Errorf("parse %s invest date: %w", inv.Name, err)
	}
	maturity, err := time.Parse("2006-01-02", inv.MaturesAt)
	if err != nil {
		return models.FactoringDetail{}, fmt.Errorf("parse %s maturity: %w", inv.Name, err)
	}

	return models.FactoringDetail{
		ID:                uuid.New(),
		Name:              inv.Name,
		Amount:            amount.Round(2),
		Currency:          "EUR",
		InterestRate:      netRate.Round(4),
		GrossInterestRate: grossRate.Round(4),
		LastInvestDate:    investedAt,
		Maturity:          maturity,
		Type:              inv.Category,
		State:             inv.State,
		Source:            models.SourceReal,
	}, nil
}

func (f *SegoFetcher) investments(ctx context.Context) ([]segoInvestment, error) {
	var investments []segoInvestment
	if err := f.get(ctx, "/investments?pageSize=1000", &investments); err != nil {
		return nil, err
	}
	return investments, nil
}

func (f *SegoFetcher) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", f.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.ErrTooManyRequests
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sego %s: %s", path, resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func segoTxType(provider string) (models.TxType, bool) {
	switch provider {
	case "INVESTMENT":
		return models.TxInvestment, true
	case "REPAYMENT", "DEVOLUTION":
		return models.TxRepayment, true
	case "INTEREST", "YIELD":
		return models.TxInterest, true
	default:
		return "", false
	}
}
