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

// Phases in which a project still holds user money.
var urbanitaeActivePhases = map[string]bool{
	"PREFUNDING": true,
	"FUNDING":    true,
	"FUNDED":     true,
	"FORMALIZED": true,
	"ACQUIRED":   true,
	"REFORM":     true,
	"FOR_RENT":   true,
	"RENTED":     true,
	"FOR_SALE":   true,
	"SOLD":       true,
}

// UrbanitaeFetcher reads the real-estate crowdfunding platform: a virtual
// wallet account plus one investment per funded project.
type UrbanitaeFetcher struct {
	UnsupportedFeatures

	BaseURL string
	Client  *http.Client

	token string
}

func NewUrbanitaeFetcher() *UrbanitaeFetcher {
	return &UrbanitaeFetcher{
		BaseURL: "https://urbanitae.com/api",
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type urbanitaeSession struct {
	Token string `json:"token"`
}

func (f *UrbanitaeFetcher) Login(ctx context.Context, params models.LoginParams) (models.LoginResult, error) {
	now := time.Now()
	if params.Session.Fresh(now) && !params.Options.ForceNewSession {
		var session urbanitaeSession
		if err := json.Unmarshal(params.Session.Payload, &session); err == nil && session.Token != "" {
			f.token = session.Token
			return models.LoginResult{Code: models.LoginResumed}, nil
		}
	}

	if params.Options.AvoidNewLogin {
		return models.LoginResult{Code: models.LoginNotLogged}, nil
	}

	payload := map[string]string{
		"username": params.Credentials["user"],
		"password": params.Credentials["password"],
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", f.BaseURL+"/session/login", bytes.NewBuffer(body))
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
		Token     string `json:"token"`
		ExpiresIn int    `json:"expiresIn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.LoginResult{}, err
	}

	f.token = result.Token

	sessionPayload, _ := json.Marshal(urbanitaeSession{Token: result.Token})
	expiration := now.Add(time.Duration(result.ExpiresIn) * time.Second)
	if result.ExpiresIn == 0 {
		expiration = now.Add(30 * time.Minute)
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

func (f *UrbanitaeFetcher) GlobalPosition(ctx context.Context) (models.GlobalPosition, error) {
	var wallet struct {
		Balance string `json:"balance"`
	}
	if err := f.get(ctx, "/wallet", &wallet); err != nil {
		return models.GlobalPosition{}, err
	}
	balance, err := decimal.NewFromString(wallet.Balance)
	if err != nil {
		return models.GlobalPosition{}, fmt.Errorf("parse wallet balance: %w", err)
	}

	investments, err := f.investments(ctx)
	if err != nil {
		return models.GlobalPosition{}, err
	}

	var details []models.RealEstateCFDetail
	total := decimal.Zero
	weighted := decimal.Zero
	for _, inv := range investments {
		if !urbanitaeActivePhases[inv.ProjectPhase] {
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
		models.ProductRealEstateCF: models.RealEstateCFInvestments{
			Total:                total.Round(2),
			WeightedInterestRate: rate,
			Entries:              details,
		},
	}

	return models.NewGlobalPosition(models.Urbanitae.ID, products), nil
}

func (f *UrbanitaeFetcher) Transactions(ctx context.Context, registeredRefs map[string]bool, _ models.FetchOptions) (models.Transactions, error) {
	var raw []struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Amount    string `json:"amount"`
		Project   string `json:"projectName"`
		Timestamp string `json:"timestamp"`
	}
	if err := f.get(ctx, "/transactions?size=1000", &raw); err != nil {
		return models.Transactions{}, err
	}

	var txs models.Transactions
	for _, entry := range raw {
		if registeredRefs[entry.ID] {
			continue
		}
		txType, ok := urbanitaeTxType(entry.Type)
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
		txs.Investment = append(txs.Investment, models.InvestmentTx{
			ID:          uuid.New(),
			Ref:         entry.ID,
			Name:        entry.Project,
			Amount:      amount.Abs().Round(2),
			Currency:    "EUR",
			Type:        txType,
			Date:        date,
			EntityID:    models.Urbanitae.ID,
			ProductType: models.ProductRealEstateCF,
			Source:      models.SourceReal,
		})
	}
	return txs, nil
}

func (f *UrbanitaeFetcher) HistoricalPosition(ctx context.Context) (models.HistoricalPosition, error) {
	investments, err := f.investments(ctx)
	if err != nil {
		return models.HistoricalPosition{}, err
	}

	var details []models.RealEstateCFDetail
	for _, inv := range investments {
		detail, err := inv.toDetail()
		if err != nil {
			return models.HistoricalPosition{}, err
		}
		details = append(details, detail)
	}

	return models.HistoricalPosition{
		Products: models.Products{
			models.ProductRealEstateCF: models.RealEstateCFInvestments{Entries: details},
		},
	}, nil
}

type urbanitaeInvestment struct {
	ProjectName  string `json:"projectName"`
	ProjectPhase string `json:"projectPhase"`
	ProjectType  string `json:"projectType"`
	BusinessType string `json:"businessType"`
	Invested     string `json:"invested"`
	Pending      string `json:"pending"`
	InterestRate string `json:"annualReturn"`
	InvestedAt   string `json:"investedAt"`
	EndsAt       string `json:"endsAt"`
}

func (inv urbanitaeInvestment) toDetail() (models.RealEstateCFDetail, error) {
	amount, err := decimal.NewFromString(inv.Invested)
	if err != nil {
		return models.RealEstateCFDetail{}, fmt.Errorf("parse %s invested: %w", inv.ProjectName, err)
	}
	pending := decimal.Zero
	if inv.Pending != "" {
		if pending, err = decimal.NewFromString(inv.Pending); err != nil {
			return models.RealEstateCFDetail{}, fmt.Errorf("parse %s pending: %w", inv.ProjectName, err)
		}
	}
	rate, err := decimal.NewFromString(inv.InterestRate)
	if err != nil {
		return models.RealEstateCFDetail{}, fmt.Errorf("parse %s rate: %w", inv.ProjectName, err)
	}
	investedAt, err := time.Parse(time.RFC3339, inv.InvestedAt)
	if err != nil {
		return models.RealEstateCFDetail{}, fmt.Errorf("parse %s invest date: %w", inv.ProjectName, err)
	}
	maturity, err := time.Parse("2006-01-02", inv.EndsAt)
	if err != nil {
		return models.RealEstateCFDetail{}, fmt.Errorf("parse %s maturity: %w", inv.ProjectName, err)
	}

	return models.RealEstateCFDetail{
		ID:             uuid.New(),
		Name:           inv.ProjectName,
		Amount:         amount.Round(2),
		PendingAmount:  pending.Round(2),
		Currency:       "EUR",
		InterestRate:   rate,
		LastInvestDate: investedAt,
		Maturity:       maturity,
		Type:           inv.ProjectType,
		BusinessType:   inv.BusinessType,
		State:          inv.ProjectPhase,
		Source:         models.SourceReal,
	}, nil
}

func (f *UrbanitaeFetcher) investments(ctx context.Context) ([]urbanitaeInvestment, error) {
	var investments []urbanitaeInvestment
	if err := f.get(ctx, "/investments?size=1000", &investments); err != nil {
		return nil, err
	}
	return investments, nil
}

func (f *UrbanitaeFetcher) get(ctx context.Context, path string, out any) error {
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
		return fmt.Errorf("urbanitae %s: %s", path, resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func urbanitaeTxType(provider string) (models.TxType, bool) {
	switch provider {
	case "INVESTMENT", "PREFUNDING_INVESTMENT":
		return models.TxInvestment, true
	case "REPAYMENT", "CAPITAL_RETURN":
		return models.TxRepayment, true
	case "INTEREST", "RENT":
		return models.TxInterest, true
	default:
		return "", false
	}
}
