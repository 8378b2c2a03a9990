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

// UnicajaFetcher covers the traditional bank. The site sits behind bot
// protection, so automated logins need an "abck" cookie captured from a
// manual browser login; without it the flow is reported as MANUAL_LOGIN.
type UnicajaFetcher struct {
	UnsupportedFeatures

	BaseURL string
	Client  *http.Client

	cookie string
}

func NewUnicajaFetcher() *UnicajaFetcher {
	return &UnicajaFetcher{
		BaseURL: "https://univia.unicajabanco.es/services",
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type unicajaSession struct {
	Cookie string `json:"cookie"`
}

func (f *UnicajaFetcher) Login(ctx context.Context, params models.LoginParams) (models.LoginResult, error) {
	now := time.Now()
	if params.Session.Fresh(now) && !params.Options.ForceNewSession {
		var session unicajaSession
		if err := json.Unmarshal(params.Session.Payload, &session); err == nil && session.Cookie != "" {
			f.cookie = session.Cookie
			return models.LoginResult{Code: models.LoginResumed}, nil
		}
	}

	if params.Options.AvoidNewLogin {
		return models.LoginResult{Code: models.LoginNotLogged}, nil
	}

	abck := params.Credentials["abck"]
	if abck == "" {
		return models.LoginResult{Code: models.LoginManual}, nil
	}

	payload := map[string]string{
		"username": params.Credentials["user"],
		"password": params.Credentials["password"],
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", f.BaseURL+"/login", bytes.NewBuffer(body))
	if err != nil {
		return models.LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "_abck", Value: abck})

	resp, err := f.Client.Do(req)
	if err != nil {
		return models.LoginResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return models.LoginResult{Code: models.LoginInvalidCredentials}, nil
	case resp.StatusCode == http.StatusForbidden:
		// Bot protection rejected the cookie; a fresh manual login is needed.
		return models.LoginResult{Code: models.LoginManual}, nil
	case resp.StatusCode != http.StatusOK:
		return models.LoginResult{Code: models.LoginUnexpectedError, Message: resp.Status}, nil
	}

	var sessionCookie string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "JSESSIONID" {
			sessionCookie = cookie.Value
		}
	}
	if sessionCookie == "" {
		return models.LoginResult{Code: models.LoginUnexpectedError, Message: "no session cookie issued"}, nil
	}

	f.cookie = sessionCookie

	sessionPayload, _ := json.Marshal(unicajaSession{Cookie: sessionCookie})
	return models.LoginResult{
		Code: models.LoginCreated,
		Session: &models.EntitySession{
			Creation:   now,
			Expiration: now.Add(10 * time.Minute),
			Payload:    sessionPayload,
		},
	}, nil
}

func (f *UnicajaFetcher) GlobalPosition(ctx context.Context) (models.GlobalPosition, error) {
	products := models.Products{}

	var accountsRaw struct {
		Accounts []struct {
			Alias    string `json:"alias"`
			IBAN     string `json:"iban"`
			Balance  string `json:"balance"`
			Retained string `json:"retained"`
		} `json:"accounts"`
	}
	if err := f.get(ctx, "/accounts", &accountsRaw); err != nil {
		return models.GlobalPosition{}, err
	}

	var accounts []models.Account
	for _, acc := range accountsRaw.Accounts {
		balance, err := decimal.NewFromString(acc.Balance)
		if err != nil {
			return models.GlobalPosition{}, fmt.Errorf("parse account %s balance: %w", acc.IBAN, err)
		}
		account := models.Account{
			ID:       uuid.New(),
			Name:     acc.Alias,
			IBAN:     acc.IBAN,
			Total:    balance.Round(2),
			Currency: "EUR",
			Type:     models.AccountChecking,
			Source:   models.SourceReal,
		}
		if acc.Retained != "" {
			retained, err := decimal.NewFromString(acc.Retained)
			if err != nil {
				return models.GlobalPosition{}, fmt.Errorf("parse account %s retained: %w", acc.IBAN, err)
			}
			retained = retained.Round(2)
			account.Retained = &retained
		}
		accounts = append(accounts, account)
	}
	if len(accounts) > 0 {
		products[models.ProductAccount] = models.Accounts{Entries: accounts}
	}

	var loansRaw struct {
		Loans []struct {
			Alias       string `json:"alias"`
			Type        string `json:"type"`
			Installment string `json:"currentInstallment"`
			Rate        string `json:"interestRate"`
			Initial     string `json:"initialAmount"`
			Outstanding string `json:"pendingAmount"`
			CreatedAt   string `json:"startDate"`
			MaturesAt   string `json:"endDate"`
		} `json:"loans"`
	}
	if err := f.get(ctx, "/loans", &loansRaw); err != nil {
		return models.GlobalPosition{}, err
	}

	var loans []models.Loan
	for _, entry := range loansRaw.Loans {
		installment, err := decimal.NewFromString(entry.Installment)
		if err != nil {
			return models.GlobalPosition{}, fmt.Errorf("parse loan %s installment: %w", entry.Alias, err)
		}
		rate, err := decimal.NewFromString(entry.Rate)
		if err != nil {
			return models.GlobalPosition{}, fmt.Errorf("parse loan %s rate: %w", entry.Alias, err)
		}
		initial, err := decimal.NewFromString(entry.Initial)
		if err != nil {
			return models.GlobalPosition{}, fmt.Errorf("parse loan %s amount: %w", entry.Alias, err)
		}
		outstanding, err := decimal.NewFromString(entry.Outstanding)
		if err != nil {
			return models.GlobalPosition{}, fmt.Errorf("parse loan %s outstanding: %w", entry.Alias, err)
		}
		creation, err := time.Parse("2006-01-02", entry.CreatedAt)
		if err != nil {
			return models.GlobalPosition{}, fmt.Errorf("parse loan %s start: %w", entry.Alias, err)
		}
		maturity, err := time.Parse("2006-01-02", entry.MaturesAt)
		if err != nil {
			return models.GlobalPosition{}, fmt.Errorf("parse loan %s end: %w", entry.Alias, err)
		}

		loanType := models.LoanStandard
		if entry.Type == "MORTGAGE" {
			loanType = models.LoanMortgage
		}
		paid := initial.Sub(outstanding).Round(2)
		loans = append(loans, models.Loan{
			ID:                   uuid.New(),
			Name:                 entry.Alias,
			Type:                 loanType,
			Currency:             "EUR",
			CurrentInstallment:   installment.Round(2),
			InterestRate:         rate.Round(4),
			LoanAmount:           initial.Round(2),
			PrincipalOutstanding: outstanding.Round(2),
			PrincipalPaid:        &paid,
			Creation:             creation,
			Maturity:             maturity,
			Source:               models.SourceReal,
		})
	}
	if len(loans) > 0 {
		products[models.ProductLoan] = models.Loans{Entries: loans}
	}

	return models.NewGlobalPosition(models.Unicaja.ID, products), nil
}

func (f *UnicajaFetcher) Transactions(context.Context, map[string]bool, models.FetchOptions) (models.Transactions, error) {
	return models.Transactions{}, nil
}

func (f *UnicajaFetcher) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", f.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.AddCookie(&http.Cookie{Name: "JSESSIONID", Value: f.cookie})

	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.ErrTooManyRequests
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unicaja %s: %s", path, resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
