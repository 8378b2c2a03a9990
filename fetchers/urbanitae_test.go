package fetchers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/holdsight/wealth-api/models"
)

func TestUrbanitaeLogin_Created(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/login" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["username"] != "john" || payload["password"] != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"token": "tok-123", "expiresIn": 1800}`))
	}))
	defer server.Close()

	fetcher := NewUrbanitaeFetcher()
	fetcher.BaseURL = server.URL

	result, err := fetcher.Login(context.Background(), models.LoginParams{
		Credentials: models.EntityCredentials{"user": "john", "password": "hunter2"},
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Code != models.LoginCreated {
		t.Fatalf("expected CREATED, got %s", result.Code)
	}
	if result.Session == nil || len(result.Session.Payload) == 0 {
		t.Fatal("expected a resumable session on CREATED")
	}
	if !result.Session.Expiration.After(time.Now()) {
		t.Fatal("expected session expiration in the future")
	}
}

func TestUrbanitaeLogin_InvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	fetcher := NewUrbanitaeFetcher()
	fetcher.BaseURL = server.URL

	result, err := fetcher.Login(context.Background(), models.LoginParams{
		Credentials: models.EntityCredentials{"user": "john", "password": "bad"},
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Code != models.LoginInvalidCredentials {
		t.Fatalf("expected INVALID_CREDENTIALS, got %s", result.Code)
	}
}

func TestUrbanitaeLogin_ResumesFreshSession(t *testing.T) {
	fetcher := NewUrbanitaeFetcher()
	fetcher.BaseURL = "http://127.0.0.1:0" // any request would fail

	payload, _ := json.Marshal(urbanitaeSession{Token: "tok-old"})
	result, err := fetcher.Login(context.Background(), models.LoginParams{
		Session: &models.EntitySession{
			Creation:   time.Now().Add(-time.Minute),
			Expiration: time.Now().Add(10 * time.Minute),
			Payload:    payload,
		},
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Code != models.LoginResumed {
		t.Fatalf("expected RESUMED, got %s", result.Code)
	}
}

func TestUrbanitaeLogin_AvoidNewLogin(t *testing.T) {
	fetcher := NewUrbanitaeFetcher()
	fetcher.BaseURL = "http://127.0.0.1:0"

	result, err := fetcher.Login(context.Background(), models.LoginParams{
		Options: models.LoginOptions{AvoidNewLogin: true},
		Session: &models.EntitySession{Expiration: time.Now().Add(-time.Hour)},
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Code != models.LoginNotLogged {
		t.Fatalf("expected NOT_LOGGED, got %s", result.Code)
	}
}

func TestUrbanitaeGlobalPosition_FiltersInactivePhases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wallet":
			w.Write([]byte(`{"balance": "150.75"}`))
		case "/investments":
			w.Write([]byte(`[
				{"projectName": "Calle Mayor 5", "projectPhase": "FUNDED", "projectType": "LENDING", "invested": "1000", "pending": "1000", "annualReturn": "0.11", "investedAt": "2024-02-01T10:00:00Z", "endsAt": "2025-02-01"},
				{"projectName": "Gran Via 20", "projectPhase": "REPAID", "projectType": "LENDING", "invested": "500", "pending": "0", "annualReturn": "0.09", "investedAt": "2023-01-15T10:00:00Z", "endsAt": "2024-01-15"}
			]`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	fetcher := NewUrbanitaeFetcher()
	fetcher.BaseURL = server.URL

	position, err := fetcher.GlobalPosition(context.Background())
	if err != nil {
		t.Fatalf("global position failed: %v", err)
	}

	accounts := position.Products[models.ProductAccount].(models.Accounts)
	if accounts.Entries[0].Type != models.AccountVirtualWallet {
		t.Fatalf("expected virtual wallet, got %s", accounts.Entries[0].Type)
	}
	if got := accounts.Entries[0].Total.String(); got != "150.75" {
		t.Fatalf("unexpected wallet total %s", got)
	}

	investments := position.Products[models.ProductRealEstateCF].(models.RealEstateCFInvestments)
	if len(investments.Entries) != 1 {
		t.Fatalf("expected repaid project filtered out, got %d entries", len(investments.Entries))
	}
	if got := investments.Total.String(); got != "1000" {
		t.Fatalf("unexpected total %s", got)
	}
	if got := investments.WeightedInterestRate.String(); got != "0.11" {
		t.Fatalf("unexpected weighted rate %s", got)
	}
}

func TestUrbanitaeTransactions_SkipsRegisteredRefs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": "tx-1", "type": "INVESTMENT", "amount": "-1000", "projectName": "Calle Mayor 5", "timestamp": "2024-02-01T10:00:00Z"},
			{"id": "tx-2", "type": "INTEREST", "amount": "45.50", "projectName": "Calle Mayor 5", "timestamp": "2024-05-01T10:00:00Z"},
			{"id": "tx-3", "type": "WALLET_TOPUP", "amount": "200", "projectName": "", "timestamp": "2024-05-02T10:00:00Z"}
		]`))
	}))
	defer server.Close()

	fetcher := NewUrbanitaeFetcher()
	fetcher.BaseURL = server.URL

	txs, err := fetcher.Transactions(context.Background(), map[string]bool{"tx-1": true}, models.FetchOptions{})
	if err != nil {
		t.Fatalf("transactions failed: %v", err)
	}
	if len(txs.Investment) != 1 {
		t.Fatalf("expected 1 new transaction, got %d", len(txs.Investment))
	}
	tx := txs.Investment[0]
	if tx.Ref != "tx-2" || tx.Type != models.TxInterest {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if got := tx.Amount.String(); got != "45.5" {
		t.Fatalf("unexpected amount %s", got)
	}
}

func TestUrbanitaeTxType(t *testing.T) {
	cases := []struct {
		in       string
		expected models.TxType
		ok       bool
	}{
		{"INVESTMENT", models.TxInvestment, true},
		{"PREFUNDING_INVESTMENT", models.TxInvestment, true},
		{"REPAYMENT", models.TxRepayment, true},
		{"CAPITAL_RETURN", models.TxRepayment, true},
		{"INTEREST", models.TxInterest, true},
		{"RENT", models.TxInterest, true},
		{"WALLET_TOPUP", "", false},
	}
	for _, tc := range cases {
		got, ok := urbanitaeTxType(tc.in)
		if ok != tc.ok || got != tc.expected {
			t.Fatalf("urbanitaeTxType(%q) = %s/%v, expected %s/%v", tc.in, got, ok, tc.expected, tc.ok)
		}
	}
}
