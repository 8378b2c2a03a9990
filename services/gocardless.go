package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/holdsight/wealth-api/models"
)

// GoCardlessService wraps the bank account data API. Access tokens are
// cached for their lifetime and refreshed transparently.
type GoCardlessService struct {
	SecretID  string
	SecretKey string
	BaseURL   string
	Client    *http.Client

	mu           sync.Mutex
	token        string
	tokenExpires time.Time
}

func NewGoCardlessService(secretID, secretKey string) *GoCardlessService {
	return &GoCardlessService{
		SecretID:  secretID,
		SecretKey: secretKey,
		BaseURL:   "https://bankaccountdata.gocardless.com/api/v2",
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether provider credentials are present. Without them
// every external operation fails with ErrIntegrationRequired.
func (s *GoCardlessService) Configured() bool {
	return s.SecretID != "" && s.SecretKey != ""
}

func (s *GoCardlessService) accessToken(ctx context.Context) (string, error) {
	if !s.Configured() {
		return "", models.ErrIntegrationRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.tokenExpires) {
		return s.token, nil
	}

	payload := map[string]string{
		"secret_id":  s.SecretID,
		"secret_key": s.SecretKey,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", s.BaseURL+"/token/new/", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := mapProviderStatus(resp.StatusCode); err != nil {
		return "", err
	}

	var result struct {
		Access        string `json:"access"`
		AccessExpires int    `json:"access_expires"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	s.token = result.Access
	s.tokenExpires = time.Now().Add(time.Duration(result.AccessExpires) * time.Second).Add(-time.Minute)
	return s.token, nil
}

// Requisition is a pending or completed bank-link request at the provider.
type Requisition struct {
	ID       string   `json:"id"`
	Link     string   `json:"link"`
	Status   string   `json:"status"`
	Accounts []string `json:"accounts"`
}

func (s *GoCardlessService) CreateRequisition(ctx context.Context, institutionID, redirectURL, language string) (*Requisition, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]string{
		"redirect":       redirectURL,
		"institution_id": institutionID,
	}
	if language != "" {
		payload["user_language"] = language
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", s.BaseURL+"/requisitions/", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := mapProviderStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	respBody, _ := io.ReadAll(resp.Body)
	var requisition Requisition
	if err := json.Unmarshal(respBody, &requisition); err != nil {
		return nil, fmt.Errorf("decode requisition: %w, body: %s", err, string(respBody))
	}
	return &requisition, nil
}

func (s *GoCardlessService) GetRequisition(ctx context.Context, requisitionID string) (*Requisition, error) {
	var requisition Requisition
	if err := s.get(ctx, "/requisitions/"+requisitionID+"/", &requisition); err != nil {
		return nil, err
	}
	return &requisition, nil
}

func (s *GoCardlessService) DeleteRequisition(ctx context.Context, requisitionID string) error {
	token, err := s.accessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "DELETE", s.BaseURL+"/requisitions/"+requisitionID+"/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 404 is fine here: the requisition is already gone.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return mapProviderStatus(resp.StatusCode)
}

type AccountDetails struct {
	IBAN     string `json:"iban"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

func (s *GoCardlessService) GetAccountDetails(ctx context.Context, accountID string) (*AccountDetails, error) {
	var result struct {
		Account AccountDetails `json:"account"`
	}
	if err := s.get(ctx, "/accounts/"+accountID+"/details/", &result); err != nil {
		return nil, err
	}
	return &result.Account, nil
}

func (s *GoCardlessService) GetAccountBalance(ctx context.Context, accountID string) (string, string, error) {
	var result struct {
		Balances []struct {
			BalanceAmount struct {
				Amount   string `json:"amount"`
				Currency string `json:"currency"`
			} `json:"balanceAmount"`
			BalanceType string `json:"balanceType"`
		} `json:"balances"`
	}
	if err := s.get(ctx, "/accounts/"+accountID+"/balances/", &result); err != nil {
		return "", "", err
	}

	for _, bal := range result.Balances {
		if bal.BalanceType == "interimAvailable" || bal.BalanceType == "expected" {
			return bal.BalanceAmount.Amount, bal.BalanceAmount.Currency, nil
		}
	}
	return "", "", fmt.Errorf("no suitable balance for account %s", accountID)
}

type ProviderTransaction struct {
	TransactionID string `json:"transactionId"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	BookingDate   string `json:"bookingDate"`
}

func (s *GoCardlessService) GetAccountTransactions(ctx context.Context, accountID string) ([]ProviderTransaction, error) {
	var result struct {
		Transactions struct {
			Booked []struct {
				TransactionID     string `json:"transactionId"`
				TransactionAmount struct {
					Amount   string `json:"amount"`
					Currency string `json:"currency"`
				} `json:"transactionAmount"`
				RemittanceInformationUnstructured string `json:"remittanceInformationUnstructured"`
				BookingDate                       string `json:"bookingDate"`
			} `json:"booked"`
		} `json:"transactions"`
	}
	if err := s.get(ctx, "/accounts/"+accountID+"/transactions/", &result); err != nil {
		return nil, err
	}

	transactions := make([]ProviderTransaction, 0, len(result.Transactions.Booked))
	for _, tx := range result.Transactions.Booked {
		transactions = append(transactions, ProviderTransaction{
			TransactionID: tx.TransactionID,
			Amount:        tx.TransactionAmount.Amount,
			Currency:      tx.TransactionAmount.Currency,
			Description:   tx.RemittanceInformationUnstructured,
			BookingDate:   tx.BookingDate,
		})
	}
	return transactions, nil
}

func (s *GoCardlessService) GetInstitution(ctx context.Context, institutionID string) (*models.ProviderInstitution, error) {
	var result struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		BIC  string `json:"bic"`
		Logo string `json:"logo"`
	}
	if err := s.get(ctx, "/institutions/"+institutionID+"/", &result); err != nil {
		return nil, err
	}
	return &models.ProviderInstitution{
		ID:   result.ID,
		Name: result.Name,
		BIC:  result.BIC,
		Logo: result.Logo,
		Type: models.EntityTypeFinancialInstitution,
	}, nil
}

func (s *GoCardlessService) GetInstitutions(ctx context.Context, countryCode string) ([]models.ProviderInstitution, error) {
	var raw []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		BIC  string `json:"bic"`
		Logo string `json:"logo"`
	}
	if err := s.get(ctx, "/institutions/?country="+countryCode, &raw); err != nil {
		return nil, err
	}

	institutions := make([]models.ProviderInstitution, 0, len(raw))
	for _, inst := range raw {
		institutions = append(institutions, models.ProviderInstitution{
			ID:   inst.ID,
			Name: inst.Name,
			BIC:  inst.BIC,
			Logo: inst.Logo,
			Type: models.EntityTypeFinancialInstitution,
		})
	}
	return institutions, nil
}

func (s *GoCardlessService) get(ctx context.Context, path string, out any) error {
	token, err := s.accessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := mapProviderStatus(resp.StatusCode); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// mapProviderStatus translates provider HTTP failures into the sentinel
// errors the orchestrator dispatches on.
func mapProviderStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusConflict:
		return models.ErrLinkExpired
	case status == http.StatusNotFound:
		return models.ErrInstitutionNotFound
	case status == http.StatusTooManyRequests:
		return models.ErrTooManyRequests
	case status >= 400:
		return fmt.Errorf("%w: status %d", models.ErrExternalEntityFailed, status)
	default:
		return nil
	}
}
