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

// MyInvestorFetcher covers the neobank: cash accounts, cards, securities,
// funds with managed portfolios, deposits and standing contribution orders.
type MyInvestorFetcher struct {
	UnsupportedFeatures

	BaseURL string
	Client  *http.Client

	token string
}

func NewMyInvestorFetcher() *MyInvestorFetcher {
	return &MyInvestorFetcher{
		BaseURL: "https://app.myinvestor.es/api",
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type myInvestorSession struct {
	Token string `json:"accessToken"`
}

func (f *MyInvestorFetcher) Login(ctx context.Context, params models.LoginParams) (models.LoginResult, error) {
	now := time.Now()
	if params.Session.Fresh(now) && !params.Options.ForceNewSession {
		var session myInvestorSession
		if err := json.Unmarshal(params.Session.Payload, &session); err == nil && session.Token != "" {
			f.token = session.Token
			return models.LoginResult{Code: models.LoginResumed}, nil
		}
	}

	if params.Options.AvoidNewLogin {
		return models.LoginResult{Code: models.LoginNotLogged}, nil
	}

	payload := map[string]string{
		"customerId": params.Credentials["user"],
		"password":   params.Credentials["password"],
		"deviceId":   "wealth-api",
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", f.BaseURL+"/auth/token", bytes.NewBuffer(body))
	if err != nil {
		return models.LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return models.LoginResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return models.LoginResult{Code: models.LoginInvalidCredentials}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.LoginResult{}, models.ErrTooManyRequests
	case resp.StatusCode != http.StatusOK:
		return models.LoginResult{Code: models.LoginUnexpectedError, Message: resp.Status}, nil
	}

	var result struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int    `json:"expiresIn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.LoginResult{}, err
	}

	f.token = result.AccessToken

	sessionPayload, _ := json.Marshal(myInvestorSession{Token: result.AccessToken})
	expiration := now.Add(time.Duration(result.ExpiresIn) * time.Second)
	if result.ExpiresIn == 0 {
		expiration = now.Add(15 * time.Minute)
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

func (f *MyInvestorFetcher) GlobalPosition(ctx context.Context) (models.GlobalPosition, error) {
	products := models.Products{}

	accounts, cards, err := f.accountsAndCards(ctx)
	if err != nil {
		return models.GlobalPosition{}, err
	}
	if len(accounts) > 0 {
		products[models.ProductAccount] = models.Accounts{Entries: accounts}
	}
	if len(cards) > 0 {
		products[models.ProductCard] = models.Cards{Entries: cards}
	}

	stocks, err := f.stocks(ctx)
	if err != nil {
		return models.GlobalPosition{}, err
	}
	if len(stocks) > 0 {
		products[models.ProductStockEtf] = models.StockInvestments{Entries: stocks}
	}

	funds, portfolios, err := f.funds(ctx)
	if err != nil {
		return models.GlobalPosition{}, err
	}
	if len(funds) > 0 {
		products[models.ProductFund] = models.FundInvestments{Entries: funds}
	}
	if len(portfolios) > 0 {
		products[models.ProductFundPortfolio] = models.FundPortfolios{Entries: portfolios}
	}

	deposits, err := f.deposits(ctx)
	if err != nil {
		return models.GlobalPosition{}, err
	}
	if len(deposits) > 0 {
		products[models.ProductDeposit] = models.Deposits{Entries: deposits}
	}

	return models.NewGlobalPosition(models.MyInvestor.ID, products), nil
}

func (f *MyInvestorFetcher) accountsAndCards(ctx context.Context) ([]models.Account, []models.Card, error) {
	var raw struct {
		Accounts []struct {
			Alias     string `json:"alias"`
			IBAN      string `json:"iban"`
			Balance   string `json:"balance"`
			Retained  string `json:"retained"`
			Rate      string `json:"remunerationRate"`
			AccountID string `json:"accountId"`
		} `json:"accounts"`
		Cards []struct {
			Alias    string `json:"alias"`
			Pan      string `json:"panMasked"`
			CardType string `json:"cardType"`
			Disposed string `json:"disposedAmount"`
			Limit    string `json:"limit"`
			Active   bool   `json:"active"`
		} `json:"cards"`
	}
	if err := f.get(ctx, "/products/overview", &raw); err != nil {
		return nil, nil, err
	}

	var accounts []models.Account
	for _, acc := range raw.Accounts {
		balance, err := decimal.NewFromString(acc.Balance)
		if err != nil {
			return nil, nil, fmt.Errorf("parse account %s balance: %w", acc.AccountID, err)
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
				return nil, nil, fmt.Errorf("parse account %s retained: %w", acc.AccountID, err)
			}
			retained = retained.Round(2)
			account.Retained = &retained
		}
		if acc.Rate != "" {
			rate, err := decimal.NewFromString(acc.Rate)
			if err != nil {
				return nil, nil, fmt.Errorf("parse account %s rate: %w", acc.AccountID, err)
			}
			rate = rate.Round(4)
			account.Interest = &rate
		}
		accounts = append(accounts, account)
	}

	var cards []models.Card
	for _, card := range raw.Cards {
		used, err := decimal.NewFromString(card.Disposed)
		if err != nil {
			return nil, nil, fmt.Errorf("parse card %s used: %w", card.Pan, err)
		}
		entry := models.Card{
			ID:       uuid.New(),
			Name:     card.Alias,
			Ending:   lastFour(card.Pan),
			Currency: "EUR",
			Type:     models.CardDebit,
			Used:     used.Abs().Round(2),
			Active:   card.Active,
			Source:   models.SourceReal,
		}
		if card.CardType == "CREDIT" {
			entry.Type = models.CardCredit
		}
		if card.Limit != "" {
			limit, err := decimal.NewFromString(card.Limit)
			if err != nil {
				return nil, nil, fmt.Errorf("parse card %s limit: %w", card.Pan, err)
			}
			limit = limit.Round(2)
			entry.Limit = &limit
		}
		cards = append(cards, entry)
	}

	return accounts, cards, nil
}

func (f *MyInvestorFetcher) stocks(ctx context.Context) ([]models.StockDetail, error) {
	var raw []struct {
		Name        string `json:"name"`
		Ticker      string `json:"ticker"`
		ISIN        string `json:"isin"`
		Market      string `json:"market"`
		Shares      string `json:"shares"`
		AvgPrice    string `json:"averagePrice"`
		Invested    string `json:"invested"`
		MarketValue string `json:"marketValue"`
		Currency    string `json:"currency"`
		IsETF       bool   `json:"etf"`
	}
	if err := f.get(ctx, "/broker/positions", &raw); err != nil {
		return nil, err
	}

	var stocks []models.StockDetail
	for _, pos := range raw {
		shares, err := decimal.NewFromString(pos.Shares)
		if err != nil {
			return nil, fmt.Errorf("parse %s shares: %w", pos.ISIN, err)
		}
		value, err := decimal.NewFromString(pos.MarketValue)
		if err != nil {
			return nil, fmt.Errorf("parse %s market value: %w", pos.ISIN, err)
		}
		detail := models.StockDetail{
			ID:          uuid.New(),
			Name:        pos.Name,
			Ticker:      pos.Ticker,
			ISIN:        pos.ISIN,
			Market:      pos.Market,
			Shares:      shares,
			MarketValue: value.Round(2),
			Currency:    pos.Currency,
			Type:        models.EquityStock,
			Source:      models.SourceReal,
		}
		if pos.IsETF {
			detail.Type = models.EquityETF
		}
		if pos.Invested != "" {
			invested, err := decimal.NewFromString(pos.Invested)
			if err != nil {
				return nil, fmt.Errorf("parse %s invested: %w", pos.ISIN, err)
			}
			invested = invested.Round(2)
			detail.InitialInvestment = &invested
		}
		if pos.AvgPrice != "" {
			avg, err := decimal.NewFromString(pos.AvgPrice)
			if err != nil {
				return nil, fmt.Errorf("parse %s avg price: %w", pos.ISIN, err)
			}
			avg = avg.Round(4)
			detail.AverageBuyPrice = &avg
		}
		stocks = append(stocks, detail)
	}
	return stocks, nil
}

func (f *MyInvestorFetcher) funds(ctx context.Context) ([]models.FundDetail, []models.FundPortfolio, error) {
	var raw struct {
		Portfolios []struct {
			PortfolioID string `json:"portfolioId"`
			Name        string `json:"name"`
			Invested    string `json:"invested"`
			MarketValue string `json:"marketValue"`
			Funds       []struct {
				Name        string `json:"name"`
				ISIN        string `json:"isin"`
				Shares      string `json:"shares"`
				Invested    string `json:"invested"`
				MarketValue string `json:"marketValue"`
				Currency    string `json:"currency"`
			} `json:"funds"`
		} `json:"portfolios"`
		StandaloneFunds []struct {
			Name        string `json:"name"`
			ISIN        string `json:"isin"`
			Shares      string `json:"shares"`
			Invested    string `json:"invested"`
			MarketValue string `json:"marketValue"`
			Currency    string `json:"currency"`
		} `json:"funds"`
	}
	if err := f.get(ctx, "/funds/positions", &raw); err != nil {
		return nil, nil, err
	}

	var (
		funds      []models.FundDetail
		portfolios []models.FundPortfolio
	)

	parseFund := func(name, isin, sharesRaw, investedRaw, valueRaw, currency string, portfolioID *uuid.UUID) error {
		shares, err := decimal.NewFromString(sharesRaw)
		if err != nil {
			return fmt.Errorf("parse fund %s shares: %w", isin, err)
		}
		value, err := decimal.NewFromString(valueRaw)
		if err != nil {
			return fmt.Errorf("parse fund %s market value: %w", isin, err)
		}
		detail := models.FundDetail{
			ID:          uuid.New(),
			Name:        name,
			ISIN:        isin,
			Shares:      shares,
			MarketValue: value.Round(2),
			Currency:    currency,
			Type:        models.FundMutual,
			PortfolioID: portfolioID,
			Source:      models.SourceReal,
		}
		if investedRaw != "" {
			invested, err := decimal.NewFromString(investedRaw)
			if err != nil {
				return fmt.Errorf("parse fund %s invested: %w", isin, err)
			}
			invested = invested.Round(2)
			detail.InitialInvestment = &invested
		}
		funds = append(funds, detail)
		return nil
	}

	for _, pf := range raw.Portfolios {
		portfolioID := uuid.New()
		portfolio := models.FundPortfolio{
			ID:       portfolioID,
			Name:     pf.Name,
			Currency: "EUR",
			Source:   models.SourceReal,
		}
		if pf.Invested != "" {
			invested, err := decimal.NewFromString(pf.Invested)
			if err != nil {
				return nil, nil, fmt.Errorf("parse portfolio %s invested: %w", pf.PortfolioID, err)
			}
			invested = invested.Round(2)
			portfolio.InitialInvestment = &invested
		}
		if pf.MarketValue != "" {
			value, err := decimal.NewFromString(pf.MarketValue)
			if err != nil {
				return nil, nil, fmt.Errorf("parse portfolio %s market value: %w", pf.PortfolioID, err)
			}
			value = value.Round(2)
			portfolio.MarketValue = &value
		}
		portfolios = append(portfolios, portfolio)

		for _, fund := range pf.Funds {
			if err := parseFund(fund.Name, fund.ISIN, fund.Shares, fund.Invested, fund.MarketValue, fund.Currency, &portfolioID); err != nil {
				return nil, nil, err
			}
		}
	}

	for _, fund := range raw.StandaloneFunds {
		if err := parseFund(fund.Name, fund.ISIN, fund.Shares, fund.Invested, fund.MarketValue, fund.Currency, nil); err != nil {
			return nil, nil, err
		}
	}

	return funds, portfolios, nil
}

func (f *MyInvestorFetcher) deposits(ctx context.Context) ([]models.Deposit, error) {
	var raw []struct {
		Name         string `json:"name"`
		Amount       string `json:"amount"`
		InterestRate string `json:"interestRate"`
		Expected     string `json:"expectedInterests"`
		CreatedAt    string `json:"creationDate"`
		MaturesAt    string `json:"expirationDate"`
	}
	if err := f.get(ctx, "/deposits", &raw); err != nil {
		return nil, err
	}

	var deposits []models.Deposit
	for _, dep := range raw {
		amount, err := decimal.NewFromString(dep.Amount)
		if err != nil {
			return nil, fmt.Errorf("parse deposit %s amount: %w", dep.Name, err)
		}
		rate, err := decimal.NewFromString(dep.InterestRate)
		if err != nil {
			return nil, fmt.Errorf("parse deposit %s rate: %w", dep.Name, err)
		}
		creation, err := time.Parse("2006-01-02", dep.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse deposit %s creation: %w", dep.Name, err)
		}
		maturity, err := time.Parse("2006-01-02", dep.MaturesAt)
		if err != nil {
			return nil, fmt.Errorf("parse deposit %s maturity: %w", dep.Name, err)
		}
		deposit := models.Deposit{
			ID:           uuid.New(),
			Name:         dep.Name,
			Amount:       amount.Round(2),
			Currency:     "EUR",
			InterestRate: rate.Round(4),
			Creation:     creation,
			Maturity:     maturity,
			Source:       models.SourceReal,
		}
		if dep.Expected != "" {
			expected, err := decimal.NewFromString(dep.Expected)
			if err != nil {
				return nil, fmt.Errorf("parse deposit %s expected interests: %w", dep.Name, err)
			}
			expected = expected.Round(2)
			deposit.ExpectedInterests = &expected
		}
		deposits = append(deposits, deposit)
	}
	return deposits, nil
}

func (f *MyInvestorFetcher) Transactions(ctx context.Context, registeredRefs map[string]bool, options models.FetchOptions) (models.Transactions, error) {
	var txs models.Transactions

	window := "?months=3"
	if options.DeepHistoric {
		window = "?months=120"
	}

	var accountRaw []struct {
		Ref       string `json:"reference"`
		Concept   string `json:"concept"`
		Amount    string `json:"amount"`
		Type      string `json:"type"`
		Timestamp string `json:"date"`
	}
	if err := f.get(ctx, "/accounts/movements"+window, &accountRaw); err != nil {
		return models.Transactions{}, err
	}
	for _, entry := range accountRaw {
		if registeredRefs[entry.Ref] {
			continue
		}
		txType, ok := myInvestorAccountTxType(entry.Type)
		if !ok {
			continue
		}
		amount, err := decimal.NewFromString(entry.Amount)
		if err != nil {
			return models.Transactions{}, fmt.Errorf("parse movement %s amount: %w", entry.Ref, err)
		}
		date, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil {
			return models.Transactions{}, fmt.Errorf("parse movement %s date: %w", entry.Ref, err)
		}
		txs.Account = append(txs.Account, models.AccountTx{
			ID:          uuid.New(),
			Ref:         entry.Ref,
			Name:        entry.Concept,
			Amount:      amount.Abs().Round(2),
			Currency:    "EUR",
			Type:        txType,
			Date:        date,
			EntityID:    models.MyInvestor.ID,
			ProductType: models.ProductAccount,
			Source:      models.SourceReal,
		})
	}

	var investmentRaw []struct {
		Ref       string `json:"reference"`
		Name      string `json:"name"`
		ISIN      string `json:"isin"`
		Ticker    string `json:"ticker"`
		Market    string `json:"market"`
		Type      string `json:"operationType"`
		Shares    string `json:"shares"`
		Price     string `json:"price"`
		Amount    string `json:"amount"`
		Net       string `json:"netAmount"`
		Fees      string `json:"fees"`
		Currency  string `json:"currency"`
		Timestamp string `json:"date"`
		Product   string `json:"productFamily"`
	}
	if err := f.get(ctx, "/broker/operations"+window, &investmentRaw); err != nil {
		return models.Transactions{}, err
	}
	for _, entry := range investmentRaw {
		if registeredRefs[entry.Ref] {
			continue
		}
		txType, ok := myInvestorInvestmentTxType(entry.Type)
		if !ok {
			continue
		}
		amount, err := decimal.NewFromString(entry.Amount)
		if err != nil {
			return models.Transactions{}, fmt.Errorf("parse operation %s amount: %w", entry.Ref, err)
		}
		date, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil {
			return models.Transactions{}, fmt.Errorf("parse operation %s date: %w", entry.Ref, err)
		}

		tx := models.InvestmentTx{
			ID:          uuid.New(),
			Ref:         entry.Ref,
			Name:        entry.Name,
			Amount:      amount.Abs().Round(2),
			Currency:    entry.Currency,
			Type:        txType,
			Date:        date,
			EntityID:    models.MyInvestor.ID,
			ProductType: myInvestorProductFamily(entry.Product),
			ISIN:        entry.ISIN,
			Ticker:      entry.Ticker,
			Market:      entry.Market,
			Source:      models.SourceReal,
		}
		if entry.Shares != "" {
			shares, err := decimal.NewFromString(entry.Shares)
			if err != nil {
				return models.Transactions{}, fmt.Errorf("parse operation %s shares: %w", entry.Ref, err)
			}
			tx.Shares = &shares
		}
		if entry.Price != "" {
			price, err := decimal.NewFromString(entry.Price)
			if err != nil {
				return models.Transactions{}, fmt.Errorf("parse operation %s price: %w", entry.Ref, err)
			}
			price = price.Round(4)
			tx.Price = &price
		}
		if entry.Net != "" {
			net, err := decimal.NewFromString(entry.Net)
			if err != nil {
				return models.Transactions{}, fmt.Errorf("parse operation %s net amount: %w", entry.Ref, err)
			}
			net = net.Round(2)
			tx.NetAmount = &net
		}
		if entry.Fees != "" {
			fees, err := decimal.NewFromString(entry.Fees)
			if err != nil {
				return models.Transactions{}, fmt.Errorf("parse operation %s fees: %w", entry.Ref, err)
			}
			tx.Fees = fees.Abs().Round(2)
		}
		txs.Investment = append(txs.Investment, tx)
	}

	return txs, nil
}

func (f *MyInvestorFetcher) AutoContributions(ctx context.Context) (models.AutoContributions, error) {
	var raw []struct {
		Alias     string `json:"alias"`
		Target    string `json:"targetIsin"`
		Type      string `json:"targetType"`
		Amount    string `json:"amount"`
		Since     string `json:"startDate"`
		Until     string `json:"endDate"`
		Frequency string `json:"periodicity"`
		Active    bool   `json:"active"`
	}
	if err := f.get(ctx, "/contributions/periodic", &raw); err != nil {
		return models.AutoContributions{}, err
	}

	var contributions []models.PeriodicContribution
	for _, entry := range raw {
		amount, err := decimal.NewFromString(entry.Amount)
		if err != nil {
			return models.AutoContributions{}, fmt.Errorf("parse contribution %s amount: %w", entry.Alias, err)
		}
		since, err := time.Parse("2006-01-02", entry.Since)
		if err != nil {
			return models.AutoContributions{}, fmt.Errorf("parse contribution %s start: %w", entry.Alias, err)
		}
		contribution := models.PeriodicContribution{
			ID:         uuid.New(),
			Alias:      entry.Alias,
			Target:     entry.Target,
			TargetType: myInvestorContributionTarget(entry.Type),
			Amount:     amount.Round(2),
			Currency:   "EUR",
			Since:      since,
			Frequency:  myInvestorFrequency(entry.Frequency),
			Active:     entry.Active,
			Source:     models.SourceReal,
		}
		if entry.Until != "" {
			until, err := time.Parse("2006-01-02", entry.Until)
			if err != nil {
				return models.AutoContributions{}, fmt.Errorf("parse contribution %s end: %w", entry.Alias, err)
			}
			contribution.Until = &until
		}
		contributions = append(contributions, contribution)
	}

	return models.AutoContributions{Periodic: contributions}, nil
}

func (f *MyInvestorFetcher) get(ctx context.Context, path string, out any) error {
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
		return fmt.Errorf("myinvestor %s: %s", path, resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func lastFour(pan string) string {
	if len(pan) <= 4 {
		return pan
	}
	return pan[len(pan)-4:]
}

func myInvestorAccountTxType(provider string) (models.TxType, bool) {
	switch provider {
	case "TRANSFER_IN", "INCOME":
		return models.TxTransferIn, true
	case "TRANSFER_OUT", "PAYMENT":
		return models.TxTransferOut, true
	case "INTEREST":
		return models.TxInterest, true
	case "FEE":
		return models.TxFee, true
	default:
		return "", false
	}
}

func myInvestorInvestmentTxType(provider string) (models.TxType, bool) {
	switch provider {
	case "BUY", "SUBSCRIPTION_BUY":
		return models.TxBuy, true
	case "SELL", "REIMBURSEMENT":
		return models.TxSell, true
	case "DIVIDEND":
		return models.TxDividend, true
	case "SUBSCRIPTION":
		return models.TxSubscription, true
	default:
		return "", false
	}
}

func myInvestorProductFamily(family string) models.ProductType {
	switch family {
	case "FUND", "INDEXED_FUND":
		return models.ProductFund
	case "PORTFOLIO":
		return models.ProductFundPortfolio
	default:
		return models.ProductStockEtf
	}
}

func myInvestorContributionTarget(target string) models.ContributionTargetType {
	switch target {
	case "STOCK", "ETF", "STOCK_ETF":
		return models.TargetStockEtf
	case "ACCOUNT":
		return models.TargetAccount
	default:
		return models.TargetFund
	}
}

func myInvestorFrequency(provider string) models.ContributionFrequency {
	switch provider {
	case "WEEKLY":
		return models.FrequencyWeekly
	case "BIWEEKLY":
		return models.FrequencyBiweekly
	case "BIMONTHLY":
		return models.FrequencyBimonthly
	case "QUARTERLY":
		return models.FrequencyQuarterly
	case "SEMIANNUAL":
		return models.FrequencySemiannual
	case "YEARLY":
		return models.FrequencyYearly
	default:
		return models.FrequencyMonthly
	}
}
