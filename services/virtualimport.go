package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/holdsight/wealth-api/config"
	"github.com/holdsight/wealth-api/models"
)

// Product types a virtual position import can carry.
var importableProducts = map[models.ProductType]bool{
	models.ProductAccount:      true,
	models.ProductStockEtf:     true,
	models.ProductFund:         true,
	models.ProductDeposit:      true,
	models.ProductCrowdlending: true,
	models.ProductCommodity:    true,
}

// VirtualImportService loads manually maintained spreadsheets into virtual
// positions and transactions. Every run is journaled under one import id;
// entities absent from a run carry their previous snapshot forward. Runs
// never overlap: a second import while one is in flight fails fast.
type VirtualImportService struct {
	cfg          config.Config
	entities     EntityStore
	positions    PositionStore
	transactions TransactionStore
	virtual      ImportJournal
	tx           Transactor
	log          *logrus.Logger

	mu sync.Mutex
}

func NewVirtualImportService(
	cfg config.Config,
	entities EntityStore,
	positions PositionStore,
	transactions TransactionStore,
	virtual ImportJournal,
	tx Transactor,
) *VirtualImportService {
	return &VirtualImportService{
		cfg:          cfg,
		entities:     entities,
		positions:    positions,
		transactions: transactions,
		virtual:      virtual,
		tx:           tx,
		log:          config.Logger(),
	}
}

// Import parses one uploaded sheet against a template and commits the run.
func (s *VirtualImportService) Import(ctx context.Context, source models.DataSource, filename string, file io.Reader, template models.ImportTemplate) (models.ImportResult, error) {
	if !s.mu.TryLock() {
		return models.ImportResult{}, models.ErrExecutionConflict
	}
	defer s.mu.Unlock()

	if !s.cfg.VirtualImportEnabled {
		return models.ImportResult{Code: models.ImportDisabled}, nil
	}
	if source != models.SourceManual && source != models.SourceSheets {
		return models.ImportResult{}, fmt.Errorf("%w: source %s is not virtual", models.ErrInvalidTemplate, source)
	}

	if err := validateTemplate(template); err != nil {
		return models.ImportResult{Code: models.ImportInvalidTemplate}, nil
	}

	rows, err := readSheet(filename, file)
	if err != nil {
		if err == models.ErrUnsupportedFileFormat {
			return models.ImportResult{Code: models.ImportUnsupportedFileFormat}, nil
		}
		return models.ImportResult{}, err
	}
	if len(rows) < 2 {
		return models.ImportResult{Code: models.ImportInvalidTemplate}, nil
	}

	columns, err := resolveColumns(rows[0], template)
	if err != nil {
		return models.ImportResult{Code: models.ImportInvalidTemplate}, nil
	}

	layout := template.DateLayout
	if layout == "" {
		layout = "2006-01-02"
	}

	parsed := s.parseRows(rows[1:], columns, template, layout, source)

	data, err := s.commit(ctx, source, template, parsed)
	if err != nil {
		return models.ImportResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"source":   source,
		"feature":  template.Feature,
		"rows":     len(rows) - 1,
		"rejected": len(parsed.errors),
	}).Info("virtual import finished")

	return models.ImportResult{
		Code:   models.ImportCompleted,
		Data:   data,
		Errors: parsed.errors,
	}, nil
}

// LastImport returns the journal rows of the most recent run for a source.
func (s *VirtualImportService) LastImport(ctx context.Context, source models.DataSource) ([]models.VirtualDataImport, error) {
	return s.virtual.GetLastImport(ctx, source)
}

func validateTemplate(template models.ImportTemplate) error {
	switch template.Feature {
	case models.FeaturePosition:
		if !importableProducts[template.ProductType] {
			return models.ErrInvalidTemplate
		}
	case models.FeatureTransactions:
	default:
		return models.ErrInvalidTemplate
	}
	if len(template.ColumnsByField) == 0 {
		return models.ErrInvalidTemplate
	}
	return nil
}

func readSheet(filename string, file io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		workbook, err := excelize.OpenReader(file)
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		defer workbook.Close()
		sheets := workbook.GetSheetList()
		if len(sheets) == 0 {
			return nil, models.ErrInvalidTemplate
		}
		return workbook.GetRows(sheets[0])
	case ".csv":
		reader := csv.NewReader(file)
		reader.FieldsPerRecord = -1
		return reader.ReadAll()
	default:
		return nil, models.ErrUnsupportedFileFormat
	}
}

// resolveColumns maps template fields to column indexes using the header
// row. Header matching is case-insensitive.
func resolveColumns(header []string, template models.ImportTemplate) (map[string]int, error) {
	index := map[string]int{}
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	columns := map[string]int{}
	for field, column := range template.ColumnsByField {
		i, ok := index[strings.ToLower(strings.TrimSpace(column))]
		if !ok {
			return nil, fmt.Errorf("%w: column %q not found", models.ErrInvalidTemplate, column)
		}
		columns[field] = i
	}
	if _, ok := columns["entity"]; !ok {
		return nil, fmt.Errorf("%w: template misses the entity column", models.ErrInvalidTemplate)
	}
	return columns, nil
}

// parsedRow is one accepted sheet row, already typed.
type parsedRow struct {
	entityName string
	name       string
	value      decimal.Decimal
	currency   string
	rate       *decimal.Decimal
	shares     *decimal.Decimal
	isin       string
	ticker     string
	txType     models.TxType
	ref        string
	date       time.Time
	unit       string
}

type parsedSheet struct {
	rows   []parsedRow
	errors []models.ImportRowError
}

func (s *VirtualImportService) parseRows(rows [][]string, columns map[string]int, template models.ImportTemplate, layout string, source models.DataSource) parsedSheet {
	var parsed parsedSheet

	cell := func(row []string, field string) string {
		i, ok := columns[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for n, row := range rows {
		rowNumber := n + 2

		entityName := cell(row, "entity")
		if entityName == "" {
			parsed.errors = append(parsed.errors, models.ImportRowError{
				Type: models.ImportErrMissingField, Row: rowNumber, Column: "entity",
			})
			continue
		}

		item := parsedRow{
			entityName: entityName,
			name:       cell(row, "name"),
			currency:   cell(row, "currency"),
			isin:       cell(row, "isin"),
			ticker:     cell(row, "ticker"),
			ref:        cell(row, "ref"),
			unit:       cell(row, "unit"),
		}
		if item.currency == "" {
			item.currency = s.cfg.TargetFiat
		}

		rawValue := cell(row, "value")
		if rawValue == "" {
			rawValue = cell(row, "amount")
		}
		if rawValue == "" {
			parsed.errors = append(parsed.errors, models.ImportRowError{
				Type: models.ImportErrMissingField, Row: rowNumber, Column: "value",
			})
			continue
		}
		value, err := decimal.NewFromString(normalizeNumber(rawValue))
		if err != nil {
			parsed.errors = append(parsed.errors, models.ImportRowError{
				Type: models.ImportErrBadValue, Row: rowNumber, Column: "value", Detail: rawValue,
			})
			continue
		}
		item.value = value

		if raw := cell(row, "interest_rate"); raw != "" {
			rate, err := decimal.NewFromString(normalizeNumber(raw))
			if err != nil {
				parsed.errors = append(parsed.errors, models.ImportRowError{
					Type: models.ImportErrBadValue, Row: rowNumber, Column: "interest_rate", Detail: raw,
				})
				continue
			}
			item.rate = &rate
		}
		if raw := cell(row, "shares"); raw != "" {
			shares, err := decimal.NewFromString(normalizeNumber(raw))
			if err != nil {
				parsed.errors = append(parsed.errors, models.ImportRowError{
					Type: models.ImportErrBadValue, Row: rowNumber, Column: "shares", Detail: raw,
				})
				continue
			}
			item.shares = &shares
		}

		if template.Feature == models.FeatureTransactions {
			rawType := strings.ToUpper(cell(row, "type"))
			txType, ok := importTxType(rawType)
			if !ok {
				parsed.errors = append(parsed.errors, models.ImportRowError{
					Type: models.ImportErrUnknownType, Row: rowNumber, Column: "type", Detail: rawType,
				})
				continue
			}
			item.txType = txType

			rawDate := cell(row, "date")
			date, err := time.Parse(layout, rawDate)
			if err != nil {
				parsed.errors = append(parsed.errors, models.ImportRowError{
					Type: models.ImportErrBadDate, Row: rowNumber, Column: "date", Detail: rawDate,
				})
				continue
			}
			item.date = date

			if item.ref == "" {
				item.ref = fmt.Sprintf("%s:%s:%s:%s", source, entityName, rawDate, item.name)
			}
		}

		parsed.rows = append(parsed.rows, item)
	}

	return parsed
}

// commit writes the run in one transaction: resolve or create entities,
// build the artifacts, journal everything and carry forward snapshots of
// entities this run did not touch.
func (s *VirtualImportService) commit(ctx context.Context, source models.DataSource, template models.ImportTemplate, parsed parsedSheet) (*models.ImportedData, error) {
	data := &models.ImportedData{}
	importID := uuid.New()
	now := time.Now()

	err := s.tx.Do(ctx, func(ctx context.Context) error {
		byEntity := map[string][]parsedRow{}
		for _, row := range parsed.rows {
			byEntity[row.entityName] = append(byEntity[row.entityName], row)
		}

		entityIDs := map[string]uuid.UUID{}
		touched := map[uuid.UUID]bool{}
		for name := range byEntity {
			entity, created, err := s.resolveEntity(ctx, name, template.Feature)
			if err != nil {
				return err
			}
			entityIDs[name] = entity.ID
			touched[entity.ID] = true
			if created {
				data.CreatedEntities = append(data.CreatedEntities, entity)
			}
		}

		previous, err := s.virtual.GetLastImport(ctx, source)
		if err != nil {
			return err
		}

		var journal []models.VirtualDataImport

		switch template.Feature {
		case models.FeaturePosition:
			for name, rows := range byEntity {
				entityID := entityIDs[name]
				position, err := buildVirtualPosition(entityID, rows, template.ProductType, source)
				if err != nil {
					return err
				}
				if err := s.positions.Save(ctx, position); err != nil {
					return err
				}
				data.Positions = append(data.Positions, position)
				positionID := position.ID
				feature := models.FeaturePosition
				journal = append(journal, models.VirtualDataImport{
					ImportID:         importID,
					GlobalPositionID: &positionID,
					EntityID:         &entityID,
					Feature:          &feature,
					Source:           source,
					Date:             now,
				})
			}

			// Same-day re-imports replace the earlier snapshot instead of
			// stacking a second one.
			for _, row := range previous {
				if row.EntityID == nil || row.Feature == nil {
					continue
				}
				if *row.Feature != models.FeaturePosition {
					carried := row
					carried.ImportID = importID
					journal = append(journal, carried)
					continue
				}
				if touched[*row.EntityID] {
					if sameDay(row.Date, now) && row.GlobalPositionID != nil {
						if err := s.positions.DeleteByID(ctx, *row.GlobalPositionID); err != nil {
							return err
						}
					}
					continue
				}
				// Untouched entities keep their last snapshot under the new
				// import id. The row keeps its original date so only a true
				// same-day snapshot is ever replaced later.
				carried := row
				carried.ImportID = importID
				journal = append(journal, carried)
			}

		case models.FeatureTransactions:
			if err := s.transactions.DeleteBySource(ctx, source); err != nil {
				return err
			}
			transactions := buildVirtualTransactions(entityIDs, byEntity, template.ProductType, source)
			if !transactions.Empty() {
				if err := s.transactions.Save(ctx, transactions); err != nil {
					return err
				}
			}
			data.Transactions = &transactions
			for name := range byEntity {
				entityID := entityIDs[name]
				feature := models.FeatureTransactions
				journal = append(journal, models.VirtualDataImport{
					ImportID: importID,
					EntityID: &entityID,
					Feature:  &feature,
					Source:   source,
					Date:     now,
				})
			}

			for _, row := range previous {
				if row.EntityID == nil || row.Feature == nil || *row.Feature == models.FeatureTransactions {
					continue
				}
				carried := row
				carried.ImportID = importID
				journal = append(journal, carried)
			}
		}

		return s.virtual.Insert(ctx, journal)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// resolveEntity finds the named entity or creates a manual one on the fly.
func (s *VirtualImportService) resolveEntity(ctx context.Context, name string, feature models.Feature) (models.Entity, bool, error) {
	existing, err := s.entities.GetByName(ctx, name)
	if err != nil {
		return models.Entity{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	entity := models.Entity{
		ID:       uuid.New(),
		Name:     name,
		Type:     models.EntityTypeFinancialInstitution,
		Origin:   models.EntityOriginManual,
		Features: []models.Feature{feature},
		IsReal:   false,
	}
	if err := s.entities.Insert(ctx, entity); err != nil {
		return models.Entity{}, false, err
	}
	return entity, true, nil
}

func buildVirtualPosition(entityID uuid.UUID, rows []parsedRow, productType models.ProductType, source models.DataSource) (models.GlobalPosition, error) {
	var product models.ProductPosition

	switch productType {
	case models.ProductAccount:
		var entries []models.Account
		for _, row := range rows {
			entries = append(entries, models.Account{
				ID:       uuid.New(),
				Name:     row.name,
				Total:    row.value.Round(2),
				Currency: row.currency,
				Type:     models.AccountChecking,
				Interest: row.rate,
				Source:   source,
			})
		}
		product = models.Accounts{Entries: entries}

	case models.ProductStockEtf:
		var entries []models.StockDetail
		for _, row := range rows {
			shares := decimal.Zero
			if row.shares != nil {
				shares = *row.shares
			}
			entries = append(entries, models.StockDetail{
				ID:          uuid.New(),
				Name:        row.name,
				Ticker:      row.ticker,
				ISIN:        row.isin,
				Shares:      shares,
				MarketValue: row.value.Round(2),
				Currency:    row.currency,
				Type:        models.EquityStock,
				Source:      source,
			})
		}
		product = models.StockInvestments{Entries: entries}

	case models.ProductFund:
		var entries []models.FundDetail
		for _, row := range rows {
			shares := decimal.Zero
			if row.shares != nil {
				shares = *row.shares
			}
			entries = append(entries, models.FundDetail{
				ID:          uuid.New(),
				Name:        row.name,
				ISIN:        row.isin,
				Shares:      shares,
				MarketValue: row.value.Round(2),
				Currency:    row.currency,
				Type:        models.FundMutual,
				Source:      source,
			})
		}
		product = models.FundInvestments{Entries: entries}

	case models.ProductDeposit:
		var entries []models.Deposit
		for _, row := range rows {
			rate := decimal.Zero
			if row.rate != nil {
				rate = *row.rate
			}
			entries = append(entries, models.Deposit{
				ID:           uuid.New(),
				Name:         row.name,
				Amount:       row.value.Round(2),
				Currency:     row.currency,
				InterestRate: rate.Round(4),
				Source:       source,
			})
		}
		product = models.Deposits{Entries: entries}

	case models.ProductCrowdlending:
		var entries []models.CrowdlendingEntry
		total := decimal.Zero
		weighted := decimal.Zero
		currency := ""
		for _, row := range rows {
			rate := decimal.Zero
			if row.rate != nil {
				rate = *row.rate
			}
			entries = append(entries, models.CrowdlendingEntry{
				ID:           uuid.New(),
				Name:         row.name,
				Amount:       row.value.Round(2),
				Currency:     row.currency,
				InterestRate: rate.Round(4),
				Source:       source,
			})
			total = total.Add(row.value)
			weighted = weighted.Add(row.value.Mul(rate))
			currency = row.currency
		}
		rate := decimal.Zero
		if !total.IsZero() {
			rate = weighted.Div(total).Round(4)
		}
		product = models.Crowdlending{
			Total:                total.Round(2),
			WeightedInterestRate: rate,
			Currency:             currency,
			Entries:              entries,
		}

	case models.ProductCommodity:
		var entries []models.Commodity
		for _, row := range rows {
			value := row.value.Round(2)
			entries = append(entries, models.Commodity{
				ID:          uuid.New(),
				Name:        row.name,
				Type:        commodityType(row.name),
				Amount:      row.value,
				Unit:        row.unit,
				MarketValue: &value,
				Currency:    row.currency,
				Source:      source,
			})
		}
		product = models.Commodities{Entries: entries}

	default:
		return models.GlobalPosition{}, fmt.Errorf("%w: product %s not importable", models.ErrInvalidTemplate, productType)
	}

	return models.GlobalPosition{
		ID:       uuid.New(),
		EntityID: entityID,
		Date:     time.Now(),
		Products: models.Products{productType: product},
		IsReal:   false,
		Source:   source,
	}, nil
}

func buildVirtualTransactions(entityIDs map[string]uuid.UUID, byEntity map[string][]parsedRow, productType models.ProductType, source models.DataSource) models.Transactions {
	var transactions models.Transactions
	if productType == "" {
		productType = models.ProductStockEtf
	}

	for name, rows := range byEntity {
		entityID := entityIDs[name]
		for _, row := range rows {
			if productType == models.ProductAccount {
				transactions.Account = append(transactions.Account, models.AccountTx{
					ID:          uuid.New(),
					Ref:         row.ref,
					Name:        row.name,
					Amount:      row.value.Abs().Round(2),
					Currency:    row.currency,
					Type:        row.txType,
					Date:        row.date,
					EntityID:    entityID,
					ProductType: productType,
					Source:      source,
				})
				continue
			}
			transactions.Investment = append(transactions.Investment, models.InvestmentTx{
				ID:          uuid.New(),
				Ref:         row.ref,
				Name:        row.name,
				Amount:      row.value.Abs().Round(2),
				Currency:    row.currency,
				Type:        row.txType,
				Date:        row.date,
				EntityID:    entityID,
				ProductType: productType,
				Shares:      row.shares,
				ISIN:        row.isin,
				Ticker:      row.ticker,
				Source:      source,
			})
		}
	}
	return transactions
}

func importTxType(raw string) (models.TxType, bool) {
	switch models.TxType(raw) {
	case models.TxBuy, models.TxSell, models.TxDividend, models.TxSubscription,
		models.TxTransferIn, models.TxTransferOut, models.TxInvestment,
		models.TxRepayment, models.TxInterest, models.TxFee:
		return models.TxType(raw), true
	default:
		return "", false
	}
}

func commodityType(name string) models.CommodityType {
	switch strings.ToUpper(name) {
	case "SILVER", "PLATA":
		return models.CommoditySilver
	case "PLATINUM", "PLATINO":
		return models.CommodityPlatinum
	case "PALLADIUM", "PALADIO":
		return models.CommodityPalladium
	default:
		return models.CommodityGold
	}
}

// normalizeNumber accepts European decimal commas.
func normalizeNumber(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ",") && !strings.Contains(raw, ".") {
		return strings.ReplaceAll(raw, ",", ".")
	}
	return strings.ReplaceAll(raw, ",", "")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
