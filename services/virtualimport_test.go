package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/config"
	"github.com/holdsight/wealth-api/models"
)

func newImportFixture(journal *memJournal, entities ...models.Entity) (*VirtualImportService, *memPositionStore) {
	positions := &memPositionStore{}
	service := NewVirtualImportService(
		config.Config{VirtualImportEnabled: true, TargetFiat: "EUR"},
		newMemEntityStore(entities...), positions, newMemTransactionStore(),
		journal, passTx{},
	)
	return service, positions
}

func accountPositionTemplate() models.ImportTemplate {
	return models.ImportTemplate{
		Feature:     models.FeaturePosition,
		ProductType: models.ProductAccount,
		ColumnsByField: map[string]string{
			"entity": "entity",
			"name":   "name",
			"value":  "value",
		},
	}
}

func TestImport_SecondRunConflicts(t *testing.T) {
	service, _ := newImportFixture(&memJournal{})
	service.mu.Lock()
	defer service.mu.Unlock()

	_, err := service.Import(context.Background(), models.SourceManual, "positions.csv",
		strings.NewReader("entity,name,value\n"), accountPositionTemplate())
	if !errors.Is(err, models.ErrExecutionConflict) {
		t.Fatalf("expected ErrExecutionConflict while a run is in flight, got %v", err)
	}
}

func TestImport_CarryForwardKeepsOriginalDate(t *testing.T) {
	previous := testEntity("OldBank", models.FeaturePosition)
	positionID := uuid.New()
	yesterday := time.Now().Add(-24 * time.Hour)
	feature := models.FeaturePosition
	previousID := previous.ID

	journal := &memJournal{last: []models.VirtualDataImport{{
		ImportID:         uuid.New(),
		GlobalPositionID: &positionID,
		EntityID:         &previousID,
		Feature:          &feature,
		Source:           models.SourceManual,
		Date:             yesterday,
	}}}
	service, positions := newImportFixture(journal, previous)

	csvData := "entity,name,value\nNewBank,Main,100\n"
	result, err := service.Import(context.Background(), models.SourceManual, "positions.csv",
		strings.NewReader(csvData), accountPositionTemplate())
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.Code != models.ImportCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Code)
	}

	if len(positions.deleted) != 0 {
		t.Fatalf("an untouched entity's snapshot must survive, deleted %v", positions.deleted)
	}

	var carried *models.VirtualDataImport
	for i, row := range journal.last {
		if row.EntityID != nil && *row.EntityID == previous.ID {
			carried = &journal.last[i]
		}
	}
	if carried == nil {
		t.Fatal("expected the untouched entity carried forward")
	}
	if !carried.Date.Equal(yesterday) {
		t.Fatalf("carried rows must keep their original date, got %s", carried.Date)
	}
}

func TestImport_SameDayReimportReplacesSnapshot(t *testing.T) {
	bank := testEntity("MyBank", models.FeaturePosition)
	positionID := uuid.New()
	feature := models.FeaturePosition
	bankID := bank.ID

	journal := &memJournal{last: []models.VirtualDataImport{{
		ImportID:         uuid.New(),
		GlobalPositionID: &positionID,
		EntityID:         &bankID,
		Feature:          &feature,
		Source:           models.SourceManual,
		Date:             time.Now().Add(-time.Hour),
	}}}
	service, positions := newImportFixture(journal, bank)

	csvData := "entity,name,value\nMyBank,Main,500\n"
	result, err := service.Import(context.Background(), models.SourceManual, "positions.csv",
		strings.NewReader(csvData), accountPositionTemplate())
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.Code != models.ImportCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Code)
	}

	if len(positions.deleted) != 1 || positions.deleted[0] != positionID {
		t.Fatalf("expected the same-day snapshot replaced, deleted %v", positions.deleted)
	}
	if len(positions.saved) != 1 {
		t.Fatalf("expected 1 fresh snapshot, got %d", len(positions.saved))
	}
}

func TestImport_OlderSnapshotOfTouchedEntitySurvives(t *testing.T) {
	bank := testEntity("MyBank", models.FeaturePosition)
	positionID := uuid.New()
	feature := models.FeaturePosition
	bankID := bank.ID

	journal := &memJournal{last: []models.VirtualDataImport{{
		ImportID:         uuid.New(),
		GlobalPositionID: &positionID,
		EntityID:         &bankID,
		Feature:          &feature,
		Source:           models.SourceManual,
		Date:             time.Now().Add(-48 * time.Hour),
	}}}
	service, positions := newImportFixture(journal, bank)

	csvData := "entity,name,value\nMyBank,Main,500\n"
	if _, err := service.Import(context.Background(), models.SourceManual, "positions.csv",
		strings.NewReader(csvData), accountPositionTemplate()); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	if len(positions.deleted) != 0 {
		t.Fatalf("only a same-day snapshot may be replaced, deleted %v", positions.deleted)
	}
}

func TestNormalizeNumber(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"1234.56", "1234.56"},
		{"1234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{" 42 ", "42"},
		{"-3,5", "-3.5"},
	}
	for _, tc := range cases {
		if got := normalizeNumber(tc.in); got != tc.expected {
			t.Fatalf("normalizeNumber(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestResolveColumns_CaseInsensitiveHeaders(t *testing.T) {
	template := models.ImportTemplate{
		ColumnsByField: map[string]string{
			"entity": "Entity",
			"name":   "NAME",
			"value":  "Value",
		},
	}
	columns, err := resolveColumns([]string{"entity", "name", " value "}, template)
	if err != nil {
		t.Fatalf("resolveColumns failed: %v", err)
	}
	if columns["entity"] != 0 || columns["name"] != 1 || columns["value"] != 2 {
		t.Fatalf("unexpected column mapping: %v", columns)
	}
}

func TestResolveColumns_RequiresEntityColumn(t *testing.T) {
	template := models.ImportTemplate{
		ColumnsByField: map[string]string{"name": "name", "value": "value"},
	}
	if _, err := resolveColumns([]string{"name", "value"}, template); err == nil {
		t.Fatal("expected error when the entity column is missing")
	}
}

func TestResolveColumns_UnknownHeader(t *testing.T) {
	template := models.ImportTemplate{
		ColumnsByField: map[string]string{"entity": "bank", "value": "total"},
	}
	if _, err := resolveColumns([]string{"bank", "amount"}, template); err == nil {
		t.Fatal("expected error for a column the sheet does not have")
	}
}

func TestReadSheet_CSV(t *testing.T) {
	csvData := "entity,name,value\nMyBank,Main,1000.50\nMyBank,Savings,200\n"
	rows, err := readSheet("positions.csv", strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("readSheet failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1][0] != "MyBank" || rows[2][2] != "200" {
		t.Fatalf("unexpected cells: %v", rows)
	}
}

func TestReadSheet_RejectsUnknownExtension(t *testing.T) {
	if _, err := readSheet("positions.pdf", strings.NewReader("x")); err != models.ErrUnsupportedFileFormat {
		t.Fatalf("expected ErrUnsupportedFileFormat, got %v", err)
	}
}

func TestImportTxType(t *testing.T) {
	if _, ok := importTxType("INVESTMENT"); !ok {
		t.Fatal("INVESTMENT must be accepted")
	}
	if _, ok := importTxType("GIFT"); ok {
		t.Fatal("GIFT must be rejected")
	}
}

func TestCommodityType_SpanishSynonyms(t *testing.T) {
	cases := map[string]models.CommodityType{
		"plata":   models.CommoditySilver,
		"Platino": models.CommodityPlatinum,
		"PALADIO": models.CommodityPalladium,
		"gold":    models.CommodityGold,
		"oro":     models.CommodityGold,
	}
	for name, expected := range cases {
		if got := commodityType(name); got != expected {
			t.Fatalf("commodityType(%q) expected %s, got %s", name, expected, got)
		}
	}
}

func TestParseRows_CollectsRowErrors(t *testing.T) {
	service := &VirtualImportService{cfg: config.Config{TargetFiat: "EUR"}}
	columns := map[string]int{"entity": 0, "name": 1, "value": 2}
	template := models.ImportTemplate{Feature: models.FeaturePosition, ProductType: models.ProductAccount}

	rows := [][]string{
		{"MyBank", "Main", "1000,50"},
		{"", "Orphan", "10"},
		{"MyBank", "Broken", "not-a-number"},
		{"MyBank", "NoValue"},
	}

	parsed := service.parseRows(rows, columns, template, "2006-01-02", models.SourceManual)

	if len(parsed.rows) != 1 {
		t.Fatalf("expected 1 accepted row, got %d", len(parsed.rows))
	}
	if got := parsed.rows[0].value.String(); got != "1000.5" {
		t.Fatalf("expected decimal comma handled, got %s", got)
	}
	if parsed.rows[0].currency != "EUR" {
		t.Fatalf("expected target fiat fallback, got %s", parsed.rows[0].currency)
	}

	if len(parsed.errors) != 3 {
		t.Fatalf("expected 3 row errors, got %d: %+v", len(parsed.errors), parsed.errors)
	}
	// Row numbers are 1-based sheet rows, offset past the header.
	expected := []struct {
		row     int
		errType models.ImportErrorType
	}{
		{3, models.ImportErrMissingField},
		{4, models.ImportErrBadValue},
		{5, models.ImportErrMissingField},
	}
	for i, exp := range expected {
		if parsed.errors[i].Row != exp.row || parsed.errors[i].Type != exp.errType {
			t.Fatalf("error %d: expected row %d type %s, got %+v", i, exp.row, exp.errType, parsed.errors[i])
		}
	}
}

func TestParseRows_TransactionsNeedTypeAndDate(t *testing.T) {
	service := &VirtualImportService{cfg: config.Config{TargetFiat: "EUR"}}
	columns := map[string]int{"entity": 0, "name": 1, "amount": 2, "type": 3, "date": 4}
	template := models.ImportTemplate{Feature: models.FeatureTransactions, ProductType: models.ProductStockEtf}

	rows := [][]string{
		{"Broker", "ACME", "500", "BUY", "2024-06-01"},
		{"Broker", "ACME", "500", "LOAN", "2024-06-01"},
		{"Broker", "ACME", "500", "BUY", "junk"},
	}

	parsed := service.parseRows(rows, columns, template, "2006-01-02", models.SourceSheets)

	if len(parsed.rows) != 1 {
		t.Fatalf("expected 1 accepted row, got %d", len(parsed.rows))
	}
	row := parsed.rows[0]
	if row.txType != models.TxBuy {
		t.Fatalf("expected BUY, got %s", row.txType)
	}
	if row.ref == "" || !strings.Contains(row.ref, "Broker") {
		t.Fatalf("expected generated ref naming the entity, got %q", row.ref)
	}
	if len(parsed.errors) != 2 {
		t.Fatalf("expected 2 row errors, got %+v", parsed.errors)
	}
	if parsed.errors[0].Type != models.ImportErrUnknownType {
		t.Fatalf("expected UNKNOWN_TYPE, got %s", parsed.errors[0].Type)
	}
	if parsed.errors[1].Type != models.ImportErrBadDate {
		t.Fatalf("expected BAD_DATE, got %s", parsed.errors[1].Type)
	}
}

func TestBuildVirtualPosition_CrowdlendingWeightedRate(t *testing.T) {
	rateA := dec("0.10")
	rateB := dec("0.06")
	rows := []parsedRow{
		{entityName: "Lender", name: "Loan A", value: dec("1000"), currency: "EUR", rate: &rateA},
		{entityName: "Lender", name: "Loan B", value: dec("3000"), currency: "EUR", rate: &rateB},
	}

	position, err := buildVirtualPosition(uuid.New(), rows, models.ProductCrowdlending, models.SourceManual)
	if err != nil {
		t.Fatalf("buildVirtualPosition failed: %v", err)
	}
	if position.IsReal {
		t.Fatal("virtual snapshots must not be real")
	}

	crowd, ok := position.Products[models.ProductCrowdlending].(models.Crowdlending)
	if !ok {
		t.Fatalf("expected Crowdlending payload, got %T", position.Products[models.ProductCrowdlending])
	}
	if got := crowd.Total.String(); got != "4000" {
		t.Fatalf("expected total 4000, got %s", got)
	}
	if got := crowd.WeightedInterestRate.String(); got != "0.07" {
		t.Fatalf("expected weighted rate 0.07, got %s", got)
	}
}

func TestBuildVirtualPosition_RejectsUnknownProduct(t *testing.T) {
	if _, err := buildVirtualPosition(uuid.New(), nil, models.ProductCrypto, models.SourceManual); err == nil {
		t.Fatal("expected CRYPTO to be rejected for virtual imports")
	}
}

func TestValidateTemplate(t *testing.T) {
	valid := models.ImportTemplate{
		Feature:        models.FeaturePosition,
		ProductType:    models.ProductAccount,
		ColumnsByField: map[string]string{"entity": "entity", "value": "value"},
	}
	if err := validateTemplate(valid); err != nil {
		t.Fatalf("valid template rejected: %v", err)
	}

	badProduct := valid
	badProduct.ProductType = models.ProductCrypto
	if err := validateTemplate(badProduct); err == nil {
		t.Fatal("expected CRYPTO position template to be rejected")
	}

	noColumns := valid
	noColumns.ColumnsByField = nil
	if err := validateTemplate(noColumns); err == nil {
		t.Fatal("expected template without columns to be rejected")
	}
}
