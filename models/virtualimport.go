package models

import (
	"time"

	"github.com/google/uuid"
)

// VirtualDataImport is one journal row of a virtual import run. A run gets
// one row per (entity, feature) it wrote, so the "last imported" view can be
// reconstructed as the union of the latest rows per feature.
type VirtualDataImport struct {
	ImportID         uuid.UUID  `json:"import_id"`
	GlobalPositionID *uuid.UUID `json:"global_position_id,omitempty"`
	EntityID         *uuid.UUID `json:"entity_id,omitempty"`
	Feature          *Feature   `json:"feature,omitempty"`
	Source           DataSource `json:"source"`
	Date             time.Time  `json:"date"`
}

type ImportResultCode string

const (
	ImportCompleted             ImportResultCode = "COMPLETED"
	ImportDisabled              ImportResultCode = "DISABLED"
	ImportInvalidTemplate       ImportResultCode = "INVALID_TEMPLATE"
	ImportUnsupportedFileFormat ImportResultCode = "UNSUPPORTED_FILE_FORMAT"
)

type ImportErrorType string

const (
	ImportErrMissingField ImportErrorType = "MISSING_FIELD"
	ImportErrBadValue     ImportErrorType = "BAD_VALUE"
	ImportErrBadDate      ImportErrorType = "BAD_DATE"
	ImportErrUnknownType  ImportErrorType = "UNKNOWN_TYPE"
)

// ImportRowError is a row-level problem found while importing.
type ImportRowError struct {
	Type   ImportErrorType `json:"type"`
	Row    int             `json:"row"`
	Column string          `json:"column,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

// ImportedData is what a virtual import produced.
type ImportedData struct {
	Positions       []GlobalPosition `json:"positions,omitempty"`
	Transactions    *Transactions    `json:"transactions,omitempty"`
	CreatedEntities []Entity         `json:"created_entities,omitempty"`
}

type ImportResult struct {
	Code   ImportResultCode `json:"code"`
	Data   *ImportedData    `json:"data,omitempty"`
	Errors []ImportRowError `json:"errors,omitempty"`
}

// ImportTemplate maps spreadsheet columns to domain fields. Field names are
// the keys of ColumnsByField; values are the column headers in the sheet.
type ImportTemplate struct {
	Feature        Feature           `json:"feature"`
	ProductType    ProductType       `json:"product_type"`
	ColumnsByField map[string]string `json:"columns_by_field"`
	DateLayout     string            `json:"date_layout,omitempty"`
}
