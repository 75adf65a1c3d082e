// Package core provides the bulk transfer pipeline for person records.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Record is one row of the persons table as it moves through the pipeline.
// Date is invalid (Valid=false) when the source value was missing or could
// not be parsed; the text fields are always present, possibly empty.
type Record struct {
	Date      pgtype.Date
	FirstName string
	LastName  string
	SurName   string
	City      string
	Country   string
}

// BatchWriter delivers a block of records to the store in one bulk call.
// Implementations should use a bulk-load path (COPY or a single transaction),
// not row-by-row autocommit inserts.
type BatchWriter interface {
	WriteBatch(ctx context.Context, batch []Record) error
}

// RecordSource produces records for export. Count and Each must observe the
// same filter and ordering so that paging with offset/limit is stable.
type RecordSource interface {
	// Count returns the number of records the source would produce.
	Count(ctx context.Context) (int64, error)

	// Each calls fn for every record in [offset, offset+limit) in source order.
	// A limit <= 0 means no limit. Returning an error from fn stops iteration
	// and Each returns that error.
	Each(ctx context.Context, offset, limit int64, fn func(Record) error) error
}

// Filter narrows the set of records returned by a store. Zero values mean
// "no constraint". Text filters are exact matches; the date range is inclusive.
type Filter struct {
	DateFrom  *time.Time
	DateTo    *time.Time
	FirstName string
	LastName  string
	SurName   string
	City      string
	Country   string
}

// IsEmpty reports whether the filter constrains nothing.
func (f Filter) IsEmpty() bool {
	return f.DateFrom == nil && f.DateTo == nil &&
		f.FirstName == "" && f.LastName == "" && f.SurName == "" &&
		f.City == "" && f.Country == ""
}

// Progress is one point-in-time sample of pipeline advancement.
// Record is only set by the importer, for the record that was just accepted.
type Progress struct {
	Processed int64   `json:"processed"`
	Total     int64   `json:"total"`
	Record    *Record `json:"record,omitempty"`
}

// Percent returns the progress as a percentage (0-100).
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return int(p.Processed * 100 / p.Total)
}

// ImportSummary contains the final result of an import.
type ImportSummary struct {
	Total     int64
	Processed int64
	Batches   int
	Duration  time.Duration
}

// OperationKind identifies what a background operation does.
type OperationKind string

const (
	KindImport     OperationKind = "import"
	KindExportXLSX OperationKind = "export_xlsx"
	KindExportXML  OperationKind = "export_xml"
	KindClear      OperationKind = "clear"
	KindPreview    OperationKind = "preview"
)

// OperationPhase indicates the current stage of a background operation.
type OperationPhase string

const (
	PhaseStarting  OperationPhase = "starting"
	PhaseRunning   OperationPhase = "running"
	PhaseComplete  OperationPhase = "complete"
	PhaseFailed    OperationPhase = "failed"
	PhaseCancelled OperationPhase = "cancelled"
)

// OperationStatus is what listeners of a background operation receive.
type OperationStatus struct {
	OperationID string         `json:"operationId"`
	Kind        OperationKind  `json:"kind"`
	Phase       OperationPhase `json:"phase"`
	Progress    Progress       `json:"progress"`
	Error       string         `json:"error,omitempty"`
}

// OperationResult contains the final result of a background operation.
type OperationResult struct {
	OperationID string         `json:"operationId"`
	Kind        OperationKind  `json:"kind"`
	Phase       OperationPhase `json:"phase"`
	Processed   int64          `json:"processed"`
	Total       int64          `json:"total"`
	Files       []string       `json:"files,omitempty"`
	Duration    time.Duration  `json:"duration"`
	Error       string         `json:"error,omitempty"`
	Code        string         `json:"code,omitempty"` // MapError code when Error is set
}
