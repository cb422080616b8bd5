// =============================================================================
// IATI Activity Converter - Validation Engine
// =============================================================================
//
// This module checks input tables before a conversion starts. It provides:
//   - Structural checks: every required column is present (fatal)
//   - A data quality audit: cells the converter will silently replace with a
//     default are reported as warnings
//
// VALIDATION STRATEGY:
//   1. Table-level: CheckTable / CheckInputs compare headers against the
//      dataset revision's required columns. Any gap aborts the run.
//   2. Cell-level: Audit walks the primary and historical rows and records
//      values that fail to coerce (amounts, dates, transaction types).
//
// ERROR HANDLING:
//   - Structural errors are returned as *SchemaError and can be joined
//   - Audit findings are collected, never returned as errors
//   - Each finding carries table, row, column and value
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ginjaninja78/iati-activity-converter/internal/config"
	"github.com/ginjaninja78/iati-activity-converter/internal/converter"
	"github.com/ginjaninja78/iati-activity-converter/internal/types"
	"github.com/ginjaninja78/iati-activity-converter/pkg/utils"
)

// =============================================================================
// STRUCTURAL ERRORS
// =============================================================================

// SchemaError reports required columns missing from a table.
type SchemaError struct {
	// Table is the table name ("primary", "locations", ...).
	Table string

	// Columns lists the missing column names in required order.
	Columns []string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %q is missing required column(s): %s",
		e.Table, strings.Join(e.Columns, ", "))
}

// CheckTable returns a *SchemaError if t lacks any of the required columns.
func CheckTable(t *types.Table, required []string) error {
	var missing []string
	for _, col := range required {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Table: t.Name, Columns: missing}
	}
	return nil
}

// CheckInputs checks every supplied table against the dataset revision.
// The primary table is mandatory. All failures are joined into one error.
func CheckInputs(ds *config.DatasetConfig, inputs converter.Inputs) error {
	if inputs.Primary == nil {
		return &SchemaError{Table: "primary", Columns: []string{"(table not supplied)"}}
	}

	var errs []error
	for _, t := range inputs.All() {
		if err := CheckTable(t, ds.RequiredColumns(t.Name)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// DATA QUALITY AUDIT
// =============================================================================

// Severity levels for audit issues.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Issue represents a single audit finding.
type Issue struct {
	// Severity is "warning" for cells that fall back to a default.
	Severity string

	// Table is the table containing the cell.
	Table string

	// RowNumber is the 1-based data row number.
	RowNumber int

	// Column is the column that failed.
	Column string

	// Value is the raw cell text.
	Value string

	// Message is a human-readable description.
	Message string
}

// String formats the issue for display.
func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s row %d, column '%s': %s (value: '%s')",
		strings.ToUpper(i.Severity), i.Table, i.RowNumber, i.Column, i.Message, i.Value)
}

// Result contains the results of an audit.
type Result struct {
	// Issues contains all findings in table then row order.
	Issues []Issue

	// RowsAudited is the number of rows inspected.
	RowsAudited int
}

// WarningCount returns the number of warnings.
func (r *Result) WarningCount() int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// Auditor inspects cells that the converter coerces.
type Auditor struct {
	ds         *config.DatasetConfig
	classifier *converter.Classifier
}

// NewAuditor creates an Auditor for a dataset revision.
func NewAuditor(ds *config.DatasetConfig) *Auditor {
	return &Auditor{ds: ds, classifier: converter.NewClassifier(ds.TransactionTypes)}
}

// Audit inspects the primary and historical tables.
func (a *Auditor) Audit(inputs converter.Inputs) *Result {
	result := &Result{}
	for _, t := range []*types.Table{inputs.Primary, inputs.Historical} {
		if t == nil {
			continue
		}
		for _, row := range t.Rows {
			result.Issues = append(result.Issues, a.auditRow(t.Name, row)...)
			result.RowsAudited++
		}
	}
	return result
}

// auditRow checks one row.
func (a *Auditor) auditRow(table string, row types.Row) []Issue {
	c := a.ds.Columns
	var issues []Issue
	add := func(column, message string) {
		issues = append(issues, Issue{
			Severity:  SeverityWarning,
			Table:     table,
			RowNumber: row.Index + 1,
			Column:    column,
			Value:     row.Get(column).String(),
			Message:   message,
		})
	}

	if table == "primary" && row.Get(c.AwardID).Missing {
		add(c.AwardID, "award identifier is missing")
	}

	typ := row.Get(c.TransactionType)
	if a.classifier.Classify(typ) == converter.ClassOther {
		add(c.TransactionType, "transaction type is neither commitment nor disbursement; row is skipped")
	}

	if v := row.Get(c.TransactionValue); !v.Missing {
		if _, ok := converter.ParseAmount(v); !ok {
			add(c.TransactionValue, "amount is not numeric; 0.00 is used")
		}
	}

	for _, col := range []string{c.TransactionDate, c.StartDate, c.EndDate} {
		if col == "" || !row.Has(col) {
			continue
		}
		v := row.Get(col)
		if v.Missing {
			continue
		}
		if _, ok := converter.ParseCompactDate(v); !ok {
			add(col, "date is not YYYYMMDD; a fiscal-year default is used")
		}
	}

	return issues
}

// =============================================================================
// ISSUE FORMATTING
// =============================================================================

// FormatIssues formats audit issues for display or logging.
func FormatIssues(issues []Issue) string {
	if len(issues) == 0 {
		return "No data quality issues."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Audit completed with %d issue(s):\n\n", len(issues)))
	for i, issue := range issues {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, issue.String()))
	}
	return builder.String()
}

// LogEntries converts issues to error log entries.
func LogEntries(issues []Issue) []utils.ErrorLogEntry {
	entries := make([]utils.ErrorLogEntry, len(issues))
	for i, issue := range issues {
		entries[i] = utils.ErrorLogEntry{
			Severity:   issue.Severity,
			Table:      issue.Table,
			RowNumber:  issue.RowNumber,
			FieldName:  issue.Column,
			FieldValue: issue.Value,
			Message:    issue.Message,
		}
	}
	return entries
}
