// =============================================================================
// IATI Activity Converter - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - csvparser / xlsxparser (produce Tables)
//   - validation             (checks Table columns)
//   - converter              (reads Rows, builds Nodes)
//   - xmlwriter              (renders Nodes)
//
// =============================================================================

package types

import (
	"strings"
)

// =============================================================================
// CELL VALUES
// =============================================================================

// Value is a single cell. Missing is a first-class state and is distinct from
// an empty string or a zero.
type Value struct {
	Text    string
	Missing bool
}

// Text returns a present value holding s.
func Text(s string) Value {
	return Value{Text: s}
}

// Missing returns the missing value.
func Missing() Value {
	return Value{Missing: true}
}

// String returns the raw text, or "" when the value is missing.
func (v Value) String() string {
	if v.Missing {
		return ""
	}
	return v.Text
}

// CellCleaner turns a raw cell string into a Value. Readers call it once per
// cell at ingestion time.
type CellCleaner func(raw string) Value

// DefaultCleaner trims whitespace and treats empty cells as missing.
func DefaultCleaner(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Missing()
	}
	return Text(s)
}

// =============================================================================
// TABLES AND ROWS
// =============================================================================

// Table is a named set of columns with rows indexed 0..N-1.
type Table struct {
	// Name identifies the table in error messages ("primary", "locations", ...).
	Name string

	// Columns holds the header names in source order.
	Columns []string

	// Rows holds the data rows in source order.
	Rows []Row

	index map[string]int
}

// NewTable creates an empty table with the given header.
// Duplicate header names keep the first position.
func NewTable(name string, columns []string) *Table {
	t := &Table{
		Name:    name,
		Columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range t.Columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
	return t
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds a row. Short rows are padded with missing values.
func (t *Table) Append(values []Value) {
	cells := make([]Value, len(t.Columns))
	for i := range cells {
		if i < len(values) {
			cells[i] = values[i]
		} else {
			cells[i] = Missing()
		}
	}
	t.Rows = append(t.Rows, Row{Index: len(t.Rows), table: t, cells: cells})
}

// AppendStrings adds a row of raw strings through DefaultCleaner.
func (t *Table) AppendStrings(cells ...string) {
	values := make([]Value, len(cells))
	for i, c := range cells {
		values[i] = DefaultCleaner(c)
	}
	t.Append(values)
}

// Row is an ordered, immutable mapping from column name to Value.
type Row struct {
	// Index is the row position within its table.
	Index int

	table *Table
	cells []Value
}

// Get returns the value of the named column. Unknown columns are missing.
func (r Row) Get(column string) Value {
	if r.table == nil {
		return Missing()
	}
	i, ok := r.table.index[column]
	if !ok || i >= len(r.cells) {
		return Missing()
	}
	return r.cells[i]
}

// Has reports whether the row's table carries the column.
func (r Row) Has(column string) bool {
	return r.table != nil && r.table.HasColumn(column)
}
