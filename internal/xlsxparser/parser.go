// =============================================================================
// IATI Activity Converter - XLSX Parser
// =============================================================================
//
// This module reads spreadsheet exports of the government extract into a
// types.Table. The extract ships as one workbook per table; the first
// visible sheet holds the data unless a sheet is named explicitly.
//
// SHEET LAYOUT:
//
//   | Row 1 (header)            | ...                        |
//   |---------------------------|----------------------------|
//   | Implementing Mechanism ID | Award Transaction Value    |
//   | 1001                      | 500.00                     |
//
// Spreadsheet cells come back as display strings. Numeric ids and dates may
// carry a trailing ".0"; the converter's coercion helpers accept that form.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

// =============================================================================
// SETTINGS
// =============================================================================

// Settings controls which sheet is read and where the header sits.
type Settings struct {
	// Sheet names the sheet to read. Empty means the first sheet whose name
	// does not start with "_".
	Sheet string

	// HeaderRow is the 1-based row holding the column names. Default: 1
	HeaderRow int
}

// DefaultSettings returns settings for a single-header first-sheet workbook.
func DefaultSettings() Settings {
	return Settings{HeaderRow: 1}
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ReadTable reads one sheet of an XLSX workbook into a named table.
//
// PARAMETERS:
//   - filePath: The path to the workbook.
//   - name: The table name used in error messages.
//   - settings: Sheet and header settings.
//   - clean: The cell cleaner. nil means types.DefaultCleaner.
//
// RETURNS:
//   - The parsed table.
//   - An error if the workbook cannot be opened or the sheet is missing.
func ReadTable(filePath, name string, settings Settings, clean types.CellCleaner) (*types.Table, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	table, err := readSheet(f, name, settings, clean)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return table, nil
}

// Read parses a workbook from r.
func Read(r io.Reader, name string, settings Settings, clean types.CellCleaner) (*types.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readSheet(f, name, settings, clean)
}

// readSheet extracts the configured sheet from an open workbook.
func readSheet(f *excelize.File, name string, settings Settings, clean types.CellCleaner) (*types.Table, error) {
	if clean == nil {
		clean = types.DefaultCleaner
	}
	if settings.HeaderRow <= 0 {
		settings.HeaderRow = 1
	}

	sheetName, err := pickSheet(f, settings.Sheet)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet %q: %w", sheetName, err)
	}

	if len(rows) < settings.HeaderRow {
		return nil, fmt.Errorf("sheet %q has no header row", sheetName)
	}

	table := types.NewTable(name, cleanHeaders(rows[settings.HeaderRow-1]))
	for _, row := range rows[settings.HeaderRow:] {
		if len(row) == 0 || isRowEmpty(row) {
			continue
		}
		values := make([]types.Value, len(row))
		for i, cell := range row {
			values[i] = clean(cell)
		}
		table.Append(values)
	}

	return table, nil
}

// pickSheet resolves the sheet to read.
func pickSheet(f *excelize.File, want string) (string, error) {
	sheets := f.GetSheetList()
	if want != "" {
		for _, s := range sheets {
			if s == want {
				return s, nil
			}
		}
		return "", fmt.Errorf("workbook has no sheet %q", want)
	}

	// Sheets prefixed with "_" hold notes and lookup lists.
	for _, s := range sheets {
		if !strings.HasPrefix(s, "_") {
			return s, nil
		}
	}
	return "", fmt.Errorf("workbook has no data sheets")
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// cleanHeaders trims header names and names blank headers by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = h
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
