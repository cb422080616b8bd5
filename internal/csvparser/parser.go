// =============================================================================
// IATI Activity Converter - CSV Parser Module
// =============================================================================
//
// This module reads CSV exports of the government extract into a types.Table.
// It handles:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - Multi-line headers
//   - Legacy single-byte encodings (Windows-1252, ISO-8859-1)
//   - Quoted fields with lazy quote handling
//
// Every cell passes through a types.CellCleaner exactly once, so text
// normalization and missing-value detection happen at ingestion.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

// =============================================================================
// SETTINGS
// =============================================================================

// Settings controls how a CSV file is read.
type Settings struct {
	// Delimiter is the field separator. Accepts a literal character or one of
	// "tab", "pipe", "semicolon". Default: ","
	Delimiter string

	// HeaderRows is the number of header rows to merge. Default: 1
	HeaderRows int

	// Encoding names the file's character set: "UTF-8" (default),
	// "Windows-1252" or "ISO-8859-1".
	Encoding string
}

// DefaultSettings returns settings for a plain UTF-8 comma-separated file.
func DefaultSettings() Settings {
	return Settings{Delimiter: ",", HeaderRows: 1, Encoding: "UTF-8"}
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ReadTable reads a CSV file into a named table.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - name: The table name used in error messages ("primary", "locations", ...).
//   - settings: Delimiter, header and encoding settings.
//   - clean: The cell cleaner. nil means types.DefaultCleaner.
//
// RETURNS:
//   - The parsed table.
//   - An error if the file cannot be read or has no header.
func ReadTable(filePath, name string, settings Settings, clean types.CellCleaner) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	table, err := Read(file, name, settings, clean)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return table, nil
}

// Read parses CSV data from r.
func Read(r io.Reader, name string, settings Settings, clean types.CellCleaner) (*types.Table, error) {
	if clean == nil {
		clean = types.DefaultCleaner
	}
	if settings.HeaderRows <= 0 {
		settings.HeaderRows = 1
	}

	decoded, err := decoder(bufio.NewReader(r), settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(decoded)
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	headers, err := extractHeaders(allRows, settings.HeaderRows)
	if err != nil {
		return nil, fmt.Errorf("failed to extract headers: %w", err)
	}

	table := types.NewTable(name, headers)
	for _, row := range allRows[settings.HeaderRows:] {
		if isRowEmpty(row) {
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

// decoder wraps r so that the CSV reader always sees UTF-8.
func decoder(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToUpper(strings.ReplaceAll(encoding, "_", "-")) {
	case "", "UTF-8", "UTF8":
		return r, nil
	case "WINDOWS-1252", "CP1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case "ISO-8859-1", "LATIN1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings Settings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// The extract has ragged rows and stray quotes in free-text columns.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
}

// extractHeaders merges the first headerRows rows into one header.
//
// MULTI-LINE HEADER HANDLING:
//
//	Row 1: "Award", "", "Budget", ""
//	Row 2: "Number", "Title", "Start", "End"
//	Result: "Award Number", "Title", "Budget Start", "End"
func extractHeaders(allRows [][]string, headerRows int) ([]string, error) {
	if len(allRows) < headerRows {
		return nil, fmt.Errorf("file has fewer rows than header_rows setting")
	}

	if headerRows == 1 {
		return cleanHeaders(allRows[0]), nil
	}

	maxCols := 0
	for i := 0; i < headerRows; i++ {
		if len(allRows[i]) > maxCols {
			maxCols = len(allRows[i])
		}
	}

	headers := make([]string, maxCols)
	for col := 0; col < maxCols; col++ {
		var parts []string
		for row := 0; row < headerRows; row++ {
			if col < len(allRows[row]) {
				if value := strings.TrimSpace(allRows[row][col]); value != "" {
					parts = append(parts, value)
				}
			}
		}
		headers[col] = strings.Join(parts, " ")
	}

	return cleanHeaders(headers), nil
}

// cleanHeaders trims header names, strips a UTF-8 byte order mark, and
// names blank headers by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		if i == 0 {
			header = strings.TrimPrefix(header, "\ufeff")
		}
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}

	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
