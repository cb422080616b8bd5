// =============================================================================
// IATI Activity Converter - Field Mapper
// =============================================================================
//
// This module resolves individual source fields into output values. Every
// resolution has a documented fallback; nothing here returns an error.
//
// FIELD RULES:
//   - Dates:       YYYYMMDD (optionally "YYYYMMDD.0") -> YYYY-MM-DD.
//                  Start-like fallback: previous year-10-01.
//                  End-like fallback:   current year-09-30.
//   - Amounts:     decimal, "0.00" when unparseable.
//   - Codes:       integer string, "0" when unparseable or missing.
//   - Org names:   exact-match registry lookup with a per-registry default.
//   - Narratives:  one per configured language; placeholder when missing.
//
// INGESTION:
//   NewCellCleaner builds the cell cleaner handed to the table readers. It
//   applies the dataset's replacement table, mojibake repair and NFC
//   normalization, then marks missing-value markers as missing.
//
// =============================================================================

package converter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/ginjaninja78/iati-activity-converter/internal/config"
	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

// Placeholder texts.
const (
	NoDescription   = "There is no available description."
	NoDateNarrative = "No valid date could be found for activity."
)

// DateKind selects the fallback used for an unparseable date.
type DateKind int

const (
	StartLike DateKind = iota
	EndLike
)

// ResolvedDate is an ISO date and whether it was substituted.
type ResolvedDate struct {
	ISO      string
	Fallback bool
}

// Narrative is one language variant of a text. Lang is empty for English.
type Narrative struct {
	Lang string
	Text string
}

// =============================================================================
// FIELD MAPPER
// =============================================================================

// FieldMapper resolves fields against a dataset revision and a fixed clock.
type FieldMapper struct {
	ds      *config.DatasetConfig
	now     time.Time
	markers map[string]bool
}

// NewFieldMapper creates a FieldMapper. now is the run time used for date
// fallbacks and for deciding whether an actual date has happened yet.
func NewFieldMapper(ds *config.DatasetConfig, now time.Time) *FieldMapper {
	markers := make(map[string]bool, len(ds.MissingMarkers))
	for _, m := range ds.MissingMarkers {
		markers[m] = true
	}
	return &FieldMapper{ds: ds, now: now, markers: markers}
}

// Text returns the trimmed text of a present, non-marker value.
func (m *FieldMapper) Text(v types.Value) (string, bool) {
	if v.Missing {
		return "", false
	}
	s := strings.TrimSpace(v.Text)
	if s == "" || m.markers[s] {
		return "", false
	}
	return s, true
}

// Date resolves a compact date, substituting the fallback for its kind.
func (m *FieldMapper) Date(v types.Value, kind DateKind) ResolvedDate {
	if iso, ok := ParseCompactDate(v); ok {
		return ResolvedDate{ISO: iso}
	}
	return ResolvedDate{ISO: m.fallbackDate(kind), Fallback: true}
}

func (m *FieldMapper) fallbackDate(kind DateKind) string {
	year := m.now.Year()
	if kind == EndLike {
		return fmt.Sprintf("%04d-09-30", year)
	}
	return fmt.Sprintf("%04d-10-01", year-1)
}

// HasHappened reports whether an ISO date is not after the run time.
func (m *FieldMapper) HasHappened(iso string) bool {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return false
	}
	return !t.After(m.now)
}

// Amount returns the numeric value of an amount cell, zero when unparseable.
func (m *FieldMapper) Amount(v types.Value) decimal.Decimal {
	d, ok := ParseAmount(v)
	if !ok {
		return decimal.Zero
	}
	return d
}

// Code returns a classification code. Numeric codes are truncated to
// integers ("10.0" -> "10"); other present text is kept verbatim. Missing
// values resolve to "0".
func (m *FieldMapper) Code(v types.Value) string {
	if code, ok := integerString(v); ok {
		return code
	}
	if s, ok := m.Text(v); ok {
		return s
	}
	return "0"
}

// NumericCode is Code without the verbatim text branch.
func (m *FieldMapper) NumericCode(v types.Value) string {
	if code, ok := integerString(v); ok {
		return code
	}
	return "0"
}

// FiscalYears resolves the funding year range, defaulting to the previous
// and current calendar years.
func (m *FieldMapper) FiscalYears(begin, end types.Value) (string, string) {
	b, ok := integerString(begin)
	if !ok {
		b = strconv.Itoa(m.now.Year() - 1)
	}
	e, ok := integerString(end)
	if !ok {
		e = strconv.Itoa(m.now.Year())
	}
	return b, e
}

// Narratives returns one narrative per configured language. The column for
// a non-English tag is "<column> (<tag>)".
func (m *FieldMapper) Narratives(row types.Row, column string) []Narrative {
	out := make([]Narrative, 0, len(m.ds.Languages))
	for _, lang := range m.ds.Languages {
		col := column
		tag := ""
		if lang != "en" {
			col = fmt.Sprintf("%s (%s)", column, lang)
			tag = lang
		}
		text, ok := m.Text(row.Get(col))
		if !ok {
			text = NoDescription
		}
		out = append(out, Narrative{Lang: tag, Text: text})
	}
	return out
}

// FixedNarratives renders a computed text once per language.
func (m *FieldMapper) FixedNarratives(text string) []Narrative {
	out := make([]Narrative, 0, len(m.ds.Languages))
	for _, lang := range m.ds.Languages {
		tag := ""
		if lang != "en" {
			tag = lang
		}
		out = append(out, Narrative{Lang: tag, Text: text})
	}
	return out
}

// AppropriatedAgency resolves an agency name to its organisation code.
func (m *FieldMapper) AppropriatedAgency(name string) string {
	return m.ds.Registries.AppropriatedAgencies.Lookup(name)
}

// ImplementingAgent resolves an implementing agent name. Unmapped names
// resolve to the registry default, which may be empty.
func (m *FieldMapper) ImplementingAgent(name string) string {
	return m.ds.Registries.ImplementingAgents.Lookup(name)
}

// CategoryDescription returns the description of a two-digit sector category.
func (m *FieldMapper) CategoryDescription(category string) string {
	return m.ds.Registries.Categories.Lookup(category)
}

// Collaboration resolves a collaboration-type label. Numeric cells are taken
// as codes directly.
func (m *FieldMapper) Collaboration(v types.Value) string {
	if code, ok := integerString(v); ok {
		return code
	}
	s, _ := m.Text(v)
	return m.ds.CollaborationTypes.Lookup(s)
}

// =============================================================================
// COERCION HELPERS
// =============================================================================

// ParseCompactDate converts "YYYYMMDD" (optionally with a trailing ".0" from
// spreadsheets) or "YYYY-MM-DD" into "YYYY-MM-DD". The calendar date must exist.
func ParseCompactDate(v types.Value) (string, bool) {
	if v.Missing {
		return "", false
	}
	s := strings.TrimSpace(v.Text)
	if i := strings.IndexByte(s, '.'); i >= 0 && strings.Trim(s[i+1:], "0") == "" {
		s = s[:i]
	}

	layout := "20060102"
	if len(s) == 10 && s[4] == '-' && s[7] == '-' {
		layout = "2006-01-02"
	} else if len(s) != 8 {
		return "", false
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// ParseAmount parses a money cell. Currency symbols and thousands
// separators are tolerated.
func ParseAmount(v types.Value) (decimal.Decimal, bool) {
	if v.Missing {
		return decimal.Zero, false
	}
	s := strings.TrimSpace(v.Text)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FormatAmount renders a value with two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// =============================================================================
// INGESTION NORMALIZATION
// =============================================================================

// NewCellCleaner returns the cleaner applied to every cell as tables are read.
func NewCellCleaner(ds *config.DatasetConfig) types.CellCleaner {
	markers := make(map[string]bool, len(ds.MissingMarkers))
	for _, mk := range ds.MissingMarkers {
		markers[mk] = true
	}
	replacements := ds.TextNormalization.Replacements
	repair := ds.TextNormalization.RepairMojibake

	return func(raw string) types.Value {
		s := strings.TrimSpace(raw)
		if s == "" || markers[s] {
			return types.Missing()
		}
		if r, ok := replacements[s]; ok {
			s = r
		} else if repair {
			s = RepairMojibake(s)
		}
		return types.Text(norm.NFC.String(s))
	}
}

// mojibakeLeads are the first characters of UTF-8 multi-byte sequences when
// they are misread as Windows-1252.
const mojibakeLeads = "ÃÂâÅÐÑ"

// RepairMojibake undoes UTF-8 text that was decoded as Windows-1252
// ("CÃ´te" -> "Côte"). Text that does not round-trip cleanly is returned
// unchanged.
func RepairMojibake(s string) string {
	if !strings.ContainsAny(s, mojibakeLeads) {
		return s
	}
	raw, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(raw) || raw == s {
		return s
	}
	return raw
}
