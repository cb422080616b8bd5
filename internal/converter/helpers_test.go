package converter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/iati-activity-converter/internal/config"
	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

var fixedNow = time.Date(2017, 6, 1, 12, 0, 0, 0, time.UTC)

const (
	colRegion      = "DAC Regional Code"
	colISO         = "ISO Alpha Code"
	colCountryCode = "DAC Country Code"
	colCountryName = "DAC Country Name"
	colAward       = "Implementing Mechanism ID"
	colSector      = "U.S. Government Sector Code"
	colCategory    = "U.S. Government Category Name"
	colTitle       = "Implementing Mechanism Title"
	colType        = "Award Transaction Type"
	colValue       = "Award Transaction Value"
	colDate        = "Award Transaction Date"
	colStart       = "Start Date"
	colEnd         = "End Date"
	colAgency      = "Appropriated Agency"
	colAgent       = "Implementing Agent"
	colBudget      = "Total allocations"
)

var primaryColumns = []string{
	colRegion, colISO, colCountryCode, colCountryName, colAward, colSector,
	colCategory, colTitle, colType, colValue, colDate, colStart, colEnd,
	colAgency, colAgent, colBudget,
}

func dataset(t *testing.T, revision string) *config.DatasetConfig {
	t.Helper()
	ds, err := config.Dataset(revision)
	require.NoError(t, err)
	return ds
}

// primaryTable builds a 2016-revision primary table from rows keyed by column.
func primaryTable(rows ...map[string]string) *types.Table {
	return tableFromMaps("primary", primaryColumns, rows...)
}

func tableFromMaps(name string, columns []string, rows ...map[string]string) *types.Table {
	t := types.NewTable(name, columns)
	for _, r := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = r[c]
		}
		t.AppendStrings(cells...)
	}
	return t
}

// kenyaRow is a fully populated Kenyan health award line.
func kenyaRow(award, txType, value string) map[string]string {
	return map[string]string{
		colISO:         "KE",
		colCountryCode: "248",
		colCountryName: "Kenya",
		colAward:       award,
		colSector:      "30101",
		colCategory:    "Health",
		colTitle:       "Maternal Health Program",
		colType:        txType,
		colValue:       value,
		colDate:        "20170115",
		colStart:       "20150101",
		colEnd:         "20181231",
		colAgency:      "Dept of State",
		colAgent:       "Some NGO",
		colBudget:      "1000",
	}
}

type memorySink struct {
	docs []*types.Document
}

func (s *memorySink) Write(_ context.Context, doc *types.Document) error {
	s.docs = append(s.docs, doc)
	return nil
}

// run converts inputs with the fixed clock and returns the emitted documents.
func run(t *testing.T, ds *config.DatasetConfig, inputs Inputs, opts Options) ([]*types.Document, Stats) {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	sink := &memorySink{}
	stats, err := New(ds, inputs, opts, nil).Run(context.Background(), sink)
	require.NoError(t, err)
	return sink.docs, stats
}

func attr(t *testing.T, n *types.Node, name string) string {
	t.Helper()
	v, ok := n.Attr(name)
	require.Truef(t, ok, "%s has no %s attribute", n.Name, name)
	return v
}
