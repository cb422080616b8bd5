package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/iati-activity-converter/internal/config"
	"github.com/ginjaninja78/iati-activity-converter/internal/converter"
	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

func dataset(t *testing.T) *config.DatasetConfig {
	t.Helper()
	ds, err := config.Dataset("2016")
	require.NoError(t, err)
	return ds
}

func primary(ds *config.DatasetConfig, rows ...[]string) *types.Table {
	c := ds.Columns
	t := types.NewTable("primary", []string{
		c.AwardID, c.TransactionType, c.TransactionValue, c.TransactionDate,
		c.DACRegionalCode, c.ISOAlphaCode, c.DACCountryCode,
	})
	for _, r := range rows {
		t.AppendStrings(r...)
	}
	return t
}

func TestCheckTable(t *testing.T) {
	table := types.NewTable("locations", []string{"Implementing Mechanism ID"})

	err := CheckTable(table, []string{"Implementing Mechanism ID", "Location Name", "Location Coordinates"})
	require.Error(t, err)

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "locations", schemaErr.Table)
	assert.Equal(t, []string{"Location Name", "Location Coordinates"}, schemaErr.Columns)
	assert.Contains(t, err.Error(), `table "locations" is missing required column(s): Location Name, Location Coordinates`)

	assert.NoError(t, CheckTable(table, []string{"Implementing Mechanism ID"}))
}

func TestCheckInputs(t *testing.T) {
	ds := dataset(t)

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, CheckInputs(ds, converter.Inputs{Primary: primary(ds)}))
	})

	t.Run("primary missing", func(t *testing.T) {
		err := CheckInputs(ds, converter.Inputs{})
		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, "primary", schemaErr.Table)
	})

	t.Run("every failing table is reported", func(t *testing.T) {
		bad := types.NewTable("primary", []string{ds.Columns.AwardID})
		docs := types.NewTable("documents", []string{"Document Title"})

		err := CheckInputs(ds, converter.Inputs{Primary: bad, Documents: docs})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"primary"`)
		assert.Contains(t, err.Error(), `"documents"`)
		assert.Contains(t, err.Error(), "Award Transaction Value")
	})

	t.Run("historical without geography", func(t *testing.T) {
		c := ds.Columns
		historical := types.NewTable("historical", []string{
			ds.Tables.Historical.JoinColumn, c.TransactionType, c.TransactionValue, c.TransactionDate,
		})

		err := CheckInputs(ds, converter.Inputs{Primary: primary(ds), Historical: historical})
		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, "historical", schemaErr.Table)
		assert.Equal(t, []string{c.DACRegionalCode, c.ISOAlphaCode, c.DACCountryCode}, schemaErr.Columns)
	})
}

func TestAudit(t *testing.T) {
	ds := dataset(t)
	table := primary(ds,
		[]string{"AID-1", "Commitment", "500", "20170115", "", "KE", ""},
		[]string{"", "Refund", "lots", "2017-13-01", "", "KE", ""},
		[]string{"AID-3", "Disbursement", "", "", "", "", ""},
	)
	historical := types.NewTable("historical", table.Columns)
	historical.AppendStrings("AID-1", "Obligation", "$9,000", "20150101.0", "", "KE", "")

	result := NewAuditor(ds).Audit(converter.Inputs{Primary: table, Historical: historical})
	assert.Equal(t, 4, result.RowsAudited)
	require.Len(t, result.Issues, 4)
	assert.Equal(t, 4, result.WarningCount())

	columns := make([]string, len(result.Issues))
	for i, issue := range result.Issues {
		assert.Equal(t, "primary", issue.Table)
		assert.Equal(t, 2, issue.RowNumber)
		columns[i] = issue.Column
	}
	assert.Equal(t, []string{
		ds.Columns.AwardID,
		ds.Columns.TransactionType,
		ds.Columns.TransactionValue,
		ds.Columns.TransactionDate,
	}, columns)
	assert.Equal(t, "lots", result.Issues[2].Value)
}

func TestFormatIssues(t *testing.T) {
	assert.Equal(t, "No data quality issues.", FormatIssues(nil))

	out := FormatIssues([]Issue{{
		Severity: SeverityWarning, Table: "primary", RowNumber: 3,
		Column: "Award Transaction Value", Value: "lots", Message: "amount is not numeric",
	}})
	assert.Contains(t, out, "1 issue(s)")
	assert.Contains(t, out, "[WARNING] primary row 3, column 'Award Transaction Value': amount is not numeric (value: 'lots')")

	entries := LogEntries([]Issue{{Severity: SeverityWarning, Table: "primary", RowNumber: 3, Column: "c", Value: "v"}})
	require.Len(t, entries, 1)
	assert.Equal(t, "c", entries[0].FieldName)
	assert.Equal(t, 3, entries[0].RowNumber)
}
