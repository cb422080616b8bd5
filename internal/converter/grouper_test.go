package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

func TestJoinIndex(t *testing.T) {
	table := types.NewTable("locations", []string{"id", "name"})
	table.AppendStrings("A", "Nairobi")
	table.AppendStrings("B", "Kampala")
	table.AppendStrings("A", "Mombasa")
	table.AppendStrings("", "Nowhere")

	ix := BuildIndex(table, ColumnKey("id"))
	assert.Equal(t, 2, ix.Keys())
	assert.Equal(t, []int{0, 2}, ix.Positions("A"))

	rows := ix.Lookup("A")
	require.Len(t, rows, 2)
	assert.Equal(t, "Nairobi", rows[0].Get("name").Text)
	assert.Equal(t, "Mombasa", rows[1].Get("name").Text)

	assert.Nil(t, ix.Lookup("missing"))

	pos := ix.Positions("A")
	pos[0] = 99
	assert.Equal(t, []int{0, 2}, ix.Positions("A"))
}

func TestJoinIndexNilTable(t *testing.T) {
	ix := BuildIndex(nil, ColumnKey("id"))
	assert.Zero(t, ix.Keys())
	assert.Nil(t, ix.Lookup("A"))
}

func TestCleanColumnKey(t *testing.T) {
	table := types.NewTable("results", []string{"activity_id"})
	table.AppendStrings("US-1-KE-30-AID 1")

	ix := BuildIndex(table, CleanColumnKey("activity_id"))
	assert.Len(t, ix.Lookup("US-1-KE-30-AID1"), 1)
}

func TestGroupRows(t *testing.T) {
	ds := dataset(t, "2016")
	deriver := NewKeyDeriver(ds)

	health := kenyaRow("AID-1", "Commitment", "10")
	health2 := kenyaRow("AID-2", "Commitment", "20")
	education := kenyaRow("AID-3", "Commitment", "30")
	education[colSector] = "40101"
	uganda := kenyaRow("AID-9", "Commitment", "40")
	uganda[colISO] = "UG"
	repeat := kenyaRow("AID-1", "Disbursement", "5")
	repeat[colTitle] = "Later Title"

	table := primaryTable(health, uganda, education, health2, repeat)
	keys := make([]Keys, table.Len())
	for _, row := range table.Rows {
		keys[row.Index] = deriver.Derive(row)
	}

	groups := GroupRows(table, keys)
	require.Len(t, groups, 2)
	assert.Equal(t, "KE", groups[0].Key)
	assert.Equal(t, "UG", groups[1].Key)

	t.Run("partition covers every row once", func(t *testing.T) {
		seen := make(map[int]int)
		for _, g := range groups {
			for _, i := range g.Rows {
				seen[i]++
			}
		}
		require.Len(t, seen, table.Len())
		for i, n := range seen {
			assert.Equalf(t, 1, n, "row %d", i)
		}
	})

	t.Run("first occurrence order", func(t *testing.T) {
		ke := groups[0]
		assert.Equal(t, []int{0, 2, 3, 4}, ke.Rows)
		require.Len(t, ke.Activities, 2)
		assert.Equal(t, "US-1-KE-30", ke.Activities[0].Keys.Composite)
		assert.Equal(t, "US-1-KE-40", ke.Activities[1].Keys.Composite)

		awards := ke.Activities[0].Awards
		require.Len(t, awards, 2)
		assert.Equal(t, "US-1-KE-30-AID-1", awards[0].Keys.Award)
		assert.Equal(t, "US-1-KE-30-AID-2", awards[1].Keys.Award)
	})

	t.Run("first row supplies metadata", func(t *testing.T) {
		award := groups[0].Activities[0].Awards[0]
		assert.Equal(t, 0, award.Row.Index)
		assert.Equal(t, "Maternal Health Program", award.Row.Get(colTitle).Text)
	})
}
