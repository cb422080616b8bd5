package converter

import (
	"slices"

	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

// KeyFunc extracts a join key from a row. An empty key means the row is not
// indexed.
type KeyFunc func(row types.Row) string

// ColumnKey keys rows by the raw text of a column.
func ColumnKey(column string) KeyFunc {
	return func(row types.Row) string {
		return row.Get(column).String()
	}
}

// CleanColumnKey keys rows by a column with all whitespace removed.
func CleanColumnKey(column string) KeyFunc {
	return func(row types.Row) string {
		return CleanActivityID(row.Get(column).String())
	}
}

// JoinIndex maps a join key to the positions of the rows carrying it, in
// source order. It is read-only once built.
type JoinIndex struct {
	table     *types.Table
	positions map[string][]int
}

// BuildIndex indexes every row of t by key. A nil table yields an empty index.
func BuildIndex(t *types.Table, key KeyFunc) *JoinIndex {
	ix := &JoinIndex{table: t, positions: make(map[string][]int)}
	if t == nil {
		return ix
	}
	for _, row := range t.Rows {
		k := key(row)
		if k == "" {
			continue
		}
		ix.positions[k] = append(ix.positions[k], row.Index)
	}
	return ix
}

// Positions returns the row positions for key. Unknown keys yield nil.
func (ix *JoinIndex) Positions(key string) []int {
	return slices.Clone(ix.positions[key])
}

// Lookup returns the rows for key in source order. Unknown keys yield nil.
func (ix *JoinIndex) Lookup(key string) []types.Row {
	pos := ix.positions[key]
	if len(pos) == 0 {
		return nil
	}
	rows := make([]types.Row, len(pos))
	for i, p := range pos {
		rows[i] = ix.table.Rows[p]
	}
	return rows
}

// Keys returns the number of distinct keys.
func (ix *JoinIndex) Keys() int {
	return len(ix.positions)
}
