package converter

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/iati-activity-converter/internal/types"
	"github.com/ginjaninja78/iati-activity-converter/internal/xmlwriter"
)

func fixture() Inputs {
	uganda := kenyaRow("AID-7", "Disbursement", "40")
	uganda[colISO] = "UG"
	regional := kenyaRow("AID-8", "Commitment", "12")
	regional[colRegion] = "298"

	return Inputs{Primary: primaryTable(
		kenyaRow("AID-1", "Commitment", "500"),
		uganda,
		kenyaRow("AID-1", "Commitment", "0"),
		regional,
		kenyaRow("AID-2", "Refund", "3"),
	)}
}

func TestRunEmitsOneDocumentPerGroup(t *testing.T) {
	docs, stats := run(t, dataset(t, "2016"), fixture(), Options{})

	require.Len(t, docs, 3)
	assert.Equal(t, "KE", docs[0].Group)
	assert.Equal(t, "UG", docs[1].Group)
	assert.Equal(t, "298", docs[2].Group)
	assert.Equal(t, "iati-activities-KE.xml", docs[0].Name)

	require.Len(t, stats.Groups, 3)
	assert.Equal(t, 3, stats.Groups[0].Rows)
	assert.Equal(t, 3, stats.Totals.Activities)
	assert.Equal(t, 4, stats.Totals.Awards)
	assert.Equal(t, 3, stats.Totals.Transactions)
	assert.Equal(t, 1, stats.Totals.SuppressedZeros)
	assert.Equal(t, 1, stats.Totals.SkippedOther)
}

func TestRunNameFormat(t *testing.T) {
	docs, _ := run(t, dataset(t, "2016"), fixture(), Options{NameFormat: "usaid-{group}-{date}.xml"})
	assert.Equal(t, "usaid-KE-{date}.xml", docs[0].Name)
}

func TestRunIsDeterministic(t *testing.T) {
	render := func() [][]byte {
		docs, _ := run(t, dataset(t, "2016"), fixture(), Options{})
		out := make([][]byte, len(docs))
		for i, d := range docs {
			b, err := xmlwriter.Render(d.Root)
			require.NoError(t, err)
			out[i] = b
		}
		return out
	}

	first, second := render(), render()
	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, bytes.Equal(first[i], second[i]), "document %d differs between runs", i)
	}
}

func TestRunRequiresPrimary(t *testing.T) {
	_, err := New(dataset(t, "2016"), Inputs{}, Options{}, nil).Run(context.Background(), &memorySink{})
	require.Error(t, err)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &memorySink{}
	_, err := New(dataset(t, "2016"), fixture(), Options{}, nil).Run(ctx, sink)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, sink.docs)
}

type failingSink struct{ err error }

func (s failingSink) Write(context.Context, *types.Document) error { return s.err }

func TestRunPropagatesSinkErrors(t *testing.T) {
	boom := errors.New("disk full")
	_, err := New(dataset(t, "2016"), fixture(), Options{Now: func() time.Time { return fixedNow }}, nil).
		Run(context.Background(), failingSink{err: boom})
	require.ErrorIs(t, err, boom)
}

func TestStatsAveragePerActivity(t *testing.T) {
	s := Stats{ConvertDuration: 10 * time.Millisecond, Totals: AssemblyStats{Activities: 4}}
	assert.Equal(t, 2500*time.Microsecond, s.AveragePerActivity())
	assert.Zero(t, Stats{}.AveragePerActivity())
}
