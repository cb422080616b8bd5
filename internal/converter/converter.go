// =============================================================================
// IATI Activity Converter - Converter Module
// =============================================================================
//
// This module contains the emission driver. It orchestrates one conversion
// run over a primary table and up to four auxiliary tables.
//
// CONVERSION PIPELINE:
//   1. Derive keys for every primary row
//   2. Build join indexes over the auxiliary tables
//   3. Group rows by geography, then by activity and award
//   4. For each group, assemble the document tree
//   5. Hand each document to the sink (render, write, package)
//
// CONCURRENCY:
//   A run is single-threaded. Indexes are built before grouping and only
//   read afterwards. The context is checked between groups.
//
// =============================================================================

package converter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ginjaninja78/iati-activity-converter/internal/config"
	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

// GeneratedLayout is the timestamp layout of generated-datetime attributes.
const GeneratedLayout = "2006-01-02T15:04:05.000Z"

// DefaultNameFormat is the output name of a group document.
const DefaultNameFormat = "iati-activities-{group}.xml"

// =============================================================================
// INPUTS AND OPTIONS
// =============================================================================

// Inputs are the tables of one run. Only Primary is required.
type Inputs struct {
	Primary    *types.Table
	Locations  *types.Table
	Documents  *types.Table
	Historical *types.Table
	Results    *types.Table
}

// All returns the non-nil tables, primary first.
func (in Inputs) All() []*types.Table {
	var out []*types.Table
	for _, t := range []*types.Table{in.Primary, in.Locations, in.Documents, in.Historical, in.Results} {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Options tune a run.
type Options struct {
	// Now is the run clock. Default: time.Now
	Now func() time.Time

	// NestAwards places award activities inside their parent activity.
	NestAwards bool

	// NameFormat names each document. "{group}" is replaced by the group key;
	// other placeholders are left for the sink. Default: DefaultNameFormat
	NameFormat string
}

// DocumentSink receives each finished document.
type DocumentSink interface {
	Write(ctx context.Context, doc *types.Document) error
}

// Logger is an interface for logging. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// =============================================================================
// STATISTICS
// =============================================================================

// GroupStats describes one emitted document.
type GroupStats struct {
	Key  string
	Name string
	Rows int
	AssemblyStats
}

// Stats contains statistics about a run. They are for reporting only.
type Stats struct {
	// Groups lists each document in emission order.
	Groups []GroupStats

	// Totals across all groups.
	Totals AssemblyStats

	// OpenDuration is set by the caller that read the tables.
	OpenDuration time.Duration

	// ConvertDuration covers key derivation, indexing and assembly.
	ConvertDuration time.Duration

	// WriteDuration covers time spent in the sink.
	WriteDuration time.Duration
}

// AveragePerActivity is the mean conversion time per hierarchy-1 activity.
func (s Stats) AveragePerActivity() time.Duration {
	if s.Totals.Activities == 0 {
		return 0
	}
	return s.ConvertDuration / time.Duration(s.Totals.Activities)
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter runs one conversion.
type Converter struct {
	ds     *config.DatasetConfig
	inputs Inputs
	opts   Options
	logger Logger
}

// New creates a new Converter. A nil logger discards log output.
func New(ds *config.DatasetConfig, inputs Inputs, opts Options, logger Logger) *Converter {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NameFormat == "" {
		opts.NameFormat = DefaultNameFormat
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Converter{ds: ds, inputs: inputs, opts: opts, logger: logger}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run converts every group and hands each document to sink.
//
// RETURNS:
//   - Run statistics, filled for the groups completed so far.
//   - An error if the primary table is missing, the context is cancelled
//     between groups, or the sink fails.
func (c *Converter) Run(ctx context.Context, sink DocumentSink) (Stats, error) {
	var stats Stats

	if c.inputs.Primary == nil {
		return stats, fmt.Errorf("primary table is required")
	}

	now := c.opts.Now().UTC()
	started := time.Now()

	// =========================================================================
	// STEP 1: KEYS AND INDEXES
	// =========================================================================

	deriver := NewKeyDeriver(c.ds)
	primary := c.inputs.Primary

	keys := make([]Keys, primary.Len())
	for _, row := range primary.Rows {
		keys[row.Index] = deriver.Derive(row)
	}

	tables := c.ds.Tables
	current := BuildIndex(primary, func(row types.Row) string { return keys[row.Index].Award })
	historical := BuildIndex(c.inputs.Historical, ColumnKey(tables.Historical.JoinColumn))

	mapper := NewFieldMapper(c.ds, now)
	asm := &Assembler{
		ds:            c.ds,
		mapper:        mapper,
		normalizer:    NewTransactionNormalizer(c.ds, deriver, mapper, current, historical),
		locationIndex: BuildIndex(c.inputs.Locations, ColumnKey(tables.Locations.JoinColumn)),
		documentIndex: BuildIndex(c.inputs.Documents, ColumnKey(tables.Documents.JoinColumn)),
		resultIndex:   BuildIndex(c.inputs.Results, CleanColumnKey(tables.Results.JoinColumn)),
		generated:     now.Format(GeneratedLayout),
		nestAwards:    c.opts.NestAwards,
	}

	c.logger.Debug("indexes built",
		"awards", current.Keys(),
		"historical_keys", historical.Keys(),
		"location_keys", asm.locationIndex.Keys(),
		"document_keys", asm.documentIndex.Keys(),
		"result_keys", asm.resultIndex.Keys(),
	)

	// =========================================================================
	// STEP 2: GROUPING
	// =========================================================================

	groups := GroupRows(primary, keys)
	c.logger.Info("grouped rows", "rows", primary.Len(), "groups", len(groups))

	// =========================================================================
	// STEP 3: ASSEMBLY AND EMISSION
	// =========================================================================

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			stats.ConvertDuration = time.Since(started) - stats.WriteDuration
			return stats, fmt.Errorf("conversion stopped before group %s: %w", g.Key, err)
		}

		root, as := asm.Document(g)
		doc := &types.Document{
			Group: g.Key,
			Name:  strings.ReplaceAll(c.opts.NameFormat, "{group}", g.Key),
			Root:  root,
		}

		writeStart := time.Now()
		if err := sink.Write(ctx, doc); err != nil {
			return stats, fmt.Errorf("failed to write group %s: %w", g.Key, err)
		}
		stats.WriteDuration += time.Since(writeStart)

		stats.Groups = append(stats.Groups, GroupStats{Key: g.Key, Name: doc.Name, Rows: len(g.Rows), AssemblyStats: as})
		stats.Totals.add(as)

		c.logger.Info("group converted",
			"group", g.Key,
			"rows", len(g.Rows),
			"activities", as.Activities,
			"awards", as.Awards,
			"transactions", as.Transactions,
		)
		if as.SkippedOther > 0 {
			c.logger.Warn("transactions with unknown type skipped", "group", g.Key, "count", as.SkippedOther)
		}
	}

	stats.ConvertDuration = time.Since(started) - stats.WriteDuration
	return stats, nil
}

// =============================================================================
// DEFAULT LOGGER
// =============================================================================

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
