// =============================================================================
// IATI Activity Converter - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, which is the main command for
// turning award extracts into IATI activity documents.
//
// COMMAND USAGE:
//   iati-converter convert --primary FILE [flags]
//
// FLAGS:
//   --locations, --documents, --historical, --results : auxiliary tables
//   --dataset / --revision : dataset definition
//   --out      : Output directory (overrides config)
//   --zip      : Bundle the group documents into one archive
//   --nest     : Place award activities inside their parent activity
//   --dry-run  : Convert without writing output files
//
// PROCESSING PIPELINE:
//   1. Load configuration and the dataset revision
//   2. Read the input tables
//   3. Check required columns (abort on any gap)
//   4. Convert, writing one document per geography
//   5. Package, then print and log the summary
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/iati-activity-converter/internal/converter"
	"github.com/ginjaninja78/iati-activity-converter/internal/validation"
	"github.com/ginjaninja78/iati-activity-converter/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var convertInputs inputFlags

// outDir overrides the configured output directory.
var outDir string

// zipOutput bundles the run's documents into one archive.
var zipOutput bool

// nestAwards nests award activities inside their parent.
var nestAwards bool

// dryRun simulates processing without writing output files.
var dryRun bool

// =============================================================================
// CONVERT COMMAND DEFINITION
// =============================================================================

// convertCmd represents the 'convert' command.
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert award tables to IATI activity XML",
	Long: `The convert command reads a primary award/transaction table and any
auxiliary tables, groups rows by recipient geography, and writes one IATI
activity document per group.

A table missing a required column stops the run before anything is written.
Cells that cannot be parsed fall back to documented defaults.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runConvert(ctx)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(convertCmd)

	convertInputs.register(convertCmd)

	convertCmd.Flags().StringVar(&outDir, "out", "", "Output directory (overrides output_dir)")
	convertCmd.Flags().BoolVar(&zipOutput, "zip", false, "Bundle all documents into one zip archive")
	convertCmd.Flags().BoolVar(&nestAwards, "nest", false, "Nest award activities inside their parent activity")
	convertCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Convert without writing output files")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runConvert orchestrates one conversion run.
func runConvert(ctx context.Context) error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	mainConfig, ds, logger, err := setup(&convertInputs)
	if err != nil {
		return err
	}
	if outDir != "" {
		mainConfig.OutputDir = outDir
	}
	if zipOutput {
		mainConfig.ZipOutput = true
	}
	if nestAwards {
		mainConfig.NestAwards = true
	}

	// =========================================================================
	// STEP 2: READ INPUT TABLES
	// =========================================================================

	inputs, files, err := loadInputs(&convertInputs, ds)
	if err != nil {
		return err
	}
	openTime := time.Since(startTime)
	logger.Info("tables loaded", "files", len(files), "primary_rows", inputs.Primary.Len(), "elapsed", openTime)

	// =========================================================================
	// STEP 3: STRUCTURAL CHECK
	// =========================================================================

	if err := validation.CheckInputs(ds, inputs); err != nil {
		return fmt.Errorf("input tables do not match revision %s: %w", ds.Revision, err)
	}

	// =========================================================================
	// STEP 4: CONVERT
	// =========================================================================

	fm := utils.NewFileManager(mainConfig.OutputDir)
	fm.DryRun = dryRun
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	conv := converter.New(ds, inputs, converter.Options{
		NestAwards: mainConfig.NestAwards,
		NameFormat: mainConfig.OutputNameFormat,
	}, logger)

	stats, err := conv.Run(ctx, fm)
	stats.OpenDuration = openTime
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("conversion interrupted", "groups_written", len(stats.Groups))
		}
		return err
	}

	// =========================================================================
	// STEP 5: PACKAGE AND SUMMARIZE
	// =========================================================================

	var archive string
	if mainConfig.ZipOutput && len(stats.Groups) > 0 {
		archive, err = fm.Package(mainConfig.ZipNameFormat)
		if err != nil {
			return fmt.Errorf("failed to package output: %w", err)
		}
		logger.Info("output packaged", "archive", archive)
	}

	summary := buildSummary(fm, stats, ds.Revision, files, archive, startTime)

	fmt.Println()
	if err := utils.FormatSummary(os.Stdout, summary); err != nil {
		return err
	}

	if mainConfig.SummaryLog && !dryRun {
		path, err := utils.WriteSummaryLog(summary, mainConfig.OutputDir)
		if err != nil {
			return err
		}
		logger.Info("summary written", "path", path)
	}

	return nil
}

// buildSummary assembles the processing summary from run statistics.
func buildSummary(fm *utils.FileManager, stats converter.Stats, revision string, files []string, archive string, start time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		RunID:           fm.RunID.String(),
		Revision:        revision,
		StartTime:       start,
		EndTime:         time.Now(),
		InputFiles:      files,
		Archive:         archive,
		Activities:      stats.Totals.Activities,
		Awards:          stats.Totals.Awards,
		Transactions:    stats.Totals.Transactions,
		SuppressedZeros: stats.Totals.SuppressedZeros,
		SkippedOther:    stats.Totals.SkippedOther,
		OpenTime:        stats.OpenDuration,
		ConvertTime:     stats.ConvertDuration,
		WriteTime:       stats.WriteDuration,
		AvgPerActivity:  stats.AveragePerActivity(),
	}

	written := fm.Written()
	for i, g := range stats.Groups {
		output := g.Name
		if i < len(written) {
			output = written[i].Path
		}
		summary.TotalRows += g.Rows
		summary.Groups = append(summary.Groups, utils.GroupSummary{
			Group:        g.Key,
			OutputFile:   output,
			Rows:         g.Rows,
			Activities:   g.Activities,
			Awards:       g.Awards,
			Transactions: g.Transactions,
		})
	}
	return summary
}
