package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/iati-activity-converter/internal/config"
	"github.com/ginjaninja78/iati-activity-converter/internal/converter"
	"github.com/ginjaninja78/iati-activity-converter/internal/csvparser"
	"github.com/ginjaninja78/iati-activity-converter/internal/types"
	"github.com/ginjaninja78/iati-activity-converter/internal/xlsxparser"
	"github.com/ginjaninja78/iati-activity-converter/pkg/utils"
)

// =============================================================================
// INPUT FLAGS
// =============================================================================
// Shared by 'convert' and 'validate'.

type inputFlags struct {
	primary    string
	locations  string
	documents  string
	historical string
	results    string
	dataset    string
	revision   string
	sheet      string
	encoding   string
}

// register adds the input flags to a command.
func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.primary, "primary", "", "Primary award/transaction table (.csv or .xlsx)")
	cmd.Flags().StringVar(&f.locations, "locations", "", "Locations table")
	cmd.Flags().StringVar(&f.documents, "documents", "", "Document links table")
	cmd.Flags().StringVar(&f.historical, "historical", "", "Historical transactions table")
	cmd.Flags().StringVar(&f.results, "results", "", "Results table")
	cmd.Flags().StringVar(&f.dataset, "dataset", "", "Dataset definition YAML layered over the revision")
	cmd.Flags().StringVar(&f.revision, "revision", "", "Built-in dataset revision ("+strings.Join(config.Revisions(), ", ")+")")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Worksheet to read from .xlsx inputs (default: first sheet)")
	cmd.Flags().StringVar(&f.encoding, "encoding", "utf-8", "Encoding of .csv inputs (utf-8, windows-1252, iso-8859-1)")
	cmd.MarkFlagRequired("primary")
}

// =============================================================================
// SETUP
// =============================================================================

// setup loads the main configuration and dataset revision, applying flag
// overrides, and builds the logger.
func setup(f *inputFlags) (*config.MainConfig, *config.DatasetConfig, *slog.Logger, error) {
	mainConfig, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load main config: %w", err)
	}
	if f.revision != "" {
		mainConfig.Revision = f.revision
	}
	if f.dataset != "" {
		mainConfig.DatasetFile = f.dataset
	}

	logger := config.NewLogger(os.Stderr, mainConfig, verbose)

	ds, err := mainConfig.LoadDataset()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	logger.Debug("dataset loaded", "revision", ds.Revision, "org", ds.OrgCode)

	return mainConfig, ds, logger, nil
}

// loadInputs reads every supplied table. Cells are normalized on ingestion.
func loadInputs(f *inputFlags, ds *config.DatasetConfig) (converter.Inputs, []string, error) {
	var inputs converter.Inputs
	var files []string

	clean := converter.NewCellCleaner(ds)
	sources := []struct {
		name string
		path string
		dst  **types.Table
	}{
		{"primary", f.primary, &inputs.Primary},
		{"locations", f.locations, &inputs.Locations},
		{"documents", f.documents, &inputs.Documents},
		{"historical", f.historical, &inputs.Historical},
		{"results", f.results, &inputs.Results},
	}

	for _, src := range sources {
		if src.path == "" {
			continue
		}
		if !utils.FileExists(src.path) {
			return inputs, files, fmt.Errorf("%s table %s does not exist", src.name, src.path)
		}
		t, err := readTable(src.path, src.name, f, clean)
		if err != nil {
			return inputs, files, err
		}
		*src.dst = t
		files = append(files, src.path)
	}
	return inputs, files, nil
}

// readTable picks the parser by file extension.
func readTable(path, name string, f *inputFlags, clean types.CellCleaner) (*types.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		settings := xlsxparser.DefaultSettings()
		settings.Sheet = f.sheet
		return xlsxparser.ReadTable(path, name, settings, clean)
	case ".csv", ".txt":
		settings := csvparser.DefaultSettings()
		settings.Encoding = f.encoding
		return csvparser.ReadTable(path, name, settings, clean)
	default:
		return nil, fmt.Errorf("%s table %s: unsupported file type %q", name, path, filepath.Ext(path))
	}
}
