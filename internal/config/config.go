// =============================================================================
// IATI Activity Converter - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration.
// It handles both the main application configuration and the dataset
// revision that describes the source extract's columns and lookup tables.
//
// CONFIGURATION SOURCES (later wins):
//   1. Built-in defaults
//   2. Main Config (config.yaml)
//   3. Environment variables with the IATI_ prefix
//
// DATASET REVISIONS:
//   See dataset.go. A revision is either built in ("2016", "2017") or loaded
//   from a YAML file that overrides a built-in base.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides (IATI_OUTPUT_DIR, ...).
const EnvPrefix = "IATI"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file.
type MainConfig struct {
	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputDir is the directory where generated XML files are placed.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`

	// OutputNameFormat defines the file name of each group document.
	// Placeholders:
	//   {group}     - The group's geographic code
	//   {uuid}      - The run's UUID, shared by every document of a run
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {date}      - Current date (YYYYMMDD)
	// {group} is required.
	// Default: "iati-activities-{group}.xml"
	OutputNameFormat string `yaml:"output_name_format" envconfig:"OUTPUT_NAME_FORMAT"`

	// ZipOutput bundles all group documents of a run into one archive.
	ZipOutput bool `yaml:"zip_output" envconfig:"ZIP_OUTPUT"`

	// ZipNameFormat is the archive name. Same placeholders as above, minus {group}.
	// Default: "iati-activities-{date}.zip"
	ZipNameFormat string `yaml:"zip_name_format" envconfig:"ZIP_NAME_FORMAT"`

	// SummaryLog writes a processing summary next to the output files.
	SummaryLog bool `yaml:"summary_log" envconfig:"SUMMARY_LOG"`

	// NestAwards places award activities inside their parent activity element
	// instead of listing them as siblings after it.
	NestAwards bool `yaml:"nest_awards" envconfig:"NEST_AWARDS"`

	// =========================================================================
	// DATASET SETTINGS
	// =========================================================================

	// Revision names the built-in dataset revision to use.
	// Default: "2016"
	Revision string `yaml:"revision" envconfig:"REVISION"`

	// DatasetFile optionally points to a YAML dataset definition that is
	// layered over the built-in revision.
	DatasetFile string `yaml:"dataset_file" envconfig:"DATASET_FILE"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// LogFormat selects the slog handler: "text" or "json".
	// Default: "text"
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file and applies
// environment overrides.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file. A missing file is
//     not an error; defaults are used instead.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be parsed or the result is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unset variables leave the YAML values untouched.
	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "iati-activities-{group}.xml"
	}
	if config.ZipNameFormat == "" {
		config.ZipNameFormat = "iati-activities-{date}.zip"
	}
	if config.Revision == "" {
		config.Revision = DefaultRevision
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", config.LogLevel)
	}

	switch strings.ToLower(config.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", config.LogFormat)
	}

	if !strings.Contains(config.OutputNameFormat, "{group}") {
		return fmt.Errorf("output_name_format must contain {group}")
	}

	return nil
}

// LoadDataset resolves the dataset revision named by the main configuration.
// When DatasetFile is set, its contents are layered over the built-in revision.
func (c *MainConfig) LoadDataset() (*DatasetConfig, error) {
	if c.DatasetFile != "" {
		return LoadDatasetFile(c.DatasetFile, c.Revision)
	}
	return Dataset(c.Revision)
}
