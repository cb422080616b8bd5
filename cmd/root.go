// =============================================================================
// IATI Activity Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands (like 'convert', 'validate') are
// attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (iati-converter)
//   ├── convertCmd (iati-converter convert)
//   ├── validateCmd (iati-converter validate)
//   └── versionCmd (iati-converter version)
//
// CONFIGURATION:
//   The root command owns the global flags (--config, --verbose). Each
//   subcommand loads the configuration and builds its logger from them.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables verbose logging when set to true.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
// This is the entry point for the CLI application.
var rootCmd = &cobra.Command{
	Use:   "iati-converter",
	Short: "IATI Activity Converter - Turn award extracts into IATI activity XML",
	Long: `IATI Activity Converter transforms flat award/transaction extracts into
IATI activity documents, one per recipient country or region.

Key Features:
  - Composite activity keys with geographic fallbacks
  - Joins locations, documents, historical transactions and results
  - Dataset revisions describe each extract's column names
  - One commitment and one disbursement placeholder per award at most
  - Optional zip packaging and processing summary

Example Usage:
  iati-converter convert --primary awards.xlsx --historical history.csv
  iati-converter convert --primary awards.csv --revision 2017 --zip
  iati-converter validate --primary awards.xlsx --report ./logs`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init sets up the global flags.
func init() {
	// ==========================================================================
	// PERSISTENT FLAGS
	// ==========================================================================
	// Persistent flags are available to this command and all subcommands.

	// --config flag: the main configuration file. A missing file means
	// defaults plus IATI_* environment overrides.
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file (default is config.yaml)",
	)

	// --verbose flag: Enables verbose/debug logging.
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}
