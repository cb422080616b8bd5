// =============================================================================
// IATI Activity Converter - Main Entry Point
// =============================================================================
//
// This is the main entry point for the IATI Activity Converter CLI. It
// delegates command execution to the cmd package.
//
// USAGE:
//   iati-converter convert    - Convert award tables to IATI activity XML
//   iati-converter validate   - Check input tables without converting
//   iati-converter version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Core conversion logic (keys, joins, grouping, assembly)
//   - pkg/       : Shared file utilities
//   - configs/   : Example main configuration and dataset definitions
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/iati-activity-converter/cmd"
)

func main() {
	cmd.Execute()
}
