// =============================================================================
// IATI Activity Converter - File Manager Utility
// =============================================================================
//
// This module places converted documents on disk. It provides:
//   - Output file naming with placeholders
//   - Rendering and writing each group document (it is the converter's sink)
//   - Zip packaging of a run's documents
//   - Error and summary log generation
//
// PACKAGING STRATEGY:
//   - Each group document is written to the output directory as it arrives
//   - With packaging enabled, all documents of the run are bundled into one
//     archive at the end and the loose files are removed
//   - Dry runs render every document but write nothing
//
// =============================================================================

package utils

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/iati-activity-converter/internal/types"
	"github.com/ginjaninja78/iati-activity-converter/internal/xmlwriter"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the converter.
type FileManager struct {
	// OutputDir is the directory where output files are placed.
	OutputDir string

	// DryRun renders documents without writing them.
	DryRun bool

	// Now is the clock used for name placeholders. Default: time.Now
	Now func() time.Time

	// RunID identifies the run in names ({uuid}) and in the summary log.
	RunID uuid.UUID

	written []WrittenFile
}

// WrittenFile records one emitted document.
type WrittenFile struct {
	Group string
	Path  string
	Bytes int
}

// NewFileManager creates a new FileManager writing to outputDir.
func NewFileManager(outputDir string) *FileManager {
	return &FileManager{
		OutputDir: outputDir,
		Now:       time.Now,
		RunID:     uuid.New(),
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output directory if it doesn't exist.
func (fm *FileManager) EnsureDirectories() error {
	if fm.DryRun {
		return nil
	}
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}
	return nil
}

// =============================================================================
// DOCUMENT SINK
// =============================================================================

// Write renders a document and writes it under its resolved name.
func (fm *FileManager) Write(ctx context.Context, doc *types.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := xmlwriter.Render(doc.Root)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", doc.Group, err)
	}

	name := GenerateOutputFileName(doc.Name, fm.now(), map[string]string{
		"group": doc.Group,
		"uuid":  fm.RunID.String(),
	}, ".xml")
	path := filepath.Join(fm.OutputDir, name)
	for _, w := range fm.written {
		if w.Path == path {
			return fmt.Errorf("documents %s and %s both resolve to %s", w.Group, doc.Group, path)
		}
	}

	if !fm.DryRun {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
	}

	fm.written = append(fm.written, WrittenFile{Group: doc.Group, Path: path, Bytes: len(data)})
	return nil
}

// Written returns the documents emitted so far, in order.
func (fm *FileManager) Written() []WrittenFile {
	return append([]WrittenFile(nil), fm.written...)
}

func (fm *FileManager) now() time.Time {
	if fm.Now == nil {
		return time.Now()
	}
	return fm.Now()
}

// =============================================================================
// ZIP PACKAGING
// =============================================================================

// Package bundles every written document into one zip archive in the output
// directory and removes the loose files.
//
// PARAMETERS:
//   - format: The archive name format. Same placeholders as output names.
//
// RETURNS:
//   - The path to the archive.
//   - An error if the archive cannot be written.
func (fm *FileManager) Package(format string) (string, error) {
	if len(fm.written) == 0 {
		return "", fmt.Errorf("no documents to package")
	}

	name := GenerateOutputFileName(format, fm.now(), map[string]string{"uuid": fm.RunID.String()}, ".zip")
	archivePath := filepath.Join(fm.OutputDir, name)
	if fm.DryRun {
		return archivePath, nil
	}

	file, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(file)
	for _, wf := range fm.written {
		if err := addToZip(zw, wf.Path, fm.now()); err != nil {
			zw.Close()
			file.Close()
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	for _, wf := range fm.written {
		if err := os.Remove(wf.Path); err != nil {
			return archivePath, fmt.Errorf("failed to remove packaged file: %w", err)
		}
	}
	return archivePath, nil
}

func addToZip(zw *zip.Writer, path string, modified time.Time) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s for packaging: %w", path, err)
	}
	defer src.Close()

	header := &zip.FileHeader{
		Name:     filepath.Base(path),
		Method:   zip.Deflate,
		Modified: modified,
	}
	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", header.Name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", header.Name, err)
	}
	return nil
}

// =============================================================================
// FILE NAMING
// =============================================================================

// GenerateOutputFileName resolves a name format.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {timestamp} - Timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Date (YYYYMMDD)
//     {time}      - Time (HHMMSS)
//     {uuid}      - A random UUID unless params supplies one
//     any key of params, e.g. {group}
//   - now: The time used for date placeholders.
//   - params: Additional placeholder values.
//   - ext: The extension to enforce (".xml", ".zip").
//
// EXAMPLE:
//
//	format: "iati-activities-{group}.xml"
//	params: {"group": "KE"}
//	output: "iati-activities-KE.xml"
func GenerateOutputFileName(format string, now time.Time, params map[string]string, ext string) string {
	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext != "" && !strings.HasSuffix(strings.ToLower(result), ext) {
		result += ext
	}
	return result
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single data quality finding.
type ErrorLogEntry struct {
	Severity   string
	Table      string
	RowNumber  int
	FieldName  string
	FieldValue string
	Message    string
}

// WriteErrorLog writes entries to a log file.
//
// PARAMETERS:
//   - entries: The entries to write.
//   - outputDir: The directory to write the log file.
//   - now: The time stamped on the file name and header.
//
// RETURNS:
//   - The path to the error log file, or "" when there is nothing to write.
//   - An error if writing fails.
func WriteErrorLog(entries []ErrorLogEntry, outputDir string, now time.Time) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	logPath := filepath.Join(outputDir, fmt.Sprintf("error_log_%s.txt", now.Format("20060102_150405")))

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "IATI Activity Converter - Error Log\n"+
		"Generated: %s\n"+
		"Total Entries: %d\n"+
		"================================================================================\n\n",
		now.Format("2006-01-02 15:04:05"), len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Entry #%d\n"+
			"  Severity:       %s\n"+
			"  Table:          %s\n"+
			"  Message:        %s\n",
			i+1, entry.Severity, entry.Table, entry.Message)
		if entry.RowNumber > 0 {
			fmt.Fprintf(writer, "  Row Number:     %d\n", entry.RowNumber)
		}
		if entry.FieldName != "" {
			fmt.Fprintf(writer, "  Field:          %s\n", entry.FieldName)
		}
		if entry.FieldValue != "" {
			fmt.Fprintf(writer, "  Value:          %s\n", entry.FieldValue)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}
	return logPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a conversion run.
type ProcessingSummary struct {
	RunID           string
	Revision        string
	StartTime       time.Time
	EndTime         time.Time
	InputFiles      []string
	Archive         string
	Groups          []GroupSummary
	TotalRows       int
	Activities      int
	Awards          int
	Transactions    int
	SuppressedZeros int
	SkippedOther    int
	OpenTime        time.Duration
	ConvertTime     time.Duration
	WriteTime       time.Duration
	AvgPerActivity  time.Duration
}

// GroupSummary describes one written document.
type GroupSummary struct {
	Group        string
	OutputFile   string
	Rows         int
	Activities   int
	Awards       int
	Transactions int
}

// WriteSummaryLog writes a processing summary to a log file.
//
// PARAMETERS:
//   - summary: The processing summary.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryPath := filepath.Join(outputDir,
		fmt.Sprintf("processing_summary_%s.txt", summary.StartTime.Format("20060102_150405")))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	if err := FormatSummary(file, summary); err != nil {
		return "", err
	}
	return summaryPath, nil
}

// FormatSummary writes the human-readable summary to w.
func FormatSummary(w io.Writer, summary ProcessingSummary) error {
	writer := bufio.NewWriter(w)

	fmt.Fprintf(writer, "IATI Activity Converter - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Revision:       %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Rows:         %d\n"+
		"  Groups:             %d\n"+
		"  Activities:         %d\n"+
		"  Awards:             %d\n"+
		"  Transactions:       %d\n"+
		"  Suppressed Zeros:   %d\n"+
		"  Skipped (Other):    %d\n\n"+
		"Timing:\n"+
		"  Open:               %s\n"+
		"  Convert:            %s\n"+
		"  Write:              %s\n"+
		"  Avg per Activity:   %s\n\n",
		summary.RunID,
		summary.Revision,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.TotalRows,
		len(summary.Groups),
		summary.Activities,
		summary.Awards,
		summary.Transactions,
		summary.SuppressedZeros,
		summary.SkippedOther,
		summary.OpenTime, summary.ConvertTime, summary.WriteTime, summary.AvgPerActivity)

	if len(summary.InputFiles) > 0 {
		writer.WriteString("Input Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, f := range summary.InputFiles {
			fmt.Fprintf(writer, "  %s\n", f)
		}
		writer.WriteString("\n")
	}

	if len(summary.Groups) > 0 {
		writer.WriteString("Documents:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, g := range summary.Groups {
			fmt.Fprintf(writer, "  Group:        %s\n", g.Group)
			fmt.Fprintf(writer, "  Output:       %s\n", g.OutputFile)
			fmt.Fprintf(writer, "  Rows:         %d\n", g.Rows)
			fmt.Fprintf(writer, "  Activities:   %d\n", g.Activities)
			fmt.Fprintf(writer, "  Awards:       %d\n", g.Awards)
			fmt.Fprintf(writer, "  Transactions: %d\n\n", g.Transactions)
		}
	}

	if summary.Archive != "" {
		fmt.Fprintf(writer, "Archive: %s\n\n", summary.Archive)
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush summary: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
