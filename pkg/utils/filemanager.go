// =============================================================================
// VAT Checker - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the CLI, including:
//   - Ledger discovery in the input directory
//   - Archival of processed ledgers
//   - Report naming and writing
//   - The per-run summary log
//
// ARCHIVAL STRATEGY:
//   - Ledgers are moved to input_archive only when archiving is requested
//     and the run succeeded
//   - Reports and run logs are written to the output directory
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LedgerExtensions lists the file extensions picked up by discovery.
var LedgerExtensions = []string{".csv", ".txt", ".xml", ".xlsx"}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the CLI.
type FileManager struct {
	// InputDir is the directory where ledger files are placed.
	InputDir string

	// OutputDir is the directory where reports and logs are written.
	OutputDir string

	// InputArchiveDir is the directory for archived ledgers.
	InputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2025/04/01/costs.csv
	UseTimestampSubdirs bool
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:        inputDir,
		OutputDir:       outputDir,
		InputArchiveDir: inputArchiveDir,
	}
}

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.InputArchiveDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverLedgerFiles lists the ledger files directly inside the input
// directory, sorted by name. Hidden files are skipped.
//
// RETURNS:
//   - A slice of file paths.
//   - An error if the directory cannot be read.
func (fm *FileManager) DiscoverLedgerFiles() ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if isLedgerFile(name) {
			files = append(files, filepath.Join(fm.InputDir, name))
		}
	}

	sort.Strings(files)
	return files, nil
}

func isLedgerFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range LedgerExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves a ledger file to the archive directory.
//
// PARAMETERS:
//   - filePath: The path to the file to archive.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	archivePath := fm.getArchivePath(fm.InputArchiveDir, filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// If rename fails (e.g., cross-device), try copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// getArchivePath constructs the archive path for a file.
func (fm *FileManager) getArchivePath(archiveDir, filePath string) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		now := time.Now()
		return filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName,
		)
	}

	return filepath.Join(archiveDir, fileName)
}

// WriteOutputFile writes data to a file in the output directory.
func (fm *FileManager) WriteOutputFile(name string, data []byte) (string, error) {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(fm.OutputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName expands a file name format.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID, unless params supplies one
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYY-MM-DD)
//     {time}      - Current time (HHMMSS)
//     Any key of params, e.g. {name} or {period}.
//   - params: A map of placeholder values.
//
// RETURNS:
//   - The generated file name. No extension is added.
//
// EXAMPLE:
//
//	format: "{name}_{timestamp}"
//	params: {"name": "VAT_Return_Q1_2025"}
//	output: "VAT_Return_Q1_2025_20250401_090000"
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("2006-01-02"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	return result
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary contains summary information about one reconciliation run.
type RunSummary struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time

	Company string
	Period  string

	CostFile  string
	VATFile   string
	Heuristic string

	Invoices      int
	Matched       int
	MissingInVAT  int
	MissingInCost int
	Mismatched    int
	Variance      string

	Summary  string
	Reports  []string
	Findings []string
	Issues   []string
}

// WriteSummaryLog writes a run summary to a log file in outputDir.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary RunSummary, outputDir string) (string, error) {
	timestamp := summary.StartTime.Format("20060102_150405")
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("run_summary_%s.txt", timestamp))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	rule := strings.Repeat("=", 80) + "\n"
	thin := strings.Repeat("-", 80) + "\n"

	fmt.Fprintf(writer, "VAT Checker - Run Summary\n%s\n", rule)
	fmt.Fprintf(writer, "Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Company:        %s\n"+
		"  Period:         %s\n\n",
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.Company,
		summary.Period)

	fmt.Fprintf(writer, "Ledgers:\n"+
		"  Cost ledger:    %s\n"+
		"  VAT ledger:     %s\n"+
		"  Classified by:  %s\n\n",
		summary.CostFile, summary.VATFile, summary.Heuristic)

	fmt.Fprintf(writer, "Statistics:\n"+
		"  Invoices:         %d\n"+
		"  Matched:          %d\n"+
		"  Missing claim:    %d\n"+
		"  Missing cost:     %d\n"+
		"  Mismatched:       %d\n"+
		"  Variance:         %s\n\n",
		summary.Invoices, summary.Matched, summary.MissingInVAT,
		summary.MissingInCost, summary.Mismatched, summary.Variance)

	if summary.Summary != "" {
		fmt.Fprintf(writer, "Summary:\n  %s\n\n", summary.Summary)
	}

	writeSection(writer, "Reports", thin, summary.Reports)
	writeSection(writer, "Validation Findings", thin, summary.Findings)
	writeSection(writer, "Issues", thin, summary.Issues)

	writer.WriteString(rule + "End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

func writeSection(writer *bufio.Writer, title, rule string, lines []string) {
	if len(lines) == 0 {
		return
	}
	writer.WriteString(title + ":\n" + rule)
	for _, line := range lines {
		writer.WriteString("  " + line + "\n")
	}
	writer.WriteString("\n")
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
