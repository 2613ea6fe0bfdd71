// =============================================================================
// VAT Checker - CSV Parser Module
// =============================================================================
//
// This module turns a comma-separated ledger export into raw records. Ledger
// exports from the accounting package are loose: quoted fields are common,
// trailing columns are often omitted, and the header row is always the first
// line.
//
// PARSING RULES:
//   - Lines are split on "\n" or "\r\n"; empty lines are skipped
//   - The first line is the header row
//   - A double quote toggles quoted mode and is dropped from the value
//   - A comma inside quotes is part of the value
//   - Fields are trimmed and mapped to headers by position
//   - Missing trailing fields are absent from the record (not "")
//
// =============================================================================

package csvparser

import (
	"strings"

	"github.com/ginjaninja78/vat-checker/internal/types"
)

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents a parsed CSV ledger.
type CSVData struct {
	// Headers contains the trimmed column headers from the first line.
	Headers []string

	// Records contains one raw record per data line.
	Records []types.Record

	// RowCount is the number of data lines (excluding the header).
	RowCount int
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse splits CSV content into headers and records.
//
// PARAMETERS:
//   - content: The raw file content.
//
// RETURNS:
//   - A pointer to the CSVData struct. Content without any line yields an
//     empty CSVData, never an error.
func Parse(content []byte) *CSVData {
	text := strings.TrimPrefix(string(content), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := make([]string, 0, strings.Count(text, "\n")+1)
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	data := &CSVData{Records: []types.Record{}}
	if len(lines) == 0 {
		return data
	}

	data.Headers = SplitLine(lines[0])

	for _, line := range lines[1:] {
		parts := SplitLine(line)
		record := make(types.Record, 0, len(data.Headers))
		for i, header := range data.Headers {
			if i >= len(parts) {
				break
			}
			record = record.Set(header, parts[i])
		}
		data.Records = append(data.Records, record)
	}

	data.RowCount = len(data.Records)
	return data
}

// SplitLine splits a single CSV line on commas outside double quotes.
//
// Quotes toggle the quoted state and are not kept. Doubled quotes are not an
// escape sequence: `"a""b"` yields `ab`. Every field is trimmed.
func SplitLine(line string) []string {
	var (
		out      []string
		current  strings.Builder
		inQuotes bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	out = append(out, strings.TrimSpace(current.String()))

	return out
}
