// =============================================================================
// VAT Checker - XLSX Ledger Reader
// =============================================================================
//
// This module reads ledger exports saved as Office Open XML workbooks. Only
// the first sheet is read; it is returned as a positional grid so the ingest
// stage can apply the same header-row rule it uses for SpreadsheetML.
//
// EXPECTED LAYOUT:
//
//   |   | Column A | Column B | Column C  | Column D |
//   |---|----------|----------|-----------|----------|
//   | 1 |          |          |           |          |   <- leading blanks allowed
//   | 2 | Invoice  | Supplier | Net       | FF3      |   <- header row
//   | 3 | INV-001  | Acme Ltd | 1,000.00  | S        |
//
// Cell values are read as formatted by the workbook (excelize GetRows), so a
// currency-formatted cell arrives as "£1,000.00" and is coerced later by the
// normalizer.
//
// =============================================================================

package xlsxparser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ZipMagic is the local file header signature every XLSX file starts with.
var ZipMagic = []byte("PK\x03\x04")

// IsWorkbook reports whether content looks like a zipped workbook.
func IsWorkbook(content []byte) bool {
	return bytes.HasPrefix(content, ZipMagic)
}

// ReadGrid returns the rows of the first sheet of an XLSX workbook.
//
// PARAMETERS:
//   - content: The raw workbook bytes.
//
// RETURNS:
//   - One string slice per row; trailing empty cells are not included.
//   - An error if the workbook cannot be opened or has no sheets.
func ReadGrid(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from %q: %w", sheetName, err)
	}

	return rows, nil
}

// SheetNames lists the sheets of a workbook in order.
func SheetNames(content []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

// IsRowEmpty checks if a row contains only blank cells.
func IsRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
