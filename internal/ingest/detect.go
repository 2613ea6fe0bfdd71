package ingest

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/vat-checker/internal/types"
	"github.com/ginjaninja78/vat-checker/internal/xlsxparser"
	"github.com/ginjaninja78/vat-checker/internal/xmlparser"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// DetectFormat decides how a file is decoded.
//
// DECISION ORDER:
//  1. .xlsx extension or ZIP signature        -> xlsx
//  2. .xml extension or content starts with < -> spreadsheetml or xml
//  3. .csv extension or newline plus comma    -> csv
//  4. anything else                           -> unknown
func DetectFormat(content []byte, filename string) types.FormatKind {
	ext := strings.ToLower(filepath.Ext(filename))

	if ext == ".xlsx" || xlsxparser.IsWorkbook(content) {
		return types.FormatXLSX
	}

	trimmed := bytes.TrimLeft(bytes.TrimPrefix(bytes.TrimLeft(content, " \t\r\n"), utf8BOM), " \t\r\n")
	if ext == ".xml" || bytes.HasPrefix(trimmed, []byte("<")) {
		if xmlparser.IsSpreadsheetML(string(content)) {
			return types.FormatSpreadsheetML
		}
		return types.FormatXML
	}

	if ext == ".csv" || (bytes.Contains(content, []byte("\n")) && bytes.Contains(content, []byte(","))) {
		return types.FormatCSV
	}

	return types.FormatUnknown
}
