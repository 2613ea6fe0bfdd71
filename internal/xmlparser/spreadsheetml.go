// =============================================================================
// VAT Checker - SpreadsheetML Reader
// =============================================================================
//
// SpreadsheetML ("XML Spreadsheet 2003") is the legacy spreadsheet-in-XML
// encoding many accounting packages still export. The markup is explicit:
//
//   <Workbook xmlns="urn:schemas-microsoft-com:office:spreadsheet"
//             xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet">
//     <Worksheet ss:Name="Sheet1">
//       <Table>
//         <Row>
//           <Cell><Data ss:Type="String">Invoice</Data></Cell>
//           <Cell ss:Index="3"><Data ss:Type="String">Net</Data></Cell>
//         </Row>
//       </Table>
//     </Worksheet>
//   </Workbook>
//
// Only the first worksheet's first table is read. Element names are matched
// case-insensitively and regardless of namespace prefix.
//
// =============================================================================

package xmlparser

import (
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// =============================================================================
// DETECTION
// =============================================================================

var (
	workbookSchemaPattern = regexp.MustCompile(`(?i)<Workbook\b[^>]*schemas-microsoft-com:office:spreadsheet`)
	namespacePattern      = regexp.MustCompile(`(?i)xmlns(?::\w+)?=["']urn:schemas-microsoft-com:office:spreadsheet["']`)
	worksheetPattern      = regexp.MustCompile(`(?i)<Worksheet\b`)
	tablePattern          = regexp.MustCompile(`(?i)<Table\b`)
	rowPattern            = regexp.MustCompile(`(?i)<Row\b`)
)

// IsSpreadsheetML reports whether XML text uses the SpreadsheetML structure.
func IsSpreadsheetML(text string) bool {
	if workbookSchemaPattern.MatchString(text) || namespacePattern.MatchString(text) {
		return true
	}
	return worksheetPattern.MatchString(text) && tablePattern.MatchString(text) && rowPattern.MatchString(text)
}

// =============================================================================
// GRID EXTRACTION
// =============================================================================

// ReadSpreadsheetML returns the first worksheet's first table as a grid of
// positional cell values.
//
// Explicit 1-based ss:Index attributes are honoured: skipped columns are filled
// with "" and skipped rows with empty rows. A cell without a Data element reads
// as "". Rows decoded before a syntax error are returned with the error.
func ReadSpreadsheetML(content []byte) ([][]string, error) {
	decoder := newDecoder(content)

	var (
		worksheetSeen bool
		inWorksheet   bool
		tableSeen     bool
		inTable       bool
		inRow         bool
		inCell        bool
		dataDepth     int
		nestedDepth   int
		cellText      strings.Builder
		row           []string
		rows          [][]string
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			switch {
			case dataDepth > 0:
				// Rich text (<B>, <Font>) nested inside <Data>.
				dataDepth++
			case inCell && nestedDepth == 0 && name == "data":
				dataDepth = 1
			case inCell:
				// <Comment>, <NamedCell> and their own <Data> are not cell text.
				nestedDepth++
			case name == "worksheet" && !worksheetSeen:
				worksheetSeen = true
				inWorksheet = true
			case name == "table" && inWorksheet && !tableSeen:
				tableSeen = true
				inTable = true
			case name == "row" && inTable:
				if index := indexAttr(t); index > 0 {
					for len(rows) < index-1 {
						rows = append(rows, []string{})
					}
				}
				row = []string{}
				inRow = true
			case name == "cell" && inRow:
				if index := indexAttr(t); index > 0 {
					for len(row) < index-1 {
						row = append(row, "")
					}
				}
				cellText.Reset()
				inCell = true
			}

		case xml.CharData:
			if dataDepth > 0 {
				cellText.Write(t)
			}

		case xml.EndElement:
			name := strings.ToLower(t.Name.Local)
			switch {
			case dataDepth > 0:
				dataDepth--
			case nestedDepth > 0:
				nestedDepth--
			case name == "cell" && inCell:
				row = append(row, cellText.String())
				inCell = false
			case name == "row" && inRow:
				rows = append(rows, row)
				inRow = false
			case name == "table" && inTable:
				return rows, nil
			case name == "worksheet" && inWorksheet:
				inWorksheet = false
			}
		}
	}

	return rows, nil
}

// indexAttr returns the 1-based ss:Index attribute of an element, or 0.
func indexAttr(element xml.StartElement) int {
	for _, attr := range element.Attr {
		if !strings.EqualFold(attr.Name.Local, "Index") {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(attr.Value))
		if err != nil || index <= 0 {
			return 0
		}
		return index
	}
	return 0
}

// newDecoder returns a lenient decoder that understands declared encodings
// such as windows-1252.
func newDecoder(content []byte) *xml.Decoder {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	decoder.Strict = false
	decoder.CharsetReader = charset.NewReaderLabel
	return decoder
}
