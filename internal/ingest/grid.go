package ingest

import (
	"strings"

	"github.com/ginjaninja78/vat-checker/internal/types"
	"github.com/ginjaninja78/vat-checker/internal/xlsxparser"
)

// gridToRecords turns a positional cell grid into keyed records.
//
// The first row with any non-blank cell is the header row. Header names are
// trimmed and blank header columns are dropped. Every later row that is not
// wholly blank becomes a record; cells missing from a short row read as "".
func gridToRecords(grid [][]string) ([]string, []types.Record) {
	headerIndex := -1
	for i, row := range grid {
		if !xlsxparser.IsRowEmpty(row) {
			headerIndex = i
			break
		}
	}
	if headerIndex < 0 {
		return []string{}, []types.Record{}
	}

	type column struct {
		index int
		name  string
	}
	var (
		columns []column
		headers []string
	)
	for i, cell := range grid[headerIndex] {
		name := strings.TrimSpace(cell)
		if name == "" {
			continue
		}
		columns = append(columns, column{index: i, name: name})
		headers = append(headers, name)
	}

	records := []types.Record{}
	for _, row := range grid[headerIndex+1:] {
		if xlsxparser.IsRowEmpty(row) {
			continue
		}
		record := make(types.Record, 0, len(columns))
		for _, col := range columns {
			value := ""
			if col.index < len(row) {
				value = row[col.index]
			}
			record = record.Set(col.name, value)
		}
		records = append(records, record)
	}

	return headers, records
}
