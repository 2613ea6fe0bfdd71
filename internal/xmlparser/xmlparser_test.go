package xmlparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/vat-checker/internal/types"
)

const leadingBlankRowsWorkbook = `<?xml version="1.0"?>
<Workbook xmlns="urn:schemas-microsoft-com:office:spreadsheet"
 xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet">
 <Worksheet ss:Name="Ledger">
  <Table>
   <Row><Cell><Data ss:Type="String"></Data></Cell></Row>
   <Row/>
   <Row>
    <Cell><Data ss:Type="String">Invoice</Data></Cell>
    <Cell><Data ss:Type="String">Net</Data></Cell>
    <Cell ss:Index="4"><Data ss:Type="String">FF3</Data></Cell>
   </Row>
   <Row>
    <Cell><Data ss:Type="String">INV-001</Data></Cell>
    <Cell><Data ss:Type="Number">1000</Data></Cell>
    <Cell ss:Index="4"><Data ss:Type="String">S</Data></Cell>
   </Row>
  </Table>
 </Worksheet>
 <Worksheet ss:Name="Ignored">
  <Table><Row><Cell><Data>other</Data></Cell></Row></Table>
 </Worksheet>
</Workbook>`

func TestIsSpreadsheetML(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"workbook schema", `<Workbook xmlns="urn:schemas-microsoft-com:office:spreadsheet">`, true},
		{"prefixed namespace", `<root xmlns:ss='urn:schemas-microsoft-com:office:spreadsheet'/>`, true},
		{"structure only", `<worksheet><table><row/></table></worksheet>`, true},
		{"missing row", `<Worksheet><Table/></Worksheet>`, false},
		{"generic ledger", `<Ledger><Line invoice="1"/></Ledger>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSpreadsheetML(tt.text))
		})
	}
}

func TestReadSpreadsheetML(t *testing.T) {
	grid, err := ReadSpreadsheetML([]byte(leadingBlankRowsWorkbook))
	require.NoError(t, err)

	require.Len(t, grid, 4)
	assert.Equal(t, []string{""}, grid[0])
	assert.Empty(t, grid[1])
	assert.Equal(t, []string{"Invoice", "Net", "", "FF3"}, grid[2])
	assert.Equal(t, []string{"INV-001", "1000", "", "S"}, grid[3])
}

func TestReadSpreadsheetMLRowIndex(t *testing.T) {
	doc := `<Workbook><Worksheet><Table>
	<Row ss:Index="3" xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet"><Cell><Data>a</Data></Cell></Row>
	<Row><Cell/><Cell><Data>b<B>old</B></Data></Cell></Row>
	</Table></Worksheet></Workbook>`

	grid, err := ReadSpreadsheetML([]byte(doc))
	require.NoError(t, err)

	require.Len(t, grid, 4)
	assert.Empty(t, grid[0])
	assert.Empty(t, grid[1])
	assert.Equal(t, []string{"a"}, grid[2])
	assert.Equal(t, []string{"", "bold"}, grid[3])
}

func TestReadSpreadsheetMLIgnoresCellComments(t *testing.T) {
	doc := `<Workbook xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet"><Worksheet><Table>
	<Row><Cell><Data ss:Type="String">Invoice</Data></Cell><Cell><Data ss:Type="String">VAT</Data></Cell></Row>
	<Row><Cell><Data ss:Type="String">INV-1</Data></Cell><Cell><Data ss:Type="Number">200</Data><Comment ss:Author="ap"><ss:Data>checked 12</ss:Data></Comment></Cell></Row>
	<Row><Cell><Comment><ss:Data>note first</ss:Data></Comment><Data>INV-2</Data></Cell></Row>
	</Table></Worksheet></Workbook>`

	grid, err := ReadSpreadsheetML([]byte(doc))
	require.NoError(t, err)

	require.Len(t, grid, 3)
	assert.Equal(t, []string{"INV-1", "200"}, grid[1])
	assert.Equal(t, []string{"INV-2"}, grid[2])
}

func TestReadRecordsPicksLedgerArray(t *testing.T) {
	doc := `<Export>
  <Users>
    <User id="1"><Name>a</Name></User>
    <User id="2"><Name>b</Name></User>
  </Users>
  <Lines>
    <Line ff3="S">
      <InvoiceNo>INV-1</InvoiceNo>
      <Account>5000</Account>
      <Amount cur="GBP">100.00</Amount>
      <Tax><Value>20.00</Value></Tax>
    </Line>
    <Line ff3="Z">
      <InvoiceNo>INV-2</InvoiceNo>
      <Account>5000</Account>
      <Amount>50.00</Amount>
    </Line>
  </Lines>
</Export>`

	records, err := ReadRecords([]byte(doc), 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, []string{"ff3", "InvoiceNo", "Account", "Amount", "Amount.cur", "Tax.Value"}, first.Keys())

	value, _ := first.Get("Tax.Value")
	assert.Equal(t, "20.00", value)

	invoice, _ := records[1].Get("InvoiceNo")
	assert.Equal(t, "INV-2", invoice)
}

func TestReadRecordsTieGoesToFirstGroup(t *testing.T) {
	doc := `<root>
  <a><x>1</x></a><a><x>2</x></a>
  <b><y>1</y></b><b><y>2</y></b><b><y>3</y></b>
</root>`

	records, err := ReadRecords([]byte(doc), 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"x"}, records[0].Keys())
}

func TestReadRecordsSingleElementFallback(t *testing.T) {
	doc := `<Invoice number="INV-9"><VAT>2.00</VAT><Net>10.00</Net></Invoice>`

	records, err := ReadRecords([]byte(doc), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	vat, _ := records[0].Get("VAT")
	assert.Equal(t, "2.00", vat)
}

func TestReadRecordsMalformed(t *testing.T) {
	records, err := ReadRecords([]byte(`<Ledger><Line>`), 0)
	assert.Error(t, err)
	assert.Empty(t, records)
}

func TestScore(t *testing.T) {
	records := []types.Record{
		{{Name: "GL Code", Value: "1"}, {Name: "Doc", Value: "2"}, {Name: "VAT", Value: "3"}},
		{{Name: "Document", Value: "2"}},
		{{Name: "Other", Value: "x"}},
	}

	assert.Equal(t, 4, Score(records, 0))
	assert.Equal(t, 3, Score(records, 1))
}
