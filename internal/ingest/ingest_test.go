package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/vat-checker/internal/types"
)

const vatLedgerCSV = "Invoice,Account,VAT\n" +
	"INV-001,7501-00,200.00\n" +
	"INV-002,7501-00,\"1,000.00\"\n" +
	",7501-00,5.00\n" +
	"INV-004,4000,1.00\n"

const spreadsheetML = `<?xml version="1.0"?>
<Workbook xmlns="urn:schemas-microsoft-com:office:spreadsheet"
 xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet">
 <Worksheet ss:Name="Sheet1">
  <Table>
   <Row/>
   <Row><Cell><Data ss:Type="String">  </Data></Cell></Row>
   <Row>
    <Cell><Data ss:Type="String"> Document Number </Data></Cell>
    <Cell><Data ss:Type="String">Distribution Description</Data></Cell>
    <Cell ss:Index="4"><Data ss:Type="String">Amount</Data></Cell>
   </Row>
   <Row>
    <Cell><Data ss:Type="String">INV-9</Data></Cell>
    <Cell><Data ss:Type="String">VAT ON 100.00</Data></Cell>
    <Cell ss:Index="4"><Data ss:Type="Number">20</Data></Cell>
   </Row>
   <Row><Cell><Data ss:Type="String"></Data></Cell></Row>
   <Row>
    <Cell><Data ss:Type="String">INV-10</Data></Cell>
   </Row>
  </Table>
 </Worksheet>
</Workbook>`

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		filename string
		want     types.FormatKind
	}{
		{"csv extension", "a", "ledger.CSV", types.FormatCSV},
		{"csv by content", "a,b\n1,2", "ledger.txt", types.FormatCSV},
		{"xml extension wins over commas", "a,b\n1,2", "ledger.xml", types.FormatXML},
		{"xml by content", "\ufeff  <Ledger><Line a=\"1\"/></Ledger>", "export", types.FormatXML},
		{"spreadsheetml", spreadsheetML, "export.xml", types.FormatSpreadsheetML},
		{"xlsx extension", "junk", "book.xlsx", types.FormatXLSX},
		{"zip magic", "PK\x03\x04rest", "upload", types.FormatXLSX},
		{"no comma", "just text\nmore", "notes", types.FormatUnknown},
		{"single line", "a,b", "notes", types.FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat([]byte(tt.content), tt.filename))
		})
	}
}

func TestParseCSV(t *testing.T) {
	file := Parse([]byte(vatLedgerCSV), "vat.csv", Options{})

	assert.Equal(t, "vat.csv", file.Name)
	assert.Equal(t, types.FormatCSV, file.Meta.Kind)
	assert.Equal(t, []string{"Invoice", "Account", "VAT"}, file.Meta.Headers)
	assert.Equal(t, 4, file.Meta.Count)
	assert.InDelta(t, 0.75, file.Meta.InvoicePresentRate, 1e-9)
	assert.InDelta(t, 0.75, file.Meta.VATAccountRatio, 1e-9)

	sample, _ := file.Meta.SampleRaw.Get("Invoice")
	assert.Equal(t, "INV-001", sample)

	require.Len(t, file.Rows, 4)
	assert.Equal(t, "1000", file.Rows[1].VAT.Decimal.String())
}

func TestParseSpreadsheetMLHeaderOnThirdRow(t *testing.T) {
	file := Parse([]byte(spreadsheetML), "export.xml", Options{})

	assert.Equal(t, types.FormatSpreadsheetML, file.Meta.Kind)
	assert.Equal(t, []string{"Document Number", "Distribution Description", "Amount"}, file.Meta.Headers)
	require.Len(t, file.Rows, 2)

	first := file.Rows[0]
	assert.Equal(t, "INV-9", first.Invoice)
	assert.Equal(t, "20", first.VAT.Decimal.String())
	assert.Equal(t, "100", first.Net.Decimal.String())

	second := file.Rows[1]
	assert.Equal(t, "INV-10", second.Invoice)
	amount, ok := second.Raw.Get("Amount")
	assert.True(t, ok)
	assert.Equal(t, "", amount)
	assert.False(t, second.Net.Valid)

	assert.InDelta(t, 0.5, file.Meta.NarrativeVATRatio, 1e-9)
}

func TestParseGenericXML(t *testing.T) {
	doc := `<Ledger>
  <Line><Invoice>INV-1</Invoice><Account>7501-01</Account><VAT>20</VAT></Line>
  <Line><Invoice>INV-2</Invoice><Account>7501-01</Account><VAT>5</VAT></Line>
</Ledger>`

	file := Parse([]byte(doc), "ledger.xml", Options{})

	assert.Equal(t, types.FormatXML, file.Meta.Kind)
	assert.Equal(t, []string{"Invoice", "Account", "VAT"}, file.Meta.Headers)
	require.Len(t, file.Rows, 2)
	assert.InDelta(t, 1.0, file.Meta.VATAccountRatio, 1e-9)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Invoice", "Net", "FF3"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"INV-1", "1000", "S"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	file := Parse(buf.Bytes(), "cost.xlsx", Options{})

	assert.Equal(t, types.FormatXLSX, file.Meta.Kind)
	require.Len(t, file.Rows, 1)
	assert.Equal(t, "S", file.Rows[0].TaxFlag)
	assert.Equal(t, "1000", file.Rows[0].Net.Decimal.String())
}

func TestParseDegradesGracefully(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		filename string
		kind     types.FormatKind
	}{
		{"unknown", "nothing to see", "notes.txt", types.FormatUnknown},
		{"malformed xml", "<Ledger><Line>", "bad.xml", types.FormatXML},
		{"broken workbook", "PK\x03\x04garbage", "bad.xlsx", types.FormatXLSX},
		{"empty", "", "empty.csv", types.FormatCSV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := Parse([]byte(tt.content), tt.filename, Options{})
			require.NotNil(t, file)
			assert.Equal(t, tt.kind, file.Meta.Kind)
			assert.Empty(t, file.Rows)
			assert.Zero(t, file.Meta.Count)
			assert.Zero(t, file.Meta.VATAccountRatio)
		})
	}
}

func TestExtract(t *testing.T) {
	records, kind := Extract([]byte("a,b\n1,2\n"), "x")
	assert.Equal(t, types.FormatCSV, kind)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"a", "b"}, records[0].Keys())
}

func TestGridToRecords(t *testing.T) {
	headers, records := gridToRecords([][]string{
		{},
		{" ", ""},
		{" Invoice ", "", "Net"},
		{"INV-1", "ignored", " 10 "},
		{"", " "},
		{"INV-2"},
	})

	assert.Equal(t, []string{"Invoice", "Net"}, headers)
	require.Len(t, records, 2)
	net, _ := records[0].Get("Net")
	assert.Equal(t, " 10 ", net)
	net, ok := records[1].Get("Net")
	assert.True(t, ok)
	assert.Equal(t, "", net)

	headers, records = gridToRecords(nil)
	assert.Empty(t, headers)
	assert.Empty(t, records)
}
