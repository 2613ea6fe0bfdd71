package csvparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "a,b,c", []string{"a", "b", "c"}},
		{"trims fields", " a , b ,c ", []string{"a", "b", "c"}},
		{"quoted comma", `INV-1,"Acme, Ltd",100`, []string{"INV-1", "Acme, Ltd", "100"}},
		{"quoted amount", `"£1,234.56",x`, []string{"£1,234.56", "x"}},
		{"doubled quotes are not escapes", `"a""b",c`, []string{"ab", "c"}},
		{"trailing empty field", "a,b,", []string{"a", "b", ""}},
		{"single field", "only", []string{"only"}},
		{"empty line", "", []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLine(tt.line))
		})
	}
}

func TestParse(t *testing.T) {
	content := []byte("\ufeffInvoice, Supplier ,Net\r\nINV-1,\"Acme, Ltd\",100.00\r\n\r\nINV-2,Beta\n")

	data := Parse(content)

	require.Equal(t, []string{"Invoice", "Supplier", "Net"}, data.Headers)
	require.Len(t, data.Records, 2)
	assert.Equal(t, 2, data.RowCount)

	supplier, ok := data.Records[0].Get("Supplier")
	assert.True(t, ok)
	assert.Equal(t, "Acme, Ltd", supplier)

	net, ok := data.Records[0].Get("Net")
	assert.True(t, ok)
	assert.Equal(t, "100.00", net)

	// Missing trailing fields are absent, not empty.
	_, ok = data.Records[1].Get("Net")
	assert.False(t, ok)
}

func TestParseEmpty(t *testing.T) {
	data := Parse(nil)
	assert.Empty(t, data.Headers)
	assert.Empty(t, data.Records)

	data = Parse([]byte("Invoice,Net\n"))
	assert.Equal(t, []string{"Invoice", "Net"}, data.Headers)
	assert.Empty(t, data.Records)
}

func TestParseDropsExtraFields(t *testing.T) {
	data := Parse([]byte("a,b\n1,2,3\n"))
	require.Len(t, data.Records, 1)
	assert.Len(t, data.Records[0], 2)
}
