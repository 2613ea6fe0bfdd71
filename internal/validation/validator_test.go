package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/vat-checker/internal/types"
)

func rules(result *ValidationResult) []string {
	out := []string{}
	for _, err := range result.Errors {
		out = append(out, err.Rule)
	}
	return out
}

func TestValidateRates(t *testing.T) {
	v := NewValidator()

	t.Run("nil is fatal", func(t *testing.T) {
		result := v.ValidateRates(nil)
		assert.False(t, result.IsValid)
		assert.Equal(t, 1, result.ErrorCount)
		assert.Equal(t, []string{"required"}, rules(result))
	})

	t.Run("empty mapping warns", func(t *testing.T) {
		result := v.ValidateRates(&types.RateMapping{})
		assert.True(t, result.IsValid)
		assert.Equal(t, []string{"empty_mapping"}, rules(result))
	})

	t.Run("duplicate flag warns", func(t *testing.T) {
		result := v.ValidateRates(&types.RateMapping{Std20: "S", Sales20: " s "})
		assert.True(t, result.IsValid)
		require.Equal(t, []string{"duplicate_flag"}, rules(result))
		assert.Equal(t, "std20", result.Errors[0].Field)
		assert.Contains(t, result.Errors[0].Message, "sales20")
	})

	t.Run("no reclaimable flag", func(t *testing.T) {
		result := v.ValidateRates(&types.RateMapping{Zero: "Z"})
		assert.Equal(t, []string{"no_reclaimable_flag"}, rules(result))
	})

	t.Run("clean mapping", func(t *testing.T) {
		result := v.ValidateRates(&types.RateMapping{Std20: "S", Zero: "Z", Funding: "F"})
		assert.True(t, result.IsValid)
		assert.Empty(t, result.Errors)
	})
}

func TestValidateRatesWarningsAsErrors(t *testing.T) {
	v := NewValidatorWithOptions(ValidationOptions{TreatWarningsAsErrors: true})
	result := v.ValidateRates(&types.RateMapping{})
	assert.False(t, result.IsValid)
	assert.Zero(t, result.ErrorCount)
}

func TestValidateLedger(t *testing.T) {
	v := NewValidator()

	unknown := v.ValidateLedger(&types.ParsedFile{Name: "a.bin", Meta: types.FileMeta{Kind: types.FormatUnknown}})
	assert.Equal(t, []string{"unknown_format"}, rules(unknown))

	empty := v.ValidateLedger(&types.ParsedFile{Name: "a.csv", Meta: types.FileMeta{Kind: types.FormatCSV}})
	assert.Equal(t, []string{"no_rows"}, rules(empty))

	sparse := v.ValidateLedger(&types.ParsedFile{
		Name: "b.csv",
		Meta: types.FileMeta{Kind: types.FormatCSV, Count: 10, InvoicePresentRate: 0.2},
	})
	require.Equal(t, []string{"low_invoice_rate"}, rules(sparse))
	assert.Equal(t, "20%", sparse.Errors[0].Value)

	assert.Empty(t, v.ValidateLedger(nil).Errors)
}

func TestValidateFlags(t *testing.T) {
	file := &types.ParsedFile{
		Name: "cost.csv",
		Rows: []types.Row{
			{Invoice: "1", TaxFlag: "S"},
			{Invoice: "2", TaxFlag: "X9"},
			{Invoice: "3", TaxFlag: "X9"},
			{Invoice: "4", TaxFlag: "A1"},
			{Invoice: "", TaxFlag: "B2"},
			{Invoice: "5"},
		},
	}

	result := NewValidator().ValidateFlags(file, &types.RateMapping{Std20: "s"})

	require.Len(t, result.Errors, 2)
	assert.Equal(t, "A1", result.Errors[0].Value)
	assert.Equal(t, "X9", result.Errors[1].Value)
	assert.Contains(t, result.Errors[1].Message, "2 line(s)")
	assert.Equal(t, 2, result.WarningCount)
}

func TestResultMergeAndWarnings(t *testing.T) {
	result := NewResult()
	result.Merge(NewValidator().ValidateRates(nil))
	result.Merge(NewValidator().ValidateRates(&types.RateMapping{}))
	result.Merge(nil)

	assert.False(t, result.IsValid)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, 1, result.WarningCount)
	assert.Len(t, result.Warnings(), 1)
}

func TestMergeKeepsWarningsAsErrors(t *testing.T) {
	strict := NewValidatorWithOptions(ValidationOptions{TreatWarningsAsErrors: true})

	result := NewResult()
	result.Merge(strict.ValidateRates(&types.RateMapping{}))

	assert.False(t, result.IsValid)
	assert.Zero(t, result.ErrorCount)
	assert.Equal(t, 1, result.WarningCount)

	lenient := NewResult()
	lenient.Merge(NewValidator().ValidateRates(&types.RateMapping{}))
	assert.True(t, lenient.IsValid)
}

func TestValidationErrorString(t *testing.T) {
	err := &ValidationError{Severity: SeverityWarning, File: "cost.csv", Field: "ff3", Value: "X9", Message: "unmapped"}
	assert.Equal(t, "[WARNING] File 'cost.csv', Field 'ff3': unmapped (value: 'X9')", err.Error())
}

func TestFormatAndWriteErrorLog(t *testing.T) {
	assert.Equal(t, "No validation findings.", FormatErrors(nil))

	errs := []*ValidationError{{Severity: SeverityError, Message: "boom"}}
	assert.Contains(t, FormatErrors(errs), "1. [ERROR] boom")

	path := filepath.Join(t.TempDir(), "validation.log")
	require.NoError(t, WriteErrorLog(errs, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[ERROR] boom")
}
