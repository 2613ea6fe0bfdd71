package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/vat-checker/internal/validation"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMainConfig(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "reports")
	profiles := filepath.Join(dir, "profiles")

	path := writeFile(t, dir, "config.yaml", `
output_dir: `+out+`
profiles_dir: `+profiles+`
company: Acme Ltd
period: Q1 2025
report_formats: [xlsx, XML]
tolerance: 0.05
rates:
  std20: S
  zero: Z
  funding: FUND
summarizer:
  provider: gemini
  model: gemini-2.5-flash
validation:
  treat_warnings_as_errors: true
  min_invoice_rate: 0.8
  write_log: false
`)

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Acme Ltd", cfg.Company)
	assert.Equal(t, []string{"xlsx", "XML"}, cfg.ReportFormats)
	assert.Equal(t, "0.05", cfg.ToleranceDecimal().String())
	require.NotNil(t, cfg.Rates)
	assert.Equal(t, "S", cfg.Rates.Std20)
	assert.Equal(t, "FUND", cfg.Rates.Funding)
	assert.Equal(t, ProviderGemini, cfg.Summarizer.Provider)
	assert.Equal(t, validation.ValidationOptions{TreatWarningsAsErrors: true, MinInvoiceRate: 0.8}, cfg.ValidationOptions())
	assert.False(t, cfg.WritesValidationLog())

	// Defaults.
	assert.Equal(t, "./input", cfg.InputDir)
	assert.Equal(t, "{name}", cfg.ReportNameFormat)
	assert.Equal(t, "£", cfg.CurrencySymbol)
	assert.Equal(t, 0.6, cfg.AccountThreshold)
	assert.Equal(t, 50, cfg.XMLSampleCap)
	assert.Equal(t, "7501-", cfg.VATAccountPrefix)

	assert.DirExists(t, out)
	assert.DirExists(t, profiles)
}

func TestLoadMainConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadMainConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	bad := writeFile(t, dir, "bad.yaml", "rates: [not, a, map")
	_, err = LoadMainConfig(bad)
	assert.ErrorContains(t, err, "failed to parse config file")

	invalid := writeFile(t, dir, "invalid.yaml", `
output_dir: `+filepath.Join(dir, "out")+`
report_formats: [pdf]
account_threshold: 2
validation:
  min_invoice_rate: 1.5
summarizer:
  provider: openai
`)
	_, err = LoadMainConfig(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown report format "pdf"`)
	assert.Contains(t, err.Error(), "account_threshold")
	assert.Contains(t, err.Error(), "validation.min_invoice_rate")
	assert.Contains(t, err.Error(), `unknown summarizer provider "openai"`)
}

func TestDefaultMainConfig(t *testing.T) {
	cfg := DefaultMainConfig()
	assert.Equal(t, []string{"xlsx"}, cfg.ReportFormats)
	assert.Equal(t, ProviderNone, cfg.Summarizer.Provider)
	assert.Equal(t, "0.01", cfg.ToleranceDecimal().String())
	assert.Nil(t, cfg.Rates)
	assert.Equal(t, validation.MinInvoiceRate, cfg.ValidationOptions().MinInvoiceRate)
	assert.False(t, cfg.ValidationOptions().TreatWarningsAsErrors)
	assert.True(t, cfg.WritesValidationLog())
}

func TestLoadRateProfiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "acme.yaml", `
profile_name: Acme
profile_code: ACME
file_matching_patterns: ["acme_*.csv"]
rates:
  std20: "20.0"
  zero: "0.0"
`)
	writeFile(t, dir, "beta.yml", `
file_matching_patterns: ["beta_*"]
currency_symbol: "€"
rates:
  std20: T1
`)
	writeFile(t, dir, "notes.txt", "ignored")

	profiles, err := LoadRateProfiles(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, "20.0", profiles["ACME"].Rates.Std20)
	assert.Equal(t, "beta", profiles["beta.yml"].ProfileName)
	assert.Equal(t, "€", profiles["beta.yml"].CurrencySymbol)

	match := FindMatchingProfile([]string{"/data/vat.xml", "/data/acme_costs.csv"}, profiles)
	require.NotNil(t, match)
	assert.Equal(t, "Acme", match.ProfileName)

	assert.Nil(t, FindMatchingProfile([]string{"other.csv"}, profiles))
}

func TestLoadRateProfilesBadFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "rates: [")

	_, err := LoadRateProfiles(dir)
	assert.ErrorContains(t, err, "broken.yaml")
}

func TestFindMatchingProfileIsDeterministic(t *testing.T) {
	profiles := map[string]*RateProfile{
		"b": {ProfileName: "second", FileMatchingPatterns: []string{"*.csv"}},
		"a": {ProfileName: "first", FileMatchingPatterns: []string{"*.csv"}},
		"c": {ProfileName: "broken", FileMatchingPatterns: []string{"["}},
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, "first", FindMatchingProfile([]string{"x.csv"}, profiles).ProfileName)
	}
}
