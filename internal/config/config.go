// =============================================================================
// VAT Checker - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration files.
// It handles both the main application configuration and the rate profiles.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): Global application settings and the default
//      rate mapping
//   2. Rate Profiles (profiles/*.yaml): Per-client rate mappings, selected by
//      matching the ledger file names
//
// EXAMPLE (config.yaml):
//
//	company: Acme Ltd
//	period: Q1 2025
//	report_formats: [xlsx, xml]
//	rates:
//	  std20: S
//	  zero: Z
//	  sales20: SALES
//	  funding: FUND
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/vat-checker/internal/classifier"
	"github.com/ginjaninja78/vat-checker/internal/ingest"
	"github.com/ginjaninja78/vat-checker/internal/reconciler"
	"github.com/ginjaninja78/vat-checker/internal/types"
	"github.com/ginjaninja78/vat-checker/internal/validation"
	"github.com/ginjaninja78/vat-checker/internal/xmlparser"
)

// Summarizer providers.
const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
)

// KnownReportFormats lists the accepted report_formats entries.
var KnownReportFormats = []string{"xlsx", "xml"}

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for ledger files when none are given on the
	// command line.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives rendered reports and run logs.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives processed ledgers when archiving is enabled.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// ProfilesDir contains rate profile YAML files.
	// Default: "./profiles"
	ProfilesDir string `yaml:"profiles_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogJSON switches the logger to JSON output.
	LogJSON bool `yaml:"log_json"`

	// =========================================================================
	// REPORT SETTINGS
	// =========================================================================

	// ReportNameFormat defines the report file name, without extension.
	// Placeholders:
	//   {name}      - VAT_Return_<period>
	//   {period}    - The period with spaces replaced by "_"
	//   {uuid}      - The run id
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {date}      - Current date (YYYY-MM-DD)
	// Default: "{name}"
	ReportNameFormat string `yaml:"report_name_format"`

	// ReportFormats lists the formats to render.
	// Default: ["xlsx"]
	ReportFormats []string `yaml:"report_formats"`

	// LogoPath is an optional image embedded in the XLSX report.
	LogoPath string `yaml:"logo_path"`

	Company        string `yaml:"company"`
	Period         string `yaml:"period"`
	CurrencySymbol string `yaml:"currency_symbol"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// Tolerance is the inclusive reconciliation tolerance.
	// Default: 0.01
	Tolerance float64 `yaml:"tolerance"`

	// AccountThreshold and NarrativeThreshold tune ledger classification.
	AccountThreshold   float64 `yaml:"account_threshold"`
	NarrativeThreshold float64 `yaml:"narrative_threshold"`

	// XMLSampleCap is the number of records scored per XML candidate.
	XMLSampleCap int `yaml:"xml_sample_cap"`

	// VATAccountPrefix marks VAT control accounts.
	// Default: "7501-"
	VATAccountPrefix string `yaml:"vat_account_prefix"`

	// Rates is the default rate mapping, used when no profile matches.
	Rates *types.RateMapping `yaml:"rates"`

	Summarizer SummarizerConfig `yaml:"summarizer"`

	Validation ValidationConfig `yaml:"validation"`
}

// ValidationConfig tunes the input checks run before reconciliation.
type ValidationConfig struct {
	// TreatWarningsAsErrors stops the run on any validation warning.
	TreatWarningsAsErrors bool `yaml:"treat_warnings_as_errors"`

	// MinInvoiceRate is the fraction of rows that must carry an invoice id.
	// Default: 0.5
	MinInvoiceRate float64 `yaml:"min_invoice_rate"`

	// WriteLog writes the findings to validation_log_<timestamp>.txt in the
	// output directory whenever there are any.
	// Default: true
	WriteLog *bool `yaml:"write_log"`
}

// SummarizerConfig selects the run summary provider.
type SummarizerConfig struct {
	// Provider is "none" or "gemini". The Gemini API key is read from the
	// GEMINI_API_KEY environment variable.
	// Default: "none"
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`
}

// =============================================================================
// RATE PROFILE STRUCTURE
// =============================================================================

// RateProfile holds the rate mapping for a client or ledger system.
type RateProfile struct {
	// ProfileName is the human-readable name used in logs.
	ProfileName string `yaml:"profile_name"`

	// ProfileCode is a short code; it keys the loaded profiles.
	ProfileCode string `yaml:"profile_code"`

	// FileMatchingPatterns is a list of glob patterns to match ledger files.
	// Examples:
	//   - "acme_*.csv"
	//   - "*_purchase_ledger.xml"
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// Rates is the flag-to-role mapping.
	Rates types.RateMapping `yaml:"rates"`

	// Company and CurrencySymbol override the main config when set.
	Company        string `yaml:"company,omitempty"`
	CurrencySymbol string `yaml:"currency_symbol,omitempty"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// DefaultMainConfig returns a configuration with every default applied.
func DefaultMainConfig() *MainConfig {
	config := &MainConfig{}
	applyMainConfigDefaults(config)
	return config
}

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read, parsed or validated.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.ProfilesDir == "" {
		config.ProfilesDir = "./profiles"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.ReportNameFormat == "" {
		config.ReportNameFormat = "{name}"
	}
	if len(config.ReportFormats) == 0 {
		config.ReportFormats = []string{"xlsx"}
	}
	if config.CurrencySymbol == "" {
		config.CurrencySymbol = reconciler.DefaultCurrencySymbol
	}
	if config.Tolerance == 0 {
		config.Tolerance = reconciler.DefaultTolerance.InexactFloat64()
	}
	if config.AccountThreshold == 0 {
		config.AccountThreshold = classifier.AccountThreshold
	}
	if config.NarrativeThreshold == 0 {
		config.NarrativeThreshold = classifier.NarrativeThreshold
	}
	if config.XMLSampleCap == 0 {
		config.XMLSampleCap = xmlparser.DefaultSampleCap
	}
	if config.VATAccountPrefix == "" {
		config.VATAccountPrefix = ingest.DefaultVATAccountPrefix
	}
	if config.Summarizer.Provider == "" {
		config.Summarizer.Provider = ProviderNone
	}
	if config.Validation.MinInvoiceRate == 0 {
		config.Validation.MinInvoiceRate = validation.MinInvoiceRate
	}
	if config.Validation.WriteLog == nil {
		writeLog := true
		config.Validation.WriteLog = &writeLog
	}
}

// validateMainConfig validates the main configuration and creates the output
// directories.
func validateMainConfig(config *MainConfig) error {
	var problems []string

	if config.Tolerance < 0 {
		problems = append(problems, "tolerance must not be negative")
	}
	if config.AccountThreshold < 0 || config.AccountThreshold > 1 {
		problems = append(problems, "account_threshold must be between 0 and 1")
	}
	if config.NarrativeThreshold < 0 || config.NarrativeThreshold > 1 {
		problems = append(problems, "narrative_threshold must be between 0 and 1")
	}
	if config.Validation.MinInvoiceRate < 0 || config.Validation.MinInvoiceRate > 1 {
		problems = append(problems, "validation.min_invoice_rate must be between 0 and 1")
	}
	if config.XMLSampleCap < 0 {
		problems = append(problems, "xml_sample_cap must not be negative")
	}
	for _, format := range config.ReportFormats {
		if !isKnownFormat(format) {
			problems = append(problems, fmt.Sprintf("unknown report format %q", format))
		}
	}
	switch strings.ToLower(config.Summarizer.Provider) {
	case ProviderNone, ProviderGemini:
	default:
		problems = append(problems, fmt.Sprintf("unknown summarizer provider %q", config.Summarizer.Provider))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}

	for _, dir := range []string{config.OutputDir, config.ProfilesDir} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}

func isKnownFormat(format string) bool {
	format = strings.ToLower(strings.TrimSpace(format))
	for _, known := range KnownReportFormats {
		if format == known {
			return true
		}
	}
	return false
}

// ToleranceDecimal returns the tolerance as a decimal.
func (c *MainConfig) ToleranceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Tolerance)
}

// ValidationOptions returns the validator options of the configuration.
func (c *MainConfig) ValidationOptions() validation.ValidationOptions {
	return validation.ValidationOptions{
		TreatWarningsAsErrors: c.Validation.TreatWarningsAsErrors,
		MinInvoiceRate:        c.Validation.MinInvoiceRate,
	}
}

// WritesValidationLog reports whether validation findings go to a log file.
func (c *MainConfig) WritesValidationLog() bool {
	return c.Validation.WriteLog == nil || *c.Validation.WriteLog
}

// =============================================================================
// RATE PROFILES
// =============================================================================

// LoadRateProfiles loads all rate profiles from a directory.
//
// PARAMETERS:
//   - profilesDir: The directory containing profile YAML files.
//
// RETURNS:
//   - The profiles keyed by profile code, or by file name when no code is
//     set.
//   - An error if any file cannot be read or parsed.
func LoadRateProfiles(profilesDir string) (map[string]*RateProfile, error) {
	profiles := make(map[string]*RateProfile)

	files, err := filepath.Glob(filepath.Join(profilesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}

	// Also check for .yml extension.
	ymlFiles, err := filepath.Glob(filepath.Join(profilesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		profile, err := LoadRateProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}

		key := profile.ProfileCode
		if key == "" {
			key = filepath.Base(file)
		}
		profiles[key] = profile
	}

	return profiles, nil
}

// LoadRateProfile loads a single rate profile file.
func LoadRateProfile(filePath string) (*RateProfile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile RateProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	if profile.ProfileName == "" {
		profile.ProfileName = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}
	return &profile, nil
}

// FindMatchingProfile returns the profile whose patterns match any of the
// file names. Profiles are tried in key order, so the result is
// deterministic.
func FindMatchingProfile(fileNames []string, profiles map[string]*RateProfile) *RateProfile {
	keys := make([]string, 0, len(profiles))
	for key := range profiles {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		profile := profiles[key]
		for _, pattern := range profile.FileMatchingPatterns {
			for _, name := range fileNames {
				// Invalid patterns never match.
				if matched, err := filepath.Match(pattern, filepath.Base(name)); err == nil && matched {
					return profile
				}
			}
		}
	}
	return nil
}
