// =============================================================================
// VAT Checker - Validation
// =============================================================================
//
// This module checks the inputs of a reconciliation run before the engine
// sees them. Only a missing rate mapping is fatal; everything else is a
// warning that is logged and carried into the run summary.
//
// CHECKS:
//   - Rate mapping present (error)
//   - Rate mapping configures at least one flag (warning)
//   - No reclaimable flag configured (warning)
//   - One flag configured for several roles (warning; first role wins)
//   - Ledger has rows, invoice ids and a known format (warning)
//   - Cost-ledger flags the mapping does not know (warning, once per flag)
//
// =============================================================================

package validation

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ginjaninja78/vat-checker/internal/types"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// MinInvoiceRate is the fraction of rows with an invoice id below which a
// ledger is reported as probably mis-mapped.
const MinInvoiceRate = 0.5

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation finding.
type ValidationError struct {
	// Severity is "error" (the run cannot proceed) or "warning".
	Severity string

	// File is the ledger the finding refers to, empty for mapping checks.
	File string

	// Field is the role or column the finding refers to.
	Field string

	// Value is the offending value.
	Value string

	// Rule is a short identifier of the violated check.
	Rule string

	// Message is a human-readable explanation.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("[" + strings.ToUpper(e.Severity) + "]")
	if e.File != "" {
		b.WriteString(" File '" + e.File + "',")
	}
	if e.Field != "" {
		b.WriteString(" Field '" + e.Field + "':")
	}
	b.WriteString(" " + e.Message)
	if e.Value != "" {
		b.WriteString(" (value: '" + e.Value + "')")
	}
	return b.String()
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the findings of one validation pass.
type ValidationResult struct {
	// IsValid is true if there are no fatal errors.
	IsValid bool

	// Errors contains all findings, warnings included.
	Errors []*ValidationError

	// ErrorCount is the number of fatal errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int
}

// NewResult returns an empty, valid result.
func NewResult() *ValidationResult {
	return &ValidationResult{IsValid: true, Errors: []*ValidationError{}}
}

// Add records a finding and updates the counters.
func (r *ValidationResult) Add(err *ValidationError) {
	r.Errors = append(r.Errors, err)
	if err.Severity == SeverityError {
		r.ErrorCount++
		r.IsValid = false
		return
	}
	r.WarningCount++
}

// Merge appends every finding of other. A result invalidated by
// TreatWarningsAsErrors stays invalid after merging.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for _, err := range other.Errors {
		r.Add(err)
	}
	if !other.IsValid {
		r.IsValid = false
	}
}

// Warnings returns only the non-fatal findings.
func (r *ValidationResult) Warnings() []*ValidationError {
	var out []*ValidationError
	for _, err := range r.Errors {
		if err.Severity == SeverityWarning {
			out = append(out, err)
		}
	}
	return out
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// TreatWarningsAsErrors makes any warning invalidate the result.
	TreatWarningsAsErrors bool

	// MinInvoiceRate overrides the package default when positive.
	MinInvoiceRate float64
}

// Validator checks rate mappings and ledgers.
type Validator struct {
	options ValidationOptions
}

// NewValidator creates a Validator with default options.
func NewValidator() *Validator {
	return &Validator{}
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options ValidationOptions) *Validator {
	return &Validator{options: options}
}

func (v *Validator) finish(result *ValidationResult) *ValidationResult {
	if v.options.TreatWarningsAsErrors && result.WarningCount > 0 {
		result.IsValid = false
	}
	return result
}

// ValidateRates checks a rate mapping.
//
// PARAMETERS:
//   - rates: The mapping to check; nil is a fatal error.
//
// RETURNS:
//   - The validation result.
func (v *Validator) ValidateRates(rates *types.RateMapping) *ValidationResult {
	result := NewResult()
	if rates == nil {
		result.Add(&ValidationError{
			Severity: SeverityError,
			Field:    "rates",
			Rule:     "required",
			Message:  "a rate mapping is required",
		})
		return v.finish(result)
	}

	owners := make(map[string]types.Role)
	configured := 0
	for _, role := range types.RoleOrder() {
		flag := strings.TrimSpace(rates.Flag(role))
		if flag == "" {
			continue
		}
		configured++

		key := strings.ToLower(flag)
		if first, dup := owners[key]; dup {
			result.Add(&ValidationError{
				Severity: SeverityWarning,
				Field:    string(role),
				Value:    flag,
				Rule:     "duplicate_flag",
				Message:  fmt.Sprintf("flag is also mapped to %s; %s takes precedence", first, first),
			})
			continue
		}
		owners[key] = role
	}

	if configured == 0 {
		result.Add(&ValidationError{
			Severity: SeverityWarning,
			Field:    "rates",
			Rule:     "empty_mapping",
			Message:  "no tax flags are configured; every line will be unmapped",
		})
		return v.finish(result)
	}

	if rates.Std20 == "" && rates.Red5 == "" && rates.Red4 == "" {
		result.Add(&ValidationError{
			Severity: SeverityWarning,
			Field:    "rates",
			Rule:     "no_reclaimable_flag",
			Message:  "no standard or reduced rate flag is configured; expected VAT will be zero",
		})
	}

	return v.finish(result)
}

// ValidateLedger reports structural problems with a parsed ledger.
func (v *Validator) ValidateLedger(file *types.ParsedFile) *ValidationResult {
	result := NewResult()
	if file == nil {
		return v.finish(result)
	}

	switch {
	case file.Meta.Kind == types.FormatUnknown:
		result.Add(&ValidationError{
			Severity: SeverityWarning,
			File:     file.Name,
			Rule:     "unknown_format",
			Message:  "file format was not recognised; no rows were read",
		})
	case file.Meta.Count == 0:
		result.Add(&ValidationError{
			Severity: SeverityWarning,
			File:     file.Name,
			Rule:     "no_rows",
			Message:  "no data rows were read",
		})
	}

	minRate := v.options.MinInvoiceRate
	if minRate <= 0 {
		minRate = MinInvoiceRate
	}
	if file.Meta.Count > 0 && file.Meta.InvoicePresentRate < minRate {
		result.Add(&ValidationError{
			Severity: SeverityWarning,
			File:     file.Name,
			Field:    "invoice",
			Value:    fmt.Sprintf("%.0f%%", file.Meta.InvoicePresentRate*100),
			Rule:     "low_invoice_rate",
			Message:  "few rows carry an invoice id; check the column headers",
		})
	}

	return v.finish(result)
}

// ValidateFlags reports cost-ledger tax flags the mapping does not recognise.
// Each distinct flag is reported once, in sorted order.
func (v *Validator) ValidateFlags(file *types.ParsedFile, rates *types.RateMapping) *ValidationResult {
	result := NewResult()
	if file == nil || rates == nil {
		return v.finish(result)
	}

	counts := make(map[string]int)
	for _, row := range file.Rows {
		flag := strings.TrimSpace(row.TaxFlag)
		if flag == "" || row.InvoiceKey() == "" {
			continue
		}
		if rates.RoleFor(flag) == types.RoleNone {
			counts[flag]++
		}
	}

	flags := make([]string, 0, len(counts))
	for flag := range counts {
		flags = append(flags, flag)
	}
	sort.Strings(flags)

	for _, flag := range flags {
		result.Add(&ValidationError{
			Severity: SeverityWarning,
			File:     file.Name,
			Field:    "ff3",
			Value:    flag,
			Rule:     "unmapped_flag",
			Message:  fmt.Sprintf("flag is not in the rate mapping (%d line(s) contribute no expected VAT)", counts[flag]),
		})
	}

	return v.finish(result)
}

// =============================================================================
// OUTPUT
// =============================================================================

// FormatErrors formats findings for display.
//
// PARAMETERS:
//   - errors: The findings to format.
//
// RETURNS:
//   - A formatted string containing all findings.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation findings."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n\n", len(errors)))
	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}

// WriteErrorLog writes findings to a log file.
func WriteErrorLog(errors []*ValidationError, filePath string) error {
	var builder strings.Builder
	builder.WriteString("VAT Checker Validation Log\n")
	builder.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format(time.RFC3339)))
	builder.WriteString(FormatErrors(errors))

	if err := os.WriteFile(filePath, []byte(builder.String()), 0644); err != nil {
		return fmt.Errorf("failed to write validation log: %w", err)
	}
	return nil
}
