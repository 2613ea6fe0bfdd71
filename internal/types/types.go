// =============================================================================
// VAT Checker - Shared Types
// =============================================================================
//
// This package contains the ledger types shared across the pipeline stages to
// avoid import cycles. Types defined here are used by:
//   - ingest / csvparser / xmlparser / xlsxparser (raw records)
//   - normalizer (normalized rows)
//   - classifier, reconciler, boxes (parsed files, rate mapping)
//
// =============================================================================

package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RAW RECORDS
// =============================================================================

// Field is a single column-name / cell-value pair from a source row.
type Field struct {
	Name  string
	Value string
}

// Record is one source row as an ordered list of fields.
// The order is the column order of the source (CSV header, XML attribute and
// child order, or spreadsheet column order) and drives field matching priority.
type Record []Field

// Get returns the value stored under name and whether it was present.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Set stores value under name. An existing field keeps its position.
func (r Record) Set(name, value string) Record {
	for i := range r {
		if r[i].Name == name {
			r[i].Value = value
			return r
		}
	}
	return append(r, Field{Name: name, Value: value})
}

// Keys returns the column names in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Name
	}
	return keys
}

// Map returns a copy of the record as a plain map (diagnostics output).
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(r))
	for _, f := range r {
		m[f.Name] = f.Value
	}
	return m
}

// =============================================================================
// NORMALIZED ROWS
// =============================================================================

// Row is the canonical representation of one ledger line.
type Row struct {
	// Invoice is the trimmed invoice id. Rows with an empty id are excluded
	// from reconciliation.
	Invoice string `json:"invoice"`

	// Supplier is the supplier name, empty when the source has none.
	Supplier string `json:"supplier,omitempty"`

	// Account is the ledger account code.
	Account string `json:"account"`

	// Net is the net amount. Valid is false when the source value was empty
	// or not a number; absent is never the same as zero.
	Net decimal.NullDecimal `json:"net"`

	// VAT is the VAT amount, with the same absent semantics as Net.
	VAT decimal.NullDecimal `json:"vat"`

	// TaxFlag is the per-line tax category tag (FF3).
	TaxFlag string `json:"ff3,omitempty"`

	// Raw is the source record, kept for diagnostics.
	Raw Record `json:"-"`
}

// NetOrZero returns the net amount, treating absent as zero.
func (r Row) NetOrZero() decimal.Decimal {
	if r.Net.Valid {
		return r.Net.Decimal
	}
	return decimal.Zero
}

// VATOrZero returns the VAT amount, treating absent as zero.
func (r Row) VATOrZero() decimal.Decimal {
	if r.VAT.Valid {
		return r.VAT.Decimal
	}
	return decimal.Zero
}

// InvoiceKey is the reconciliation join key: trimmed and upper-cased.
func (r Row) InvoiceKey() string {
	return strings.ToUpper(strings.TrimSpace(r.Invoice))
}

// =============================================================================
// PARSED FILES
// =============================================================================

// FormatKind identifies how a file was decoded.
type FormatKind string

const (
	FormatCSV           FormatKind = "csv"
	FormatXML           FormatKind = "xml"
	FormatSpreadsheetML FormatKind = "spreadsheetml"
	FormatXLSX          FormatKind = "xlsx"
	FormatUnknown       FormatKind = "unknown"
)

// FileMeta holds the diagnostics and classification signals of a file.
// It is computed once when the file is parsed and never mutated.
type FileMeta struct {
	Kind               FormatKind `json:"kind"`
	Headers            []string   `json:"headers"`
	SampleRaw          Record     `json:"-"`
	Count              int        `json:"count"`
	InvoicePresentRate float64    `json:"invoicePresentRate"`
	VATAccountRatio    float64    `json:"vatAccountRatio"`
	NarrativeVATRatio  float64    `json:"narrativeVatRatio"`
}

// ParsedFile is a file's normalized rows plus its metadata.
type ParsedFile struct {
	Name string
	Rows []Row
	Meta FileMeta
}

// =============================================================================
// RATE MAPPING
// =============================================================================

// Role is a recognized tax category role.
type Role string

const (
	RoleNone       Role = ""
	RoleStd20      Role = "std20"
	RoleRed5       Role = "red5"
	RoleRed4       Role = "red4"
	RoleZero       Role = "zero"
	RoleExempt     Role = "exempt"
	RoleOS         Role = "os"
	RoleRCGoods    Role = "rc_goods"
	RoleRCServices Role = "rc_services"
	RoleSales20    Role = "sales20"
	RoleFunding    Role = "funding"
)

// roleOrder is the resolution order used when one flag string is configured
// for more than one role.
var roleOrder = [...]Role{
	RoleSales20, RoleFunding,
	RoleStd20, RoleRed5, RoleRed4,
	RoleZero, RoleExempt, RoleOS, RoleRCGoods, RoleRCServices,
}

// RoleOrder returns a copy of the flag resolution order.
func RoleOrder() []Role {
	order := roleOrder
	return order[:]
}

// RateMapping maps each role to the free-text flag used by a ledger export.
// An empty string means no ledger flag maps to that role.
type RateMapping struct {
	Std20      string `yaml:"std20" json:"std20"`
	Red5       string `yaml:"red5" json:"red5"`
	Red4       string `yaml:"red4" json:"red4"`
	Zero       string `yaml:"zero" json:"zero"`
	Exempt     string `yaml:"exempt" json:"exempt"`
	OS         string `yaml:"os" json:"os"`
	RCGoods    string `yaml:"rc_goods" json:"rcGoods"`
	RCServices string `yaml:"rc_services" json:"rcServices"`
	Sales20    string `yaml:"sales20" json:"sales20"`
	Funding    string `yaml:"funding" json:"funding"`
}

// Flag returns the configured flag for a role.
func (m *RateMapping) Flag(role Role) string {
	switch role {
	case RoleStd20:
		return m.Std20
	case RoleRed5:
		return m.Red5
	case RoleRed4:
		return m.Red4
	case RoleZero:
		return m.Zero
	case RoleExempt:
		return m.Exempt
	case RoleOS:
		return m.OS
	case RoleRCGoods:
		return m.RCGoods
	case RoleRCServices:
		return m.RCServices
	case RoleSales20:
		return m.Sales20
	case RoleFunding:
		return m.Funding
	}
	return ""
}

// RoleFor resolves a ledger flag to its role. Matching is trimmed and
// case-insensitive; unmapped or empty flags resolve to RoleNone.
func (m *RateMapping) RoleFor(flag string) Role {
	flag = strings.TrimSpace(flag)
	if m == nil || flag == "" {
		return RoleNone
	}
	for _, role := range roleOrder {
		configured := strings.TrimSpace(m.Flag(role))
		if configured != "" && strings.EqualFold(configured, flag) {
			return role
		}
	}
	return RoleNone
}

// Rate returns the reclaim rate of a role. Only the standard and the two
// reduced rates carry a non-zero rate.
func (r Role) Rate() decimal.Decimal {
	switch r {
	case RoleStd20:
		return decimal.NewFromFloat(0.20)
	case RoleRed5:
		return decimal.NewFromFloat(0.05)
	case RoleRed4:
		return decimal.NewFromFloat(0.04)
	}
	return decimal.Zero
}

// IsPurchase reports whether lines with this role count as purchases.
func (r Role) IsPurchase() bool {
	switch r {
	case RoleStd20, RoleRed5, RoleRed4, RoleZero, RoleExempt, RoleOS, RoleRCGoods, RoleRCServices:
		return true
	}
	return false
}
