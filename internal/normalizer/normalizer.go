// =============================================================================
// VAT Checker - Field Normalizer
// =============================================================================
//
// This module maps raw records with arbitrary column names onto the canonical
// ledger row. Each canonical field owns an ordered list of candidate
// substrings; a record key matches a field when its folded form (lower-case,
// whitespace removed) contains any candidate. For every field the first
// matching key in record order wins.
//
// FIELD TABLE:
//
//   | Field    | Candidates                                                   |
//   |----------|--------------------------------------------------------------|
//   | invoice  | invoice invoiceno invoicenumber supplierinvoice supplierref  |
//   |          | reference ref doc document documentno voucher transaction    |
//   | supplier | supplier suppliername vendor vendorname name                 |
//   | account  | account gl glcode nominal code glaccount                     |
//   | net      | net goods amountnet netamount lineamount amount base         |
//   | vat      | vat tax vatr vatamount taxamount vatvalue taxvalue           |
//   | ff3      | ff3 freefield3 ff-3 ff_3 flag                                |
//
// NARRATIVE VAT LINES:
//   Some exports carry VAT as a separate line whose description reads
//   "VAT ON 1,000.00". For such a row the amount column is the VAT value and
//   the narrative figure is the net base.
//
// =============================================================================

package normalizer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ginjaninja78/vat-checker/internal/types"
)

// Field identifies a canonical row field.
type Field int

const (
	FieldInvoice Field = iota
	FieldSupplier
	FieldAccount
	FieldNet
	FieldVAT
	FieldTaxFlag

	fieldCount
)

// String returns the canonical name of the field.
func (f Field) String() string {
	switch f {
	case FieldInvoice:
		return "invoice"
	case FieldSupplier:
		return "supplier"
	case FieldAccount:
		return "account"
	case FieldNet:
		return "net"
	case FieldVAT:
		return "vat"
	case FieldTaxFlag:
		return "ff3"
	}
	return "unknown"
}

// fieldCandidates is the ordered field table. Index is the Field value.
var fieldCandidates = [fieldCount][]string{
	FieldInvoice: {
		"invoice", "invoiceno", "invoicenumber", "supplierinvoice",
		"supplierref", "reference", "ref", "doc", "document", "documentno", "voucher", "transaction",
	},
	FieldSupplier: {"supplier", "suppliername", "vendor", "vendorname", "name"},
	FieldAccount:  {"account", "gl", "glcode", "nominal", "code", "glaccount"},
	FieldNet:      {"net", "goods", "amountnet", "netamount", "lineamount", "amount", "base"},
	FieldVAT:      {"vat", "tax", "vatr", "vatamount", "taxamount", "vatvalue", "taxvalue"},
	FieldTaxFlag:  {"ff3", "freefield3", "ff-3", "ff_3", "flag"},
}

const (
	descriptionKey = "description"
	amountKey      = "amount"
)

// narrativePattern finds "VAT ON <amount>" in a description.
var narrativePattern = regexp.MustCompile(`(?i)vat\s*on\s*\(?\s*[£$€]?\s*([0-9.,\-]+)`)

// FoldKey lower-cases a column name and removes all whitespace.
func FoldKey(key string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, key)
}

// keyInfo is the cached match result of one column name.
type keyInfo struct {
	fields      [fieldCount]bool
	description bool
	amount      bool
}

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalizer maps records of one batch onto canonical rows. Column names are
// folded and matched once per batch; a Normalizer must not be shared between
// goroutines.
type Normalizer struct {
	log  *zap.Logger
	keys map[string]*keyInfo
}

// New creates a Normalizer for one batch of records.
func New(log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{
		log:  log,
		keys: make(map[string]*keyInfo),
	}
}

// Normalize maps a single record with a throwaway Normalizer.
func Normalize(record types.Record) types.Row {
	return New(nil).Normalize(record)
}

// NormalizeAll maps a batch of records in order.
func (n *Normalizer) NormalizeAll(records []types.Record) []types.Row {
	rows := make([]types.Row, len(records))
	for i, record := range records {
		rows[i] = n.Normalize(record)
	}
	return rows
}

// Normalize maps one record onto a canonical row.
func (n *Normalizer) Normalize(record types.Record) types.Row {
	var values [fieldCount]string
	var present [fieldCount]bool

	for field := Field(0); field < fieldCount; field++ {
		for _, f := range record {
			if n.info(f.Name).fields[field] {
				values[field] = f.Value
				present[field] = true
				break
			}
		}
	}

	row := types.Row{
		Invoice:  strings.TrimSpace(values[FieldInvoice]),
		Supplier: strings.TrimSpace(values[FieldSupplier]),
		Account:  strings.TrimSpace(values[FieldAccount]),
		TaxFlag:  strings.TrimSpace(values[FieldTaxFlag]),
		Raw:      record,
	}
	row.Net = n.amount(record, FieldNet, values[FieldNet], present[FieldNet])
	row.VAT = n.amount(record, FieldVAT, values[FieldVAT], present[FieldVAT])

	if base, ok := n.narrativeBase(record); ok {
		if amount, found := n.firstValue(record, func(k *keyInfo) bool { return k.amount }); found {
			row.VAT = ParseAmount(amount)
		} else {
			row.VAT = decimal.NullDecimal{}
		}
		row.Net = base
	}

	return row
}

// HasNarrativeVAT reports whether the record's description carries a
// "VAT ON <amount>" marker.
func (n *Normalizer) HasNarrativeVAT(record types.Record) bool {
	description, ok := n.firstValue(record, func(k *keyInfo) bool { return k.description })
	return ok && narrativePattern.MatchString(description)
}

// NarrativeBase extracts the net base from a "VAT ON <amount>" description.
func NarrativeBase(description string) (decimal.NullDecimal, bool) {
	match := narrativePattern.FindStringSubmatch(description)
	if match == nil {
		return decimal.NullDecimal{}, false
	}
	return ParseAmount(match[1]), true
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (n *Normalizer) narrativeBase(record types.Record) (decimal.NullDecimal, bool) {
	description, ok := n.firstValue(record, func(k *keyInfo) bool { return k.description })
	if !ok {
		return decimal.NullDecimal{}, false
	}
	return NarrativeBase(description)
}

func (n *Normalizer) firstValue(record types.Record, match func(*keyInfo) bool) (string, bool) {
	for _, f := range record {
		if match(n.info(f.Name)) {
			return f.Value, true
		}
	}
	return "", false
}

func (n *Normalizer) amount(record types.Record, field Field, value string, present bool) decimal.NullDecimal {
	if !present {
		return decimal.NullDecimal{}
	}
	amount := ParseAmount(value)
	if !amount.Valid && strings.TrimSpace(value) != "" {
		invoice, _ := n.firstValue(record, func(k *keyInfo) bool { return k.fields[FieldInvoice] })
		n.log.Debug("Unparsable amount treated as absent",
			zap.String("field", field.String()),
			zap.String("value", value),
			zap.String("invoice", invoice),
		)
	}
	return amount
}

// info returns the cached match result for a column name.
func (n *Normalizer) info(key string) *keyInfo {
	if info, ok := n.keys[key]; ok {
		return info
	}

	folded := FoldKey(key)
	info := &keyInfo{
		description: strings.Contains(folded, descriptionKey),
		amount:      strings.Contains(folded, amountKey),
	}
	for field, candidates := range fieldCandidates {
		for _, candidate := range candidates {
			if strings.Contains(folded, candidate) {
				info.fields[field] = true
				break
			}
		}
	}

	n.keys[key] = info
	return info
}
