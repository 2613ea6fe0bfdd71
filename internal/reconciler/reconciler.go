// =============================================================================
// VAT Checker - Reconciliation Engine
// =============================================================================
//
// This module joins the VAT expected from the cost ledger against the VAT
// claimed in the VAT ledger, one invoice at a time.
//
// ALGORITHM:
//   1. Claimed by invoice: VAT-ledger rows grouped by the upper-cased, trimmed
//      invoice id; absent VAT contributes 0. Rows without an id are dropped.
//   2. Expected by invoice: cost-ledger rows with an id; net x rate for the
//      standard (20%) and reduced (5%, 4%) flags, 0 for any other flag.
//      Funding and sales lines alone never make an invoice "expected"; a
//      claim against such an invoice is reconciled against an expected 0.
//   3. Every id in either map lands in exactly one bucket:
//
//      | Expected | Claimed | Bucket                                  |
//      |----------|---------|-----------------------------------------|
//      | yes      | no      | MissingInVAT  ("No VAT claimed ...")    |
//      | no       | yes     | MissingInCost ("VAT claimed but ...")   |
//      | yes      | yes     | matched, or Mismatched beyond tolerance |
//
//      A claim against an invoice whose expected VAT is exactly zero is also
//      reported as a zero-rate claim, whichever bucket it is in.
//   4. Sums are kept at full precision; output amounts are rounded half away
//      from zero to two places.
//
// =============================================================================

package reconciler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/vat-checker/internal/types"
)

// =============================================================================
// ERRORS AND DEFAULTS
// =============================================================================

var (
	// ErrMissingRates is returned when no rate mapping is supplied.
	ErrMissingRates = errors.New("rate mapping is required")

	// ErrMissingLedger is returned when a ledger reference is nil.
	ErrMissingLedger = errors.New("both cost and VAT ledgers are required")
)

// DefaultTolerance is the largest absolute difference still counted as a match.
var DefaultTolerance = decimal.New(1, -2)

// DefaultCurrencySymbol prefixes amounts in issue messages.
const DefaultCurrencySymbol = "£"

// Issue messages.
const (
	MsgNoClaim       = "No VAT claimed for this invoice"
	MsgNoCostLines   = "VAT claimed but no matching cost lines"
	MsgZeroRateClaim = "Claimed VAT against a non-reclaimable or zero-rate flag"
)

// Options tunes matching and messages.
type Options struct {
	// Tolerance is inclusive. Zero uses DefaultTolerance.
	Tolerance decimal.Decimal

	// CurrencySymbol is used in mismatch messages. Empty uses "£".
	CurrencySymbol string
}

func (o Options) withDefaults() Options {
	if !o.Tolerance.IsPositive() {
		o.Tolerance = DefaultTolerance
	}
	if o.CurrencySymbol == "" {
		o.CurrencySymbol = DefaultCurrencySymbol
	}
	return o
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// IssueKind classifies a reported issue.
type IssueKind string

const (
	IssueMissingClaim  IssueKind = "missing_claim"
	IssueMissingCost   IssueKind = "missing_cost"
	IssueMismatch      IssueKind = "mismatch"
	IssueZeroRateClaim IssueKind = "zero_rate_claim"
)

// Issue is one reported reconciliation problem. Amounts are rounded.
type Issue struct {
	Invoice     string          `json:"invoice"`
	Kind        IssueKind       `json:"kind"`
	Error       string          `json:"error"`
	Supplier    string          `json:"supplier,omitempty"`
	ExpectedVAT decimal.Decimal `json:"expectedVat"`
	ClaimedVAT  decimal.Decimal `json:"claimedVat"`
	CostTotal   decimal.Decimal `json:"costTotal"`
	Flags       []string        `json:"flags"`
}

// Mismatch details an invoice whose claim differs from the expected VAT.
type Mismatch struct {
	Invoice     string          `json:"invoice"`
	Supplier    string          `json:"supplier,omitempty"`
	ExpectedVAT decimal.Decimal `json:"expectedVat"`
	ClaimedVAT  decimal.Decimal `json:"claimedVat"`
	Diff        decimal.Decimal `json:"diff"`
	CostTotal   decimal.Decimal `json:"costTotal"`
	Flags       []string        `json:"flags"`
	Error       string          `json:"error"`
}

// Result is the output of one reconciliation.
type Result struct {
	ExpectedTotal decimal.Decimal `json:"expectedTotal"`
	ClaimedTotal  decimal.Decimal `json:"claimedTotal"`
	Variance      decimal.Decimal `json:"variance"`

	CountInvoices int `json:"countInvoices"`
	CountMatched  int `json:"countMatched"`

	// Matched lists ids whose claim is within tolerance.
	Matched []string `json:"matched"`

	// MissingInVAT lists ids with expected VAT but no claim.
	MissingInVAT []string `json:"missingInVat"`

	// MissingInCost lists ids with a claim but no cost lines at all.
	MissingInCost []string `json:"missingInCost"`

	Mismatched []Mismatch `json:"mismatched"`
	Issues     []Issue    `json:"issues"`

	// VATByInvoice is the claimed VAT per invoice at full precision.
	VATByInvoice map[string]decimal.Decimal `json:"vatByInvoice"`

	// FlatCostLines are the cost rows that carry an invoice id.
	FlatCostLines []types.Row `json:"-"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// costInvoice accumulates the cost side of one invoice.
type costInvoice struct {
	expected decimal.Decimal
	present  bool
	total    decimal.Decimal
	flags    []string
	supplier string
}

func (c *costInvoice) addFlag(flag string) {
	if flag == "" {
		return
	}
	for _, f := range c.flags {
		if f == flag {
			return
		}
	}
	c.flags = append(c.flags, flag)
}

// Reconcile matches expected against claimed VAT per invoice.
//
// PARAMETERS:
//   - cost:  The cost ledger.
//   - vat:   The VAT ledger.
//   - rates: The flag-to-role mapping.
//   - opts:  Tolerance and message options.
//
// RETURNS:
//   - The reconciliation result.
//   - ErrMissingRates or ErrMissingLedger for an invalid invocation. Data
//     problems never produce an error.
func Reconcile(cost, vat *types.ParsedFile, rates *types.RateMapping, opts Options) (*Result, error) {
	if rates == nil {
		return nil, ErrMissingRates
	}
	if cost == nil || vat == nil {
		return nil, ErrMissingLedger
	}
	opts = opts.withDefaults()

	// Step 1: claimed VAT.
	claimed := make(map[string]decimal.Decimal)
	claimSupplier := make(map[string]string)
	for _, row := range vat.Rows {
		id := row.InvoiceKey()
		if id == "" {
			continue
		}
		claimed[id] = claimed[id].Add(row.VATOrZero())
		if claimSupplier[id] == "" {
			claimSupplier[id] = row.Supplier
		}
	}

	// Step 2: expected VAT.
	costs := make(map[string]*costInvoice)
	flat := make([]types.Row, 0, len(cost.Rows))
	for _, row := range cost.Rows {
		id := row.InvoiceKey()
		if id == "" {
			continue
		}
		flat = append(flat, row)

		inv, ok := costs[id]
		if !ok {
			inv = &costInvoice{}
			costs[id] = inv
		}
		inv.total = inv.total.Add(row.NetOrZero())
		inv.addFlag(strings.TrimSpace(row.TaxFlag))
		if inv.supplier == "" {
			inv.supplier = row.Supplier
		}

		role := rates.RoleFor(row.TaxFlag)
		if role == types.RoleFunding || role == types.RoleSales20 {
			continue
		}
		inv.present = true
		inv.expected = inv.expected.Add(row.NetOrZero().Mul(role.Rate()))
	}

	// Step 3: union and bucket.
	ids := make([]string, 0, len(claimed)+len(costs))
	for id := range claimed {
		ids = append(ids, id)
	}
	for id, inv := range costs {
		if _, dup := claimed[id]; !dup && inv.present {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	result := &Result{
		Matched:       []string{},
		MissingInVAT:  []string{},
		MissingInCost: []string{},
		Mismatched:    []Mismatch{},
		Issues:        []Issue{},
		VATByInvoice:  claimed,
		FlatCostLines: flat,
		CountInvoices: len(ids),
	}

	var expectedTotal, claimedTotal decimal.Decimal
	for _, id := range ids {
		inv := costs[id]
		claim, hasClaim := claimed[id]
		// Funding and sales lines alone expect nothing, but a claim against
		// them is still reconciled against zero.
		hasExpected := inv != nil && (inv.present || hasClaim)

		issue := Issue{
			Invoice:    id,
			ClaimedVAT: round2(claim),
			Flags:      []string{},
		}
		if inv != nil {
			issue.Supplier = inv.supplier
			issue.CostTotal = round2(inv.total)
			issue.Flags = append(issue.Flags, inv.flags...)
		}
		if issue.Supplier == "" {
			issue.Supplier = claimSupplier[id]
		}

		var expected decimal.Decimal
		if hasExpected {
			expected = inv.expected
			issue.ExpectedVAT = round2(expected)
		}
		expectedTotal = expectedTotal.Add(expected)
		claimedTotal = claimedTotal.Add(claim)

		switch {
		case hasExpected && !hasClaim:
			result.MissingInVAT = append(result.MissingInVAT, id)
			issue.Kind, issue.Error = IssueMissingClaim, MsgNoClaim
			result.Issues = append(result.Issues, issue)

		case hasClaim && !hasExpected:
			result.MissingInCost = append(result.MissingInCost, id)
			issue.Kind, issue.Error = IssueMissingCost, MsgNoCostLines
			result.Issues = append(result.Issues, issue)

		default:
			diff := expected.Sub(claim)
			if diff.Abs().GreaterThan(opts.Tolerance) {
				msg := fmt.Sprintf("Mismatch: expected %s%s, claimed %s%s",
					opts.CurrencySymbol, round2(expected).StringFixed(2),
					opts.CurrencySymbol, round2(claim).StringFixed(2))
				result.Mismatched = append(result.Mismatched, Mismatch{
					Invoice:     id,
					Supplier:    issue.Supplier,
					ExpectedVAT: issue.ExpectedVAT,
					ClaimedVAT:  issue.ClaimedVAT,
					Diff:        round2(diff),
					CostTotal:   issue.CostTotal,
					Flags:       issue.Flags,
					Error:       msg,
				})
				issue.Kind, issue.Error = IssueMismatch, msg
				result.Issues = append(result.Issues, issue)
			} else {
				result.Matched = append(result.Matched, id)
			}
		}

		if hasExpected && expected.IsZero() && claim.GreaterThan(opts.Tolerance) {
			zero := issue
			zero.Kind, zero.Error = IssueZeroRateClaim, MsgZeroRateClaim
			result.Issues = append(result.Issues, zero)
		}
	}

	result.CountMatched = len(result.Matched)
	result.ExpectedTotal = round2(expectedTotal)
	result.ClaimedTotal = round2(claimedTotal)
	result.Variance = round2(expectedTotal.Sub(claimedTotal))

	return result, nil
}

// round2 rounds half away from zero to two decimal places.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
