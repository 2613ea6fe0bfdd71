// =============================================================================
// VAT Checker - VAT Return Boxes
// =============================================================================
//
// This module aggregates reconciled data into the nine VAT-return figures.
//
// BOX FORMULAS:
//
//   | Box | Label                                   | Value                 |
//   |-----|-----------------------------------------|-----------------------|
//   | 1   | VAT due on sales                        | salesNet x 20%        |
//   | 2   | VAT due on acquisitions (NI from EU)    | 0                     |
//   | 3   | Total VAT due (1 + 2)                   | Box 1 + Box 2         |
//   | 4   | VAT reclaimed on purchases              | sum of claimed VAT    |
//   | 5   | Net VAT to pay or reclaim (3 - 4)       | Box 3 - Box 4         |
//   | 6   | Total value of sales (excl. VAT)        | max(0, salesNet)      |
//   | 7   | Total value of purchases (excl. VAT)    | max(0, purchasesNet)  |
//   | 8   | NI dispatches to EU (excl. VAT)         | 0                     |
//   | 9   | NI acquisitions from EU (excl. VAT)     | 0                     |
//
// Funding lines contribute nowhere. Every purchase role counts towards Box 7
// but only the standard and reduced roles add to the expected reclaim.
//
// =============================================================================

package boxes

import (
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/vat-checker/internal/types"
)

// Count is the number of boxes on the return.
const Count = 9

// Labels holds the printed label of each box, keyed by box number.
var Labels = map[int]string{
	1: "VAT due on sales",
	2: "VAT due on acquisitions (NI from EU)",
	3: "Total VAT due (1 + 2)",
	4: "VAT reclaimed on purchases",
	5: "Net VAT to pay or reclaim (3 - 4)",
	6: "Total value of sales (excl. VAT)",
	7: "Total value of purchases (excl. VAT)",
	8: "NI dispatches to EU (excl. VAT)",
	9: "NI acquisitions from EU (excl. VAT)",
}

// RenderTolerance is the largest reclaim variance at which a return may be
// rendered.
var RenderTolerance = decimal.New(1, -2)

var salesRate = decimal.New(20, -2)

// Result holds the rounded box figures and the reclaim comparison.
type Result struct {
	Boxes           map[int]decimal.Decimal `json:"boxes"`
	ExpectedReclaim decimal.Decimal         `json:"expectedReclaim"`
	ClaimedReclaim  decimal.Decimal         `json:"claimedReclaim"`
	Variance        decimal.Decimal         `json:"variance"`
}

// Box returns the figure for box n, or zero for an unknown box.
func (r Result) Box(n int) decimal.Decimal {
	return r.Boxes[n]
}

// RenderReady reports whether the reclaim variance is within tolerance.
func (r Result) RenderReady() bool {
	return r.Variance.Abs().LessThanOrEqual(RenderTolerance)
}

// Compute aggregates cost lines and claimed VAT into the return figures.
//
// PARAMETERS:
//   - costLines:        Normalized cost-ledger rows.
//   - claimedByInvoice: Claimed VAT per invoice.
//   - rates:            The flag-to-role mapping. A nil mapping matches no
//     flags.
//
// RETURNS:
//   - The box result, rounded half away from zero to two places.
func Compute(costLines []types.Row, claimedByInvoice map[string]decimal.Decimal, rates *types.RateMapping) Result {
	var salesNet, purchasesNet, expectedReclaim decimal.Decimal

	for _, line := range costLines {
		role := rates.RoleFor(line.TaxFlag)
		net := line.NetOrZero()

		switch {
		case role == types.RoleSales20:
			salesNet = salesNet.Add(net)
		case role == types.RoleFunding:
			continue
		case role.IsPurchase():
			purchasesNet = purchasesNet.Add(net)
			expectedReclaim = expectedReclaim.Add(net.Mul(role.Rate()))
		}
	}

	var claimedReclaim decimal.Decimal
	for _, claimed := range claimedByInvoice {
		claimedReclaim = claimedReclaim.Add(claimed)
	}

	box1 := salesNet.Mul(salesRate)
	box2 := decimal.Zero
	box3 := box1.Add(box2)
	box4 := claimedReclaim
	box5 := box3.Sub(box4)
	box6 := decimal.Max(decimal.Zero, salesNet)
	box7 := decimal.Max(decimal.Zero, purchasesNet)

	return Result{
		Boxes: map[int]decimal.Decimal{
			1: round2(box1),
			2: round2(box2),
			3: round2(box3),
			4: round2(box4),
			5: round2(box5),
			6: round2(box6),
			7: round2(box7),
			8: decimal.Zero,
			9: decimal.Zero,
		},
		ExpectedReclaim: round2(expectedReclaim),
		ClaimedReclaim:  round2(claimedReclaim),
		Variance:        round2(expectedReclaim.Sub(claimedReclaim)),
	}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
