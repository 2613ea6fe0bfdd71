package boxes

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ginjaninja78/vat-checker/internal/types"
)

var rates = &types.RateMapping{
	Std20:      "S",
	Red5:       "R5",
	Red4:       "R4",
	Zero:       "Z",
	Exempt:     "E",
	OS:         "OS",
	RCGoods:    "RCG",
	RCServices: "RCS",
	Sales20:    "SALES",
	Funding:    "FUND",
}

func line(net, flag string) types.Row {
	row := types.Row{Invoice: "INV", TaxFlag: flag}
	if net != "" {
		row.Net = decimal.NewNullDecimal(decimal.RequireFromString(net))
	}
	return row
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertBox(t *testing.T, r Result, n int, want string) {
	t.Helper()
	assert.True(t, dec(want).Equal(r.Box(n)), "box %d: want %s got %s", n, want, r.Box(n))
}

func TestComputeSingleStandardLine(t *testing.T) {
	r := Compute(
		[]types.Row{line("1000.00", "S")},
		map[string]decimal.Decimal{"INV-001": dec("200.00")},
		rates,
	)

	assertBox(t, r, 4, "200")
	assertBox(t, r, 7, "1000")
	assertBox(t, r, 5, "-200")
	assert.True(t, r.Variance.IsZero())
	assert.True(t, r.RenderReady())
}

func TestComputeAllRoles(t *testing.T) {
	lines := []types.Row{
		line("1000", "s"),
		line("100", "R5"),
		line("100", " r4 "),
		line("50", "Z"),
		line("50", "E"),
		line("50", "OS"),
		line("50", "RCG"),
		line("50", "RCS"),
		line("2000", "SALES"),
		line("5000", "FUND"),
		line("7", "unmapped"),
		line("", "S"),
	}
	r := Compute(lines, map[string]decimal.Decimal{"A": dec("100"), "B": dec("109")}, rates)

	assertBox(t, r, 1, "400")
	assertBox(t, r, 2, "0")
	assertBox(t, r, 3, "400")
	assertBox(t, r, 4, "209")
	assertBox(t, r, 5, "191")
	assertBox(t, r, 6, "2000")
	assertBox(t, r, 7, "1450")
	assertBox(t, r, 8, "0")
	assertBox(t, r, 9, "0")

	// 1000 x 20% + 100 x 5% + 100 x 4%
	assert.True(t, dec("209").Equal(r.ExpectedReclaim))
	assert.True(t, dec("209").Equal(r.ClaimedReclaim))
	assert.True(t, r.RenderReady())
}

func TestComputeFundingExcluded(t *testing.T) {
	r := Compute([]types.Row{line("500", "FUND")}, nil, rates)

	for n := 1; n <= Count; n++ {
		assertBox(t, r, n, "0")
	}
	assert.True(t, r.ExpectedReclaim.IsZero())
}

func TestComputeNegativeNetsFloorAtZero(t *testing.T) {
	r := Compute([]types.Row{line("-100", "SALES"), line("-50", "Z")}, nil, rates)

	assertBox(t, r, 1, "-20")
	assertBox(t, r, 6, "0")
	assertBox(t, r, 7, "0")
}

func TestComputeRounding(t *testing.T) {
	r := Compute(
		[]types.Row{line("0.025", "SALES"), line("10.025", "S")},
		map[string]decimal.Decimal{"A": dec("2.004"), "B": dec("0.001")},
		rates,
	)

	// 0.025 x 0.20 = 0.005 rounds away from zero.
	assertBox(t, r, 1, "0.01")
	assertBox(t, r, 6, "0.03")
	assertBox(t, r, 4, "2.01")
	assert.True(t, dec("2.01").Equal(r.ExpectedReclaim))
	assert.True(t, r.Variance.IsZero())
}

func TestRenderReady(t *testing.T) {
	tests := []struct {
		variance string
		want     bool
	}{
		{"0", true},
		{"0.01", true},
		{"-0.01", true},
		{"0.02", false},
		{"-50", false},
	}
	for _, tt := range tests {
		r := Result{Variance: dec(tt.variance)}
		assert.Equal(t, tt.want, r.RenderReady(), tt.variance)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	lines := []types.Row{line("333.33", "S"), line("12.5", "SALES")}
	claimed := map[string]decimal.Decimal{"X": dec("66.67")}

	assert.Equal(t, Compute(lines, claimed, rates), Compute(lines, claimed, rates))
}

func TestComputeNilRates(t *testing.T) {
	r := Compute([]types.Row{line("100", "S")}, map[string]decimal.Decimal{"A": dec("20")}, nil)

	assertBox(t, r, 7, "0")
	assertBox(t, r, 4, "20")
	assert.False(t, r.RenderReady())
}

func TestLabels(t *testing.T) {
	assert.Len(t, Labels, Count)
	assert.Equal(t, "VAT due on sales", Labels[1])
}
