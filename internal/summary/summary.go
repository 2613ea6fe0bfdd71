// =============================================================================
// VAT Checker - Run Summary
// =============================================================================
//
// This module produces the short plain-language summary shown after a
// reconciliation. A language model may write it; when none is configured, or
// the call fails, a deterministic sentence is built from the same totals.
//
// =============================================================================

package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ginjaninja78/vat-checker/internal/reconciler"
)

// MaxSampleIssues is the number of issues passed to the summarizer.
const MaxSampleIssues = 3

// Totals are the aggregate counts of one reconciliation.
type Totals struct {
	InvoicesChecked int             `json:"invoicesChecked"`
	Matched         int             `json:"matched"`
	MissingInCost   int             `json:"missingInCost"`
	MissingInVAT    int             `json:"missingInVat"`
	Mismatched      int             `json:"mismatched"`
	ExpectedTotal   decimal.Decimal `json:"expectedTotal"`
	ClaimedTotal    decimal.Decimal `json:"claimedTotal"`
	Variance        decimal.Decimal `json:"variance"`
}

// Request is the input of a summarizer.
type Request struct {
	Company        string             `json:"company"`
	Period         string             `json:"period"`
	CurrencySymbol string             `json:"-"`
	Totals         Totals             `json:"totals"`
	SampleIssues   []reconciler.Issue `json:"sampleIssues"`
}

// Summarizer writes a summary of a reconciliation.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// NewRequest builds a summary request from a reconciliation result.
func NewRequest(company, period string, result *reconciler.Result) Request {
	req := Request{Company: company, Period: period, SampleIssues: []reconciler.Issue{}}
	if result == nil {
		return req
	}

	req.Totals = Totals{
		InvoicesChecked: result.CountInvoices,
		Matched:         result.CountMatched,
		MissingInCost:   len(result.MissingInCost),
		MissingInVAT:    len(result.MissingInVAT),
		Mismatched:      len(result.Mismatched),
		ExpectedTotal:   result.ExpectedTotal,
		ClaimedTotal:    result.ClaimedTotal,
		Variance:        result.Variance,
	}

	issues := result.Issues
	if len(issues) > MaxSampleIssues {
		issues = issues[:MaxSampleIssues]
	}
	req.SampleIssues = append(req.SampleIssues, issues...)
	return req
}

// =============================================================================
// FALLBACK
// =============================================================================

// Fallback returns the deterministic summary sentence.
//
// EXAMPLE:
//
//	Summary for Acme Ltd (Q1 2025). 4 invoices checked. 2 matched,
//	1 claimed without cost, 0 with cost but no claim, 1 mismatched.
//	Variance £50.00.
func Fallback(req Request) string {
	company := strings.TrimSpace(req.Company)
	if company == "" {
		company = "your company"
	}
	symbol := req.CurrencySymbol
	if symbol == "" {
		symbol = reconciler.DefaultCurrencySymbol
	}

	var b strings.Builder
	b.WriteString("Summary for " + company)
	if period := strings.TrimSpace(req.Period); period != "" {
		b.WriteString(" (" + period + ")")
	}
	b.WriteString(". ")

	t := req.Totals
	fmt.Fprintf(&b, "%d invoices checked. ", t.InvoicesChecked)
	fmt.Fprintf(&b, "%d matched, %d claimed without cost, %d with cost but no claim, %d mismatched. ",
		t.Matched, t.MissingInCost, t.MissingInVAT, t.Mismatched)
	fmt.Fprintf(&b, "Variance %s%s.", symbol, t.Variance.StringFixed(2))

	return b.String()
}

// Static is a Summarizer that always returns the fallback sentence.
type Static struct{}

// Summarize implements Summarizer.
func (Static) Summarize(_ context.Context, req Request) (string, error) {
	return Fallback(req), nil
}

// =============================================================================
// FALLBACK WRAPPER
// =============================================================================

type withFallback struct {
	next Summarizer
	log  *zap.Logger
}

// WithFallback wraps a summarizer so that errors and empty answers are
// replaced by the fallback sentence. The returned Summarizer never fails.
func WithFallback(next Summarizer, log *zap.Logger) Summarizer {
	if log == nil {
		log = zap.NewNop()
	}
	if next == nil {
		next = Static{}
	}
	return &withFallback{next: next, log: log}
}

func (w *withFallback) Summarize(ctx context.Context, req Request) (string, error) {
	text, err := w.next.Summarize(ctx, req)
	if err != nil {
		w.log.Warn("Summarizer failed; using fallback summary", zap.Error(err))
		return Fallback(req), nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		w.log.Warn("Summarizer returned no text; using fallback summary")
		return Fallback(req), nil
	}
	return text, nil
}

// =============================================================================
// PROMPT
// =============================================================================

// BuildPrompt renders the language-model prompt for a request.
func BuildPrompt(req Request) string {
	orNA := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "N/A"
		}
		return s
	}

	totals, _ := json.Marshal(req.Totals)
	issues, _ := json.Marshal(req.SampleIssues)

	return strings.Join([]string{
		"Write a concise, professional 2-3 sentence summary for a VAT reconciliation.",
		fmt.Sprintf("Company: %s, Period: %s.", orNA(req.Company), orNA(req.Period)),
		"Totals: " + string(totals),
		"Top issues: " + string(issues),
		"Tone: clear, non-fluffy, useful for a production accountant.",
	}, "\n")
}
