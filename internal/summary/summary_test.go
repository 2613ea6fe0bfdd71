package summary

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/vat-checker/internal/reconciler"
)

func sampleResult() *reconciler.Result {
	return &reconciler.Result{
		CountInvoices: 4,
		CountMatched:  2,
		MissingInCost: []string{"INV-3"},
		MissingInVAT:  []string{},
		Mismatched:    []reconciler.Mismatch{{Invoice: "INV-1"}},
		Variance:      decimal.RequireFromString("50"),
		Issues: []reconciler.Issue{
			{Invoice: "INV-1", Error: "a"},
			{Invoice: "INV-2", Error: "b"},
			{Invoice: "INV-3", Error: "c"},
			{Invoice: "INV-4", Error: "d"},
		},
	}
}

func TestFallback(t *testing.T) {
	req := NewRequest("Acme Ltd", "Q1 2025", sampleResult())

	assert.Equal(t,
		"Summary for Acme Ltd (Q1 2025). 4 invoices checked. 2 matched, 1 claimed without cost, "+
			"0 with cost but no claim, 1 mismatched. Variance £50.00.",
		Fallback(req))
}

func TestFallbackDefaults(t *testing.T) {
	req := NewRequest("", "", nil)
	req.CurrencySymbol = "€"

	assert.Equal(t,
		"Summary for your company. 0 invoices checked. 0 matched, 0 claimed without cost, "+
			"0 with cost but no claim, 0 mismatched. Variance €0.00.",
		Fallback(req))
}

func TestNewRequestCapsSampleIssues(t *testing.T) {
	req := NewRequest("Acme", "P1", sampleResult())
	require.Len(t, req.SampleIssues, MaxSampleIssues)
	assert.Equal(t, "INV-3", req.SampleIssues[2].Invoice)
}

type stubSummarizer struct {
	text string
	err  error
}

func (s stubSummarizer) Summarize(context.Context, Request) (string, error) {
	return s.text, s.err
}

func TestWithFallback(t *testing.T) {
	req := NewRequest("Acme", "P1", sampleResult())
	ctx := context.Background()

	text, err := WithFallback(stubSummarizer{text: "  All good.  "}, nil).Summarize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "All good.", text)

	text, err = WithFallback(stubSummarizer{err: errors.New("quota")}, nil).Summarize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, Fallback(req), text)

	text, err = WithFallback(stubSummarizer{}, nil).Summarize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, Fallback(req), text)

	text, err = WithFallback(nil, nil).Summarize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, Fallback(req), text)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(NewRequest("", "Q2", sampleResult()))

	assert.Contains(t, prompt, "Company: N/A, Period: Q2.")
	assert.Contains(t, prompt, `"invoicesChecked":4`)
	assert.Contains(t, prompt, `"invoice":"INV-1"`)
	assert.NotContains(t, prompt, "INV-4")
}

func TestGemini(t *testing.T) {
	_, err := NewGemini("", "")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	g, err := NewGemini("key", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultGeminiModel, g.Model())

	var gotModel, gotPrompt string
	g.generate = func(_ context.Context, model, prompt string) (string, error) {
		gotModel, gotPrompt = model, prompt
		return "Two invoices need attention.", nil
	}

	req := NewRequest("Acme", "Q1", sampleResult())
	text, err := g.Summarize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Two invoices need attention.", text)
	assert.Equal(t, DefaultGeminiModel, gotModel)
	assert.Equal(t, BuildPrompt(req), gotPrompt)

	g.generate = func(context.Context, string, string) (string, error) {
		return "", errors.New("unavailable")
	}
	_, err = g.Summarize(context.Background(), req)
	assert.Error(t, err)
}
