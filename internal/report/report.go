// =============================================================================
// VAT Checker - Report Rendering
// =============================================================================
//
// This module turns the box figures of a reconciliation into a downloadable
// VAT-return report. Two renderers exist:
//
//   - XLSXRenderer: a workbook with the company logo, the nine boxes and an
//     issues sheet.
//   - XMLRenderer:  an indented XML document with the same content.
//
// A report is only rendered when the reclaim variance is within tolerance,
// unless the caller forces it.
//
// =============================================================================

package report

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ginjaninja78/vat-checker/internal/boxes"
	"github.com/ginjaninja78/vat-checker/internal/reconciler"
)

// ErrNotReady is returned when the reclaim variance is outside tolerance and
// rendering was not forced.
var ErrNotReady = errors.New("reclaim variance is outside tolerance; fix the issues or force the report")

// DefaultPeriod is used in file names when no period is given.
const DefaultPeriod = "Period"

// Input carries everything a renderer needs.
type Input struct {
	Boxes          boxes.Result
	Company        string
	Period         string
	CurrencySymbol string

	// Logo is optional image bytes (PNG, JPEG or GIF). Anything else is
	// ignored.
	Logo []byte

	// Reconciliation, when set, adds the issue list to the report.
	Reconciliation *reconciler.Result

	Summary     string
	RunID       string
	GeneratedAt time.Time

	// Force renders even when the variance is outside tolerance.
	Force bool
}

// Renderer produces one report format.
type Renderer interface {
	// Format returns the file extension without the dot, e.g. "xlsx".
	Format() string

	// Render produces the report bytes.
	Render(ctx context.Context, in Input) ([]byte, error)
}

// ForFormat returns the renderer for a format name, or nil.
func ForFormat(format string) Renderer {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "xlsx":
		return NewXLSXRenderer(nil)
	case "xml":
		return NewXMLRenderer()
	default:
		return nil
	}
}

// FileName returns the base report name for a period, without extension.
//
// EXAMPLE:
//
//	FileName("Q1 2025") == "VAT_Return_Q1_2025"
func FileName(period string) string {
	period = strings.TrimSpace(period)
	if period == "" {
		period = DefaultPeriod
	}
	return "VAT_Return_" + strings.Join(strings.Fields(period), "_")
}

// checkReady applies the render gate.
func checkReady(in Input) error {
	if in.Force || in.Boxes.RenderReady() {
		return nil
	}
	return ErrNotReady
}

func (in Input) symbol() string {
	if in.CurrencySymbol == "" {
		return reconciler.DefaultCurrencySymbol
	}
	return in.CurrencySymbol
}

func (in Input) generatedAt() time.Time {
	if in.GeneratedAt.IsZero() {
		return time.Now()
	}
	return in.GeneratedAt
}

func (in Input) issues() []reconciler.Issue {
	if in.Reconciliation == nil {
		return nil
	}
	return in.Reconciliation.Issues
}
