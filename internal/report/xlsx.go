package report

import (
	"bytes"
	"context"
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ginjaninja78/vat-checker/internal/boxes"
)

// Sheet names of the XLSX report.
const (
	ReturnSheet = "VAT Return"
	IssuesSheet = "Issues"
)

// logoRows is the number of rows reserved above the title when a logo is
// embedded.
const logoRows = 5

// XLSXRenderer writes the return as an Excel workbook.
//
// LAYOUT (sheet "VAT Return"):
//
//	[logo, when given]
//	VAT Return
//	Company   | Acme Ltd
//	Period    | Q1 2025
//	Generated | 2025-04-01T09:00:00Z
//
//	Box | Label            | Amount
//	1   | VAT due on sales | £200.00
//	...
//
//	Expected reclaim | £120.00
//	Claimed reclaim  | £120.00
//	Variance         | £0.00
//	Summary          | ...
//
// Issues are listed on a second sheet.
type XLSXRenderer struct {
	log *zap.Logger
}

var _ Renderer = (*XLSXRenderer)(nil)

// NewXLSXRenderer creates an XLSXRenderer. A nil logger discards output.
func NewXLSXRenderer(log *zap.Logger) *XLSXRenderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &XLSXRenderer{log: log}
}

// Format implements Renderer.
func (r *XLSXRenderer) Format() string {
	return "xlsx"
}

// Render implements Renderer.
func (r *XLSXRenderer) Render(ctx context.Context, in Input) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkReady(in); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ReturnSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	styles, err := newStyles(f, in.symbol())
	if err != nil {
		return nil, err
	}

	row := 1
	if r.addLogo(f, in.Logo) {
		row += logoRows
	}

	if err := writeReturnSheet(f, styles, in, row); err != nil {
		return nil, err
	}
	if err := writeIssuesSheet(f, styles, in); err != nil {
		return nil, err
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buffer.Bytes(), nil
}

// addLogo embeds the logo at A1. Unrecognised or undecodable images are
// logged and skipped.
func (r *XLSXRenderer) addLogo(f *excelize.File, logo []byte) bool {
	if len(logo) == 0 {
		return false
	}

	ext := imageExtension(logo)
	if ext == "" {
		r.log.Warn("Ignoring logo: unrecognised image format", zap.Int("bytes", len(logo)))
		return false
	}

	err := f.AddPictureFromBytes(ReturnSheet, "A1", &excelize.Picture{
		Extension: ext,
		File:      logo,
		Format: &excelize.GraphicOptions{
			LockAspectRatio: true,
			OffsetX:         4,
			OffsetY:         4,
		},
	})
	if err != nil {
		r.log.Warn("Ignoring logo: could not embed image", zap.Error(err))
		return false
	}
	return true
}

// imageExtension sniffs PNG, JPEG and GIF signatures.
func imageExtension(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return ".png"
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return ".jpg"
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return ".gif"
	default:
		return ""
	}
}

// =============================================================================
// STYLES
// =============================================================================

type styleSet struct {
	title    int
	header   int
	label    int
	currency int
}

func newStyles(f *excelize.File, symbol string) (styleSet, error) {
	var s styleSet
	var err error

	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}}); err != nil {
		return s, fmt.Errorf("failed to create title style: %w", err)
	}

	s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"305496"}},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}

	if s.label, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, fmt.Errorf("failed to create label style: %w", err)
	}

	numFmt := fmt.Sprintf(`"%s"#,##0.00;-"%s"#,##0.00`, symbol, symbol)
	if s.currency, err = f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt}); err != nil {
		return s, fmt.Errorf("failed to create currency style: %w", err)
	}

	return s, nil
}

// =============================================================================
// SHEETS
// =============================================================================

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func writeReturnSheet(f *excelize.File, s styleSet, in Input, row int) error {
	sheet := ReturnSheet
	set := func(col string, r int, value interface{}, style int) error {
		if err := f.SetCellValue(sheet, cell(col, r), value); err != nil {
			return fmt.Errorf("failed to write %s: %w", cell(col, r), err)
		}
		if style != 0 {
			return f.SetCellStyle(sheet, cell(col, r), cell(col, r), style)
		}
		return nil
	}

	if err := set("A", row, "VAT Return", s.title); err != nil {
		return err
	}
	row++

	details := [][2]string{
		{"Company", in.Company},
		{"Period", in.Period},
		{"Generated", in.generatedAt().UTC().Format(time.RFC3339)},
	}
	if in.RunID != "" {
		details = append(details, [2]string{"Run ID", in.RunID})
	}
	for _, d := range details {
		if err := set("A", row, d[0], s.label); err != nil {
			return err
		}
		if err := set("B", row, d[1], 0); err != nil {
			return err
		}
		row++
	}
	row++

	if err := f.SetSheetRow(sheet, cell("A", row), &[]interface{}{"Box", "Label", "Amount"}); err != nil {
		return fmt.Errorf("failed to write box header: %w", err)
	}
	if err := f.SetCellStyle(sheet, cell("A", row), cell("C", row), s.header); err != nil {
		return err
	}
	row++

	for n := 1; n <= boxes.Count; n++ {
		if err := set("A", row, n, 0); err != nil {
			return err
		}
		if err := set("B", row, boxes.Labels[n], 0); err != nil {
			return err
		}
		if err := set("C", row, in.Boxes.Box(n).InexactFloat64(), s.currency); err != nil {
			return err
		}
		row++
	}
	row++

	reclaim := []struct {
		label string
		value float64
	}{
		{"Expected reclaim", in.Boxes.ExpectedReclaim.InexactFloat64()},
		{"Claimed reclaim", in.Boxes.ClaimedReclaim.InexactFloat64()},
		{"Variance", in.Boxes.Variance.InexactFloat64()},
	}
	for _, item := range reclaim {
		if err := set("B", row, item.label, s.label); err != nil {
			return err
		}
		if err := set("C", row, item.value, s.currency); err != nil {
			return err
		}
		row++
	}

	if in.Summary != "" {
		row++
		if err := set("A", row, "Summary", s.label); err != nil {
			return err
		}
		if err := set("B", row, in.Summary, 0); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 12); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", 42); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "C", "C", 16)
}

func writeIssuesSheet(f *excelize.File, s styleSet, in Input) error {
	if _, err := f.NewSheet(IssuesSheet); err != nil {
		return fmt.Errorf("failed to create issues sheet: %w", err)
	}

	header := []interface{}{"Invoice", "Kind", "Message", "Expected VAT", "Claimed VAT"}
	if err := f.SetSheetRow(IssuesSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write issues header: %w", err)
	}
	if err := f.SetCellStyle(IssuesSheet, "A1", "E1", s.header); err != nil {
		return err
	}

	for i, issue := range in.issues() {
		row := i + 2
		values := []interface{}{
			issue.Invoice,
			string(issue.Kind),
			issue.Error,
			issue.ExpectedVAT.InexactFloat64(),
			issue.ClaimedVAT.InexactFloat64(),
		}
		if err := f.SetSheetRow(IssuesSheet, cell("A", row), &values); err != nil {
			return fmt.Errorf("failed to write issue row %d: %w", row, err)
		}
		if err := f.SetCellStyle(IssuesSheet, cell("D", row), cell("E", row), s.currency); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(IssuesSheet, "A", "B", 16); err != nil {
		return err
	}
	return f.SetColWidth(IssuesSheet, "C", "C", 60)
}
