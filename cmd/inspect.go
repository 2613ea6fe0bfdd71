// =============================================================================
// VAT Checker - Inspect Command
// =============================================================================
//
// This file defines the 'inspect' command, which shows how the checker reads
// each ledger file without reconciling anything. It is the first thing to run
// when a report looks wrong.
//
// COMMAND USAGE:
//   vatcheck inspect [files...] [--json]
//
// OUTPUT (per file):
//   kind, row count, invoice-id rate, VAT-account rate, narrative rate,
//   workbook sheets (XLSX only), headers, the first raw record and the first three non-empty rows,
//   followed by the cost/VAT classification.
//
// =============================================================================

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/vat-checker/internal/classifier"
	"github.com/ginjaninja78/vat-checker/internal/ingest"
	"github.com/ginjaninja78/vat-checker/internal/types"
	"github.com/ginjaninja78/vat-checker/internal/xlsxparser"
)

// sampleRows is the number of normalized rows shown per file.
const sampleRows = 3

var inspectJSON bool

// inspectCmd represents the 'inspect' command.
var inspectCmd = &cobra.Command{
	Use:   "inspect files...",
	Short: "Show how ledger files are read and classified",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print diagnostics as JSON")
}

// fileDiagnostics is the inspect view of one parsed file.
type fileDiagnostics struct {
	File               string            `json:"file"`
	Kind               types.FormatKind  `json:"kind"`
	Rows               int               `json:"rows"`
	InvoicePresentRate float64           `json:"invoicePresentRate"`
	VATAccountRatio    float64           `json:"vatAccountRatio"`
	NarrativeVATRatio  float64           `json:"narrativeVatRatio"`
	Sheets             []string          `json:"sheets,omitempty"`
	Headers            []string          `json:"headers"`
	SampleRaw          map[string]string `json:"sampleRaw"`
	FirstRows          []rowView         `json:"firstRows"`
}

type rowView struct {
	Invoice  string `json:"invoice"`
	Supplier string `json:"supplier"`
	Account  string `json:"account"`
	Net      string `json:"net"`
	VAT      string `json:"vat"`
	TaxFlag  string `json:"ff3"`
}

type inspectOutput struct {
	Files     []fileDiagnostics `json:"files"`
	Cost      string            `json:"cost,omitempty"`
	VAT       string            `json:"vat,omitempty"`
	Heuristic string            `json:"heuristic"`
}

func runInspect(paths []string) error {
	opts := ingest.Options{
		SampleCap:        mainConfig.XMLSampleCap,
		VATAccountPrefix: mainConfig.VATAccountPrefix,
		Logger:           log,
	}

	var files []*types.ParsedFile
	out := inspectOutput{}
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		file := ingest.Parse(content, filepath.Base(path), opts)
		files = append(files, file)

		d := diagnose(file)
		d.Sheets = workbookSheets(content, file.Meta.Kind)
		out.Files = append(out.Files, d)
	}

	assignment := classifier.ClassifyWithOptions(classifier.Options{
		AccountThreshold:   mainConfig.AccountThreshold,
		NarrativeThreshold: mainConfig.NarrativeThreshold,
	}, files...)
	if assignment.Cost != nil {
		out.Cost = assignment.Cost.Name
	}
	if assignment.VAT != nil {
		out.VAT = assignment.VAT.Name
	}
	out.Heuristic = string(assignment.Heuristic)

	if inspectJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode diagnostics: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printDiagnostics(out)
	return nil
}

func diagnose(file *types.ParsedFile) fileDiagnostics {
	d := fileDiagnostics{
		File:               file.Name,
		Kind:               file.Meta.Kind,
		Rows:               file.Meta.Count,
		InvoicePresentRate: file.Meta.InvoicePresentRate,
		VATAccountRatio:    file.Meta.VATAccountRatio,
		NarrativeVATRatio:  file.Meta.NarrativeVATRatio,
		Headers:            file.Meta.Headers,
		SampleRaw:          file.Meta.SampleRaw.Map(),
		FirstRows:          []rowView{},
	}

	for _, row := range file.Rows {
		if len(d.FirstRows) == sampleRows {
			break
		}
		if row.Invoice == "" && !row.Net.Valid && !row.VAT.Valid {
			continue
		}
		d.FirstRows = append(d.FirstRows, rowView{
			Invoice:  row.Invoice,
			Supplier: row.Supplier,
			Account:  row.Account,
			Net:      amountText(row.Net.Valid, row.Net.Decimal.String()),
			VAT:      amountText(row.VAT.Valid, row.VAT.Decimal.String()),
			TaxFlag:  row.TaxFlag,
		})
	}
	return d
}

// workbookSheets lists the sheets of an XLSX ledger. Only the first sheet is
// read, so extra sheets are worth seeing.
func workbookSheets(content []byte, kind types.FormatKind) []string {
	if kind != types.FormatXLSX {
		return nil
	}
	sheets, err := xlsxparser.SheetNames(content)
	if err != nil {
		log.Debug("Could not list workbook sheets", zap.Error(err))
		return nil
	}
	return sheets
}

func amountText(valid bool, value string) string {
	if !valid {
		return "-"
	}
	return value
}

func printDiagnostics(out inspectOutput) {
	for _, d := range out.Files {
		fmt.Printf("=== %s ===\n", d.File)
		fmt.Printf("Kind:            %s\n", d.Kind)
		fmt.Printf("Rows:            %d\n", d.Rows)
		fmt.Printf("Invoice ids:     %.0f%%\n", d.InvoicePresentRate*100)
		fmt.Printf("VAT accounts:    %.0f%%\n", d.VATAccountRatio*100)
		fmt.Printf("VAT narratives:  %.0f%%\n", d.NarrativeVATRatio*100)
		if len(d.Sheets) > 0 {
			fmt.Printf("Sheets:          %s (first sheet read)\n", strings.Join(d.Sheets, ", "))
		}
		fmt.Printf("Headers:         %s\n", strings.Join(d.Headers, ", "))

		if len(d.SampleRaw) > 0 {
			data, _ := json.Marshal(d.SampleRaw)
			fmt.Printf("First record:    %s\n", data)
		}

		for i, row := range d.FirstRows {
			fmt.Printf("  %d. invoice=%s supplier=%s account=%s net=%s vat=%s ff3=%s\n",
				i+1, row.Invoice, row.Supplier, row.Account, row.Net, row.VAT, row.TaxFlag)
		}
		fmt.Println()
	}

	fmt.Println("=== Classification ===")
	fmt.Printf("Cost ledger:     %s\n", orNone(out.Cost))
	fmt.Printf("VAT ledger:      %s\n", orNone(out.VAT))
	fmt.Printf("Heuristic:       %s\n", out.Heuristic)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
