// =============================================================================
// VAT Checker - Ingest
// =============================================================================
//
// This module is the entry point for a single ledger file. It detects the
// format, extracts raw records with the matching reader, normalizes them and
// computes the file metadata used for diagnostics and classification.
//
// FLOW:
//
//   bytes + filename
//        |
//        v
//   DetectFormat ----> csvparser / xmlparser / xlsxparser
//        |                       |
//        |                  []types.Record
//        v                       |
//   normalizer.NormalizeAll <----+
//        |
//        v
//   types.ParsedFile{Rows, Meta}
//
// Data problems never fail a parse: an undecodable file yields an empty
// ParsedFile with kind "unknown" or the detected kind and zero rows.
//
// =============================================================================

package ingest

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ginjaninja78/vat-checker/internal/csvparser"
	"github.com/ginjaninja78/vat-checker/internal/normalizer"
	"github.com/ginjaninja78/vat-checker/internal/types"
	"github.com/ginjaninja78/vat-checker/internal/xlsxparser"
	"github.com/ginjaninja78/vat-checker/internal/xmlparser"
)

// DefaultVATAccountPrefix is the account code prefix of VAT control accounts.
const DefaultVATAccountPrefix = "7501-"

// Options tunes extraction and metadata.
type Options struct {
	// SampleCap is the number of records scored per generic XML candidate.
	// Zero uses xmlparser.DefaultSampleCap.
	SampleCap int

	// VATAccountPrefix marks VAT-designated account codes. Empty uses
	// DefaultVATAccountPrefix.
	VATAccountPrefix string

	// Logger receives extraction warnings and coercion diagnostics.
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.SampleCap <= 0 {
		o.SampleCap = xmlparser.DefaultSampleCap
	}
	if o.VATAccountPrefix == "" {
		o.VATAccountPrefix = DefaultVATAccountPrefix
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// extraction is the output of one format reader.
type extraction struct {
	kind    types.FormatKind
	headers []string
	records []types.Record
}

// Extract detects the format of content and returns its raw records.
func Extract(content []byte, filename string) ([]types.Record, types.FormatKind) {
	ex := extract(content, filename, Options{}.withDefaults())
	return ex.records, ex.kind
}

// Parse extracts, normalizes and describes one ledger file.
//
// PARAMETERS:
//   - content:  The raw file bytes.
//   - filename: The original file name; its extension guides detection.
//   - opts:     Extraction options.
//
// RETURNS:
//   - The parsed file. Never nil.
func Parse(content []byte, filename string, opts Options) *types.ParsedFile {
	opts = opts.withDefaults()
	log := opts.Logger.With(zap.String("file", filename))

	ex := extract(content, filename, opts)

	norm := normalizer.New(log)
	rows := norm.NormalizeAll(ex.records)

	meta := types.FileMeta{
		Kind:    ex.kind,
		Headers: ex.headers,
		Count:   len(rows),
	}
	if len(ex.records) > 0 {
		meta.SampleRaw = ex.records[0]
	}

	if count := len(rows); count > 0 {
		var invoices, vatAccounts, narrative int
		for i, row := range rows {
			if row.Invoice != "" {
				invoices++
			}
			if strings.HasPrefix(row.Account, opts.VATAccountPrefix) {
				vatAccounts++
			}
			if norm.HasNarrativeVAT(ex.records[i]) {
				narrative++
			}
		}
		meta.InvoicePresentRate = float64(invoices) / float64(count)
		meta.VATAccountRatio = float64(vatAccounts) / float64(count)
		meta.NarrativeVATRatio = float64(narrative) / float64(count)
	}

	log.Info("Parsed ledger file",
		zap.String("kind", string(meta.Kind)),
		zap.Int("rows", meta.Count),
		zap.Float64("invoice_rate", meta.InvoicePresentRate),
		zap.Float64("vat_account_ratio", meta.VATAccountRatio),
	)

	return &types.ParsedFile{
		Name: filename,
		Rows: rows,
		Meta: meta,
	}
}

// =============================================================================
// FORMAT READERS
// =============================================================================

func extract(content []byte, filename string, opts Options) extraction {
	kind := DetectFormat(content, filename)
	ex := extraction{kind: kind, headers: []string{}, records: []types.Record{}}

	switch kind {
	case types.FormatXLSX:
		grid, err := xlsxparser.ReadGrid(content)
		if err != nil {
			opts.Logger.Warn("Workbook could not be read", zap.String("file", filename), zap.Error(err))
			return ex
		}
		ex.headers, ex.records = gridToRecords(grid)

	case types.FormatSpreadsheetML:
		grid, err := xmlparser.ReadSpreadsheetML(content)
		if err != nil {
			opts.Logger.Warn("SpreadsheetML is malformed; using rows read so far",
				zap.String("file", filename), zap.Error(err))
		}
		ex.headers, ex.records = gridToRecords(grid)

	case types.FormatXML:
		records, err := xmlparser.ReadRecords(content, opts.SampleCap)
		if err != nil {
			opts.Logger.Warn("XML is malformed", zap.String("file", filename), zap.Error(err))
			return ex
		}
		ex.records = records
		if len(records) > 0 {
			ex.headers = records[0].Keys()
		}

	case types.FormatCSV:
		data := csvparser.Parse(content)
		ex.records = data.Records
		if data.Headers != nil {
			ex.headers = data.Headers
		}

	default:
		opts.Logger.Warn("Unrecognised file format", zap.String("file", filename))
	}

	return ex
}
