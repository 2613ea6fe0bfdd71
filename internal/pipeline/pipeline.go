// =============================================================================
// VAT Checker - Pipeline
// =============================================================================
//
// This module orchestrates one reconciliation run, from raw file bytes to the
// rendered return.
//
// PIPELINE:
//   1. Extract and normalize each input file (concurrently, one per file)
//   2. Classify the files into the cost ledger and the VAT ledger
//   3. Validate the rate mapping and both ledgers
//   4. Reconcile expected VAT against claimed VAT
//   5. Aggregate the nine return boxes
//   6. Summarize the run
//   7. Render the requested report formats
//
// A run accepts at most two files. Data problems never fail the run; they
// surface as validation warnings and reconciliation issues.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ginjaninja78/vat-checker/internal/boxes"
	"github.com/ginjaninja78/vat-checker/internal/classifier"
	"github.com/ginjaninja78/vat-checker/internal/ingest"
	"github.com/ginjaninja78/vat-checker/internal/reconciler"
	"github.com/ginjaninja78/vat-checker/internal/report"
	"github.com/ginjaninja78/vat-checker/internal/summary"
	"github.com/ginjaninja78/vat-checker/internal/types"
	"github.com/ginjaninja78/vat-checker/internal/validation"
)

// MaxInputs is the largest number of files one run accepts.
const MaxInputs = 2

var (
	// ErrNoInputs is returned when Run is called without files.
	ErrNoInputs = errors.New("no input files")

	// ErrTooManyInputs is returned when Run is called with more than
	// MaxInputs files.
	ErrTooManyInputs = fmt.Errorf("at most %d input files are accepted", MaxInputs)

	// ErrInvalidInput is returned when validation rejects the run. The
	// error text lists the findings.
	ErrInvalidInput = errors.New("validation failed")
)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// Input is one uploaded ledger file.
type Input struct {
	Name    string
	Content []byte
}

// Options configures a pipeline.
type Options struct {
	// Rates maps tax flags to roles. Required.
	Rates *types.RateMapping

	Company        string
	Period         string
	CurrencySymbol string

	// Tolerance is the reconciliation tolerance. Zero uses the default.
	Tolerance decimal.Decimal

	Ingest     ingest.Options
	Classifier classifier.Options
	Validation validation.ValidationOptions

	// Summarizer writes the run summary. Nil uses the fallback sentence.
	Summarizer summary.Summarizer

	// Renderers produce the reports. None means no report is rendered.
	Renderers []report.Renderer

	// Logo is embedded into reports that support it.
	Logo []byte

	// ForceReport renders even when the reclaim variance is out of tolerance.
	ForceReport bool

	Logger *zap.Logger
}

// Report is one rendered output.
type Report struct {
	Format string
	Name   string
	Data   []byte
}

// Stats contains run statistics.
type Stats struct {
	FilesParsed int
	CostRows    int
	VATRows     int
	Issues      int
	Duration    time.Duration
}

// Result is the outcome of one run.
type Result struct {
	RunID string

	// Files are the parsed inputs in input order.
	Files      []*types.ParsedFile
	Assignment classifier.Assignment

	Validation     *validation.ValidationResult
	Reconciliation *reconciler.Result
	Boxes          boxes.Result
	Summary        string

	Reports []Report

	// ReportBlocked is true when rendering was skipped because the reclaim
	// variance is outside tolerance.
	ReportBlocked bool

	Stats Stats
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline runs reconciliations with fixed options.
type Pipeline struct {
	opts Options
	log  *zap.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	opts.Ingest.Logger = log
	return &Pipeline{opts: opts, log: log}
}

// Run executes the pipeline for one or two files.
//
// PARAMETERS:
//   - ctx:    Cancels the summary and rendering steps.
//   - inputs: One or two ledger files, in any order.
//
// RETURNS:
//   - The run result.
//   - An error for an invalid invocation (no files, too many files), for
//     input rejected by validation (ErrInvalidInput), or a failed render.
func (p *Pipeline) Run(ctx context.Context, inputs []Input) (*Result, error) {
	startTime := time.Now()

	switch {
	case len(inputs) == 0:
		return nil, ErrNoInputs
	case len(inputs) > MaxInputs:
		return nil, fmt.Errorf("%w (got %d)", ErrTooManyInputs, len(inputs))
	}

	result := &Result{RunID: uuid.New().String()}
	log := p.log.With(zap.String("run_id", result.RunID))

	// =========================================================================
	// STEP 1: EXTRACT AND NORMALIZE
	// =========================================================================

	log.Info("Parsing input files", zap.Int("count", len(inputs)))
	result.Files = p.parseAll(inputs)
	result.Stats.FilesParsed = len(result.Files)

	// =========================================================================
	// STEP 2: CLASSIFY
	// =========================================================================

	assignment := classifier.ClassifyWithOptions(p.opts.Classifier, result.Files...)
	if assignment.Cost == nil {
		log.Warn("No cost ledger identified; treating it as empty")
		assignment.Cost = &types.ParsedFile{Name: "(missing cost ledger)", Meta: types.FileMeta{Kind: types.FormatUnknown}}
	}
	if assignment.VAT == nil {
		log.Warn("No VAT ledger identified; treating it as empty")
		assignment.VAT = &types.ParsedFile{Name: "(missing VAT ledger)", Meta: types.FileMeta{Kind: types.FormatUnknown}}
	}
	result.Assignment = assignment
	result.Stats.CostRows = len(assignment.Cost.Rows)
	result.Stats.VATRows = len(assignment.VAT.Rows)

	log.Info("Classified ledgers",
		zap.String("cost", assignment.Cost.Name),
		zap.String("vat", assignment.VAT.Name),
		zap.String("heuristic", string(assignment.Heuristic)),
	)

	// =========================================================================
	// STEP 3: VALIDATE
	// =========================================================================

	result.Validation = p.validate(assignment)
	for _, finding := range result.Validation.Errors {
		log.Warn("Validation finding", zap.String("finding", finding.Error()))
	}
	if !result.Validation.IsValid {
		return result, p.validationError(result.Validation)
	}

	// =========================================================================
	// STEP 4: RECONCILE
	// =========================================================================

	rec, err := reconciler.Reconcile(assignment.Cost, assignment.VAT, p.opts.Rates, reconciler.Options{
		Tolerance:      p.opts.Tolerance,
		CurrencySymbol: p.opts.CurrencySymbol,
	})
	if err != nil {
		return result, fmt.Errorf("failed to reconcile: %w", err)
	}
	result.Reconciliation = rec
	result.Stats.Issues = len(rec.Issues)

	log.Info("Reconciled ledgers",
		zap.Int("invoices", rec.CountInvoices),
		zap.Int("matched", rec.CountMatched),
		zap.Int("issues", len(rec.Issues)),
		zap.String("variance", rec.Variance.StringFixed(2)),
	)

	// =========================================================================
	// STEP 5: BOXES
	// =========================================================================

	result.Boxes = boxes.Compute(rec.FlatCostLines, rec.VATByInvoice, p.opts.Rates)

	// =========================================================================
	// STEP 6: SUMMARY
	// =========================================================================

	req := summary.NewRequest(p.opts.Company, p.opts.Period, rec)
	req.CurrencySymbol = p.opts.CurrencySymbol
	result.Summary, _ = summary.WithFallback(p.opts.Summarizer, log).Summarize(ctx, req)

	// =========================================================================
	// STEP 7: RENDER
	// =========================================================================

	if err := p.render(ctx, result, log); err != nil {
		return result, err
	}

	result.Stats.Duration = time.Since(startTime)
	log.Info("Run complete",
		zap.Int("reports", len(result.Reports)),
		zap.Bool("report_blocked", result.ReportBlocked),
		zap.Duration("elapsed", result.Stats.Duration),
	)
	return result, nil
}

// parseAll parses every input in its own goroutine and returns the files in
// input order.
func (p *Pipeline) parseAll(inputs []Input) []*types.ParsedFile {
	type parsed struct {
		index int
		file  *types.ParsedFile
	}

	var wg sync.WaitGroup
	results := make(chan parsed, len(inputs))

	for i, in := range inputs {
		wg.Add(1)
		go func(index int, in Input) {
			defer wg.Done()
			results <- parsed{index: index, file: ingest.Parse(in.Content, in.Name, p.opts.Ingest)}
		}(i, in)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	files := make([]*types.ParsedFile, len(inputs))
	for r := range results {
		files[r.index] = r.file
	}
	return files
}

func (p *Pipeline) validate(assignment classifier.Assignment) *validation.ValidationResult {
	v := validation.NewValidatorWithOptions(p.opts.Validation)

	result := validation.NewResult()
	result.Merge(v.ValidateRates(p.opts.Rates))
	if p.opts.Rates == nil {
		return result
	}
	result.Merge(v.ValidateLedger(assignment.Cost))
	result.Merge(v.ValidateLedger(assignment.VAT))
	result.Merge(v.ValidateFlags(assignment.Cost, p.opts.Rates))
	return result
}

// validationError wraps ErrInvalidInput with the formatted findings. A
// missing rate mapping also matches reconciler.ErrMissingRates.
func (p *Pipeline) validationError(result *validation.ValidationResult) error {
	err := fmt.Errorf("%w\n%s", ErrInvalidInput, validation.FormatErrors(result.Errors))
	if p.opts.Rates == nil {
		return errors.Join(reconciler.ErrMissingRates, err)
	}
	return err
}

func (p *Pipeline) render(ctx context.Context, result *Result, log *zap.Logger) error {
	if len(p.opts.Renderers) == 0 {
		return nil
	}

	in := report.Input{
		Boxes:          result.Boxes,
		Company:        p.opts.Company,
		Period:         p.opts.Period,
		CurrencySymbol: p.opts.CurrencySymbol,
		Logo:           p.opts.Logo,
		Reconciliation: result.Reconciliation,
		Summary:        result.Summary,
		RunID:          result.RunID,
		GeneratedAt:    time.Now(),
		Force:          p.opts.ForceReport,
	}
	name := report.FileName(p.opts.Period)

	for _, renderer := range p.opts.Renderers {
		data, err := renderer.Render(ctx, in)
		if errors.Is(err, report.ErrNotReady) {
			log.Warn("Report not rendered: reclaim variance is outside tolerance",
				zap.String("variance", result.Boxes.Variance.StringFixed(2)))
			result.ReportBlocked = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to render %s report: %w", renderer.Format(), err)
		}

		result.Reports = append(result.Reports, Report{
			Format: renderer.Format(),
			Name:   name + "." + renderer.Format(),
			Data:   data,
		})
		log.Info("Rendered report", zap.String("format", renderer.Format()), zap.Int("bytes", len(data)))
	}
	return nil
}
