// =============================================================================
// VAT Checker - Reconcile Command
// =============================================================================
//
// This file defines the 'reconcile' command, which runs the full pipeline on
// a cost ledger and a VAT ledger.
//
// COMMAND USAGE:
//   vatcheck reconcile [files...] [flags]
//
// FLAGS:
//   --input-dir    : Directory to scan when no files are given
//   --profile      : Rate profile code from profiles_dir
//   --rates        : Path to a rate profile YAML file
//   --company      : Company name on the report
//   --period       : Return period, e.g. "Q1 2025"
//   --format       : Report formats (xlsx, xml)
//   --logo         : Image embedded in the XLSX report
//   --force-report : Render even when the reclaim variance is out of tolerance
//   --no-summary   : Skip the language-model summary
//   --archive      : Move the ledgers to input_archive after a successful run
//
// RATE MAPPING RESOLUTION (first match wins):
//   1. --rates file
//   2. --profile code
//   3. A profile whose file_matching_patterns match a ledger file name
//   4. The rates block of the main configuration
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/vat-checker/internal/boxes"
	"github.com/ginjaninja78/vat-checker/internal/classifier"
	"github.com/ginjaninja78/vat-checker/internal/config"
	"github.com/ginjaninja78/vat-checker/internal/ingest"
	"github.com/ginjaninja78/vat-checker/internal/pipeline"
	"github.com/ginjaninja78/vat-checker/internal/report"
	"github.com/ginjaninja78/vat-checker/internal/summary"
	"github.com/ginjaninja78/vat-checker/internal/validation"
	"github.com/ginjaninja78/vat-checker/pkg/utils"
)

// geminiKeyEnv holds the Gemini API key.
const geminiKeyEnv = "GEMINI_API_KEY"

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var reconcileFlags struct {
	inputDir    string
	profile     string
	ratesFile   string
	company     string
	period      string
	formats     []string
	logo        string
	forceReport bool
	noSummary   bool
	archive     bool
}

// reconcileCmd represents the 'reconcile' command.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile [files...]",
	Short: "Reconcile a cost ledger against a VAT ledger",
	Long: `The reconcile command reads one or two ledger files, decides which is the
cost ledger and which is the VAT ledger, and compares expected with claimed
VAT per invoice.

When no files are given, the input directory is scanned; it must contain one
or two ledger files.

On success:
  - The VAT return report is written to the output directory
  - Validation findings, if any, are written to a validation log
  - A run summary log is written next to it
  - With --archive, the ledgers are moved to the input archive`,

	Args: cobra.MaximumNArgs(pipeline.MaxInputs),

	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	f := reconcileCmd.Flags()
	f.StringVar(&reconcileFlags.inputDir, "input-dir", "", "Directory to scan when no files are given (default from config)")
	f.StringVar(&reconcileFlags.profile, "profile", "", "Rate profile code to use")
	f.StringVar(&reconcileFlags.ratesFile, "rates", "", "Path to a rate profile YAML file")
	f.StringVar(&reconcileFlags.company, "company", "", "Company name (default from config)")
	f.StringVar(&reconcileFlags.period, "period", "", "Return period (default from config)")
	f.StringSliceVar(&reconcileFlags.formats, "format", nil, "Report formats: xlsx, xml (default from config)")
	f.StringVar(&reconcileFlags.logo, "logo", "", "Logo image for the XLSX report (default from config)")
	f.BoolVar(&reconcileFlags.forceReport, "force-report", false, "Render the report even when the variance is out of tolerance")
	f.BoolVar(&reconcileFlags.noSummary, "no-summary", false, "Skip the language-model summary")
	f.BoolVar(&reconcileFlags.archive, "archive", false, "Move processed ledgers to the input archive")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runReconcile(cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	cfg := mainConfig

	fmt.Println("=== VAT Checker ===")

	// =========================================================================
	// STEP 1: RESOLVE INPUT FILES
	// =========================================================================

	inputDir := firstNonEmpty(reconcileFlags.inputDir, cfg.InputDir)
	fm := utils.NewFileManager(inputDir, cfg.OutputDir, cfg.InputArchiveDir)

	paths := args
	if len(paths) == 0 {
		discovered, err := fm.DiscoverLedgerFiles()
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
		if len(discovered) == 0 {
			fmt.Println("No ledger files found in the input directory.")
			return nil
		}
		paths = discovered
	}

	inputs, err := readInputs(paths)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 2: RESOLVE SETTINGS
	// =========================================================================

	profile, err := resolveProfile(cfg, paths)
	if err != nil {
		return err
	}

	rates := cfg.Rates
	company := firstNonEmpty(reconcileFlags.company, cfg.Company)
	symbol := cfg.CurrencySymbol
	if profile != nil {
		log.Info("Using rate profile", zap.String("profile", profile.ProfileName))
		rates = &profile.Rates
		if reconcileFlags.company == "" && profile.Company != "" {
			company = profile.Company
		}
		if profile.CurrencySymbol != "" {
			symbol = profile.CurrencySymbol
		}
	}
	period := firstNonEmpty(reconcileFlags.period, cfg.Period)

	renderers, err := buildRenderers(cfg)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Rates:          rates,
		Company:        company,
		Period:         period,
		CurrencySymbol: symbol,
		Tolerance:      cfg.ToleranceDecimal(),
		Ingest: ingest.Options{
			SampleCap:        cfg.XMLSampleCap,
			VATAccountPrefix: cfg.VATAccountPrefix,
		},
		Classifier: classifier.Options{
			AccountThreshold:   cfg.AccountThreshold,
			NarrativeThreshold: cfg.NarrativeThreshold,
		},
		Validation:  cfg.ValidationOptions(),
		Summarizer:  buildSummarizer(cfg),
		Renderers:   renderers,
		Logo:        readLogo(firstNonEmpty(reconcileFlags.logo, cfg.LogoPath)),
		ForceReport: reconcileFlags.forceReport,
		Logger:      log,
	}

	// =========================================================================
	// STEP 3: RUN THE PIPELINE
	// =========================================================================

	result, err := pipeline.New(opts).Run(cmd.Context(), inputs)
	if result != nil && result.Validation != nil {
		logPath, logErr := writeValidationLog(cfg, result.Validation.Errors)
		switch {
		case logErr != nil:
			log.Warn("Failed to write validation log", zap.Error(logErr))
		case logPath != "":
			fmt.Printf("Validation log:  %s\n", logPath)
		}
	}
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	// =========================================================================
	// STEP 4: WRITE OUTPUTS
	// =========================================================================

	var written []string
	for _, rep := range result.Reports {
		name := utils.GenerateOutputFileName(cfg.ReportNameFormat, map[string]string{
			"name":   report.FileName(period),
			"period": strings.TrimPrefix(report.FileName(period), "VAT_Return_"),
			"uuid":   result.RunID,
		}) + "." + rep.Format

		path, err := fm.WriteOutputFile(name, rep.Data)
		if err != nil {
			return err
		}
		written = append(written, path)
	}

	printResult(result, written, symbol)

	runSummary := buildRunSummary(result, company, period, symbol, written, startTime)
	if logPath, err := utils.WriteSummaryLog(runSummary, cfg.OutputDir); err != nil {
		log.Warn("Failed to write run summary", zap.Error(err))
	} else {
		fmt.Printf("Run log:         %s\n", logPath)
	}

	// =========================================================================
	// STEP 5: ARCHIVE
	// =========================================================================

	if reconcileFlags.archive {
		for _, path := range paths {
			archived, err := fm.ArchiveInputFile(path)
			if err != nil {
				log.Warn("Failed to archive ledger", zap.String("file", path), zap.Error(err))
				continue
			}
			log.Info("Archived ledger", zap.String("file", path), zap.String("archive", archived))
		}
	}

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func readInputs(paths []string) ([]pipeline.Input, error) {
	if len(paths) > pipeline.MaxInputs {
		return nil, fmt.Errorf("found %d ledger files; at most %d can be reconciled together", len(paths), pipeline.MaxInputs)
	}

	inputs := make([]pipeline.Input, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		inputs = append(inputs, pipeline.Input{Name: filepath.Base(path), Content: content})
	}
	return inputs, nil
}

// resolveProfile applies the rate mapping resolution order. A nil profile
// means the main configuration's rates are used.
func resolveProfile(cfg *config.MainConfig, paths []string) (*config.RateProfile, error) {
	if reconcileFlags.ratesFile != "" {
		profile, err := config.LoadRateProfile(reconcileFlags.ratesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load rates file: %w", err)
		}
		return profile, nil
	}

	profiles, err := config.LoadRateProfiles(cfg.ProfilesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate profiles: %w", err)
	}

	if reconcileFlags.profile != "" {
		profile, ok := profiles[reconcileFlags.profile]
		if !ok {
			return nil, fmt.Errorf("rate profile %q not found in %s", reconcileFlags.profile, cfg.ProfilesDir)
		}
		return profile, nil
	}

	return config.FindMatchingProfile(paths, profiles), nil
}

func buildRenderers(cfg *config.MainConfig) ([]report.Renderer, error) {
	formats := reconcileFlags.formats
	if len(formats) == 0 {
		formats = cfg.ReportFormats
	}

	var renderers []report.Renderer
	seen := make(map[string]bool)
	for _, format := range formats {
		renderer := report.ForFormat(format)
		if renderer == nil {
			return nil, fmt.Errorf("unknown report format %q", format)
		}
		if seen[renderer.Format()] {
			continue
		}
		seen[renderer.Format()] = true

		if renderer.Format() == "xlsx" {
			renderer = report.NewXLSXRenderer(log)
		}
		renderers = append(renderers, renderer)
	}
	return renderers, nil
}

// buildSummarizer returns nil when the fallback sentence should be used.
func buildSummarizer(cfg *config.MainConfig) summary.Summarizer {
	if reconcileFlags.noSummary || !strings.EqualFold(cfg.Summarizer.Provider, config.ProviderGemini) {
		return nil
	}

	gemini, err := summary.NewGemini(os.Getenv(geminiKeyEnv), cfg.Summarizer.Model)
	if err != nil {
		log.Warn("Gemini summarizer unavailable; using fallback summary", zap.Error(err))
		return nil
	}
	return gemini
}

// writeValidationLog writes findings to validation_log_<timestamp>.txt in the
// output directory. Nothing is written when there are no findings or the log
// is disabled; the returned path is then empty.
func writeValidationLog(cfg *config.MainConfig, findings []*validation.ValidationError) (string, error) {
	if len(findings) == 0 || !cfg.WritesValidationLog() {
		return "", nil
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(cfg.OutputDir, fmt.Sprintf("validation_log_%s.txt", time.Now().Format("20060102_150405")))
	if err := validation.WriteErrorLog(findings, path); err != nil {
		return "", err
	}
	return path, nil
}

func readLogo(path string) []byte {
	if path == "" {
		return nil
	}
	logo, err := os.ReadFile(path)
	if err != nil {
		log.Warn("Ignoring logo", zap.String("path", path), zap.Error(err))
		return nil
	}
	return logo
}

func printResult(result *pipeline.Result, written []string, symbol string) {
	rec := result.Reconciliation

	fmt.Printf("Cost ledger:     %s\n", result.Assignment.Cost.Name)
	fmt.Printf("VAT ledger:      %s\n", result.Assignment.VAT.Name)
	fmt.Printf("Invoices:        %d\n", rec.CountInvoices)
	fmt.Printf("Matched:         %d\n", rec.CountMatched)
	fmt.Printf("Issues:          %d\n", len(rec.Issues))

	for _, issue := range rec.Issues {
		fmt.Printf("  ✗ %s: %s\n", issue.Invoice, issue.Error)
	}

	fmt.Println("\n=== VAT Return ===")
	for n := 1; n <= boxes.Count; n++ {
		fmt.Printf("Box %d  %-40s %s%s\n", n, boxes.Labels[n], symbol, result.Boxes.Box(n).StringFixed(2))
	}
	fmt.Printf("Reclaim variance: %s%s\n", symbol, result.Boxes.Variance.StringFixed(2))

	fmt.Printf("\n%s\n\n", result.Summary)

	if result.ReportBlocked {
		fmt.Println("Report not rendered: the reclaim variance is outside tolerance (use --force-report).")
	}
	for _, path := range written {
		fmt.Printf("  ✓ %s\n", path)
	}
	fmt.Printf("Time elapsed:    %s\n", result.Stats.Duration)
}

func buildRunSummary(result *pipeline.Result, company, period, symbol string, written []string, start time.Time) utils.RunSummary {
	rec := result.Reconciliation

	s := utils.RunSummary{
		RunID:         result.RunID,
		StartTime:     start,
		EndTime:       time.Now(),
		Company:       company,
		Period:        period,
		CostFile:      result.Assignment.Cost.Name,
		VATFile:       result.Assignment.VAT.Name,
		Heuristic:     string(result.Assignment.Heuristic),
		Invoices:      rec.CountInvoices,
		Matched:       rec.CountMatched,
		MissingInVAT:  len(rec.MissingInVAT),
		MissingInCost: len(rec.MissingInCost),
		Mismatched:    len(rec.Mismatched),
		Variance:      symbol + rec.Variance.StringFixed(2),
		Summary:       result.Summary,
		Reports:       written,
	}
	for _, finding := range result.Validation.Errors {
		s.Findings = append(s.Findings, finding.Error())
	}
	for _, issue := range rec.Issues {
		s.Issues = append(s.Issues, fmt.Sprintf("%s [%s]: %s", issue.Invoice, issue.Kind, issue.Error))
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
