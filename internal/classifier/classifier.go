// =============================================================================
// VAT Checker - Ledger Classifier
// =============================================================================
//
// This module decides which of the supplied files is the VAT ledger and which
// is the cost ledger. Two structural signals are available:
//
//   1. Account codes (primary): VAT control postings carry account codes with
//      the VAT-designated prefix ("7501-"). A VAT ledger is mostly such rows.
//   2. Narrative markers (fallback): exports without account codes describe
//      VAT lines as "VAT ON <amount>".
//
// Ambiguity is never an error: ties resolve to the earlier file.
//
// =============================================================================

package classifier

import (
	"sort"

	"github.com/ginjaninja78/vat-checker/internal/types"
)

const (
	// AccountThreshold is the VAT-account ratio above which a file is the VAT
	// ledger outright.
	AccountThreshold = 0.6

	// NarrativeThreshold is the minimum narrative ratio for a lone file to be
	// treated as the VAT ledger.
	NarrativeThreshold = 0.05
)

// Heuristic names the signal that decided a classification.
type Heuristic string

const (
	HeuristicNone      Heuristic = "none"
	HeuristicAccount   Heuristic = "account"
	HeuristicNarrative Heuristic = "narrative"
)

// Options overrides the classification thresholds. Zero values use the
// package constants.
type Options struct {
	AccountThreshold   float64
	NarrativeThreshold float64
}

func (o Options) withDefaults() Options {
	if o.AccountThreshold <= 0 {
		o.AccountThreshold = AccountThreshold
	}
	if o.NarrativeThreshold <= 0 {
		o.NarrativeThreshold = NarrativeThreshold
	}
	return o
}

// Assignment is the outcome of classification. Either side may be nil when
// fewer than two files were supplied.
type Assignment struct {
	VAT       *types.ParsedFile
	Cost      *types.ParsedFile
	Heuristic Heuristic
}

// Classify assigns the VAT and cost roles using the default thresholds.
func Classify(files ...*types.ParsedFile) Assignment {
	return ClassifyWithOptions(Options{}, files...)
}

// ClassifyWithOptions assigns the VAT and cost roles.
//
// PARAMETERS:
//   - opts:  Threshold overrides.
//   - files: Zero, one or two parsed files; nil entries are ignored and only
//     the first two remaining files are considered.
//
// RETURNS:
//   - The assignment. Never fails.
func ClassifyWithOptions(opts Options, files ...*types.ParsedFile) Assignment {
	opts = opts.withDefaults()

	candidates := make([]*types.ParsedFile, 0, 2)
	for _, f := range files {
		if f != nil && len(candidates) < 2 {
			candidates = append(candidates, f)
		}
	}

	switch len(candidates) {
	case 0:
		return Assignment{Heuristic: HeuristicNone}
	case 1:
		return classifySingle(opts, candidates[0])
	}

	if candidates[0].Meta.VATAccountRatio > 0 || candidates[1].Meta.VATAccountRatio > 0 {
		return byAccountRatio(opts, candidates)
	}
	return byNarrative(candidates)
}

// byAccountRatio picks the file whose ratio alone exceeds the threshold, or
// else the file with the higher ratio.
func byAccountRatio(opts Options, files []*types.ParsedFile) Assignment {
	above0 := files[0].Meta.VATAccountRatio > opts.AccountThreshold
	above1 := files[1].Meta.VATAccountRatio > opts.AccountThreshold

	switch {
	case above0 && !above1:
		return Assignment{VAT: files[0], Cost: files[1], Heuristic: HeuristicAccount}
	case above1 && !above0:
		return Assignment{VAT: files[1], Cost: files[0], Heuristic: HeuristicAccount}
	}

	ranked := []*types.ParsedFile{files[0], files[1]}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Meta.VATAccountRatio > ranked[j].Meta.VATAccountRatio
	})
	return Assignment{VAT: ranked[0], Cost: ranked[1], Heuristic: HeuristicAccount}
}

func byNarrative(files []*types.ParsedFile) Assignment {
	if files[0].Meta.NarrativeVATRatio >= files[1].Meta.NarrativeVATRatio {
		return Assignment{VAT: files[0], Cost: files[1], Heuristic: HeuristicNarrative}
	}
	return Assignment{VAT: files[1], Cost: files[0], Heuristic: HeuristicNarrative}
}

func classifySingle(opts Options, file *types.ParsedFile) Assignment {
	if file.Meta.VATAccountRatio > opts.AccountThreshold {
		return Assignment{VAT: file, Heuristic: HeuristicAccount}
	}
	if file.Meta.NarrativeVATRatio >= opts.NarrativeThreshold {
		return Assignment{VAT: file, Heuristic: HeuristicNarrative}
	}
	return Assignment{Cost: file, Heuristic: HeuristicNarrative}
}
