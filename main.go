// =============================================================================
// VAT Checker - Main Entry Point
// =============================================================================
//
// USAGE:
//   vatcheck reconcile [files...]  - Reconcile a cost ledger against a VAT ledger
//   vatcheck inspect files...      - Show how ledger files are read
//   vatcheck version               - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Ingestion, reconciliation, boxes, reports
//   - pkg/       : Shared file utilities
//   - profiles/  : Rate profile YAML files
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/vat-checker/cmd"
)

func main() {
	cmd.Execute()
}
