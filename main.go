// =============================================================================
// SENA Material Requisitions - Main Entry Point
// =============================================================================
//
// USAGE:
//   sena import <file>         - Bulk upload a CSV/XLSX file
//   sena consolidate <paths>   - Merge exported submission files
//   sena export <format>       - Write JSON, CSV or XLSX exports
//   sena serve                 - Serve the coordinator reports over HTTP
//   sena version               - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Core business logic (not for external import)
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/jllhz8912/sena/cmd"
)

func main() {
	cmd.Execute()
}
