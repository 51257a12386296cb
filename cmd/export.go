// =============================================================================
// SENA Material Requisitions - Export Commands
// =============================================================================
//
// COMMAND USAGE:
//   sena export json|csv|pivot|xlsx [--out DIR] [-q TEXT] [--lot LOT] [--program PROGRAM]
//   sena template [--xlsx] [--out DIR]
//
// Data exports are named with the current date; the template has a fixed
// name. --out defaults to export.output_dir. The filter flags narrow the
// export the same way they narrow "sena list".
//
// =============================================================================

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jllhz8912/sena/internal/exporter"
	"github.com/jllhz8912/sena/internal/report"
	"github.com/jllhz8912/sena/internal/store"
)

var (
	exportOut    string
	templateXLSX bool
)

var exportFilter struct {
	search  string
	lot     string
	program string
}

var dataFormats = []exporter.Format{exporter.FormatJSON, exporter.FormatCSV, exporter.FormatPivot, exporter.FormatXLSX}

var exportCmd = &cobra.Command{
	Use:       "export <format>",
	Short:     "Export records (json, csv, pivot or xlsx)",
	Args:      cobra.ExactArgs(1),
	ValidArgs: formatNames(dataFormats),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := exporter.Format(strings.ToLower(args[0]))
		if !isDataFormat(format) {
			return fmt.Errorf("unknown export format %q (want %s)", args[0], strings.Join(formatNames(dataFormats), ", "))
		}
		return withStore(cmd.Context(), func(st *store.Store) error {
			records := report.Filter(st.All(), report.Criteria{
				Search:  exportFilter.search,
				Lot:     exportFilter.lot,
				Program: exportFilter.program,
			})
			path, err := newExporter().Write(format, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d records)\n", path, len(records))
			return nil
		})
	},
}

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write the bulk import template",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := exporter.FormatTemplate
		if templateXLSX {
			format = exporter.FormatTemplateXLSX
		}
		path, err := newExporter().Write(format, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, templateCmd)

	for _, c := range []*cobra.Command{exportCmd, templateCmd} {
		c.Flags().StringVarP(&exportOut, "out", "o", "", "Output directory (default export.output_dir)")
	}
	exportCmd.Flags().StringVarP(&exportFilter.search, "search", "q", "", "Match instructor, training or lot")
	exportCmd.Flags().StringVar(&exportFilter.lot, "lot", "", "Only this lot")
	exportCmd.Flags().StringVar(&exportFilter.program, "program", "", "Only this program")
	templateCmd.Flags().BoolVar(&templateXLSX, "xlsx", false, "Write an XLSX workbook instead of CSV")
}

func newExporter() *exporter.Exporter {
	dir := exportOut
	if dir == "" {
		dir = cfg.Export.OutputDir
	}
	return exporter.New(dir, catalog, logger)
}

func isDataFormat(f exporter.Format) bool {
	for _, d := range dataFormats {
		if f == d {
			return true
		}
	}
	return false
}

func formatNames(formats []exporter.Format) []string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return names
}
