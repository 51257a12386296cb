// =============================================================================
// SENA Material Requisitions - Report Command
// =============================================================================
//
// COMMAND USAGE:
//   sena report summary|lots|programs|matrix [--rows program|training] [--json]
//
// =============================================================================

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jllhz8912/sena/internal/report"
	"github.com/jllhz8912/sena/internal/store"
	"github.com/jllhz8912/sena/internal/types"
)

var reportFlags struct {
	rows string
	json bool
}

var reportCmd = &cobra.Command{
	Use:       "report <summary|lots|programs|matrix>",
	Short:     "Print coordinator reports",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"summary", "lots", "programs", "matrix"},
	RunE:      runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportFlags.rows, "rows", string(report.RowsByProgram), "Matrix rows: program or training")
	reportCmd.Flags().BoolVar(&reportFlags.json, "json", false, "Print JSON")
}

func runReport(cmd *cobra.Command, args []string) error {
	kind := strings.ToLower(args[0])
	dim, ok := report.ParseRowDimension(reportFlags.rows)
	if !ok {
		return fmt.Errorf("--rows must be program or training, got %q", reportFlags.rows)
	}

	return withStore(cmd.Context(), func(st *store.Store) error {
		records := st.All()
		out := cmd.OutOrStdout()

		var body any
		switch kind {
		case "summary":
			body = report.Summarize(records)
		case "lots":
			body = report.ByLot(records)
		case "programs":
			body = report.ByProgram(records)
		case "matrix":
			body = report.BuildMatrix(records, dim)
		default:
			return fmt.Errorf("unknown report %q", args[0])
		}

		if reportFlags.json {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(body)
		}

		switch v := body.(type) {
		case report.Summary:
			fmt.Fprintf(out, "Records:     %d\nMaterials:   %d\nInstructors: %d\n", v.Records, v.Materials, v.Instructors)
		case []report.Slice:
			printSlices(out, v)
		case report.Matrix:
			printMatrix(out, v, records)
		}
		return nil
	})
}

func printSlices(w io.Writer, slices []report.Slice) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, s := range slices {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t\n", s.Label, s.Count, s.Percent)
	}
	_ = tw.Flush()
}

func printMatrix(w io.Writer, m report.Matrix, records []types.Request) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\t%s\tTotal\n", strings.Join(m.Columns, "\t"))
	for i, row := range m.Rows {
		fmt.Fprintf(tw, "%s", row)
		for _, n := range m.Cells[i] {
			fmt.Fprintf(tw, "\t%d", n)
		}
		fmt.Fprintf(tw, "\t%d\n", m.RowTotals[i])
	}
	fmt.Fprint(tw, "Total")
	for _, n := range m.ColumnTotals {
		fmt.Fprintf(tw, "\t%d", n)
	}
	fmt.Fprintf(tw, "\t%d\n", m.GrandTotal)
	_ = tw.Flush()
}
