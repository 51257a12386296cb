// =============================================================================
// SENA Material Requisitions - Import Command
// =============================================================================
//
// This file defines the 'import' command, the bulk upload of a CSV or XLSX
// spreadsheet.
//
// COMMAND USAGE:
//   sena import <file> [flags]
//
// FLAGS:
//   --yes         : Apply the upload (without it only the preview is printed)
//   --edit        : Merge the upload into an existing record
//   --instructor, --program, --lot, --training
//                 : Header values carried into rows that leave them blank
//
// PROCESSING PIPELINE:
//   1. Build the draft (new, or loaded from --edit) and seed its header
//   2. Parse and group the file
//   3. Print the preview
//   4. With --yes:
//      a. Several groups, new record: create one record per group
//      b. Otherwise: merge the first group into the draft and save it
//   5. Print the summary
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jllhz8912/sena/internal/converter"
	"github.com/jllhz8912/sena/internal/form"
	"github.com/jllhz8912/sena/internal/store"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var importFlags struct {
	yes        bool
	editID     string
	instructor string
	program    string
	lot        string
	training   string
}

// =============================================================================
// IMPORT COMMAND DEFINITION
// =============================================================================

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Bulk upload materials from a CSV or XLSX file",
	Long: `The import command reads a spreadsheet of materials. Header columns
(instructor, program, lot, training) may be filled only on the first row
of each block; blank cells carry the previous value forward.

A file describing several blocks creates one record per block. Materials
repeating an item already saved in the same lot are dropped and listed.
A file with a single block, or any file imported with --edit, is merged
into one record and validated as a whole before saving.

Nothing is written without --yes.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importFlags.yes, "yes", false, "Apply the upload after the preview")
	importCmd.Flags().StringVar(&importFlags.editID, "edit", "", "Merge into the record with this id")
	importCmd.Flags().StringVar(&importFlags.instructor, "instructor", "", "Default instructor name")
	importCmd.Flags().StringVar(&importFlags.program, "program", "", "Default training program")
	importCmd.Flags().StringVar(&importFlags.lot, "lot", "", "Default lot")
	importCmd.Flags().StringVar(&importFlags.training, "training", "", "Default training name")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withStore(ctx, func(st *store.Store) error {
		// =====================================================================
		// STEP 1: BUILD THE DRAFT
		// =====================================================================

		draft := form.New()
		if importFlags.editID != "" {
			r, ok := st.Get(importFlags.editID)
			if !ok {
				return fmt.Errorf("record %s: %w", importFlags.editID, store.ErrNotFound)
			}
			draft = form.Edit(r, catalog)
		}
		seedDraft(draft)

		// =====================================================================
		// STEP 2: PARSE AND PREVIEW
		// =====================================================================

		conv := converter.New(catalog, logger)
		preview, err := conv.Preview(args[0], draft)
		if err != nil {
			return err
		}
		printPreview(out, preview)

		if !importFlags.yes {
			fmt.Fprintln(out, "\nNothing was saved. Run again with --yes to apply.")
			return nil
		}

		// =====================================================================
		// STEP 3: APPLY
		// =====================================================================

		result, err := conv.Apply(ctx, preview, draft, st)
		if err != nil {
			return err
		}

		if result.Mode == converter.ModeMerge {
			r, err := draft.Submit(ctx, st, time.Now())
			if err != nil {
				return explainValidation(cmd.ErrOrStderr(), err)
			}
			fmt.Fprintf(out, "\nSaved record %s with %d material(s) (%d imported)\n", r.ID, len(r.Materials), result.Merged)
			return nil
		}

		// =====================================================================
		// STEP 4: PRINT SUMMARY
		// =====================================================================

		fmt.Fprintln(out, "\n=== Import Complete ===")
		fmt.Fprintf(out, "Groups found:      %d\n", result.Stats.GroupsFound)
		fmt.Fprintf(out, "Records created:   %d\n", result.Stats.RecordsCreated)
		fmt.Fprintf(out, "Duplicates:        %d\n", result.Stats.MaterialsDropped)
		fmt.Fprintf(out, "Time elapsed:      %s\n", result.Stats.ProcessingTime)
		for _, m := range result.Rejected {
			fmt.Fprintf(out, "  ✗ %s (%s)\n", m.CodeName, m.TechnicalDescription)
		}
		return nil
	})
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// seedDraft applies the header flags to the draft.
func seedDraft(d *form.Draft) {
	if importFlags.instructor != "" {
		d.Instructor = importFlags.instructor
	}
	if importFlags.program != "" {
		d.Program = importFlags.program
		if p, ok := catalog.MatchProgram(importFlags.program); ok {
			d.Program = p
		}
	}
	if importFlags.lot != "" {
		if lot, ok := catalog.MatchLot(importFlags.lot); ok {
			d.Lot, d.IsCustomLot, d.CustomLot = lot, false, ""
		} else {
			d.Lot, d.IsCustomLot, d.CustomLot = "", true, importFlags.lot
		}
	}
	if importFlags.training != "" {
		d.Training = importFlags.training
	}
}

func printPreview(w io.Writer, p *converter.Preview) {
	fmt.Fprintf(w, "File:       %s\n", p.FilePath)
	fmt.Fprintf(w, "Rows:       %d\n", p.Rows)
	fmt.Fprintf(w, "Materials:  %d\n", p.MaterialCount())
	switch p.Mode {
	case converter.ModeBulk:
		fmt.Fprintf(w, "Mode:       create %d records\n", len(p.Groups))
	default:
		fmt.Fprintln(w, "Mode:       merge into one record")
	}
	for i, g := range p.Groups {
		fmt.Fprintf(w, "  %d. %s\n", i+1, g.Describe())
	}
}
