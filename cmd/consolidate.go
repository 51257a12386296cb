// =============================================================================
// SENA Material Requisitions - Consolidate Command
// =============================================================================
//
// COMMAND USAGE:
//   sena consolidate <files|dirs...> [--yes]
//
// Directories contribute every .json file they contain. The files are read
// concurrently; a file that cannot be read or decoded is skipped. Every
// accepted record gets fresh ids and is prepended to the store.
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jllhz8912/sena/internal/consolidation"
	"github.com/jllhz8912/sena/internal/store"
	"github.com/jllhz8912/sena/pkg/utils"
)

var consolidateYes bool

var consolidateCmd = &cobra.Command{
	Use:   "consolidate <files|dirs...>",
	Short: "Merge exported submission files into the store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runConsolidate,
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
	consolidateCmd.Flags().BoolVar(&consolidateYes, "yes", false, "Append the records after the summary")
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	files, err := utils.DiscoverInputFiles(args, ".json")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return consolidation.ErrNoValidRecords
	}

	sources := make([]consolidation.Source, len(files))
	for i, f := range files {
		sources[i] = consolidation.FileSource(f)
	}

	batch, err := consolidation.NewMerger(logger).Prepare(ctx, sources)
	if err != nil {
		return err
	}

	for _, fp := range batch.Fingerprints {
		if fp.Failed {
			fmt.Fprintf(out, "  ✗ %s: skipped\n", filepath.Base(fp.Name))
			continue
		}
		fmt.Fprintf(out, "  ✓ %s: %d record(s)\n", filepath.Base(fp.Name), fp.Records)
	}
	for _, name := range batch.Repeated {
		fmt.Fprintf(out, "  ! %s repeats an earlier file\n", filepath.Base(name))
	}
	fmt.Fprintf(out, "\nFiles: %d  Records: %d  Materials: %d\n", batch.FileCount, batch.RecordCount, batch.MaterialCount)

	if !consolidateYes {
		fmt.Fprintln(out, "Nothing was saved. Run again with --yes to append these records.")
		return nil
	}

	return withStore(ctx, func(st *store.Store) error {
		if err := batch.Commit(ctx, st); err != nil {
			return err
		}
		fmt.Fprintf(out, "Appended %d record(s); the store now holds %d\n", batch.RecordCount, st.Len())
		return nil
	})
}
