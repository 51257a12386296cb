// =============================================================================
// SENA Material Requisitions - Record Commands
// =============================================================================
//
// COMMAND USAGE:
//   sena add --instructor NAME --program P --lot L --training T \
//            --material "name|unit|description[|unspsc]" ... [--enrich]
//   sena list [--search TEXT] [--lot L] [--program P]
//   sena show <record-id>
//   sena delete <record-id>
//   sena delete-material <record-id> <material-id>
//   sena update-material <record-id> <material-id> [--name] [--unit] [--description] [--code]
//   sena image <record-id> <material-id> <image-file>
//   sena clear --yes
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jllhz8912/sena/internal/enrichment"
	"github.com/jllhz8912/sena/internal/form"
	"github.com/jllhz8912/sena/internal/report"
	"github.com/jllhz8912/sena/internal/store"
	"github.com/jllhz8912/sena/internal/types"
	"github.com/jllhz8912/sena/internal/validation"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var addFlags struct {
	instructor string
	program    string
	lot        string
	training   string
	materials  []string
	enrich     bool
}

var listFlags struct {
	search  string
	lot     string
	program string
}

var updateFlags struct {
	name        string
	unit        string
	description string
	code        string
}

var clearYes bool

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a record from flags",
	Long: `Create one requisition record. Each --material takes
"name|unit|description" with an optional "|unspsc" suffix; the unit is
matched against the catalog. A lot outside the catalog is saved as a
custom lot. With --enrich, blank descriptions and codes are suggested by
the text generation service when it is configured.`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List records, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(st *store.Store) error {
			records := report.Filter(st.All(), report.Criteria{
				Search:  listFlags.search,
				Lot:     listFlags.lot,
				Program: listFlags.program,
			})
			printRecords(cmd.OutOrStdout(), records)
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show one record with its materials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(st *store.Store) error {
			r, ok := st.Get(args[0])
			if !ok {
				return fmt.Errorf("record %s: %w", args[0], store.ErrNotFound)
			}
			printRecord(cmd.OutOrStdout(), r)
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <record-id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(st *store.Store) error {
			if err := st.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted record %s\n", args[0])
			return nil
		})
	},
}

var deleteMaterialCmd = &cobra.Command{
	Use:   "delete-material <record-id> <material-id>",
	Short: "Delete a material; the record goes with its last material",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(st *store.Store) error {
			removedRecord, err := st.RemoveMaterial(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deleted material %s\n", args[1])
			if removedRecord {
				fmt.Fprintf(out, "Record %s had no materials left and was deleted\n", args[0])
			}
			return nil
		})
	},
}

var updateMaterialCmd = &cobra.Command{
	Use:   "update-material <record-id> <material-id>",
	Short: "Change the fields of a saved material",
	Args:  cobra.ExactArgs(2),
	RunE:  runUpdateMaterial,
}

var imageCmd = &cobra.Command{
	Use:   "image <record-id> <material-id> <image-file>",
	Short: "Embed an image (max 1MB) in a saved material",
	Args:  cobra.ExactArgs(3),
	RunE:  runImage,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return errors.New("clear deletes every record; run again with --yes to confirm")
		}
		return withStore(cmd.Context(), func(st *store.Store) error {
			n := st.Len()
			if err := st.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d record(s)\n", n)
			return nil
		})
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(addCmd, listCmd, showCmd, deleteCmd, deleteMaterialCmd, updateMaterialCmd, imageCmd, clearCmd)

	addCmd.Flags().StringVar(&addFlags.instructor, "instructor", "", "Instructor name")
	addCmd.Flags().StringVar(&addFlags.program, "program", "", "Training program")
	addCmd.Flags().StringVar(&addFlags.lot, "lot", "", "Lot (catalog or custom)")
	addCmd.Flags().StringVar(&addFlags.training, "training", "", "Training name")
	addCmd.Flags().StringArrayVarP(&addFlags.materials, "material", "m", nil, `Material as "name|unit|description[|unspsc]" (repeatable)`)
	addCmd.Flags().BoolVar(&addFlags.enrich, "enrich", false, "Suggest blank descriptions and UNSPSC codes")

	listCmd.Flags().StringVarP(&listFlags.search, "search", "q", "", "Match instructor, training or lot")
	listCmd.Flags().StringVar(&listFlags.lot, "lot", "", "Only this lot")
	listCmd.Flags().StringVar(&listFlags.program, "program", "", "Only this program")

	updateMaterialCmd.Flags().StringVar(&updateFlags.name, "name", "", "Material name")
	updateMaterialCmd.Flags().StringVar(&updateFlags.unit, "unit", "", "Unit of measure")
	updateMaterialCmd.Flags().StringVar(&updateFlags.description, "description", "", "Technical description")
	updateMaterialCmd.Flags().StringVar(&updateFlags.code, "code", "", "UNSPSC code")

	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm deleting every record")
}

// =============================================================================
// COMMAND FUNCTIONS
// =============================================================================

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d := form.New()
	d.Instructor = addFlags.instructor
	d.Training = addFlags.training
	d.Program = addFlags.program
	if p, ok := catalog.MatchProgram(addFlags.program); ok {
		d.Program = p
	}
	if lot, ok := catalog.MatchLot(addFlags.lot); ok {
		d.Lot = lot
	} else if strings.TrimSpace(addFlags.lot) != "" {
		d.IsCustomLot = true
		d.CustomLot = strings.TrimSpace(addFlags.lot)
	}

	// The placeholder is replaced by the flag materials.
	d.Materials = nil
	for _, value := range addFlags.materials {
		m, err := parseMaterial(value)
		if err != nil {
			return err
		}
		m.ID = d.AddMaterial()
		if err := d.UpdateMaterial(m); err != nil {
			return err
		}
	}

	if addFlags.enrich {
		svc := enrichment.New(ctx, cfg.Enrichment.APIKey, cfg.Enrichment.Model, logger)
		for _, m := range d.Materials {
			if err := d.EnrichMaterial(ctx, svc, m.ID, logger); err != nil {
				return err
			}
		}
	}

	return withStore(ctx, func(st *store.Store) error {
		r, err := d.Submit(ctx, st, time.Now())
		if err != nil {
			return explainValidation(cmd.ErrOrStderr(), err)
		}
		logger.Info("record saved", zap.String("id", r.ID), zap.Int("materials", len(r.Materials)))
		fmt.Fprintf(cmd.OutOrStdout(), "Saved record %s with %d material(s)\n", r.ID, len(r.Materials))
		return nil
	})
}

func runUpdateMaterial(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withStore(ctx, func(st *store.Store) error {
		m, err := findMaterial(st, args[0], args[1])
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("name") {
			m.CodeName = updateFlags.name
		}
		if flags.Changed("unit") {
			m.UnitOfMeasure = catalog.MatchUnit(updateFlags.unit)
		}
		if flags.Changed("description") {
			m.TechnicalDescription = updateFlags.description
		}
		if flags.Changed("code") {
			m.UNSPSCCode = updateFlags.code
		}

		if err := st.UpdateMaterial(ctx, args[0], m); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated material %s\n", m.ID)
		return nil
	})
}

func runImage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	data, err := os.ReadFile(args[2])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	return withStore(ctx, func(st *store.Store) error {
		r, ok := st.Get(args[0])
		if !ok {
			return fmt.Errorf("record %s: %w", args[0], store.ErrNotFound)
		}
		d := form.Edit(r, catalog)
		if err := d.AttachImage(args[1], data); err != nil {
			return err
		}
		if err := st.Replace(ctx, d.Build(time.Now())); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Attached %s to material %s\n", args[2], args[1])
		return nil
	})
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// parseMaterial reads a "name|unit|description[|unspsc]" flag value.
func parseMaterial(value string) (types.Material, error) {
	parts := strings.Split(value, "|")
	if len(parts) < 3 || len(parts) > 4 {
		return types.Material{}, fmt.Errorf("material %q: want name|unit|description[|unspsc]", value)
	}
	m := types.Material{
		CodeName:             strings.TrimSpace(parts[0]),
		UnitOfMeasure:        catalog.MatchUnit(strings.TrimSpace(parts[1])),
		TechnicalDescription: strings.TrimSpace(parts[2]),
	}
	if len(parts) == 4 {
		m.UNSPSCCode = strings.TrimSpace(parts[3])
	}
	return m, nil
}

func findMaterial(st *store.Store, recordID, materialID string) (types.Material, error) {
	r, ok := st.Get(recordID)
	if !ok {
		return types.Material{}, fmt.Errorf("record %s: %w", recordID, store.ErrNotFound)
	}
	for _, m := range r.Materials {
		if m.ID == materialID {
			return m, nil
		}
	}
	return types.Material{}, fmt.Errorf("material %s in record %s: %w", materialID, recordID, store.ErrNotFound)
}

// explainValidation prints the flagged materials of a duplicate error before
// returning err unchanged.
func explainValidation(w io.Writer, err error) error {
	var dup *validation.DuplicateError
	if errors.As(err, &dup) {
		fmt.Fprintf(w, "Duplicate materials in lot %q:\n", dup.Lot)
		for _, m := range dup.Materials {
			fmt.Fprintf(w, "  - %s (%s)\n", m.CodeName, m.TechnicalDescription)
		}
	}
	return err
}

func printRecords(w io.Writer, records []types.Request) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFECHA\tINSTRUCTOR\tPROGRAMA\tLOTE\tFORMACIÓN\tMATERIALES")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			r.ID, r.Created().Format("2006-01-02"), r.InstructorName, r.ProgramType,
			r.LotType, r.TrainingName, len(r.Materials))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d record(s), %d material(s)\n", len(records), types.CountMaterials(records))
}

func printRecord(w io.Writer, r types.Request) {
	fmt.Fprintf(w, "ID:         %s\n", r.ID)
	fmt.Fprintf(w, "Fecha:      %s\n", r.Created().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "Instructor: %s\n", r.InstructorName)
	fmt.Fprintf(w, "Programa:   %s\n", r.ProgramType)
	fmt.Fprintf(w, "Lote:       %s\n", r.LotType)
	fmt.Fprintf(w, "Formación:  %s\n\n", r.TrainingName)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMATERIAL\tUNIDAD\tUNSPSC\tDESCRIPCIÓN\tIMAGEN")
	for _, m := range r.Materials {
		image := ""
		if m.ImageURL != "" {
			image = "sí"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.ID, m.CodeName, m.UnitOfMeasure, m.UNSPSCCode, m.TechnicalDescription, image)
	}
	_ = tw.Flush()
}
