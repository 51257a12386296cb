package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jllhz8912/sena/internal/enrichment"
)

var enrichLot string

// enrichCmd asks the text generation service for a technical description and
// an UNSPSC classification of a material name.
var enrichCmd = &cobra.Command{
	Use:   "enrich <material-name>",
	Short: "Suggest a description and UNSPSC code for a material",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc := enrichment.New(ctx, cfg.Enrichment.APIKey, cfg.Enrichment.Model, logger)
		s := enrichment.Suggest(ctx, svc, args[0], enrichLot, logger)

		out := cmd.OutOrStdout()
		if s.IsEmpty() {
			fmt.Fprintln(out, "No suggestion available.")
			return nil
		}
		fmt.Fprintf(out, "Descripción: %s\n", s.Description)
		fmt.Fprintf(out, "UNSPSC:      %s\n", s.Code)
		fmt.Fprintf(out, "Clase:       %s\n", s.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
	enrichCmd.Flags().StringVar(&enrichLot, "lot", "", "Lot giving context to the description")
}
