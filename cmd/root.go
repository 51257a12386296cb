// =============================================================================
// SENA Material Requisitions - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (sena)
//   ├── add / list / show / delete / clear       Record management
//   ├── delete-material / update-material / image Material management
//   ├── import <file>                             Bulk CSV/XLSX upload
//   ├── consolidate <files|dirs...>               Merge submission files
//   ├── export <format> / template                Export files
//   ├── report <kind>                             Coordinator reports
//   ├── enrich <name>                             Description/UNSPSC suggestion
//   ├── serve                                     HTTP report service
//   └── version
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the configuration and the catalog
//   3. Setting up logging
//
// Commands that read or write records open the store through withStore.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jllhz8912/sena/internal/config"
	"github.com/jllhz8912/sena/internal/logging"
	"github.com/jllhz8912/sena/internal/store"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// Loaded by the root PersistentPreRunE.
var (
	cfg     config.Config
	catalog *config.Catalog
	logger  = zap.NewNop()
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "sena",
	Short: "SENA material requisitions - collect, import, consolidate and report",
	Long: `sena collects training-material requisitions from instructors.

Each record names an instructor, a training program, a lot (material
category) and a training, plus the list of requested materials. Records can
be entered one by one, uploaded in bulk from CSV/XLSX files, merged from
the JSON submission files instructors export, and exported as spreadsheets
and pivot datasets for coordinators.

Example Usage:
  sena import carga.csv --yes             # Bulk upload a spreadsheet
  sena consolidate ./envios --yes         # Merge every submission in a directory
  sena export xlsx --out ./reportes       # Write the consolidated workbook
  sena report matrix --rows training      # Print the training x lot matrix
  sena serve                              # Expose the reports over HTTP`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initialize()
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},

	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// initialize loads the configuration, the logger and the catalog.
func initialize() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err = logging.New(cfg.App.Env, cfg.App.LogLevel, verbose)
	if err != nil {
		return err
	}

	catalog = config.DefaultCatalog()
	if cfg.CatalogFile != "" {
		catalog, err = config.LoadCatalog(cfg.CatalogFile)
		if err != nil {
			return err
		}
	}

	logger.Debug("configuration loaded",
		zap.String("config", cfgFile),
		zap.String("store", cfg.Store.Backend),
		zap.Int("lots", len(catalog.Lots)),
	)
	return nil
}

// withStore opens the configured store, runs fn and closes the store.
func withStore(ctx context.Context, fn func(*store.Store) error) error {
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()
	return fn(st)
}
