// =============================================================================
// VAT Checker - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (vatcheck)
//   ├── reconcileCmd (vatcheck reconcile)
//   ├── inspectCmd   (vatcheck inspect)
//   └── versionCmd   (vatcheck version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads a .env file when one is present
//   2. Loads the main configuration (defaults when the default file is absent)
//   3. Builds the zap logger
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/vat-checker/internal/config"
	"github.com/ginjaninja78/vat-checker/internal/logger"
	"github.com/ginjaninja78/vat-checker/pkg/utils"
)

// defaultConfigFile is used when --config is not given.
const defaultConfigFile = "config.yaml"

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// mainConfig and log are set by the root command before a subcommand runs.
var (
	mainConfig *config.MainConfig
	log        = zap.NewNop()
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vatcheck",
	Short: "VAT Checker - Reconcile purchase ledgers against VAT claims",

	Long: `VAT Checker reads a cost ledger and a VAT ledger exported from an
accounting system (CSV, XML, SpreadsheetML or XLSX), works out which is which,
compares the VAT each invoice should carry with the VAT actually claimed and
produces the nine figures of a VAT return.

Example Usage:
  vatcheck reconcile costs.csv vat.xml --period "Q1 2025"
  vatcheck reconcile --input-dir ./input --format xlsx,xml --archive
  vatcheck inspect ledger.xml`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initialize(cmd)
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	err := rootCmd.Execute()
	_ = log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		defaultConfigFile,
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// initialize loads the environment, configuration and logger.
func initialize(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := loadConfig(cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	mainConfig = cfg

	level := logger.LevelFromEnv(cfg.LogLevel)
	if verbose {
		level = "debug"
	}

	l, err := logger.New(logger.Config{Level: level, JSON: cfg.LogJSON, Color: !cfg.LogJSON})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log = l
	return nil
}

// loadConfig reads the configuration file. A missing default file yields
// the built-in defaults; a missing explicit file is an error.
func loadConfig(explicit bool) (*config.MainConfig, error) {
	if !explicit && !utils.FileExists(cfgFile) {
		return config.DefaultMainConfig(), nil
	}

	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}
	return cfg, nil
}
