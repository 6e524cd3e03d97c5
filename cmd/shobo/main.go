package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jward/shobo"
	"github.com/jward/shobo/internal/config"
	"github.com/jward/shobo/internal/logging"
)

var (
	flagData       string
	flagSafeOutput string
	flagFormat     string
	flagConfig     string
	flagLogLevel   string
)

// cfg and logger are resolved once per invocation by setup.
var (
	cfg    config.Config
	logger = zap.NewNop()
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "shobo",
	Short:             "Query shopping-basket histories",
	Long:              "Shobo loads a snapshot of users' shopping-basket histories and answers aggregate questions about added, removed and purchased products.",
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagData, "data", "", "snapshot path (default: data/users.json)")
	rootCmd.PersistentFlags().StringVar(&flagSafeOutput, "safe-output", "", "path used by save (default: data/safe_users.json)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "", "output format: json|text (default: text)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(reportCmd)
}

// setup loads configuration, applies explicitly set flags on top of it and
// builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	applyGlobalFlags(cmd, &c)

	if err := validateFormat(c.Output.Format); err != nil {
		return err
	}
	flagFormat = c.Output.Format

	l, err := logging.New(c.Log.Level, c.Log.Format)
	if err != nil {
		return err
	}
	cfg = c
	logger = l
	return nil
}

// applyGlobalFlags copies flags the user set on the command line into c.
// Unset flags leave the configured value alone.
func applyGlobalFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("data") {
		c.Data.Path = flagData
	}
	if flags.Changed("safe-output") {
		c.Data.SafeOutput = flagSafeOutput
	}
	if flags.Changed("format") {
		c.Output.Format = flagFormat
	}
	if flags.Changed("log-level") {
		c.Log.Level = flagLogLevel
	}
}

// openEngine loads the configured snapshot.
func openEngine(opts ...shobo.Option) (*shobo.Engine, error) {
	opts = append([]shobo.Option{shobo.WithLogger(logger)}, opts...)
	return shobo.Open(cfg.Data.Path, opts...)
}
