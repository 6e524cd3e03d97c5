package main

import (
	"github.com/spf13/cobra"

	"github.com/jward/shobo"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the loaded snapshot",
	Long:  "Prints operation counts, purchase rates, the most added, removed and purchased products and the total value of purchases.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return outputError("stats", err)
		}
		return outputResult(CLIResult{
			Command: "stats",
			Results: CLIStats{Path: engine.Source(), Stats: shobo.Summarize(engine.Store())},
		})
	},
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the loaded snapshot to the safe output path",
	Long:  "Re-encodes the loaded snapshot to --safe-output. Writing over the snapshot that was loaded is refused.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return outputError("save", err)
		}
		if err := engine.Save(cfg.Data.SafeOutput); err != nil {
			return outputError("save", err)
		}
		return outputResult(CLIResult{
			Command: "save",
			Results: CLIWrite{Path: cfg.Data.SafeOutput, Users: engine.Store().Len()},
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [db]",
	Short: "Write the loaded snapshot to a SQLite archive",
	Long:  "Replaces the contents of the SQLite archive (default: data/users.db) with the loaded snapshot and prints the export id.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := cfg.Data.Archive
		if len(args) > 0 {
			dbPath = args[0]
		}
		engine, err := openEngine()
		if err != nil {
			return outputError("export", err)
		}
		id, err := engine.Export(dbPath)
		if err != nil {
			return outputError("export", err)
		}
		return outputResult(CLIResult{
			Command: "export",
			Results: CLIWrite{Path: dbPath, Users: engine.Store().Len(), ExportID: id},
		})
	},
}
