package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jward/shobo"
	"github.com/jward/shobo/scripts"
)

var (
	flagScriptsDir string
	flagArchive    bool
)

var reportCmd = &cobra.Command{
	Use:   "report <script>",
	Short: "Run a report script against the loaded snapshot",
	Long: `Runs a Risor report script and prints the values it emits.

<script> is the name of a built-in report (summary, top_products, users) or a
path to a .risor file.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load built-in reports from disk path instead of embedded")
	reportCmd.Flags().BoolVar(&flagArchive, "archive", false, "read users from the SQLite archive instead of the snapshot")
}

func runReport(cmd *cobra.Command, args []string) error {
	// Script source: --scripts-dir overrides embedded FS.
	opts := []shobo.Option{shobo.WithLogger(logger)}
	if flagScriptsDir != "" {
		opts = append(opts, shobo.WithScriptsDir(flagScriptsDir))
	} else {
		opts = append(opts, shobo.WithScriptsFS(scripts.FS))
	}

	var (
		engine *shobo.Engine
		err    error
	)
	if flagArchive {
		engine, err = shobo.OpenArchive(cfg.Data.Archive, opts...)
	} else {
		engine, err = shobo.Open(cfg.Data.Path, opts...)
	}
	if err != nil {
		return outputError("report", err)
	}

	rep, err := engine.RunReport(context.Background(), args[0])
	if err != nil {
		return outputError("report", err)
	}
	total := len(rep.Entries)
	return outputResult(CLIResult{
		Command:    "report",
		Results:    rep.Entries,
		TotalCount: &total,
	})
}
