package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jward/shobo"
	"github.com/jward/shobo/internal/config"
	"github.com/jward/shobo/internal/generator"
)

var (
	flagNumber     int
	flagOutput     string
	flagProducts   string
	flagFirstNames string
	flagLastNames  string
	flagPurchaseP  float64
	flagAddP       float64
	flagMinOps     int
	flagMaxOps     int
	flagSeed       uint64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic users snapshot",
	Long:  "Synthesizes users with random shopping histories from a product catalog and name lists, writes them as a snapshot and prints statistics about the result.",
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

func init() {
	d := generator.DefaultConfig()
	generateCmd.Flags().IntVar(&flagNumber, "number", d.Count, "number of users")
	generateCmd.Flags().StringVar(&flagOutput, "output", "", "snapshot to write (default: data/users.json)")
	generateCmd.Flags().StringVar(&flagProducts, "products", "", "product catalog JSON (default: data/products.json)")
	generateCmd.Flags().StringVar(&flagFirstNames, "first-names", "", "first names, one per line (default: data/first-names.txt)")
	generateCmd.Flags().StringVar(&flagLastNames, "last-names", "", "last names, one per line (default: data/last-names.txt)")
	generateCmd.Flags().Float64Var(&flagPurchaseP, "purchase_probability", d.PurchaseProbability, "probability of a purchase step")
	generateCmd.Flags().Float64Var(&flagAddP, "adding_probability", d.AddProbability, "probability of an addition step")
	generateCmd.Flags().IntVar(&flagMinOps, "min-ops", d.MinOps, "minimum operations per user")
	generateCmd.Flags().IntVar(&flagMaxOps, "max-ops", d.MaxOps, "maximum operations per user")
	generateCmd.Flags().Uint64Var(&flagSeed, "seed", 0, "random seed; 0 picks one")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	applyGenerateFlags(cmd, &cfg)
	g := cfg.Generate

	catalog, err := generator.LoadCatalogFile(g.Products)
	if err != nil {
		return outputError("generate", err)
	}
	first, err := generator.LoadNamesFile(g.FirstNames)
	if err != nil {
		return outputError("generate", err)
	}
	last, err := generator.LoadNamesFile(g.LastNames)
	if err != nil {
		return outputError("generate", err)
	}

	gen, err := generator.New(generator.Config{
		Count:               g.Count,
		PurchaseProbability: g.PurchaseProbability,
		AddProbability:      g.AddProbability,
		MinOps:              g.MinOps,
		MaxOps:              g.MaxOps,
		Seed:                g.Seed,
	}, catalog, first, last, generator.WithLogger(logger))
	if err != nil {
		return outputError("generate", err)
	}
	s, err := gen.Generate()
	if err != nil {
		return outputError("generate", err)
	}

	if err := s.SaveFile(g.Output, ""); err != nil {
		return outputError("generate", fmt.Errorf("writing %s: %w", g.Output, err))
	}
	logger.Info("snapshot generated", zap.String("path", g.Output), zap.Int("users", s.Len()))

	return outputResult(CLIResult{
		Command: "generate",
		Results: CLIGenerated{
			CLIWrite: CLIWrite{Path: g.Output, Users: s.Len()},
			Stats:    shobo.Summarize(s),
		},
	})
}

// applyGenerateFlags copies explicitly set generate flags into c.
func applyGenerateFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("number") {
		c.Generate.Count = flagNumber
	}
	if flags.Changed("output") {
		c.Generate.Output = flagOutput
	}
	if flags.Changed("products") {
		c.Generate.Products = flagProducts
	}
	if flags.Changed("first-names") {
		c.Generate.FirstNames = flagFirstNames
	}
	if flags.Changed("last-names") {
		c.Generate.LastNames = flagLastNames
	}
	if flags.Changed("purchase_probability") {
		c.Generate.PurchaseProbability = flagPurchaseP
	}
	if flags.Changed("adding_probability") {
		c.Generate.AddProbability = flagAddP
	}
	if flags.Changed("min-ops") {
		c.Generate.MinOps = flagMinOps
	}
	if flags.Changed("max-ops") {
		c.Generate.MaxOps = flagMaxOps
	}
	if flags.Changed("seed") {
		c.Generate.Seed = flagSeed
	}
}
