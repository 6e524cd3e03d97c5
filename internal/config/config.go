// Package config resolves shobo settings from defaults, an optional config
// file and SHOBO_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Data struct {
		Path       string
		SafeOutput string
		Archive    string
	}
	Log struct {
		Level  string
		Format string
	}
	Output struct {
		Format string
	}
	Generate struct {
		Count               int
		Output              string
		Products            string
		FirstNames          string
		LastNames           string
		PurchaseProbability float64
		AddProbability      float64
		MinOps              int
		MaxOps              int
		Seed                uint64
	}
}

// Load builds a Config. path names an optional YAML, TOML or JSON file; an
// empty path skips file loading. Output.Format is not checked here because
// command-line flags may still replace it.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("shobo")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.path", "data/users.json")
	v.SetDefault("data.safe_output", "data/safe_users.json")
	v.SetDefault("data.archive", "data/users.db")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")

	v.SetDefault("output.format", "text")

	v.SetDefault("generate.count", 100)
	v.SetDefault("generate.output", "data/users.json")
	v.SetDefault("generate.products", "data/products.json")
	v.SetDefault("generate.first_names", "data/first-names.txt")
	v.SetDefault("generate.last_names", "data/last-names.txt")
	v.SetDefault("generate.purchase_probability", 0.05)
	v.SetDefault("generate.add_probability", 0.75)
	v.SetDefault("generate.min_ops", 5)
	v.SetDefault("generate.max_ops", 25)
	v.SetDefault("generate.seed", 0)

	// Short aliases for the settings people change most.
	v.BindEnv("data.path", "SHOBO_DATA")
	v.BindEnv("log.level", "SHOBO_LOG_LEVEL", "LOG_LEVEL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	c.Data.Path = v.GetString("data.path")
	c.Data.SafeOutput = v.GetString("data.safe_output")
	c.Data.Archive = v.GetString("data.archive")

	c.Log.Level = v.GetString("log.level")
	c.Log.Format = v.GetString("log.format")

	c.Output.Format = v.GetString("output.format")

	c.Generate.Count = v.GetInt("generate.count")
	c.Generate.Output = v.GetString("generate.output")
	c.Generate.Products = v.GetString("generate.products")
	c.Generate.FirstNames = v.GetString("generate.first_names")
	c.Generate.LastNames = v.GetString("generate.last_names")
	c.Generate.PurchaseProbability = v.GetFloat64("generate.purchase_probability")
	c.Generate.AddProbability = v.GetFloat64("generate.add_probability")
	c.Generate.MinOps = v.GetInt("generate.min_ops")
	c.Generate.MaxOps = v.GetInt("generate.max_ops")
	c.Generate.Seed = v.GetUint64("generate.seed")
	return c, nil
}
