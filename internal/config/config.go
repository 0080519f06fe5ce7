// Package config loads and validates run configuration.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kecskemeti/arm-hand-ai/internal/evo"
	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/scape"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const EnvPrefix = "ARMHAND"

type Config struct {
	RunID    string `yaml:"run_id" mapstructure:"run_id"`
	Topology string `yaml:"topology" mapstructure:"topology"`
	Scape    string `yaml:"scape" mapstructure:"scape"`
	Seed     int64  `yaml:"seed" mapstructure:"seed"`
	// Ticks bounds the run; 0 runs until the fitness goal is met or the
	// context is cancelled.
	Ticks int `yaml:"ticks" mapstructure:"ticks"`
	// FitnessGoal stops the run once the best fitness reaches it. 0 disables.
	FitnessGoal float64 `yaml:"fitness_goal" mapstructure:"fitness_goal"`
	Resume      bool    `yaml:"resume" mapstructure:"resume"`
	// Workers bounds concurrent evaluations per island; 0 uses every CPU.
	Workers         int    `yaml:"workers" mapstructure:"workers"`
	ParallelIslands bool   `yaml:"parallel_islands" mapstructure:"parallel_islands"`
	LogLevel        string `yaml:"log_level" mapstructure:"log_level"`
	MetricsAddr     string `yaml:"metrics_addr" mapstructure:"metrics_addr"`
	OutputDir       string `yaml:"output_dir" mapstructure:"output_dir"`

	Population PopulationConfig    `yaml:"population" mapstructure:"population"`
	Migration  MigrationConfig     `yaml:"migration" mapstructure:"migration"`
	Operators  OperatorConfig      `yaml:"operators" mapstructure:"operators"`
	Mutation   evo.ScalePolicy     `yaml:"mutation" mapstructure:"mutation"`
	Store      StoreConfig         `yaml:"store" mapstructure:"store"`
	Arm        scape.ArmHoldConfig `yaml:"arm" mapstructure:"arm"`
}

type PopulationConfig struct {
	Islands       int     `yaml:"islands" mapstructure:"islands"`
	Size          int     `yaml:"size" mapstructure:"size"`
	EliteFraction float64 `yaml:"elite_fraction" mapstructure:"elite_fraction"`
	RandomCount   int     `yaml:"random_count" mapstructure:"random_count"`
}

type MigrationConfig struct {
	Interval int     `yaml:"interval" mapstructure:"interval"`
	Events   int     `yaml:"events" mapstructure:"events"`
	Sigma    float64 `yaml:"sigma" mapstructure:"sigma"`
}

// OperatorConfig weights reproduction modes by registered name. A weight of 0
// disables a mode.
type OperatorConfig struct {
	KeepFatherBias bool               `yaml:"keep_father_bias" mapstructure:"keep_father_bias"`
	Weights        map[string]float64 `yaml:"weights" mapstructure:"weights"`
}

type StoreConfig struct {
	Kind   string `yaml:"kind" mapstructure:"kind"`
	Path   string `yaml:"path" mapstructure:"path"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

// Default returns the embedded defaults.
func Default() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		panic(fmt.Sprintf("parsing embedded defaults: %v", err))
	}
	return cfg
}

// Load layers the embedded defaults, the YAML file at path (if any) and
// ARMHAND_* environment variables, in that order. Nested keys map to
// environment names with dots replaced by underscores, so population.size is
// ARMHAND_POPULATION_SIZE.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultsYAML)); err != nil {
		return Config{}, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Write encodes cfg as YAML.
func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return enc.Close()
}

func (c Config) Validate() error {
	if _, err := genotype.ResolveTopology(c.Topology); err != nil {
		return err
	}
	if c.Scape != scape.ArmHoldName {
		return fmt.Errorf("unsupported scape: %s", c.Scape)
	}
	if c.Ticks < 0 {
		return fmt.Errorf("ticks must be >= 0")
	}
	if c.FitnessGoal < 0 {
		return fmt.Errorf("fitness goal must be >= 0")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Population.Islands <= 0 {
		return fmt.Errorf("islands must be > 0")
	}
	if c.Population.Size <= 0 {
		return fmt.Errorf("population size must be > 0")
	}
	if c.Population.EliteFraction <= 0 || c.Population.EliteFraction > 1 {
		return fmt.Errorf("elite fraction must be in (0, 1]")
	}
	if c.Population.RandomCount < 0 {
		return fmt.Errorf("random count must be >= 0")
	}
	elites := evo.EliteCount(c.Population.EliteFraction, c.Population.Size)
	if elites+c.Population.RandomCount > c.Population.Size {
		return fmt.Errorf("elites (%d) + randoms (%d) exceed population size %d", elites, c.Population.RandomCount, c.Population.Size)
	}
	if c.Migration.Interval < 0 || c.Migration.Events < 0 || c.Migration.Sigma < 0 {
		return fmt.Errorf("migration interval, events and sigma must be >= 0")
	}
	if _, err := c.OperatorTable(); err != nil {
		return err
	}
	if err := c.Mutation.Validate(); err != nil {
		return err
	}
	switch c.Store.Kind {
	case "file", "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Kind)
	}
	if c.Store.Kind != "memory" && c.Store.Path == "" {
		return fmt.Errorf("store path is required for %s backend", c.Store.Kind)
	}
	if c.Store.Prefix == "" {
		return fmt.Errorf("store prefix is required")
	}
	return nil
}

// OperatorTable resolves the configured weights against the operator
// registry and applies the interleave bias option.
func (c Config) OperatorTable() (evo.OperatorTable, error) {
	if len(c.Operators.Weights) == 0 {
		return nil, fmt.Errorf("operator weights are required")
	}
	table, err := evo.OperatorTableFromWeights(c.Operators.Weights)
	if err != nil {
		return nil, err
	}
	if c.Operators.KeepFatherBias {
		for i, entry := range table {
			if entry.Operator.Name() == evo.OpInterleave {
				table[i].Operator = evo.InterleaveReproduction{Options: evo.InterleaveOptions{KeepFatherBias: true}}
			}
		}
	}
	return table, nil
}
