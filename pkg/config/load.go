package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ExperimentConfig is the content of a configuration file
type ExperimentConfig struct {
	Environments []EnvConfig
	Rollout      RolloutConfig
}

// RolloutConfig controls the rollout command
type RolloutConfig struct {
	Episodes  int    `hcl:"episodes,optional"`
	MaxSteps  int    `hcl:"max_steps,optional"`
	Policy    string `hcl:"policy,optional"`   // "random" or "llm"
	Provider  string `hcl:"provider,optional"` // "openai" or "gemini"
	Model     string `hcl:"model,optional"`
	StatsFile string `hcl:"stats_file,optional"`
}

func DefaultRollout() RolloutConfig {
	return RolloutConfig{
		Episodes: 1,
		MaxSteps: 1000,
		Policy:   "random",
		Provider: "openai",
		Model:    "gpt-4o-mini",
	}
}

// Environment returns the block with the given name
func (c *ExperimentConfig) Environment(name string) (EnvConfig, bool) {
	for _, e := range c.Environments {
		if e.Name == name {
			return e, true
		}
	}
	return EnvConfig{}, false
}

// hclFile represents the top-level structure of a configuration file
type hclFile struct {
	Environments []*hclEnvironmentBlock `hcl:"environment,block"`
	Rollout      *hclRolloutBlock       `hcl:"rollout,block"`
}

type hclEnvironmentBlock struct {
	Name   string   `hcl:"name,label"`
	Remain hcl.Body `hcl:",remain"`
}

type hclRolloutBlock struct {
	Remain hcl.Body `hcl:",remain"`
}

// LoadConfig parses an HCL configuration file. Attributes missing from a
// block keep their default values.
func LoadConfig(path string) (*ExperimentConfig, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	return decode(path, file)
}

// ParseConfig parses HCL source held in memory
func ParseConfig(src []byte, filename string) (*ExperimentConfig, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}
	return decode(filename, file)
}

func decode(filename string, file *hcl.File) (*ExperimentConfig, error) {
	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}

	cfg := &ExperimentConfig{
		Environments: make([]EnvConfig, 0, len(parsed.Environments)),
		Rollout:      DefaultRollout(),
	}

	seen := make(map[string]bool)
	for _, block := range parsed.Environments {
		if seen[block.Name] {
			return nil, fmt.Errorf("config %s: environment %q is defined twice", filename, block.Name)
		}
		seen[block.Name] = true

		env := Default(block.Name)
		if diags := gohcl.DecodeBody(block.Remain, nil, &env); diags.HasErrors() {
			return nil, fmt.Errorf("config %s: environment %q: %w", filename, block.Name, diags)
		}
		if err := env.Validate(); err != nil {
			return nil, fmt.Errorf("config %s: environment %q: %w", filename, block.Name, err)
		}
		cfg.Environments = append(cfg.Environments, env)
	}

	if parsed.Rollout != nil {
		if diags := gohcl.DecodeBody(parsed.Rollout.Remain, nil, &cfg.Rollout); diags.HasErrors() {
			return nil, fmt.Errorf("config %s: rollout: %w", filename, diags)
		}
	}

	return cfg, nil
}
