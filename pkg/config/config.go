package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/boristopalov/gymkit/pkg/core"
	"github.com/boristopalov/gymkit/pkg/wrappers"
)

// EnvPrefix prefixes every environment variable override
const EnvPrefix = "GYMKIT_"

// EnvConfig describes one environment handle to build
type EnvConfig struct {
	Name                   string  `env:"ENV_NAME"`
	Seed                   int64   `hcl:"seed,optional" env:"SEED"`
	SaveFolder             string  `hcl:"save_folder,optional" env:"SAVE_FOLDER"`
	AddEpisodeMonitor      bool    `hcl:"add_episode_monitor,optional" env:"ADD_EPISODE_MONITOR"`
	ActionRepeat           int     `hcl:"action_repeat,optional" env:"ACTION_REPEAT"`
	FrameStack             int     `hcl:"frame_stack,optional" env:"FRAME_STACK"`
	FromPixels             bool    `hcl:"from_pixels,optional" env:"FROM_PIXELS"`
	PixelsOnly             bool    `hcl:"pixels_only,optional" env:"PIXELS_ONLY"`
	ImageSize              int     `hcl:"image_size,optional" env:"IMAGE_SIZE"`
	Sticky                 bool    `hcl:"sticky,optional" env:"STICKY"`
	StickyProbability      float64 `hcl:"sticky_probability,optional" env:"STICKY_PROBABILITY"`
	GrayScale              bool    `hcl:"gray_scale,optional" env:"GRAY_SCALE"`
	Flatten                bool    `hcl:"flatten,optional" env:"FLATTEN"`
	TerminateWhenUnhealthy bool    `hcl:"terminate_when_unhealthy,optional" env:"TERMINATE_WHEN_UNHEALTHY"`
	ActionConcat           int     `hcl:"action_concat,optional" env:"ACTION_CONCAT"` // reserved, no effect
	ObsConcat              int     `hcl:"obs_concat,optional" env:"OBS_CONCAT"`       // reserved, no effect
	Continuous             bool    `hcl:"continuous,optional" env:"CONTINUOUS"`
}

// Default returns the configuration used when an option is not given
func Default(name string) EnvConfig {
	return EnvConfig{
		Name:                   name,
		AddEpisodeMonitor:      true,
		ActionRepeat:           1,
		FrameStack:             1,
		PixelsOnly:             true,
		ImageSize:              84,
		StickyProbability:      wrappers.DefaultStickyProbability,
		Flatten:                true,
		TerminateWhenUnhealthy: true,
		ActionConcat:           1,
		ObsConcat:              1,
		Continuous:             true,
	}
}

// Validate checks the ranges of every field
func (c EnvConfig) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: environment name is empty", core.ErrMalformedConfiguration)
	case c.ActionRepeat < 1:
		return fmt.Errorf("%w: action_repeat must be >= 1, got %d", core.ErrMalformedConfiguration, c.ActionRepeat)
	case c.FrameStack < 1:
		return fmt.Errorf("%w: frame_stack must be >= 1, got %d", core.ErrMalformedConfiguration, c.FrameStack)
	case c.FromPixels && c.ImageSize < 1:
		return fmt.Errorf("%w: image_size must be >= 1, got %d", core.ErrMalformedConfiguration, c.ImageSize)
	case c.StickyProbability < 0 || c.StickyProbability > 1:
		return fmt.Errorf("%w: sticky_probability must be in [0, 1], got %v", core.ErrMalformedConfiguration, c.StickyProbability)
	case c.ActionConcat < 1 || c.ObsConcat < 1:
		return fmt.Errorf("%w: concat counts must be >= 1", core.ErrMalformedConfiguration)
	}
	return nil
}

// ApplyEnv overrides fields from GYMKIT_* environment variables. Unset
// variables leave the field untouched.
func ApplyEnv(cfg *EnvConfig) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ResolveName picks the environment to build: the explicit name, then
// GYMKIT_ENV_NAME, then the first environment block of file
func ResolveName(explicit string, file *ExperimentConfig) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	var fromEnv EnvConfig
	if err := ApplyEnv(&fromEnv); err != nil {
		return "", err
	}
	if fromEnv.Name != "" {
		return fromEnv.Name, nil
	}
	if file != nil && len(file.Environments) > 0 {
		return file.Environments[0].Name, nil
	}
	return "", fmt.Errorf("%w: no environment given", core.ErrMalformedConfiguration)
}
