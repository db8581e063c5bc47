package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/boristopalov/gymkit/pkg/core"
)

const sampleConfig = `
environment "cheetah-run" {
  seed          = 42
  action_repeat = 4
  from_pixels   = true
  gray_scale    = true
}

environment "Hopper-v3" {
  continuous = false
  save_folder = "/tmp/ignored"
}

rollout {
  episodes = 5
  policy   = "llm"
}
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "envs.hcl")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Environments) != 2 {
		t.Fatalf("got %d environments, want 2", len(cfg.Environments))
	}

	cheetah, ok := cfg.Environment("cheetah-run")
	if !ok {
		t.Fatal("cheetah-run not found")
	}
	if cheetah.Seed != 42 || cheetah.ActionRepeat != 4 || !cheetah.FromPixels || !cheetah.GrayScale {
		t.Errorf("explicit attributes not decoded: %+v", cheetah)
	}
	// attributes missing from the block keep their defaults
	if !cheetah.Flatten || !cheetah.Continuous || cheetah.ImageSize != 84 || cheetah.FrameStack != 1 {
		t.Errorf("defaults not applied: %+v", cheetah)
	}

	hopper, _ := cfg.Environment("Hopper-v3")
	if hopper.Continuous {
		t.Error("continuous = false was not decoded")
	}
	if hopper.SaveFolder != "/tmp/ignored" {
		t.Errorf("save folder = %q", hopper.SaveFolder)
	}

	if cfg.Rollout.Episodes != 5 || cfg.Rollout.Policy != "llm" {
		t.Errorf("rollout block not decoded: %+v", cfg.Rollout)
	}
	if cfg.Rollout.MaxSteps != 1000 {
		t.Errorf("rollout defaults not applied: %+v", cfg.Rollout)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `environment "a" {`},
		{"unknown attribute", `environment "a" { colour = "red" }`},
		{"duplicate", "environment \"a\" {}\nenvironment \"a\" {}"},
		{"invalid range", `environment "a" { frame_stack = 0 }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.src), "test.hcl"); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Default("cheetah-run").Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}

	bad := Default("cheetah-run")
	bad.StickyProbability = 2
	if err := bad.Validate(); !errors.Is(err, core.ErrMalformedConfiguration) {
		t.Errorf("expected ErrMalformedConfiguration, got %v", err)
	}

	if err := Default("").Validate(); !errors.Is(err, core.ErrMalformedConfiguration) {
		t.Errorf("empty name: expected ErrMalformedConfiguration, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GYMKIT_SEED", "7")
	t.Setenv("GYMKIT_FRAME_STACK", "3")
	t.Setenv("GYMKIT_STICKY", "true")

	cfg := Default("cheetah-run")
	cfg.ActionRepeat = 2
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Seed != 7 || cfg.FrameStack != 3 || !cfg.Sticky {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.ActionRepeat != 2 || cfg.Name != "cheetah-run" {
		t.Errorf("unset variables changed fields: %+v", cfg)
	}
}

func TestResolveName(t *testing.T) {
	file := &ExperimentConfig{Environments: []EnvConfig{Default("cheetah-run"), Default("Hopper-v4")}}

	t.Run("explicit name wins", func(t *testing.T) {
		t.Setenv("GYMKIT_ENV_NAME", "quadruped")
		if got, _ := ResolveName("Ant-v4", file); got != "Ant-v4" {
			t.Errorf("ResolveName = %q, want Ant-v4", got)
		}
	})

	t.Run("environment variable", func(t *testing.T) {
		t.Setenv("GYMKIT_ENV_NAME", "quadruped")
		if got, _ := ResolveName("", file); got != "quadruped" {
			t.Errorf("ResolveName = %q, want quadruped", got)
		}
	})

	t.Run("first file block", func(t *testing.T) {
		t.Setenv("GYMKIT_ENV_NAME", "")
		if got, _ := ResolveName("", file); got != "cheetah-run" {
			t.Errorf("ResolveName = %q, want cheetah-run", got)
		}
	})

	t.Run("nothing given", func(t *testing.T) {
		t.Setenv("GYMKIT_ENV_NAME", "")
		if _, err := ResolveName("", nil); !errors.Is(err, core.ErrMalformedConfiguration) {
			t.Errorf("expected ErrMalformedConfiguration, got %v", err)
		}
	})
}
