package environment

import (
	"errors"
	"fmt"
	"log"

	"github.com/boristopalov/gymkit/pkg/backend"
	"github.com/boristopalov/gymkit/pkg/config"
	"github.com/boristopalov/gymkit/pkg/core"
	"github.com/boristopalov/gymkit/pkg/messaging"
)

// Builder turns an EnvConfig into a ready-to-use environment handle
type Builder struct {
	registry  backend.Registry
	suite     backend.Suite
	publisher messaging.Publisher
}

type BuilderOption func(*Builder)

func WithRegistry(r backend.Registry) BuilderOption {
	return func(b *Builder) {
		b.registry = r
	}
}

func WithSuite(s backend.Suite) BuilderOption {
	return func(b *Builder) {
		b.suite = s
	}
}

// WithPublisher forwards episode-end messages from the episode monitor
func WithPublisher(p messaging.Publisher) BuilderOption {
	return func(b *Builder) {
		b.publisher = p
	}
}

func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Make builds the handle described by cfg. The returned handle has already
// been reset with cfg.Seed and its spaces are seeded with the same value.
func (b *Builder) Make(cfg config.EnvConfig) (core.Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := Resolve(cfg.Name, b.registry, cfg.SaveFolder)
	log.Printf("Resolved %s to the %s backend", cfg.Name, res.Descriptor.Kind)

	env, err := Instantiate(res.Descriptor, Backends{Registry: b.registry, Suite: b.suite}, InstantiateOptions{
		Seed:                   cfg.Seed,
		TerminateWhenUnhealthy: cfg.TerminateWhenUnhealthy,
	})
	if err != nil {
		return nil, err
	}

	env, err = Decorate(env, cfg, DecorateOptions{
		Descriptor: res.Descriptor,
		SaveFolder: res.SaveFolder,
		Publisher:  b.publisher,
	})
	if err != nil {
		return nil, closeOnError(env, fmt.Errorf("failed to decorate %s: %w", cfg.Name, err))
	}

	if err := finalize(env, cfg.Seed); err != nil {
		return nil, closeOnError(env, fmt.Errorf("failed to finalize %s: %w", cfg.Name, err))
	}
	return env, nil
}

// Make builds a handle with the given backends and no publisher
func Make(cfg config.EnvConfig, registry backend.Registry, suite backend.Suite) (core.Env, error) {
	return NewBuilder(WithRegistry(registry), WithSuite(suite)).Make(cfg)
}

func finalize(env core.Env, seed int64) error {
	if _, _, err := env.Reset(core.Seed(seed)); err != nil {
		return err
	}
	env.ActionSpace().Seed(seed)
	env.ObservationSpace().Seed(seed)
	return nil
}

func closeOnError(env core.Env, err error) error {
	if env == nil {
		return err
	}
	if closeErr := env.Close(); closeErr != nil {
		return errors.Join(err, fmt.Errorf("close: %w", closeErr))
	}
	return err
}
