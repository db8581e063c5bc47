package environment

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/boristopalov/gymkit/pkg/backend"
	"github.com/boristopalov/gymkit/pkg/core"
)

// Backends are the simulation backends available to Instantiate
type Backends struct {
	Registry backend.Registry
	Suite    backend.Suite
}

// InstantiateOptions are forwarded to the backend constructors
type InstantiateOptions struct {
	Seed                   int64
	TerminateWhenUnhealthy bool
}

// Instantiate creates the raw, undecorated environment for d.
//
// Registry ids that are unknown get exactly one retry with the v3/v4
// version token swapped.
func Instantiate(d Descriptor, backends Backends, opts InstantiateOptions) (core.Env, error) {
	switch d.Kind {
	case RegistryBacked:
		return makeFromRegistry(d.ID, backends.Registry, opts)
	case DomainTaskBacked:
		if backends.Suite == nil {
			return nil, fmt.Errorf("%w: no domain/task suite configured for %s-%s",
				core.ErrMalformedConfiguration, d.Domain, d.Task)
		}
		log.Printf("Loading domain/task environment: %s-%s", d.Domain, d.Task)
		env, err := backends.Suite.Load(d.Domain, d.Task, backend.TaskOptions{Random: opts.Seed})
		if err != nil {
			return nil, fmt.Errorf("failed to load %s-%s: %w", d.Domain, d.Task, err)
		}
		return env, nil
	default:
		return nil, fmt.Errorf("%w: unresolved backend kind %v", core.ErrMalformedConfiguration, d.Kind)
	}
}

func makeFromRegistry(id string, registry backend.Registry, opts InstantiateOptions) (core.Env, error) {
	if registry == nil {
		return nil, fmt.Errorf("environment %s: no registry configured: %w", id, core.ErrUnknownIdentifier)
	}
	makeOpts := backend.MakeOptions{TerminateWhenUnhealthy: opts.TerminateWhenUnhealthy}

	log.Printf("Loading registry environment: %s", id)
	env, err := registry.Make(id, makeOpts)
	if err == nil {
		return env, nil
	}
	if !errors.Is(err, core.ErrUnknownIdentifier) {
		return nil, err
	}

	alt, ok := fallbackID(id)
	if !ok {
		return nil, err
	}
	log.Printf("Warning: %s not found in registry. Trying fallback to %s.", id, alt)
	env, altErr := registry.Make(alt, makeOpts)
	if altErr != nil {
		return nil, fmt.Errorf("fallback from %s to %s failed: %w", id, alt, altErr)
	}
	return env, nil
}

// fallbackID swaps the v3/v4 version token, preferring v3 -> v4
func fallbackID(id string) (string, bool) {
	switch {
	case strings.Contains(id, "v3"):
		return strings.ReplaceAll(id, "v3", "v4"), true
	case strings.Contains(id, "v4"):
		return strings.ReplaceAll(id, "v4", "v3"), true
	default:
		return "", false
	}
}
