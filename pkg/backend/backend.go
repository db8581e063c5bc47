// Package backend defines the two simulation backends an environment
// identifier can resolve to, along with in-memory implementations of both.
package backend

import (
	"github.com/boristopalov/gymkit/pkg/core"
)

// MakeOptions are forwarded to registry constructors
type MakeOptions struct {
	// TerminateWhenUnhealthy ends locomotion episodes when the body leaves
	// its healthy state range
	TerminateWhenUnhealthy bool
}

// TaskOptions are forwarded to domain/task constructors
type TaskOptions struct {
	// Random seeds the task's initial state distribution
	Random int64
}

// Registry is an identifier-keyed simulation backend
type Registry interface {
	// Registered reports whether id is currently known to the registry
	Registered(id string) bool
	// Make constructs the environment registered under id. Unknown ids
	// return an error wrapping core.ErrUnknownIdentifier.
	Make(id string, opts MakeOptions) (core.Env, error)
}

// Suite is a domain/task keyed simulation backend
type Suite interface {
	// Load constructs the environment for a domain and task
	Load(domain, task string, opts TaskOptions) (core.Env, error)
}
