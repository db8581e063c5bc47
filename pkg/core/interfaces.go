package core

import (
	"errors"
)

var (
	// ErrUnknownIdentifier is returned when a backend does not know an environment id
	ErrUnknownIdentifier = errors.New("unknown environment identifier")
	// ErrMalformedConfiguration is returned when a wrapper precondition is violated
	ErrMalformedConfiguration = errors.New("malformed configuration")
	// ErrRenderUnsupported is returned by handles that have no renderer
	ErrRenderUnsupported = errors.New("environment does not support rendering")
)

// Env is a simulation environment handle
type Env interface {
	// ObservationSpace describes the observations returned by Reset and Step
	ObservationSpace() Space
	// ActionSpace describes the actions accepted by Step
	ActionSpace() Space
	// Reset starts a new episode. A nil seed keeps the current random stream.
	Reset(seed *int64) (any, Info, error)
	// Step advances the environment by one timestep
	Step(action any) (StepResult, error)
	// Render draws the current state
	Render(opts RenderOptions) (*Image, error)
	// Close releases the handle and everything it wraps
	Close() error
}

// Wrapper is an Env that owns another Env
type Wrapper interface {
	Env
	Unwrap() Env
}

// Space describes a set of observations or actions
type Space interface {
	// Sample draws a random element using the space's own random stream
	Sample() any
	// Contains reports whether x is a member of the space
	Contains(x any) bool
	// Seed resets the space's random stream
	Seed(seed int64)
	// Shape is nil for composite spaces
	Shape() []int
}

// Experiment runs a policy against an environment
type Experiment interface {
	// GetStatus returns current experiment status
	GetStatus() ExperimentStatus
}
