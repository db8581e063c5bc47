// Package wrappers contains the decorators that can be stacked on top of a
// core.Env. Each wrapper owns the environment it wraps and closes it on Close.
package wrappers

import (
	"fmt"

	"github.com/boristopalov/gymkit/pkg/core"
)

// FlattenObservation turns composite observations into a single flat vector
type FlattenObservation struct {
	core.Env

	inner core.Space
	space *core.Box
}

// NewFlattenObservation wraps env so that its observation space is a flat Box
func NewFlattenObservation(env core.Env) (*FlattenObservation, error) {
	inner := env.ObservationSpace()
	space, err := core.FlattenSpace(inner)
	if err != nil {
		return nil, fmt.Errorf("flatten observation: %w", err)
	}
	return &FlattenObservation{
		Env:   env,
		inner: inner,
		space: space,
	}, nil
}

func (f *FlattenObservation) Unwrap() core.Env {
	return f.Env
}

func (f *FlattenObservation) ObservationSpace() core.Space {
	return f.space
}

// Observation flattens an observation of the wrapped environment
func (f *FlattenObservation) Observation(x any) (any, error) {
	vals, err := core.Flatten(f.inner, x)
	if err != nil {
		return nil, err
	}
	return f.space.Cast(vals), nil
}

func (f *FlattenObservation) Reset(seed *int64) (any, core.Info, error) {
	obs, info, err := f.Env.Reset(seed)
	if err != nil {
		return nil, nil, err
	}
	obs, err = f.Observation(obs)
	return obs, info, err
}

func (f *FlattenObservation) Step(action any) (core.StepResult, error) {
	res, err := f.Env.Step(action)
	if err != nil {
		return res, err
	}
	res.Observation, err = f.Observation(res.Observation)
	return res, err
}

// FlattenAction exposes a composite action space as a flat Box and
// unflattens actions before forwarding them
type FlattenAction struct {
	core.Env

	inner core.Space
	space *core.Box
}

// NewFlattenAction wraps env so that its action space is a flat Box
func NewFlattenAction(env core.Env) (*FlattenAction, error) {
	inner := env.ActionSpace()
	space, err := core.FlattenSpace(inner)
	if err != nil {
		return nil, fmt.Errorf("flatten action: %w", err)
	}
	return &FlattenAction{
		Env:   env,
		inner: inner,
		space: space,
	}, nil
}

func (f *FlattenAction) Unwrap() core.Env {
	return f.Env
}

func (f *FlattenAction) ActionSpace() core.Space {
	return f.space
}

func (f *FlattenAction) Step(action any) (core.StepResult, error) {
	vals, err := core.AsFloat64s(action)
	if err != nil {
		return core.StepResult{}, fmt.Errorf("flatten action: %w", err)
	}
	inner, err := core.Unflatten(f.inner, vals)
	if err != nil {
		return core.StepResult{}, fmt.Errorf("flatten action: %w", err)
	}
	return f.Env.Step(inner)
}
