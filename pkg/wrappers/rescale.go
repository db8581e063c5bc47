package wrappers

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/boristopalov/gymkit/pkg/core"
)

// RescaleAction exposes a [min, max] action range and maps it linearly onto
// the bounds of the wrapped Box action space
type RescaleAction struct {
	core.Env

	inner    *core.Box
	space    *core.Box
	min, max float64
	width    []float64 // inner.High - inner.Low
}

func NewRescaleAction(env core.Env, min, max float64) (*RescaleAction, error) {
	box, ok := env.ActionSpace().(*core.Box)
	if !ok {
		return nil, fmt.Errorf("%w: rescale needs a Box action space, got %T",
			core.ErrMalformedConfiguration, env.ActionSpace())
	}
	if !box.Bounded() {
		return nil, fmt.Errorf("%w: cannot rescale unbounded action space %v", core.ErrMalformedConfiguration, box)
	}
	if !(min < max) {
		return nil, fmt.Errorf("%w: rescale range [%v, %v] is empty", core.ErrMalformedConfiguration, min, max)
	}

	width := make([]float64, box.Size())
	floats.SubTo(width, box.High, box.Low)

	return &RescaleAction{
		Env:   env,
		inner: box,
		space: core.NewUniformBox(min, max, box.Shape(), box.Dtype),
		min:   min,
		max:   max,
		width: width,
	}, nil
}

func (r *RescaleAction) Unwrap() core.Env {
	return r.Env
}

func (r *RescaleAction) ActionSpace() core.Space {
	return r.space
}

// Action maps an action from the exposed range onto the wrapped bounds
func (r *RescaleAction) Action(action any) ([]float64, error) {
	vals, err := core.AsFloat64s(action)
	if err != nil {
		return nil, fmt.Errorf("rescale action: %w", err)
	}
	if len(vals) != len(r.width) {
		return nil, fmt.Errorf("rescale action: got %d values, want %d", len(vals), len(r.width))
	}
	r.space.Clip(vals)
	floats.AddConst(-r.min, vals)
	floats.Scale(1/(r.max-r.min), vals)
	floats.Mul(vals, r.width)
	floats.Add(vals, r.inner.Low)
	return r.inner.Clip(vals), nil
}

func (r *RescaleAction) Step(action any) (core.StepResult, error) {
	vals, err := r.Action(action)
	if err != nil {
		return core.StepResult{}, err
	}
	return r.Env.Step(r.inner.Cast(vals))
}
