package wrappers

import (
	"fmt"

	"github.com/boristopalov/gymkit/pkg/core"
)

// SinglePrecision casts Box observations to float32
type SinglePrecision struct {
	core.Env

	space *core.Box
}

func NewSinglePrecision(env core.Env) (*SinglePrecision, error) {
	box, ok := env.ObservationSpace().(*core.Box)
	if !ok {
		return nil, fmt.Errorf("%w: single precision needs a Box observation space, got %T",
			core.ErrMalformedConfiguration, env.ObservationSpace())
	}
	return &SinglePrecision{
		Env:   env,
		space: core.NewBox(box.Low, box.High, box.Shape(), core.Float32),
	}, nil
}

func (s *SinglePrecision) Unwrap() core.Env {
	return s.Env
}

func (s *SinglePrecision) ObservationSpace() core.Space {
	return s.space
}

func (s *SinglePrecision) observation(x any) (any, error) {
	if v, ok := x.([]float32); ok {
		return v, nil
	}
	vals, err := core.AsFloat64s(x)
	if err != nil {
		return nil, fmt.Errorf("single precision: %w", err)
	}
	return s.space.Cast(vals), nil
}

func (s *SinglePrecision) Reset(seed *int64) (any, core.Info, error) {
	obs, info, err := s.Env.Reset(seed)
	if err != nil {
		return nil, nil, err
	}
	obs, err = s.observation(obs)
	return obs, info, err
}

func (s *SinglePrecision) Step(action any) (core.StepResult, error) {
	res, err := s.Env.Step(action)
	if err != nil {
		return res, err
	}
	res.Observation, err = s.observation(res.Observation)
	return res, err
}
