package wrappers

import (
	"fmt"

	"github.com/boristopalov/gymkit/pkg/core"
)

// RepeatAction applies each action several times, summing the rewards.
// It stops early when the episode ends.
type RepeatAction struct {
	core.Env

	repeat int
}

func NewRepeatAction(env core.Env, repeat int) (*RepeatAction, error) {
	if repeat < 1 {
		return nil, fmt.Errorf("%w: action repeat must be positive, got %d", core.ErrMalformedConfiguration, repeat)
	}
	return &RepeatAction{
		Env:    env,
		repeat: repeat,
	}, nil
}

func (r *RepeatAction) Unwrap() core.Env {
	return r.Env
}

func (r *RepeatAction) Step(action any) (core.StepResult, error) {
	var (
		res   core.StepResult
		total float64
	)
	for i := 0; i < r.repeat; i++ {
		var err error
		res, err = r.Env.Step(action)
		if err != nil {
			return res, err
		}
		total += res.Reward
		if res.Done() {
			break
		}
	}
	res.Reward = total
	return res, nil
}
