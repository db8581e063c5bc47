package wrappers

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/boristopalov/gymkit/pkg/core"
)

// DefaultStickyProbability is the chance that the previous action is repeated
const DefaultStickyProbability = 0.25

// stickySalt separates the stickiness stream from space samplers that are
// seeded with the same value
const stickySalt int64 = 0x5f3759df2b7e1516

// StickyAction replaces the requested action with the previously issued one
// with a fixed probability. The first step of an episode is never sticky.
type StickyAction struct {
	core.Env

	prob float64
	last any
	rng  *rand.Rand
}

func NewStickyAction(env core.Env, prob float64) (*StickyAction, error) {
	if prob < 0 || prob > 1 {
		return nil, fmt.Errorf("%w: sticky probability %v is outside [0, 1]", core.ErrMalformedConfiguration, prob)
	}
	return &StickyAction{
		Env:  env,
		prob: prob,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (s *StickyAction) Unwrap() core.Env {
	return s.Env
}

// Reset reseeds the stickiness stream when a seed is given
func (s *StickyAction) Reset(seed *int64) (any, core.Info, error) {
	if seed != nil {
		s.rng = rand.New(rand.NewSource(*seed ^ stickySalt))
	}
	s.last = nil
	return s.Env.Reset(seed)
}

func (s *StickyAction) Step(action any) (core.StepResult, error) {
	sticky := false
	if s.last != nil && s.rng.Float64() < s.prob {
		action = s.last
		sticky = true
	}
	s.last = action

	res, err := s.Env.Step(action)
	if err != nil {
		return res, err
	}
	if res.Info == nil {
		res.Info = core.Info{}
	}
	res.Info["sticky"] = sticky
	return res, nil
}
