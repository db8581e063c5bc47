package agent

import (
	"context"

	"github.com/boristopalov/gymkit/pkg/core"
)

// Policy chooses an action for an observation
type Policy interface {
	Act(ctx context.Context, obs any) (any, error)
}

// Observer is implemented by policies that learn from what happened
type Observer interface {
	Observe(t Transition)
}

// Transition is one step of experience
type Transition struct {
	Observation any
	Action      any
	Reward      float64
	Done        bool
}

// RandomPolicy samples uniformly from the action space
type RandomPolicy struct {
	space core.Space
}

// NewRandomPolicy seeds space so that action sequences repeat for a given seed
func NewRandomPolicy(space core.Space, seed int64) *RandomPolicy {
	space.Seed(seed)
	return &RandomPolicy{space: space}
}

func (p *RandomPolicy) Act(ctx context.Context, obs any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.space.Sample(), nil
}
