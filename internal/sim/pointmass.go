package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/boristopalov/gymkit/pkg/core"
)

// PointMass drives a body towards the origin. The observation is
// [position, velocity] and the reward is the negative squared distance.
type PointMass struct {
	spread             float64
	terminateUnhealthy bool
	obsSpace, actSpace *core.Box

	rng   *rand.Rand
	body  body
	steps int
	done  bool
}

func NewPointMass(spread float64, terminateWhenUnhealthy bool) *PointMass {
	return &PointMass{
		spread:             spread,
		terminateUnhealthy: terminateWhenUnhealthy,
		obsSpace:           unbounded(2),
		actSpace:           core.NewUniformBox(-2, 2, []int{1}, core.Float64),
		rng:                newRand(nil),
	}
}

func (p *PointMass) ObservationSpace() core.Space { return p.obsSpace }
func (p *PointMass) ActionSpace() core.Space      { return p.actSpace }

func (p *PointMass) observation() []float64 {
	return []float64{p.body.pos, p.body.vel}
}

func (p *PointMass) Reset(seed *int64) (any, core.Info, error) {
	if seed != nil {
		p.rng = newRand(seed)
	}
	p.body = body{pos: (p.rng.Float64()*2 - 1) * p.spread}
	p.steps = 0
	p.done = false
	return p.observation(), core.Info{}, nil
}

func (p *PointMass) Step(action any) (core.StepResult, error) {
	if p.done {
		return core.StepResult{}, errStepAfterDone
	}
	a, err := core.AsFloat64s(action)
	if err != nil || len(a) != 1 {
		return core.StepResult{}, fmt.Errorf("point mass: invalid action %v", action)
	}
	p.body.push(p.actSpace.Clip(a)[0])
	p.steps++

	res := core.StepResult{
		Observation: p.observation(),
		Reward:      -p.body.pos * p.body.pos,
		Terminated:  p.terminateUnhealthy && math.Abs(p.body.pos) > healthLimit,
		Truncated:   p.steps >= maxSteps,
		Info:        core.Info{"distance": math.Abs(p.body.pos)},
	}
	p.done = res.Done()
	return res, nil
}

func (p *PointMass) Render(opts core.RenderOptions) (*core.Image, error) {
	return renderLine(opts, p.body.pos)
}

func (p *PointMass) Close() error {
	return nil
}
