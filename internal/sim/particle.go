package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/boristopalov/gymkit/pkg/backend"
	"github.com/boristopalov/gymkit/pkg/core"
)

var particleTasks = map[string]float64{
	"walk": 1,
	"run":  3,
}

// Particle rewards moving at a target speed. Observations are a dict of
// position and velocity.
type Particle struct {
	target   float64
	obsSpace *core.Dict
	actSpace *core.Box

	rng   *rand.Rand
	body  body
	steps int
	done  bool
}

func loadParticle(task string, opts backend.TaskOptions) (core.Env, error) {
	target, ok := particleTasks[task]
	if !ok {
		return nil, fmt.Errorf("particle task %s: %w", task, core.ErrUnknownIdentifier)
	}
	return &Particle{
		target: target,
		obsSpace: core.NewDict(map[string]core.Space{
			"position": unbounded(1),
			"velocity": unbounded(1),
		}),
		actSpace: core.NewUniformBox(-1, 1, []int{1}, core.Float64),
		rng:      rand.New(rand.NewSource(opts.Random)),
	}, nil
}

func (p *Particle) ObservationSpace() core.Space { return p.obsSpace }
func (p *Particle) ActionSpace() core.Space      { return p.actSpace }

func (p *Particle) observation() map[string]any {
	return map[string]any{
		"position": []float64{p.body.pos},
		"velocity": []float64{p.body.vel},
	}
}

func (p *Particle) Reset(seed *int64) (any, core.Info, error) {
	if seed != nil {
		p.rng = newRand(seed)
	}
	p.body = body{pos: p.rng.Float64()*0.2 - 0.1}
	p.steps = 0
	p.done = false
	return p.observation(), core.Info{}, nil
}

func (p *Particle) Step(action any) (core.StepResult, error) {
	if p.done {
		return core.StepResult{}, errStepAfterDone
	}
	a, err := core.AsFloat64s(action)
	if err != nil || len(a) != 1 {
		return core.StepResult{}, fmt.Errorf("particle: invalid action %v", action)
	}
	// actions are scaled so that the run target is reachable
	p.body.push(4 * p.actSpace.Clip(a)[0])
	p.steps++

	res := core.StepResult{
		Observation: p.observation(),
		Reward:      math.Max(0, 1-math.Abs(p.body.vel-p.target)/p.target),
		Truncated:   p.steps >= maxSteps,
		Info:        core.Info{},
	}
	p.done = res.Done()
	return res, nil
}

func (p *Particle) Render(opts core.RenderOptions) (*core.Image, error) {
	return renderLine(opts, p.body.pos)
}

func (p *Particle) Close() error {
	return nil
}
