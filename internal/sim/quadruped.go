package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/boristopalov/gymkit/pkg/backend"
	"github.com/boristopalov/gymkit/pkg/core"
)

// Quadruped is a torso pushed by four legs. Both observations and actions
// are dicts.
type Quadruped struct {
	obsSpace *core.Dict
	actSpace *core.Dict

	rng    *rand.Rand
	torso  body
	joints []float64
	steps  int
	done   bool
}

func loadQuadruped(task string, opts backend.TaskOptions) (core.Env, error) {
	if task != "walk" {
		return nil, fmt.Errorf("quadruped task %s: %w", task, core.ErrUnknownIdentifier)
	}
	return &Quadruped{
		obsSpace: core.NewDict(map[string]core.Space{
			"joints":   core.NewUniformBox(-1, 1, []int{4}, core.Float64),
			"velocity": unbounded(1),
		}),
		actSpace: core.NewDict(map[string]core.Space{
			"front": core.NewUniformBox(-1, 1, []int{2}, core.Float64),
			"back":  core.NewUniformBox(-1, 1, []int{2}, core.Float64),
		}),
		rng:    rand.New(rand.NewSource(opts.Random)),
		joints: make([]float64, 4),
	}, nil
}

func (q *Quadruped) ObservationSpace() core.Space { return q.obsSpace }
func (q *Quadruped) ActionSpace() core.Space      { return q.actSpace }

func (q *Quadruped) observation() map[string]any {
	return map[string]any{
		"joints":   append([]float64(nil), q.joints...),
		"velocity": []float64{q.torso.vel},
	}
}

func (q *Quadruped) Reset(seed *int64) (any, core.Info, error) {
	if seed != nil {
		q.rng = newRand(seed)
	}
	q.torso = body{}
	for i := range q.joints {
		q.joints[i] = q.rng.Float64()*0.2 - 0.1
	}
	q.steps = 0
	q.done = false
	return q.observation(), core.Info{}, nil
}

func (q *Quadruped) Step(action any) (core.StepResult, error) {
	if q.done {
		return core.StepResult{}, errStepAfterDone
	}
	m, ok := action.(map[string]any)
	if !ok {
		return core.StepResult{}, fmt.Errorf("quadruped: expected a dict action, got %T", action)
	}

	var force float64
	for i, leg := range []string{"front", "back"} {
		a, err := core.AsFloat64s(m[leg])
		if err != nil || len(a) != 2 {
			return core.StepResult{}, fmt.Errorf("quadruped: invalid %s action %v", leg, m[leg])
		}
		for j, v := range a {
			target := math.Max(-1, math.Min(1, v))
			// legs only push while swinging backwards
			if delta := q.joints[2*i+j] - target; delta > 0 {
				force += delta
			}
			q.joints[2*i+j] = target
		}
	}
	q.torso.push(force - 0.5*q.torso.vel)
	q.steps++

	res := core.StepResult{
		Observation: q.observation(),
		Reward:      math.Max(0, math.Min(1, q.torso.vel)),
		Truncated:   q.steps >= maxSteps,
		Info:        core.Info{},
	}
	q.done = res.Done()
	return res, nil
}

func (q *Quadruped) Render(opts core.RenderOptions) (*core.Image, error) {
	return renderLine(opts, q.torso.pos)
}

func (q *Quadruped) Close() error {
	return nil
}
