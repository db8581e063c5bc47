package wrappers

import (
	"fmt"

	"github.com/boristopalov/gymkit/pkg/core"
)

// FrameStack returns the last N observations, oldest first. After a reset
// the stack holds N copies of the initial observation.
type FrameStack struct {
	core.Env

	n      int
	frames []any
	space  *core.Stacked
}

func NewFrameStack(env core.Env, n int) (*FrameStack, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: frame stack depth must be positive, got %d", core.ErrMalformedConfiguration, n)
	}
	return &FrameStack{
		Env:    env,
		n:      n,
		frames: make([]any, 0, n),
		space:  core.NewStacked(env.ObservationSpace(), n),
	}, nil
}

func (f *FrameStack) Unwrap() core.Env {
	return f.Env
}

func (f *FrameStack) ObservationSpace() core.Space {
	return f.space
}

// stacked copies the frames so callers never see later pushes
func (f *FrameStack) stacked() core.Frames {
	out := make(core.Frames, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *FrameStack) Reset(seed *int64) (any, core.Info, error) {
	obs, info, err := f.Env.Reset(seed)
	if err != nil {
		return nil, nil, err
	}
	f.frames = f.frames[:0]
	for i := 0; i < f.n; i++ {
		f.frames = append(f.frames, obs)
	}
	return f.stacked(), info, nil
}

func (f *FrameStack) Step(action any) (core.StepResult, error) {
	res, err := f.Env.Step(action)
	if err != nil {
		return res, err
	}
	if len(f.frames) == 0 {
		return res, fmt.Errorf("frame stack: step before reset")
	}
	f.frames = append(f.frames[1:], res.Observation)
	res.Observation = f.stacked()
	return res, nil
}
