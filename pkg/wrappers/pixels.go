package wrappers

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/boristopalov/gymkit/pkg/core"
)

// Observation keys used by PixelObservation
const (
	PixelsKey = "pixels"
	StateKey  = "state"
)

// PixelOptions configures PixelObservation
type PixelOptions struct {
	// PixelsOnly drops the wrapped observation and keeps only the frame
	PixelsOnly bool
	Height     int
	Width      int
	CameraID   int
}

// PixelObservation adds a rendered frame to every observation under
// PixelsKey. The result is always a Dict observation.
type PixelObservation struct {
	core.Env

	opts  PixelOptions
	inner core.Space
	space *core.Dict
}

// NewPixelObservation renders once to learn the frame shape.
// Environments without a renderer are rejected.
func NewPixelObservation(env core.Env, opts PixelOptions) (*PixelObservation, error) {
	img, err := env.Render(core.RenderOptions{Height: opts.Height, Width: opts.Width, CameraID: opts.CameraID})
	if errors.Is(err, core.ErrRenderUnsupported) {
		return nil, fmt.Errorf("%w: pixel observations need a renderer: %v", core.ErrMalformedConfiguration, err)
	}
	if err != nil {
		return nil, fmt.Errorf("pixel observation: initial render: %w", err)
	}

	pixels := core.NewUniformBox(0, math.MaxUint8, img.Shape(), core.Uint8)
	inner := env.ObservationSpace()
	spaces := map[string]core.Space{}
	if !opts.PixelsOnly {
		if d, ok := inner.(*core.Dict); ok {
			for k, s := range d.Spaces {
				spaces[k] = s
			}
		} else {
			spaces[StateKey] = inner
		}
	}
	if _, exists := spaces[PixelsKey]; exists {
		return nil, fmt.Errorf("%w: observation already has a %q key", core.ErrMalformedConfiguration, PixelsKey)
	}
	spaces[PixelsKey] = pixels

	return &PixelObservation{
		Env:   env,
		opts:  opts,
		inner: inner,
		space: core.NewDict(spaces),
	}, nil
}

func (p *PixelObservation) Unwrap() core.Env {
	return p.Env
}

func (p *PixelObservation) ObservationSpace() core.Space {
	return p.space
}

func (p *PixelObservation) observation(x any) (any, error) {
	img, err := p.Env.Render(core.RenderOptions{Height: p.opts.Height, Width: p.opts.Width, CameraID: p.opts.CameraID})
	if err != nil {
		return nil, fmt.Errorf("pixel observation: %w", err)
	}

	obs := map[string]any{}
	if !p.opts.PixelsOnly {
		if m, ok := x.(map[string]any); ok {
			for k, v := range m {
				obs[k] = v
			}
		} else {
			obs[StateKey] = x
		}
	}
	obs[PixelsKey] = append([]uint8(nil), img.Pix...)
	return obs, nil
}

func (p *PixelObservation) Reset(seed *int64) (any, core.Info, error) {
	obs, info, err := p.Env.Reset(seed)
	if err != nil {
		return nil, nil, err
	}
	obs, err = p.observation(obs)
	return obs, info, err
}

func (p *PixelObservation) Step(action any) (core.StepResult, error) {
	res, err := p.Env.Step(action)
	if err != nil {
		return res, err
	}
	res.Observation, err = p.observation(res.Observation)
	return res, err
}

// TakeKey replaces a Dict observation with one of its entries
type TakeKey struct {
	core.Env

	key   string
	space core.Space
}

func NewTakeKey(env core.Env, key string) (*TakeKey, error) {
	d, ok := env.ObservationSpace().(*core.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: take key needs a Dict observation space, got %T",
			core.ErrMalformedConfiguration, env.ObservationSpace())
	}
	space, ok := d.Spaces[key]
	if !ok {
		return nil, fmt.Errorf("%w: observation has no %q key", core.ErrMalformedConfiguration, key)
	}
	return &TakeKey{
		Env:   env,
		key:   key,
		space: space,
	}, nil
}

func (t *TakeKey) Unwrap() core.Env {
	return t.Env
}

func (t *TakeKey) ObservationSpace() core.Space {
	return t.space
}

func (t *TakeKey) observation(x any) (any, error) {
	m, ok := x.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("take key: expected map observation, got %T", x)
	}
	v, ok := m[t.key]
	if !ok {
		return nil, fmt.Errorf("take key: observation has no %q key", t.key)
	}
	return v, nil
}

func (t *TakeKey) Reset(seed *int64) (any, core.Info, error) {
	obs, info, err := t.Env.Reset(seed)
	if err != nil {
		return nil, nil, err
	}
	obs, err = t.observation(obs)
	return obs, info, err
}

func (t *TakeKey) Step(action any) (core.StepResult, error) {
	res, err := t.Env.Step(action)
	if err != nil {
		return res, err
	}
	res.Observation, err = t.observation(res.Observation)
	return res, err
}

var grayWeights = []float64{0.299, 0.587, 0.114}

// RGB2Gray converts HWC uint8 frames with 3 channels to a single channel
type RGB2Gray struct {
	core.Env

	space *core.Box
}

func NewRGB2Gray(env core.Env) (*RGB2Gray, error) {
	box, ok := env.ObservationSpace().(*core.Box)
	if !ok || box.Dtype != core.Uint8 {
		return nil, fmt.Errorf("%w: grayscale needs a uint8 image observation, got %v",
			core.ErrMalformedConfiguration, env.ObservationSpace())
	}
	shape := box.Shape()
	if len(shape) != 3 || shape[2] != 3 {
		return nil, fmt.Errorf("%w: grayscale needs an RGB image, got shape %v", core.ErrMalformedConfiguration, shape)
	}
	return &RGB2Gray{
		Env:   env,
		space: core.NewUniformBox(0, math.MaxUint8, []int{shape[0], shape[1], 1}, core.Uint8),
	}, nil
}

func (g *RGB2Gray) Unwrap() core.Env {
	return g.Env
}

func (g *RGB2Gray) ObservationSpace() core.Space {
	return g.space
}

func (g *RGB2Gray) observation(x any) (any, error) {
	rgb, err := core.AsFloat64s(x)
	if err != nil {
		return nil, fmt.Errorf("grayscale: %w", err)
	}
	if len(rgb) != 3*g.space.Size() {
		return nil, fmt.Errorf("grayscale: got %d values, want %d", len(rgb), 3*g.space.Size())
	}
	gray := make([]uint8, g.space.Size())
	for i := range gray {
		v := floats.Dot(rgb[3*i:3*i+3], grayWeights)
		gray[i] = uint8(math.Min(v, math.MaxUint8))
	}
	return gray, nil
}

func (g *RGB2Gray) Reset(seed *int64) (any, core.Info, error) {
	obs, info, err := g.Env.Reset(seed)
	if err != nil {
		return nil, nil, err
	}
	obs, err = g.observation(obs)
	return obs, info, err
}

func (g *RGB2Gray) Step(action any) (core.StepResult, error) {
	res, err := g.Env.Step(action)
	if err != nil {
		return res, err
	}
	res.Observation, err = g.observation(res.Observation)
	return res, err
}
