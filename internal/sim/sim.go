// Package sim provides small kinematic environments used to exercise both
// backend kinds from the command line and in tests.
package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/boristopalov/gymkit/pkg/backend"
	"github.com/boristopalov/gymkit/pkg/core"
)

const (
	dt          = 0.05
	maxSteps    = 200
	healthLimit = 5.0
)

// Registry returns a registry holding the PointMass environments
func Registry() *backend.MapRegistry {
	r := backend.NewRegistry()
	// both versions share dynamics, v4 only differs in its initial spread
	for id, spread := range map[string]float64{"PointMass-v1": 0.1, "PointMass-v4": 1} {
		if err := r.Register(id, func(opts backend.MakeOptions) (core.Env, error) {
			return NewPointMass(spread, opts.TerminateWhenUnhealthy), nil
		}); err != nil {
			panic(err)
		}
	}
	return r
}

// Suite returns a suite with the particle and quadruped domains
func Suite() *backend.MapSuite {
	s := backend.NewSuite()
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(s.Register("particle", loadParticle))
	must(s.Register("quadruped", loadQuadruped))
	return s
}

// body is a unit mass moving along a line
type body struct {
	pos float64
	vel float64
}

func (b *body) push(force float64) {
	b.vel += force * dt
	b.pos += b.vel * dt
}

func unbounded(n int) *core.Box {
	return core.NewUniformBox(math.Inf(-1), math.Inf(1), []int{n}, core.Float64)
}

// renderLine draws a marker at pos on a track. The background shade
// depends on the camera.
func renderLine(opts core.RenderOptions, pos float64) (*core.Image, error) {
	if opts.Height < 1 || opts.Width < 1 {
		return nil, fmt.Errorf("render: invalid size %dx%d", opts.Height, opts.Width)
	}
	img := core.NewImage(opts.Height, opts.Width, 3)
	bg := uint8(32 * (opts.CameraID % 4))
	for i := 0; i < len(img.Pix); i += 3 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2] = bg, bg, bg+64
	}

	frac := (math.Max(-healthLimit, math.Min(healthLimit, pos)) + healthLimit) / (2 * healthLimit)
	x := int(frac * float64(opts.Width-1))
	for y := opts.Height / 4; y < 3*opts.Height/4+1 && y < opts.Height; y++ {
		img.Set(y, x, 255, 200, 0)
	}
	return img, nil
}

func newRand(seed *int64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewSource(rand.Int63()))
	}
	return rand.New(rand.NewSource(*seed))
}

var errStepAfterDone = errors.New("step called after the episode ended")
