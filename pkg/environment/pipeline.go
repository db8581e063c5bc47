package environment

import (
	"strings"

	"github.com/boristopalov/gymkit/pkg/config"
	"github.com/boristopalov/gymkit/pkg/core"
	"github.com/boristopalov/gymkit/pkg/messaging"
	"github.com/boristopalov/gymkit/pkg/wrappers"
)

// DecorateOptions carries what the pipeline needs besides the config
type DecorateOptions struct {
	Descriptor Descriptor
	// SaveFolder is the effective save folder returned by Resolve
	SaveFolder string
	Publisher  messaging.Publisher
}

// Decorate applies the decorator stages to env in their fixed order. On
// error the returned handle is the outermost stage that was built, so the
// caller can close the partial chain.
func Decorate(env core.Env, cfg config.EnvConfig, opts DecorateOptions) (core.Env, error) {
	if cfg.AddEpisodeMonitor {
		monitorOpts := []wrappers.MonitorOption{}
		if opts.Publisher != nil {
			monitorOpts = append(monitorOpts, wrappers.WithPublisher(opts.Publisher))
		}
		env = wrappers.NewEpisodeMonitor(env, monitorOpts...)
	}

	if _, ok := env.ObservationSpace().(*core.Dict); ok && cfg.Flatten {
		flat, err := wrappers.NewFlattenObservation(env)
		if err != nil {
			return env, err
		}
		env = flat
		if _, ok := env.ActionSpace().(*core.Dict); ok {
			flatAction, err := wrappers.NewFlattenAction(env)
			if err != nil {
				return env, err
			}
			env = flatAction
		}
	}

	if _, ok := env.ObservationSpace().(*core.Box); ok {
		single, err := wrappers.NewSinglePrecision(env)
		if err != nil {
			return env, err
		}
		env = single
	}

	if cfg.ActionRepeat > 1 {
		repeat, err := wrappers.NewRepeatAction(env, cfg.ActionRepeat)
		if err != nil {
			return env, err
		}
		env = repeat
	}

	if cfg.Continuous {
		rescale, err := wrappers.NewRescaleAction(env, -1, 1)
		if err != nil {
			return env, err
		}
		env = rescale
	}

	if opts.SaveFolder != "" {
		recorder, err := wrappers.NewEpisodeRecorder(env, opts.SaveFolder)
		if err != nil {
			return env, err
		}
		env = recorder
	}

	if cfg.FromPixels {
		pixels, err := wrappers.NewPixelObservation(env, wrappers.PixelOptions{
			PixelsOnly: cfg.PixelsOnly,
			Height:     cfg.ImageSize,
			Width:      cfg.ImageSize,
			CameraID:   cameraID(opts.Descriptor),
		})
		if err != nil {
			return env, err
		}
		env = pixels

		take, err := wrappers.NewTakeKey(env, wrappers.PixelsKey)
		if err != nil {
			return env, err
		}
		env = take

		if cfg.GrayScale {
			gray, err := wrappers.NewRGB2Gray(env)
			if err != nil {
				return env, err
			}
			env = gray
		}
	}

	if cfg.FrameStack > 1 {
		stack, err := wrappers.NewFrameStack(env, cfg.FrameStack)
		if err != nil {
			return env, err
		}
		env = stack
	}

	if cfg.Sticky {
		sticky, err := wrappers.NewStickyAction(env, cfg.StickyProbability)
		if err != nil {
			return env, err
		}
		env = sticky
	}

	return env, nil
}

// cameraID picks the render camera. Quadruped domains are viewed from camera 2.
func cameraID(d Descriptor) int {
	if d.Kind == DomainTaskBacked && strings.Contains(d.Domain, "quadruped") {
		return 2
	}
	return 0
}

// Stages lists the handles of a chain from the outermost to the backend
func Stages(env core.Env) []core.Env {
	var stages []core.Env
	for env != nil {
		stages = append(stages, env)
		w, ok := env.(core.Wrapper)
		if !ok {
			break
		}
		env = w.Unwrap()
	}
	return stages
}
