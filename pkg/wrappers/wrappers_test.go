package wrappers

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/boristopalov/gymkit/pkg/core"
	"github.com/boristopalov/gymkit/pkg/messaging"
)

// fakeEnv is a scripted environment: the observation is the step counter,
// every step pays reward 1 and the episode terminates after doneAt steps.
type fakeEnv struct {
	obsSpace core.Space
	actSpace core.Space
	doneAt   int
	render   bool

	steps   int
	actions []any
	seeds   []*int64
	closed  bool
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		obsSpace: core.NewUniformBox(math.Inf(-1), math.Inf(1), []int{1}, core.Float64),
		actSpace: core.NewUniformBox(-2, 2, []int{1}, core.Float64),
	}
}

func (f *fakeEnv) ObservationSpace() core.Space { return f.obsSpace }
func (f *fakeEnv) ActionSpace() core.Space      { return f.actSpace }

func (f *fakeEnv) observation() any {
	if d, ok := f.obsSpace.(*core.Dict); ok {
		out := map[string]any{}
		for _, k := range d.Keys() {
			out[k] = []float64{float64(f.steps)}
		}
		return out
	}
	return []float64{float64(f.steps)}
}

func (f *fakeEnv) Reset(seed *int64) (any, core.Info, error) {
	f.steps = 0
	f.seeds = append(f.seeds, seed)
	return f.observation(), core.Info{}, nil
}

func (f *fakeEnv) Step(action any) (core.StepResult, error) {
	f.steps++
	f.actions = append(f.actions, action)
	return core.StepResult{
		Observation: f.observation(),
		Reward:      1,
		Terminated:  f.doneAt > 0 && f.steps >= f.doneAt,
	}, nil
}

func (f *fakeEnv) Render(opts core.RenderOptions) (*core.Image, error) {
	if !f.render {
		return nil, core.ErrRenderUnsupported
	}
	img := core.NewImage(opts.Height, opts.Width, 3)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			img.Set(y, x, 100, 50, 200)
		}
	}
	return img, nil
}

func (f *fakeEnv) Close() error {
	f.closed = true
	return nil
}

func TestRepeatAction(t *testing.T) {
	t.Run("repeats and sums rewards", func(t *testing.T) {
		inner := newFakeEnv()
		env, err := NewRepeatAction(inner, 4)
		if err != nil {
			t.Fatalf("NewRepeatAction: %v", err)
		}
		env.Reset(nil)
		res, err := env.Step([]float64{1})
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if inner.steps != 4 {
			t.Errorf("inner steps = %d, want 4", inner.steps)
		}
		if res.Reward != 4 {
			t.Errorf("reward = %v, want 4", res.Reward)
		}
		if got := res.Observation.([]float64)[0]; got != 4 {
			t.Errorf("observation from step %v, want final step 4", got)
		}
	})

	t.Run("stops at episode end", func(t *testing.T) {
		inner := newFakeEnv()
		inner.doneAt = 2
		env, _ := NewRepeatAction(inner, 4)
		env.Reset(nil)
		res, _ := env.Step([]float64{1})
		if inner.steps != 2 || res.Reward != 2 || !res.Terminated {
			t.Errorf("got steps=%d reward=%v terminated=%v, want 2, 2, true", inner.steps, res.Reward, res.Terminated)
		}
	})

	t.Run("rejects non-positive repeat", func(t *testing.T) {
		if _, err := NewRepeatAction(newFakeEnv(), 0); !errors.Is(err, core.ErrMalformedConfiguration) {
			t.Errorf("expected ErrMalformedConfiguration, got %v", err)
		}
	})
}

func TestRescaleAction(t *testing.T) {
	inner := newFakeEnv()
	inner.actSpace = core.NewBox([]float64{0, -2, 5}, []float64{10, 2, 6}, nil, core.Float64)

	env, err := NewRescaleAction(inner, -1, 1)
	if err != nil {
		t.Fatalf("NewRescaleAction: %v", err)
	}

	space := env.ActionSpace().(*core.Box)
	for i := range space.Low {
		if space.Low[i] != -1 || space.High[i] != 1 {
			t.Errorf("dimension %d bounds = [%v, %v], want [-1, 1]", i, space.Low[i], space.High[i])
		}
	}

	if _, err := env.Step([]float64{-1, 0, 1}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	want := []float64{0, 0, 6}
	if got := inner.actions[0]; !reflect.DeepEqual(got, want) {
		t.Errorf("forwarded action = %v, want %v", got, want)
	}

	got, _ := env.Action([]float64{5, 0.5, -3})
	if !reflect.DeepEqual(got, []float64{10, 1, 5}) {
		t.Errorf("out-of-range action mapped to %v", got)
	}

	t.Run("rejects discrete and unbounded spaces", func(t *testing.T) {
		discrete := newFakeEnv()
		discrete.actSpace = core.NewDiscrete(3)
		if _, err := NewRescaleAction(discrete, -1, 1); !errors.Is(err, core.ErrMalformedConfiguration) {
			t.Errorf("discrete: expected ErrMalformedConfiguration, got %v", err)
		}
		unbounded := newFakeEnv()
		unbounded.actSpace = core.NewUniformBox(math.Inf(-1), math.Inf(1), []int{2}, core.Float64)
		if _, err := NewRescaleAction(unbounded, -1, 1); !errors.Is(err, core.ErrMalformedConfiguration) {
			t.Errorf("unbounded: expected ErrMalformedConfiguration, got %v", err)
		}
	})
}

func TestFrameStack(t *testing.T) {
	inner := newFakeEnv()
	env, err := NewFrameStack(inner, 3)
	if err != nil {
		t.Fatalf("NewFrameStack: %v", err)
	}

	obs, _, err := env.Reset(nil)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	initial := core.Frames{[]float64{0}, []float64{0}, []float64{0}}
	if !reflect.DeepEqual(obs, initial) {
		t.Errorf("reset stack = %v, want %v", obs, initial)
	}

	env.Step([]float64{0})
	res, _ := env.Step([]float64{0})
	want := core.Frames{[]float64{0}, []float64{1}, []float64{2}}
	if !reflect.DeepEqual(res.Observation, want) {
		t.Errorf("stack after two steps = %v, want %v", res.Observation, want)
	}
	if !reflect.DeepEqual(obs, initial) {
		t.Errorf("earlier observation was mutated: %v", obs)
	}
	if !env.ObservationSpace().Contains(res.Observation) {
		t.Error("stacked observation not contained in stacked space")
	}
}

func TestFlattenAndPrecision(t *testing.T) {
	inner := newFakeEnv()
	inner.obsSpace = core.NewDict(map[string]core.Space{
		"position": core.NewUniformBox(-1, 10, []int{1}, core.Float64),
		"velocity": core.NewUniformBox(-1, 10, []int{1}, core.Float64),
	})
	inner.actSpace = core.NewDict(map[string]core.Space{
		"gear":  core.NewDiscrete(2),
		"force": core.NewUniformBox(-1, 1, []int{1}, core.Float64),
	})

	flat, err := NewFlattenObservation(inner)
	if err != nil {
		t.Fatalf("NewFlattenObservation: %v", err)
	}
	flatAct, err := NewFlattenAction(flat)
	if err != nil {
		t.Fatalf("NewFlattenAction: %v", err)
	}
	env, err := NewSinglePrecision(flatAct)
	if err != nil {
		t.Fatalf("NewSinglePrecision: %v", err)
	}

	obs, _, _ := env.Reset(nil)
	if !reflect.DeepEqual(obs, []float32{0, 0}) {
		t.Errorf("reset observation = %#v", obs)
	}
	if box := env.ObservationSpace().(*core.Box); box.Dtype != core.Float32 {
		t.Errorf("observation dtype = %s, want float32", box.Dtype)
	}

	// keys are flattened in sorted order: force, then the one-hot gear
	if _, err := env.Step([]float64{0.5, 0, 1}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	want := map[string]any{"force": []float64{0.5}, "gear": 1}
	if !reflect.DeepEqual(inner.actions[0], want) {
		t.Errorf("forwarded action = %v, want %v", inner.actions[0], want)
	}

	if _, err := NewSinglePrecision(inner); !errors.Is(err, core.ErrMalformedConfiguration) {
		t.Errorf("dict observation: expected ErrMalformedConfiguration, got %v", err)
	}
}

func TestPixelPipeline(t *testing.T) {
	t.Run("pixels only with grayscale", func(t *testing.T) {
		inner := newFakeEnv()
		inner.render = true

		pix, err := NewPixelObservation(inner, PixelOptions{PixelsOnly: true, Height: 4, Width: 5})
		if err != nil {
			t.Fatalf("NewPixelObservation: %v", err)
		}
		if keys := pix.ObservationSpace().(*core.Dict).Keys(); !reflect.DeepEqual(keys, []string{PixelsKey}) {
			t.Errorf("pixels-only keys = %v", keys)
		}
		take, err := NewTakeKey(pix, PixelsKey)
		if err != nil {
			t.Fatalf("NewTakeKey: %v", err)
		}
		gray, err := NewRGB2Gray(take)
		if err != nil {
			t.Fatalf("NewRGB2Gray: %v", err)
		}

		if shape := gray.ObservationSpace().Shape(); !reflect.DeepEqual(shape, []int{4, 5, 1}) {
			t.Errorf("gray shape = %v", shape)
		}
		obs, _, err := gray.Reset(nil)
		if err != nil {
			t.Fatalf("Reset: %v", err)
		}
		px := obs.([]uint8)
		if len(px) != 20 || px[0] != 82 {
			t.Errorf("gray frame len=%d first=%d, want 20 and 82", len(px), px[0])
		}
	})

	t.Run("keeps state when not pixels only", func(t *testing.T) {
		inner := newFakeEnv()
		inner.render = true
		pix, err := NewPixelObservation(inner, PixelOptions{Height: 2, Width: 2})
		if err != nil {
			t.Fatalf("NewPixelObservation: %v", err)
		}
		obs, _, _ := pix.Reset(nil)
		m := obs.(map[string]any)
		if _, ok := m[StateKey]; !ok {
			t.Errorf("missing %q key in %v", StateKey, m)
		}
		if !pix.ObservationSpace().Contains(obs) {
			t.Error("observation not contained in pixel space")
		}
	})

	t.Run("no renderer is fatal", func(t *testing.T) {
		_, err := NewPixelObservation(newFakeEnv(), PixelOptions{PixelsOnly: true, Height: 2, Width: 2})
		if !errors.Is(err, core.ErrMalformedConfiguration) {
			t.Errorf("expected ErrMalformedConfiguration, got %v", err)
		}
	})
}

func TestStickyAction(t *testing.T) {
	inner := newFakeEnv()
	env, err := NewStickyAction(inner, 1)
	if err != nil {
		t.Fatalf("NewStickyAction: %v", err)
	}
	env.Reset(core.Seed(3))
	env.Step([]float64{1})
	res, _ := env.Step([]float64{-1})
	if got := inner.actions[1]; !reflect.DeepEqual(got, []float64{1}) {
		t.Errorf("second action = %v, want the sticky first action", got)
	}
	if res.Info["sticky"] != true {
		t.Errorf("sticky flag = %v", res.Info["sticky"])
	}

	env.Reset(nil)
	env.Step([]float64{-2})
	if got := inner.actions[2]; !reflect.DeepEqual(got, []float64{-2}) {
		t.Errorf("first action after reset = %v, should never be sticky", got)
	}

	if _, err := NewStickyAction(inner, 1.5); !errors.Is(err, core.ErrMalformedConfiguration) {
		t.Errorf("expected ErrMalformedConfiguration, got %v", err)
	}
}

func TestStickyActionIndependentOfActionSpace(t *testing.T) {
	const seed = 17
	inner := newFakeEnv()
	env, err := NewStickyAction(inner, DefaultStickyProbability)
	if err != nil {
		t.Fatalf("NewStickyAction: %v", err)
	}
	env.Reset(core.Seed(seed))
	space := env.ActionSpace()
	space.Seed(seed)

	// the bottom quarter of [-2, 2] has the same mass as the sticky probability
	var prev float64
	var sticky, stickyAfterHigh, freeAfterLow int
	for i := 0; i < 400; i++ {
		action := space.Sample()
		res, err := env.Step(action)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if i > 0 {
			isSticky := res.Info["sticky"] == true
			if isSticky {
				sticky++
			}
			switch {
			case isSticky && prev >= -1:
				stickyAfterHigh++
			case !isSticky && prev < -1:
				freeAfterLow++
			}
		}
		prev = action.([]float64)[0]
	}

	if stickyAfterHigh == 0 || freeAfterLow == 0 {
		t.Errorf("sticky decisions follow the sampled actions: sticky after high = %d, free after low = %d",
			stickyAfterHigh, freeAfterLow)
	}
	if rate := float64(sticky) / 399; rate < 0.15 || rate > 0.35 {
		t.Errorf("sticky rate = %.3f, want about %.2f", rate, DefaultStickyProbability)
	}
}

func TestEpisodeMonitorWithoutReset(t *testing.T) {
	inner := newFakeEnv()
	inner.doneAt = 1
	env := NewEpisodeMonitor(inner)

	res, err := env.Step([]float64{0})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	stats, ok := res.Info[EpisodeInfoKey].(EpisodeStats)
	if !ok {
		t.Fatalf("missing episode stats in %v", res.Info)
	}
	if stats.Duration < 0 || stats.Duration > time.Minute {
		t.Errorf("duration = %v, want the time since construction", stats.Duration)
	}
	if stats.ID == "" {
		t.Error("episode id is empty")
	}
}

func TestEpisodeMonitor(t *testing.T) {
	inner := newFakeEnv()
	inner.doneAt = 3
	broker := messaging.NewBroker()
	ch := make(chan messaging.Message, 1)
	if err := broker.Subscribe("test", ch, messaging.TopicEpisodeEnd); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	env := NewEpisodeMonitor(inner, WithPublisher(broker), WithMonitorID("env-under-test"))
	env.Reset(nil)
	var res core.StepResult
	for !res.Done() {
		res, _ = env.Step([]float64{0})
	}

	stats, ok := res.Info[EpisodeInfoKey].(EpisodeStats)
	if !ok {
		t.Fatalf("missing episode stats in %v", res.Info)
	}
	if stats.Return != 3 || stats.Length != 3 || stats.ID == "" {
		t.Errorf("unexpected stats %+v", stats)
	}
	if env.Episodes() != 1 {
		t.Errorf("Episodes() = %d, want 1", env.Episodes())
	}

	select {
	case msg := <-ch:
		if msg.From != "env-under-test" || msg.Content.(EpisodeStats).Return != 3 {
			t.Errorf("unexpected message %+v", msg)
		}
	default:
		t.Error("no episode message published")
	}
}

func TestEpisodeRecorder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	inner := newFakeEnv()
	inner.doneAt = 2

	env, err := NewEpisodeRecorder(inner, dir)
	if err != nil {
		t.Fatalf("NewEpisodeRecorder: %v", err)
	}
	for ep := 0; ep < 2; ep++ {
		env.Reset(nil)
		for i := 0; i < 2; i++ {
			env.Step([]float64{0})
		}
	}
	if err := env.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !inner.closed {
		t.Error("recorder did not close the wrapped env")
	}

	data, err := os.ReadFile(filepath.Join(dir, EpisodesFile))
	if err != nil {
		t.Fatalf("read episodes file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{"Episode,Return,Length", "0,2.0000,2", "1,2.0000,2"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("episodes file = %q, want %q", lines, want)
	}
}
