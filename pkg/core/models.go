package core

import (
	"fmt"
	"time"
)

// Info carries auxiliary per-step diagnostics
type Info map[string]any

// StepResult is what a single Step returns
type StepResult struct {
	Observation any
	Reward      float64
	Terminated  bool // the episode reached a terminal state
	Truncated   bool // the episode was cut short, e.g. by a time limit
	Info        Info
}

// Done reports whether the episode is over for either reason
func (r StepResult) Done() bool {
	return r.Terminated || r.Truncated
}

// RenderOptions selects the size and camera of a rendered frame
type RenderOptions struct {
	Height   int
	Width    int
	CameraID int
}

// Image is an 8-bit image in height, width, channel order
type Image struct {
	Height   int
	Width    int
	Channels int
	Pix      []uint8
}

// NewImage allocates a black image
func NewImage(height, width, channels int) *Image {
	return &Image{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]uint8, height*width*channels),
	}
}

// Set writes one pixel
func (img *Image) Set(y, x int, px ...uint8) {
	off := (y*img.Width + x) * img.Channels
	copy(img.Pix[off:off+img.Channels], px)
}

// Shape returns the image shape in height, width, channel order
func (img *Image) Shape() []int {
	return []int{img.Height, img.Width, img.Channels}
}

// Frames is a stacked observation, oldest first
type Frames []any

// Seed is a convenience for passing a literal seed to Reset
func Seed(seed int64) *int64 {
	return &seed
}

type ExperimentStatus struct {
	Running   bool
	StartTime time.Time
	EndTime   time.Time
	Episodes  int
	Errors    []error
}

// AsFloat64s converts a numeric observation or action to a new []float64
func AsFloat64s(x any) ([]float64, error) {
	switch v := x.(type) {
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		return out, nil
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out, nil
	case []uint8:
		out := make([]float64, len(v))
		for i, b := range v {
			out[i] = float64(b)
		}
		return out, nil
	case float64:
		return []float64{v}, nil
	case float32:
		return []float64{float64(v)}, nil
	case int:
		return []float64{float64(v)}, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to a float vector", x)
	}
}
