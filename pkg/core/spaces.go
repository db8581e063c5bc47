package core

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// Dtype is the element type of a Box
type Dtype int

const (
	Float64 Dtype = iota
	Float32
	Uint8
)

func (d Dtype) String() string {
	switch d {
	case Float64:
		return "float64"
	case Float32:
		return "float32"
	case Uint8:
		return "uint8"
	default:
		return fmt.Sprintf("Dtype(%d)", int(d))
	}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Box is a bounded or unbounded numeric array space.
//
// Elements are []float64, []float32 or []uint8 depending on Dtype, laid out
// row-major according to Shape.
type Box struct {
	Low   []float64
	High  []float64
	Dtype Dtype

	shape []int
	rng   *rand.Rand
}

// NewBox creates a box with per-element bounds. A nil shape means a flat
// vector of len(low) elements.
func NewBox(low, high []float64, shape []int, dtype Dtype) *Box {
	if shape == nil {
		shape = []int{len(low)}
	}
	return &Box{
		Low:   append([]float64(nil), low...),
		High:  append([]float64(nil), high...),
		Dtype: dtype,
		shape: append([]int(nil), shape...),
	}
}

// NewUniformBox creates a box where every element shares the same bounds
func NewUniformBox(low, high float64, shape []int, dtype Dtype) *Box {
	n := 1
	for _, d := range shape {
		n *= d
	}
	lows := make([]float64, n)
	highs := make([]float64, n)
	for i := range lows {
		lows[i] = low
		highs[i] = high
	}
	return NewBox(lows, highs, shape, dtype)
}

func (b *Box) Shape() []int {
	return append([]int(nil), b.shape...)
}

// Size is the number of elements
func (b *Box) Size() int {
	return len(b.Low)
}

// Bounded reports whether every bound is finite
func (b *Box) Bounded() bool {
	for i := range b.Low {
		if math.IsInf(b.Low[i], 0) || math.IsInf(b.High[i], 0) {
			return false
		}
	}
	return true
}

func (b *Box) Seed(seed int64) {
	b.rng = rand.New(rand.NewSource(seed))
}

func (b *Box) Sample() any {
	if b.rng == nil {
		b.rng = newRand()
	}
	vals := make([]float64, b.Size())
	for i := range vals {
		lo, hi := b.Low[i], b.High[i]
		loFinite, hiFinite := !math.IsInf(lo, 0), !math.IsInf(hi, 0)
		switch {
		case b.Dtype == Uint8:
			lo, hi = math.Max(lo, 0), math.Min(hi, math.MaxUint8)
			vals[i] = lo + float64(b.rng.Intn(int(hi-lo)+1))
		case loFinite && hiFinite:
			vals[i] = lo + b.rng.Float64()*(hi-lo)
		case loFinite:
			vals[i] = lo + b.rng.ExpFloat64()
		case hiFinite:
			vals[i] = hi - b.rng.ExpFloat64()
		default:
			vals[i] = b.rng.NormFloat64()
		}
	}
	return b.Cast(vals)
}

// Cast converts vals to the element representation of the box
func (b *Box) Cast(vals []float64) any {
	switch b.Dtype {
	case Float32:
		out := make([]float32, len(vals))
		for i, v := range vals {
			out[i] = float32(v)
		}
		return out
	case Uint8:
		out := make([]uint8, len(vals))
		for i, v := range vals {
			out[i] = uint8(math.Max(0, math.Min(math.MaxUint8, math.Round(v))))
		}
		return out
	default:
		return append([]float64(nil), vals...)
	}
}

// Clip clamps vals into the box bounds in place and returns it
func (b *Box) Clip(vals []float64) []float64 {
	for i := range vals {
		vals[i] = math.Max(b.Low[i], math.Min(b.High[i], vals[i]))
	}
	return vals
}

func (b *Box) Contains(x any) bool {
	var ok bool
	switch b.Dtype {
	case Float64:
		_, ok = x.([]float64)
	case Float32:
		_, ok = x.([]float32)
	case Uint8:
		_, ok = x.([]uint8)
	}
	if !ok {
		return false
	}
	vals, err := AsFloat64s(x)
	if err != nil || len(vals) != b.Size() {
		return false
	}
	for i, v := range vals {
		if v < b.Low[i] || v > b.High[i] {
			return false
		}
	}
	return true
}

func (b *Box) String() string {
	return fmt.Sprintf("Box(%v, %s)", b.shape, b.Dtype)
}

// Discrete is the space {0, 1, ..., N-1}
type Discrete struct {
	N int

	rng *rand.Rand
}

func NewDiscrete(n int) *Discrete {
	return &Discrete{N: n}
}

func (d *Discrete) Shape() []int {
	return []int{}
}

func (d *Discrete) Seed(seed int64) {
	d.rng = rand.New(rand.NewSource(seed))
}

func (d *Discrete) Sample() any {
	if d.rng == nil {
		d.rng = newRand()
	}
	return d.rng.Intn(d.N)
}

func (d *Discrete) Contains(x any) bool {
	v, ok := x.(int)
	return ok && v >= 0 && v < d.N
}

func (d *Discrete) String() string {
	return fmt.Sprintf("Discrete(%d)", d.N)
}

// Dict is a composite space keyed by name. Elements are map[string]any.
type Dict struct {
	Spaces map[string]Space
}

func NewDict(spaces map[string]Space) *Dict {
	return &Dict{Spaces: spaces}
}

// Keys returns the subspace names in sorted order, which is also the
// order used when flattening.
func (d *Dict) Keys() []string {
	keys := make([]string, 0, len(d.Spaces))
	for k := range d.Spaces {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *Dict) Shape() []int {
	return nil
}

// Seed derives one seed per subspace from seed, in key order
func (d *Dict) Seed(seed int64) {
	r := rand.New(rand.NewSource(seed))
	for _, k := range d.Keys() {
		d.Spaces[k].Seed(r.Int63())
	}
}

func (d *Dict) Sample() any {
	out := make(map[string]any, len(d.Spaces))
	for _, k := range d.Keys() {
		out[k] = d.Spaces[k].Sample()
	}
	return out
}

func (d *Dict) Contains(x any) bool {
	m, ok := x.(map[string]any)
	if !ok || len(m) != len(d.Spaces) {
		return false
	}
	for k, s := range d.Spaces {
		v, ok := m[k]
		if !ok || !s.Contains(v) {
			return false
		}
	}
	return true
}

func (d *Dict) String() string {
	return fmt.Sprintf("Dict(%v)", d.Keys())
}

// Stacked is N consecutive elements of an inner space. Elements are Frames.
type Stacked struct {
	Space Space
	N     int
}

func NewStacked(space Space, n int) *Stacked {
	return &Stacked{Space: space, N: n}
}

func (s *Stacked) Shape() []int {
	inner := s.Space.Shape()
	if inner == nil {
		return nil
	}
	return append([]int{s.N}, inner...)
}

func (s *Stacked) Seed(seed int64) {
	s.Space.Seed(seed)
}

func (s *Stacked) Sample() any {
	frames := make(Frames, s.N)
	for i := range frames {
		frames[i] = s.Space.Sample()
	}
	return frames
}

func (s *Stacked) Contains(x any) bool {
	frames, ok := x.(Frames)
	if !ok || len(frames) != s.N {
		return false
	}
	for _, f := range frames {
		if !s.Space.Contains(f) {
			return false
		}
	}
	return true
}

func (s *Stacked) String() string {
	return fmt.Sprintf("Stacked(%d, %v)", s.N, s.Space)
}
