package core

import (
	"fmt"
	"math"
)

// FlattenSpace returns the flat vector space equivalent to space. Dict
// subspaces are concatenated in key order and Discrete spaces become one-hot
// vectors.
func FlattenSpace(space Space) (*Box, error) {
	switch s := space.(type) {
	case *Box:
		return NewBox(s.Low, s.High, nil, s.Dtype), nil
	case *Discrete:
		return NewUniformBox(0, 1, []int{s.N}, Float64), nil
	case *Dict:
		var low, high []float64
		dtype := Dtype(-1)
		for _, k := range s.Keys() {
			sub, err := FlattenSpace(s.Spaces[k])
			if err != nil {
				return nil, fmt.Errorf("flatten %q: %w", k, err)
			}
			low = append(low, sub.Low...)
			high = append(high, sub.High...)
			switch {
			case dtype < 0:
				dtype = sub.Dtype
			case dtype != sub.Dtype:
				dtype = Float64
			}
		}
		if dtype < 0 {
			dtype = Float64
		}
		return NewBox(low, high, nil, dtype), nil
	default:
		return nil, fmt.Errorf("%w: cannot flatten space %T", ErrMalformedConfiguration, space)
	}
}

// Flatten converts an element of space to a flat vector
func Flatten(space Space, x any) ([]float64, error) {
	switch s := space.(type) {
	case *Box:
		vals, err := AsFloat64s(x)
		if err != nil {
			return nil, err
		}
		if len(vals) != s.Size() {
			return nil, fmt.Errorf("flatten: got %d values for %v", len(vals), s)
		}
		return vals, nil
	case *Discrete:
		v, ok := x.(int)
		if !ok || v < 0 || v >= s.N {
			return nil, fmt.Errorf("flatten: %v is not in %v", x, s)
		}
		onehot := make([]float64, s.N)
		onehot[v] = 1
		return onehot, nil
	case *Dict:
		m, ok := x.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("flatten: expected map[string]any, got %T", x)
		}
		var out []float64
		for _, k := range s.Keys() {
			v, ok := m[k]
			if !ok {
				return nil, fmt.Errorf("flatten: missing key %q", k)
			}
			sub, err := Flatten(s.Spaces[k], v)
			if err != nil {
				return nil, fmt.Errorf("flatten %q: %w", k, err)
			}
			out = append(out, sub...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: cannot flatten space %T", ErrMalformedConfiguration, space)
	}
}

// Unflatten is the inverse of Flatten
func Unflatten(space Space, vals []float64) (any, error) {
	switch s := space.(type) {
	case *Box:
		if len(vals) != s.Size() {
			return nil, fmt.Errorf("unflatten: got %d values for %v", len(vals), s)
		}
		return s.Cast(vals), nil
	case *Discrete:
		if len(vals) != s.N {
			return nil, fmt.Errorf("unflatten: got %d values for %v", len(vals), s)
		}
		best, bestVal := 0, math.Inf(-1)
		for i, v := range vals {
			if v > bestVal {
				best, bestVal = i, v
			}
		}
		return best, nil
	case *Dict:
		out := make(map[string]any, len(s.Spaces))
		offset := 0
		for _, k := range s.Keys() {
			sub, err := FlattenSpace(s.Spaces[k])
			if err != nil {
				return nil, err
			}
			end := offset + sub.Size()
			if end > len(vals) {
				return nil, fmt.Errorf("unflatten: too few values for %v", s)
			}
			v, err := Unflatten(s.Spaces[k], vals[offset:end])
			if err != nil {
				return nil, fmt.Errorf("unflatten %q: %w", k, err)
			}
			out[k] = v
			offset = end
		}
		if offset != len(vals) {
			return nil, fmt.Errorf("unflatten: %d extra values for %v", len(vals)-offset, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: cannot unflatten space %T", ErrMalformedConfiguration, space)
	}
}
