package rendercache

import (
	"fmt"
	"math"
)

// MaxDimension bounds a requested width or height in pixels.
const MaxDimension = 1 << 20

// SizingPolicy maps a requested size onto a coarser bucket size. Policies
// must be monotonic per dimension and return buckets >= the request, so a
// cached artifact is only ever scaled down for display.
type SizingPolicy interface {
	Quantize(width, height float64) (int, int, error)
}

// SizingFunc adapts a function to SizingPolicy.
type SizingFunc func(width, height float64) (int, int, error)

func (f SizingFunc) Quantize(w, h float64) (int, int, error) { return f(w, h) }

// DefaultSizing buckets both dimensions geometrically from 400px with a 1.2 rate.
var DefaultSizing SizingPolicy = GrowthRatio{Width: 400, Height: 400, Rate: 1.2}

// GrowthRatio places each dimension x in the geometric band
// [base*rate^k, base*rate^(k+1)) and returns the band's upper edge, rounded up.
// With base 400 and rate 1.2, 400 and 401 both map to 480 and 800 maps to 830.
type GrowthRatio struct {
	Width, Height float64 // base sizes
	Rate          float64 // > 1
}

func (g GrowthRatio) Quantize(w, h float64) (int, int, error) {
	if g.Rate <= 1 || g.Width <= 0 || g.Height <= 0 {
		return 0, 0, fmt.Errorf("rendercache: bad growth ratio %+v", g)
	}
	return growthBucket(w, g.Width, g.Rate), growthBucket(h, g.Height, g.Rate), nil
}

func growthBucket(x, base, rate float64) int {
	k := math.Floor(math.Log(x/base) / math.Log(rate))
	// float error can put x one band off; settle it on the exact edges
	for base*math.Pow(rate, k+1) <= x {
		k++
	}
	for base*math.Pow(rate, k) > x {
		k--
	}
	hi := math.Ceil(base*math.Pow(rate, k+1) - 1e-9)
	return int(math.Max(hi, math.Ceil(x)))
}

// Exact rounds each dimension up to a whole pixel and does no bucketing.
type Exact struct{}

func (Exact) Quantize(w, h float64) (int, int, error) {
	return int(math.Ceil(w)), int(math.Ceil(h)), nil
}

// Step rounds each dimension up to a multiple of its step.
type Step struct {
	Width, Height int
}

func (s Step) Quantize(w, h float64) (int, int, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return 0, 0, fmt.Errorf("rendercache: bad step %dx%d", s.Width, s.Height)
	}
	return stepBucket(w, s.Width), stepBucket(h, s.Height), nil
}

func stepBucket(x float64, step int) int {
	return int(math.Ceil(x/float64(step))) * step
}

func validateSize(w, h float64) error {
	switch {
	case math.IsNaN(w) || math.IsNaN(h) || math.IsInf(w, 0) || math.IsInf(h, 0):
		return &InvalidSizeError{Width: w, Height: h, Reason: "not finite"}
	case w <= 0 || h <= 0:
		return &InvalidSizeError{Width: w, Height: h, Reason: "not positive"}
	case w > MaxDimension || h > MaxDimension:
		return &InvalidSizeError{Width: w, Height: h, Reason: "too large"}
	}
	return nil
}

// quantize validates the request and applies p.
func quantize(p SizingPolicy, w, h float64) (int, int, error) {
	if err := validateSize(w, h); err != nil {
		return 0, 0, err
	}
	bw, bh, err := p.Quantize(w, h)
	if err != nil {
		return 0, 0, err
	}
	if bw < 1 || bh < 1 {
		return 0, 0, &InvalidSizeError{Width: w, Height: h, Reason: fmt.Sprintf("policy returned %dx%d", bw, bh)}
	}
	return bw, bh, nil
}
