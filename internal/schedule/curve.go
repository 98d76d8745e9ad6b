package schedule

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Point is one evaluated step of a schedule
type Point struct {
	Step       int     `json:"step"`
	Multiplier float64 `json:"multiplier"`
}

// Sample evaluates fn at start, start+stride, ... up to and including end.
// end is always included even when it does not fall on the stride.
func Sample(fn Func, start, end, stride int) ([]Point, error) {
	if fn == nil {
		return nil, fmt.Errorf("schedule function is nil")
	}
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid step range [%d, %d]", start, end)
	}
	if stride <= 0 {
		return nil, fmt.Errorf("stride must be positive, got %d", stride)
	}

	points := make([]Point, 0, (end-start)/stride+2)
	last := -1
	for step := start; step <= end; step += stride {
		points = append(points, Point{Step: step, Multiplier: fn(step)})
		last = step
	}
	if last != end {
		points = append(points, Point{Step: end, Multiplier: fn(end)})
	}
	return points, nil
}

// Summary describes a sampled curve
type Summary struct {
	Points int
	First  float64
	Last   float64
	Min    float64
	Max    float64
	Mean   float64
}

// Summarize computes summary statistics over sampled points
func Summarize(points []Point) Summary {
	if len(points) == 0 {
		return Summary{}
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Multiplier
	}

	return Summary{
		Points: len(values),
		First:  values[0],
		Last:   values[len(values)-1],
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   stat.Mean(values, nil),
	}
}
