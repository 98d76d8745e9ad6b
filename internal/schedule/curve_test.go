package schedule

import "testing"

func TestSample(t *testing.T) {
	fn := mustBuild(t, NewExponential(ExponentialParams{DecayRate: 0.1, MaxSteps: 100}), 1)

	points, err := Sample(fn, 0, 100, 30)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	steps := []int{0, 30, 60, 90, 100}
	if len(points) != len(steps) {
		t.Fatalf("Expected %d points, got %d", len(steps), len(points))
	}
	for i, p := range points {
		if p.Step != steps[i] {
			t.Errorf("point %d step = %d; want %d", i, p.Step, steps[i])
		}
		if p.Multiplier != fn(p.Step) {
			t.Errorf("point %d multiplier = %v; want %v", i, p.Multiplier, fn(p.Step))
		}
	}
}

func TestSampleInvalid(t *testing.T) {
	fn := mustBuild(t, NewCosineDecay(DefaultCosineDecayParams()), 1)

	if _, err := Sample(fn, 10, 5, 1); err == nil {
		t.Error("Expected error for inverted range")
	}
	if _, err := Sample(fn, 0, 10, 0); err == nil {
		t.Error("Expected error for zero stride")
	}
	if _, err := Sample(nil, 0, 10, 1); err == nil {
		t.Error("Expected error for nil function")
	}
}

func TestSummarize(t *testing.T) {
	points := []Point{
		{Step: 0, Multiplier: 0},
		{Step: 1, Multiplier: 1},
		{Step: 2, Multiplier: 0.5},
	}

	s := Summarize(points)
	if s.Points != 3 || s.First != 0 || s.Last != 0.5 {
		t.Errorf("Unexpected summary: %+v", s)
	}
	if s.Min != 0 || s.Max != 1 || !approxEqual(s.Mean, 0.5) {
		t.Errorf("Unexpected summary stats: %+v", s)
	}

	if empty := Summarize(nil); empty.Points != 0 {
		t.Errorf("Expected empty summary, got %+v", empty)
	}
}
