package evo

import (
	"math"
	"testing"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

func TestScaleFactorSteps(t *testing.T) {
	cases := map[float64]float64{
		-3:    0.15,
		0.49:  0.15,
		0.5:   0.075,
		0.74:  0.075,
		0.75:  0.05,
		0.9:   0.02,
		0.949: 0.02,
		0.95:  0.01,
		2:     0.01,
	}
	for fitness, want := range cases {
		if got := ScaleFactor(fitness); got != want {
			t.Fatalf("ScaleFactor(%v) = %v, want %v", fitness, got, want)
		}
	}
	if ScaleFactor(0.49) <= ScaleFactor(0.51) {
		t.Fatal("expected coarser mutation below 0.5")
	}
}

func TestScaleFactorNonIncreasing(t *testing.T) {
	prev := math.Inf(1)
	for f := -0.5; f <= 1.5; f += 0.001 {
		got := ScaleFactor(f)
		if got > prev {
			t.Fatalf("ScaleFactor increased at %v: %v > %v", f, got, prev)
		}
		prev = got
	}
}

func TestScalePolicyValidate(t *testing.T) {
	if err := DefaultScalePolicy().Validate(); err != nil {
		t.Fatalf("default policy: %v", err)
	}
	bad := []ScalePolicy{
		{Floor: 0},
		{Steps: []ScaleStep{{Below: 0.5, Factor: 0.1}, {Below: 0.4, Factor: 0.05}}, Floor: 0.01},
		{Steps: []ScaleStep{{Below: 0.5, Factor: 0.1}, {Below: 0.6, Factor: 0.2}}, Floor: 0.01},
		{Steps: []ScaleStep{{Below: 0.5, Factor: 0.1}}, Floor: 0.2},
	}
	for i, policy := range bad {
		if err := policy.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestMutationScaleUsesAmplitude(t *testing.T) {
	g := model.Genome{ID: "g", Layers: []model.Layer{{
		Name: "L1", Shape: model.Shape{Out: 1, In: 2},
		Weights: []float32{0.5, -4}, Bias: []float32{1},
	}}}
	sigma, amplitude, err := DefaultScalePolicy().MutationScale(model.ScoredGenome{Genome: g, Fitness: 0.8})
	if err != nil {
		t.Fatalf("mutation scale: %v", err)
	}
	if amplitude != 4 {
		t.Fatalf("expected amplitude 4, got %v", amplitude)
	}
	if math.Abs(sigma-0.2) > 1e-12 {
		t.Fatalf("expected sigma 0.2, got %v", sigma)
	}
}
