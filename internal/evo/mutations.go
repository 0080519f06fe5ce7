package evo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

var ErrInvalidSigma = errors.New("mutation sigma must be finite and >= 0")

// Jiggle returns a copy of g with N(0, sigma) noise added to every weight and
// bias entry.
func Jiggle(rng *rand.Rand, g model.Genome, sigma float64) (model.Genome, error) {
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma < 0 {
		return model.Genome{}, fmt.Errorf("%w: %v", ErrInvalidSigma, sigma)
	}
	if rng == nil {
		return model.Genome{}, errors.New("random source is required")
	}
	out := genotype.CloneGenome(g)
	if sigma == 0 {
		return out, nil
	}
	for i := range out.Layers {
		jiggleTensor(rng, out.Layers[i].Weights, sigma)
		jiggleTensor(rng, out.Layers[i].Bias, sigma)
	}
	return out, nil
}

func jiggleTensor(rng *rand.Rand, values []float32, sigma float64) {
	for i := range values {
		values[i] += float32(rng.NormFloat64() * sigma)
	}
}
