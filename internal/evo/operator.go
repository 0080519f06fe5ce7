package evo

import (
	"math/rand"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

// Reproduction produces one offspring from a mother and a father. sigma is the
// standard deviation of the jiggle pass applied after crossover.
type Reproduction interface {
	Name() string
	Apply(rng *rand.Rand, mother, father model.Genome, sigma float64) (model.Genome, error)
}

const (
	OpInterleave   = "interleave"
	OpAverage      = "average"
	OpCombine      = "combine"
	OpLayerSwap    = "layer_swap"
	OpJiggleMother = "jiggle_mother"
	OpJiggleFather = "jiggle_father"
)

// InterleaveReproduction mixes parents entry by entry, then jiggles.
type InterleaveReproduction struct {
	Options InterleaveOptions
}

func (InterleaveReproduction) Name() string { return OpInterleave }

func (o InterleaveReproduction) Apply(rng *rand.Rand, mother, father model.Genome, sigma float64) (model.Genome, error) {
	child, err := Interleave(rng, mother, father, o.Options)
	if err != nil {
		return model.Genome{}, err
	}
	return Jiggle(rng, child, sigma)
}

type AverageReproduction struct{}

func (AverageReproduction) Name() string { return OpAverage }

func (AverageReproduction) Apply(rng *rand.Rand, mother, father model.Genome, sigma float64) (model.Genome, error) {
	child, err := Average(mother, father)
	if err != nil {
		return model.Genome{}, err
	}
	return Jiggle(rng, child, sigma)
}

// CombineReproduction takes weights from the mother and biases from the father.
type CombineReproduction struct{}

func (CombineReproduction) Name() string { return OpCombine }

func (CombineReproduction) Apply(rng *rand.Rand, mother, father model.Genome, sigma float64) (model.Genome, error) {
	child, err := Combine(mother, father)
	if err != nil {
		return model.Genome{}, err
	}
	return Jiggle(rng, child, sigma)
}

type LayerSwapReproduction struct{}

func (LayerSwapReproduction) Name() string { return OpLayerSwap }

func (LayerSwapReproduction) Apply(rng *rand.Rand, mother, father model.Genome, sigma float64) (model.Genome, error) {
	child, err := LayerSwap(mother, father)
	if err != nil {
		return model.Genome{}, err
	}
	return Jiggle(rng, child, sigma)
}

// JiggleReproduction perturbs a single parent and ignores the other.
type JiggleReproduction struct {
	UseFather bool
}

func (o JiggleReproduction) Name() string {
	if o.UseFather {
		return OpJiggleFather
	}
	return OpJiggleMother
}

func (o JiggleReproduction) Apply(rng *rand.Rand, mother, father model.Genome, sigma float64) (model.Genome, error) {
	if o.UseFather {
		return Jiggle(rng, father, sigma)
	}
	return Jiggle(rng, mother, sigma)
}
