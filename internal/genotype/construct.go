package genotype

import (
	"fmt"
	"math/rand"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

// NewRandomGenome draws every weight and bias from N(0, 1).
func NewRandomGenome(rng *rand.Rand, topology model.Topology, id string) model.Genome {
	rng = ensureRNG(rng)
	genome := model.Genome{
		ID:       id,
		Topology: topology.Name,
		Layers:   make([]model.Layer, 0, len(topology.Layers)),
	}
	for _, spec := range topology.Layers {
		layer := model.Layer{
			Name:    spec.Name,
			Shape:   spec.Shape(),
			Weights: make([]float32, spec.Out*spec.In),
			Bias:    make([]float32, spec.Out),
		}
		for i := range layer.Weights {
			layer.Weights[i] = float32(rng.NormFloat64())
		}
		for i := range layer.Bias {
			layer.Bias[i] = float32(rng.NormFloat64())
		}
		genome.Layers = append(genome.Layers, layer)
	}
	return genome
}

// NewRandomPopulation builds size fresh genomes with ids <prefix>-<index>.
func NewRandomPopulation(rng *rand.Rand, topology model.Topology, prefix string, size int) []model.Genome {
	population := make([]model.Genome, 0, size)
	for i := 0; i < size; i++ {
		population = append(population, NewRandomGenome(rng, topology, fmt.Sprintf("%s-%d", prefix, i)))
	}
	return population
}

// NewZeroGenome is mostly useful in tests where exact values matter.
func NewZeroGenome(topology model.Topology, id string) model.Genome {
	genome := NewRandomGenome(rand.New(rand.NewSource(0)), topology, id)
	for i := range genome.Layers {
		clear(genome.Layers[i].Weights)
		clear(genome.Layers[i].Bias)
	}
	return genome
}

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(1))
}
