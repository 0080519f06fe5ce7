package evo

import (
	"context"
	"math"
	"math/rand"
	"reflect"
	"sync/atomic"

	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/model"
	"github.com/kecskemeti/arm-hand-ai/internal/scape"
)

func tinyTopology() model.Topology {
	return model.Topology{
		Name: "tiny",
		Layers: []model.LayerSpec{
			{Name: "L1", Out: 3, In: 4, Activation: "relu"},
			{Name: "L2", Out: 2, In: 3, Activation: "relu"},
			{Name: "L3", Out: 1, In: 2, Activation: "tanh"},
		},
	}
}

func randomGenome(seed int64, id string) model.Genome {
	return genotype.NewRandomGenome(rand.New(rand.NewSource(seed)), tinyTopology(), id)
}

// sumScape scores a genome by the sum of its parameters.
type sumScape struct {
	calls atomic.Int64
}

func (*sumScape) Name() string { return "sum" }

func (s *sumScape) Evaluate(_ context.Context, g model.Genome) (scape.Fitness, scape.Trace, error) {
	s.calls.Add(1)
	return scape.Fitness(parameterSum(g)), scape.Trace{"id": g.ID}, nil
}

type nanScape struct {
	badID string
}

func (nanScape) Name() string { return "nan" }

func (s nanScape) Evaluate(_ context.Context, g model.Genome) (scape.Fitness, scape.Trace, error) {
	if g.ID == s.badID {
		return scape.Fitness(math.NaN()), nil, nil
	}
	return 1, nil, nil
}

func parameterSum(g model.Genome) float64 {
	total := 0.0
	for _, layer := range g.Layers {
		for _, w := range layer.Weights {
			total += float64(w)
		}
		for _, b := range layer.Bias {
			total += float64(b)
		}
	}
	return total
}

func sameParameters(a, b model.Genome) bool {
	return reflect.DeepEqual(a.Layers, b.Layers)
}

func containsGenome(population []model.Genome, g model.Genome) bool {
	for _, candidate := range population {
		if sameParameters(candidate, g) {
			return true
		}
	}
	return false
}

func newTestGeneration(sc scape.Scape, size int, eliteFraction float64, randoms int) (*Generation, error) {
	return NewGeneration(GenerationConfig{
		Scape:          sc,
		Topology:       tinyTopology(),
		PopulationSize: size,
		EliteFraction:  eliteFraction,
		RandomCount:    randoms,
		Workers:        4,
	})
}
