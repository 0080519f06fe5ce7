package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

var ErrNoCheckpoints = errors.New("no checkpoints to resume from")

// CheckpointSource is the read side of a checkpoint store.
type CheckpointSource interface {
	ListRecent(ctx context.Context, topology string, max int) ([]model.RecordID, error)
	Load(ctx context.Context, id model.RecordID) (model.Genome, error)
}

// Resume rebuilds one island from the most recent checkpoints. Up to
// EliteCount records are loaded, cycling through them when fewer exist, and
// placed in the elite slots of a fresh random population. One fill pass then
// derives the remaining slots from them.
func Resume(ctx context.Context, rng *rand.Rand, source CheckpointSource, gen *Generation) ([]model.Genome, []model.RecordID, error) {
	if source == nil {
		return nil, nil, errors.New("checkpoint source is required")
	}
	if gen == nil {
		return nil, nil, errors.New("generation is required")
	}
	if rng == nil {
		return nil, nil, errors.New("random source is required")
	}

	topology := gen.Topology()
	eliteCount := gen.EliteCount()
	ids, err := source.ListRecent(ctx, topology.Name, eliteCount)
	if err != nil {
		return nil, nil, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("%w: topology %s", ErrNoCheckpoints, topology.Name)
	}

	loaded := make([]model.Genome, 0, len(ids))
	for _, id := range ids {
		genome, err := source.Load(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("load checkpoint %s: %w", id, err)
		}
		if err := genotype.ValidateGenome(genome, topology); err != nil {
			return nil, nil, fmt.Errorf("checkpoint %s: %w", id, err)
		}
		loaded = append(loaded, genome)
	}

	population, err := gen.NewPopulation(rng)
	if err != nil {
		return nil, nil, err
	}
	// Placeholder scores are equal so ranking keeps the loaded order.
	ranked := make([]model.ScoredGenome, 0, len(population))
	for i := 0; i < eliteCount; i++ {
		genome := genotype.CloneAgent(loaded[i%len(loaded)], gen.newID())
		ranked = append(ranked, model.ScoredGenome{Genome: genome})
	}
	for _, genome := range population[eliteCount:] {
		ranked = append(ranked, model.ScoredGenome{Genome: genome})
	}

	filled, err := gen.Fill(rng, ranked)
	if err != nil {
		return nil, nil, fmt.Errorf("fill resumed population: %w", err)
	}
	return filled.Next, ids, nil
}
