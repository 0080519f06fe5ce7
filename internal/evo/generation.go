package evo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/model"
	"github.com/kecskemeti/arm-hand-ai/internal/scape"
	"github.com/kecskemeti/arm-hand-ai/internal/stats"
)

var (
	ErrEmptyPopulation  = errors.New("population is empty")
	ErrNonFiniteFitness = errors.New("fitness is not finite")
	ErrPopulationSize   = errors.New("population size mismatch")
	ErrNotEnoughElites  = errors.New("not enough ranked genomes for elite selection")
)

const (
	DefaultPopulationSize = 100
	DefaultEliteFraction  = 0.25
	DefaultRandomCount    = 3
)

type GenerationConfig struct {
	Scape          scape.Scape
	Topology       model.Topology
	PopulationSize int
	EliteFraction  float64
	RandomCount    int
	Table          OperatorTable
	Scale          ScalePolicy
	Workers        int
	// IDPrefix names offspring as <prefix>-<n>.
	IDPrefix string
}

// Generation runs one evolutionary tick over a single population:
// evaluate, rank, keep elites, inject randoms and fill the rest with offspring.
// A Generation is shared by every island of a run and is safe for concurrent
// use as long as each caller passes its own random source.
type Generation struct {
	cfg        GenerationConfig
	eliteCount int
	nextID     atomic.Uint64
}

type GenerationResult struct {
	Next        []model.Genome
	Ranked      []model.ScoredGenome
	Sigma       float64
	Diagnostics model.GenerationDiagnostics
}

// FillResult is the outcome of the reproduction half of a tick.
type FillResult struct {
	Next         []model.Genome
	Sigma        float64
	MaxAmplitude float64
}

func NewGeneration(cfg GenerationConfig) (*Generation, error) {
	if cfg.Scape == nil {
		return nil, fmt.Errorf("scape is required")
	}
	if err := genotype.ValidateTopology(cfg.Topology); err != nil {
		return nil, err
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.EliteFraction <= 0 || cfg.EliteFraction > 1 {
		return nil, fmt.Errorf("elite fraction must be in (0, 1]")
	}
	if cfg.RandomCount < 0 {
		return nil, fmt.Errorf("random count must be >= 0")
	}
	if cfg.Table == nil {
		cfg.Table = DefaultOperatorTable()
	}
	if err := cfg.Table.Validate(); err != nil {
		return nil, err
	}
	if cfg.Scale.Floor == 0 && len(cfg.Scale.Steps) == 0 {
		cfg.Scale = DefaultScalePolicy()
	}
	if err := cfg.Scale.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "g"
	}

	eliteCount := EliteCount(cfg.EliteFraction, cfg.PopulationSize)
	if eliteCount < 2 {
		return nil, fmt.Errorf("population size %d leaves fewer than 2 elites", cfg.PopulationSize)
	}
	if eliteCount+cfg.RandomCount > cfg.PopulationSize {
		return nil, fmt.Errorf("elites (%d) + randoms (%d) exceed population size %d", eliteCount, cfg.RandomCount, cfg.PopulationSize)
	}

	return &Generation{cfg: cfg, eliteCount: eliteCount}, nil
}

func (g *Generation) EliteCount() int { return g.eliteCount }
func (g *Generation) PopulationSize() int { return g.cfg.PopulationSize }
func (g *Generation) RandomCount() int { return g.cfg.RandomCount }
func (g *Generation) Topology() model.Topology { return g.cfg.Topology }
func (g *Generation) Table() OperatorTable { return g.cfg.Table }
func (g *Generation) ScalePolicy() ScalePolicy { return g.cfg.Scale }
func (g *Generation) Scape() scape.Scape { return g.cfg.Scape }

// NewPopulation builds a fresh random population for this generation's
// topology.
func (g *Generation) NewPopulation(rng *rand.Rand) ([]model.Genome, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	population := make([]model.Genome, g.cfg.PopulationSize)
	for i := range population {
		population[i] = genotype.NewRandomGenome(rng, g.cfg.Topology, g.newID())
	}
	return population, nil
}

// Evaluate scores every genome with a bounded worker pool. Results keep the
// population order.
func (g *Generation) Evaluate(ctx context.Context, population []model.Genome) ([]model.ScoredGenome, error) {
	if len(population) == 0 {
		return nil, ErrEmptyPopulation
	}

	scored := make([]model.ScoredGenome, len(population))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.cfg.Workers)
	for i := range population {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			genome := population[i]
			fitness, trace, err := g.cfg.Scape.Evaluate(groupCtx, genome)
			if err != nil {
				return fmt.Errorf("evaluate genome %s: %w", genome.ID, err)
			}
			value := float64(fitness)
			if math.IsNaN(value) || math.IsInf(value, 0) {
				return fmt.Errorf("%w: genome %s scored %v", ErrNonFiniteFitness, genome.ID, value)
			}
			scored[i] = model.ScoredGenome{Genome: genome, Fitness: value, Trace: trace}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

// Rank sorts scored genomes by fitness, best first, in place.
func Rank(scored []model.ScoredGenome) []model.ScoredGenome {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Fitness > scored[j].Fitness
	})
	return scored
}

// Fill builds the next population from an already ranked slice. Slots are laid
// out as [randoms][offspring][elites].
func (g *Generation) Fill(rng *rand.Rand, ranked []model.ScoredGenome) (FillResult, error) {
	if len(ranked) == 0 {
		return FillResult{}, ErrEmptyPopulation
	}
	if rng == nil {
		return FillResult{}, errors.New("random source is required")
	}
	if len(ranked) < g.eliteCount {
		return FillResult{}, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughElites, len(ranked), g.eliteCount)
	}

	elites := ranked[:g.eliteCount]
	sigma, amplitude, err := g.cfg.Scale.MutationScale(elites[0])
	if err != nil {
		return FillResult{}, fmt.Errorf("mutation scale: %w", err)
	}

	size := g.cfg.PopulationSize
	next := make([]model.Genome, 0, size)
	for i := 0; i < g.cfg.RandomCount; i++ {
		next = append(next, genotype.NewRandomGenome(rng, g.cfg.Topology, g.newID()))
	}

	offspring := size - g.cfg.RandomCount - g.eliteCount
	for i := 0; i < offspring; i++ {
		child, err := g.reproduce(rng, elites, sigma)
		if err != nil {
			return FillResult{}, err
		}
		next = append(next, child)
	}

	for _, elite := range elites {
		next = append(next, genotype.CloneGenome(elite.Genome))
	}
	if len(next) != size {
		return FillResult{}, fmt.Errorf("%w: built %d, want %d", ErrPopulationSize, len(next), size)
	}
	return FillResult{Next: next, Sigma: sigma, MaxAmplitude: amplitude}, nil
}

// Step runs evaluate, rank and fill on one population.
func (g *Generation) Step(ctx context.Context, rng *rand.Rand, population []model.Genome) (GenerationResult, error) {
	scored, err := g.Evaluate(ctx, population)
	if err != nil {
		return GenerationResult{}, err
	}
	ranked := Rank(scored)
	filled, err := g.Fill(rng, ranked)
	if err != nil {
		return GenerationResult{}, err
	}

	diag := stats.SummarizeFitness(ranked)
	diag.Sigma = filled.Sigma
	diag.MaxAmplitude = filled.MaxAmplitude
	diag.EliteCount = g.eliteCount
	return GenerationResult{
		Next:        filled.Next,
		Ranked:      ranked,
		Sigma:       filled.Sigma,
		Diagnostics: diag,
	}, nil
}

func (g *Generation) reproduce(rng *rand.Rand, parents []model.ScoredGenome, sigma float64) (model.Genome, error) {
	mother, father, err := PickDistinctPair(rng, len(parents))
	if err != nil {
		return model.Genome{}, err
	}
	op := g.cfg.Table.Choose(rng)
	child, err := op.Apply(rng, parents[mother].Genome, parents[father].Genome, sigma)
	if err != nil {
		return model.Genome{}, fmt.Errorf("operator %s: %w", op.Name(), err)
	}
	child.ID = g.newID()
	return child, nil
}

func (g *Generation) newID() string {
	return g.cfg.IDPrefix + "-" + strconv.FormatUint(g.nextID.Add(1), 10)
}
