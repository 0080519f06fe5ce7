package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/sourcegraph/conc/pool"

	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

const (
	DefaultIslands           = 5
	DefaultMigrationInterval = 30
	DefaultMigrationEvents   = 10
	DefaultMigrationSigma    = 0.01
)

type IslandConfig struct {
	Generation        *Generation
	MigrationInterval int
	MigrationEvents   int
	MigrationSigma    float64
	// Parallel steps islands concurrently. Each island keeps its own random
	// source so results do not depend on scheduling.
	Parallel bool
	Seed     int64
	// OnNewBest runs after a tick that raised the process-wide best fitness,
	// before migration.
	OnNewBest func(ctx context.Context, tick int, best model.ScoredGenome)
}

type IslandReport struct {
	Island      int
	Diagnostics model.GenerationDiagnostics
}

type TickReport struct {
	Tick       int
	PerIsland  []IslandReport
	NewBest    *model.ScoredGenome
	Migrations int
}

// IslandScheduler owns the island set. Tick and Migrate are not safe for
// concurrent use; the scheduler is driven by a single run loop.
type IslandScheduler struct {
	cfg      IslandConfig
	islands  [][]model.Genome
	rngs     []*rand.Rand
	rng      *rand.Rand
	tick     int
	best     model.ScoredGenome
	haveBest bool
}

func NewIslandScheduler(cfg IslandConfig, islands [][]model.Genome) (*IslandScheduler, error) {
	if cfg.Generation == nil {
		return nil, fmt.Errorf("generation is required")
	}
	if len(islands) == 0 {
		return nil, fmt.Errorf("at least one island is required")
	}
	size := cfg.Generation.PopulationSize()
	for i, island := range islands {
		if len(island) != size {
			return nil, fmt.Errorf("island %d: %w: got=%d want=%d", i, ErrPopulationSize, len(island), size)
		}
	}
	if cfg.MigrationInterval < 0 {
		return nil, fmt.Errorf("migration interval must be >= 0")
	}
	if cfg.MigrationEvents < 0 {
		return nil, fmt.Errorf("migration events must be >= 0")
	}
	if cfg.MigrationSigma < 0 {
		return nil, fmt.Errorf("migration sigma must be >= 0")
	}

	owned := make([][]model.Genome, len(islands))
	rngs := make([]*rand.Rand, len(islands))
	for i, island := range islands {
		owned[i] = append([]model.Genome(nil), island...)
		rngs[i] = rand.New(rand.NewSource(cfg.Seed + int64(i) + 1))
	}
	return &IslandScheduler{
		cfg:     cfg,
		islands: owned,
		rngs:    rngs,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Tick advances every island by one generation, then migrates when the tick
// count reaches a multiple of the migration interval.
func (s *IslandScheduler) Tick(ctx context.Context) (TickReport, error) {
	if err := ctx.Err(); err != nil {
		return TickReport{}, err
	}
	s.tick++
	tick := s.tick

	results := make([]GenerationResult, len(s.islands))
	step := func(ctx context.Context, i int) error {
		result, err := s.cfg.Generation.Step(ctx, s.rngs[i], s.islands[i])
		if err != nil {
			return fmt.Errorf("island %d tick %d: %w", i, tick, err)
		}
		results[i] = result
		return nil
	}

	if s.cfg.Parallel && len(s.islands) > 1 {
		p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
		for i := range s.islands {
			p.Go(func(ctx context.Context) error {
				return step(ctx, i)
			})
		}
		if err := p.Wait(); err != nil {
			return TickReport{}, err
		}
	} else {
		for i := range s.islands {
			if err := step(ctx, i); err != nil {
				return TickReport{}, err
			}
		}
	}

	report := TickReport{Tick: tick, PerIsland: make([]IslandReport, len(results))}
	for i, result := range results {
		s.islands[i] = result.Next
		diag := result.Diagnostics
		diag.Tick = tick
		diag.Island = i
		report.PerIsland[i] = IslandReport{Island: i, Diagnostics: diag}

		top := result.Ranked[0]
		if !s.haveBest || top.Fitness > s.best.Fitness {
			s.best = model.ScoredGenome{Genome: genotype.CloneGenome(top.Genome), Fitness: top.Fitness, Trace: top.Trace}
			s.haveBest = true
			best := s.best
			report.NewBest = &best
		}
	}

	if report.NewBest != nil && s.cfg.OnNewBest != nil {
		s.cfg.OnNewBest(ctx, tick, *report.NewBest)
	}

	if s.cfg.MigrationInterval > 0 && tick%s.cfg.MigrationInterval == 0 {
		migrated, err := s.Migrate(s.rng)
		if err != nil {
			return TickReport{}, fmt.Errorf("migration at tick %d: %w", tick, err)
		}
		report.Migrations = migrated
	}
	return report, nil
}

// Migrate crosses elites of two distinct islands MigrationEvents times with a
// fixed sigma. Each child overwrites one of the mother island's random slots.
// Elites are snapshotted first so a child never becomes a parent in the same
// pass.
func (s *IslandScheduler) Migrate(rng *rand.Rand) (int, error) {
	if rng == nil {
		return 0, errors.New("random source is required")
	}
	if len(s.islands) < 2 || s.cfg.MigrationEvents == 0 {
		return 0, nil
	}

	gen := s.cfg.Generation
	eliteCount := gen.EliteCount()
	elites := make([][]model.Genome, len(s.islands))
	for i, island := range s.islands {
		slice := island[len(island)-eliteCount:]
		elites[i] = make([]model.Genome, len(slice))
		for j, genome := range slice {
			elites[i][j] = genotype.CloneGenome(genome)
		}
	}

	for event := 0; event < s.cfg.MigrationEvents; event++ {
		motherIsland, fatherIsland, err := PickDistinctPair(rng, len(s.islands))
		if err != nil {
			return event, err
		}
		mother := elites[motherIsland][rng.Intn(eliteCount)]
		father := elites[fatherIsland][rng.Intn(eliteCount)]
		op := gen.Table().Choose(rng)
		child, err := op.Apply(rng, mother, father, s.cfg.MigrationSigma)
		if err != nil {
			return event, fmt.Errorf("operator %s between islands %d and %d: %w", op.Name(), motherIsland, fatherIsland, err)
		}
		child.ID = gen.newID()

		slots := gen.RandomCount()
		if slots == 0 {
			slots = len(s.islands[motherIsland])
		}
		s.islands[motherIsland][rng.Intn(slots)] = child
	}
	return s.cfg.MigrationEvents, nil
}

// Best returns the best genome seen across all islands and ticks.
func (s *IslandScheduler) Best() (model.ScoredGenome, bool) {
	if !s.haveBest {
		return model.ScoredGenome{}, false
	}
	return s.best, true
}

// Islands returns a copy of the island set. Genomes are shared; callers must
// not mutate them.
func (s *IslandScheduler) Islands() [][]model.Genome {
	out := make([][]model.Genome, len(s.islands))
	for i, island := range s.islands {
		out[i] = append([]model.Genome(nil), island...)
	}
	return out
}
