package platform

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kecskemeti/arm-hand-ai/internal/config"
	"github.com/kecskemeti/arm-hand-ai/internal/evo"
	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/metrics"
	"github.com/kecskemeti/arm-hand-ai/internal/model"
	"github.com/kecskemeti/arm-hand-ai/internal/scape"
	"github.com/kecskemeti/arm-hand-ai/internal/stats"
	"github.com/kecskemeti/arm-hand-ai/internal/storage"
)

type StopReason string

const (
	StopReasonTicks       StopReason = "ticks"
	StopReasonFitnessGoal StopReason = "fitness_goal"
	StopReasonCancelled   StopReason = "cancelled"
)

type RunnerConfig struct {
	Config config.Config
	Logger *logrus.Logger
	// Metrics is optional. When nil and Config.MetricsAddr is set, the runner
	// creates its own recorder.
	Metrics *metrics.Recorder
	// Store replaces the backend named by Config.Store. The runner does not
	// close a store it did not open.
	Store storage.CheckpointStore
	// Scape replaces the scape named by Config.Scape.
	Scape scape.Scape
}

type RunResult struct {
	RunID              string
	StopReason         StopReason
	Ticks              int
	Evaluations        int64
	BestFitness        float64
	BestRecord         string
	BestByTick         []float64
	Checkpoints        int
	CheckpointFailures int
	Resumed            bool
	RunDir             string
	MetricsAddr        string
}

// Runner drives one evolution run: it builds the islands, fresh or resumed
// from checkpoints, ticks the scheduler until a stop condition holds and
// saves every new best genome.
type Runner struct {
	cfg       config.Config
	log       *logrus.Logger
	metrics   *metrics.Recorder
	store     storage.CheckpointStore
	ownsStore bool
	scape     scape.Scape
	topology  model.Topology
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	topology, err := genotype.ResolveTopology(cfg.Config.Topology)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:      cfg.Config,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		store:    cfg.Store,
		scape:    cfg.Scape,
		topology: topology,
	}
	if r.log == nil {
		r.log = discardLogger()
	}
	if r.metrics == nil && r.cfg.MetricsAddr != "" {
		r.metrics = metrics.NewRecorder()
	}
	if r.scape == nil {
		r.scape, err = scape.ResolveScape(r.cfg.Scape, topology, r.cfg.Arm)
		if err != nil {
			return nil, err
		}
	}
	if r.store == nil {
		r.store, err = storage.NewStore(r.cfg.Store.Kind, r.cfg.Store.Path, r.cfg.Store.Prefix)
		if err != nil {
			return nil, err
		}
		storage.SetLoggerIfSupported(r.store, r.log.WithField("component", "storage"))
		r.ownsStore = true
	}
	if r.cfg.RunID == "" {
		r.cfg.RunID = uuid.NewString()
	}
	return r, nil
}

func (r *Runner) RunID() string { return r.cfg.RunID }

func (r *Runner) Metrics() *metrics.Recorder { return r.metrics }

func (r *Runner) Run(ctx context.Context) (result RunResult, err error) {
	started := time.Now().UTC()
	result = RunResult{RunID: r.cfg.RunID}
	log := r.log.WithField("run", r.cfg.RunID)

	if r.ownsStore {
		defer func() {
			if closeErr := storage.CloseIfSupported(r.store); closeErr != nil && err == nil {
				err = fmt.Errorf("close store: %w", closeErr)
			}
		}()
	}
	if err := r.store.Init(ctx); err != nil {
		return result, fmt.Errorf("init store: %w", err)
	}

	gen, err := r.newGeneration()
	if err != nil {
		return result, err
	}
	islands, resumed, err := r.initialIslands(ctx, gen, log)
	if err != nil {
		return result, err
	}
	result.Resumed = resumed

	if r.cfg.MetricsAddr != "" {
		addr, serveErrs, err := r.metrics.Serve(ctx, r.cfg.MetricsAddr)
		if err != nil {
			return result, fmt.Errorf("serve metrics: %w", err)
		}
		result.MetricsAddr = addr
		log.WithField("addr", addr).Info("serving metrics")
		go func() {
			if err := <-serveErrs; err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	var runDir string
	if r.cfg.OutputDir != "" {
		runDir = stats.RunDir(r.cfg.OutputDir, r.cfg.RunID)
	}
	diagnostics, err := stats.NewDiagnosticsWriter(runDir)
	if err != nil {
		return result, err
	}
	defer diagnostics.Close()

	scheduler, err := evo.NewIslandScheduler(evo.IslandConfig{
		Generation:        gen,
		MigrationInterval: r.cfg.Migration.Interval,
		MigrationEvents:   r.cfg.Migration.Events,
		MigrationSigma:    r.cfg.Migration.Sigma,
		Parallel:          r.cfg.ParallelIslands,
		Seed:              r.cfg.Seed,
		OnNewBest: func(ctx context.Context, tick int, best model.ScoredGenome) {
			r.checkpoint(ctx, log, tick, best, &result)
		},
	}, islands)
	if err != nil {
		return result, err
	}

	log.WithFields(logrus.Fields{
		"topology":   r.topology.Name,
		"islands":    len(islands),
		"population": gen.PopulationSize(),
		"elites":     gen.EliteCount(),
		"resumed":    resumed,
	}).Info("run started")

	perTick := int64(len(islands) * gen.PopulationSize())
	for {
		if r.cfg.Ticks > 0 && result.Ticks >= r.cfg.Ticks {
			result.StopReason = StopReasonTicks
			break
		}
		if ctx.Err() != nil {
			result.StopReason = StopReasonCancelled
			break
		}

		tickStart := time.Now()
		report, err := scheduler.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				result.StopReason = StopReasonCancelled
				break
			}
			return result, err
		}
		elapsed := time.Since(tickStart)
		result.Ticks = report.Tick
		result.Evaluations += perTick

		rows := make([]model.GenerationDiagnostics, len(report.PerIsland))
		for i, island := range report.PerIsland {
			rows[i] = island.Diagnostics
			log.WithFields(logrus.Fields{
				"tick":    report.Tick,
				"island":  island.Island,
				"fitness": island.Diagnostics.BestFitness,
				"mean":    island.Diagnostics.MeanFitness,
				"sigma":   island.Diagnostics.Sigma,
			}).Debug("island stepped")
		}
		if err := diagnostics.Write(rows...); err != nil {
			return result, err
		}
		r.metrics.ObserveTick(rows, int(perTick), report.Migrations, elapsed)
		if report.Migrations > 0 {
			log.WithFields(logrus.Fields{"tick": report.Tick, "events": report.Migrations}).Debug("islands migrated")
		}

		best, _ := scheduler.Best()
		result.BestFitness = best.Fitness
		result.BestByTick = append(result.BestByTick, best.Fitness)
		if r.cfg.FitnessGoal > 0 && best.Fitness >= r.cfg.FitnessGoal {
			result.StopReason = StopReasonFitnessGoal
			break
		}
	}

	log.WithFields(logrus.Fields{
		"reason":      result.StopReason,
		"ticks":       result.Ticks,
		"fitness":     result.BestFitness,
		"record":      result.BestRecord,
		"checkpoints": result.Checkpoints,
	}).Info("run finished")

	if runDir != "" {
		if err := r.writeArtifacts(result, started, gen, len(islands)); err != nil {
			return result, err
		}
		result.RunDir = runDir
	}
	return result, nil
}

func (r *Runner) newGeneration() (*evo.Generation, error) {
	table, err := r.cfg.OperatorTable()
	if err != nil {
		return nil, err
	}
	workers := r.cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return evo.NewGeneration(evo.GenerationConfig{
		Scape:          r.scape,
		Topology:       r.topology,
		PopulationSize: r.cfg.Population.Size,
		EliteFraction:  r.cfg.Population.EliteFraction,
		RandomCount:    r.cfg.Population.RandomCount,
		Table:          table,
		Scale:          r.cfg.Mutation,
		Workers:        workers,
	})
}

// initialIslands resumes every island from the checkpoint store when asked
// to. A store with no records for the topology falls back to fresh random
// islands.
func (r *Runner) initialIslands(ctx context.Context, gen *evo.Generation, log *logrus.Entry) ([][]model.Genome, bool, error) {
	rng := rand.New(rand.NewSource(r.cfg.Seed))
	islands := make([][]model.Genome, r.cfg.Population.Islands)

	if r.cfg.Resume {
		for i := range islands {
			population, ids, err := evo.Resume(ctx, rng, r.store, gen)
			if errors.Is(err, evo.ErrNoCheckpoints) {
				log.WithField("topology", r.topology.Name).Warn("no checkpoints to resume from, starting fresh")
				return r.freshIslands(rng, gen, islands)
			}
			if err != nil {
				return nil, false, fmt.Errorf("resume island %d: %w", i, err)
			}
			islands[i] = population
			log.WithFields(logrus.Fields{"island": i, "record": ids[0].String(), "records": len(ids)}).Info("island resumed")
		}
		return islands, true, nil
	}
	return r.freshIslands(rng, gen, islands)
}

func (r *Runner) freshIslands(rng *rand.Rand, gen *evo.Generation, islands [][]model.Genome) ([][]model.Genome, bool, error) {
	for i := range islands {
		population, err := gen.NewPopulation(rng)
		if err != nil {
			return nil, false, err
		}
		islands[i] = population
	}
	return islands, false, nil
}

// checkpoint saves a new best genome. Failures are logged and counted; the
// run carries on.
func (r *Runner) checkpoint(ctx context.Context, log *logrus.Entry, tick int, best model.ScoredGenome, result *RunResult) {
	r.metrics.ObserveBest(best.Fitness)
	entry := log.WithFields(logrus.Fields{"tick": tick, "fitness": best.Fitness})

	id, err := r.saveBest(ctx, best.Genome)
	r.metrics.ObserveCheckpoint(err)
	if err != nil {
		result.CheckpointFailures++
		entry.WithError(err).Error("checkpoint save failed")
		return
	}
	result.Checkpoints++
	result.BestRecord = id.String()
	entry.WithFields(logrus.Fields{
		"record":      result.BestRecord,
		"fingerprint": genotype.ComputeGenomeSignature(best.Genome).Fingerprint,
	}).Info("new best")
}

func (r *Runner) saveBest(ctx context.Context, genome model.Genome) (model.RecordID, error) {
	seq, err := r.store.NextSequence(ctx, r.topology.Name)
	if err != nil {
		return model.RecordID{}, err
	}
	return r.store.Save(ctx, genome, r.topology.Name, seq)
}

func (r *Runner) writeArtifacts(result RunResult, started time.Time, gen *evo.Generation, islands int) error {
	finished := time.Now().UTC()
	runCfg := stats.RunConfig{
		RunID:             r.cfg.RunID,
		Scape:             r.scape.Name(),
		Topology:          r.topology.Name,
		Islands:           islands,
		PopulationSize:    gen.PopulationSize(),
		EliteFraction:     r.cfg.Population.EliteFraction,
		RandomCount:       gen.RandomCount(),
		MigrationInterval: r.cfg.Migration.Interval,
		MigrationEvents:   r.cfg.Migration.Events,
		MigrationSigma:    r.cfg.Migration.Sigma,
		Ticks:             r.cfg.Ticks,
		FitnessGoal:       r.cfg.FitnessGoal,
		Seed:              r.cfg.Seed,
		Workers:           r.cfg.Workers,
		Resumed:           result.Resumed,
		Store:             r.cfg.Store.Kind,
	}
	if _, err := stats.WriteRunArtifacts(r.cfg.OutputDir, stats.RunArtifacts{
		Config:           runCfg,
		BestByTick:       result.BestByTick,
		FinalBestFitness: result.BestFitness,
		BestRecord:       result.BestRecord,
		TicksCompleted:   result.Ticks,
		Evaluations:      result.Evaluations,
		Checkpoints:      result.Checkpoints,
		StopReason:       string(result.StopReason),
		StartedAtUTC:     started.Format(time.RFC3339Nano),
		FinishedAtUTC:    finished.Format(time.RFC3339Nano),
	}); err != nil {
		return fmt.Errorf("write run artifacts: %w", err)
	}
	return stats.AppendRunIndex(r.cfg.OutputDir, stats.RunIndexEntry{
		RunID:            r.cfg.RunID,
		Topology:         r.topology.Name,
		Islands:          islands,
		PopulationSize:   gen.PopulationSize(),
		TicksCompleted:   result.Ticks,
		Seed:             r.cfg.Seed,
		FinalBestFitness: result.BestFitness,
		CreatedAtUTC:     finished.Format(time.RFC3339Nano),
	})
}
