// Package armhand is the programmatic entry point for evolving and replaying
// arm controllers.
package armhand

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kecskemeti/arm-hand-ai/internal/config"
	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/metrics"
	"github.com/kecskemeti/arm-hand-ai/internal/model"
	"github.com/kecskemeti/arm-hand-ai/internal/platform"
	"github.com/kecskemeti/arm-hand-ai/internal/scape"
	"github.com/kecskemeti/arm-hand-ai/internal/stats"
	"github.com/kecskemeti/arm-hand-ai/internal/storage"
)

type Config = config.Config

func DefaultConfig() Config { return config.Default() }

func LoadConfig(path string) (Config, error) { return config.Load(path) }

type Options struct {
	Config Config
	// Logger defaults to a text logger on stderr at Config.LogLevel.
	Logger *logrus.Logger
	// Store replaces the backend named by Config.Store.
	Store storage.CheckpointStore
}

type Client struct {
	cfg       Config
	log       *logrus.Logger
	store     storage.CheckpointStore
	ownsStore bool
}

type RunRequest struct {
	RunID  string
	Resume bool
	// Ticks and FitnessGoal override the config when non-zero.
	Ticks       int
	FitnessGoal float64
	// Metrics collects run metrics when set.
	Metrics *metrics.Recorder
}

type RunSummary struct {
	RunID              string
	StopReason         string
	Ticks              int
	Evaluations        int64
	BestFitness        float64
	BestRecord         string
	BestByTick         []float64
	Checkpoints        int
	CheckpointFailures int
	Resumed            bool
	ArtifactsDir       string
	MetricsAddr        string
	Elapsed            time.Duration
}

type EvalRequest struct {
	// Record names the checkpoint to replay. Empty replays the newest record
	// for the configured topology.
	Record string
	// Steps overrides the configured simulation length when > 0.
	Steps int
}

type EvalResult struct {
	Record      string
	Topology    string
	Fingerprint string
	Parameters  int
	Fitness     float64
	MAPE        float64
	Summary     scape.ScoreSummary
	StepScores  []float64
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Topology         string
	Islands          int
	Population       int
	Ticks            int
	Seed             int64
	FinalBestFitness float64
}

func New(opts Options) (*Client, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	c := &Client{cfg: opts.Config, log: opts.Logger, store: opts.Store}
	if c.log == nil {
		logger, err := platform.NewLogger(os.Stderr, c.cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		c.log = logger
	}
	if c.store == nil {
		store, err := storage.NewStore(c.cfg.Store.Kind, c.cfg.Store.Path, c.cfg.Store.Prefix)
		if err != nil {
			return nil, err
		}
		storage.SetLoggerIfSupported(store, c.log.WithField("component", "storage"))
		c.store = store
		c.ownsStore = true
	}
	return c, nil
}

func (c *Client) Close() error {
	if !c.ownsStore {
		return nil
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Config() Config { return c.cfg }

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := c.cfg
	if req.RunID != "" {
		cfg.RunID = req.RunID
	}
	if req.Resume {
		cfg.Resume = true
	}
	if req.Ticks > 0 {
		cfg.Ticks = req.Ticks
	}
	if req.FitnessGoal > 0 {
		cfg.FitnessGoal = req.FitnessGoal
	}

	runner, err := platform.NewRunner(platform.RunnerConfig{
		Config:  cfg,
		Logger:  c.log,
		Metrics: req.Metrics,
		Store:   c.store,
	})
	if err != nil {
		return RunSummary{}, err
	}

	started := time.Now()
	result, err := runner.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	return RunSummary{
		RunID:              result.RunID,
		StopReason:         string(result.StopReason),
		Ticks:              result.Ticks,
		Evaluations:        result.Evaluations,
		BestFitness:        result.BestFitness,
		BestRecord:         result.BestRecord,
		BestByTick:         result.BestByTick,
		Checkpoints:        result.Checkpoints,
		CheckpointFailures: result.CheckpointFailures,
		Resumed:            result.Resumed,
		ArtifactsDir:       result.RunDir,
		MetricsAddr:        result.MetricsAddr,
		Elapsed:            time.Since(started),
	}, nil
}

// Evaluate replays a checkpoint through the configured scape and reports the
// per-step scores alongside the fitness.
func (c *Client) Evaluate(ctx context.Context, req EvalRequest) (EvalResult, error) {
	if err := c.store.Init(ctx); err != nil {
		return EvalResult{}, err
	}
	id, err := c.resolveRecord(ctx, req.Record)
	if err != nil {
		return EvalResult{}, err
	}
	topology, err := genotype.ResolveTopology(id.Topology)
	if err != nil {
		return EvalResult{}, err
	}
	genome, err := c.store.Load(ctx, id)
	if err != nil {
		return EvalResult{}, err
	}
	if err := genotype.ValidateGenome(genome, topology); err != nil {
		return EvalResult{}, fmt.Errorf("checkpoint %s: %w", id, err)
	}

	armCfg := c.cfg.Arm
	armCfg.RecordSteps = true
	if req.Steps > 0 {
		armCfg.Steps = req.Steps
	}
	sc, err := scape.ResolveScape(c.cfg.Scape, topology, armCfg)
	if err != nil {
		return EvalResult{}, err
	}
	fitness, trace, err := sc.Evaluate(ctx, genome)
	if err != nil {
		return EvalResult{}, fmt.Errorf("evaluate %s: %w", id, err)
	}

	scores, _ := trace["step_scores"].([]float64)
	_, summary := scape.SummarizeScores(scores)
	sig := genotype.ComputeGenomeSignature(genome)
	result := EvalResult{
		Record:      id.String(),
		Topology:    topology.Name,
		Fingerprint: sig.Fingerprint,
		Parameters:  sig.Summary.Parameters,
		Fitness:     float64(fitness),
		Summary:     summary,
		StepScores:  scores,
	}
	if fitness > 0 {
		result.MAPE = 1/float64(fitness) - 1
	}
	c.log.WithFields(logrus.Fields{"record": result.Record, "fitness": result.Fitness}).Debug("checkpoint replayed")
	return result, nil
}

// ListCheckpoints returns records for topology, newest first. An empty
// topology uses the configured one; limit <= 0 lists all.
func (c *Client) ListCheckpoints(ctx context.Context, topology string, limit int) ([]model.RecordID, error) {
	if topology == "" {
		topology = c.cfg.Topology
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}
	return c.store.ListRecent(ctx, topology, limit)
}

// Runs lists recorded runs newest first.
func (c *Client) Runs(limit int) ([]RunItem, error) {
	entries, err := stats.ListRunIndex(c.cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Topology:         e.Topology,
			Islands:          e.Islands,
			Population:       e.PopulationSize,
			Ticks:            e.TicksCompleted,
			Seed:             e.Seed,
			FinalBestFitness: e.FinalBestFitness,
		})
	}
	return out, nil
}

func (c *Client) resolveRecord(ctx context.Context, record string) (model.RecordID, error) {
	if record != "" {
		return storage.ParseRecordID(record)
	}
	ids, err := c.store.ListRecent(ctx, c.cfg.Topology, 1)
	if err != nil {
		return model.RecordID{}, err
	}
	if len(ids) == 0 {
		return model.RecordID{}, fmt.Errorf("%w: no checkpoints for topology %s", storage.ErrRecordNotFound, c.cfg.Topology)
	}
	return ids[0], nil
}
