package scape

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
	"github.com/kecskemeti/arm-hand-ai/internal/nn"
)

const (
	ArmHoldName         = "arm-hold"
	DefaultArmHoldSteps = 500
	// Reserved ball and basket slots: previous and current ball x/y and
	// distance to basket x/y. They are always zero in the hold task.
	armReservedInputs = 8
	ArmHoldInputs     = 2*SegmentCount*4 + armReservedInputs
	ArmHoldOutputs    = SegmentCount
	mapeEpsilon       = 1e-6
)

type ArmHoldConfig struct {
	Steps int         `yaml:"steps" mapstructure:"steps"`
	World WorldConfig `yaml:"world" mapstructure:"world"`
	// RecordSteps adds every per-step score to the trace under "step_scores".
	RecordSteps bool `yaml:"record_steps" mapstructure:"record_steps"`
}

func DefaultArmHoldConfig() ArmHoldConfig {
	return ArmHoldConfig{Steps: DefaultArmHoldSteps, World: DefaultWorldConfig()}
}

// ArmHoldScape rewards a controller for keeping the arm in its starting pose.
// Every step scores 1/(1+MAPE) of the far corners against the initial pose and
// the run is summarised as (10*median + 5*last + min + max) / 17.
type ArmHoldScape struct {
	cfg      ArmHoldConfig
	topology model.Topology
}

func NewArmHoldScape(topology model.Topology, cfg ArmHoldConfig) (*ArmHoldScape, error) {
	if cfg.Steps <= 0 {
		return nil, fmt.Errorf("arm-hold steps must be > 0")
	}
	if err := cfg.World.Validate(); err != nil {
		return nil, err
	}
	if topology.Inputs() != ArmHoldInputs || topology.Outputs() != ArmHoldOutputs {
		return nil, fmt.Errorf("topology %s maps %d->%d, arm-hold needs %d->%d",
			topology.Name, topology.Inputs(), topology.Outputs(), ArmHoldInputs, ArmHoldOutputs)
	}
	if err := nn.ValidateActivations(topology); err != nil {
		return nil, err
	}
	return &ArmHoldScape{cfg: cfg, topology: topology}, nil
}

func (s *ArmHoldScape) Name() string { return ArmHoldName }

func (s *ArmHoldScape) Evaluate(_ context.Context, genome model.Genome) (Fitness, Trace, error) {
	net, err := nn.Compile(genome, s.topology)
	if err != nil {
		return 0, nil, err
	}
	world, err := NewArmWorld(s.cfg.World)
	if err != nil {
		return 0, nil, err
	}

	initial := world.AppendState(nil)
	previous := world.AppendNormalized(nil)
	input := make([]float32, 0, ArmHoldInputs)
	state := make([]float32, 0, len(initial))
	scores := make([]float64, 0, s.cfg.Steps)

	for step := 0; step < s.cfg.Steps; step++ {
		input = append(input[:0], previous...)
		previous = world.AppendNormalized(previous[:0])
		input = append(input, previous...)
		for i := 0; i < armReservedInputs; i++ {
			input = append(input, 0)
		}

		forces, err := net.Forward(input)
		if err != nil {
			return 0, nil, fmt.Errorf("step %d: %w", step, err)
		}
		if err := world.Step(forces); err != nil {
			return 0, nil, fmt.Errorf("step %d: %w", step, err)
		}
		state = world.AppendState(state[:0])
		scores = append(scores, StepScore(initial, state))
	}

	fitness, summary := SummarizeScores(scores)
	trace := Trace{
		"median":    summary.Median,
		"last":      summary.Last,
		"min":       summary.Min,
		"max":       summary.Max,
		"last_mape": 1/summary.Last - 1,
		"steps":     len(scores),
	}
	if s.cfg.RecordSteps {
		trace["step_scores"] = scores
	}
	return Fitness(fitness), trace, nil
}

// StepScore is 1/(1+MAPE) between two corner states.
func StepScore(initial, current []float32) float64 {
	if len(initial) == 0 {
		return 0
	}
	total := 0.0
	for i, a := range initial {
		denom := math.Abs(float64(a))
		if denom < mapeEpsilon {
			denom = mapeEpsilon
		}
		total += math.Abs(float64(a)-float64(current[i])) / denom
	}
	mape := total / float64(len(initial))
	return 1 / (mape + 1)
}

type ScoreSummary struct {
	Median float64
	Last   float64
	Min    float64
	Max    float64
}

// SummarizeScores weights the median ten times, the final step five times and
// the extremes once each. The median is the upper one for even counts.
func SummarizeScores(scores []float64) (float64, ScoreSummary) {
	if len(scores) == 0 {
		return 0, ScoreSummary{}
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	summary := ScoreSummary{
		Median: sorted[len(sorted)/2],
		Last:   scores[len(scores)-1],
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
	fitness := (summary.Median*10 + summary.Last*5 + summary.Min + summary.Max) / 17
	return fitness, summary
}

// ResolveScape builds a scape by name for the given topology.
func ResolveScape(name string, topology model.Topology, cfg ArmHoldConfig) (Scape, error) {
	switch name {
	case "", ArmHoldName:
		return NewArmHoldScape(topology, cfg)
	default:
		return nil, fmt.Errorf("unsupported scape: %s", name)
	}
}
