package evo

import (
	"fmt"

	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

// ScaleStep applies Factor while best fitness is below Below.
type ScaleStep struct {
	Below  float64 `yaml:"below" mapstructure:"below"`
	Factor float64 `yaml:"factor" mapstructure:"factor"`
}

// ScalePolicy maps the best fitness to a mutation factor. Steps are checked
// in order; Floor applies once fitness reaches the last breakpoint.
type ScalePolicy struct {
	Steps []ScaleStep `yaml:"steps" mapstructure:"steps"`
	Floor float64     `yaml:"floor" mapstructure:"floor"`
}

func DefaultScalePolicy() ScalePolicy {
	return ScalePolicy{
		Steps: []ScaleStep{
			{Below: 0.5, Factor: 0.15},
			{Below: 0.75, Factor: 0.075},
			{Below: 0.9, Factor: 0.05},
			{Below: 0.95, Factor: 0.02},
		},
		Floor: 0.01,
	}
}

func (p ScalePolicy) Validate() error {
	prevBelow, prevFactor := 0.0, 0.0
	for i, step := range p.Steps {
		if step.Factor <= 0 {
			return fmt.Errorf("scale step %d factor must be > 0", i)
		}
		if i > 0 && step.Below <= prevBelow {
			return fmt.Errorf("scale step %d breakpoint %v must exceed %v", i, step.Below, prevBelow)
		}
		if i > 0 && step.Factor > prevFactor {
			return fmt.Errorf("scale step %d factor %v must not exceed %v", i, step.Factor, prevFactor)
		}
		prevBelow, prevFactor = step.Below, step.Factor
	}
	if p.Floor <= 0 {
		return fmt.Errorf("scale floor must be > 0")
	}
	if len(p.Steps) > 0 && p.Floor > prevFactor {
		return fmt.Errorf("scale floor %v must not exceed last factor %v", p.Floor, prevFactor)
	}
	return nil
}

func (p ScalePolicy) Factor(bestFitness float64) float64 {
	for _, step := range p.Steps {
		if bestFitness < step.Below {
			return step.Factor
		}
	}
	return p.Floor
}

// ScaleFactor uses the default breakpoints 0.5, 0.75, 0.9 and 0.95.
func ScaleFactor(bestFitness float64) float64 {
	return DefaultScalePolicy().Factor(bestFitness)
}

// MutationScale is sigma = MaxAmplitude(best) * Factor(bestFitness).
func (p ScalePolicy) MutationScale(best model.ScoredGenome) (sigma, amplitude float64, err error) {
	amplitude, err = genotype.MaxAmplitude(best.Genome)
	if err != nil {
		return 0, 0, err
	}
	return amplitude * p.Factor(best.Fitness), amplitude, nil
}
