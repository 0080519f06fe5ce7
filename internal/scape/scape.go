package scape

import (
	"context"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

type Fitness float64

type Trace map[string]any

// Scape scores one genome. Implementations must be safe for concurrent use
// since a population is evaluated in parallel.
type Scape interface {
	Name() string
	Evaluate(ctx context.Context, genome model.Genome) (Fitness, Trace, error)
}
