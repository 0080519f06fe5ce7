package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

// SummarizeFitness fills the fitness columns of a diagnostics row. The caller
// owns the tick, island and mutation columns.
func SummarizeFitness(scored []model.ScoredGenome) model.GenerationDiagnostics {
	if len(scored) == 0 {
		return model.GenerationDiagnostics{}
	}
	values := make([]float64, len(scored))
	for i, item := range scored {
		values[i] = item.Fitness
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		std = 0
	}
	return model.GenerationDiagnostics{
		BestFitness:   floats.Max(values),
		MeanFitness:   mean,
		MinFitness:    floats.Min(values),
		StdDevFitness: std,
	}
}
