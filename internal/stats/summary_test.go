package stats

import (
	"math"
	"testing"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

func TestSummarizeFitness(t *testing.T) {
	scored := []model.ScoredGenome{{Fitness: 0.9}, {Fitness: 0.5}, {Fitness: 0.1}}
	diag := SummarizeFitness(scored)
	if diag.BestFitness != 0.9 || diag.MinFitness != 0.1 {
		t.Fatalf("unexpected extremes: %+v", diag)
	}
	if math.Abs(diag.MeanFitness-0.5) > 1e-12 {
		t.Fatalf("unexpected mean: %v", diag.MeanFitness)
	}
	// Sample standard deviation of {0.9, 0.5, 0.1}.
	if math.Abs(diag.StdDevFitness-0.4) > 1e-12 {
		t.Fatalf("unexpected stddev: %v", diag.StdDevFitness)
	}
}

func TestSummarizeFitnessEdgeCases(t *testing.T) {
	if diag := SummarizeFitness(nil); diag != (model.GenerationDiagnostics{}) {
		t.Fatalf("expected zero diagnostics, got %+v", diag)
	}
	diag := SummarizeFitness([]model.ScoredGenome{{Fitness: 0.3}})
	if diag.StdDevFitness != 0 || diag.BestFitness != 0.3 || diag.MeanFitness != 0.3 {
		t.Fatalf("unexpected single-item diagnostics: %+v", diag)
	}
}
