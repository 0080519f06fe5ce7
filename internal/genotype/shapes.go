package genotype

import (
	"errors"
	"fmt"
	"math"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

var (
	ErrShapeMismatch = errors.New("genome shape mismatch")
	ErrMissingBias   = errors.New("layer has no bias")
	ErrEmptyGenome   = errors.New("genome has no parameters")
)

// ShapesMatch reports whether every layer of a exists in b with identical
// weight and bias shapes.
func ShapesMatch(a, b model.Genome) bool {
	return CheckShapes(a, b) == nil
}

// CheckShapes is ShapesMatch with the first offending layer in the error.
func CheckShapes(a, b model.Genome) error {
	index := layerIndex(b)
	for _, la := range a.Layers {
		j, ok := index[la.Name]
		if !ok {
			return fmt.Errorf("%w: layer %s missing from %s", ErrShapeMismatch, la.Name, b.ID)
		}
		lb := b.Layers[j]
		if la.Shape != lb.Shape || len(la.Weights) != len(lb.Weights) {
			return fmt.Errorf("%w: layer %s weights %s vs %s", ErrShapeMismatch, la.Name, la.Shape, lb.Shape)
		}
		if len(la.Bias) != len(lb.Bias) || (la.Bias == nil) != (lb.Bias == nil) {
			return fmt.Errorf("%w: layer %s bias [%d] vs [%d]", ErrShapeMismatch, la.Name, len(la.Bias), len(lb.Bias))
		}
	}
	return nil
}

// MaxAmplitude is the largest absolute value across every weight and bias.
func MaxAmplitude(g model.Genome) (float64, error) {
	found := false
	best := 0.0
	for _, layer := range g.Layers {
		if layer.Bias == nil {
			return 0, fmt.Errorf("%w: %s/%s", ErrMissingBias, g.ID, layer.Name)
		}
		for _, w := range layer.Weights {
			best = math.Max(best, math.Abs(float64(w)))
			found = true
		}
		for _, b := range layer.Bias {
			best = math.Max(best, math.Abs(float64(b)))
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrEmptyGenome, g.ID)
	}
	return best, nil
}

// ValidateGenome checks g against the run topology: same layer order, shapes
// and fully populated tensors.
func ValidateGenome(g model.Genome, topology model.Topology) error {
	if g.Topology != topology.Name {
		return fmt.Errorf("%w: genome %s has topology %q, run uses %q", ErrShapeMismatch, g.ID, g.Topology, topology.Name)
	}
	if len(g.Layers) != len(topology.Layers) {
		return fmt.Errorf("%w: genome %s has %d layers, topology %s has %d",
			ErrShapeMismatch, g.ID, len(g.Layers), topology.Name, len(topology.Layers))
	}
	for i, spec := range topology.Layers {
		layer := g.Layers[i]
		if layer.Name != spec.Name || layer.Shape != spec.Shape() {
			return fmt.Errorf("%w: genome %s layer %d is %s%s, want %s%s",
				ErrShapeMismatch, g.ID, i, layer.Name, layer.Shape, spec.Name, spec.Shape())
		}
		if len(layer.Weights) != spec.Out*spec.In {
			return fmt.Errorf("%w: genome %s layer %s has %d weights, want %d",
				ErrShapeMismatch, g.ID, layer.Name, len(layer.Weights), spec.Out*spec.In)
		}
		if len(layer.Bias) != spec.Out {
			return fmt.Errorf("%w: genome %s layer %s has %d biases, want %d",
				ErrMissingBias, g.ID, layer.Name, len(layer.Bias), spec.Out)
		}
	}
	return nil
}

// ParameterCount is the total number of weights and biases.
func ParameterCount(g model.Genome) int {
	total := 0
	for _, layer := range g.Layers {
		total += len(layer.Weights) + len(layer.Bias)
	}
	return total
}

func layerIndex(g model.Genome) map[string]int {
	index := make(map[string]int, len(g.Layers))
	for i, layer := range g.Layers {
		index[layer.Name] = i
	}
	return index
}
