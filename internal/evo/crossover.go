package evo

import (
	"errors"
	"math/rand"

	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

// InterleaveOptions tunes the per-entry crossover. Each tensor always draws
// its own mask.
type InterleaveOptions struct {
	// KeepFatherBias takes the bias from the father in full instead of
	// interleaving it.
	KeepFatherBias bool
}

// Combine keeps a's weights and b's biases, layer by layer.
func Combine(a, b model.Genome) (model.Genome, error) {
	return zipLayers(a, b, func(la, lb model.Layer) model.Layer {
		out := genotype.CloneLayer(la)
		out.Bias = cloneFloats(lb.Bias)
		return out
	})
}

// Interleave picks every entry from a or b with probability 0.5.
func Interleave(rng *rand.Rand, a, b model.Genome, opts InterleaveOptions) (model.Genome, error) {
	if rng == nil {
		return model.Genome{}, errors.New("random source is required")
	}
	return zipLayers(a, b, func(la, lb model.Layer) model.Layer {
		out := genotype.CloneLayer(la)
		out.Weights = interleaveTensor(rng, la.Weights, lb.Weights)
		if opts.KeepFatherBias {
			out.Bias = cloneFloats(lb.Bias)
		} else {
			out.Bias = interleaveTensor(rng, la.Bias, lb.Bias)
		}
		return out
	})
}

// Average takes the arithmetic mean of both parents entrywise.
func Average(a, b model.Genome) (model.Genome, error) {
	return zipLayers(a, b, func(la, lb model.Layer) model.Layer {
		out := genotype.CloneLayer(la)
		out.Weights = averageTensor(la.Weights, lb.Weights)
		out.Bias = averageTensor(la.Bias, lb.Bias)
		return out
	})
}

// LayerSwap copies whole layers alternately: first from a, second from b,
// third from a and so on.
func LayerSwap(a, b model.Genome) (model.Genome, error) {
	index := 0
	return zipLayers(a, b, func(la, lb model.Layer) model.Layer {
		defer func() { index++ }()
		if index%2 == 0 {
			return genotype.CloneLayer(la)
		}
		return genotype.CloneLayer(lb)
	})
}

// zipLayers walks a's layers in order and pairs each with b's layer of the
// same name. The child keeps a's identity fields.
func zipLayers(a, b model.Genome, fn func(la, lb model.Layer) model.Layer) (model.Genome, error) {
	if err := genotype.CheckShapes(a, b); err != nil {
		return model.Genome{}, err
	}
	byName := make(map[string]model.Layer, len(b.Layers))
	for _, layer := range b.Layers {
		byName[layer.Name] = layer
	}
	out := a
	out.Layers = make([]model.Layer, len(a.Layers))
	for i, la := range a.Layers {
		out.Layers[i] = fn(la, byName[la.Name])
	}
	return out, nil
}

func interleaveTensor(rng *rand.Rand, a, b []float32) []float32 {
	if a == nil {
		return nil
	}
	out := make([]float32, len(a))
	for i := range a {
		if rng.Float64() < 0.5 {
			out[i] = a[i]
		} else {
			out[i] = b[i]
		}
	}
	return out
}

func averageTensor(a, b []float32) []float32 {
	if a == nil {
		return nil
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = (a[i] + b[i]) / 2
	}
	return out
}

func cloneFloats(values []float32) []float32 {
	if values == nil {
		return nil
	}
	return append([]float32(nil), values...)
}
