package genotype

import "github.com/kecskemeti/arm-hand-ai/internal/model"

func CloneGenome(g model.Genome) model.Genome {
	out := g
	out.Layers = make([]model.Layer, len(g.Layers))
	for i, layer := range g.Layers {
		out.Layers[i] = CloneLayer(layer)
	}
	return out
}

func CloneLayer(l model.Layer) model.Layer {
	out := l
	out.Weights = append([]float32(nil), l.Weights...)
	if l.Bias != nil {
		out.Bias = append([]float32(nil), l.Bias...)
	}
	return out
}

// CloneAgent deep copies g and assigns newID when it is non-empty.
func CloneAgent(g model.Genome, newID string) model.Genome {
	out := CloneGenome(g)
	if newID != "" {
		out.ID = newID
	}
	return out
}
