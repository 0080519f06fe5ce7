package genotype

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

type TopologySummary struct {
	Layers     int `json:"layers"`
	Weights    int `json:"weights"`
	Biases     int `json:"biases"`
	Parameters int `json:"parameters"`
}

type GenomeSignature struct {
	Fingerprint string          `json:"fingerprint"`
	Summary     TopologySummary `json:"summary"`
}

// ComputeGenomeSignature hashes layer names, shapes and parameter bits. Two
// genomes share a fingerprint only when they are numerically identical.
func ComputeGenomeSignature(genome model.Genome) GenomeSignature {
	summary := TopologySummary{Layers: len(genome.Layers)}
	h := sha1.New()
	var buf [4]byte
	for _, layer := range genome.Layers {
		summary.Weights += len(layer.Weights)
		summary.Biases += len(layer.Bias)

		h.Write([]byte(layer.Name))
		h.Write([]byte(layer.Shape.String()))
		for _, w := range layer.Weights {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(w))
			h.Write(buf[:])
		}
		h.Write([]byte{'|'})
		for _, b := range layer.Bias {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(b))
			h.Write(buf[:])
		}
	}
	summary.Parameters = summary.Weights + summary.Biases

	digest := h.Sum(nil)
	return GenomeSignature{
		Fingerprint: hex.EncodeToString(digest[:8]),
		Summary:     summary,
	}
}
