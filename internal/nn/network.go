package nn

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

var ErrInputSize = errors.New("input size mismatch")

type layer struct {
	weights    blas32.General
	bias       []float32
	activation Activation
	out        []float32
}

// Network is a genome bound to its topology, ready for repeated forward
// passes. A Network reuses its buffers and must not be shared between
// goroutines; compile one per evaluation.
type Network struct {
	inputs int
	layers []layer
}

// Compile validates g against topology and resolves every activation.
func Compile(g model.Genome, topology model.Topology) (*Network, error) {
	if err := genotype.ValidateGenome(g, topology); err != nil {
		return nil, err
	}
	net := &Network{inputs: topology.Inputs(), layers: make([]layer, len(topology.Layers))}
	for i, spec := range topology.Layers {
		activation, err := GetActivation(spec.Activation)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", spec.Name, err)
		}
		l := g.Layers[i]
		net.layers[i] = layer{
			weights: blas32.General{
				Rows:   l.Shape.Out,
				Cols:   l.Shape.In,
				Stride: l.Shape.In,
				Data:   l.Weights,
			},
			bias:       l.Bias,
			activation: activation,
			out:        make([]float32, l.Shape.Out),
		}
	}
	return net, nil
}

// Forward computes act(W*x + b) layer by layer. The returned slice is owned
// by the caller.
func (n *Network) Forward(input []float32) ([]float32, error) {
	if len(input) != n.inputs {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInputSize, len(input), n.inputs)
	}
	x := input
	for i := range n.layers {
		l := &n.layers[i]
		copy(l.out, l.bias)
		blas32.Gemv(blas.NoTrans, 1, l.weights,
			blas32.Vector{N: len(x), Inc: 1, Data: x},
			1, blas32.Vector{N: len(l.out), Inc: 1, Data: l.out})
		l.activation(l.out)
		x = l.out
	}
	return append([]float32(nil), x...), nil
}

func (n *Network) Inputs() int { return n.inputs }

func (n *Network) Outputs() int {
	if len(n.layers) == 0 {
		return 0
	}
	return len(n.layers[len(n.layers)-1].out)
}

// Apply is a one-shot forward pass with no retained state.
func Apply(g model.Genome, topology model.Topology, input []float32) ([]float32, error) {
	net, err := Compile(g, topology)
	if err != nil {
		return nil, err
	}
	return net.Forward(input)
}

// ValidateActivations reports the first layer whose activation is not
// registered.
func ValidateActivations(topology model.Topology) error {
	for _, spec := range topology.Layers {
		if _, err := GetActivation(spec.Activation); err != nil {
			return fmt.Errorf("topology %s layer %s: %w", topology.Name, spec.Name, err)
		}
	}
	return nil
}
