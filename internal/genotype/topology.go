package genotype

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

const (
	TopologySmall = "small"
	TopologyBig   = "big"
)

var (
	ErrTopologyExists   = errors.New("topology already registered")
	ErrTopologyNotFound = errors.New("topology not found")
	ErrInvalidTopology  = errors.New("invalid topology")
)

var topologyRegistry = struct {
	mu sync.RWMutex
	m  map[string]model.Topology
}{
	m: make(map[string]model.Topology),
}

func init() {
	for _, topology := range []model.Topology{smallTopology(), bigTopology()} {
		if err := RegisterTopology(topology); err != nil {
			panic(err)
		}
	}
}

// smallTopology is the three layer controller: 64 -> 128 -> 14 -> 7.
func smallTopology() model.Topology {
	return model.Topology{
		Name: TopologySmall,
		Layers: []model.LayerSpec{
			{Name: "input", Out: 128, In: 64, Activation: "relu"},
			{Name: "hidden", Out: 14, In: 128, Activation: "relu"},
			{Name: "output", Out: 7, In: 14, Activation: "tanh"},
		},
	}
}

func bigTopology() model.Topology {
	return model.Topology{
		Name: TopologyBig,
		Layers: []model.LayerSpec{
			{Name: "input", Out: 64, In: 64, Activation: "sigmoid"},
			{Name: "hidden_1", Out: 64, In: 64, Activation: "sigmoid"},
			{Name: "hidden_2", Out: 64, In: 64, Activation: "sigmoid"},
			{Name: "hidden_3", Out: 32, In: 64, Activation: "softmax"},
			{Name: "output", Out: 7, In: 32, Activation: "sigmoid"},
		},
	}
}

// ValidateTopology checks that layer names are unique, shapes are positive and
// consecutive layers chain. Names must not contain the record delimiter.
func ValidateTopology(t model.Topology) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTopology)
	}
	if strings.Contains(t.Name, "_") {
		return fmt.Errorf("%w: name %q contains '_'", ErrInvalidTopology, t.Name)
	}
	if len(t.Layers) == 0 {
		return fmt.Errorf("%w: %s has no layers", ErrInvalidTopology, t.Name)
	}
	seen := make(map[string]struct{}, len(t.Layers))
	for i, layer := range t.Layers {
		if layer.Name == "" {
			return fmt.Errorf("%w: %s layer %d has no name", ErrInvalidTopology, t.Name, i)
		}
		if _, dup := seen[layer.Name]; dup {
			return fmt.Errorf("%w: %s duplicate layer %s", ErrInvalidTopology, t.Name, layer.Name)
		}
		seen[layer.Name] = struct{}{}
		if layer.Out <= 0 || layer.In <= 0 {
			return fmt.Errorf("%w: %s layer %s shape [%d,%d]", ErrInvalidTopology, t.Name, layer.Name, layer.Out, layer.In)
		}
		if i > 0 && t.Layers[i-1].Out != layer.In {
			return fmt.Errorf("%w: %s layer %s expects %d inputs, previous layer emits %d",
				ErrInvalidTopology, t.Name, layer.Name, layer.In, t.Layers[i-1].Out)
		}
	}
	return nil
}

func RegisterTopology(t model.Topology) error {
	if err := ValidateTopology(t); err != nil {
		return err
	}

	topologyRegistry.mu.Lock()
	defer topologyRegistry.mu.Unlock()

	if _, exists := topologyRegistry.m[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrTopologyExists, t.Name)
	}
	topologyRegistry.m[t.Name] = copyTopology(t)
	return nil
}

func ResolveTopology(name string) (model.Topology, error) {
	topologyRegistry.mu.RLock()
	defer topologyRegistry.mu.RUnlock()

	t, ok := topologyRegistry.m[name]
	if !ok {
		return model.Topology{}, fmt.Errorf("%w: %s", ErrTopologyNotFound, name)
	}
	return copyTopology(t), nil
}

func ListTopologies() []string {
	topologyRegistry.mu.RLock()
	defer topologyRegistry.mu.RUnlock()

	names := make([]string, 0, len(topologyRegistry.m))
	for name := range topologyRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func copyTopology(t model.Topology) model.Topology {
	out := t
	out.Layers = append([]model.LayerSpec(nil), t.Layers...)
	return out
}
