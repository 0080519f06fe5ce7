package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrOperatorExists   = errors.New("operator already registered")
	ErrOperatorNotFound = errors.New("operator not found")
)

var operatorRegistry = struct {
	mu sync.RWMutex
	m  map[string]Reproduction
}{
	m: make(map[string]Reproduction),
}

func init() {
	for _, op := range builtinReproductions() {
		if err := RegisterOperator(op); err != nil {
			panic(err)
		}
	}
}

func builtinReproductions() []Reproduction {
	return []Reproduction{
		InterleaveReproduction{},
		AverageReproduction{},
		CombineReproduction{},
		LayerSwapReproduction{},
		JiggleReproduction{},
		JiggleReproduction{UseFather: true},
	}
}

// RegisterOperator makes a reproduction mode addressable by name from config.
func RegisterOperator(op Reproduction) error {
	if op == nil {
		return errors.New("operator is required")
	}
	name := op.Name()
	if name == "" {
		return errors.New("operator name is required")
	}

	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()

	if _, exists := operatorRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, name)
	}
	operatorRegistry.m[name] = op
	return nil
}

func ResolveOperator(name string) (Reproduction, error) {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()

	op, ok := operatorRegistry.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	return op, nil
}

func ListOperators() []string {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()

	names := make([]string, 0, len(operatorRegistry.m))
	for name := range operatorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
