package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

type WeightedReproduction struct {
	Operator Reproduction
	Weight   float64
}

// OperatorTable is the weighted choice over reproduction modes used to fill
// non-elite slots.
type OperatorTable []WeightedReproduction

// DefaultOperatorTable weights fine-grained crossover most heavily:
// interleave 5, average 4, combine 1, layer swap 1 and 2 each for jiggling a
// single parent, out of 15.
func DefaultOperatorTable() OperatorTable {
	return OperatorTable{
		{Operator: InterleaveReproduction{}, Weight: 5},
		{Operator: AverageReproduction{}, Weight: 4},
		{Operator: CombineReproduction{}, Weight: 1},
		{Operator: LayerSwapReproduction{}, Weight: 1},
		{Operator: JiggleReproduction{}, Weight: 2},
		{Operator: JiggleReproduction{UseFather: true}, Weight: 2},
	}
}

// OperatorTableFromWeights resolves registered operators by name. Names are
// sorted so the resulting table does not depend on map iteration order.
func OperatorTableFromWeights(weights map[string]float64) (OperatorTable, error) {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	table := make(OperatorTable, 0, len(names))
	for _, name := range names {
		op, err := ResolveOperator(name)
		if err != nil {
			return nil, err
		}
		table = append(table, WeightedReproduction{Operator: op, Weight: weights[name]})
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func (t OperatorTable) Validate() error {
	if len(t) == 0 {
		return errors.New("operator table is empty")
	}
	positive := false
	for i, item := range t {
		if item.Operator == nil {
			return fmt.Errorf("operator table entry %d has no operator", i)
		}
		if item.Weight < 0 {
			return fmt.Errorf("operator %s weight must be >= 0", item.Operator.Name())
		}
		if item.Weight > 0 {
			positive = true
		}
	}
	if !positive {
		return errors.New("operator table requires at least one positive weight")
	}
	return nil
}

func (t OperatorTable) Total() float64 {
	total := 0.0
	for _, item := range t {
		total += item.Weight
	}
	return total
}

// Choose picks an operator with probability proportional to its weight.
func (t OperatorTable) Choose(rng *rand.Rand) Reproduction {
	total := t.Total()
	pick := rng.Float64() * total
	acc := 0.0
	for _, item := range t {
		if item.Weight <= 0 {
			continue
		}
		acc += item.Weight
		if pick < acc {
			return item.Operator
		}
	}
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Weight > 0 {
			return t[i].Operator
		}
	}
	return nil
}
