package evo

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

func TestJigglePreservesShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, sigma := range []float64{0, 0.01, 1, 25} {
		g := randomGenome(1, "g")
		out, err := Jiggle(rng, g, sigma)
		if err != nil {
			t.Fatalf("jiggle sigma=%v: %v", sigma, err)
		}
		if !genotype.ShapesMatch(g, out) || !genotype.ShapesMatch(out, g) {
			t.Fatalf("jiggle sigma=%v changed shapes", sigma)
		}
		for i := range g.Layers {
			if g.Layers[i].Name != out.Layers[i].Name {
				t.Fatalf("layer order changed: %s vs %s", g.Layers[i].Name, out.Layers[i].Name)
			}
		}
	}
}

func TestJiggleDoesNotMutateInput(t *testing.T) {
	g := randomGenome(1, "g")
	before := genotype.CloneGenome(g)
	out, err := Jiggle(rand.New(rand.NewSource(2)), g, 0.5)
	if err != nil {
		t.Fatalf("jiggle: %v", err)
	}
	if !sameParameters(g, before) {
		t.Fatal("input genome was mutated")
	}
	if sameParameters(out, before) {
		t.Fatal("expected jiggled genome to differ")
	}
}

func TestJiggleZeroSigmaIsIdentity(t *testing.T) {
	g := randomGenome(3, "g")
	out, err := Jiggle(rand.New(rand.NewSource(1)), g, 0)
	if err != nil {
		t.Fatalf("jiggle: %v", err)
	}
	if !sameParameters(g, out) {
		t.Fatal("sigma 0 should leave parameters untouched")
	}
}

func TestJiggleRejectsInvalidSigma(t *testing.T) {
	g := randomGenome(3, "g")
	for _, sigma := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := Jiggle(rand.New(rand.NewSource(1)), g, sigma); !errors.Is(err, ErrInvalidSigma) {
			t.Fatalf("sigma=%v: expected ErrInvalidSigma, got %v", sigma, err)
		}
	}
}

func TestCombineTakesWeightsFromMotherAndBiasFromFather(t *testing.T) {
	a := randomGenome(1, "a")
	b := randomGenome(2, "b")
	child, err := Combine(a, b)
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	for i, layer := range child.Layers {
		for j, w := range layer.Weights {
			if w != a.Layers[i].Weights[j] {
				t.Fatalf("layer %s weight %d: got %v want mother %v", layer.Name, j, w, a.Layers[i].Weights[j])
			}
		}
		for j, v := range layer.Bias {
			if v != b.Layers[i].Bias[j] {
				t.Fatalf("layer %s bias %d: got %v want father %v", layer.Name, j, v, b.Layers[i].Bias[j])
			}
		}
	}
	if child.ID != a.ID || child.Topology != a.Topology {
		t.Fatalf("expected child to keep mother identity, got id=%s topology=%s", child.ID, child.Topology)
	}
}

func TestCombineRejectsShapeMismatch(t *testing.T) {
	a := model.Genome{ID: "a", Layers: []model.Layer{{
		Name: "L1", Shape: model.Shape{Out: 4, In: 4},
		Weights: make([]float32, 16), Bias: make([]float32, 4),
	}}}
	b := model.Genome{ID: "b", Layers: []model.Layer{{
		Name: "L1", Shape: model.Shape{Out: 3, In: 4},
		Weights: make([]float32, 12), Bias: make([]float32, 3),
	}}}
	if _, err := Combine(a, b); !errors.Is(err, genotype.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if _, err := (CombineReproduction{}).Apply(rand.New(rand.NewSource(1)), a, b, 0.1); !errors.Is(err, genotype.ErrShapeMismatch) {
		t.Fatalf("expected reproduction to surface ErrShapeMismatch, got %v", err)
	}
}

func TestInterleaveEntriesComeFromAParent(t *testing.T) {
	a := randomGenome(1, "a")
	b := randomGenome(2, "b")
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 20; trial++ {
		child, err := Interleave(rng, a, b, InterleaveOptions{})
		if err != nil {
			t.Fatalf("interleave: %v", err)
		}
		for i, layer := range child.Layers {
			for j, w := range layer.Weights {
				if w != a.Layers[i].Weights[j] && w != b.Layers[i].Weights[j] {
					t.Fatalf("layer %s weight %d = %v is from neither parent", layer.Name, j, w)
				}
			}
			for j, v := range layer.Bias {
				if v != a.Layers[i].Bias[j] && v != b.Layers[i].Bias[j] {
					t.Fatalf("layer %s bias %d = %v is from neither parent", layer.Name, j, v)
				}
			}
		}
	}
}

func TestInterleaveMixesBothParents(t *testing.T) {
	a := randomGenome(1, "a")
	b := randomGenome(2, "b")
	child, err := Interleave(rand.New(rand.NewSource(5)), a, b, InterleaveOptions{})
	if err != nil {
		t.Fatalf("interleave: %v", err)
	}
	fromA, fromB := 0, 0
	for i, layer := range child.Layers {
		for j, w := range layer.Weights {
			if w == a.Layers[i].Weights[j] {
				fromA++
			} else {
				fromB++
			}
		}
	}
	if fromA == 0 || fromB == 0 {
		t.Fatalf("expected entries from both parents, got a=%d b=%d", fromA, fromB)
	}
}

func TestInterleaveKeepFatherBias(t *testing.T) {
	a := randomGenome(1, "a")
	b := randomGenome(2, "b")
	child, err := Interleave(rand.New(rand.NewSource(5)), a, b, InterleaveOptions{KeepFatherBias: true})
	if err != nil {
		t.Fatalf("interleave: %v", err)
	}
	for i, layer := range child.Layers {
		for j, v := range layer.Bias {
			if v != b.Layers[i].Bias[j] {
				t.Fatalf("layer %s bias %d: got %v want father %v", layer.Name, j, v, b.Layers[i].Bias[j])
			}
		}
	}
}

func TestAverageIsEntrywiseMean(t *testing.T) {
	a := randomGenome(1, "a")
	b := randomGenome(2, "b")
	child, err := Average(a, b)
	if err != nil {
		t.Fatalf("average: %v", err)
	}
	for i, layer := range child.Layers {
		for j, w := range layer.Weights {
			want := (float64(a.Layers[i].Weights[j]) + float64(b.Layers[i].Weights[j])) / 2
			if math.Abs(float64(w)-want) > 1e-6 {
				t.Fatalf("layer %s weight %d: got %v want %v", layer.Name, j, w, want)
			}
		}
		for j, v := range layer.Bias {
			want := (float64(a.Layers[i].Bias[j]) + float64(b.Layers[i].Bias[j])) / 2
			if math.Abs(float64(v)-want) > 1e-6 {
				t.Fatalf("layer %s bias %d: got %v want %v", layer.Name, j, v, want)
			}
		}
	}
}

func TestLayerSwapAlternatesParents(t *testing.T) {
	a := randomGenome(1, "a")
	b := randomGenome(2, "b")
	child, err := LayerSwap(a, b)
	if err != nil {
		t.Fatalf("layer swap: %v", err)
	}
	for i, layer := range child.Layers {
		want := a.Layers[i]
		if i%2 == 1 {
			want = b.Layers[i]
		}
		if !sameParameters(model.Genome{Layers: []model.Layer{layer}}, model.Genome{Layers: []model.Layer{want}}) {
			t.Fatalf("layer %d (%s) came from the wrong parent", i, layer.Name)
		}
	}
}

func TestJiggleReproductionUsesSelectedParent(t *testing.T) {
	a := randomGenome(1, "a")
	b := randomGenome(2, "b")
	rng := rand.New(rand.NewSource(1))

	mother, err := (JiggleReproduction{}).Apply(rng, a, b, 0)
	if err != nil {
		t.Fatalf("jiggle mother: %v", err)
	}
	if !sameParameters(mother, a) {
		t.Fatal("jiggle_mother with sigma 0 should equal mother")
	}
	father, err := (JiggleReproduction{UseFather: true}).Apply(rng, a, b, 0)
	if err != nil {
		t.Fatalf("jiggle father: %v", err)
	}
	if !sameParameters(father, b) {
		t.Fatal("jiggle_father with sigma 0 should equal father")
	}
}

func TestReproductionsPreserveShapes(t *testing.T) {
	a := randomGenome(1, "a")
	b := randomGenome(2, "b")
	rng := rand.New(rand.NewSource(9))
	for _, item := range DefaultOperatorTable() {
		child, err := item.Operator.Apply(rng, a, b, 0.2)
		if err != nil {
			t.Fatalf("%s: %v", item.Operator.Name(), err)
		}
		if err := genotype.ValidateGenome(child, tinyTopology()); err != nil {
			t.Fatalf("%s produced invalid genome: %v", item.Operator.Name(), err)
		}
	}
}
