package evo

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

type mapSource struct {
	ids     []model.RecordID
	genomes map[model.RecordID]model.Genome
}

func (s mapSource) ListRecent(_ context.Context, topology string, max int) ([]model.RecordID, error) {
	out := make([]model.RecordID, 0, len(s.ids))
	for _, id := range s.ids {
		if id.Topology == topology && len(out) < max {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s mapSource) Load(_ context.Context, id model.RecordID) (model.Genome, error) {
	g, ok := s.genomes[id]
	if !ok {
		return model.Genome{}, errors.New("missing")
	}
	return g, nil
}

func TestResumeCyclesCheckpointsIntoEliteSlots(t *testing.T) {
	gen, err := newTestGeneration(&sumScape{}, 10, 0.5, 1)
	if err != nil {
		t.Fatalf("new generation: %v", err)
	}
	source := mapSource{genomes: map[model.RecordID]model.Genome{}}
	for seq := 2; seq >= 1; seq-- {
		id := model.RecordID{Prefix: "best", Topology: "tiny", Seq: seq}
		source.ids = append(source.ids, id)
		source.genomes[id] = randomGenome(int64(seq*100), id.String())
	}

	population, ids, err := Resume(context.Background(), rand.New(rand.NewSource(1)), source, gen)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(population) != 10 {
		t.Fatalf("expected 10 genomes, got %d", len(population))
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 records, got %v", ids)
	}
	elites := population[len(population)-gen.EliteCount():]
	for i, g := range elites {
		want := source.genomes[ids[i%len(ids)]]
		if !sameParameters(g, want) {
			t.Fatalf("elite slot %d does not hold checkpoint %s", i, ids[i%len(ids)])
		}
	}
	for _, g := range population {
		if err := genotype.ValidateGenome(g, tinyTopology()); err != nil {
			t.Fatalf("invalid resumed genome: %v", err)
		}
	}
}

func TestResumeWithoutCheckpoints(t *testing.T) {
	gen, err := newTestGeneration(&sumScape{}, 10, 0.3, 1)
	if err != nil {
		t.Fatalf("new generation: %v", err)
	}
	_, _, err = Resume(context.Background(), rand.New(rand.NewSource(1)), mapSource{}, gen)
	if !errors.Is(err, ErrNoCheckpoints) {
		t.Fatalf("expected ErrNoCheckpoints, got %v", err)
	}
}

func TestResumeRejectsForeignTopology(t *testing.T) {
	gen, err := newTestGeneration(&sumScape{}, 10, 0.3, 1)
	if err != nil {
		t.Fatalf("new generation: %v", err)
	}
	other := model.Topology{Name: "tiny", Layers: []model.LayerSpec{{Name: "L1", Out: 4, In: 4}}}
	id := model.RecordID{Prefix: "best", Topology: "tiny", Seq: 1}
	source := mapSource{
		ids:     []model.RecordID{id},
		genomes: map[model.RecordID]model.Genome{id: genotype.NewRandomGenome(rand.New(rand.NewSource(1)), other, "x")},
	}
	if _, _, err := Resume(context.Background(), rand.New(rand.NewSource(1)), source, gen); !errors.Is(err, genotype.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}
