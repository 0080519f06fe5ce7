package storage

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

func netTopology() model.Topology {
	return model.Topology{
		Name: "Net",
		Layers: []model.LayerSpec{
			{Name: "L1", Out: 4, In: 3, Activation: "relu"},
			{Name: "L2", Out: 2, In: 4, Activation: "tanh"},
		},
	}
}

func testGenome(seed int64) model.Genome {
	return genotype.NewRandomGenome(rand.New(rand.NewSource(seed)), netTopology(), "g")
}

func backends(t *testing.T) map[string]CheckpointStore {
	t.Helper()
	return map[string]CheckpointStore{
		"memory": NewMemoryStore(""),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "checkpoints"), ""),
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		if err := store.Init(ctx); err != nil {
			t.Fatalf("%s init: %v", name, err)
		}
		g := testGenome(1)
		id, err := store.Save(ctx, g, "Net", 7)
		if err != nil {
			t.Fatalf("%s save: %v", name, err)
		}
		if id.String() != "best_Net_7" {
			t.Fatalf("%s: unexpected record id %s", name, id)
		}
		loaded, err := store.Load(ctx, id)
		if err != nil {
			t.Fatalf("%s load: %v", name, err)
		}
		if !genotype.ShapesMatch(g, loaded) || !genotype.ShapesMatch(loaded, g) {
			t.Fatalf("%s: shapes changed across round trip", name)
		}
		if !reflect.DeepEqual(g.Layers, loaded.Layers) {
			t.Fatalf("%s: weights changed across round trip", name)
		}
	}
}

func TestListRecentOrdersAndFilters(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		if err := store.Init(ctx); err != nil {
			t.Fatalf("%s init: %v", name, err)
		}
		for _, seq := range []int{3, 10, 1, 7} {
			if _, err := store.Save(ctx, testGenome(int64(seq)), "Net", seq); err != nil {
				t.Fatalf("%s save %d: %v", name, seq, err)
			}
		}
		if _, err := store.Save(ctx, testGenome(99), "Other", 50); err != nil {
			t.Fatalf("%s save other: %v", name, err)
		}

		ids, err := store.ListRecent(ctx, "Net", 3)
		if err != nil {
			t.Fatalf("%s list: %v", name, err)
		}
		var seqs []int
		for _, id := range ids {
			if id.Topology != "Net" {
				t.Fatalf("%s: foreign topology in listing: %s", name, id)
			}
			seqs = append(seqs, id.Seq)
		}
		if !reflect.DeepEqual(seqs, []int{10, 7, 3}) {
			t.Fatalf("%s: unexpected order %v", name, seqs)
		}

		next, err := store.NextSequence(ctx, "Net")
		if err != nil {
			t.Fatalf("%s next sequence: %v", name, err)
		}
		if next != 11 {
			t.Fatalf("%s: expected next sequence 11, got %d", name, next)
		}
		if next, _ := store.NextSequence(ctx, "Empty"); next != 0 {
			t.Fatalf("%s: expected 0 for unknown topology, got %d", name, next)
		}
	}
}

func TestFileStoreSkipsMalformedNames(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir, "")
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := store.Save(ctx, testGenome(1), "Net", 2); err != nil {
		t.Fatalf("save: %v", err)
	}
	for _, name := range []string{"best_Net_abc.json", "best_Net.json", "garbage.json", "best_Net_4.txt", "best_Net_+3.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	// A zero-padded copy of a real record would list as best_Net_7 and then
	// fail to load.
	padded, err := store.Save(ctx, testGenome(2), "Net", 7)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Rename(store.path(padded), filepath.Join(dir, "best_Net_007.json")); err != nil {
		t.Fatalf("rename: %v", err)
	}

	ids, err := store.ListRecent(ctx, "Net", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 || ids[0].Seq != 2 {
		t.Fatalf("expected only the valid record, got %v", ids)
	}
	for _, id := range ids {
		if _, err := store.Load(ctx, id); err != nil {
			t.Fatalf("load listed record %s: %v", id, err)
		}
	}
}

func TestListRecentLogsSkippedNames(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logs)
	logger.SetLevel(logrus.DebugLevel)

	store := NewMemoryStore("")
	SetLoggerIfSupported(store, logger)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	store.putRaw("best_Net_007", nil)
	ids, err := store.ListRecent(ctx, "Net", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no records, got %v", ids)
	}
	out := logs.String()
	if !strings.Contains(out, "skipping checkpoint record") || !strings.Contains(out, "best_Net_007") {
		t.Fatalf("expected a debug entry for the skipped name, got %q", out)
	}
}

func TestMemoryStoreSkipsMalformedNames(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("")
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := store.Save(ctx, testGenome(1), "Net", 5); err != nil {
		t.Fatalf("save: %v", err)
	}
	store.putRaw("best_Net_x", nil)
	store.putRaw("worst_Net_9", nil)
	ids, err := store.ListRecent(ctx, "Net", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 || ids[0].Seq != 5 {
		t.Fatalf("expected only best_Net_5, got %v", ids)
	}
}

func TestLoadMissingRecord(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		if err := store.Init(ctx); err != nil {
			t.Fatalf("%s init: %v", name, err)
		}
		_, err := store.Load(ctx, model.RecordID{Prefix: DefaultPrefix, Topology: "Net", Seq: 42})
		if !errors.Is(err, ErrRecordNotFound) {
			t.Fatalf("%s: expected ErrRecordNotFound, got %v", name, err)
		}
	}
}

func TestSaveRejectsTopologyWithDelimiter(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		if err := store.Init(ctx); err != nil {
			t.Fatalf("%s init: %v", name, err)
		}
		if _, err := store.Save(ctx, testGenome(1), "my_net", 1); !errors.Is(err, ErrInvalidRecordID) {
			t.Fatalf("%s: expected ErrInvalidRecordID, got %v", name, err)
		}
	}
}

func TestCustomPrefixIsolatesRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	best := NewFileStore(dir, "")
	other := NewFileStore(dir, "run_a")
	for _, store := range []*FileStore{best, other} {
		if err := store.Init(ctx); err != nil {
			t.Fatalf("init: %v", err)
		}
	}
	if _, err := best.Save(ctx, testGenome(1), "Net", 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	id, err := other.Save(ctx, testGenome(2), "Net", 9)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id.String() != "run_a_Net_9" {
		t.Fatalf("unexpected id %s", id)
	}
	ids, _ := best.ListRecent(ctx, "Net", 0)
	if len(ids) != 1 || ids[0].Seq != 1 {
		t.Fatalf("prefix leak: %v", ids)
	}
	ids, _ = other.ListRecent(ctx, "Net", 0)
	if len(ids) != 1 || ids[0].Prefix != "run_a" {
		t.Fatalf("prefix leak: %v", ids)
	}
}
