package storage

import "testing"

func TestNewStoreKinds(t *testing.T) {
	for _, kind := range []string{"", "file", "memory"} {
		store, err := NewStore(kind, t.TempDir(), "")
		if err != nil {
			t.Fatalf("new %q store: %v", kind, err)
		}
		if store == nil {
			t.Fatalf("expected non-nil %q store", kind)
		}
		if err := CloseIfSupported(store); err != nil {
			t.Fatalf("close %q: %v", kind, err)
		}
	}
	if _, ok := mustStore(t, "").(*FileStore); !ok {
		t.Fatal("expected file store to be the default")
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	if _, err := NewStore("unknown", "", ""); err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func mustStore(t *testing.T, kind string) CheckpointStore {
	t.Helper()
	store, err := NewStore(kind, t.TempDir(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}
