package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

const recordExt = ".json"

// FileStore writes one JSON document per record into a directory, named
// <prefix>_<topology>_<seq>.json.
type FileStore struct {
	dir    string
	prefix string
	log    logrus.FieldLogger
}

func NewFileStore(dir, prefix string) *FileStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &FileStore{dir: dir, prefix: prefix}
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) SetLogger(log logrus.FieldLogger) { s.log = log }

func (s *FileStore) Init(_ context.Context) error {
	if s.dir == "" {
		return errors.New("checkpoint directory is required")
	}
	return os.MkdirAll(s.dir, 0o755)
}

func (s *FileStore) Save(_ context.Context, genome model.Genome, topology string, seq int) (model.RecordID, error) {
	id, err := NewRecordID(s.prefix, topology, seq)
	if err != nil {
		return model.RecordID{}, err
	}
	payload, err := EncodeGenome(genome)
	if err != nil {
		return model.RecordID{}, err
	}

	// Write then rename so a crash never leaves a truncated record behind.
	tmp, err := os.CreateTemp(s.dir, "."+id.String()+"-*")
	if err != nil {
		return model.RecordID{}, fmt.Errorf("save %s: %w", id, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return model.RecordID{}, fmt.Errorf("save %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return model.RecordID{}, fmt.Errorf("save %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		return model.RecordID{}, fmt.Errorf("save %s: %w", id, err)
	}
	return id, nil
}

func (s *FileStore) ListRecent(_ context.Context, topology string, max int) ([]model.RecordID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), recordExt))
	}
	return selectRecent(s.log, names, s.prefix, topology, max), nil
}

func (s *FileStore) Load(_ context.Context, id model.RecordID) (model.Genome, error) {
	if err := ValidateRecordID(id); err != nil {
		return model.Genome{}, err
	}
	payload, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Genome{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return model.Genome{}, err
	}
	genome, err := DecodeGenome(payload)
	if err != nil {
		return model.Genome{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return genome, nil
}

func (s *FileStore) NextSequence(ctx context.Context, topology string) (int, error) {
	ids, err := s.ListRecent(ctx, topology, 0)
	if err != nil {
		return 0, err
	}
	return nextSequence(ids), nil
}

func (s *FileStore) path(id model.RecordID) string {
	return filepath.Join(s.dir, id.String()+recordExt)
}
