package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

// MemoryStore keeps encoded records so that loads never alias saved genomes.
type MemoryStore struct {
	prefix string
	log    logrus.FieldLogger

	mu          sync.RWMutex
	initialized bool
	records     map[string][]byte
}

func NewMemoryStore(prefix string) *MemoryStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &MemoryStore{prefix: prefix}
}

func (s *MemoryStore) SetLogger(log logrus.FieldLogger) { s.log = log }

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		s.records = make(map[string][]byte)
		s.initialized = true
	}
	return nil
}

func (s *MemoryStore) Save(_ context.Context, genome model.Genome, topology string, seq int) (model.RecordID, error) {
	id, err := NewRecordID(s.prefix, topology, seq)
	if err != nil {
		return model.RecordID{}, err
	}
	payload, err := EncodeGenome(genome)
	if err != nil {
		return model.RecordID{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return model.RecordID{}, errors.New("memory store is not initialized")
	}
	s.records[id.String()] = payload
	return id, nil
}

func (s *MemoryStore) ListRecent(_ context.Context, topology string, max int) ([]model.RecordID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	return selectRecent(s.log, names, s.prefix, topology, max), nil
}

func (s *MemoryStore) Load(_ context.Context, id model.RecordID) (model.Genome, error) {
	s.mu.RLock()
	payload, ok := s.records[id.String()]
	s.mu.RUnlock()

	if !ok {
		return model.Genome{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return DecodeGenome(payload)
}

func (s *MemoryStore) NextSequence(ctx context.Context, topology string) (int, error) {
	ids, err := s.ListRecent(ctx, topology, 0)
	if err != nil {
		return 0, err
	}
	return nextSequence(ids), nil
}

// putRaw stores an arbitrary name, which lets tests plant malformed records.
func (s *MemoryStore) putRaw(name string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[name] = payload
}
