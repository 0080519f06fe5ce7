//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kecskemeti/arm-hand-ai/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path   string
	prefix string
	log    logrus.FieldLogger

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path, prefix string) *SQLiteStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SQLiteStore{path: path, prefix: prefix}
}

func (s *SQLiteStore) SetLogger(log logrus.FieldLogger) { s.log = log }

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, genome model.Genome, topology string, seq int) (model.RecordID, error) {
	id, err := NewRecordID(s.prefix, topology, seq)
	if err != nil {
		return model.RecordID{}, err
	}
	db, err := s.getDB()
	if err != nil {
		return model.RecordID{}, err
	}
	payload, err := EncodeGenome(genome)
	if err != nil {
		return model.RecordID{}, err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO checkpoints (name, prefix, topology, seq, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, id.String(), id.Prefix, id.Topology, id.Seq, CurrentSchemaVersion, CurrentCodecVersion, payload)
	if err != nil {
		return model.RecordID{}, fmt.Errorf("save %s: %w", id, err)
	}
	return id, nil
}

// ListRecent re-parses stored names rather than trusting the indexed columns,
// so rows written by hand with a bad name are skipped like file records.
func (s *SQLiteStore) ListRecent(ctx context.Context, topology string, max int) ([]model.RecordID, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT name FROM checkpoints WHERE topology = ?`, topology)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return selectRecent(s.log, names, s.prefix, topology, max), nil
}

func (s *SQLiteStore) Load(ctx context.Context, id model.RecordID) (model.Genome, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Genome{}, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM checkpoints WHERE name = ?`, id.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Genome{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return model.Genome{}, err
	}
	genome, err := DecodeGenome(payload)
	if err != nil {
		return model.Genome{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return genome, nil
}

func (s *SQLiteStore) NextSequence(ctx context.Context, topology string) (int, error) {
	ids, err := s.ListRecent(ctx, topology, 0)
	if err != nil {
		return 0, err
	}
	return nextSequence(ids), nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("sqlite store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			name TEXT PRIMARY KEY,
			prefix TEXT NOT NULL,
			topology TEXT NOT NULL,
			seq INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS checkpoints_topology_seq ON checkpoints (topology, seq);
	`)
	return err
}

func newSQLiteStore(path, prefix string) (CheckpointStore, error) {
	return NewSQLiteStore(path, prefix), nil
}
