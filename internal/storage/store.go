package storage

import (
	"context"
	"errors"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

const DefaultPrefix = "best"

var ErrRecordNotFound = errors.New("checkpoint record not found")

// CheckpointStore persists best-so-far genomes. Records are keyed by prefix,
// topology and sequence number so that runs over different topologies never
// collide and recency follows the sequence number.
type CheckpointStore interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, genome model.Genome, topology string, seq int) (model.RecordID, error)
	// ListRecent returns up to max records for topology, newest first. A
	// non-positive max returns every record. Names that do not parse are
	// skipped.
	ListRecent(ctx context.Context, topology string, max int) ([]model.RecordID, error)
	Load(ctx context.Context, id model.RecordID) (model.Genome, error)
	// NextSequence is one past the highest stored sequence for topology.
	NextSequence(ctx context.Context, topology string) (int, error)
}
