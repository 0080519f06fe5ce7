package storage

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

const recordDelimiter = "_"

var ErrInvalidRecordID = errors.New("invalid checkpoint record id")

func NewRecordID(prefix, topology string, seq int) (model.RecordID, error) {
	id := model.RecordID{Prefix: prefix, Topology: topology, Seq: seq}
	if err := ValidateRecordID(id); err != nil {
		return model.RecordID{}, err
	}
	return id, nil
}

func ValidateRecordID(id model.RecordID) error {
	if id.Prefix == "" {
		return fmt.Errorf("%w: empty prefix", ErrInvalidRecordID)
	}
	if id.Topology == "" || strings.Contains(id.Topology, recordDelimiter) {
		return fmt.Errorf("%w: topology %q", ErrInvalidRecordID, id.Topology)
	}
	if id.Seq < 0 {
		return fmt.Errorf("%w: negative sequence %d", ErrInvalidRecordID, id.Seq)
	}
	return nil
}

// ParseRecordID splits <prefix>_<topology>_<seq> from the right, so the
// prefix may itself contain the delimiter. The sequence must be in canonical
// decimal form so the parsed id formats back to name.
func ParseRecordID(name string) (model.RecordID, error) {
	seqAt := strings.LastIndex(name, recordDelimiter)
	if seqAt <= 0 {
		return model.RecordID{}, fmt.Errorf("%w: %q", ErrInvalidRecordID, name)
	}
	topoAt := strings.LastIndex(name[:seqAt], recordDelimiter)
	if topoAt <= 0 {
		return model.RecordID{}, fmt.Errorf("%w: %q", ErrInvalidRecordID, name)
	}
	seq, err := strconv.Atoi(name[seqAt+1:])
	if err != nil {
		return model.RecordID{}, fmt.Errorf("%w: %q: %v", ErrInvalidRecordID, name, err)
	}
	if strconv.Itoa(seq) != name[seqAt+1:] {
		return model.RecordID{}, fmt.Errorf("%w: %q: non-canonical sequence", ErrInvalidRecordID, name)
	}
	id := model.RecordID{Prefix: name[:topoAt], Topology: name[topoAt+1 : seqAt], Seq: seq}
	if err := ValidateRecordID(id); err != nil {
		return model.RecordID{}, err
	}
	return id, nil
}

// selectRecent parses candidate names, keeps those for prefix and topology,
// and returns them newest first. Unparsable names are logged at debug level.
func selectRecent(log logrus.FieldLogger, names []string, prefix, topology string, max int) []model.RecordID {
	ids := make([]model.RecordID, 0, len(names))
	for _, name := range names {
		id, err := ParseRecordID(name)
		if err != nil {
			if log != nil {
				log.WithField("name", name).WithError(err).Debug("skipping checkpoint record")
			}
			continue
		}
		if id.Prefix != prefix || id.Topology != topology {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Seq > ids[j].Seq
	})
	if max > 0 && len(ids) > max {
		ids = ids[:max]
	}
	return ids
}

func nextSequence(ids []model.RecordID) int {
	next := 0
	for _, id := range ids {
		if id.Seq >= next {
			next = id.Seq + 1
		}
	}
	return next
}
