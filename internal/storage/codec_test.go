package storage

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeGenomeRejectsVersionMismatch(t *testing.T) {
	payload, err := EncodeGenome(testGenome(1))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	raw["codec_version"] = CurrentCodecVersion + 1
	tampered, _ := json.Marshal(raw)
	if _, err := DecodeGenome(tampered); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestEncodeGenomeStampsVersions(t *testing.T) {
	g := testGenome(1)
	if g.SchemaVersion != 0 || g.CodecVersion != 0 {
		t.Fatalf("fresh genomes should carry no versions until encoded: %+v", g.VersionedRecord)
	}
	payload, err := EncodeGenome(g)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeGenome(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SchemaVersion != CurrentSchemaVersion || decoded.CodecVersion != CurrentCodecVersion {
		t.Fatalf("unexpected versions: %+v", decoded.VersionedRecord)
	}
}
