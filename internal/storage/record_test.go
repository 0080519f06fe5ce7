package storage

import (
	"errors"
	"testing"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

func TestParseRecordID(t *testing.T) {
	cases := map[string]model.RecordID{
		"best_small_0":      {Prefix: "best", Topology: "small", Seq: 0},
		"best_Net_7":        {Prefix: "best", Topology: "Net", Seq: 7},
		"run_a_big_123":     {Prefix: "run_a", Topology: "big", Seq: 123},
		"best_v2-small_10":  {Prefix: "best", Topology: "v2-small", Seq: 10},
	}
	for name, want := range cases {
		got, err := ParseRecordID(name)
		if err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %+v want %+v", name, got, want)
		}
	}
}

func TestParseRecordIDRoundTrip(t *testing.T) {
	id := model.RecordID{Prefix: "best", Topology: "small", Seq: 31}
	got, err := ParseRecordID(id.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != id {
		t.Fatalf("round trip: got %+v want %+v", got, id)
	}
}

func TestParseRecordIDRejectsMalformed(t *testing.T) {
	for _, name := range []string{"", "best", "best_small", "_small_1", "best__1", "best_small_x", "best_small_-1", "best_small_", "best_small_007", "best_small_+7", "best_small_00"} {
		if _, err := ParseRecordID(name); !errors.Is(err, ErrInvalidRecordID) {
			t.Fatalf("parse %q: expected ErrInvalidRecordID, got %v", name, err)
		}
	}
}
