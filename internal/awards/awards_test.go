package awards

import (
	"bytes"
	"testing"

	"icpc-reveal-engine/internal/store"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	in := map[string]store.Award{
		"a1": {ID: "a1", Citation: "Winner", TeamIDs: []string{"t1", "t2"}},
		"a2": {ID: "a2", Citation: "Rookie of the Year", TeamIDs: []string{"t3"}},
	}

	var buf bytes.Buffer
	if err := Save(&buf, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d awards, got %d", len(in), len(out))
	}
	for id, want := range in {
		got, ok := out[id]
		if !ok {
			t.Fatalf("missing award %q after round trip", id)
		}
		if got.Citation != want.Citation || len(got.TeamIDs) != len(want.TeamIDs) {
			t.Errorf("award %q mismatch: got %+v, want %+v", id, got, want)
		}
	}
}

func TestLoadRenamesByInnerID(t *testing.T) {
	doc := `{"whatever-key": {"id": "a1", "citation": "Winner", "team_ids": ["t1"]}}`
	out, err := Load(bytes.NewBufferString(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := out["a1"]; !ok {
		t.Errorf("expected re-key by inner id a1, got keys %v", keysOf(out))
	}
	if _, ok := out["whatever-key"]; ok {
		t.Error("expected outer key not to survive re-keying")
	}
}

func keysOf(m map[string]store.Award) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
