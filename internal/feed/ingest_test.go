package feed

import (
	"testing"

	"icpc-reveal-engine/internal/store"
)

func TestIngesterAppliesContestAndTeam(t *testing.T) {
	s := store.NewContestState()
	ig := NewIngester(s)

	lines := []string{
		`{"type":"contest","id":"1","data":{"id":"c1","start_time":"2024-01-01T00:00:00Z","duration":"5:00:00","scoreboard_freeze_duration":"1:00:00","penalty_time":20}}`,
		`{"type":"teams","id":"2","data":{"id":"t1","name":"Team One","group_ids":["g1"],"organization_id":"o1"}}`,
	}

	for _, l := range lines {
		if _, err := ig.Apply([]byte(l)); err != nil {
			t.Fatalf("Apply(%q) returned error: %v", l, err)
		}
	}

	if s.Contest == nil || s.Contest.ID != "c1" {
		t.Fatalf("expected contest c1, got %+v", s.Contest)
	}
	if s.Contest.FreezeTime == nil {
		t.Fatalf("expected freeze time to be computed")
	}
	wantFreeze := "2024-01-01T04:00:00Z"
	if got := s.Contest.FreezeTime.Format("2006-01-02T15:04:05Z07:00"); got != wantFreeze {
		t.Errorf("freeze time = %s, want %s", got, wantFreeze)
	}

	team, ok := s.Teams["t1"]
	if !ok {
		t.Fatalf("expected team t1 to exist")
	}
	if _, ok := team.GroupIDs["g1"]; !ok {
		t.Errorf("expected team t1 to be in group g1")
	}
}

func TestIngesterBlankAndMissingData(t *testing.T) {
	s := store.NewContestState()
	ig := NewIngester(s)

	if warn, err := ig.Apply([]byte("")); err != nil || warn == "" {
		t.Errorf("blank line: warn=%q err=%v", warn, err)
	}
	if warn, err := ig.Apply([]byte(`{"type":"teams","id":"1"}`)); err != nil || warn == "" {
		t.Errorf("missing data: warn=%q err=%v", warn, err)
	}
}

func TestIngesterMalformedJSON(t *testing.T) {
	s := store.NewContestState()
	ig := NewIngester(s)
	if _, err := ig.Apply([]byte("{not json")); err == nil {
		t.Error("expected decode error for malformed JSON")
	}
}

func TestIngesterUnknownType(t *testing.T) {
	s := store.NewContestState()
	ig := NewIngester(s)
	if _, err := ig.Apply([]byte(`{"type":"mystery","data":{}}`)); err == nil {
		t.Error("expected error for unknown event type")
	}
}

func TestIngesterIdempotentUpsert(t *testing.T) {
	s := store.NewContestState()
	ig := NewIngester(s)
	line := `{"type":"groups","id":"1","data":{"id":"g1","sortorder":1,"name":"Div 1"}}`
	if _, err := ig.Apply([]byte(line)); err != nil {
		t.Fatal(err)
	}
	if _, err := ig.Apply([]byte(line)); err != nil {
		t.Fatal(err)
	}
	if len(s.Groups) != 1 {
		t.Errorf("expected 1 group after repeated upsert, got %d", len(s.Groups))
	}
}

func TestIngesterStateBeforeContestErrors(t *testing.T) {
	s := store.NewContestState()
	ig := NewIngester(s)
	if _, err := ig.Apply([]byte(`{"type":"state","data":{}}`)); err == nil {
		t.Error("expected error for state event before contest")
	}
}

func TestIngesterAwardEmptyCitationIgnored(t *testing.T) {
	s := store.NewContestState()
	ig := NewIngester(s)
	line := `{"type":"awards","data":{"id":"a1","citation":"   ","team_ids":["t1"]}}`
	if _, err := ig.Apply([]byte(line)); err != nil {
		t.Fatal(err)
	}
	if len(s.Awards) != 0 {
		t.Errorf("expected empty-citation award to be ignored, got %d awards", len(s.Awards))
	}
}
