package config

import (
	"strings"
	"testing"

	"icpc-reveal-engine/internal/store"
)

func newTestState() *store.ContestState {
	s := store.NewContestState()
	s.UpsertGroup(&store.Group{ID: "g1", Name: "Division 1"})
	s.UpsertTeam(&store.Team{ID: "t1", GroupIDs: map[string]struct{}{"g0": {}}})
	s.UpsertTeam(&store.Team{ID: "ghost", GroupIDs: map[string]struct{}{"g0": {}}})
	s.UpsertSubmission(&store.Submission{ID: "s1", TeamID: "t1"})
	s.UpsertSubmission(&store.Submission{ID: "s-ghost", TeamID: "ghost"})
	s.UpsertJudgement(&store.Judgement{ID: "j-ghost", SubmissionID: "s-ghost"})
	return s
}

func TestDecodeDefaults(t *testing.T) {
	c, err := Decode(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Decode empty: %v", err)
	}
	if len(c.FilterTeamSubmissions) != 0 || len(c.TeamGroupMap) != 0 {
		t.Errorf("expected zero-value config, got %+v", c)
	}
}

func TestDecodeUnknownKeysIgnored(t *testing.T) {
	doc := `
unknown_key = "whatever"
filter_team_submissions = ["ghost"]
`
	c, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(c.FilterTeamSubmissions) != 1 || c.FilterTeamSubmissions[0] != "ghost" {
		t.Errorf("unexpected filter list: %v", c.FilterTeamSubmissions)
	}
}

func TestFilterTeamSubmissionsRemovesJudgements(t *testing.T) {
	s := newTestState()
	c := Config{FilterTeamSubmissions: []string{"ghost"}}
	if err := c.Apply(s); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok := s.Submissions["s-ghost"]; ok {
		t.Error("expected ghost's submission to be removed")
	}
	if _, ok := s.Judgements["j-ghost"]; ok {
		t.Error("expected ghost's judgement to be removed")
	}
	if _, ok := s.Submissions["s1"]; !ok {
		t.Error("expected t1's submission to survive")
	}
}

func TestTeamGroupMapRemap(t *testing.T) {
	s := newTestState()
	c := Config{TeamGroupMap: map[string]string{"t1": "g1"}}
	if err := c.Apply(s); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok := s.Teams["t1"].GroupIDs["g1"]; !ok {
		t.Errorf("expected t1 remapped into g1, got %v", s.Teams["t1"].GroupIDs)
	}
	if len(s.Teams["t1"].GroupIDs) != 1 {
		t.Errorf("expected exactly one group after remap, got %v", s.Teams["t1"].GroupIDs)
	}
}

func TestTeamGroupMapUnknownTeam(t *testing.T) {
	s := newTestState()
	c := Config{TeamGroupMap: map[string]string{"nope": "g1"}}
	if err := c.Apply(s); err == nil {
		t.Error("expected error for unknown team in remap")
	}
}

func TestTeamGroupMapUnknownGroup(t *testing.T) {
	s := newTestState()
	c := Config{TeamGroupMap: map[string]string{"t1": "nope"}}
	if err := c.Apply(s); err == nil {
		t.Error("expected error for unknown group in remap")
	}
}
