package scoreboard

import (
	"errors"
	"testing"
	"time"

	"icpc-reveal-engine/internal/store"
)

func newFixture() *store.ContestState {
	s := store.NewContestState()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &store.Contest{
		ID:                       "c1",
		StartTime:                &start,
		Duration:                 5 * time.Hour,
		ScoreboardFreezeDuration: time.Hour,
		PenaltyTime:              store.DefaultPenaltyTime,
	}
	s.SetContest(c)

	s.UpsertGroup(&store.Group{ID: "g1", Sortorder: 0})
	s.UpsertOrganization(&store.Organization{ID: "org1"})
	s.UpsertJudgementType(&store.JudgementType{ID: "AC", Solved: true})
	s.UpsertJudgementType(&store.JudgementType{ID: "WA", Penalty: true})
	s.UpsertJudgementType(&store.JudgementType{ID: "CE"})
	s.UpsertProblem(&store.Problem{ID: "p1", Ordinal: 1})
	return s
}

func at(min int) *time.Time {
	t := time.Date(2024, 1, 1, 0, min, 0, 0, time.UTC)
	return &t
}

func TestComputeSimpleSolve(t *testing.T) {
	s := newFixture()
	s.UpsertTeam(&store.Team{ID: "t1", GroupIDs: map[string]struct{}{"g1": {}}, OrganizationID: "org1"})
	s.UpsertSubmission(&store.Submission{ID: "s1", TeamID: "t1", ProblemID: "p1", Time: at(10)})
	s.UpsertJudgement(&store.Judgement{ID: "j1", SubmissionID: "s1", JudgementTypeID: "AC"})

	res, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	row := res.Finalized.Rows[0]
	if row.TotalPoints != 1 || row.TotalPenalty != 10 {
		t.Errorf("expected 1 solve at penalty 10, got %+v", row)
	}
	pre := res.PreFreeze.Rows[0]
	if pre.TotalPoints != 1 || pre.TotalPenalty != 10 {
		t.Errorf("expected pre-freeze to match finalized before freeze, got %+v", pre)
	}
}

func TestComputePenaltyForFailedAttempts(t *testing.T) {
	s := newFixture()
	s.UpsertTeam(&store.Team{ID: "t1", GroupIDs: map[string]struct{}{"g1": {}}, OrganizationID: "org1"})
	s.UpsertSubmission(&store.Submission{ID: "s1", TeamID: "t1", ProblemID: "p1", Time: at(5)})
	s.UpsertJudgement(&store.Judgement{ID: "j1", SubmissionID: "s1", JudgementTypeID: "WA"})
	s.UpsertSubmission(&store.Submission{ID: "s2", TeamID: "t1", ProblemID: "p1", Time: at(15)})
	s.UpsertJudgement(&store.Judgement{ID: "j2", SubmissionID: "s2", JudgementTypeID: "AC"})

	res, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	row := res.Finalized.Rows[0]
	// 15 contest minutes + 1 prior penalized attempt * 20 = 35.
	if row.TotalPenalty != 35 {
		t.Errorf("expected penalty 35, got %d", row.TotalPenalty)
	}
}

func TestComputeIgnoresSubmissionsAfterSolve(t *testing.T) {
	s := newFixture()
	s.UpsertTeam(&store.Team{ID: "t1", GroupIDs: map[string]struct{}{"g1": {}}, OrganizationID: "org1"})
	s.UpsertSubmission(&store.Submission{ID: "s1", TeamID: "t1", ProblemID: "p1", Time: at(5)})
	s.UpsertJudgement(&store.Judgement{ID: "j1", SubmissionID: "s1", JudgementTypeID: "AC"})
	s.UpsertSubmission(&store.Submission{ID: "s2", TeamID: "t1", ProblemID: "p1", Time: at(15)})
	s.UpsertJudgement(&store.Judgement{ID: "j2", SubmissionID: "s2", JudgementTypeID: "WA"})

	res, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	row := res.Finalized.Rows[0]
	if row.TotalPenalty != 5 {
		t.Errorf("expected post-solve submission ignored, penalty 5, got %d", row.TotalPenalty)
	}
}

func TestComputeCENotCounted(t *testing.T) {
	s := newFixture()
	s.UpsertTeam(&store.Team{ID: "t1", GroupIDs: map[string]struct{}{"g1": {}}, OrganizationID: "org1"})
	s.UpsertSubmission(&store.Submission{ID: "s1", TeamID: "t1", ProblemID: "p1", Time: at(5)})
	s.UpsertJudgement(&store.Judgement{ID: "j1", SubmissionID: "s1", JudgementTypeID: "CE"})
	s.UpsertSubmission(&store.Submission{ID: "s2", TeamID: "t1", ProblemID: "p1", Time: at(20)})
	s.UpsertJudgement(&store.Judgement{ID: "j2", SubmissionID: "s2", JudgementTypeID: "AC"})

	res, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	row := res.Finalized.Rows[0]
	if row.TotalPenalty != 20 {
		t.Errorf("expected CE to carry no penalty, got %d", row.TotalPenalty)
	}
}

func TestComputeFreezeExcludesFromPreFreeze(t *testing.T) {
	s := newFixture()
	s.UpsertTeam(&store.Team{ID: "t1", GroupIDs: map[string]struct{}{"g1": {}}, OrganizationID: "org1"})
	// Freeze time is start+4h. This solve is after the freeze.
	s.UpsertSubmission(&store.Submission{ID: "s1", TeamID: "t1", ProblemID: "p1", Time: at(250)})
	s.UpsertJudgement(&store.Judgement{ID: "j1", SubmissionID: "s1", JudgementTypeID: "AC"})

	res, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.PreFreeze.Rows[0].TotalPoints != 0 {
		t.Errorf("expected frozen solve excluded from pre-freeze, got %+v", res.PreFreeze.Rows[0])
	}
	if res.Finalized.Rows[0].TotalPoints != 1 {
		t.Errorf("expected frozen solve counted in finalized, got %+v", res.Finalized.Rows[0])
	}
}

func TestComputeRanking(t *testing.T) {
	s := newFixture()
	s.UpsertTeam(&store.Team{ID: "t1", GroupIDs: map[string]struct{}{"g1": {}}, OrganizationID: "org1"})
	s.UpsertTeam(&store.Team{ID: "t2", GroupIDs: map[string]struct{}{"g1": {}}, OrganizationID: "org1"})
	s.UpsertSubmission(&store.Submission{ID: "s1", TeamID: "t1", ProblemID: "p1", Time: at(10)})
	s.UpsertJudgement(&store.Judgement{ID: "j1", SubmissionID: "s1", JudgementTypeID: "AC"})
	s.UpsertSubmission(&store.Submission{ID: "s2", TeamID: "t2", ProblemID: "p1", Time: at(30)})
	s.UpsertJudgement(&store.Judgement{ID: "j2", SubmissionID: "s2", JudgementTypeID: "AC"})

	res, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.Finalized.Rows[0].TeamID != "t1" {
		t.Errorf("expected t1 to rank first on lower penalty, got order %v", []string{res.Finalized.Rows[0].TeamID, res.Finalized.Rows[1].TeamID})
	}
}

func TestComputeInconsistentRanking(t *testing.T) {
	s := newFixture()
	s.UpsertTeam(&store.Team{ID: "t1", GroupIDs: map[string]struct{}{"g1": {}}, OrganizationID: "org1"})
	s.UpsertTeam(&store.Team{ID: "t2", GroupIDs: map[string]struct{}{"g1": {}}, OrganizationID: "org1"})
	// t1 solves only during the freeze; t2 never submits. Compute must
	// not report an inconsistency for this pair.
	s.UpsertSubmission(&store.Submission{ID: "s1", TeamID: "t1", ProblemID: "p1", Time: at(250)})
	s.UpsertJudgement(&store.Judgement{ID: "j1", SubmissionID: "s1", JudgementTypeID: "AC"})

	res, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// In the pre-freeze view t1's solve is excluded (frozen), so t1 and
	// t2 tie at 0 points / 0 penalty / nil last_ac_time: a clean tie,
	// not inconsistent, since both sides are nil.
	if len(res.PreFreeze.Rows) != 2 {
		t.Fatalf("expected two rows, got %d", len(res.PreFreeze.Rows))
	}

	// Now force a genuine inconsistency: one row with points>0 but a
	// nil last_ac_time cannot arise from Compute itself (AC always
	// stamps FirstACTime), so drive the comparator directly.
	a := &TeamStatus{TeamID: "a", TotalPoints: 1, TotalPenalty: 10, LastACTime: nil}
	b := &TeamStatus{TeamID: "b", TotalPoints: 1, TotalPenalty: 10, LastACTime: at(5)}
	if _, _, err := compare(a, b); !errors.Is(err, ErrInconsistentRanking) {
		t.Errorf("expected ErrInconsistentRanking, got %v", err)
	}
}
