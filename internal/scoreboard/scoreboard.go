// Package scoreboard computes the ICPC pre-freeze and finalized
// leaderboards from a validated ContestState: a scoring pass over
// time-ordered judgements feeding per-team-per-problem cells, followed
// by a single stable sort over the whole row set.
package scoreboard

import (
	"fmt"
	"sort"
	"time"

	"icpc-reveal-engine/internal/store"
	"icpc-reveal-engine/internal/validate"
)

// ErrMissingOrganization fires when a team lacks organization_id during
// scoreboard build.
var ErrMissingOrganization = fmt.Errorf("team missing organization")

// ErrUnknownSubmissionTime fires when a judgement's scoring time cannot
// be determined.
var ErrUnknownSubmissionTime = fmt.Errorf("unknown submission time")

// ErrInconsistentRanking fires when two teams tie on sortorder, points
// and penalty but only one of them has a last-AC time: that pair can
// never be ordered without an arbitrary tiebreak, so it's reported as
// a ranking inconsistency instead.
var ErrInconsistentRanking = fmt.Errorf("inconsistent ranking")

// ProblemStat is the derived per-team-per-problem state.
type ProblemStat struct {
	Solved                  bool
	AttemptedDuringFreeze   bool
	PenaltyMinutes          int
	SubmissionsBeforeSolved int
	FirstACTime             *time.Time
}

// TeamStatus is a team's derived totals and ranking key.
type TeamStatus struct {
	TeamID         string
	TeamName       string
	OrganizationID string
	Sortorder      int
	TotalPoints    int
	TotalPenalty   int
	LastACTime     *time.Time
	ProblemStats   map[string]*ProblemStat
}

// Board is a computed, ordered leaderboard: Rows[0] is rank 1.
type Board struct {
	Rows []*TeamStatus
}

// Result bundles both boards computed from one pass over the judgements.
type Result struct {
	PreFreeze *Board
	Finalized *Board
}

// scoredJudgement pairs a judgement with its resolved scoring time and
// original insertion index (for the stable tie-break).
type scoredJudgement struct {
	judgement *store.Judgement
	time      time.Time
	seq       int
}

// Compute builds both leaderboards from state, which must already have
// passed validate.Validate.
func Compute(state *store.ContestState) (*Result, error) {
	if state.Contest == nil || state.Contest.StartTime == nil || state.Contest.FreezeTime == nil {
		return nil, fmt.Errorf("scoreboard: %w", validate.ErrMissingContestTiming)
	}

	scored, err := orderedJudgements(state)
	if err != nil {
		return nil, err
	}

	statuses, err := buildTeamStatuses(state, scored)
	if err != nil {
		return nil, err
	}

	preRows := make([]*TeamStatus, 0, len(statuses))
	finalRows := make([]*TeamStatus, 0, len(statuses))
	for _, st := range statuses {
		preRows = append(preRows, st.pre)
		finalRows = append(finalRows, st.final)
	}

	if err := sortRows(preRows); err != nil {
		return nil, err
	}
	if err := sortRows(finalRows); err != nil {
		return nil, err
	}

	return &Result{
		PreFreeze: &Board{Rows: preRows},
		Finalized: &Board{Rows: finalRows},
	}, nil
}

// orderedJudgements resolves each judgement's scoring time and sorts
// them into non-decreasing scoring-time order, stable on insertion
// order.
func orderedJudgements(state *store.ContestState) ([]scoredJudgement, error) {
	// Go map iteration order is random; establish a deterministic base
	// order by judgement id before the stable time sort so repeated
	// runs over the same state are reproducible.
	ids := make([]string, 0, len(state.Judgements))
	for id := range state.Judgements {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]scoredJudgement, 0, len(ids))
	for seq, id := range ids {
		j := state.Judgements[id]
		t, err := scoringTime(state, j)
		if err != nil {
			return nil, err
		}
		out = append(out, scoredJudgement{judgement: j, time: t, seq: seq})
	}

	sort.SliceStable(out, func(i, k int) bool {
		return out[i].time.Before(out[k].time)
	})
	return out, nil
}

// scoringTime is the submission's time if present, else the
// judgement's own start_time.
func scoringTime(state *store.ContestState, j *store.Judgement) (time.Time, error) {
	sub, ok := state.Submissions[j.SubmissionID]
	if ok && sub.Time != nil {
		return *sub.Time, nil
	}
	if j.StartTime != nil {
		return *j.StartTime, nil
	}
	return time.Time{}, fmt.Errorf("%w: judgement %q", ErrUnknownSubmissionTime, j.ID)
}

type statusPair struct {
	pre   *TeamStatus
	final *TeamStatus
}

// buildTeamStatuses runs the per-team-per-problem state machine over
// every judgement in order, then derives both pre-freeze and finalized
// totals from the resulting cells.
func buildTeamStatuses(state *store.ContestState, scored []scoredJudgement) (map[string]*statusPair, error) {
	freezeTime := *state.Contest.FreezeTime
	startTime := *state.Contest.StartTime
	penaltyMinutes := int(state.Contest.PenaltyTime / time.Minute)

	stats := make(map[string]map[string]*ProblemStat) // teamID -> problemID -> stat

	statusOf := func(teamID string) map[string]*ProblemStat {
		m, ok := stats[teamID]
		if !ok {
			m = make(map[string]*ProblemStat)
			stats[teamID] = m
		}
		return m
	}

	for _, sj := range scored {
		j := sj.judgement
		sub, ok := state.Submissions[j.SubmissionID]
		if !ok {
			continue
		}
		teamStats := statusOf(sub.TeamID)
		stat, ok := teamStats[sub.ProblemID]
		if !ok {
			stat = &ProblemStat{}
			teamStats[sub.ProblemID] = stat
		}

		// Rule 1: already solved, ignore entirely.
		if stat.Solved {
			continue
		}

		jt, ok := state.JudgementTypes[j.JudgementTypeID]
		// Rule 2: no verdict yet, ignore.
		if !ok {
			continue
		}

		// Rule 3.
		if jt.Penalty || jt.Solved {
			stat.SubmissionsBeforeSolved++
		}

		// Rule 4: assignment, not OR.
		stat.AttemptedDuringFreeze = sj.time.After(freezeTime)

		// Rule 5.
		if jt.Solved {
			stat.Solved = true
			t := sj.time
			stat.FirstACTime = &t
			contestMinutes := int(sj.time.Sub(startTime) / time.Minute)
			stat.PenaltyMinutes = contestMinutes + (stat.SubmissionsBeforeSolved-1)*penaltyMinutes
		}
	}

	// Ensure every known team appears, even with zero submissions.
	for teamID := range state.Teams {
		statusOf(teamID)
	}

	out := make(map[string]*statusPair, len(stats))
	for teamID, problemStats := range stats {
		pre, final, err := newStatusPair(state, teamID, problemStats)
		if err != nil {
			return nil, err
		}
		out[teamID] = &statusPair{pre: pre, final: final}
	}
	return out, nil
}

func newStatusPair(state *store.ContestState, teamID string, problemStats map[string]*ProblemStat) (*TeamStatus, *TeamStatus, error) {
	team := state.Teams[teamID]
	var name, org string
	if team != nil {
		name = team.Name
		org = team.OrganizationID
	}
	if org == "" {
		return nil, nil, fmt.Errorf("%w: team %q", ErrMissingOrganization, teamID)
	}

	sortorder := minSortorder(state, team)

	pre := &TeamStatus{TeamID: teamID, TeamName: name, OrganizationID: org, Sortorder: sortorder, ProblemStats: problemStats}
	final := &TeamStatus{TeamID: teamID, TeamName: name, OrganizationID: org, Sortorder: sortorder, ProblemStats: problemStats}

	for _, stat := range problemStats {
		if !stat.Solved {
			continue
		}
		final.TotalPoints++
		final.TotalPenalty += stat.PenaltyMinutes
		if final.LastACTime == nil || stat.FirstACTime.After(*final.LastACTime) {
			final.LastACTime = stat.FirstACTime
		}

		if stat.AttemptedDuringFreeze {
			continue
		}
		pre.TotalPoints++
		pre.TotalPenalty += stat.PenaltyMinutes
		if pre.LastACTime == nil || stat.FirstACTime.After(*pre.LastACTime) {
			pre.LastACTime = stat.FirstACTime
		}
	}

	return pre, final, nil
}

func minSortorder(state *store.ContestState, team *store.Team) int {
	if team == nil || len(team.GroupIDs) == 0 {
		return 0
	}
	min := 0
	first := true
	for groupID := range team.GroupIDs {
		g, ok := state.Groups[groupID]
		if !ok {
			continue
		}
		if first || g.Sortorder < min {
			min = g.Sortorder
			first = false
		}
	}
	return min
}

// SortTeamStatuses re-sorts rows in place by the ranking total order.
// The reveal state machine calls this after promoting a cell's score
// from pre-freeze toward finalized.
func SortTeamStatuses(rows []*TeamStatus) error {
	return sortRows(rows)
}

// sortRows orders rows by the ranking total order, returning
// ErrInconsistentRanking when two rows can't be ordered.
func sortRows(rows []*TeamStatus) error {
	var sortErr error
	sort.SliceStable(rows, func(i, k int) bool {
		if sortErr != nil {
			return false
		}
		less, _, err := compare(rows[i], rows[k])
		if err != nil {
			sortErr = err
			return false
		}
		return less
	})
	if sortErr != nil {
		return sortErr
	}
	// Re-check adjacent-equal pairs for the inconsistent case, since a
	// single less() callback cannot always observe every comparison
	// sort.SliceStable chooses to skip.
	for i := 0; i+1 < len(rows); i++ {
		if _, _, err := compare(rows[i], rows[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// compare implements the ranking total order: sortorder ascending,
// points descending, penalty ascending, last-AC time ascending, team
// id as the final tiebreak. It returns (aLessThanB, equal, error).
func compare(a, b *TeamStatus) (bool, bool, error) {
	if a.Sortorder != b.Sortorder {
		return a.Sortorder < b.Sortorder, false, nil
	}
	if a.TotalPoints != b.TotalPoints {
		return a.TotalPoints > b.TotalPoints, false, nil
	}
	if a.TotalPenalty != b.TotalPenalty {
		return a.TotalPenalty < b.TotalPenalty, false, nil
	}

	aNil, bNil := a.LastACTime == nil, b.LastACTime == nil
	if aNil && bNil {
		return a.TeamID < b.TeamID, a.TeamID == b.TeamID, nil
	}
	if aNil != bNil {
		return false, false, fmt.Errorf("%w: teams %q/%q", ErrInconsistentRanking, a.TeamID, b.TeamID)
	}
	if !a.LastACTime.Equal(*b.LastACTime) {
		return a.LastACTime.Before(*b.LastACTime), false, nil
	}
	return a.TeamID < b.TeamID, a.TeamID == b.TeamID, nil
}
