// Package validate runs the all-or-nothing structural checks required
// before scoreboard computation.
package validate

import (
	"fmt"

	"icpc-reveal-engine/internal/store"
)

var (
	// ErrTeamMissingGroup fires when a team has no group_ids.
	ErrTeamMissingGroup = fmt.Errorf("team has no groups")
	// ErrUnknownGroup fires when a team references a group that doesn't exist.
	ErrUnknownGroup = fmt.Errorf("team references unknown group")
	// ErrUnjudgedSubmission fires when a submission has no judgement at all.
	ErrUnjudgedSubmission = fmt.Errorf("submission has no judgement")
	// ErrMissingContestTiming fires when contest/start_time/freeze_time are absent.
	ErrMissingContestTiming = fmt.Errorf("missing contest timing")
)

// Validate runs contest timing, team group, and submission judgement
// checks in order, aborting at the first failure.
func Validate(state *store.ContestState) error {
	if err := validateContestTiming(state); err != nil {
		return err
	}
	if err := validateTeamGroups(state); err != nil {
		return err
	}
	return validateSubmissionsJudged(state)
}

func validateContestTiming(state *store.ContestState) error {
	if state.Contest == nil {
		return fmt.Errorf("%w: no contest defined", ErrMissingContestTiming)
	}
	if state.Contest.StartTime == nil {
		return fmt.Errorf("%w: start_time absent", ErrMissingContestTiming)
	}
	if state.Contest.FreezeTime == nil {
		return fmt.Errorf("%w: freeze_time absent", ErrMissingContestTiming)
	}
	return nil
}

func validateTeamGroups(state *store.ContestState) error {
	for id, team := range state.Teams {
		if len(team.GroupIDs) == 0 {
			return fmt.Errorf("%w: team %q", ErrTeamMissingGroup, id)
		}
		for groupID := range team.GroupIDs {
			if _, ok := state.Groups[groupID]; !ok {
				return fmt.Errorf("%w: team %q references group %q", ErrUnknownGroup, id, groupID)
			}
		}
	}
	return nil
}

func validateSubmissionsJudged(state *store.ContestState) error {
	judged := make(map[string]struct{}, len(state.Judgements))
	for _, j := range state.Judgements {
		judged[j.SubmissionID] = struct{}{}
	}
	for id := range state.Submissions {
		if _, ok := judged[id]; !ok {
			return fmt.Errorf("%w: submission %q", ErrUnjudgedSubmission, id)
		}
	}
	return nil
}
