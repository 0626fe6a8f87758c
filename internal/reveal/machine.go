// Package reveal implements the award-ceremony reveal state machine:
// it walks the pre-freeze board toward the finalized board one step at
// a time, surfacing frozen cells, committed scores and due awards in
// presentation order.
package reveal

import (
	"fmt"
	"sort"

	"icpc-reveal-engine/internal/scoreboard"
	"icpc-reveal-engine/internal/store"
)

// ErrEmptyBoard is returned by Step when the machine has no rows to
// reveal. A well-formed run never reaches this: Step is only ever
// called against a board produced by a non-empty contest.
var ErrEmptyBoard = fmt.Errorf("reveal: empty board")

// ReorderEvent carries the team-id order before and after a score
// commit re-sorts the board.
type ReorderEvent struct {
	Before []string
	After  []string
}

// StepResult is what a single Step call observed happening, for the
// caller to animate. Either field may be nil.
type StepResult struct {
	ScrollTo *int
	Reorder  *ReorderEvent
}

// Machine is the mutable reveal state. Board starts as the pre-freeze
// rows and is mutated in place toward the finalized ordering as cells
// are revealed.
type Machine struct {
	Board              []*scoreboard.TeamStatus
	CurrentRevealIndex *int
	RevealInitialized  bool
	Phase              Phase
	AwardsByTeam       map[string][]string

	problems []*store.Problem
}

// New builds a Machine from the pre-freeze board, the problem set (for
// next-pending-problem ordering) and the awards store (for award
// surfacing). AwardsByTeam is built once here, omitting citations from
// awards whose list is empty after trimming (store.UpsertAward already
// guarantees no stored award has an empty citation).
func New(board []*scoreboard.TeamStatus, problems map[string]*store.Problem, awards map[string]*store.Award, awardOrder []string) *Machine {
	sorted := make([]*store.Problem, 0, len(problems))
	for _, p := range problems {
		sorted = append(sorted, p)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Ordinal != sorted[j].Ordinal {
			return sorted[i].Ordinal < sorted[j].Ordinal
		}
		return sorted[i].Label < sorted[j].Label
	})

	byTeam := make(map[string][]string)
	for _, id := range awardOrder {
		a, ok := awards[id]
		if !ok {
			continue
		}
		for _, teamID := range a.TeamIDs {
			byTeam[teamID] = append(byTeam[teamID], a.Citation)
		}
	}

	return &Machine{
		Board:        board,
		Phase:        Phase{Kind: KindRevealStep},
		AwardsByTeam: byTeam,
		problems:     sorted,
	}
}

// Step advances the machine by exactly one transition.
func (m *Machine) Step() (StepResult, error) {
	if len(m.Board) == 0 {
		return StepResult{}, ErrEmptyBoard
	}
	if m.RevealInitialized && m.Phase.Kind == KindFinished {
		return StepResult{}, nil
	}
	if !m.RevealInitialized || m.indexOutOfBounds() {
		// A nil index during RevealStep is a normal in-flight state
		// (step 2 of the RevealStep transition resolves it); only a
		// present-but-invalid numeric index forces a full re-scan.
		return m.initialize(), nil
	}

	switch m.Phase.Kind {
	case KindFinished:
		return StepResult{}, nil

	case KindShowAward:
		m.Phase = Phase{Kind: KindPostAwardScroll, NextIndex: m.Phase.NextIndex, ScrollIndex: m.Phase.ScrollIndex}
		return StepResult{}, nil

	case KindPendingAward:
		m.Phase = Phase{Kind: KindShowAward, TeamID: m.Phase.TeamID, Citations: m.Phase.Citations, NextIndex: m.Phase.NextIndex, ScrollIndex: m.Phase.ScrollIndex}
		return StepResult{}, nil

	case KindPostAwardScroll:
		return m.advance(m.Phase.NextIndex, m.Phase.ScrollIndex), nil

	case KindApplyPostReveal:
		var reorder *ReorderEvent
		if m.Phase.SolvedResort != nil {
			before := teamOrder(m.Board)
			m.applySolvedProblemScore(m.Phase.SolvedResort.TeamID, m.Phase.SolvedResort.ProblemID)
			if err := scoreboard.SortTeamStatuses(m.Board); err != nil {
				return StepResult{}, err
			}
			reorder = &ReorderEvent{Before: before, After: teamOrder(m.Board)}
		}
		res := m.advance(m.Phase.NextIndex, m.Phase.ScrollIndex)
		res.Reorder = reorder
		return res, nil

	case KindRevealStep:
		return m.revealStep(), nil

	default:
		return StepResult{}, fmt.Errorf("reveal: unhandled phase %s", m.Phase.Kind)
	}
}

// initialize runs the first-step (or index-fell-outside-the-board)
// bootstrap: point current_reveal_index at the last row with any
// frozen stat, searching from the bottom, without mutating the board.
func (m *Machine) initialize() StepResult {
	idx := m.findLastPendingIndex()
	m.CurrentRevealIndex = idx
	m.RevealInitialized = true
	m.Phase = Phase{Kind: KindRevealStep}
	if idx == nil {
		return StepResult{}
	}
	i := *idx
	return StepResult{ScrollTo: &i}
}

// indexOutOfBounds reports a present-but-invalid numeric index (e.g.
// advance() stepping past the top or bottom row). A nil index is not
// "out of bounds" here: RevealStep's own step 2 resolves nil by
// re-scanning, without forcing the full bootstrap scroll cue.
func (m *Machine) indexOutOfBounds() bool {
	if m.CurrentRevealIndex == nil {
		return false
	}
	i := *m.CurrentRevealIndex
	return i < 0 || i >= len(m.Board)
}

// revealStep implements the RevealStep transition body.
func (m *Machine) revealStep() StepResult {
	if !m.hasPending() {
		m.CurrentRevealIndex = nil
		m.Phase = Phase{Kind: KindFinished}
		return StepResult{}
	}
	if m.CurrentRevealIndex == nil {
		idx := m.findLastPendingIndex()
		m.CurrentRevealIndex = idx
		if idx == nil {
			return StepResult{}
		}
		i := *idx
		return StepResult{ScrollTo: &i}
	}

	i := clamp(*m.CurrentRevealIndex, 0, len(m.Board)-1)
	m.CurrentRevealIndex = &i
	team := m.Board[i]
	acted := team.TeamID

	pid, stat, ok := m.nextPendingProblem(team)
	if !ok {
		return m.finishTeamOrAward(acted, i-1, i-1)
	}

	stat.AttemptedDuringFreeze = false

	if stat.Solved {
		m.Phase = Phase{Kind: KindApplyPostReveal, SolvedResort: &solvedResort{TeamID: acted, ProblemID: pid}, NextIndex: i, ScrollIndex: i}
		return StepResult{}
	}
	if teamHasPendingFreeze(team) {
		return StepResult{}
	}
	return m.finishTeamOrAward(acted, i-1, i-1)
}

// finishTeamOrAward decides, once a team's frozen cells are exhausted,
// whether an award is due before advancing focus.
func (m *Machine) finishTeamOrAward(teamID string, nextIndex, scrollIndex int) StepResult {
	if citations, ok := m.AwardsByTeam[teamID]; ok {
		delete(m.AwardsByTeam, teamID)
		m.Phase = Phase{Kind: KindPendingAward, TeamID: teamID, Citations: citations, NextIndex: nextIndex, ScrollIndex: scrollIndex}
		return StepResult{}
	}
	m.Phase = Phase{Kind: KindApplyPostReveal, NextIndex: nextIndex, ScrollIndex: scrollIndex}
	return StepResult{}
}

// advance is the shared PostAwardScroll/ApplyPostReveal tail: commit
// the focus move, emit a clamped scroll cue, then decide Finished vs
// RevealStep.
func (m *Machine) advance(nextIndex, scrollIndex int) StepResult {
	idx := nextIndex
	m.CurrentRevealIndex = &idx
	clamped := clamp(scrollIndex, 0, len(m.Board)-1)

	if m.hasPending() {
		m.Phase = Phase{Kind: KindRevealStep}
	} else {
		m.CurrentRevealIndex = nil
		m.Phase = Phase{Kind: KindFinished}
	}

	c := clamped
	return StepResult{ScrollTo: &c}
}

func (m *Machine) applySolvedProblemScore(teamID, problemID string) {
	for _, team := range m.Board {
		if team.TeamID != teamID {
			continue
		}
		stat, ok := team.ProblemStats[problemID]
		if !ok {
			return
		}
		team.TotalPenalty += stat.PenaltyMinutes
		team.TotalPoints++
		if stat.FirstACTime != nil && (team.LastACTime == nil || stat.FirstACTime.After(*team.LastACTime)) {
			team.LastACTime = stat.FirstACTime
		}
		return
	}
}

func (m *Machine) findLastPendingIndex() *int {
	for i := len(m.Board) - 1; i >= 0; i-- {
		if teamHasPendingFreeze(m.Board[i]) {
			idx := i
			return &idx
		}
	}
	return nil
}

func (m *Machine) hasPending() bool {
	for _, team := range m.Board {
		if teamHasPendingFreeze(team) {
			return true
		}
	}
	return false
}

// nextPendingProblem picks a team's next frozen cell by problem
// (ordinal, label) order, falling back to map-iteration order if none
// of the known problems match.
func (m *Machine) nextPendingProblem(team *scoreboard.TeamStatus) (string, *scoreboard.ProblemStat, bool) {
	for _, p := range m.problems {
		if stat, ok := team.ProblemStats[p.ID]; ok && stat.AttemptedDuringFreeze {
			return p.ID, stat, true
		}
	}
	for pid, stat := range team.ProblemStats {
		if stat.AttemptedDuringFreeze {
			return pid, stat, true
		}
	}
	return "", nil, false
}

func teamHasPendingFreeze(team *scoreboard.TeamStatus) bool {
	for _, stat := range team.ProblemStats {
		if stat.AttemptedDuringFreeze {
			return true
		}
	}
	return false
}

func teamOrder(board []*scoreboard.TeamStatus) []string {
	out := make([]string, len(board))
	for i, t := range board {
		out[i] = t.TeamID
	}
	return out
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
