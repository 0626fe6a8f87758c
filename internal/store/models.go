// Package store holds the Contest State Store: the in-memory, by-id
// mappings for every entity ingested from the event feed. The store is
// single-producer/single-consumer: ingest builds it, the scoreboard and
// reveal stages read it, and it never deletes an upserted entity itself
// (only the config transform stage removes submissions/judgements).
package store

import (
	"strings"
	"time"
)

// Contest is the single per-run contest record.
type Contest struct {
	ID                       string
	StartTime                *time.Time
	Duration                 time.Duration
	ScoreboardFreezeDuration time.Duration
	PenaltyTime              time.Duration

	// FreezeTime is derived: StartTime + (Duration - ScoreboardFreezeDuration).
	// Present iff StartTime is known.
	FreezeTime *time.Time
}

// DefaultPenaltyTime is used when a contest event omits penalty_time.
const DefaultPenaltyTime = 20 * time.Minute

// recomputeFreezeTime fills in FreezeTime from StartTime/Duration/ScoreboardFreezeDuration.
func (c *Contest) recomputeFreezeTime() {
	if c.StartTime == nil {
		c.FreezeTime = nil
		return
	}
	ft := c.StartTime.Add(c.Duration - c.ScoreboardFreezeDuration)
	c.FreezeTime = &ft
}

// JudgementType classifies a judgement verdict.
type JudgementType struct {
	ID      string
	Penalty bool
	Solved  bool
}

// Group is a ranking division; lower Sortorder ranks above higher.
type Group struct {
	ID        string
	Sortorder int
	Name      string
}

// Organization is referenced by teams.
type Organization struct {
	ID   string
	Name string
}

// Team competes in the contest.
type Team struct {
	ID             string
	Name           string
	GroupIDs       map[string]struct{}
	OrganizationID string // empty means absent
}

// Problem is ordered by (Ordinal, Label).
type Problem struct {
	ID      string
	Ordinal int
	Label   string
}

// Submission is a single attempt at a problem.
type Submission struct {
	ID        string
	TeamID    string
	ProblemID string
	Time      *time.Time
}

// Judgement is the verdict (if any) for a submission.
type Judgement struct {
	ID             string
	SubmissionID   string
	JudgementTypeID string // empty means absent/pending
	StartTime      *time.Time
}

// Award binds a citation to a list of teams. Insertion order of
// Award.ID values is preserved via ContestState.AwardOrder.
type Award struct {
	ID       string   `json:"id"`
	Citation string   `json:"citation"`
	TeamIDs  []string `json:"team_ids"`
}

// ContestState is the exclusive owner of every ingested entity.
type ContestState struct {
	Contest *Contest

	JudgementTypes map[string]*JudgementType
	Groups         map[string]*Group
	Organizations  map[string]*Organization
	Teams          map[string]*Team
	Problems       map[string]*Problem
	Submissions    map[string]*Submission
	Judgements     map[string]*Judgement
	Awards         map[string]*Award

	// AwardOrder preserves first-seen order of award ids, since map
	// iteration order is not guaranteed and some callers need a stable
	// listing (e.g. reveal.New builds each team's citation list in this
	// order).
	AwardOrder []string
}

// NewContestState returns an empty store ready for ingest.
func NewContestState() *ContestState {
	return &ContestState{
		JudgementTypes: make(map[string]*JudgementType),
		Groups:         make(map[string]*Group),
		Organizations:  make(map[string]*Organization),
		Teams:          make(map[string]*Team),
		Problems:       make(map[string]*Problem),
		Submissions:    make(map[string]*Submission),
		Judgements:     make(map[string]*Judgement),
		Awards:         make(map[string]*Award),
	}
}

// SetContest replaces the store's contest record wholesale, recomputing
// FreezeTime. The last contest event wins (spec invariant: "For contest,
// the last one wins").
func (s *ContestState) SetContest(c *Contest) {
	c.recomputeFreezeTime()
	s.Contest = c
}

// UpsertJudgementType inserts or replaces a judgement type by id,
// reporting whether this was an update to an existing entry.
func (s *ContestState) UpsertJudgementType(v *JudgementType) (updated bool) {
	_, updated = s.JudgementTypes[v.ID]
	s.JudgementTypes[v.ID] = v
	return updated
}

// UpsertGroup inserts or replaces a group by id.
func (s *ContestState) UpsertGroup(v *Group) (updated bool) {
	_, updated = s.Groups[v.ID]
	s.Groups[v.ID] = v
	return updated
}

// UpsertOrganization inserts or replaces an organization by id.
func (s *ContestState) UpsertOrganization(v *Organization) (updated bool) {
	_, updated = s.Organizations[v.ID]
	s.Organizations[v.ID] = v
	return updated
}

// UpsertTeam inserts or replaces a team by id.
func (s *ContestState) UpsertTeam(v *Team) (updated bool) {
	_, updated = s.Teams[v.ID]
	s.Teams[v.ID] = v
	return updated
}

// UpsertProblem inserts or replaces a problem by id.
func (s *ContestState) UpsertProblem(v *Problem) (updated bool) {
	_, updated = s.Problems[v.ID]
	s.Problems[v.ID] = v
	return updated
}

// UpsertSubmission inserts or replaces a submission by id.
func (s *ContestState) UpsertSubmission(v *Submission) (updated bool) {
	_, updated = s.Submissions[v.ID]
	s.Submissions[v.ID] = v
	return updated
}

// UpsertJudgement inserts or replaces a judgement by id.
func (s *ContestState) UpsertJudgement(v *Judgement) (updated bool) {
	_, updated = s.Judgements[v.ID]
	s.Judgements[v.ID] = v
	return updated
}

// UpsertAward inserts or replaces an award by id, ignoring it entirely
// when its citation trims to empty (spec invariant).
func (s *ContestState) UpsertAward(v *Award) (updated bool, ignored bool) {
	if strings.TrimSpace(v.Citation) == "" {
		return false, true
	}
	_, updated = s.Awards[v.ID]
	if !updated {
		s.AwardOrder = append(s.AwardOrder, v.ID)
	}
	s.Awards[v.ID] = v
	return updated, false
}
