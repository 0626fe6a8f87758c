package feed

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"icpc-reveal-engine/internal/store"
)

// Outcome classifies what happened to one decoded, non-blank feed line.
type Outcome int

const (
	// OutcomeApplied means the line's entity was upserted (or the
	// contest replaced).
	OutcomeApplied Outcome = iota
	// OutcomeWarned means the line was accepted but produced a warning
	// (languages/runs discarded, state/clarifications/persons ignored,
	// or data-absent).
	OutcomeWarned
)

// Ingester applies decoded feed lines to a ContestState, one line at a
// time, dispatching each by event type and upserting or discarding as
// appropriate.
type Ingester struct {
	State *store.ContestState
}

// NewIngester returns an Ingester that will mutate state in place.
func NewIngester(state *store.ContestState) *Ingester {
	return &Ingester{State: state}
}

// Apply decodes and dispatches one NDJSON line. It returns a non-empty
// warning string for accepted-but-notable lines (blank, missing data,
// ignored types), and a non-nil error for lines that must be counted as
// a LineError (malformed JSON, unknown type, field decode failures, or
// an entity that depends on a contest not yet seen).
func (ig *Ingester) Apply(line []byte) (warning string, err error) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return "blank line skipped", nil
	}

	ev, err := DecodeLine(line)
	if err != nil {
		return "", err
	}

	if len(ev.Data) == 0 || string(ev.Data) == "null" {
		return fmt.Sprintf("event %q has no data, skipped", ev.Type), nil
	}

	switch ev.Type {
	case TypeContest:
		return "", ig.applyContest(ev.Data)
	case TypeJudgementTypes:
		return "", ig.applyJudgementType(ev.Data)
	case TypeGroups:
		return "", ig.applyGroup(ev.Data)
	case TypeOrganizations:
		return "", ig.applyOrganization(ev.Data)
	case TypeTeams:
		return "", ig.applyTeam(ev.Data)
	case TypeProblems:
		return "", ig.applyProblem(ev.Data)
	case TypeSubmissions:
		return "", ig.applySubmission(ev.Data)
	case TypeJudgements:
		return "", ig.applyJudgement(ev.Data)
	case TypeAwards:
		return "", ig.applyAward(ev.Data)
	case TypeLanguages, TypeRuns:
		return fmt.Sprintf("event %q decoded and discarded", ev.Type), nil
	case TypeState:
		// Dependent on contest timing having been established; the
		// CDS "state" payload (ended/frozen flags) is meaningless
		// without it.
		if ig.State.Contest == nil {
			return "", fmt.Errorf("contest not defined yet")
		}
		return "state event accepted and ignored", nil
	case TypeClarifications, TypePersons:
		return fmt.Sprintf("event %q accepted and ignored", ev.Type), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
	}
}

func (ig *Ingester) applyContest(data json.RawMessage) error {
	var w wireContest
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode contest: %w", err)
	}

	duration, err := parseDurationField(w.Duration)
	if err != nil {
		return fmt.Errorf("contest.duration: %w", err)
	}
	freezeDuration, err := parseDurationField(w.ScoreboardFreezeDuration)
	if err != nil {
		return fmt.Errorf("contest.scoreboard_freeze_duration: %w", err)
	}
	startTime, err := parseOptTime(w.StartTime)
	if err != nil {
		return fmt.Errorf("contest.start_time: %w", err)
	}

	penalty := store.DefaultPenaltyTime
	if w.PenaltyTime != nil {
		penalty = minutesToDuration(*w.PenaltyTime)
	}

	c := &store.Contest{
		ID:                       w.ID,
		StartTime:                startTime,
		Duration:                 duration,
		ScoreboardFreezeDuration: freezeDuration,
		PenaltyTime:              penalty,
	}
	if ig.State.Contest != nil {
		log.Printf("ingest: contest %q updated", w.ID)
	}
	ig.State.SetContest(c)
	return nil
}

func (ig *Ingester) applyJudgementType(data json.RawMessage) error {
	var w wireJudgementType
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode judgement-type: %w", err)
	}
	v := &store.JudgementType{ID: w.ID, Penalty: w.Penalty, Solved: w.Solved}
	if ig.State.UpsertJudgementType(v) {
		log.Printf("ingest: judgement-type %q updated", w.ID)
	}
	return nil
}

func (ig *Ingester) applyGroup(data json.RawMessage) error {
	var w wireGroup
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode group: %w", err)
	}
	v := &store.Group{ID: w.ID, Sortorder: w.Sortorder, Name: w.Name}
	if ig.State.UpsertGroup(v) {
		log.Printf("ingest: group %q updated", w.ID)
	}
	return nil
}

func (ig *Ingester) applyOrganization(data json.RawMessage) error {
	var w wireOrganization
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode organization: %w", err)
	}
	v := &store.Organization{ID: w.ID, Name: w.Name}
	if ig.State.UpsertOrganization(v) {
		log.Printf("ingest: organization %q updated", w.ID)
	}
	return nil
}

func (ig *Ingester) applyTeam(data json.RawMessage) error {
	var w wireTeam
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode team: %w", err)
	}
	groups := make(map[string]struct{}, len(w.GroupIDs))
	for _, g := range w.GroupIDs {
		groups[g] = struct{}{}
	}
	v := &store.Team{ID: w.ID, Name: w.Name, GroupIDs: groups, OrganizationID: w.OrganizationID}
	if ig.State.UpsertTeam(v) {
		log.Printf("ingest: team %q updated", w.ID)
	}
	return nil
}

func (ig *Ingester) applyProblem(data json.RawMessage) error {
	var w wireProblem
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode problem: %w", err)
	}
	v := &store.Problem{ID: w.ID, Ordinal: w.Ordinal, Label: w.Label}
	if ig.State.UpsertProblem(v) {
		log.Printf("ingest: problem %q updated", w.ID)
	}
	return nil
}

func (ig *Ingester) applySubmission(data json.RawMessage) error {
	var w wireSubmission
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode submission: %w", err)
	}
	t, err := parseOptTime(w.Time)
	if err != nil {
		return fmt.Errorf("submission.time: %w", err)
	}
	v := &store.Submission{ID: w.ID, TeamID: w.TeamID, ProblemID: w.ProblemID, Time: t}
	if ig.State.UpsertSubmission(v) {
		log.Printf("ingest: submission %q updated", w.ID)
	}
	return nil
}

func (ig *Ingester) applyJudgement(data json.RawMessage) error {
	var w wireJudgement
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode judgement: %w", err)
	}
	t, err := parseOptTime(w.StartTime)
	if err != nil {
		return fmt.Errorf("judgement.start_time: %w", err)
	}
	v := &store.Judgement{
		ID:              w.ID,
		SubmissionID:    w.SubmissionID,
		JudgementTypeID: w.JudgementTypeID,
		StartTime:       t,
	}
	if ig.State.UpsertJudgement(v) {
		log.Printf("ingest: judgement %q updated", w.ID)
	}
	return nil
}

func (ig *Ingester) applyAward(data json.RawMessage) error {
	var w wireAward
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode award: %w", err)
	}
	v := &store.Award{ID: w.ID, Citation: w.Citation, TeamIDs: w.TeamIDs}
	updated, ignored := ig.State.UpsertAward(v)
	if ignored {
		log.Printf("ingest: award %q ignored (empty citation)", w.ID)
		return nil
	}
	if updated {
		log.Printf("ingest: award %q updated", w.ID)
	}
	return nil
}
