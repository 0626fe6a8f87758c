// Package config decodes the CDP config.toml and applies its two
// transforms (submission filtering, team group remap) to a ContestState.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"icpc-reveal-engine/internal/store"
)

// Config is the closed key set accepted in config.toml. Unknown keys are
// ignored by BurntSushi/toml's default decode behavior.
type Config struct {
	FilterTeamSubmissions []string          `toml:"filter_team_submissions"`
	TeamGroupMap          map[string]string `toml:"team_group_map"`
}

// ErrInvalidRemap is returned when team_group_map references an unknown
// team or group.
var ErrInvalidRemap = fmt.Errorf("invalid remap")

// Load reads config.toml from path. A missing file yields the
// zero-value (default) Config rather than an error, since an absent
// config.toml simply means no transforms apply.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a TOML document from r into a Config.
func Decode(r io.Reader) (Config, error) {
	var c Config
	if _, err := toml.NewDecoder(r).Decode(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// Apply runs the two config-driven transforms against state: filtered
// teams' submissions (and their judgements) are removed first, then
// team group memberships are remapped. No team is removed.
func (c Config) Apply(state *store.ContestState) error {
	if err := c.filterTeamSubmissions(state); err != nil {
		return err
	}
	return c.remapTeamGroups(state)
}

func (c Config) filterTeamSubmissions(state *store.ContestState) error {
	if len(c.FilterTeamSubmissions) == 0 {
		return nil
	}
	filtered := make(map[string]struct{}, len(c.FilterTeamSubmissions))
	for _, id := range c.FilterTeamSubmissions {
		filtered[id] = struct{}{}
	}

	removedSubmissions := make(map[string]struct{})
	for id, sub := range state.Submissions {
		if _, drop := filtered[sub.TeamID]; drop {
			delete(state.Submissions, id)
			removedSubmissions[id] = struct{}{}
		}
	}
	for id, j := range state.Judgements {
		if _, drop := removedSubmissions[j.SubmissionID]; drop {
			delete(state.Judgements, id)
		}
	}
	return nil
}

func (c Config) remapTeamGroups(state *store.ContestState) error {
	for teamID, groupID := range c.TeamGroupMap {
		team, ok := state.Teams[teamID]
		if !ok {
			return fmt.Errorf("%w: unknown team %q", ErrInvalidRemap, teamID)
		}
		if _, ok := state.Groups[groupID]; !ok {
			return fmt.Errorf("%w: unknown group %q", ErrInvalidRemap, groupID)
		}
		team.GroupIDs = map[string]struct{}{groupID: {}}
	}
	return nil
}
