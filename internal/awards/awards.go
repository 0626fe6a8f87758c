// Package awards persists the awards map as pretty-printed JSON keyed
// by award id.
package awards

import (
	"encoding/json"
	"fmt"
	"io"

	"icpc-reveal-engine/internal/store"
)

// Save writes awards as a pretty-printed JSON object keyed by id.
func Save(w io.Writer, awards map[string]store.Award) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(awards); err != nil {
		return fmt.Errorf("awards: encode: %w", err)
	}
	return nil
}

// Load reads an awards mapping. It is tolerant of extra or mismatched
// outer keys: the result is re-keyed by each award's own Id field, so a
// file edited by hand with renamed outer keys still round-trips.
func Load(r io.Reader) (map[string]store.Award, error) {
	var raw map[string]store.Award
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("awards: decode: %w", err)
	}
	out := make(map[string]store.Award, len(raw))
	for _, a := range raw {
		out[a.ID] = a
	}
	return out, nil
}
