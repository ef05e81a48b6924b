package forge

import (
	"fmt"
	"strings"

	"github.com/lawnchairsociety/levelforge/internal/world"
)

// GroupState is where a group is in a regeneration pass.
type GroupState int

const (
	Stable GroupState = iota
	MarkedForReplacement
	Replacing
	Orphaned
)

func (s GroupState) String() string {
	switch s {
	case MarkedForReplacement:
		return "marked"
	case Replacing:
		return "replacing"
	case Orphaned:
		return "orphaned"
	default:
		return "stable"
	}
}

// MarshalText encodes the state by name.
func (s GroupState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Replacement records one room swapped for another.
type Replacement struct {
	Original    world.LevelID `json:"original"`
	Replacement world.LevelID `json:"replacement"`
	From        string        `json:"from"`
	To          string        `json:"to"`
}

// Result describes what one operation did.
type Result struct {
	Operation     string                       `json:"operation"`
	Seed          int64                        `json:"seed"`
	FixedSeed     bool                         `json:"fixed_seed"`
	States        map[world.LevelID]GroupState `json:"states,omitempty"`
	Created       []world.LevelID              `json:"created,omitempty"`
	Replaced      []Replacement                `json:"replaced,omitempty"`
	Orphaned      []world.LevelID              `json:"orphaned,omitempty"`
	Skipped       []string                     `json:"skipped,omitempty"`
	ActorsHidden  int                          `json:"actors_hidden,omitempty"`
	ActorsShown   int                          `json:"actors_shown,omitempty"`
	ActorsSpawned int                          `json:"actors_spawned,omitempty"`
	LevelsRemoved int                          `json:"levels_removed,omitempty"`
}

func newResult(op string) *Result {
	return &Result{Operation: op, States: make(map[world.LevelID]GroupState)}
}

// Summary is a one-line description for the user.
func (r *Result) Summary() string {
	var parts []string
	if len(r.Created) > 0 {
		parts = append(parts, fmt.Sprintf("%d rooms built", len(r.Created)))
	}
	if len(r.Replaced) > 0 {
		parts = append(parts, fmt.Sprintf("%d rooms replaced", len(r.Replaced)))
	}
	if len(r.Orphaned) > 0 {
		parts = append(parts, fmt.Sprintf("%d orphans dropped", len(r.Orphaned)))
	}
	if r.ActorsSpawned > 0 {
		parts = append(parts, fmt.Sprintf("%d actors spawned", r.ActorsSpawned))
	}
	if r.ActorsHidden > 0 {
		parts = append(parts, fmt.Sprintf("%d actors hidden", r.ActorsHidden))
	}
	if r.LevelsRemoved > 0 {
		parts = append(parts, fmt.Sprintf("%d levels removed", r.LevelsRemoved))
	}
	if len(r.Skipped) > 0 {
		parts = append(parts, fmt.Sprintf("%d rows skipped", len(r.Skipped)))
	}
	if len(parts) == 0 {
		parts = append(parts, "nothing changed")
	}
	return fmt.Sprintf("%s (seed %d): %s", r.Operation, r.Seed, strings.Join(parts, ", "))
}
