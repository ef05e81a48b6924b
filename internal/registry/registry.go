// Package registry tracks which streamed level instances levelforge created,
// which sub-levels belong to which room, and which instance currently
// replaces which.
//
// The registry holds IDs, never ownership. The engine is the authority on
// whether an instance still exists; Reconcile brings the bookkeeping back in
// line after the user removes something behind our back.
//
// A Registry is not safe for concurrent use. Callers that share one across
// goroutines must serialize access.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lawnchairsociety/levelforge/internal/geom"
	"github.com/lawnchairsociety/levelforge/internal/logger"
	"github.com/lawnchairsociety/levelforge/internal/world"
)

var (
	// ErrDuplicateKey is returned when a root instance is tracked twice.
	ErrDuplicateKey = errors.New("root instance already tracked")

	// ErrNotFound is returned for a root instance that is not tracked.
	ErrNotFound = errors.New("root instance not tracked")

	// ErrInvalidLink is returned when a link would chain replacements or
	// close a cycle. Links only ever go from an original to one replacement.
	ErrInvalidLink = errors.New("invalid replacement link")
)

// Member is one sub-level of a group with its authoring transform.
type Member struct {
	Level    world.LevelID
	Asset    string
	Relative geom.Transform
}

// RootGroup is one materialized room: its root instance and the sub-level
// instances streamed for it.
type RootGroup struct {
	Root      world.LevelID
	Source    string // canonical path of the room asset
	Subs      []Member
	Placement geom.Transform
	Folder    string
	Color     geom.Color
}

// Levels returns the root followed by every sub-level.
func (g *RootGroup) Levels() []world.LevelID {
	ids := make([]world.LevelID, 0, len(g.Subs)+1)
	ids = append(ids, g.Root)
	for _, m := range g.Subs {
		ids = append(ids, m.Level)
	}
	return ids
}

// Size is the number of instances in the group, root included.
func (g *RootGroup) Size() int {
	return len(g.Subs) + 1
}

// SubTransform returns the world transform a member must have for the
// group's current placement.
func (g *RootGroup) SubTransform(m Member) geom.Transform {
	return m.Relative.Compose(g.Placement)
}

func (g *RootGroup) clone() *RootGroup {
	c := *g
	c.Subs = append([]Member(nil), g.Subs...)
	return &c
}

// Registry is the bookkeeping for one session.
type Registry struct {
	engine     world.Engine
	groups     map[world.LevelID]*RootGroup
	order      []world.LevelID
	links      map[world.LevelID]world.LevelID // original root -> replacement root
	actorLinks map[world.ActorID]world.ActorID // original actor -> replacement actor
	filtered   map[world.ActorID]string        // actor hidden by a tag filter -> tag
}

// New creates an empty registry over engine.
func New(engine world.Engine) *Registry {
	return &Registry{
		engine:     engine,
		groups:     make(map[world.LevelID]*RootGroup),
		links:      make(map[world.LevelID]world.LevelID),
		actorLinks: make(map[world.ActorID]world.ActorID),
		filtered:   make(map[world.ActorID]string),
	}
}

// Engine returns the engine the registry validates against.
func (r *Registry) Engine() world.Engine {
	return r.engine
}

// Track starts tracking g.
func (r *Registry) Track(g *RootGroup) error {
	if g == nil {
		return fmt.Errorf("%w: nil group", ErrNotFound)
	}
	if _, exists := r.groups[g.Root]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateKey, g.Root)
	}
	r.groups[g.Root] = g.clone()
	r.order = append(r.order, g.Root)
	return nil
}

// Untrack stops tracking the group rooted at root and returns it. Links
// that mention the group are dropped; no level is unloaded.
func (r *Registry) Untrack(root world.LevelID) (*RootGroup, error) {
	g, ok := r.groups[root]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, root)
	}
	delete(r.groups, root)
	for i, id := range r.order {
		if id == root {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	delete(r.links, root)
	for orig, rep := range r.links {
		if rep == root {
			delete(r.links, orig)
		}
	}
	return g, nil
}

// Group returns a copy of the group rooted at root.
func (r *Registry) Group(root world.LevelID) (*RootGroup, bool) {
	g, ok := r.groups[root]
	if !ok {
		return nil, false
	}
	return g.clone(), true
}

// Groups returns copies of every tracked group in tracking order. The slice
// is a snapshot; changing the registry while walking it is safe.
func (r *Registry) Groups() []*RootGroup {
	out := make([]*RootGroup, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.groups[id].clone())
	}
	return out
}

// Originals returns the tracked groups that are not replacing another group.
func (r *Registry) Originals() []*RootGroup {
	replacing := make(map[world.LevelID]bool, len(r.links))
	for _, rep := range r.links {
		replacing[rep] = true
	}
	var out []*RootGroup
	for _, id := range r.order {
		if !replacing[id] {
			out = append(out, r.groups[id].clone())
		}
	}
	return out
}

// Len returns the number of tracked groups.
func (r *Registry) Len() int {
	return len(r.groups)
}

// InstanceCount returns the number of tracked level instances, roots and
// sub-levels together.
func (r *Registry) InstanceCount() int {
	n := 0
	for _, g := range r.groups {
		n += g.Size()
	}
	return n
}

// RootOf returns the root of the group a level belongs to.
func (r *Registry) RootOf(level world.LevelID) (world.LevelID, bool) {
	if _, ok := r.groups[level]; ok {
		return level, true
	}
	for _, id := range r.order {
		for _, m := range r.groups[id].Subs {
			if m.Level == level {
				return id, true
			}
		}
	}
	return 0, false
}

// SetPlacement records a new placement for a tracked group.
func (r *Registry) SetPlacement(root world.LevelID, placement geom.Transform) error {
	g, ok := r.groups[root]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, root)
	}
	g.Placement = placement
	return nil
}

// IsLive asks the engine whether the instance still exists. The answer is
// never cached.
func (r *Registry) IsLive(id world.LevelID) bool {
	return r.engine.State(id) != world.StateRemoved
}

// Retire unloads every live level of the group, its replacement first if it
// has one, and stops tracking both.
func (r *Registry) Retire(root world.LevelID) error {
	g, ok := r.groups[root]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, root)
	}
	if rep, ok := r.links[root]; ok {
		if err := r.Retire(rep); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	var firstErr error
	for _, id := range g.Levels() {
		if !r.IsLive(id) {
			continue
		}
		if err := r.engine.RemoveLevel(id); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to unload level %d: %w", id, err)
		}
	}
	if _, err := r.Untrack(root); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Clear retires every tracked group and forgets all links.
func (r *Registry) Clear() error {
	var firstErr error
	for _, g := range r.Groups() {
		if _, ok := r.groups[g.Root]; !ok {
			continue
		}
		if err := r.Retire(g.Root); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.links = make(map[world.LevelID]world.LevelID)
	r.actorLinks = make(map[world.ActorID]world.ActorID)
	r.filtered = make(map[world.ActorID]string)
	return firstErr
}

// Forget drops all bookkeeping without touching the engine.
func (r *Registry) Forget() {
	r.groups = make(map[world.LevelID]*RootGroup)
	r.order = nil
	r.links = make(map[world.LevelID]world.LevelID)
	r.actorLinks = make(map[world.ActorID]world.ActorID)
	r.filtered = make(map[world.ActorID]string)
}

// Replacement returns the group currently replacing original.
func (r *Registry) Replacement(original world.LevelID) (world.LevelID, bool) {
	rep, ok := r.links[original]
	return rep, ok
}

// OriginalOf returns the original a replacement group stands in for.
func (r *Registry) OriginalOf(replacement world.LevelID) (world.LevelID, bool) {
	for orig, rep := range r.links {
		if rep == replacement {
			return orig, true
		}
	}
	return 0, false
}

// LinkReplacement records that replacement now replaces original. An
// existing replacement of original is retired first: its levels are
// unloaded, then the old link is dropped.
func (r *Registry) LinkReplacement(original, replacement world.LevelID) error {
	if original == replacement {
		return fmt.Errorf("group %d cannot replace itself", original)
	}
	if _, ok := r.groups[original]; !ok {
		return fmt.Errorf("%w: original %d", ErrNotFound, original)
	}
	if _, ok := r.groups[replacement]; !ok {
		return fmt.Errorf("%w: replacement %d", ErrNotFound, replacement)
	}
	if orig, ok := r.OriginalOf(original); ok {
		return fmt.Errorf("%w: %d already replaces %d", ErrInvalidLink, original, orig)
	}
	if _, ok := r.links[replacement]; ok {
		return fmt.Errorf("%w: %d has a replacement of its own", ErrInvalidLink, replacement)
	}
	if orig, ok := r.OriginalOf(replacement); ok && orig != original {
		return fmt.Errorf("%w: %d already replaces %d", ErrInvalidLink, replacement, orig)
	}

	if old, ok := r.links[original]; ok && old != replacement {
		if err := r.Retire(old); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to retire previous replacement %d: %w", old, err)
		}
		delete(r.links, original)
		logger.Debug("Retired previous replacement", "original", original, "replacement", old)
	}

	r.links[original] = replacement
	return nil
}

// Link is one original -> replacement pair.
type Link struct {
	Original    world.LevelID
	Replacement world.LevelID
}

// Links returns every replacement link ordered by original.
func (r *Registry) Links() []Link {
	out := make([]Link, 0, len(r.links))
	for orig, rep := range r.links {
		out = append(out, Link{Original: orig, Replacement: rep})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Original < out[j].Original })
	return out
}
