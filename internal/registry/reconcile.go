package registry

import (
	"errors"
	"sort"

	"github.com/lawnchairsociety/levelforge/internal/logger"
	"github.com/lawnchairsociety/levelforge/internal/world"
)

// ReconcileReport describes what Reconcile changed.
type ReconcileReport struct {
	Dropped           []world.LevelID // groups whose root no longer exists
	Retired           []world.LevelID // replacements unloaded because their original vanished
	Restored          []world.LevelID // originals made visible again after losing their replacement
	ActorLinksDropped int
	FilteredDropped   int
}

// Changed reports whether Reconcile touched anything.
func (rr ReconcileReport) Changed() bool {
	return len(rr.Dropped) > 0 || len(rr.Retired) > 0 || len(rr.Restored) > 0 ||
		rr.ActorLinksDropped > 0 || rr.FilteredDropped > 0
}

// Reconcile drops every group whose root the engine no longer knows. Live
// sub-levels of a dropped group are unloaded, the replacement of a dropped
// original is retired, and an original whose replacement vanished is made
// visible again.
func (r *Registry) Reconcile() ReconcileReport {
	var rr ReconcileReport

	for _, g := range r.Groups() {
		if _, ok := r.groups[g.Root]; !ok {
			continue // retired earlier in this pass
		}
		if r.IsLive(g.Root) {
			continue
		}
		retired, restored, err := r.DropOrphan(g.Root)
		if err != nil {
			logger.Warning("Failed to drop orphaned group", "root", g.Root, "error", err)
		}
		rr.Dropped = append(rr.Dropped, g.Root)
		if retired != 0 {
			rr.Retired = append(rr.Retired, retired)
		}
		if restored != 0 {
			rr.Restored = append(rr.Restored, restored)
		}
	}

	rr.ActorLinksDropped = r.pruneActorLinks()
	rr.FilteredDropped = r.pruneFiltered()

	if rr.Changed() {
		logger.Info("Reconciled registry",
			"dropped", len(rr.Dropped),
			"retired", len(rr.Retired),
			"restored", len(rr.Restored),
			"actor_links", rr.ActorLinksDropped)
	}
	return rr
}

// DropOrphan stops tracking a group whose root is gone. It returns the
// replacement it retired and the original it restored, zero when none.
func (r *Registry) DropOrphan(root world.LevelID) (retired, restored world.LevelID, err error) {
	g, ok := r.groups[root]
	if !ok {
		return 0, 0, ErrNotFound
	}

	if orig, ok := r.OriginalOf(root); ok {
		delete(r.links, orig)
		if og, ok := r.groups[orig]; ok && r.IsLive(orig) {
			r.setGroupVisible(og, true)
			restored = orig
		}
	}

	if rep, ok := r.links[root]; ok {
		if rerr := r.Retire(rep); rerr != nil && !errors.Is(rerr, ErrNotFound) {
			err = rerr
		}
		retired = rep
	}

	for _, m := range g.Subs {
		if !r.IsLive(m.Level) {
			continue
		}
		if rerr := r.engine.RemoveLevel(m.Level); rerr != nil && err == nil {
			err = rerr
		}
	}
	if _, uerr := r.Untrack(root); uerr != nil && err == nil {
		err = uerr
	}
	return retired, restored, err
}

// SetGroupVisible shows or hides every live level of a tracked group.
func (r *Registry) SetGroupVisible(root world.LevelID, visible bool) error {
	g, ok := r.groups[root]
	if !ok {
		return ErrNotFound
	}
	return r.setGroupVisible(g, visible)
}

func (r *Registry) setGroupVisible(g *RootGroup, visible bool) error {
	var firstErr error
	for _, id := range g.Levels() {
		if !r.IsLive(id) {
			continue
		}
		if err := r.engine.SetVisible(id, visible); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Registry) pruneActorLinks() int {
	dropped := 0
	for orig, rep := range r.actorLinks {
		_, origLive := r.engine.Actor(orig)
		_, repLive := r.engine.Actor(rep)
		switch {
		case !origLive:
			if repLive {
				if err := r.engine.DestroyActor(rep); err != nil {
					logger.Warning("Failed to destroy orphaned actor replacement", "actor", rep, "error", err)
				}
			}
		case !repLive:
			if err := r.engine.SetActorHidden(orig, false); err != nil {
				logger.Warning("Failed to restore actor", "actor", orig, "error", err)
			}
		default:
			continue
		}
		delete(r.actorLinks, orig)
		dropped++
	}
	return dropped
}

func (r *Registry) pruneFiltered() int {
	dropped := 0
	for id := range r.filtered {
		if _, ok := r.engine.Actor(id); !ok {
			delete(r.filtered, id)
			dropped++
		}
	}
	return dropped
}

// ActorLink is one original -> replacement actor pair.
type ActorLink struct {
	Original    world.ActorID
	Replacement world.ActorID
}

// LinkActor records that replacement stands in for original. A previous
// replacement of original is destroyed first.
func (r *Registry) LinkActor(original, replacement world.ActorID) error {
	if original == replacement {
		return errors.New("actor cannot replace itself")
	}
	if old, ok := r.actorLinks[original]; ok && old != replacement {
		if _, live := r.engine.Actor(old); live {
			if err := r.engine.DestroyActor(old); err != nil {
				return err
			}
		}
	}
	r.actorLinks[original] = replacement
	return nil
}

// ActorReplacement returns the actor currently replacing original.
func (r *Registry) ActorReplacement(original world.ActorID) (world.ActorID, bool) {
	rep, ok := r.actorLinks[original]
	return rep, ok
}

// IsActorReplacement reports whether id was spawned as a replacement.
func (r *Registry) IsActorReplacement(id world.ActorID) bool {
	for _, rep := range r.actorLinks {
		if rep == id {
			return true
		}
	}
	return false
}

// ActorLinks returns every actor link ordered by original.
func (r *Registry) ActorLinks() []ActorLink {
	out := make([]ActorLink, 0, len(r.actorLinks))
	for orig, rep := range r.actorLinks {
		out = append(out, ActorLink{Original: orig, Replacement: rep})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Original < out[j].Original })
	return out
}

// MarkFiltered records that id was hidden by the filter for tag.
func (r *Registry) MarkFiltered(id world.ActorID, tag string) {
	r.filtered[id] = tag
}

// Filtered returns the actors hidden by any tag filter, in ID order.
func (r *Registry) Filtered() []world.ActorID {
	out := make([]world.ActorID, 0, len(r.filtered))
	for id := range r.filtered {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ClearFiltered forgets every filtered actor and returns them in ID order.
func (r *Registry) ClearFiltered() []world.ActorID {
	out := r.Filtered()
	r.filtered = make(map[world.ActorID]string)
	return out
}

// ClearFilteredTag forgets the actors hidden by the filter for tag and
// returns them in ID order.
func (r *Registry) ClearFilteredTag(tag string) []world.ActorID {
	var out []world.ActorID
	for id, t := range r.filtered {
		if t == tag {
			out = append(out, id)
			delete(r.filtered, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
