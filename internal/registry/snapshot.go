package registry

import "github.com/lawnchairsociety/levelforge/internal/world"

// FilteredActor is an actor hidden by a tag filter.
type FilteredActor struct {
	Actor world.ActorID
	Tag   string
}

// Snapshot is the serializable state of a Registry.
type Snapshot struct {
	Groups     []RootGroup
	Links      []Link
	ActorLinks []ActorLink
	Filtered   []FilteredActor
}

// Snapshot captures the registry's bookkeeping.
func (r *Registry) Snapshot() Snapshot {
	var snap Snapshot
	for _, g := range r.Groups() {
		snap.Groups = append(snap.Groups, *g)
	}
	snap.Links = r.Links()
	snap.ActorLinks = r.ActorLinks()
	for _, id := range r.Filtered() {
		snap.Filtered = append(snap.Filtered, FilteredActor{Actor: id, Tag: r.filtered[id]})
	}
	return snap
}

// Restore replaces the registry's bookkeeping with snap. Links that name
// an untracked group are skipped.
func (r *Registry) Restore(snap Snapshot) error {
	r.Forget()
	for i := range snap.Groups {
		if err := r.Track(&snap.Groups[i]); err != nil {
			return err
		}
	}
	for _, l := range snap.Links {
		_, okOrig := r.groups[l.Original]
		_, okRep := r.groups[l.Replacement]
		if okOrig && okRep {
			r.links[l.Original] = l.Replacement
		}
	}
	for _, l := range snap.ActorLinks {
		r.actorLinks[l.Original] = l.Replacement
	}
	for _, f := range snap.Filtered {
		r.filtered[f.Actor] = f.Tag
	}
	return nil
}
