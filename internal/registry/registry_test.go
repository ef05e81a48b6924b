package registry

import (
	"errors"
	"testing"

	"github.com/lawnchairsociety/levelforge/internal/geom"
	"github.com/lawnchairsociety/levelforge/internal/world"
)

type content map[string][]world.ActorSpec

func (c content) LevelContent(asset string) ([]world.ActorSpec, error) {
	return c[asset], nil
}

func newEngine() *world.Memory {
	return world.NewMemory(content{
		"/Game/Rooms/A":     {{Name: "Crate", Class: "Crate"}},
		"/Game/Rooms/A_Sub": nil,
		"/Game/Rooms/B":     nil,
	})
}

// spawnGroup instantiates a root with subs sub-levels and tracks it.
func spawnGroup(t *testing.T, e *world.Memory, r *Registry, asset string, subs int) *RootGroup {
	t.Helper()
	root, err := e.InstantiateLevel(asset, "root", geom.Identity)
	if err != nil {
		t.Fatalf("InstantiateLevel failed: %v", err)
	}
	g := &RootGroup{Root: root, Source: asset}
	for i := 0; i < subs; i++ {
		id, err := e.InstantiateLevel("/Game/Rooms/A_Sub", "sub", geom.Identity)
		if err != nil {
			t.Fatalf("InstantiateLevel failed: %v", err)
		}
		g.Subs = append(g.Subs, Member{Level: id, Asset: "/Game/Rooms/A_Sub"})
	}
	if err := r.Track(g); err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	return g
}

func TestTrackUntrack(t *testing.T) {
	e := newEngine()
	r := New(e)
	g := spawnGroup(t, e, r, "/Game/Rooms/A", 2)

	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
	if r.InstanceCount() != 3 {
		t.Errorf("InstanceCount = %d, want 3", r.InstanceCount())
	}
	if err := r.Track(g); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("second Track error = %v, want ErrDuplicateKey", err)
	}
	if root, ok := r.RootOf(g.Subs[1].Level); !ok || root != g.Root {
		t.Errorf("RootOf(sub) = %d, %v, want %d", root, ok, g.Root)
	}

	got, err := r.Untrack(g.Root)
	if err != nil {
		t.Fatalf("Untrack failed: %v", err)
	}
	if got.Root != g.Root || len(got.Subs) != 2 {
		t.Errorf("Untrack returned %+v", got)
	}
	if _, err := r.Untrack(g.Root); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Untrack error = %v, want ErrNotFound", err)
	}
	// Untracking leaves the levels loaded.
	if e.State(g.Root) != world.StateLoaded {
		t.Error("Untrack must not unload levels")
	}
}

func TestGroupsIsSnapshot(t *testing.T) {
	e := newEngine()
	r := New(e)
	a := spawnGroup(t, e, r, "/Game/Rooms/A", 0)
	b := spawnGroup(t, e, r, "/Game/Rooms/B", 0)

	groups := r.Groups()
	if len(groups) != 2 || groups[0].Root != a.Root || groups[1].Root != b.Root {
		t.Fatalf("Groups = %+v, want tracking order", groups)
	}
	for _, g := range groups {
		if err := r.Retire(g.Root); err != nil {
			t.Fatalf("Retire during iteration failed: %v", err)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after retiring all, want 0", r.Len())
	}

	groups[0].Source = "changed"
	if _, ok := r.Group(a.Root); ok {
		t.Error("retired group still reachable")
	}
}

func TestLinkReplacementRetiresPrevious(t *testing.T) {
	e := newEngine()
	r := New(e)
	orig := spawnGroup(t, e, r, "/Game/Rooms/A", 1)
	first := spawnGroup(t, e, r, "/Game/Rooms/B", 1)
	second := spawnGroup(t, e, r, "/Game/Rooms/B", 0)

	if err := r.LinkReplacement(orig.Root, first.Root); err != nil {
		t.Fatalf("LinkReplacement failed: %v", err)
	}
	if err := r.LinkReplacement(orig.Root, second.Root); err != nil {
		t.Fatalf("second LinkReplacement failed: %v", err)
	}

	if rep, ok := r.Replacement(orig.Root); !ok || rep != second.Root {
		t.Errorf("Replacement = %d, %v, want %d", rep, ok, second.Root)
	}
	for _, id := range first.Levels() {
		if e.State(id) != world.StateRemoved {
			t.Errorf("level %d of old replacement state = %v, want removed", id, e.State(id))
		}
	}
	if _, ok := r.Group(first.Root); ok {
		t.Error("old replacement still tracked")
	}
	if got := len(r.Originals()); got != 1 {
		t.Errorf("Originals = %d, want 1", got)
	}
	if orig2, ok := r.OriginalOf(second.Root); !ok || orig2 != orig.Root {
		t.Errorf("OriginalOf = %d, %v, want %d", orig2, ok, orig.Root)
	}

	if err := r.LinkReplacement(orig.Root, orig.Root); err == nil {
		t.Error("self link should fail")
	}
	if err := r.LinkReplacement(orig.Root, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("link to untracked error = %v, want ErrNotFound", err)
	}
}

func TestLinkReplacementRejectsChains(t *testing.T) {
	e := newEngine()
	r := New(e)
	a := spawnGroup(t, e, r, "/Game/Rooms/A", 0)
	b := spawnGroup(t, e, r, "/Game/Rooms/B", 0)
	c := spawnGroup(t, e, r, "/Game/Rooms/C", 0)
	d := spawnGroup(t, e, r, "/Game/Rooms/D", 0)

	if err := r.LinkReplacement(a.Root, b.Root); err != nil {
		t.Fatalf("LinkReplacement failed: %v", err)
	}

	tests := []struct {
		name        string
		original    world.LevelID
		replacement world.LevelID
	}{
		{name: "reverse link", original: b.Root, replacement: a.Root},
		{name: "replacement replaced again", original: b.Root, replacement: c.Root},
		{name: "original as replacement", original: c.Root, replacement: a.Root},
		{name: "shared replacement", original: d.Root, replacement: b.Root},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.LinkReplacement(tt.original, tt.replacement); !errors.Is(err, ErrInvalidLink) {
				t.Errorf("LinkReplacement(%d, %d) error = %v, want ErrInvalidLink", tt.original, tt.replacement, err)
			}
		})
	}

	if links := r.Links(); len(links) != 1 {
		t.Errorf("Links = %+v, want only a -> b", links)
	}
	if err := r.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("registry tracks %d groups after Clear", r.Len())
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name         string
		removeOrig   bool
		wantTracked  int
		wantRetired  int
		wantRestored int
	}{
		{name: "original removed", removeOrig: true, wantTracked: 0, wantRetired: 1},
		{name: "replacement removed", removeOrig: false, wantTracked: 1, wantRestored: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine()
			r := New(e)
			orig := spawnGroup(t, e, r, "/Game/Rooms/A", 1)
			rep := spawnGroup(t, e, r, "/Game/Rooms/B", 1)
			if err := r.LinkReplacement(orig.Root, rep.Root); err != nil {
				t.Fatalf("LinkReplacement failed: %v", err)
			}
			if err := r.SetGroupVisible(orig.Root, false); err != nil {
				t.Fatalf("SetGroupVisible failed: %v", err)
			}

			victim := rep.Root
			if tt.removeOrig {
				victim = orig.Root
			}
			if err := e.RemoveLevel(victim); err != nil {
				t.Fatalf("RemoveLevel failed: %v", err)
			}

			rr := r.Reconcile()
			if len(rr.Dropped) != 1 || rr.Dropped[0] != victim {
				t.Errorf("Dropped = %v, want [%d]", rr.Dropped, victim)
			}
			if r.Len() != tt.wantTracked {
				t.Errorf("Len = %d, want %d", r.Len(), tt.wantTracked)
			}
			if len(rr.Retired) != tt.wantRetired {
				t.Errorf("Retired = %v, want %d entries", rr.Retired, tt.wantRetired)
			}
			if len(rr.Restored) != tt.wantRestored {
				t.Errorf("Restored = %v, want %d entries", rr.Restored, tt.wantRestored)
			}
			if len(r.Links()) != 0 {
				t.Errorf("Links = %v, want none", r.Links())
			}
			// Sub-levels of every dropped group are unloaded.
			for _, g := range []*RootGroup{orig, rep} {
				if _, tracked := r.Group(g.Root); tracked {
					continue
				}
				for _, m := range g.Subs {
					if e.State(m.Level) != world.StateRemoved {
						t.Errorf("sub %d state = %v, want removed", m.Level, e.State(m.Level))
					}
				}
			}
			if !tt.removeOrig {
				lvl, _ := e.Level(orig.Root)
				if !lvl.Visible {
					t.Error("original should be visible again")
				}
			}

			if again := r.Reconcile(); again.Changed() {
				t.Errorf("second Reconcile changed state: %+v", again)
			}
		})
	}
}

func TestActorLinks(t *testing.T) {
	e := newEngine()
	r := New(e)

	orig, _ := e.SpawnActor(world.PersistentLevel, world.ActorSpec{Name: "Crate", Class: "Crate"})
	first, _ := e.SpawnActor(world.PersistentLevel, world.ActorSpec{Name: "Barrel", Class: "Barrel"})
	second, _ := e.SpawnActor(world.PersistentLevel, world.ActorSpec{Name: "Chest", Class: "Chest"})

	if err := r.LinkActor(orig, first); err != nil {
		t.Fatalf("LinkActor failed: %v", err)
	}
	if err := r.LinkActor(orig, second); err != nil {
		t.Fatalf("second LinkActor failed: %v", err)
	}
	if _, ok := e.Actor(first); ok {
		t.Error("previous replacement should be destroyed")
	}
	if !r.IsActorReplacement(second) {
		t.Error("IsActorReplacement(second) = false, want true")
	}

	if err := e.SetActorHidden(orig, true); err != nil {
		t.Fatalf("SetActorHidden failed: %v", err)
	}
	if err := e.DestroyActor(second); err != nil {
		t.Fatalf("DestroyActor failed: %v", err)
	}
	rr := r.Reconcile()
	if rr.ActorLinksDropped != 1 {
		t.Errorf("ActorLinksDropped = %d, want 1", rr.ActorLinksDropped)
	}
	if a, _ := e.Actor(orig); a.Hidden {
		t.Error("original actor should be shown after its replacement vanished")
	}
}

func TestSnapshotRestore(t *testing.T) {
	e := newEngine()
	r := New(e)
	orig := spawnGroup(t, e, r, "/Game/Rooms/A", 1)
	rep := spawnGroup(t, e, r, "/Game/Rooms/B", 0)
	if err := r.LinkReplacement(orig.Root, rep.Root); err != nil {
		t.Fatalf("LinkReplacement failed: %v", err)
	}
	r.MarkFiltered(42, "Enemy")

	snap := r.Snapshot()
	restored := New(e)
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if restored.Len() != 2 {
		t.Errorf("Len = %d, want 2", restored.Len())
	}
	if got, ok := restored.Replacement(orig.Root); !ok || got != rep.Root {
		t.Errorf("Replacement = %d, %v, want %d", got, ok, rep.Root)
	}
	if f := restored.Filtered(); len(f) != 1 || f[0] != 42 {
		t.Errorf("Filtered = %v, want [42]", f)
	}
}
