package world

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lawnchairsociety/levelforge/internal/geom"
)

// ContentSource supplies the actors authored inside a level asset.
type ContentSource interface {
	LevelContent(asset string) ([]ActorSpec, error)
}

// Memory is an in-process Engine. It backs the command line tool and the
// tests; its state can be snapshotted and restored between processes.
type Memory struct {
	content    ContentSource
	levels     map[LevelID]*Level
	order      []LevelID
	actors     map[ActorID]*Actor
	nextLevel  LevelID
	nextActor  ActorID
	deferLoads bool
	garbage    int
	collected  int
	mu         sync.RWMutex
}

// NewMemory creates a world containing only the persistent level.
func NewMemory(content ContentSource) *Memory {
	m := &Memory{
		content:   content,
		levels:    make(map[LevelID]*Level),
		actors:    make(map[ActorID]*Actor),
		nextLevel: PersistentLevel + 1,
		nextActor: 1,
	}
	m.levels[PersistentLevel] = &Level{
		ID:      PersistentLevel,
		Asset:   "/Temp/Untitled",
		Package: "/Temp/Untitled",
		Name:    "Persistent Level",
		Color:   geom.White,
		Visible: true,
		State:   StateLoaded,
	}
	return m
}

// SetDeferredLoading makes new instances start in StateLoading until
// UpdateStreaming is called.
func (m *Memory) SetDeferredLoading(deferred bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deferLoads = deferred
}

// Collections returns how many times CollectGarbage has run.
func (m *Memory) Collections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collected
}

// InstantiateLevel streams a new instance of asset.
func (m *Memory) InstantiateLevel(asset, name string, at geom.Transform) (LevelID, error) {
	if m.content == nil {
		return 0, fmt.Errorf("%w: %s (no content source)", ErrAssetNotFound, asset)
	}
	specs, err := m.content.LevelContent(asset)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrAssetNotFound, asset, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextLevel
	m.nextLevel++

	state := StateLoaded
	if m.deferLoads {
		state = StateLoading
	}

	m.levels[id] = &Level{
		ID:        id,
		Asset:     asset,
		Package:   fmt.Sprintf("%s_LevelInstance_%d", asset, id),
		Name:      name,
		Transform: at,
		Color:     geom.White,
		Visible:   true,
		State:     state,
	}
	m.order = append(m.order, id)

	for _, spec := range specs {
		m.spawnLocked(id, spec)
	}

	return id, nil
}

// RemoveLevel marks the level removed and destroys its actors.
func (m *Memory) RemoveLevel(id LevelID) error {
	if id == PersistentLevel {
		return ErrPersistentLevel
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lvl, ok := m.levels[id]
	if !ok {
		return nil
	}
	if lvl.State == StateRemoved {
		return nil
	}
	lvl.State = StateRemoved
	m.garbage++

	for aid, a := range m.actors {
		if a.Level == id {
			delete(m.actors, aid)
			m.garbage++
		}
	}
	return nil
}

// State returns the authoritative state of a level.
func (m *Memory) State(id LevelID) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if lvl, ok := m.levels[id]; ok {
		return lvl.State
	}
	return StateRemoved
}

// Level returns a copy of the level.
func (m *Memory) Level(id LevelID) (Level, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lvl, ok := m.levels[id]
	if !ok {
		return Level{}, false
	}
	return *lvl, true
}

// Levels lists streamed levels that are not removed.
func (m *Memory) Levels() []Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Level, 0, len(m.order))
	for _, id := range m.order {
		if lvl := m.levels[id]; lvl != nil && lvl.State != StateRemoved {
			out = append(out, *lvl)
		}
	}
	return out
}

func (m *Memory) mutateLevel(id LevelID, fn func(*Level)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lvl, ok := m.levels[id]
	if !ok || lvl.State == StateRemoved {
		return fmt.Errorf("%w: %d", ErrLevelNotFound, id)
	}
	fn(lvl)
	return nil
}

// SetLevelTransform moves a level.
func (m *Memory) SetLevelTransform(id LevelID, t geom.Transform) error {
	if id == PersistentLevel {
		return ErrPersistentLevel
	}
	return m.mutateLevel(id, func(l *Level) { l.Transform = t })
}

// SetFolder sets the level browser folder of a level.
func (m *Memory) SetFolder(id LevelID, folder string) error {
	return m.mutateLevel(id, func(l *Level) { l.Folder = folder })
}

// SetColor sets the display color of a level.
func (m *Memory) SetColor(id LevelID, c geom.Color) error {
	return m.mutateLevel(id, func(l *Level) { l.Color = c })
}

// SetVisible shows or hides a level.
func (m *Memory) SetVisible(id LevelID, visible bool) error {
	return m.mutateLevel(id, func(l *Level) { l.Visible = visible })
}

// UpdateStreaming finishes every pending load.
func (m *Memory) UpdateStreaming() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lvl := range m.levels {
		if lvl.State == StateLoading {
			lvl.State = StateLoaded
		}
	}
}

// Actors lists the actors of a loaded level in ID order.
func (m *Memory) Actors(level LevelID) []Actor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lvl, ok := m.levels[level]
	if !ok || lvl.State != StateLoaded {
		return nil
	}

	var out []Actor
	for _, a := range m.actors {
		if a.Level == level {
			out = append(out, copyActor(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Actor returns a copy of a live actor.
func (m *Memory) Actor(id ActorID) (Actor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actors[id]
	if !ok {
		return Actor{}, false
	}
	return copyActor(a), true
}

// SpawnActor creates an actor in a live level.
func (m *Memory) SpawnActor(level LevelID, spec ActorSpec) (ActorID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lvl, ok := m.levels[level]
	if !ok || lvl.State == StateRemoved {
		return 0, fmt.Errorf("%w: %d", ErrLevelNotFound, level)
	}
	if spec.Class == "" {
		return 0, fmt.Errorf("%w: actor %q has no class", ErrAssetNotFound, spec.Name)
	}
	return m.spawnLocked(level, spec), nil
}

func (m *Memory) spawnLocked(level LevelID, spec ActorSpec) ActorID {
	id := m.nextActor
	m.nextActor++
	spec.Tags = append([]string(nil), spec.Tags...)
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("%s_%d", spec.Class, id)
	}
	m.actors[id] = &Actor{ID: id, Level: level, ActorSpec: spec}
	return id
}

// DestroyActor removes an actor.
func (m *Memory) DestroyActor(id ActorID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actors[id]; !ok {
		return fmt.Errorf("%w: %d", ErrActorNotFound, id)
	}
	delete(m.actors, id)
	m.garbage++
	return nil
}

// SetActorHidden hides or shows an actor.
func (m *Memory) SetActorHidden(id ActorID, hidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actors[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrActorNotFound, id)
	}
	a.Hidden = hidden
	return nil
}

// CollectGarbage forgets removed levels.
func (m *Memory) CollectGarbage() {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.order[:0]
	for _, id := range m.order {
		if m.levels[id].State == StateRemoved {
			delete(m.levels, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	m.garbage = 0
	m.collected++
}

func sortLevelIDs(ids []LevelID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func copyActor(a *Actor) Actor {
	c := *a
	c.Tags = append([]string(nil), a.Tags...)
	return c
}
