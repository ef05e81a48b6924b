package world

// MemorySnapshot is the serializable state of a Memory world.
type MemorySnapshot struct {
	Levels    []Level
	Actors    []Actor
	NextLevel LevelID
	NextActor ActorID
}

// Snapshot captures every live level and actor. Removed levels that have
// not been collected yet are dropped.
func (m *Memory) Snapshot() MemorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MemorySnapshot{
		NextLevel: m.nextLevel,
		NextActor: m.nextActor,
	}
	if p := m.levels[PersistentLevel]; p != nil {
		snap.Levels = append(snap.Levels, *p)
	}
	for _, id := range m.order {
		if lvl := m.levels[id]; lvl != nil && lvl.State != StateRemoved {
			snap.Levels = append(snap.Levels, *lvl)
		}
	}
	for _, a := range m.actors {
		snap.Actors = append(snap.Actors, copyActor(a))
	}
	return snap
}

// Restore replaces the world's state with snap.
func (m *Memory) Restore(snap MemorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	persistent := m.levels[PersistentLevel]
	m.levels = make(map[LevelID]*Level, len(snap.Levels)+1)
	m.actors = make(map[ActorID]*Actor, len(snap.Actors))
	m.order = m.order[:0]
	m.levels[PersistentLevel] = persistent

	for i := range snap.Levels {
		lvl := snap.Levels[i]
		if lvl.ID == PersistentLevel {
			m.levels[PersistentLevel] = &lvl
			continue
		}
		m.levels[lvl.ID] = &lvl
		m.order = append(m.order, lvl.ID)
	}
	sortLevelIDs(m.order)

	for i := range snap.Actors {
		a := copyActor(&snap.Actors[i])
		m.actors[a.ID] = &a
	}

	m.nextLevel = snap.NextLevel
	m.nextActor = snap.NextActor
	for id := range m.levels {
		if id >= m.nextLevel {
			m.nextLevel = id + 1
		}
	}
	for id := range m.actors {
		if id >= m.nextActor {
			m.nextActor = id + 1
		}
	}
}

// PendingGarbage returns how many removed objects await CollectGarbage.
func (m *Memory) PendingGarbage() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.garbage
}
