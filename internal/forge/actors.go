package forge

import (
	"sort"

	"github.com/lawnchairsociety/levelforge/internal/datatable"
	"github.com/lawnchairsociety/levelforge/internal/logger"
	"github.com/lawnchairsociety/levelforge/internal/randsel"
	"github.com/lawnchairsociety/levelforge/internal/report"
	"github.com/lawnchairsociety/levelforge/internal/world"
	"github.com/zyedidia/generic/mapset"
)

// visibleLevels returns the persistent level followed by every visible
// loaded streamed level.
func (s *Session) visibleLevels() []world.LevelID {
	ids := []world.LevelID{world.PersistentLevel}
	for _, lvl := range s.engine.Levels() {
		if lvl.Visible && lvl.State == world.StateLoaded {
			ids = append(ids, lvl.ID)
		}
	}
	return ids
}

// collectActors returns the actors of every visible level matching keep,
// in ID order.
func (s *Session) collectActors(keep func(world.Actor) bool) []world.Actor {
	var out []world.Actor
	for _, id := range s.visibleLevels() {
		for _, a := range s.engine.Actors(id) {
			if keep(a) {
				out = append(out, a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FilterActorsByTag keeps, for every tag row, Count randomly chosen actors
// carrying the tag and hides the others. Actors hidden by an earlier run
// of the same tag are shown again first.
func (s *Session) FilterActorsByTag(table *datatable.Table, seed randsel.Seed) (*Result, error) {
	const op = "filter"
	res := newResult(op)

	var rows int
	if table != nil {
		rows = len(table.Tags)
	}
	if err := checkTable(table, rows); err != nil {
		return res, s.fail(op, err)
	}

	stream := startStream(op, seed)
	res.Seed, res.FixedSeed = stream.Seed(), seed.IsFixed()
	s.engine.UpdateStreaming()

	for _, row := range table.Tags {
		for _, id := range s.registry.ClearFilteredTag(row.Tag) {
			if err := s.engine.SetActorHidden(id, false); err == nil {
				res.ActorsShown++
			}
		}

		tagged := s.collectActors(func(a world.Actor) bool {
			return !a.Hidden && a.HasTag(row.Tag)
		})
		if len(tagged) == 0 {
			report.Warnf(s.sink, "Row %s: no visible actor carries tag %s", row.Label(), row.Tag)
			res.Skipped = append(res.Skipped, row.Label())
			continue
		}

		keep := mapset.New[int]()
		for _, i := range randsel.Sample(len(tagged), row.Count, stream) {
			keep.Put(i)
		}
		for i, a := range tagged {
			if keep.Has(i) {
				continue
			}
			if err := s.engine.SetActorHidden(a.ID, true); err != nil {
				logger.Warning("Failed to hide actor", "actor", a.ID, "error", err)
				continue
			}
			s.registry.MarkFiltered(a.ID, row.Tag)
			res.ActorsHidden++
		}
		logger.Debug("Filtered actors", "tag", row.Tag, "kept", keep.Size(), "of", len(tagged))
	}

	report.Infof(s.sink, "%s", res.Summary())
	return res, nil
}

// GenerateActors replaces every original actor of a row's class with an
// actor of a weighted pick of classes at the same place. The original is
// hidden; regenerating destroys the previous replacement.
func (s *Session) GenerateActors(table *datatable.Table, seed randsel.Seed) (*Result, error) {
	const op = "generate"
	res := newResult(op)

	var rows int
	if table != nil {
		rows = len(table.Actors)
	}
	if err := checkTable(table, rows); err != nil {
		return res, s.fail(op, err)
	}

	stream := startStream(op, seed)
	res.Seed, res.FixedSeed = stream.Seed(), seed.IsFixed()
	s.engine.UpdateStreaming()
	defer s.engine.CollectGarbage()

	filtered := mapset.New[world.ActorID]()
	for _, id := range s.registry.Filtered() {
		filtered.Put(id)
	}

	for _, row := range table.Actors {
		choices := row.Choices()
		if choices.Total() == 0 {
			report.Warnf(s.sink, "Row %s has no replacement class with a positive weight", row.Label())
			res.Skipped = append(res.Skipped, row.Label())
			continue
		}

		originals := s.collectActors(func(a world.Actor) bool {
			if a.Class != row.Class || filtered.Has(a.ID) || s.registry.IsActorReplacement(a.ID) {
				return false
			}
			_, replaced := s.registry.ActorReplacement(a.ID)
			return !a.Hidden || replaced
		})

		for _, a := range originals {
			class, err := randsel.Pick(choices, stream)
			if err != nil {
				return res, s.fail(op, err)
			}
			spec := world.ActorSpec{
				Class:     class,
				Tags:      a.Tags,
				Transform: a.Transform,
			}
			id, err := s.engine.SpawnActor(a.Level, spec)
			if err != nil {
				return res, s.fail(op, err)
			}
			if err := s.registry.LinkActor(a.ID, id); err != nil {
				_ = s.engine.DestroyActor(id)
				return res, s.fail(op, err)
			}
			if err := s.engine.SetActorHidden(a.ID, true); err != nil {
				logger.Warning("Failed to hide replaced actor", "actor", a.ID, "error", err)
			}
			res.ActorsSpawned++
		}
	}

	report.Infof(s.sink, "%s", res.Summary())
	return res, nil
}
