package forge

import (
	"fmt"
	"io"

	"github.com/lawnchairsociety/levelforge/internal/catalog"
	"github.com/lawnchairsociety/levelforge/internal/logger"
	"github.com/lawnchairsociety/levelforge/internal/report"
	"github.com/lawnchairsociety/levelforge/internal/world"
	"gopkg.in/yaml.v3"
)

// Merge copies the visible actors of every visible streamed level into the
// persistent level at their world transforms, then removes every streamed
// level and forgets the registry. If a copy fails, the copies made so far
// are destroyed and the streamed levels are left untouched.
func (s *Session) Merge() (*Result, error) {
	const op = "merge"
	res := newResult(op)

	s.engine.UpdateStreaming()
	levels := s.engine.Levels()

	var copied []world.ActorID
	undo := func() {
		for _, id := range copied {
			if err := s.engine.DestroyActor(id); err != nil {
				logger.Warning("Failed to remove merged copy", "actor", id, "error", err)
			}
		}
		res.ActorsSpawned = 0
	}

	for _, lvl := range levels {
		if !lvl.Visible {
			continue
		}
		for _, a := range s.engine.Actors(lvl.ID) {
			if a.Hidden {
				continue
			}
			spec := a.ActorSpec
			spec.Transform = world.WorldTransform(s.engine, a)
			id, err := s.engine.SpawnActor(world.PersistentLevel, spec)
			if err != nil {
				undo()
				return res, s.fail(op, fmt.Errorf("failed to merge actor %s: %w", a.Name, err))
			}
			copied = append(copied, id)
			res.ActorsSpawned++
		}
	}

	for _, lvl := range levels {
		if err := s.engine.RemoveLevel(lvl.ID); err != nil {
			logger.Warning("Failed to remove merged level", "level", lvl.ID, "error", err)
			continue
		}
		res.LevelsRemoved++
	}
	s.registry.Forget()
	s.engine.CollectGarbage()

	report.Infof(s.sink, "%s", res.Summary())
	return res, nil
}

// ExportMerged writes the visible actors of the persistent level as a
// catalog document describing a single level at levelPath.
func ExportMerged(e world.Engine, levelPath string, w io.Writer) error {
	lvl := catalog.LevelYAML{Path: levelPath}
	for _, a := range e.Actors(world.PersistentLevel) {
		if a.Hidden {
			continue
		}
		lvl.Actors = append(lvl.Actors, catalog.ActorYAML{
			Name:     a.Name,
			Class:    a.Class,
			Tags:     a.Tags,
			Location: a.Transform.Location,
			Yaw:      a.Transform.Yaw,
			Entry:    a.Entry,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalog.CatalogYAML{Levels: []catalog.LevelYAML{lvl}}); err != nil {
		return fmt.Errorf("failed to encode merged level: %w", err)
	}
	return enc.Close()
}
