package forge

import (
	"fmt"

	"github.com/lawnchairsociety/levelforge/internal/datatable"
	"github.com/lawnchairsociety/levelforge/internal/logger"
	"github.com/lawnchairsociety/levelforge/internal/randsel"
	"github.com/lawnchairsociety/levelforge/internal/registry"
	"github.com/lawnchairsociety/levelforge/internal/report"
	"github.com/lawnchairsociety/levelforge/internal/world"
)

// Regenerate replaces every original room that has a matching level row
// with a weighted pick from the row. Running it again replaces the previous
// replacement; the original stays hidden underneath.
func (s *Session) Regenerate(table *datatable.Table, seed randsel.Seed) (*Result, error) {
	const op = "regenerate"
	res := newResult(op)

	var rows int
	if table != nil {
		rows = len(table.Levels)
	}
	if err := checkTable(table, rows); err != nil {
		return res, s.fail(op, err)
	}
	for _, row := range table.Levels {
		if err := s.resolveRooms(row.Label(), row.Choices()); err != nil {
			return res, s.fail(op, err)
		}
	}

	stream := startStream(op, seed)
	res.Seed, res.FixedSeed = stream.Seed(), seed.IsFixed()

	originals := s.registry.Originals()
	defer s.engine.CollectGarbage()

	for _, g := range originals {
		if _, tracked := s.registry.Group(g.Root); !tracked {
			continue
		}
		if !s.registry.IsLive(g.Root) {
			res.States[g.Root] = Orphaned
			s.dropOrphan(res, g.Root)
			continue
		}
		if rep, ok := s.registry.Replacement(g.Root); ok && !s.registry.IsLive(rep) {
			// The user removed the replacement; the original comes back
			// before it is considered again.
			s.dropOrphan(res, rep)
		}

		res.States[g.Root] = Stable
		row, ok := table.LevelRowFor(g.Source)
		if !ok {
			continue
		}
		choices := row.Choices()
		if choices.Total() == 0 {
			report.Warnf(s.sink, "Row %s has no replacement with a positive weight; %s left unchanged", row.Label(), g.Source)
			res.Skipped = append(res.Skipped, row.Label())
			continue
		}
		res.States[g.Root] = MarkedForReplacement

		target, err := randsel.Pick(choices, stream)
		if err != nil {
			report.Warnf(s.sink, "Row %s: %v", row.Label(), err)
			res.Skipped = append(res.Skipped, row.Label())
			res.States[g.Root] = Stable
			continue
		}
		res.States[g.Root] = Replacing

		rep, err := s.replace(g, target)
		if err != nil {
			res.States[g.Root] = Stable
			if len(res.Replaced) > 0 {
				report.Warnf(s.sink, "%d rooms were replaced before %s failed; they stay in place", len(res.Replaced), g.Source)
			}
			return res, s.fail(op, err)
		}
		res.Replaced = append(res.Replaced, Replacement{
			Original:    g.Root,
			Replacement: rep.Root,
			From:        g.Source,
			To:          rep.Source,
		})
		res.States[g.Root] = Stable
	}

	report.Infof(s.sink, "%s", res.Summary())
	return res, nil
}

// replace composes target at the original's placement, links it and hides
// the original.
func (s *Session) replace(orig *registry.RootGroup, target string) (*registry.RootGroup, error) {
	room, err := s.rooms.Room(target)
	if err != nil {
		return nil, err
	}
	rep, err := s.composer.Compose(room, orig.Placement, orig.Folder, orig.Color)
	if err != nil {
		return nil, err
	}
	if err := s.registry.LinkReplacement(orig.Root, rep.Root); err != nil {
		if rerr := s.registry.Retire(rep.Root); rerr != nil {
			logger.Warning("Failed to retire unlinked replacement", "root", rep.Root, "error", rerr)
		}
		return nil, fmt.Errorf("failed to link replacement for %s: %w", orig.Source, err)
	}
	if err := s.registry.SetGroupVisible(orig.Root, false); err != nil {
		logger.Warning("Failed to hide replaced room", "root", orig.Root, "error", err)
	}
	logger.Debug("Replaced room", "original", orig.Root, "from", orig.Source, "replacement", rep.Root, "to", rep.Source)
	return rep, nil
}

func (s *Session) dropOrphan(res *Result, root world.LevelID) {
	retired, restored, err := s.registry.DropOrphan(root)
	if err != nil {
		logger.Warning("Failed to drop orphaned room", "root", root, "error", err)
	}
	res.Orphaned = append(res.Orphaned, root)
	logger.Info("Dropped orphaned room", "root", root, "retired", retired, "restored", restored)
}
