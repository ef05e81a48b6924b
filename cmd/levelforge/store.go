package main

import (
	"errors"
	"fmt"

	"github.com/lawnchairsociety/levelforge/internal/composer"
	"github.com/lawnchairsociety/levelforge/internal/database"
	"github.com/lawnchairsociety/levelforge/internal/forge"
	"github.com/lawnchairsociety/levelforge/internal/logger"
)

// restore loads the saved session, if any, and reconciles it against the
// restored world.
func (a *app) restore() error {
	s, err := a.db.LoadSession()
	if errors.Is(err, database.ErrNoSession) {
		logger.Debug("No saved session, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	a.engine.Restore(s.World)
	if err := a.session.Registry().Restore(s.Registry); err != nil {
		return fmt.Errorf("failed to restore registry: %w", err)
	}
	composer.InitSequence(s.Sequence)

	if rr := a.session.Reconcile(); rr.Changed() {
		logger.Info("Saved session reconciled",
			"dropped", len(rr.Dropped),
			"retired", len(rr.Retired),
			"restored", len(rr.Restored))
	}
	logger.Info("Session restored",
		"levels", len(s.World.Levels),
		"groups", a.session.Registry().Len())
	return nil
}

// save stores the session and, when res is set, records the run.
func (a *app) save(res *forge.Result) error {
	err := a.db.SaveSession(database.Session{
		World:    a.engine.Snapshot(),
		Registry: a.session.Registry().Snapshot(),
		Sequence: composer.CurrentSequence(),
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if res == nil {
		return nil
	}
	id, err := a.db.RecordRun(res.Operation, res.Seed, res.FixedSeed, res.Summary())
	if err != nil {
		return err
	}
	logger.Debug("Run recorded", "id", id, "operation", res.Operation, "seed", res.Seed)
	return nil
}
